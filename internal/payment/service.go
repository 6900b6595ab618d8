package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/plutoshop/shop-api/internal/domain/order"
)

// Deduper short-circuits webhook events that were already applied. SeenEvent
// is a read-only check; MarkEventSeen records the id separately, after the
// event applied, so a failed delivery stays unrecorded and the provider's
// retry gets processed instead of skipped. Implementations are best effort:
// losing a record is safe because every downstream transition is idempotent.
type Deduper interface {
	SeenEvent(ctx context.Context, eventID string) bool
	MarkEventSeen(ctx context.Context, eventID string)
}

// Service reconciles order payment state with the provider.
type Service struct {
	orders   order.Repository
	provider Provider
	events   order.EventPublisher
	dedup    Deduper
	cfg      Config
	lg       *zap.Logger
}

// NewService creates a payment Service. dedup may be nil, in which case every
// delivery is processed (still safe, transitions are conditional).
func NewService(orders order.Repository, provider Provider, events order.EventPublisher, dedup Deduper, cfg Config, lg *zap.Logger) *Service {
	if events == nil {
		events = order.NopPublisher{}
	}
	if cfg.Currency == "" {
		cfg.Currency = "gbp"
	}
	return &Service{
		orders:   orders,
		provider: provider,
		events:   events,
		dedup:    dedup,
		cfg:      cfg,
		lg:       lg,
	}
}

// WebhookSecret exposes the signing secret for the webhook handler.
func (s *Service) WebhookSecret() string { return s.cfg.WebhookSecret }

// CreateCheckoutSession creates a provider checkout session for the order's
// total in minor currency units, stores the payment-intent reference, and
// returns the redirect URL. An already-paid order is a conflict and performs
// no provider call.
func (s *Service) CreateCheckoutSession(ctx context.Context, orderID string) (string, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return "", err
	}
	if o.PaymentStatus == order.PaymentPaid {
		return "", ErrAlreadyPaid
	}

	// NUMERIC(10,2) totals shift exactly to minor units.
	amount := o.Total.Shift(2).IntPart()

	sess, err := s.provider.CreateCheckoutSession(ctx, CheckoutParams{
		OrderID:     o.ID,
		Amount:      amount,
		Currency:    s.cfg.Currency,
		Description: fmt.Sprintf("Order %s Payment", o.ID),
		SuccessURL:  s.cfg.SuccessURL,
		CancelURL:   s.cfg.CancelURL,
	})
	if err != nil {
		return "", err
	}

	if err := s.orders.SetPaymentIntent(ctx, o.ID, sess.PaymentIntentID); err != nil {
		return "", errors.Wrap(err, "store payment intent")
	}

	s.lg.Info("checkout session created",
		zap.String("order_id", o.ID),
		zap.String("payment_intent", sess.PaymentIntentID),
		zap.Int64("amount_minor", amount),
	)
	return sess.URL, nil
}

// HandleEvent applies a verified webhook event and returns the id of the
// order it touched, or "" when no order was involved. Deliveries are
// at-least-once, so every transition is conditional and a repeat delivery is
// a no-op. An event whose order cannot be resolved is accepted (nil error)
// but logged, so the provider stops retrying.
func (s *Service) HandleEvent(ctx context.Context, ev *Event) (string, error) {
	if s.dedup != nil && ev.ID != "" && s.dedup.SeenEvent(ctx, ev.ID) {
		s.lg.Debug("duplicate webhook event skipped", zap.String("event_id", ev.ID))
		return "", nil
	}

	var (
		orderID string
		err     error
	)
	switch ev.Type {
	case EventCheckoutCompleted, EventIntentSucceeded:
		orderID, err = s.applyPaid(ctx, ev)
	case EventIntentFailed:
		orderID, err = s.applyFailed(ctx, ev)
	default:
		s.lg.Debug("ignoring webhook event", zap.String("type", ev.Type))
	}
	if err != nil {
		// The id stays unrecorded: the provider retries this delivery and
		// the retry must not be skipped as a duplicate.
		return "", err
	}
	if s.dedup != nil && ev.ID != "" {
		s.dedup.MarkEventSeen(ctx, ev.ID)
	}
	return orderID, nil
}

func (s *Service) applyPaid(ctx context.Context, ev *Event) (string, error) {
	orderID, ok, err := s.resolveOrder(ctx, ev)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	paid, err := s.orders.MarkPaid(ctx, orderID)
	if err != nil {
		return "", errors.Wrap(err, "mark paid")
	}
	if paid {
		s.lg.Info("order payment settled",
			zap.String("order_id", orderID),
			zap.String("event_id", ev.ID),
		)
		s.events.Publish(ctx, order.Event{
			Type:          order.EventPaid,
			OrderID:       orderID,
			PaymentStatus: order.PaymentPaid,
			OccurredAt:    time.Now().UTC(),
		})
	}
	return orderID, nil
}

func (s *Service) applyFailed(ctx context.Context, ev *Event) (string, error) {
	orderID, ok, err := s.resolveOrder(ctx, ev)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	failed, err := s.orders.MarkPaymentFailed(ctx, orderID)
	if err != nil {
		return "", errors.Wrap(err, "mark payment failed")
	}
	if failed {
		s.lg.Info("order payment failed",
			zap.String("order_id", orderID),
			zap.String("event_id", ev.ID),
		)
		s.events.Publish(ctx, order.Event{
			Type:          order.EventPaymentFailed,
			OrderID:       orderID,
			PaymentStatus: order.PaymentFailed,
			OccurredAt:    time.Now().UTC(),
		})
	}
	return orderID, nil
}

// resolveOrder returns the order id an event applies to, preferring the
// metadata tag and falling back to the payment-intent reference. Events that
// cannot be resolved report ok=false and are accepted without processing;
// storage failures propagate so the provider retries the delivery.
func (s *Service) resolveOrder(ctx context.Context, ev *Event) (string, bool, error) {
	if ev.OrderID != "" {
		_, err := s.orders.Get(ctx, ev.OrderID)
		switch {
		case err == nil:
			return ev.OrderID, true, nil
		case errors.Is(err, order.ErrNotFound):
			s.lg.Warn("webhook references unknown order",
				zap.String("event_id", ev.ID),
				zap.String("order_id", ev.OrderID),
			)
			return "", false, nil
		default:
			return "", false, errors.Wrap(err, "resolve order")
		}
	}
	if ev.IntentID != "" {
		o, err := s.orders.FindByPaymentIntent(ctx, ev.IntentID)
		switch {
		case err == nil:
			return o.ID, true, nil
		case !errors.Is(err, order.ErrNotFound):
			return "", false, errors.Wrap(err, "resolve order by intent")
		}
	}
	s.lg.Warn("webhook event unresolved, accepting without processing",
		zap.String("event_id", ev.ID),
		zap.String("type", ev.Type),
	)
	return "", false, nil
}
