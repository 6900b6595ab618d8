package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/plutoshop/shop-api/internal/domain/product"
)

// ItemInput is a requested line item on a new order.
type ItemInput struct {
	ProductID string
	Quantity  int
}

// PlaceOrderRequest holds the input for placing an order. Total, status and
// payment status are derived server-side and deliberately absent.
type PlaceOrderRequest struct {
	CustomerName  string
	Email         string
	PhoneNumber   string
	Address       string
	DeliveryDate  *time.Time
	Notes         string
	PaymentMethod PaymentMethod
	Items         []ItemInput
}

// Service owns the order/stock ledger: every stock mutation and order total
// recompute goes through its methods rather than persistence-layer hooks, so
// the transactional boundary is explicit.
type Service struct {
	products product.Repository
	orders   Repository
	events   EventPublisher
	lg       *zap.Logger
}

// NewService creates an order Service with the required dependencies.
func NewService(products product.Repository, orders Repository, events EventPublisher, lg *zap.Logger) *Service {
	if events == nil {
		events = NopPublisher{}
	}
	return &Service{
		products: products,
		orders:   orders,
		events:   events,
		lg:       lg,
	}
}

// PlaceOrder validates the request, snapshots unit prices, and persists the
// order with all line items atomically. Stock is decremented per item,
// clamped at zero: a quantity above the available stock is accepted and sells
// the product through to zero (backorder policy), logged at Warn.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	if err := validatePlaceOrder(req); err != nil {
		return nil, err
	}

	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		ids[i] = item.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	items := make([]LineItem, 0, len(req.Items))
	for _, item := range req.Items {
		p, ok := byID[item.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		if !p.IsActive {
			return nil, &ProductInactiveError{ProductID: item.ProductID}
		}
		if item.Quantity > p.Stock {
			s.lg.Warn("order oversells product stock",
				zap.String("product_id", p.ID),
				zap.Int("requested", item.Quantity),
				zap.Int("available", p.Stock),
			)
		}
		items = append(items, LineItem{
			ID:        uuid.NewString(),
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     p.Price,
		})
	}

	o := &Order{
		ID:            uuid.NewString(),
		CustomerName:  req.CustomerName,
		Email:         req.Email,
		PhoneNumber:   req.PhoneNumber,
		Address:       req.Address,
		DeliveryDate:  req.DeliveryDate,
		Notes:         req.Notes,
		Total:         ItemsTotal(items),
		Status:        StatusPending,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: PaymentPending,
		Items:         items,
	}
	for i := range o.Items {
		o.Items[i].OrderID = o.ID
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	s.events.Publish(ctx, Event{
		Type:       EventCreated,
		OrderID:    o.ID,
		Status:     o.Status,
		OccurredAt: time.Now().UTC(),
	})
	return o, nil
}

func validatePlaceOrder(req PlaceOrderRequest) error {
	switch {
	case req.CustomerName == "":
		return &MissingFieldError{Field: "customer_name"}
	case req.Email == "":
		return &MissingFieldError{Field: "email"}
	case req.PhoneNumber == "":
		return &MissingFieldError{Field: "phone_number"}
	case req.Address == "":
		return &MissingFieldError{Field: "address"}
	}
	if len(req.Items) == 0 {
		return ErrEmptyItems
	}
	if !ValidMethod(req.PaymentMethod) {
		return ErrInvalidMethod
	}
	return nil
}

// Get returns a single order with its line items.
func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	return s.orders.Get(ctx, orderID)
}

// List returns all orders, newest first.
func (s *Service) List(ctx context.Context) ([]Order, error) {
	return s.orders.List(ctx)
}

// UpdateLineItem changes a line item's quantity. Only the delta is applied to
// the product's stock, clamped at zero, and the order total is recomputed in
// the same transaction.
func (s *Service) UpdateLineItem(ctx context.Context, orderID, itemID string, quantity int) (*Order, error) {
	if quantity <= 0 {
		return nil, &InvalidQuantityError{ProductID: itemID}
	}
	o, err := s.orders.UpdateItemQuantity(ctx, orderID, itemID, quantity)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// RemoveLineItem deletes a line item, restoring its quantity to the product's
// stock and recomputing the order total.
func (s *Service) RemoveLineItem(ctx context.Context, orderID, itemID string) (*Order, error) {
	return s.orders.RemoveItem(ctx, orderID, itemID)
}

// UpdateStatus applies an admin status change, restricted to the status field
// and guarded by the transition table. Moving into Cancelled restores stock
// for every line item; repeating the cancellation is a no-op.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, to Status) (*Order, error) {
	if !ValidStatus(to) {
		return nil, &InvalidTransitionError{To: to}
	}
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status == to {
		return o, nil
	}
	if !CanTransition(o.Status, to) {
		return nil, &InvalidTransitionError{From: o.Status, To: to}
	}

	if to == StatusCancelled {
		if _, err := s.CancelOrder(ctx, orderID); err != nil {
			return nil, err
		}
	} else {
		if err := s.orders.SetStatus(ctx, orderID, to); err != nil {
			return nil, err
		}
		s.events.Publish(ctx, Event{
			Type:       EventStatusChanged,
			OrderID:    orderID,
			Status:     to,
			OccurredAt: time.Now().UTC(),
		})
	}
	return s.orders.Get(ctx, orderID)
}

// FindStale returns orders still awaiting payment that were created before
// cutoff, oldest first, capped at limit.
func (s *Service) FindStale(ctx context.Context, cutoff time.Time, limit int) ([]Order, error) {
	return s.orders.FindStale(ctx, cutoff, limit)
}

// CancelOrder cancels the order and restores the stock consumed by its line
// items. The repository transition is conditional, so concurrent or repeated
// cancellations restore stock exactly once. It reports whether this call
// performed the cancellation.
func (s *Service) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	cancelled, err := s.orders.Cancel(ctx, orderID)
	if err != nil {
		return false, err
	}
	if cancelled {
		s.events.Publish(ctx, Event{
			Type:       EventCancelled,
			OrderID:    orderID,
			Status:     StatusCancelled,
			OccurredAt: time.Now().UTC(),
		})
	}
	return cancelled, nil
}
