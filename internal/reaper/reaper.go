// Package reaper cancels orders left unpaid past a configurable age and
// returns their reserved stock to the catalog.
package reaper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/plutoshop/shop-api/internal/domain/order"
	"github.com/plutoshop/shop-api/internal/payment"
)

// OrderStore is the slice of the order service the reaper needs.
type OrderStore interface {
	FindStale(ctx context.Context, cutoff time.Time, limit int) ([]order.Order, error)
	CancelOrder(ctx context.Context, orderID string) (bool, error)
}

// Config controls sweep timing.
type Config struct {
	// Interval between sweeps.
	Interval time.Duration
	// MaxAge is how long an order may stay Pending/Pending before it is
	// reaped.
	MaxAge time.Duration
	// BatchSize caps orders processed per sweep.
	BatchSize int
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 5 * time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
}

// Reaper periodically cancels stale unpaid orders. Cancellation at the
// provider is best effort: the order is cancelled locally regardless.
type Reaper struct {
	orders   OrderStore
	provider payment.Provider
	cfg      Config
	lg       *zap.Logger
}

// New creates a Reaper. provider may be nil when no payment provider is
// configured; intents are then left to expire on their own.
func New(orders OrderStore, provider payment.Provider, cfg Config, lg *zap.Logger) *Reaper {
	cfg.applyDefaults()
	return &Reaper{
		orders:   orders,
		provider: provider,
		cfg:      cfg,
		lg:       lg,
	}
}

// Run sweeps on a fixed interval until ctx is cancelled. Sweep errors are
// logged and contained; the loop never exits on them.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.lg.Info("reaper started",
		zap.Duration("interval", r.cfg.Interval),
		zap.Duration("max_age", r.cfg.MaxAge),
	)

	for {
		select {
		case <-ctx.Done():
			r.lg.Info("reaper stopped")
			return
		case <-ticker.C:
			if err := r.Sweep(ctx); err != nil {
				r.lg.Error("reaper sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep cancels every order that has sat Pending/Pending longer than MaxAge.
// The per-order cancellation is a conditional transition, so overlapping
// sweeps never double-restore stock.
func (r *Reaper) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-r.cfg.MaxAge)

	stale, err := r.orders.FindStale(ctx, cutoff, r.cfg.BatchSize)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}

	r.lg.Info("reaping stale orders", zap.Int("count", len(stale)))

	for _, o := range stale {
		cancelled, err := r.orders.CancelOrder(ctx, o.ID)
		if err != nil {
			r.lg.Error("cancel stale order", zap.String("order_id", o.ID), zap.Error(err))
			continue
		}
		if !cancelled {
			// Lost the race to a webhook or an overlapping sweep.
			continue
		}

		r.lg.Info("stale order cancelled",
			zap.String("order_id", o.ID),
			zap.Time("created_at", o.CreatedAt),
		)

		if o.PaymentIntent == "" || r.provider == nil {
			continue
		}
		if err := r.provider.CancelPaymentIntent(ctx, o.PaymentIntent); err != nil {
			// Best effort: the order is already cancelled locally.
			r.lg.Warn("cancel payment intent failed",
				zap.String("order_id", o.ID),
				zap.String("payment_intent", o.PaymentIntent),
				zap.Error(err),
			)
		}
	}
	return nil
}
