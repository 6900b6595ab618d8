package order

import (
	"context"
	"time"
)

// Event types published on order lifecycle transitions.
const (
	EventCreated       = "order.created"
	EventStatusChanged = "order.status_changed"
	EventCancelled     = "order.cancelled"
	EventPaid          = "order.paid"
	EventPaymentFailed = "order.payment_failed"
)

// Event is a small lifecycle notification for realtime consumers
// (dashboards). Delivery is best effort.
type Event struct {
	Type          string        `json:"type"`
	OrderID       string        `json:"order_id"`
	Status        Status        `json:"status,omitempty"`
	PaymentStatus PaymentStatus `json:"payment_status,omitempty"`
	OccurredAt    time.Time     `json:"occurred_at"`
}

// EventPublisher publishes order lifecycle events. Implementations must not
// block order processing on delivery failures.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event)
}

// NopPublisher discards all events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}
