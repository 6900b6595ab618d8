package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusShipped    Status = "Shipped"
	StatusCompleted  Status = "Completed"
	StatusCancelled  Status = "Cancelled"
)

// PaymentStatus is the payment state of an order, driven by the payment
// reconciliation component and the reaper.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "Pending"
	PaymentPaid    PaymentStatus = "Paid"
	PaymentFailed  PaymentStatus = "Failed"
)

// PaymentMethod is how the customer chose to pay.
type PaymentMethod string

const (
	MethodCOD    PaymentMethod = "COD"
	MethodCard   PaymentMethod = "Card"
	MethodOnline PaymentMethod = "Online"
)

// ValidStatus reports whether s is a known order status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// ValidMethod reports whether m is a known payment method.
func ValidMethod(m PaymentMethod) bool {
	switch m {
	case MethodCOD, MethodCard, MethodOnline:
		return true
	}
	return false
}

// validNext encodes the admin status state machine. Any non-terminal state
// may be cancelled; Completed and Cancelled are terminal.
var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusProcessing: true, StatusShipped: true, StatusCompleted: true, StatusCancelled: true},
	StatusProcessing: {StatusShipped: true, StatusCompleted: true, StatusCancelled: true},
	StatusShipped:    {StatusCompleted: true, StatusCancelled: true},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Order is a customer order. Total is derived from the line items and is
// never accepted from clients; Status and PaymentStatus move only through
// guarded transitions.
type Order struct {
	ID            string
	CustomerName  string
	Email         string
	PhoneNumber   string
	Address       string
	DeliveryDate  *time.Time
	Notes         string
	Total         decimal.Decimal
	Status        Status
	PaymentMethod PaymentMethod
	PaymentStatus PaymentStatus
	PaymentIntent string
	Items         []LineItem
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// LineItem is one product position on an order. Price is the unit price
// snapshotted at creation time.
type LineItem struct {
	ID        string
	OrderID   string
	ProductID string
	Quantity  int
	Price     decimal.Decimal
}

// ItemsTotal computes the exact sum of quantity x unit price over items,
// rounded to 2 decimal places.
func ItemsTotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total.Round(2)
}

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// ErrItemNotFound is returned when a line item does not exist on the order.
var ErrItemNotFound = errors.New("order item not found")

// Repository defines persistence for orders. Methods that touch stock or the
// order total are transactional: the storage implementation applies the stock
// adjustment, the line item change, and the total recompute atomically within
// a single order-scoped transaction.
type Repository interface {
	// Create persists the order together with its line items, decrements
	// each referenced product's stock by the item quantity (clamped at
	// zero), and stores the computed total.
	Create(ctx context.Context, o *Order) error

	Get(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context) ([]Order, error)

	// FindByPaymentIntent resolves an order by its provider payment-intent
	// reference. Returns ErrNotFound when no order carries the reference.
	FindByPaymentIntent(ctx context.Context, ref string) (*Order, error)

	// UpdateItemQuantity applies the quantity delta (new minus old) to the
	// product's stock, clamped at zero, and recomputes the order total.
	UpdateItemQuantity(ctx context.Context, orderID, itemID string, quantity int) (*Order, error)

	// RemoveItem deletes the line item, restores its quantity to the
	// product's stock, and recomputes the order total.
	RemoveItem(ctx context.Context, orderID, itemID string) (*Order, error)

	// SetStatus updates only the status column. It does not touch stock;
	// cancellation goes through Cancel.
	SetStatus(ctx context.Context, orderID string, status Status) error

	// Cancel transitions the order to Cancelled and restores stock for
	// every line item. The transition is conditional on the order not
	// already being Cancelled; it reports whether this call won the
	// transition, so overlapping sweeps never double-restore stock.
	Cancel(ctx context.Context, orderID string) (bool, error)

	// SetPaymentIntent stores the provider reference and resets the
	// payment status to Pending.
	SetPaymentIntent(ctx context.Context, orderID, ref string) error

	// MarkPaid conditionally sets payment_status to Paid. It reports
	// whether the transition happened; a repeat delivery is a no-op.
	MarkPaid(ctx context.Context, orderID string) (bool, error)

	// MarkPaymentFailed sets payment_status to Failed unless the order is
	// already Paid.
	MarkPaymentFailed(ctx context.Context, orderID string) (bool, error)

	// FindStale returns orders with payment_status and status both Pending
	// created before the cutoff, capped at limit.
	FindStale(ctx context.Context, cutoff time.Time, limit int) ([]Order, error)
}
