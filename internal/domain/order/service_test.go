package order

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/plutoshop/shop-api/internal/domain/product"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byID   map[string]*product.Product
	getErr error
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) { return nil, nil }

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockProductRepo) Create(_ context.Context, _ *product.Product) error { return nil }
func (m *mockProductRepo) Update(_ context.Context, _ string, _ product.Update) (*product.Product, error) {
	return nil, nil
}
func (m *mockProductRepo) Delete(_ context.Context, _ string) error { return nil }

type mockOrderRepo struct {
	byID      map[string]*Order
	createErr error

	statusSet     []Status
	cancelled     []string
	cancelledWon  bool
	cancelledDone map[string]bool
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.byID == nil {
		m.byID = make(map[string]*Order)
	}
	m.byID[o.ID] = o
	return nil
}

func (m *mockOrderRepo) Get(_ context.Context, id string) (*Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) List(_ context.Context) ([]Order, error) { return nil, nil }

func (m *mockOrderRepo) FindByPaymentIntent(_ context.Context, _ string) (*Order, error) {
	return nil, ErrNotFound
}

func (m *mockOrderRepo) UpdateItemQuantity(_ context.Context, orderID, _ string, _ int) (*Order, error) {
	return m.byID[orderID], nil
}

func (m *mockOrderRepo) RemoveItem(_ context.Context, orderID, _ string) (*Order, error) {
	return m.byID[orderID], nil
}

func (m *mockOrderRepo) SetStatus(_ context.Context, orderID string, status Status) error {
	o, ok := m.byID[orderID]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	m.statusSet = append(m.statusSet, status)
	return nil
}

func (m *mockOrderRepo) Cancel(_ context.Context, orderID string) (bool, error) {
	o, ok := m.byID[orderID]
	if !ok {
		return false, ErrNotFound
	}
	m.cancelled = append(m.cancelled, orderID)
	if m.cancelledDone == nil {
		m.cancelledDone = make(map[string]bool)
	}
	if m.cancelledDone[orderID] {
		return false, nil
	}
	m.cancelledDone[orderID] = true
	o.Status = StatusCancelled
	return true, nil
}

func (m *mockOrderRepo) SetPaymentIntent(_ context.Context, _, _ string) error { return nil }
func (m *mockOrderRepo) MarkPaid(_ context.Context, _ string) (bool, error)    { return false, nil }
func (m *mockOrderRepo) MarkPaymentFailed(_ context.Context, _ string) (bool, error) {
	return false, nil
}

func (m *mockOrderRepo) FindStale(_ context.Context, _ time.Time, _ int) ([]Order, error) {
	return nil, nil
}

type recordingPublisher struct {
	events []Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev Event) {
	p.events = append(p.events, ev)
}

// --- Helpers ---

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func newTestProduct(id string, price decimal.Decimal, stock int) product.Product {
	return product.Product{
		ID:       id,
		Name:     "Product " + id,
		Price:    price,
		Stock:    stock,
		Unit:     product.UnitPieces,
		IsActive: true,
	}
}

func newProductRepo(products ...product.Product) *mockProductRepo {
	byID := make(map[string]*product.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	return &mockProductRepo{byID: byID}
}

func validRequest(items ...ItemInput) PlaceOrderRequest {
	return PlaceOrderRequest{
		CustomerName:  "Ada Lovelace",
		Email:         "ada@example.com",
		PhoneNumber:   "+441234567890",
		Address:       "1 Analytical Way",
		PaymentMethod: MethodCard,
		Items:         items,
	}
}

// --- Tests ---

func TestPlaceOrder_MissingFields(t *testing.T) {
	svc := NewService(newProductRepo(), &mockOrderRepo{}, nil, zap.NewNop())

	req := validRequest(ItemInput{ProductID: "p1", Quantity: 1})
	req.Email = ""

	_, err := svc.PlaceOrder(context.Background(), req)

	var mfErr *MissingFieldError
	require.ErrorAs(t, err, &mfErr)
	assert.Equal(t, "email", mfErr.Field)
}

func TestPlaceOrder_EmptyItems(t *testing.T) {
	svc := NewService(newProductRepo(), &mockOrderRepo{}, nil, zap.NewNop())

	_, err := svc.PlaceOrder(context.Background(), validRequest())
	require.ErrorIs(t, err, ErrEmptyItems)
}

func TestPlaceOrder_UnknownPaymentMethod(t *testing.T) {
	svc := NewService(newProductRepo(), &mockOrderRepo{}, nil, zap.NewNop())

	req := validRequest(ItemInput{ProductID: "p1", Quantity: 1})
	req.PaymentMethod = "Barter"

	_, err := svc.PlaceOrder(context.Background(), req)
	require.ErrorIs(t, err, ErrInvalidMethod)
}

func TestPlaceOrder_InvalidQuantity(t *testing.T) {
	p1 := newTestProduct("p1", d("10.00"), 5)
	svc := NewService(newProductRepo(p1), &mockOrderRepo{}, nil, zap.NewNop())

	_, err := svc.PlaceOrder(context.Background(), validRequest(ItemInput{ProductID: "p1", Quantity: 0}))

	var iqErr *InvalidQuantityError
	require.ErrorAs(t, err, &iqErr)
	assert.Equal(t, "p1", iqErr.ProductID)
}

func TestPlaceOrder_ProductNotFound(t *testing.T) {
	svc := NewService(newProductRepo(), &mockOrderRepo{}, nil, zap.NewNop())

	_, err := svc.PlaceOrder(context.Background(), validRequest(ItemInput{ProductID: "missing", Quantity: 1}))

	var pnfErr *ProductNotFoundError
	require.ErrorAs(t, err, &pnfErr)
	assert.Equal(t, "missing", pnfErr.ProductID)
}

func TestPlaceOrder_InactiveProduct(t *testing.T) {
	p1 := newTestProduct("p1", d("10.00"), 5)
	p1.IsActive = false
	svc := NewService(newProductRepo(p1), &mockOrderRepo{}, nil, zap.NewNop())

	_, err := svc.PlaceOrder(context.Background(), validRequest(ItemInput{ProductID: "p1", Quantity: 1}))

	var piErr *ProductInactiveError
	require.ErrorAs(t, err, &piErr)
	assert.Equal(t, "p1", piErr.ProductID)
}

func TestPlaceOrder_TotalFromSnapshotPrices(t *testing.T) {
	p1 := newTestProduct("p1", d("10.00"), 100)
	p2 := newTestProduct("p2", d("2.50"), 100)
	repo := &mockOrderRepo{}
	svc := NewService(newProductRepo(p1, p2), repo, nil, zap.NewNop())

	o, err := svc.PlaceOrder(context.Background(), validRequest(
		ItemInput{ProductID: "p1", Quantity: 2},
		ItemInput{ProductID: "p2", Quantity: 3},
	))

	require.NoError(t, err)
	assert.True(t, d("27.50").Equal(o.Total), "total = %s", o.Total)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, PaymentPending, o.PaymentStatus)
	require.Len(t, o.Items, 2)
	assert.True(t, d("10.00").Equal(o.Items[0].Price))
	assert.Equal(t, o.ID, o.Items[0].OrderID)
	require.NotNil(t, repo.byID[o.ID])
}

func TestPlaceOrder_OversellAccepted(t *testing.T) {
	// Stock clamping happens in storage; the service accepts quantities
	// above available stock and sells through to zero.
	p1 := newTestProduct("p1", d("4.00"), 2)
	svc := NewService(newProductRepo(p1), &mockOrderRepo{}, nil, zap.NewNop())

	o, err := svc.PlaceOrder(context.Background(), validRequest(ItemInput{ProductID: "p1", Quantity: 10}))

	require.NoError(t, err)
	assert.True(t, d("40.00").Equal(o.Total))
}

func TestPlaceOrder_PublishesCreatedEvent(t *testing.T) {
	p1 := newTestProduct("p1", d("1.00"), 10)
	pub := &recordingPublisher{}
	svc := NewService(newProductRepo(p1), &mockOrderRepo{}, pub, zap.NewNop())

	o, err := svc.PlaceOrder(context.Background(), validRequest(ItemInput{ProductID: "p1", Quantity: 1}))

	require.NoError(t, err)
	require.Len(t, pub.events, 1)
	assert.Equal(t, EventCreated, pub.events[0].Type)
	assert.Equal(t, o.ID, pub.events[0].OrderID)
}

func TestPlaceOrder_CreateError(t *testing.T) {
	p1 := newTestProduct("p1", d("1.00"), 10)
	svc := NewService(newProductRepo(p1), &mockOrderRepo{createErr: errors.New("db write failed")}, nil, zap.NewNop())

	_, err := svc.PlaceOrder(context.Background(), validRequest(ItemInput{ProductID: "p1", Quantity: 1}))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "create order")
}

func TestUpdateStatus_ValidTransition(t *testing.T) {
	repo := &mockOrderRepo{byID: map[string]*Order{
		"o1": {ID: "o1", Status: StatusPending},
	}}
	pub := &recordingPublisher{}
	svc := NewService(newProductRepo(), repo, pub, zap.NewNop())

	o, err := svc.UpdateStatus(context.Background(), "o1", StatusProcessing)

	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, o.Status)
	require.Len(t, pub.events, 1)
	assert.Equal(t, EventStatusChanged, pub.events[0].Type)
}

func TestUpdateStatus_SameStatusNoOp(t *testing.T) {
	repo := &mockOrderRepo{byID: map[string]*Order{
		"o1": {ID: "o1", Status: StatusShipped},
	}}
	pub := &recordingPublisher{}
	svc := NewService(newProductRepo(), repo, pub, zap.NewNop())

	o, err := svc.UpdateStatus(context.Background(), "o1", StatusShipped)

	require.NoError(t, err)
	assert.Equal(t, StatusShipped, o.Status)
	assert.Empty(t, repo.statusSet)
	assert.Empty(t, pub.events)
}

func TestUpdateStatus_InvalidTransition(t *testing.T) {
	repo := &mockOrderRepo{byID: map[string]*Order{
		"o1": {ID: "o1", Status: StatusCompleted},
	}}
	svc := NewService(newProductRepo(), repo, nil, zap.NewNop())

	_, err := svc.UpdateStatus(context.Background(), "o1", StatusPending)

	var itErr *InvalidTransitionError
	require.ErrorAs(t, err, &itErr)
	assert.Equal(t, StatusCompleted, itErr.From)
	assert.Equal(t, StatusPending, itErr.To)
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	svc := NewService(newProductRepo(), &mockOrderRepo{}, nil, zap.NewNop())

	_, err := svc.UpdateStatus(context.Background(), "o1", "Teleported")

	var itErr *InvalidTransitionError
	require.ErrorAs(t, err, &itErr)
}

func TestUpdateStatus_CancelGoesThroughCancelOrder(t *testing.T) {
	repo := &mockOrderRepo{byID: map[string]*Order{
		"o1": {ID: "o1", Status: StatusPending},
	}}
	pub := &recordingPublisher{}
	svc := NewService(newProductRepo(), repo, pub, zap.NewNop())

	o, err := svc.UpdateStatus(context.Background(), "o1", StatusCancelled)

	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, []string{"o1"}, repo.cancelled)
	require.Len(t, pub.events, 1)
	assert.Equal(t, EventCancelled, pub.events[0].Type)
}

func TestCancelOrder_IdempotentEvent(t *testing.T) {
	repo := &mockOrderRepo{byID: map[string]*Order{
		"o1": {ID: "o1", Status: StatusPending},
	}}
	pub := &recordingPublisher{}
	svc := NewService(newProductRepo(), repo, pub, zap.NewNop())

	won, err := svc.CancelOrder(context.Background(), "o1")
	require.NoError(t, err)
	assert.True(t, won)

	won, err = svc.CancelOrder(context.Background(), "o1")
	require.NoError(t, err)
	assert.False(t, won)

	// Only the winning cancellation publishes.
	require.Len(t, pub.events, 1)
	assert.Equal(t, EventCancelled, pub.events[0].Type)
}

func TestUpdateLineItem_RejectsNonPositiveQuantity(t *testing.T) {
	svc := NewService(newProductRepo(), &mockOrderRepo{}, nil, zap.NewNop())

	_, err := svc.UpdateLineItem(context.Background(), "o1", "i1", 0)

	var iqErr *InvalidQuantityError
	require.ErrorAs(t, err, &iqErr)
}
