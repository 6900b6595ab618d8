package payment

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/plutoshop/shop-api/internal/domain/order"
)

// --- Mock implementations ---

type mockOrderRepo struct {
	byID     map[string]*order.Order
	byIntent map[string]*order.Order

	paidCalls   []string
	failedCalls []string
	intentSet   map[string]string
	paidErr     error // returned by the next MarkPaid, then cleared
}

func (m *mockOrderRepo) Create(_ context.Context, _ *order.Order) error { return nil }

func (m *mockOrderRepo) Get(_ context.Context, id string) (*order.Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) List(_ context.Context) ([]order.Order, error) { return nil, nil }

func (m *mockOrderRepo) FindByPaymentIntent(_ context.Context, ref string) (*order.Order, error) {
	o, ok := m.byIntent[ref]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) UpdateItemQuantity(_ context.Context, _, _ string, _ int) (*order.Order, error) {
	return nil, nil
}

func (m *mockOrderRepo) RemoveItem(_ context.Context, _, _ string) (*order.Order, error) {
	return nil, nil
}

func (m *mockOrderRepo) SetStatus(_ context.Context, _ string, _ order.Status) error { return nil }
func (m *mockOrderRepo) Cancel(_ context.Context, _ string) (bool, error)            { return false, nil }

func (m *mockOrderRepo) SetPaymentIntent(_ context.Context, orderID, ref string) error {
	if m.intentSet == nil {
		m.intentSet = make(map[string]string)
	}
	m.intentSet[orderID] = ref
	return nil
}

func (m *mockOrderRepo) MarkPaid(_ context.Context, orderID string) (bool, error) {
	m.paidCalls = append(m.paidCalls, orderID)
	if err := m.paidErr; err != nil {
		m.paidErr = nil
		return false, err
	}
	o, ok := m.byID[orderID]
	if !ok {
		return false, order.ErrNotFound
	}
	if o.PaymentStatus == order.PaymentPaid {
		return false, nil
	}
	o.PaymentStatus = order.PaymentPaid
	return true, nil
}

func (m *mockOrderRepo) MarkPaymentFailed(_ context.Context, orderID string) (bool, error) {
	m.failedCalls = append(m.failedCalls, orderID)
	o, ok := m.byID[orderID]
	if !ok {
		return false, order.ErrNotFound
	}
	if o.PaymentStatus == order.PaymentPaid {
		return false, nil
	}
	o.PaymentStatus = order.PaymentFailed
	return true, nil
}

func (m *mockOrderRepo) FindStale(_ context.Context, _ time.Time, _ int) ([]order.Order, error) {
	return nil, nil
}

type mockProvider struct {
	sessions []CheckoutParams
	session  *CheckoutSession
	err      error
}

func (m *mockProvider) CreateCheckoutSession(_ context.Context, p CheckoutParams) (*CheckoutSession, error) {
	m.sessions = append(m.sessions, p)
	if m.err != nil {
		return nil, m.err
	}
	return m.session, nil
}

func (m *mockProvider) CancelPaymentIntent(_ context.Context, _ string) error { return nil }

type memDeduper struct {
	seen map[string]bool
}

func (d *memDeduper) SeenEvent(_ context.Context, id string) bool {
	return d.seen[id]
}

func (d *memDeduper) MarkEventSeen(_ context.Context, id string) {
	if d.seen == nil {
		d.seen = make(map[string]bool)
	}
	d.seen[id] = true
}

type recordingPublisher struct {
	events []order.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev order.Event) {
	p.events = append(p.events, ev)
}

func newRepo(orders ...*order.Order) *mockOrderRepo {
	m := &mockOrderRepo{
		byID:     make(map[string]*order.Order),
		byIntent: make(map[string]*order.Order),
	}
	for _, o := range orders {
		m.byID[o.ID] = o
		if o.PaymentIntent != "" {
			m.byIntent[o.PaymentIntent] = o
		}
	}
	return m
}

// --- Tests ---

func TestCreateCheckoutSession(t *testing.T) {
	repo := newRepo(&order.Order{
		ID:            "o1",
		Total:         decimal.RequireFromString("12.34"),
		PaymentStatus: order.PaymentPending,
	})
	provider := &mockProvider{session: &CheckoutSession{
		URL:             "https://checkout.example/cs_1",
		PaymentIntentID: "pi_1",
	}}
	svc := NewService(repo, provider, nil, nil, Config{Currency: "gbp"}, zap.NewNop())

	url, err := svc.CreateCheckoutSession(context.Background(), "o1")

	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example/cs_1", url)
	require.Len(t, provider.sessions, 1)
	assert.Equal(t, int64(1234), provider.sessions[0].Amount, "total converts to minor units")
	assert.Equal(t, "gbp", provider.sessions[0].Currency)
	assert.Equal(t, "pi_1", repo.intentSet["o1"])
}

func TestCreateCheckoutSession_AlreadyPaid(t *testing.T) {
	repo := newRepo(&order.Order{
		ID:            "o1",
		Total:         decimal.RequireFromString("5.00"),
		PaymentStatus: order.PaymentPaid,
	})
	provider := &mockProvider{}
	svc := NewService(repo, provider, nil, nil, Config{}, zap.NewNop())

	_, err := svc.CreateCheckoutSession(context.Background(), "o1")

	require.ErrorIs(t, err, ErrAlreadyPaid)
	assert.Empty(t, provider.sessions, "no provider call for a settled order")
}

func TestCreateCheckoutSession_OrderNotFound(t *testing.T) {
	svc := NewService(newRepo(), &mockProvider{}, nil, nil, Config{}, zap.NewNop())

	_, err := svc.CreateCheckoutSession(context.Background(), "missing")
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestCreateCheckoutSession_ProviderError(t *testing.T) {
	repo := newRepo(&order.Order{ID: "o1", Total: decimal.RequireFromString("1.00")})
	provider := &mockProvider{err: &ProviderError{Op: "create checkout session", Err: errors.New("boom")}}
	svc := NewService(repo, provider, nil, nil, Config{}, zap.NewNop())

	_, err := svc.CreateCheckoutSession(context.Background(), "o1")

	var pErr *ProviderError
	require.ErrorAs(t, err, &pErr)
	assert.Empty(t, repo.intentSet)
}

func TestHandleEvent_PaidByMetadata(t *testing.T) {
	repo := newRepo(&order.Order{ID: "o1", PaymentStatus: order.PaymentPending})
	pub := &recordingPublisher{}
	svc := NewService(repo, &mockProvider{}, pub, nil, Config{}, zap.NewNop())

	orderID, err := svc.HandleEvent(context.Background(), &Event{
		ID:      "evt_1",
		Type:    EventCheckoutCompleted,
		OrderID: "o1",
	})

	require.NoError(t, err)
	assert.Equal(t, "o1", orderID)
	assert.Equal(t, order.PaymentPaid, repo.byID["o1"].PaymentStatus)
	require.Len(t, pub.events, 1)
	assert.Equal(t, order.EventPaid, pub.events[0].Type)
}

func TestHandleEvent_PaidByIntentFallback(t *testing.T) {
	repo := newRepo(&order.Order{ID: "o1", PaymentIntent: "pi_1", PaymentStatus: order.PaymentPending})
	svc := NewService(repo, &mockProvider{}, nil, nil, Config{}, zap.NewNop())

	orderID, err := svc.HandleEvent(context.Background(), &Event{
		ID:       "evt_2",
		Type:     EventIntentSucceeded,
		IntentID: "pi_1",
	})

	require.NoError(t, err)
	assert.Equal(t, "o1", orderID, "the resolved id surfaces even without metadata")
	assert.Equal(t, order.PaymentPaid, repo.byID["o1"].PaymentStatus)
}

func TestHandleEvent_DuplicateDeliveryIsNoOp(t *testing.T) {
	repo := newRepo(&order.Order{ID: "o1", PaymentStatus: order.PaymentPending})
	pub := &recordingPublisher{}
	svc := NewService(repo, &mockProvider{}, pub, &memDeduper{}, Config{}, zap.NewNop())

	ev := &Event{ID: "evt_3", Type: EventCheckoutCompleted, OrderID: "o1"}
	_, err := svc.HandleEvent(context.Background(), ev)
	require.NoError(t, err)
	_, err = svc.HandleEvent(context.Background(), ev)
	require.NoError(t, err)

	assert.Len(t, repo.paidCalls, 1, "second delivery short-circuits on dedup")
	assert.Len(t, pub.events, 1)
}

func TestHandleEvent_FailedDeliveryNotRecordedAsSeen(t *testing.T) {
	repo := newRepo(&order.Order{ID: "o1", PaymentStatus: order.PaymentPending})
	repo.paidErr = errors.New("connection reset")
	dedup := &memDeduper{}
	svc := NewService(repo, &mockProvider{}, nil, dedup, Config{}, zap.NewNop())

	ev := &Event{ID: "evt_retry", Type: EventCheckoutCompleted, OrderID: "o1"}
	_, err := svc.HandleEvent(context.Background(), ev)
	require.Error(t, err, "transient storage failure propagates")
	assert.False(t, dedup.seen["evt_retry"], "a failed delivery must stay unrecorded")

	// The provider redelivers after the error response; the retry must be
	// applied, not skipped as a duplicate.
	orderID, err := svc.HandleEvent(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, "o1", orderID)
	assert.Equal(t, order.PaymentPaid, repo.byID["o1"].PaymentStatus)
	assert.Len(t, repo.paidCalls, 2)
	assert.True(t, dedup.seen["evt_retry"])
}

func TestHandleEvent_RedeliveryWithoutDeduperStillIdempotent(t *testing.T) {
	repo := newRepo(&order.Order{ID: "o1", PaymentStatus: order.PaymentPending})
	pub := &recordingPublisher{}
	svc := NewService(repo, &mockProvider{}, pub, nil, Config{}, zap.NewNop())

	ev := &Event{ID: "evt_4", Type: EventCheckoutCompleted, OrderID: "o1"}
	_, err := svc.HandleEvent(context.Background(), ev)
	require.NoError(t, err)
	_, err = svc.HandleEvent(context.Background(), ev)
	require.NoError(t, err)

	assert.Len(t, repo.paidCalls, 2)
	assert.Len(t, pub.events, 1, "conditional transition publishes once")
}

func TestHandleEvent_FailedDoesNotOverridePaid(t *testing.T) {
	repo := newRepo(&order.Order{ID: "o1", PaymentStatus: order.PaymentPaid})
	pub := &recordingPublisher{}
	svc := NewService(repo, &mockProvider{}, pub, nil, Config{}, zap.NewNop())

	_, err := svc.HandleEvent(context.Background(), &Event{
		ID:      "evt_5",
		Type:    EventIntentFailed,
		OrderID: "o1",
	})

	require.NoError(t, err)
	assert.Equal(t, order.PaymentPaid, repo.byID["o1"].PaymentStatus)
	assert.Empty(t, pub.events)
}

func TestHandleEvent_PaymentFailed(t *testing.T) {
	repo := newRepo(&order.Order{ID: "o1", PaymentStatus: order.PaymentPending})
	svc := NewService(repo, &mockProvider{}, nil, nil, Config{}, zap.NewNop())

	_, err := svc.HandleEvent(context.Background(), &Event{
		ID:      "evt_6",
		Type:    EventIntentFailed,
		OrderID: "o1",
	})

	require.NoError(t, err)
	assert.Equal(t, order.PaymentFailed, repo.byID["o1"].PaymentStatus)
}

func TestHandleEvent_UnresolvedOrderAccepted(t *testing.T) {
	repo := newRepo()
	svc := NewService(repo, &mockProvider{}, nil, nil, Config{}, zap.NewNop())

	orderID, err := svc.HandleEvent(context.Background(), &Event{
		ID:       "evt_7",
		Type:     EventCheckoutCompleted,
		OrderID:  "ghost",
		IntentID: "pi_ghost",
	})

	require.NoError(t, err, "unknown orders are accepted so the provider stops retrying")
	assert.Empty(t, orderID)
	assert.Empty(t, repo.paidCalls)
}

func TestHandleEvent_IgnoredType(t *testing.T) {
	repo := newRepo(&order.Order{ID: "o1"})
	svc := NewService(repo, &mockProvider{}, nil, nil, Config{}, zap.NewNop())

	orderID, err := svc.HandleEvent(context.Background(), &Event{
		ID:      "evt_8",
		Type:    "customer.created",
		OrderID: "o1",
	})

	require.NoError(t, err)
	assert.Empty(t, orderID)
	assert.Empty(t, repo.paidCalls)
	assert.Empty(t, repo.failedCalls)
}
