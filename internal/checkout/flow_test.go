package checkout

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/railmeal/internal/apperr"
	"github.com/xenking/railmeal/internal/auth"
	"github.com/xenking/railmeal/internal/domain/cart"
	"github.com/xenking/railmeal/internal/domain/order"
	"github.com/xenking/railmeal/internal/domain/payment"
	"github.com/xenking/railmeal/internal/domain/wallet"
	"github.com/xenking/railmeal/internal/ledger"
)

// --- Mock implementations ---

type mockIntents struct {
	amounts []decimal.Decimal
	err     error
}

func (m *mockIntents) Create(_ context.Context, amount decimal.Decimal) (*payment.Intent, error) {
	m.amounts = append(m.amounts, amount)
	if m.err != nil {
		return nil, m.err
	}
	minor, err := payment.ToMinorUnits(amount)
	if err != nil {
		return nil, err
	}
	return &payment.Intent{GatewayOrderID: "order_1", Amount: minor, Currency: "INR", Receipt: "receipt_1"}, nil
}

type mockVerifier struct {
	err error
}

func (m *mockVerifier) VerifySignature(payment.Confirmation) error { return m.err }

type mockOrders struct {
	err   error
	calls int
	reqs  []order.CreateRequest
}

func (m *mockOrders) CreateOrder(_ context.Context, req order.CreateRequest) (*order.Order, error) {
	m.calls++
	m.reqs = append(m.reqs, req)
	if m.err != nil {
		return nil, m.err
	}
	return &order.Order{ID: 42, Amount: decimal.NewFromInt(262)}, nil
}

// gatedOrders blocks CreateOrder until release is closed.
type gatedOrders struct {
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (m *gatedOrders) CreateOrder(_ context.Context, _ order.CreateRequest) (*order.Order, error) {
	if m.calls.Add(1) == 1 {
		close(m.entered)
	}
	<-m.release
	return &order.Order{ID: 42}, nil
}

type mockWallet struct {
	balance decimal.Decimal
	err     error
	debited []decimal.Decimal
	descs   []string
}

func (m *mockWallet) CanAfford(amount decimal.Decimal) bool {
	return !m.balance.LessThan(amount)
}

func (m *mockWallet) Deduct(_ context.Context, amount decimal.Decimal, desc string, _ int64) error {
	if m.err != nil {
		return m.err
	}
	m.debited = append(m.debited, amount)
	m.descs = append(m.descs, desc)
	m.balance = m.balance.Sub(amount)
	return nil
}

type recordingNotifier struct {
	entries []ledger.Entry
}

func (r *recordingNotifier) Notify(_ context.Context, e ledger.Entry) error {
	r.entries = append(r.entries, e)
	return nil
}

// --- Helpers ---

type fixture struct {
	flow     *Flow
	intents  *mockIntents
	verifier *mockVerifier
	ledger   *ledger.Memory
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fx := &fixture{
		intents:  &mockIntents{},
		verifier: &mockVerifier{},
		ledger:   ledger.NewMemory(),
		notifier: &recordingNotifier{},
	}
	flow, err := NewFlow(Options{
		Intents:  fx.intents,
		Verifier: fx.verifier,
		Ledger:   fx.ledger,
		Notifier: fx.notifier,
		TaxRate:  DefaultTaxRate,
		Meter:    metricnoop.NewMeterProvider().Meter("test"),
		Tracer:   tracenoop.NewTracerProvider().Tracer("test"),
	})
	require.NoError(t, err)
	flow.newKey = func() string { return "key-1" }
	fx.flow = flow
	return fx
}

func ptr[T any](v T) *T { return &v }

// readyCart holds item 1 ×2 @100 and item 2 ×1 @50 with full passenger info.
func readyCart() *cart.Store {
	c := cart.NewStore()
	veg := cart.Item{ID: 1, Name: "Veg Thali", Price: decimal.NewFromInt(100), RestaurantID: 5}
	c.AddItem(veg)
	c.AddItem(veg)
	c.AddItem(cart.Item{ID: 2, Name: "Lassi", Price: decimal.NewFromInt(50), RestaurantID: 5})
	c.SetOrderInfo(cart.OrderInfoPatch{
		TrainID:     ptr(int64(11)),
		TrainName:   ptr("Rajdhani"),
		PNRNumber:   ptr("1234567890"),
		SeatNumber:  ptr("23"),
		CoachNumber: ptr("B2"),
	})
	return c
}

func confirmation() payment.Confirmation {
	return payment.Confirmation{GatewayOrderID: "order_1", PaymentID: "pay_1", Signature: "sig"}
}

// --- Tests ---

func TestQuote(t *testing.T) {
	fx := newFixture(t)

	q, err := fx.flow.Quote(readyCart())
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(250).Equal(q.Subtotal))
	assert.True(t, decimal.RequireFromString("12.5").Equal(q.Tax))
	assert.True(t, decimal.RequireFromString("262.5").Equal(q.Payable))

	_, err = fx.flow.Quote(cart.NewStore())
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestQuote_RoundsTax(t *testing.T) {
	q := quote(decimal.RequireFromString("33.33"), DefaultTaxRate)
	assert.Equal(t, "1.67", q.Tax.StringFixed(2))
	assert.Equal(t, "35.00", q.Payable.StringFixed(2))
}

func TestBegin(t *testing.T) {
	fx := newFixture(t)
	c := readyCart()

	a, err := fx.flow.Begin(context.Background(), c)
	require.NoError(t, err)

	assert.Equal(t, "key-1", a.Key)
	assert.Equal(t, int64(26250), a.Intent.Amount)
	require.Len(t, fx.intents.amounts, 1)
	assert.True(t, decimal.RequireFromString("262.5").Equal(fx.intents.amounts[0]))
	assert.Len(t, a.Lines, 2)
	assert.Equal(t, "B2", a.Info.CoachNumber)
	assert.Len(t, c.Lines(), 2)
}

func TestBegin_Validation(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.flow.Begin(context.Background(), cart.NewStore())
	require.ErrorIs(t, err, ErrEmptyCart)

	c := cart.NewStore()
	c.AddItem(cart.Item{ID: 1, Price: decimal.NewFromInt(10)})
	c.SetOrderInfo(cart.OrderInfoPatch{PNRNumber: ptr("123")})
	_, err = fx.flow.Begin(context.Background(), c)
	require.ErrorIs(t, err, ErrIncompleteOrderInfo)

	assert.Empty(t, fx.intents.amounts)
}

func TestBegin_IntentFailureKeepsCart(t *testing.T) {
	fx := newFixture(t)
	fx.intents.err = apperr.RemoteMessage("gateway down")
	c := readyCart()
	before := c.Snapshot()

	_, err := fx.flow.Begin(context.Background(), c)
	require.ErrorIs(t, err, apperr.ErrRemoteUnavailable)

	after := c.Snapshot()
	assert.Equal(t, before.Lines, after.Lines)
	assert.Equal(t, before.Info, after.Info)
}

func TestComplete(t *testing.T) {
	fx := newFixture(t)
	c := readyCart()
	orders := &mockOrders{}

	a, err := fx.flow.Begin(context.Background(), c)
	require.NoError(t, err)

	o, err := fx.flow.Complete(context.Background(), c, orders, a, confirmation())
	require.NoError(t, err)
	assert.Equal(t, int64(42), o.ID)

	require.Len(t, orders.reqs, 1)
	req := orders.reqs[0]
	assert.Equal(t, "pay_1", req.PaymentReference)
	assert.Equal(t, "key-1", req.IdempotencyKey)
	assert.Equal(t, int64(11), req.TrainID)
	assert.Equal(t, int64(5), req.RestaurantID)
	assert.Equal(t, []order.CreateItem{{FoodItemID: 1, Quantity: 2}, {FoodItemID: 2, Quantity: 1}}, req.Items)

	assert.Empty(t, c.Lines())
	assert.Equal(t, cart.OrderInfo{}, c.Info())
	assert.Empty(t, fx.notifier.entries)
}

func TestComplete_InvalidSignatureKeepsCart(t *testing.T) {
	fx := newFixture(t)
	fx.verifier.err = payment.ErrInvalidSignature
	c := readyCart()
	orders := &mockOrders{}

	a, err := fx.flow.Begin(context.Background(), c)
	require.NoError(t, err)

	_, err = fx.flow.Complete(context.Background(), c, orders, a, confirmation())
	require.ErrorIs(t, err, payment.ErrInvalidSignature)
	assert.Zero(t, orders.calls)
	assert.Len(t, c.Lines(), 2)
}

func TestComplete_MismatchedGatewayOrder(t *testing.T) {
	fx := newFixture(t)
	c := readyCart()
	orders := &mockOrders{}

	a, err := fx.flow.Begin(context.Background(), c)
	require.NoError(t, err)

	conf := confirmation()
	conf.GatewayOrderID = "order_other"
	_, err = fx.flow.Complete(context.Background(), c, orders, a, conf)
	require.ErrorIs(t, err, payment.ErrInvalidSignature)
	assert.Zero(t, orders.calls)
}

func TestComplete_OrderFailureRecordsLedger(t *testing.T) {
	fx := newFixture(t)
	c := readyCart()
	orders := &mockOrders{err: apperr.RemoteMessage("backend down")}
	ctx := auth.WithIdentity(context.Background(), auth.Identity{UserID: 7}, "tok")

	a, err := fx.flow.Begin(ctx, c)
	require.NoError(t, err)
	a.SessionID = "sess-1"

	_, err = fx.flow.Complete(ctx, c, orders, a, confirmation())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReconciliationPending)
	assert.ErrorIs(t, err, apperr.ErrRemoteUnavailable)

	var recErr *ReconciliationError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, "key-1", recErr.Key)

	assert.Len(t, c.Lines(), 2)

	e, err := fx.ledger.Get(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, e.Status)
	assert.Equal(t, int64(7), e.UserID)
	assert.Equal(t, "sess-1", e.SessionID)
	assert.Equal(t, "pay_1", e.PaymentID)
	assert.True(t, decimal.RequireFromString("262.5").Equal(e.Amount))
	require.Len(t, fx.notifier.entries, 1)

	// Retrying with the same attempt reuses the key and settles the entry.
	orders.err = nil
	o, err := fx.flow.Complete(ctx, c, orders, a, confirmation())
	require.NoError(t, err)
	assert.Equal(t, "key-1", orders.reqs[1].IdempotencyKey)

	e, err = fx.ledger.Get(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusResolved, e.Status)
	assert.Equal(t, o.ID, e.OrderID)
	assert.Empty(t, c.Lines())
}

func TestComplete_ConcurrentConfirmationsPlaceOneOrder(t *testing.T) {
	fx := newFixture(t)
	c := readyCart()
	ctx := context.Background()
	orders := &gatedOrders{entered: make(chan struct{}), release: make(chan struct{})}

	a, err := fx.flow.Begin(ctx, c)
	require.NoError(t, err)

	type result struct {
		o   *order.Order
		err error
	}
	first := make(chan result, 1)
	go func() {
		o, err := fx.flow.Complete(ctx, c, orders, a, confirmation())
		first <- result{o, err}
	}()
	<-orders.entered

	_, err = fx.flow.Complete(ctx, c, orders, a, confirmation())
	require.ErrorIs(t, err, ErrAttemptInProgress)

	close(orders.release)
	res := <-first
	require.NoError(t, res.err)
	assert.Equal(t, int64(42), res.o.ID)

	// A confirmation after success returns the placed order.
	again, err := fx.flow.Complete(ctx, c, orders, a, confirmation())
	require.NoError(t, err)
	assert.Same(t, res.o, again)
	assert.Equal(t, int32(1), orders.calls.Load())
}

func TestPayWithWallet(t *testing.T) {
	fx := newFixture(t)
	c := readyCart()
	orders := &mockOrders{}
	w := &mockWallet{balance: decimal.NewFromInt(300)}

	o, err := fx.flow.PayWithWallet(context.Background(), c, orders, w)
	require.NoError(t, err)
	assert.Equal(t, int64(42), o.ID)

	require.Len(t, w.debited, 1)
	assert.True(t, decimal.RequireFromString("262.5").Equal(w.debited[0]))
	assert.Equal(t, "Payment for Order #42", w.descs[0])
	assert.Empty(t, c.Lines())
}

func TestPayWithWallet_InsufficientBalance(t *testing.T) {
	fx := newFixture(t)
	c := readyCart()
	orders := &mockOrders{}
	w := &mockWallet{balance: decimal.NewFromInt(262)}

	_, err := fx.flow.PayWithWallet(context.Background(), c, orders, w)
	require.ErrorIs(t, err, wallet.ErrInsufficientBalance)
	assert.Zero(t, orders.calls)
	assert.Len(t, c.Lines(), 2)
}

func TestPayWithWallet_DeductFailureRecordsLedger(t *testing.T) {
	fx := newFixture(t)
	c := readyCart()
	w := &mockWallet{balance: decimal.NewFromInt(300), err: errors.New("declined")}
	ctx := auth.WithIdentity(context.Background(), auth.Identity{UserID: 7}, "tok")

	_, err := fx.flow.PayWithWallet(ctx, c, &mockOrders{}, w)
	require.ErrorIs(t, err, ErrReconciliationPending)

	var recErr *ReconciliationError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, "key-1", recErr.Key)
	assert.Contains(t, recErr.Error(), "pay order 42")
	assert.Len(t, c.Lines(), 2)

	e, err := fx.ledger.Get(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, e.Status)
	assert.Equal(t, "wallet", e.PaymentID)
	assert.Equal(t, "INR", e.Currency)
	assert.Equal(t, int64(7), e.UserID)
	assert.True(t, decimal.RequireFromString("262.5").Equal(e.Amount))
	require.Len(t, fx.notifier.entries, 1)
}

func TestPlaceCashOnDelivery(t *testing.T) {
	fx := newFixture(t)
	c := readyCart()
	orders := &mockOrders{}

	o, err := fx.flow.PlaceCashOnDelivery(context.Background(), c, orders)
	require.NoError(t, err)
	assert.Equal(t, int64(42), o.ID)
	assert.Equal(t, "key-1", orders.reqs[0].IdempotencyKey)
	assert.Empty(t, c.Lines())
}

func TestCreateRequest_DefaultsTrain(t *testing.T) {
	lines := []cart.Line{{ID: 1, Quantity: 1, RestaurantID: 5}}

	req := createRequest(lines, cart.OrderInfo{PNRNumber: "1", SeatNumber: "2", CoachNumber: "B2"})
	assert.Equal(t, int64(1), req.TrainID)

	req = createRequest(lines, cart.OrderInfo{TrainID: ptr(int64(12951))})
	assert.Equal(t, int64(12951), req.TrainID)
}

func TestPlaceCashOnDelivery_FailureKeepsCart(t *testing.T) {
	fx := newFixture(t)
	c := readyCart()

	_, err := fx.flow.PlaceCashOnDelivery(context.Background(), c, &mockOrders{err: apperr.ErrUnauthenticated})
	require.ErrorIs(t, err, apperr.ErrUnauthenticated)
	assert.Len(t, c.Lines(), 2)
}

func TestNewFlow_Validation(t *testing.T) {
	_, err := NewFlow(Options{})
	require.Error(t, err)

	_, err = NewFlow(Options{
		Intents:  &mockIntents{},
		Verifier: &mockVerifier{},
		Ledger:   ledger.NewMemory(),
		TaxRate:  decimal.NewFromInt(-1),
		Meter:    metricnoop.NewMeterProvider().Meter("test"),
		Tracer:   tracenoop.NewTracerProvider().Tracer("test"),
	})
	require.Error(t, err)
}
