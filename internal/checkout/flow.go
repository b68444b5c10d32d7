package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/railmeal/internal/auth"
	"github.com/xenking/railmeal/internal/domain/order"
	"github.com/xenking/railmeal/internal/domain/payment"
	"github.com/xenking/railmeal/internal/ledger"
)

// IntentCreator requests payment-gateway orders.
type IntentCreator interface {
	Create(ctx context.Context, amount decimal.Decimal) (*payment.Intent, error)
}

// Options configures a Flow.
type Options struct {
	Intents  IntentCreator
	Verifier payment.Verifier
	Ledger   ledger.Ledger
	Notifier ledger.Notifier
	TaxRate  decimal.Decimal
	// Currency labels wallet ledger entries. Defaults to INR.
	Currency string
	Meter    metric.Meter
	Tracer   trace.Tracer
}

// Flow runs checkouts. It holds no per-session state; carts and order stores
// are passed in per call.
type Flow struct {
	intents  IntentCreator
	verifier payment.Verifier
	ledger   ledger.Ledger
	notifier ledger.Notifier
	taxRate  decimal.Decimal
	currency string
	tracer   trace.Tracer
	now      func() time.Time
	newKey   func() string

	begun      metric.Int64Counter
	completed  metric.Int64Counter
	unresolved metric.Int64Counter
}

// NewFlow creates a Flow. Meter and Tracer are required.
func NewFlow(opts Options) (*Flow, error) {
	if opts.Intents == nil || opts.Verifier == nil || opts.Ledger == nil {
		return nil, errors.New("checkout: intents, verifier and ledger are required")
	}
	if opts.Notifier == nil {
		opts.Notifier = ledger.NopNotifier{}
	}
	if opts.Currency == "" {
		opts.Currency = "INR"
	}
	if opts.TaxRate.IsNegative() {
		return nil, errors.New("checkout: negative tax rate")
	}

	f := &Flow{
		intents:  opts.Intents,
		verifier: opts.Verifier,
		ledger:   opts.Ledger,
		notifier: opts.Notifier,
		taxRate:  opts.TaxRate,
		currency: opts.Currency,
		tracer:   opts.Tracer,
		now:      time.Now,
		newKey:   uuid.NewString,
	}

	var err error
	if f.begun, err = opts.Meter.Int64Counter("railmeal.checkout.begun",
		metric.WithDescription("Checkout attempts that obtained a payment intent"),
	); err != nil {
		return nil, errors.Wrap(err, "begun counter")
	}
	if f.completed, err = opts.Meter.Int64Counter("railmeal.checkout.completed",
		metric.WithDescription("Orders placed through checkout"),
	); err != nil {
		return nil, errors.Wrap(err, "completed counter")
	}
	if f.unresolved, err = opts.Meter.Int64Counter("railmeal.checkout.reconciliation",
		metric.WithDescription("Paid checkouts whose order creation failed"),
	); err != nil {
		return nil, errors.Wrap(err, "reconciliation counter")
	}
	return f, nil
}

// Quote prices the cart without side effects.
func (f *Flow) Quote(c CartStore) (Quote, error) {
	snap := c.Snapshot()
	if snap.Empty() {
		return Quote{}, ErrEmptyCart
	}
	return quote(snap.Total, f.taxRate), nil
}

// Begin prices the cart and requests a payment intent for the payable
// amount. The cart is never modified.
func (f *Flow) Begin(ctx context.Context, c CartStore) (*Attempt, error) {
	ctx, span := f.tracer.Start(ctx, "checkout.Begin")
	defer span.End()

	snap := c.Snapshot()
	if err := validate(snap); err != nil {
		return nil, err
	}
	q := quote(snap.Total, f.taxRate)

	intent, err := f.intents.Create(ctx, q.Payable)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create intent")
		return nil, errors.Wrap(err, "create payment intent")
	}

	a := &Attempt{
		Key:       f.newKey(),
		Intent:    intent,
		Lines:     snap.Lines,
		Info:      snap.Info,
		Quote:     q,
		CreatedAt: f.now(),
	}
	span.SetAttributes(
		attribute.String("checkout.key", a.Key),
		attribute.String("payment.gateway_order_id", intent.GatewayOrderID),
	)
	f.begun.Add(ctx, 1)
	return a, nil
}

// Complete verifies the gateway confirmation and places the order frozen in
// the attempt. The cart is cleared only after the order exists. When the
// order cannot be created the payment is recorded in the ledger and a
// *ReconciliationError is returned. Only one confirmation of an attempt runs
// at a time; once an order is placed, later confirmations return it.
func (f *Flow) Complete(ctx context.Context, c CartStore, orders OrderCreator, a *Attempt, conf payment.Confirmation) (*order.Order, error) {
	ctx, span := f.tracer.Start(ctx, "checkout.Complete", trace.WithAttributes(
		attribute.String("checkout.key", a.Key),
	))
	defer span.End()

	if conf.GatewayOrderID != a.Intent.GatewayOrderID {
		return nil, payment.ErrInvalidSignature
	}
	if err := f.verifier.VerifySignature(conf); err != nil {
		return nil, err
	}

	placed, err := a.claim()
	if err != nil {
		return nil, err
	}
	if placed != nil {
		return placed, nil
	}
	var created *order.Order
	defer func() { a.release(created) }()

	req := createRequest(a.Lines, a.Info)
	req.PaymentReference = conf.PaymentID
	req.IdempotencyKey = a.Key

	created, err = orders.CreateOrder(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create order")
		return nil, f.reconcile(ctx, a, conf, req, err)
	}

	if err := f.ledger.Resolve(ctx, a.Key, created.ID); err != nil && !errors.Is(err, ledger.ErrEntryNotFound) {
		zctx.From(ctx).Warn("Failed to resolve ledger entry",
			zap.String("key", a.Key),
			zap.Error(err),
		)
	}

	c.Clear()
	f.completed.Add(ctx, 1, metric.WithAttributes(attribute.String("method", "gateway")))
	return created, nil
}

func (f *Flow) reconcile(ctx context.Context, a *Attempt, conf payment.Confirmation, req order.CreateRequest, cause error) error {
	lg := zctx.From(ctx).With(
		zap.String("key", a.Key),
		zap.String("gateway_order_id", conf.GatewayOrderID),
		zap.String("payment_id", conf.PaymentID),
	)

	entry := ledger.Entry{
		Key:            a.Key,
		SessionID:      a.SessionID,
		GatewayOrderID: conf.GatewayOrderID,
		PaymentID:      conf.PaymentID,
		Amount:         a.Quote.Payable,
		Currency:       a.Intent.Currency,
		Request:        req,
		Reason:         cause.Error(),
	}
	if id, ok := auth.IdentityFromContext(ctx); ok {
		entry.UserID = id.UserID
		entry.Request.UserID = id.UserID
	}

	recorded, err := f.ledger.Record(ctx, entry)
	if err != nil {
		lg.Error("Failed to record reconciliation entry", zap.Error(err))
		recorded = entry
	}
	if err := f.notifier.Notify(ctx, recorded); err != nil {
		lg.Warn("Failed to publish reconciliation notice", zap.Error(err))
	}

	f.unresolved.Add(ctx, 1)
	lg.Error("Payment captured but order creation failed",
		zap.Int("attempts", recorded.Attempts),
		zap.Error(cause),
	)
	return &ReconciliationError{Key: a.Key, Cause: cause}
}
