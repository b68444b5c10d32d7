package checkout

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/railmeal/internal/auth"
	"github.com/xenking/railmeal/internal/domain/order"
	"github.com/xenking/railmeal/internal/domain/wallet"
	"github.com/xenking/railmeal/internal/ledger"
)

// walletPaymentID marks ledger entries for wallet-paid orders.
const walletPaymentID = "wallet"

// PayWithWallet places the order and pays for it from the wallet. The
// balance is checked before anything is sent. When the order is placed but
// the debit fails, the unpaid order is recorded in the ledger and a
// *ReconciliationError is returned.
func (f *Flow) PayWithWallet(ctx context.Context, c CartStore, orders OrderCreator, w WalletPayer) (*order.Order, error) {
	ctx, span := f.tracer.Start(ctx, "checkout.PayWithWallet")
	defer span.End()

	snap := c.Snapshot()
	if err := validate(snap); err != nil {
		return nil, err
	}
	q := quote(snap.Total, f.taxRate)
	if !w.CanAfford(q.Payable) {
		return nil, wallet.ErrInsufficientBalance
	}

	req := createRequest(snap.Lines, snap.Info)
	req.IdempotencyKey = f.newKey()

	created, err := orders.CreateOrder(ctx, req)
	if err != nil {
		return nil, err
	}

	desc := fmt.Sprintf("Payment for Order #%d", created.ID)
	if err := w.Deduct(ctx, q.Payable, desc, created.ID); err != nil {
		return nil, f.unpaid(ctx, req, q.Payable, created.ID, err)
	}

	c.Clear()
	f.completed.Add(ctx, 1, metric.WithAttributes(attribute.String("method", "wallet")))
	return created, nil
}

func (f *Flow) unpaid(ctx context.Context, req order.CreateRequest, amount decimal.Decimal, orderID int64, cause error) error {
	cause = errors.Wrapf(cause, "pay order %d", orderID)
	lg := zctx.From(ctx).With(
		zap.String("key", req.IdempotencyKey),
		zap.Int64("order_id", orderID),
	)

	entry := ledger.Entry{
		Key:       req.IdempotencyKey,
		PaymentID: walletPaymentID,
		Amount:    amount,
		Currency:  f.currency,
		Request:   req,
		Reason:    cause.Error(),
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

	f.unresolved.Add(ctx, 1, metric.WithAttributes(attribute.String("method", "wallet")))
	lg.Error("Order placed but wallet payment failed", zap.Error(cause))
	return &ReconciliationError{Key: req.IdempotencyKey, Cause: cause}
}

// PlaceCashOnDelivery places the order unpaid.
func (f *Flow) PlaceCashOnDelivery(ctx context.Context, c CartStore, orders OrderCreator) (*order.Order, error) {
	ctx, span := f.tracer.Start(ctx, "checkout.PlaceCashOnDelivery")
	defer span.End()

	snap := c.Snapshot()
	if err := validate(snap); err != nil {
		return nil, err
	}

	req := createRequest(snap.Lines, snap.Info)
	req.IdempotencyKey = f.newKey()

	created, err := orders.CreateOrder(ctx, req)
	if err != nil {
		return nil, err
	}

	c.Clear()
	f.completed.Add(ctx, 1, metric.WithAttributes(attribute.String("method", "cod")))
	return created, nil
}
