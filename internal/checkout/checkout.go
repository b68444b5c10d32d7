// Package checkout drives a cart through payment into a placed order.
package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/railmeal/internal/domain/cart"
	"github.com/xenking/railmeal/internal/domain/order"
	"github.com/xenking/railmeal/internal/domain/payment"
)

var (
	// ErrEmptyCart is returned when checking out a cart without lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrIncompleteOrderInfo is returned when PNR, seat or coach is missing.
	ErrIncompleteOrderInfo = errors.New("order info requires pnr, seat and coach")
	// ErrReconciliationPending is matched by errors returned when a payment
	// was captured but the order could not be created.
	ErrReconciliationPending = errors.New("payment captured, order pending reconciliation")
	// ErrAttemptInProgress is returned when an attempt is confirmed while an
	// earlier confirmation of it is still running.
	ErrAttemptInProgress = errors.New("checkout attempt is already being confirmed")
)

// defaultTrainID is sent when the passenger picked no train.
const defaultTrainID int64 = 1

// DefaultTaxRate is applied when no rate is configured.
var DefaultTaxRate = decimal.RequireFromString("0.05")

// Quote is the amount due for a cart.
type Quote struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Payable  decimal.Decimal
}

// Attempt is one checkout through the payment gateway. It freezes the cart
// content that was priced so the order matches what was paid for.
type Attempt struct {
	// Key is the idempotency key for the order creation.
	Key       string
	SessionID string
	Intent    *payment.Intent
	Lines     []cart.Line
	Info      cart.OrderInfo
	Quote     Quote
	CreatedAt time.Time

	mu       sync.Mutex
	inFlight bool
	placed   *order.Order
}

// claim marks the attempt as being confirmed. It returns the order of an
// earlier successful confirmation instead, or ErrAttemptInProgress while
// another confirmation holds the claim.
func (a *Attempt) claim() (*order.Order, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.placed != nil {
		return a.placed, nil
	}
	if a.inFlight {
		return nil, ErrAttemptInProgress
	}
	a.inFlight = true
	return nil, nil
}

// release ends a claim. A non-nil placed order settles the attempt.
func (a *Attempt) release(placed *order.Order) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inFlight = false
	if placed != nil {
		a.placed = placed
	}
}

// ReconciliationError is returned when payment and order got out of step: a
// captured payment without an order, or a wallet order that was never
// debited. It matches ErrReconciliationPending and the cause.
type ReconciliationError struct {
	Key   string
	Cause error
}

func (e *ReconciliationError) Error() string {
	return "order pending reconciliation (" + e.Key + "): " + e.Cause.Error()
}

func (e *ReconciliationError) Unwrap() []error {
	return []error{ErrReconciliationPending, e.Cause}
}

// OrderCreator places orders for the current identity.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req order.CreateRequest) (*order.Order, error)
}

// WalletPayer debits the current identity's wallet.
type WalletPayer interface {
	CanAfford(amount decimal.Decimal) bool
	Deduct(ctx context.Context, amount decimal.Decimal, description string, orderID int64) error
}

// CartStore is the cart being checked out.
type CartStore interface {
	Snapshot() cart.Snapshot
	Clear()
}

func validate(snap cart.Snapshot) error {
	if snap.Empty() {
		return ErrEmptyCart
	}
	if !snap.Info.Complete() {
		return ErrIncompleteOrderInfo
	}
	return nil
}

func quote(subtotal, taxRate decimal.Decimal) Quote {
	tax := subtotal.Mul(taxRate).Round(2)
	return Quote{
		Subtotal: subtotal,
		Tax:      tax,
		Payable:  subtotal.Add(tax).Round(2),
	}
}

func createRequest(lines []cart.Line, info cart.OrderInfo) order.CreateRequest {
	req := order.CreateRequest{
		PNRNumber:   info.PNRNumber,
		SeatNumber:  info.SeatNumber,
		CoachNumber: info.CoachNumber,
		TrainID:     defaultTrainID,
		Items:       make([]order.CreateItem, len(lines)),
	}
	if info.TrainID != nil && *info.TrainID > 0 {
		req.TrainID = *info.TrainID
	}
	switch {
	case info.RestaurantID != nil:
		req.RestaurantID = *info.RestaurantID
	case len(lines) > 0:
		req.RestaurantID = lines[0].RestaurantID
	}
	for i, l := range lines {
		req.Items[i] = order.CreateItem{FoodItemID: l.ID, Quantity: l.Quantity}
	}
	return req
}
