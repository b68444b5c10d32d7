// Package wallet caches the prepaid wallet of the current identity.
package wallet

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrAmountOutOfRange is returned when a top-up is outside
	// [MinTopUp, MaxTopUp].
	ErrAmountOutOfRange = errors.New("top-up amount out of range")
	// ErrInsufficientBalance is returned when a payment exceeds the cached
	// balance.
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	// ErrInvalidAmount is returned for non-positive payment amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// Top-up limits enforced by the backend, checked locally to avoid a round
// trip.
var (
	MinTopUp = decimal.NewFromInt(100)
	MaxTopUp = decimal.NewFromInt(10000)
)

// Wallet is the backend view of a user's wallet.
type Wallet struct {
	ID      int64
	UserID  int64
	Balance decimal.Decimal
	Active  bool
}

// Transaction is a wallet ledger line.
type Transaction struct {
	ID           int64
	Type         string
	Amount       decimal.Decimal
	BalanceAfter decimal.Decimal
	Description  string
	OrderID      *int64
	Reference    string
	CreatedAt    time.Time
}

// TopUp is the gateway order the backend opens for adding money.
type TopUp struct {
	PaymentID      int64
	GatewayOrderID string
	Amount         decimal.Decimal
	Currency       string
	Status         string
	KeyID          string
	Receipt        string
}

// PaymentRequest debits the wallet for an order.
type PaymentRequest struct {
	UserID      int64
	OrderID     int64
	Amount      decimal.Decimal
	Description string
}

// Remote is the backend wallet service.
type Remote interface {
	Exists(ctx context.Context, userID int64) (bool, error)
	Get(ctx context.Context, userID int64) (*Wallet, error)
	Transactions(ctx context.Context, userID int64) ([]Transaction, error)
	Create(ctx context.Context, userID int64) (*Wallet, error)
	AddMoney(ctx context.Context, userID int64, amount decimal.Decimal) (*TopUp, error)
	ConfirmAddMoney(ctx context.Context, userID int64, paymentID, gatewayOrderID string) error
	Pay(ctx context.Context, req PaymentRequest) error
}

// State is the loading state of a Store.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateEmpty
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateEmpty:
		return "empty"
	default:
		return "unknown"
	}
}
