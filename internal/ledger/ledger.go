// Package ledger records checkouts whose payment and order got out of step,
// so an operator can reconcile them with a backend order.
package ledger

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/railmeal/internal/domain/order"
)

// ErrEntryNotFound is returned when no entry exists for a key.
var ErrEntryNotFound = errors.New("ledger entry not found")

// Status of a ledger entry.
type Status string

const (
	StatusPending  Status = "pending"
	StatusResolved Status = "resolved"
)

// Entry is a paid checkout awaiting an order. Key is the checkout
// idempotency key.
type Entry struct {
	Key            string              `json:"key"`
	SessionID      string              `json:"sessionId"`
	UserID         int64               `json:"userId"`
	GatewayOrderID string              `json:"gatewayOrderId"`
	PaymentID      string              `json:"paymentId"`
	Amount         decimal.Decimal     `json:"amount"`
	Currency       string              `json:"currency"`
	Request        order.CreateRequest `json:"request"`
	Reason         string              `json:"reason"`
	Status         Status              `json:"status"`
	Attempts       int                 `json:"attempts"`
	OrderID        int64               `json:"orderId,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

// Ledger stores reconciliation entries.
type Ledger interface {
	// Record inserts e as pending, or bumps Attempts and Reason of an
	// existing entry with the same key.
	Record(ctx context.Context, e Entry) (Entry, error)
	Get(ctx context.Context, key string) (*Entry, error)
	// Pending lists unresolved entries, oldest first.
	Pending(ctx context.Context) ([]Entry, error)
	// Resolve marks the entry as settled by the given backend order.
	Resolve(ctx context.Context, key string, orderID int64) error
}

// Notifier announces new or updated entries to operators.
type Notifier interface {
	Notify(ctx context.Context, e Entry) error
}

// NopNotifier drops notifications.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Entry) error { return nil }

// merge folds a repeated Record call into the stored entry.
func merge(stored *Entry, e Entry, now time.Time) Entry {
	if stored == nil {
		e.Status = StatusPending
		e.Attempts = 1
		e.OrderID = 0
		e.CreatedAt = now
		e.UpdatedAt = now
		return e
	}
	out := *stored
	out.Attempts++
	out.Reason = e.Reason
	if e.PaymentID != "" {
		out.PaymentID = e.PaymentID
	}
	out.UpdatedAt = now
	return out
}
