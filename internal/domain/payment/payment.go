// Package payment creates one-shot payment-gateway orders ("intents") for a
// checkout amount without exposing gateway credentials to clients.
package payment

import (
	"context"

	"github.com/go-faster/errors"
)

var (
	// ErrInvalidAmount is returned for non-positive amounts or amounts that
	// round to zero minor units.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrInvalidSignature is returned when a payment confirmation does not
	// carry a valid gateway signature.
	ErrInvalidSignature = errors.New("invalid payment signature")
)

// OrderRequest is what the gateway needs to create an order.
type OrderRequest struct {
	// Amount in minor currency units (paise for INR).
	Amount   int64
	Currency string
	Receipt  string
}

// Intent is the gateway order descriptor handed to the client widget.
type Intent struct {
	GatewayOrderID string
	// Amount in minor currency units.
	Amount   int64
	Currency string
	Receipt  string
	Status   string
}

// Confirmation is what the client widget reports after a successful payment.
type Confirmation struct {
	GatewayOrderID string
	PaymentID      string
	Signature      string
}

// Gateway is the remote payment gateway.
type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*Intent, error)
}

// Verifier checks a payment confirmation against the gateway secret.
type Verifier interface {
	VerifySignature(c Confirmation) error
}
