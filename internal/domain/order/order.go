// Package order is the session-side cache and mutation façade over the remote
// order history of the authenticated passenger.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidRating is returned when a rating is outside 1..5.
var ErrInvalidRating = errors.New("rating must be between 1 and 5")

// Order is a placed order as reported by the backend.
type Order struct {
	ID                   int64
	UserID               int64
	TrainNumber          string
	TrainName            string
	RestaurantName       string
	PNRNumber            string
	SeatNumber           string
	CoachNumber          string
	Items                []Item
	Amount               decimal.Decimal
	Status               string
	DeliveryInstructions string
	Review               *Review
	CreatedAt            time.Time
}

// Rated reports whether the passenger has already reviewed the order.
func (o Order) Rated() bool {
	return o.Review != nil
}

// Item is an order line as reported by the backend.
type Item struct {
	ID       int64
	Name     string
	Quantity int
	Price    decimal.Decimal
	Subtotal decimal.Decimal
}

// Review is a passenger's rating of a delivered order.
type Review struct {
	OrderID int64
	Rating  int
	Comment string
}

// CreateRequest is the payload sent to the order service when placing an
// order. UserID is filled in by the Store from the current identity.
type CreateRequest struct {
	UserID               int64
	TrainID              int64
	RestaurantID         int64
	PNRNumber            string
	SeatNumber           string
	CoachNumber          string
	DeliveryInstructions string
	Items                []CreateItem
	// PaymentReference identifies the captured payment, if any.
	PaymentReference string
	// IdempotencyKey lets the backend deduplicate retried creations.
	IdempotencyKey string
}

// CreateItem is a single requested line.
type CreateItem struct {
	FoodItemID int64
	Quantity   int
}

// Remote is the order service owned by the backend.
type Remote interface {
	UserOrders(ctx context.Context, userID int64) ([]Order, error)
	Create(ctx context.Context, req CreateRequest) (*Order, error)
	GetByID(ctx context.Context, orderID int64) (*Order, error)
}

// Reviewer is the review service owned by the backend.
type Reviewer interface {
	AddReview(ctx context.Context, review Review) error
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
