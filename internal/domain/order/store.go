package order

import (
	"context"
	"slices"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/railmeal/internal/apperr"
	"github.com/xenking/railmeal/internal/auth"
)

// Store caches the order history of the current identity. The backend stays
// authoritative: every mutation is followed by a full refetch instead of a
// local insert.
type Store struct {
	auth    auth.Source
	remote  Remote
	reviews Reviewer

	mu     sync.RWMutex
	state  State
	orders []Order
	// gen advances on every Load and Reset; a load only commits its result
	// while its generation is still current.
	gen uint64
}

// NewStore creates a Store reading identity from src.
func NewStore(src auth.Source, remote Remote, reviews Reviewer) *Store {
	return &Store{
		auth:    src,
		remote:  remote,
		reviews: reviews,
	}
}

// Load replaces the cached list with the identity's orders. Without an
// identity, or when the remote fails, the list is emptied and the cause is
// returned. A load overtaken by a newer Load or a Reset leaves the cache to
// its successor.
func (s *Store) Load(ctx context.Context) error {
	gen := s.begin()

	id, ok := s.auth.Current()
	if !ok {
		s.replace(gen, nil, StateEmpty)
		return apperr.ErrUnauthenticated
	}

	orders, err := s.remote.UserOrders(ctx, id.UserID)
	if err != nil {
		s.replace(gen, nil, StateEmpty)
		return errors.Wrap(err, "fetch orders")
	}

	if !s.replace(gen, orders, StateReady) {
		zctx.From(ctx).Debug("Discarding stale order list",
			zap.Int64("user_id", id.UserID),
		)
	}
	return nil
}

// Reset empties the cache and discards any load still in flight.
func (s *Store) Reset() {
	s.mu.Lock()
	s.gen++
	s.orders = nil
	s.state = StateUninitialized
	s.mu.Unlock()
}

// FetchOrders is Load for rendering paths: failures are logged and leave an
// empty list, never an error.
func (s *Store) FetchOrders(ctx context.Context) {
	err := s.Load(ctx)
	switch {
	case err == nil:
	case errors.Is(err, apperr.ErrUnauthenticated):
		zctx.From(ctx).Debug("Skipping order fetch without identity")
	default:
		zctx.From(ctx).Warn("Failed to fetch orders", zap.Error(err))
	}
}

// RefreshOrders unconditionally reloads the cached list.
func (s *Store) RefreshOrders(ctx context.Context) {
	s.FetchOrders(ctx)
}

// CreateOrder places an order on behalf of the current identity and refreshes
// the cached list before returning the created order.
func (s *Store) CreateOrder(ctx context.Context, req CreateRequest) (*Order, error) {
	id, ok := s.auth.Current()
	if !ok {
		return nil, apperr.ErrUnauthenticated
	}
	req.UserID = id.UserID

	created, err := s.remote.Create(ctx, req)
	if err != nil {
		zctx.From(ctx).Error("Failed to create order",
			zap.Int64("user_id", id.UserID),
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.Error(err),
		)
		return nil, errors.Wrap(err, "create order")
	}

	s.FetchOrders(ctx)
	return created, nil
}

// Lookup returns the order with the given id from the cache, falling back to
// the remote service on a miss.
func (s *Store) Lookup(ctx context.Context, orderID int64) (*Order, error) {
	if o, ok := s.cached(orderID); ok {
		return &o, nil
	}

	o, err := s.remote.GetByID(ctx, orderID)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %d", orderID)
	}
	if o == nil {
		return nil, apperr.ErrNotFound
	}
	return o, nil
}

// GetOrderByID is Lookup for rendering paths: failures are logged and yield
// nil.
func (s *Store) GetOrderByID(ctx context.Context, orderID int64) *Order {
	o, err := s.Lookup(ctx, orderID)
	if err != nil {
		zctx.From(ctx).Warn("Failed to get order",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
		return nil
	}
	return o
}

// RateOrder submits a review and refreshes the cached list so the order
// shows as rated.
func (s *Store) RateOrder(ctx context.Context, orderID int64, rating int, comment string) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}

	err := s.reviews.AddReview(ctx, Review{
		OrderID: orderID,
		Rating:  rating,
		Comment: comment,
	})
	if err != nil {
		zctx.From(ctx).Error("Failed to submit review",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
		return errors.Wrap(err, "submit review")
	}

	s.FetchOrders(ctx)
	return nil
}

// Orders returns a copy of the cached list.
func (s *Store) Orders() []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.orders)
}

// State returns the current loading state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) cached(orderID int64) (Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders {
		if o.ID == orderID {
			return o, true
		}
	}
	return Order{}, false
}

func (s *Store) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.state = StateLoading
	return s.gen
}

func (s *Store) replace(gen uint64, orders []Order, st State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false
	}
	s.orders = orders
	s.state = st
	return true
}
