// Package session owns the per-client stores. Each session is an explicit
// object with its own cart, order and wallet state; nothing is global.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/xenking/railmeal/internal/auth"
	"github.com/xenking/railmeal/internal/checkout"
	"github.com/xenking/railmeal/internal/domain/cart"
	"github.com/xenking/railmeal/internal/domain/order"
	"github.com/xenking/railmeal/internal/domain/wallet"
)

// Deps are the remote collaborators shared by all sessions.
type Deps struct {
	Orders  order.Remote
	Reviews order.Reviewer
	Wallets wallet.Remote
}

// Session is one client's checkout state.
type Session struct {
	id     string
	cart   *cart.Store
	orders *order.Store
	wallet *wallet.Store

	// authMu serializes identity changes with the reloads they trigger.
	authMu sync.Mutex

	mu       sync.RWMutex
	identity *auth.Identity
	attempts map[string]*checkout.Attempt
	lastSeen time.Time
	closed   bool
}

var _ auth.Source = (*Session)(nil)

// New creates an anonymous session.
func New(id string, deps Deps, now time.Time) *Session {
	s := &Session{
		id:       id,
		cart:     cart.NewStore(),
		attempts: make(map[string]*checkout.Attempt),
		lastSeen: now,
	}
	s.orders = order.NewStore(s, deps.Orders, deps.Reviews)
	s.wallet = wallet.NewStore(s, deps.Wallets)
	return s
}

func (s *Session) ID() string            { return s.id }
func (s *Session) Cart() *cart.Store     { return s.cart }
func (s *Session) Orders() *order.Store  { return s.orders }
func (s *Session) Wallet() *wallet.Store { return s.wallet }

// Current returns the identity of the session, if signed in.
func (s *Session) Current() (auth.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return auth.Identity{}, false
	}
	return *s.identity, true
}

// Authenticate sets the identity presented by the latest request. Sign-in,
// sign-out and user switches reload the order and wallet stores; the same
// identity is a no-op. It reports whether the identity changed.
func (s *Session) Authenticate(ctx context.Context, id *auth.Identity) bool {
	s.authMu.Lock()
	defer s.authMu.Unlock()

	s.mu.Lock()
	if s.identity.Equal(id) {
		if id != nil {
			s.identity = id
		}
		s.mu.Unlock()
		return false
	}
	s.identity = id
	s.mu.Unlock()

	s.orders.FetchOrders(ctx)
	s.wallet.FetchWallet(ctx)
	return true
}

// TrackAttempt remembers a gateway checkout until it completes.
func (s *Session) TrackAttempt(a *checkout.Attempt) {
	a.SessionID = s.id
	s.mu.Lock()
	s.attempts[a.Intent.GatewayOrderID] = a
	s.mu.Unlock()
}

// Attempt returns the tracked attempt for a gateway order id.
func (s *Session) Attempt(gatewayOrderID string) (*checkout.Attempt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.attempts[gatewayOrderID]
	return a, ok
}

// ForgetAttempt drops a completed attempt.
func (s *Session) ForgetAttempt(gatewayOrderID string) {
	s.mu.Lock()
	delete(s.attempts, gatewayOrderID)
	s.mu.Unlock()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return now.Sub(s.lastSeen)
}

// close tears the session down. Later requests never see it again.
func (s *Session) close() {
	s.mu.Lock()
	s.closed = true
	s.identity = nil
	clear(s.attempts)
	s.mu.Unlock()
	s.cart.Clear()
	s.orders.Reset()
	s.wallet.Reset()
}

// Closed reports whether the session was torn down.
func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
