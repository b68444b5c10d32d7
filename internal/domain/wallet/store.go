package wallet

import (
	"context"
	"slices"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/railmeal/internal/apperr"
	"github.com/xenking/railmeal/internal/auth"
)

const defaultPaymentDescription = "Payment for Order"

// Store caches balance and transactions of the current identity's wallet.
// Mutations go to the backend and are followed by a full reload.
type Store struct {
	auth   auth.Source
	remote Remote

	mu           sync.RWMutex
	state        State
	exists       bool
	balance      decimal.Decimal
	transactions []Transaction
	// gen advances on every Load and Reset; a load only commits while its
	// generation is current.
	gen uint64
}

// NewStore creates a Store reading identity from src.
func NewStore(src auth.Source, remote Remote) *Store {
	return &Store{
		auth:   src,
		remote: remote,
	}
}

type snapshot struct {
	exists       bool
	balance      decimal.Decimal
	transactions []Transaction
}

// Load reloads the wallet. A missing wallet is created. Without an identity,
// or when the remote fails, the store resets to a zero balance and the cause
// is returned. Results of a load overtaken by a newer Load or a Reset are
// dropped.
func (s *Store) Load(ctx context.Context) error {
	gen := s.begin()

	id, ok := s.auth.Current()
	if !ok {
		s.replace(gen, snapshot{}, StateEmpty)
		return apperr.ErrUnauthenticated
	}

	snap, err := s.load(ctx, id.UserID)
	if err != nil {
		s.replace(gen, snapshot{}, StateEmpty)
		return err
	}
	if !s.replace(gen, snap, StateReady) {
		zctx.From(ctx).Debug("Discarding stale wallet", zap.Int64("user_id", id.UserID))
	}
	return nil
}

// Reset zeroes the cached wallet and discards any load still in flight.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.exists = false
	s.balance = decimal.Zero
	s.transactions = nil
	s.state = StateUninitialized
}

func (s *Store) load(ctx context.Context, userID int64) (snapshot, error) {
	exists, err := s.remote.Exists(ctx, userID)
	if err != nil {
		return snapshot{}, errors.Wrap(err, "check wallet")
	}

	if !exists {
		w, err := s.remote.Create(ctx, userID)
		if err != nil {
			return snapshot{}, errors.Wrap(err, "create wallet")
		}
		return snapshot{exists: true, balance: w.Balance}, nil
	}

	var (
		w   *Wallet
		txs []Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		w, err = s.remote.Get(gctx, userID)
		return errors.Wrap(err, "get wallet")
	})
	g.Go(func() error {
		var err error
		txs, err = s.remote.Transactions(gctx, userID)
		return errors.Wrap(err, "get transactions")
	})
	if err := g.Wait(); err != nil {
		return snapshot{}, err
	}

	snap := snapshot{exists: true, transactions: txs}
	if w != nil {
		snap.balance = w.Balance
	}
	return snap, nil
}

// FetchWallet is Load for rendering paths: failures are logged and leave a
// zero balance, never an error.
func (s *Store) FetchWallet(ctx context.Context) {
	err := s.Load(ctx)
	switch {
	case err == nil:
	case errors.Is(err, apperr.ErrUnauthenticated):
		zctx.From(ctx).Debug("Skipping wallet fetch without identity")
	default:
		zctx.From(ctx).Warn("Failed to fetch wallet", zap.Error(err))
	}
}

// AddMoney opens a gateway order for topping up the wallet. The balance only
// changes after ConfirmAddMoney.
func (s *Store) AddMoney(ctx context.Context, amount decimal.Decimal) (*TopUp, error) {
	id, ok := s.auth.Current()
	if !ok {
		return nil, apperr.ErrUnauthenticated
	}
	if amount.LessThan(MinTopUp) || amount.GreaterThan(MaxTopUp) {
		return nil, ErrAmountOutOfRange
	}

	topUp, err := s.remote.AddMoney(ctx, id.UserID, amount)
	if err != nil {
		zctx.From(ctx).Error("Failed to initiate top-up",
			zap.Int64("user_id", id.UserID),
			zap.Error(err),
		)
		return nil, errors.Wrap(err, "add money")
	}
	return topUp, nil
}

// ConfirmAddMoney credits a paid top-up and reloads the wallet.
func (s *Store) ConfirmAddMoney(ctx context.Context, paymentID, gatewayOrderID string) error {
	id, ok := s.auth.Current()
	if !ok {
		return apperr.ErrUnauthenticated
	}

	if err := s.remote.ConfirmAddMoney(ctx, id.UserID, paymentID, gatewayOrderID); err != nil {
		zctx.From(ctx).Error("Failed to confirm top-up",
			zap.Int64("user_id", id.UserID),
			zap.String("payment_id", paymentID),
			zap.Error(err),
		)
		return errors.Wrap(err, "confirm add money")
	}

	s.FetchWallet(ctx)
	return nil
}

// Deduct pays for an order from the wallet and reloads it. The cached balance
// is checked first so an obviously short wallet never reaches the backend.
func (s *Store) Deduct(ctx context.Context, amount decimal.Decimal, description string, orderID int64) error {
	id, ok := s.auth.Current()
	if !ok {
		return apperr.ErrUnauthenticated
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if s.Balance().LessThan(amount) {
		return ErrInsufficientBalance
	}
	if description == "" {
		description = defaultPaymentDescription
	}

	err := s.remote.Pay(ctx, PaymentRequest{
		UserID:      id.UserID,
		OrderID:     orderID,
		Amount:      amount,
		Description: description,
	})
	if err != nil {
		zctx.From(ctx).Error("Failed to pay from wallet",
			zap.Int64("user_id", id.UserID),
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
		return errors.Wrap(err, "pay from wallet")
	}

	s.FetchWallet(ctx)
	return nil
}

// CanAfford reports whether the cached balance covers amount.
func (s *Store) CanAfford(amount decimal.Decimal) bool {
	return !s.Balance().LessThan(amount)
}

// Balance returns the cached balance.
func (s *Store) Balance() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balance
}

// Transactions returns a copy of the cached transactions.
func (s *Store) Transactions() []Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.transactions)
}

// Exists reports whether the identity has a wallet.
func (s *Store) Exists() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exists
}

// State returns the current loading state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.state = StateLoading
	return s.gen
}

func (s *Store) replace(gen uint64, snap snapshot, st State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false
	}
	s.exists = snap.exists
	s.balance = snap.balance
	s.transactions = snap.transactions
	s.state = st
	return true
}
