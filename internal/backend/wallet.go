package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/xenking/railmeal/internal/domain/wallet"
)

var _ wallet.Remote = (*WalletService)(nil)

// WalletService is the backend wallet API.
type WalletService struct {
	c *Client
}

// Wallets returns the wallet API.
func (c *Client) Wallets() *WalletService {
	return &WalletService{c: c}
}

func userQuery(userID int64) url.Values {
	return url.Values{"userId": {strconv.FormatInt(userID, 10)}}
}

// Exists reports whether the user has a wallet.
func (s *WalletService) Exists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := s.c.call(ctx, request{
		method: http.MethodGet,
		path:   "/api/wallet/exists",
		query:  userQuery(userID),
	}, &exists)
	return exists, err
}

// Get fetches the user's wallet.
func (s *WalletService) Get(ctx context.Context, userID int64) (*wallet.Wallet, error) {
	var dto walletDTO
	err := s.c.call(ctx, request{
		method: http.MethodGet,
		path:   "/api/wallet",
		query:  userQuery(userID),
	}, &dto)
	if err != nil {
		return nil, err
	}
	return dto.toDomain(), nil
}

// Transactions lists the user's wallet transactions.
func (s *WalletService) Transactions(ctx context.Context, userID int64) ([]wallet.Transaction, error) {
	var dtos []transactionDTO
	err := s.c.call(ctx, request{
		method: http.MethodGet,
		path:   "/api/wallet/transactions",
		query:  userQuery(userID),
	}, &dtos)
	if err != nil {
		return nil, err
	}
	txs := make([]wallet.Transaction, len(dtos))
	for i, d := range dtos {
		txs[i] = d.toDomain()
	}
	return txs, nil
}

// Create opens a wallet for the user.
func (s *WalletService) Create(ctx context.Context, userID int64) (*wallet.Wallet, error) {
	var dto walletDTO
	err := s.c.call(ctx, request{
		method: http.MethodPost,
		path:   "/api/wallet/create",
		query:  userQuery(userID),
	}, &dto)
	if err != nil {
		return nil, err
	}
	return dto.toDomain(), nil
}

// AddMoney opens a gateway order for a top-up.
func (s *WalletService) AddMoney(ctx context.Context, userID int64, amount decimal.Decimal) (*wallet.TopUp, error) {
	var dto paymentOrderDTO
	err := s.c.call(ctx, request{
		method: http.MethodPost,
		path:   "/api/wallet/add-money",
		body:   addMoneyDTO{UserID: userID, Amount: amount.InexactFloat64()},
	}, &dto)
	if err != nil {
		return nil, err
	}
	return dto.toDomain(), nil
}

// ConfirmAddMoney credits a paid top-up.
func (s *WalletService) ConfirmAddMoney(ctx context.Context, userID int64, paymentID, gatewayOrderID string) error {
	q := userQuery(userID)
	q.Set("razorpayPaymentId", paymentID)
	if gatewayOrderID != "" {
		q.Set("razorpayOrderId", gatewayOrderID)
	}
	return s.c.call(ctx, request{
		method: http.MethodPost,
		path:   "/api/wallet/confirm-add-money",
		query:  q,
	}, nil)
}

// Pay debits the wallet for an order.
func (s *WalletService) Pay(ctx context.Context, req wallet.PaymentRequest) error {
	return s.c.call(ctx, request{
		method: http.MethodPost,
		path:   "/api/wallet/pay",
		body: walletPaymentDTO{
			UserID:      req.UserID,
			OrderID:     req.OrderID,
			Amount:      req.Amount.InexactFloat64(),
			Description: req.Description,
		},
	}, nil)
}
