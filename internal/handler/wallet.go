package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/railmeal/internal/domain/wallet"
)

type transactionDTO struct {
	ID           int64     `json:"id"`
	Type         string    `json:"type"`
	Amount       float64   `json:"amount"`
	BalanceAfter float64   `json:"balanceAfter"`
	Description  string    `json:"description,omitempty"`
	OrderID      *int64    `json:"orderId,omitempty"`
	Reference    string    `json:"reference,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type walletDTO struct {
	State        string           `json:"state"`
	Exists       bool             `json:"exists"`
	Balance      float64          `json:"balance"`
	Transactions []transactionDTO `json:"transactions"`
}

func toWalletDTO(s *wallet.Store) walletDTO {
	txs := s.Transactions()
	out := walletDTO{
		State:        s.State().String(),
		Exists:       s.Exists(),
		Balance:      s.Balance().InexactFloat64(),
		Transactions: make([]transactionDTO, len(txs)),
	}
	for i, tx := range txs {
		out.Transactions[i] = transactionDTO{
			ID:           tx.ID,
			Type:         tx.Type,
			Amount:       tx.Amount.InexactFloat64(),
			BalanceAfter: tx.BalanceAfter.InexactFloat64(),
			Description:  tx.Description,
			OrderID:      tx.OrderID,
			Reference:    tx.Reference,
			CreatedAt:    tx.CreatedAt,
		}
	}
	return out
}

type topUpRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type topUpDTO struct {
	PaymentID      int64   `json:"paymentId"`
	GatewayOrderID string  `json:"razorpayOrderId"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	Status         string  `json:"status"`
	KeyID          string  `json:"razorpayKeyId"`
	Receipt        string  `json:"receipt,omitempty"`
}

type confirmTopUpRequest struct {
	PaymentID      string `json:"razorpayPaymentId"`
	GatewayOrderID string `json:"razorpayOrderId"`
}

// GetWallet returns the cached wallet.
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, toWalletDTO(sessionFrom(r.Context()).Wallet()))
}

// StartTopUp opens a gateway order for adding money to the wallet.
func (h *Handler) StartTopUp(w http.ResponseWriter, r *http.Request) {
	var req topUpRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	t, err := sessionFrom(r.Context()).Wallet().AddMoney(r.Context(), req.Amount)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, topUpDTO{
		PaymentID:      t.PaymentID,
		GatewayOrderID: t.GatewayOrderID,
		Amount:         t.Amount.InexactFloat64(),
		Currency:       t.Currency,
		Status:         t.Status,
		KeyID:          t.KeyID,
		Receipt:        t.Receipt,
	})
}

// ConfirmTopUp credits a completed top-up payment and returns the wallet.
func (h *Handler) ConfirmTopUp(w http.ResponseWriter, r *http.Request) {
	var req confirmTopUpRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.PaymentID == "" || req.GatewayOrderID == "" {
		respondError(w, r, http.StatusBadRequest, "payment id and order id are required")
		return
	}

	s := sessionFrom(r.Context()).Wallet()
	if err := s.ConfirmAddMoney(r.Context(), req.PaymentID, req.GatewayOrderID); err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toWalletDTO(s))
}
