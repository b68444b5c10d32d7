package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/xenking/railmeal/internal/domain/payment"
)

type intentRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type intentResponse struct {
	GatewayOrderID string `json:"gatewayOrderId"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Receipt        string `json:"receipt"`
	Status         string `json:"status,omitempty"`
}

func toIntentResponse(in *payment.Intent) intentResponse {
	return intentResponse{
		GatewayOrderID: in.GatewayOrderID,
		Amount:         in.Amount,
		Currency:       in.Currency,
		Receipt:        in.Receipt,
		Status:         in.Status,
	}
}

// CreateIntent opens a gateway order for an arbitrary amount. Gateway
// failures are reported as 500 with the redacted upstream message.
func (h *Handler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	intent, err := h.intents.Create(r.Context(), req.Amount)
	if err != nil {
		if payment.IsInvalidAmount(err) {
			respondError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, r, http.StatusOK, toIntentResponse(intent))
}
