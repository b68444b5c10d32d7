package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/railmeal/internal/apperr"
	"github.com/xenking/railmeal/internal/auth"
	"github.com/xenking/railmeal/internal/backend"
	"github.com/xenking/railmeal/internal/checkout"
	"github.com/xenking/railmeal/internal/domain/order"
	"github.com/xenking/railmeal/internal/domain/payment"
	"github.com/xenking/railmeal/internal/domain/wallet"
)

const maxBodySize = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(r.Context()).Debug("Failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	respondJSON(w, r, status, errorResponse{Error: msg})
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errors.Wrap(err, "invalid request body")
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

// respondErr maps domain errors to status codes.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	var (
		apiErr *backend.APIError
		recErr *checkout.ReconciliationError
	)
	switch {
	case errors.As(err, &recErr):
		zctx.From(r.Context()).Warn("Checkout awaiting reconciliation", zap.String("key", recErr.Key))
		respondJSON(w, r, http.StatusAccepted, pendingDTO{
			Status: "pending_reconciliation",
			Key:    recErr.Key,
			Error:  recErr.Cause.Error(),
		})
	case errors.Is(err, checkout.ErrAttemptInProgress):
		respondError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, apperr.ErrUnauthenticated), errors.Is(err, auth.ErrInvalidToken):
		respondError(w, r, http.StatusUnauthorized, err.Error())
	case errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrIncompleteOrderInfo),
		errors.Is(err, payment.ErrInvalidAmount),
		errors.Is(err, payment.ErrInvalidSignature),
		errors.Is(err, order.ErrInvalidRating),
		errors.Is(err, wallet.ErrAmountOutOfRange),
		errors.Is(err, wallet.ErrInvalidAmount),
		errors.Is(err, wallet.ErrInsufficientBalance):
		respondError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, apperr.ErrNotFound):
		respondError(w, r, http.StatusNotFound, err.Error())
	case errors.As(err, &apiErr):
		respondError(w, r, http.StatusUnprocessableEntity, apiErr.Message)
	case errors.Is(err, apperr.ErrRemoteUnavailable):
		zctx.From(r.Context()).Warn("Remote call failed", zap.Error(err))
		respondError(w, r, http.StatusBadGateway, err.Error())
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "internal error")
	}
}
