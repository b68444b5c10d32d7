package handler

import (
	"net/http"

	"github.com/xenking/railmeal/internal/apperr"
	"github.com/xenking/railmeal/internal/checkout"
	"github.com/xenking/railmeal/internal/domain/order"
	"github.com/xenking/railmeal/internal/domain/payment"
)

type quoteDTO struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Payable  float64 `json:"payable"`
}

func toQuoteDTO(q checkout.Quote) quoteDTO {
	return quoteDTO{
		Subtotal: q.Subtotal.InexactFloat64(),
		Tax:      q.Tax.InexactFloat64(),
		Payable:  q.Payable.InexactFloat64(),
	}
}

type attemptDTO struct {
	Key    string         `json:"key"`
	KeyID  string         `json:"keyId"`
	Intent intentResponse `json:"intent"`
	Quote  quoteDTO       `json:"quote"`
}

type confirmRequest struct {
	GatewayOrderID string `json:"razorpayOrderId"`
	PaymentID      string `json:"razorpayPaymentId"`
	Signature      string `json:"razorpaySignature"`
}

type pendingDTO struct {
	Status string `json:"status"`
	Key    string `json:"key"`
	Error  string `json:"error"`
}

// QuoteCheckout prices the cart including tax.
func (h *Handler) QuoteCheckout(w http.ResponseWriter, r *http.Request) {
	q, err := h.flow.Quote(sessionFrom(r.Context()).Cart())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toQuoteDTO(q))
}

// BeginCheckout opens a gateway order for the cart. The response carries
// everything the client widget needs.
func (h *Handler) BeginCheckout(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r.Context())
	if _, ok := s.Current(); !ok {
		respondErr(w, r, apperr.ErrUnauthenticated)
		return
	}

	a, err := h.flow.Begin(r.Context(), s.Cart())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	s.TrackAttempt(a)

	respondJSON(w, r, http.StatusOK, attemptDTO{
		Key:    a.Key,
		KeyID:  h.keyID,
		Intent: toIntentResponse(a.Intent),
		Quote:  toQuoteDTO(a.Quote),
	})
}

// ConfirmCheckout places the order for a completed gateway payment. When the
// payment went through but the order did not, 202 is returned with the
// reconciliation key; repeating the call retries with the same key. A
// confirmation racing an unfinished one gets 409.
func (h *Handler) ConfirmCheckout(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.GatewayOrderID == "" || req.PaymentID == "" || req.Signature == "" {
		respondError(w, r, http.StatusBadRequest, "order id, payment id and signature are required")
		return
	}

	s := sessionFrom(r.Context())
	a, ok := s.Attempt(req.GatewayOrderID)
	if !ok {
		respondError(w, r, http.StatusNotFound, "unknown checkout attempt")
		return
	}

	created, err := h.flow.Complete(r.Context(), s.Cart(), s.Orders(), a, payment.Confirmation{
		GatewayOrderID: req.GatewayOrderID,
		PaymentID:      req.PaymentID,
		Signature:      req.Signature,
	})
	if err != nil {
		respondErr(w, r, err)
		return
	}

	s.ForgetAttempt(req.GatewayOrderID)
	respondJSON(w, r, http.StatusCreated, toOrderDTO(*created))
}

// PayWithWallet places the order and debits the wallet.
func (h *Handler) PayWithWallet(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r.Context())
	h.placed(w, r)(h.flow.PayWithWallet(r.Context(), s.Cart(), s.Orders(), s.Wallet()))
}

// PlaceCashOnDelivery places the order with payment due on delivery.
func (h *Handler) PlaceCashOnDelivery(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r.Context())
	h.placed(w, r)(h.flow.PlaceCashOnDelivery(r.Context(), s.Cart(), s.Orders()))
}

func (h *Handler) placed(w http.ResponseWriter, r *http.Request) func(*order.Order, error) {
	return func(o *order.Order, err error) {
		if err != nil {
			respondErr(w, r, err)
			return
		}
		respondJSON(w, r, http.StatusCreated, toOrderDTO(*o))
	}
}
