// Package handler is the HTTP surface of the checkout core.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/railmeal/internal/auth"
	"github.com/xenking/railmeal/internal/checkout"
	"github.com/xenking/railmeal/internal/domain/payment"
	"github.com/xenking/railmeal/internal/session"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// KeyID is the public gateway key the client widget is opened with.
	KeyID string
}

// Handler serves the cart, order, wallet and checkout API of a session.
type Handler struct {
	sessions *session.Registry
	intents  *payment.IntentService
	flow     *checkout.Flow
	tokens   *auth.Verifier
	keyID    string
}

// New constructs a Handler with the required domain dependencies.
func New(
	cfg Config,
	sessions *session.Registry,
	intents *payment.IntentService,
	flow *checkout.Flow,
	tokens *auth.Verifier,
) *Handler {
	return &Handler{
		sessions: sessions,
		intents:  intents,
		flow:     flow,
		tokens:   tokens,
		keyID:    cfg.KeyID,
	}
}

// Routes builds the router. Middlewares run inside the router so they can
// see the matched route pattern.
func (h *Handler) Routes(middlewares ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewares...)

	r.Post("/payment/intent", h.CreateIntent)

	r.Route("/api", func(r chi.Router) {
		r.Use(h.withSession)

		r.Delete("/session", h.EndSession)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Post("/items", h.AddCartItem)
			r.Delete("/items/{itemID}", h.RemoveCartItem)
			r.Patch("/info", h.UpdateOrderInfo)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Post("/refresh", h.RefreshOrders)
			r.Get("/{orderID}", h.GetOrder)
			r.Post("/{orderID}/rating", h.RateOrder)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/quote", h.QuoteCheckout)
			r.Post("/intent", h.BeginCheckout)
			r.Post("/confirm", h.ConfirmCheckout)
			r.Post("/wallet", h.PayWithWallet)
			r.Post("/cod", h.PlaceCashOnDelivery)
		})

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/", h.GetWallet)
			r.Post("/top-ups", h.StartTopUp)
			r.Post("/top-ups/confirm", h.ConfirmTopUp)
		})
	})
	return r
}
