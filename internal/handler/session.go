package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/railmeal/internal/auth"
	"github.com/xenking/railmeal/internal/session"
)

// SessionHeader carries the session id in both directions.
const SessionHeader = "X-Session-ID"

type sessionKey struct{}

func sessionFrom(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionKey{}).(*session.Session)
	return s
}

// withSession resolves the caller's session and identity. A bearer token
// that fails verification is rejected; no token means an anonymous session.
func (h *Handler) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var id *auth.Identity
		if token, ok := auth.BearerToken(r); ok {
			ident, err := h.tokens.Verify(token)
			if err != nil {
				zctx.From(ctx).Debug("Rejected bearer token", zap.Error(err))
				respondErr(w, r, err)
				return
			}
			ctx = auth.WithIdentity(ctx, ident, token)
			id = &ident
		}

		s, created := h.sessions.Acquire(r.Header.Get(SessionHeader))
		w.Header().Set(SessionHeader, s.ID())

		lg := zctx.From(ctx).With(zap.String("session_id", s.ID()))
		if created {
			lg.Debug("Session started")
		}
		ctx = zctx.Base(ctx, lg)

		if s.Authenticate(ctx, id) {
			lg.Debug("Session identity changed", zap.Bool("signed_in", id != nil))
		}

		ctx = context.WithValue(ctx, sessionKey{}, s)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// EndSession tears the caller's session down.
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	h.sessions.Close(sessionFrom(r.Context()).ID())
	w.WriteHeader(http.StatusNoContent)
}
