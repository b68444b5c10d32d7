// Package auth carries the caller identity through the service. Tokens are
// issued by the RailMeal backend; this package only verifies them.
package auth

import (
	"context"
	"slices"
)

// Identity is the authenticated user as seen by the session core.
type Identity struct {
	UserID      int64
	DisplayName string
	Roles       []string
}

// Equal reports whether two identities refer to the same user.
func (i *Identity) Equal(other *Identity) bool {
	if i == nil || other == nil {
		return i == nil && other == nil
	}
	return i.UserID == other.UserID
}

// HasRole reports whether the identity carries the given role.
func (i Identity) HasRole(role string) bool {
	return slices.Contains(i.Roles, role)
}

// Source exposes the current identity to the stores. Stores only read it.
type Source interface {
	Current() (Identity, bool)
}

type (
	identityKey struct{}
	tokenKey    struct{}
)

// WithIdentity returns a context carrying the verified identity and the raw
// bearer token it was taken from.
func WithIdentity(ctx context.Context, id Identity, token string) context.Context {
	ctx = context.WithValue(ctx, identityKey{}, id)
	return context.WithValue(ctx, tokenKey{}, token)
}

// IdentityFromContext returns the identity stored by WithIdentity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// TokenFromContext returns the bearer token stored by WithIdentity, or "".
func TokenFromContext(ctx context.Context) string {
	if t, ok := ctx.Value(tokenKey{}).(string); ok {
		return t
	}
	return ""
}
