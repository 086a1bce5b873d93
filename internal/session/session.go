// Package session guards protected routes and tracks sign-in state.
//
// The identity of a request comes from a bearer token issued by the hosted
// auth provider. Gate verifies it on every request and fails closed: a
// missing token, a verification error and an empty identity all redirect to
// the public route without calling the protected handler.
package session

import (
	"context"
	"net/http"
	"strings"

	"quicktasker/gig-service/internal/model"
)

// CookieName is the cookie (and query parameter) carrying the access token.
const CookieName = "access_token"

// Authenticator resolves the user behind an access token.
type Authenticator interface {
	CurrentUser(ctx context.Context, token string) (model.Identity, error)
}

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity placed by Gate.
func FromContext(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(model.Identity)
	return id, ok && id.ID != ""
}

// TokenFromRequest looks for the access token in the Authorization header,
// then the access_token cookie, then the access_token query parameter
// (browsers cannot set headers on websocket upgrades).
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return r.URL.Query().Get(CookieName)
}
