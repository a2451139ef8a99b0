package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/azizikri/storefront/internal/domain"
)

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// ErrorWriter renders an auth failure; the HTTP layer supplies its envelope.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Authenticate requires a valid bearer access token and stores the caller's
// Identity in the request context.
func Authenticate(issuer *Issuer, fail ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				fail(w, r, domain.Errorf(domain.ErrUnauthenticated, "authentication required"))
				return
			}
			id, err := issuer.Verify(raw, AccessToken)
			if err != nil {
				fail(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireRole must run after Authenticate.
func RequireRole(role domain.Role, fail ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := FromContext(r.Context())
			if !ok {
				fail(w, r, domain.Errorf(domain.ErrUnauthenticated, "authentication required"))
				return
			}
			if id.Role != role {
				fail(w, r, domain.Errorf(domain.ErrForbidden, "insufficient permissions"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}
