package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type ctxKey int

const (
	claimsKey ctxKey = iota
	providerIDKey
)

// Authenticator validates a bearer token.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (*Claims, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// Middleware rejects requests without a valid token and stores the claims and
// provider id in the request context. onError writes the failure response.
func Middleware(a Authenticator, onError func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := BearerToken(r)
			if raw == "" {
				onError(w, r, ErrTokenRejected)
				return
			}
			claims, err := a.Authenticate(r.Context(), raw)
			if err != nil {
				onError(w, r, err)
				return
			}
			id, err := claims.ProviderID()
			if err != nil {
				onError(w, r, ErrTokenRejected)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			ctx = context.WithValue(ctx, providerIDKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok
}

func ProviderIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(providerIDKey).(uuid.UUID)
	return id, ok
}
