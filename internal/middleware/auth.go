package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/prudhvinik1/webradegast/internal/services"
)

type contextKey struct{}

var claimsKey = contextKey{}

// Authenticator validates a bearer token and its backing session.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*services.TokenClaims, error)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// token claims in the request context.
func RequireAuth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w, "missing bearer token")
				return
			}

			claims, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				unauthorized(w, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func WithClaims(ctx context.Context, claims *services.TokenClaims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func ClaimsFromContext(ctx context.Context) (*services.TokenClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(*services.TokenClaims)
	return claims, ok && claims != nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
