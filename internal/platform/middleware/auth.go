// Package middleware holds the HTTP middleware that sits between the router
// and the identity service.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// TokenValidator validates a bearer token and returns the subject identity.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (string, error)
}

type contextKeyIdentityID struct{}

// IdentityID retrieves the authenticated identity from the request context.
func IdentityID(ctx context.Context) string {
	id, ok := ctx.Value(contextKeyIdentityID{}).(string)
	if !ok {
		return ""
	}
	return id
}

// RequireAuth rejects requests without a valid bearer token and stores the
// subject identity in the request context for handlers.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				unauthorized(w)
				return
			}

			identityID, err := validator.ValidateToken(r.Context(), strings.TrimSpace(token))
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized request", "error", err)
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), contextKeyIdentityID{}, identityID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"Invalid or expired token"}`))
}
