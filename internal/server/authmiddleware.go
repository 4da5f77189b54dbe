package server

import (
	"context"
	"net/http"

	"github.com/tjfontaine/deploywatch/internal/auth"
)

type operatorKey struct{}

// AuthMiddleware validates admin API keys from the Authorization header
// (Bearer token format) and injects the matched key into the context.
// With no keys configured every request is rejected.
func AuthMiddleware(authenticator *auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey, err := auth.ExtractAPIKey(r)
			if err != nil {
				WriteJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": err.Error()})
				return
			}

			if !authenticator.Enabled() {
				WriteJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "admin API disabled"})
				return
			}

			key, err := authenticator.ValidateAPIKey(apiKey)
			if err != nil {
				WriteJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "invalid API key"})
				return
			}

			AddLogField(r.Context(), "operator", key.Description)
			ctx := context.WithValue(r.Context(), operatorKey{}, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetOperator retrieves the authenticated admin key from context.
// Returns nil if none is set.
func GetOperator(ctx context.Context) *auth.Key {
	if k, ok := ctx.Value(operatorKey{}).(*auth.Key); ok {
		return k
	}
	return nil
}
