package middleware

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey string

const actorContextKey contextKey = "actor"

// ActorFromContext returns the authenticated operator identity, or nil for
// unattributed (system) requests.
func ActorFromContext(ctx context.Context) *string {
	a, _ := ctx.Value(actorContextKey).(*string)
	return a
}

// APIKeyAuth guards the admin surface with a single bearer key. The operator
// may identify itself via the X-Actor header; that identity flows into the
// audit trail. An empty configured key disables auth (local development).
func APIKeyAuth(apiKey string) func(http.Handler) http.Handler {
	keyHash := sha256.Sum256([]byte(apiKey))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey != "" {
				authHeader := r.Header.Get("Authorization")
				if authHeader == "" {
					writeError(w, http.StatusUnauthorized, "missing authorization header")
					return
				}

				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
					writeError(w, http.StatusUnauthorized, "invalid authorization header format")
					return
				}

				given := sha256.Sum256([]byte(parts[1]))
				if subtle.ConstantTimeCompare(given[:], keyHash[:]) != 1 {
					writeError(w, http.StatusUnauthorized, "invalid API key")
					return
				}
			}

			ctx := r.Context()
			if actor := r.Header.Get("X-Actor"); actor != "" {
				ctx = context.WithValue(ctx, actorContextKey, &actor)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
