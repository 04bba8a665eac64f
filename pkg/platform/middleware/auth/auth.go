package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"caseguard/pkg/requestcontext"
)

// Claims represents what the middleware expects from the token validator.
type Claims struct {
	ActorID string
	Role    string
}

// TokenValidator is the slice of the token service the middleware needs.
// Defined here so this package stays decoupled from the JWT implementation.
type TokenValidator interface {
	Validate(tokenString string) (*Claims, error)
}

// RequireBearer rejects requests without a valid operator token and puts
// the authenticated actor id on the context for audit attribution.
func RequireBearer(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeUnauthorized(w, "missing bearer token")
				return
			}

			claims, err := validator.Validate(token)
			if err != nil {
				logger.WarnContext(r.Context(), "operator token rejected", "error", err)
				writeUnauthorized(w, "invalid token")
				return
			}

			ctx := requestcontext.WithActorID(r.Context(), claims.ActorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
