package middleware

import (
	"net/http"
	"strings"

	"groundtransfer/opsdesk/internal/auth"
	"groundtransfer/opsdesk/internal/common"
	"groundtransfer/opsdesk/internal/logging"
)

// AuthMiddleware requires a valid trigger token in the Authorization header
func AuthMiddleware(tokens *common.TriggerTokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				http.Error(w, "Unauthorized. Missing bearer token", http.StatusUnauthorized)
				return
			}

			claims, err := tokens.Validate(strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer ")))
			if err != nil {
				logging.Warn("Rejected trigger token", "path", r.URL.Path, "error", err)
				http.Error(w, "Unauthorized. Invalid token", http.StatusUnauthorized)
				return
			}

			ctx := auth.SetTriggerClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
