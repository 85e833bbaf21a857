package middleware

import (
	"encoding/json"
	"net/http"

	"shadowledger/internal/shared/auth"
)

// KeyVerifier checks a presented API key.
type KeyVerifier interface {
	Verify(key string) bool
}

// APIKey rejects requests whose X-API-Key header does not verify.
func APIKey(v KeyVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(auth.APIKeyHeader)
			if key == "" {
				writeError(w, http.StatusUnauthorized, "API key required")
				return
			}
			if !v.Verify(key) {
				writeError(w, http.StatusUnauthorized, "Invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
