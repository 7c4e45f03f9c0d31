package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/MrKriegler/go-policyadmin/pkg/problem"
)

// publicPaths are served without an API key.
var publicPaths = []string{"/health", "/readyz", "/metrics"}

// SimpleAPIKey authenticates back-office callers with a shared key sent as
// X-API-Key or "Authorization: Bearer <key>".
func SimpleAPIKey(apiKey string) func(http.Handler) http.Handler {
	apiKeyBytes := []byte(apiKey)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, p := range publicPaths {
				if r.URL.Path == p {
					next.ServeHTTP(w, r)
					return
				}
			}

			key := r.Header.Get("X-API-Key")
			if key == "" {
				if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
					key = strings.TrimPrefix(auth, "Bearer ")
				}
			}

			if subtle.ConstantTimeCompare([]byte(key), apiKeyBytes) != 1 {
				problem.Write(w, http.StatusUnauthorized, "Unauthorized", "Invalid or missing API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
