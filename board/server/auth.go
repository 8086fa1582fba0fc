// ABOUTME: Bearer token authentication middleware for the API and websocket routes.
// ABOUTME: Websocket clients may pass the token as a query parameter since browsers cannot set headers on upgrade.
package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// AuthMiddleware rejects /api requests without the expected bearer token.
// An empty token disables the check. /health is always open.
func AuthMiddleware(token string) func(http.Handler) http.Handler {
	expected := "Bearer " + token
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if token == "" || path == "/health" || !(path == "/api" || strings.HasPrefix(path, "/api/")) {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if subtle.ConstantTimeCompare([]byte(auth), []byte(expected)) == 1 {
				next.ServeHTTP(w, r)
				return
			}
			if strings.HasSuffix(path, "/ws") {
				if q := r.URL.Query().Get("token"); subtle.ConstantTimeCompare([]byte(q), []byte(token)) == 1 {
					next.ServeHTTP(w, r)
					return
				}
			}

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("WWW-Authenticate", `Bearer realm="funnel"`)
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
		})
	}
}
