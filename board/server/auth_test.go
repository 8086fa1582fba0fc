// ABOUTME: Tests for the bearer token middleware.
package server_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/2389-research/funnel/board/server"
)

func TestAuthMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := server.AuthMiddleware("s3cret")(ok)

	cases := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"health is open", "/health", "", http.StatusNoContent},
		{"static is open", "/index.html", "", http.StatusNoContent},
		{"api without token", "/api/workspaces", "", http.StatusUnauthorized},
		{"api wrong token", "/api/workspaces", "Bearer nope", http.StatusUnauthorized},
		{"api with token", "/api/workspaces", "Bearer s3cret", http.StatusNoContent},
		{"ws query token", "/api/workspaces/01J/ws?token=s3cret", "", http.StatusNoContent},
		{"query token only for ws", "/api/workspaces?token=s3cret", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
			if tc.want == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate header")
			}
		})
	}
}

func TestAuthMiddlewareDisabled(t *testing.T) {
	h := server.AuthMiddleware("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/workspaces", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
