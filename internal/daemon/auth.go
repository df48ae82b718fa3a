package daemon

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// authMiddleware returns a handler that validates bearer tokens on /api routes.
// If token is empty, no authentication is required and all requests pass through.
// Static /uploads and /renders stay public.
func authMiddleware(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	expected := []byte(token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			unauthorized(w)
			return
		}
		if subtle.ConstantTimeCompare([]byte(strings.TrimPrefix(auth, "Bearer ")), expected) != 1 {
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}
