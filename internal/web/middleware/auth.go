package middleware

import (
	"net/http"
)

// CredentialChecker reports whether a usable credential is stored.
type CredentialChecker interface {
	IsValid() bool
}

// RequireCredential is middleware that rejects requests with 401 while no
// valid credential is stored.
func RequireCredential(store CredentialChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !store.IsValid() {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"not authenticated"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
