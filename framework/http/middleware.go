package http

import (
	"crypto/subtle"
	"net/http"
)

// BearerGuard rejects requests whose bearer token is not token with 401.
//
//	r.Group(func(r *routing.Router) {
//	    r.Middleware(gohttp.BearerGuard(secret))
//	    r.Post("/refresh", refresh)
//	})
func BearerGuard(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := NewRequest(r).BearerToken()
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				w.Header().Set("WWW-Authenticate", "Bearer")
				NewResponse(w).Error(http.StatusUnauthorized, "invalid or missing bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
