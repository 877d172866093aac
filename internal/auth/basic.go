// Package auth provides HTTP basic authentication against the in-memory
// user roster. The authenticated user name is placed on the request
// context for handlers to resolve.
package auth

import (
	"context"
	"net/http"

	"github.com/boersenspiel/market-engine/internal/account"
)

type contextKey struct{}

// UserName returns the authenticated user name from the request context,
// or "" if the request did not pass through the middleware.
func UserName(ctx context.Context) string {
	name, _ := ctx.Value(contextKey{}).(string)
	return name
}

// Basic returns middleware that requires valid basic-auth credentials for
// a roster user. Failures get a 401 with a Basic challenge.
func Basic(registry *account.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name, passwd, ok := r.BasicAuth()
			if !ok || !registry.Authenticate(name, passwd) {
				w.Header().Set("WWW-Authenticate", `Basic realm="boersenspiel"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), contextKey{}, name)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
