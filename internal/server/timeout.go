package server

import (
	"context"
	"net/http"
	"time"
)

// TimeoutMiddleware bounds each request with a deadline.
//
// Handlers are not interrupted; actions and batch sub-requests observe the
// deadline through their context. A dispatch that runs past it ends with
// context.DeadlineExceeded, which dispatch.Server.ServeHTTP treats like a
// client cancellation: a bodyless 499, never logged as a fault.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
