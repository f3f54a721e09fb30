package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"

	"property-registry/backend/internal/httpjson"
	"property-registry/backend/internal/ready"
)

// RequireReady answers 503 until sig is published, then hands the published
// value to attach so handlers can read it from the request context.
func RequireReady[T any](sig *ready.Signal[T], attach func(context.Context, T) context.Context) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			v, err := sig.Peek()
			switch {
			case errors.Is(err, ready.ErrNotReady):
				w.Header().Set("Retry-After", "1")
				httpjson.Error(w, http.StatusServiceUnavailable, httpjson.KindUnavailable, "service is starting")
				return
			case err != nil:
				log.Printf("[ready] request rejected, bootstrap failed: %v", err)
				httpjson.Error(w, http.StatusInternalServerError, httpjson.KindInternal, "service failed to start")
				return
			}
			next.ServeHTTP(w, r.WithContext(attach(r.Context(), v)))
		})
	}
}
