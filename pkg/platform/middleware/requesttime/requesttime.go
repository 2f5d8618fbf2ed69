// Package requesttime pins a single "now" per HTTP request so that the
// reservation window, audit timestamps and consumption time agree.
package requesttime

import (
	"net/http"
	"time"

	"merch/pkg/requestcontext"
)

// Middleware captures the clock at the start of the request.
// clock may be nil, in which case time.Now is used.
func Middleware(clock func() time.Time) func(http.Handler) http.Handler {
	if clock == nil {
		clock = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), clock().UTC())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
