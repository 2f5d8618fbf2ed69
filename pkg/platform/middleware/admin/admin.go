package admin

import (
	"log/slog"
	"net/http"

	"merch/pkg/platform/privacy"
	"merch/pkg/requestcontext"
	"merch/pkg/secrets"
)

// RequireAdminToken admits requests whose X-Admin-Token matches tokenHash (bcrypt).
// An empty hash disables the admin surface entirely. X-Admin-Actor-ID, when
// present, is carried into the request context for audit attribution.
func RequireAdminToken(tokenHash string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if tokenHash == "" {
				writeUnauthorized(w, "admin api disabled")
				return
			}
			if err := secrets.Verify(r.Header.Get("X-Admin-Token"), tokenHash); err != nil {
				logger.WarnContext(ctx, "admin token rejected",
					"request_id", requestcontext.RequestID(ctx),
					"remote_addr_prefix", privacy.AnonymizeIP(requestcontext.ClientIP(ctx)),
				)
				writeUnauthorized(w, "admin token required")
				return
			}

			if actorID := r.Header.Get("X-Admin-Actor-ID"); actorID != "" {
				ctx = requestcontext.WithAdminActor(ctx, actorID)
			} else {
				ctx = requestcontext.WithAdminActor(ctx, "admin")
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, desc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + desc + `"}`))
}
