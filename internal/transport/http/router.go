// Package httptransport assembles the public router: shared middleware,
// health probes, the claim and companion routes and the admin group.
package httptransport

import (
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"

	"merch/internal/admin"
	claimhandler "merch/internal/claim/handler"
	companionhandler "merch/internal/companion/handler"
	"merch/internal/platform/health"
	dErrors "merch/pkg/domain-errors"
	"merch/pkg/platform/httputil"
	adminmw "merch/pkg/platform/middleware/admin"
	"merch/pkg/platform/middleware/metadata"
	"merch/pkg/platform/middleware/request"
	"merch/pkg/platform/middleware/requesttime"
)

// Handlers are the route groups mounted on the router. Companion and Admin
// may be nil.
type Handlers struct {
	Claims    *claimhandler.Handler
	Companion *companionhandler.Handler
	Admin     *admin.Handler
	Health    *health.Handler
}

// Options tune the middleware stack.
type Options struct {
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	TrustedProxies []netip.Prefix
	AdminTokenHash string
	Clock          func() time.Time
	Metrics        *request.Metrics
}

// NewRouter wires all public endpoints with middleware.
func NewRouter(h Handlers, opts Options, logger *slog.Logger) http.Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.MethodNotAllowed(request.MethodNotAllowed)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "route not found"))
	})

	r.Use(request.Recovery(logger))
	r.Use(request.RequestID)
	r.Use(metadata.NewMiddleware(opts.TrustedProxies).Handler)
	r.Use(request.Logger(logger))
	r.Use(requesttime.Middleware(opts.Clock))
	r.Use(request.Latency(opts.Metrics))
	r.Use(request.Timeout(opts.RequestTimeout))
	r.Use(request.BodyLimit(opts.MaxBodyBytes))
	r.Use(request.ContentTypeJSON)

	if h.Health != nil {
		h.Health.Register(r)
	}
	h.Claims.Register(r)
	if h.Companion != nil {
		h.Companion.Register(r)
	}
	if h.Admin != nil {
		r.Group(func(r chi.Router) {
			r.Use(adminmw.RequireAdminToken(opts.AdminTokenHash, logger))
			h.Admin.Register(r)
		})
	}

	return r
}
