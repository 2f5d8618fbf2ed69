package admin

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"merch/internal/claim/store"
	"merch/pkg/platform/httputil"
	"merch/pkg/requestcontext"
)

// Handler handles the operator endpoints. Routes are expected to sit behind
// the admin token middleware.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// New creates a new admin handler
func New(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register registers admin routes with the router
func (h *Handler) Register(r chi.Router) {
	r.Get("/admin/codes", h.HandleListCodes)
	r.Post("/admin/codes", h.HandleSeedCodes)
}

// HandleListCodes returns the registry with per-status counts.
func (h *Handler) HandleListCodes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	list, err := h.service.ListCodes(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list codes",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "admin code list retrieved",
		"request_id", requestID,
		"count", list.Total,
	)
	httputil.WriteJSON(w, http.StatusOK, list)
}

type seedRequest struct {
	Codes []store.SeedEntry `json:"codes"`
}

// HandleSeedCodes registers new codes.
func (h *Handler) HandleSeedCodes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeJSON[seedRequest](w, r, h.logger, ctx, requestID, nil)
	if !ok {
		return
	}

	result, err := h.service.SeedCodes(ctx, req.Codes)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to seed codes",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}
