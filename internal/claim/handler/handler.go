package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"merch/internal/claim/models"
	"merch/internal/claim/service"
	dErrors "merch/pkg/domain-errors"
	"merch/pkg/platform/httputil"
	"merch/pkg/requestcontext"
)

// Service is the claim orchestrator as seen by the HTTP layer.
type Service interface {
	Validate(ctx context.Context, code string) (*models.ClaimCode, error)
	Authorize(ctx context.Context, req service.AuthorizeRequest) (*models.MintAuthorization, error)
	Claim(ctx context.Context, code string, recipient common.Address) (*service.ClaimResult, error)
	Reserve(ctx context.Context, req service.ReserveRequest) (*models.Reservation, error)
}

// Handler serves the claim routes. Each route keeps the wire shape the
// web client already depends on, so errors are not rendered through
// httputil.WriteError.
type Handler struct {
	claims Service
	logger *slog.Logger
}

// New creates a claim Handler.
func New(claims Service, logger *slog.Logger) *Handler {
	return &Handler{claims: claims, logger: logger}
}

// Register mounts every route at its bare path and under /api.
func (h *Handler) Register(r chi.Router) {
	for _, prefix := range []string{"", "/api"} {
		r.Post(prefix+"/validate-code", h.HandleValidateCode)
		r.Post(prefix+"/sign-mint", h.HandleSignMint)
		r.Post(prefix+"/claim", h.HandleClaim)
		r.Post(prefix+"/reserve", h.HandleReserve)
	}
}

func (h *Handler) HandleValidateCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ValidateCodeRequest](w, r, h.logger, ctx, requestID, writeValidateError)
	if !ok {
		return
	}

	c, err := h.claims.Validate(ctx, req.Code)
	if err != nil {
		h.logFailure(ctx, "validate-code", requestID, err)
		writeValidateError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, validateCodeResponse{
		Valid:    true,
		Status:   statusValid,
		EventID:  c.EventID,
		TokenURI: c.TokenURI,
		Message:  "Code is valid and ready for minting",
	})
}

func (h *Handler) HandleSignMint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SignMintRequest](w, r, h.logger, ctx, requestID, writeSignMintError)
	if !ok {
		return
	}

	auth, err := h.claims.Authorize(ctx, service.AuthorizeRequest{
		Code:      req.Code,
		Recipient: req.Recipient(),
		EventID:   req.EventID,
		TokenURI:  req.TokenURI,
	})
	if err != nil {
		h.logFailure(ctx, "sign-mint", requestID, err)
		writeSignMintError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toSignMintResponse(auth))
}

func (h *Handler) HandleClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ClaimRequest](w, r, h.logger, ctx, requestID, writeClaimFailure)
	if !ok {
		return
	}

	result, err := h.claims.Claim(ctx, req.Code, common.HexToAddress(req.Wallet))
	if err != nil {
		h.logFailure(ctx, "claim", requestID, err)
		writeClaimFailure(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, claimResponse{
		Success:  true,
		TxHash:   result.Receipt.TxHash.Hex(),
		TokenID:  result.Receipt.TokenID,
		EventID:  result.Authorization.EventID,
		TokenURI: result.Authorization.TokenURI,
		Message:  "SBT successfully minted via backend",
	})
}

func (h *Handler) HandleReserve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ReserveRequest](w, r, h.logger, ctx, requestID, writeClaimFailure)
	if !ok {
		return
	}

	res, err := h.claims.Reserve(ctx, service.ReserveRequest{
		Code:      req.Code,
		Wallet:    common.HexToAddress(req.Wallet),
		EventName: req.EventName,
		Email:     req.Email,
	})
	if err != nil {
		h.logFailure(ctx, "reserve", requestID, err)
		writeClaimFailure(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toReserveResponse(res))
}

// logFailure logs at Error only for failures the client did not cause.
func (h *Handler) logFailure(ctx context.Context, route, requestID string, err error) {
	status, _ := publicError(err, "")
	level := h.logger.WarnContext
	if status >= http.StatusInternalServerError {
		level = h.logger.ErrorContext
	}
	level(ctx, "claim route failed",
		"route", route,
		"request_id", requestID,
		"status", status,
		"error", err,
	)
}

// publicError picks the status and message a client sees. Anything that
// maps to a 500 is replaced by fallback so internal causes never leak.
func publicError(err error, fallback string) (int, string) {
	var de *dErrors.Error
	if !errors.As(err, &de) {
		return http.StatusInternalServerError, fallback
	}
	status := httputil.DomainCodeToHTTPStatus(de.Code)
	if status == http.StatusInternalServerError {
		return status, fallback
	}
	return status, de.Message
}

func writeValidateError(w http.ResponseWriter, err error) {
	status, msg := publicError(err, "Internal server error")
	resp := validateCodeResponse{Valid: false, Error: msg}
	switch dErrors.CodeOf(err) {
	case dErrors.CodeClaimInvalid:
		resp.Status, resp.Error = statusInvalid, "Invalid code"
	case dErrors.CodeClaimUsed:
		resp.Status = statusUsed
	}
	httputil.WriteJSON(w, status, resp)
}

func writeSignMintError(w http.ResponseWriter, err error) {
	status, msg := publicError(err, "Failed to sign mint")
	if dErrors.HasCode(err, dErrors.CodeClaimInvalid) {
		msg = "Invalid code"
	}
	httputil.WriteJSON(w, status, errorResponse{Error: msg})
}

func writeClaimFailure(w http.ResponseWriter, err error) {
	status, msg := publicError(err, "Internal server error")
	resp := claimFailure{Success: false, Error: msg}
	var ce *service.ClaimError
	if errors.As(err, &ce) {
		resp.Phase = string(ce.Phase)
		resp.Reason = ce.Reason
		resp.Retryable = ce.Retryable()
	}
	httputil.WriteJSON(w, status, resp)
}
