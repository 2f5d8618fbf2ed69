package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"

	"merch/internal/chain"
	"merch/internal/claim/signer"
	companion "merch/internal/companion/service"
	dErrors "merch/pkg/domain-errors"
	"merch/pkg/platform/httputil"
	"merch/pkg/requestcontext"
	"merch/pkg/validation"
)

// Service defines the companion operations exposed over HTTP.
type Service interface {
	Check(ctx context.Context, sbtID *big.Int, requester common.Address) companion.Eligibility
	Quote(ctx context.Context) *big.Int
	Upgrade(ctx context.Context, req companion.UpgradeRequest) (*chain.CompanionReceipt, error)
	Balance(ctx context.Context, owner common.Address) (*big.Int, error)
}

type Handler struct {
	companion Service
	logger    *slog.Logger
}

func New(companion Service, logger *slog.Logger) *Handler {
	return &Handler{companion: companion, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/companion/eligibility", h.HandleEligibility)
	r.Get("/companion/fee", h.HandleFee)
	r.Post("/companion/upgrade", h.HandleUpgrade)
	r.Get("/sbt/{address}/balance", h.HandleBalance)
}

// EligibilityRequest asks whether requester may mint a companion for SBTID.
type EligibilityRequest struct {
	SBTID     json.Number `json:"sbtId"`
	Requester string      `json:"requester"`

	sbt *big.Int
}

func (r *EligibilityRequest) Normalize() {
	r.Requester = strings.TrimSpace(r.Requester)
}

func (r *EligibilityRequest) Validate() error {
	id, err := parseTokenID(r.SBTID)
	if err != nil {
		return err
	}
	if !validation.IsAddress(r.Requester) {
		return dErrors.New(dErrors.CodeValidation, "requester must be a valid address")
	}
	r.sbt = id
	return nil
}

// UpgradeRequest mints a companion for an SBT the requester owns. Signature
// is the requester's personal_sign over (sbtId, organizer, expiry), with
// expiry in unix seconds.
type UpgradeRequest struct {
	SBTID     json.Number `json:"sbtId"`
	Organizer string      `json:"organizer"`
	Requester string      `json:"requester"`
	Expiry    int64       `json:"expiry"`
	Signature string      `json:"signature"`

	sbt *big.Int
	sig []byte
}

func (r *UpgradeRequest) Normalize() {
	r.Organizer = strings.TrimSpace(r.Organizer)
	r.Requester = strings.TrimSpace(r.Requester)
	r.Signature = strings.TrimSpace(r.Signature)
}

func (r *UpgradeRequest) Validate() error {
	id, err := parseTokenID(r.SBTID)
	if err != nil {
		return err
	}
	if !validation.IsAddress(r.Organizer) {
		return dErrors.New(dErrors.CodeValidation, "organizer must be a valid address")
	}
	if !validation.IsAddress(r.Requester) {
		return dErrors.New(dErrors.CodeValidation, "requester must be a valid address")
	}
	if r.Expiry <= 0 {
		return dErrors.New(dErrors.CodeValidation, "expiry is required")
	}
	if r.Signature == "" {
		return dErrors.New(dErrors.CodeValidation, "signature is required")
	}
	sig, err := hexutil.Decode(r.Signature)
	if err != nil || len(sig) != signer.SignatureLength {
		return dErrors.New(dErrors.CodeValidation, "signature must be 65 hex-encoded bytes")
	}
	r.sbt = id
	r.sig = sig
	return nil
}

// parseTokenID accepts a non-negative decimal token id.
func parseTokenID(n json.Number) (*big.Int, error) {
	id, ok := new(big.Int).SetString(strings.TrimSpace(n.String()), 10)
	if !ok || id.Sign() < 0 || id.BitLen() > 256 {
		return nil, dErrors.New(dErrors.CodeValidation, "Please enter a valid SBT Token ID")
	}
	return id, nil
}

func (h *Handler) HandleEligibility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[EligibilityRequest](w, r, h.logger, ctx, requestID, nil)
	if !ok {
		return
	}

	httputil.WriteJSON(w, http.StatusOK, h.companion.Check(ctx, req.sbt, common.HexToAddress(req.Requester)))
}

type feeResponse struct {
	Fee    string `json:"fee"`
	FeeEth string `json:"feeEth"`
}

func (h *Handler) HandleFee(w http.ResponseWriter, r *http.Request) {
	fee := h.companion.Quote(r.Context())
	httputil.WriteJSON(w, http.StatusOK, feeResponse{Fee: fee.String(), FeeEth: chain.FormatEther(fee)})
}

type upgradeResponse struct {
	Success        bool     `json:"success"`
	TxHash         string   `json:"txHash"`
	PremiumTokenID *big.Int `json:"premiumTokenId"`
	Fee            string   `json:"fee"`
}

func (h *Handler) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[UpgradeRequest](w, r, h.logger, ctx, requestID, nil)
	if !ok {
		return
	}

	receipt, err := h.companion.Upgrade(ctx, companion.UpgradeRequest{
		SBTID:     req.sbt,
		Organizer: common.HexToAddress(req.Organizer),
		Requester: common.HexToAddress(req.Requester),
		Expiry:    time.Unix(req.Expiry, 0),
		Signature: req.sig,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "companion upgrade failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, upgradeResponse{
		Success:        true,
		TxHash:         receipt.TxHash.Hex(),
		PremiumTokenID: receipt.PremiumTokenID,
		Fee:            chain.FormatEther(receipt.Fee),
	})
}

type balanceResponse struct {
	Address string   `json:"address"`
	Balance *big.Int `json:"balance"`
}

func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	address := chi.URLParam(r, "address")
	if !validation.IsAddress(address) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "address must be a valid address"))
		return
	}
	owner := common.HexToAddress(address)

	balance, err := h.companion.Balance(ctx, owner)
	if err != nil {
		h.logger.ErrorContext(ctx, "balance lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, balanceResponse{Address: owner.Hex(), Balance: balance})
}
