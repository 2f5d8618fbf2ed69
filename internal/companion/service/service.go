// Package service answers companion eligibility questions and performs the
// fee-bearing companion mint against an SBT the requester owns.
package service

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"merch/internal/chain"
	"merch/internal/claim/signer"
	"merch/internal/platform/metrics"
	dErrors "merch/pkg/domain-errors"
	"merch/pkg/platform/audit"
	"merch/pkg/requestcontext"
)

// Ledger is the premium contract surface the checker reads and writes.
type Ledger interface {
	CanMintCompanion(ctx context.Context, sbtID *big.Int, user common.Address) (bool, string, error)
	UpgradeFee(ctx context.Context) (*big.Int, error)
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
	MintCompanion(ctx context.Context, sbtID *big.Int, organizer, upgrader common.Address, fee *big.Int) (*chain.CompanionReceipt, error)
}

// AuditRecorder records companion events. Satisfied by *audit.Logger.
type AuditRecorder interface {
	Record(ctx context.Context, event audit.Event)
}

// ReasonCheckFailed is reported when the contract could not be read.
const ReasonCheckFailed = "Unable to check eligibility"

const defaultReadTimeout = 10 * time.Second

// MaxAuthorizationWindow caps how far ahead an upgrade authorization may expire.
const MaxAuthorizationWindow = 15 * time.Minute

// Upgrade authorization failures.
const (
	msgAuthorizationExpired  = "Upgrade authorization has expired"
	msgAuthorizationTooLong  = "Upgrade authorization expires too far in the future"
	msgAuthorizationMismatch = "Upgrade must be signed by the SBT holder"
	msgOrganizerNotAllowed   = "Organizer is not registered for companion upgrades"
)

// Eligibility is the contract's answer for one (sbtId, requester) pair.
type Eligibility struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason"`
}

// UpgradeRequest mints a companion for SBTID, paying Organizer its share.
// Signature is the requester's personal_sign over
// signer.BuildUpgradeDigest(SBTID, Organizer, Expiry).
type UpgradeRequest struct {
	SBTID     *big.Int
	Organizer common.Address
	Requester common.Address
	Expiry    time.Time
	Signature []byte
}

type Service struct {
	ledger      Ledger
	logger      *slog.Logger
	auditor     AuditRecorder
	metrics     *metrics.Metrics
	readTimeout time.Duration
	organizers  map[common.Address]struct{}
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditor(a AuditRecorder) Option {
	return func(s *Service) { s.auditor = a }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithReadTimeout bounds each eligibility, fee and balance read.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.readTimeout = d
		}
	}
}

// WithOrganizers restricts which addresses may receive the organizer share.
// With no organizers configured any address is accepted.
func WithOrganizers(addrs ...common.Address) Option {
	return func(s *Service) {
		if len(addrs) == 0 {
			return
		}
		s.organizers = make(map[common.Address]struct{}, len(addrs))
		for _, a := range addrs {
			s.organizers[a] = struct{}{}
		}
	}
}

func New(ledger Ledger, opts ...Option) *Service {
	s := &Service{ledger: ledger, readTimeout: defaultReadTimeout}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Check reads canMintCompanion. A failed read is reported as not eligible
// rather than as an error, so callers always get an answer to show.
func (s *Service) Check(ctx context.Context, sbtID *big.Int, requester common.Address) Eligibility {
	readCtx, cancel := context.WithTimeout(ctx, s.readTimeout)
	defer cancel()

	ok, reason, err := s.ledger.CanMintCompanion(readCtx, sbtID, requester)
	if err != nil {
		s.logger.ErrorContext(ctx, "companion eligibility read failed",
			"sbt_id", sbtID.String(),
			"requester", requester.Hex(),
			"error", err,
		)
		s.metrics.IncCompanionCheck(false)
		return Eligibility{Eligible: false, Reason: ReasonCheckFailed}
	}
	s.metrics.IncCompanionCheck(ok)
	return Eligibility{Eligible: ok, Reason: reason}
}

// Quote returns the current upgrade fee in wei, or chain.DefaultUpgradeFee
// when the contract cannot be read.
func (s *Service) Quote(ctx context.Context) *big.Int {
	readCtx, cancel := context.WithTimeout(ctx, s.readTimeout)
	defer cancel()

	fee, err := s.ledger.UpgradeFee(readCtx)
	if err != nil || fee == nil {
		s.logger.WarnContext(ctx, "upgrade fee read failed, using default",
			"default_wei", chain.DefaultUpgradeFee.String(),
			"error", err,
		)
		return new(big.Int).Set(chain.DefaultUpgradeFee)
	}
	return fee
}

// Balance returns how many SBTs owner holds.
func (s *Service) Balance(ctx context.Context, owner common.Address) (*big.Int, error) {
	readCtx, cancel := context.WithTimeout(ctx, s.readTimeout)
	defer cancel()

	n, err := s.ledger.BalanceOf(readCtx, owner)
	if err != nil {
		s.logger.ErrorContext(ctx, "balance read failed", "owner", owner.Hex(), "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "Unable to read SBT balance")
	}
	return n, nil
}

// Upgrade verifies the holder's signed consent, then re-checks eligibility
// immediately before paying the fee, so a stale client-side check never
// spends gas on a certain revert.
func (s *Service) Upgrade(ctx context.Context, req UpgradeRequest) (*chain.CompanionReceipt, error) {
	if err := s.authorize(ctx, req); err != nil {
		return nil, err
	}

	e := s.Check(ctx, req.SBTID, req.Requester)
	if !e.Eligible {
		if e.Reason == ReasonCheckFailed {
			return nil, dErrors.New(dErrors.CodeUnavailable, ReasonCheckFailed)
		}
		se := &chain.SubmissionError{Reason: eligibilityReason(e.Reason), Err: errors.New(e.Reason)}
		return nil, s.reject(ctx, req, se)
	}

	fee := s.Quote(ctx)
	receipt, err := s.ledger.MintCompanion(ctx, req.SBTID, req.Organizer, req.Requester, fee)
	if err != nil {
		return nil, s.reject(ctx, req, chain.Classify(err))
	}

	s.metrics.IncCompanionMint()
	s.logger.InfoContext(ctx, "companion minted",
		"sbt_id", req.SBTID.String(),
		"premium_id", receipt.PremiumTokenID.String(),
		"requester", req.Requester.Hex(),
		"organizer", req.Organizer.Hex(),
		"fee_wei", receipt.Fee.String(),
	)
	s.record(ctx, audit.Event{
		Action:  string(audit.EventCompanionMinted),
		Wallet:  req.Requester.Hex(),
		TokenID: receipt.PremiumTokenID.String(),
		TxHash:  receipt.TxHash.Hex(),
	})
	return receipt, nil
}

// authorize checks the holder's signed consent and the organizer before any
// fee is spent on the holder's behalf.
func (s *Service) authorize(ctx context.Context, req UpgradeRequest) error {
	now := requestcontext.Now(ctx)
	switch {
	case !req.Expiry.After(now):
		return s.deny(ctx, req, dErrors.CodeUnauthorized, msgAuthorizationExpired)
	case req.Expiry.After(now.Add(MaxAuthorizationWindow)):
		return s.deny(ctx, req, dErrors.CodeUnauthorized, msgAuthorizationTooLong)
	}

	d, err := signer.BuildUpgradeDigest(req.SBTID, req.Organizer, req.Expiry.Unix())
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid upgrade authorization")
	}
	holder, err := signer.Recover(d, req.Signature)
	if err != nil || holder != req.Requester {
		return s.deny(ctx, req, dErrors.CodeUnauthorized, msgAuthorizationMismatch)
	}

	if s.organizers != nil {
		if _, ok := s.organizers[req.Organizer]; !ok {
			return s.deny(ctx, req, dErrors.CodeForbidden, msgOrganizerNotAllowed)
		}
	}
	return nil
}

func (s *Service) deny(ctx context.Context, req UpgradeRequest, code dErrors.Code, msg string) error {
	s.logger.WarnContext(ctx, "companion upgrade not authorized",
		"sbt_id", req.SBTID.String(),
		"requester", req.Requester.Hex(),
		"organizer", req.Organizer.Hex(),
		"reason", msg,
	)
	s.record(ctx, audit.Event{
		Action:  string(audit.EventCompanionRejected),
		Wallet:  req.Requester.Hex(),
		TokenID: req.SBTID.String(),
		Reason:  string(code),
	})
	return dErrors.New(code, msg)
}

func (s *Service) reject(ctx context.Context, req UpgradeRequest, se *chain.SubmissionError) error {
	s.logger.WarnContext(ctx, "companion mint rejected",
		"sbt_id", req.SBTID.String(),
		"requester", req.Requester.Hex(),
		"reason", se.Reason,
		"error", se.Err,
	)
	ev := audit.Event{
		Action:  string(audit.EventCompanionRejected),
		Wallet:  req.Requester.Hex(),
		TokenID: req.SBTID.String(),
		Reason:  string(se.Reason),
	}
	if se.TxHash != (common.Hash{}) {
		ev.TxHash = se.TxHash.Hex()
	}
	s.record(ctx, ev)
	return dErrors.Wrap(se, rejectionCode(se.Reason), se.Message())
}

func (s *Service) record(ctx context.Context, e audit.Event) {
	if s.auditor != nil {
		s.auditor.Record(ctx, e)
	}
}

// eligibilityReason maps the contract's free-text reason onto a chain reason.
func eligibilityReason(text string) chain.Reason {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "not owned"), strings.Contains(t, "not the owner"):
		return chain.ReasonSBTNotOwned
	case strings.Contains(t, "already"):
		return chain.ReasonSBTAlreadyUpgraded
	default:
		return chain.ReasonReverted
	}
}

func rejectionCode(r chain.Reason) dErrors.Code {
	switch r {
	case chain.ReasonSBTNotOwned:
		return dErrors.CodeForbidden
	case chain.ReasonSBTAlreadyUpgraded:
		return dErrors.CodeConflict
	case chain.ReasonInsufficientFee, chain.ReasonInsufficientFunds, chain.ReasonUserRejected:
		return dErrors.CodeBadRequest
	case chain.ReasonUnavailable:
		return dErrors.CodeUnavailable
	default:
		return dErrors.CodeSubmissionFailed
	}
}
