package service

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"merch/internal/chain"
	"merch/internal/claim/models"
	"merch/internal/claim/signer"
	dErrors "merch/pkg/domain-errors"
	"merch/pkg/platform/audit"
	"merch/pkg/platform/privacy"
)

// AuthorizeRequest carries the binding the client read from validate.
type AuthorizeRequest struct {
	Code      string
	Recipient common.Address
	EventID   uint64
	TokenURI  string
}

// ReserveRequest places a short hold on a code for one wallet.
type ReserveRequest struct {
	Code      string
	Wallet    common.Address
	EventName string
	Email     string
}

// ClaimResult is returned by a relayed claim.
type ClaimResult struct {
	Authorization *models.MintAuthorization
	Receipt       *chain.MintReceipt
}

// Validate reports whether code can still be claimed. It never mutates the
// registry. A code reserved by anyone is still reported valid; the hold is
// enforced when the code is consumed.
func (s *Service) Validate(ctx context.Context, code string) (*models.ClaimCode, error) {
	code = models.NormalizeCode(code)
	if code == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "Missing required parameters")
	}
	c, err := s.codes.Get(ctx, code)
	if err != nil {
		err = translateRegistryError(err)
		s.metrics.IncValidated(string(dErrors.CodeOf(err)))
		return nil, err
	}
	if c.Status == models.StatusUsed {
		s.metrics.IncValidated(string(dErrors.CodeClaimUsed))
		return nil, dErrors.New(dErrors.CodeClaimUsed, "Code already used")
	}
	s.metrics.IncValidated("valid")
	return c, nil
}

// Authorize consumes the code and returns the issuer's signature for the
// recipient. The requested binding must equal the code's binding.
//
// The code is consumed before signing and nothing compensates a later
// failure: a consumed code never returns to the pool.
func (s *Service) Authorize(ctx context.Context, req AuthorizeRequest) (*models.MintAuthorization, error) {
	c, err := s.Validate(ctx, req.Code)
	if err != nil {
		return nil, s.fail(ctx, models.PhaseValidate, req.Code, req.Recipient, err)
	}
	if req.EventID != c.EventID || req.TokenURI != c.TokenURI {
		err := dErrors.New(dErrors.CodeBadRequest, "eventId and tokenURI do not match the claim code")
		return nil, s.fail(ctx, models.PhaseValidate, c.Code, req.Recipient, err)
	}
	return s.consumeAndSign(ctx, c, req.Recipient)
}

// Claim runs the whole flow server side: validate, consume, sign and submit
// through the relayer within the submit timeout. There is no automatic retry.
func (s *Service) Claim(ctx context.Context, code string, recipient common.Address) (*ClaimResult, error) {
	if s.submitter == nil {
		return nil, dErrors.New(dErrors.CodeUnavailable, "chain submission is not configured")
	}
	c, err := s.Validate(ctx, code)
	if err != nil {
		return nil, s.fail(ctx, models.PhaseValidate, code, recipient, err)
	}
	auth, err := s.consumeAndSign(ctx, c, recipient)
	if err != nil {
		return nil, err
	}

	submitCtx, cancel := context.WithTimeout(ctx, s.submitTimeout)
	defer cancel()
	started := time.Now()
	receipt, err := s.submitter.SubmitMint(submitCtx, auth)
	s.metrics.ObserveSubmission(time.Since(started).Seconds())
	if err != nil {
		se := chain.Classify(err)
		return nil, s.fail(ctx, models.PhaseSubmit, c.Code, recipient,
			dErrors.Wrap(se, dErrors.CodeSubmissionFailed, se.Message()))
	}

	s.record(ctx, audit.Event{
		Action:  string(audit.EventMintSubmitted),
		Code:    c.Code,
		Wallet:  recipient.Hex(),
		EventID: c.EventID,
		TokenID: bigString(receipt.TokenID),
		TxHash:  receipt.TxHash.Hex(),
	})
	return &ClaimResult{Authorization: auth, Receipt: receipt}, nil
}

func (s *Service) consumeAndSign(ctx context.Context, c *models.ClaimCode, recipient common.Address) (*models.MintAuthorization, error) {
	consumed, err := s.codes.MarkUsed(ctx, c.Code, recipient.Hex(), s.now(ctx))
	if err != nil {
		return nil, s.fail(ctx, models.PhaseConsume, c.Code, recipient, translateRegistryError(err))
	}
	s.metrics.IncConsumed()
	s.record(ctx, audit.Event{
		Action:  string(audit.EventCodeConsumed),
		Code:    consumed.Code,
		Wallet:  recipient.Hex(),
		EventID: consumed.EventID,
	})

	digest, err := signer.BuildDigest(recipient, new(big.Int).SetUint64(consumed.EventID), consumed.TokenURI)
	if err != nil {
		return nil, s.fail(ctx, models.PhaseSign, c.Code, recipient, dErrors.Wrap(err, dErrors.CodeSigningFailed, "Failed to sign mint"))
	}
	sig, err := s.signer.Sign(digest)
	if err != nil {
		return nil, s.fail(ctx, models.PhaseSign, c.Code, recipient, dErrors.Wrap(err, dErrors.CodeSigningFailed, "Failed to sign mint"))
	}

	auth := &models.MintAuthorization{
		Recipient:            recipient,
		EventID:              consumed.EventID,
		TokenURI:             consumed.TokenURI,
		Signature:            sig,
		Issuer:               s.signer.Issuer(),
		MessageHash:          digest.Message,
		EthSignedMessageHash: digest.EthSigned,
	}
	s.metrics.IncAuthorized()
	s.logger.InfoContext(ctx, "mint authorized",
		"code", consumed.Code,
		"recipient", recipient.Hex(),
		"event_id", consumed.EventID,
		"digest", privacy.ShortHex(digest.EthSigned.Hex()),
	)
	s.record(ctx, audit.Event{
		Action:  string(audit.EventMintAuthorized),
		Code:    consumed.Code,
		Wallet:  recipient.Hex(),
		EventID: consumed.EventID,
	})
	return auth, nil
}

// Reserve holds a code for one wallet for the reservation TTL.
func (s *Service) Reserve(ctx context.Context, req ReserveRequest) (*models.Reservation, error) {
	c, err := s.Validate(ctx, req.Code)
	if err != nil {
		return nil, s.fail(ctx, models.PhaseValidate, req.Code, req.Wallet, err)
	}
	now := s.now(ctx)
	until := now.Add(s.reservationTTL)
	if _, err := s.codes.Reserve(ctx, c.Code, req.Wallet.Hex(), now, until); err != nil {
		return nil, s.fail(ctx, models.PhaseConsume, c.Code, req.Wallet, translateRegistryError(err))
	}

	res := &models.Reservation{
		ReservationID: "RES-" + uuid.NewString(),
		Code:          c.Code,
		Wallet:        req.Wallet.Hex(),
		EventName:     strings.TrimSpace(req.EventName),
		Email:         strings.TrimSpace(req.Email),
		EventID:       c.EventID,
		TokenURI:      c.TokenURI,
		ReservedAt:    now,
		ExpiresAt:     until,
	}
	s.metrics.IncReserved()
	s.logger.InfoContext(ctx, "code reserved",
		"code", c.Code,
		"wallet", res.Wallet,
		"email", privacy.MaskEmail(res.Email),
		"expires_at", until,
	)
	s.record(ctx, audit.Event{
		Action:  string(audit.EventCodeReserved),
		Code:    c.Code,
		Wallet:  res.Wallet,
		EventID: c.EventID,
	})
	return res, nil
}

// fail logs, audits and counts a failure, then tags it with its phase.
func (s *Service) fail(ctx context.Context, phase models.Phase, code string, wallet common.Address, err error) error {
	reason := string(dErrors.CodeOf(err))
	var se *chain.SubmissionError
	if errors.As(err, &se) {
		reason = string(se.Reason)
	}

	level := s.logger.WarnContext
	if phase == models.PhaseSign || dErrors.HasCode(err, dErrors.CodeInternal) {
		level = s.logger.ErrorContext
	}
	level(ctx, "claim failed",
		"phase", phase,
		"reason", reason,
		"code", models.NormalizeCode(code),
		"wallet", wallet.Hex(),
		"error", err,
	)
	s.metrics.IncClaimFailure(string(phase), reason)
	ev := audit.Event{
		Action: string(audit.EventClaimFailed),
		Code:   models.NormalizeCode(code),
		Wallet: wallet.Hex(),
		Phase:  string(phase),
		Reason: reason,
	}
	if se != nil && se.TxHash != (common.Hash{}) {
		ev.TxHash = se.TxHash.Hex()
	}
	s.record(ctx, ev)
	return &ClaimError{Phase: phase, Reason: reason, Err: err}
}

func bigString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}
