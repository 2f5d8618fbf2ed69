// Package service orchestrates the claim flow: validate a code, consume it,
// sign the mint authorization and optionally relay it on chain.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"merch/internal/chain"
	"merch/internal/claim/models"
	"merch/internal/claim/signer"
	"merch/internal/platform/metrics"
	"merch/pkg/platform/audit"
	"merch/pkg/requestcontext"
)

// CodeStore is the part of the registry the orchestrator needs.
// Error contract: sentinel.ErrNotFound, ErrAlreadyUsed and ErrReserved.
type CodeStore interface {
	Get(ctx context.Context, code string) (*models.ClaimCode, error)
	MarkUsed(ctx context.Context, code, consumer string, now time.Time) (*models.ClaimCode, error)
	Reserve(ctx context.Context, code, holder string, now, until time.Time) (*models.ClaimCode, error)
}

// Signer produces issuer signatures.
type Signer interface {
	Issuer() common.Address
	Sign(d signer.Digest) ([]byte, error)
}

// Submitter relays a signed authorization.
type Submitter interface {
	SubmitMint(ctx context.Context, auth *models.MintAuthorization) (*chain.MintReceipt, error)
}

// AuditRecorder records claim lifecycle events. Satisfied by *audit.Logger.
type AuditRecorder interface {
	Record(ctx context.Context, event audit.Event)
}

const (
	defaultSubmitTimeout  = 30 * time.Second
	defaultReservationTTL = 15 * time.Minute
)

type Service struct {
	codes          CodeStore
	signer         Signer
	submitter      Submitter
	logger         *slog.Logger
	auditor        AuditRecorder
	metrics        *metrics.Metrics
	clock          func() time.Time
	submitTimeout  time.Duration
	reservationTTL time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditor(a AuditRecorder) Option {
	return func(s *Service) {
		s.auditor = a
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock pins the time source; by default the request time is used.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithSubmitter enables Claim. Without one only validate, authorize and reserve work.
func WithSubmitter(sub Submitter) Option {
	return func(s *Service) {
		s.submitter = sub
	}
}

func WithSubmitTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.submitTimeout = d
		}
	}
}

func WithReservationTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.reservationTTL = d
		}
	}
}

func New(codes CodeStore, sig Signer, opts ...Option) *Service {
	svc := &Service{
		codes:          codes,
		signer:         sig,
		submitTimeout:  defaultSubmitTimeout,
		reservationTTL: defaultReservationTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

// Issuer is the address the contract must trust.
func (s *Service) Issuer() common.Address {
	return s.signer.Issuer()
}

func (s *Service) now(ctx context.Context) time.Time {
	if s.clock != nil {
		return s.clock()
	}
	return requestcontext.Now(ctx)
}

func (s *Service) record(ctx context.Context, e audit.Event) {
	if s.auditor != nil {
		s.auditor.Record(ctx, e)
	}
}
