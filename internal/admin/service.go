package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"merch/internal/admin/types"
	"merch/internal/claim/models"
	"merch/internal/claim/store"
	dErrors "merch/pkg/domain-errors"
	"merch/pkg/platform/audit"
	"merch/pkg/requestcontext"
	"merch/pkg/validation"
)

// CodeStore is the registry surface operators manage.
type CodeStore interface {
	Seed(ctx context.Context, codes []models.ClaimCode) (int, error)
	List(ctx context.Context) ([]models.ClaimCode, error)
}

// AuditRecorder records operator actions. Satisfied by *audit.Logger.
type AuditRecorder interface {
	Record(ctx context.Context, event audit.Event)
}

// Service provides operator-level registry inspection and seeding.
type Service struct {
	codes        CodeStore
	tokenURIBase string
	auditor      AuditRecorder
	logger       *slog.Logger
}

// NewService creates a new admin service. New codes get their binding
// derived from tokenURIBase unless the entry pins one.
func NewService(codes CodeStore, tokenURIBase string, auditor AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{codes: codes, tokenURIBase: tokenURIBase, auditor: auditor, logger: logger}
}

// ListCodes returns every code with counts by effective status.
func (s *Service) ListCodes(ctx context.Context) (*types.CodeList, error) {
	codes, err := s.codes.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list codes")
	}
	now := requestcontext.Now(ctx)
	out := &types.CodeList{Total: len(codes), Codes: make([]types.CodeView, 0, len(codes))}
	for i := range codes {
		c := &codes[i]
		v := types.CodeView{
			Code:     c.Code,
			Status:   c.EffectiveStatus(now),
			EventID:  c.EventID,
			TokenURI: c.TokenURI,
			UsedBy:   c.UsedBy,
		}
		switch v.Status {
		case models.StatusUnused:
			out.Unused++
		case models.StatusReserved:
			out.Reserved++
			v.ReservedBy = c.ReservedBy
			v.ReservedUntil = timePtr(c.ReservedUntil)
		case models.StatusUsed:
			out.Used++
			v.UsedAt = timePtr(c.UsedAt)
		}
		out.Codes = append(out.Codes, v)
	}
	return out, nil
}

// SeedCodes adds codes that are not yet registered. Existing codes, used or
// not, are left untouched.
func (s *Service) SeedCodes(ctx context.Context, entries []store.SeedEntry) (*types.SeedResult, error) {
	if len(entries) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "codes is required")
	}
	if err := validation.CheckSliceCount("codes", len(entries), validation.MaxSeedBatch); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	batch := make([]models.ClaimCode, 0, len(entries))
	for _, e := range entries {
		e.Code = models.NormalizeCode(e.Code)
		if !validation.IsClaimCode(e.Code) {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid claim code %q", e.Code))
		}
		if err := validation.CheckStringLength("tokenURI", e.TokenURI, validation.MaxTokenURILength); err != nil {
			return nil, err
		}
		batch = append(batch, store.NewSeedCode(e, s.tokenURIBase, now))
	}

	added, err := s.codes.Seed(ctx, batch)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to seed codes")
	}
	s.logger.InfoContext(ctx, "codes seeded",
		"submitted", len(batch),
		"added", added,
		"actor", requestcontext.AdminActor(ctx),
	)
	if s.auditor != nil {
		s.auditor.Record(ctx, audit.Event{
			Action: string(audit.EventCodesSeeded),
			Actor:  requestcontext.AdminActor(ctx),
			Reason: fmt.Sprintf("added %d of %d", added, len(batch)),
		})
	}
	return &types.SeedResult{Submitted: len(batch), Added: added}, nil
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
