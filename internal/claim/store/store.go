// Package store holds the claim code registry and its backends. Every
// mutation is a single atomic check-and-set per code; all backends return
// sentinel errors so the service can translate them exactly once.
package store

import (
	"context"
	"time"

	"merch/internal/claim/models"
)

// Store is the claim code registry.
type Store interface {
	// Get returns the stored record or sentinel.ErrNotFound. Codes must be normalized.
	Get(ctx context.Context, code string) (*models.ClaimCode, error)
	// MarkUsed atomically moves the code to Used for consumer. It fails with
	// sentinel.ErrAlreadyUsed, sentinel.ErrReserved or sentinel.ErrNotFound.
	MarkUsed(ctx context.Context, code, consumer string, now time.Time) (*models.ClaimCode, error)
	// Reserve atomically places or refreshes a hold until the given time.
	Reserve(ctx context.Context, code, holder string, now, until time.Time) (*models.ClaimCode, error)
	// Seed inserts codes that do not exist yet and reports how many were added.
	Seed(ctx context.Context, codes []models.ClaimCode) (int, error)
	// List returns all codes ordered by code.
	List(ctx context.Context) ([]models.ClaimCode, error)
}
