package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"merch/internal/claim/models"
	"merch/pkg/platform/sentinel"
)

// PostgresStore persists codes in the claim_codes table. Transitions are
// single conditional UPDATEs so concurrent requests serialize on the row.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const claimCodeColumns = `code, status, event_id, token_uri, reserved_by, reserved_until, used_by, used_at, created_at`

// availableFor matches rows that $2 may consume or reserve at time $3.
const availableFor = `
	status <> 'used'
	AND (status <> 'reserved' OR reserved_until <= $3 OR lower(reserved_by) = lower($2))`

func (s *PostgresStore) Get(ctx context.Context, code string) (*models.ClaimCode, error) {
	query := `SELECT ` + claimCodeColumns + ` FROM claim_codes WHERE code = $1`
	c, err := scanClaimCode(s.db.QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find claim code: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) MarkUsed(ctx context.Context, code, consumer string, now time.Time) (*models.ClaimCode, error) {
	query := `
		UPDATE claim_codes
		SET status = 'used', used_by = $2, used_at = $3, reserved_by = NULL, reserved_until = NULL
		WHERE code = $1 AND` + availableFor + `
		RETURNING ` + claimCodeColumns
	c, err := scanClaimCode(s.db.QueryRowContext(ctx, query, code, consumer, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.explainRejection(ctx, code, consumer, now)
		}
		return nil, fmt.Errorf("mark claim code used: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) Reserve(ctx context.Context, code, holder string, now, until time.Time) (*models.ClaimCode, error) {
	query := `
		UPDATE claim_codes
		SET status = 'reserved', reserved_by = $2, reserved_until = $4
		WHERE code = $1 AND` + availableFor + `
		RETURNING ` + claimCodeColumns
	c, err := scanClaimCode(s.db.QueryRowContext(ctx, query, code, holder, now, until))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.explainRejection(ctx, code, holder, now)
		}
		return nil, fmt.Errorf("reserve claim code: %w", err)
	}
	return c, nil
}

// explainRejection reads the row after a conditional UPDATE matched nothing.
// The row can only have moved towards Used since, so the answer stays valid.
func (s *PostgresStore) explainRejection(ctx context.Context, code, who string, now time.Time) error {
	c, err := s.Get(ctx, code)
	if err != nil {
		return err
	}
	if err := c.CheckConsumable(who, now); err != nil {
		return err
	}
	return sentinel.ErrConflict
}

func (s *PostgresStore) Seed(ctx context.Context, codes []models.ClaimCode) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO claim_codes (code, status, event_id, token_uri, created_at)
		VALUES ($1, 'unused', $2, $3, $4)
		ON CONFLICT (code) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("prepare seed: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, c := range codes {
		res, err := stmt.ExecContext(ctx, c.Code, int64(c.EventID), c.TokenURI, c.CreatedAt)
		if err != nil {
			return 0, fmt.Errorf("seed claim code %s: %w", c.Code, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("seed rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit seed: %w", err)
	}
	return inserted, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]models.ClaimCode, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+claimCodeColumns+` FROM claim_codes ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("list claim codes: %w", err)
	}
	defer rows.Close()

	var out []models.ClaimCode
	for rows.Next() {
		c, err := scanClaimCode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim code: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaimCode(row rowScanner) (*models.ClaimCode, error) {
	var (
		c             models.ClaimCode
		status        string
		eventID       int64
		reservedBy    sql.NullString
		reservedUntil sql.NullTime
		usedBy        sql.NullString
		usedAt        sql.NullTime
	)
	if err := row.Scan(&c.Code, &status, &eventID, &c.TokenURI, &reservedBy, &reservedUntil, &usedBy, &usedAt, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Status = models.Status(status)
	c.EventID = uint64(eventID)
	c.ReservedBy = reservedBy.String
	c.UsedBy = usedBy.String
	if reservedUntil.Valid {
		c.ReservedUntil = reservedUntil.Time.UTC()
	}
	if usedAt.Valid {
		c.UsedAt = usedAt.Time.UTC()
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}
