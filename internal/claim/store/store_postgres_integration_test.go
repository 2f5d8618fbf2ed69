//go:build integration

package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"merch/internal/claim/store"
	"merch/pkg/testutil"
	"merch/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	contractSuite
	postgres *containers.PostgresContainer
	pg       *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.pg = store.NewPostgres(s.postgres.DB)
	s.store = s.pg
	s.now = testutil.FixedTime
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "claim_codes"))
}

func (s *PostgresStoreSuite) TestSchemaRejectsUsedWithoutConsumer() {
	_, err := s.postgres.Exec(context.Background(), `
		INSERT INTO claim_codes (code, status, event_id, token_uri) VALUES ('BROKEN', 'used', 1, 'ipfs://x')
	`)
	s.Error(err)
}

func (s *PostgresStoreSuite) TestHealth() {
	s.NoError(s.pg.Health(context.Background()))
}
