package store_test

import (
	"context"
	"strings"
	"time"

	"github.com/stretchr/testify/suite"

	"merch/internal/claim/models"
	"merch/internal/claim/store"
	"merch/pkg/platform/sentinel"
	"merch/pkg/testutil"
)

// contractSuite holds the behaviour every registry backend must share.
// Backend suites embed it and assign newStore in SetupTest.
type contractSuite struct {
	suite.Suite
	store store.Store
	now   time.Time
}

const (
	alice = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	bob   = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
)

func (s *contractSuite) seed(codes ...string) {
	batch := make([]models.ClaimCode, 0, len(codes))
	for _, c := range codes {
		batch = append(batch, models.NewClaimCode(c, "", s.now))
	}
	_, err := s.store.Seed(context.Background(), batch)
	s.Require().NoError(err)
}

func (s *contractSuite) TestSeedIsIdempotent() {
	ctx := context.Background()
	codes := []models.ClaimCode{
		models.NewClaimCode("DEMO123", "", s.now),
		models.NewClaimCode("EVENT2025", "", s.now),
	}

	n, err := s.store.Seed(ctx, codes)
	s.Require().NoError(err)
	s.Equal(2, n)

	_, err = s.store.MarkUsed(ctx, "DEMO123", alice, s.now)
	s.Require().NoError(err)

	n, err = s.store.Seed(ctx, codes)
	s.Require().NoError(err)
	s.Equal(0, n)

	got, err := s.store.Get(ctx, "DEMO123")
	s.Require().NoError(err)
	s.Equal(models.StatusUsed, got.Status, "re-seeding must not resurrect a used code")
}

func (s *contractSuite) TestGet() {
	s.seed("DEMO123")

	s.Run("returns derived binding", func() {
		got, err := s.store.Get(context.Background(), "DEMO123")
		s.Require().NoError(err)
		s.Equal(models.StatusUnused, got.Status)
		s.Equal(uint64(183236), got.EventID)
		s.Equal("ipfs://QmMockHash183236", got.TokenURI)
	})

	s.Run("unknown code is not found", func() {
		_, err := s.store.Get(context.Background(), "NOPE")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *contractSuite) TestMarkUsed() {
	ctx := context.Background()
	s.seed("DEMO123")

	s.Run("first consumer wins", func() {
		got, err := s.store.MarkUsed(ctx, "DEMO123", alice, s.now)
		s.Require().NoError(err)
		s.Equal(models.StatusUsed, got.Status)
		s.Equal(alice, got.UsedBy)
		s.WithinDuration(s.now, got.UsedAt, time.Millisecond)
	})

	s.Run("second consumer is rejected", func() {
		_, err := s.store.MarkUsed(ctx, "DEMO123", bob, s.now)
		s.ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("same consumer cannot reuse", func() {
		_, err := s.store.MarkUsed(ctx, "DEMO123", alice, s.now)
		s.ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("unknown code", func() {
		_, err := s.store.MarkUsed(ctx, "NOPE", alice, s.now)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *contractSuite) TestReservation() {
	ctx := context.Background()
	s.seed("DEMO123", "TEST456", "EVENT2025")
	until := s.now.Add(15 * time.Minute)

	s.Run("holder reserves and may refresh", func() {
		got, err := s.store.Reserve(ctx, "DEMO123", alice, s.now, until)
		s.Require().NoError(err)
		s.Equal(models.StatusReserved, got.Status)
		s.Equal(alice, got.ReservedBy)

		_, err = s.store.Reserve(ctx, "DEMO123", strings.ToLower(alice), s.now, until.Add(time.Minute))
		s.NoError(err)
	})

	s.Run("other wallet is blocked while hold is live", func() {
		_, err := s.store.Reserve(ctx, "DEMO123", bob, s.now, until)
		s.ErrorIs(err, sentinel.ErrReserved)

		_, err = s.store.MarkUsed(ctx, "DEMO123", bob, s.now)
		s.ErrorIs(err, sentinel.ErrReserved)
	})

	s.Run("holder consumes its reservation", func() {
		got, err := s.store.MarkUsed(ctx, "DEMO123", alice, s.now.Add(time.Minute))
		s.Require().NoError(err)
		s.Equal(models.StatusUsed, got.Status)
		s.Empty(got.ReservedBy)
	})

	s.Run("expired hold is free for anyone", func() {
		_, err := s.store.Reserve(ctx, "TEST456", alice, s.now, until)
		s.Require().NoError(err)

		got, err := s.store.MarkUsed(ctx, "TEST456", bob, until)
		s.Require().NoError(err)
		s.Equal(bob, got.UsedBy)
	})

	s.Run("expired hold can be taken over", func() {
		_, err := s.store.Reserve(ctx, "EVENT2025", alice, s.now, until)
		s.Require().NoError(err)

		got, err := s.store.Reserve(ctx, "EVENT2025", bob, until.Add(time.Second), until.Add(time.Hour))
		s.Require().NoError(err)
		s.Equal(bob, got.ReservedBy)
	})

	s.Run("used code cannot be reserved", func() {
		_, err := s.store.Reserve(ctx, "DEMO123", alice, s.now, until)
		s.ErrorIs(err, sentinel.ErrAlreadyUsed)
	})
}

func (s *contractSuite) TestConcurrentMarkUsedHasOneWinner() {
	s.seed("DEMO123")

	const goroutines = 50
	result := testutil.RunConcurrent(goroutines, func(idx int) error {
		wallet := alice
		if idx%2 == 1 {
			wallet = bob
		}
		_, err := s.store.MarkUsed(context.Background(), "DEMO123", wallet, s.now)
		return err
	})

	s.Equal(int32(1), result.Successes)
	s.Equal(int32(goroutines-1), result.Conflicts)
	s.Zero(result.Errors)
}

func (s *contractSuite) TestListIsOrderedByCode() {
	s.seed("TEST456", "DEMO123", "EVENT2025")

	got, err := s.store.List(context.Background())
	s.Require().NoError(err)
	s.Require().Len(got, 3)
	s.Equal("DEMO123", got[0].Code)
	s.Equal("EVENT2025", got[1].Code)
	s.Equal("TEST456", got[2].Code)
}
