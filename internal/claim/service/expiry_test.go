package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"merch/internal/chain"
	"merch/internal/claim/models"
	"merch/internal/claim/signer"
	"merch/internal/claim/store"
	dErrors "merch/pkg/domain-errors"
	"merch/pkg/testutil"
)

func TestExpiredReservationIsReleasedLazily(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewMutableClock(testutil.FixedTime)

	codes := store.NewInMemory()
	_, err := codes.Seed(ctx, []models.ClaimCode{models.NewClaimCode("DEMO123", "", clock.Now())})
	require.NoError(t, err)
	sig, err := signer.NewFromHex(testutil.IssuerKey)
	require.NoError(t, err)
	svc := New(codes, sig,
		WithClock(clock.Now),
		WithSubmitter(chain.NewSimulatedLedger(sig.Issuer())),
		WithReservationTTL(15*time.Minute),
	)

	res, err := svc.Reserve(ctx, ReserveRequest{Code: "DEMO123", Wallet: testutil.Wallets.Alice, EventName: "Base Meetup"})
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(15*time.Minute), res.ExpiresAt)

	clock.Advance(14 * time.Minute)
	_, err = svc.Claim(ctx, "DEMO123", testutil.Wallets.Bob)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeClaimReserved), "unexpected error: %v", err)

	clock.Advance(2 * time.Minute)
	got, err := svc.Validate(ctx, "DEMO123")
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnused, got.EffectiveStatus(clock.Now()))

	result, err := svc.Claim(ctx, "DEMO123", testutil.Wallets.Bob)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Receipt.TokenID.Int64())
}
