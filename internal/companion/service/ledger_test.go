package service

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"merch/internal/chain"
	"merch/internal/claim/models"
	"merch/internal/claim/signer"
	"merch/pkg/testutil"
)

func mintSBT(t *testing.T, l *chain.SimulatedLedger, sig *signer.Signer, auth models.MintAuthorization) *big.Int {
	t.Helper()
	d, err := signer.BuildDigest(auth.Recipient, auth.EventIDBig(), auth.TokenURI)
	require.NoError(t, err)
	auth.Signature, err = sig.Sign(d)
	require.NoError(t, err)
	r, err := l.SubmitMint(context.Background(), &auth)
	require.NoError(t, err)
	return r.TokenID
}

func TestUpgradedSBTIsIneligibleForEveryone(t *testing.T) {
	ctx := context.Background()
	sig, err := signer.NewFromHex(testutil.IssuerKey)
	require.NoError(t, err)
	ledger := chain.NewSimulatedLedger(sig.Issuer())
	svc := New(ledger, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	alice, bob := testutil.Wallets.Alice, testutil.Wallets.Bob
	sbt := mintSBT(t, ledger, sig, models.MintAuthorization{Recipient: alice, EventID: 42, TokenURI: "ipfs://QmMockHash42"})

	assert.Equal(t, Eligibility{Eligible: true, Reason: "Eligible"}, svc.Check(ctx, sbt, alice))
	assert.Equal(t, Eligibility{Eligible: false, Reason: "SBT not owned by user"}, svc.Check(ctx, sbt, bob))

	stolen := signedUpgrade(t, testutil.Wallets.BobKey, sbt, alice, time.Now().Add(time.Minute))
	_, err = svc.Upgrade(ctx, stolen)
	require.Error(t, err)
	assert.Equal(t, Eligibility{Eligible: true, Reason: "Eligible"}, svc.Check(ctx, sbt, alice))

	receipt, err := svc.Upgrade(ctx, signedUpgrade(t, testutil.Wallets.AliceKey, sbt, alice, time.Now().Add(time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, int64(1), receipt.PremiumTokenID.Int64())
	assert.Equal(t, "625000000000000", ledger.Payout(organizer).String())

	for _, requester := range []struct {
		name string
		addr common.Address
	}{{"owner", alice}, {"stranger", bob}} {
		e := svc.Check(ctx, sbt, requester.addr)
		assert.Equal(t, Eligibility{Eligible: false, Reason: "already upgraded"}, e, requester.name)
	}

	balance, err := svc.Balance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(1), balance.Int64())
}
