package signer

import (
	"encoding/hex"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"merch/pkg/testutil"
)

var secp256k1HalfN = new(big.Int).Rsh(crypto.S256().Params().N, 1)

func TestBuildDigestVectors(t *testing.T) {
	tests := []struct {
		name      string
		recipient common.Address
		eventID   int64
		tokenURI  string
		inner     string
		outer     string
	}{
		{
			name:      "alice event 42",
			recipient: testutil.Wallets.Alice,
			eventID:   42,
			tokenURI:  "ipfs://QmMockHash42",
			inner:     "0xecd3ae75da0703e454dac3e92e70b8ff2218425a9cf8ef2ff21fc485ce071487",
			outer:     "0x8aa6a0b73bfccffe6b21ede8f789c8473f2242dc518f97325b7577276767f4d0",
		},
		{
			name:      "alice event 43",
			recipient: testutil.Wallets.Alice,
			eventID:   43,
			tokenURI:  "ipfs://QmMockHash43",
			inner:     "0x3900be9796a0167db7fecefae7dae827a56897288e4a4158274837f9f016a9ec",
			outer:     "0xb8add16bbf48774c2c69124d2a54555f3e045bd0860dffb175ca40d0e840d4fe",
		},
		{
			name:      "bob event 42",
			recipient: testutil.Wallets.Bob,
			eventID:   42,
			tokenURI:  "ipfs://QmMockHash42",
			inner:     "0xd2f5174e9751d1651776c07c7d9aa4d2346f7348474fd32c95682987492259ef",
			outer:     "0x02057a6c5f37da40e066c971a5f12306e9a48862ac5317ffb3a6c2aeb5dc1a96",
		},
		{
			name:      "empty token uri",
			recipient: testutil.Wallets.Alice,
			eventID:   42,
			tokenURI:  "",
			inner:     "0x9a570a94d70a6117ef24b56e6fb2b998133486162be606e34f4b19088e0c0d34",
			outer:     "0x00f38283f1ee673be803d6176ac71e83da56ced6be92348c90fc909d0b99b85b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := BuildDigest(tt.recipient, big.NewInt(tt.eventID), tt.tokenURI)
			require.NoError(t, err)
			assert.Equal(t, common.HexToHash(tt.inner), d.Message)
			assert.Equal(t, common.HexToHash(tt.outer), d.EthSigned)
		})
	}
}

func TestBuildDigestRejectsOutOfRangeEventID(t *testing.T) {
	_, err := BuildDigest(testutil.Wallets.Alice, big.NewInt(-1), "x")
	assert.Error(t, err)

	tooBig := new(big.Int).Lsh(big.NewInt(1), 256)
	_, err = BuildDigest(testutil.Wallets.Alice, tooBig, "x")
	assert.Error(t, err)

	_, err = BuildDigest(testutil.Wallets.Alice, nil, "x")
	assert.Error(t, err)
}

func TestBuildDigestDoesNotMutateEventID(t *testing.T) {
	id := big.NewInt(42)
	_, err := BuildDigest(testutil.Wallets.Alice, id, "x")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id.Int64())
}

type SignerSuite struct {
	suite.Suite
	signer *Signer
	digest Digest
}

func TestBuildUpgradeDigest(t *testing.T) {
	organizer := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	expiry := testutil.FixedTime.Add(time.Hour).Unix()

	d, err := BuildUpgradeDigest(big.NewInt(3), organizer, expiry)
	require.NoError(t, err)
	assert.Equal(t, "0x69efc547585ca399b7d9898fcf16274233f4b640e0e803391a29120778dda998", d.Message.Hex())
	assert.Equal(t, "0x838cc52a886ed1d287c83e0d1ba7a605b9a3ca59a29cc5fce37ae19d0e6928ed", d.EthSigned.Hex())

	t.Run("every field is bound", func(t *testing.T) {
		for name, build := range map[string]func() (Digest, error){
			"sbt":       func() (Digest, error) { return BuildUpgradeDigest(big.NewInt(4), organizer, expiry) },
			"organizer": func() (Digest, error) { return BuildUpgradeDigest(big.NewInt(3), testutil.Wallets.Bob, expiry) },
			"expiry":    func() (Digest, error) { return BuildUpgradeDigest(big.NewInt(3), organizer, expiry+1) },
		} {
			other, err := build()
			require.NoError(t, err, name)
			assert.NotEqual(t, d.EthSigned, other.EthSigned, name)
		}
	})

	t.Run("never collides with a mint digest", func(t *testing.T) {
		mint, err := BuildDigest(organizer, big.NewInt(3), "")
		require.NoError(t, err)
		assert.NotEqual(t, mint.EthSigned, d.EthSigned)
	})

	t.Run("holder signature recovers to the holder", func(t *testing.T) {
		holder, err := NewFromHex(testutil.Wallets.AliceKey)
		require.NoError(t, err)
		sig, err := holder.Sign(d)
		require.NoError(t, err)
		got, err := Recover(d, sig)
		require.NoError(t, err)
		assert.Equal(t, testutil.Wallets.Alice, got)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		_, err := BuildUpgradeDigest(big.NewInt(-1), organizer, expiry)
		assert.Error(t, err)
		_, err = BuildUpgradeDigest(big.NewInt(3), organizer, 0)
		assert.Error(t, err)
	})
}

func TestSignerSuite(t *testing.T) {
	suite.Run(t, new(SignerSuite))
}

func (s *SignerSuite) SetupTest() {
	var err error
	s.signer, err = NewFromHex(testutil.IssuerKey)
	s.Require().NoError(err)
	s.digest, err = BuildDigest(testutil.Wallets.Alice, big.NewInt(42), "ipfs://QmMockHash42")
	s.Require().NoError(err)
}

func (s *SignerSuite) TestIssuerAddress() {
	s.Equal(testutil.IssuerAddress, s.signer.Issuer())

	withoutPrefix, err := NewFromHex(testutil.IssuerKey[2:])
	s.Require().NoError(err)
	s.Equal(testutil.IssuerAddress, withoutPrefix.Issuer())
}

func (s *SignerSuite) TestSignatureShape() {
	sig, err := s.signer.Sign(s.digest)
	s.Require().NoError(err)
	s.Require().Len(sig, SignatureLength)

	v := sig[64]
	s.Contains([]byte{27, 28}, v)

	sVal := new(big.Int).SetBytes(sig[32:64])
	s.LessOrEqual(sVal.Cmp(secp256k1HalfN), 0, "signature must be low-s")
}

func (s *SignerSuite) TestSignIsDeterministic() {
	a, err := s.signer.Sign(s.digest)
	s.Require().NoError(err)
	b, err := s.signer.Sign(s.digest)
	s.Require().NoError(err)
	s.Equal(hex.EncodeToString(a), hex.EncodeToString(b))
}

func (s *SignerSuite) TestRecoverRoundTrip() {
	sig, err := s.signer.Sign(s.digest)
	s.Require().NoError(err)

	s.Run("recovers issuer", func() {
		addr, err := Recover(s.digest, sig)
		s.Require().NoError(err)
		s.Equal(testutil.IssuerAddress, addr)
	})

	s.Run("accepts raw recovery id", func() {
		raw := append([]byte(nil), sig...)
		raw[64] -= 27
		addr, err := Recover(s.digest, raw)
		s.Require().NoError(err)
		s.Equal(testutil.IssuerAddress, addr)
	})

	s.Run("different digest recovers a different address", func() {
		other, err := BuildDigest(testutil.Wallets.Bob, big.NewInt(42), "ipfs://QmMockHash42")
		s.Require().NoError(err)
		addr, err := Recover(other, sig)
		if err == nil {
			s.NotEqual(testutil.IssuerAddress, addr)
		}
	})

	s.Run("rejects malformed signatures", func() {
		_, err := Recover(s.digest, sig[:64])
		s.ErrorIs(err, ErrInvalidSignature)

		bad := append([]byte(nil), sig...)
		bad[64] = 5
		_, err = Recover(s.digest, bad)
		s.ErrorIs(err, ErrInvalidSignature)
	})
}

func (s *SignerSuite) TestInvalidKey() {
	for _, key := range []string{"", "0x12", "not-hex", "0x" + string(make([]byte, 64))} {
		_, err := NewFromHex(key)
		s.ErrorIs(err, ErrInvalidKey, "key %q", key)
	}
}

func TestNilSignerFails(t *testing.T) {
	var s *Signer
	_, err := s.Sign(Digest{})
	var signErr *SigningError
	require.ErrorAs(t, err, &signErr)
	assert.ErrorIs(t, err, ErrInvalidKey)
}
