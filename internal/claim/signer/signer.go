// Package signer produces issuer signatures over mint digests in the
// personal_sign format the credential contract verifies with ecrecover.
package signer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is r(32) || s(32) || v(1).
const SignatureLength = crypto.SignatureLength

const personalSignPrefix = "\x19Ethereum Signed Message:\n32"

var (
	// ErrInvalidKey is returned when the issuer key cannot be parsed.
	ErrInvalidKey = errors.New("invalid issuer private key")
	// ErrInvalidSignature is returned by Recover for malformed input.
	ErrInvalidSignature = errors.New("invalid signature")
)

// SigningError reports a failure to produce a signature. It never carries key material.
type SigningError struct {
	Err error
}

func (e *SigningError) Error() string {
	return "sign mint digest: " + e.Err.Error()
}

func (e *SigningError) Unwrap() error { return e.Err }

// Digest holds both hashes of a mint authorization.
type Digest struct {
	// Message is keccak256(recipient || uint256(eventId) || tokenURI).
	Message common.Hash
	// EthSigned is keccak256(prefix || Message), the value actually signed.
	EthSigned common.Hash
}

// BuildDigest packs the mint parameters exactly like Solidity's
// abi.encodePacked(address, uint256, string) and applies the personal_sign prefix.
func BuildDigest(recipient common.Address, eventID *big.Int, tokenURI string) (Digest, error) {
	if eventID == nil || eventID.Sign() < 0 || eventID.BitLen() > 256 {
		return Digest{}, fmt.Errorf("event id out of uint256 range")
	}
	packed := make([]byte, 0, common.AddressLength+32+len(tokenURI))
	packed = append(packed, recipient.Bytes()...)
	packed = append(packed, math.U256Bytes(new(big.Int).Set(eventID))...)
	packed = append(packed, tokenURI...)

	inner := crypto.Keccak256Hash(packed)
	outer := crypto.Keccak256Hash([]byte(personalSignPrefix), inner.Bytes())
	return Digest{Message: inner, EthSigned: outer}, nil
}

// upgradeDomain separates upgrade authorizations from mint digests.
const upgradeDomain = "merch.companion.upgrade"

// BuildUpgradeDigest packs an SBT holder's consent to a companion upgrade as
// abi.encodePacked(string, uint256 sbtId, address organizer, uint256 expiry)
// and applies the personal_sign prefix. Expiry is unix seconds.
func BuildUpgradeDigest(sbtID *big.Int, organizer common.Address, expiry int64) (Digest, error) {
	if sbtID == nil || sbtID.Sign() < 0 || sbtID.BitLen() > 256 {
		return Digest{}, fmt.Errorf("sbt id out of uint256 range")
	}
	if expiry <= 0 {
		return Digest{}, fmt.Errorf("expiry must be positive")
	}
	packed := make([]byte, 0, len(upgradeDomain)+32+common.AddressLength+32)
	packed = append(packed, upgradeDomain...)
	packed = append(packed, math.U256Bytes(new(big.Int).Set(sbtID))...)
	packed = append(packed, organizer.Bytes()...)
	packed = append(packed, math.U256Bytes(big.NewInt(expiry))...)

	inner := crypto.Keccak256Hash(packed)
	outer := crypto.Keccak256Hash([]byte(personalSignPrefix), inner.Bytes())
	return Digest{Message: inner, EthSigned: outer}, nil
}

// Signer holds the issuer key. The key is loaded once and never logged or exported.
type Signer struct {
	key    *ecdsa.PrivateKey
	issuer common.Address
}

// New wraps an already parsed key.
func New(key *ecdsa.PrivateKey) *Signer {
	return &Signer{key: key, issuer: crypto.PubkeyToAddress(key.PublicKey)}
}

// NewFromHex parses a 32-byte hex key with or without the 0x prefix.
func NewFromHex(hexKey string) (*Signer, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	key, err := crypto.HexToECDSA(raw)
	if err != nil {
		// the parse error may echo input bytes
		return nil, ErrInvalidKey
	}
	return New(key), nil
}

// Issuer returns the address the contract must have registered as issuer.
func (s *Signer) Issuer() common.Address {
	return s.issuer
}

// Sign signs the prefixed digest. The result is low-s with v in {27, 28}.
func (s *Signer) Sign(d Digest) ([]byte, error) {
	if s == nil || s.key == nil {
		return nil, &SigningError{Err: ErrInvalidKey}
	}
	sig, err := crypto.Sign(d.EthSigned.Bytes(), s.key)
	if err != nil {
		return nil, &SigningError{Err: err}
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// Recover returns the address that produced sig over d. It accepts v as
// either {0, 1} or {27, 28}.
func Recover(d Digest, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, ErrInvalidSignature
	}
	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}
	if normalized[crypto.RecoveryIDOffset] > 1 {
		return common.Address{}, ErrInvalidSignature
	}
	pub, err := crypto.SigToPub(d.EthSigned.Bytes(), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
