package models

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"merch/pkg/platform/sentinel"
)

// Status is the lifecycle state of a claim code.
type Status string

const (
	StatusUnused   Status = "unused"
	StatusReserved Status = "reserved"
	StatusUsed     Status = "used"
)

// DefaultTokenURIBase prefixes derived token URIs.
const DefaultTokenURIBase = "ipfs://QmMockHash"

// eventIDSpace bounds derived event ids to 1..1_000_000.
const eventIDSpace = 1_000_000

// DemoCodes are seeded when no other source is configured.
var DemoCodes = []string{"EVENT2025", "DEMO123", "TEST456", "BLOCKCHAIN789", "BASE2025", "MERCH001"}

// ClaimCode is a one-time code and the event credential it is bound to.
// Used is terminal: a code never returns to Unused and is never deleted.
type ClaimCode struct {
	Code          string    `json:"code"`
	Status        Status    `json:"status"`
	EventID       uint64    `json:"eventId"`
	TokenURI      string    `json:"tokenURI"`
	ReservedBy    string    `json:"reservedBy,omitempty"`
	ReservedUntil time.Time `json:"reservedUntil,omitzero"`
	UsedBy        string    `json:"usedBy,omitempty"`
	UsedAt        time.Time `json:"usedAt,omitzero"`
	CreatedAt     time.Time `json:"createdAt"`
}

// EffectiveStatus resolves an expired reservation to Unused.
func (c *ClaimCode) EffectiveStatus(now time.Time) Status {
	if c.Status == StatusReserved && !now.Before(c.ReservedUntil) {
		return StatusUnused
	}
	return c.Status
}

// HeldByOther reports whether a live reservation belongs to someone other than wallet.
func (c *ClaimCode) HeldByOther(wallet string, now time.Time) bool {
	return c.EffectiveStatus(now) == StatusReserved && !strings.EqualFold(c.ReservedBy, wallet)
}

// CheckConsumable returns the sentinel that blocks consumer from using the code now.
func (c *ClaimCode) CheckConsumable(consumer string, now time.Time) error {
	switch {
	case c.Status == StatusUsed:
		return sentinel.ErrAlreadyUsed
	case c.HeldByOther(consumer, now):
		return sentinel.ErrReserved
	default:
		return nil
	}
}

// ApplyConsume marks the code used. Callers check CheckConsumable first under the same lock.
func (c *ClaimCode) ApplyConsume(consumer string, now time.Time) {
	c.Status = StatusUsed
	c.UsedBy = consumer
	c.UsedAt = now
	c.ReservedBy = ""
	c.ReservedUntil = time.Time{}
}

// ApplyReserve places or refreshes a hold. Callers check CheckConsumable first.
func (c *ClaimCode) ApplyReserve(holder string, until time.Time) {
	c.Status = StatusReserved
	c.ReservedBy = holder
	c.ReservedUntil = until
}

// NormalizeCode canonicalizes user input: codes compare case-insensitively.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Binding is the (eventId, tokenURI) pair a code authorizes.
type Binding struct {
	EventID  uint64
	TokenURI string
}

// DeriveBinding computes the deterministic binding for a normalized code:
// eventId = BE64(keccak256(code)[0:8]) mod 1e6 + 1, tokenURI = base + eventId.
func DeriveBinding(code, tokenURIBase string) Binding {
	if tokenURIBase == "" {
		tokenURIBase = DefaultTokenURIBase
	}
	h := crypto.Keccak256([]byte(NormalizeCode(code)))
	eventID := binary.BigEndian.Uint64(h[:8])%eventIDSpace + 1
	return Binding{EventID: eventID, TokenURI: fmt.Sprintf("%s%d", tokenURIBase, eventID)}
}

// NewClaimCode builds an Unused code with the derived binding.
func NewClaimCode(code, tokenURIBase string, now time.Time) ClaimCode {
	code = NormalizeCode(code)
	b := DeriveBinding(code, tokenURIBase)
	return ClaimCode{
		Code:      code,
		Status:    StatusUnused,
		EventID:   b.EventID,
		TokenURI:  b.TokenURI,
		CreatedAt: now,
	}
}

// MintAuthorization is the issuer's signed permission for one recipient to
// mint the credential for one event.
type MintAuthorization struct {
	Recipient            common.Address
	EventID              uint64
	TokenURI             string
	Signature            []byte
	Issuer               common.Address
	MessageHash          common.Hash
	EthSignedMessageHash common.Hash
}

// EventIDBig returns EventID as a uint256 contract argument.
func (a *MintAuthorization) EventIDBig() *big.Int {
	return new(big.Int).SetUint64(a.EventID)
}

// Reservation is the receipt for a short-lived hold on a code.
type Reservation struct {
	ReservationID string    `json:"reservationId"`
	Code          string    `json:"code"`
	Wallet        string    `json:"wallet"`
	EventName     string    `json:"eventName"`
	Email         string    `json:"email,omitempty"`
	EventID       uint64    `json:"eventId"`
	TokenURI      string    `json:"tokenURI"`
	ReservedAt    time.Time `json:"reservedAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// Phase names the orchestrator step a failure happened in.
type Phase string

const (
	PhaseValidate Phase = "validate"
	PhaseConsume  Phase = "consume"
	PhaseSign     Phase = "sign"
	PhaseSubmit   Phase = "submit"
)
