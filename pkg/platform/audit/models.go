package audit

import (
	"context"
	"time"
)

// Event is emitted from domain logic to capture claim lifecycle actions.
// It is transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Code      string    `json:"code,omitempty"`
	Wallet    string    `json:"wallet,omitempty"`
	EventID   uint64    `json:"event_id,omitempty"`
	TokenID   string    `json:"token_id,omitempty"`
	TxHash    string    `json:"tx_hash,omitempty"`
	Phase     string    `json:"phase,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

type AuditEvent string

const (
	EventCodeReserved      AuditEvent = "code_reserved"
	EventCodeConsumed      AuditEvent = "code_consumed"
	EventMintAuthorized    AuditEvent = "mint_authorized"
	EventMintSubmitted     AuditEvent = "mint_submitted"
	EventClaimFailed       AuditEvent = "claim_failed"
	EventCompanionMinted   AuditEvent = "companion_minted"
	EventCompanionRejected AuditEvent = "companion_rejected"
	EventCodesSeeded       AuditEvent = "codes_seeded"
)

// Store persists audit events. Append must be safe for concurrent use.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Lister is implemented by stores that can read back events, newest last.
type Lister interface {
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
