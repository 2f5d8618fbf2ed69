package handler

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"merch/internal/claim/models"
)

const (
	statusValid   = "CLAIM_VALID"
	statusInvalid = "CLAIM_INVALID"
	statusUsed    = "CLAIM_USED"
)

type validateCodeResponse struct {
	Valid    bool   `json:"valid"`
	Status   string `json:"status,omitempty"`
	EventID  uint64 `json:"eventId,omitempty"`
	TokenURI string `json:"tokenURI,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

type signMintResponse struct {
	Signature            string `json:"signature"`
	EventID              uint64 `json:"eventId"`
	TokenURI             string `json:"tokenURI"`
	Issuer               string `json:"issuer"`
	MessageHash          string `json:"messageHash"`
	EthSignedMessageHash string `json:"ethSignedMessageHash"`
}

func toSignMintResponse(a *models.MintAuthorization) signMintResponse {
	return signMintResponse{
		Signature:            hexutil.Encode(a.Signature),
		EventID:              a.EventID,
		TokenURI:             a.TokenURI,
		Issuer:               a.Issuer.Hex(),
		MessageHash:          a.MessageHash.Hex(),
		EthSignedMessageHash: a.EthSignedMessageHash.Hex(),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type claimResponse struct {
	Success  bool     `json:"success"`
	TxHash   string   `json:"txHash"`
	TokenID  *big.Int `json:"tokenId"`
	EventID  uint64   `json:"eventId"`
	TokenURI string   `json:"tokenURI"`
	Message  string   `json:"message"`
}

// claimFailure is the /claim and /reserve error envelope. Phase and reason
// are only present once the orchestrator has run.
type claimFailure struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Phase     string `json:"phase,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

type reserveResponse struct {
	Success       bool           `json:"success"`
	ReservationID string         `json:"reservationId"`
	Message       string         `json:"message"`
	Details       reserveDetails `json:"details"`
}

type reserveDetails struct {
	Code       string `json:"code"`
	Wallet     string `json:"wallet"`
	EventName  string `json:"eventName"`
	Email      string `json:"email"`
	ReservedAt string `json:"reservedAt"`
	ExpiresAt  string `json:"expiresAt"`
}

func toReserveResponse(res *models.Reservation) reserveResponse {
	email := res.Email
	if email == "" {
		email = "Not provided"
	}
	return reserveResponse{
		Success:       true,
		ReservationID: res.ReservationID,
		Message:       "Claim successfully reserved! You can complete the minting process later.",
		Details: reserveDetails{
			Code:       res.Code,
			Wallet:     res.Wallet,
			EventName:  res.EventName,
			Email:      email,
			ReservedAt: res.ReservedAt.UTC().Format(time.RFC3339Nano),
			ExpiresAt:  res.ExpiresAt.UTC().Format(time.RFC3339Nano),
		},
	}
}
