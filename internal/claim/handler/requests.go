package handler

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"merch/internal/claim/models"
	dErrors "merch/pkg/domain-errors"
	platformstrings "merch/pkg/platform/strings"
	"merch/pkg/validation"
)

// ValidateCodeRequest asks whether a code can still be claimed.
type ValidateCodeRequest struct {
	Code string `json:"code"`
}

func (r *ValidateCodeRequest) Normalize() {
	r.Code = models.NormalizeCode(r.Code)
}

// Validate rejects a missing code as malformed. A present code that can
// never be in the registry is reported like an unknown one.
func (r *ValidateCodeRequest) Validate() error {
	if r.Code == "" {
		return dErrors.New(dErrors.CodeBadRequest, "Invalid code format")
	}
	if !validation.IsClaimCode(r.Code) {
		return dErrors.New(dErrors.CodeClaimInvalid, "Invalid code")
	}
	return nil
}

// SignMintRequest asks the issuer to authorize a self-submitted mint.
// EventID and TokenURI must echo what validate-code returned.
type SignMintRequest struct {
	To       string `json:"to" validate:"required"`
	EventID  uint64 `json:"eventId" validate:"required"`
	TokenURI string `json:"tokenURI" validate:"required"`
	Code     string `json:"code" validate:"required"`
}

func (r *SignMintRequest) Normalize() {
	r.To = strings.TrimSpace(r.To)
	r.Code = models.NormalizeCode(r.Code)
}

func (r *SignMintRequest) Validate() error {
	if err := validation.Validate(r); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "Missing required parameters")
	}
	if !validation.IsAddress(r.To) {
		return dErrors.New(dErrors.CodeBadRequest, "Invalid address format")
	}
	if err := validation.CheckStringLength("tokenURI", r.TokenURI, validation.MaxTokenURILength); err != nil {
		return err
	}
	if !validation.IsClaimCode(r.Code) {
		return dErrors.New(dErrors.CodeClaimInvalid, "Invalid code")
	}
	return nil
}

func (r *SignMintRequest) Recipient() common.Address { return common.HexToAddress(r.To) }

// ClaimRequest asks the backend to mint on the wallet's behalf.
// EventName and TokenURI are accepted for compatibility and ignored: the
// binding always comes from the code.
type ClaimRequest struct {
	Code      string `json:"code" validate:"required"`
	Wallet    string `json:"wallet" validate:"required"`
	EventName string `json:"eventName"`
	TokenURI  string `json:"tokenURI"`
}

func (r *ClaimRequest) Normalize() {
	r.Wallet = strings.TrimSpace(r.Wallet)
	r.Code = models.NormalizeCode(r.Code)
}

func (r *ClaimRequest) Validate() error {
	if err := validation.Validate(r); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "Missing required fields")
	}
	if !validation.IsAddress(r.Wallet) {
		return dErrors.New(dErrors.CodeBadRequest, "Invalid wallet address")
	}
	if !validation.IsClaimCode(r.Code) {
		return dErrors.New(dErrors.CodeClaimInvalid, "Invalid claim code")
	}
	return nil
}

// ReserveRequest holds a code for a wallet without minting.
type ReserveRequest struct {
	Code      string `json:"code" validate:"required"`
	Wallet    string `json:"wallet" validate:"required"`
	EventName string `json:"eventName" validate:"notblank"`
	Email     string `json:"email"`
}

func (r *ReserveRequest) Normalize() {
	platformstrings.TrimInPlace(&r.Wallet, &r.EventName, &r.Email)
	r.Code = models.NormalizeCode(r.Code)
}

func (r *ReserveRequest) Validate() error {
	if err := validation.Validate(r); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "Missing required fields (code, wallet, eventName)")
	}
	if !validation.IsAddress(r.Wallet) {
		return dErrors.New(dErrors.CodeBadRequest, "Invalid wallet address")
	}
	if r.Email != "" && !validation.IsEmail(r.Email) {
		return dErrors.New(dErrors.CodeBadRequest, "Invalid email format")
	}
	if err := validation.CheckStringLength("eventName", r.EventName, validation.MaxEventNameLength); err != nil {
		return err
	}
	if err := validation.CheckStringLength("email", r.Email, validation.MaxEmailLength); err != nil {
		return err
	}
	if !validation.IsClaimCode(r.Code) {
		return dErrors.New(dErrors.CodeClaimInvalid, "Invalid claim code")
	}
	return nil
}
