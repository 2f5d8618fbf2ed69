package service

import (
	"errors"
	"fmt"

	"merch/internal/chain"
	"merch/internal/claim/models"
	dErrors "merch/pkg/domain-errors"
	"merch/pkg/platform/sentinel"
)

// ClaimError tags a failure with the orchestrator phase it happened in.
// The wrapped error is always a domain error.
type ClaimError struct {
	Phase  models.Phase
	Reason string
	Err    error
}

func (e *ClaimError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *ClaimError) Unwrap() error { return e.Err }

// Retryable reports whether the same code may be retried. Only an
// unconfirmed submission qualifies; the code itself stays consumed.
func (e *ClaimError) Retryable() bool {
	var se *chain.SubmissionError
	return errors.As(e.Err, &se) && se.Retryable()
}

// PhaseOf returns the phase of a ClaimError in err's chain.
func PhaseOf(err error) (models.Phase, bool) {
	var ce *ClaimError
	if errors.As(err, &ce) {
		return ce.Phase, true
	}
	return "", false
}

type registryErrorMapping struct {
	sentinel error
	code     dErrors.Code
	msg      string
}

// registryErrorMappings translate store sentinels, first match wins.
var registryErrorMappings = []registryErrorMapping{
	{sentinel.ErrNotFound, dErrors.CodeClaimInvalid, "Invalid claim code"},
	{sentinel.ErrAlreadyUsed, dErrors.CodeClaimUsed, "Code already used"},
	{sentinel.ErrReserved, dErrors.CodeClaimReserved, "Code is reserved by another wallet"},
}

// translateRegistryError is the single place store errors become domain errors.
func translateRegistryError(err error) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	for _, m := range registryErrorMappings {
		if errors.Is(err, m.sentinel) {
			return dErrors.Wrap(err, m.code, m.msg)
		}
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "claim registry unavailable")
}
