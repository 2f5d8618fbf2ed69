package chain

import (
	"context"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// Reason classifies why a transaction did not produce a receipt.
type Reason string

const (
	ReasonInvalidSignature   Reason = "InvalidSignature"
	ReasonDuplicateClaim     Reason = "DuplicateClaim"
	ReasonUserRejected       Reason = "UserRejected"
	ReasonInsufficientFunds  Reason = "InsufficientFunds"
	ReasonTimeout            Reason = "Timeout"
	ReasonSBTNotOwned        Reason = "SBTNotOwned"
	ReasonSBTAlreadyUpgraded Reason = "SBTAlreadyUpgraded"
	ReasonInsufficientFee    Reason = "InsufficientFee"
	ReasonReverted           Reason = "Reverted"
	ReasonUnavailable        Reason = "Unavailable"
	ReasonUnknown            Reason = "Unknown"
)

var reasonMessages = map[Reason]string{
	ReasonInvalidSignature:   "Invalid signature from backend",
	ReasonDuplicateClaim:     "Already minted SBT for this event",
	ReasonUserRejected:       "Transaction rejected by user",
	ReasonInsufficientFunds:  "Insufficient ETH for gas",
	ReasonTimeout:            "Transaction was not confirmed in time",
	ReasonSBTNotOwned:        "You do not own this SBT token",
	ReasonSBTAlreadyUpgraded: "This SBT has already been used for companion minting",
	ReasonInsufficientFee:    "Insufficient fee provided",
	ReasonReverted:           "Transaction reverted",
	ReasonUnavailable:        "Chain endpoint unavailable",
	ReasonUnknown:            "Failed to submit transaction",
}

// revertReasons maps contract custom error names to reasons.
var revertReasons = map[string]Reason{
	"InvalidSignature":   ReasonInvalidSignature,
	"DuplicateEventMint": ReasonDuplicateClaim,
	"SBTNotOwned":        ReasonSBTNotOwned,
	"SBTAlreadyUpgraded": ReasonSBTAlreadyUpgraded,
	"InsufficientFee":    ReasonInsufficientFee,
}

// substringReasons is consulted in order when no selector is available.
var substringReasons = []struct {
	needle string
	reason Reason
}{
	{"invalidsignature", ReasonInvalidSignature},
	{"duplicateeventmint", ReasonDuplicateClaim},
	{"sbtnotowned", ReasonSBTNotOwned},
	{"sbtalreadyupgraded", ReasonSBTAlreadyUpgraded},
	{"insufficientfee", ReasonInsufficientFee},
	{"user rejected", ReasonUserRejected},
	{"insufficient funds", ReasonInsufficientFunds},
	{"deadline exceeded", ReasonTimeout},
	{"timeout", ReasonTimeout},
}

// SubmissionError is returned by every Submitter and Ledger write.
type SubmissionError struct {
	Reason Reason
	// TxHash is set when the transaction was broadcast before failing.
	TxHash common.Hash
	Err    error
}

func (e *SubmissionError) Error() string {
	msg := reasonMessages[e.Reason]
	if msg == "" {
		msg = string(e.Reason)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// Message is the user-facing description without the underlying cause.
func (e *SubmissionError) Message() string {
	if msg, ok := reasonMessages[e.Reason]; ok {
		return msg
	}
	return string(e.Reason)
}

// Retryable reports whether resubmitting the same authorization may succeed.
// Only an unconfirmed transaction qualifies; every revert is final.
func (e *SubmissionError) Retryable() bool {
	return e.Reason == ReasonTimeout
}

// RevertError is a contract revert carrying the custom error name. The
// simulated ledger produces it; RPC nodes report the same through rpc.DataError.
type RevertError struct {
	Name string
}

func (e *RevertError) Error() string {
	return "execution reverted: " + e.Name
}

// Classify maps an RPC, revert or context error to a SubmissionError.
// An existing SubmissionError in the chain is returned as is.
func Classify(err error) *SubmissionError {
	if err == nil {
		return nil
	}
	var se *SubmissionError
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &SubmissionError{Reason: ReasonTimeout, Err: err}
	}
	if name, ok := revertName(err); ok {
		if reason, known := revertReasons[name]; known {
			return &SubmissionError{Reason: reason, Err: err}
		}
		return &SubmissionError{Reason: ReasonReverted, Err: err}
	}
	msg := strings.ToLower(err.Error())
	for _, sr := range substringReasons {
		if strings.Contains(msg, sr.needle) {
			return &SubmissionError{Reason: sr.reason, Err: err}
		}
	}
	if strings.Contains(msg, "execution reverted") {
		return &SubmissionError{Reason: ReasonReverted, Err: err}
	}
	return &SubmissionError{Reason: ReasonUnknown, Err: err}
}

// revertName extracts a custom error name from a RevertError or from the
// revert data an RPC node attaches to eth_call and eth_estimateGas failures.
func revertName(err error) (string, bool) {
	var re *RevertError
	if errors.As(err, &re) {
		return re.Name, true
	}
	var de rpc.DataError
	if !errors.As(err, &de) {
		return "", false
	}
	hexData, ok := de.ErrorData().(string)
	if !ok {
		return "", false
	}
	data, decodeErr := hexutil.Decode(hexData)
	if decodeErr != nil || len(data) < 4 {
		return "", false
	}
	var sel [4]byte
	copy(sel[:], data[:4])
	name, ok := customErrorNames[sel]
	return name, ok
}

// isInfrastructure reports whether err says the endpoint is unhealthy, as
// opposed to the contract rejecting the call.
func isInfrastructure(err error) bool {
	if err == nil {
		return false
	}
	switch Classify(err).Reason {
	case ReasonUnknown, ReasonTimeout, ReasonUnavailable:
		return true
	default:
		return false
	}
}
