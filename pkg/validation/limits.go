package validation

import (
	"fmt"

	dErrors "merch/pkg/domain-errors"
)

// String length limits for claim and companion requests.
const (
	MaxCodeLength      = 64
	MaxTokenURILength  = 2048
	MaxEventNameLength = 200
	MaxEmailLength     = 255
	MaxSeedBatch       = 1000
)

// CheckStringLength validates that a string does not exceed the maximum length.
func CheckStringLength(fieldName, value string, max int) error {
	if len(value) > max {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s exceeds max length of %d", fieldName, max))
	}
	return nil
}

// CheckSliceCount validates that a slice does not exceed the maximum count.
func CheckSliceCount(fieldName string, count, max int) error {
	if count > max {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("too many %s: max %d allowed", fieldName, max))
	}
	return nil
}
