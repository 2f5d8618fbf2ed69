package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	dErrors "merch/pkg/domain-errors"
)

// claimCodePattern is the accepted shape of a one-time code before normalization.
var claimCodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

var defaultValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their wire names so messages match the request body.
	v.RegisterTagNameFunc(jsonFieldName)
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("claimcode", func(fl validator.FieldLevel) bool {
		return claimCodePattern.MatchString(strings.TrimSpace(fl.Field().String()))
	})
	return v
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}

// Validate validates a struct using the default validator and returns a domain error.
func Validate(req any) error {
	if err := defaultValidator.Struct(req); err != nil {
		return dErrors.New(dErrors.CodeValidation, ErrorMessage(err))
	}
	return nil
}

// IsAddress reports whether v is a 0x-prefixed 20-byte hex address.
func IsAddress(v string) bool {
	return defaultValidator.Var(v, "required,eth_addr") == nil
}

// IsEmail reports whether v is a syntactically valid email address.
func IsEmail(v string) bool {
	return defaultValidator.Var(v, "required,email") == nil
}

// IsClaimCode reports whether v has the accepted claim code shape.
func IsClaimCode(v string) bool {
	return len(v) <= MaxCodeLength && defaultValidator.Var(v, "required,claimcode") == nil
}

// ErrorMessage converts a validator error into a human-readable message.
func ErrorMessage(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return "invalid request body"
	}

	fe := validationErrs[0]
	field := fe.Field()

	switch fe.ActualTag() {
	case "required", "notblank":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "eth_addr":
		return fmt.Sprintf("%s must be a valid address", field)
	case "claimcode":
		return fmt.Sprintf("%s must be alphanumeric", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	default:
		if field == "" {
			return "invalid request body"
		}
		return fmt.Sprintf("%s is invalid", field)
	}
}
