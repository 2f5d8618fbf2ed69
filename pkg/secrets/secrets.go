// Package secrets issues and checks admin API tokens. Only bcrypt hashes of
// tokens are ever configured or stored.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	dErrors "merch/pkg/domain-errors"
)

// TokenPrefix marks generated admin tokens so they are recognizable in
// shell history and secret scanners.
const TokenPrefix = "mrc_"

// MinTokenLength is the shortest plaintext token Hash accepts.
const MinTokenLength = 12

const tokenEntropyBytes = 32

// Generate returns a new admin token: TokenPrefix followed by 32 random
// bytes, base64url encoded.
func Generate() (string, error) {
	buf := make([]byte, tokenEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not generate admin token")
	}
	return TokenPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// Hash returns the bcrypt hash to configure as ADMIN_TOKEN_HASH.
func Hash(token string) (string, error) {
	token = strings.TrimSpace(token)
	if len(token) < MinTokenLength {
		return "", dErrors.New(dErrors.CodeValidation, "admin token must be at least 12 characters")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	switch {
	case errors.Is(err, bcrypt.ErrPasswordTooLong):
		return "", dErrors.New(dErrors.CodeValidation, "admin token is too long")
	case err != nil:
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not hash admin token")
	}
	return string(hashed), nil
}

// IsHash reports whether v parses as a bcrypt hash.
func IsHash(v string) bool {
	_, err := bcrypt.Cost([]byte(v))
	return err == nil
}

// Verify checks a presented token against the configured hash. Any mismatch
// is unauthorized; an unusable hash is an internal error.
func Verify(token, hash string) error {
	if token == "" || hash == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "admin token required")
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return dErrors.New(dErrors.CodeUnauthorized, "invalid admin token")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not verify admin token")
	}
}
