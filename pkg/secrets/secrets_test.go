package secrets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "merch/pkg/domain-errors"
)

func TestGenerate(t *testing.T) {
	token, err := Generate()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, TokenPrefix))
	assert.Len(t, token, len(TokenPrefix)+43)

	other, err := Generate()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestHashAndVerify(t *testing.T) {
	token, err := Generate()
	require.NoError(t, err)

	hash, err := Hash(token)
	require.NoError(t, err)
	assert.True(t, IsHash(hash))

	assert.NoError(t, Verify(token, hash))
	assert.True(t, dErrors.HasCode(Verify("wrong-admin-token", hash), dErrors.CodeUnauthorized))
	assert.True(t, dErrors.HasCode(Verify("", hash), dErrors.CodeUnauthorized))
	assert.True(t, dErrors.HasCode(Verify(token, ""), dErrors.CodeUnauthorized))
	assert.True(t, dErrors.HasCode(Verify(token, "not-a-bcrypt-hash"), dErrors.CodeInternal))
}

func TestHashRejectsShortTokens(t *testing.T) {
	for _, token := range []string{"", "   ", "short-token"} {
		_, err := Hash(token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), token)
	}
}

func TestIsHash(t *testing.T) {
	assert.False(t, IsHash(""))
	assert.False(t, IsHash("e2e-admin-token"))
}
