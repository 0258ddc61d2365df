package jwt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	token, err := GenerateAccessToken(42, "1234567", "Maria Silva", "USER", "test-secret", 15)
	require.NoError(t, err)

	claims, err := ValidateAccessToken(token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "1234567", claims.NUSP)
	assert.Equal(t, "Maria Silva", claims.Name)
	assert.Equal(t, "USER", claims.Role)
}

func TestAccessTokenWrongSecret(t *testing.T) {
	token, err := GenerateAccessToken(42, "1234567", "Maria Silva", "USER", "test-secret", 15)
	require.NoError(t, err)

	_, err = ValidateAccessToken(token, "other-secret")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestAccessTokenExpired(t *testing.T) {
	token, err := GenerateAccessToken(42, "1234567", "Maria Silva", "USER", "test-secret", -1)
	require.NoError(t, err)

	_, err = ValidateAccessToken(token, "test-secret")
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	token, err := GenerateRefreshToken(42, "token-id-1", "refresh-secret", 7)
	require.NoError(t, err)

	claims, err := ValidateRefreshToken(token, "refresh-secret")
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "token-id-1", claims.TokenID)

	// Access and refresh secrets are not interchangeable
	_, err = ValidateRefreshToken(token, "test-secret")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidateGarbage(t *testing.T) {
	_, err := ValidateAccessToken("not.a.token", "test-secret")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
