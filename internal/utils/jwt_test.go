package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenManager_RoundTrip(t *testing.T) {
	m := NewTokenManager(testSecret, 7*24*time.Hour, "faaxis")

	token, expiresAt, err := m.Generate(42, "alice@example.com")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), expiresAt, 5*time.Second)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "alice@example.com", claims.Username)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenManager_UniqueTokens(t *testing.T) {
	m := NewTokenManager(testSecret, time.Hour, "faaxis")

	a, _, err := m.Generate(1, "a@example.com")
	require.NoError(t, err)
	b, _, err := m.Generate(1, "a@example.com")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestTokenManager_Expired(t *testing.T) {
	now := time.Now()
	m := NewTokenManager(testSecret, time.Hour, "faaxis").WithClock(func() time.Time { return now })

	token, _, err := m.Generate(1, "a@example.com")
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = m.Validate(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenManager_RotatedSecret(t *testing.T) {
	old := NewTokenManager(testSecret, time.Hour, "faaxis")
	rotated := NewTokenManager("fedcba9876543210fedcba9876543210", time.Hour, "faaxis")

	token, _, err := old.Generate(1, "a@example.com")
	require.NoError(t, err)

	_, err = rotated.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestTokenManager_RejectsOtherAlgorithms(t *testing.T) {
	m := NewTokenManager(testSecret, time.Hour, "faaxis")

	claims := &TokenClaims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			Issuer:    "faaxis",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.Validate(token)
	assert.Error(t, err)
}

func TestTokenManager_Malformed(t *testing.T) {
	m := NewTokenManager(testSecret, time.Hour, "faaxis")

	_, err := m.Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	token, _, err := m.Generate(1, "a@example.com")
	require.NoError(t, err)
	parts := strings.Split(token, ".")
	_, err = m.Validate(parts[0] + "." + parts[1])
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_WrongIssuer(t *testing.T) {
	other := NewTokenManager(testSecret, time.Hour, "someone-else")
	m := NewTokenManager(testSecret, time.Hour, "faaxis")

	token, _, err := other.Generate(1, "a@example.com")
	require.NoError(t, err)

	_, err = m.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
