package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTOTPManager_GenerateSecret(t *testing.T) {
	m := NewTOTPManager("FA Axis")

	secret, url, err := m.GenerateSecret("admin@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, secret)
	assert.True(t, strings.HasPrefix(url, "otpauth://totp/"))
	assert.Contains(t, url, "secret="+secret)
}

func TestTOTPManager_ValidateWithSkew(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 15, 0, time.UTC)
	m := NewTOTPManager("FA Axis").WithClock(func() time.Time { return now })

	secret, _, err := m.GenerateSecret("admin@example.com")
	require.NoError(t, err)

	current, err := totp.GenerateCode(secret, now)
	require.NoError(t, err)
	previous, err := totp.GenerateCode(secret, now.Add(-30*time.Second))
	require.NoError(t, err)
	next, err := totp.GenerateCode(secret, now.Add(30*time.Second))
	require.NoError(t, err)
	stale, err := totp.GenerateCode(secret, now.Add(-90*time.Second))
	require.NoError(t, err)

	assert.True(t, m.ValidateCode(current, secret))
	assert.True(t, m.ValidateCode(previous, secret))
	assert.True(t, m.ValidateCode(next, secret))
	if stale != current && stale != previous && stale != next {
		assert.False(t, m.ValidateCode(stale, secret))
	}
	assert.False(t, m.ValidateCode("abcdef", secret))
}
