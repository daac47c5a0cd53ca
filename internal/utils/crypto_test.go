package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("Str0ngP@ss1")
	require.NoError(t, err)
	assert.Equal(t, PasswordFormatBcrypt, PasswordFormat(hash))

	ok, rehash := VerifyPassword("Str0ngP@ss1", hash)
	assert.True(t, ok)
	assert.False(t, rehash)

	ok, _ = VerifyPassword("wrong-password", hash)
	assert.False(t, ok)
}

func TestVerifyPassword_Legacy(t *testing.T) {
	hash, err := LegacyPasswordHash("oldPassword1", "a1b2c3d4e5f60718")
	require.NoError(t, err)
	assert.Equal(t, PasswordFormatLegacy, PasswordFormat(hash))

	ok, rehash := VerifyPassword("oldPassword1", hash)
	assert.True(t, ok)
	assert.True(t, rehash)

	ok, rehash = VerifyPassword("oldPassword2", hash)
	assert.False(t, ok)
	assert.False(t, rehash)
}

func TestVerifyPassword_MalformedHashes(t *testing.T) {
	valid, err := LegacyPasswordHash("pw", "salt")
	require.NoError(t, err)
	digest, _, _ := strings.Cut(valid, ".")

	tests := []struct {
		name string
		hash string
	}{
		{name: "empty", hash: ""},
		{name: "plaintext", hash: "pw"},
		{name: "missing salt", hash: digest + "."},
		{name: "short digest", hash: "abcd.salt"},
		{name: "non-hex digest", hash: strings.Repeat("zz", 64) + ".salt"},
		{name: "truncated bcrypt", hash: "$2a$10$abc"},
		{name: "two delimiters", hash: digest + ".salt.extra"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				ok, rehash := VerifyPassword("pw", tt.hash)
				assert.False(t, ok)
				assert.False(t, rehash)
			})
		})
	}
}

func TestLegacyPasswordHash_RejectsBadSalt(t *testing.T) {
	_, err := LegacyPasswordHash("pw", "")
	assert.Error(t, err)

	_, err = LegacyPasswordHash("pw", "a.b")
	assert.Error(t, err)
}

func TestGenerateOTP(t *testing.T) {
	otp, err := GenerateOTP(6)
	require.NoError(t, err)
	assert.Len(t, otp, 6)
	for _, c := range otp {
		assert.True(t, c >= '0' && c <= '9')
	}

	_, err = GenerateOTP(0)
	assert.Error(t, err)
}

func TestValidateOTP(t *testing.T) {
	hashed := HashSecret("123456")
	assert.True(t, ValidateOTP("123456", hashed))
	assert.False(t, ValidateOTP("123457", hashed))
	assert.False(t, ValidateOTP("", hashed))
}

func TestGenerateRandomToken(t *testing.T) {
	a, err := GenerateRandomToken(32)
	require.NoError(t, err)
	b, err := GenerateRandomToken(32)
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestVerifyNoPassword(t *testing.T) {
	assert.False(t, VerifyNoPassword(""))
	assert.False(t, VerifyNoPassword("faaxis-no-such-account"))
}
