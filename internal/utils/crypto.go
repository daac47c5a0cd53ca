package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/scrypt"
)

// Password hash formats understood by VerifyPassword.
const (
	PasswordFormatBcrypt  = "bcrypt"
	PasswordFormatLegacy  = "legacy"
	PasswordFormatUnknown = "unknown"
	PasswordFormatNone    = "none"
)

// Parameters of the legacy "<hex digest>.<salt>" scrypt hashes written by
// the previous Node backend.
const (
	legacyScryptN      = 16384
	legacyScryptR      = 8
	legacyScryptP      = 1
	legacyScryptKeyLen = 64
)

// Password hashing functions
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

var dummyPasswordHash = sync.OnceValue(func() []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte("faaxis-no-such-account"), bcrypt.DefaultCost)
	if err != nil {
		panic(fmt.Sprintf("generate dummy password hash: %v", err))
	}
	return hash
})

// VerifyNoPassword costs as much as checking a bcrypt hash and always fails.
// Use it when there is no account to check the password against.
func VerifyNoPassword(password string) bool {
	_ = bcrypt.CompareHashAndPassword(dummyPasswordHash(), []byte(password))
	return false
}

// PasswordFormat classifies a stored hash without verifying anything.
func PasswordFormat(hash string) string {
	switch {
	case strings.HasPrefix(hash, "$2a$"), strings.HasPrefix(hash, "$2b$"), strings.HasPrefix(hash, "$2y$"):
		return PasswordFormatBcrypt
	case strings.Count(hash, ".") == 1:
		return PasswordFormatLegacy
	default:
		return PasswordFormatUnknown
	}
}

// VerifyPassword checks password against a stored hash. It never returns an
// error: malformed hashes simply do not match. needsRehash is true when the
// password matched a legacy hash that should be upgraded to bcrypt.
func VerifyPassword(password, hash string) (ok bool, needsRehash bool) {
	switch PasswordFormat(hash) {
	case PasswordFormatBcrypt:
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil, false
	case PasswordFormatLegacy:
		if verifyLegacyPassword(password, hash) {
			return true, true
		}
		return false, false
	default:
		return false, false
	}
}

func verifyLegacyPassword(password, stored string) bool {
	digestHex, salt, found := strings.Cut(stored, ".")
	if !found || salt == "" || len(digestHex) != legacyScryptKeyLen*2 {
		return false
	}
	if _, err := hex.DecodeString(digestHex); err != nil {
		return false
	}

	got, err := LegacyPasswordHash(password, salt)
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(strings.ToLower(got)), []byte(strings.ToLower(stored))) == 1
}

// LegacyPasswordHash produces a hash in the legacy scrypt format.
func LegacyPasswordHash(password, salt string) (string, error) {
	if salt == "" || strings.Contains(salt, ".") {
		return "", fmt.Errorf("invalid legacy salt")
	}
	key, err := scrypt.Key([]byte(password), []byte(salt), legacyScryptN, legacyScryptR, legacyScryptP, legacyScryptKeyLen)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(key) + "." + salt, nil
}

// OTP generation and validation functions
func GenerateOTP(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("OTP length must be positive")
	}

	otp := make([]byte, length)
	for i := range otp {
		num, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		otp[i] = byte('0' + num.Int64())
	}

	return string(otp), nil
}

// HashSecret is the at-rest form of one-time codes and single-use tokens.
func HashSecret(secret string) string {
	hash := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(hash[:])
}

func ValidateOTP(otp, hashedOTP string) bool {
	return subtle.ConstantTimeCompare([]byte(HashSecret(otp)), []byte(hashedOTP)) == 1
}

// GenerateRandomToken returns n random bytes, hex encoded.
func GenerateRandomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
