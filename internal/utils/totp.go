package utils

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpPeriod = 30
	totpSkew   = 1
)

type TOTPManager struct {
	issuer string
	now    func() time.Time
}

func NewTOTPManager(issuer string) *TOTPManager {
	return &TOTPManager{
		issuer: issuer,
		now:    time.Now,
	}
}

// WithClock replaces the time source used for validation.
func (t *TOTPManager) WithClock(now func() time.Time) *TOTPManager {
	t.now = now
	return t
}

// GenerateSecret creates a new shared secret and its otpauth:// provisioning
// URL for the given account.
func (t *TOTPManager) GenerateSecret(accountName string) (secret string, qrCodeURL string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      t.issuer,
		AccountName: accountName,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", err
	}

	return key.Secret(), key.URL(), nil
}

// ValidateCode accepts codes from the current step and one step either side.
func (t *TOTPManager) ValidateCode(code, secret string) bool {
	ok, err := totp.ValidateCustom(code, secret, t.now().UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
