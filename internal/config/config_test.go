package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithSecretFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "dev-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "dev-secret", cfg.JWT.Secret)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.TokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "faaxis_sid", cfg.Session.CookieName)
	assert.Equal(t, "auth_token", cfg.Session.TokenCookieName)
	assert.Equal(t, 10*time.Minute, cfg.App.OTPTTL)
	assert.Equal(t, 5, cfg.App.OTPMaxAttempts)
	assert.Equal(t, 6, cfg.App.OTPLength)
	assert.Equal(t, 12*time.Second, cfg.Email.SendBudget())
	assert.Less(t, cfg.Email.SendBudget(), cfg.Server.WriteTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "dev-secret")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SESSION_TTL", "24h")
	t.Setenv("APP_OTP_MAX_ATTEMPTS", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 3, cfg.App.OTPMaxAttempts)
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt.secret")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			JWT:     JWTConfig{Secret: "0123456789abcdef0123456789abcdef", TokenTTL: time.Hour},
			Session: SessionConfig{TTL: time.Hour},
			App: AppConfig{
				Environment:          "production",
				OTPLength:            6,
				OTPTTL:               time.Minute,
				OTPMaxAttempts:       5,
				ResetTokenTTL:        time.Hour,
				VerificationTokenTTL: time.Hour,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "short production secret", mutate: func(c *Config) { c.JWT.Secret = "short" }, wantErr: "at least"},
		{name: "short secret outside production", mutate: func(c *Config) {
			c.JWT.Secret = "short"
			c.App.Environment = "development"
		}},
		{name: "zero session ttl", mutate: func(c *Config) { c.Session.TTL = 0 }, wantErr: "session.ttl"},
		{name: "otp length", mutate: func(c *Config) { c.App.OTPLength = 2 }, wantErr: "otp_length"},
		{name: "otp attempts", mutate: func(c *Config) { c.App.OTPMaxAttempts = 0 }, wantErr: "otp_max_attempts"},
		{name: "email fits write timeout", mutate: func(c *Config) {
			c.Server.WriteTimeout = 15 * time.Second
			c.Email = EmailConfig{Timeout: 3 * time.Second, RetryCount: 2}
		}},
		{name: "email outlasts write timeout", mutate: func(c *Config) {
			c.Server.WriteTimeout = 15 * time.Second
			c.Email = EmailConfig{Timeout: 30 * time.Second, RetryCount: 3}
		}, wantErr: "server.write_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/n?sslmode=disable", d.DSN())
}
