package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const minProductionSecretLength = 32

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Session  SessionConfig  `mapstructure:"session"`
	Email    EmailConfig    `mapstructure:"email"`
	App      AppConfig      `mapstructure:"app"`
}

type ServerConfig struct {
	Port               string        `mapstructure:"port"`
	Host               string        `mapstructure:"host"`
	CORSAllowedOrigins []string      `mapstructure:"cors_allowed_origins"`
	RateLimitRequests  int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow    time.Duration `mapstructure:"rate_limit_window"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// DSN returns the postgres connection string for the database section.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User,
		d.Password,
		d.Host,
		d.Port,
		d.Name,
		d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret   string        `mapstructure:"secret"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
	Issuer   string        `mapstructure:"issuer"`
}

type SessionConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CookieName      string        `mapstructure:"cookie_name"`
	TokenCookieName string        `mapstructure:"token_cookie_name"`
	CookieSecure    bool          `mapstructure:"cookie_secure"`
}

type EmailConfig struct {
	ServiceURL      string        `mapstructure:"service_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RetryCount      int           `mapstructure:"retry_count"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

// SendBudget is the longest a single email send can block its caller: every
// attempt timing out plus the linear backoff between attempts.
func (e EmailConfig) SendBudget() time.Duration {
	budget := time.Duration(e.RetryCount+1) * e.Timeout
	for attempt := 1; attempt <= e.RetryCount; attempt++ {
		budget += time.Duration(attempt) * time.Second
	}
	return budget
}

type AppConfig struct {
	Name                 string        `mapstructure:"name"`
	Environment          string        `mapstructure:"environment"`
	LogLevel             string        `mapstructure:"log_level"`
	BaseURL              string        `mapstructure:"base_url"`
	OTPLength            int           `mapstructure:"otp_length"`
	OTPTTL               time.Duration `mapstructure:"otp_ttl"`
	OTPMaxAttempts       int           `mapstructure:"otp_max_attempts"`
	ResetTokenTTL        time.Duration `mapstructure:"reset_token_ttl"`
	VerificationTokenTTL time.Duration `mapstructure:"verification_token_ttl"`
}

// IsProduction reports whether the service runs with production settings.
func (a AppConfig) IsProduction() bool {
	return strings.EqualFold(a.Environment, "production")
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.faaxis")

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate rejects configurations the service cannot run safely with.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret must be set")
	}
	if c.App.IsProduction() && len(c.JWT.Secret) < minProductionSecretLength {
		return fmt.Errorf("jwt.secret must be at least %d bytes in production", minProductionSecretLength)
	}

	ttls := map[string]time.Duration{
		"jwt.token_ttl":              c.JWT.TokenTTL,
		"session.ttl":                c.Session.TTL,
		"app.otp_ttl":                c.App.OTPTTL,
		"app.reset_token_ttl":        c.App.ResetTokenTTL,
		"app.verification_token_ttl": c.App.VerificationTokenTTL,
	}
	for name, ttl := range ttls {
		if ttl <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if c.App.OTPLength < 4 || c.App.OTPLength > 10 {
		return fmt.Errorf("app.otp_length must be between 4 and 10, got %d", c.App.OTPLength)
	}
	if c.App.OTPMaxAttempts <= 0 {
		return errors.New("app.otp_max_attempts must be positive")
	}

	// Admin codes and reset links are mailed inside the request.
	if c.Server.WriteTimeout > 0 && c.Email.SendBudget() >= c.Server.WriteTimeout {
		return fmt.Errorf("email send budget %s (timeout x attempts + backoff) must be below server.write_timeout %s",
			c.Email.SendBudget(), c.Server.WriteTimeout)
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.cors_allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.rate_limit_requests", 20)
	v.SetDefault("server.rate_limit_window", time.Minute)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "faaxis")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.name", "faaxis")
	v.SetDefault("database.ssl_mode", "disable")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.token_ttl", 7*24*time.Hour)
	v.SetDefault("jwt.issuer", "faaxis")

	v.SetDefault("session.ttl", 7*24*time.Hour)
	v.SetDefault("session.cookie_name", "faaxis_sid")
	v.SetDefault("session.token_cookie_name", "auth_token")
	v.SetDefault("session.cookie_secure", false)

	v.SetDefault("email.service_url", "http://localhost:8081")
	v.SetDefault("email.timeout", 3*time.Second)
	v.SetDefault("email.retry_count", 2)
	v.SetDefault("email.breaker_failures", 5)
	v.SetDefault("email.breaker_timeout", 30*time.Second)

	v.SetDefault("app.name", "FA Axis")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.base_url", "http://localhost:5173")
	v.SetDefault("app.otp_length", 6)
	v.SetDefault("app.otp_ttl", 10*time.Minute)
	v.SetDefault("app.otp_max_attempts", 5)
	v.SetDefault("app.reset_token_ttl", time.Hour)
	v.SetDefault("app.verification_token_ttl", 24*time.Hour)
}
