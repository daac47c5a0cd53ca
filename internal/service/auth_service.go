package service

import (
	"context"
	"errors"
	"time"

	"faaxis/internal/app/model/domain"
	"faaxis/internal/utils"
)

// AuthService defines the interface for authentication business logic
type AuthService interface {
	// Session authentication
	Register(ctx context.Context, in *RegisterInput) (*LoginResult, error)
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	Logout(ctx context.Context, sessionID string) error
	CurrentUser(ctx context.Context, sessionID string) (*domain.User, error)
	CurrentSession(ctx context.Context, sessionID string) (*domain.Session, *domain.User, error)

	// Token authentication
	TokenRegister(ctx context.Context, in *RegisterInput) (*TokenResult, error)
	TokenLogin(ctx context.Context, username, password string) (*TokenResult, error)
	UserFromToken(ctx context.Context, token string) (*domain.User, error)
	Bridge(ctx context.Context, sessionID string) (*TokenResult, error)

	// Admin step-up
	AdminVerifyPassword(ctx context.Context, email, password string) (string, error)
	AdminVerifyCode(ctx context.Context, otpKey, code string) (*LoginResult, error)

	// Time-based one-time passwords
	GenerateTOTPSecret(ctx context.Context, username string) (*domain.TOTPSetupData, error)
	VerifyTOTP(ctx context.Context, username, code string) (bool, error)
	DisableTOTP(ctx context.Context, username string) error

	// Account recovery and verification
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	VerifyEmail(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, userID int64) error

	// User management
	UpdateProfile(ctx context.Context, userID int64, update *ProfileUpdate) (*domain.User, error)
	GetUserByID(ctx context.Context, userID int64) (*domain.User, error)
	ListUsers(ctx context.Context) ([]*domain.User, error)
	DeleteUser(ctx context.Context, actorID, userID int64) error
}

// Mailer delivers out-of-band messages. *email.Client implements it.
type Mailer interface {
	SendAdminCodeEmail(ctx context.Context, to, code string, ttl time.Duration) error
	SendPasswordResetEmail(ctx context.Context, to, link string, ttl time.Duration) error
	SendVerificationEmail(ctx context.Context, to, link string, ttl time.Duration) error
}

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserExists         = errors.New("username already registered")
	ErrInvalidCode        = errors.New("invalid or expired verification code")
	ErrTooManyAttempts    = errors.New("too many failed attempts, please sign in again")
	ErrUnauthenticated    = errors.New("not authenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrUserNotFound       = errors.New("user not found")
	ErrSessionStore       = errors.New("session store unavailable")

	ErrInvalidToken     = utils.ErrInvalidToken
	ErrInvalidSignature = utils.ErrInvalidSignature
	ErrTokenExpired     = utils.ErrTokenExpired
)

// Service request/response DTOs
type RegisterInput struct {
	Username  string
	Password  string
	FirstName *string
	LastName  *string
	Phone     *string
}

// ProfileUpdate carries optional profile fields; nil leaves a field unchanged.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Phone     *string
}

type LoginResult struct {
	User      *domain.User
	SessionID string
}

type TokenResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// Service configuration
type Config struct {
	SessionTTL           time.Duration
	OTPLength            int
	OTPTTL               time.Duration
	OTPMaxAttempts       int
	ResetTokenTTL        time.Duration
	VerificationTokenTTL time.Duration
	BaseURL              string
	Clock                func() time.Time
}
