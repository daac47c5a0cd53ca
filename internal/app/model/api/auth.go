package api

import (
	"time"

	"faaxis/internal/app/model/domain"
)

// Request Types with OpenAPI annotations

// LoginRequest represents the login request payload
// @Description Session or token login request
type LoginRequest struct {
	Username string `json:"username" validate:"required" example:"alice@example.com"`
	Password string `json:"password" validate:"required" example:"Str0ngP@ss1"`
}

// RegisterRequest represents the registration request payload
// @Description User registration request
type RegisterRequest struct {
	Username  string  `json:"username" validate:"required,email" example:"alice@example.com"`
	Password  string  `json:"password" validate:"required,min=8,max=72" example:"Str0ngP@ss1"`
	FirstName *string `json:"firstName,omitempty" validate:"omitempty,max=100" example:"Alice"`
	LastName  *string `json:"lastName,omitempty" validate:"omitempty,max=100" example:"Smith"`
	Phone     *string `json:"phone,omitempty" validate:"omitempty,max=32" example:"+15555550100"`
}

// UpdateProfileRequest represents the profile update payload
// @Description Profile update request
type UpdateProfileRequest struct {
	FirstName *string `json:"firstName,omitempty" validate:"omitempty,max=100" example:"Alice"`
	LastName  *string `json:"lastName,omitempty" validate:"omitempty,max=100" example:"Smith"`
	Phone     *string `json:"phone,omitempty" validate:"omitempty,max=32" example:"+15555550100"`
}

// AdminVerifyRequest represents the admin password step
// @Description Admin password verification request
type AdminVerifyRequest struct {
	Email    string `json:"email" validate:"required,email" example:"admin@example.com"`
	Password string `json:"password" validate:"required" example:"adminPassword1"`
}

// AdminVerifyCodeRequest represents the admin one-time code step
// @Description Admin one-time code verification request
type AdminVerifyCodeRequest struct {
	OTPKey string `json:"otpKey" validate:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	Code   string `json:"code" validate:"required,numeric,min=4,max=10" example:"123456"`
}

// TOTPUserRequest identifies the account a TOTP operation applies to
// @Description TOTP setup request
type TOTPUserRequest struct {
	Username string `json:"username" validate:"required" example:"admin@example.com"`
}

// VerifyTOTPRequest represents the TOTP verification payload
// @Description TOTP verification request
type VerifyTOTPRequest struct {
	Username string `json:"username" validate:"required" example:"admin@example.com"`
	Code     string `json:"code" validate:"required,len=6,numeric" example:"123456"`
}

// ForgotPasswordRequest represents the password reset request payload
// @Description Password reset request
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email" example:"alice@example.com"`
}

// ResetPasswordRequest represents the password reset payload
// @Description Password reset with token
type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required,hexadecimal" example:"9f86d081884c7d659a2feaa0c55ad015"`
	Password string `json:"password" validate:"required,min=8,max=72" example:"N3wStr0ngP@ss"`
}

// Response Types

// UserResponse represents the user response
// @Description User information response
type UserResponse struct {
	ID            int64     `json:"id" example:"42"`
	Username      string    `json:"username" example:"alice@example.com"`
	FirstName     *string   `json:"firstName,omitempty" example:"Alice"`
	LastName      *string   `json:"lastName,omitempty" example:"Smith"`
	Phone         *string   `json:"phone,omitempty" example:"+15555550100"`
	IsAdmin       bool      `json:"isAdmin" example:"false"`
	IsPremium     bool      `json:"isPremium" example:"false"`
	EmailVerified bool      `json:"emailVerified" example:"true"`
	TOTPEnabled   bool      `json:"totpEnabled" example:"false"`
	CreatedAt     time.Time `json:"createdAt"`
}

// NewUserResponse maps a domain user onto its public representation.
func NewUserResponse(u *domain.User) *UserResponse {
	return &UserResponse{
		ID:            u.ID,
		Username:      u.Username,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Phone:         u.Phone,
		IsAdmin:       u.IsAdmin,
		IsPremium:     u.IsPremium,
		EmailVerified: u.EmailVerified,
		TOTPEnabled:   u.TOTPEnabled,
		CreatedAt:     u.CreatedAt,
	}
}

// UserEnvelope wraps a single user
// @Description Current user response
type UserEnvelope struct {
	User *UserResponse `json:"user"`
}

// UserListResponse represents the admin user listing
// @Description Admin user list response
type UserListResponse struct {
	Users []*UserResponse `json:"users"`
}

// SessionResponse represents an established session
// @Description Session login response
type SessionResponse struct {
	User      *UserResponse `json:"user"`
	SessionID string        `json:"sessionId" example:"3f1c0c0e5e..."`
}

// TokenResponse represents an issued auth token
// @Description Token login response
type TokenResponse struct {
	User      *UserResponse `json:"user"`
	Token     string        `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	ExpiresAt time.Time     `json:"expiresAt"`
}

// AdminOTPResponse represents the admin password step response
// @Description Admin one-time code challenge
type AdminOTPResponse struct {
	OTPKey  string `json:"otpKey" example:"550e8400-e29b-41d4-a716-446655440000"`
	Message string `json:"message" example:"Verification code sent to your email"`
}

// TOTPSetupResponse represents the TOTP setup response
// @Description TOTP secret and provisioning URL
type TOTPSetupResponse struct {
	Secret    string `json:"secret" example:"JBSWY3DPEHPK3PXP"`
	QRCodeURL string `json:"qrCodeUrl" example:"otpauth://totp/FA%20Axis:admin@example.com?secret=JBSWY3DPEHPK3PXP&issuer=FA%20Axis"`
}

// TOTPVerifyResponse represents the TOTP verification result
// @Description TOTP verification result
type TOTPVerifyResponse struct {
	Verified bool `json:"verified" example:"true"`
}

// SuccessResponse represents a generic success response
// @Description Generic success response
type SuccessResponse struct {
	Message string `json:"message" example:"Operation completed successfully"`
	Success bool   `json:"success" example:"true"`
}

// ErrorResponse represents an error response
// @Description Error response
type ErrorResponse struct {
	Error   string `json:"error" example:"validation_error"`
	Message string `json:"message" example:"Invalid input data"`
	Success bool   `json:"success" example:"false"`
}

// HealthResponse represents the health check response
// @Description Health check response
type HealthResponse struct {
	Status  string `json:"status" example:"healthy"`
	Service string `json:"service" example:"faaxis-auth"`
	Version string `json:"version" example:"1.0.0"`
}
