package domain

import (
	"time"
)

// User is the identity record owned by the credential store. Secrets never
// leave the service through JSON.
type User struct {
	ID            int64     `json:"id"`
	Username      string    `json:"username"`
	PasswordHash  string    `json:"-"`
	FirstName     *string   `json:"firstName,omitempty"`
	LastName      *string   `json:"lastName,omitempty"`
	Phone         *string   `json:"phone,omitempty"`
	IsAdmin       bool      `json:"isAdmin"`
	IsPremium     bool      `json:"isPremium"`
	EmailVerified bool      `json:"emailVerified"`
	TOTPSecret    *string   `json:"-"`
	TOTPEnabled   bool      `json:"totpEnabled"`
	TOTPVerified  bool      `json:"-"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Session is the server-side record behind the session cookie. IsAdmin is
// only set by the admin step-up flow.
type Session struct {
	ID        string    `json:"-"`
	UserID    int64     `json:"user_id"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

// AdminOTP is a pending admin login waiting for its one-time code.
type AdminOTP struct {
	UserID   int64  `json:"user_id"`
	CodeHash string `json:"-"`
	Attempts int    `json:"attempts"`
}

type TOTPSetupData struct {
	Secret    string `json:"secret"`
	QRCodeURL string `json:"qr_code_url"`
}
