package db

import (
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID                      int64      `bun:"id,pk,autoincrement"`
	Username                string     `bun:"username,unique,notnull"`
	PasswordHash            string     `bun:"password_hash,notnull"`
	FirstName               *string    `bun:"first_name"`
	LastName                *string    `bun:"last_name"`
	Phone                   *string    `bun:"phone"`
	IsAdmin                 bool       `bun:"is_admin,notnull,default:false"`
	IsPremium               bool       `bun:"is_premium,notnull,default:false"`
	EmailVerified           bool       `bun:"email_verified,notnull,default:false"`
	VerificationToken       *string    `bun:"verification_token"`
	VerificationTokenExpiry *time.Time `bun:"verification_token_expiry"`
	ResetToken              *string    `bun:"reset_token"`
	ResetTokenExpiry        *time.Time `bun:"reset_token_expiry"`
	TOTPSecret              *string    `bun:"totp_secret"`
	TOTPEnabled             bool       `bun:"totp_enabled,notnull,default:false"`
	TOTPVerified            bool       `bun:"totp_verified,notnull,default:false"`
	CreatedAt               time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt               time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
