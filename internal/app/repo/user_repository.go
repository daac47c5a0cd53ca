package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"faaxis/internal/app/model/db"
	"faaxis/internal/app/model/domain"
)

const pgUniqueViolation = "23505"

var (
	ErrDuplicateUsername = errors.New("username already exists")
	ErrUserNotFound      = errors.New("user not found")
	// ErrTokenInvalid covers unknown, already consumed and expired
	// single-use tokens alike.
	ErrTokenInvalid = errors.New("token invalid or expired")
)

// UserRepository is the credential store. Lookups return nil, nil when the
// user does not exist.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	Delete(ctx context.Context, id int64) error
	UpdateProfile(ctx context.Context, id int64, firstName, lastName, phone *string) error
	UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error

	// Single-use tokens are stored as hashes and consumed atomically.
	SetResetToken(ctx context.Context, id int64, tokenHash string, expiresAt time.Time) error
	ResetPassword(ctx context.Context, tokenHash, passwordHash string, now time.Time) (int64, error)
	SetVerificationToken(ctx context.Context, id int64, tokenHash string, expiresAt time.Time) error
	VerifyEmail(ctx context.Context, tokenHash string, now time.Time) (int64, error)

	SetTOTPSecret(ctx context.Context, id int64, secret string) error
	EnableTOTP(ctx context.Context, id int64) error
	DisableTOTP(ctx context.Context, id int64) error
}

type userRepository struct {
	db *bun.DB
}

func NewUserRepository(db *bun.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	dbUser := &db.User{
		Username:      user.Username,
		PasswordHash:  user.PasswordHash,
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		Phone:         user.Phone,
		IsAdmin:       user.IsAdmin,
		IsPremium:     user.IsPremium,
		EmailVerified: user.EmailVerified,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	_, err := r.db.NewInsert().Model(dbUser).Returning("id").Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	user.ID = dbUser.ID
	user.CreatedAt = dbUser.CreatedAt
	user.UpdatedAt = dbUser.UpdatedAt

	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	dbUser := &db.User{}
	err := r.db.NewSelect().Model(dbUser).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	return toDomainUser(dbUser), nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	dbUser := &db.User{}
	err := r.db.NewSelect().Model(dbUser).Where("username = ?", username).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}

	return toDomainUser(dbUser), nil
}

func (r *userRepository) List(ctx context.Context) ([]*domain.User, error) {
	var dbUsers []db.User
	if err := r.db.NewSelect().Model(&dbUsers).Order("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]*domain.User, 0, len(dbUsers))
	for i := range dbUsers {
		users = append(users, toDomainUser(&dbUsers[i]))
	}
	return users, nil
}

func (r *userRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.NewDelete().
		Model((*db.User)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	return requireAffected(res)
}

func (r *userRepository) UpdateProfile(ctx context.Context, id int64, firstName, lastName, phone *string) error {
	res, err := r.db.NewUpdate().
		Model((*db.User)(nil)).
		Set("first_name = ?, last_name = ?, phone = ?, updated_at = ?", firstName, lastName, phone, time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	return requireAffected(res)
}

func (r *userRepository) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	res, err := r.db.NewUpdate().
		Model((*db.User)(nil)).
		Set("password_hash = ?, updated_at = ?", passwordHash, time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return requireAffected(res)
}

func (r *userRepository) SetResetToken(ctx context.Context, id int64, tokenHash string, expiresAt time.Time) error {
	res, err := r.db.NewUpdate().
		Model((*db.User)(nil)).
		Set("reset_token = ?, reset_token_expiry = ?, updated_at = ?", tokenHash, expiresAt, time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set reset token: %w", err)
	}

	return requireAffected(res)
}

// ResetPassword consumes a reset token and replaces the password hash in one
// transaction. The row lock makes a concurrent second consumer see the token
// already cleared.
func (r *userRepository) ResetPassword(ctx context.Context, tokenHash, passwordHash string, now time.Time) (int64, error) {
	var userID int64

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		dbUser := &db.User{}
		err := tx.NewSelect().
			Model(dbUser).
			Column("id", "reset_token_expiry").
			Where("reset_token = ?", tokenHash).
			Limit(1).
			For("UPDATE").
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrTokenInvalid
			}
			return fmt.Errorf("failed to load reset token: %w", err)
		}

		if dbUser.ResetTokenExpiry == nil || !now.Before(*dbUser.ResetTokenExpiry) {
			return ErrTokenInvalid
		}

		_, err = tx.NewUpdate().
			Model((*db.User)(nil)).
			Set("password_hash = ?, reset_token = NULL, reset_token_expiry = NULL, updated_at = ?", passwordHash, now).
			Where("id = ?", dbUser.ID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to reset password: %w", err)
		}

		userID = dbUser.ID
		return nil
	})
	if err != nil {
		return 0, err
	}

	return userID, nil
}

func (r *userRepository) SetVerificationToken(ctx context.Context, id int64, tokenHash string, expiresAt time.Time) error {
	res, err := r.db.NewUpdate().
		Model((*db.User)(nil)).
		Set("verification_token = ?, verification_token_expiry = ?, updated_at = ?", tokenHash, expiresAt, time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set verification token: %w", err)
	}

	return requireAffected(res)
}

func (r *userRepository) VerifyEmail(ctx context.Context, tokenHash string, now time.Time) (int64, error) {
	var userID int64

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		dbUser := &db.User{}
		err := tx.NewSelect().
			Model(dbUser).
			Column("id", "verification_token_expiry").
			Where("verification_token = ?", tokenHash).
			Limit(1).
			For("UPDATE").
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrTokenInvalid
			}
			return fmt.Errorf("failed to load verification token: %w", err)
		}

		if dbUser.VerificationTokenExpiry == nil || !now.Before(*dbUser.VerificationTokenExpiry) {
			return ErrTokenInvalid
		}

		_, err = tx.NewUpdate().
			Model((*db.User)(nil)).
			Set("email_verified = ?, verification_token = NULL, verification_token_expiry = NULL, updated_at = ?", true, now).
			Where("id = ?", dbUser.ID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to verify email: %w", err)
		}

		userID = dbUser.ID
		return nil
	})
	if err != nil {
		return 0, err
	}

	return userID, nil
}

func (r *userRepository) SetTOTPSecret(ctx context.Context, id int64, secret string) error {
	res, err := r.db.NewUpdate().
		Model((*db.User)(nil)).
		Set("totp_secret = ?, totp_enabled = ?, totp_verified = ?, updated_at = ?", secret, false, false, time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set TOTP secret: %w", err)
	}

	return requireAffected(res)
}

func (r *userRepository) EnableTOTP(ctx context.Context, id int64) error {
	res, err := r.db.NewUpdate().
		Model((*db.User)(nil)).
		Set("totp_enabled = ?, totp_verified = ?, updated_at = ?", true, true, time.Now()).
		Where("id = ?", id).
		Where("totp_secret IS NOT NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to enable TOTP: %w", err)
	}

	return requireAffected(res)
}

func (r *userRepository) DisableTOTP(ctx context.Context, id int64) error {
	res, err := r.db.NewUpdate().
		Model((*db.User)(nil)).
		Set("totp_secret = NULL, totp_enabled = ?, totp_verified = ?, updated_at = ?", false, false, time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to disable TOTP: %w", err)
	}

	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == pgUniqueViolation
}

func toDomainUser(dbUser *db.User) *domain.User {
	return &domain.User{
		ID:            dbUser.ID,
		Username:      dbUser.Username,
		PasswordHash:  dbUser.PasswordHash,
		FirstName:     dbUser.FirstName,
		LastName:      dbUser.LastName,
		Phone:         dbUser.Phone,
		IsAdmin:       dbUser.IsAdmin,
		IsPremium:     dbUser.IsPremium,
		EmailVerified: dbUser.EmailVerified,
		TOTPSecret:    dbUser.TOTPSecret,
		TOTPEnabled:   dbUser.TOTPEnabled,
		TOTPVerified:  dbUser.TOTPVerified,
		CreatedAt:     dbUser.CreatedAt,
		UpdatedAt:     dbUser.UpdatedAt,
	}
}
