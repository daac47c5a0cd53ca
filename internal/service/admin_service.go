package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"faaxis/internal/app/model/domain"
	"faaxis/internal/app/repo"
	"faaxis/internal/metrics"
	"faaxis/internal/utils"
)

// AdminVerifyPassword is the first step of the admin login. It emails a
// one-time code and returns the opaque key the code is bound to.
func (s *authServiceImpl) AdminVerifyPassword(ctx context.Context, email, password string) (string, error) {
	username := normalizeUsername(email)
	if username == "" || password == "" {
		return "", fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("admin_password", metrics.OutcomeError).Inc()
		return "", fmt.Errorf("failed to get user: %w", err)
	}
	if user != nil && !user.IsAdmin {
		// Same cost as a real check, without touching the account's hash.
		user = nil
	}
	if !s.checkPassword(ctx, user, password) {
		metrics.AuthAttempts.WithLabelValues("admin_password", metrics.OutcomeFailure).Inc()
		s.logger.Warn("Invalid admin login attempt")
		return "", ErrInvalidCredentials
	}

	code, err := utils.GenerateOTP(s.config.OTPLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}

	otpKey := uuid.NewString()
	otp := &domain.AdminOTP{
		UserID:   user.ID,
		CodeHash: utils.HashSecret(code),
	}
	if err := s.redisRepo.SetAdminOTP(ctx, otpKey, otp, s.config.OTPTTL); err != nil {
		return "", fmt.Errorf("failed to store admin code: %w", err)
	}

	if err := s.mailer.SendAdminCodeEmail(ctx, user.Username, code, s.config.OTPTTL); err != nil {
		if _, delErr := s.redisRepo.ConsumeAdminOTP(ctx, otpKey); delErr != nil {
			s.logger.WithError(delErr).Error("Failed to discard undelivered admin code")
		}
		return "", fmt.Errorf("failed to send admin code: %w", err)
	}

	metrics.AuthAttempts.WithLabelValues("admin_password", metrics.OutcomeSuccess).Inc()
	metrics.AdminOTPEvents.WithLabelValues("issued").Inc()
	s.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
	}).Info("Admin verification code sent")

	return otpKey, nil
}

// AdminVerifyCode completes the admin login. Each wrong code counts against
// the challenge; reaching the limit discards it and the admin must start over.
func (s *authServiceImpl) AdminVerifyCode(ctx context.Context, otpKey, code string) (*LoginResult, error) {
	otp, err := s.redisRepo.GetAdminOTP(ctx, otpKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load admin code: %w", err)
	}
	if otp == nil {
		metrics.AdminOTPEvents.WithLabelValues("rejected").Inc()
		return nil, ErrInvalidCode
	}

	user, err := s.userRepo.GetByID(ctx, otp.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil || !user.IsAdmin {
		s.discardAdminOTP(ctx, otpKey)
		return nil, ErrInvalidCode
	}

	// The attempt is counted before the code is compared, so parallel guesses
	// against one challenge never exceed the limit.
	attempts, err := s.redisRepo.IncrementAdminOTPAttempts(ctx, otpKey)
	if err != nil {
		return nil, fmt.Errorf("failed to record attempt: %w", err)
	}
	if attempts < 0 {
		metrics.AdminOTPEvents.WithLabelValues("rejected").Inc()
		return nil, ErrInvalidCode
	}
	if attempts > s.config.OTPMaxAttempts {
		s.discardAdminOTP(ctx, otpKey)
		metrics.AdminOTPEvents.WithLabelValues("locked_out").Inc()
		return nil, ErrTooManyAttempts
	}

	if !s.matchAdminCode(otp, user, code) {
		return nil, s.rejectAdminCode(ctx, otpKey, user.ID, attempts)
	}

	consumed, err := s.redisRepo.ConsumeAdminOTP(ctx, otpKey)
	if err != nil {
		return nil, fmt.Errorf("failed to consume admin code: %w", err)
	}
	if !consumed {
		// Another request used the same challenge first.
		return nil, ErrInvalidCode
	}

	sessionID, err := s.createSession(ctx, user, true)
	if err != nil {
		return nil, err
	}

	metrics.AuthAttempts.WithLabelValues("admin_code", metrics.OutcomeSuccess).Inc()
	metrics.AdminOTPEvents.WithLabelValues("verified").Inc()
	s.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
	}).Info("Admin session established")

	return &LoginResult{User: user, SessionID: sessionID}, nil
}

func (s *authServiceImpl) matchAdminCode(otp *domain.AdminOTP, user *domain.User, code string) bool {
	if utils.ValidateOTP(code, otp.CodeHash) {
		return true
	}
	return user.TOTPEnabled && user.TOTPSecret != nil && s.totpManager.ValidateCode(code, *user.TOTPSecret)
}

func (s *authServiceImpl) rejectAdminCode(ctx context.Context, otpKey string, userID int64, attempts int) error {
	metrics.AuthAttempts.WithLabelValues("admin_code", metrics.OutcomeFailure).Inc()

	if attempts >= s.config.OTPMaxAttempts {
		s.discardAdminOTP(ctx, otpKey)
		metrics.AdminOTPEvents.WithLabelValues("locked_out").Inc()
		s.logger.WithFields(logrus.Fields{
			"user_id":  userID,
			"attempts": attempts,
		}).Warn("Admin verification locked out")
		return ErrTooManyAttempts
	}

	metrics.AdminOTPEvents.WithLabelValues("rejected").Inc()
	s.logger.WithFields(logrus.Fields{
		"user_id":  userID,
		"attempts": attempts,
	}).Warn("Invalid admin verification code")
	return ErrInvalidCode
}

func (s *authServiceImpl) discardAdminOTP(ctx context.Context, otpKey string) {
	if _, err := s.redisRepo.ConsumeAdminOTP(ctx, otpKey); err != nil {
		s.logger.WithError(err).Error("Failed to discard admin code")
	}
}

func (s *authServiceImpl) GenerateTOTPSecret(ctx context.Context, username string) (*domain.TOTPSetupData, error) {
	user, err := s.lookupUser(ctx, username)
	if err != nil {
		return nil, err
	}

	secret, qrCodeURL, err := s.totpManager.GenerateSecret(user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP secret: %w", err)
	}

	if err := s.userRepo.SetTOTPSecret(ctx, user.ID, secret); err != nil {
		return nil, fmt.Errorf("failed to store TOTP secret: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
	}).Info("TOTP secret generated")

	return &domain.TOTPSetupData{Secret: secret, QRCodeURL: qrCodeURL}, nil
}

// VerifyTOTP checks a code against the stored secret. The first successful
// check enables TOTP for the account.
func (s *authServiceImpl) VerifyTOTP(ctx context.Context, username, code string) (bool, error) {
	user, err := s.lookupUser(ctx, username)
	if err != nil {
		return false, err
	}
	if user.TOTPSecret == nil {
		return false, nil
	}

	if !s.totpManager.ValidateCode(code, *user.TOTPSecret) {
		s.logger.WithFields(logrus.Fields{
			"user_id": user.ID,
		}).Warn("Invalid TOTP code")
		return false, nil
	}

	if !user.TOTPEnabled {
		if err := s.userRepo.EnableTOTP(ctx, user.ID); err != nil {
			return false, fmt.Errorf("failed to enable TOTP: %w", err)
		}
		s.logger.WithFields(logrus.Fields{
			"user_id": user.ID,
		}).Info("TOTP enabled")
	}

	return true, nil
}

func (s *authServiceImpl) DisableTOTP(ctx context.Context, username string) error {
	user, err := s.lookupUser(ctx, username)
	if err != nil {
		return err
	}

	if err := s.userRepo.DisableTOTP(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to disable TOTP: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
	}).Info("TOTP disabled")

	return nil
}

func (s *authServiceImpl) ListUsers(ctx context.Context) ([]*domain.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// DeleteUser removes an account and revokes its sessions. Admins cannot
// delete their own account.
func (s *authServiceImpl) DeleteUser(ctx context.Context, actorID, userID int64) error {
	if actorID == userID {
		return fmt.Errorf("%w: cannot delete your own account", ErrValidation)
	}

	if err := s.userRepo.Delete(ctx, userID); err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if err := s.redisRepo.DeleteUserSessions(ctx, userID); err != nil {
		s.logger.WithFields(logrus.Fields{
			"user_id": userID,
			"error":   err.Error(),
		}).Error("Failed to revoke sessions of deleted user")
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":  userID,
		"actor_id": actorID,
	}).Info("User deleted")

	return nil
}

func (s *authServiceImpl) lookupUser(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, normalizeUsername(username))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
