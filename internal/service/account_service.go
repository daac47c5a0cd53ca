package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"

	"faaxis/internal/app/model/domain"
	"faaxis/internal/app/repo"
	"faaxis/internal/metrics"
	"faaxis/internal/utils"
)

const accountTokenBytes = 32

// RequestPasswordReset emails a reset link when the account exists. The
// caller cannot tell whether it did.
func (s *authServiceImpl) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByUsername(ctx, normalizeUsername(email))
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		s.logger.Info("Password reset requested for unknown account")
		return nil
	}

	token, err := utils.GenerateRandomToken(accountTokenBytes)
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}

	expiresAt := s.config.Clock().Add(s.config.ResetTokenTTL)
	if err := s.userRepo.SetResetToken(ctx, user.ID, utils.HashSecret(token), expiresAt); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	link := s.link("/reset-password", token)
	if err := s.mailer.SendPasswordResetEmail(ctx, user.Username, link, s.config.ResetTokenTTL); err != nil {
		s.logger.WithFields(logrus.Fields{
			"user_id": user.ID,
			"error":   err.Error(),
		}).Error("Failed to send password reset email")
		return nil
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
	}).Info("Password reset email sent")

	return nil
}

// ResetPassword consumes a reset token. Concurrent requests with the same
// token see exactly one success.
func (s *authServiceImpl) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return fmt.Errorf("%w: token is required", ErrValidation)
	}
	if err := s.validatePassword(newPassword); err != nil {
		return err
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	userID, err := s.userRepo.ResetPassword(ctx, utils.HashSecret(token), hash, s.config.Clock())
	if err != nil {
		if errors.Is(err, repo.ErrTokenInvalid) {
			metrics.AuthAttempts.WithLabelValues("password_reset", metrics.OutcomeFailure).Inc()
			return ErrInvalidToken
		}
		metrics.AuthAttempts.WithLabelValues("password_reset", metrics.OutcomeError).Inc()
		return fmt.Errorf("failed to reset password: %w", err)
	}

	if err := s.redisRepo.DeleteUserSessions(ctx, userID); err != nil {
		s.logger.WithFields(logrus.Fields{
			"user_id": userID,
			"error":   err.Error(),
		}).Error("Failed to revoke sessions after password reset")
	}

	metrics.AuthAttempts.WithLabelValues("password_reset", metrics.OutcomeSuccess).Inc()
	s.logger.WithFields(logrus.Fields{
		"user_id": userID,
	}).Info("Password reset")

	return nil
}

func (s *authServiceImpl) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("%w: token is required", ErrValidation)
	}

	userID, err := s.userRepo.VerifyEmail(ctx, utils.HashSecret(token), s.config.Clock())
	if err != nil {
		if errors.Is(err, repo.ErrTokenInvalid) {
			return ErrInvalidToken
		}
		return fmt.Errorf("failed to verify email: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": userID,
	}).Info("Email verified")

	return nil
}

func (s *authServiceImpl) ResendVerification(ctx context.Context, userID int64) error {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return nil
	}
	return s.issueVerification(ctx, user)
}

func (s *authServiceImpl) UpdateProfile(ctx context.Context, userID int64, update *ProfileUpdate) (*domain.User, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if update.FirstName != nil {
		user.FirstName = update.FirstName
	}
	if update.LastName != nil {
		user.LastName = update.LastName
	}
	if update.Phone != nil {
		user.Phone = update.Phone
	}

	if err := s.userRepo.UpdateProfile(ctx, user.ID, user.FirstName, user.LastName, user.Phone); err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	return user, nil
}

func (s *authServiceImpl) GetUserByID(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *authServiceImpl) issueVerification(ctx context.Context, user *domain.User) error {
	token, err := utils.GenerateRandomToken(accountTokenBytes)
	if err != nil {
		return fmt.Errorf("failed to generate verification token: %w", err)
	}

	expiresAt := s.config.Clock().Add(s.config.VerificationTokenTTL)
	if err := s.userRepo.SetVerificationToken(ctx, user.ID, utils.HashSecret(token), expiresAt); err != nil {
		return fmt.Errorf("failed to store verification token: %w", err)
	}

	link := s.link("/verify-email", token)
	if err := s.mailer.SendVerificationEmail(ctx, user.Username, link, s.config.VerificationTokenTTL); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}

	return nil
}

func (s *authServiceImpl) link(path, token string) string {
	return fmt.Sprintf("%s%s?token=%s", s.config.BaseURL, path, url.QueryEscape(token))
}
