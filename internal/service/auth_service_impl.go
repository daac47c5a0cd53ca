package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"faaxis/internal/app/model/domain"
	"faaxis/internal/app/repo"
	"faaxis/internal/metrics"
	"faaxis/internal/utils"
)

const sessionIDBytes = 32

// bcrypt ignores input past 72 bytes and rejects longer passwords outright.
const maxPasswordBytes = 72

// authServiceImpl implements the AuthService interface
type authServiceImpl struct {
	userRepo     repo.UserRepository
	redisRepo    repo.RedisRepository
	mailer       Mailer
	tokenManager *utils.TokenManager
	totpManager  *utils.TOTPManager
	validate     *validator.Validate
	logger       *logrus.Logger
	config       *Config
}

// NewAuthService creates a new instance of AuthService
func NewAuthService(
	userRepo repo.UserRepository,
	redisRepo repo.RedisRepository,
	mailer Mailer,
	tokenManager *utils.TokenManager,
	totpManager *utils.TOTPManager,
	logger *logrus.Logger,
	config *Config,
) AuthService {
	if config.Clock == nil {
		config.Clock = time.Now
	}
	return &authServiceImpl{
		userRepo:     userRepo,
		redisRepo:    redisRepo,
		mailer:       mailer,
		tokenManager: tokenManager,
		totpManager:  totpManager,
		validate:     validator.New(),
		logger:       logger,
		config:       config,
	}
}

func (s *authServiceImpl) Register(ctx context.Context, in *RegisterInput) (*LoginResult, error) {
	user, err := s.createUser(ctx, in)
	if err != nil {
		return nil, err
	}

	sessionID, err := s.createSession(ctx, user, false)
	if err != nil {
		s.rollbackRegistration(ctx, user)
		return nil, err
	}

	s.sendVerification(ctx, user)
	return &LoginResult{User: user, SessionID: sessionID}, nil
}

func (s *authServiceImpl) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.authenticate(ctx, username, password, "session")
	if err != nil {
		return nil, err
	}

	sessionID, err := s.createSession(ctx, user, false)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("session", metrics.OutcomeError).Inc()
		return nil, err
	}

	metrics.AuthAttempts.WithLabelValues("session", metrics.OutcomeSuccess).Inc()
	s.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
	}).Info("User logged in")

	return &LoginResult{User: user, SessionID: sessionID}, nil
}

func (s *authServiceImpl) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.redisRepo.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("%w: %v", ErrSessionStore, err)
	}
	return nil
}

func (s *authServiceImpl) CurrentUser(ctx context.Context, sessionID string) (*domain.User, error) {
	_, user, err := s.CurrentSession(ctx, sessionID)
	return user, err
}

// CurrentSession resolves a session id to its session and user. A missing,
// expired or orphaned session yields nil values and no error.
func (s *authServiceImpl) CurrentSession(ctx context.Context, sessionID string) (*domain.Session, *domain.User, error) {
	if sessionID == "" {
		return nil, nil, nil
	}

	session, err := s.redisRepo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSessionStore, err)
	}
	if session == nil {
		return nil, nil, nil
	}

	user, err := s.userRepo.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		s.logger.WithFields(logrus.Fields{
			"user_id": session.UserID,
		}).Warn("Dropping session of deleted user")
		if err := s.redisRepo.DeleteSession(ctx, sessionID); err != nil {
			s.logger.WithError(err).Error("Failed to delete orphaned session")
		}
		return nil, nil, nil
	}

	return session, user, nil
}

func (s *authServiceImpl) TokenRegister(ctx context.Context, in *RegisterInput) (*TokenResult, error) {
	user, err := s.createUser(ctx, in)
	if err != nil {
		return nil, err
	}

	result, err := s.issueToken(user)
	if err != nil {
		s.rollbackRegistration(ctx, user)
		return nil, err
	}

	s.sendVerification(ctx, user)
	return result, nil
}

func (s *authServiceImpl) TokenLogin(ctx context.Context, username, password string) (*TokenResult, error) {
	user, err := s.authenticate(ctx, username, password, "token")
	if err != nil {
		return nil, err
	}

	result, err := s.issueToken(user)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("token", metrics.OutcomeError).Inc()
		return nil, err
	}

	metrics.AuthAttempts.WithLabelValues("token", metrics.OutcomeSuccess).Inc()
	return result, nil
}

// UserFromToken verifies a token and loads its user. Tokens for users that no
// longer exist are rejected.
func (s *authServiceImpl) UserFromToken(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.tokenManager.Validate(token)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidToken
	}

	return user, nil
}

func (s *authServiceImpl) Bridge(ctx context.Context, sessionID string) (*TokenResult, error) {
	_, user, err := s.CurrentSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUnauthenticated
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
	}).Info("Issuing token for session")

	return s.issueToken(user)
}

// Private helper methods
func (s *authServiceImpl) createUser(ctx context.Context, in *RegisterInput) (*domain.User, error) {
	username := normalizeUsername(in.Username)
	if err := s.validate.Var(username, "required,email"); err != nil {
		return nil, fmt.Errorf("%w: username must be a valid email address", ErrValidation)
	}
	if err := s.validatePassword(in.Password); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Phone:        in.Phone,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repo.ErrDuplicateUsername) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
	}).Info("User registered")

	return user, nil
}

// rollbackRegistration removes an account whose registration could not be
// completed, so the client can retry with the same username.
func (s *authServiceImpl) rollbackRegistration(ctx context.Context, user *domain.User) {
	if err := s.userRepo.Delete(context.WithoutCancel(ctx), user.ID); err != nil {
		s.logger.WithFields(logrus.Fields{
			"user_id": user.ID,
			"error":   err.Error(),
		}).Error("Failed to roll back registration")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
	}).Warn("Registration rolled back")
}

// sendVerification emails the verification link. Registration does not fail
// when delivery does.
func (s *authServiceImpl) sendVerification(ctx context.Context, user *domain.User) {
	if err := s.issueVerification(ctx, user); err != nil {
		s.logger.WithFields(logrus.Fields{
			"user_id": user.ID,
			"error":   err.Error(),
		}).Error("Failed to send verification email")
	}
}

// authenticate checks credentials and returns the same error for an unknown
// user and a wrong password.
func (s *authServiceImpl) authenticate(ctx context.Context, username, password, method string) (*domain.User, error) {
	username = normalizeUsername(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrValidation)
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues(method, metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !s.checkPassword(ctx, user, password) {
		metrics.AuthAttempts.WithLabelValues(method, metrics.OutcomeFailure).Inc()
		s.logger.WithFields(logrus.Fields{
			"method": method,
		}).Warn("Invalid login attempt")
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// checkPassword verifies password against the user's stored hash and upgrades
// legacy hashes to bcrypt after a successful match. A nil user still pays for
// one bcrypt comparison.
func (s *authServiceImpl) checkPassword(ctx context.Context, user *domain.User, password string) bool {
	if user == nil {
		start := time.Now()
		utils.VerifyNoPassword(password)
		metrics.PasswordVerifyDuration.WithLabelValues(utils.PasswordFormatNone).Observe(time.Since(start).Seconds())
		return false
	}

	format := utils.PasswordFormat(user.PasswordHash)
	start := time.Now()
	ok, needsRehash := utils.VerifyPassword(password, user.PasswordHash)
	metrics.PasswordVerifyDuration.WithLabelValues(format).Observe(time.Since(start).Seconds())

	if format == utils.PasswordFormatUnknown {
		s.logger.WithFields(logrus.Fields{
			"user_id": user.ID,
		}).Debug("Stored password hash has an unrecognised format")
	}
	if !ok {
		return false
	}

	if needsRehash {
		hash, err := utils.HashPassword(password)
		if err == nil {
			err = s.userRepo.UpdatePasswordHash(ctx, user.ID, hash)
		}
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"user_id": user.ID,
				"error":   err.Error(),
			}).Error("Failed to upgrade legacy password hash")
		} else {
			user.PasswordHash = hash
			s.logger.WithFields(logrus.Fields{
				"user_id": user.ID,
			}).Info("Upgraded legacy password hash")
		}
	}

	return true
}

func (s *authServiceImpl) validatePassword(password string) error {
	if err := s.validate.Var(password, "required,min=8"); err != nil || len(password) > maxPasswordBytes {
		return fmt.Errorf("%w: password must be at least 8 characters and at most %d bytes", ErrValidation, maxPasswordBytes)
	}
	return nil
}

func (s *authServiceImpl) createSession(ctx context.Context, user *domain.User, isAdmin bool) (string, error) {
	sessionID, err := utils.GenerateRandomToken(sessionIDBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}

	session := &domain.Session{
		ID:        sessionID,
		UserID:    user.ID,
		IsAdmin:   isAdmin,
		CreatedAt: s.config.Clock().UTC(),
	}
	if err := s.redisRepo.CreateSession(ctx, session, s.config.SessionTTL); err != nil {
		s.logger.WithFields(logrus.Fields{
			"user_id": user.ID,
			"error":   err.Error(),
		}).Error("Failed to persist session")
		return "", fmt.Errorf("%w: %v", ErrSessionStore, err)
	}

	return sessionID, nil
}

func (s *authServiceImpl) issueToken(user *domain.User) (*TokenResult, error) {
	token, expiresAt, err := s.tokenManager.Generate(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &TokenResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
