// Package testutil provides in-memory collaborators for service and handler
// tests.
package testutil

import (
	"context"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"faaxis/internal/app/model/domain"
	"faaxis/internal/app/repo"
)

// NewRedis starts a miniredis server for the duration of the test.
func NewRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

// TOTPCode returns the authenticator-app code for secret at the given time.
func TOTPCode(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCode(secret, at)
	if err != nil {
		t.Fatalf("generate TOTP code: %v", err)
	}
	return code
}

func NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type memoryUser struct {
	user              domain.User
	resetToken        string
	resetExpiry       time.Time
	verifyToken       string
	verifyTokenExpiry time.Time
}

// MemoryUserRepository is a mutex-guarded repo.UserRepository. Token
// consumption is atomic like the row-locked Postgres version.
type MemoryUserRepository struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*memoryUser
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[int64]*memoryUser)}
}

var _ repo.UserRepository = (*MemoryUserRepository)(nil)

func (m *MemoryUserRepository) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.user.Username == user.Username {
			return repo.ErrDuplicateUsername
		}
	}

	m.nextID++
	now := time.Now()
	user.ID = m.nextID
	user.CreatedAt = now
	user.UpdatedAt = now
	m.users[user.ID] = &memoryUser{user: *user}
	return nil
}

func (m *MemoryUserRepository) GetByID(_ context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := u.user
	return &cp, nil
}

func (m *MemoryUserRepository) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.user.Username == username {
			cp := u.user
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryUserRepository) List(_ context.Context) ([]*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := make([]*domain.User, 0, len(m.users))
	for _, u := range m.users {
		cp := u.user
		users = append(users, &cp)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (m *MemoryUserRepository) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; !ok {
		return repo.ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *MemoryUserRepository) UpdateProfile(_ context.Context, id int64, firstName, lastName, phone *string) error {
	return m.update(id, func(u *memoryUser) {
		u.user.FirstName = firstName
		u.user.LastName = lastName
		u.user.Phone = phone
	})
}

func (m *MemoryUserRepository) UpdatePasswordHash(_ context.Context, id int64, passwordHash string) error {
	return m.update(id, func(u *memoryUser) { u.user.PasswordHash = passwordHash })
}

func (m *MemoryUserRepository) SetResetToken(_ context.Context, id int64, tokenHash string, expiresAt time.Time) error {
	return m.update(id, func(u *memoryUser) {
		u.resetToken = tokenHash
		u.resetExpiry = expiresAt
	})
}

func (m *MemoryUserRepository) ResetPassword(_ context.Context, tokenHash, passwordHash string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, u := range m.users {
		if u.resetToken == "" || u.resetToken != tokenHash {
			continue
		}
		if !now.Before(u.resetExpiry) {
			return 0, repo.ErrTokenInvalid
		}
		u.user.PasswordHash = passwordHash
		u.resetToken = ""
		u.resetExpiry = time.Time{}
		return id, nil
	}
	return 0, repo.ErrTokenInvalid
}

func (m *MemoryUserRepository) SetVerificationToken(_ context.Context, id int64, tokenHash string, expiresAt time.Time) error {
	return m.update(id, func(u *memoryUser) {
		u.verifyToken = tokenHash
		u.verifyTokenExpiry = expiresAt
	})
}

func (m *MemoryUserRepository) VerifyEmail(_ context.Context, tokenHash string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, u := range m.users {
		if u.verifyToken == "" || u.verifyToken != tokenHash {
			continue
		}
		if !now.Before(u.verifyTokenExpiry) {
			return 0, repo.ErrTokenInvalid
		}
		u.user.EmailVerified = true
		u.verifyToken = ""
		u.verifyTokenExpiry = time.Time{}
		return id, nil
	}
	return 0, repo.ErrTokenInvalid
}

func (m *MemoryUserRepository) SetTOTPSecret(_ context.Context, id int64, secret string) error {
	return m.update(id, func(u *memoryUser) {
		u.user.TOTPSecret = &secret
		u.user.TOTPEnabled = false
		u.user.TOTPVerified = false
	})
}

func (m *MemoryUserRepository) EnableTOTP(_ context.Context, id int64) error {
	return m.update(id, func(u *memoryUser) {
		u.user.TOTPEnabled = true
		u.user.TOTPVerified = true
	})
}

func (m *MemoryUserRepository) DisableTOTP(_ context.Context, id int64) error {
	return m.update(id, func(u *memoryUser) {
		u.user.TOTPSecret = nil
		u.user.TOTPEnabled = false
		u.user.TOTPVerified = false
	})
}

// SetAdmin flips the admin flag, standing in for the seed migration.
func (m *MemoryUserRepository) SetAdmin(id int64, isAdmin bool) {
	_ = m.update(id, func(u *memoryUser) { u.user.IsAdmin = isAdmin })
}

func (m *MemoryUserRepository) update(id int64, fn func(u *memoryUser)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return repo.ErrUserNotFound
	}
	fn(u)
	u.user.UpdatedAt = time.Now()
	return nil
}

// SentEmail is one message captured by RecordingMailer.
type SentEmail struct {
	Kind  string
	To    string
	Value string
}

// RecordingMailer captures outbound codes and links instead of sending them.
type RecordingMailer struct {
	mu   sync.Mutex
	sent []SentEmail
	Err  error
}

func (r *RecordingMailer) record(kind, to, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.sent = append(r.sent, SentEmail{Kind: kind, To: to, Value: value})
	return nil
}

func (r *RecordingMailer) SendAdminCodeEmail(_ context.Context, to, code string, _ time.Duration) error {
	return r.record("admin_code", to, code)
}

func (r *RecordingMailer) SendPasswordResetEmail(_ context.Context, to, link string, _ time.Duration) error {
	return r.record("password_reset", to, link)
}

func (r *RecordingMailer) SendVerificationEmail(_ context.Context, to, link string, _ time.Duration) error {
	return r.record("verify_email", to, link)
}

// Last returns the most recent message of the given kind.
func (r *RecordingMailer) Last(kind string) (SentEmail, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.sent) - 1; i >= 0; i-- {
		if r.sent[i].Kind == kind {
			return r.sent[i], true
		}
	}
	return SentEmail{}, false
}
