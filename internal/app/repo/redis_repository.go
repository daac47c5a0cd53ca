package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"faaxis/internal/app/model/domain"
)

type RedisRepository interface {
	// Session operations
	CreateSession(ctx context.Context, session *domain.Session, ttl time.Duration) error
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
	DeleteUserSessions(ctx context.Context, userID int64) error

	// Admin OTP operations
	SetAdminOTP(ctx context.Context, otpKey string, otp *domain.AdminOTP, ttl time.Duration) error
	GetAdminOTP(ctx context.Context, otpKey string) (*domain.AdminOTP, error)
	IncrementAdminOTPAttempts(ctx context.Context, otpKey string) (int, error)
	ConsumeAdminOTP(ctx context.Context, otpKey string) (bool, error)
}

// incrAttemptsScript bumps the attempt counter only while the challenge still
// exists, so a late wrong guess cannot resurrect a consumed key.
var incrAttemptsScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return -1
end
return redis.call("HINCRBY", KEYS[1], "attempts", 1)
`)

type redisRepository struct {
	client *redis.Client
}

func NewRedisRepository(client *redis.Client) RedisRepository {
	return &redisRepository{client: client}
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

func userSessionsKey(userID int64) string {
	return fmt.Sprintf("user_sessions:%d", userID)
}

func adminOTPKey(otpKey string) string {
	return fmt.Sprintf("admin_otp:%s", otpKey)
}

// Session operations
func (r *redisRepository) CreateSession(ctx context.Context, session *domain.Session, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	indexKey := userSessionsKey(session.UserID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(session.ID), data, ttl)
		pipe.SAdd(ctx, indexKey, session.ID)
		pipe.Expire(ctx, indexKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (r *redisRepository) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	result, err := r.client.Get(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var session domain.Session
	if err := json.Unmarshal([]byte(result), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	session.ID = sessionID

	return &session, nil
}

func (r *redisRepository) DeleteSession(ctx context.Context, sessionID string) error {
	session, err := r.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(sessionID))
		if session != nil {
			pipe.SRem(ctx, userSessionsKey(session.UserID), sessionID)
		}
		return nil
	})
	return err
}

func (r *redisRepository) DeleteUserSessions(ctx context.Context, userID int64) error {
	indexKey := userSessionsKey(userID)
	ids, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKey(id))
	}
	keys = append(keys, indexKey)

	return r.client.Del(ctx, keys...).Err()
}

// Admin OTP operations
func (r *redisRepository) SetAdminOTP(ctx context.Context, otpKey string, otp *domain.AdminOTP, ttl time.Duration) error {
	key := adminOTPKey(otpKey)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"user_id", otp.UserID,
			"code_hash", otp.CodeHash,
			"attempts", otp.Attempts,
		)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store admin OTP: %w", err)
	}
	return nil
}

func (r *redisRepository) GetAdminOTP(ctx context.Context, otpKey string) (*domain.AdminOTP, error) {
	fields, err := r.client.HGetAll(ctx, adminOTPKey(otpKey)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}

	userID, err := strconv.ParseInt(fields["user_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt admin OTP user_id: %w", err)
	}
	attempts, err := strconv.Atoi(fields["attempts"])
	if err != nil {
		return nil, fmt.Errorf("corrupt admin OTP attempts: %w", err)
	}

	return &domain.AdminOTP{
		UserID:   userID,
		CodeHash: fields["code_hash"],
		Attempts: attempts,
	}, nil
}

// IncrementAdminOTPAttempts returns the new attempt count, or -1 when the
// challenge no longer exists.
func (r *redisRepository) IncrementAdminOTPAttempts(ctx context.Context, otpKey string) (int, error) {
	n, err := incrAttemptsScript.Run(ctx, r.client, []string{adminOTPKey(otpKey)}).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to increment admin OTP attempts: %w", err)
	}
	return n, nil
}

// ConsumeAdminOTP deletes the challenge. Only the caller that actually removed
// the key gets true.
func (r *redisRepository) ConsumeAdminOTP(ctx context.Context, otpKey string) (bool, error) {
	n, err := r.client.Del(ctx, adminOTPKey(otpKey)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
