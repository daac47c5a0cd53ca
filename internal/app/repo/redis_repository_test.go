package repo

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faaxis/internal/app/model/domain"
)

func setupRedis(t *testing.T) (RedisRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRepository(client), mr
}

func TestSession_CreateGetDelete(t *testing.T) {
	r, _ := setupRedis(t)
	ctx := context.Background()

	s := &domain.Session{ID: "sid-1", UserID: 7, CreatedAt: time.Now().UTC().Truncate(time.Second)}
	require.NoError(t, r.CreateSession(ctx, s, time.Hour))

	got, err := r.GetSession(ctx, "sid-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "sid-1", got.ID)
	assert.Equal(t, int64(7), got.UserID)
	assert.False(t, got.IsAdmin)
	assert.True(t, s.CreatedAt.Equal(got.CreatedAt))

	require.NoError(t, r.DeleteSession(ctx, "sid-1"))

	got, err = r.GetSession(ctx, "sid-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSession_Expires(t *testing.T) {
	r, mr := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, r.CreateSession(ctx, &domain.Session{ID: "sid", UserID: 1}, time.Minute))
	mr.FastForward(2 * time.Minute)

	got, err := r.GetSession(ctx, "sid")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSession_DeleteUnknownIsNoop(t *testing.T) {
	r, _ := setupRedis(t)
	assert.NoError(t, r.DeleteSession(context.Background(), "missing"))
}

func TestDeleteUserSessions(t *testing.T) {
	r, mr := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, r.CreateSession(ctx, &domain.Session{ID: "a", UserID: 1}, time.Hour))
	require.NoError(t, r.CreateSession(ctx, &domain.Session{ID: "b", UserID: 1}, time.Hour))
	require.NoError(t, r.CreateSession(ctx, &domain.Session{ID: "c", UserID: 2}, time.Hour))

	require.NoError(t, r.DeleteUserSessions(ctx, 1))

	for _, id := range []string{"a", "b"} {
		got, err := r.GetSession(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, got, id)
	}
	other, err := r.GetSession(ctx, "c")
	require.NoError(t, err)
	assert.NotNil(t, other)
	assert.False(t, mr.Exists("user_sessions:1"))
}

func TestAdminOTP_Lifecycle(t *testing.T) {
	r, mr := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, r.SetAdminOTP(ctx, "k1", &domain.AdminOTP{UserID: 9, CodeHash: "h"}, 10*time.Minute))
	assert.Equal(t, 10*time.Minute, mr.TTL("admin_otp:k1"))

	got, err := r.GetAdminOTP(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(9), got.UserID)
	assert.Equal(t, "h", got.CodeHash)
	assert.Equal(t, 0, got.Attempts)

	n, err := r.IncrementAdminOTPAttempts(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ok, err := r.ConsumeAdminOTP(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.ConsumeAdminOTP(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err = r.GetAdminOTP(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAdminOTP_IncrementMissingKey(t *testing.T) {
	r, mr := setupRedis(t)

	n, err := r.IncrementAdminOTPAttempts(context.Background(), "gone")
	require.NoError(t, err)
	assert.Equal(t, -1, n)
	assert.False(t, mr.Exists("admin_otp:gone"))
}

func TestAdminOTP_ConcurrentConsumeSingleWinner(t *testing.T) {
	r, _ := setupRedis(t)
	ctx := context.Background()
	require.NoError(t, r.SetAdminOTP(ctx, "race", &domain.AdminOTP{UserID: 1, CodeHash: "h"}, time.Minute))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := r.ConsumeAdminOTP(ctx, "race"); err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}
