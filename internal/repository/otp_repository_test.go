package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryOTPRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)}
	repo := NewMemoryOTPRepositoryWithClock(clock.Now)

	entry, err := repo.Get(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Nil(t, entry)

	expired, err := repo.IsExpired(ctx, "a@example.com")
	require.NoError(t, err)
	assert.False(t, expired, "absent entries are not expired")

	require.NoError(t, repo.Put(ctx, "a@example.com", "111111", 3*time.Minute))
	require.NoError(t, repo.Put(ctx, "a@example.com", "222222", 3*time.Minute))

	entry, err = repo.Get(ctx, "a@example.com")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "222222", entry.Code)
	assert.Equal(t, 1, repo.Len())

	clock.Advance(3 * time.Minute)
	expired, err = repo.IsExpired(ctx, "a@example.com")
	require.NoError(t, err)
	assert.False(t, expired, "valid at the exact expiry instant")

	clock.Advance(time.Second)
	expired, err = repo.IsExpired(ctx, "a@example.com")
	require.NoError(t, err)
	assert.True(t, expired)

	require.NoError(t, repo.Delete(ctx, "a@example.com"))
	require.NoError(t, repo.Delete(ctx, "a@example.com"))
	assert.Equal(t, 0, repo.Len())
}

func TestMemoryOTPRepository_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryOTPRepository()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			email := fmt.Sprintf("user%d@example.com", i%10)
			_ = repo.Put(ctx, email, fmt.Sprintf("%06d", i), time.Minute)
			_, _ = repo.Get(ctx, email)
			_, _ = repo.IsExpired(ctx, email)
			if i%3 == 0 {
				_ = repo.Delete(ctx, email)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, repo.Len(), 10)
}

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisOTPRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	mr, client := newMiniredis(t)
	clock := &fakeClock{now: time.Now()}
	repo := NewRedisOTPRepository(client, newTestLogger())
	repo.now = clock.Now

	require.NoError(t, repo.Put(ctx, "a@example.com", "123456", time.Minute))
	assert.True(t, mr.Exists("otp:a@example.com"))

	entry, err := repo.Get(ctx, "a@example.com")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "123456", entry.Code)
	assert.Equal(t, "a@example.com", entry.Email)

	clock.Advance(2 * time.Minute)
	expired, err := repo.IsExpired(ctx, "a@example.com")
	require.NoError(t, err)
	assert.True(t, expired)

	require.NoError(t, repo.Delete(ctx, "a@example.com"))
	entry, err = repo.Get(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestRedisOTPRepository_KeyOutlivesLogicalExpiry(t *testing.T) {
	ctx := context.Background()
	mr, client := newMiniredis(t)
	repo := NewRedisOTPRepository(client, newTestLogger())

	require.NoError(t, repo.Put(ctx, "a@example.com", "123456", time.Minute))

	mr.FastForward(time.Minute + 30*time.Second)
	entry, err := repo.Get(ctx, "a@example.com")
	require.NoError(t, err)
	assert.NotNil(t, entry, "entry still observable during the retention window")

	mr.FastForward(time.Minute)
	entry, err = repo.Get(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestRedisOTPRepository_ConnectionError(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer client.Close()
	repo := NewRedisOTPRepository(client, newTestLogger())

	_, err := repo.Get(context.Background(), "a@example.com")
	require.Error(t, err)
}
