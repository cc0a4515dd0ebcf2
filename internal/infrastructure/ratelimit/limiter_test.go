package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99minutos/identity-service/internal/core/domain"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newMemory() (*MemoryStore, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewMemoryStore()
	s.now = clock.now
	return s, clock
}

func newRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client), mr
}

func mustLimiter(t *testing.T, cfg Config, store Store) *Limiter {
	t.Helper()
	l, err := New(cfg, store, zerolog.Nop())
	require.NoError(t, err)
	return l
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	for _, cfg := range []Config{
		{Name: "zero-points", Duration: time.Second},
		{Name: "zero-duration", Points: 1},
		{Name: "negative-block", Points: 1, Duration: time.Second, BlockDuration: -time.Second},
	} {
		t.Run(cfg.Name, func(t *testing.T) {
			_, err := New(cfg, NewMemoryStore(), zerolog.Nop())
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestMemoryStore_SixthConsumeRejected(t *testing.T) {
	store, _ := newMemory()
	l := mustLimiter(t, Config{Name: "t", Points: 5, Duration: time.Minute}, store)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Consume(ctx, "1.2.3.4"), "consume %d", i+1)
	}

	err := l.Consume(ctx, "1.2.3.4")
	var rl *domain.RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Greater(t, rl.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, rl.RetryAfter, time.Minute)
}

func TestMemoryStore_WindowResets(t *testing.T) {
	store, clock := newMemory()
	l := mustLimiter(t, Config{Name: "t", Points: 2, Duration: time.Minute}, store)
	ctx := context.Background()

	require.NoError(t, l.Consume(ctx, "k"))
	require.NoError(t, l.Consume(ctx, "k"))
	require.Error(t, l.Consume(ctx, "k"))

	clock.advance(time.Minute)
	assert.NoError(t, l.Consume(ctx, "k"))
}

func TestMemoryStore_BlockOutlastsWindow(t *testing.T) {
	store, clock := newMemory()
	l := mustLimiter(t, Auth, store)
	ctx := context.Background()

	for i := 0; i < Auth.Points; i++ {
		require.NoError(t, l.Consume(ctx, "ip:login"))
	}

	err := l.Consume(ctx, "ip:login")
	var rl *domain.RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, Auth.BlockDuration, rl.RetryAfter)
	assert.Equal(t, 300, rl.RetryAfterSeconds())

	clock.advance(2 * time.Minute)
	err = l.Consume(ctx, "ip:login")
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 3*time.Minute, rl.RetryAfter)

	clock.advance(3 * time.Minute)
	assert.NoError(t, l.Consume(ctx, "ip:login"))
}

func TestMemoryStore_KeysAreIndependent(t *testing.T) {
	store, _ := newMemory()
	l := mustLimiter(t, Config{Name: "t", Points: 1, Duration: time.Minute}, store)
	ctx := context.Background()

	require.NoError(t, l.Consume(ctx, "a"))
	require.Error(t, l.Consume(ctx, "a"))
	assert.NoError(t, l.Consume(ctx, "b"))
}

func TestMemoryStore_Remaining(t *testing.T) {
	store, _ := newMemory()
	cfg := Config{Name: "t", Points: 3, Duration: time.Minute}

	res, err := store.Consume(context.Background(), "k", cfg)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 2, res.Remaining)
}

func TestLimiters_ShareStoreWithoutCollisions(t *testing.T) {
	store, _ := newMemory()
	a := mustLimiter(t, Config{Name: "a", Points: 1, Duration: time.Minute}, store)
	b := mustLimiter(t, Config{Name: "b", Points: 1, Duration: time.Minute}, store)
	ctx := context.Background()

	require.NoError(t, a.Consume(ctx, "k"))
	assert.NoError(t, b.Consume(ctx, "k"))
}

func TestRedisStore_SixthConsumeRejected(t *testing.T) {
	store, _ := newRedis(t)
	l := mustLimiter(t, Config{Name: "t", Points: 5, Duration: time.Minute}, store)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Consume(ctx, "1.2.3.4"), "consume %d", i+1)
	}

	var rl *domain.RateLimitError
	require.ErrorAs(t, l.Consume(ctx, "1.2.3.4"), &rl)
	assert.Greater(t, rl.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, rl.RetryAfter, time.Minute)
}

func TestRedisStore_WindowResets(t *testing.T) {
	store, mr := newRedis(t)
	l := mustLimiter(t, Config{Name: "t", Points: 1, Duration: time.Minute}, store)
	ctx := context.Background()

	require.NoError(t, l.Consume(ctx, "k"))
	require.Error(t, l.Consume(ctx, "k"))

	mr.FastForward(time.Minute + time.Second)
	assert.NoError(t, l.Consume(ctx, "k"))
}

func TestRedisStore_Block(t *testing.T) {
	store, mr := newRedis(t)
	l := mustLimiter(t, Config{Name: "t", Points: 1, Duration: time.Minute, BlockDuration: 5 * time.Minute}, store)
	ctx := context.Background()

	require.NoError(t, l.Consume(ctx, "k"))

	var rl *domain.RateLimitError
	require.ErrorAs(t, l.Consume(ctx, "k"), &rl)
	assert.Equal(t, 5*time.Minute, rl.RetryAfter)

	// Window has reset but the block still holds.
	mr.FastForward(2 * time.Minute)
	require.ErrorAs(t, l.Consume(ctx, "k"), &rl)
	assert.LessOrEqual(t, rl.RetryAfter, 3*time.Minute)

	mr.FastForward(3*time.Minute + time.Second)
	assert.NoError(t, l.Consume(ctx, "k"))
}

type failingStore struct{}

func (failingStore) Consume(context.Context, string, Config) (Result, error) {
	return Result{}, errors.New("store unavailable")
}

func TestLimiter_FailsOpen(t *testing.T) {
	l := mustLimiter(t, Default, failingStore{})
	assert.NoError(t, l.Consume(context.Background(), "k"))
}

func TestRedisStore_ClosedServerErrors(t *testing.T) {
	store, mr := newRedis(t)
	mr.Close()

	_, err := store.Consume(context.Background(), "k", Default)
	assert.Error(t, err)
}
