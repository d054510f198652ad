package cooldown

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-im/parley/internal/config"
)

func newTestLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := config.BotConfig{
		CooldownWindow:   10 * time.Second,
		CooldownMax:      5,
		CooldownDuration: 60 * time.Second,
	}
	return New(rdb, cfg), mr
}

func TestAllowUnderLimit(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		assert.True(t, l.Allow(ctx, "room@muc.example.org"))
		l.RecordReply(ctx, "room@muc.example.org")
	}
	assert.True(t, l.Allow(ctx, "room@muc.example.org"))
}

func TestCooldownTripsAtLimit(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		l.RecordReply(ctx, "room@muc.example.org")
	}
	assert.False(t, l.Allow(ctx, "room@muc.example.org"))
	assert.Greater(t, l.Remaining(ctx, "room@muc.example.org"), time.Duration(0))
}

func TestCooldownExpires(t *testing.T) {
	l, mr := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		l.RecordReply(ctx, "room@muc.example.org")
	}
	require.False(t, l.Allow(ctx, "room@muc.example.org"))

	mr.FastForward(61 * time.Second)
	assert.True(t, l.Allow(ctx, "room@muc.example.org"))
}

func TestScopesAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		l.RecordReply(ctx, "busy@muc.example.org")
	}
	assert.False(t, l.Allow(ctx, "busy@muc.example.org"))
	assert.True(t, l.Allow(ctx, "quiet@muc.example.org"))
}

func TestResetLiftsCooldown(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		l.RecordReply(ctx, "room@muc.example.org")
	}
	require.False(t, l.Allow(ctx, "room@muc.example.org"))

	require.NoError(t, l.Reset(ctx, "room@muc.example.org"))
	assert.True(t, l.Allow(ctx, "room@muc.example.org"))
}

func TestFailsOpenWhenRedisDown(t *testing.T) {
	l, mr := newTestLimiter(t)
	ctx := context.Background()

	mr.Close()
	assert.True(t, l.Allow(ctx, "room@muc.example.org"))
	l.RecordReply(ctx, "room@muc.example.org") // must not panic
}
