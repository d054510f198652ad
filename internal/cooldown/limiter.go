package cooldown

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/parley-im/parley/internal/config"
)

const (
	windowKeyPrefix   = "cooldown:window:"
	coolingKeyPrefix  = "cooldown:active:"
	windowTTLHeadroom = 30 * time.Second
)

// Limiter throttles reply volume per scope (a bare JID, or bare JID plus
// author) with a Redis sorted-set sliding window. Once the scope accumulates
// the configured number of replies inside the window, it enters a cooldown
// during which every would-be reply is suppressed.
//
// Redis failures fail open: a broken limiter must never silence the bot.
type Limiter struct {
	rdb      redis.Cmdable
	window   time.Duration
	max      int
	duration time.Duration
}

func New(rdb redis.Cmdable, cfg config.BotConfig) *Limiter {
	return &Limiter{
		rdb:      rdb,
		window:   cfg.CooldownWindow,
		max:      cfg.CooldownMax,
		duration: cfg.CooldownDuration,
	}
}

// Allow reports whether the scope may receive a reply right now. It does not
// record anything; call RecordReply after the reply is actually sent.
func (l *Limiter) Allow(ctx context.Context, scope string) bool {
	cooling, err := l.rdb.Exists(ctx, coolingKeyPrefix+scope).Result()
	if err != nil {
		slog.Warn("cooldown check failed, allowing", "scope", scope, "error", err)
		return true
	}
	return cooling == 0
}

// RecordReply adds one reply to the scope's window. When the window fills it
// trips the cooldown and clears the window so the next round starts fresh.
func (l *Limiter) RecordReply(ctx context.Context, scope string) {
	key := windowKeyPrefix + scope
	now := time.Now()
	windowStart := float64(now.Add(-l.window).UnixMilli())

	pipe := l.rdb.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatFloat(windowStart, 'f', 0, 64))
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: fmt.Sprintf("%d", now.UnixNano()),
	})
	countCmd := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, l.window+windowTTLHeadroom)

	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("cooldown record failed", "scope", scope, "error", err)
		return
	}

	if countCmd.Val() >= int64(l.max) {
		pipe2 := l.rdb.Pipeline()
		pipe2.Set(ctx, coolingKeyPrefix+scope, "1", l.duration)
		pipe2.Del(ctx, key)
		if _, err := pipe2.Exec(ctx); err != nil {
			slog.Warn("cooldown trip failed", "scope", scope, "error", err)
			return
		}
		slog.Info("scope entered cooldown", "scope", scope, "duration", l.duration)
	}
}

// Remaining returns how long the scope's cooldown has left, zero when the
// scope is not cooling down.
func (l *Limiter) Remaining(ctx context.Context, scope string) time.Duration {
	ttl, err := l.rdb.TTL(ctx, coolingKeyPrefix+scope).Result()
	if err != nil || ttl < 0 {
		return 0
	}
	return ttl
}

// Reset lifts a cooldown and clears the scope's window.
func (l *Limiter) Reset(ctx context.Context, scope string) error {
	if err := l.rdb.Del(ctx, coolingKeyPrefix+scope, windowKeyPrefix+scope).Err(); err != nil {
		return fmt.Errorf("resetting cooldown for %s: %w", scope, err)
	}
	return nil
}
