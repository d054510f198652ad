package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ShortTermStore keeps the recent turns of each conversation scope in a Redis
// list. The list is trimmed to a fixed depth on every append, so old turns
// fall off in FIFO order, and the whole key expires once a scope goes quiet.
type ShortTermStore struct {
	client   redis.Cmdable
	maxTurns int
	ttl      time.Duration
}

func NewShortTermStore(client redis.Cmdable, maxTurns int, ttl time.Duration) *ShortTermStore {
	return &ShortTermStore{client: client, maxTurns: maxTurns, ttl: ttl}
}

func convKey(scope string) string {
	return "conv:" + scope
}

// Recent returns the scope's turns, oldest first. A scope with no history
// returns an empty slice, not an error.
func (s *ShortTermStore) Recent(ctx context.Context, scope string) ([]Turn, error) {
	vals, err := s.client.LRange(ctx, convKey(scope), int64(-s.maxTurns), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", convKey(scope), err)
	}

	turns := make([]Turn, 0, len(vals))
	for _, v := range vals {
		var t Turn
		if err := json.Unmarshal([]byte(v), &t); err != nil {
			continue // skip malformed entries
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// Append pushes a turn onto the scope's window and trims to the configured
// depth. Refreshes the idle TTL.
func (s *ShortTermStore) Append(ctx context.Context, scope string, turn Turn) error {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}

	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshaling turn: %w", err)
	}

	key := convKey(scope)
	pipe := s.client.Pipeline()
	pipe.RPush(ctx, key, string(data))
	pipe.LTrim(ctx, key, int64(-s.maxTurns), -1)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pipeline exec for %s: %w", key, err)
	}
	return nil
}

// Clear drops the scope's window entirely.
func (s *ShortTermStore) Clear(ctx context.Context, scope string) error {
	return s.client.Del(ctx, convKey(scope)).Err()
}
