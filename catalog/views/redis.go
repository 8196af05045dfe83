package views

import (
	"context"
	"fmt"
	"strconv"

	backend "github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the sorted set holding view counts.
const DefaultRedisKey = "facetbot:views"

// RedisCounter keeps counts in a Redis sorted set. ZINCRBY is atomic per member.
type RedisCounter struct {
	client *backend.Client
	key    string
}

// NewRedisCounter returns a counter writing to key (DefaultRedisKey when empty).
func NewRedisCounter(client *backend.Client, key string) *RedisCounter {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisCounter{client: client, key: key}
}

// Increment adds one view to id.
func (r *RedisCounter) Increment(ctx context.Context, id int64) error {
	if err := r.client.ZIncrBy(ctx, r.key, 1, strconv.FormatInt(id, 10)).Err(); err != nil {
		return fmt.Errorf("views: zincrby %d: %w", id, err)
	}
	return nil
}

// Top returns the n most viewed ids.
func (r *RedisCounter) Top(ctx context.Context, n int) ([]Stat, error) {
	if n <= 0 {
		n = 10
	}
	zs, err := r.client.ZRevRangeWithScores(ctx, r.key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("views: top: %w", err)
	}
	out := make([]Stat, 0, len(zs))
	for _, z := range zs {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, Stat{ID: id, Views: int64(z.Score)})
	}
	return out, nil
}
