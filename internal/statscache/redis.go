package statscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"todoapp/internal/models"
)

// DefaultTTL bounds how long a snapshot lives when nothing bumps it.
const DefaultTTL = 5 * time.Minute

// Redis is a Cache backed by a Redis server, shared between API instances.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis creates a Redis cache. Keys are namespaced by prefix.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

// Dial connects to addr and verifies the server answers.
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", addr, err)
	}
	return client, nil
}

func (r *Redis) genKey(userID int64) string {
	return r.prefix + "gen:" + strconv.FormatInt(userID, 10)
}

func (r *Redis) Generation(ctx context.Context, userID int64) (int64, error) {
	gen, err := r.client.Get(ctx, r.genKey(userID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("cache generation error: %w", err)
	}
	return gen, nil
}

// Bump increments the user's generation. Old entries are left to expire.
func (r *Redis) Bump(ctx context.Context, userID int64) error {
	if err := r.client.Incr(ctx, r.genKey(userID)).Err(); err != nil {
		return fmt.Errorf("cache bump error: %w", err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, key string) (models.Statistics, bool, error) {
	var stats models.Statistics
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return stats, false, nil
		}
		return stats, false, fmt.Errorf("cache get error: %w", err)
	}
	if err := json.Unmarshal(data, &stats); err != nil {
		return stats, false, fmt.Errorf("cache unmarshal error: %w", err)
	}
	return stats, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, stats models.Statistics) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}
	if err := r.client.Set(ctx, r.prefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("cache set error: %w", err)
	}
	return nil
}
