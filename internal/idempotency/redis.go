package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store using SETNX, which is atomic on the Redis
// side. Records are written without expiry; retention is external
// housekeeping, not this subsystem's concern.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client, prefix: "nudge:claim:"}, nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "nudge:claim:"}
}

func (s *RedisStore) key(compositeKey string) string {
	return s.prefix + compositeKey
}

func (s *RedisStore) Claim(ctx context.Context, key string) (bool, error) {
	claimedAt := time.Now().UTC().Format(time.RFC3339)
	won, err := s.client.SetNX(ctx, s.key(key), claimedAt, 0).Result()
	if err != nil {
		return false, fmt.Errorf("claim key: %w", err)
	}
	return won, nil
}

func (s *RedisStore) HasClaimed(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("check key: %w", err)
	}
	return n == 1, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

var _ Store = (*RedisStore)(nil)
