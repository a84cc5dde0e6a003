package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultRedisKey = "fleet:token"

// Redis stores the token under one fixed slot key. Intended for shared kiosk
// and headless fleet-agent installs where the credential must outlive any
// single process and host.
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedis creates a redis-backed slot. An empty key falls back to
// "fleet:token".
func NewRedis(client *redis.Client, key string) *Redis {
	if key == "" {
		key = defaultRedisKey
	}
	return &Redis{client: client, key: key}
}

func (s *Redis) Get(ctx context.Context) (string, error) {
	token, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token slot: %w", err)
	}
	return token, nil
}

func (s *Redis) Set(ctx context.Context, token string) error {
	// No TTL: the slot carries no expiry metadata, the backend decides
	// validity on use.
	if err := s.client.Set(ctx, s.key, token, 0).Err(); err != nil {
		return fmt.Errorf("write token slot: %w", err)
	}
	return nil
}

func (s *Redis) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("clear token slot: %w", err)
	}
	return nil
}
