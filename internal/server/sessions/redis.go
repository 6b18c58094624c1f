package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/formauth/internal/common"
	"github.com/redis/go-redis/v9"
)

// RedisManager keeps one key per session, <prefix>:<token>, holding the
// display name. Expiry is left to Redis.
type RedisManager struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisManager(client redis.Cmdable, prefix string, ttl time.Duration) *RedisManager {
	return &RedisManager{client: client, prefix: prefix, ttl: ttl}
}

func (m *RedisManager) key(token string) string {
	return fmt.Sprintf("%s:%s", m.prefix, token)
}

func (m *RedisManager) Create(ctx context.Context, displayName string) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}

	if err := m.client.Set(ctx, m.key(token), displayName, m.ttl).Err(); err != nil {
		return "", fmt.Errorf("redis error: %w", err)
	}
	return token, nil
}

func (m *RedisManager) Lookup(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", common.ErrorNotFound
	}

	name, err := m.client.Get(ctx, m.key(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("redis error: %w", err)
	}
	return name, nil
}

func (m *RedisManager) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.client.Del(ctx, m.key(token)).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}
