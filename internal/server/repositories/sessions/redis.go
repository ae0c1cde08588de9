package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/rtcauth/internal/common"
	"github.com/redis/go-redis/v9"
)

// RedisRepository stores each session as a string key with a native TTL.
type RedisRepository struct {
	client redis.UniversalClient
}

func NewRedisRepository(client redis.UniversalClient) *RedisRepository {
	return &RedisRepository{client: client}
}

func (r *RedisRepository) Put(ctx context.Context, token, userID string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key(token), userID, ttl).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (r *RedisRepository) Get(ctx context.Context, token string) (string, error) {
	userID, err := r.client.Get(ctx, key(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("redis error: %w", err)
	}
	return userID, nil
}

func (r *RedisRepository) Delete(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, key(token)).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (r *RedisRepository) Refresh(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	ok, err := r.client.Expire(ctx, key(token), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}
	return ok, nil
}
