package repositories

import (
	"context"
	"time"

	"github.com/go-redis/redis"
)

// TokenRepository tracks revoked bearer tokens by id.
type TokenRepository interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	Revoke(ctx context.Context, tokenID string, expiration time.Duration) error
}

type RedisTokenRepository struct {
	client *redis.Client
}

func NewRedisTokenRepository(client *redis.Client) *RedisTokenRepository {
	return &RedisTokenRepository{client: client}
}

func (r *RedisTokenRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	exists, err := r.client.WithContext(ctx).Exists(revokedKey(tokenID)).Result()
	if err != nil {
		return false, err
	}
	return exists == 1, nil
}

func (r *RedisTokenRepository) Revoke(ctx context.Context, tokenID string, expiration time.Duration) error {
	if expiration <= 0 {
		return nil
	}
	return r.client.WithContext(ctx).Set(revokedKey(tokenID), "1", expiration).Err()
}

func revokedKey(tokenID string) string {
	return "revoked:" + tokenID
}
