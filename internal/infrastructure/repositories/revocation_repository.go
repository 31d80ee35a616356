package repositories

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/you/medrecsvc/domain"
)

// RedisRevocationRepository implements domain.TokenRevocationStore using Redis
type RedisRevocationRepository struct {
	client *redis.Client
	prefix string
}

// NewRevocationRepository creates a new revocation repository
func NewRevocationRepository(client *redis.Client) *RedisRevocationRepository {
	return &RedisRevocationRepository{
		client: client,
		prefix: "revoked:",
	}
}

// Revoke implements domain.TokenRevocationStore. A token already past its expiry needs no entry.
func (r *RedisRevocationRepository) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, r.prefix+jti, 1, ttl).Err()
}

// IsRevoked implements domain.TokenRevocationStore
func (r *RedisRevocationRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, r.prefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Compile-time interface compliance verification
var _ domain.TokenRevocationStore = (*RedisRevocationRepository)(nil)
