package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/you/medrecsvc/domain"
)

// RedisPendingSignupRepository implements domain.PendingSignupStore using Redis
type RedisPendingSignupRepository struct {
	client        *redis.Client
	pendingPrefix string
	attemptPrefix string
	usedPrefix    string
	resendPrefix  string
}

// NewPendingSignupRepository creates a new pending signup repository
func NewPendingSignupRepository(client *redis.Client) *RedisPendingSignupRepository {
	return &RedisPendingSignupRepository{
		client:        client,
		pendingPrefix: "signup:pending:",
		attemptPrefix: "otp:attempts:",
		usedPrefix:    "otp:used:",
		resendPrefix:  "otp:resend:",
	}
}

// Put implements domain.PendingSignupStore. An existing record for the email is replaced.
func (r *RedisPendingSignupRepository) Put(ctx context.Context, pending *domain.PendingSignup, ttl time.Duration) error {
	data, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("failed to marshal pending signup: %w", err)
	}
	return r.client.Set(ctx, r.pendingPrefix+pending.Email, data, ttl).Err()
}

// Get implements domain.PendingSignupStore
func (r *RedisPendingSignupRepository) Get(ctx context.Context, email string) (*domain.PendingSignup, error) {
	data, err := r.client.Get(ctx, r.pendingPrefix+email).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNoPendingSignup
		}
		return nil, err
	}

	var pending domain.PendingSignup
	if err := json.Unmarshal(data, &pending); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending signup: %w", err)
	}
	return &pending, nil
}

// Delete implements domain.PendingSignupStore
func (r *RedisPendingSignupRepository) Delete(ctx context.Context, email string) error {
	return r.client.Del(ctx, r.pendingPrefix+email).Err()
}

// Attempts implements domain.PendingSignupStore
func (r *RedisPendingSignupRepository) Attempts(ctx context.Context, jti string) (int, error) {
	n, err := r.client.Get(ctx, r.attemptPrefix+jti).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

// IncrementAttempts implements domain.PendingSignupStore
func (r *RedisPendingSignupRepository) IncrementAttempts(ctx context.Context, jti string, ttl time.Duration) (int, error) {
	key := r.attemptPrefix + jti
	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(incr.Val()), nil
}

// ClaimToken implements domain.PendingSignupStore
func (r *RedisPendingSignupRepository) ClaimToken(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, r.usedPrefix+jti, 1, ttl).Result()
}

// ReleaseToken implements domain.PendingSignupStore
func (r *RedisPendingSignupRepository) ReleaseToken(ctx context.Context, jti string) error {
	return r.client.Del(ctx, r.usedPrefix+jti).Err()
}

// ResendWait implements domain.PendingSignupStore
func (r *RedisPendingSignupRepository) ResendWait(ctx context.Context, email string) (time.Duration, error) {
	ttl, err := r.client.PTTL(ctx, r.resendPrefix+email).Result()
	if err != nil {
		return 0, err
	}
	// negative values mean no key or no expiry
	if ttl <= 0 {
		return 0, nil
	}
	return ttl, nil
}

// MarkSent implements domain.PendingSignupStore
func (r *RedisPendingSignupRepository) MarkSent(ctx context.Context, email string, window time.Duration) error {
	if window <= 0 {
		return nil
	}
	return r.client.Set(ctx, r.resendPrefix+email, 1, window).Err()
}

// Compile-time interface compliance verification
var _ domain.PendingSignupStore = (*RedisPendingSignupRepository)(nil)
