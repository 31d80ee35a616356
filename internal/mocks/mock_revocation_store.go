package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/you/medrecsvc/domain"
)

// MockRevocationStore implements domain.TokenRevocationStore interface for testing
type MockRevocationStore struct {
	RevokeFunc    func(ctx context.Context, jti string, ttl time.Duration) error
	IsRevokedFunc func(ctx context.Context, jti string) (bool, error)

	mu      sync.Mutex
	revoked map[string]time.Duration
}

// NewMockRevocationStore creates a new MockRevocationStore with default behaviors
func NewMockRevocationStore() *MockRevocationStore {
	return &MockRevocationStore{revoked: make(map[string]time.Duration)}
}

// Revoke remembers jti
func (m *MockRevocationStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if m.RevokeFunc != nil {
		return m.RevokeFunc(ctx, jti, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[jti] = ttl
	return nil
}

// IsRevoked reports whether jti was revoked
func (m *MockRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if m.IsRevokedFunc != nil {
		return m.IsRevokedFunc(ctx, jti)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[jti]
	return ok, nil
}

// RevokedTTL returns the TTL jti was revoked with (test helper)
func (m *MockRevocationStore) RevokedTTL(jti string) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ttl, ok := m.revoked[jti]
	return ttl, ok
}

// Compile-time interface compliance verification
var _ domain.TokenRevocationStore = (*MockRevocationStore)(nil)
