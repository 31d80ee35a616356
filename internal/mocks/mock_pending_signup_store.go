package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/you/medrecsvc/domain"
)

// MockPendingSignupStore implements domain.PendingSignupStore interface for testing.
// Without overrides it keeps state in memory and ignores TTLs.
type MockPendingSignupStore struct {
	PutFunc               func(ctx context.Context, pending *domain.PendingSignup, ttl time.Duration) error
	GetFunc               func(ctx context.Context, email string) (*domain.PendingSignup, error)
	DeleteFunc            func(ctx context.Context, email string) error
	AttemptsFunc          func(ctx context.Context, jti string) (int, error)
	IncrementAttemptsFunc func(ctx context.Context, jti string, ttl time.Duration) (int, error)
	ClaimTokenFunc        func(ctx context.Context, jti string, ttl time.Duration) (bool, error)
	ReleaseTokenFunc      func(ctx context.Context, jti string) error
	ResendWaitFunc        func(ctx context.Context, email string) (time.Duration, error)
	MarkSentFunc          func(ctx context.Context, email string, window time.Duration) error

	mu       sync.Mutex
	pending  map[string]domain.PendingSignup
	attempts map[string]int
	claimed  map[string]bool
	LastTTL  time.Duration
}

// NewMockPendingSignupStore creates a new MockPendingSignupStore with default behaviors
func NewMockPendingSignupStore() *MockPendingSignupStore {
	return &MockPendingSignupStore{
		pending:  make(map[string]domain.PendingSignup),
		attempts: make(map[string]int),
		claimed:  make(map[string]bool),
	}
}

// Put stores the record, replacing any existing one
func (m *MockPendingSignupStore) Put(ctx context.Context, pending *domain.PendingSignup, ttl time.Duration) error {
	if m.PutFunc != nil {
		return m.PutFunc(ctx, pending, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[pending.Email] = *pending
	m.LastTTL = ttl
	return nil
}

// Get returns the record for email
func (m *MockPendingSignupStore) Get(ctx context.Context, email string) (*domain.PendingSignup, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, email)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pending[email]
	if !ok {
		return nil, domain.ErrNoPendingSignup
	}
	return &p, nil
}

// Delete removes the record for email
func (m *MockPendingSignupStore) Delete(ctx context.Context, email string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, email)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, email)
	return nil
}

// Attempts returns the failure count for jti
func (m *MockPendingSignupStore) Attempts(ctx context.Context, jti string) (int, error) {
	if m.AttemptsFunc != nil {
		return m.AttemptsFunc(ctx, jti)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts[jti], nil
}

// IncrementAttempts adds one failure for jti
func (m *MockPendingSignupStore) IncrementAttempts(ctx context.Context, jti string, ttl time.Duration) (int, error) {
	if m.IncrementAttemptsFunc != nil {
		return m.IncrementAttemptsFunc(ctx, jti, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[jti]++
	return m.attempts[jti], nil
}

// ClaimToken marks jti as used
func (m *MockPendingSignupStore) ClaimToken(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	if m.ClaimTokenFunc != nil {
		return m.ClaimTokenFunc(ctx, jti, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimed[jti] {
		return false, nil
	}
	m.claimed[jti] = true
	return true, nil
}

// ReleaseToken clears the used mark for jti
func (m *MockPendingSignupStore) ReleaseToken(ctx context.Context, jti string) error {
	if m.ReleaseTokenFunc != nil {
		return m.ReleaseTokenFunc(ctx, jti)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claimed, jti)
	return nil
}

// ResendWait reports no throttling by default
func (m *MockPendingSignupStore) ResendWait(ctx context.Context, email string) (time.Duration, error) {
	if m.ResendWaitFunc != nil {
		return m.ResendWaitFunc(ctx, email)
	}
	return 0, nil
}

// MarkSent records nothing by default
func (m *MockPendingSignupStore) MarkSent(ctx context.Context, email string, window time.Duration) error {
	if m.MarkSentFunc != nil {
		return m.MarkSentFunc(ctx, email, window)
	}
	return nil
}

// IsClaimed reports whether jti is marked used (test helper)
func (m *MockPendingSignupStore) IsClaimed(jti string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.claimed[jti]
}

// Compile-time interface compliance verification
var _ domain.PendingSignupStore = (*MockPendingSignupStore)(nil)
