package mocks

import (
	"context"

	"github.com/you/medrecsvc/domain"
)

// MockAuthService implements domain.AuthService interface for testing
type MockAuthService struct {
	LoginFunc           func(ctx context.Context, identifier, password string, role domain.Role) (*domain.AuthResult, error)
	RefreshFunc         func(ctx context.Context, refreshToken string) (*domain.AuthResult, error)
	LogoutFunc          func(ctx context.Context, claims *domain.TokenClaims) error
	GetProfileFunc      func(ctx context.Context, role domain.Role, id string) (*domain.Account, error)
	CompleteProfileFunc func(ctx context.Context, role domain.Role, id string, profile domain.Profile) (*domain.Account, error)
}

// NewMockAuthService creates a new MockAuthService with default behaviors
func NewMockAuthService() *MockAuthService {
	return &MockAuthService{}
}

// Login fails with invalid credentials by default
func (m *MockAuthService) Login(ctx context.Context, identifier, password string, role domain.Role) (*domain.AuthResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, identifier, password, role)
	}
	return nil, domain.ErrInvalidCredentials
}

// Refresh rejects the token by default
func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*domain.AuthResult, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken)
	}
	return nil, domain.ErrTokenMalformed
}

// Logout succeeds by default
func (m *MockAuthService) Logout(ctx context.Context, claims *domain.TokenClaims) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, claims)
	}
	return nil
}

// GetProfile reports a missing account by default
func (m *MockAuthService) GetProfile(ctx context.Context, role domain.Role, id string) (*domain.Account, error) {
	if m.GetProfileFunc != nil {
		return m.GetProfileFunc(ctx, role, id)
	}
	return nil, domain.ErrAccountNotFound
}

// CompleteProfile reports a missing account by default
func (m *MockAuthService) CompleteProfile(ctx context.Context, role domain.Role, id string, profile domain.Profile) (*domain.Account, error) {
	if m.CompleteProfileFunc != nil {
		return m.CompleteProfileFunc(ctx, role, id, profile)
	}
	return nil, domain.ErrAccountNotFound
}

// Compile-time interface compliance verification
var _ domain.AuthService = (*MockAuthService)(nil)
