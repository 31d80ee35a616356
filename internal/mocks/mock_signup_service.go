package mocks

import (
	"context"

	"github.com/you/medrecsvc/domain"
)

// MockSignupService implements domain.SignupService interface for testing
type MockSignupService struct {
	StartSignupFunc func(ctx context.Context, role domain.Role, fields domain.SignupFields) error
	SendOTPFunc     func(ctx context.Context, email, purpose string) (*domain.OTPDispatch, error)
	ResendOTPFunc   func(ctx context.Context, role domain.Role, email string) (*domain.OTPDispatch, error)
	VerifyOTPFunc   func(ctx context.Context, role domain.Role, email, code, token string) (*domain.AuthResult, error)
}

// NewMockSignupService creates a new MockSignupService with default behaviors
func NewMockSignupService() *MockSignupService {
	return &MockSignupService{}
}

// StartSignup succeeds by default
func (m *MockSignupService) StartSignup(ctx context.Context, role domain.Role, fields domain.SignupFields) error {
	if m.StartSignupFunc != nil {
		return m.StartSignupFunc(ctx, role, fields)
	}
	return nil
}

// SendOTP reports no pending signup by default
func (m *MockSignupService) SendOTP(ctx context.Context, email, purpose string) (*domain.OTPDispatch, error) {
	if m.SendOTPFunc != nil {
		return m.SendOTPFunc(ctx, email, purpose)
	}
	return nil, domain.ErrNoPendingSignup
}

// ResendOTP reports no pending signup by default
func (m *MockSignupService) ResendOTP(ctx context.Context, role domain.Role, email string) (*domain.OTPDispatch, error) {
	if m.ResendOTPFunc != nil {
		return m.ResendOTPFunc(ctx, role, email)
	}
	return nil, domain.ErrNoPendingSignup
}

// VerifyOTP rejects the token by default
func (m *MockSignupService) VerifyOTP(ctx context.Context, role domain.Role, email, code, token string) (*domain.AuthResult, error) {
	if m.VerifyOTPFunc != nil {
		return m.VerifyOTPFunc(ctx, role, email, code, token)
	}
	return nil, domain.ErrTokenMalformed
}

// Compile-time interface compliance verification
var _ domain.SignupService = (*MockSignupService)(nil)
