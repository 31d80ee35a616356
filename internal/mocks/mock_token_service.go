package mocks

import (
	"fmt"
	"time"

	"github.com/you/medrecsvc/domain"
)

// MockTokenService implements domain.TokenService interface for testing
type MockTokenService struct {
	IssueOTPTokenFunc      func(email, purpose string, pending *domain.PendingSignup) (*domain.IssuedOTP, error)
	ParseOTPTokenFunc      func(token string) (*domain.OTPClaims, error)
	VerifyOTPTokenFunc     func(token, expectedEmail, code string) (*domain.OTPClaims, error)
	MatchOTPCodeFunc       func(claims *domain.OTPClaims, code string) error
	IssueAccessTokenFunc   func(userID, email, username string, role domain.Role, userType string, status domain.AccountStatus) (string, error)
	IssueRefreshTokenFunc  func(userID string, role domain.Role) (string, error)
	VerifyAccessTokenFunc  func(token string) (*domain.TokenClaims, error)
	VerifyRefreshTokenFunc func(token string) (*domain.TokenClaims, error)
	AccessTTLValue         time.Duration
}

// NewMockTokenService creates a new MockTokenService with default behaviors
func NewMockTokenService() *MockTokenService {
	return &MockTokenService{AccessTTLValue: 15 * time.Minute}
}

// IssueOTPToken returns a fixed code and token
func (m *MockTokenService) IssueOTPToken(email, purpose string, pending *domain.PendingSignup) (*domain.IssuedOTP, error) {
	if m.IssueOTPTokenFunc != nil {
		return m.IssueOTPTokenFunc(email, purpose, pending)
	}
	return &domain.IssuedOTP{
		Code:      "123456",
		Token:     "otp_token_" + email,
		JTI:       "jti_" + email,
		ExpiresAt: time.Now().Add(30 * time.Minute),
	}, nil
}

// ParseOTPToken rejects tokens unless overridden
func (m *MockTokenService) ParseOTPToken(token string) (*domain.OTPClaims, error) {
	if m.ParseOTPTokenFunc != nil {
		return m.ParseOTPTokenFunc(token)
	}
	return nil, domain.ErrTokenMalformed
}

// VerifyOTPToken rejects tokens unless overridden
func (m *MockTokenService) VerifyOTPToken(token, expectedEmail, code string) (*domain.OTPClaims, error) {
	if m.VerifyOTPTokenFunc != nil {
		return m.VerifyOTPTokenFunc(token, expectedEmail, code)
	}
	return nil, domain.ErrTokenMalformed
}

// MatchOTPCode rejects codes unless overridden
func (m *MockTokenService) MatchOTPCode(claims *domain.OTPClaims, code string) error {
	if m.MatchOTPCodeFunc != nil {
		return m.MatchOTPCodeFunc(claims, code)
	}
	return domain.ErrInvalidCode
}

// IssueAccessToken returns a token naming the user
func (m *MockTokenService) IssueAccessToken(userID, email, username string, role domain.Role, userType string, status domain.AccountStatus) (string, error) {
	if m.IssueAccessTokenFunc != nil {
		return m.IssueAccessTokenFunc(userID, email, username, role, userType, status)
	}
	return fmt.Sprintf("access_token_%s_%s", role, userID), nil
}

// IssueRefreshToken returns a token naming the user
func (m *MockTokenService) IssueRefreshToken(userID string, role domain.Role) (string, error) {
	if m.IssueRefreshTokenFunc != nil {
		return m.IssueRefreshTokenFunc(userID, role)
	}
	return fmt.Sprintf("refresh_token_%s_%s", role, userID), nil
}

// VerifyAccessToken rejects tokens unless overridden
func (m *MockTokenService) VerifyAccessToken(token string) (*domain.TokenClaims, error) {
	if m.VerifyAccessTokenFunc != nil {
		return m.VerifyAccessTokenFunc(token)
	}
	return nil, domain.ErrTokenMalformed
}

// VerifyRefreshToken rejects tokens unless overridden
func (m *MockTokenService) VerifyRefreshToken(token string) (*domain.TokenClaims, error) {
	if m.VerifyRefreshTokenFunc != nil {
		return m.VerifyRefreshTokenFunc(token)
	}
	return nil, domain.ErrTokenMalformed
}

// AccessTTL returns AccessTTLValue
func (m *MockTokenService) AccessTTL() time.Duration {
	return m.AccessTTLValue
}

// Compile-time interface compliance verification
var _ domain.TokenService = (*MockTokenService)(nil)
