package domain

import (
	"context"
	"time"
)

// CredentialStore persists permanent accounts for both roles
type CredentialStore interface {
	ExistsByEmail(ctx context.Context, role Role, email string) (bool, error)
	ExistsByUsername(ctx context.Context, role Role, username string) (bool, error)
	ExistsByMobile(ctx context.Context, role Role, mobile string) (bool, error)
	Create(ctx context.Context, account *Account) (string, error)
	FindByEmailOrID(ctx context.Context, role Role, identifier string) (*Account, error)
	MarkEmailVerified(ctx context.Context, role Role, id string) error
	UpdateProfile(ctx context.Context, role Role, id string, profile Profile, status AccountStatus) error
}

// PendingSignupStore holds in-flight signups and the per-token OTP state
type PendingSignupStore interface {
	Put(ctx context.Context, pending *PendingSignup, ttl time.Duration) error
	Get(ctx context.Context, email string) (*PendingSignup, error)
	Delete(ctx context.Context, email string) error

	// Attempts returns the failed verification count recorded for jti
	Attempts(ctx context.Context, jti string) (int, error)
	// IncrementAttempts records a failed verification and returns the new count
	IncrementAttempts(ctx context.Context, jti string, ttl time.Duration) (int, error)
	// ClaimToken marks jti as consumed; false means it was already consumed
	ClaimToken(ctx context.Context, jti string, ttl time.Duration) (bool, error)
	ReleaseToken(ctx context.Context, jti string) error

	// ResendWait returns how long until a code may be sent to email again
	ResendWait(ctx context.Context, email string) (time.Duration, error)
	MarkSent(ctx context.Context, email string, window time.Duration) error
}

// TokenRevocationStore remembers revoked session token IDs until they expire
type TokenRevocationStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// NotificationSender delivers verification codes out of band
type NotificationSender interface {
	SendCode(ctx context.Context, to Recipient, code string, ttl time.Duration) error
}

// PasswordService defines password operations
type PasswordService interface {
	Hash(password string) (string, error)
	Verify(hashedPassword, password string) bool
}

// TokenService issues and verifies OTP, access and refresh tokens
type TokenService interface {
	IssueOTPToken(email, purpose string, pending *PendingSignup) (*IssuedOTP, error)
	ParseOTPToken(token string) (*OTPClaims, error)
	VerifyOTPToken(token, expectedEmail, code string) (*OTPClaims, error)
	// MatchOTPCode checks code against claims from ParseOTPToken, without touching attempts
	MatchOTPCode(claims *OTPClaims, code string) error
	IssueAccessToken(userID, email, username string, role Role, userType string, status AccountStatus) (string, error)
	IssueRefreshToken(userID string, role Role) (string, error)
	VerifyAccessToken(token string) (*TokenClaims, error)
	VerifyRefreshToken(token string) (*TokenClaims, error)
	AccessTTL() time.Duration
}

// SignupService drives the signup and OTP verification flow
type SignupService interface {
	StartSignup(ctx context.Context, role Role, fields SignupFields) error
	SendOTP(ctx context.Context, email, purpose string) (*OTPDispatch, error)
	ResendOTP(ctx context.Context, role Role, email string) (*OTPDispatch, error)
	VerifyOTP(ctx context.Context, role Role, email, code, token string) (*AuthResult, error)
}

// AuthService defines authentication business logic
type AuthService interface {
	Login(ctx context.Context, identifier, password string, role Role) (*AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*AuthResult, error)
	Logout(ctx context.Context, claims *TokenClaims) error
	GetProfile(ctx context.Context, role Role, id string) (*Account, error)
	CompleteProfile(ctx context.Context, role Role, id string, profile Profile) (*Account, error)
}

// PolicyService defines authorization policy operations
type PolicyService interface {
	AddPolicy(role, resource, action string) error
	CheckPermission(role, resource, action string) (bool, error)
	GetPolicies() [][]string
}

// CasbinEnforcer interface defines the methods we need from Casbin enforcer
type CasbinEnforcer interface {
	AddPolicy(params ...interface{}) (bool, error)
	Enforce(rvals ...interface{}) (bool, error)
	GetPolicy() ([][]string, error)
	SavePolicy() error
}
