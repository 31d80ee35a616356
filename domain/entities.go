package domain

import (
	"strings"
	"time"
)

// Role identifies which account set an account belongs to
type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// ParseRole converts a path or request value into a Role
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleDoctor:
		return RoleDoctor, nil
	case RolePatient:
		return RolePatient, nil
	}
	return "", ErrInvalidRole
}

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	return r == RoleDoctor || r == RolePatient
}

// IDPrefix is the leading letter of every account ID of this role
func (r Role) IDPrefix() string {
	if r == RoleDoctor {
		return "D"
	}
	return "P"
}

// SignupPurpose is the purpose claim carried by this role's OTP tokens
func (r Role) SignupPurpose() string {
	return string(r) + "_signup"
}

// UserType is the user_type claim carried by this role's session tokens
func (r Role) UserType() string {
	return string(r)
}

// RoleFromPurpose maps an OTP purpose back to the role it was issued for
func RoleFromPurpose(purpose string) (Role, error) {
	return ParseRole(strings.TrimSuffix(purpose, "_signup"))
}

// RoleFromID infers the role of an account ID from its prefix
func RoleFromID(id string) (Role, bool) {
	switch {
	case strings.HasPrefix(id, RoleDoctor.IDPrefix()):
		return RoleDoctor, true
	case strings.HasPrefix(id, RolePatient.IDPrefix()):
		return RolePatient, true
	}
	return "", false
}

// AccountStatus tracks the lifecycle of an account
type AccountStatus string

const (
	StatusPendingProfile AccountStatus = "pending_profile"
	StatusActive         AccountStatus = "active"
	StatusDisabled       AccountStatus = "disabled"
)

// Account represents a doctor or patient account
type Account struct {
	ID            string
	Role          Role
	Email         string
	Username      string
	Mobile        string
	PasswordHash  string
	Status        AccountStatus
	EmailVerified bool
	Profile       Profile
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Profile holds the data supplied after signup to activate an account
type Profile struct {
	FullName       string `json:"full_name" validate:"required,min=2,max=100"`
	Gender         string `json:"gender" validate:"omitempty,oneof=male female other"`
	DateOfBirth    string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	Address        string `json:"address" validate:"omitempty,max=255"`
	Specialization string `json:"specialization,omitempty" validate:"omitempty,max=100"`
	LicenseNumber  string `json:"license_number,omitempty" validate:"omitempty,max=64"`
	BloodGroup     string `json:"blood_group,omitempty" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
}

// SignupFields are the raw fields collected by the signup step
type SignupFields struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Mobile   string `json:"mobile" validate:"required,numeric,len=10"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// PendingSignup is the in-flight signup payload held until OTP verification.
// Only the password hash is kept.
type PendingSignup struct {
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	Username     string    `json:"username"`
	Mobile       string    `json:"mobile"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the record is past its expiry at now
func (p *PendingSignup) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// Token type claims
const (
	TokenTypeOTP     = "otp_token"
	TokenTypeAccess  = "access_token"
	TokenTypeRefresh = "refresh_token"
)

// OTPClaims is the decoded content of a signup OTP token
type OTPClaims struct {
	CodeDigest  string
	Email       string
	Purpose     string
	Attempts    int
	MaxAttempts int
	JTI         string
	IssuedAt    int64
	ExpiresAt   int64
	Type        string
	Signup      PendingSignup
}

// IssuedOTP is the result of issuing an OTP token
type IssuedOTP struct {
	Code      string
	Token     string
	JTI       string
	ExpiresAt time.Time
}

// TokenClaims represents access and refresh token claims
type TokenClaims struct {
	UserID    string        `json:"user_id"`
	Email     string        `json:"email,omitempty"`
	Username  string        `json:"username,omitempty"`
	Role      Role          `json:"role"`
	UserType  string        `json:"user_type"`
	Status    AccountStatus `json:"status,omitempty"`
	JTI       string        `json:"jti"`
	IssuedAt  int64         `json:"iat"`
	ExpiresAt int64         `json:"exp"`
	Type      string        `json:"type"`
}

// AuthResult represents authentication outcome
type AuthResult struct {
	Account      *Account
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// OTPDispatch is returned by the send and resend steps
type OTPDispatch struct {
	Email         string
	Purpose       string
	Code          string
	Token         string
	ExpiresAt     time.Time
	Delivered     bool
	DeliveryError string
}

// Recipient addresses a code delivery
type Recipient struct {
	Email  string
	Mobile string
	Name   string
}
