package domain

import (
	"errors"
	"fmt"
)

// Validation errors
var (
	ErrValidation  = errors.New("validation failed")
	ErrInvalidRole = errors.New("invalid role")
)

// Conflict errors
var (
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrDuplicateUsername = errors.New("username already taken")
	ErrDuplicateMobile   = errors.New("mobile number already registered")
)

// Lookup errors
var (
	ErrNoPendingSignup = errors.New("no pending signup for this email")
	ErrAccountNotFound = errors.New("account not found")
	ErrPurposeMismatch = errors.New("otp purpose does not match pending signup")
)

// Authentication errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrUnauthorized       = errors.New("unauthorized access")
)

// Token errors
var (
	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenMalformed   = errors.New("malformed token")
	ErrTokenWrongType   = errors.New("wrong token type")
	ErrTokenRevoked     = errors.New("token has been revoked")
	ErrTokenUsed        = errors.New("otp token already used")
	ErrEmailMismatch    = errors.New("email does not match token")
	ErrInvalidCode      = errors.New("invalid otp code")
	ErrAttemptsExceeded = errors.New("maximum otp attempts exceeded")
)

// Rate errors
var (
	ErrResendThrottled = errors.New("otp resend throttled")
)

// Dependency errors
var (
	ErrNotificationFailed = errors.New("notification delivery failed")
)

// ValidationError names the field that failed validation
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is makes every ValidationError match ErrValidation
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ThrottleError carries the wait before another code may be sent
type ThrottleError struct {
	RetryAfterSeconds int64
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("please wait %d seconds before requesting a new otp", e.RetryAfterSeconds)
}

func (e *ThrottleError) Is(target error) bool {
	return target == ErrResendThrottled
}

// ErrorKind classifies errors for transport mapping
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindAuth
	KindForbidden
	KindToken
	KindThrottled
	KindDependency
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindAuth:
		return "auth"
	case KindForbidden:
		return "forbidden"
	case KindToken:
		return "token"
	case KindThrottled:
		return "throttled"
	case KindDependency:
		return "dependency"
	}
	return "unknown"
}

var kindTable = []struct {
	kind ErrorKind
	errs []error
}{
	{KindValidation, []error{ErrValidation, ErrInvalidRole, ErrPurposeMismatch}},
	{KindConflict, []error{ErrDuplicateEmail, ErrDuplicateUsername, ErrDuplicateMobile}},
	{KindNotFound, []error{ErrNoPendingSignup, ErrAccountNotFound}},
	{KindAuth, []error{ErrInvalidCredentials, ErrUnauthorized}},
	{KindForbidden, []error{ErrAccountDisabled}},
	{KindToken, []error{ErrTokenExpired, ErrTokenMalformed, ErrTokenWrongType, ErrTokenRevoked,
		ErrTokenUsed, ErrEmailMismatch, ErrInvalidCode, ErrAttemptsExceeded}},
	{KindThrottled, []error{ErrResendThrottled}},
	{KindDependency, []error{ErrNotificationFailed}},
}

// Kind classifies err. Unclassified errors are treated as dependency failures.
func Kind(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	for _, row := range kindTable {
		for _, target := range row.errs {
			if errors.Is(err, target) {
				return row.kind
			}
		}
	}
	return KindDependency
}
