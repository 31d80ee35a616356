package domain

import (
	"context"
	"time"
)

// AuditEventType defines the type of audit event
type AuditEventType string

const (
	// Signup events
	SignupStartedEvent      AuditEventType = "SIGNUP_STARTED"
	SignupRejectedEvent     AuditEventType = "SIGNUP_REJECTED"
	OTPIssuedEvent          AuditEventType = "OTP_ISSUED"
	OTPDeliveryFailureEvent AuditEventType = "OTP_DELIVERY_FAILED"
	OTPVerifiedEvent        AuditEventType = "OTP_VERIFIED"
	OTPFailureEvent         AuditEventType = "OTP_VERIFICATION_FAILED"
	AccountCreatedEvent     AuditEventType = "ACCOUNT_CREATED"

	// Authentication events
	UserLoginEvent        AuditEventType = "USER_LOGIN"
	UserLoginFailureEvent AuditEventType = "USER_LOGIN_FAILED"
	UserLogoutEvent       AuditEventType = "USER_LOGOUT"
	TokenRefreshEvent     AuditEventType = "TOKEN_REFRESHED"
	ProfileCompletedEvent AuditEventType = "PROFILE_COMPLETED"
)

// AuditEvent represents a business event that occurred in the system
type AuditEvent struct {
	EventType AuditEventType         `json:"event_type"`
	AccountID string                 `json:"account_id,omitempty"`
	Role      Role                   `json:"role,omitempty"`
	Email     string                 `json:"email,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	ErrorMsg  string                 `json:"error_msg,omitempty"`
	Success   bool                   `json:"success"`
}

// AuditLogger records audit events
type AuditLogger interface {
	LogEvent(ctx context.Context, event *AuditEvent) error
}

// NewAuditEvent creates a new audit event with common fields populated
func NewAuditEvent(eventType AuditEventType) *AuditEvent {
	return &AuditEvent{
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Metadata:  make(map[string]interface{}),
		Success:   true,
	}
}

// WithError sets error information on the audit event
func (e *AuditEvent) WithError(err error) *AuditEvent {
	e.Success = false
	if err != nil {
		e.ErrorMsg = err.Error()
	}
	return e
}

// WithEmail sets the email field
func (e *AuditEvent) WithEmail(email string) *AuditEvent {
	e.Email = email
	return e
}

// WithAccount sets the account fields
func (e *AuditEvent) WithAccount(id string, role Role) *AuditEvent {
	e.AccountID = id
	e.Role = role
	return e
}

// WithMetadata adds metadata to the event
func (e *AuditEvent) WithMetadata(key string, value interface{}) *AuditEvent {
	e.Metadata[key] = value
	return e
}
