package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/you/medrecsvc/domain"
)

// SignupConfig holds the signup flow timings
type SignupConfig struct {
	PendingTTL   time.Duration
	ResendWindow time.Duration
}

// SignupServiceImpl implements domain.SignupService
type SignupServiceImpl struct {
	accounts    domain.CredentialStore
	pending     domain.PendingSignupStore
	passwordSvc domain.PasswordService
	tokenSvc    domain.TokenService
	notifier    domain.NotificationSender
	audit       domain.AuditLogger
	validate    *validator.Validate
	cfg         SignupConfig
	now         func() time.Time
}

// NewSignupService creates a new signup service
func NewSignupService(
	accounts domain.CredentialStore,
	pending domain.PendingSignupStore,
	passwordSvc domain.PasswordService,
	tokenSvc domain.TokenService,
	notifier domain.NotificationSender,
	audit domain.AuditLogger,
	cfg SignupConfig,
) *SignupServiceImpl {
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = time.Hour
	}
	return &SignupServiceImpl{
		accounts:    accounts,
		pending:     pending,
		passwordSvc: passwordSvc,
		tokenSvc:    tokenSvc,
		notifier:    notifier,
		audit:       audit,
		validate:    newValidator(),
		cfg:         cfg,
		now:         time.Now,
	}
}

// WithClock overrides the service clock
func (s *SignupServiceImpl) WithClock(now func() time.Time) *SignupServiceImpl {
	s.now = now
	return s
}

// StartSignup implements domain.SignupService
func (s *SignupServiceImpl) StartSignup(ctx context.Context, role domain.Role, fields domain.SignupFields) error {
	if !role.Valid() {
		return domain.ErrInvalidRole
	}
	fields = normalizeSignupFields(fields)

	if err := validateStruct(s.validate, fields); err != nil {
		s.logEvent(ctx, domain.NewAuditEvent(domain.SignupRejectedEvent).WithEmail(fields.Email).WithAccount("", role).WithError(err))
		return err
	}
	if err := s.checkDuplicates(ctx, role, fields.Email, fields.Username, fields.Mobile); err != nil {
		s.logEvent(ctx, domain.NewAuditEvent(domain.SignupRejectedEvent).WithEmail(fields.Email).WithAccount("", role).WithError(err))
		return err
	}

	hash, err := s.passwordSvc.Hash(fields.Password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now().UTC()
	pending := &domain.PendingSignup{
		Email:        fields.Email,
		Role:         role,
		Username:     fields.Username,
		Mobile:       fields.Mobile,
		PasswordHash: hash,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.cfg.PendingTTL),
	}
	if err := s.pending.Put(ctx, pending, s.cfg.PendingTTL); err != nil {
		return fmt.Errorf("failed to store pending signup: %w", err)
	}

	s.logEvent(ctx, domain.NewAuditEvent(domain.SignupStartedEvent).WithEmail(fields.Email).WithAccount("", role))
	return nil
}

// SendOTP implements domain.SignupService
func (s *SignupServiceImpl) SendOTP(ctx context.Context, email, purpose string) (*domain.OTPDispatch, error) {
	role, err := domain.RoleFromPurpose(purpose)
	if err != nil {
		return nil, &domain.ValidationError{Field: "purpose", Reason: "must be doctor_signup or patient_signup"}
	}

	pending, err := s.loadPending(ctx, email)
	if err != nil {
		return nil, err
	}
	if pending.Role != role {
		return nil, domain.ErrPurposeMismatch
	}
	return s.dispatch(ctx, pending)
}

// ResendOTP implements domain.SignupService. Earlier tokens stay valid until they expire.
func (s *SignupServiceImpl) ResendOTP(ctx context.Context, role domain.Role, email string) (*domain.OTPDispatch, error) {
	pending, err := s.loadPending(ctx, email)
	if err != nil {
		return nil, err
	}
	if pending.Role != role {
		return nil, domain.ErrPurposeMismatch
	}
	return s.dispatch(ctx, pending)
}

// VerifyOTP implements domain.SignupService
func (s *SignupServiceImpl) VerifyOTP(ctx context.Context, expected domain.Role, email, code, token string) (*domain.AuthResult, error) {
	email = normalizeEmail(email)
	switch {
	case email == "":
		return nil, &domain.ValidationError{Field: "email", Reason: "is required"}
	case strings.TrimSpace(code) == "":
		return nil, &domain.ValidationError{Field: "otp", Reason: "is required"}
	case strings.TrimSpace(token) == "":
		return nil, &domain.ValidationError{Field: "token", Reason: "is required"}
	}

	claims, err := s.tokenSvc.ParseOTPToken(token)
	if err != nil {
		s.logEvent(ctx, domain.NewAuditEvent(domain.OTPFailureEvent).WithEmail(email).WithError(err))
		return nil, err
	}

	role, err := domain.RoleFromPurpose(claims.Purpose)
	if err != nil || role != claims.Signup.Role {
		return nil, domain.ErrTokenMalformed
	}
	if role != expected {
		s.logEvent(ctx, domain.NewAuditEvent(domain.OTPFailureEvent).WithEmail(email).WithAccount("", expected).WithError(domain.ErrPurposeMismatch))
		return nil, domain.ErrPurposeMismatch
	}

	if err := s.checkCode(ctx, claims, email, code); err != nil {
		s.logEvent(ctx, domain.NewAuditEvent(domain.OTPFailureEvent).WithEmail(email).WithAccount("", role).WithError(err))
		return nil, err
	}

	claimed, err := s.pending.ClaimToken(ctx, claims.JTI, s.remaining(claims))
	if err != nil {
		return nil, fmt.Errorf("failed to claim otp token: %w", err)
	}
	if !claimed {
		s.logEvent(ctx, domain.NewAuditEvent(domain.OTPFailureEvent).WithEmail(email).WithAccount("", role).WithError(domain.ErrTokenUsed))
		return nil, domain.ErrTokenUsed
	}
	s.logEvent(ctx, domain.NewAuditEvent(domain.OTPVerifiedEvent).WithEmail(email).WithAccount("", role))

	signup := claims.Signup
	account := &domain.Account{
		Role:          role,
		Email:         normalizeEmail(claims.Email),
		Username:      signup.Username,
		Mobile:        signup.Mobile,
		PasswordHash:  signup.PasswordHash,
		Status:        domain.StatusPendingProfile,
		EmailVerified: true,
	}

	id, err := s.createAccount(ctx, account)
	if err != nil {
		if relErr := s.pending.ReleaseToken(ctx, claims.JTI); relErr != nil {
			log.Printf("signup: failed to release otp token %s: %v", claims.JTI, relErr)
		}
		return nil, err
	}
	account.ID = id

	accessToken, err := s.tokenSvc.IssueAccessToken(account.ID, account.Email, account.Username, role, role.UserType(), account.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refreshToken, err := s.tokenSvc.IssueRefreshToken(account.ID, role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	// the pending record expires on its own if this fails
	if err := s.pending.Delete(ctx, email); err != nil {
		log.Printf("signup: failed to delete pending signup for %s: %v", email, err)
	}

	s.logEvent(ctx, domain.NewAuditEvent(domain.AccountCreatedEvent).WithEmail(email).WithAccount(account.ID, role))

	account.PasswordHash = ""
	return &domain.AuthResult{
		Account:      account,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.tokenSvc.AccessTTL().Seconds()),
	}, nil
}

// checkCode counts the attempt before comparing the code, so the limit holds for
// concurrent guesses against one token
func (s *SignupServiceImpl) checkCode(ctx context.Context, claims *domain.OTPClaims, email, code string) error {
	if err := claims.CheckEmail(email); err != nil {
		return err
	}
	count, err := s.pending.IncrementAttempts(ctx, claims.JTI, s.remaining(claims))
	if err != nil {
		return fmt.Errorf("failed to record otp attempt: %w", err)
	}
	if claims.Exhausted(count - 1) {
		return domain.ErrAttemptsExceeded
	}
	return s.tokenSvc.MatchOTPCode(claims, code)
}

func (s *SignupServiceImpl) createAccount(ctx context.Context, account *domain.Account) (string, error) {
	if err := s.checkDuplicates(ctx, account.Role, account.Email, account.Username, account.Mobile); err != nil {
		return "", err
	}
	id, err := s.accounts.Create(ctx, account)
	if err != nil {
		if domain.Kind(err) == domain.KindConflict {
			return "", err
		}
		return "", fmt.Errorf("failed to create account: %w", err)
	}
	return id, nil
}

func (s *SignupServiceImpl) loadPending(ctx context.Context, email string) (*domain.PendingSignup, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, &domain.ValidationError{Field: "email", Reason: "is required"}
	}
	pending, err := s.pending.Get(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNoPendingSignup) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load pending signup: %w", err)
	}
	if pending.Expired(s.now()) {
		return nil, domain.ErrNoPendingSignup
	}
	return pending, nil
}

func (s *SignupServiceImpl) dispatch(ctx context.Context, pending *domain.PendingSignup) (*domain.OTPDispatch, error) {
	wait, err := s.pending.ResendWait(ctx, pending.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check resend window: %w", err)
	}
	if wait > 0 {
		return nil, &domain.ThrottleError{RetryAfterSeconds: int64(math.Ceil(wait.Seconds()))}
	}

	purpose := pending.Role.SignupPurpose()
	issued, err := s.tokenSvc.IssueOTPToken(pending.Email, purpose, pending)
	if err != nil {
		return nil, fmt.Errorf("failed to issue otp token: %w", err)
	}

	if s.cfg.ResendWindow > 0 {
		if err := s.pending.MarkSent(ctx, pending.Email, s.cfg.ResendWindow); err != nil {
			log.Printf("signup: failed to mark otp sent for %s: %v", pending.Email, err)
		}
	}

	result := &domain.OTPDispatch{
		Email:     pending.Email,
		Purpose:   purpose,
		Code:      issued.Code,
		Token:     issued.Token,
		ExpiresAt: issued.ExpiresAt,
		Delivered: true,
	}

	to := domain.Recipient{Email: pending.Email, Mobile: pending.Mobile, Name: pending.Username}
	if err := s.notifier.SendCode(ctx, to, issued.Code, issued.ExpiresAt.Sub(s.now())); err != nil {
		log.Printf("WARNING: otp delivery to %s failed: %v", pending.Email, err)
		result.Delivered = false
		result.DeliveryError = err.Error()
		s.logEvent(ctx, domain.NewAuditEvent(domain.OTPDeliveryFailureEvent).WithEmail(pending.Email).WithAccount("", pending.Role).WithError(err))
		return result, nil
	}

	s.logEvent(ctx, domain.NewAuditEvent(domain.OTPIssuedEvent).WithEmail(pending.Email).WithAccount("", pending.Role).
		WithMetadata("jti", issued.JTI))
	return result, nil
}

func (s *SignupServiceImpl) checkDuplicates(ctx context.Context, role domain.Role, email, username, mobile string) error {
	checks := []struct {
		exists func(context.Context, domain.Role, string) (bool, error)
		value  string
		dup    error
	}{
		{s.accounts.ExistsByEmail, email, domain.ErrDuplicateEmail},
		{s.accounts.ExistsByUsername, username, domain.ErrDuplicateUsername},
		{s.accounts.ExistsByMobile, mobile, domain.ErrDuplicateMobile},
	}
	for _, c := range checks {
		exists, err := c.exists(ctx, role, c.value)
		if err != nil {
			return fmt.Errorf("failed to check existing accounts: %w", err)
		}
		if exists {
			return c.dup
		}
	}
	return nil
}

// remaining is the lifetime left on an otp token, used as the TTL of its server side state
func (s *SignupServiceImpl) remaining(claims *domain.OTPClaims) time.Duration {
	ttl := time.Unix(claims.ExpiresAt, 0).Sub(s.now())
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func (s *SignupServiceImpl) logEvent(ctx context.Context, event *domain.AuditEvent) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogEvent(ctx, event); err != nil {
		log.Printf("audit: failed to record %s: %v", event.EventType, err)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeSignupFields(f domain.SignupFields) domain.SignupFields {
	f.Email = normalizeEmail(f.Email)
	f.Username = strings.TrimSpace(f.Username)
	f.Mobile = strings.TrimSpace(f.Mobile)
	return f
}

// newValidator reports field errors under their json names
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct returns the first failing field as a *domain.ValidationError
func validateStruct(v *validator.Validate, s interface{}) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &domain.ValidationError{Field: fe.Field(), Reason: describeTag(fe)}
	}
	return &domain.ValidationError{Field: "body", Reason: err.Error()}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "numeric":
		return "must contain only digits"
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "datetime":
		return fmt.Sprintf("must be a date formatted as %s", fe.Param())
	}
	return fmt.Sprintf("failed %s check", fe.Tag())
}

// Compile-time interface compliance verification
var _ domain.SignupService = (*SignupServiceImpl)(nil)
