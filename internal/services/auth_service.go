package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/you/medrecsvc/domain"
)

// AuthServiceImpl implements domain.AuthService
type AuthServiceImpl struct {
	accounts    domain.CredentialStore
	revocations domain.TokenRevocationStore
	passwordSvc domain.PasswordService
	tokenSvc    domain.TokenService
	audit       domain.AuditLogger
	validate    *validator.Validate
	now         func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(
	accounts domain.CredentialStore,
	revocations domain.TokenRevocationStore,
	passwordSvc domain.PasswordService,
	tokenSvc domain.TokenService,
	audit domain.AuditLogger,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		accounts:    accounts,
		revocations: revocations,
		passwordSvc: passwordSvc,
		tokenSvc:    tokenSvc,
		audit:       audit,
		validate:    newValidator(),
		now:         time.Now,
	}
}

// Login implements domain.AuthService. Every credential failure returns the same
// ErrInvalidCredentials so callers cannot tell a missing account from a bad password.
func (s *AuthServiceImpl) Login(ctx context.Context, identifier, password string, role domain.Role) (*domain.AuthResult, error) {
	if !role.Valid() {
		return nil, domain.ErrInvalidRole
	}
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	lookup, ok := loginLookup(role, identifier)
	if !ok {
		s.loginFailed(ctx, identifier, role, domain.ErrInvalidCredentials)
		return nil, domain.ErrInvalidCredentials
	}

	account, err := s.accounts.FindByEmailOrID(ctx, role, lookup)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			s.loginFailed(ctx, identifier, role, err)
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if !s.passwordSvc.Verify(account.PasswordHash, password) {
		s.loginFailed(ctx, identifier, role, errors.New("password mismatch"))
		return nil, domain.ErrInvalidCredentials
	}

	if account.Status == domain.StatusDisabled {
		s.loginFailed(ctx, identifier, role, domain.ErrAccountDisabled)
		return nil, domain.ErrAccountDisabled
	}

	result, err := s.issueTokens(account)
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, domain.NewAuditEvent(domain.UserLoginEvent).WithEmail(account.Email).WithAccount(account.ID, role))
	return result, nil
}

// loginLookup picks the identifier shape once: an email, or an ID carrying the role's prefix
func loginLookup(role domain.Role, identifier string) (string, bool) {
	if strings.Contains(identifier, "@") {
		return normalizeEmail(identifier), true
	}
	id := strings.ToUpper(identifier)
	if idRole, ok := domain.RoleFromID(id); !ok || idRole != role {
		return "", false
	}
	return id, true
}

// Refresh implements domain.AuthService. The refresh token itself is returned unchanged.
func (s *AuthServiceImpl) Refresh(ctx context.Context, refreshToken string) (*domain.AuthResult, error) {
	claims, err := s.tokenSvc.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.JTI)
	if err != nil {
		return nil, fmt.Errorf("failed to check token revocation: %w", err)
	}
	if revoked {
		return nil, domain.ErrTokenRevoked
	}

	account, err := s.accounts.FindByEmailOrID(ctx, claims.Role, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if account.Status == domain.StatusDisabled {
		return nil, domain.ErrAccountDisabled
	}

	accessToken, err := s.tokenSvc.IssueAccessToken(account.ID, account.Email, account.Username, account.Role, account.Role.UserType(), account.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	s.logEvent(ctx, domain.NewAuditEvent(domain.TokenRefreshEvent).WithAccount(account.ID, account.Role))

	account.PasswordHash = ""
	return &domain.AuthResult{
		Account:      account,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.tokenSvc.AccessTTL().Seconds()),
	}, nil
}

// Logout implements domain.AuthService by revoking the access token until it expires
func (s *AuthServiceImpl) Logout(ctx context.Context, claims *domain.TokenClaims) error {
	if claims == nil || claims.JTI == "" {
		return domain.ErrUnauthorized
	}
	ttl := time.Unix(claims.ExpiresAt, 0).Sub(s.now())
	if err := s.revocations.Revoke(ctx, claims.JTI, ttl); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	s.logEvent(ctx, domain.NewAuditEvent(domain.UserLogoutEvent).WithAccount(claims.UserID, claims.Role))
	return nil
}

// GetProfile implements domain.AuthService
func (s *AuthServiceImpl) GetProfile(ctx context.Context, role domain.Role, id string) (*domain.Account, error) {
	account, err := s.findByID(ctx, role, id)
	if err != nil {
		return nil, err
	}
	account.PasswordHash = ""
	return account, nil
}

// CompleteProfile implements domain.AuthService. A pending_profile account becomes active.
func (s *AuthServiceImpl) CompleteProfile(ctx context.Context, role domain.Role, id string, profile domain.Profile) (*domain.Account, error) {
	profile.FullName = strings.TrimSpace(profile.FullName)
	if err := validateStruct(s.validate, profile); err != nil {
		return nil, err
	}
	if err := validateRoleProfile(role, profile); err != nil {
		return nil, err
	}

	account, err := s.findByID(ctx, role, id)
	if err != nil {
		return nil, err
	}
	if account.Status == domain.StatusDisabled {
		return nil, domain.ErrAccountDisabled
	}

	if err := s.accounts.UpdateProfile(ctx, role, account.ID, profile, domain.StatusActive); err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	account.Profile = profile
	account.Status = domain.StatusActive
	account.UpdatedAt = s.now().UTC()
	account.PasswordHash = ""

	s.logEvent(ctx, domain.NewAuditEvent(domain.ProfileCompletedEvent).WithEmail(account.Email).WithAccount(account.ID, role))
	return account, nil
}

// validateRoleProfile rejects fields that belong to the other role
func validateRoleProfile(role domain.Role, p domain.Profile) error {
	switch role {
	case domain.RoleDoctor:
		if p.BloodGroup != "" {
			return &domain.ValidationError{Field: "blood_group", Reason: "is only accepted for patients"}
		}
	case domain.RolePatient:
		if p.Specialization != "" {
			return &domain.ValidationError{Field: "specialization", Reason: "is only accepted for doctors"}
		}
		if p.LicenseNumber != "" {
			return &domain.ValidationError{Field: "license_number", Reason: "is only accepted for doctors"}
		}
	}
	return nil
}

func (s *AuthServiceImpl) findByID(ctx context.Context, role domain.Role, id string) (*domain.Account, error) {
	if !role.Valid() {
		return nil, domain.ErrInvalidRole
	}
	id = strings.ToUpper(strings.TrimSpace(id))
	if idRole, ok := domain.RoleFromID(id); !ok || idRole != role {
		return nil, domain.ErrAccountNotFound
	}
	account, err := s.accounts.FindByEmailOrID(ctx, role, id)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return account, nil
}

func (s *AuthServiceImpl) issueTokens(account *domain.Account) (*domain.AuthResult, error) {
	accessToken, err := s.tokenSvc.IssueAccessToken(account.ID, account.Email, account.Username, account.Role, account.Role.UserType(), account.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refreshToken, err := s.tokenSvc.IssueRefreshToken(account.ID, account.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	safe := *account
	safe.PasswordHash = ""
	return &domain.AuthResult{
		Account:      &safe,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.tokenSvc.AccessTTL().Seconds()),
	}, nil
}

func (s *AuthServiceImpl) loginFailed(ctx context.Context, identifier string, role domain.Role, reason error) {
	event := domain.NewAuditEvent(domain.UserLoginFailureEvent).WithAccount("", role).WithError(reason).
		WithMetadata("identifier", identifier)
	s.logEvent(ctx, event)
}

func (s *AuthServiceImpl) logEvent(ctx context.Context, event *domain.AuditEvent) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogEvent(ctx, event); err != nil {
		log.Printf("audit: failed to record %s: %v", event.EventType, err)
	}
}

// Compile-time interface compliance verification
var _ domain.AuthService = (*AuthServiceImpl)(nil)
