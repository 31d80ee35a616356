package services

import (
	"sync"
	"testing"
	"time"

	"github.com/you/medrecsvc/domain"
	"github.com/you/medrecsvc/internal/infrastructure/auth"
	"github.com/you/medrecsvc/internal/mocks"
)

// testClock is a manually advanced clock shared by services and the token service
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newTestTokenService creates a real token service with an ephemeral key pair
func newTestTokenService(t *testing.T, clock *testClock) *auth.JWTServiceImpl {
	t.Helper()

	keys, err := auth.NewKeyPair(nil)
	if err != nil {
		t.Fatalf("failed to generate key pair: %v", err)
	}
	t.Cleanup(func() { _ = keys.Close() })

	return auth.NewJWTService(keys, auth.TokenConfig{
		Issuer:         "medrecsvc-test",
		AccessTTL:      15 * time.Minute,
		RefreshTTL:     7 * 24 * time.Hour,
		OTPTTL:         30 * time.Minute,
		OTPLength:      6,
		OTPMaxAttempts: 3,
		Now:            clock.Now,
	})
}

// signupHarness bundles a signup service with its in-memory collaborators
type signupHarness struct {
	svc      *SignupServiceImpl
	accounts *mocks.MockCredentialStore
	pending  *mocks.MockPendingSignupStore
	notifier *mocks.MockNotificationSender
	audit    *mocks.MockAuditLogger
	tokens   *auth.JWTServiceImpl
	clock    *testClock
}

func newSignupHarness(t *testing.T) *signupHarness {
	t.Helper()

	h := &signupHarness{
		accounts: mocks.NewMockCredentialStore(),
		pending:  mocks.NewMockPendingSignupStore(),
		notifier: mocks.NewMockNotificationSender(),
		audit:    mocks.NewMockAuditLogger(),
		clock:    newTestClock(),
	}
	h.tokens = newTestTokenService(t, h.clock)
	h.svc = NewSignupService(
		h.accounts,
		h.pending,
		mocks.NewMockPasswordService(),
		h.tokens,
		h.notifier,
		h.audit,
		SignupConfig{PendingTTL: time.Hour, ResendWindow: 30 * time.Second},
	).WithClock(h.clock.Now)
	return h
}

// createAuthServiceForTest creates an AuthService with mock dependencies
func createAuthServiceForTest(t *testing.T,
	accounts domain.CredentialStore,
	revocations domain.TokenRevocationStore,
	tokenSvc domain.TokenService,
) *AuthServiceImpl {
	t.Helper()

	if accounts == nil {
		accounts = mocks.NewMockCredentialStore()
	}
	if revocations == nil {
		revocations = mocks.NewMockRevocationStore()
	}
	if tokenSvc == nil {
		tokenSvc = mocks.NewMockTokenService()
	}
	return NewAuthService(accounts, revocations, mocks.NewMockPasswordService(), tokenSvc, mocks.NewMockAuditLogger())
}

// validSignupFields is the doctor used throughout the signup scenarios
func validSignupFields() domain.SignupFields {
	return domain.SignupFields{
		Username: "drjane",
		Email:    "jane@example.com",
		Mobile:   "9876543210",
		Password: "Secret123",
	}
}

// createValidAccount creates an active account whose password is "Secret123"
func createValidAccount(t *testing.T, role domain.Role) *domain.Account {
	t.Helper()

	id := "D202503010001"
	if role == domain.RolePatient {
		id = "P202503010001"
	}
	return &domain.Account{
		ID:            id,
		Role:          role,
		Email:         "jane@example.com",
		Username:      "drjane",
		Mobile:        "9876543210",
		PasswordHash:  "hashed_Secret123",
		Status:        domain.StatusActive,
		EmailVerified: true,
		CreatedAt:     time.Now().Add(-24 * time.Hour),
		UpdatedAt:     time.Now().Add(-time.Hour),
	}
}
