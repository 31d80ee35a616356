package mocks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/you/medrecsvc/domain"
)

// MockCredentialStore implements domain.CredentialStore interface for testing.
// Without overrides it behaves like an in-memory store.
type MockCredentialStore struct {
	ExistsByEmailFunc     func(ctx context.Context, role domain.Role, email string) (bool, error)
	ExistsByUsernameFunc  func(ctx context.Context, role domain.Role, username string) (bool, error)
	ExistsByMobileFunc    func(ctx context.Context, role domain.Role, mobile string) (bool, error)
	CreateFunc            func(ctx context.Context, account *domain.Account) (string, error)
	FindByEmailOrIDFunc   func(ctx context.Context, role domain.Role, identifier string) (*domain.Account, error)
	MarkEmailVerifiedFunc func(ctx context.Context, role domain.Role, id string) error
	UpdateProfileFunc     func(ctx context.Context, role domain.Role, id string, profile domain.Profile, status domain.AccountStatus) error

	mu       sync.Mutex
	accounts map[string]*domain.Account
	seq      int
	Creates  int
}

// NewMockCredentialStore creates a new MockCredentialStore with default behaviors
func NewMockCredentialStore() *MockCredentialStore {
	return &MockCredentialStore{accounts: make(map[string]*domain.Account)}
}

// Seed stores an account directly (test helper). An empty ID is generated.
func (m *MockCredentialStore) Seed(account *domain.Account) *domain.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	if account.ID == "" {
		m.seq++
		account.ID = fmt.Sprintf("%s%d%04d", account.Role.IDPrefix(), time.Now().Unix(), m.seq)
	}
	stored := *account
	m.accounts[account.ID] = &stored
	return account
}

// Count returns the number of stored accounts
func (m *MockCredentialStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts)
}

func (m *MockCredentialStore) find(role domain.Role, match func(*domain.Account) bool) *domain.Account {
	for _, a := range m.accounts {
		if a.Role == role && match(a) {
			return a
		}
	}
	return nil
}

// ExistsByEmail checks whether an account of role uses email
func (m *MockCredentialStore) ExistsByEmail(ctx context.Context, role domain.Role, email string) (bool, error) {
	if m.ExistsByEmailFunc != nil {
		return m.ExistsByEmailFunc(ctx, role, email)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.find(role, func(a *domain.Account) bool { return a.Email == email }) != nil, nil
}

// ExistsByUsername checks whether an account of role uses username
func (m *MockCredentialStore) ExistsByUsername(ctx context.Context, role domain.Role, username string) (bool, error) {
	if m.ExistsByUsernameFunc != nil {
		return m.ExistsByUsernameFunc(ctx, role, username)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.find(role, func(a *domain.Account) bool { return a.Username == username }) != nil, nil
}

// ExistsByMobile checks whether an account of role uses mobile
func (m *MockCredentialStore) ExistsByMobile(ctx context.Context, role domain.Role, mobile string) (bool, error) {
	if m.ExistsByMobileFunc != nil {
		return m.ExistsByMobileFunc(ctx, role, mobile)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.find(role, func(a *domain.Account) bool { return a.Mobile == mobile }) != nil, nil
}

// Create stores a new account and assigns its ID
func (m *MockCredentialStore) Create(ctx context.Context, account *domain.Account) (string, error) {
	m.mu.Lock()
	m.Creates++
	m.mu.Unlock()
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.find(account.Role, func(a *domain.Account) bool { return a.Email == account.Email }) != nil {
		return "", domain.ErrDuplicateEmail
	}
	m.seq++
	account.ID = fmt.Sprintf("%s%d%04d", account.Role.IDPrefix(), time.Now().Unix(), m.seq)
	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt
	stored := *account
	m.accounts[account.ID] = &stored
	return account.ID, nil
}

// FindByEmailOrID looks an account up by email or ID
func (m *MockCredentialStore) FindByEmailOrID(ctx context.Context, role domain.Role, identifier string) (*domain.Account, error) {
	if m.FindByEmailOrIDFunc != nil {
		return m.FindByEmailOrIDFunc(ctx, role, identifier)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	byEmail := strings.Contains(identifier, "@")
	a := m.find(role, func(a *domain.Account) bool {
		if byEmail {
			return a.Email == identifier
		}
		return a.ID == identifier
	})
	if a == nil {
		return nil, domain.ErrAccountNotFound
	}
	copied := *a
	return &copied, nil
}

// MarkEmailVerified sets the verified flag
func (m *MockCredentialStore) MarkEmailVerified(ctx context.Context, role domain.Role, id string) error {
	if m.MarkEmailVerifiedFunc != nil {
		return m.MarkEmailVerifiedFunc(ctx, role, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok || a.Role != role {
		return domain.ErrAccountNotFound
	}
	a.EmailVerified = true
	return nil
}

// UpdateProfile stores the profile and status
func (m *MockCredentialStore) UpdateProfile(ctx context.Context, role domain.Role, id string, profile domain.Profile, status domain.AccountStatus) error {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, role, id, profile, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok || a.Role != role {
		return domain.ErrAccountNotFound
	}
	a.Profile = profile
	a.Status = status
	a.UpdatedAt = time.Now()
	return nil
}

// Compile-time interface compliance verification
var _ domain.CredentialStore = (*MockCredentialStore)(nil)
