package repositories

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/you/medrecsvc/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&DBAccount{}))
	return db
}

func newTestAccount(role domain.Role, email, username, mobile string) *domain.Account {
	return &domain.Account{
		Role:          role,
		Email:         email,
		Username:      username,
		Mobile:        mobile,
		PasswordHash:  "$2a$04$hash",
		Status:        domain.StatusPendingProfile,
		EmailVerified: true,
	}
}

var doctorIDPattern = regexp.MustCompile(`^D\d{14}$`)

func TestSQLAccountRepository_CreateAndFind(t *testing.T) {
	repo := NewSQLAccountRepository(setupTestDB(t), 3)
	ctx := context.Background()

	account := newTestAccount(domain.RoleDoctor, "jane@example.com", "drjane", "9876543210")
	id, err := repo.Create(ctx, account)
	require.NoError(t, err)
	assert.Regexp(t, doctorIDPattern, id)
	assert.Equal(t, id, account.ID)

	byEmail, err := repo.FindByEmailOrID(ctx, domain.RoleDoctor, "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, byEmail.ID)
	assert.Equal(t, "drjane", byEmail.Username)
	assert.Equal(t, domain.StatusPendingProfile, byEmail.Status)
	assert.True(t, byEmail.EmailVerified)
	assert.False(t, byEmail.CreatedAt.IsZero())

	byID, err := repo.FindByEmailOrID(ctx, domain.RoleDoctor, id)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", byID.Email)

	_, err = repo.FindByEmailOrID(ctx, domain.RolePatient, "jane@example.com")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound, "lookups are scoped by role")
}

func TestSQLAccountRepository_Exists(t *testing.T) {
	repo := NewSQLAccountRepository(setupTestDB(t), 3)
	ctx := context.Background()
	_, err := repo.Create(ctx, newTestAccount(domain.RolePatient, "p@example.com", "pat", "1234567890"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		check  func(context.Context, domain.Role, string) (bool, error)
		role   domain.Role
		value  string
		expect bool
	}{
		{"email exists", repo.ExistsByEmail, domain.RolePatient, "p@example.com", true},
		{"email other role", repo.ExistsByEmail, domain.RoleDoctor, "p@example.com", false},
		{"username exists", repo.ExistsByUsername, domain.RolePatient, "pat", true},
		{"username missing", repo.ExistsByUsername, domain.RolePatient, "other", false},
		{"mobile exists", repo.ExistsByMobile, domain.RolePatient, "1234567890", true},
		{"mobile missing", repo.ExistsByMobile, domain.RolePatient, "0000000000", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.check(ctx, tt.role, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.expect, got)
		})
	}
}

func TestSQLAccountRepository_CreateConflicts(t *testing.T) {
	repo := NewSQLAccountRepository(setupTestDB(t), 3)
	ctx := context.Background()
	_, err := repo.Create(ctx, newTestAccount(domain.RoleDoctor, "jane@example.com", "drjane", "9876543210"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		account *domain.Account
		wantErr error
	}{
		{"same email", newTestAccount(domain.RoleDoctor, "jane@example.com", "other", "1111111111"), domain.ErrDuplicateEmail},
		{"same username", newTestAccount(domain.RoleDoctor, "x@example.com", "drjane", "1111111111"), domain.ErrDuplicateUsername},
		{"same mobile", newTestAccount(domain.RoleDoctor, "x@example.com", "other", "9876543210"), domain.ErrDuplicateMobile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := repo.Create(ctx, tt.account)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, id)
			assert.Empty(t, tt.account.ID)
		})
	}

	// the same identity is free in the other role
	_, err = repo.Create(ctx, newTestAccount(domain.RolePatient, "jane@example.com", "drjane", "9876543210"))
	assert.NoError(t, err)
}

func TestSQLAccountRepository_CreateRetriesTakenID(t *testing.T) {
	repo := NewSQLAccountRepository(setupTestDB(t), 3)
	ctx := context.Background()

	calls := 0
	insert := func(ctx context.Context, a *domain.Account) error {
		calls++
		if calls == 1 {
			return gorm.ErrDuplicatedKey
		}
		return repo.insert(ctx, a)
	}
	id, err := createAccount(ctx, repo, newTestAccount(domain.RolePatient, "p@example.com", "pat", "1234567890"), 3, insert, func(err error) bool {
		return errors.Is(err, gorm.ErrDuplicatedKey)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Regexp(t, `^P\d{14}$`, id)
}

func TestSQLAccountRepository_CreateGivesUp(t *testing.T) {
	repo := NewSQLAccountRepository(setupTestDB(t), 2)
	boom := errors.New("connection reset")

	calls := 0
	_, err := createAccount(context.Background(), repo, newTestAccount(domain.RolePatient, "p@example.com", "pat", "1234567890"), 2,
		func(context.Context, *domain.Account) error {
			calls++
			return boom
		},
		func(error) bool { return false },
	)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestSQLAccountRepository_Updates(t *testing.T) {
	repo := NewSQLAccountRepository(setupTestDB(t), 3)
	ctx := context.Background()

	account := newTestAccount(domain.RoleDoctor, "jane@example.com", "drjane", "9876543210")
	account.EmailVerified = false
	id, err := repo.Create(ctx, account)
	require.NoError(t, err)

	require.NoError(t, repo.MarkEmailVerified(ctx, domain.RoleDoctor, id))

	profile := domain.Profile{FullName: "Jane Doe", Gender: "female", Specialization: "cardiology", LicenseNumber: "LIC-1"}
	require.NoError(t, repo.UpdateProfile(ctx, domain.RoleDoctor, id, profile, domain.StatusActive))

	got, err := repo.FindByEmailOrID(ctx, domain.RoleDoctor, id)
	require.NoError(t, err)
	assert.True(t, got.EmailVerified)
	assert.Equal(t, domain.StatusActive, got.Status)
	assert.Equal(t, profile, got.Profile)

	assert.ErrorIs(t, repo.MarkEmailVerified(ctx, domain.RoleDoctor, "D0"), domain.ErrAccountNotFound)
	assert.ErrorIs(t, repo.UpdateProfile(ctx, domain.RolePatient, id, profile, domain.StatusActive), domain.ErrAccountNotFound)
}

func TestNewAccountID(t *testing.T) {
	now := time.Unix(1760123456, 0)
	id, err := NewAccountID(domain.RoleDoctor, now)
	require.NoError(t, err)
	assert.Regexp(t, `^D1760123456\d{4}$`, id)

	id, err = NewAccountID(domain.RolePatient, now)
	require.NoError(t, err)
	assert.Regexp(t, `^P1760123456\d{4}$`, id)
}
