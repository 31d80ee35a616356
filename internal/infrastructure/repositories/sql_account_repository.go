package repositories

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/you/medrecsvc/domain"
	"gorm.io/gorm"
)

// SQLAccountRepository implements domain.CredentialStore using GORM
type SQLAccountRepository struct {
	db      *gorm.DB
	retries int
}

// DBAccount represents the database model for Account (with GORM tags).
// Doctors and patients share the table; uniqueness is scoped by role.
type DBAccount struct {
	ID             string    `gorm:"primaryKey;size:32"`
	Role           string    `gorm:"size:16;not null;uniqueIndex:idx_accounts_role_email;uniqueIndex:idx_accounts_role_username;uniqueIndex:idx_accounts_role_mobile"`
	Email          string    `gorm:"size:255;not null;uniqueIndex:idx_accounts_role_email"`
	Username       string    `gorm:"size:64;not null;uniqueIndex:idx_accounts_role_username"`
	Mobile         string    `gorm:"size:16;not null;uniqueIndex:idx_accounts_role_mobile"`
	PasswordHash   string    `gorm:"column:password;not null"`
	Status         string    `gorm:"index;size:32"`
	EmailVerified  bool      `gorm:"index"`
	FullName       string    `gorm:"size:100"`
	Gender         string    `gorm:"size:16"`
	DateOfBirth    string    `gorm:"size:10"`
	Address        string    `gorm:"size:255"`
	Specialization string    `gorm:"size:100"`
	LicenseNumber  string    `gorm:"size:64"`
	BloodGroup     string    `gorm:"size:4"`
	CreatedAt      time.Time `gorm:"index"`
	UpdatedAt      time.Time
}

// TableName returns the table name for GORM
func (DBAccount) TableName() string {
	return "accounts"
}

// NewSQLAccountRepository creates a new account repository.
// retries bounds insert attempts when a generated ID collides.
func NewSQLAccountRepository(db *gorm.DB, retries int) *SQLAccountRepository {
	return &SQLAccountRepository{db: db, retries: retries}
}

// ExistsByEmail implements domain.CredentialStore
func (r *SQLAccountRepository) ExistsByEmail(ctx context.Context, role domain.Role, email string) (bool, error) {
	return r.exists(ctx, role, "email", email)
}

// ExistsByUsername implements domain.CredentialStore
func (r *SQLAccountRepository) ExistsByUsername(ctx context.Context, role domain.Role, username string) (bool, error) {
	return r.exists(ctx, role, "username", username)
}

// ExistsByMobile implements domain.CredentialStore
func (r *SQLAccountRepository) ExistsByMobile(ctx context.Context, role domain.Role, mobile string) (bool, error) {
	return r.exists(ctx, role, "mobile", mobile)
}

func (r *SQLAccountRepository) exists(ctx context.Context, role domain.Role, column, value string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&DBAccount{}).
		Where("role = ? AND "+column+" = ?", string(role), value).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create implements domain.CredentialStore
func (r *SQLAccountRepository) Create(ctx context.Context, account *domain.Account) (string, error) {
	return createAccount(ctx, r, account, r.retries, r.insert, func(err error) bool {
		return errors.Is(err, gorm.ErrDuplicatedKey)
	})
}

func (r *SQLAccountRepository) insert(ctx context.Context, account *domain.Account) error {
	dbAccount := r.domainToDB(account)
	if err := r.db.WithContext(ctx).Create(dbAccount).Error; err != nil {
		return err
	}
	account.CreatedAt = dbAccount.CreatedAt
	account.UpdatedAt = dbAccount.UpdatedAt
	return nil
}

// FindByEmailOrID implements domain.CredentialStore
func (r *SQLAccountRepository) FindByEmailOrID(ctx context.Context, role domain.Role, identifier string) (*domain.Account, error) {
	column := "id"
	if strings.Contains(identifier, "@") {
		column = "email"
	}

	var dbAccount DBAccount
	err := r.db.WithContext(ctx).
		Where("role = ? AND "+column+" = ?", string(role), identifier).
		First(&dbAccount).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return r.dbToDomain(&dbAccount), nil
}

// MarkEmailVerified implements domain.CredentialStore
func (r *SQLAccountRepository) MarkEmailVerified(ctx context.Context, role domain.Role, id string) error {
	return r.update(ctx, role, id, map[string]interface{}{"email_verified": true})
}

// UpdateProfile implements domain.CredentialStore
func (r *SQLAccountRepository) UpdateProfile(ctx context.Context, role domain.Role, id string, profile domain.Profile, status domain.AccountStatus) error {
	return r.update(ctx, role, id, map[string]interface{}{
		"full_name":      profile.FullName,
		"gender":         profile.Gender,
		"date_of_birth":  profile.DateOfBirth,
		"address":        profile.Address,
		"specialization": profile.Specialization,
		"license_number": profile.LicenseNumber,
		"blood_group":    profile.BloodGroup,
		"status":         string(status),
	})
}

func (r *SQLAccountRepository) update(ctx context.Context, role domain.Role, id string, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&DBAccount{}).
		Where("id = ? AND role = ?", id, string(role)).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// domainToDB converts domain account to database account
func (r *SQLAccountRepository) domainToDB(a *domain.Account) *DBAccount {
	return &DBAccount{
		ID:             a.ID,
		Role:           string(a.Role),
		Email:          a.Email,
		Username:       a.Username,
		Mobile:         a.Mobile,
		PasswordHash:   a.PasswordHash,
		Status:         string(a.Status),
		EmailVerified:  a.EmailVerified,
		FullName:       a.Profile.FullName,
		Gender:         a.Profile.Gender,
		DateOfBirth:    a.Profile.DateOfBirth,
		Address:        a.Profile.Address,
		Specialization: a.Profile.Specialization,
		LicenseNumber:  a.Profile.LicenseNumber,
		BloodGroup:     a.Profile.BloodGroup,
	}
}

// dbToDomain converts database account to domain account
func (r *SQLAccountRepository) dbToDomain(d *DBAccount) *domain.Account {
	return &domain.Account{
		ID:            d.ID,
		Role:          domain.Role(d.Role),
		Email:         d.Email,
		Username:      d.Username,
		Mobile:        d.Mobile,
		PasswordHash:  d.PasswordHash,
		Status:        domain.AccountStatus(d.Status),
		EmailVerified: d.EmailVerified,
		Profile: domain.Profile{
			FullName:       d.FullName,
			Gender:         d.Gender,
			DateOfBirth:    d.DateOfBirth,
			Address:        d.Address,
			Specialization: d.Specialization,
			LicenseNumber:  d.LicenseNumber,
			BloodGroup:     d.BloodGroup,
		},
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// Compile-time interface compliance verification
var _ domain.CredentialStore = (*SQLAccountRepository)(nil)
