package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/you/medrecsvc/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names per role
const (
	DoctorsCollection  = "doctors"
	PatientsCollection = "patients"
)

// MongoAccountRepository implements domain.CredentialStore with one collection per role
type MongoAccountRepository struct {
	db      *mongo.Database
	retries int
	now     func() time.Time
}

type mongoProfile struct {
	FullName       string `bson:"full_name,omitempty"`
	Gender         string `bson:"gender,omitempty"`
	DateOfBirth    string `bson:"date_of_birth,omitempty"`
	Address        string `bson:"address,omitempty"`
	Specialization string `bson:"specialization,omitempty"`
	LicenseNumber  string `bson:"license_number,omitempty"`
	BloodGroup     string `bson:"blood_group,omitempty"`
}

type mongoAccount struct {
	ID            string       `bson:"_id"`
	Email         string       `bson:"email"`
	Username      string       `bson:"username"`
	Mobile        string       `bson:"mobile"`
	PasswordHash  string       `bson:"password"`
	Status        string       `bson:"status"`
	EmailVerified bool         `bson:"email_verified"`
	Profile       mongoProfile `bson:"profile"`
	CreatedAt     time.Time    `bson:"created_at"`
	UpdatedAt     time.Time    `bson:"updated_at"`
}

// NewMongoAccountRepository creates a new account repository on db
func NewMongoAccountRepository(db *mongo.Database, retries int) *MongoAccountRepository {
	return &MongoAccountRepository{db: db, retries: retries, now: time.Now}
}

func collectionName(role domain.Role) string {
	if role == domain.RoleDoctor {
		return DoctorsCollection
	}
	return PatientsCollection
}

func (r *MongoAccountRepository) collection(role domain.Role) (*mongo.Collection, error) {
	if !role.Valid() {
		return nil, domain.ErrInvalidRole
	}
	return r.db.Collection(collectionName(role)), nil
}

// EnsureIndexes creates the unique indexes on email, username and mobile for both collections
func (r *MongoAccountRepository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_email")},
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_username")},
		{Keys: bson.D{{Key: "mobile", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_mobile")},
	}
	for _, role := range []domain.Role{domain.RoleDoctor, domain.RolePatient} {
		if _, err := r.db.Collection(collectionName(role)).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", collectionName(role), err)
		}
	}
	return nil
}

// ExistsByEmail implements domain.CredentialStore
func (r *MongoAccountRepository) ExistsByEmail(ctx context.Context, role domain.Role, email string) (bool, error) {
	return r.exists(ctx, role, "email", email)
}

// ExistsByUsername implements domain.CredentialStore
func (r *MongoAccountRepository) ExistsByUsername(ctx context.Context, role domain.Role, username string) (bool, error) {
	return r.exists(ctx, role, "username", username)
}

// ExistsByMobile implements domain.CredentialStore
func (r *MongoAccountRepository) ExistsByMobile(ctx context.Context, role domain.Role, mobile string) (bool, error) {
	return r.exists(ctx, role, "mobile", mobile)
}

func (r *MongoAccountRepository) exists(ctx context.Context, role domain.Role, field, value string) (bool, error) {
	coll, err := r.collection(role)
	if err != nil {
		return false, err
	}
	count, err := coll.CountDocuments(ctx, bson.M{field: value}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count %s by %s: %w", coll.Name(), field, err)
	}
	return count > 0, nil
}

// Create implements domain.CredentialStore
func (r *MongoAccountRepository) Create(ctx context.Context, account *domain.Account) (string, error) {
	return createAccount(ctx, r, account, r.retries, r.insert, mongo.IsDuplicateKeyError)
}

func (r *MongoAccountRepository) insert(ctx context.Context, account *domain.Account) error {
	coll, err := r.collection(account.Role)
	if err != nil {
		return err
	}
	now := r.now().UTC()
	doc := toMongoAccount(account)
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		return err
	}
	account.CreatedAt = now
	account.UpdatedAt = now
	return nil
}

// FindByEmailOrID implements domain.CredentialStore
func (r *MongoAccountRepository) FindByEmailOrID(ctx context.Context, role domain.Role, identifier string) (*domain.Account, error) {
	coll, err := r.collection(role)
	if err != nil {
		return nil, err
	}
	filter := bson.M{"_id": identifier}
	if strings.Contains(identifier, "@") {
		filter = bson.M{"email": identifier}
	}

	var doc mongoAccount
	if err := coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account in %s: %w", coll.Name(), err)
	}
	return doc.toDomain(role), nil
}

// MarkEmailVerified implements domain.CredentialStore
func (r *MongoAccountRepository) MarkEmailVerified(ctx context.Context, role domain.Role, id string) error {
	return r.update(ctx, role, id, bson.M{"email_verified": true})
}

// UpdateProfile implements domain.CredentialStore
func (r *MongoAccountRepository) UpdateProfile(ctx context.Context, role domain.Role, id string, profile domain.Profile, status domain.AccountStatus) error {
	return r.update(ctx, role, id, bson.M{
		"profile": toMongoProfile(profile),
		"status":  string(status),
	})
}

func (r *MongoAccountRepository) update(ctx context.Context, role domain.Role, id string, set bson.M) error {
	coll, err := r.collection(role)
	if err != nil {
		return err
	}
	set["updated_at"] = r.now().UTC()
	res, err := coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update account in %s: %w", coll.Name(), err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func toMongoProfile(p domain.Profile) mongoProfile {
	return mongoProfile{
		FullName:       p.FullName,
		Gender:         p.Gender,
		DateOfBirth:    p.DateOfBirth,
		Address:        p.Address,
		Specialization: p.Specialization,
		LicenseNumber:  p.LicenseNumber,
		BloodGroup:     p.BloodGroup,
	}
}

func toMongoAccount(a *domain.Account) *mongoAccount {
	return &mongoAccount{
		ID:            a.ID,
		Email:         a.Email,
		Username:      a.Username,
		Mobile:        a.Mobile,
		PasswordHash:  a.PasswordHash,
		Status:        string(a.Status),
		EmailVerified: a.EmailVerified,
		Profile:       toMongoProfile(a.Profile),
	}
}

func (d *mongoAccount) toDomain(role domain.Role) *domain.Account {
	return &domain.Account{
		ID:            d.ID,
		Role:          role,
		Email:         d.Email,
		Username:      d.Username,
		Mobile:        d.Mobile,
		PasswordHash:  d.PasswordHash,
		Status:        domain.AccountStatus(d.Status),
		EmailVerified: d.EmailVerified,
		Profile: domain.Profile{
			FullName:       d.Profile.FullName,
			Gender:         d.Profile.Gender,
			DateOfBirth:    d.Profile.DateOfBirth,
			Address:        d.Profile.Address,
			Specialization: d.Profile.Specialization,
			LicenseNumber:  d.Profile.LicenseNumber,
			BloodGroup:     d.Profile.BloodGroup,
		},
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// Compile-time interface compliance verification
var _ domain.CredentialStore = (*MongoAccountRepository)(nil)
