package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	"github.com/you/medrecsvc/domain"
	"github.com/you/medrecsvc/internal/config"
	httpx "github.com/you/medrecsvc/internal/http"
	"github.com/you/medrecsvc/internal/http/handlers"
	"github.com/you/medrecsvc/internal/http/middleware"
	"github.com/you/medrecsvc/internal/infrastructure/auth"
	"github.com/you/medrecsvc/internal/infrastructure/database"
	"github.com/you/medrecsvc/internal/infrastructure/notifications"
	"github.com/you/medrecsvc/internal/infrastructure/repositories"
	"github.com/you/medrecsvc/internal/services"
)

// Container holds all dependencies
type Container struct {
	// Config
	Config *config.Config

	// Infrastructure. DB is set for SQL drivers, Mongo for the mongo driver.
	DB          *gorm.DB
	Mongo       *mongo.Client
	RedisClient *redis.Client
	Keys        *auth.KeyPair
	Casbin      *auth.CasbinService

	// Repositories
	Accounts    domain.CredentialStore
	Pending     domain.PendingSignupStore
	Revocations domain.TokenRevocationStore

	// Services
	PasswordSvc domain.PasswordService
	TokenSvc    domain.TokenService
	Notifier    domain.NotificationSender
	Audit       domain.AuditLogger
	SignupSvc   domain.SignupService
	AuthSvc     domain.AuthService
	PolicySvc   domain.PolicyService
}

// NewContainer creates and initializes all dependencies. Anything already opened is
// closed again when a later step fails.
func NewContainer(ctx context.Context, cfg *config.Config) (c *Container, err error) {
	c = &Container{Config: cfg}
	defer func() {
		if err != nil {
			_ = c.Close()
			c = nil
		}
	}()

	if err = c.initStore(ctx); err != nil {
		return nil, err
	}
	if err = c.initRedis(ctx); err != nil {
		return nil, err
	}
	if err = c.initKeys(); err != nil {
		return nil, err
	}
	if err = c.initPolicy(); err != nil {
		return nil, err
	}
	c.initServices()
	return c, nil
}

func (c *Container) initStore(ctx context.Context) error {
	if c.Config.IsSQL() {
		db, err := database.Open(c.Config.DBDriver, c.Config.DSN)
		if err != nil {
			return err
		}
		c.DB = db
		if err := database.AutoMigrate(db); err != nil {
			return err
		}
		c.Accounts = repositories.NewSQLAccountRepository(db, c.Config.CreateRetries)
		return nil
	}

	client, mdb, err := database.OpenMongo(ctx, c.Config.MongoURI, c.Config.MongoDatabase)
	if err != nil {
		return err
	}
	c.Mongo = client

	repo := repositories.NewMongoAccountRepository(mdb, c.Config.CreateRetries)
	indexCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := repo.EnsureIndexes(indexCtx); err != nil {
		return fmt.Errorf("failed to create account indexes: %w", err)
	}
	c.Accounts = repo
	return nil
}

func (c *Container) initRedis(ctx context.Context) error {
	rc := database.NewRedis(c.Config.RedisAddr, c.Config.RedisPassword, c.Config.RedisDB)
	c.RedisClient = rc.Client
	if err := rc.Ping(ctx); err != nil {
		return err
	}
	c.Pending = repositories.NewPendingSignupRepository(c.RedisClient)
	c.Revocations = repositories.NewRevocationRepository(c.RedisClient)
	return nil
}

func (c *Container) initKeys() error {
	keys, err := auth.LoadOrCreateKeyPair(c.Config.KeyDir)
	if err != nil {
		return fmt.Errorf("failed to load signing keys: %w", err)
	}
	c.Keys = keys
	return nil
}

func (c *Container) initPolicy() error {
	cas, err := auth.NewCasbinService(c.DB, c.Config.CasbinModelPath, c.Config.CasbinPolicyPath)
	if err != nil {
		return err
	}
	c.Casbin = cas
	c.PolicySvc = services.NewPolicyService(cas.E)
	if c.DB == nil {
		return nil
	}
	return cas.Seed(c.PolicySvc, c.Config.CasbinModelPath, c.Config.CasbinPolicyPath)
}

func (c *Container) initServices() {
	cfg := c.Config

	c.PasswordSvc = auth.NewPasswordService()
	c.TokenSvc = auth.NewJWTService(c.Keys, auth.TokenConfig{
		Issuer:         cfg.JWTIssuer,
		AccessTTL:      cfg.AccessTTL,
		RefreshTTL:     cfg.RefreshTTL,
		OTPTTL:         cfg.OTP_TTL,
		OTPLength:      cfg.OTP_Length,
		OTPMaxAttempts: cfg.OTP_MaxAttempts,
	})

	email := notifications.NewEmailSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)
	if cfg.SMSEnabled() {
		sms := notifications.NewTwilioSender(cfg.TwilioSID, cfg.TwilioToken, cfg.TwilioFrom, cfg.TwilioDialPrefix)
		c.Notifier = notifications.NewMultiSender(email, sms)
	} else {
		c.Notifier = email
	}

	c.Audit = services.NewLogAuditLogger(nil)

	c.SignupSvc = services.NewSignupService(
		c.Accounts,
		c.Pending,
		c.PasswordSvc,
		c.TokenSvc,
		c.Notifier,
		c.Audit,
		services.SignupConfig{PendingTTL: cfg.PendingTTL, ResendWindow: cfg.OTP_ResendWindow},
	)
	c.AuthSvc = services.NewAuthService(c.Accounts, c.Revocations, c.PasswordSvc, c.TokenSvc, c.Audit)
}

// Router builds the HTTP handler for the container's services
func (c *Container) Router() *gin.Engine {
	signupH := handlers.NewSignupHandlers(c.SignupSvc, c.Config.OTP_ExposeCode)
	authH := handlers.NewAuthHandlers(c.AuthSvc)
	jwtMW := middleware.NewAuthMW(c.TokenSvc, c.Revocations)
	casbinMW := middleware.NewCasbinMW(c.PolicySvc, c.Config.OwnershipRules)
	return httpx.BuildRouter(signupH, authH, jwtMW, casbinMW, c.Config.AllowedOrigins)
}

// Close closes all connections and wipes the signing key
func (c *Container) Close() error {
	var errs []error

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if c.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := c.Mongo.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mongo: %w", err))
		}
		cancel()
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err != nil {
			errs = append(errs, fmt.Errorf("sql: %w", err))
		} else if err := sqlDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("sql: %w", err))
		}
	}
	if c.Keys != nil {
		_ = c.Keys.Close()
	}

	if len(errs) > 0 {
		log.Printf("container: close errors: %v", errs)
	}
	return errors.Join(errs...)
}
