package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultConfigPath = "config/config.yml"

// Supported credential store drivers
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type OwnershipRule struct {
	Method    string `yaml:"method"`
	Path      string `yaml:"path"`
	Source    string `yaml:"source"`
	ParamName string `yaml:"paramName"`
}

type AppConfig struct {
	Port           int      `yaml:"port"`
	GinMode        string   `yaml:"gin_mode"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	Driver        string `yaml:"driver"`
	DSN           string `yaml:"dsn"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type JWTConfig struct {
	KeyDir     string `yaml:"key_dir"`
	Issuer     string `yaml:"issuer"`
	AccessTTL  string `yaml:"access_ttl"`
	RefreshTTL string `yaml:"refresh_ttl"`
}

type OTPConfig struct {
	TTL          string `yaml:"ttl"`
	Length       int    `yaml:"length"`
	MaxAttempts  int    `yaml:"max_attempts"`
	ResendWindow string `yaml:"resend_window"`
	ExposeCode   bool   `yaml:"expose_code"`
}

type SignupConfig struct {
	PendingTTL    string `yaml:"pending_ttl"`
	CreateRetries int    `yaml:"create_retries"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type TwilioConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	FromNumber string `yaml:"from_number"`
	DialPrefix string `yaml:"dial_prefix"`
}

type CasbinConfig struct {
	ModelPath          string `yaml:"model_path"`
	PolicyPath         string `yaml:"policy_path"`
	OwnershipRulesPath string `yaml:"ownership_rules_path"`
}

type ConfigFile struct {
	App      AppConfig      `yaml:"app"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	JWT      JWTConfig      `yaml:"jwt"`
	OTP      OTPConfig      `yaml:"otp"`
	Signup   SignupConfig   `yaml:"signup"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Twilio   TwilioConfig   `yaml:"twilio"`
	Casbin   CasbinConfig   `yaml:"casbin"`
}

// EnvOverrides are secrets and deployment values that may come from the environment
type EnvOverrides struct {
	ConfigPath    string `env:"CONFIG_PATH"`
	Port          int    `env:"API_PORT"`
	GinMode       string `env:"GIN_MODE"`
	DBDriver      string `env:"DATABASE_DRIVER"`
	DSN           string `env:"DATABASE_DSN"`
	MongoURI      string `env:"MONGO_URI"`
	MongoDatabase string `env:"MONGO_DATABASE"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	KeyDir        string `env:"JWT_KEY_DIR"`
	SMTPUser      string `env:"SMTP_USERNAME"`
	SMTPPassword  string `env:"SMTP_PASSWORD"`
	TwilioSID     string `env:"TWILIO_ACCOUNT_SID"`
	TwilioToken   string `env:"TWILIO_AUTH_TOKEN"`
}

type Config struct {
	Port             string
	GinMode          string
	AllowedOrigins   []string
	DBDriver         string
	DSN              string
	MongoURI         string
	MongoDatabase    string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	KeyDir           string
	JWTIssuer        string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	OTP_TTL          time.Duration
	OTP_Length       int
	OTP_MaxAttempts  int
	OTP_ResendWindow time.Duration
	OTP_ExposeCode   bool
	PendingTTL       time.Duration
	CreateRetries    int
	SMTPHost         string
	SMTPPort         int
	SMTPUser         string
	SMTPPassword     string
	SMTPFrom         string
	TwilioSID        string
	TwilioToken      string
	TwilioFrom       string
	TwilioDialPrefix string
	CasbinModelPath  string
	CasbinPolicyPath string
	OwnershipRules   []OwnershipRule
}

// IsSQL reports whether accounts live in a relational database
func (c *Config) IsSQL() bool {
	return c.DBDriver == DriverPostgres || c.DBDriver == DriverSQLite
}

// SMSEnabled reports whether a copy of each code is texted to the mobile number
func (c *Config) SMSEnabled() bool {
	return c.TwilioSID != "" && c.TwilioFrom != ""
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("config: no .env file found, relying on environment variables")
	}

	var overrides EnvOverrides
	if err := env.Parse(&overrides); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	path := overrides.ConfigPath
	if path == "" {
		path = defaultConfigPath
	}
	return LoadFrom(path, overrides)
}

// LoadFrom builds the configuration from the YAML file at path, then applies overrides
func LoadFrom(path string, overrides EnvOverrides) (*Config, error) {
	configFile, err := loadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	applyOverrides(configFile, overrides)

	accTTL, err := parseDuration(configFile.JWT.AccessTTL, 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT access TTL: %w", err)
	}

	refTTL, err := parseDuration(configFile.JWT.RefreshTTL, 7*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT refresh TTL: %w", err)
	}

	otpTTL, err := parseDuration(configFile.OTP.TTL, 30*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid OTP TTL: %w", err)
	}

	resWnd, err := parseDuration(configFile.OTP.ResendWindow, 0)
	if err != nil {
		return nil, fmt.Errorf("invalid OTP resend window: %w", err)
	}

	pendingTTL, err := parseDuration(configFile.Signup.PendingTTL, time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid pending signup TTL: %w", err)
	}

	var ownershipRules []OwnershipRule
	if configFile.Casbin.OwnershipRulesPath != "" {
		ownershipRules, err = loadOwnershipRules(configFile.Casbin.OwnershipRulesPath)
		if err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Port:             fmt.Sprintf("%d", configFile.App.Port),
		GinMode:          configFile.App.GinMode,
		AllowedOrigins:   configFile.App.AllowedOrigins,
		DBDriver:         strings.ToLower(configFile.Database.Driver),
		DSN:              configFile.Database.DSN,
		MongoURI:         configFile.Database.MongoURI,
		MongoDatabase:    configFile.Database.MongoDatabase,
		RedisAddr:        configFile.Redis.Addr,
		RedisPassword:    configFile.Redis.Password,
		RedisDB:          configFile.Redis.DB,
		KeyDir:           configFile.JWT.KeyDir,
		JWTIssuer:        configFile.JWT.Issuer,
		AccessTTL:        accTTL,
		RefreshTTL:       refTTL,
		OTP_TTL:          otpTTL,
		OTP_Length:       configFile.OTP.Length,
		OTP_MaxAttempts:  configFile.OTP.MaxAttempts,
		OTP_ResendWindow: resWnd,
		OTP_ExposeCode:   configFile.OTP.ExposeCode,
		PendingTTL:       pendingTTL,
		CreateRetries:    configFile.Signup.CreateRetries,
		SMTPHost:         configFile.SMTP.Host,
		SMTPPort:         configFile.SMTP.Port,
		SMTPUser:         configFile.SMTP.Username,
		SMTPPassword:     configFile.SMTP.Password,
		SMTPFrom:         configFile.SMTP.From,
		TwilioSID:        configFile.Twilio.AccountSID,
		TwilioToken:      configFile.Twilio.AuthToken,
		TwilioFrom:       configFile.Twilio.FromNumber,
		TwilioDialPrefix: configFile.Twilio.DialPrefix,
		CasbinModelPath:  configFile.Casbin.ModelPath,
		CasbinPolicyPath: configFile.Casbin.PolicyPath,
		OwnershipRules:   ownershipRules,
	}
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot start with
func (c *Config) Validate() error {
	var errs []error
	switch c.DBDriver {
	case DriverMongo:
		if c.MongoURI == "" || c.MongoDatabase == "" {
			errs = append(errs, errors.New("database.mongo_uri and database.mongo_database are required for the mongo driver"))
		}
	case DriverPostgres, DriverSQLite:
		if c.DSN == "" {
			errs = append(errs, fmt.Errorf("database.dsn is required for the %s driver", c.DBDriver))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q", c.DBDriver))
	}
	if c.RedisAddr == "" {
		errs = append(errs, errors.New("redis.addr is required"))
	}
	if c.KeyDir == "" {
		errs = append(errs, errors.New("jwt.key_dir is required"))
	}
	if c.OTP_Length < 4 || c.OTP_Length > 10 {
		errs = append(errs, fmt.Errorf("otp.length must be between 4 and 10, got %d", c.OTP_Length))
	}
	if c.OTP_MaxAttempts < 1 {
		errs = append(errs, errors.New("otp.max_attempts must be positive"))
	}
	if c.AccessTTL >= c.RefreshTTL {
		errs = append(errs, errors.New("jwt.access_ttl must be shorter than jwt.refresh_ttl"))
	}
	if c.CasbinModelPath == "" {
		errs = append(errs, errors.New("casbin.model_path is required"))
	}
	if !c.IsSQL() && c.CasbinPolicyPath == "" {
		errs = append(errs, errors.New("casbin.policy_path is required when accounts are not stored in SQL"))
	}
	return errors.Join(errs...)
}

func applyDefaults(c *Config) {
	if c.Port == "0" {
		c.Port = "8080"
	}
	if c.DBDriver == "" {
		c.DBDriver = DriverMongo
	}
	if c.JWTIssuer == "" {
		c.JWTIssuer = "medrecsvc"
	}
	if c.OTP_Length == 0 {
		c.OTP_Length = 6
	}
	if c.OTP_MaxAttempts == 0 {
		c.OTP_MaxAttempts = 3
	}
	if c.CreateRetries == 0 {
		c.CreateRetries = 3
	}
	if c.SMTPPort == 0 {
		c.SMTPPort = 587
	}
}

func applyOverrides(f *ConfigFile, o EnvOverrides) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	if o.Port != 0 {
		f.App.Port = o.Port
	}
	set(&f.App.GinMode, o.GinMode)
	set(&f.Database.Driver, o.DBDriver)
	set(&f.Database.DSN, o.DSN)
	set(&f.Database.MongoURI, o.MongoURI)
	set(&f.Database.MongoDatabase, o.MongoDatabase)
	set(&f.Redis.Addr, o.RedisAddr)
	set(&f.Redis.Password, o.RedisPassword)
	set(&f.JWT.KeyDir, o.KeyDir)
	set(&f.SMTP.Username, o.SMTPUser)
	set(&f.SMTP.Password, o.SMTPPassword)
	set(&f.Twilio.AccountSID, o.TwilioSID)
	set(&f.Twilio.AuthToken, o.TwilioToken)
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}

func loadConfigFile(path string) (*ConfigFile, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config file at %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(bytes, &config); err != nil {
		return nil, fmt.Errorf("could not parse config yaml: %w", err)
	}

	return &config, nil
}

func loadOwnershipRules(path string) ([]OwnershipRule, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read ownership rules file: %w", err)
	}

	var rules struct {
		Rules []OwnershipRule `yaml:"ownershipRules"`
	}
	if err := yaml.Unmarshal(bytes, &rules); err != nil {
		return nil, fmt.Errorf("could not parse ownership rules yaml: %w", err)
	}
	return rules.Rules, nil
}
