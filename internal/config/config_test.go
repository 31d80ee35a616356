package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseYAML = `
app:
  port: 9090
database:
  driver: sqlite
  dsn: "file::memory:"
redis:
  addr: "localhost:6379"
jwt:
  key_dir: "keys"
  access_ttl: "15m"
  refresh_ttl: "168h"
otp:
  ttl: "30m"
  length: 6
  max_attempts: 3
casbin:
  model_path: "config/rbac_model.conf"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFrom(t *testing.T) {
	cfg, err := LoadFrom(writeConfig(t, baseYAML), EnvOverrides{})
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.True(t, cfg.IsSQL())
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, 30*time.Minute, cfg.OTP_TTL)
	assert.Equal(t, time.Hour, cfg.PendingTTL, "pending TTL defaults to one hour")
	assert.Equal(t, time.Duration(0), cfg.OTP_ResendWindow)
	assert.Equal(t, 3, cfg.CreateRetries)
	assert.Equal(t, "medrecsvc", cfg.JWTIssuer)
	assert.False(t, cfg.SMSEnabled())
}

func TestLoadFrom_EnvOverrides(t *testing.T) {
	overrides := EnvOverrides{
		Port:          7070,
		DBDriver:      "mongo",
		MongoURI:      "mongodb://db:27017",
		MongoDatabase: "medrec_test",
		SMTPPassword:  "s3cret",
	}
	content := baseYAML + `  policy_path: "config/policy.csv"
`
	cfg, err := LoadFrom(writeConfig(t, content), overrides)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, DriverMongo, cfg.DBDriver)
	assert.Equal(t, "mongodb://db:27017", cfg.MongoURI)
	assert.Equal(t, "medrec_test", cfg.MongoDatabase)
	assert.Equal(t, "s3cret", cfg.SMTPPassword)
	assert.False(t, cfg.IsSQL())
}

func TestLoadFrom_Errors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		contains string
	}{
		{
			name:     "invalid duration",
			content:  baseYAML + "signup:\n  pending_ttl: \"soon\"\n",
			contains: "invalid pending signup TTL",
		},
		{
			name: "unsupported driver",
			content: `
database:
  driver: cassandra
redis:
  addr: "localhost:6379"
jwt:
  key_dir: "keys"
casbin:
  model_path: "m.conf"
`,
			contains: "unsupported database driver",
		},
		{
			name: "mongo without policy file",
			content: `
database:
  driver: mongo
  mongo_uri: "mongodb://localhost"
  mongo_database: "medrec"
redis:
  addr: "localhost:6379"
jwt:
  key_dir: "keys"
casbin:
  model_path: "m.conf"
`,
			contains: "casbin.policy_path is required",
		},
		{
			name: "access ttl longer than refresh",
			content: `
database:
  driver: sqlite
  dsn: "file::memory:"
redis:
  addr: "localhost:6379"
jwt:
  key_dir: "keys"
  access_ttl: "200h"
casbin:
  model_path: "m.conf"
`,
			contains: "jwt.access_ttl must be shorter",
		},
		{
			name:     "bad yaml",
			content:  "app: [",
			contains: "could not parse config yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(writeConfig(t, tt.content), EnvOverrides{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestLoadFrom_MissingFile(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yml"), EnvOverrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not read config file")
}

func TestLoadFrom_OwnershipRules(t *testing.T) {
	dir := t.TempDir()
	rulesPath := filepath.Join(dir, "rules.yml")
	require.NoError(t, os.WriteFile(rulesPath, []byte(`
ownershipRules:
  - method: GET
    path: /api/doctors/:id
    source: path
    paramName: id
`), 0o600))

	content := baseYAML + "  ownership_rules_path: \"" + rulesPath + "\"\n"
	cfg, err := LoadFrom(writeConfig(t, content), EnvOverrides{})
	require.NoError(t, err)
	require.Len(t, cfg.OwnershipRules, 1)
	assert.Equal(t, OwnershipRule{Method: "GET", Path: "/api/doctors/:id", Source: "path", ParamName: "id"}, cfg.OwnershipRules[0])
}
