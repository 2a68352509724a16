package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setDevEnv(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("EMAIL_PROVIDER", "log")
}

func TestLoad_Defaults(t *testing.T) {
	setDevEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "postgres", cfg.Store.Backend)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5*time.Minute, cfg.Redis.SettingsTTL)
	assert.Equal(t, 4, cfg.Email.Concurrency)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:8080"}, cfg.CORSOrigins)
	assert.True(t, cfg.GeneratedSecret)
	assert.GreaterOrEqual(t, len(cfg.JWTSecret), 32)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.TrustProxy)
}

func TestLoad_EnvVars(t *testing.T) {
	setDevEnv(t)
	t.Setenv("PORT", "9999")
	t.Setenv("JWT_SECRET", "a-development-secret-value")
	t.Setenv("STORE_BACKEND", "xano")
	t.Setenv("XANO_BASE_URL", "https://x8ki.xano.io/api:abc")
	t.Setenv("XANO_TIMEOUT", "3s")
	t.Setenv("SETTINGS_CACHE_TTL", "90s")
	t.Setenv("CORS_ORIGINS", "https://app.roolify.com, https://admin.roolify.com")
	t.Setenv("SUBMISSION_RETENTION_DAYS", "30")
	t.Setenv("TRUST_PROXY", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Port)
	assert.False(t, cfg.GeneratedSecret)
	assert.Equal(t, "xano", cfg.Store.Backend)
	assert.Equal(t, "https://x8ki.xano.io/api:abc", cfg.Xano.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Xano.Timeout)
	assert.Equal(t, 90*time.Second, cfg.Redis.SettingsTTL)
	assert.Equal(t, []string{"https://app.roolify.com", "https://admin.roolify.com"}, cfg.CORSOrigins)
	assert.Equal(t, 30, cfg.Retention.SubmissionDays)
	assert.True(t, cfg.TrustProxy)
}

func TestLoad_AppURLBecomesCORSOrigin(t *testing.T) {
	setDevEnv(t)
	t.Setenv("APP_URL", "https://app.roolify.com/")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://app.roolify.com", cfg.AppURL)
	assert.Equal(t, []string{"https://app.roolify.com"}, cfg.CORSOrigins)
}

func TestLoad_ConfigFile(t *testing.T) {
	setDevEnv(t)

	path := filepath.Join(t.TempDir(), "roolify.yaml")
	contents := []byte("port: 7000\nemail:\n  concurrency: 2\nwebhook:\n  rate_burst: 3\n")
	require.NoError(t, os.WriteFile(path, contents, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, 2, cfg.Email.Concurrency)
	assert.Equal(t, 3, cfg.Webhook.RateBurst)
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("EMAIL_PROVIDER", "log")

	_, err := Load("")
	assert.ErrorContains(t, err, "JWT_SECRET is required")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Port:        8080,
			Environment: "development",
			JWTSecret:   "0123456789abcdef0123456789abcdef",
			CORSOrigins: []string{"http://localhost:3000"},
			Store:       StoreConfig{Backend: "postgres"},
			Database:    DatabaseConfig{Type: "postgres", DSN: "postgresql://localhost/roolify"},
			Email:       EmailConfig{Provider: "sendgrid", SendGridAPIKey: "SG.key", FromEmail: "no-reply@roolify.com", Concurrency: 1},
		}
	}

	require.NoError(t, base().Validate())

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad port", func(c *Config) { c.Port = 0 }, "invalid port"},
		{"short secret", func(c *Config) { c.JWTSecret = "short" }, "at least 16"},
		{"insecure production secret", func(c *Config) {
			c.Environment = "production"
			c.JWTSecret = "changeme"
		}, "at least 32"},
		{"unknown backend", func(c *Config) { c.Store.Backend = "mysql" }, "unsupported store backend"},
		{"xano without url", func(c *Config) { c.Store.Backend = "xano" }, "XANO_BASE_URL is required"},
		{"sendgrid without key", func(c *Config) { c.Email.SendGridAPIKey = "" }, "SENDGRID_API_KEY"},
		{"smtp without host", func(c *Config) { c.Email.Provider = "smtp" }, "SMTP_HOST"},
		{"unknown provider", func(c *Config) { c.Email.Provider = "pigeon" }, "unsupported email provider"},
		{"missing from", func(c *Config) { c.Email.FromEmail = "" }, "EMAIL_FROM"},
		{"zero concurrency", func(c *Config) { c.Email.Concurrency = 0 }, "EMAIL_CONCURRENCY"},
		{"negative retention", func(c *Config) { c.Retention.SubmissionDays = -1 }, "cannot be negative"},
		{"no cors", func(c *Config) { c.CORSOrigins = nil }, "CORS origin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}
