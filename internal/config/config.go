package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Port        int      `mapstructure:"port"`
	Environment string   `mapstructure:"environment"`
	LogLevel    string   `mapstructure:"log_level"`
	JWTSecret   string   `mapstructure:"jwt_secret"`
	AppURL      string   `mapstructure:"app_url"`
	CORSOrigins []string `mapstructure:"cors_origins"`

	// TrustProxy honours X-Forwarded-For and X-Real-IP. Enable it only
	// behind a reverse proxy that overwrites those headers.
	TrustProxy bool `mapstructure:"trust_proxy"`

	Store     StoreConfig     `mapstructure:"store"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Xano      XanoConfig      `mapstructure:"xano"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Email     EmailConfig     `mapstructure:"email"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Retention RetentionConfig `mapstructure:"retention"`

	// GeneratedSecret is set when no JWT secret was configured outside
	// production and a random one was generated.
	GeneratedSecret bool `mapstructure:"-"`
}

// StoreConfig selects the persistence backend
type StoreConfig struct {
	Backend string `mapstructure:"backend"` // postgres, xano
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Type         string `mapstructure:"type"` // postgres
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// XanoConfig holds the hosted Xano backend connection
type XanoConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RedisConfig configures the optional settings cache
type RedisConfig struct {
	URL         string        `mapstructure:"url"`
	SettingsTTL time.Duration `mapstructure:"settings_ttl"`
}

// EmailConfig configures outbound notification email
type EmailConfig struct {
	Provider    string `mapstructure:"provider"` // sendgrid, smtp, log
	FromEmail   string `mapstructure:"from"`
	FromName    string `mapstructure:"from_name"`
	Concurrency int    `mapstructure:"concurrency"`

	SendGridAPIKey  string `mapstructure:"sendgrid_api_key"`
	SendGridBaseURL string `mapstructure:"sendgrid_base_url"`

	SMTPHost     string `mapstructure:"smtp_host"`
	SMTPPort     int    `mapstructure:"smtp_port"`
	SMTPUsername string `mapstructure:"smtp_username"`
	SMTPPassword string `mapstructure:"smtp_password"`
}

// WebhookConfig limits the public submission endpoint per client IP
type WebhookConfig struct {
	RateLimit float64 `mapstructure:"rate_limit"` // requests per second
	RateBurst int     `mapstructure:"rate_burst"`
}

// RetentionConfig controls submission pruning. Zero days disables it.
type RetentionConfig struct {
	SubmissionDays int `mapstructure:"submission_days"`
}

var envBindings = map[string]string{
	"port":                      "PORT",
	"environment":               "ENVIRONMENT",
	"log_level":                 "LOG_LEVEL",
	"jwt_secret":                "JWT_SECRET",
	"app_url":                   "APP_URL",
	"cors_origins":              "CORS_ORIGINS",
	"trust_proxy":               "TRUST_PROXY",
	"store.backend":             "STORE_BACKEND",
	"database.type":             "DATABASE_TYPE",
	"database.dsn":              "DATABASE_DSN",
	"database.max_open_conns":   "DB_MAX_OPEN_CONNS",
	"database.max_idle_conns":   "DB_MAX_IDLE_CONNS",
	"xano.base_url":             "XANO_BASE_URL",
	"xano.api_key":              "XANO_API_KEY",
	"xano.timeout":              "XANO_TIMEOUT",
	"redis.url":                 "REDIS_URL",
	"redis.settings_ttl":        "SETTINGS_CACHE_TTL",
	"email.provider":            "EMAIL_PROVIDER",
	"email.from":                "EMAIL_FROM",
	"email.from_name":           "EMAIL_FROM_NAME",
	"email.concurrency":         "EMAIL_CONCURRENCY",
	"email.sendgrid_api_key":    "SENDGRID_API_KEY",
	"email.sendgrid_base_url":   "SENDGRID_BASE_URL",
	"email.smtp_host":           "SMTP_HOST",
	"email.smtp_port":           "SMTP_PORT",
	"email.smtp_username":       "SMTP_USERNAME",
	"email.smtp_password":       "SMTP_PASSWORD",
	"webhook.rate_limit":        "WEBHOOK_RATE_LIMIT",
	"webhook.rate_burst":        "WEBHOOK_RATE_BURST",
	"retention.submission_days": "SUBMISSION_RETENTION_DAYS",
}

// Load reads configuration from an optional .env file, an optional config
// file and the environment, in increasing order of precedence.
func Load(path string) (*Config, error) {
	// .env is a local development convenience; its absence is normal
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.SetConfigName("roolify")
		v.SetConfigType("yaml")
	}

	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// CORS_ORIGINS arrives as one comma separated string from the environment
	cfg.CORSOrigins = splitAndTrim(strings.Join(cfg.CORSOrigins, ","), ",")
	cfg.AppURL = strings.TrimRight(cfg.AppURL, "/")
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = defaultCORSOrigins(cfg.AppURL)
	}

	if cfg.JWTSecret == "" && cfg.Environment != "production" {
		secret, err := generateRandomSecret()
		if err != nil {
			return nil, err
		}
		cfg.JWTSecret = secret
		cfg.GeneratedSecret = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("environment", "production")
	v.SetDefault("log_level", "info")
	v.SetDefault("trust_proxy", false)
	v.SetDefault("store.backend", "postgres")
	v.SetDefault("database.type", "postgres")
	v.SetDefault("database.dsn", buildPostgresDSN())
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("xano.timeout", 15*time.Second)
	v.SetDefault("redis.settings_ttl", 5*time.Minute)
	v.SetDefault("email.provider", "sendgrid")
	v.SetDefault("email.from_name", "Roolify")
	v.SetDefault("email.concurrency", 4)
	v.SetDefault("email.sendgrid_base_url", "https://api.sendgrid.com")
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("webhook.rate_limit", 5.0)
	v.SetDefault("webhook.rate_burst", 20)
	v.SetDefault("retention.submission_days", 0)
}

func buildPostgresDSN() string {
	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword("roolify", "secret"),
		Host:   "localhost:5432",
		Path:   "roolify",
	}

	query := u.Query()
	query.Set("sslmode", "disable")
	u.RawQuery = query.Encode()

	return u.String()
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if c.Environment == "production" {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
		}

		insecureSecrets := []string{
			"change-this-secret-in-production",
			"change-me-in-production",
			"secret",
			"password",
			"changeme",
		}
		for _, insecure := range insecureSecrets {
			if c.JWTSecret == insecure {
				return fmt.Errorf("JWT_SECRET is set to an insecure default value. Please set a strong random secret")
			}
		}
	} else if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters long")
	}

	switch c.Store.Backend {
	case "postgres":
		if c.Database.Type != "postgres" {
			return fmt.Errorf("unsupported database type: %s", c.Database.Type)
		}
		if c.Database.DSN == "" {
			return fmt.Errorf("DATABASE_DSN is required for the postgres store")
		}
	case "xano":
		if c.Xano.BaseURL == "" {
			return fmt.Errorf("XANO_BASE_URL is required for the xano store")
		}
		if _, err := url.ParseRequestURI(c.Xano.BaseURL); err != nil {
			return fmt.Errorf("invalid XANO_BASE_URL: %w", err)
		}
	default:
		return fmt.Errorf("unsupported store backend: %s", c.Store.Backend)
	}

	switch c.Email.Provider {
	case "sendgrid":
		if c.Email.SendGridAPIKey == "" {
			return fmt.Errorf("SENDGRID_API_KEY is required when EMAIL_PROVIDER=sendgrid")
		}
	case "smtp":
		if c.Email.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required when EMAIL_PROVIDER=smtp")
		}
	case "log":
	default:
		return fmt.Errorf("unsupported email provider: %s", c.Email.Provider)
	}
	if c.Email.Provider != "log" && c.Email.FromEmail == "" {
		return fmt.Errorf("EMAIL_FROM is required")
	}
	if c.Email.Concurrency < 1 {
		return fmt.Errorf("EMAIL_CONCURRENCY must be at least 1")
	}

	if len(c.CORSOrigins) == 0 {
		return fmt.Errorf("at least one CORS origin must be configured")
	}

	if c.Retention.SubmissionDays < 0 {
		return fmt.Errorf("SUBMISSION_RETENTION_DAYS cannot be negative")
	}

	return nil
}

// IsDevelopment reports whether the service runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func defaultCORSOrigins(appURL string) []string {
	if appURL != "" {
		return []string{appURL}
	}
	return []string{"http://localhost:3000", "http://localhost:8080"}
}

func splitAndTrim(s, sep string) []string {
	parts := []string{}
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

func generateRandomSecret() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random secret: %w", err)
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}
