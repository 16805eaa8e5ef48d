package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// databaseURLEnv is the hosting platform's standard variable, used when DB_URL is unset
const databaseURLEnv = "DATABASE_URL"

// Config holds all application configuration
type Config struct {
	AppPort  string `envconfig:"APP_PORT" default:"8080"`
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Database
	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     string `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"postgres"`
	DBPassword string `envconfig:"DB_PASSWORD" default:"postgres"`
	DBName     string `envconfig:"DB_NAME" default:"chat_inbox"`
	DBURL      string `envconfig:"DB_URL"`

	// Redis
	RedisURL      string        `envconfig:"REDIS_URL" default:"redis://localhost:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD" default:""`
	DedupTTL      time.Duration `envconfig:"DEDUP_TTL" default:"72h"`

	// Meta (Messenger, Instagram, WhatsApp)
	MetaPageAccessToken string `envconfig:"META_PAGE_ACCESS_TOKEN"`
	MetaVerifyToken     string `envconfig:"META_VERIFY_TOKEN"`
	MetaAppSecret       string `envconfig:"META_APP_SECRET"` // Enables X-Hub-Signature-256 checks
	MetaPageID          string `envconfig:"META_PAGE_ID"`
	MetaGraphBaseURL    string `envconfig:"META_GRAPH_BASE_URL" default:"https://graph.facebook.com"`
	MetaGraphVersion    string `envconfig:"META_GRAPH_VERSION" default:"v19.0"`

	// Web push
	VAPIDPublicKey  string `envconfig:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `envconfig:"VAPID_PRIVATE_KEY"`
	VAPIDSubject    string `envconfig:"VAPID_SUBJECT" default:"mailto:ops@example.com"`
	PushTTLSeconds  int    `envconfig:"PUSH_TTL_SECONDS" default:"86400"`

	// Outbound HTTP calls (Graph profile fetch, push delivery)
	HTTPClientTimeout time.Duration `envconfig:"HTTP_CLIENT_TIMEOUT" default:"10s"`

	// Upper bound on synchronous webhook processing. Meta redelivers after 20s without a 200.
	WebhookProcessTimeout time.Duration `envconfig:"WEBHOOK_PROCESS_TIMEOUT" default:"15s"`

	// Dashboard
	JWTSecret    string `envconfig:"JWT_SECRET" default:"change-this-secret-in-production"`
	InboxBaseURL string `envconfig:"INBOX_BASE_URL" default:"/staff/inbox"`

	// Maintenance
	MaintenanceCron         string `envconfig:"MAINTENANCE_CRON" default:"15 3 * * *"`
	ConversationIdleDays    int    `envconfig:"CONVERSATION_IDLE_DAYS" default:"30"`
	WebhookLogRetentionDays int    `envconfig:"WEBHOOK_LOG_RETENTION_DAYS" default:"14"`
}

var instance *Config

// Load initializes and returns the singleton Config instance
func Load() (*Config, error) {
	if instance != nil {
		return instance, nil
	}

	cfg, err := load()
	if err != nil {
		return nil, err
	}

	instance = cfg
	return instance, nil
}

func load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("error processing environment variables: %w", err)
	}

	if cfg.DBURL == "" {
		if databaseURL := os.Getenv(databaseURLEnv); databaseURL != "" {
			cfg.DBURL = databaseURL
		}
	}

	// Build DBURL if still not provided
	if cfg.DBURL == "" {
		cfg.DBURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
			cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	}

	return cfg, nil
}

// Get returns the singleton Config instance (must call Load first)
func Get() *Config {
	if instance == nil {
		panic("config not loaded: call config.Load() first")
	}
	return instance
}

// PushEnabled reports whether both VAPID keys are present
func (c *Config) PushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

// Warnings lists optional integrations that are not configured.
// Missing credentials degrade features to no-ops instead of failing startup.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.MetaPageAccessToken == "" {
		warnings = append(warnings, "META_PAGE_ACCESS_TOKEN not set: profile lookups disabled, placeholder names will be used")
	}
	if c.MetaVerifyToken == "" {
		warnings = append(warnings, "META_VERIFY_TOKEN not set: webhook verification will always fail")
	}
	if c.MetaAppSecret == "" {
		warnings = append(warnings, "META_APP_SECRET not set: webhook signatures are not verified")
	}
	if !c.PushEnabled() {
		warnings = append(warnings, "VAPID keys not set: push notifications disabled")
	}
	if c.JWTSecret == "change-this-secret-in-production" && c.AppEnv == "production" {
		warnings = append(warnings, "JWT_SECRET uses the default value in production")
	}
	return warnings
}
