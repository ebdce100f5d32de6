package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBSource string
	Port     string
	Env      string
	LogLevel string

	JWTSecret  string
	SessionTTL time.Duration

	RedisAddress  string
	RedisPassword string

	GCSBucket          string
	GCSCredentialsJSON string

	ApprovalRoutesFile  string
	BudgetAuditSchedule string
	TimeZone            string

	Routes Routes
}

// Load reads configuration from the environment. A .env file in the working
// directory is honoured for local development; real env vars win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbSource := os.Getenv("DB_SOURCE")
	if dbSource == "" {
		return nil, fmt.Errorf("DB_SOURCE environment variable is required")
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	ttl := 12 * time.Hour
	if v := os.Getenv("SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid SESSION_TTL %q", v)
		}
		ttl = d
	}

	cfg := &Config{
		DBSource:            dbSource,
		Port:                getenv("SERVER_PORT", "8080"),
		Env:                 getenv("ENVIRONMENT", "development"),
		LogLevel:            getenv("LOG_LEVEL", "info"),
		JWTSecret:           secret,
		SessionTTL:          ttl,
		RedisAddress:        os.Getenv("REDIS_ADDRESS"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		GCSBucket:           os.Getenv("GCS_BUCKET"),
		GCSCredentialsJSON:  os.Getenv("GCS_CREDENTIALS_JSON"),
		ApprovalRoutesFile:  os.Getenv("APPROVAL_ROUTES_FILE"),
		BudgetAuditSchedule: getenv("BUDGET_AUDIT_SCHEDULE", "0 */6 * * *"),
		TimeZone:            getenv("TIMEZONE", "UTC"),
	}

	if cfg.ApprovalRoutesFile != "" {
		routes, err := LoadRoutes(cfg.ApprovalRoutesFile)
		if err != nil {
			return nil, err
		}
		cfg.Routes = routes
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
