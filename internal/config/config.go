package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerPort  string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string

	OperatorTokenTTL time.Duration

	// EncryptionKey is the base64 symmetric key for stored partner tokens.
	// Empty is allowed: the vault then runs degraded and syncs fail closed.
	EncryptionKey string

	PartnerBaseURL string
	PartnerTimeout time.Duration

	SyncCooldown     time.Duration
	ScheduleInterval time.Duration
	SyncWorkers      int

	// RateLimitBackend is redis (shared across replicas) or memory (single process).
	RateLimitBackend string
	RateLimitQuota   int
	RateLimitWindow  time.Duration

	RiskAlertThreshold int

	LogLevel  string
	LogFormat string
}

func LoadConfig() (*Config, error) {
	var err error
	cfg := &Config{
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		EncryptionKey:    os.Getenv("TOKEN_ENCRYPTION_KEY"),
		PartnerBaseURL:   getEnv("PARTNER_API_URL", "https://graph.facebook.com/v19.0"),
		RateLimitBackend: getEnv("RATE_LIMIT_BACKEND", "redis"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "json"),
	}

	if cfg.OperatorTokenTTL, err = getDuration("OPERATOR_TOKEN_TTL", "12h"); err != nil {
		return nil, err
	}
	if cfg.PartnerTimeout, err = getDuration("PARTNER_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if cfg.SyncCooldown, err = getDuration("SYNC_COOLDOWN", "15m"); err != nil {
		return nil, err
	}
	if cfg.ScheduleInterval, err = getDuration("SYNC_INTERVAL", "15m"); err != nil {
		return nil, err
	}
	if cfg.RateLimitWindow, err = getDuration("RATE_LIMIT_WINDOW", "60s"); err != nil {
		return nil, err
	}
	if cfg.RateLimitQuota, err = getInt("RATE_LIMIT_QUOTA", 5); err != nil {
		return nil, err
	}
	if cfg.SyncWorkers, err = getInt("SYNC_WORKERS", 4); err != nil {
		return nil, err
	}
	if cfg.RiskAlertThreshold, err = getInt("AUDIT_RISK_THRESHOLD", 50); err != nil {
		return nil, err
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.RateLimitQuota <= 0 {
		return nil, errors.New("RATE_LIMIT_QUOTA must be positive")
	}
	if cfg.RateLimitBackend != "redis" && cfg.RateLimitBackend != "memory" {
		return nil, fmt.Errorf("RATE_LIMIT_BACKEND must be redis or memory, got %q", cfg.RateLimitBackend)
	}
	if cfg.SyncWorkers <= 0 {
		return nil, errors.New("SYNC_WORKERS must be positive")
	}

	return cfg, nil
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key, defaultValue string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s format", key)
	}
	return d, nil
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s format", key)
	}
	return n, nil
}
