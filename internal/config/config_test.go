package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/numberwatch")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("TOKEN_ENCRYPTION_KEY", "")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 30*time.Second, cfg.PartnerTimeout)
	assert.Equal(t, 15*time.Minute, cfg.SyncCooldown)
	assert.Equal(t, 5, cfg.RateLimitQuota)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, 50, cfg.RiskAlertThreshold)
	assert.Equal(t, 12*time.Hour, cfg.OperatorTokenTTL)
	assert.Equal(t, 4, cfg.SyncWorkers)
	assert.Equal(t, "redis", cfg.RateLimitBackend)
	assert.Empty(t, cfg.EncryptionKey, "missing key is a degraded state, not an error")
}

func TestLoadConfig_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	_, err := LoadConfig()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/numberwatch")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("SYNC_COOLDOWN", "fifteen minutes")

	_, err := LoadConfig()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "SYNC_COOLDOWN")
}

func TestLoadConfig_InvalidQuota(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/numberwatch")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("RATE_LIMIT_QUOTA", "0")

	_, err := LoadConfig()

	require.Error(t, err)
}

func TestLoadConfig_UnknownRateLimitBackend(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/numberwatch")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("RATE_LIMIT_BACKEND", "memcached")

	_, err := LoadConfig()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATE_LIMIT_BACKEND")
}
