package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PORT", "")
	t.Setenv("TOKEN_TTL", "")
	t.Setenv("CORS_ORIGINS", "")
	t.Setenv("STORE_DRIVER", "")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StoreMongo, cfg.StoreDriver)
	assert.Equal(t, 7*24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PORT", "9000")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "5")
	t.Setenv("STORE_DRIVER", "memory")

	cfg := Load()

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.Equal(t, 5, cfg.RateLimitPerMinute)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
}

func TestValidate(t *testing.T) {
	cfg := &Config{StoreDriver: "sqlite", TokenTTL: time.Hour}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "STORE_DRIVER")
}

func TestPushEnabled(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.PushEnabled())
	cfg.Push = Push{PublicKey: "pub", PrivateKey: "priv"}
	assert.True(t, cfg.PushEnabled())
}
