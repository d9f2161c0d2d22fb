package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 30*time.Minute, cfg.Session.Timeout)
	assert.Equal(t, 60*time.Second, cfg.Session.ReapInterval)
	assert.Equal(t, 12*time.Hour, cfg.JWT.Expiry)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_HTTP_PORT", "9090")
	t.Setenv("SESSION_TIMEOUT", "45m")
	t.Setenv("SESSION_REAP_INTERVAL", "10s")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("KAFKA_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.HTTPPort)
	assert.Equal(t, 45*time.Minute, cfg.Session.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Session.ReapInterval)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.Kafka.Enabled)
}

func TestLoadBadValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("SERVER_HTTP_PORT", "not-a-port")
	t.Setenv("SESSION_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 30*time.Minute, cfg.Session.Timeout)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Env:    "development",
			Server: ServerConfig{HTTPPort: 8080},
			Redis:  RedisConfig{Addr: "localhost:6379"},
			Session: SessionConfig{
				Timeout:      30 * time.Minute,
				ReapInterval: time.Minute,
			},
			JWT: JWTConfig{Secret: "secret"},
		}
	}

	require.NoError(t, base().Validate())

	c := base()
	c.Server.HTTPPort = 0
	assert.Error(t, c.Validate())

	c = base()
	c.Redis.Addr = ""
	assert.Error(t, c.Validate())

	c = base()
	c.Session.Timeout = 0
	assert.Error(t, c.Validate())

	c = base()
	c.Session.ReapInterval = -time.Second
	assert.Error(t, c.Validate())

	c = base()
	c.Env = "production"
	c.JWT.Secret = "jwt-secret"
	assert.Error(t, c.Validate(), "default secret rejected in production")
}
