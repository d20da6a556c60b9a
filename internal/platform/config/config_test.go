package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, time.Hour, cfg.Server.TokenTTL)
	assert.Equal(t, "merit.events", cfg.Kafka.Topic)
	assert.Equal(t, 100, cfg.Relay.BatchSize)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.UsePostgres())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MERIT_SERVER_ADDR", ":9090")
	t.Setenv("MERIT_STORAGE_BACKEND", "postgres")
	t.Setenv("MERIT_DATABASE_URL", "postgres://merit@localhost/merit?sslmode=disable")
	t.Setenv("MERIT_KAFKA_BROKERS", "b1:9092,b2:9092")
	t.Setenv("MERIT_RELAY_INTERVAL", "250ms")
	t.Setenv("MERIT_LEDGER_INITIAL_BALANCES", "0x1111111111111111111111111111111111111111:500")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.True(t, cfg.UsePostgres())
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 250*time.Millisecond, cfg.Relay.Interval)
	assert.Equal(t, uint64(500), cfg.Ledger.InitialBalances["0x1111111111111111111111111111111111111111"])
}

func TestValidate(t *testing.T) {
	base := func() Config {
		cfg, err := FromEnv()
		require.NoError(t, err)
		return cfg
	}

	t.Run("production rejects dev signing key", func(t *testing.T) {
		cfg := base()
		cfg.Server.Production = true
		assert.ErrorContains(t, cfg.Validate(), "overridden in production")
	})

	t.Run("postgres backend requires url", func(t *testing.T) {
		cfg := base()
		cfg.Database.Backend = BackendPostgres
		cfg.Database.URL = ""
		assert.ErrorContains(t, cfg.Validate(), "database url is required")
	})

	t.Run("short signing key", func(t *testing.T) {
		cfg := base()
		cfg.Server.JWTSigningKey = "short"
		assert.ErrorContains(t, cfg.Validate(), "at least 16 bytes")
	})

	t.Run("unknown log format", func(t *testing.T) {
		cfg := base()
		cfg.Log.Format = "xml"
		assert.ErrorContains(t, cfg.Validate(), "unknown log format")
	})

	t.Run("joins every problem", func(t *testing.T) {
		cfg := base()
		cfg.Relay.BatchSize = 0
		cfg.Tracing.SampleRatio = 2
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "batch size")
		assert.Contains(t, err.Error(), "sample ratio")
	})

	t.Run("invalid duration fails load", func(t *testing.T) {
		t.Setenv("MERIT_TOKEN_TTL", "soon")
		_, err := FromEnv()
		assert.Error(t, err)
	})
}
