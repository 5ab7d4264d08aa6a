package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "STORE", "KAFKA_BROKERS", "ACTIVE_PRODUCT_LIMIT", "AUTO_MIGRATE"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5, cfg.ActiveProductLimit)
	assert.True(t, cfg.AutoMigrate)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("STORE", "memory")
	t.Setenv("ACTIVE_PRODUCT_LIMIT", "not-a-number")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("AUTO_MIGRATE", "false")

	cfg := Load()
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, 5, cfg.ActiveProductLimit)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.False(t, cfg.AutoMigrate)
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9000")
	cfg := Load()
	fs := pflag.NewFlagSet("api", pflag.ContinueOnError)
	cfg.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--store=memory", "--active-product-limit=3"}))

	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, 3, cfg.ActiveProductLimit)
}

func TestValidate(t *testing.T) {
	cfg := Load()
	cfg.Store = "sqlite"
	assert.Error(t, cfg.Validate())

	cfg = Load()
	cfg.ActiveProductLimit = 0
	assert.Error(t, cfg.Validate())
}
