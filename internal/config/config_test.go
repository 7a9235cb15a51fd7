package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8010, cfg.HTTPPort)
	assert.Equal(t, "http://localhost:5000", cfg.StorefrontURL)
	assert.True(t, cfg.AtomicMove)
	assert.Equal(t, 720, cfg.CacheTTL)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.False(t, cfg.TracingEnabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("WISHSYNC_HTTP_PORT", "9090")
	t.Setenv("STOREFRONT_API_URL", "https://api.amourflorals.example")
	t.Setenv("STOREFRONT_ATOMIC_MOVE", "false")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, "https://api.amourflorals.example", cfg.StorefrontURL)
	assert.False(t, cfg.AtomicMove)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.HTTPPort = 0 }},
		{"bad storefront url", func(c *Config) { c.StorefrontURL = "storefront:5000" }},
		{"bad timeout", func(c *Config) { c.StorefrontTimeout = 0 }},
		{"bad sample rate", func(c *Config) { c.TraceSampleRate = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.validate())
		})
	}
}
