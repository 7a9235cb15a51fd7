package config

import (
	"fmt"
	"strings"

	pkgconfig "github.com/amourflorals/wishsync/pkg/config"
)

// Config holds all configuration for the wishlist sync agent.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort    int    `env:"WISHSYNC_HTTP_PORT" envDefault:"8010"`
	AllowOrigin string `env:"CORS_ALLOW_ORIGIN" envDefault:"*"`

	// Storefront API (the legacy Express backend)
	StorefrontURL     string `env:"STOREFRONT_API_URL" envDefault:"http://localhost:5000"`
	StorefrontTimeout int    `env:"STOREFRONT_TIMEOUT_SECONDS" envDefault:"15"`
	// AtomicMove selects the storefront's atomic move-to-cart endpoint.
	// Disable for storefront versions that predate it; the agent falls
	// back to the compensating two-call flow either way when the route
	// is absent (404/405/501).
	AtomicMove bool `env:"STOREFRONT_ATOMIC_MOVE" envDefault:"true"`

	// Redis wishlist cache
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Cached wishlist TTL in hours (default: 30 days)
	CacheTTL int `env:"WISHLIST_CACHE_TTL_HOURS" envDefault:"720"`

	// Kafka. Empty brokers disable event publishing.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Tracing
	TracingEnabled  bool    `env:"TRACING_ENABLED" envDefault:"false"`
	OTLPEndpoint    string  `env:"OTLP_ENDPOINT" envDefault:"localhost:4318"`
	TraceSampleRate float64 `env:"TRACE_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load wishsync config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if !strings.HasPrefix(c.StorefrontURL, "http://") && !strings.HasPrefix(c.StorefrontURL, "https://") {
		return fmt.Errorf("invalid storefront URL: %s", c.StorefrontURL)
	}
	if c.StorefrontTimeout < 1 {
		return fmt.Errorf("invalid storefront timeout: %d", c.StorefrontTimeout)
	}
	if c.TraceSampleRate < 0 || c.TraceSampleRate > 1 {
		return fmt.Errorf("invalid trace sample rate: %f", c.TraceSampleRate)
	}
	return nil
}
