// Package config loads runtime configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/shopspring/decimal"
)

// Config holds all runtime configuration for the simulator.
type Config struct {
	Port string `env:"PORT" envDefault:"8080"`

	// Storage. Empty DatabaseURL selects the in-memory store; RedisURL
	// additionally wraps Postgres with a read-through cache.
	DatabaseURL string        `env:"DATABASE_URL"`
	RedisURL    string        `env:"REDIS_URL"`
	CacheTTL    time.Duration `env:"CACHE_TTL" envDefault:"30s"`

	// Quote provider. Empty QuoteAPIURL selects the static dev source.
	QuoteAPIURL   string        `env:"QUOTE_API_URL"`
	QuoteTimeout  time.Duration `env:"QUOTE_TIMEOUT" envDefault:"3s"`
	QuoteCacheTTL time.Duration `env:"QUOTE_CACHE_TTL" envDefault:"5s"`

	// Order execution.
	OrderMaxAttempts int           `env:"ORDER_MAX_ATTEMPTS" envDefault:"5"`
	StoreTimeout     time.Duration `env:"STORE_TIMEOUT" envDefault:"3s"`
	StartingBalance  string        `env:"STARTING_BALANCE" envDefault:"500"`

	// Price streaming.
	StreamInterval time.Duration `env:"STREAM_INTERVAL" envDefault:"5s"`

	// Auth token signing secret.
	AuthSecret string `env:"AUTH_SECRET" envDefault:"dev-secret-change-in-production"`

	// HTTP server.
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

// Load reads configuration from environment variables, applies defaults,
// and validates values.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}

	if cfg.OrderMaxAttempts < 1 {
		return nil, fmt.Errorf("ORDER_MAX_ATTEMPTS must be at least 1, got %d", cfg.OrderMaxAttempts)
	}
	if cfg.StreamInterval <= 0 {
		return nil, fmt.Errorf("STREAM_INTERVAL must be positive, got %s", cfg.StreamInterval)
	}
	balance, err := decimal.NewFromString(cfg.StartingBalance)
	if err != nil {
		return nil, fmt.Errorf("invalid STARTING_BALANCE %q: %w", cfg.StartingBalance, err)
	}
	if balance.IsNegative() {
		return nil, fmt.Errorf("STARTING_BALANCE must be non-negative, got %s", balance)
	}

	return &cfg, nil
}

// StartingBalanceDecimal returns the validated starting balance.
func (c *Config) StartingBalanceDecimal() decimal.Decimal {
	d, _ := decimal.NewFromString(c.StartingBalance)
	return d
}
