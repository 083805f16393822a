package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

type Config struct {
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	CodeTTLSeconds  int `env:"CODE_TTL_SECONDS" envDefault:"60"`
	TickIntervalMs  int `env:"TICK_INTERVAL_MS" envDefault:"1000"`
	GenerateDelayMs int `env:"GENERATE_DELAY_MS" envDefault:"1000"`
	RedeemDelayMs   int `env:"REDEEM_DELAY_MS" envDefault:"1500"`

	StoreDriver    string `env:"STORE_DRIVER" envDefault:"sqlite"`
	StorePath      string `env:"STORE_PATH" envDefault:"tether.db"`
	StoreNamespace string `env:"STORE_NAMESPACE" envDefault:"tether"`
	DatabaseURL    string `env:"DATABASE_URL"`
	RedisURL       string `env:"REDIS_URL"`
	EncryptionKey  string `env:"ENCRYPTION_KEY"`

	UserID   string `env:"TETHER_USER_ID" envDefault:"user_123"`
	UserName string `env:"TETHER_USER_NAME" envDefault:"Alex Chen"`

	RedeemRateLimitPerMin int `env:"REDEEM_RATE_LIMIT_PER_MIN" envDefault:"10"`
}

func (c *Config) CodeTTL() time.Duration {
	return time.Duration(c.CodeTTLSeconds) * time.Second
}

func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

func (c *Config) GenerateDelay() time.Duration {
	return time.Duration(c.GenerateDelayMs) * time.Millisecond
}

func (c *Config) RedeemDelay() time.Duration {
	return time.Duration(c.RedeemDelayMs) * time.Millisecond
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate() error {
	if c.CodeTTLSeconds <= 0 {
		return fmt.Errorf("CODE_TTL_SECONDS must be positive, got %d", c.CodeTTLSeconds)
	}
	if c.TickIntervalMs <= 0 {
		return fmt.Errorf("TICK_INTERVAL_MS must be positive, got %d", c.TickIntervalMs)
	}
	if c.GenerateDelayMs < 0 || c.RedeemDelayMs < 0 {
		return fmt.Errorf("GENERATE_DELAY_MS and REDEEM_DELAY_MS must not be negative")
	}
	if c.UserID == "" {
		return fmt.Errorf("TETHER_USER_ID must not be empty")
	}
	if c.StoreNamespace == "" {
		return fmt.Errorf("STORE_NAMESPACE must not be empty")
	}

	switch c.StoreDriver {
	case StoreMemory:
		log.Warn().Msg("STORE_DRIVER=memory: pairing state will not survive a restart")
	case StoreSQLite:
		if c.StorePath == "" {
			return fmt.Errorf("STORE_PATH is required for the sqlite store")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (want memory, sqlite, postgres or redis)", c.StoreDriver)
	}

	if c.EncryptionKey != "" && len(c.EncryptionKey) != 64 {
		return fmt.Errorf("ENCRYPTION_KEY must be 64 hex characters (generate with: go run scripts/gen-key.go)")
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
