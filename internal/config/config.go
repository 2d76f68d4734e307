// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config holds all configuration for the assistant.
type Config struct {
	// LogLevel is debug, info, warn, or error.
	LogLevel string `env:"DUGOUT_LOG_LEVEL" envDefault:"info"`

	// MaxReplans caps verify/replan attempts per query.
	MaxReplans int `env:"DUGOUT_MAX_REPLANS" envDefault:"3"`

	// Store selects the checkpoint backend: memory or redis.
	Store string `env:"DUGOUT_STORE" envDefault:"memory"`

	HTTPPort int `env:"DUGOUT_HTTP_PORT" envDefault:"8080"`

	Redis RedisConfig
	GenAI GenAIConfig
	MLB   MLBConfig
}

// RedisConfig holds Redis connection settings for the redis store.
type RedisConfig struct {
	Addr       string        `env:"DUGOUT_REDIS_ADDR" envDefault:"localhost:6379"`
	Password   string        `env:"DUGOUT_REDIS_PASSWORD"`
	DB         int           `env:"DUGOUT_REDIS_DB" envDefault:"0"`
	SessionTTL time.Duration `env:"DUGOUT_SESSION_TTL" envDefault:"720h"`
}

// GenAIConfig holds Gemini API settings.
type GenAIConfig struct {
	APIKey string `env:"DUGOUT_GENAI_API_KEY"`
	Model  string `env:"DUGOUT_GENAI_MODEL" envDefault:"gemini-2.5-flash"`
}

// MLBConfig holds Stats API settings.
type MLBConfig struct {
	BaseURL string `env:"DUGOUT_MLB_BASE_URL" envDefault:"https://statsapi.mlb.com"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that tags cannot express.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("unknown store %q (want %s or %s)", c.Store, StoreMemory, StoreRedis)
	}
	if c.MaxReplans < 0 {
		return fmt.Errorf("max replans must not be negative, got %d", c.MaxReplans)
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port %d", c.HTTPPort)
	}
	return nil
}
