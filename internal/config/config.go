package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`
	RedisAddr  string `mapstructure:"REDIS_ADDR"`

	SourceWorkers  int `mapstructure:"SOURCE_WORKERS"`
	RequestTimeout int `mapstructure:"REQUEST_TIMEOUT"` // seconds

	MaxAttempts     int `mapstructure:"MAX_ATTEMPTS"`
	BackoffBaseMS   int `mapstructure:"BACKOFF_BASE_MS"`
	BackoffMaxMS    int `mapstructure:"BACKOFF_MAX_MS"`
	CircuitFailures int `mapstructure:"CIRCUIT_FAILURES"`
	CircuitCooldown int `mapstructure:"CIRCUIT_COOLDOWN"` // seconds

	ThrottleRPS   float64 `mapstructure:"THROTTLE_RPS"`
	ThrottleBurst int     `mapstructure:"THROTTLE_BURST"`

	ProfileTTLHours int `mapstructure:"PROFILE_TTL_HOURS"`

	DefaultPageSize   int `mapstructure:"DEFAULT_PAGE_SIZE"`
	DefaultMaxRecords int `mapstructure:"DEFAULT_MAX_RECORDS"`

	MobileDeBaseURL  string `mapstructure:"MOBILE_DE_BASE_URL"`
	CochesNetBaseURL string `mapstructure:"COCHES_NET_BASE_URL"`

	Headless bool `mapstructure:"HEADLESS"`
}

// Load reads configuration from file or environment variables.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	// Attempt to read the .env file, but don't fail if it's not present.
	// This allows configuration purely through environment variables.
	_ = viper.ReadInConfig()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_ADDR", "")
	viper.SetDefault("SOURCE_WORKERS", 4)
	viper.SetDefault("REQUEST_TIMEOUT", 30)
	viper.SetDefault("MAX_ATTEMPTS", 4)
	viper.SetDefault("BACKOFF_BASE_MS", 500)
	viper.SetDefault("BACKOFF_MAX_MS", 10000)
	viper.SetDefault("CIRCUIT_FAILURES", 5)
	viper.SetDefault("CIRCUIT_COOLDOWN", 60)
	viper.SetDefault("THROTTLE_RPS", 1.0)
	viper.SetDefault("THROTTLE_BURST", 2)
	viper.SetDefault("PROFILE_TTL_HOURS", 12)
	viper.SetDefault("DEFAULT_PAGE_SIZE", 24)
	viper.SetDefault("DEFAULT_MAX_RECORDS", 500)
	viper.SetDefault("MOBILE_DE_BASE_URL", "https://suchen.mobile.de")
	viper.SetDefault("COCHES_NET_BASE_URL", "https://www.coches.net")
	viper.SetDefault("HEADLESS", true)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

func (c *Config) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseMS) * time.Millisecond
}

func (c *Config) BackoffMax() time.Duration {
	return time.Duration(c.BackoffMaxMS) * time.Millisecond
}

func (c *Config) CircuitCooldownDuration() time.Duration {
	return time.Duration(c.CircuitCooldown) * time.Second
}

func (c *Config) ProfileTTL() time.Duration {
	return time.Duration(c.ProfileTTLHours) * time.Hour
}
