package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the scheduler service. Values are read
// by viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Booking  BookingConfig  `mapstructure:"booking"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type AuthConfig struct {
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// BookingConfig tunes the validation and availability-check behaviour.
type BookingConfig struct {
	// MaxCapacity is the configured upper bound for session capacity.
	MaxCapacity int `mapstructure:"max_capacity"`
	// CheckTimeout is the budget for a single availability check.
	CheckTimeout          time.Duration `mapstructure:"check_timeout"`
	AvailabilityCacheSize int           `mapstructure:"availability_cache_size"`
	AvailabilityCacheTTL  time.Duration `mapstructure:"availability_cache_ttl"`
}

// Load reads configuration from config.yaml in the given path, falling back
// to environment variables (SERVER_ADDRESS, BOOKING_MAX_CAPACITY, ...) and
// compiled defaults.
func Load(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("server.address", ":8080")
	v.SetDefault("database.dsn", "file:scheduler.db?_pragma=foreign_keys(1)")
	v.SetDefault("auth.session_ttl", "24h")
	v.SetDefault("booking.max_capacity", 50)
	v.SetDefault("booking.check_timeout", "300ms")
	v.SetDefault("booking.availability_cache_size", 256)
	v.SetDefault("booking.availability_cache_ttl", "30s")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Server.Address) == "" {
		return fmt.Errorf("config: server.address must not be empty")
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("config: database.dsn must not be empty")
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("config: auth.session_ttl must be positive")
	}
	if c.Booking.MaxCapacity < 1 {
		return fmt.Errorf("config: booking.max_capacity must be at least 1")
	}
	if c.Booking.CheckTimeout <= 0 {
		return fmt.Errorf("config: booking.check_timeout must be positive")
	}
	return nil
}
