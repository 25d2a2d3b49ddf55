package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Config holds client and relay configuration values.
type Config struct {
	Endpoint      string        `mapstructure:"endpoint" yaml:"endpoint" validate:"required,url"`
	Author        string        `mapstructure:"author" yaml:"author" validate:"max=64"`
	LogLevel      string        `mapstructure:"log_level" yaml:"log_level" validate:"oneof=debug info warn warning error"`
	DialTimeout   time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout" validate:"gt=0"`
	InvokeTimeout time.Duration `mapstructure:"invoke_timeout" yaml:"invoke_timeout" validate:"gt=0"`
	History       int           `mapstructure:"history" yaml:"history" validate:"gte=1"`
	Retry         RetryConfig   `mapstructure:"retry" yaml:"retry"`
	Relay         RelayConfig   `mapstructure:"relay" yaml:"relay"`
}

// RetryConfig bounds reconnection attempts when the relay cannot be reached.
type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts" yaml:"max_attempts" validate:"gte=1"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" yaml:"initial_backoff" validate:"gt=0"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff" yaml:"max_backoff" validate:"gtefield=InitialBackoff"`
}

// RelayConfig configures the development relay.
type RelayConfig struct {
	Addr              string        `mapstructure:"addr" yaml:"addr" validate:"required"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gt=0"`
	// RateLimit caps invocations per connection per minute; 0 disables the limit.
	RateLimit int `mapstructure:"rate_limit" yaml:"rate_limit" validate:"gte=0"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Endpoint:      "ws://localhost:8080/chatHub",
		LogLevel:      "info",
		DialTimeout:   10 * time.Second,
		InvokeTimeout: 5 * time.Second,
		History:       20,
		Retry: RetryConfig{
			MaxAttempts:    5,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     10 * time.Second,
		},
		Relay: RelayConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   5 * time.Second,
			RateLimit:         120,
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Endpoint != "" {
		c.Endpoint = other.Endpoint
	}
	if other.Author != "" {
		c.Author = other.Author
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DialTimeout != 0 {
		c.DialTimeout = other.DialTimeout
	}
	if other.InvokeTimeout != 0 {
		c.InvokeTimeout = other.InvokeTimeout
	}
	if other.History != 0 {
		c.History = other.History
	}
	if other.Retry.MaxAttempts != 0 {
		c.Retry.MaxAttempts = other.Retry.MaxAttempts
	}
	if other.Retry.InitialBackoff != 0 {
		c.Retry.InitialBackoff = other.Retry.InitialBackoff
	}
	if other.Retry.MaxBackoff != 0 {
		c.Retry.MaxBackoff = other.Retry.MaxBackoff
	}
	if other.Relay.Addr != "" {
		c.Relay.Addr = other.Relay.Addr
	}
	if other.Relay.ReadHeaderTimeout != 0 {
		c.Relay.ReadHeaderTimeout = other.Relay.ReadHeaderTimeout
	}
	if other.Relay.ShutdownTimeout != 0 {
		c.Relay.ShutdownTimeout = other.Relay.ShutdownTimeout
	}
	if other.Relay.RateLimit != 0 {
		c.Relay.RateLimit = other.Relay.RateLimit
	}
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
