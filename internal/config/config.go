package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`

	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Redis    RedisConfig    `mapstructure:"redis" yaml:"redis"`
	Session  SessionConfig  `mapstructure:"session" yaml:"session"`

	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// DatabaseConfig selects and configures the durable store backend.
type DatabaseConfig struct {
	// Driver is one of "sqlite", "postgres" or "mysql".
	Driver string `mapstructure:"driver" yaml:"driver"`
	// DSN is a file path for sqlite and a connection string otherwise.
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// RedisConfig enables the optional presence mirror. Empty URL disables it.
type RedisConfig struct {
	URL       string `mapstructure:"url" yaml:"url"`
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix"`
}

// SessionConfig tunes per-connection behaviour.
type SessionConfig struct {
	SendBuffer      int           `mapstructure:"send_buffer" yaml:"send_buffer"`
	DeliveryTimeout time.Duration `mapstructure:"delivery_timeout" yaml:"delivery_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	PingInterval    time.Duration `mapstructure:"ping_interval" yaml:"ping_interval"`
	MaxMessageBytes int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	// RateLimit caps inbound messages per connection per minute. Zero disables it.
	RateLimit int `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8000",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "chat.db",
		},
		Redis: RedisConfig{
			KeyPrefix: "wirechat:",
		},
		Session: SessionConfig{
			SendBuffer:      16,
			DeliveryTimeout: 2 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     5 * time.Minute,
			PingInterval:    30 * time.Second,
			MaxMessageBytes: 64 << 10,
			RateLimit:       120,
		},
		AllowedOrigins: []string{"*"},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.Database.Driver != "" {
		c.Database.Driver = other.Database.Driver
	}
	if other.Database.DSN != "" {
		c.Database.DSN = other.Database.DSN
	}
	if other.Redis.URL != "" {
		c.Redis.URL = other.Redis.URL
	}
	if other.Redis.KeyPrefix != "" {
		c.Redis.KeyPrefix = other.Redis.KeyPrefix
	}
	if other.Session.SendBuffer != 0 {
		c.Session.SendBuffer = other.Session.SendBuffer
	}
	if other.Session.DeliveryTimeout != 0 {
		c.Session.DeliveryTimeout = other.Session.DeliveryTimeout
	}
	if other.Session.WriteTimeout != 0 {
		c.Session.WriteTimeout = other.Session.WriteTimeout
	}
	if other.Session.IdleTimeout != 0 {
		c.Session.IdleTimeout = other.Session.IdleTimeout
	}
	if other.Session.PingInterval != 0 {
		c.Session.PingInterval = other.Session.PingInterval
	}
	if other.Session.MaxMessageBytes != 0 {
		c.Session.MaxMessageBytes = other.Session.MaxMessageBytes
	}
	if other.Session.RateLimit != 0 {
		c.Session.RateLimit = other.Session.RateLimit
	}
	if len(other.AllowedOrigins) > 0 {
		c.AllowedOrigins = other.AllowedOrigins
	}
}
