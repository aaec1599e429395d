package config

import (
	"fmt"
	"time"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Log formats.
const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

// Feed backends.
const (
	FeedMemory = "memory"
	FeedRedis  = "redis"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	// LogFormat is "console" for human-readable output or "json" for log shippers.
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	TLSCertFile string `mapstructure:"tls_cert_file" yaml:"tls_cert_file"`
	TLSKeyFile  string `mapstructure:"tls_key_file" yaml:"tls_key_file"`

	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`

	// HistoryLimit caps the number of messages returned by a history fetch.
	HistoryLimit int `mapstructure:"history_limit" yaml:"history_limit"`

	MaxMessageBytes   int64   `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	MessagesPerSecond float64 `mapstructure:"messages_per_second" yaml:"messages_per_second"`
	MessageBurst      int     `mapstructure:"message_burst" yaml:"message_burst"`

	Store StoreConfig `mapstructure:"store" yaml:"store"`
	Feed  FeedConfig  `mapstructure:"feed" yaml:"feed"`
}

// StoreConfig selects the persistent store.
type StoreConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

// FeedConfig selects the unread feed backend.
type FeedConfig struct {
	Backend       string `mapstructure:"backend" yaml:"backend"`
	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db"`
	ChannelPrefix string `mapstructure:"channel_prefix" yaml:"channel_prefix"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         LogFormatConsole,
		AllowedOrigins:    []string{"*"},
		HistoryLimit:      300,
		MaxMessageBytes:   1 << 16,
		MessagesPerSecond: 10,
		MessageBurst:      20,
		Store: StoreConfig{
			Driver: DriverSQLite,
			DSN:    "relaychat.db",
		},
		Feed: FeedConfig{
			Backend:       FeedMemory,
			RedisAddr:     "localhost:6379",
			ChannelPrefix: "relaychat",
		},
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
	if other.TLSCertFile != "" {
		c.TLSCertFile = other.TLSCertFile
	}
	if other.TLSKeyFile != "" {
		c.TLSKeyFile = other.TLSKeyFile
	}
	if len(other.AllowedOrigins) > 0 {
		c.AllowedOrigins = other.AllowedOrigins
	}
	if other.HistoryLimit != 0 {
		c.HistoryLimit = other.HistoryLimit
	}
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	if other.MessagesPerSecond != 0 {
		c.MessagesPerSecond = other.MessagesPerSecond
	}
	if other.MessageBurst != 0 {
		c.MessageBurst = other.MessageBurst
	}
	if other.Store.Driver != "" {
		c.Store.Driver = other.Store.Driver
	}
	if other.Store.DSN != "" {
		c.Store.DSN = other.Store.DSN
	}
	if other.Feed.Backend != "" {
		c.Feed.Backend = other.Feed.Backend
	}
	if other.Feed.RedisAddr != "" {
		c.Feed.RedisAddr = other.Feed.RedisAddr
	}
}

// TLSEnabled reports whether both certificate and key are configured.
func (c *Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// Validate checks values that would otherwise fail late at startup.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported store driver %q", c.Store.Driver)
	}
	if c.Store.DSN == "" {
		return fmt.Errorf("store dsn is required")
	}
	switch c.LogFormat {
	case LogFormatConsole, LogFormatJSON:
	default:
		return fmt.Errorf("unsupported log format %q", c.LogFormat)
	}
	switch c.Feed.Backend {
	case FeedMemory, FeedRedis:
	default:
		return fmt.Errorf("unsupported feed backend %q", c.Feed.Backend)
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("history_limit must be positive, got %d", c.HistoryLimit)
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("tls_cert_file and tls_key_file must be set together")
	}
	return nil
}
