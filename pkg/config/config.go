package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the portal gateway
type Config struct {
	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Upstream API configuration
	Upstream UpstreamConfig `mapstructure:"upstream"`

	// Frontend origin the gateway fronts
	Frontend FrontendConfig `mapstructure:"frontend"`

	// Session cookie configuration
	Session SessionConfig `mapstructure:"session"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// Redis configuration (profile existence cache)
	Redis RedisConfig `mapstructure:"redis"`

	// Database configuration (audit trail)
	Database DatabaseConfig `mapstructure:"database"`

	// Sentry crash reporting configuration
	Sentry SentryConfig `mapstructure:"sentry"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"`
}

// UpstreamConfig holds the external backend configuration.
// Timeouts are in seconds; the long header/body windows exist because
// report analysis may keep running well after the upload completes.
type UpstreamConfig struct {
	BaseURL               string `mapstructure:"base_url"`
	ProfileTimeout        int    `mapstructure:"profile_timeout"`
	ConnectTimeout        int    `mapstructure:"connect_timeout"`
	ResponseHeaderTimeout int    `mapstructure:"response_header_timeout"`
	BodyTimeout           int    `mapstructure:"body_timeout"`
}

// FrontendConfig holds the frontend origin configuration
type FrontendConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// SessionConfig holds session cookie configuration
type SessionConfig struct {
	CookieTTL     int  `mapstructure:"cookie_ttl"`
	SecureCookies bool `mapstructure:"secure_cookies"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	RequestsPerMin  int  `mapstructure:"requests_per_min"`
	CleanupInterval int  `mapstructure:"cleanup_interval"`
}

// RedisConfig holds Redis configuration for the profile cache
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	CacheTTL int    `mapstructure:"cache_ttl"`
}

// DatabaseConfig holds database configuration for the audit trail
type DatabaseConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// SentryConfig holds Sentry configuration
type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/portal-gateway")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Override with environment variables
	overrideWithEnv(&config)

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.idle_timeout", 120)

	// Upstream defaults. Header and body windows are 30 minutes because the
	// backend may analyze a report before answering an upload.
	viper.SetDefault("upstream.profile_timeout", 10)
	viper.SetDefault("upstream.connect_timeout", 30)
	viper.SetDefault("upstream.response_header_timeout", 1800)
	viper.SetDefault("upstream.body_timeout", 1800)

	// Session defaults: 1 hour cookie lifetime
	viper.SetDefault("session.cookie_ttl", 3600)
	viper.SetDefault("session.secure_cookies", false)

	// Rate limiting defaults
	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.requests_per_min", 100)
	viper.SetDefault("rate_limit.cleanup_interval", 3600)

	// Redis defaults
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.cache_ttl", 60)

	// Database defaults
	viper.SetDefault("database.enabled", false)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "portal")
	viper.SetDefault("database.user", "portal")
	viper.SetDefault("database.ssl_mode", "require")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 300)

	// Logging defaults
	viper.SetDefault("log_level", "info")
}

// overrideWithEnv overrides configuration with environment variables
func overrideWithEnv(config *Config) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if base := os.Getenv("UPSTREAM_BASE_URL"); base != "" {
		config.Upstream.BaseURL = base
	}

	if base := os.Getenv("FRONTEND_BASE_URL"); base != "" {
		config.Frontend.BaseURL = base
	}

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		config.Sentry.DSN = dsn
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.LogLevel = logLevel
	}
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream base URL is required")
	}

	if config.Frontend.BaseURL == "" {
		return fmt.Errorf("frontend base URL is required")
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Session.CookieTTL <= 0 {
		return fmt.Errorf("invalid session cookie TTL: %d", config.Session.CookieTTL)
	}

	if config.Database.Enabled && config.Database.Password == "" {
		return fmt.Errorf("database password is required when the audit trail is enabled")
	}

	return nil
}
