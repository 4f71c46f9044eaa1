// Package config loads server and CLI settings from the environment, an optional
// .env file and an optional config.yaml, in decreasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all runtime settings.
type Config struct {
	Addr       string
	StaticPath string

	DBDriver string
	DBDSN    string

	LogLevel  string
	LogFormat string

	ConnectMaxAttempts int
	ConnectBackoff     time.Duration
	ReconnectInterval  time.Duration
	StoreOpTimeout     time.Duration
	ShutdownTimeout    time.Duration

	AdminEmail        string
	AdminPasswordHash string
	JWTSecret         string
	JWTTTL            time.Duration
}

// AuthEnabled reports whether admin credentials are configured.
func (c *Config) AuthEnabled() bool {
	return c.AdminPasswordHash != ""
}

// New returns a viper instance with every default set, bound to the environment.
func New() *viper.Viper {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("ADDR", ":8080")
	v.SetDefault("STATIC_PATH", "./web/static")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_DSN", "./data/school.db")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("CONNECT_MAX_ATTEMPTS", 5)
	v.SetDefault("CONNECT_BACKOFF", 5*time.Second)
	v.SetDefault("RECONNECT_INTERVAL", 30*time.Second)
	v.SetDefault("STORE_OP_TIMEOUT", 5*time.Second)
	v.SetDefault("SHUTDOWN_TIMEOUT", 10*time.Second)
	v.SetDefault("ADMIN_EMAIL", "admin@localhost")
	v.SetDefault("ADMIN_PASSWORD_HASH", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_TTL", 12*time.Hour)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	return v
}

// Load reads .env (if present) and config.yaml (if present) and returns the
// validated configuration.
func Load() (*Config, error) {
	// load .env if it exists (ignore if it does not)
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := New()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper builds a Config from v and validates it.
func FromViper(v *viper.Viper) (*Config, error) {
	c := &Config{
		Addr:               v.GetString("ADDR"),
		StaticPath:         v.GetString("STATIC_PATH"),
		DBDriver:           strings.ToLower(v.GetString("DB_DRIVER")),
		DBDSN:              v.GetString("DB_DSN"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		LogFormat:          strings.ToLower(v.GetString("LOG_FORMAT")),
		ConnectMaxAttempts: v.GetInt("CONNECT_MAX_ATTEMPTS"),
		ConnectBackoff:     v.GetDuration("CONNECT_BACKOFF"),
		ReconnectInterval:  v.GetDuration("RECONNECT_INTERVAL"),
		StoreOpTimeout:     v.GetDuration("STORE_OP_TIMEOUT"),
		ShutdownTimeout:    v.GetDuration("SHUTDOWN_TIMEOUT"),
		AdminEmail:         v.GetString("ADMIN_EMAIL"),
		AdminPasswordHash:  v.GetString("ADMIN_PASSWORD_HASH"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		JWTTTL:             v.GetDuration("JWT_TTL"),
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "sqlite", "pgx":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or pgx, got %q", c.DBDriver)
	}
	if c.DBDSN == "" {
		return errors.New("DB_DSN is required")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	if c.ConnectMaxAttempts < 1 {
		return errors.New("CONNECT_MAX_ATTEMPTS must be at least 1")
	}
	if c.AuthEnabled() && c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required when ADMIN_PASSWORD_HASH is set")
	}
	return nil
}
