// Package config loads server configuration from the environment and an
// optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// minSecretLen is the shortest accepted HS256 signing secret.
const minSecretLen = 16

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the listen address for REST and WebSocket traffic.
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// SQLiteDSN is the go-sqlite3 DSN of the transactional store.
	SQLiteDSN string `mapstructure:"SQLITE_DSN"`
	// MongoURI points at the recipe catalog.
	MongoURI string `mapstructure:"MONGO_URI"`
	// MongoDatabase is the catalog database name.
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`
	// RedisURI selects the Redis queue backend; empty keeps queues in process.
	RedisURI string `mapstructure:"REDIS_URI"`
	// JWTSecret signs and verifies access tokens.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTAccessTTL is the lifetime of issued access tokens (e.g. "24h").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// AccessCookieName is the cookie checked for a token before the query string.
	AccessCookieName string `mapstructure:"ACCESS_COOKIE_NAME"`
	// CORSAllowedOrigins is sent as Access-Control-Allow-Origin.
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	// Env is the application environment ("development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the
// environment. Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // missing .env is fine

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("SQLITE_DSN", "file:mealswipe.db?_foreign_keys=on&_busy_timeout=5000")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "mealswipe")
	v.SetDefault("REDIS_URI", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ACCESS_TTL", "24h")
	v.SetDefault("ACCESS_COOKIE_NAME", "access_token")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("APP_ENV", "development")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.SQLiteDSN == "" {
		return nil, errors.New("config: SQLITE_DSN must be set")
	}
	if len(cfg.JWTSecret) < minSecretLen {
		return nil, errors.New("config: JWT_SECRET must be at least 16 characters")
	}
	if cfg.AccessCookieName == "" {
		cfg.AccessCookieName = "access_token"
	}

	return &cfg, nil
}

// AccessTTL parses JWTAccessTTL. Returns 24h if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTAccessTTL)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// RedisAddr strips an optional redis:// scheme from RedisURI.
func (c *Config) RedisAddr() string {
	return strings.TrimPrefix(c.RedisURI, "redis://")
}

// UseRedisQueue reports whether queues should live in Redis.
func (c *Config) UseRedisQueue() bool {
	return c.RedisURI != ""
}
