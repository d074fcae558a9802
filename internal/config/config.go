// Package config loads and validates the rewards configuration from the
// environment and an optional .env file using Viper.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvProduction is the REWARDS_ENV value that requires explicit secrets.
const EnvProduction = "production"

// Config holds application configuration loaded from the environment.
type Config struct {
	// Env is the deployment environment ("development", "production").
	Env string `mapstructure:"REWARDS_ENV"`

	// Addr is the listen address of the web portal.
	Addr string `mapstructure:"REWARDS_ADDR"`
	// APIAddr is the listen address of the loyalty auth API.
	APIAddr string `mapstructure:"REWARDS_API_ADDR"`
	// BackendURL is the base URL the portal sends login and profile calls to.
	BackendURL     string        `mapstructure:"REWARDS_BACKEND_URL"`
	BackendTimeout time.Duration `mapstructure:"REWARDS_BACKEND_TIMEOUT"`

	// DBPath is the portal database (browser state, audit log).
	DBPath string `mapstructure:"REWARDS_DB_PATH"`
	// APIDBPath is the loyalty API database (principals).
	APIDBPath string `mapstructure:"REWARDS_API_DB_PATH"`

	// Hex-encoded 32-byte secrets. Generated per process outside production.
	CSRFKeyHex   string `mapstructure:"REWARDS_CSRF_KEY"`
	CookieKeyHex string `mapstructure:"REWARDS_COOKIE_KEY"`
	JWTSecretHex string `mapstructure:"REWARDS_JWT_SECRET"`

	AccessTokenTTL time.Duration `mapstructure:"REWARDS_ACCESS_TOKEN_TTL"`
	BcryptCost     int           `mapstructure:"REWARDS_BCRYPT_COST"`

	// ResendKey enables lockout notices through Resend; empty logs them instead.
	ResendKey  string `mapstructure:"REWARDS_RESEND_KEY"`
	ResendFrom string `mapstructure:"REWARDS_RESEND_FROM"`

	RateLimitPerSecond float64       `mapstructure:"REWARDS_RATE_LIMIT_PER_SECOND"`
	SlowRequest        time.Duration `mapstructure:"REWARDS_SLOW_REQUEST"`
	TrustedOrigins     []string      `mapstructure:"REWARDS_TRUSTED_ORIGINS"`
	// TrustedProxies are the IPs or CIDRs allowed to set X-Forwarded-For.
	// Empty means the peer address is always the client.
	TrustedProxies []string `mapstructure:"REWARDS_TRUSTED_PROXIES"`

	// MetricsAddr is the internal listener for the portal's /metrics; empty disables it.
	MetricsAddr string `mapstructure:"REWARDS_METRICS_ADDR"`

	LogLevel  string `mapstructure:"REWARDS_LOG_LEVEL"`
	LogFormat string `mapstructure:"REWARDS_LOG_FORMAT"`

	// Decoded secrets, filled by Load.
	CSRFKey   []byte `mapstructure:"-"`
	CookieKey []byte `mapstructure:"-"`
	JWTSecret []byte `mapstructure:"-"`
}

var defaults = map[string]any{
	"REWARDS_ENV":                   "development",
	"REWARDS_ADDR":                  ":8080",
	"REWARDS_API_ADDR":              ":8000",
	"REWARDS_BACKEND_URL":           "http://localhost:8000",
	"REWARDS_BACKEND_TIMEOUT":       "10s",
	"REWARDS_DB_PATH":               "rewards.db",
	"REWARDS_API_DB_PATH":           "rewards-api.db",
	"REWARDS_CSRF_KEY":              "",
	"REWARDS_COOKIE_KEY":            "",
	"REWARDS_JWT_SECRET":            "",
	"REWARDS_ACCESS_TOKEN_TTL":      "30m",
	"REWARDS_BCRYPT_COST":           12,
	"REWARDS_RESEND_KEY":            "",
	"REWARDS_RESEND_FROM":           "Car Wash Rewards <no-reply@rewards.local>",
	"REWARDS_RATE_LIMIT_PER_SECOND": 10,
	"REWARDS_SLOW_REQUEST":          "200ms",
	"REWARDS_TRUSTED_ORIGINS":       "localhost:8080,127.0.0.1:8080",
	"REWARDS_TRUSTED_PROXIES":       "",
	"REWARDS_METRICS_ADDR":          "127.0.0.1:9100",
	"REWARDS_LOG_LEVEL":             "info",
	"REWARDS_LOG_FORMAT":            "text",
}

// Load reads envFile, then builds and validates Config from the environment
// via Viper. Env vars override the file. An empty envFile means ".env", which
// may be absent; a named file must exist and parse.
// PRE: none
// POST: Returns a validated Config with decoded secrets, or an error
func Load(envFile string) (*Config, error) {
	optional := envFile == ""
	if optional {
		envFile = ".env"
	}
	v := viper.New()
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil && !(optional && errors.Is(err, fs.ErrNotExist)) {
		return nil, fmt.Errorf("config: read %s: %w", envFile, err)
	}

	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var err error
	if cfg.CSRFKey, err = cfg.secret("REWARDS_CSRF_KEY", cfg.CSRFKeyHex); err != nil {
		return nil, err
	}
	if cfg.CookieKey, err = cfg.secret("REWARDS_COOKIE_KEY", cfg.CookieKeyHex); err != nil {
		return nil, err
	}
	if cfg.JWTSecret, err = cfg.secret("REWARDS_JWT_SECRET", cfg.JWTSecretHex); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Production reports whether the process runs in production.
func (c *Config) Production() bool {
	return c.Env == EnvProduction
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return errors.New("config: REWARDS_ADDR must be set")
	}
	if c.BackendURL == "" {
		return errors.New("config: REWARDS_BACKEND_URL must be set")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: REWARDS_BCRYPT_COST must be between 4 and 31")
	}
	if c.AccessTokenTTL <= 0 {
		return errors.New("config: REWARDS_ACCESS_TOKEN_TTL must be positive")
	}
	if c.BackendTimeout <= 0 {
		return errors.New("config: REWARDS_BACKEND_TIMEOUT must be positive")
	}
	if c.RateLimitPerSecond <= 0 {
		return errors.New("config: REWARDS_RATE_LIMIT_PER_SECOND must be positive")
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("config: REWARDS_LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// secret decodes a hex-encoded 32-byte key. Outside production an empty key
// is replaced by a random one, so signed cookies do not survive a restart.
func (c *Config) secret(name, keyHex string) ([]byte, error) {
	if keyHex == "" {
		if c.Production() {
			return nil, fmt.Errorf("config: %s is required in production", name)
		}
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("config: generate %s: %w", name, err)
		}
		slog.Warn("config_event", "event", "random_secret", "key", name)
		return key, nil
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil || len(key) != 32 {
		return nil, fmt.Errorf("config: %s must be 64 hex characters (32 bytes)", name)
	}
	return key, nil
}
