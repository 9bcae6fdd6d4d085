// Package config builds the immutable configuration of the user service.
//
// Sources are applied in order: defaults, YAML file, environment, flags.
// Secrets may reach the environment earlier through LoadEnv (.env file or
// AWS Secrets Manager).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultJWTSecret is the development secret. Never use it in production.
const DefaultJWTSecret = "dev_secret"

// Драйверы базы данных
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds runtime settings of the user service.
type Config struct {
	Addr        string
	DBDriver    string
	DatabaseURL string
	SQLitePath  string

	RedisAddr     string
	RedisPassword string

	JWTSecret         string
	JWTPrivateKey     string
	JWTPublicKey      string
	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	RefreshHashKey    string

	AccessTTL   time.Duration
	RefreshDays int

	CookieSecure   bool
	AllowUserReset bool
	LoginRateLimit int

	LogLevel    string
	LogFormat   string
	RabbitMQURL string
	ServiceName string
}

// Defaults returns development defaults.
func Defaults() *Config {
	return &Config{
		Addr:           ":4001",
		DBDriver:       DriverPostgres,
		DatabaseURL:    "postgres://user_service@localhost:5432/user_db?sslmode=disable",
		SQLitePath:     "learnhub.db",
		JWTSecret:      DefaultJWTSecret,
		AccessTTL:      time.Hour,
		RefreshDays:    7,
		LoginRateLimit: 20,
		LogLevel:       "info",
		LogFormat:      "text",
		ServiceName:    "user-service",
	}
}

// Load builds Config from args (without program name) and the environment
// visible through getenv.
func Load(args []string, getenv func(string) string) (*Config, error) {
	cfg := Defaults()

	fl, err := parseFlags(args)
	if err != nil {
		return nil, err
	}

	configFile := fl.configFile
	if configFile == "" {
		configFile = getenv("CONFIG_FILE")
	}
	if configFile != "" {
		if err := loadYAML(cfg, configFile); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg, getenv); err != nil {
		return nil, err
	}

	if err := fl.apply(cfg); err != nil {
		return nil, err
	}

	if err := cfg.resolveKeys(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	var errs []error

	switch c.DBDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("database url is required for postgres driver"))
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("sqlite path is required for sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown db driver %q", c.DBDriver))
	}

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt secret is required"))
	}
	if c.AccessTTL <= 0 {
		errs = append(errs, errors.New("access token ttl must be positive"))
	}
	if c.RefreshDays <= 0 {
		errs = append(errs, errors.New("refresh token days must be positive"))
	}
	if c.LoginRateLimit <= 0 {
		errs = append(errs, errors.New("login rate limit must be positive"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}

	return errors.Join(errs...)
}

// RefreshTTL returns the refresh token lifetime
func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshDays) * 24 * time.Hour
}

// HashKey returns the key of the refresh token keyed hash.
// Falls back to the JWT secret when not configured separately.
func (c *Config) HashKey() []byte {
	if c.RefreshHashKey != "" {
		return []byte(c.RefreshHashKey)
	}
	return []byte(c.JWTSecret)
}

// UsesDefaultSecret reports whether the development secret is in effect
func (c *Config) UsesDefaultSecret() bool {
	return c.JWTSecret == DefaultJWTSecret
}

// resolveKeys читает PEM из файлов, если inline значение не задано.
// В inline значениях из env литерал \n заменяется на перевод строки.
func (c *Config) resolveKeys() error {
	var err error
	if c.JWTPrivateKey, err = resolvePEM(c.JWTPrivateKey, c.JWTPrivateKeyPath); err != nil {
		return fmt.Errorf("private key: %w", err)
	}
	if c.JWTPublicKey, err = resolvePEM(c.JWTPublicKey, c.JWTPublicKeyPath); err != nil {
		return fmt.Errorf("public key: %w", err)
	}
	return nil
}

func resolvePEM(inline, path string) (string, error) {
	if inline != "" {
		return strings.ReplaceAll(inline, `\n`, "\n"), nil
	}
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// ParseDuration accepts a Go duration ("15m") or a number of seconds ("3600")
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

// ParseLevel maps a level name to slog.Level
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// buildPostgresDSN собирает DSN из DB_HOST/DB_PORT/DB_USER/DB_PASSWORD/DB_NAME
func buildPostgresDSN(host, port, user, password, name string) string {
	u := url.URL{
		Scheme:   "postgres",
		Host:     host + ":" + port,
		Path:     "/" + name,
		RawQuery: "sslmode=disable",
	}
	if password != "" {
		u.User = url.UserPassword(user, password)
	} else {
		u.User = url.User(user)
	}
	return u.String()
}
