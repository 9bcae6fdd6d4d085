package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlConfig - промежуточная структура для YAML файла.
// Длительность хранится строкой, чтобы принимать и "1h", и секунды.
type yamlConfig struct {
	CookieSecure   *bool  `yaml:"cookie_secure"`
	AllowUserReset *bool  `yaml:"allow_user_reset"`
	Addr           string `yaml:"addr"`
	DBDriver       string `yaml:"db_driver"`
	DatabaseURL    string `yaml:"database_url"`
	SQLitePath     string `yaml:"sqlite_path"`
	RedisAddr      string `yaml:"redis_addr"`
	JWTPrivateKey  string `yaml:"jwt_private_key_path"`
	JWTPublicKey   string `yaml:"jwt_public_key_path"`
	AccessTTL      string `yaml:"access_ttl"`
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
	ServiceName    string `yaml:"service_name"`
	RefreshDays    int    `yaml:"refresh_days"`
	LoginRateLimit int    `yaml:"login_rate_limit"`
}

// loadYAML накладывает значения из YAML файла на cfg.
// Секреты в файле не читаются, только пути к ключам.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	overlay := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}

	overlay(&cfg.Addr, yc.Addr)
	overlay(&cfg.DBDriver, yc.DBDriver)
	overlay(&cfg.DatabaseURL, yc.DatabaseURL)
	overlay(&cfg.SQLitePath, yc.SQLitePath)
	overlay(&cfg.RedisAddr, yc.RedisAddr)
	overlay(&cfg.JWTPrivateKeyPath, yc.JWTPrivateKey)
	overlay(&cfg.JWTPublicKeyPath, yc.JWTPublicKey)
	overlay(&cfg.LogLevel, yc.LogLevel)
	overlay(&cfg.LogFormat, yc.LogFormat)
	overlay(&cfg.ServiceName, yc.ServiceName)

	if yc.AccessTTL != "" {
		d, err := ParseDuration(yc.AccessTTL)
		if err != nil {
			return fmt.Errorf("access_ttl: %w", err)
		}
		cfg.AccessTTL = d
	}
	if yc.RefreshDays != 0 {
		cfg.RefreshDays = yc.RefreshDays
	}
	if yc.LoginRateLimit != 0 {
		cfg.LoginRateLimit = yc.LoginRateLimit
	}
	if yc.CookieSecure != nil {
		cfg.CookieSecure = *yc.CookieSecure
	}
	if yc.AllowUserReset != nil {
		cfg.AllowUserReset = *yc.AllowUserReset
	}

	return nil
}
