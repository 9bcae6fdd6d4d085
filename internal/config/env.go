package config

import (
	"fmt"
	"strconv"
)

// applyEnv переносит значения из переменных окружения.
// Пустые переменные не меняют текущее значение.
func applyEnv(cfg *Config, getenv func(string) string) error {
	setString := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	setString(&cfg.Addr, "PORT")
	if cfg.Addr != "" && isDigits(cfg.Addr) {
		cfg.Addr = ":" + cfg.Addr
	}

	setString(&cfg.DBDriver, "DB_DRIVER")
	setString(&cfg.SQLitePath, "SQLITE_PATH")

	if v := getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	} else if host := getenv("DB_HOST"); host != "" {
		port := getenv("DB_PORT")
		if port == "" {
			port = "5432"
		}
		cfg.DatabaseURL = buildPostgresDSN(host, port, getenv("DB_USER"), getenv("DB_PASSWORD"), getenv("DB_NAME"))
	}

	if v := getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	} else if host := getenv("REDIS_HOST"); host != "" {
		port := getenv("REDIS_PORT")
		if port == "" {
			port = "6379"
		}
		cfg.RedisAddr = host + ":" + port
	}
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")

	setString(&cfg.JWTSecret, "JWT_SECRET")
	setString(&cfg.JWTPrivateKey, "JWT_PRIVATE_KEY")
	setString(&cfg.JWTPublicKey, "JWT_PUBLIC_KEY")
	setString(&cfg.JWTPrivateKeyPath, "JWT_PRIVATE_KEY_PATH")
	setString(&cfg.JWTPublicKeyPath, "JWT_PUBLIC_KEY_PATH")
	setString(&cfg.RefreshHashKey, "REFRESH_TOKEN_HASH_KEY")

	if v := getenv("JWT_EXPIRES_IN"); v != "" {
		d, err := ParseDuration(v)
		if err != nil {
			return fmt.Errorf("JWT_EXPIRES_IN: %w", err)
		}
		cfg.AccessTTL = d
	}

	if err := setInt(&cfg.RefreshDays, getenv("REFRESH_TOKEN_DAYS"), "REFRESH_TOKEN_DAYS"); err != nil {
		return err
	}
	if err := setInt(&cfg.LoginRateLimit, getenv("LOGIN_RATE_LIMIT"), "LOGIN_RATE_LIMIT"); err != nil {
		return err
	}

	if err := setBool(&cfg.CookieSecure, getenv("COOKIE_SECURE"), "COOKIE_SECURE"); err != nil {
		return err
	}
	if err := setBool(&cfg.AllowUserReset, getenv("ALLOW_USER_RESET"), "ALLOW_USER_RESET"); err != nil {
		return err
	}

	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFormat, "LOG_FORMAT")
	setString(&cfg.RabbitMQURL, "RABBITMQ_URL")
	setString(&cfg.ServiceName, "SERVICE_NAME")

	return nil
}

func setInt(dst *int, value, key string) error {
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q", key, value)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, value, key string) error {
	if value == "" {
		return nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%s: invalid bool %q", key, value)
	}
	*dst = b
	return nil
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}
