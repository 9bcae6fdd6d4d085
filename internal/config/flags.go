package config

import (
	"flag"
	"io"
	"strconv"
)

// flagValues хранит только явно переданные флаги
type flagValues struct {
	set        map[string]string
	configFile string
}

// parseFlags разбирает флаги командной строки.
//
//	-a string            listen address
//	-c string            YAML config file
//	-d string            Postgres DSN
//	-driver string       postgres | sqlite
//	-sqlite string       SQLite file
//	-redis string        Redis address
//	-access-ttl string   access token TTL (duration or seconds)
//	-refresh-days int    refresh token lifetime in days
//	-cookie-secure bool  Secure flag on the refresh cookie
func parseFlags(args []string) (*flagValues, error) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.String("a", "", "address and port to run server")
	fs.String("c", "", "path to YAML config file")
	fs.String("d", "", "postgres DSN")
	fs.String("driver", "", "database driver: postgres or sqlite")
	fs.String("sqlite", "", "sqlite database file")
	fs.String("redis", "", "redis address for refresh tokens")
	fs.String("access-ttl", "", "access token TTL")
	fs.Int("refresh-days", 0, "refresh token lifetime in days")
	fs.Bool("cookie-secure", false, "set Secure flag on refresh cookie")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	fv := &flagValues{set: make(map[string]string)}
	fs.Visit(func(f *flag.Flag) {
		fv.set[f.Name] = f.Value.String()
	})
	fv.configFile = fv.set["c"]

	return fv, nil
}

// apply переносит явно заданные флаги поверх остальных источников
func (fv *flagValues) apply(cfg *Config) error {
	for name, value := range fv.set {
		switch name {
		case "a":
			cfg.Addr = value
		case "d":
			cfg.DatabaseURL = value
		case "driver":
			cfg.DBDriver = value
		case "sqlite":
			cfg.SQLitePath = value
		case "redis":
			cfg.RedisAddr = value
		case "access-ttl":
			d, err := ParseDuration(value)
			if err != nil {
				return err
			}
			cfg.AccessTTL = d
		case "refresh-days":
			n, err := strconv.Atoi(value)
			if err != nil {
				return err
			}
			cfg.RefreshDays = n
		case "cookie-secure":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return err
			}
			cfg.CookieSecure = b
		}
	}
	return nil
}

