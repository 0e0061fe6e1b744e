// Package config loads server settings from the environment, then lets
// command-line flags override them.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	devJWTSecret = "compday-dev-secret"
)

type Config struct {
	Port              int
	Driver            string
	DBPath            string
	DatabaseURL       string
	JWTSecret         string
	TokenTTL          time.Duration
	Environment       string
	LogLevel          string
	AllowedOrigins    []string
	ReconcileInterval time.Duration
	ProvisionalGrace  time.Duration
	SeedScenario      string
}

// Load reads COMPDAY_* environment variables.
func Load() Config {
	return Config{
		Port:              getEnvInt("COMPDAY_PORT", 8080),
		Driver:            getEnv("COMPDAY_DB_DRIVER", DriverSQLite),
		DBPath:            getEnv("COMPDAY_DB_PATH", "compday.db"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		TokenTTL:          getEnvDuration("COMPDAY_TOKEN_TTL", 12*time.Hour),
		Environment:       getEnv("APP_ENV", "development"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		AllowedOrigins:    getEnvList("COMPDAY_ALLOWED_ORIGINS", []string{"*"}),
		ReconcileInterval: getEnvDuration("COMPDAY_RECONCILE_INTERVAL", time.Minute),
		ProvisionalGrace:  getEnvDuration("COMPDAY_PROVISIONAL_GRACE", 5*time.Minute),
		SeedScenario:      getEnv("COMPDAY_SEED", ""),
	}
}

// ParseFlags applies command-line overrides on top of c.
func (c Config) ParseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	fs.IntVar(&c.Port, "port", c.Port, "HTTP server port")
	fs.StringVar(&c.DBPath, "db", c.DBPath, "SQLite database path (\":memory:\" for in-memory)")
	fs.StringVar(&c.Driver, "driver", c.Driver, "Storage driver: sqlite or postgres")
	fs.StringVar(&c.SeedScenario, "seed", c.SeedScenario, "Seed scenario to load on startup (demo)")
	if err := fs.Parse(args); err != nil {
		return c, err
	}
	return c, nil
}

// IsDevelopment reports whether insecure defaults are acceptable.
func (c Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "test"
}

// Secret returns the signing secret, falling back to a fixed value in
// development.
func (c Config) Secret() string {
	if strings.TrimSpace(c.JWTSecret) == "" && c.IsDevelopment() {
		return devJWTSecret
	}
	return c.JWTSecret
}

func (c Config) Validate() error {
	switch c.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.DBPath) == "" {
			return fmt.Errorf("COMPDAY_DB_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Driver)
	}
	if !c.IsDevelopment() && strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET must be set outside development")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("COMPDAY_TOKEN_TTL must be positive")
	}
	if c.ReconcileInterval <= 0 || c.ProvisionalGrace <= 0 {
		return fmt.Errorf("reconcile interval and provisional grace must be positive")
	}
	if c.SeedScenario != "" && c.SeedScenario != "demo" {
		return fmt.Errorf("unknown seed scenario %q", c.SeedScenario)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
