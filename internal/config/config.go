// Package config reads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Storage drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

const (
	defaultGRPCAddr    = ":8080"
	defaultAPIToken    = "dev-token"
	defaultSQLitePath  = "capitalflow.db"
	defaultMetricsAddr = ":9090"
	defaultCurrency    = "USD"
)

// Config is the runtime configuration of the server and CLI
type Config struct {
	GRPCAddr      string
	APIToken      string
	StorageDriver string
	DBConnStr     string
	SQLitePath    string
	SeedFile      string
	MetricsAddr   string // Empty disables the metrics endpoint
	LogLevel      slog.Level
	Currency      string
}

// Load reads an optional dotenv file and then the environment.
// Variables already set in the environment win over the file.
// With no files given, ./.env is used when it exists.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	} else if err := godotenv.Load(files...); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only
func FromEnv() (*Config, error) {
	cfg := &Config{
		GRPCAddr:      getEnv("GRPC_ADDR", defaultGRPCAddr),
		APIToken:      getEnv("API_TOKEN", defaultAPIToken),
		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", DriverPostgres)),
		DBConnStr:     os.Getenv("DB_CONN_STR"),
		SQLitePath:    getEnv("SQLITE_PATH", defaultSQLitePath),
		SeedFile:      os.Getenv("SEED_FILE"),
		Currency:      strings.ToUpper(getEnv("CURRENCY", defaultCurrency)),
	}

	// An explicitly empty METRICS_ADDR turns the endpoint off
	if addr, ok := os.LookupEnv("METRICS_ADDR"); ok {
		cfg.MetricsAddr = addr
	} else {
		cfg.MetricsAddr = defaultMetricsAddr
	}

	if cfg.DBConnStr == "" {
		// If explicit string is missing, build it from individual vars (Docker friendly)
		cfg.DBConnStr = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			getEnv("DB_HOST", "localhost"),
			getEnv("DB_PORT", "5432"),
			getEnv("DB_USER", "postgres"),
			getEnv("DB_PASSWORD", "postgres"),
			getEnv("DB_NAME", "capitalflow"),
		)
	}

	switch cfg.StorageDriver {
	case DriverPostgres, DriverSQLite, DriverMemory:
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	level, err := parseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}
