// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Addr              string        `env:"POTS_ADDR" envDefault:":8080"`
	DBDriver          string        `env:"POTS_DB_DRIVER" envDefault:"sqlite"`
	DatabaseURL       string        `env:"POTS_DATABASE_URL"`
	SQLitePath        string        `env:"POTS_SQLITE_PATH" envDefault:"pots.db"`
	EventBuffer       int           `env:"POTS_EVENT_BUFFER" envDefault:"100"`
	KafkaBrokers      []string      `env:"POTS_KAFKA_BROKERS" envSeparator:","`
	KafkaTopic        string        `env:"POTS_KAFKA_TOPIC" envDefault:"pot-events"`
	JWTSecret         string        `env:"POTS_JWT_SECRET"`
	JWTIssuer         string        `env:"POTS_JWT_ISSUER" envDefault:"acasinha-pots"`
	ShareCodeAttempts int           `env:"POTS_SHARE_CODE_ATTEMPTS" envDefault:"5"`
	CookieSecure      bool          `env:"POTS_COOKIE_SECURE" envDefault:"false"`
	SessionTTL        time.Duration `env:"POTS_SESSION_TTL" envDefault:"168h"`
	LogLevel          string        `env:"POTS_LOG_LEVEL" envDefault:"info"`
}

// Load reads an optional .env file from the working directory, then parses
// and validates the environment. Variables already set win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}
	return Parse()
}

// Parse reads the configuration from the environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.DBDriver {
	case DriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errors.New("POTS_DATABASE_URL is required for the postgres driver")
		}
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return errors.New("POTS_SQLITE_PATH is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("POTS_DB_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.DBDriver)
	}
	if c.EventBuffer <= 0 {
		return errors.New("POTS_EVENT_BUFFER must be positive")
	}
	if c.SessionTTL <= 0 {
		return errors.New("POTS_SESSION_TTL must be positive")
	}
	if c.ShareCodeAttempts <= 0 {
		return errors.New("POTS_SHARE_CODE_ATTEMPTS must be positive")
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		return errors.New("POTS_JWT_SECRET must be at least 32 bytes")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("POTS_LOG_LEVEL: %w", err)
	}
	return level, nil
}

// KafkaEnabled reports whether events should also be published to Kafka.
func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// BearerEnabled reports whether bearer tokens are accepted.
func (c Config) BearerEnabled() bool {
	return c.JWTSecret != ""
}
