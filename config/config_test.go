package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("addr = %q, want :8080", cfg.Addr)
	}
	if cfg.DBDriver != DriverSQLite {
		t.Fatalf("driver = %q, want sqlite", cfg.DBDriver)
	}
	if cfg.ShareCodeAttempts != 5 {
		t.Fatalf("share code attempts = %d, want 5", cfg.ShareCodeAttempts)
	}
	if cfg.SessionTTL != 7*24*time.Hour {
		t.Fatalf("session ttl = %v, want 168h", cfg.SessionTTL)
	}
	if cfg.KafkaEnabled() || cfg.BearerEnabled() {
		t.Fatal("kafka and bearer auth should be off by default")
	}
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("POTS_DB_DRIVER", "postgres")
	t.Setenv("POTS_DATABASE_URL", "postgres://localhost/pots?sslmode=disable")
	t.Setenv("POTS_KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("POTS_LOG_LEVEL", "debug")
	t.Setenv("POTS_SESSION_TTL", "12h")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "kafka-2:9092" {
		t.Fatalf("brokers = %v", cfg.KafkaBrokers)
	}
	level, err := cfg.SlogLevel()
	if err != nil {
		t.Fatalf("level: %v", err)
	}
	if level != slog.LevelDebug {
		t.Fatalf("level = %v, want debug", level)
	}
	if cfg.SessionTTL != 12*time.Hour {
		t.Fatalf("session ttl = %v, want 12h", cfg.SessionTTL)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := map[string]map[string]string{
		"unknown driver":     {"POTS_DB_DRIVER": "mysql"},
		"postgres no url":    {"POTS_DB_DRIVER": "postgres"},
		"zero buffer":        {"POTS_EVENT_BUFFER": "0"},
		"zero code attempts": {"POTS_SHARE_CODE_ATTEMPTS": "0"},
		"short secret":       {"POTS_JWT_SECRET": "tiny"},
		"bad level":          {"POTS_LOG_LEVEL": "loud"},
	}
	for name, vars := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range vars {
				t.Setenv(k, v)
			}
			if _, err := Parse(); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("POTS_ADDR=:9999\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Chdir(dir)
	// Registered so the value godotenv sets is restored after the test.
	t.Setenv("POTS_ADDR", "")
	os.Unsetenv("POTS_ADDR")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Fatalf("addr = %q, want :9999", cfg.Addr)
	}
}

func TestLoadWithoutDotEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
}
