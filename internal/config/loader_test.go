package config

import (
	"os"
	"testing"
	"time"
)

func TestLoader_ParseEnvironment(t *testing.T) {

	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		unset := []string{
			"QDUE_HTTP_PORT",
			"QDUE_SQLITE_DSN",
			"QDUE_SESSION_TTL",
			"QDUE_LOG_LEVEL",
			"QDUE_CLOSURE_CALENDAR",
		}
		for _, key := range unset {
			if err := os.Unsetenv(key); err != nil {
				t.Fatalf("failed to unset %s: %v", key, err)
			}
		}

		const secret = "super-secret"
		t.Setenv("QDUE_SESSION_SECRET", secret)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.SQLiteDSN != "qdue.db" {
			t.Fatalf("unexpected default DSN: %q", cfg.SQLiteDSN)
		}
		if cfg.SessionSecret != secret {
			t.Fatalf("expected session secret to be %q, got %q", secret, cfg.SessionSecret)
		}
		if cfg.LogLevel != "info" {
			t.Fatalf("expected default log level info, got %q", cfg.LogLevel)
		}
	})

	t.Run("errors when required values are missing", func(t *testing.T) {
		for _, key := range []string{
			"QDUE_SESSION_SECRET",
			"QDUE_HTTP_PORT",
			"QDUE_SQLITE_DSN",
		} {
			if err := os.Unsetenv(key); err != nil {
				t.Fatalf("failed to unset %s: %v", key, err)
			}
		}

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error when required values are missing")
		}
		expected := "required environment variables are not set: QDUE_SESSION_SECRET"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("parses duration and numeric fields", func(t *testing.T) {
		t.Setenv("QDUE_SESSION_SECRET", "secret-value")
		t.Setenv("QDUE_HTTP_PORT", "9090")
		t.Setenv("QDUE_SQLITE_DSN", "/tmp/qdue.db")
		t.Setenv("QDUE_SESSION_TTL", "12h")
		t.Setenv("QDUE_LOG_LEVEL", "DEBUG")
		t.Setenv("QDUE_CLOSURE_CALENDAR", "/etc/qdue/closures.yaml")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.SessionTTL != 12*time.Hour {
			t.Fatalf("expected session TTL 12h, got %s", cfg.SessionTTL)
		}
		if cfg.HTTPPort != 9090 {
			t.Fatalf("expected HTTP port 9090, got %d", cfg.HTTPPort)
		}
		if cfg.SQLiteDSN != "/tmp/qdue.db" {
			t.Fatalf("unexpected DSN: %q", cfg.SQLiteDSN)
		}
		if cfg.LogLevel != "debug" {
			t.Fatalf("expected lowered log level, got %q", cfg.LogLevel)
		}
		if cfg.ClosureCalendar != "/etc/qdue/closures.yaml" {
			t.Fatalf("unexpected closure calendar path: %q", cfg.ClosureCalendar)
		}
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		t.Setenv("QDUE_SESSION_SECRET", "secret-value")
		t.Setenv("QDUE_HTTP_PORT", "not-a-port")
		t.Setenv("QDUE_SESSION_TTL", "")
		t.Setenv("QDUE_LOG_LEVEL", "verbose")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error for invalid values")
		}
		expected := "environment variables have invalid values: QDUE_HTTP_PORT, QDUE_LOG_LEVEL"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})
}
