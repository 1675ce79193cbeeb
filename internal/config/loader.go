package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures environment driven configuration values for the schedule
// service.
type Config struct {
	HTTPPort        int
	SQLiteDSN       string
	SessionSecret   string
	SessionTTL      time.Duration
	LogLevel        string
	ClosureCalendar string

	// AdminEmail/AdminPassword optionally seed an administrator account on
	// startup when no user with that email exists yet.
	AdminEmail    string
	AdminPassword string

	// BootstrapRotation seeds the nine-team rotation reference data on
	// startup when the pattern catalog is empty.
	BootstrapRotation bool
}

// Load parses configuration values from the current process environment.
//
// The loader applies sensible defaults for optional fields while validating
// required values, accumulating every missing or invalid entry into a single
// error.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:   8080,
		SQLiteDSN:  "qdue.db",
		SessionTTL: 24 * time.Hour,
		LogLevel:   "info",
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("QDUE_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "QDUE_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("QDUE_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if secret := strings.TrimSpace(os.Getenv("QDUE_SESSION_SECRET")); secret == "" {
		missing = append(missing, "QDUE_SESSION_SECRET")
	} else {
		cfg.SessionSecret = secret
	}

	if ttlValue := strings.TrimSpace(os.Getenv("QDUE_SESSION_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "QDUE_SESSION_TTL")
		} else {
			cfg.SessionTTL = ttl
		}
	}

	if level := strings.TrimSpace(os.Getenv("QDUE_LOG_LEVEL")); level != "" {
		switch strings.ToLower(level) {
		case "debug", "info", "warn", "error":
			cfg.LogLevel = strings.ToLower(level)
		default:
			invalid = append(invalid, "QDUE_LOG_LEVEL")
		}
	}

	if path := strings.TrimSpace(os.Getenv("QDUE_CLOSURE_CALENDAR")); path != "" {
		cfg.ClosureCalendar = path
	}

	cfg.AdminEmail = strings.TrimSpace(os.Getenv("QDUE_ADMIN_EMAIL"))
	cfg.AdminPassword = os.Getenv("QDUE_ADMIN_PASSWORD")

	if bootstrapValue := strings.TrimSpace(os.Getenv("QDUE_BOOTSTRAP_ROTATION")); bootstrapValue != "" {
		bootstrap, err := strconv.ParseBool(bootstrapValue)
		if err != nil {
			invalid = append(invalid, "QDUE_BOOTSTRAP_ROTATION")
		} else {
			cfg.BootstrapRotation = bootstrap
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("environment variables have invalid values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
