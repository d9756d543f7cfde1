package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"
	"time"

	applog "budget-tracker/internal/log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// MinSecretLength is the shortest accepted SESSION_SECRET.
const MinSecretLength = 16

// Config holds server settings read from the environment.
type Config struct {
	// HTTP Server
	Port string `envconfig:"PORT" default:"8080"`

	// Database
	DBPath string `envconfig:"DB_PATH" default:"budget.db"`

	// Sessions
	SessionSecret string        `envconfig:"SESSION_SECRET"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"720h"`
	SecureCookie  bool          `envconfig:"SECURE_COOKIE" default:"false"`

	// Logging
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
}

// Load reads the given .env files (".env" when none are given), then the
// process environment. Missing .env files are not an error; variables that
// are already set win over file values.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
		slog.Debug("No .env file found", "files", envFiles)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	return &cfg, nil
}

// Validate validates the configuration and returns an error listing every problem.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, "database path cannot be empty")
	}

	if c.SessionSecret != "" && len(c.SessionSecret) < MinSecretLength {
		errs = append(errs, fmt.Sprintf("session secret must be at least %d characters", MinSecretLength))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, fmt.Sprintf("invalid session TTL %s: must be positive", c.SessionTTL))
	}

	if _, err := applog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Sprintf("invalid log level '%s': must be one of [debug info warn error]", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
