package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config is the environment-driven application configuration.
type Config struct {
	// Storage
	FilePath  string // flat-file backend
	DBPath    string // sqlite backend
	BackupDir string

	// Backend selection: "file" or "sqlite"
	DataBackend string

	// Display preferences document (see Preferences)
	PreferencesPath string

	LogLevel string
}

func Load() *Config {
	return &Config{
		FilePath:        getEnv("EXPENSES_FILE", "expenses.txt"),
		DBPath:          getEnv("EXPENSES_DB", "expenses.db"),
		BackupDir:       getEnv("BACKUP_DIR", ".backups"),
		DataBackend:     getEnv("DATA_BACKEND", "sqlite"),
		PreferencesPath: getEnv("PREFERENCES_PATH", "config.json"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	var errs []string

	switch c.DataBackend {
	case "file":
		if c.FilePath == "" {
			errs = append(errs, "expense file path cannot be empty when using file backend")
		}
	case "sqlite":
		if c.DBPath == "" {
			errs = append(errs, "database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.DBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					errs = append(errs, fmt.Sprintf("cannot create database directory '%s': %v", dir, err))
				}
			}
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of [file sqlite]", c.DataBackend))
	}

	if c.BackupDir == "" {
		errs = append(errs, "backup directory cannot be empty")
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log level '%s': must be one of [debug info warn error]", c.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
