// Package config loads engine configuration from the environment, with
// optional .env support.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds paths and defaults shared by the sheetmail binaries.
type Config struct {
	// CredentialsPath points at the provider credential JSON document.
	CredentialsPath string
	// StorePath is the sqlite credential store.
	StorePath string
	// JobsPath, when set, persists scheduled jobs as JSON for restart
	// recovery. Empty keeps jobs in memory only.
	JobsPath string
	// DefaultDelay is the inter-send gap when a campaign does not set one.
	DefaultDelay time.Duration
	LogLevel     string
}

// Load reads configuration from SHEETMAIL_* environment variables,
// after loading a .env file if one exists beside the process.
func Load() (*Config, error) {
	_ = godotenv.Load()

	base, err := defaultBaseDir()
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		CredentialsPath: getEnv("SHEETMAIL_CREDENTIALS", filepath.Join(base, "credentials.json")),
		StorePath:       getEnv("SHEETMAIL_STORE", filepath.Join(base, "store.db")),
		JobsPath:        getEnv("SHEETMAIL_JOBS", ""),
		LogLevel:        getEnv("SHEETMAIL_LOG_LEVEL", "info"),
	}
	delaySeconds, err := getEnvInt("SHEETMAIL_DELAY_SECONDS", 5)
	if err != nil {
		return nil, err
	}
	cfg.DefaultDelay = time.Duration(delaySeconds) * time.Second
	return cfg, nil
}

func defaultBaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".sheetmail"), nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
