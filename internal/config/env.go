// Package config centralizes contender's environment-variable surface and
// on-disk data-directory layout (spec.md §6).
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/flashbots/contender/internal/telemetry"
)

// Environment variable names from spec.md §6.
const (
	EnvRPCURL                = "RPC_URL"
	EnvBuilderRPCURL         = "BUILDER_RPC_URL"
	EnvAuthRPCURL            = "AUTH_RPC_URL"
	EnvJWTSecretPath         = "JWT_SECRET_PATH"
	EnvPrivateKey            = "CONTENDER_PRIVATE_KEY"
	EnvSeed                  = "CONTENDER_SEED"
	EnvSetupConcurrencyLimit = "SETUP_CONCURRENCY_LIMIT"
	EnvDebugUseFile          = "DEBUG_USEFILE"
	EnvBrowser               = "BROWSER"
	EnvDataDir               = "CONTENDER_DATA_DIR"
)

// DefaultSetupConcurrencyLimit is used when SETUP_CONCURRENCY_LIMIT is unset.
const DefaultSetupConcurrencyLimit = 25

// EnvOrDefault returns the environment variable's value, or fallback if
// unset or empty.
func EnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// EnvInt parses an int env var, logging and falling back on parse failure.
func EnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		telemetry.Log.WithField("key", key).WithField("value", v).Warnf("invalid int, using default %d", fallback)
		return fallback
	}
	return n
}

// EnvDuration parses a duration env var (Go duration syntax), falling back
// on parse failure.
func EnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		telemetry.Log.WithField("key", key).WithField("value", v).Warnf("invalid duration, using default %s", fallback)
		return fallback
	}
	return d
}

// EnvBool parses a boolean env var ("1", "true", "yes" are truthy).
func EnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	switch v {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}

// DataDir resolves contender's on-disk data directory, creating it if
// necessary. Defaults to ~/.contender, overridable via CONTENDER_DATA_DIR.
func DataDir() (string, error) {
	if v := os.Getenv(EnvDataDir); v != "" {
		return v, os.MkdirAll(v, 0o700)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".contender")
	return dir, os.MkdirAll(dir, 0o700)
}

// ReportsDir returns the reports/ subdirectory of the data dir.
func ReportsDir(dataDir string) string {
	return filepath.Join(dataDir, "reports")
}

// DbPath returns the contender.db path within the data dir.
func DbPath(dataDir string) string {
	return filepath.Join(dataDir, "contender.db")
}

// SetupConcurrencyLimit reads SETUP_CONCURRENCY_LIMIT, defaulting to 25.
func SetupConcurrencyLimit() int {
	return EnvInt(EnvSetupConcurrencyLimit, DefaultSetupConcurrencyLimit)
}
