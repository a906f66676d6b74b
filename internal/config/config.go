// Package config provides centralized configuration loading for the
// simulation engine CLI. It reads configuration from environment variables
// only, with sensible defaults and validation to fail fast on
// misconfiguration.
//
// Environment variable naming convention:
//   - KIGALISIM_* prefix for application-specific settings
//
// Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatalf("configuration error: %v", err)
//	}
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// =============================================================================
// Environment Constants
// =============================================================================

const (
	// EnvDevelopment is the development environment.
	EnvDevelopment = "development"

	// EnvProduction is the production environment, used for batch CI runs.
	EnvProduction = "production"

	// EnvTest is the test environment.
	EnvTest = "test"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	defaultEnv          = EnvDevelopment
	defaultLogLevel     = "info"
	defaultLogFormat    = "json"
	defaultWorkerCount  = 0 // 0 means "let the pool size itself"
	defaultDecimalScale = 20
)

// =============================================================================
// Environment Variable Keys
// =============================================================================

const (
	envAppEnv       = "KIGALISIM_APP_ENV"
	envLogLevel     = "KIGALISIM_LOG_LEVEL"
	envLogFormat    = "KIGALISIM_LOG_FORMAT"
	envLogSource    = "KIGALISIM_LOG_SOURCE"
	envWorkerCount  = "KIGALISIM_WORKERS"
	envDecimalScale = "KIGALISIM_DECIMAL_SCALE"
	envMetricsAddr  = "KIGALISIM_METRICS_ADDR"
	envEnableMetrics = "KIGALISIM_ENABLE_METRICS"
)

// =============================================================================
// Configuration Struct
// =============================================================================

// Config holds all CLI configuration for a simulation run.
type Config struct {
	// Env is the runtime environment (development, test, production).
	Env string `json:"env"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level"`

	// LogFormat is one of json, text.
	LogFormat string `json:"log_format"`

	// LogSource includes source file/line in log entries when true.
	LogSource bool `json:"log_source"`

	// WorkerCount is the number of parallel engine instances to run
	// scenarios across. Zero means the pool sizes itself to
	// max(2, runtime.NumCPU()-1).
	WorkerCount int `json:"worker_count"`

	// DecimalScale is loaded and validated but not applied: no code
	// reads it, and the division precision of package value is fixed
	// independently of this setting.
	DecimalScale int32 `json:"decimal_scale"`

	// EnableMetrics is loaded and validated (it requires MetricsAddr);
	// cmd/kigalisim does not read it and serves no metrics endpoint.
	EnableMetrics bool `json:"enable_metrics"`

	// MetricsAddr is a listen address for a metrics endpoint, required
	// by Validate when EnableMetrics is true; cmd/kigalisim does not
	// read it or listen on it.
	MetricsAddr string `json:"metrics_addr,omitempty"`
}

// =============================================================================
// Configuration Loading
// =============================================================================

// Load reads configuration from environment variables and returns a validated Config.
func Load() (Config, error) {
	cfg := Config{
		Env:           normalizeEnv(getEnvWithFallback(envAppEnv)),
		LogLevel:      stringOrDefault(os.Getenv(envLogLevel), defaultLogLevel),
		LogFormat:     stringOrDefault(os.Getenv(envLogFormat), defaultLogFormat),
		LogSource:     getBoolEnv(envLogSource, false),
		WorkerCount:   getIntEnv(envWorkerCount, defaultWorkerCount),
		DecimalScale:  int32(getIntEnv(envDecimalScale, defaultDecimalScale)),
		EnableMetrics: getBoolEnv(envEnableMetrics, false),
		MetricsAddr:   strings.TrimSpace(os.Getenv(envMetricsAddr)),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics on error.
// Use only in main() or initialization code where panicking is appropriate.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("config: failed to load: %v", err))
	}
	return cfg
}

// =============================================================================
// Validation
// =============================================================================

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	var errs []error

	if c.WorkerCount < 0 {
		errs = append(errs, fmt.Errorf("invalid worker count: %d", c.WorkerCount))
	}
	if c.DecimalScale <= 0 {
		errs = append(errs, fmt.Errorf("invalid decimal scale: %d", c.DecimalScale))
	}
	if c.EnableMetrics && c.MetricsAddr == "" {
		errs = append(errs, errors.New("metrics address required when metrics are enabled"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %w", errors.Join(errs...))
	}

	return nil
}

// =============================================================================
// Helper Methods
// =============================================================================

// IsProduction returns true if running in the production environment.
func (c Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// IsDevelopment returns true if running in the development environment.
func (c Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// IsTest returns true if running in the test environment.
func (c Config) IsTest() bool {
	return c.Env == EnvTest
}

// =============================================================================
// Environment Variable Helpers
// =============================================================================

// getEnvWithFallback returns the first non-empty environment variable value.
func getEnvWithFallback(keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
}

// stringOrDefault returns s trimmed, or def if s is blank.
func stringOrDefault(s, def string) string {
	if trimmed := strings.TrimSpace(s); trimmed != "" {
		return trimmed
	}
	return def
}

// getIntEnv returns an integer from an environment variable, or the default.
func getIntEnv(key string, defaultVal int) int {
	if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
		if val, err := strconv.Atoi(raw); err == nil {
			return val
		}
	}
	return defaultVal
}

// getBoolEnv returns a boolean from an environment variable, or the default.
// Accepts: true, false, 1, 0, yes, no, on, off (case-insensitive).
func getBoolEnv(key string, defaultVal bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch raw {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return defaultVal
	}
}

// normalizeEnv ensures the environment string is a known value.
func normalizeEnv(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod":
		return EnvProduction
	case "test", "testing":
		return EnvTest
	default:
		return EnvDevelopment
	}
}
