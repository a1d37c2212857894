package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any
// errors. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Variables follow the naming
// convention GATEHOUSE_SECTION_FIELD (e.g., GATEHOUSE_SERVER_LISTEN_ADDRESS)
// and always take precedence over file-based configuration.
//
// The loading sequence is:
//  1. Load YAML from file
//  2. Apply default values
//  3. Apply environment variable overrides
//  4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies GATEHOUSE_* environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := os.Getenv("GATEHOUSE_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("GATEHOUSE_SERVER_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if val := os.Getenv("GATEHOUSE_SERVER_WRITE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if val := os.Getenv("GATEHOUSE_SERVER_SHUTDOWN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ShutdownTimeout = d
		}
	}

	// Limits overrides
	if val := os.Getenv("GATEHOUSE_LIMITS_REQUESTS_LIMIT"); val != "" {
		if n, err := strconv.ParseUint(val, 10, 64); err == nil {
			cfg.Limits.Requests.Limit = n
		}
	}
	if val := os.Getenv("GATEHOUSE_LIMITS_REQUESTS_WINDOW"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Limits.Requests.Window = d
		}
	}
	if val := os.Getenv("GATEHOUSE_LIMITS_REQUESTS_BURST_LIMIT"); val != "" {
		if n, err := strconv.ParseUint(val, 10, 64); err == nil {
			cfg.Limits.Requests.BurstLimit = n
		}
	}
	if val := os.Getenv("GATEHOUSE_LIMITS_REQUESTS_BURST_WINDOW"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Limits.Requests.BurstWindow = d
		}
	}
	if val := os.Getenv("GATEHOUSE_LIMITS_USAGE_LIMIT"); val != "" {
		if n, err := strconv.ParseUint(val, 10, 64); err == nil {
			cfg.Limits.Usage.Limit = n
		}
	}
	if val := os.Getenv("GATEHOUSE_LIMITS_USAGE_WINDOW"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Limits.Usage.Window = d
		}
	}
	if val := os.Getenv("GATEHOUSE_LIMITS_SESSIONS_LIMIT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Limits.Sessions.Limit = n
		}
	}
	if val := os.Getenv("GATEHOUSE_LIMITS_SESSIONS_WINDOW"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Limits.Sessions.Window = d
		}
	}
	if val := os.Getenv("GATEHOUSE_LIMITS_SESSIONS_EXEMPT_KEYS"); val != "" {
		keys := strings.Split(val, ",")
		for i := range keys {
			keys[i] = strings.TrimSpace(keys[i])
		}
		cfg.Limits.Sessions.ExemptKeys = keys
	}

	// Estimator overrides
	if val := os.Getenv("GATEHOUSE_ESTIMATOR_STRATEGY"); val != "" {
		cfg.Estimator.Strategy = val
	}

	// Journal overrides
	if val := os.Getenv("GATEHOUSE_JOURNAL_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Journal.Enabled = b
		}
	}
	if val := os.Getenv("GATEHOUSE_JOURNAL_PATH"); val != "" {
		cfg.Journal.Path = val
	}

	// Telemetry overrides
	if val := os.Getenv("GATEHOUSE_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("GATEHOUSE_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("GATEHOUSE_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
}
