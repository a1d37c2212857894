package config

import "time"

// Config is the root configuration structure for Gatehouse.
// It contains all configuration sections for the HTTP server, admission
// limits, unit estimation, the usage journal, and telemetry.
type Config struct {
	// Server contains HTTP server configuration including listen address
	// and timeouts.
	Server ServerConfig `yaml:"server"`

	// Limits contains the admission-control thresholds for every
	// dimension: request rate, burst, usage budget, and session cap.
	Limits LimitsConfig `yaml:"limits"`

	// Estimator selects and tunes the unit estimation strategy used to
	// reserve usage budget before the downstream call is made.
	Estimator EstimatorConfig `yaml:"estimator"`

	// Journal contains configuration for the append-only admission
	// journal (SQLite-backed audit trail of decisions and usage reports).
	Journal JournalConfig `yaml:"journal"`

	// Telemetry contains observability configuration (logging, metrics).
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of
	// the response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next
	// request when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful
	// shutdown before in-flight requests are abandoned.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing request headers.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// LimitsConfig contains admission thresholds for all limit dimensions.
// Every dimension is independently tunable.
type LimitsConfig struct {
	// Requests configures the per-client request-rate dimension.
	Requests RequestLimitConfig `yaml:"requests"`

	// Usage configures the per-client usage-budget dimension.
	Usage UsageLimitConfig `yaml:"usage"`

	// Sessions configures the per-client concurrent-session dimension.
	Sessions SessionLimitConfig `yaml:"sessions"`

	// Sweep configures the background eviction of stale counter entries.
	Sweep SweepConfig `yaml:"sweep"`

	// Watch enables hot reload of the limits block when the configuration
	// file changes on disk.
	Watch bool `yaml:"watch"`
}

// RequestLimitConfig bounds how many requests a client may make per window,
// with a secondary shorter burst window layered on top.
type RequestLimitConfig struct {
	// Limit is the maximum number of requests per window.
	// Default: 10
	Limit uint64 `yaml:"limit"`

	// Window is the duration of the main request window.
	// Default: 1h
	Window time.Duration `yaml:"window"`

	// BurstLimit is the maximum number of requests per burst window.
	// Default: 3
	BurstLimit uint64 `yaml:"burst_limit"`

	// BurstWindow is the duration of the burst window. The burst check is
	// evaluated in addition to, not instead of, the main window.
	// Default: 10s
	BurstWindow time.Duration `yaml:"burst_window"`
}

// UsageLimitConfig bounds the cumulative usage budget, in abstract units
// (an estimated proxy for downstream model cost), a client may consume per
// window.
type UsageLimitConfig struct {
	// Limit is the maximum number of units per window.
	// Default: 5000
	Limit uint64 `yaml:"limit"`

	// Window is the duration of the budget window.
	// Default: 24h
	Window time.Duration `yaml:"window"`
}

// SessionLimitConfig bounds how many distinct logical sessions a client may
// hold open at once.
type SessionLimitConfig struct {
	// Limit is the maximum number of concurrent sessions per client.
	// Default: 3
	Limit int `yaml:"limit"`

	// Window optionally resets a client's session set after this duration.
	// Zero disables the reset: sessions then persist until explicitly
	// released.
	// Default: 0 (disabled)
	Window time.Duration `yaml:"window"`

	// ExemptKeys lists client keys that bypass the session cap. Exemption
	// applies to the session dimension only; exempt keys remain subject
	// to request-rate and usage-budget limits.
	ExemptKeys []string `yaml:"exempt_keys"`
}

// SweepConfig controls the background sweeper that evicts long-expired
// counter entries to bound memory. The sweeper is an optimization only;
// admission correctness never depends on it.
type SweepConfig struct {
	// Interval is how often the request, burst, and session maps are
	// scanned for expired entries.
	// Default: 5m
	Interval time.Duration `yaml:"interval"`

	// Grace is how long past its window end an entry must be before it is
	// eligible for eviction.
	// Default: 10m
	Grace time.Duration `yaml:"grace"`

	// UsageSchedule is a cron expression for sweeping the usage-budget
	// map, which holds day-scale windows and warrants a slower cadence.
	// Default: "0 * * * *" (hourly)
	UsageSchedule string `yaml:"usage_schedule"`
}

// EstimatorConfig selects the usage estimation strategy.
type EstimatorConfig struct {
	// Strategy is the estimation algorithm: "chars" (length-proportional
	// approximation) or "bpe" (exact byte-pair encoding token count).
	// Default: "chars"
	Strategy string `yaml:"strategy"`

	// CharsPerUnit is the characters-per-unit ratio for the "chars"
	// strategy.
	// Default: 4.0
	CharsPerUnit float64 `yaml:"chars_per_unit"`

	// Encoding is the BPE encoding name for the "bpe" strategy.
	// Default: "cl100k_base"
	Encoding string `yaml:"encoding"`
}

// JournalConfig contains configuration for the admission journal.
type JournalConfig struct {
	// Enabled turns journal recording on.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database file path.
	// Default: "gatehouse.db"
	Path string `yaml:"path"`

	// RetentionDays is how many days of journal entries to keep.
	// Default: 30
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is a cron expression for retention pruning.
	// Default: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string `yaml:"prune_schedule"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures Prometheus metrics.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format: "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file:line in log records.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	// Enabled turns the /metrics endpoint on.
	Enabled bool `yaml:"enabled"`

	// Namespace is the metric name prefix.
	// Default: "gatehouse"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem label.
	// Default: "admission"
	Subsystem string `yaml:"subsystem"`
}
