package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validate checks the configuration for errors and returns the first
// problem found. It is called by LoadConfig after defaults are applied, so
// it can assume every field has a value.
func Validate(cfg *Config) error {
	if err := validateServer(&cfg.Server); err != nil {
		return err
	}
	if err := validateLimits(&cfg.Limits); err != nil {
		return err
	}
	if err := validateEstimator(&cfg.Estimator); err != nil {
		return err
	}
	if err := validateJournal(&cfg.Journal); err != nil {
		return err
	}
	if err := validateTelemetry(&cfg.Telemetry); err != nil {
		return err
	}
	return nil
}

func validateServer(s *ServerConfig) error {
	if _, _, err := net.SplitHostPort(s.ListenAddress); err != nil {
		return fmt.Errorf("server.listen_address %q is not a valid host:port: %w", s.ListenAddress, err)
	}
	if s.ReadTimeout < 0 || s.WriteTimeout < 0 || s.IdleTimeout < 0 {
		return fmt.Errorf("server timeouts must not be negative")
	}
	return nil
}

func validateLimits(l *LimitsConfig) error {
	if l.Requests.Window <= 0 {
		return fmt.Errorf("limits.requests.window must be positive, got %v", l.Requests.Window)
	}
	if l.Requests.BurstWindow <= 0 {
		return fmt.Errorf("limits.requests.burst_window must be positive, got %v", l.Requests.BurstWindow)
	}
	if l.Requests.BurstWindow >= l.Requests.Window {
		return fmt.Errorf("limits.requests.burst_window (%v) must be shorter than limits.requests.window (%v)",
			l.Requests.BurstWindow, l.Requests.Window)
	}
	if l.Usage.Window <= 0 {
		return fmt.Errorf("limits.usage.window must be positive, got %v", l.Usage.Window)
	}
	if l.Sessions.Limit < 1 {
		return fmt.Errorf("limits.sessions.limit must be at least 1, got %d", l.Sessions.Limit)
	}
	if l.Sessions.Window < 0 {
		return fmt.Errorf("limits.sessions.window must not be negative, got %v", l.Sessions.Window)
	}
	for _, key := range l.Sessions.ExemptKeys {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("limits.sessions.exempt_keys must not contain empty keys")
		}
	}
	if l.Sweep.Interval <= 0 {
		return fmt.Errorf("limits.sweep.interval must be positive, got %v", l.Sweep.Interval)
	}
	if l.Sweep.Grace < 0 {
		return fmt.Errorf("limits.sweep.grace must not be negative, got %v", l.Sweep.Grace)
	}
	if _, err := cron.ParseStandard(l.Sweep.UsageSchedule); err != nil {
		return fmt.Errorf("limits.sweep.usage_schedule %q is not a valid cron expression: %w",
			l.Sweep.UsageSchedule, err)
	}
	return nil
}

func validateEstimator(e *EstimatorConfig) error {
	switch e.Strategy {
	case "chars", "bpe":
	default:
		return fmt.Errorf("estimator.strategy must be \"chars\" or \"bpe\", got %q", e.Strategy)
	}
	if e.CharsPerUnit <= 0 {
		return fmt.Errorf("estimator.chars_per_unit must be positive, got %v", e.CharsPerUnit)
	}
	return nil
}

func validateJournal(j *JournalConfig) error {
	if !j.Enabled {
		return nil
	}
	if j.Path == "" {
		return fmt.Errorf("journal.path must be set when the journal is enabled")
	}
	if j.RetentionDays < 1 {
		return fmt.Errorf("journal.retention_days must be at least 1, got %d", j.RetentionDays)
	}
	if _, err := cron.ParseStandard(j.PruneSchedule); err != nil {
		return fmt.Errorf("journal.prune_schedule %q is not a valid cron expression: %w",
			j.PruneSchedule, err)
	}
	return nil
}

func validateTelemetry(t *TelemetryConfig) error {
	switch t.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("telemetry.logging.level must be one of debug, info, warn, error; got %q",
			t.Logging.Level)
	}
	switch t.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("telemetry.logging.format must be \"json\" or \"text\", got %q",
			t.Logging.Format)
	}
	return nil
}
