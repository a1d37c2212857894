package config

import "time"

// ApplyDefaults fills in default values for any configuration fields that
// were not set. It is called by LoadConfig after parsing and before
// validation, so a partially specified file is always usable.
func ApplyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyLimitsDefaults(&cfg.Limits)
	applyEstimatorDefaults(&cfg.Estimator)
	applyJournalDefaults(&cfg.Journal)
	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyServerDefaults(s *ServerConfig) {
	if s.ListenAddress == "" {
		s.ListenAddress = "127.0.0.1:8080"
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 30 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 30 * time.Second
	}
	if s.IdleTimeout == 0 {
		s.IdleTimeout = 120 * time.Second
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = 30 * time.Second
	}
	if s.MaxHeaderBytes == 0 {
		s.MaxHeaderBytes = 1 << 20
	}
}

func applyLimitsDefaults(l *LimitsConfig) {
	if l.Requests.Limit == 0 {
		l.Requests.Limit = 10
	}
	if l.Requests.Window == 0 {
		l.Requests.Window = time.Hour
	}
	if l.Requests.BurstLimit == 0 {
		l.Requests.BurstLimit = 3
	}
	if l.Requests.BurstWindow == 0 {
		l.Requests.BurstWindow = 10 * time.Second
	}
	if l.Usage.Limit == 0 {
		l.Usage.Limit = 5000
	}
	if l.Usage.Window == 0 {
		l.Usage.Window = 24 * time.Hour
	}
	if l.Sessions.Limit == 0 {
		l.Sessions.Limit = 3
	}
	// Sessions.Window intentionally has no default: zero means sessions
	// persist until explicitly released.
	if l.Sweep.Interval == 0 {
		l.Sweep.Interval = 5 * time.Minute
	}
	if l.Sweep.Grace == 0 {
		l.Sweep.Grace = 10 * time.Minute
	}
	if l.Sweep.UsageSchedule == "" {
		l.Sweep.UsageSchedule = "0 * * * *"
	}
}

func applyEstimatorDefaults(e *EstimatorConfig) {
	if e.Strategy == "" {
		e.Strategy = "chars"
	}
	if e.CharsPerUnit == 0 {
		e.CharsPerUnit = 4.0
	}
	if e.Encoding == "" {
		e.Encoding = "cl100k_base"
	}
}

func applyJournalDefaults(j *JournalConfig) {
	if j.Path == "" {
		j.Path = "gatehouse.db"
	}
	if j.RetentionDays == 0 {
		j.RetentionDays = 30
	}
	if j.PruneSchedule == "" {
		j.PruneSchedule = "0 3 * * *"
	}
}

func applyTelemetryDefaults(t *TelemetryConfig) {
	if t.Logging.Level == "" {
		t.Logging.Level = "info"
	}
	if t.Logging.Format == "" {
		t.Logging.Format = "json"
	}
	if t.Metrics.Namespace == "" {
		t.Metrics.Namespace = "gatehouse"
	}
	if t.Metrics.Subsystem == "" {
		t.Metrics.Subsystem = "admission"
	}
}
