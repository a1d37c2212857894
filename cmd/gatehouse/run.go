package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"parkside-labs/gatehouse/pkg/admission"
	"parkside-labs/gatehouse/pkg/admission/store"
	"parkside-labs/gatehouse/pkg/admission/sweep"
	"parkside-labs/gatehouse/pkg/config"
	"parkside-labs/gatehouse/pkg/estimate"
	"parkside-labs/gatehouse/pkg/journal"
	"parkside-labs/gatehouse/pkg/server"
	"parkside-labs/gatehouse/pkg/telemetry/logging"
	"parkside-labs/gatehouse/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the admission server",
	Long: `Start the admission server with the specified configuration.

The server checks every chat request against the burst, request-rate,
usage-budget, and session dimensions before delegating admitted requests
downstream.

Examples:
  # Start with default config
  gatehouse run

  # Start with custom config
  gatehouse run --config /etc/gatehouse/config.yaml

  # Override listen address
  gatehouse run --listen 0.0.0.0:8080

  # Validate config without starting the server
  gatehouse run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	})
	if err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Counters are in-process only. Running more than one instance without
	// a shared store multiplies every limit by the instance count.
	slog.Warn("admission counters are process-local; effective limits scale with instance count")

	st := store.New(storeLimits(&cfg.Limits))

	estimator, err := buildEstimator(&cfg.Estimator)
	if err != nil {
		return fmt.Errorf("failed to build estimator: %w", err)
	}

	gate := admission.NewGate(st, estimator, cfg.Limits.Sessions.ExemptKeys, logger)

	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(metrics.Config{
			Namespace: cfg.Telemetry.Metrics.Namespace,
			Subsystem: cfg.Telemetry.Metrics.Subsystem,
		}, nil)
	}

	var sweepRecorder sweep.Recorder
	if collector != nil {
		sweepRecorder = collector.Admission
	}
	sweeper := sweep.New(st, sweep.Config{
		Interval:      cfg.Limits.Sweep.Interval,
		Grace:         cfg.Limits.Sweep.Grace,
		UsageSchedule: cfg.Limits.Sweep.UsageSchedule,
	}, sweepRecorder, logger)
	if err := sweeper.Start(ctx); err != nil {
		return fmt.Errorf("failed to start sweeper: %w", err)
	}
	defer sweeper.Stop()

	var recorder journal.Recorder
	if cfg.Journal.Enabled {
		j, err := journal.OpenSQLite(journal.SQLiteConfig{
			Path:          cfg.Journal.Path,
			RetentionDays: cfg.Journal.RetentionDays,
		})
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer j.Close()
		recorder = j

		scheduler := journal.NewScheduler(j, cfg.Journal.PruneSchedule, logger)
		if err := scheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start journal scheduler: %w", err)
		}
		defer scheduler.Stop()
	}

	if cfg.Limits.Watch {
		watcher, err := config.NewWatcher(cfgFile, logger)
		if err != nil {
			return fmt.Errorf("failed to create config watcher: %w", err)
		}
		go func() {
			err := watcher.Watch(ctx, func(reloaded *config.Config) {
				st.SetLimits(storeLimits(&reloaded.Limits))
				gate.SetExemptKeys(reloaded.Limits.Sessions.ExemptKeys)
				slog.Info("admission limits reloaded")
			})
			if err != nil {
				slog.Error("config watcher stopped", "error", err)
			}
		}()
	}

	if collector != nil {
		go telemetryLoop(ctx, st, collector.Admission)
	}

	srv := server.NewServer(&cfg.Server, gate,
		&server.EchoResponder{CharsPerUnit: cfg.Estimator.CharsPerUnit},
		collector, recorder)
	return srv.Start(ctx)
}

// storeLimits converts the configuration limits block to store thresholds.
func storeLimits(l *config.LimitsConfig) store.Limits {
	return store.Limits{
		RequestLimit:  l.Requests.Limit,
		RequestWindow: l.Requests.Window,
		BurstLimit:    l.Requests.BurstLimit,
		BurstWindow:   l.Requests.BurstWindow,
		UsageLimit:    l.Usage.Limit,
		UsageWindow:   l.Usage.Window,
		SessionLimit:  l.Sessions.Limit,
		SessionWindow: l.Sessions.Window,
	}
}

func buildEstimator(cfg *config.EstimatorConfig) (estimate.Estimator, error) {
	switch cfg.Strategy {
	case "bpe":
		return estimate.NewBPEEstimator(cfg.Encoding)
	default:
		return estimate.NewCharEstimator(cfg.CharsPerUnit), nil
	}
}

// telemetryLoop refreshes the store-size gauges at a slow cadence.
func telemetryLoop(ctx context.Context, st *store.UsageStore, m *metrics.AdmissionMetrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			requests, bursts, usage, sessions := st.Counts()
			m.RecordStoreEntries(requests, bursts, usage, sessions)
			m.SetActiveSessions(st.SessionCount())
		}
	}
}
