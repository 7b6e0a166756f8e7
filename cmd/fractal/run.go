package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"spxcore/fractal/pkg/cli"
	"spxcore/fractal/pkg/config"
	"spxcore/fractal/pkg/drift"
	"spxcore/fractal/pkg/governance"
	"spxcore/fractal/pkg/intel"
	"spxcore/fractal/pkg/learning"
	"spxcore/fractal/pkg/outcomes"
	"spxcore/fractal/pkg/policy"
	"spxcore/fractal/pkg/server"
	"spxcore/fractal/pkg/simulation"
	"spxcore/fractal/pkg/telemetry/health"
	"spxcore/fractal/pkg/telemetry/logging"
	"spxcore/fractal/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
	watch         bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Fractal governance server",
	Long: `Start the Fractal governance server with the specified configuration.

The server exposes the proposal lifecycle, policy store, application
ledger, and intel timeline over HTTP, and runs the scheduled outcome
resolution sweep and timeline collection in the background.

Examples:
  # Start with default config
  fractal run

  # Start with custom config
  fractal run --config /etc/fractal/config.yaml

  # Override listen address
  fractal run --listen 0.0.0.0:8090

  # Reload log level on config file changes
  fractal run --watch

  # Validate config without starting server
  fractal run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
	runCmd.Flags().BoolVar(&runFlags.watch, "watch", false, "watch the config file and apply log-level changes")
}

// storeSet groups the persistence handles so they can be opened per
// backend and closed together.
type storeSet struct {
	Policies  policy.Store
	Proposals governance.ProposalStore
	Ledger    governance.LedgerStore
	Outcomes  outcomes.Store
}

func (s *storeSet) Close() {
	for name, closer := range map[string]interface{ Close() error }{
		"policy":   s.Policies,
		"proposal": s.Proposals,
		"ledger":   s.Ledger,
		"outcomes": s.Outcomes,
	} {
		if closer == nil {
			continue
		}
		if err := closer.Close(); err != nil {
			slog.Warn("store close failed", "store", name, "error", err)
		}
	}
}

func openStores(cfg *config.StorageConfig) (*storeSet, error) {
	switch cfg.Backend {
	case "memory":
		return &storeSet{
			Policies:  policy.NewMemoryStore(),
			Proposals: governance.NewMemoryProposalStore(),
			Ledger:    governance.NewMemoryLedgerStore(),
			Outcomes:  outcomes.NewMemoryStore(),
		}, nil

	case "sqlite":
		policies, err := policy.NewSQLiteStore(&policy.SQLiteConfig{
			Path:         cfg.PoliciesPath,
			MaxOpenConns: cfg.MaxOpenConns,
			WALMode:      cfg.WALMode,
			BusyTimeout:  cfg.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("open policy store: %w", err)
		}

		// Proposals and the application ledger share one database file.
		govConfig := &governance.SQLiteConfig{
			Path:         cfg.GovernancePath,
			MaxOpenConns: cfg.MaxOpenConns,
			WALMode:      cfg.WALMode,
			BusyTimeout:  cfg.BusyTimeout,
		}
		proposals, err := governance.NewSQLiteProposalStore(govConfig)
		if err != nil {
			policies.Close()
			return nil, fmt.Errorf("open proposal store: %w", err)
		}
		ledger, err := governance.NewSQLiteLedgerStore(govConfig)
		if err != nil {
			policies.Close()
			proposals.Close()
			return nil, fmt.Errorf("open ledger store: %w", err)
		}

		snapshots, err := outcomes.NewSQLiteStore(&outcomes.SQLiteConfig{
			Path:        cfg.OutcomesPath,
			BusyTimeout: cfg.BusyTimeout,
		})
		if err != nil {
			policies.Close()
			proposals.Close()
			ledger.Close()
			return nil, fmt.Errorf("open outcome store: %w", err)
		}

		return &storeSet{Policies: policies, Proposals: proposals, Ledger: ledger, Outcomes: snapshots}, nil

	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
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

	if _, err := logging.Setup(logging.Config{
		Level:  cfg.Telemetry.Logging.Level,
		Format: cfg.Telemetry.Logging.Format,
	}); err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	printBanner(cfg)

	// Open persistence
	stores, err := openStores(&cfg.Storage)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer stores.Close()
	fmt.Printf("✓ Stores opened (%s backend)\n", cfg.Storage.Backend)

	// Outcome pipeline: resolution, learning, drift, simulation
	resolver := outcomes.NewResolver(stores.Outcomes, outcomes.NewSnapshotPriceSource(stores.Outcomes))
	aggregator := learning.NewAggregator(stores.Outcomes)
	comparator := drift.NewComparator(stores.Outcomes)
	replayer := simulation.NewReplayer(stores.Outcomes)

	// Metrics collector; the governance service records lifecycle events
	// through it even when exposition is disabled.
	collector := metrics.NewCollector(&metrics.Config{Enabled: cfg.Telemetry.Metrics.Enabled}, nil)

	// Governance service
	service := governance.NewService(governance.ServiceConfig{
		Policies:  stores.Policies,
		Proposals: stores.Proposals,
		Ledger:    governance.NewLedger(stores.Ledger, stores.Policies),
		Engine: governance.NewEngine(governance.EngineConfig{
			LearningRate:       cfg.Governance.LearningRate,
			MaxWeightDelta:     cfg.Governance.MaxWeightDelta,
			HoldTolerance:      cfg.Governance.HoldTolerance,
			MedRiskDelta:       cfg.Governance.MedRiskDelta,
			MinProposalSamples: cfg.Governance.MinProposalSamples,
		}, replayer),
		Learning:          aggregator,
		Drift:             comparator,
		Samples:           resolver,
		Metrics:           collector.Governance,
		DefaultWindowDays: cfg.Governance.WindowDays,
	})

	// Signals cancel the context so background jobs stop alongside the
	// server.
	ctx, cancel := context.WithCancel(cli.SetupSignalHandler())
	defer cancel()

	// Background jobs: resolution sweep and timeline collection share
	// the intel schedule.
	sweeper := outcomes.NewSweeper(resolver, cfg.Symbols, cfg.Intel.Schedule)
	if err := sweeper.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	defer sweeper.Stop()

	timeline := intel.NewTimeline()
	scheduler := intel.NewScheduler(
		intel.NewCollector(cfg.Symbols, cfg.Intel.WindowDays, service, service, resolver, comparator),
		timeline,
		cfg.Intel.Schedule,
	)
	if err := scheduler.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	defer scheduler.Stop()
	if cfg.Intel.Schedule != "" {
		fmt.Printf("✓ Background jobs scheduled (%s)\n", cfg.Intel.Schedule)
	}

	// Health checks
	checker := health.New(0)
	registerHealthChecks(checker, stores, service, cfg.Symbols)

	// Optional config hot reload
	if runFlags.watch {
		if err := watchConfig(ctx, cfgFile); err != nil {
			slog.Warn("config watcher unavailable", "error", err)
		}
	}

	var metricsCollector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		metricsCollector = collector
	}

	srv := server.NewServer(&cfg.Server, server.Dependencies{
		Service:     service,
		Timeline:    timeline,
		Health:      checker,
		Metrics:     metricsCollector,
		MetricsPath: cfg.Telemetry.Metrics.Path,
		Version:     Version,
		Commit:      GitCommit,
		BuildTime:   BuildDate,
	})

	fmt.Println()
	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/healthz\n", cfg.Server.ListenAddress)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Start blocks until a shutdown signal, server error, or context
	// cancellation.
	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Println("✓ Server stopped")
	return nil
}

func registerHealthChecks(checker *health.Checker, stores *storeSet, service *governance.Service, symbols []string) {
	checker.RegisterCheck("policy_store", func(ctx context.Context) error {
		if len(symbols) == 0 {
			return nil
		}
		// Seeds defaults on first call, so this succeeds on a fresh store.
		_, err := service.CurrentPolicy(ctx, symbols[0])
		return err
	})
	checker.RegisterCheck("proposal_store", func(ctx context.Context) error {
		_, _, err := stores.Proposals.List(ctx, governance.ProposalFilter{Limit: 1})
		return err
	})
	checker.RegisterCheck("outcome_store", func(ctx context.Context) error {
		_, err := stores.Outcomes.Count(ctx, outcomes.Filter{Limit: 1})
		return err
	})
	checker.RegisterCheck("ledger", func(ctx context.Context) error {
		for _, symbol := range symbols {
			if err := service.VerifyLedger(ctx, symbol); err != nil {
				return err
			}
		}
		return nil
	})
}

// watchConfig reloads the configuration on file changes and applies the
// settings that are safe to change at runtime. Only the log level and
// format take effect; everything else requires a restart.
func watchConfig(ctx context.Context, path string) error {
	watcher, err := config.NewFileWatcher(&config.WatcherConfig{Path: path})
	if err != nil {
		return err
	}

	go func() {
		err := watcher.Watch(ctx, func() error {
			next, err := config.LoadConfigWithEnvOverrides(path)
			if err != nil {
				return fmt.Errorf("reload rejected: %w", err)
			}
			if _, err := logging.Setup(logging.Config{
				Level:  next.Telemetry.Logging.Level,
				Format: next.Telemetry.Logging.Format,
			}); err != nil {
				return fmt.Errorf("reload rejected: %w", err)
			}
			slog.Info("configuration reloaded",
				"log_level", next.Telemetry.Logging.Level,
				"note", "storage and server changes require a restart",
			)
			return nil
		})
		if err != nil {
			slog.Warn("config watcher exited", "error", err)
		}
	}()
	return nil
}

func printBanner(cfg *config.Config) {
	fmt.Printf("Fractal v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	slog.Debug("symbols tracked", "count", len(cfg.Symbols))
	slog.Debug("storage backend", "backend", cfg.Storage.Backend)
	if cfg.Intel.Schedule != "" {
		slog.Debug("intel schedule", "schedule", cfg.Intel.Schedule)
	}
}
