package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8090"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultRequestTimeout  = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// Storage defaults
	DefaultStorageBackend = "sqlite"
	DefaultPoliciesPath   = "data/policies.db"
	DefaultGovernancePath = "data/governance.db"
	DefaultOutcomesPath   = "data/outcomes.db"
	DefaultMaxOpenConns   = 10
	DefaultWALMode        = true
	DefaultBusyTimeout    = 5 * time.Second

	// Governance defaults
	DefaultWindowDays         = 90
	DefaultLearningRate       = 0.20
	DefaultMaxWeightDelta     = 0.05
	DefaultHoldTolerance      = 0.005
	DefaultMedRiskDelta       = 0.03
	DefaultMinProposalSamples = 20

	// Intel defaults
	DefaultIntelSchedule   = "0 3 * * *"
	DefaultIntelWindowDays = 30

	// Telemetry defaults
	DefaultLoggingLevel   = "info"
	DefaultLoggingFormat  = "json"
	DefaultMetricsEnabled = true
	DefaultMetricsPath    = "/metrics"
)

// ApplyDefaults applies default values to any unset configuration fields.
// Boolean fields with a true default are applied unconditionally, since
// bools have zero value false and YAML cannot distinguish "unset" from
// "false" here.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	// Storage defaults
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.PoliciesPath == "" {
		cfg.Storage.PoliciesPath = DefaultPoliciesPath
	}
	if cfg.Storage.GovernancePath == "" {
		cfg.Storage.GovernancePath = DefaultGovernancePath
	}
	if cfg.Storage.OutcomesPath == "" {
		cfg.Storage.OutcomesPath = DefaultOutcomesPath
	}
	if cfg.Storage.MaxOpenConns == 0 {
		cfg.Storage.MaxOpenConns = DefaultMaxOpenConns
	}
	if !cfg.Storage.WALMode {
		cfg.Storage.WALMode = DefaultWALMode
	}
	if cfg.Storage.BusyTimeout == 0 {
		cfg.Storage.BusyTimeout = DefaultBusyTimeout
	}

	// Governance defaults
	if cfg.Governance.WindowDays == 0 {
		cfg.Governance.WindowDays = DefaultWindowDays
	}
	if cfg.Governance.LearningRate == 0 {
		cfg.Governance.LearningRate = DefaultLearningRate
	}
	if cfg.Governance.MaxWeightDelta == 0 {
		cfg.Governance.MaxWeightDelta = DefaultMaxWeightDelta
	}
	if cfg.Governance.HoldTolerance == 0 {
		cfg.Governance.HoldTolerance = DefaultHoldTolerance
	}
	if cfg.Governance.MedRiskDelta == 0 {
		cfg.Governance.MedRiskDelta = DefaultMedRiskDelta
	}
	if cfg.Governance.MinProposalSamples == 0 {
		cfg.Governance.MinProposalSamples = DefaultMinProposalSamples
	}

	// Intel defaults. An explicitly empty schedule stays empty only when
	// the whole section is present; a missing section gets the default.
	if cfg.Intel.Schedule == "" && cfg.Intel.WindowDays == 0 {
		cfg.Intel.Schedule = DefaultIntelSchedule
	}
	if cfg.Intel.WindowDays == 0 {
		cfg.Intel.WindowDays = DefaultIntelWindowDays
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if !cfg.Telemetry.Metrics.Enabled {
		cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
}
