package config

import "time"

// Config is the root configuration structure for Fractal. It contains all
// configuration sections for the HTTP server, storage backends, governance
// tuning, intelligence collection, and telemetry.
type Config struct {
	// Server contains HTTP API server configuration including listen
	// address and timeouts.
	Server ServerConfig `yaml:"server"`

	// Storage contains configuration for the policy, proposal, ledger,
	// and outcome stores.
	Storage StorageConfig `yaml:"storage"`

	// Governance contains tuning for proposal derivation and the
	// guardrail gates.
	Governance GovernanceConfig `yaml:"governance"`

	// Intel contains configuration for scheduled timeline collection.
	Intel IntelConfig `yaml:"intel"`

	// Symbols is the list of tracked symbols. Intelligence collection
	// and ledger verification iterate over this list.
	Symbols []string `yaml:"symbols"`

	// Telemetry contains configuration for observability including
	// logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP API server.
type ServerConfig struct {
	// ListenAddress is the address and port for the server to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8090").
	// Default: "127.0.0.1:8090"
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

	// RequestTimeout bounds handler execution per request.
	// Default: 30s
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server
	// will read parsing request headers.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// StorageConfig contains configuration for persistent stores.
type StorageConfig struct {
	// Backend selects the storage backend for all stores.
	// Valid values: "memory", "sqlite".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// PoliciesPath is the SQLite database file for versioned policies.
	// Default: "data/policies.db"
	PoliciesPath string `yaml:"policies_path"`

	// GovernancePath is the SQLite database file for proposals and the
	// application ledger.
	// Default: "data/governance.db"
	GovernancePath string `yaml:"governance_path"`

	// OutcomesPath is the SQLite database file for prediction snapshots.
	// Default: "data/outcomes.db"
	OutcomesPath string `yaml:"outcomes_path"`

	// MaxOpenConns is the maximum number of open connections per
	// database.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// WALMode enables Write-Ahead Logging for better concurrency.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is the duration to wait when a database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// GovernanceConfig contains tuning for proposal derivation and risk
// grading. Zero values fall back to the engine defaults.
type GovernanceConfig struct {
	// WindowDays is the learning window used when deriving proposals.
	// Default: 90
	WindowDays int `yaml:"window_days"`

	// LearningRate scales how far a bucket's hit-rate edge moves its
	// weight.
	// Default: 0.20
	LearningRate float64 `yaml:"learning_rate"`

	// MaxWeightDelta caps any single field change per proposal.
	// Default: 0.05
	MaxWeightDelta float64 `yaml:"max_weight_delta"`

	// HoldTolerance is the no-op band: when every delta is smaller, the
	// verdict is HOLD.
	// Default: 0.005
	HoldTolerance float64 `yaml:"hold_tolerance"`

	// MedRiskDelta is the delta magnitude above which a clean proposal
	// is graded MED instead of LOW.
	// Default: 0.03
	MedRiskDelta float64 `yaml:"med_risk_delta"`

	// MinProposalSamples is the resolved-sample floor for proposal
	// creation.
	// Default: 20
	MinProposalSamples int `yaml:"min_proposal_samples"`
}

// IntelConfig contains configuration for scheduled timeline collection.
type IntelConfig struct {
	// Schedule is a standard 5-field cron expression for timeline
	// collection. An empty schedule disables scheduled collection.
	// Default: "0 3 * * *" (daily at 3 AM)
	Schedule string `yaml:"schedule"`

	// WindowDays is the lookback window for collected counts.
	// Default: 30
	WindowDays int `yaml:"window_days"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the log output format: "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether the metrics endpoint is exposed.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`
}
