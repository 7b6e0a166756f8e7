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
// errors. The configuration is not modified by environment variables; use
// LoadConfigWithEnvOverrides for that functionality.
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
// applies environment variable overrides. Environment variables follow the
// naming convention FRACTAL_SECTION_FIELD (e.g., FRACTAL_SERVER_LISTEN_ADDRESS)
// and always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
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

// applyEnvOverrides applies environment variable overrides to the
// configuration. Environment variables use the format FRACTAL_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := os.Getenv("FRACTAL_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("FRACTAL_SERVER_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if val := os.Getenv("FRACTAL_SERVER_WRITE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if val := os.Getenv("FRACTAL_SERVER_IDLE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.IdleTimeout = d
		}
	}
	if val := os.Getenv("FRACTAL_SERVER_SHUTDOWN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ShutdownTimeout = d
		}
	}
	if val := os.Getenv("FRACTAL_SERVER_REQUEST_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.RequestTimeout = d
		}
	}
	if val := os.Getenv("FRACTAL_SERVER_MAX_HEADER_BYTES"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Server.MaxHeaderBytes = i
		}
	}

	// Storage overrides
	if val := os.Getenv("FRACTAL_STORAGE_BACKEND"); val != "" {
		cfg.Storage.Backend = val
	}
	if val := os.Getenv("FRACTAL_STORAGE_POLICIES_PATH"); val != "" {
		cfg.Storage.PoliciesPath = val
	}
	if val := os.Getenv("FRACTAL_STORAGE_GOVERNANCE_PATH"); val != "" {
		cfg.Storage.GovernancePath = val
	}
	if val := os.Getenv("FRACTAL_STORAGE_OUTCOMES_PATH"); val != "" {
		cfg.Storage.OutcomesPath = val
	}
	if val := os.Getenv("FRACTAL_STORAGE_MAX_OPEN_CONNS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Storage.MaxOpenConns = i
		}
	}
	if val := os.Getenv("FRACTAL_STORAGE_BUSY_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Storage.BusyTimeout = d
		}
	}

	// Governance overrides
	if val := os.Getenv("FRACTAL_GOVERNANCE_WINDOW_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Governance.WindowDays = i
		}
	}
	if val := os.Getenv("FRACTAL_GOVERNANCE_LEARNING_RATE"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Governance.LearningRate = f
		}
	}
	if val := os.Getenv("FRACTAL_GOVERNANCE_MAX_WEIGHT_DELTA"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Governance.MaxWeightDelta = f
		}
	}
	if val := os.Getenv("FRACTAL_GOVERNANCE_MIN_PROPOSAL_SAMPLES"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Governance.MinProposalSamples = i
		}
	}

	// Intel overrides
	if val := os.Getenv("FRACTAL_INTEL_SCHEDULE"); val != "" {
		cfg.Intel.Schedule = val
	}
	if val := os.Getenv("FRACTAL_INTEL_WINDOW_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Intel.WindowDays = i
		}
	}

	// Symbols override: comma-separated list
	if val := os.Getenv("FRACTAL_SYMBOLS"); val != "" {
		parts := strings.Split(val, ",")
		symbols := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				symbols = append(symbols, trimmed)
			}
		}
		if len(symbols) > 0 {
			cfg.Symbols = symbols
		}
	}

	// Telemetry overrides
	if val := os.Getenv("FRACTAL_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("FRACTAL_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("FRACTAL_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("FRACTAL_TELEMETRY_METRICS_PATH"); val != "" {
		cfg.Telemetry.Metrics.Path = val
	}
}
