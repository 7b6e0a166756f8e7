package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration
// field.
type FieldError struct {
	// Field is the dotted path to the configuration field
	// (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a
// configuration. It implements the error interface and provides access to
// all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateGovernance(&cfg.Governance)...)
	errs = append(errs, validateIntel(&cfg.Intel)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.idle_timeout",
			Message: "idle timeout must be positive",
		})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes must be non-negative",
		})
	}

	return errs
}

func validateStorage(cfg *StorageConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
		// Paths ignored.
	case "sqlite":
		if cfg.PoliciesPath == "" {
			errs = append(errs, FieldError{
				Field:   "storage.policies_path",
				Message: "policies path is required for sqlite backend",
			})
		}
		if cfg.GovernancePath == "" {
			errs = append(errs, FieldError{
				Field:   "storage.governance_path",
				Message: "governance path is required for sqlite backend",
			})
		}
		if cfg.OutcomesPath == "" {
			errs = append(errs, FieldError{
				Field:   "storage.outcomes_path",
				Message: "outcomes path is required for sqlite backend",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("unknown backend %q, must be one of: memory, sqlite", cfg.Backend),
		})
	}

	if cfg.MaxOpenConns < 0 {
		errs = append(errs, FieldError{
			Field:   "storage.max_open_conns",
			Message: "max open connections must be non-negative",
		})
	}
	if cfg.BusyTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "storage.busy_timeout",
			Message: "busy timeout must be positive",
		})
	}

	return errs
}

func validateGovernance(cfg *GovernanceConfig) []FieldError {
	var errs []FieldError

	if cfg.WindowDays <= 0 {
		errs = append(errs, FieldError{
			Field:   "governance.window_days",
			Message: "window days must be positive",
		})
	}
	if cfg.LearningRate <= 0 || cfg.LearningRate > 1 {
		errs = append(errs, FieldError{
			Field:   "governance.learning_rate",
			Message: "learning rate must be in (0, 1]",
		})
	}
	if cfg.MaxWeightDelta <= 0 || cfg.MaxWeightDelta > 0.5 {
		errs = append(errs, FieldError{
			Field:   "governance.max_weight_delta",
			Message: "max weight delta must be in (0, 0.5]",
		})
	}
	if cfg.HoldTolerance < 0 {
		errs = append(errs, FieldError{
			Field:   "governance.hold_tolerance",
			Message: "hold tolerance must be non-negative",
		})
	}
	if cfg.MedRiskDelta <= 0 {
		errs = append(errs, FieldError{
			Field:   "governance.med_risk_delta",
			Message: "med risk delta must be positive",
		})
	}
	if cfg.MinProposalSamples <= 0 {
		errs = append(errs, FieldError{
			Field:   "governance.min_proposal_samples",
			Message: "min proposal samples must be positive",
		})
	}

	return errs
}

func validateIntel(cfg *IntelConfig) []FieldError {
	var errs []FieldError

	// Empty schedule disables scheduled collection; anything else must be
	// a valid standard cron expression.
	if cfg.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "intel.schedule",
				Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.Schedule, err),
			})
		}
	}
	if cfg.WindowDays <= 0 {
		errs = append(errs, FieldError{
			Field:   "intel.window_days",
			Message: "window days must be positive",
		})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("unknown level %q, must be one of: debug, info, warn, error", cfg.Logging.Level),
		})
	}

	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("unknown format %q, must be one of: json, text", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Path == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path is required when metrics are enabled",
		})
	}

	return errs
}
