package config

import (
	"errors"
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := &Config{Symbols: []string{"BTC"}}
	ApplyDefaults(cfg)
	return cfg
}

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Server.ListenAddress = ""
	cfg.Storage.Backend = "postgres"
	cfg.Governance.LearningRate = -1

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}

	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error type = %T, want ValidationError", err)
	}
	if len(verr.Errors) != 3 {
		t.Fatalf("got %d errors, want 3: %v", len(verr.Errors), verr)
	}
}

func TestValidate_FieldRules(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		field   string
		message string
	}{
		{
			name:   "negative read timeout",
			mutate: func(c *Config) { c.Server.ReadTimeout = -1 },
			field:  "server.read_timeout",
		},
		{
			name:   "unknown backend",
			mutate: func(c *Config) { c.Storage.Backend = "etcd" },
			field:  "storage.backend",
		},
		{
			name: "sqlite without governance path",
			mutate: func(c *Config) {
				c.Storage.Backend = "sqlite"
				c.Storage.GovernancePath = ""
			},
			field: "storage.governance_path",
		},
		{
			name:   "learning rate above one",
			mutate: func(c *Config) { c.Governance.LearningRate = 1.2 },
			field:  "governance.learning_rate",
		},
		{
			name:   "excessive max weight delta",
			mutate: func(c *Config) { c.Governance.MaxWeightDelta = 0.8 },
			field:  "governance.max_weight_delta",
		},
		{
			name:   "zero window days",
			mutate: func(c *Config) { c.Governance.WindowDays = -5 },
			field:  "governance.window_days",
		},
		{
			name:    "bad cron schedule",
			mutate:  func(c *Config) { c.Intel.Schedule = "every tuesday" },
			field:   "intel.schedule",
			message: "invalid cron expression",
		},
		{
			name:   "unknown log level",
			mutate: func(c *Config) { c.Telemetry.Logging.Level = "verbose" },
			field:  "telemetry.logging.level",
		},
		{
			name:   "unknown log format",
			mutate: func(c *Config) { c.Telemetry.Logging.Format = "logfmt" },
			field:  "telemetry.logging.format",
		},
		{
			name: "metrics enabled without path",
			mutate: func(c *Config) {
				c.Telemetry.Metrics.Enabled = true
				c.Telemetry.Metrics.Path = ""
			},
			field: "telemetry.metrics.path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not mention field %q", err.Error(), tt.field)
			}
			if tt.message != "" && !strings.Contains(err.Error(), tt.message) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.message)
			}
		})
	}
}

func TestValidate_MemoryBackendIgnoresPaths(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.Backend = "memory"
	cfg.Storage.PoliciesPath = ""
	cfg.Storage.GovernancePath = ""
	cfg.Storage.OutcomesPath = ""

	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate_EmptyScheduleDisablesCollection(t *testing.T) {
	cfg := validConfig()
	cfg.Intel.Schedule = ""

	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
