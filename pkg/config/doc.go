// Package config provides configuration management for Fractal.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides. It provides a type-safe
// configuration system with validation and sensible defaults.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention FRACTAL_SECTION_FIELD.
// For example:
//
//   - FRACTAL_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - FRACTAL_STORAGE_BACKEND overrides storage.backend
//   - FRACTAL_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Environment variables always take precedence over file-based configuration.
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides
// earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Hot Reload
//
// FileWatcher watches the configuration file and triggers a reload callback
// after a debounce interval. Only the governance tuning section is safe to
// change at runtime; the callers decide what to re-apply.
package config
