// Package logging configures structured logging for Fractal.
//
// It builds log/slog loggers from configuration (level, format, source
// annotation) and installs the process-wide default. Components attach a
// "component" attribute to the default logger rather than carrying logger
// plumbing through constructors.
package logging
