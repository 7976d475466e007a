// Package logging builds the slog loggers used across subflow and defines
// the standardized structured field names. Two output formats are
// supported: a compact console format and JSON.
package logging
