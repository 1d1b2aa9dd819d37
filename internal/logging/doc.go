// Package logging assembles structured slog loggers and formatting helpers used
// by the vidmentor daemon and CLI.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so router and transport code can
// tag log lines with request IDs, origins, and message types. The level is held
// in a slog.LevelVar so the daemon can change verbosity when its configuration
// file is edited. A no-op logger is provided for tests and wiring code.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// data with the same shape as the rest of the system.
package logging
