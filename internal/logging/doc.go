// Package logging assembles structured slog loggers and formatting helpers used
// across comfyctl.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so submission and tracking code
// can tag log lines with prompt and client identifiers. The package also
// provides a no-op logger for tests and wiring code that cannot fail, plus a
// sampler that keeps step-progress logging readable.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// data with the same shape as the rest of the CLI.
package logging
