// Package logging assembles structured slog loggers and formatting helpers used
// across stacks.
//
// It owns the console and JSON handlers, routes a JSON copy of each run to a
// per-run file under the log directory, and exposes context-aware helpers so
// stage code can tag log lines with run IDs, stages, and entry keys. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail.
package logging
