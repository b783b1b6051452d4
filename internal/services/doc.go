// Package services defines shared utilities consumed by the pipeline stages
// and the upstream integration.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and entry identity keys
//     for logging.
//   - Structured error markers plus the Wrap helper that separate retryable
//     upstream failures from conditions that abort a run outright.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
