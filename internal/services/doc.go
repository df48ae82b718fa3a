// Package services defines shared utilities consumed by the caption and render
// pipelines and their external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and request
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures as
//     input, configuration, or stage errors.
//
// Use these helpers when wiring new adapters so error handling and
// observability stay uniform across the pipeline.
package services
