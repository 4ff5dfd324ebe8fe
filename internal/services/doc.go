// Package services defines shared utilities consumed by the download,
// install, and image sync pipelines.
//
// Key responsibilities:
//   - Context helpers that stamp package names, pipeline stages, and
//     correlation identifiers for logging and the history journal.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent outcomes (failed vs skipped).
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// stays uniform across the download worker, install pass, and image sync.
package services
