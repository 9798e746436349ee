// Package services defines shared utilities consumed by the workflow
// coordinator, the stage capabilities, and the control-plane surfaces.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage identifiers, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent terminal run statuses (failed vs cancelled).
//   - Detail extraction so failure handlers can log kind, operation, and hint
//     fields without re-parsing error strings.
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error handling, observability) stays uniform across the engine.
package services
