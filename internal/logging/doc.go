// Package logging wires slog with the console and JSON handlers used across
// the daemon and CLI. Console output groups fields beneath a header line that
// carries the component, run, and stage; JSON output is line-delimited with
// ts/level/msg keys for ingestion.
package logging
