// Package daemon coordinates the long-running Inkwell process.
//
// It ties configuration, the run store, the workflow manager, the run
// service, and the event bus into a single lifecycle with flock-based
// locking to prevent multiple instances. The daemon exposes the run
// maintenance helpers and status snapshots that the IPC layer serves to
// the CLI.
//
// Keep orchestration logic here: stage execution and gate decisions live
// in their respective packages while the daemon focuses on startup,
// shutdown, and high level coordination.
package daemon
