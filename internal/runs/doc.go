// Package runs persists workflow runs in SQLite and exposes helpers for
// driving their lifecycle.
//
// The Store manages database connections, schema initialization, stats
// queries, heartbeat tracking, interrupted-run recovery, and the stage result
// history each run accumulates. Runs capture progress, attempt counts, and
// terminal reasons so the coordinator and the control plane can observe state
// without sharing locks.
//
// The database is treated as the operational record of live and recently
// terminal runs rather than a long-term archive. Schema changes bump the
// version in schema.go; users clear the database to adopt the new schema.
//
// Treat this package as the single source of truth for run semantics; when you
// add new statuses or columns, update schema.sql and bump schemaVersion.
package runs
