// Package gate decides whether a checkpoint stage result is good enough to
// continue, needs another regeneration cycle, or exhausts the run. Thresholds
// are snapshotted into the run at start so concurrent config changes never
// affect an executing run.
package gate
