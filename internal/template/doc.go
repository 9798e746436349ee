// Package template defines the ordered stage sequences the engine can run.
// Templates are assembled from configuration plus built-ins during startup,
// validated once, and never mutated afterwards, so runs can share them without
// locking.
package template
