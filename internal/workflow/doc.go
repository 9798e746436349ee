// Package workflow drives runs through their template's stage sequence.
//
// The Coordinator executes a single run: it wires stage inputs from the
// initial payload and prior outputs, invokes capabilities under per-stage
// timeouts, persists stage results, and evaluates the quality gate at the
// template's checkpoint, rewinding to the regeneration start on a REGENERATE
// decision. The Manager runs a pool of workers that claim pending runs from
// the store, reclaims runs whose heartbeat went stale, and exposes run
// cancellation and status aggregation.
package workflow
