// Package stage defines the contract between the workflow coordinator and the
// capabilities that produce content. A capability receives a wired input
// payload and returns an output payload plus a quality score; everything else
// (ordering, gating, persistence) belongs to the coordinator.
package stage
