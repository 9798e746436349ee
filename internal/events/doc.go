// Package events carries the ordered progress stream for workflow runs.
// Stage boundaries, gate decisions, and terminal transitions publish here;
// observers poll with a cursor or attach sinks. Delivery is advisory: a slow
// or panicking observer never affects stage execution.
package events
