// Package preflight provides readiness checks for the filesystem paths,
// templates, and stage tools that Inkwell depends on.
//
// These checks run in two contexts:
//   - Daemon startup calls RunAll before opening the run store. A failed
//     result is a configuration error and aborts initialization; a daemon
//     that cannot write its state directory has nothing useful to do.
//   - The CLI "inkwell status" command uses CheckStageTools to display
//     tool availability when the daemon is not running.
//
// Tool availability is deliberately not part of RunAll: a missing binary
// only affects runs routed through that stage, so it is surfaced as a
// warning rather than blocking startup.
package preflight
