// Package flows holds the state machines behind the Engine's login,
// second-factor, refresh and logout operations.
//
// Each Run function takes a dependency struct of plain functions and
// returns a result with a failure kind instead of a root-level error. The
// Engine maps kinds to its public errors, metrics and audit events. Flows
// keep no state between calls and perform no I/O except through their
// dependencies.
package flows
