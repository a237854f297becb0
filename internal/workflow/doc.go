// Package workflow implements Temporal workflow definitions for go-themis.
//
// Workflows hold only deterministic orchestration: every computation,
// including pure scoring, runs in an activity so results are recorded in
// history and replay never re-evaluates user expressions.
//
// Workflows should not contain any non-deterministic operations such as
// random number generation, system time access, map iteration order, or
// external I/O.
package workflow
