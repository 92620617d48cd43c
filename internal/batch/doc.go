// Package batch schedules tool executions over a dependency graph.
//
// An Executor runs every tool whose gating dependencies are satisfied, waits
// for the first running tool to finish, re-evaluates the graph and repeats.
// Failures are recorded on the Record and never abort the batch; a batch whose
// remaining tools can never become ready returns a partial result.
package batch
