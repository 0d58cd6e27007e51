// Package harness runs vault scenarios deterministically.
//
// A scenario names an instance file, seed state, and a sequence of timed
// operations with expected outcomes. The runner deploys the instance against
// in-memory stores and in-memory fakes for the host's bank, token-factory,
// and custody registry, executes the steps, and produces a trace plus the
// final positions and balances.
//
// Determinism is the point: block time comes from the steps, receipt tokens
// from a sequence generator, and trace sequence numbers from a logical
// clock, so the same scenario always produces byte-identical canonical JSON.
// Golden files under testdata/golden pin that output.
package harness
