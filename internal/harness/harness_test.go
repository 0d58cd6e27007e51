package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name))
	require.NoError(t, err)
	return scenario
}

func TestRun_NativeLifecycle(t *testing.T) {
	require.NoError(t, RunWithGolden(t, loadTestScenario(t, "native_lifecycle.yaml")))
}

func TestRun_FracRedemption(t *testing.T) {
	require.NoError(t, RunWithGolden(t, loadTestScenario(t, "frac_redemption.yaml")))
}

func TestRun_NativeStake(t *testing.T) {
	require.NoError(t, RunWithGolden(t, loadTestScenario(t, "native_stake.yaml")))
}

func TestRun_TokenCustody(t *testing.T) {
	result, err := Run(loadTestScenario(t, "cw721_custody.yaml"))
	require.NoError(t, err)

	require.Len(t, result.Trace, 5)

	// Deposit before the escrow holds the token is rejected.
	assert.Equal(t, "CUSTODY_NOT_CONFIRMED", result.Trace[0].Error)

	// After the transfer the deposit sticks.
	assert.Empty(t, result.Trace[2].Error)
	assert.Equal(t, "alice", result.Trace[2].Attributes["owner"])

	// Withdrawal is owner-only and emits the return transfer.
	assert.Equal(t, "UNAUTHORIZED", result.Trace[3].Error)
	require.Len(t, result.Trace[4].Instructions, 1)
	assert.Equal(t, "transfer_token", result.Trace[4].Instructions[0]["kind"])
	assert.Equal(t, "alice", result.Trace[4].Instructions[0]["recipient"])

	// The token is back with its owner and no position remains.
	assert.Empty(t, result.Final.Positions)
}

func TestRun_ExpectationMismatchFailsTheRun(t *testing.T) {
	scenario := loadTestScenario(t, "native_lifecycle.yaml")

	// Flip a success expectation into a fault expectation.
	scenario.Steps[0].Expect = &Expect{Error: "STILL_LOCKED"}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "steps[0]")
}

func TestRun_UnexpectedFaultFailsTheRun(t *testing.T) {
	scenario := loadTestScenario(t, "native_lifecycle.yaml")

	// Step 3 fails with STILL_LOCKED; drop the expectation.
	scenario.Steps[2].Expect = nil

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected failure")
}

// Block time inside a run is held by a monotonic clock: a hand-built step
// list that rewinds it panics instead of executing out of order. LoadScenario
// rejects such scenarios up front; this covers runs built programmatically.
func TestRun_RefusesRewoundBlockTime(t *testing.T) {
	scenario := loadTestScenario(t, "native_lifecycle.yaml")
	// Second step runs at t=1000; pulling the third back rewinds the clock.
	scenario.Steps[2].At = 500

	assert.Panics(t, func() { Run(scenario) })
}

func TestRun_IsReproducible(t *testing.T) {
	scenario := loadTestScenario(t, "native_stake.yaml")

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	firstJSON, err := marshalCanonical(first.toCanonicalMap())
	require.NoError(t, err)
	secondJSON, err := marshalCanonical(second.toCanonicalMap())
	require.NoError(t, err)
	assert.Equal(t, string(firstJSON), string(secondJSON))
}
