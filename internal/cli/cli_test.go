package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockstake/lockstake/internal/ledger"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

const validInstance = `
variant: native
store: vault.db
native:
  admin: stars1admin
  denom: ustars
  lockup_interval: 3600
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestValidate_ValidInstance(t *testing.T) {
	path := writeFile(t, t.TempDir(), "instance.yaml", validInstance)

	out, err := execute(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "valid native instance")
}

func TestValidate_ValidInstanceJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "instance.yaml", validInstance)

	out, err := execute(t, "--format", "json", "validate", path)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "native", data["variant"])
	assert.Equal(t, false, data["staked"])
}

func TestValidate_InvalidInstance(t *testing.T) {
	path := writeFile(t, t.TempDir(), "instance.yaml", "variant: multisig\nstore: vault.db\n")

	out, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "INVALID_CONFIG")
}

func TestRun_Scenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "instance.yaml", validInstance)
	scenario := writeFile(t, dir, "scenario.yaml", `
name: smoke
description: deposit then fail to withdraw early
instance: instance.yaml
balances:
  - principal: alice
    denom: ustars
    amount: 100
steps:
  - at: 0
    caller: alice
    invoke: deposit
    args:
      amount: 100
  - at: 3600
    caller: alice
    invoke: withdraw
    expect:
      error: STILL_LOCKED
`)

	out, err := execute(t, "run", scenario)
	require.NoError(t, err)
	assert.Contains(t, out, "scenario smoke: 2 steps")
	assert.Contains(t, out, "deposit alice -> ok")
	assert.Contains(t, out, "withdraw alice -> STILL_LOCKED")
	assert.Contains(t, out, "final state:")
}

func TestRun_ScenarioJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "instance.yaml", validInstance)
	scenario := writeFile(t, dir, "scenario.yaml", `
name: smoke
description: one deposit
instance: instance.yaml
balances:
  - principal: alice
    denom: ustars
    amount: 100
steps:
  - at: 0
    caller: alice
    invoke: deposit
    args:
      amount: 100
`)

	out, err := execute(t, "--format", "json", "run", scenario)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "smoke", data["scenario_name"])
}

func TestRun_MissingScenario(t *testing.T) {
	out, err := execute(t, "run", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "INVALID_SCENARIO")
}

func TestRun_FailedExpectation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "instance.yaml", validInstance)
	scenario := writeFile(t, dir, "scenario.yaml", `
name: smoke
description: withdraw with no position, expecting success
instance: instance.yaml
steps:
  - at: 0
    caller: alice
    invoke: withdraw
`)

	out, err := execute(t, "run", scenario)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "SCENARIO_FAILED")
}

func seedStore(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vault.db")
	store, err := ledger.Open(path)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.SaveConfig(ctx, map[string]any{"admin": "stars1admin", "denom": "ustars"}))
	require.NoError(t, store.PutPosition(ctx, ledger.Position{
		Key: "alice", Owner: "alice", Amount: 500, LockedSince: 0, LockedUntil: 3600,
	}))
	require.NoError(t, store.PutPosition(ctx, ledger.Position{
		Key: "bob", Owner: "bob", Amount: 250, LockedSince: 100, LockedUntil: 3700,
	}))
	return path
}

func TestPositions(t *testing.T) {
	path := seedStore(t)

	out, err := execute(t, "positions", path)
	require.NoError(t, err)
	assert.Contains(t, out, "2 position(s)")
	assert.Contains(t, out, "alice amount=500")

	out, err = execute(t, "positions", path, "--owner", "bob")
	require.NoError(t, err)
	assert.Contains(t, out, "1 position(s)")
	assert.Contains(t, out, "bob amount=250")
}

func TestPositions_JSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "positions", seedStore(t))
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(2), data["count"])
}

func TestPositions_ExclusiveFilters(t *testing.T) {
	_, err := execute(t, "positions", seedStore(t), "--owner", "a", "--collection", "b")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestPositions_MissingStore(t *testing.T) {
	out, err := execute(t, "positions", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "store not found")
}

func TestConfig(t *testing.T) {
	out, err := execute(t, "config", seedStore(t))
	require.NoError(t, err)
	assert.Contains(t, out, `"admin": "stars1admin"`)
	assert.Contains(t, out, `"denom": "ustars"`)
}

func TestConfig_EmptyStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.db")
	store, err := ledger.Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	out, err := execute(t, "config", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "NOT_FOUND")
}

func TestRoot_RejectsUnknownFormat(t *testing.T) {
	_, err := execute(t, "--format", "xml", "validate", "whatever.yaml")
	require.Error(t, err)
}

func TestExitError(t *testing.T) {
	err := NewExitError(ExitCommandError, "store not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, "store not found", err.Error())

	wrapped := WrapExitError(ExitFailure, "scenario failed", errors.New("boom"))
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
	assert.Equal(t, "scenario failed: boom", wrapped.Error())
	assert.Equal(t, "boom", wrapped.Unwrap().Error())

	chained := fmt.Errorf("outer: %w", wrapped)
	assert.Equal(t, ExitFailure, GetExitCode(chained))

	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}
