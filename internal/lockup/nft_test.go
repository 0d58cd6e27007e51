package lockup

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockstake/lockstake/internal/fault"
	"github.com/lockstake/lockstake/internal/ledger"
	"github.com/lockstake/lockstake/internal/types"
)

// fakeRegistry is a map-backed custody registry.
type fakeRegistry struct {
	owners map[string]types.Principal
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{owners: make(map[string]types.Principal)}
}

func (r *fakeRegistry) set(collection types.Principal, tokenID string, owner types.Principal) {
	r.owners[string(collection)+"/"+tokenID] = owner
}

func (r *fakeRegistry) OwnerOf(collection types.Principal, tokenID string) (types.Principal, error) {
	owner, ok := r.owners[string(collection)+"/"+tokenID]
	if !ok {
		return "", fmt.Errorf("unknown token %s/%s", collection, tokenID)
	}
	return owner, nil
}

const escrow = types.Principal("vault")

func openTokenVault(t *testing.T, cfg TokenConfig, registry *fakeRegistry) *TokenVault {
	t.Helper()
	store, err := ledger.Open(filepath.Join(t.TempDir(), "vault.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	vault, err := NewTokenVault(context.Background(), store, cfg, escrow, registry, NewSequenceGenerator(nil))
	require.NoError(t, err)
	return vault
}

func tokenTestConfig() TokenConfig {
	return TokenConfig{Admin: "admin", LockupInterval: 3600, Collections: []types.Principal{"colA", "colB"}}
}

func TestReceiveToken_CreatesPosition(t *testing.T) {
	registry := newFakeRegistry()
	registry.set("colA", "42", escrow)
	vault := openTokenVault(t, tokenTestConfig(), registry)

	pos, receipt, err := vault.ReceiveToken(context.Background(), "alice", "colA", "42", 100)
	require.NoError(t, err)

	assert.Equal(t, "colA/42", pos.Key)
	assert.Equal(t, types.Principal("alice"), pos.Owner)
	assert.Equal(t, types.Amount(1), pos.Amount)
	assert.Equal(t, types.Timestamp(3700), pos.LockedUntil)
	assert.Equal(t, "deposit", receipt.Method)
	assert.Empty(t, receipt.Instructions)
}

func TestReceiveToken_RejectsUnknownCollection(t *testing.T) {
	registry := newFakeRegistry()
	registry.set("colX", "1", escrow)
	vault := openTokenVault(t, tokenTestConfig(), registry)

	_, _, err := vault.ReceiveToken(context.Background(), "alice", "colX", "1", 0)
	assert.True(t, fault.IsCode(err, fault.CodeUnsupportedAsset))
}

// A deposit notification is only honored once the registry confirms the
// escrow actually holds the token.
func TestReceiveToken_RequiresCustody(t *testing.T) {
	registry := newFakeRegistry()
	registry.set("colA", "42", "alice") // never transferred
	vault := openTokenVault(t, tokenTestConfig(), registry)

	_, _, err := vault.ReceiveToken(context.Background(), "alice", "colA", "42", 0)
	assert.True(t, fault.IsCode(err, fault.CodeCustodyNotConfirmed))

	count, countErr := vault.Count(context.Background())
	require.NoError(t, countErr)
	assert.Equal(t, uint64(0), count)
}

func TestTokenWithdraw_OwnerOnly(t *testing.T) {
	registry := newFakeRegistry()
	registry.set("colA", "42", escrow)
	vault := openTokenVault(t, tokenTestConfig(), registry)
	ctx := context.Background()

	_, _, err := vault.ReceiveToken(ctx, "alice", "colA", "42", 0)
	require.NoError(t, err)

	_, err = vault.Withdraw(ctx, "bob", "colA", "42", 4000)
	assert.True(t, fault.IsCode(err, fault.CodeUnauthorized))

	receipt, err := vault.Withdraw(ctx, "alice", "colA", "42", 4000)
	require.NoError(t, err)
	require.Len(t, receipt.Instructions, 1)
	assert.Equal(t, TransferToken{Collection: "colA", TokenID: "42", Recipient: "alice"}, receipt.Instructions[0])

	_, err = vault.PositionByToken(ctx, "colA", "42")
	assert.True(t, fault.IsCode(err, fault.CodeNotFound))
}

func TestTokenWithdraw_StrictUnlockBoundary(t *testing.T) {
	registry := newFakeRegistry()
	registry.set("colA", "42", escrow)
	vault := openTokenVault(t, tokenTestConfig(), registry)
	ctx := context.Background()

	_, _, err := vault.ReceiveToken(ctx, "alice", "colA", "42", 100)
	require.NoError(t, err)

	_, err = vault.Withdraw(ctx, "alice", "colA", "42", 3700)
	assert.True(t, fault.IsCode(err, fault.CodeStillLocked))

	_, err = vault.Withdraw(ctx, "alice", "colA", "42", 3701)
	assert.NoError(t, err)
}

func TestTokenWithdraw_UnknownToken(t *testing.T) {
	vault := openTokenVault(t, tokenTestConfig(), newFakeRegistry())

	_, err := vault.Withdraw(context.Background(), "alice", "colA", "404", 10000)
	assert.True(t, fault.IsCode(err, fault.CodeNotFound))
}

func TestTokenQueries(t *testing.T) {
	registry := newFakeRegistry()
	registry.set("colA", "1", escrow)
	registry.set("colA", "2", escrow)
	registry.set("colB", "1", escrow)
	vault := openTokenVault(t, tokenTestConfig(), registry)
	ctx := context.Background()

	for _, deposit := range []struct {
		owner      types.Principal
		collection types.Principal
		tokenID    string
	}{
		{"alice", "colA", "1"},
		{"alice", "colB", "1"},
		{"bob", "colA", "2"},
	} {
		_, _, err := vault.ReceiveToken(ctx, deposit.owner, deposit.collection, deposit.tokenID, 0)
		require.NoError(t, err)
	}

	byOwner, err := vault.PositionsByOwner(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, byOwner, 2)

	byCollection, err := vault.PositionsByCollection(ctx, "colA")
	require.NoError(t, err)
	assert.Len(t, byCollection, 2)

	count, err := vault.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}

func TestTokenUpdateConfig_ReplacesCollections(t *testing.T) {
	registry := newFakeRegistry()
	registry.set("colC", "1", escrow)
	vault := openTokenVault(t, tokenTestConfig(), registry)
	ctx := context.Background()

	_, err := vault.UpdateConfig(ctx, "mallory", 60, []types.Principal{"colC"})
	assert.True(t, fault.IsCode(err, fault.CodeUnauthorized))

	_, err = vault.UpdateConfig(ctx, "admin", 60, []types.Principal{"colC"})
	require.NoError(t, err)

	// colA was dropped by the wholesale replace.
	_, _, err = vault.ReceiveToken(ctx, "alice", "colA", "1", 0)
	assert.True(t, fault.IsCode(err, fault.CodeUnsupportedAsset))

	pos, _, err := vault.ReceiveToken(ctx, "alice", "colC", "1", 100)
	require.NoError(t, err)
	assert.Equal(t, types.Timestamp(160), pos.LockedUntil)
}
