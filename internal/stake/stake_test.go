package stake

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockstake/lockstake/internal/fault"
	"github.com/lockstake/lockstake/internal/ledger"
	"github.com/lockstake/lockstake/internal/lockup"
	"github.com/lockstake/lockstake/internal/types"
)

// fakeBank holds a single balance for the engine principal.
type fakeBank struct {
	balance types.Amount
}

func (b *fakeBank) Balance(context.Context, types.Principal, string) (types.Amount, error) {
	return b.balance, nil
}

func openStore(t *testing.T, name string) *ledger.Store {
	t.Helper()
	store, err := ledger.Open(filepath.Join(t.TempDir(), name))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// testSchedule pays 100 ustars over [1, 36001) in 3600s intervals:
// ten intervals, ten tokens each.
func testSchedule() Config {
	return Config{Admin: "admin", Denom: "ustars", Total: 100, Start: 1, End: 36001, Interval: 3600}
}

func newNativeEngine(t *testing.T, cfg Config) (*lockup.NativeVault, *Engine, *fakeBank) {
	t.Helper()
	ctx := context.Background()

	vault, err := lockup.NewNativeVault(ctx, openStore(t, "vault.db"),
		lockup.NativeConfig{Admin: "admin", Denom: "ustars", LockupInterval: 3600},
		lockup.NewSequenceGenerator(nil))
	require.NoError(t, err)

	bank := &fakeBank{balance: cfg.Total}
	engine, err := NewEngine(ctx, openStore(t, "stake.db"), cfg,
		NativeSource{Vault: vault}, bank, "engine", lockup.NewSequenceGenerator(nil))
	require.NoError(t, err)
	return vault, engine, bank
}

func deposit(t *testing.T, vault *lockup.NativeVault, owner types.Principal, amount types.Amount, now types.Timestamp) {
	t.Helper()
	_, _, err := vault.Deposit(context.Background(), owner, []types.Coin{types.NewCoin("ustars", amount)}, now)
	require.NoError(t, err)
}

func sentAmount(t *testing.T, receipt lockup.Receipt) types.Amount {
	t.Helper()
	require.Len(t, receipt.Instructions, 1)
	send, ok := receipt.Instructions[0].(lockup.SendFunds)
	require.True(t, ok)
	return send.Coin.Amount
}

func TestConfig_Validation(t *testing.T) {
	base := testSchedule()

	cfg := base
	cfg.Admin = ""
	assert.True(t, fault.IsCode(cfg.validate(), fault.CodeInvalidConfig))

	cfg = base
	cfg.Interval = 0
	assert.True(t, fault.IsCode(cfg.validate(), fault.CodeInvalidConfig))

	cfg = base
	cfg.End = cfg.Start
	assert.True(t, fault.IsCode(cfg.validate(), fault.CodeInvalidConfig))

	assert.NoError(t, base.validate())
}

func TestClaim_WindowBounds(t *testing.T) {
	vault, engine, _ := newNativeEngine(t, testSchedule())
	ctx := context.Background()
	deposit(t, vault, "alice", 1, 0)

	// The window is open on (start, end): both ends are excluded.
	_, err := engine.Claim(ctx, "alice", Subject{Principal: "alice"}, 1)
	assert.True(t, fault.IsCode(err, fault.CodeNotStarted))

	_, err = engine.Claim(ctx, "alice", Subject{Principal: "alice"}, 36001)
	assert.True(t, fault.IsCode(err, fault.CodeEnded))
}

func TestClaim_NativeAuth(t *testing.T) {
	vault, engine, _ := newNativeEngine(t, testSchedule())
	deposit(t, vault, "alice", 1, 0)

	_, err := engine.Claim(context.Background(), "bob", Subject{Principal: "alice"}, 3701)
	assert.True(t, fault.IsCode(err, fault.CodeUnauthorized))
}

func TestClaim_UnknownStake(t *testing.T) {
	_, engine, _ := newNativeEngine(t, testSchedule())

	_, err := engine.Claim(context.Background(), "nobody", Subject{Principal: "nobody"}, 3701)
	assert.True(t, fault.IsCode(err, fault.CodeNotFound))
}

// A stake locked before the distribution started accrues from start, not
// from its lock time: one interval past start pays one interval's reward.
func TestClaim_FirstClaimClampsToStart(t *testing.T) {
	vault, engine, _ := newNativeEngine(t, testSchedule())
	ctx := context.Background()
	deposit(t, vault, "alice", 1, 0)

	receipt, err := engine.Claim(ctx, "alice", Subject{Principal: "alice"}, 3701)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(10), sentAmount(t, receipt))

	last, ok, err := engine.LastClaim(ctx, Subject{Principal: "alice"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.Timestamp(3701), last)
}

func TestClaim_IntervalGate(t *testing.T) {
	vault, engine, _ := newNativeEngine(t, testSchedule())
	ctx := context.Background()
	subject := Subject{Principal: "alice"}
	deposit(t, vault, "alice", 1, 0)

	// One second short of a full interval past start.
	_, err := engine.Claim(ctx, "alice", subject, 3600)
	assert.True(t, fault.IsCode(err, fault.CodeIntervalNotReached))

	// A rejected claim leaves no checkpoint behind.
	_, ok, err := engine.LastClaim(ctx, subject)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = engine.Claim(ctx, "alice", subject, 3601)
	require.NoError(t, err)

	// The checkpoint resets the gate to the claim time, not the interval
	// boundary: an immediate retry fails.
	_, err = engine.Claim(ctx, "alice", subject, 3700)
	assert.True(t, fault.IsCode(err, fault.CodeIntervalNotReached))

	last, ok, err := engine.LastClaim(ctx, subject)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.Timestamp(3601), last)
}

func TestClaim_LateStakeAccruesFromLockTime(t *testing.T) {
	vault, engine, _ := newNativeEngine(t, testSchedule())
	ctx := context.Background()
	deposit(t, vault, "alice", 1, 5000)

	_, err := engine.Claim(ctx, "alice", Subject{Principal: "alice"}, 6000)
	assert.True(t, fault.IsCode(err, fault.CodeIntervalNotReached))

	receipt, err := engine.Claim(ctx, "alice", Subject{Principal: "alice"}, 8601)
	require.NoError(t, err)
	// One whole interval since locked_since=5000.
	assert.Equal(t, types.Amount(10), sentAmount(t, receipt))
}

// The reward divisor is read at claim time, not deposit time: stakes that
// arrive after a claimant's accrual span still dilute it.
func TestClaim_DivisorIsReadLive(t *testing.T) {
	vault, engine, _ := newNativeEngine(t, testSchedule())
	ctx := context.Background()
	subject := Subject{Principal: "alice"}
	deposit(t, vault, "alice", 100, 0)

	receipt, err := engine.Claim(ctx, "alice", subject, 3701)
	require.NoError(t, err)
	// Sole staker: 10 per interval, weighted over 100 of 100 locked units.
	assert.Equal(t, types.Amount(10), sentAmount(t, receipt))

	deposit(t, vault, "bob", 100, 3701)

	receipt, err = engine.Claim(ctx, "alice", subject, 7301)
	require.NoError(t, err)
	// Same span, halved by bob's stake - even though bob held nothing
	// while alice accrued.
	assert.Equal(t, types.Amount(5), sentAmount(t, receipt))
}

func TestClaim_TokenSourceAuth(t *testing.T) {
	ctx := context.Background()

	registry := registryWith(t, "colA", "42", "vault")
	vault, err := lockup.NewTokenVault(ctx, openStore(t, "vault.db"),
		lockup.TokenConfig{Admin: "admin", LockupInterval: 3600, Collections: []types.Principal{"colA"}},
		"vault", registry, lockup.NewSequenceGenerator(nil))
	require.NoError(t, err)

	_, _, err = vault.ReceiveToken(ctx, "alice", "colA", "42", 0)
	require.NoError(t, err)

	engine, err := NewEngine(ctx, openStore(t, "stake.db"), testSchedule(),
		TokenSource{Vault: vault}, &fakeBank{}, "engine", lockup.NewSequenceGenerator(nil))
	require.NoError(t, err)

	subject := Subject{Principal: "colA", TokenID: "42"}

	// Token claims authorize against the position's recorded owner.
	_, err = engine.Claim(ctx, "bob", subject, 3701)
	assert.True(t, fault.IsCode(err, fault.CodeUnauthorized))

	receipt, err := engine.Claim(ctx, "alice", subject, 3701)
	require.NoError(t, err)
	// Sole position: count divisor is 1, token amount is 1.
	assert.Equal(t, types.Amount(10), sentAmount(t, receipt))
}

func TestSweepRemainder(t *testing.T) {
	_, engine, bank := newNativeEngine(t, testSchedule())
	ctx := context.Background()
	bank.balance = 37

	_, err := engine.SweepRemainder(ctx, "mallory", 40000)
	assert.True(t, fault.IsCode(err, fault.CodeUnauthorized))

	_, err = engine.SweepRemainder(ctx, "admin", 36000)
	assert.True(t, fault.IsCode(err, fault.CodeTooEarly))

	// At exactly the end time the sweep is still too early.
	_, err = engine.SweepRemainder(ctx, "admin", 36001)
	assert.True(t, fault.IsCode(err, fault.CodeTooEarly))

	receipt, err := engine.SweepRemainder(ctx, "admin", 36002)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(37), sentAmount(t, receipt))
}

func TestUpdateAdmin(t *testing.T) {
	_, engine, _ := newNativeEngine(t, testSchedule())
	ctx := context.Background()

	_, err := engine.UpdateAdmin(ctx, "mallory", "mallory")
	assert.True(t, fault.IsCode(err, fault.CodeUnauthorized))

	_, err = engine.UpdateAdmin(ctx, "admin", "admin2")
	require.NoError(t, err)
	assert.Equal(t, types.Principal("admin2"), engine.ConfigSnapshot().Admin)
}

func TestOpenEngine_ResumesSchedule(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "stake.db")

	store, err := ledger.Open(path)
	require.NoError(t, err)

	vault, err := lockup.NewNativeVault(ctx, openStore(t, "vault.db"),
		lockup.NativeConfig{Admin: "admin", Denom: "ustars", LockupInterval: 3600},
		lockup.NewSequenceGenerator(nil))
	require.NoError(t, err)
	source := NativeSource{Vault: vault}

	_, err = NewEngine(ctx, store, testSchedule(), source, &fakeBank{}, "engine", lockup.NewSequenceGenerator(nil))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = ledger.Open(path)
	require.NoError(t, err)
	defer store.Close()

	engine, err := OpenEngine(ctx, store, source, &fakeBank{}, "engine", lockup.NewSequenceGenerator(nil))
	require.NoError(t, err)
	assert.Equal(t, testSchedule(), engine.ConfigSnapshot())
}

// registryWith builds a single-token custody registry reporting the given
// custodian.
func registryWith(t *testing.T, collection types.Principal, tokenID string, custodian types.Principal) lockup.CustodyRegistry {
	t.Helper()
	return staticRegistry{collection: collection, tokenID: tokenID, custodian: custodian}
}

type staticRegistry struct {
	collection types.Principal
	tokenID    string
	custodian  types.Principal
}

func (r staticRegistry) OwnerOf(collection types.Principal, tokenID string) (types.Principal, error) {
	if collection == r.collection && tokenID == r.tokenID {
		return r.custodian, nil
	}
	return "", fault.New(fault.KindState, fault.CodeNotFound, "unknown token")
}
