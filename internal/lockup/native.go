package lockup

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/lockstake/lockstake/internal/fault"
	"github.com/lockstake/lockstake/internal/ledger"
	"github.com/lockstake/lockstake/internal/types"
)

// NativeVault is the fungible-token lockup state machine.
//
// Positions are keyed by depositor, so a caller can only ever address their
// own position. Deposits merge: the amount accumulates and the unlock time is
// recomputed from the deposit time on every top-up (last deposit wins).
// Withdrawal may be partial; a partial withdrawal decrements the amount in
// place and leaves the unlock time unchanged.
type NativeVault struct {
	store    *ledger.Store
	cfg      NativeConfig
	receipts ReceiptTokenGenerator
}

// NewNativeVault initializes a vault with the given configuration, persisting
// the configuration snapshot to the store.
func NewNativeVault(ctx context.Context, store *ledger.Store, cfg NativeConfig, receipts ReceiptTokenGenerator) (*NativeVault, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := store.SaveConfig(ctx, cfg); err != nil {
		return nil, fault.Storage("save config", err)
	}
	return &NativeVault{store: store, cfg: cfg, receipts: receipts}, nil
}

// OpenNativeVault resumes a vault from a previously initialized store.
func OpenNativeVault(ctx context.Context, store *ledger.Store, receipts ReceiptTokenGenerator) (*NativeVault, error) {
	var cfg NativeConfig
	ok, err := store.LoadConfig(ctx, &cfg)
	if err != nil {
		return nil, fault.Storage("load config", err)
	}
	if !ok {
		return nil, fault.New(fault.KindState, fault.CodeNotFound, "vault is not initialized")
	}
	return &NativeVault{store: store, cfg: cfg, receipts: receipts}, nil
}

// VariantKind identifies the lockup variant for capability dispatch.
func (v *NativeVault) VariantKind() string { return "native" }

// ConfigSnapshot returns the current configuration.
func (v *NativeVault) ConfigSnapshot() NativeConfig { return v.cfg }

// UpdateAdmin transfers admin rights. Admin only.
func (v *NativeVault) UpdateAdmin(ctx context.Context, caller, newAdmin types.Principal) (Receipt, error) {
	if err := requireAdmin(v.cfg.Admin, caller); err != nil {
		return Receipt{}, err
	}

	oldAdmin := v.cfg.Admin
	cfg := v.cfg
	cfg.Admin = newAdmin
	if err := v.replaceConfig(ctx, cfg); err != nil {
		return Receipt{}, err
	}

	r := Receipt{Token: v.receipts.Generate(), Method: "update_admin"}
	r.attr("old_admin", oldAdmin.String())
	r.attr("new_admin", newAdmin.String())
	return r, nil
}

// UpdateConfig replaces the denom and lockup interval wholesale. Admin only.
func (v *NativeVault) UpdateConfig(ctx context.Context, caller types.Principal, denom string, lockupInterval uint64) (Receipt, error) {
	if err := requireAdmin(v.cfg.Admin, caller); err != nil {
		return Receipt{}, err
	}

	cfg := v.cfg
	cfg.Denom = denom
	cfg.LockupInterval = lockupInterval
	if err := cfg.validate(); err != nil {
		return Receipt{}, err
	}
	if err := v.replaceConfig(ctx, cfg); err != nil {
		return Receipt{}, err
	}

	r := Receipt{Token: v.receipts.Generate(), Method: "update_config"}
	r.attr("token", denom)
	r.attr("lockup_interval", strconv.FormatUint(lockupInterval, 10))
	return r, nil
}

func (v *NativeVault) replaceConfig(ctx context.Context, cfg NativeConfig) error {
	if err := v.store.SaveConfig(ctx, cfg); err != nil {
		return fault.Storage("save config", err)
	}
	v.cfg = cfg
	return nil
}

// Deposit locks funds for the depositor.
//
// An existing position merges: the amount accumulates and locked_until is
// recomputed as now + interval. A new position records locked_since = now.
// Returns the resulting position alongside the receipt.
func (v *NativeVault) Deposit(ctx context.Context, depositor types.Principal, funds []types.Coin, now types.Timestamp) (ledger.Position, Receipt, error) {
	coin, err := types.SingleCoin(funds, v.cfg.Denom)
	if err != nil {
		return ledger.Position{}, Receipt{}, err
	}

	key := ledger.NativeKey(depositor)
	pos, err := v.store.Position(ctx, key)
	switch err {
	case nil:
		// Merge into the existing position
		merged, err := pos.Amount.CheckedAdd(coin.Amount)
		if err != nil {
			return ledger.Position{}, Receipt{}, err
		}
		pos.Amount = merged
		pos.LockedUntil = now.Add(v.cfg.LockupInterval)
	case ledger.ErrNoPosition:
		pos = ledger.Position{
			Key:         key,
			Owner:       depositor,
			Amount:      coin.Amount,
			LockedSince: now,
			LockedUntil: now.Add(v.cfg.LockupInterval),
		}
	default:
		return ledger.Position{}, Receipt{}, fault.Storage("read position", err)
	}

	if err := v.store.PutPosition(ctx, pos); err != nil {
		return ledger.Position{}, Receipt{}, fault.Storage("put position", err)
	}

	slog.Info("deposit recorded",
		"variant", "native",
		"depositor", depositor,
		"amount", pos.Amount,
		"locked_until", pos.LockedUntil,
	)

	r := Receipt{Token: v.receipts.Generate(), Method: "deposit"}
	r.attr("sender", depositor.String())
	r.attr("amount", pos.Amount.String())
	r.attr("locked_until", pos.LockedUntil.String())
	return pos, r, nil
}

// Withdraw releases funds after the unlock time has passed (strictly).
//
// A nil amount withdraws the full position. A partial withdrawal decrements
// the stored amount and leaves the unlock time unchanged; withdrawing the
// full amount deletes the position. Requesting more than the locked amount
// fails with an arithmetic fault rather than wrapping.
func (v *NativeVault) Withdraw(ctx context.Context, caller types.Principal, amount *types.Amount, now types.Timestamp) (Receipt, error) {
	key := ledger.NativeKey(caller)
	pos, err := v.store.Position(ctx, key)
	if err != nil {
		if err == ledger.ErrNoPosition {
			return Receipt{}, fault.New(fault.KindState, fault.CodeNotFound, "lockup not found")
		}
		return Receipt{}, fault.Storage("read position", err)
	}

	// Strict: withdrawal at exactly locked_until still fails.
	if !now.After(pos.LockedUntil) {
		return Receipt{}, fault.New(fault.KindState, fault.CodeStillLocked, "lockup period has not passed").
			With("locked_until", pos.LockedUntil.String())
	}

	withdrawn := pos.Amount
	if amount != nil {
		withdrawn = *amount
	}

	if withdrawn == pos.Amount {
		if err := v.store.DeletePosition(ctx, key); err != nil {
			return Receipt{}, fault.Storage("delete position", err)
		}
	} else {
		remaining, err := pos.Amount.CheckedSub(withdrawn)
		if err != nil {
			return Receipt{}, err
		}
		pos.Amount = remaining
		if err := v.store.PutPosition(ctx, pos); err != nil {
			return Receipt{}, fault.Storage("put position", err)
		}
	}

	slog.Info("withdrawal executed",
		"variant", "native",
		"owner", caller,
		"amount", withdrawn,
	)

	r := Receipt{Token: v.receipts.Generate(), Method: "withdraw"}
	r.attr("sender", caller.String())
	r.attr("denom", v.cfg.Denom)
	r.attr("amount", withdrawn.String())
	r.Instructions = append(r.Instructions, SendFunds{
		To:   caller,
		Coin: types.NewCoin(v.cfg.Denom, withdrawn),
	})
	return r, nil
}

// Position returns the caller-visible position for an owner.
func (v *NativeVault) Position(ctx context.Context, owner types.Principal) (ledger.Position, error) {
	pos, err := v.store.Position(ctx, ledger.NativeKey(owner))
	if err != nil {
		if err == ledger.ErrNoPosition {
			return ledger.Position{}, fault.New(fault.KindState, fault.CodeNotFound, "lockup not found")
		}
		return ledger.Position{}, fault.Storage("read position", err)
	}
	return pos, nil
}

// TotalLocked returns the sum of all locked amounts.
//
// This is the fungible variant's participation measure: the reward divisor
// counts locked units, not depositors.
func (v *NativeVault) TotalLocked(ctx context.Context) (types.Amount, error) {
	total, err := v.store.SumAmounts(ctx)
	if err != nil {
		return 0, fault.Storage("sum amounts", err)
	}
	return total, nil
}
