package lockup

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/lockstake/lockstake/internal/fault"
	"github.com/lockstake/lockstake/internal/ledger"
	"github.com/lockstake/lockstake/internal/types"
)

// TokenVault is the NFT custody lockup state machine.
//
// Deposits arrive as transfer notifications from the collection itself (the
// escrow never pulls tokens): the vault confirms with the custody registry
// that it actually is the custodian of record before creating a position.
// Positions are never mutated - only created on deposit and deleted on
// withdrawal. Every position locks exactly one token.
type TokenVault struct {
	store    *ledger.Store
	cfg      TokenConfig
	escrow   types.Principal
	registry CustodyRegistry
	receipts ReceiptTokenGenerator
}

// NewTokenVault initializes a vault with the given configuration, persisting
// the configuration snapshot to the store.
//
// escrow is the vault's own principal, used to confirm custody against the
// registry collaborator.
func NewTokenVault(ctx context.Context, store *ledger.Store, cfg TokenConfig, escrow types.Principal, registry CustodyRegistry, receipts ReceiptTokenGenerator) (*TokenVault, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := store.SaveConfig(ctx, cfg); err != nil {
		return nil, fault.Storage("save config", err)
	}
	return &TokenVault{store: store, cfg: cfg, escrow: escrow, registry: registry, receipts: receipts}, nil
}

// OpenTokenVault resumes a vault from a previously initialized store.
func OpenTokenVault(ctx context.Context, store *ledger.Store, escrow types.Principal, registry CustodyRegistry, receipts ReceiptTokenGenerator) (*TokenVault, error) {
	var cfg TokenConfig
	ok, err := store.LoadConfig(ctx, &cfg)
	if err != nil {
		return nil, fault.Storage("load config", err)
	}
	if !ok {
		return nil, fault.New(fault.KindState, fault.CodeNotFound, "vault is not initialized")
	}
	return &TokenVault{store: store, cfg: cfg, escrow: escrow, registry: registry, receipts: receipts}, nil
}

// VariantKind identifies the lockup variant for capability dispatch.
func (v *TokenVault) VariantKind() string { return "cw721" }

// ConfigSnapshot returns the current configuration.
func (v *TokenVault) ConfigSnapshot() TokenConfig { return v.cfg }

// UpdateAdmin transfers admin rights. Admin only.
func (v *TokenVault) UpdateAdmin(ctx context.Context, caller, newAdmin types.Principal) (Receipt, error) {
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

// UpdateConfig replaces the lockup interval and accepted collections
// wholesale. Admin only.
func (v *TokenVault) UpdateConfig(ctx context.Context, caller types.Principal, lockupInterval uint64, collections []types.Principal) (Receipt, error) {
	if err := requireAdmin(v.cfg.Admin, caller); err != nil {
		return Receipt{}, err
	}

	cfg := v.cfg
	cfg.LockupInterval = lockupInterval
	cfg.Collections = collections
	if err := v.replaceConfig(ctx, cfg); err != nil {
		return Receipt{}, err
	}

	names := make([]string, len(collections))
	for i, c := range collections {
		names[i] = c.String()
	}

	r := Receipt{Token: v.receipts.Generate(), Method: "update_config"}
	r.attr("lockup_interval", strconv.FormatUint(lockupInterval, 10))
	r.attr("collections", strings.Join(names, ","))
	return r, nil
}

func (v *TokenVault) replaceConfig(ctx context.Context, cfg TokenConfig) error {
	if err := v.store.SaveConfig(ctx, cfg); err != nil {
		return fault.Storage("save config", err)
	}
	v.cfg = cfg
	return nil
}

// ReceiveToken records custody of a deposited token.
//
// collection is the notifying collection (the transfer's executor), sender
// the original owner. The vault verifies that the collection is accepted and
// that the registry reports the escrow as custodian of record; a notification
// without a completed transfer fails with CustodyNotConfirmed.
func (v *TokenVault) ReceiveToken(ctx context.Context, sender, collection types.Principal, tokenID string, now types.Timestamp) (ledger.Position, Receipt, error) {
	if !v.cfg.accepts(collection) {
		return ledger.Position{}, Receipt{}, fault.New(fault.KindValidation, fault.CodeUnsupportedAsset,
			"collection is not supported").With("collection", collection.String())
	}

	custodian, err := v.registry.OwnerOf(collection, tokenID)
	if err != nil {
		return ledger.Position{}, Receipt{}, fault.Storage("query custody registry", err)
	}
	if custodian != v.escrow {
		return ledger.Position{}, Receipt{}, fault.New(fault.KindValidation, fault.CodeCustodyNotConfirmed,
			"token was not transferred to contract").With("custodian", custodian.String())
	}

	pos := ledger.Position{
		Key:         ledger.TokenKey(collection, tokenID),
		Owner:       sender,
		Collection:  collection,
		TokenID:     tokenID,
		Amount:      1,
		LockedSince: now,
		LockedUntil: now.Add(v.cfg.LockupInterval),
	}
	if err := v.store.PutPosition(ctx, pos); err != nil {
		return ledger.Position{}, Receipt{}, fault.Storage("put position", err)
	}

	slog.Info("deposit recorded",
		"variant", "cw721",
		"owner", sender,
		"collection", collection,
		"token_id", tokenID,
		"locked_until", pos.LockedUntil,
	)

	r := Receipt{Token: v.receipts.Generate(), Method: "deposit"}
	r.attr("collection_address", collection.String())
	r.attr("token_id", tokenID)
	r.attr("owner", sender.String())
	r.attr("locked_until", pos.LockedUntil.String())
	return pos, r, nil
}

// Withdraw returns custody of a token to its owner after the unlock time has
// passed (strictly). Only the recorded owner may withdraw. The position is
// deleted and a transfer-back instruction emitted.
func (v *TokenVault) Withdraw(ctx context.Context, caller, collection types.Principal, tokenID string, now types.Timestamp) (Receipt, error) {
	pos, err := v.store.FirstByToken(ctx, collection, tokenID)
	if err != nil {
		if err == ledger.ErrNoPosition {
			return Receipt{}, fault.New(fault.KindState, fault.CodeNotFound, "lockup entry not found")
		}
		return Receipt{}, fault.Storage("read position", err)
	}

	if pos.Owner != caller {
		return Receipt{}, fault.New(fault.KindAuthorization, fault.CodeUnauthorized,
			"sender is not the owner of the token")
	}
	if !now.After(pos.LockedUntil) {
		return Receipt{}, fault.New(fault.KindState, fault.CodeStillLocked, "lockup period has not passed").
			With("locked_until", pos.LockedUntil.String())
	}

	if err := v.store.DeletePosition(ctx, pos.Key); err != nil {
		return Receipt{}, fault.Storage("delete position", err)
	}

	slog.Info("withdrawal executed",
		"variant", "cw721",
		"owner", caller,
		"collection", collection,
		"token_id", tokenID,
	)

	r := Receipt{Token: v.receipts.Generate(), Method: "withdraw"}
	r.attr("collection_address", collection.String())
	r.attr("token_id", tokenID)
	r.attr("owner", pos.Owner.String())
	r.Instructions = append(r.Instructions, TransferToken{
		Collection: pos.Collection,
		TokenID:    pos.TokenID,
		Recipient:  pos.Owner,
	})
	return r, nil
}

// PositionByToken returns the position holding a (collection, token) pair.
func (v *TokenVault) PositionByToken(ctx context.Context, collection types.Principal, tokenID string) (ledger.Position, error) {
	pos, err := v.store.FirstByToken(ctx, collection, tokenID)
	if err != nil {
		if err == ledger.ErrNoPosition {
			return ledger.Position{}, fault.New(fault.KindState, fault.CodeNotFound, "lockup entry not found")
		}
		return ledger.Position{}, fault.Storage("read position", err)
	}
	return pos, nil
}

// PositionsByOwner lists the owner's positions in ascending key order.
func (v *TokenVault) PositionsByOwner(ctx context.Context, owner types.Principal) ([]ledger.Position, error) {
	positions, err := v.store.PositionsByOwner(ctx, owner)
	if err != nil {
		return nil, fault.Storage("range positions", err)
	}
	return positions, nil
}

// PositionsByCollection lists a collection's positions in ascending key order.
func (v *TokenVault) PositionsByCollection(ctx context.Context, collection types.Principal) ([]ledger.Position, error) {
	positions, err := v.store.PositionsByCollection(ctx, collection)
	if err != nil {
		return nil, fault.Storage("range positions", err)
	}
	return positions, nil
}

// Count returns the number of active positions.
func (v *TokenVault) Count(ctx context.Context) (uint64, error) {
	count, err := v.store.CountPositions(ctx)
	if err != nil {
		return 0, fault.Storage("count positions", err)
	}
	return count, nil
}
