package lockup

import (
	"context"
	"log/slog"
	"strings"

	"github.com/lockstake/lockstake/internal/fault"
	"github.com/lockstake/lockstake/internal/ledger"
	"github.com/lockstake/lockstake/internal/types"
)

// FracVault is the NFT lockup state machine with fractional token minting.
//
// On deposit the vault takes custody of the token and mints the collection's
// configured amount of synthetic tokens to the depositor. Redemption is
// bearer-based: whoever returns exactly the configured synthetic amount
// receives the token, regardless of who deposited it - the synthetic tokens
// ARE the claim on the position. The returned tokens are burned.
type FracVault struct {
	store    *ledger.Store
	cfg      FracConfig
	escrow   types.Principal
	registry CustodyRegistry
	receipts ReceiptTokenGenerator
}

// NewFracVault initializes a vault with the given configuration, persisting
// the configuration snapshot to the store.
func NewFracVault(ctx context.Context, store *ledger.Store, cfg FracConfig, escrow types.Principal, registry CustodyRegistry, receipts ReceiptTokenGenerator) (*FracVault, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := store.SaveConfig(ctx, cfg); err != nil {
		return nil, fault.Storage("save config", err)
	}
	return &FracVault{store: store, cfg: cfg, escrow: escrow, registry: registry, receipts: receipts}, nil
}

// OpenFracVault resumes a vault from a previously initialized store.
func OpenFracVault(ctx context.Context, store *ledger.Store, escrow types.Principal, registry CustodyRegistry, receipts ReceiptTokenGenerator) (*FracVault, error) {
	var cfg FracConfig
	ok, err := store.LoadConfig(ctx, &cfg)
	if err != nil {
		return nil, fault.Storage("load config", err)
	}
	if !ok {
		return nil, fault.New(fault.KindState, fault.CodeNotFound, "vault is not initialized")
	}
	return &FracVault{store: store, cfg: cfg, escrow: escrow, registry: registry, receipts: receipts}, nil
}

// VariantKind identifies the lockup variant for capability dispatch.
func (v *FracVault) VariantKind() string { return "frac" }

// ConfigSnapshot returns the current configuration.
func (v *FracVault) ConfigSnapshot() FracConfig { return v.cfg }

// UpdateAdmin transfers admin rights. Admin only.
func (v *FracVault) UpdateAdmin(ctx context.Context, caller, newAdmin types.Principal) (Receipt, error) {
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

// AppendCollection adds a new accepted collection with its mint rate.
// Admin only. Fails if the collection is already accepted; existing rates
// are immutable so outstanding synthetic claims stay redeemable.
func (v *FracVault) AppendCollection(ctx context.Context, caller types.Principal, collection CollectionRate) (Receipt, error) {
	if err := requireAdmin(v.cfg.Admin, caller); err != nil {
		return Receipt{}, err
	}

	if _, exists := v.cfg.rateFor(collection.Address); exists {
		return Receipt{}, fault.New(fault.KindValidation, fault.CodeInvalidConfig, "collection already exists").
			With("collection", collection.Address.String())
	}

	cfg := v.cfg
	cfg.Collections = append(append([]CollectionRate{}, v.cfg.Collections...), collection)
	if err := v.replaceConfig(ctx, cfg); err != nil {
		return Receipt{}, err
	}

	names := make([]string, len(cfg.Collections))
	for i, c := range cfg.Collections {
		names[i] = c.Address.String()
	}

	r := Receipt{Token: v.receipts.Generate(), Method: "append_collection"}
	r.attr("collections", strings.Join(names, ","))
	return r, nil
}

func (v *FracVault) replaceConfig(ctx context.Context, cfg FracConfig) error {
	if err := v.store.SaveConfig(ctx, cfg); err != nil {
		return fault.Storage("save config", err)
	}
	v.cfg = cfg
	return nil
}

// ReceiveToken records custody of a deposited token and emits a mint
// instruction for the collection's configured synthetic amount.
func (v *FracVault) ReceiveToken(ctx context.Context, sender, collection types.Principal, tokenID string, now types.Timestamp) (ledger.Position, Receipt, error) {
	rate, ok := v.cfg.rateFor(collection)
	if !ok {
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
		"variant", "frac",
		"depositor", sender,
		"collection", collection,
		"token_id", tokenID,
		"minted", rate.Tokens,
	)

	r := Receipt{Token: v.receipts.Generate(), Method: "deposit"}
	r.attr("collection_address", collection.String())
	r.attr("token_id", tokenID)
	r.attr("depositor", sender.String())
	r.Instructions = append(r.Instructions, MintSynthetic{
		To:   sender,
		Coin: types.NewCoin(v.cfg.SyntheticDenom, rate.Tokens),
	})
	return pos, r, nil
}

// Withdraw redeems a token against returned synthetic funds.
//
// The funds must be a single coin of the synthetic denom whose amount
// exactly equals the collection's rate; anything else fails with
// WrongPayment. On success the position is deleted, the returned tokens are
// burned, and the token is transferred to the caller.
func (v *FracVault) Withdraw(ctx context.Context, caller, collection types.Principal, tokenID string, funds []types.Coin, now types.Timestamp) (Receipt, error) {
	payment, err := types.SingleCoin(funds, v.cfg.SyntheticDenom)
	if err != nil {
		return Receipt{}, err
	}

	pos, err := v.store.FirstByToken(ctx, collection, tokenID)
	if err != nil {
		if err == ledger.ErrNoPosition {
			return Receipt{}, fault.New(fault.KindState, fault.CodeNotFound, "lockup entry not found")
		}
		return Receipt{}, fault.Storage("read position", err)
	}

	rate, ok := v.cfg.rateFor(collection)
	if !ok {
		return Receipt{}, fault.New(fault.KindValidation, fault.CodeUnsupportedAsset,
			"collection is not supported").With("collection", collection.String())
	}
	if payment.Amount != rate.Tokens {
		return Receipt{}, fault.Newf(fault.KindValidation, fault.CodeWrongPayment,
			"incorrect amount of funds sent: want %s, got %s", rate.Tokens, payment.Amount)
	}

	if !now.After(pos.LockedUntil) {
		return Receipt{}, fault.New(fault.KindState, fault.CodeStillLocked, "lockup period has not passed").
			With("locked_until", pos.LockedUntil.String())
	}

	if err := v.store.DeletePosition(ctx, pos.Key); err != nil {
		return Receipt{}, fault.Storage("delete position", err)
	}

	slog.Info("withdrawal executed",
		"variant", "frac",
		"redeemer", caller,
		"collection", collection,
		"token_id", tokenID,
		"burned", payment.Amount,
	)

	r := Receipt{Token: v.receipts.Generate(), Method: "withdraw"}
	r.attr("collection_address", collection.String())
	r.attr("token_id", tokenID)
	r.attr("sent_to", caller.String())
	r.Instructions = append(r.Instructions,
		TransferToken{Collection: pos.Collection, TokenID: pos.TokenID, Recipient: caller},
		BurnSynthetic{Coin: payment},
	)
	return r, nil
}

// PositionByToken returns the position holding a (collection, token) pair.
func (v *FracVault) PositionByToken(ctx context.Context, collection types.Principal, tokenID string) (ledger.Position, error) {
	pos, err := v.store.FirstByToken(ctx, collection, tokenID)
	if err != nil {
		if err == ledger.ErrNoPosition {
			return ledger.Position{}, fault.New(fault.KindState, fault.CodeNotFound, "lockup entry not found")
		}
		return ledger.Position{}, fault.Storage("read position", err)
	}
	return pos, nil
}

// PositionsByDepositor lists the depositor's positions in ascending key order.
func (v *FracVault) PositionsByDepositor(ctx context.Context, depositor types.Principal) ([]ledger.Position, error) {
	positions, err := v.store.PositionsByOwner(ctx, depositor)
	if err != nil {
		return nil, fault.Storage("range positions", err)
	}
	return positions, nil
}

// PositionsByCollection lists a collection's positions in ascending key order.
func (v *FracVault) PositionsByCollection(ctx context.Context, collection types.Principal) ([]ledger.Position, error) {
	positions, err := v.store.PositionsByCollection(ctx, collection)
	if err != nil {
		return nil, fault.Storage("range positions", err)
	}
	return positions, nil
}

// Count returns the number of active positions.
func (v *FracVault) Count(ctx context.Context) (uint64, error) {
	count, err := v.store.CountPositions(ctx)
	if err != nil {
		return 0, fault.Storage("count positions", err)
	}
	return count, nil
}
