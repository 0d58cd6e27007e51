// Package stake pays out a fixed reward pool to lockup positions over a
// bounded window, in whole-interval steps. The engine never escrows anything
// itself: stakes are read live from a lockup vault and payouts are emitted
// as bank-send instructions for the host to execute.
package stake

import (
	"context"
	"log/slog"

	"github.com/lockstake/lockstake/internal/fault"
	"github.com/lockstake/lockstake/internal/ledger"
	"github.com/lockstake/lockstake/internal/lockup"
	"github.com/lockstake/lockstake/internal/types"
)

// Config is the reward distribution schedule.
//
// Total is paid out over [Start, End) in whole Interval steps. Like the vault
// configurations it is initialized once and replaced wholesale, never
// mutated field-by-field.
type Config struct {
	Admin    types.Principal `json:"admin" yaml:"admin"`
	Denom    string          `json:"denom" yaml:"denom"`
	Total    types.Amount    `json:"total" yaml:"total"`
	Start    types.Timestamp `json:"start" yaml:"start"`
	End      types.Timestamp `json:"end" yaml:"end"`
	Interval uint64          `json:"interval" yaml:"interval"` // seconds
}

func (c Config) validate() error {
	if c.Admin == "" {
		return fault.New(fault.KindValidation, fault.CodeInvalidConfig, "admin is required")
	}
	if c.Denom == "" {
		return fault.New(fault.KindValidation, fault.CodeInvalidConfig, "denom is required")
	}
	if c.Interval == 0 {
		return fault.New(fault.KindValidation, fault.CodeInvalidConfig, "interval must be greater than 0")
	}
	if !c.End.After(c.Start) {
		return fault.New(fault.KindValidation, fault.CodeInvalidConfig, "end must be after start")
	}
	return nil
}

// BalanceQuerier reports the reward pool balance held for the engine.
type BalanceQuerier interface {
	Balance(ctx context.Context, holder types.Principal, denom string) (types.Amount, error)
}

// Engine accrues and pays out rewards against stakes held in a lockup vault.
//
// The engine keeps its own store: claim checkpoints and the distribution
// schedule live here, while positions stay in the vault's store and are read
// through the LockupSource on every claim.
type Engine struct {
	store    *ledger.Store
	cfg      Config
	source   LockupSource
	bank     BalanceQuerier
	self     types.Principal
	receipts lockup.ReceiptTokenGenerator
}

// NewEngine initializes an engine with the given schedule, persisting the
// configuration snapshot to the store. The source's kind is checked once
// here; Claim dispatches on it without re-validating.
func NewEngine(ctx context.Context, store *ledger.Store, cfg Config, source LockupSource, bank BalanceQuerier, self types.Principal, receipts lockup.ReceiptTokenGenerator) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := validateKind(source); err != nil {
		return nil, err
	}
	if err := store.SaveConfig(ctx, cfg); err != nil {
		return nil, fault.Storage("save config", err)
	}
	return &Engine{store: store, cfg: cfg, source: source, bank: bank, self: self, receipts: receipts}, nil
}

// OpenEngine resumes an engine from a previously initialized store.
func OpenEngine(ctx context.Context, store *ledger.Store, source LockupSource, bank BalanceQuerier, self types.Principal, receipts lockup.ReceiptTokenGenerator) (*Engine, error) {
	var cfg Config
	ok, err := store.LoadConfig(ctx, &cfg)
	if err != nil {
		return nil, fault.Storage("load config", err)
	}
	if !ok {
		return nil, fault.New(fault.KindState, fault.CodeNotFound, "engine is not initialized")
	}
	if err := validateKind(source); err != nil {
		return nil, err
	}
	return &Engine{store: store, cfg: cfg, source: source, bank: bank, self: self, receipts: receipts}, nil
}

func validateKind(source LockupSource) error {
	switch source.Kind() {
	case "native", "cw721", "frac":
		return nil
	}
	return fault.Newf(fault.KindValidation, fault.CodeInvalidConfig, "unsupported lockup kind %q", source.Kind())
}

// ConfigSnapshot returns the distribution schedule.
func (e *Engine) ConfigSnapshot() Config { return e.cfg }

// UpdateAdmin transfers admin rights. Admin only.
func (e *Engine) UpdateAdmin(ctx context.Context, caller, newAdmin types.Principal) (lockup.Receipt, error) {
	if caller != e.cfg.Admin {
		return lockup.Receipt{}, fault.New(fault.KindAuthorization, fault.CodeUnauthorized, "unauthorized")
	}

	oldAdmin := e.cfg.Admin
	cfg := e.cfg
	cfg.Admin = newAdmin
	if err := e.store.SaveConfig(ctx, cfg); err != nil {
		return lockup.Receipt{}, fault.Storage("save config", err)
	}
	e.cfg = cfg

	r := lockup.Receipt{Token: e.receipts.Generate(), Method: "update_admin"}
	r.Attributes = append(r.Attributes,
		lockup.Attribute{Key: "old_admin", Value: oldAdmin.String()},
		lockup.Attribute{Key: "new_admin", Value: newAdmin.String()},
	)
	return r, nil
}

// Claim pays the caller the reward accrued by the subject's stake since its
// last claim.
//
// The claim window is open on (Start, End). The accrual origin for a stake
// that has never claimed is its lock time, clamped to Start for stakes that
// predate the distribution. A claim before one full interval has elapsed
// since the origin fails with IntervalNotReached. The checkpoint is written
// only after every check has passed: a rejected claim leaves no trace.
func (e *Engine) Claim(ctx context.Context, caller types.Principal, subject Subject, now types.Timestamp) (lockup.Receipt, error) {
	if !now.After(e.cfg.Start) {
		return lockup.Receipt{}, fault.New(fault.KindState, fault.CodeNotStarted, "distribution has not started").
			With("start", e.cfg.Start.String())
	}
	if !now.Before(e.cfg.End) {
		return lockup.Receipt{}, fault.New(fault.KindState, fault.CodeEnded, "distribution has ended").
			With("end", e.cfg.End.String())
	}

	pos, err := e.source.Stake(ctx, subject)
	if err != nil {
		return lockup.Receipt{}, err
	}

	if e.source.Kind() == "native" {
		if caller != subject.Principal {
			return lockup.Receipt{}, fault.New(fault.KindAuthorization, fault.CodeUnauthorized, "unauthorized")
		}
	} else if caller != pos.Owner {
		return lockup.Receipt{}, fault.New(fault.KindAuthorization, fault.CodeUnauthorized, "unauthorized")
	}

	last, ok, err := e.store.Checkpoint(ctx, subject.Principal, subject.TokenID)
	if err != nil {
		return lockup.Receipt{}, fault.Storage("read checkpoint", err)
	}
	if !ok {
		last = pos.LockedSince
		if last.Before(e.cfg.Start) {
			last = e.cfg.Start
		}
	}

	if last.Add(e.cfg.Interval).After(now) {
		return lockup.Receipt{}, fault.New(fault.KindState, fault.CodeIntervalNotReached, "interval has not been reached").
			With("last_claim", last.String())
	}

	units, err := e.source.Units(ctx)
	if err != nil {
		return lockup.Receipt{}, err
	}
	if units == 0 {
		return lockup.Receipt{}, fault.New(fault.KindInternal, fault.CodeStorage, "stake exists but unit count is zero")
	}

	payout := payable(e.cfg, last, now, units, pos.Amount)

	if err := e.store.SaveCheckpoint(ctx, subject.Principal, subject.TokenID, now); err != nil {
		return lockup.Receipt{}, fault.Storage("save checkpoint", err)
	}

	slog.Info("claim paid",
		"kind", e.source.Kind(),
		"claimer", caller,
		"subject", subject.Principal,
		"token_id", subject.TokenID,
		"amount", payout,
	)

	r := lockup.Receipt{Token: e.receipts.Generate(), Method: "claim"}
	r.Attributes = append(r.Attributes,
		lockup.Attribute{Key: "recipient", Value: caller.String()},
		lockup.Attribute{Key: "amount", Value: payout.String()},
	)
	r.Instructions = append(r.Instructions, lockup.SendFunds{
		To:   caller,
		Coin: types.NewCoin(e.cfg.Denom, payout),
	})
	return r, nil
}

// LastClaim returns the subject's claim checkpoint, if any.
func (e *Engine) LastClaim(ctx context.Context, subject Subject) (types.Timestamp, bool, error) {
	ts, ok, err := e.store.Checkpoint(ctx, subject.Principal, subject.TokenID)
	if err != nil {
		return 0, false, fault.Storage("read checkpoint", err)
	}
	return ts, ok, nil
}

// SweepRemainder sends whatever is left of the reward pool to the admin once
// the distribution has ended. Truncation during claims guarantees a
// remainder; sweeping closes the books.
func (e *Engine) SweepRemainder(ctx context.Context, caller types.Principal, now types.Timestamp) (lockup.Receipt, error) {
	if caller != e.cfg.Admin {
		return lockup.Receipt{}, fault.New(fault.KindAuthorization, fault.CodeUnauthorized, "unauthorized")
	}
	// Strict: sweeping at exactly the end time still fails.
	if !now.After(e.cfg.End) {
		return lockup.Receipt{}, fault.New(fault.KindState, fault.CodeTooEarly, "distribution has not ended").
			With("end", e.cfg.End.String())
	}

	balance, err := e.bank.Balance(ctx, e.self, e.cfg.Denom)
	if err != nil {
		return lockup.Receipt{}, fault.Storage("query balance", err)
	}

	slog.Info("remainder swept", "admin", caller, "amount", balance)

	r := lockup.Receipt{Token: e.receipts.Generate(), Method: "sweep"}
	r.Attributes = append(r.Attributes,
		lockup.Attribute{Key: "recipient", Value: caller.String()},
		lockup.Attribute{Key: "amount", Value: balance.String()},
	)
	r.Instructions = append(r.Instructions, lockup.SendFunds{
		To:   caller,
		Coin: types.NewCoin(e.cfg.Denom, balance),
	})
	return r, nil
}
