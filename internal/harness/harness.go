package harness

import (
	"context"
	"fmt"

	"github.com/lockstake/lockstake/internal/config"
	"github.com/lockstake/lockstake/internal/fault"
	"github.com/lockstake/lockstake/internal/ledger"
	"github.com/lockstake/lockstake/internal/lockup"
	"github.com/lockstake/lockstake/internal/stake"
	"github.com/lockstake/lockstake/internal/testutil"
	"github.com/lockstake/lockstake/internal/types"
)

// Principals the runner executes instructions as.
const (
	// VaultPrincipal stands in for the deployed vault contract: native
	// deposits are credited to it and withdrawals debit it.
	VaultPrincipal = types.Principal("vault")

	// EnginePrincipal stands in for the reward engine: the pool is seeded
	// to it and claims debit it.
	EnginePrincipal = types.Principal("engine")
)

type runner struct {
	ctx      context.Context
	inst     *config.Instance
	seq      *testutil.SeqClock
	clock    *testutil.BlockClock
	registry *Registry
	bank     *Bank

	store  *ledger.Store
	native *lockup.NativeVault
	token  *lockup.TokenVault
	frac   *lockup.FracVault

	stakeStore *ledger.Store
	engine     *stake.Engine

	vaultExec  *Executor
	engineExec *Executor
}

// Run deploys the scenario's instance against in-memory stores and fakes,
// executes every step, and checks each expectation. A step whose outcome
// contradicts its expectation fails the whole run; a run error, as opposed
// to a recorded step fault, always means the scenario itself is wrong.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	inst, err := config.Load(scenario.Instance)
	if err != nil {
		return nil, err
	}

	r := &runner{
		ctx:      ctx,
		inst:     inst,
		seq:      testutil.NewSeqClock(),
		clock:    testutil.NewBlockClock(0),
		registry: NewRegistry(),
		bank:     NewBank(),
	}
	r.vaultExec = &Executor{Registry: r.registry, Bank: r.bank, Self: VaultPrincipal}
	r.engineExec = &Executor{Registry: r.registry, Bank: r.bank, Self: EnginePrincipal}
	defer r.close()

	if err := r.deploy(); err != nil {
		return nil, err
	}
	r.seed(scenario)

	result := &Result{ScenarioName: scenario.Name}
	for i, step := range scenario.Steps {
		ev, err := r.execute(step)
		if err != nil {
			return nil, fmt.Errorf("steps[%d] (%s): %w", i, step.Invoke, err)
		}
		result.Trace = append(result.Trace, ev)
	}

	final, err := r.finalState()
	if err != nil {
		return nil, err
	}
	result.Final = final
	return result, nil
}

func (r *runner) close() {
	if r.store != nil {
		r.store.Close()
	}
	if r.stakeStore != nil {
		r.stakeStore.Close()
	}
}

// deploy builds the vault and optional engine from the instance, receipt
// tokens coming from a sequence generator so traces are reproducible.
func (r *runner) deploy() error {
	store, err := ledger.Open(":memory:")
	if err != nil {
		return err
	}
	r.store = store
	receipts := lockup.NewSequenceGenerator(nil)

	var source stake.LockupSource
	switch r.inst.Variant {
	case config.VariantNative:
		vault, err := lockup.NewNativeVault(r.ctx, store, *r.inst.Native, receipts)
		if err != nil {
			return err
		}
		r.native = vault
		source = stake.NativeSource{Vault: vault}
	case config.VariantToken:
		vault, err := lockup.NewTokenVault(r.ctx, store, *r.inst.Token, r.inst.Escrow, r.registry, receipts)
		if err != nil {
			return err
		}
		r.token = vault
		source = stake.TokenSource{Vault: vault}
	case config.VariantFrac:
		vault, err := lockup.NewFracVault(r.ctx, store, *r.inst.Frac, r.inst.Escrow, r.registry, receipts)
		if err != nil {
			return err
		}
		r.frac = vault
		source = stake.TokenSource{Vault: vault}
	default:
		return fmt.Errorf("unknown variant %q", r.inst.Variant)
	}

	if r.inst.Stake != nil {
		stakeStore, err := ledger.Open(":memory:")
		if err != nil {
			return err
		}
		r.stakeStore = stakeStore
		engine, err := stake.NewEngine(r.ctx, stakeStore, r.inst.Stake.Config, source, r.bank, EnginePrincipal, receipts)
		if err != nil {
			return err
		}
		r.engine = engine
	}
	return nil
}

func (r *runner) seed(scenario *Scenario) {
	for _, s := range scenario.Custody {
		r.registry.Seed(types.Principal(s.Collection), s.TokenID, types.Principal(s.Owner))
	}
	for _, s := range scenario.Balances {
		r.bank.Seed(types.Principal(s.Principal), s.Denom, types.Amount(s.Amount))
	}
	if scenario.Pool > 0 && r.inst.Stake != nil {
		r.bank.Seed(EnginePrincipal, r.inst.Stake.Denom, types.Amount(scenario.Pool))
	}
}

// execute runs one step and records its outcome. The returned error is a
// harness failure (bad scenario, expectation mismatch), never a vault fault.
func (r *runner) execute(step Step) (TraceEvent, error) {
	ev := TraceEvent{
		Seq:    r.seq.Next(),
		At:     step.At,
		Invoke: step.Invoke,
		Caller: step.Caller,
	}
	// Advance block time; the clock panics if a step rewinds it.
	r.clock.Set(types.Timestamp(step.At))

	receipt, opErr, err := r.dispatch(step)
	if err != nil {
		return ev, err
	}

	if opErr != nil {
		code := fault.CodeOf(opErr)
		ev.Error = string(code)
		if step.Expect == nil || step.Expect.Error == "" {
			return ev, fmt.Errorf("unexpected failure: %w", opErr)
		}
		if step.Expect.Error != string(code) {
			return ev, fmt.Errorf("expected fault %s, got %s (%v)", step.Expect.Error, code, opErr)
		}
		return ev, nil
	}

	if step.Expect != nil && step.Expect.Error != "" {
		return ev, fmt.Errorf("expected fault %s, step succeeded", step.Expect.Error)
	}

	ev.Attributes = make(map[string]string, len(receipt.Attributes))
	for _, a := range receipt.Attributes {
		ev.Attributes[a.Key] = a.Value
	}
	for _, inst := range receipt.Instructions {
		ev.Instructions = append(ev.Instructions, renderInstruction(inst))
	}

	if step.Expect != nil {
		for k, want := range step.Expect.Attributes {
			if got, ok := ev.Attributes[k]; !ok || got != want {
				return ev, fmt.Errorf("attribute %q: want %q, got %q", k, want, ev.Attributes[k])
			}
		}
	}

	exec := r.vaultExec
	if step.Invoke == OpClaim || step.Invoke == OpSweep {
		exec = r.engineExec
	}
	if err := exec.Apply(receipt.Instructions); err != nil {
		return ev, err
	}
	return ev, nil
}

// dispatch routes a step to the deployed vault or engine. The second return
// is the operation's fault, kept separate from harness errors.
func (r *runner) dispatch(step Step) (lockup.Receipt, error, error) {
	caller := types.Principal(step.Caller)
	now := r.clock.Now()
	args := stepArgs(step.Args)

	switch step.Invoke {
	case OpTransferToken:
		collection, tokenID, err := args.tokenRef()
		if err != nil {
			return lockup.Receipt{}, nil, err
		}
		to, err := args.principal("to")
		if err != nil {
			return lockup.Receipt{}, nil, err
		}
		if err := r.registry.Transfer(collection, tokenID, to); err != nil {
			return lockup.Receipt{}, nil, err
		}
		return lockup.Receipt{Method: OpTransferToken}, nil, nil

	case OpDeposit:
		return r.dispatchDeposit(caller, args, now)

	case OpWithdraw:
		return r.dispatchWithdraw(caller, args, now)

	case OpClaim:
		if r.engine == nil {
			return lockup.Receipt{}, nil, fmt.Errorf("instance has no stake section")
		}
		subject, err := r.claimSubject(caller, args)
		if err != nil {
			return lockup.Receipt{}, nil, err
		}
		receipt, opErr := r.engine.Claim(r.ctx, caller, subject, now)
		return receipt, opErr, nil

	case OpSweep:
		if r.engine == nil {
			return lockup.Receipt{}, nil, fmt.Errorf("instance has no stake section")
		}
		receipt, opErr := r.engine.SweepRemainder(r.ctx, caller, now)
		return receipt, opErr, nil

	case OpUpdateAdmin:
		newAdmin, err := args.principal("new_admin")
		if err != nil {
			return lockup.Receipt{}, nil, err
		}
		if target, _ := args.str("target"); target == "stake" {
			if r.engine == nil {
				return lockup.Receipt{}, nil, fmt.Errorf("instance has no stake section")
			}
			receipt, opErr := r.engine.UpdateAdmin(r.ctx, caller, newAdmin)
			return receipt, opErr, nil
		}
		return r.dispatchUpdateAdmin(caller, newAdmin)

	case OpAppendCollection:
		if r.frac == nil {
			return lockup.Receipt{}, nil, fmt.Errorf("append_collection requires the frac variant")
		}
		address, err := args.principal("address")
		if err != nil {
			return lockup.Receipt{}, nil, err
		}
		tokens, err := args.amount("tokens")
		if err != nil {
			return lockup.Receipt{}, nil, err
		}
		receipt, opErr := r.frac.AppendCollection(r.ctx, caller, lockup.CollectionRate{Address: address, Tokens: tokens})
		return receipt, opErr, nil
	}
	return lockup.Receipt{}, nil, fmt.Errorf("unknown operation %q", step.Invoke)
}

func (r *runner) dispatchDeposit(caller types.Principal, args stepArgs, now types.Timestamp) (lockup.Receipt, error, error) {
	switch {
	case r.native != nil:
		funds, err := args.funds(r.inst.Native.Denom)
		if err != nil {
			return lockup.Receipt{}, nil, err
		}
		_, receipt, opErr := r.native.Deposit(r.ctx, caller, funds, now)
		if opErr == nil {
			// Attached funds reach the vault only when the call succeeds.
			for _, coin := range funds {
				if err := r.bank.Send(caller, VaultPrincipal, coin); err != nil {
					return lockup.Receipt{}, nil, err
				}
			}
		}
		return receipt, opErr, nil

	case r.token != nil:
		collection, tokenID, err := args.tokenRef()
		if err != nil {
			return lockup.Receipt{}, nil, err
		}
		_, receipt, opErr := r.token.ReceiveToken(r.ctx, caller, collection, tokenID, now)
		return receipt, opErr, nil

	default:
		collection, tokenID, err := args.tokenRef()
		if err != nil {
			return lockup.Receipt{}, nil, err
		}
		_, receipt, opErr := r.frac.ReceiveToken(r.ctx, caller, collection, tokenID, now)
		return receipt, opErr, nil
	}
}

func (r *runner) dispatchWithdraw(caller types.Principal, args stepArgs, now types.Timestamp) (lockup.Receipt, error, error) {
	switch {
	case r.native != nil:
		amount, ok, err := args.optionalAmount("amount")
		if err != nil {
			return lockup.Receipt{}, nil, err
		}
		var partial *types.Amount
		if ok {
			partial = &amount
		}
		receipt, opErr := r.native.Withdraw(r.ctx, caller, partial, now)
		return receipt, opErr, nil

	case r.token != nil:
		collection, tokenID, err := args.tokenRef()
		if err != nil {
			return lockup.Receipt{}, nil, err
		}
		receipt, opErr := r.token.Withdraw(r.ctx, caller, collection, tokenID, now)
		return receipt, opErr, nil

	default:
		collection, tokenID, err := args.tokenRef()
		if err != nil {
			return lockup.Receipt{}, nil, err
		}
		funds, err := args.funds(r.inst.Frac.SyntheticDenom)
		if err != nil {
			return lockup.Receipt{}, nil, err
		}
		receipt, opErr := r.frac.Withdraw(r.ctx, caller, collection, tokenID, funds, now)
		if opErr == nil {
			// The returned synthetic funds reach the vault on success,
			// where the burn instruction destroys them.
			for _, coin := range funds {
				if err := r.bank.Send(caller, VaultPrincipal, coin); err != nil {
					return lockup.Receipt{}, nil, err
				}
			}
		}
		return receipt, opErr, nil
	}
}

func (r *runner) dispatchUpdateAdmin(caller, newAdmin types.Principal) (lockup.Receipt, error, error) {
	switch {
	case r.native != nil:
		receipt, opErr := r.native.UpdateAdmin(r.ctx, caller, newAdmin)
		return receipt, opErr, nil
	case r.token != nil:
		receipt, opErr := r.token.UpdateAdmin(r.ctx, caller, newAdmin)
		return receipt, opErr, nil
	default:
		receipt, opErr := r.frac.UpdateAdmin(r.ctx, caller, newAdmin)
		return receipt, opErr, nil
	}
}

func (r *runner) claimSubject(caller types.Principal, args stepArgs) (stake.Subject, error) {
	if r.native != nil {
		principal := caller
		if p, ok := args.str("principal"); ok {
			principal = types.Principal(p)
		}
		return stake.Subject{Principal: principal}, nil
	}
	collection, tokenID, err := args.tokenRef()
	if err != nil {
		return stake.Subject{}, err
	}
	return stake.Subject{Principal: collection, TokenID: tokenID}, nil
}

func (r *runner) finalState() (FinalState, error) {
	positions, err := r.store.AllPositions(r.ctx)
	if err != nil {
		return FinalState{}, err
	}

	final := FinalState{
		Positions: make(map[string]map[string]any, len(positions)),
		Balances:  make(map[string]map[string]uint64),
	}
	for _, pos := range positions {
		fields := map[string]any{
			"owner":        pos.Owner.String(),
			"amount":       uint64(pos.Amount),
			"locked_since": pos.LockedSince.Seconds(),
			"locked_until": pos.LockedUntil.Seconds(),
		}
		if pos.Collection != "" {
			fields["collection"] = pos.Collection.String()
			fields["token_id"] = pos.TokenID
		}
		final.Positions[pos.Key] = fields
	}
	for holder, denoms := range r.bank.balances {
		dm := make(map[string]uint64, len(denoms))
		for denom, amount := range denoms {
			dm[denom] = uint64(amount)
		}
		final.Balances[holder.String()] = dm
	}
	return final, nil
}

func renderInstruction(inst lockup.Instruction) map[string]any {
	switch in := inst.(type) {
	case lockup.SendFunds:
		return map[string]any{
			"kind":   in.InstructionKind(),
			"to":     in.To.String(),
			"denom":  in.Coin.Denom,
			"amount": uint64(in.Coin.Amount),
		}
	case lockup.TransferToken:
		return map[string]any{
			"kind":       in.InstructionKind(),
			"collection": in.Collection.String(),
			"token_id":   in.TokenID,
			"recipient":  in.Recipient.String(),
		}
	case lockup.MintSynthetic:
		return map[string]any{
			"kind":   in.InstructionKind(),
			"to":     in.To.String(),
			"denom":  in.Coin.Denom,
			"amount": uint64(in.Coin.Amount),
		}
	case lockup.BurnSynthetic:
		return map[string]any{
			"kind":   in.InstructionKind(),
			"denom":  in.Coin.Denom,
			"amount": uint64(in.Coin.Amount),
		}
	default:
		return map[string]any{"kind": in.InstructionKind()}
	}
}
