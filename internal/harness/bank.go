package harness

import (
	"context"
	"fmt"

	"github.com/lockstake/lockstake/internal/lockup"
	"github.com/lockstake/lockstake/internal/types"
)

// Registry is an in-memory custody registry. It stands in for the external
// token contracts: scenarios seed it, transfer steps move tokens in it, and
// vault TransferToken instructions are applied back to it.
type Registry struct {
	owners map[string]types.Principal
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{owners: make(map[string]types.Principal)}
}

func (r *Registry) key(collection types.Principal, tokenID string) string {
	return collection.String() + "/" + tokenID
}

// Seed places a token with an owner, minting it if unknown.
func (r *Registry) Seed(collection types.Principal, tokenID string, owner types.Principal) {
	r.owners[r.key(collection, tokenID)] = owner
}

// OwnerOf implements lockup.CustodyRegistry.
func (r *Registry) OwnerOf(collection types.Principal, tokenID string) (types.Principal, error) {
	owner, ok := r.owners[r.key(collection, tokenID)]
	if !ok {
		return "", fmt.Errorf("unknown token %s/%s", collection, tokenID)
	}
	return owner, nil
}

// Transfer moves a token to a new owner. Fails on unknown tokens: the
// registry only tracks tokens a scenario has seeded.
func (r *Registry) Transfer(collection types.Principal, tokenID string, to types.Principal) error {
	k := r.key(collection, tokenID)
	if _, ok := r.owners[k]; !ok {
		return fmt.Errorf("unknown token %s/%s", collection, tokenID)
	}
	r.owners[k] = to
	return nil
}

// Bank is an in-memory fungible ledger standing in for the host's bank and
// token-factory modules. Send/mint/burn instructions from vault receipts are
// applied here so scenarios can assert on resulting balances.
type Bank struct {
	balances map[types.Principal]map[string]types.Amount
}

// NewBank creates an empty bank.
func NewBank() *Bank {
	return &Bank{balances: make(map[types.Principal]map[string]types.Amount)}
}

// Seed credits a principal with funds.
func (b *Bank) Seed(holder types.Principal, denom string, amount types.Amount) {
	b.credit(holder, denom, amount)
}

// Balance implements stake.BalanceQuerier.
func (b *Bank) Balance(_ context.Context, holder types.Principal, denom string) (types.Amount, error) {
	return b.balances[holder][denom], nil
}

func (b *Bank) credit(holder types.Principal, denom string, amount types.Amount) {
	if b.balances[holder] == nil {
		b.balances[holder] = make(map[string]types.Amount)
	}
	b.balances[holder][denom] += amount
}

func (b *Bank) debit(holder types.Principal, denom string, amount types.Amount) error {
	held := b.balances[holder][denom]
	if amount > held {
		return fmt.Errorf("insufficient funds: %s holds %s%s, needs %s", holder, held, denom, amount)
	}
	b.balances[holder][denom] = held - amount
	return nil
}

// Send moves funds between principals.
func (b *Bank) Send(from, to types.Principal, coin types.Coin) error {
	if err := b.debit(from, coin.Denom, coin.Amount); err != nil {
		return err
	}
	b.credit(to, coin.Denom, coin.Amount)
	return nil
}

// Executor applies receipt instructions against the fakes the way the host
// chain would: bank sends debit the vault-or-engine principal, mints create
// synthetic supply, burns destroy funds already collected from the sender,
// token transfers move custody.
type Executor struct {
	Registry *Registry
	Bank     *Bank

	// Self is the principal instructions execute as: the source of bank
	// sends and the collector of returned synthetic funds.
	Self types.Principal
}

// Apply executes every instruction in order. Scenarios treat a failure here
// as a harness bug, not a vault outcome: vaults only emit instructions after
// their own checks pass.
func (e *Executor) Apply(instructions []lockup.Instruction) error {
	for _, inst := range instructions {
		switch in := inst.(type) {
		case lockup.SendFunds:
			if err := e.Bank.Send(e.Self, in.To, in.Coin); err != nil {
				return fmt.Errorf("send_funds: %w", err)
			}
		case lockup.TransferToken:
			if err := e.Registry.Transfer(in.Collection, in.TokenID, in.Recipient); err != nil {
				return fmt.Errorf("transfer_token: %w", err)
			}
		case lockup.MintSynthetic:
			e.Bank.credit(in.To, in.Coin.Denom, in.Coin.Amount)
		case lockup.BurnSynthetic:
			if err := e.Bank.debit(e.Self, in.Coin.Denom, in.Coin.Amount); err != nil {
				return fmt.Errorf("burn_synthetic: %w", err)
			}
		default:
			return fmt.Errorf("unknown instruction %q", inst.InstructionKind())
		}
	}
	return nil
}
