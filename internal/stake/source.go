package stake

import (
	"context"

	"github.com/lockstake/lockstake/internal/ledger"
	"github.com/lockstake/lockstake/internal/lockup"
	"github.com/lockstake/lockstake/internal/types"
)

// Subject identifies the stake a claim is made against. For fungible vaults
// Principal is the depositor and TokenID is empty; for token vaults Principal
// is the collection and TokenID names the token.
type Subject struct {
	Principal types.Principal
	TokenID   string
}

// LockupSource is the reward engine's view of a lockup vault. Units is the
// live reward divisor and is read fresh on every claim: fungible vaults
// divide by the total locked amount, token vaults by the position count.
type LockupSource interface {
	Kind() string
	Stake(ctx context.Context, subject Subject) (ledger.Position, error)
	Units(ctx context.Context) (uint64, error)
}

// NativeSource adapts a fungible vault into a LockupSource.
type NativeSource struct {
	Vault *lockup.NativeVault
}

func (s NativeSource) Kind() string { return s.Vault.VariantKind() }

func (s NativeSource) Stake(ctx context.Context, subject Subject) (ledger.Position, error) {
	return s.Vault.Position(ctx, subject.Principal)
}

func (s NativeSource) Units(ctx context.Context) (uint64, error) {
	total, err := s.Vault.TotalLocked(ctx)
	if err != nil {
		return 0, err
	}
	return uint64(total), nil
}

// TokenLockup is the query surface shared by the token-custody vaults.
type TokenLockup interface {
	VariantKind() string
	PositionByToken(ctx context.Context, collection types.Principal, tokenID string) (ledger.Position, error)
	Count(ctx context.Context) (uint64, error)
}

// TokenSource adapts a token-custody vault into a LockupSource.
type TokenSource struct {
	Vault TokenLockup
}

func (s TokenSource) Kind() string { return s.Vault.VariantKind() }

func (s TokenSource) Stake(ctx context.Context, subject Subject) (ledger.Position, error) {
	return s.Vault.PositionByToken(ctx, subject.Principal, subject.TokenID)
}

func (s TokenSource) Units(ctx context.Context) (uint64, error) {
	return s.Vault.Count(ctx)
}
