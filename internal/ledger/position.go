package ledger

import (
	"github.com/lockstake/lockstake/internal/types"
)

// Position is a single active lockup record.
//
// A position exists if and only if custody of the underlying value is
// currently held by the escrow: the full incoming amount for the fungible
// variant, or the deposited token for the NFT variants.
//
// INVARIANT: LockedUntil >= LockedSince (also enforced by the schema CHECK).
type Position struct {
	// Key is the stable primary key. Fungible positions are keyed by owner;
	// NFT positions by (collection, token id).
	Key string

	// Owner is the depositing principal.
	Owner types.Principal

	// Collection and TokenID identify the escrowed token for NFT positions.
	// Both are empty for fungible positions.
	Collection types.Principal
	TokenID    string

	// Amount is the locked fungible amount. NFT positions always hold 1.
	Amount types.Amount

	LockedSince types.Timestamp
	LockedUntil types.Timestamp
}

// NativeKey derives the primary key for a fungible position.
// A depositor can only ever address their own key.
func NativeKey(owner types.Principal) string {
	return string(owner)
}

// TokenKey derives the composite primary key for an NFT position.
// Collection identifiers are validated principals and never contain '/',
// so the encoding is unambiguous.
func TokenKey(collection types.Principal, tokenID string) string {
	return string(collection) + "/" + tokenID
}
