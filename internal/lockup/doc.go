// Package lockup implements the three lockup vault variants over a shared
// position ledger.
//
// # Variants
//
// NativeVault locks fungible tokens of a single configured denomination.
// Positions are keyed by depositor and merge on repeated deposit: amounts
// accumulate and the unlock time is recomputed from the latest deposit.
// Withdrawal may be partial.
//
// TokenVault locks non-fungible tokens from an allowlist of collections.
// Positions are keyed by (collection, token) and are all-or-nothing: a token
// is either in custody or it is not.
//
// FracVault extends TokenVault with fractional minting: each deposit mints a
// collection-specific amount of a synthetic token-factory denomination to the
// depositor, and redemption is bearer-based - returning the exact synthetic
// amount releases the token to the sender, with no depositor check.
//
// # Execution model
//
// Vaults are pure state machines over the ledger. They never move assets
// themselves; every operation returns a Receipt whose Instructions the host
// executes (bank sends, token transfers, synthetic mints and burns). Time is
// an input: every mutating operation takes the host clock's timestamp, and
// unlock checks are strict - a withdrawal at exactly the unlock time fails.
//
// All failures are reported as fault.Error values with stable codes; the
// ledger is never left partially updated by a failed operation.
package lockup
