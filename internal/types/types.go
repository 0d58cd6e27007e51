// Package types defines the primitive value types shared across the lockup
// vaults and the stake engine: principals, amounts, coins, and timestamps.
//
// Principals arrive already validated by the host environment; the core never
// re-validates identifier strings. Amounts are unsigned fixed-precision
// integers with checked arithmetic - overflow and underflow are reported as
// faults, never wrapped or saturated.
package types

import (
	"fmt"
	"strconv"

	"github.com/lockstake/lockstake/internal/fault"
)

// Principal is an opaque, pre-validated identifier for an account or contract.
type Principal string

// String returns the principal's identifier string.
func (p Principal) String() string { return string(p) }

// Amount is an unsigned fixed-precision token amount.
type Amount uint64

// ParseAmount parses a base-10 amount string.
func ParseAmount(s string) (Amount, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fault.Newf(fault.KindValidation, fault.CodeInvalidConfig, "invalid amount %q", s)
	}
	return Amount(v), nil
}

// String returns the base-10 representation.
func (a Amount) String() string {
	return strconv.FormatUint(uint64(a), 10)
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool { return a == 0 }

// CheckedAdd returns a+b, failing with an arithmetic fault on overflow.
func (a Amount) CheckedAdd(b Amount) (Amount, error) {
	sum := a + b
	if sum < a {
		return 0, fault.Newf(fault.KindArithmetic, fault.CodeOverflow,
			"amount overflow: %s + %s", a, b)
	}
	return sum, nil
}

// CheckedSub returns a-b, failing with an arithmetic fault if b > a.
func (a Amount) CheckedSub(b Amount) (Amount, error) {
	if b > a {
		return 0, fault.Newf(fault.KindArithmetic, fault.CodeUnderflow,
			"amount underflow: %s - %s", a, b)
	}
	return a - b, nil
}

// Coin is an amount of a specific denomination.
type Coin struct {
	Denom  string `json:"denom" yaml:"denom"`
	Amount Amount `json:"amount" yaml:"amount"`
}

// NewCoin constructs a Coin.
func NewCoin(denom string, amount Amount) Coin {
	return Coin{Denom: denom, Amount: amount}
}

// String renders the coin as "<amount><denom>", e.g. "500ustars".
func (c Coin) String() string {
	return fmt.Sprintf("%s%s", c.Amount, c.Denom)
}

// SingleCoin validates that funds contain exactly one positive coin of the
// expected denomination and returns it.
//
// Failure order matches the deposit contract: no funds, zero amount,
// multiple denominations, wrong denomination.
func SingleCoin(funds []Coin, denom string) (Coin, error) {
	if len(funds) == 0 {
		return Coin{}, fault.New(fault.KindValidation, fault.CodeNoFunds, "no funds sent")
	}
	if funds[0].Amount.IsZero() {
		return Coin{}, fault.New(fault.KindValidation, fault.CodeZeroFunds, "funds sent must be greater than 0")
	}
	if len(funds) > 1 {
		return Coin{}, fault.New(fault.KindValidation, fault.CodeMultipleDenoms, "only one token type can be sent")
	}
	if funds[0].Denom != denom {
		return Coin{}, fault.Newf(fault.KindValidation, fault.CodeWrongDenom,
			"unsupported token sent: want %s, got %s", denom, funds[0].Denom)
	}
	return funds[0], nil
}

// Timestamp is a seconds-resolution point in time supplied by the host clock.
// The zero value is the epoch.
type Timestamp uint64

// Add returns the timestamp advanced by the given number of seconds.
func (t Timestamp) Add(seconds uint64) Timestamp {
	return t + Timestamp(seconds)
}

// Seconds returns the timestamp as a seconds count.
func (t Timestamp) Seconds() uint64 { return uint64(t) }

// Before reports whether t is strictly before u.
func (t Timestamp) Before(u Timestamp) bool { return t < u }

// After reports whether t is strictly after u.
func (t Timestamp) After(u Timestamp) bool { return t > u }

// String returns the seconds representation.
func (t Timestamp) String() string {
	return strconv.FormatUint(uint64(t), 10)
}
