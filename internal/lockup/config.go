package lockup

import (
	"strings"

	"github.com/lockstake/lockstake/internal/fault"
	"github.com/lockstake/lockstake/internal/types"
)

// NativeConfig is the configuration state for a fungible vault.
//
// Configuration is initialized once at creation and replaced wholesale on an
// admin update; it is never mutated field-by-field.
type NativeConfig struct {
	Admin          types.Principal `json:"admin" yaml:"admin"`
	Denom          string          `json:"denom" yaml:"denom"`
	LockupInterval uint64          `json:"lockup_interval" yaml:"lockup_interval"` // seconds
}

func (c NativeConfig) validate() error {
	if c.Admin == "" {
		return fault.New(fault.KindValidation, fault.CodeInvalidConfig, "admin is required")
	}
	if c.Denom == "" {
		return fault.New(fault.KindValidation, fault.CodeInvalidConfig, "denom is required")
	}
	return nil
}

// TokenConfig is the configuration state for the plain NFT custody vault.
// A zero LockupInterval means tokens unlock immediately after deposit.
type TokenConfig struct {
	Admin          types.Principal   `json:"admin" yaml:"admin"`
	LockupInterval uint64            `json:"lockup_interval" yaml:"lockup_interval"` // seconds
	Collections    []types.Principal `json:"collections" yaml:"collections"`
}

func (c TokenConfig) validate() error {
	if c.Admin == "" {
		return fault.New(fault.KindValidation, fault.CodeInvalidConfig, "admin is required")
	}
	return nil
}

func (c TokenConfig) accepts(collection types.Principal) bool {
	for _, candidate := range c.Collections {
		if candidate == collection {
			return true
		}
	}
	return false
}

// CollectionRate pairs an accepted collection with its per-token synthetic
// mint rate.
type CollectionRate struct {
	Address types.Principal `json:"address" yaml:"address"`
	Tokens  types.Amount    `json:"tokens" yaml:"tokens"`
}

// FracConfig is the configuration state for the fraction-minting vault.
//
// SyntheticDenom must be a token-factory denomination ("factory/" prefix);
// the vault mints and burns it through the external factory collaborator.
type FracConfig struct {
	Admin          types.Principal  `json:"admin" yaml:"admin"`
	SyntheticDenom string           `json:"synthetic_denom" yaml:"synthetic_denom"`
	LockupInterval uint64           `json:"lockup_interval" yaml:"lockup_interval"` // seconds
	Collections    []CollectionRate `json:"collections" yaml:"collections"`
}

func (c FracConfig) validate() error {
	if c.Admin == "" {
		return fault.New(fault.KindValidation, fault.CodeInvalidConfig, "admin is required")
	}
	if !strings.HasPrefix(c.SyntheticDenom, "factory/") {
		return fault.New(fault.KindValidation, fault.CodeInvalidConfig,
			"denom must be a token factory token")
	}
	return nil
}

func (c FracConfig) rateFor(collection types.Principal) (CollectionRate, bool) {
	for _, candidate := range c.Collections {
		if candidate.Address == collection {
			return candidate, true
		}
	}
	return CollectionRate{}, false
}

// requireAdmin fails with an authorization fault unless caller is admin.
func requireAdmin(admin, caller types.Principal) error {
	if caller != admin {
		return fault.New(fault.KindAuthorization, fault.CodeUnauthorized, "unauthorized")
	}
	return nil
}
