// Package config loads instance configuration for a lockstake deployment:
// which vault variant to run, where its store lives, and the optional reward
// distribution attached to it.
//
// Loading is two-phase. YAML is decoded strictly, rejecting unknown fields,
// and the raw document is then validated against an embedded CUE schema that
// carries the cross-field rules the decoder cannot express (which sections a
// variant requires, denomination formats, value ranges).
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/lockstake/lockstake/internal/lockup"
	"github.com/lockstake/lockstake/internal/stake"
	"github.com/lockstake/lockstake/internal/types"
)

//go:embed schema.cue
var schemaCUE []byte

// Variant names accepted in an instance file.
const (
	VariantNative = "native"
	VariantToken  = "cw721"
	VariantFrac   = "frac"
)

// Instance describes one deployment: a vault variant, its store, and an
// optional reward distribution reading from it.
type Instance struct {
	// Variant selects the vault state machine.
	Variant string `yaml:"variant"`

	// Store is the path of the vault's database file.
	Store string `yaml:"store"`

	// Escrow is the custody principal token deposits must be transferred
	// to. Required by the token variants, unused by native.
	Escrow types.Principal `yaml:"escrow,omitempty"`

	Native *lockup.NativeConfig `yaml:"native,omitempty"`
	Token  *lockup.TokenConfig  `yaml:"cw721,omitempty"`
	Frac   *lockup.FracConfig   `yaml:"frac,omitempty"`

	// Stake, when present, attaches a reward distribution to the vault.
	Stake *StakeInstance `yaml:"stake,omitempty"`
}

// StakeInstance is a reward distribution plus the path of its own store.
// Checkpoints never share a database with vault positions.
type StakeInstance struct {
	Store        string `yaml:"store"`
	stake.Config `yaml:",inline"`
}

// Load reads and validates an instance file.
func Load(path string) (*Instance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read instance file: %w", err)
	}
	inst, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return inst, nil
}

// Parse decodes and validates instance YAML.
func Parse(data []byte) (*Instance, error) {
	var inst Instance
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&inst); err != nil {
		return nil, fmt.Errorf("parse instance YAML: %w", err)
	}

	if err := validateSchema(data); err != nil {
		return nil, err
	}
	if err := inst.check(); err != nil {
		return nil, err
	}
	return &inst, nil
}

// validateSchema unifies the raw document with the embedded schema.
func validateSchema(data []byte) error {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse instance YAML: %w", err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileBytes(schemaCUE)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile instance schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Instance"))
	if !def.Exists() {
		return fmt.Errorf("instance schema has no #Instance definition")
	}

	unified := def.Unify(ctx.Encode(raw))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid instance: %w", err)
	}
	return nil
}

// check enforces the variant/section pairing on the decoded value.
func (i *Instance) check() error {
	switch i.Variant {
	case VariantNative:
		if i.Native == nil {
			return fmt.Errorf("invalid instance: variant %q requires a native section", i.Variant)
		}
	case VariantToken:
		if i.Token == nil {
			return fmt.Errorf("invalid instance: variant %q requires a cw721 section", i.Variant)
		}
		if i.Escrow == "" {
			return fmt.Errorf("invalid instance: variant %q requires an escrow principal", i.Variant)
		}
	case VariantFrac:
		if i.Frac == nil {
			return fmt.Errorf("invalid instance: variant %q requires a frac section", i.Variant)
		}
		if i.Escrow == "" {
			return fmt.Errorf("invalid instance: variant %q requires an escrow principal", i.Variant)
		}
	default:
		return fmt.Errorf("invalid instance: unknown variant %q", i.Variant)
	}
	if i.Stake != nil && i.Stake.Store == i.Store {
		return fmt.Errorf("invalid instance: stake store must not be the vault store")
	}
	return nil
}
