package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a deterministic vault simulation: an instance file to
// deploy, seed state, and a sequence of operations with expected outcomes.
// Runs are fully reproducible - time comes from the steps, receipt tokens
// from a sequence generator - so traces can be compared against goldens.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario exercises.
	Description string `yaml:"description"`

	// Instance is the path of the instance YAML to deploy, relative to
	// the scenario file. Stores named by the instance are ignored; the
	// runner uses in-memory databases.
	Instance string `yaml:"instance"`

	// Pool seeds the reward engine's balance in the distribution denom.
	// Only meaningful when the instance attaches a stake section.
	Pool uint64 `yaml:"pool,omitempty"`

	// Custody seeds token ownership in the fake custody registry.
	Custody []CustodySeed `yaml:"custody,omitempty"`

	// Balances seeds fungible balances in the fake bank.
	Balances []BalanceSeed `yaml:"balances,omitempty"`

	// Steps is the operation sequence.
	Steps []Step `yaml:"steps"`
}

// CustodySeed places a token with an owner before the run starts.
type CustodySeed struct {
	Collection string `yaml:"collection"`
	TokenID    string `yaml:"token_id"`
	Owner      string `yaml:"owner"`
}

// BalanceSeed credits a principal with funds before the run starts.
type BalanceSeed struct {
	Principal string `yaml:"principal"`
	Denom     string `yaml:"denom"`
	Amount    uint64 `yaml:"amount"`
}

// Step is one operation at one block time.
type Step struct {
	// At is the block time in seconds.
	At uint64 `yaml:"at"`

	// Caller is the principal invoking the operation.
	Caller string `yaml:"caller"`

	// Invoke names the operation. See the Op constants.
	Invoke string `yaml:"invoke"`

	// Args carries operation arguments. Keys depend on the operation:
	// amount, denom, funds, collection, token_id, new_admin, tokens.
	Args map[string]any `yaml:"args,omitempty"`

	// Expect specifies the expected outcome. A nil Expect means the step
	// must succeed with no further checks.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies a step's expected outcome.
type Expect struct {
	// Error is the fault code the step must fail with. Empty means the
	// step must succeed.
	Error string `yaml:"error,omitempty"`

	// Attributes are receipt attributes to subset-match on success.
	Attributes map[string]string `yaml:"attributes,omitempty"`
}

// Operation names accepted in scenario steps.
const (
	OpTransferToken    = "transfer_token" // move a token in the fake registry (no vault call)
	OpDeposit          = "deposit"
	OpWithdraw         = "withdraw"
	OpClaim            = "claim"
	OpSweep            = "sweep"
	OpUpdateAdmin      = "update_admin"
	OpAppendCollection = "append_collection"
)

var knownOps = map[string]bool{
	OpTransferToken:    true,
	OpDeposit:          true,
	OpWithdraw:         true,
	OpClaim:            true,
	OpSweep:            true,
	OpUpdateAdmin:      true,
	OpAppendCollection: true,
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected, and the instance path is resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario YAML: %w", err)
	}

	if scenario.Instance != "" && !filepath.IsAbs(scenario.Instance) {
		scenario.Instance = filepath.Join(filepath.Dir(path), scenario.Instance)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Instance == "" {
		return fmt.Errorf("instance is required")
	}
	if _, err := os.Stat(s.Instance); os.IsNotExist(err) {
		return fmt.Errorf("instance file not found: %s", s.Instance)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, seed := range s.Custody {
		if seed.Collection == "" || seed.TokenID == "" || seed.Owner == "" {
			return fmt.Errorf("custody[%d]: collection, token_id, and owner are required", i)
		}
	}
	for i, seed := range s.Balances {
		if seed.Principal == "" || seed.Denom == "" {
			return fmt.Errorf("balances[%d]: principal and denom are required", i)
		}
	}

	prev := uint64(0)
	for i, step := range s.Steps {
		if step.Caller == "" && step.Invoke != OpTransferToken {
			return fmt.Errorf("steps[%d]: caller is required", i)
		}
		if !knownOps[step.Invoke] {
			return fmt.Errorf("steps[%d]: unknown operation %q", i, step.Invoke)
		}
		if step.At < prev {
			return fmt.Errorf("steps[%d]: block time moved backwards (%d after %d)", i, step.At, prev)
		}
		prev = step.At
		if step.Expect != nil && step.Expect.Error != "" && len(step.Expect.Attributes) > 0 {
			return fmt.Errorf("steps[%d].expect: error and attributes are mutually exclusive", i)
		}
	}
	return nil
}
