package harness

import (
	"fmt"

	"github.com/lockstake/lockstake/internal/types"
)

// stepArgs wraps a step's decoded YAML argument map with typed accessors.
// YAML integers arrive as int or int64 depending on magnitude; the uint
// accessor accepts both and rejects negatives.
type stepArgs map[string]any

func (a stepArgs) str(key string) (string, bool) {
	v, ok := a[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (a stepArgs) requireStr(key string) (string, error) {
	s, ok := a.str(key)
	if !ok || s == "" {
		return "", fmt.Errorf("args.%s is required", key)
	}
	return s, nil
}

func (a stepArgs) principal(key string) (types.Principal, error) {
	s, err := a.requireStr(key)
	if err != nil {
		return "", err
	}
	return types.Principal(s), nil
}

func (a stepArgs) uint(key string) (uint64, bool, error) {
	v, ok := a[key]
	if !ok {
		return 0, false, nil
	}
	switch n := v.(type) {
	case int:
		if n < 0 {
			return 0, false, fmt.Errorf("args.%s must not be negative", key)
		}
		return uint64(n), true, nil
	case int64:
		if n < 0 {
			return 0, false, fmt.Errorf("args.%s must not be negative", key)
		}
		return uint64(n), true, nil
	case uint64:
		return n, true, nil
	default:
		return 0, false, fmt.Errorf("args.%s must be an integer, got %T", key, v)
	}
}

func (a stepArgs) amount(key string) (types.Amount, error) {
	n, ok, err := a.uint(key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("args.%s is required", key)
	}
	return types.Amount(n), nil
}

func (a stepArgs) optionalAmount(key string) (types.Amount, bool, error) {
	n, ok, err := a.uint(key)
	return types.Amount(n), ok, err
}

// tokenRef reads the collection/token_id pair used by every NFT operation.
func (a stepArgs) tokenRef() (types.Principal, string, error) {
	collection, err := a.principal("collection")
	if err != nil {
		return "", "", err
	}
	tokenID, err := a.requireStr("token_id")
	if err != nil {
		return "", "", err
	}
	return collection, tokenID, nil
}

// funds reads the attached coins: either an explicit "funds" list of
// denom/amount entries, or the shorthand "amount" (with optional "denom")
// defaulting to the instance denom.
func (a stepArgs) funds(defaultDenom string) ([]types.Coin, error) {
	if raw, ok := a["funds"]; ok {
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("args.funds must be a list")
		}
		coins := make([]types.Coin, 0, len(list))
		for i, entry := range list {
			m, ok := entry.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("args.funds[%d] must be a map", i)
			}
			e := stepArgs(m)
			denom, err := e.requireStr("denom")
			if err != nil {
				return nil, fmt.Errorf("args.funds[%d]: denom is required", i)
			}
			amount, err := e.amount("amount")
			if err != nil {
				return nil, fmt.Errorf("args.funds[%d]: %w", i, err)
			}
			coins = append(coins, types.NewCoin(denom, amount))
		}
		return coins, nil
	}

	amount, ok, err := a.uint("amount")
	if err != nil {
		return nil, err
	}
	if !ok {
		// No funds attached. Vault validation reports this as NO_FUNDS.
		return nil, nil
	}
	denom := defaultDenom
	if d, ok := a.str("denom"); ok {
		denom = d
	}
	return []types.Coin{types.NewCoin(denom, types.Amount(amount))}, nil
}
