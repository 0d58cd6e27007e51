package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lockstake/lockstake/internal/types"
)

// PutPosition inserts or overwrites a position record.
//
// The secondary indexes are maintained by SQLite inside the same commit as
// the primary row - there is no intermediate state in which an index lags
// the primary record.
func (s *Store) PutPosition(ctx context.Context, p Position) error {
	if p.LockedUntil < p.LockedSince {
		return fmt.Errorf("put position %s: locked_until %d before locked_since %d",
			p.Key, p.LockedUntil, p.LockedSince)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO positions
		(pkey, owner, collection, token_id, amount, locked_since, locked_until)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pkey) DO UPDATE SET
			owner        = excluded.owner,
			collection   = excluded.collection,
			token_id     = excluded.token_id,
			amount       = excluded.amount,
			locked_since = excluded.locked_since,
			locked_until = excluded.locked_until
	`,
		p.Key,
		string(p.Owner),
		string(p.Collection),
		p.TokenID,
		p.Amount.String(),
		int64(p.LockedSince),
		int64(p.LockedUntil),
	)
	if err != nil {
		return fmt.Errorf("put position %s: %w", p.Key, err)
	}

	return nil
}

// DeletePosition removes a position and all index entries it participates in.
// Deleting an absent key is a no-op; callers check existence first.
func (s *Store) DeletePosition(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM positions WHERE pkey = ?`, key)
	if err != nil {
		return fmt.Errorf("delete position %s: %w", key, err)
	}
	return nil
}

// SaveConfig replaces the instance configuration snapshot wholesale.
// The config value must be JSON-serializable.
func (s *Store) SaveConfig(ctx context.Context, cfg any) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("save config: marshal: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO config (id, data) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data
	`, string(data))
	if err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	return nil
}

// LoadConfig reads the configuration snapshot into out.
// Returns (false, nil) if no configuration has been saved yet.
func (s *Store) LoadConfig(ctx context.Context, out any) (bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM config WHERE id = 1`).Scan(&data)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("load config: %w", err)
	}

	if err := json.Unmarshal([]byte(data), out); err != nil {
		return false, fmt.Errorf("load config: unmarshal: %w", err)
	}

	return true, nil
}

// SaveCheckpoint overwrites the last-claim checkpoint for a claimer subject.
func (s *Store) SaveCheckpoint(ctx context.Context, owner types.Principal, tokenID string, lastClaim types.Timestamp) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (owner, token_id, last_claim)
		VALUES (?, ?, ?)
		ON CONFLICT(owner, token_id) DO UPDATE SET last_claim = excluded.last_claim
	`, string(owner), tokenID, int64(lastClaim))
	if err != nil {
		return fmt.Errorf("save checkpoint (%s, %s): %w", owner, tokenID, err)
	}
	return nil
}
