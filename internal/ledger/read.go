package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lockstake/lockstake/internal/types"
)

// ErrNoPosition is returned by point lookups when no record exists.
// Callers translate it into their own taxonomy.
var ErrNoPosition = errors.New("no position")

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

const positionColumns = `pkey, owner, collection, token_id, amount, locked_since, locked_until`

func scanPosition(row interface{ Scan(...any) error }) (Position, error) {
	var (
		p           Position
		owner       string
		collection  string
		amount      string
		since, till int64
	)
	if err := row.Scan(&p.Key, &owner, &collection, &p.TokenID, &amount, &since, &till); err != nil {
		return Position{}, err
	}

	parsed, err := types.ParseAmount(amount)
	if err != nil {
		return Position{}, fmt.Errorf("corrupt amount for %s: %w", p.Key, err)
	}

	p.Owner = types.Principal(owner)
	p.Collection = types.Principal(collection)
	p.Amount = parsed
	p.LockedSince = types.Timestamp(since)
	p.LockedUntil = types.Timestamp(till)
	return p, nil
}

// Position returns the record with the given primary key.
// Returns ErrNoPosition if absent.
func (s *Store) Position(ctx context.Context, key string) (Position, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+positionColumns+` FROM positions WHERE pkey = ?
	`, key)

	p, err := scanPosition(row)
	if err != nil {
		if isNoRows(err) {
			return Position{}, ErrNoPosition
		}
		return Position{}, fmt.Errorf("read position %s: %w", key, err)
	}
	return p, nil
}

// FirstByToken returns the position for a (collection, token) pair.
//
// The composite index is logically unique - at most one active custody record
// per token - but the lookup contract is first-match: the record with the
// smallest primary key in ascending order wins. Returns ErrNoPosition if the
// range is empty.
func (s *Store) FirstByToken(ctx context.Context, collection types.Principal, tokenID string) (Position, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+positionColumns+`
		FROM positions
		WHERE collection = ? AND token_id = ?
		ORDER BY pkey COLLATE BINARY ASC
		LIMIT 1
	`, string(collection), tokenID)

	p, err := scanPosition(row)
	if err != nil {
		if isNoRows(err) {
			return Position{}, ErrNoPosition
		}
		return Position{}, fmt.Errorf("read position (%s, %s): %w", collection, tokenID, err)
	}
	return p, nil
}

// PositionsByOwner returns all positions deposited by the given principal,
// in ascending primary-key order.
//
// Returns an empty slice (not nil) if the owner has no positions.
func (s *Store) PositionsByOwner(ctx context.Context, owner types.Principal) ([]Position, error) {
	return s.rangePositions(ctx, `
		SELECT `+positionColumns+`
		FROM positions
		WHERE owner = ?
		ORDER BY pkey COLLATE BINARY ASC
	`, string(owner))
}

// PositionsByCollection returns all positions for a collection,
// in ascending primary-key order.
//
// Returns an empty slice (not nil) if the collection has no positions.
func (s *Store) PositionsByCollection(ctx context.Context, collection types.Principal) ([]Position, error) {
	return s.rangePositions(ctx, `
		SELECT `+positionColumns+`
		FROM positions
		WHERE collection = ?
		ORDER BY pkey COLLATE BINARY ASC
	`, string(collection))
}

// AllPositions returns every active position in ascending primary-key order.
func (s *Store) AllPositions(ctx context.Context) ([]Position, error) {
	return s.rangePositions(ctx, `
		SELECT ` + positionColumns + `
		FROM positions
		ORDER BY pkey COLLATE BINARY ASC
	`)
}

func (s *Store) rangePositions(ctx context.Context, query string, args ...any) ([]Position, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("range positions: %w", err)
	}
	defer rows.Close()

	positions := []Position{}
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("range positions: %w", err)
		}
		positions = append(positions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate positions: %w", err)
	}

	return positions, nil
}

// CountPositions returns the number of active position records.
func (s *Store) CountPositions(ctx context.Context) (uint64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM positions`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count positions: %w", err)
	}
	return uint64(count), nil
}

// SumAmounts returns the sum of all locked amounts, with checked addition.
//
// Amounts are stored as decimal text, so the sum is computed in Go rather
// than SQL, iterating records the same way the count query does.
func (s *Store) SumAmounts(ctx context.Context) (types.Amount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT amount FROM positions ORDER BY pkey COLLATE BINARY ASC`)
	if err != nil {
		return 0, fmt.Errorf("sum amounts: %w", err)
	}
	defer rows.Close()

	var total types.Amount
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return 0, fmt.Errorf("sum amounts: %w", err)
		}
		amount, err := types.ParseAmount(raw)
		if err != nil {
			return 0, fmt.Errorf("sum amounts: %w", err)
		}
		total, err = total.CheckedAdd(amount)
		if err != nil {
			return 0, fmt.Errorf("sum amounts: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("sum amounts: %w", err)
	}

	return total, nil
}

// Checkpoint returns the last-claim timestamp for a claimer subject.
// Returns (0, false, nil) if no checkpoint exists.
func (s *Store) Checkpoint(ctx context.Context, owner types.Principal, tokenID string) (types.Timestamp, bool, error) {
	var last int64
	err := s.db.QueryRowContext(ctx, `
		SELECT last_claim FROM checkpoints WHERE owner = ? AND token_id = ?
	`, string(owner), tokenID).Scan(&last)
	if err != nil {
		if isNoRows(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("read checkpoint (%s, %s): %w", owner, tokenID, err)
	}
	return types.Timestamp(last), true, nil
}

// CountCheckpoints returns the number of claim checkpoints.
// Used by tests to assert that rejected claims leave the table unchanged.
func (s *Store) CountCheckpoints(ctx context.Context) (uint64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM checkpoints`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count checkpoints: %w", err)
	}
	return uint64(count), nil
}
