// Package ledger provides SQLite-backed indexed storage for lockup positions.
//
// The ledger holds three record families:
//   - Positions: the primary deposit records, keyed by a stable primary key
//   - Config: a single-row instance configuration snapshot
//   - Checkpoints: per-claimer last-claim markers, owned by the stake engine
//
// # Indexing Model
//
// The positions table is the single source of truth; the secondary lookups
// (by owner, by collection, by composite collection+token) are served by SQL
// indexes rebuilt mechanically inside the same commit as the primary write.
// No index update is ever persisted as a separate step, so there is no
// observable state in which an index lags the primary record.
//
// Range queries return ascending primary-key order (ORDER BY pkey COLLATE
// BINARY ASC), a total order over the key type that is independent of
// insertion order. First-match lookups take the smallest key in the range.
//
// # Execution Model
//
// The host guarantees single-threaded, serialized mutation per instance, so
// the connection pool is capped at a single connection and no application
// locks are needed. Each mutation is one transaction: a failed operation
// rolls back as a unit and leaves no partial side effects.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package ledger
