package testutil

import (
	"sync"

	"github.com/lockstake/lockstake/internal/types"
)

// SeqClock is a thread-safe monotonic logical clock for trace sequencing.
//
// It can be reset for test reuse, so the same scenario run twice yields
// identical sequence numbers.
type SeqClock struct {
	mu  sync.Mutex
	seq int64
}

// NewSeqClock creates a clock starting at 0. The first Next returns 1.
func NewSeqClock() *SeqClock {
	return &SeqClock{}
}

// Next increments and returns the next sequence number.
func (c *SeqClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the current sequence number without incrementing.
func (c *SeqClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset resets the clock to 0.
func (c *SeqClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}

// BlockClock is a settable block-time source. Vault and engine operations
// take time as an argument; BlockClock is where tests and the scenario
// runner keep it.
type BlockClock struct {
	mu  sync.Mutex
	now types.Timestamp
}

// NewBlockClock creates a clock at the given time.
func NewBlockClock(now types.Timestamp) *BlockClock {
	return &BlockClock{now: now}
}

// Now returns the current block time.
func (c *BlockClock) Now() types.Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set jumps the clock to the given time. Set panics if the target is in the
// past: block time never rewinds, and every unlock comparison assumes that.
func (c *BlockClock) Set(now types.Timestamp) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now.Before(c.now) {
		panic("block clock moved backwards")
	}
	c.now = now
}

// Advance moves the clock forward by the given number of seconds and returns
// the new time.
func (c *BlockClock) Advance(seconds uint64) types.Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(seconds)
	return c.now
}
