package lockup

import (
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/lockstake/lockstake/internal/types"
)

// Instruction is an abstract side effect emitted by a state transition.
//
// The core never executes transfers, mints, or burns itself - it emits
// instructions for the host's settlement collaborators and the caller
// dispatches them after the commit.
type Instruction interface {
	// InstructionKind returns a stable identifier for the instruction type.
	InstructionKind() string
}

// SendFunds instructs the funds-transfer collaborator to pay out coins.
type SendFunds struct {
	To   types.Principal
	Coin types.Coin
}

func (SendFunds) InstructionKind() string { return "send_funds" }

// TransferToken instructs the asset registry to return custody of a token.
type TransferToken struct {
	Collection types.Principal
	TokenID    string
	Recipient  types.Principal
}

func (TransferToken) InstructionKind() string { return "transfer_token" }

// MintSynthetic instructs the token-factory collaborator to mint synthetic
// tokens to a depositor.
type MintSynthetic struct {
	To   types.Principal
	Coin types.Coin
}

func (MintSynthetic) InstructionKind() string { return "mint_synthetic" }

// BurnSynthetic instructs the token-factory collaborator to burn synthetic
// tokens held by the escrow.
type BurnSynthetic struct {
	Coin types.Coin
}

func (BurnSynthetic) InstructionKind() string { return "burn_synthetic" }

// Attribute is a single key-value pair in a receipt.
// Attributes are ordered for deterministic trace output.
type Attribute struct {
	Key   string
	Value string
}

// Receipt is the result of a successful state transition: a unique token,
// the method name, ordered attributes, and the emitted instructions.
type Receipt struct {
	Token        string
	Method       string
	Attributes   []Attribute
	Instructions []Instruction
}

func (r *Receipt) attr(key, value string) {
	r.Attributes = append(r.Attributes, Attribute{Key: key, Value: value})
}

// CustodyRegistry answers "who custodies token X" for the NFT variants.
//
// The registry is the external asset ledger (e.g. the collection contract);
// the core only queries it to confirm that custody was actually transferred
// to the escrow before recording a deposit.
type CustodyRegistry interface {
	OwnerOf(collection types.Principal, tokenID string) (types.Principal, error)
}

// ReceiptTokenGenerator generates unique receipt tokens for state transitions.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type ReceiptTokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 receipt tokens.
//
// UUIDv7 embeds a timestamp in the most significant bits, making tokens
// sortable by creation time, which helps when correlating receipts with
// host-side settlement logs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined receipt tokens for testing.
//
// This enables deterministic test execution and golden trace comparison.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewFixedGenerator creates a generator that returns tokens in order.
func NewFixedGenerator(tokens ...string) *FixedGenerator {
	return &FixedGenerator{tokens: tokens}
}

// Generate returns the next predetermined token.
//
// Panics if all tokens have been consumed. This is a fail-fast approach to
// catch test misconfiguration.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.tokens) {
		panic("FixedGenerator: all tokens exhausted")
	}
	token := g.tokens[g.idx]
	g.idx++
	return token
}

// SequenceGenerator returns "receipt-1", "receipt-2", ... without a fixed
// bound. Used by the scenario harness where the number of steps varies.
type SequenceGenerator struct {
	mu  sync.Mutex
	n   int
	fmt func(int) string
}

// NewSequenceGenerator creates a SequenceGenerator with the given formatter.
// A nil formatter defaults to "receipt-%d" numbering starting at 1.
func NewSequenceGenerator(format func(int) string) *SequenceGenerator {
	return &SequenceGenerator{fmt: format}
}

// Generate returns the next generated token.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	if g.fmt == nil {
		return "receipt-" + strconv.Itoa(g.n)
	}
	return g.fmt(g.n)
}
