// Package coherence implements the MESI coherence engine: each core's
// private write-back cache, the central snooping bus, and the state
// machines that link them. This is the core of the simulator; everything
// else in the repository (trace parsing, CLI, reporting) is a collaborator
// around it.
package coherence

import (
	"errors"
	"fmt"

	"github.com/rs/xid"
)

// ErrInvariant is returned (and passed up unchanged by Bus.Tick) when a
// snoop observes a state the protocol says cannot happen, e.g. a BusUpgr
// against a line held Modified or Exclusive by the snooping peer.
var ErrInvariant = errors.New("coherence: invariant violation")

// TransactionType names the bus transaction kinds the protocol's data
// model defines. BusRdX is an alias of BusRdWITWr; this repository only
// keeps one constant for the write-miss case, since the distinction is
// redundant.
type TransactionType int

// The bus transaction kinds.
const (
	// BusRd is a read miss: request a shared or exclusive copy.
	BusRd TransactionType = iota
	// BusRdWITWr is a write miss: request the block with intent to
	// modify. Peers holding it invalidate. Equivalent to BusRdX.
	BusRdWITWr
	// BusUpgr is a write hit on a Shared line: no data is fetched, only
	// peer Shared copies are invalidated.
	BusUpgr
	// BusWr is the writeback of a dirty victim to memory.
	BusWr
)

func (t TransactionType) String() string {
	switch t {
	case BusRd:
		return "BusRd"
	case BusRdWITWr:
		return "BusRdWITWr"
	case BusUpgr:
		return "BusUpgr"
	case BusWr:
		return "BusWr"
	default:
		return fmt.Sprintf("TransactionType(%d)", int(t))
	}
}

// Transaction is a tag-only bus transaction: no data payload is modeled,
// only the metadata needed to arbitrate and snoop it.
type Transaction struct {
	ID      string
	Type    TransactionType
	Address uint32 // block-aligned
	Source  int    // issuing processor id
}

// newTransaction stamps a fresh transaction with a globally unique id.
func newTransaction(t TransactionType, addr uint32, source int) Transaction {
	return Transaction{
		ID:      xid.New().String(),
		Type:    t,
		Address: addr,
		Source:  source,
	}
}

// HitStatus is the outcome the Cache reports back to the Processor
// driving it.
type HitStatus int

// The three outcomes a read or write can report.
const (
	Hit HitStatus = iota
	Miss
	Stall
)

// pendingState is an explicit tri-state in place of a bool+int pair for
// the at-most-one-outstanding-miss slot.
type pendingState int

const (
	pendingIdle pendingState = iota
	pendingAwaitingLatency
	pendingCounting
)

// pendingMiss is the at-most-one outstanding fetch a Cache can be waiting
// on. cyclesRemaining is meaningful only in pendingCounting.
type pendingMiss struct {
	state           pendingState
	address         uint32
	kind            TransactionType // BusRd or BusRdWITWr
	cyclesRemaining int
}

func (p pendingMiss) isPending() bool {
	return p.state != pendingIdle
}
