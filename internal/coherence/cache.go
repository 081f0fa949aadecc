package coherence

import (
	"fmt"

	"github.com/sarchlab/cohsim/internal/addrdec"
	"github.com/sarchlab/cohsim/internal/tagging"
)

// Bus-wide timing constants.
const (
	// MemoryLatency is the number of cycles a memory-serviced miss or a
	// writeback takes.
	MemoryLatency = 100
	// WordBytes is the width of one word.
	WordBytes = 4
)

// Snapshot is a point-in-time view of a Cache's outstanding-miss state,
// used by the optional per-cycle observer hook and by tests that assert
// mid-flight state.
type Snapshot struct {
	ProcessorID     int
	Pending         bool
	PendingAddress  uint32
	CyclesRemaining int
	WritingToMem    bool
}

// Cache is one core's private write-back L1, governed by MESI. It hosts at
// most one pending miss and never touches the bus directly: read/write
// return an optional Transaction for the caller (the Processor or
// Simulator) to hand to Bus.Enqueue, keeping the Cache/Bus reference cycle
// out of the type graph.
type Cache struct {
	id      int
	decoder *addrdec.Decoder
	tags    *tagging.SetArray

	pending      pendingMiss
	writingToMem bool

	misses           int
	evictions        int
	writebacks       int
	invalidations    int
	dataTrafficBytes int
}

// NewCache builds the private cache for processor id with geometry
// (s, E, b): 2^s sets, E ways, 2^b-byte blocks.
func NewCache(id, s, associativity, b int) (*Cache, error) {
	decoder, err := addrdec.NewDecoder(s, b)
	if err != nil {
		return nil, err
	}

	if associativity < 1 {
		return nil, fmt.Errorf("coherence: associativity E=%d must be >= 1", associativity)
	}

	return &Cache{
		id:      id,
		decoder: decoder,
		tags:    tagging.NewSetArray(decoder.NumSets(), associativity),
	}, nil
}

// ID returns the owning processor's id.
func (c *Cache) ID() int { return c.id }

// IsPending reports whether this cache currently has an outstanding miss.
func (c *Cache) IsPending() bool { return c.pending.isPending() }

// PendingAddress returns the block address of the outstanding miss; only
// meaningful while IsPending is true.
func (c *Cache) PendingAddress() uint32 { return c.pending.address }

// PendingKind returns the transaction kind of the outstanding miss.
func (c *Cache) PendingKind() TransactionType { return c.pending.kind }

// PendingCyclesRemaining returns the outstanding miss's countdown; only
// meaningful once the bus has resolved a latency for it.
func (c *Cache) PendingCyclesRemaining() int { return c.pending.cyclesRemaining }

// PendingAwaitingLatency reports whether this cache's outstanding miss is
// still waiting on the bus to compute its resolution latency.
func (c *Cache) PendingAwaitingLatency() bool {
	return c.pending.state == pendingAwaitingLatency
}

// StateOf reports the MESI state of the valid line addressed by addr, if
// any. Peers use this (via the Bus) to decide whether a read miss can be
// satisfied cache-to-cache.
func (c *Cache) StateOf(addr uint32) (tagging.State, bool) {
	setIndex := c.decoder.SetIndex(addr)
	tag := c.decoder.Tag(addr)

	way, ok := c.tags.Lookup(setIndex, tag)
	if !ok {
		return tagging.Invalid, false
	}

	return c.tags.Line(setIndex, way).State, true
}

// IsWritingToMem reports whether this cache's evicted dirty victim is
// currently occupying the bus's exclusive writeback slot.
func (c *Cache) IsWritingToMem() bool { return c.writingToMem }

// SetWritingToMem is called by the Bus when it starts or finishes this
// cache's writeback.
func (c *Cache) SetWritingToMem(v bool) { c.writingToMem = v }

func (c *Cache) blockBytes() int { return c.decoder.BlockBytes() }

// Snapshot captures the cache's current outstanding-miss state.
func (c *Cache) Snapshot() Snapshot {
	return Snapshot{
		ProcessorID:     c.id,
		Pending:         c.pending.isPending(),
		PendingAddress:  c.pending.address,
		CyclesRemaining: c.pending.cyclesRemaining,
		WritingToMem:    c.writingToMem,
	}
}

// Stats are the coherence-side counters the report needs; reads and
// writes themselves are tracked by the Processor.
type Stats struct {
	Misses           int
	Evictions        int
	Writebacks       int
	Invalidations    int
	DataTrafficBytes int
}

// Stats returns a snapshot of this cache's counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Misses:           c.misses,
		Evictions:        c.evictions,
		Writebacks:       c.writebacks,
		Invalidations:    c.invalidations,
		DataTrafficBytes: c.dataTrafficBytes,
	}
}

// Read services a load. While a miss is pending it stalls; on a cache hit
// it updates LRU and returns Hit; on a miss it records the pending fetch
// and returns the BusRd transaction the caller must enqueue.
func (c *Cache) Read(addr uint32) (HitStatus, *Transaction) {
	if c.pending.isPending() {
		return Stall, nil
	}

	tag, setIndex, _ := c.decoder.Decompose(addr)

	if way, ok := c.tags.Lookup(setIndex, tag); ok {
		c.tags.Touch(setIndex, way)
		return Hit, nil
	}

	blockAddr := c.decoder.BlockAddress(addr)
	c.pending = pendingMiss{state: pendingAwaitingLatency, address: blockAddr, kind: BusRd}
	c.misses++

	tx := newTransaction(BusRd, blockAddr, c.id)

	return Miss, &tx
}

// Write services a store. A hit in Modified/Exclusive silently upgrades to
// Modified; a hit in Shared issues a BusUpgr to invalidate peers without
// fetching data (the issuer never invalidates itself); a miss behaves like
// Read but fetches with intent to modify.
func (c *Cache) Write(addr uint32) (HitStatus, *Transaction) {
	if c.pending.isPending() {
		return Stall, nil
	}

	tag, setIndex, _ := c.decoder.Decompose(addr)

	if way, ok := c.tags.Lookup(setIndex, tag); ok {
		line := c.tags.Line(setIndex, way)

		switch line.State {
		case tagging.Modified, tagging.Exclusive:
			line.State = tagging.Modified
			line.Dirty = true
			c.tags.SetLine(setIndex, way, line)
			c.tags.Touch(setIndex, way)

			return Hit, nil
		case tagging.Shared:
			line.State = tagging.Modified
			line.Dirty = true
			c.tags.SetLine(setIndex, way, line)
			c.tags.Touch(setIndex, way)

			blockAddr := c.decoder.BlockAddress(addr)
			tx := newTransaction(BusUpgr, blockAddr, c.id)

			return Hit, &tx
		}
	}

	blockAddr := c.decoder.BlockAddress(addr)
	c.pending = pendingMiss{state: pendingAwaitingLatency, address: blockAddr, kind: BusRdWITWr}
	c.misses++

	tx := newTransaction(BusRdWITWr, blockAddr, c.id)

	return Miss, &tx
}

// TickPending advances the outstanding miss's countdown by one cycle. A
// miss still awaiting a latency decision from the bus (cyclesRemaining
// represented internally by pendingAwaitingLatency) is left untouched.
func (c *Cache) TickPending() {
	if c.pending.state != pendingCounting {
		return
	}

	if c.pending.cyclesRemaining > 0 {
		c.pending.cyclesRemaining--
	}

	if c.pending.cyclesRemaining == 0 {
		c.pending = pendingMiss{}
	}
}

// ResolvePending is called by the Bus once it has decided the latency for
// this cache's outstanding miss. It installs the fetched block (possibly
// evicting a victim first) and starts the miss's cycle countdown. It
// returns a BusWr transaction for the caller to enqueue if the victim was
// dirty, or nil otherwise.
func (c *Cache) ResolvePending(kind TransactionType, addr uint32, latency int) *Transaction {
	tag, setIndex, _ := c.decoder.Decompose(addr)

	victim := c.tags.SelectVictim(setIndex)
	victimLine := c.tags.Line(setIndex, victim)

	var writeback *Transaction

	if victimLine.Valid && victimLine.Dirty {
		victimAddr := c.decoder.Reassemble(victimLine.Tag, setIndex)
		tx := newTransaction(BusWr, victimAddr, c.id)
		writeback = &tx
		c.writebacks++
	} else if victimLine.Valid {
		c.evictions++
	}

	var state tagging.State

	var dirty bool

	switch kind {
	case BusRd:
		if latency == MemoryLatency {
			state = tagging.Exclusive
		} else {
			state = tagging.Shared
		}

		dirty = false
	case BusRdWITWr:
		state = tagging.Modified
		dirty = true
	}

	c.tags.Install(setIndex, victim, tag, state, dirty)
	c.dataTrafficBytes += c.blockBytes()

	c.pending = pendingMiss{state: pendingCounting, address: addr, kind: kind, cyclesRemaining: latency}

	return writeback
}

// Snoop applies an incoming BusRd or BusRdWITWr transaction from another
// core to this cache's copy of the addressed block. Callers must never
// invoke Snoop with a transaction this cache itself issued.
func (c *Cache) Snoop(tx Transaction) {
	setIndex := c.decoder.SetIndex(tx.Address)
	tag := c.decoder.Tag(tx.Address)

	way, ok := c.tags.Lookup(setIndex, tag)
	if !ok {
		return
	}

	line := c.tags.Line(setIndex, way)

	switch tx.Type {
	case BusRd:
		switch line.State {
		case tagging.Modified:
			c.writebacks++
			c.dataTrafficBytes += c.blockBytes()
			line.Dirty = false
			line.State = tagging.Shared
			c.tags.SetLine(setIndex, way, line)
		case tagging.Exclusive:
			line.State = tagging.Shared
			c.tags.SetLine(setIndex, way, line)
		case tagging.Shared:
			// no-op
		}
	case BusRdWITWr:
		switch line.State {
		case tagging.Modified:
			c.writebacks++
			c.dataTrafficBytes += c.blockBytes()
			c.invalidations++
			c.tags.Invalidate(setIndex, way)
		case tagging.Exclusive, tagging.Shared:
			c.invalidations++
			c.tags.Invalidate(setIndex, way)
		}
	}
}

// SnoopUpgrade applies a queued BusUpgr to this cache's copy of addr. Only
// a Shared copy may legally be invalidated this way; a Modified or
// Exclusive copy indicates a coherence invariant was already broken
// upstream — a BusUpgr should never be issued while another core still
// holds the block exclusively or dirty.
func (c *Cache) SnoopUpgrade(addr uint32) error {
	setIndex := c.decoder.SetIndex(addr)
	tag := c.decoder.Tag(addr)

	way, ok := c.tags.Lookup(setIndex, tag)
	if !ok {
		return nil
	}

	line := c.tags.Line(setIndex, way)

	switch line.State {
	case tagging.Shared:
		c.invalidations++
		c.tags.Invalidate(setIndex, way)
	case tagging.Modified, tagging.Exclusive:
		return fmt.Errorf("%w: BusUpgr against %s line at core %d addr 0x%x",
			ErrInvariant, line.State, c.id, addr)
	}

	return nil
}
