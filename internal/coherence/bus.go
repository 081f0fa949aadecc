package coherence

import "github.com/sarchlab/cohsim/internal/tagging"

// activeWriteback tracks the single writeback the bus may be servicing at
// once; while active the bus grants nothing else.
type activeWriteback struct {
	active     bool
	cyclesLeft int
	src        int
}

// Bus is the shared, snooping interconnect. It arbitrates three FIFOs by
// strict priority — upgrades drain first, then at most one writeback may
// start, then the normal (BusRd/BusRdWITWr) queue is served head-of-line —
// and snoops every peer cache on every cycle a normal-queue head is
// outstanding, one phase per method the way a staged pipeline component
// lays out each stage as its own function.
type Bus struct {
	blockBytes int

	upgradeQ   []Transaction
	writebackQ []Transaction
	normalQ    []Transaction

	active activeWriteback

	cycle                int
	totalBusTransactions int
	busTrafficBytes      int

	txObserver TransactionObserver
}

// TransactionObserver is notified of every transaction the moment it is
// admitted onto the bus. recording.Recorder is the production
// implementation; tests substitute a mock.
type TransactionObserver interface {
	ObserveTransaction(cycle int, tx Transaction)
}

// NewBus builds a Bus for a cache geometry with the given block size in
// bytes; it needs this only to compute cache-to-cache supply latency.
func NewBus(blockBytes int) *Bus {
	return &Bus{blockBytes: blockBytes}
}

// SetTransactionObserver installs a hook invoked once for every
// transaction admitted onto a queue, tagged with the cycle it was
// enqueued on; recording.Recorder uses this to persist the full bus
// history. A supplemental feature, not part of the coherence protocol
// itself.
func (b *Bus) SetTransactionObserver(o TransactionObserver) {
	b.txObserver = o
}

// Enqueue admits a freshly issued transaction onto the appropriate queue.
func (b *Bus) Enqueue(tx Transaction) {
	b.totalBusTransactions++

	if b.txObserver != nil {
		b.txObserver.ObserveTransaction(b.cycle, tx)
	}

	switch tx.Type {
	case BusUpgr:
		b.upgradeQ = append(b.upgradeQ, tx)
	case BusWr:
		b.writebackQ = append(b.writebackQ, tx)
	default: // BusRd, BusRdWITWr
		b.normalQ = append(b.normalQ, tx)
	}
}

// TotalBusTransactions is the running count of every transaction ever
// enqueued, for the final report.
func (b *Bus) TotalBusTransactions() int { return b.totalBusTransactions }

// SetTrafficBytes records the simulator's roll-up of every cache's
// dataTrafficBytes counter (P3: the bus moves exactly what caches account
// for moving). The bus keeps no independent byte counter of its own.
func (b *Bus) SetTrafficBytes(n int) { b.busTrafficBytes = n }

// TrafficBytes returns the last value SetTrafficBytes recorded.
func (b *Bus) TrafficBytes() int { return b.busTrafficBytes }

// Tick advances the bus by one cycle against the full set of per-core
// caches, in a fixed priority order: active writeback, then upgrades,
// then at most one new writeback, then the normal queue. It returns an
// error only when a snoop observes an invariant violation (SnoopUpgrade
// against a Modified or Exclusive line).
func (b *Bus) Tick(caches []*Cache) error {
	b.cycle++

	if b.tickActiveWriteback(caches) {
		return nil
	}

	if err := b.drainUpgrades(caches); err != nil {
		return err
	}

	if b.startWriteback(caches) {
		return nil
	}

	b.serviceNormal(caches)

	return nil
}

// tickActiveWriteback counts down an in-flight writeback. While one is
// active the bus does nothing else this cycle; it reports whether it
// consumed the cycle.
func (b *Bus) tickActiveWriteback(caches []*Cache) bool {
	if !b.active.active {
		return false
	}

	b.active.cyclesLeft--
	if b.active.cyclesLeft <= 0 {
		caches[b.active.src].SetWritingToMem(false)
		b.active = activeWriteback{}
	}

	return true
}

// drainUpgrades snoops every queued BusUpgr against every peer and empties
// the upgrade queue; upgrades need no latency modeling, they complete the
// cycle they're serviced.
func (b *Bus) drainUpgrades(caches []*Cache) error {
	if len(b.upgradeQ) == 0 {
		return nil
	}

	for _, tx := range b.upgradeQ {
		for _, peer := range caches {
			if peer.ID() == tx.Source {
				continue
			}

			if err := peer.SnoopUpgrade(tx.Address); err != nil {
				return err
			}
		}
	}

	b.upgradeQ = b.upgradeQ[:0]

	return nil
}

// startWriteback admits the head of the writeback queue into the bus's
// single exclusive writeback slot, if the slot is free and the queue is
// non-empty. It reports whether it started one.
func (b *Bus) startWriteback(caches []*Cache) bool {
	if len(b.writebackQ) == 0 {
		return false
	}

	tx := b.writebackQ[0]
	b.writebackQ = b.writebackQ[1:]

	b.active = activeWriteback{active: true, cyclesLeft: MemoryLatency, src: tx.Source}
	caches[tx.Source].SetWritingToMem(true)

	return true
}

// serviceNormal snoops the normal queue's head transaction against every
// peer, resolves its issuing cache's latency once, and dequeues it once
// that cache reports the miss no longer pending.
func (b *Bus) serviceNormal(caches []*Cache) {
	if len(b.normalQ) == 0 {
		return
	}

	tx := b.normalQ[0]

	for _, peer := range caches {
		if peer.ID() == tx.Source {
			continue
		}

		peer.Snoop(tx)
	}

	issuer := findCache(caches, tx.Source)
	if issuer == nil || !issuer.IsPending() || issuer.PendingAddress() != tx.Address {
		b.normalQ = b.normalQ[1:]
		return
	}

	if issuer.PendingAwaitingLatency() {
		latency := b.resolveLatency(tx, caches)

		writeback := issuer.ResolvePending(tx.Type, tx.Address, latency)
		if writeback != nil {
			b.Enqueue(*writeback)
		}

		if issuer.PendingCyclesRemaining() == 0 {
			b.normalQ = b.normalQ[1:]
		}

		return
	}

	// Still counting down from a latency decided on an earlier cycle.
}

// resolveLatency decides how many cycles an outstanding BusRd or
// BusRdWITWr takes to fill: a BusRd that finds a Shared/Exclusive peer
// copy is satisfied cache-to-cache in 2*wordsPerBlock cycles (plus
// MemoryLatency if that peer is itself mid writeback), otherwise every
// miss goes to memory at MemoryLatency.
func (b *Bus) resolveLatency(tx Transaction, caches []*Cache) int {
	if tx.Type == BusRd {
		for _, peer := range caches {
			if peer.ID() == tx.Source {
				continue
			}

			state, ok := peer.StateOf(tx.Address)
			if !ok || state == tagging.Invalid {
				continue
			}

			latency := 2 * (b.blockBytes / WordBytes)
			if peer.IsWritingToMem() {
				latency += MemoryLatency
			}

			return latency
		}
	}

	return MemoryLatency
}

func findCache(caches []*Cache, id int) *Cache {
	for _, c := range caches {
		if c.ID() == id {
			return c
		}
	}

	return nil
}
