// Package cpu drives one core's trace through its private cache and onto
// the shared bus, one simulated cycle at a time.
package cpu

import (
	"fmt"

	"github.com/sarchlab/cohsim/internal/coherence"
	"github.com/sarchlab/cohsim/internal/trace"
)

// Processor replays a single core's reference trace against its Cache. It
// never touches the Bus's queues directly except to Enqueue the
// transaction a miss produces; all coherence bookkeeping lives in Cache
// and Bus.
type Processor struct {
	id    int
	cache *coherence.Cache
	trace []trace.Reference

	pc       int
	awaiting bool

	totalCycles int
	idleCycles  int
	reads       int
	writes      int
}

// NewProcessor builds a Processor for core id driving refs through cache.
func NewProcessor(id int, cache *coherence.Cache, refs []trace.Reference) *Processor {
	return &Processor{id: id, cache: cache, trace: refs}
}

// ID returns the core id.
func (p *Processor) ID() int { return p.id }

// IsFinished reports whether this core has retired every reference in its
// trace and has no outstanding miss.
func (p *Processor) IsFinished() bool {
	return p.pc >= len(p.trace) && !p.awaiting
}

// Stats are the per-core counters the final report needs.
type Stats struct {
	TotalCycles int
	IdleCycles  int
	Reads       int
	Writes      int
}

// Stats returns a snapshot of this core's counters.
func (p *Processor) Stats() Stats {
	return Stats{
		TotalCycles: p.totalCycles,
		IdleCycles:  p.idleCycles,
		Reads:       p.reads,
		Writes:      p.writes,
	}
}

// ExecuteCycle advances this core by exactly one simulated cycle. While
// this core's dirty victim is occupying the bus's writeback slot, the
// cycle is spent frozen: no pending countdown advances, since the bus
// serializes a core's own writeback ahead of its own next fetch. Once
// that's clear, the core either retires its current reference (on a
// hit), issues a new one (recording it as pending on a miss), or spends
// the cycle waiting out an already-issued miss. Every cycle that does
// not retire a reference counts as idle. Callers must invoke this once
// per core per cycle, in ascending core-id order, after Bus.Tick.
func (p *Processor) ExecuteCycle(bus *coherence.Bus) {
	if p.IsFinished() {
		return
	}

	p.totalCycles++

	if p.cache.IsWritingToMem() {
		p.idleCycles++
		return
	}

	if p.awaiting {
		p.idleCycles++
		p.cache.TickPending()

		if !p.cache.IsPending() {
			p.awaiting = false
			p.pc++
		}

		return
	}

	ref := p.trace[p.pc]

	var (
		status coherence.HitStatus
		tx     *coherence.Transaction
	)

	switch ref.Op {
	case trace.OpRead:
		p.reads++
		status, tx = p.cache.Read(ref.Address)
	case trace.OpWrite:
		p.writes++
		status, tx = p.cache.Write(ref.Address)
	default:
		panic(fmt.Sprintf("cpu: core %d: unrecognized trace op %q", p.id, ref.Op))
	}

	switch status {
	case coherence.Hit:
		p.pc++
	case coherence.Miss:
		if tx != nil {
			bus.Enqueue(*tx)
		}

		p.awaiting = true
		p.idleCycles++
	case coherence.Stall:
		// Cache.Read/Write only report Stall while already pending, which
		// p.awaiting should have intercepted above; treat defensively as
		// an idle cycle rather than retire nothing silently.
		p.idleCycles++
	}
}
