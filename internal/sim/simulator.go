// Package sim wires a set of per-core traces to the coherence engine and
// drives the global clock: a fluent Builder produces a Simulator.
package sim

import (
	"fmt"

	"github.com/sarchlab/cohsim/internal/coherence"
	"github.com/sarchlab/cohsim/internal/cpu"
	"github.com/sarchlab/cohsim/internal/trace"
)

// CycleObserver is invoked once per cycle, after every core has executed,
// with a snapshot of every cache's outstanding-miss state. It is an
// optional debug hook, off by default, for callers that want per-cycle
// visibility (a live status server, or a test asserting mid-run state).
type CycleObserver func(cycle int, snapshots []coherence.Snapshot)

// Builder assembles a Simulator from geometry and trace configuration.
type Builder struct {
	numCores      int
	setIndexBits  int
	associativity int
	blockBits     int
	traceDir      string
	tracePrefix   string
	observer      CycleObserver
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithNumCores sets the number of cores (and private caches) to simulate.
func (b *Builder) WithNumCores(n int) *Builder {
	b.numCores = n
	return b
}

// WithGeometry sets the shared cache geometry: 2^s sets, E ways,
// 2^blockBits-byte blocks.
func (b *Builder) WithGeometry(s, associativity, blockBits int) *Builder {
	b.setIndexBits = s
	b.associativity = associativity
	b.blockBits = blockBits

	return b
}

// WithTraces sets where per-core trace files live and their shared prefix.
func (b *Builder) WithTraces(dir, prefix string) *Builder {
	b.traceDir = dir
	b.tracePrefix = prefix

	return b
}

// WithCycleObserver installs a per-cycle debug hook.
func (b *Builder) WithCycleObserver(fn CycleObserver) *Builder {
	b.observer = fn
	return b
}

// Build validates the configuration, loads every core's trace, and
// constructs the Simulator.
func (b *Builder) Build() (*Simulator, error) {
	if b.numCores < 1 {
		return nil, fmt.Errorf("sim: number of cores must be >= 1, got %d", b.numCores)
	}

	perCore, err := trace.LoadCores(b.traceDir, b.tracePrefix, b.numCores)
	if err != nil {
		return nil, err
	}

	blockBytes := 1 << uint(b.blockBits)

	caches := make([]*coherence.Cache, b.numCores)
	procs := make([]*cpu.Processor, b.numCores)

	for i := 0; i < b.numCores; i++ {
		c, err := coherence.NewCache(i, b.setIndexBits, b.associativity, b.blockBits)
		if err != nil {
			return nil, fmt.Errorf("sim: core %d: %w", i, err)
		}

		caches[i] = c
		procs[i] = cpu.NewProcessor(i, c, perCore[i])
	}

	return &Simulator{
		caches:   caches,
		procs:    procs,
		bus:      coherence.NewBus(blockBytes),
		observer: b.observer,
	}, nil
}

// Simulator owns every core's Cache and Processor plus the shared Bus, and
// drives them through a fixed phase order every cycle: bus tick, then
// processor ticks in ascending core-id order, then the clock advances.
type Simulator struct {
	caches []*coherence.Cache
	procs  []*cpu.Processor
	bus    *coherence.Bus

	cycle    int
	observer CycleObserver
}

// Bus returns the shared bus, letting a caller install a transaction
// observer (e.g. recording.Recorder) before calling Run.
func (s *Simulator) Bus() *coherence.Bus { return s.bus }

// Run drives the simulation to completion — every core has exhausted its
// trace and has no outstanding miss — and returns the final report.
func (s *Simulator) Run() (Report, error) {
	for !s.allFinished() {
		s.cycle++

		if err := s.bus.Tick(s.caches); err != nil {
			return Report{}, fmt.Errorf("sim: cycle %d: %w", s.cycle, err)
		}

		for _, p := range s.procs {
			p.ExecuteCycle(s.bus)
		}

		if s.observer != nil {
			s.observer(s.cycle, s.snapshots())
		}
	}

	return s.report(), nil
}

func (s *Simulator) allFinished() bool {
	for _, p := range s.procs {
		if !p.IsFinished() {
			return false
		}
	}

	return true
}

func (s *Simulator) snapshots() []coherence.Snapshot {
	snaps := make([]coherence.Snapshot, len(s.caches))
	for i, c := range s.caches {
		snaps[i] = c.Snapshot()
	}

	return snaps
}

// CoreReport is one core's final counters.
type CoreReport struct {
	ID               int
	TotalCycles      int
	IdleCycles       int
	Reads            int
	Writes           int
	Misses           int
	Evictions        int
	Writebacks       int
	Invalidations    int
	DataTrafficBytes int
}

// Report is the simulation's final result: the complete statistics set
// a run produces.
type Report struct {
	Cycles               int
	Cores                []CoreReport
	TotalBusTransactions int
	BusTrafficBytes      int
}

func (s *Simulator) report() Report {
	cores := make([]CoreReport, len(s.procs))
	totalTraffic := 0

	for i, p := range s.procs {
		ps := p.Stats()
		cs := s.caches[i].Stats()
		totalTraffic += cs.DataTrafficBytes

		cores[i] = CoreReport{
			ID:               p.ID(),
			TotalCycles:      ps.TotalCycles,
			IdleCycles:       ps.IdleCycles,
			Reads:            ps.Reads,
			Writes:           ps.Writes,
			Misses:           cs.Misses,
			Evictions:        cs.Evictions,
			Writebacks:       cs.Writebacks,
			Invalidations:    cs.Invalidations,
			DataTrafficBytes: cs.DataTrafficBytes,
		}
	}

	s.bus.SetTrafficBytes(totalTraffic)

	return Report{
		Cycles:               s.cycle,
		Cores:                cores,
		TotalBusTransactions: s.bus.TotalBusTransactions(),
		BusTrafficBytes:      s.bus.TrafficBytes(),
	}
}
