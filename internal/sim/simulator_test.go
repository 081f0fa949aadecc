package sim_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarchlab/cohsim/internal/coherence"
	"github.com/sarchlab/cohsim/internal/sim"
)

func writeTrace(t *testing.T, dir, name, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644))
}

func TestSingleCoreRunFromMemory(t *testing.T) {
	dir := t.TempDir()
	writeTrace(t, dir, "app_proc0.trace", "R 0x0\nR 0x0\n")

	s, err := sim.NewBuilder().
		WithNumCores(1).
		WithGeometry(0, 2, 2). // 1 set, 2 ways, 4-byte blocks
		WithTraces(dir, "app").
		Build()
	require.NoError(t, err)

	report, err := s.Run()
	require.NoError(t, err)

	require.Len(t, report.Cores, 1)
	core := report.Cores[0]

	assert.Equal(t, 2, core.Reads)
	assert.Equal(t, 1, core.Misses, "second read hits the now-resident block")
	assert.Equal(t, 1, report.TotalBusTransactions)
	assert.GreaterOrEqual(t, report.Cycles, 100, "a memory-serviced miss takes >=100 cycles")
}

func TestTwoCoreSharingAvoidsSecondMemoryRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeTrace(t, dir, "app_proc0.trace", "R 0x0\n")
	writeTrace(t, dir, "app_proc1.trace", "R 0x0\n")

	s, err := sim.NewBuilder().
		WithNumCores(2).
		WithGeometry(0, 2, 2).
		WithTraces(dir, "app").
		Build()
	require.NoError(t, err)

	report, err := s.Run()
	require.NoError(t, err)

	require.Len(t, report.Cores, 2)
	assert.Equal(t, 1, report.Cores[0].Misses)
	assert.Equal(t, 1, report.Cores[1].Misses)
	assert.Equal(t, 2, report.TotalBusTransactions)
	// Core 1's read is supplied cache-to-cache in a handful of cycles, far
	// under the 100-cycle memory latency core 0's cold miss pays.
	assert.Less(t, report.Cycles, 2*100)
}

func TestCycleObserverIsInvokedEachCycle(t *testing.T) {
	dir := t.TempDir()
	writeTrace(t, dir, "app_proc0.trace", "R 0x0\n")

	seen := 0
	lastCycle := 0

	s, err := sim.NewBuilder().
		WithNumCores(1).
		WithGeometry(0, 1, 2).
		WithTraces(dir, "app").
		WithCycleObserver(func(cycle int, snaps []coherence.Snapshot) {
			seen++
			lastCycle = cycle
			require.Len(t, snaps, 1)
		}).
		Build()
	require.NoError(t, err)

	report, err := s.Run()
	require.NoError(t, err)

	assert.Equal(t, report.Cycles, lastCycle)
	assert.Equal(t, report.Cycles, seen)
}
