// Command cohsim simulates a shared-bus, snoop-coherent multiprocessor
// with private MESI write-back L1 caches against a set of per-core memory
// reference traces, and reports the resulting cycle count and coherence
// traffic.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cohsim/internal/config"
	"github.com/sarchlab/cohsim/internal/monitor"
	"github.com/sarchlab/cohsim/internal/recording"
	"github.com/sarchlab/cohsim/internal/report"
	"github.com/sarchlab/cohsim/internal/sim"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	config.LoadEnv()
	cfg := config.WithEnvOverrides(config.Defaults())

	cmd := &cobra.Command{
		Use:   "cohsim",
		Short: "Cycle-accurate simulator for a snoop-coherent MESI multiprocessor",
		Long: "cohsim replays per-core memory reference traces through a simulated " +
			"shared-bus multiprocessor with private write-back L1 caches kept " +
			"coherent by MESI, reporting cycle counts, hit/miss behavior, " +
			"coherence traffic, and bus utilization.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cfg.TracePrefix, "trace", "t", cfg.TracePrefix,
		"trace file prefix; files are named <prefix>_proc<i>.trace")
	flags.StringVar(&cfg.TraceDir, "trace-dir", cfg.TraceDir,
		"directory containing the trace files (default: current directory)")
	flags.IntVarP(&cfg.NumCores, "cores", "n", cfg.NumCores, "number of cores to simulate")
	flags.IntVarP(&cfg.SetIndexBits, "set-bits", "s", cfg.SetIndexBits, "number of set index bits")
	flags.IntVarP(&cfg.Associativity, "associativity", "E", cfg.Associativity, "cache associativity (ways per set)")
	flags.IntVarP(&cfg.BlockBits, "block-bits", "b", cfg.BlockBits, "number of block offset bits (block size = 2^b bytes)")
	flags.StringVarP(&cfg.OutputFile, "output", "o", cfg.OutputFile, "file to write the statistics report to")
	flags.BoolVar(&cfg.EnableMonitor, "monitor", cfg.EnableMonitor, "serve a live HTTP status endpoint while the simulation runs")
	flags.StringVar(&cfg.MonitorAddr, "monitor-addr", cfg.MonitorAddr, "address for the monitoring HTTP server")
	flags.StringVar(&cfg.RecordingDBDSN, "record", cfg.RecordingDBDSN, "SQLite file to record every bus transaction to (disabled if empty)")

	return cmd
}

func run(cmd *cobra.Command, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	builder := sim.NewBuilder().
		WithNumCores(cfg.NumCores).
		WithGeometry(cfg.SetIndexBits, cfg.Associativity, cfg.BlockBits).
		WithTraces(cfg.TraceDir, cfg.TracePrefix)

	if cfg.EnableMonitor {
		srv := monitor.NewServer(cfg.MonitorAddr)
		if err := srv.Start(); err != nil {
			return err
		}

		builder = builder.WithCycleObserver(srv.Observe)
	}

	simulator, err := builder.Build()
	if err != nil {
		return err
	}

	if cfg.RecordingDBDSN != "" {
		rec := recording.NewRecorder(cfg.RecordingDBDSN)
		if err := rec.Init(); err != nil {
			return err
		}
		defer rec.Close()

		simulator.Bus().SetTransactionObserver(rec)
	}

	result, err := simulator.Run()
	if err != nil {
		return err
	}

	out, err := os.Create(cfg.OutputFile)
	if err != nil {
		return fmt.Errorf("cohsim: %w", err)
	}
	defer out.Close()

	if err := report.Print(out, cfg, result); err != nil {
		return fmt.Errorf("cohsim: %w", err)
	}

	return report.Print(cmd.OutOrStdout(), cfg, result)
}
