package cmd

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/gatesizer/sizing"
	"github.com/inference-sim/gatesizer/sizing/sta"
	"github.com/inference-sim/gatesizer/sizing/trace"
)

var outDir string // Directory receiving the baseline, current and best snapshots

// runCmd optimizes a netlist with simulated annealing
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Optimize gate sizes of a netlist with simulated annealing",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := buildConfig(cmd)
		rules, areas := loadTables()
		if cfg.Cost.AreaWeight > 0 && areas == nil {
			logrus.Warnf("--area-weight is set but no --areas table was given; area term is zero")
		}
		baseline := loadNetlist(netlistPath, rules.Suffix)
		cons := constraints()

		ctx, stop := signalContext()
		defer stop()
		metrics, stopMetrics := startMetrics(metricsAddr)
		defer stopMetrics()
		tr := newTrace()

		opts := sta.OptionsFromConfig(cfg)
		opts.PathCount = pathCount
		oracle := sta.New(opts)
		rng := sizing.NewPartitionedRNG(sizing.NewRunKey(seed))
		cost := sizing.NewCostModel(cfg, oracle, cons, areas, rng, metrics)
		perturber := sizing.NewPerturber(cfg, rules, oracle, cons, rng, metrics)
		store := sizing.DirStore{Dir: outDir}

		logrus.Infof("Starting annealing of %s: %d trials/eval on %d workers, seed=%d, snapshots in %s",
			netlistPath, cfg.Cost.Trials, cfg.Cost.Workers, seed, outDir)
		startTime := time.Now()

		annealer := sizing.NewAnnealer(cfg.Anneal, cons, perturber, cost, store, rng, tr, metrics)
		res, err := annealer.Run(ctx, baseline)
		if err != nil {
			logrus.Fatalf("Annealing failed: %v", err)
		}
		logrus.Infof("Annealing finished in %v: %s", time.Since(startTime).Round(time.Millisecond), res.StopReason)

		// An interrupted run is still compared; a second interrupt aborts the comparison.
		stop()
		cmpCtx, stopCmp := signalContext()
		defer stopCmp()
		cmp := sizing.Compare(cmpCtx, cost, res.Baseline, res.Best)
		out := stylesFor(os.Stdout)
		writeRunSummary(os.Stdout, out, res, cmp, store.Path(sizing.SnapshotBest))
		writeChanges(os.Stdout, out, res.Best.ChangedFrom(res.Baseline))
		if tr != nil {
			writeTraceSummary(os.Stdout, out, trace.Summarize(tr))
			writeTrace(tr, traceOut)
		}
	},
}

func init() {
	addInputFlags(runCmd)
	addConfigFlags(runCmd)
	addObserveFlags(runCmd)
	runCmd.Flags().StringVar(&outDir, "out-dir", ".", "Directory for the sa_baseline.v, sa_current.v and sa_best.v snapshots")
	for _, name := range []string{"netlist", "design", "sdc", "lib"} {
		_ = runCmd.MarkFlagRequired(name)
	}

	rootCmd.AddCommand(runCmd)
}
