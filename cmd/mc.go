package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/gatesizer/sizing"
	"github.com/inference-sim/gatesizer/sizing/sta"
	"github.com/inference-sim/gatesizer/sizing/trace"
)

var mcRuns int // Number of derated timing runs

// mcCmd estimates the timing yield of a netlist under random derates
var mcCmd = &cobra.Command{
	Use:   "mc",
	Short: "Monte Carlo timing-yield analysis of a netlist",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := buildConfig(cmd)
		rules, areas := loadTables()
		nl := loadNetlist(netlistPath, rules.Suffix)

		ctx, stop := signalContext()
		defer stop()
		metrics, stopMetrics := startMetrics(metricsAddr)
		defer stopMetrics()
		tr := newTrace()

		opts := sta.OptionsFromConfig(cfg)
		opts.PathCount = pathCount
		rng := sizing.NewPartitionedRNG(sizing.NewRunKey(seed))
		cost := sizing.NewCostModel(cfg, sta.New(opts), constraints(), areas, rng, metrics)

		logrus.Infof("Starting Monte Carlo STA analysis of %s: %d runs", netlistPath, mcRuns)
		rep, err := cost.Sweep(ctx, nl, mcRuns)
		if err != nil {
			logrus.Fatalf("Monte Carlo analysis failed: %v", err)
		}
		recordTrials(tr, rep.Trials)

		writeYieldSummary(os.Stdout, stylesFor(os.Stdout), rep)
		writeTrace(tr, traceOut)
	},
}

// recordTrials copies sweep trials into the decision trace.
func recordTrials(tr *trace.RunTrace, trials []sizing.Trial) {
	for _, t := range trials {
		rec := trace.TrialRecord{
			Index:     t.Index,
			CellDelay: t.Derate.CellDelay,
			CellCheck: t.Derate.CellCheck,
			WNS:       t.WNS,
			TNS:       t.TNS,
			Passed:    t.Passed(),
		}
		if t.Err != nil {
			rec.Error = t.Err.Error()
		}
		tr.RecordTrial(rec)
	}
}

func init() {
	addInputFlags(mcCmd)
	addConfigFlags(mcCmd)
	addObserveFlags(mcCmd)
	mcCmd.Flags().IntVar(&mcRuns, "runs", 10, "Number of derated timing runs")
	for _, name := range []string{"netlist", "design", "sdc", "lib"} {
		_ = mcCmd.MarkFlagRequired(name)
	}

	rootCmd.AddCommand(mcCmd)
}
