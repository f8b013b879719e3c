package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/gatesizer/sizing"
	"github.com/inference-sim/gatesizer/sizing/sta"
)

// perturbCmd applies one scored perturbation to a netlist file
var perturbCmd = &cobra.Command{
	Use:   "perturb <in.v> <out.v>",
	Short: "Apply one gate-sizing perturbation and write the result",
	Long: "Resize up to --max-gates instances of <in.v> and write the candidate to <out.v>. " +
		"With --design, --sdc and --lib the candidates are ranked from a nominal timing run; " +
		"otherwise legal sizes are chosen uniformly.",
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		in, out := args[0], args[1]
		cfg := buildConfig(cmd)
		rules, _ := loadTables()
		nl := loadNetlist(in, rules.Suffix)

		ctx, stop := signalContext()
		defer stop()

		var oracle sizing.TimingOracle
		cons := constraints()
		if designName != "" && sdcPath != "" && libPath != "" {
			opts := sta.OptionsFromConfig(cfg)
			opts.PathCount = pathCount
			oracle = sta.New(opts)
		} else {
			logrus.Infof("No timing inputs given; choosing sizes without timing signal")
		}

		rng := sizing.NewPartitionedRNG(sizing.NewRunKey(seed))
		p := sizing.NewPerturber(cfg, rules, oracle, cons, rng, nil)
		candidate, stats, err := p.Perturb(ctx, nl)
		if err != nil {
			logrus.Fatalf("Perturbation failed: %v", err)
		}
		logrus.Infof("%d eligible instances, timing signal: %v, %d line conflicts",
			stats.Eligible, stats.HasSignal, stats.LineConflicts)
		if err := candidate.WriteFile(out); err != nil {
			logrus.Fatalf("Failed to write %s: %v", out, err)
		}

		writeChanges(os.Stdout, stylesFor(os.Stdout), stats.Applied)
		if len(stats.Applied) == 0 {
			logrus.Warnf("No instance was resized; this can happen with a low --apply-prob or --max-gates")
		}
	},
}

func init() {
	addTimingFlags(perturbCmd)
	addConfigFlags(perturbCmd)

	rootCmd.AddCommand(perturbCmd)
}
