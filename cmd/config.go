package cmd

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/inference-sim/gatesizer/sizing"
	"github.com/inference-sim/gatesizer/sizing/netlist"
)

var (
	// Design inputs
	netlistPath string // Gate-level Verilog netlist
	designName  string // Top-level module linked by the timing tool
	sdcPath     string // Timing constraints
	libPath     string // Liberty cell library
	spefPath    string // Parasitics (optional)

	// Run configuration
	configPath string // YAML run configuration
	rulesPath  string // YAML sizing rule table
	areasPath  string // YAML cell area table
	pathCount  int    // Detailed paths per group requested from the timing tool

	// Overrides of the YAML run configuration
	initTemp          float64
	finalTemp         float64
	alpha             float64
	iterationsPerStep int
	maxIterations     int
	mcTrials          int
	mcWorkers         int
	maxGates          int
	applyProb         float64
	areaWeight        float64
	staBinary         string
	staTimeout        time.Duration
	workDir           string
	keepFailed        string
)

// addInputFlags registers the netlist and timing input flags on c.
func addInputFlags(c *cobra.Command) {
	c.Flags().StringVar(&netlistPath, "netlist", "", "Gate-level Verilog netlist")
	addTimingFlags(c)
}

// addTimingFlags registers the inputs of the timing tool on c.
func addTimingFlags(c *cobra.Command) {
	c.Flags().StringVar(&designName, "design", "", "Top-level design name")
	c.Flags().StringVar(&sdcPath, "sdc", "", "SDC constraints file")
	c.Flags().StringVar(&libPath, "lib", "", "Liberty library file")
	c.Flags().StringVar(&spefPath, "spef", "", "SPEF parasitics file (optional)")
}

// addConfigFlags registers the configuration file flags and the per-field overrides on c.
func addConfigFlags(c *cobra.Command) {
	d := sizing.DefaultConfig()
	c.Flags().StringVar(&configPath, "config", "", "YAML run configuration; explicitly set flags take precedence")
	c.Flags().StringVar(&rulesPath, "rules", "", "YAML sizing rule table (default: built-in NanGate table)")
	c.Flags().StringVar(&areasPath, "areas", "", "YAML cell area table")
	c.Flags().IntVar(&pathCount, "path-count", 0, "Detailed paths per group in the timing report (0 = tool default)")

	// Annealing schedule
	c.Flags().Float64Var(&initTemp, "init-temp", d.Anneal.InitTemp, "Initial temperature")
	c.Flags().Float64Var(&finalTemp, "final-temp", d.Anneal.FinalTemp, "Final temperature")
	c.Flags().Float64Var(&alpha, "alpha", d.Anneal.Alpha, "Cooling factor in (0,1)")
	c.Flags().IntVar(&iterationsPerStep, "iterations-per-step", d.Anneal.IterationsPerStep, "Iteration budget per cooling step")
	c.Flags().IntVar(&maxIterations, "max-iterations", d.Anneal.MaxIterations, "Hard iteration cap (0 = derived from the schedule)")

	// Cost model
	c.Flags().IntVar(&mcTrials, "trials", d.Cost.Trials, "Monte Carlo trials per evaluation")
	c.Flags().IntVar(&mcWorkers, "workers", d.Cost.Workers, "Concurrent timing-tool calls per evaluation")
	c.Flags().Float64Var(&areaWeight, "area-weight", d.Cost.AreaWeight, "Weight of the area term (needs --areas)")

	// Perturbation
	c.Flags().IntVar(&maxGates, "max-gates", d.Perturb.MaxGates, "Maximum resized instances per perturbation")
	c.Flags().Float64Var(&applyProb, "apply-prob", d.Perturb.ApplyProb, "Base probability of resizing an eligible instance")

	// Timing tool
	c.Flags().StringVar(&staBinary, "sta", d.Oracle.Binary, "OpenSTA binary")
	c.Flags().DurationVar(&staTimeout, "sta-timeout", d.Oracle.Timeout, "Timeout of one timing-tool call")
	c.Flags().StringVar(&workDir, "work-dir", "", "Parent directory of per-call scratch dirs (default: system temp)")
	c.Flags().StringVar(&keepFailed, "keep-failed", "", "Copy scratch dirs of failed timing-tool calls here")
}

// loadRunConfig reads path over the defaults with strict field checking.
// An empty path yields the defaults.
func loadRunConfig(path string) (sizing.Config, error) {
	cfg := sizing.DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading run config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing run config %s: %w", path, err)
	}
	return cfg, nil
}

// applyFlagOverrides copies every explicitly set override flag into cfg.
func applyFlagOverrides(flags *pflag.FlagSet, cfg *sizing.Config) {
	overrides := map[string]func(){
		"init-temp":           func() { cfg.Anneal.InitTemp = initTemp },
		"final-temp":          func() { cfg.Anneal.FinalTemp = finalTemp },
		"alpha":               func() { cfg.Anneal.Alpha = alpha },
		"iterations-per-step": func() { cfg.Anneal.IterationsPerStep = iterationsPerStep },
		"max-iterations":      func() { cfg.Anneal.MaxIterations = maxIterations },
		"trials":              func() { cfg.Cost.Trials = mcTrials },
		"workers":             func() { cfg.Cost.Workers = mcWorkers },
		"area-weight":         func() { cfg.Cost.AreaWeight = areaWeight },
		"max-gates":           func() { cfg.Perturb.MaxGates = maxGates },
		"apply-prob":          func() { cfg.Perturb.ApplyProb = applyProb },
		"sta":                 func() { cfg.Oracle.Binary = staBinary },
		"sta-timeout":         func() { cfg.Oracle.Timeout = staTimeout },
		"work-dir":            func() { cfg.Oracle.WorkDir = workDir },
		"keep-failed":         func() { cfg.Oracle.KeepDir = keepFailed },
	}
	for name, apply := range overrides {
		if flags.Changed(name) {
			apply()
		}
	}
}

// buildConfig assembles and validates the run configuration of c.
func buildConfig(c *cobra.Command) sizing.Config {
	cfg, err := loadRunConfig(configPath)
	if err != nil {
		logrus.Fatalf("%v", err)
	}
	applyFlagOverrides(c.Flags(), &cfg)
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("%v", err)
	}
	return cfg
}

// loadTables returns the rule table (built-in when rulesPath is empty) and the
// optional area table.
func loadTables() (*netlist.RuleTable, *netlist.AreaTable) {
	rules := netlist.DefaultRuleTable()
	if rulesPath != "" {
		var err error
		if rules, err = netlist.LoadRuleTable(rulesPath); err != nil {
			logrus.Fatalf("Failed to load rule table: %v", err)
		}
	}
	var areas *netlist.AreaTable
	if areasPath != "" {
		var err error
		if areas, err = netlist.LoadAreaTable(areasPath); err != nil {
			logrus.Fatalf("Failed to load area table: %v", err)
		}
	}
	return rules, areas
}

// loadNetlist parses path, logging declarations that were left untouched.
func loadNetlist(path, suffix string) *netlist.Netlist {
	nl, err := netlist.ReadFile(path, suffix)
	if err != nil {
		logrus.Fatalf("%v", err)
	}
	for _, skipped := range nl.Skipped {
		logrus.Warnf("netlist: %v", skipped)
	}
	logrus.Infof("Loaded %s: %d sizable instances", path, nl.Len())
	return nl
}

// constraints returns the design inputs from the flags.
func constraints() sizing.Constraints {
	return sizing.Constraints{Design: designName, SDC: sdcPath, Liberty: libPath, SPEF: spefPath}
}
