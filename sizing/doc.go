// Package sizing implements stochastic gate sizing: a simulated annealing search
// over per-instance cell-size substitutions, scored against an external static
// timing analysis tool under randomized timing derates.
//
// # Reading Guide
//
// Start with these files to understand the optimization loop:
//   - anneal.go: Annealer.Run, the Metropolis rule (Accept) and snapshot persistence
//   - perturb.go: Perturber, the scored mutation walk and new-size selection
//   - cost.go: CostModel, Monte Carlo trials on a bounded worker pool
//   - scorer.go: per-instance priorities from timing samples
//   - timing.go: the TimingOracle interface and its data types
//
// Supporting files: config.go (Config and validation), rng.go (PartitionedRNG),
// metrics.go (Prometheus), compare.go (final nominal comparison).
//
// Sub-packages: netlist/ holds the netlist model and rule tables, sta/ the
// OpenSTA-backed oracle, trace/ the decision trace.
package sizing
