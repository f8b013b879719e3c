package sizing

import (
	"context"
	"fmt"
	"math/rand"
	"slices"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/gatesizer/sizing/netlist"
)

// PerturbStats describes what one perturbation call did.
type PerturbStats struct {
	Eligible      int
	HasSignal     bool // false when the oracle could not provide per-instance timing
	Applied       []netlist.Change
	LineConflicts int // admitted instances skipped because their line was already mutated
}

// Perturber generates candidate netlists by resizing a bounded number of
// high-priority instances of the current netlist.
//
// Thread-safety: NOT thread-safe. Owned by the annealing loop.
type Perturber struct {
	cfg     PerturbConfig
	rules   *netlist.RuleTable
	scorer  *Scorer
	oracle  TimingOracle // nil disables timing-driven scoring
	cons    Constraints
	sampler DerateSampler
	rng     *rand.Rand
	derates *rand.Rand
	metrics *Metrics
}

// NewPerturber creates a Perturber. oracle may be nil, in which case every
// eligible instance is scored 0 and resized uniformly among its legal targets.
func NewPerturber(cfg Config, rules *netlist.RuleTable, oracle TimingOracle, cons Constraints, rng *PartitionedRNG, metrics *Metrics) *Perturber {
	return &Perturber{
		cfg:     cfg.Perturb,
		rules:   rules,
		scorer:  NewScorer(cfg.Score, cfg.Classifier),
		oracle:  oracle,
		cons:    cons,
		sampler: cfg.Derate,
		rng:     rng.ForSubsystem(SubsystemPerturb),
		derates: rng.ForSubsystem(SubsystemDerate),
		metrics: metrics,
	}
}

type rankedInstance struct {
	inst  netlist.Instance
	score GateScore
}

// Perturb returns a mutated clone of current. current is never modified.
// A candidate with zero applied mutations is valid.
func (p *Perturber) Perturb(ctx context.Context, current *netlist.Netlist) (*netlist.Netlist, PerturbStats, error) {
	var stats PerturbStats

	var ranked []rankedInstance
	for _, inst := range current.Instances() {
		if p.rules.Sizable(inst.Family, inst.Size) {
			ranked = append(ranked, rankedInstance{inst: inst})
		}
	}
	stats.Eligible = len(ranked)
	if len(ranked) == 0 {
		logrus.Debugf("perturb: no eligible instances among %d", current.Len())
		return current.Clone(), stats, nil
	}

	samples := p.observe(ctx, current)
	stats.HasSignal = samples != nil
	for i := range ranked {
		ranked[i].score = p.scorer.Score(ranked[i].inst, samples)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score.Score != ranked[j].score.Score {
			return ranked[i].score.Score > ranked[j].score.Score
		}
		return ranked[i].inst.Name < ranked[j].inst.Name
	})

	candidate := current.Clone()
	mutatedLines := make(map[int]bool)
	for _, r := range ranked {
		if len(stats.Applied) >= p.cfg.MaxGates {
			break
		}
		if mutatedLines[r.inst.Line] {
			stats.LineConflicts++
			continue
		}
		if p.rng.Float64() >= admitProbability(p.cfg.ApplyProb, r.score.Score) {
			continue
		}
		newSize := p.chooseSize(r.inst, r.score)
		if newSize == r.inst.Size {
			continue
		}
		if err := candidate.Resize(r.inst.Name, newSize, p.rules); err != nil {
			return nil, stats, fmt.Errorf("perturbation chose an illegal size: %w", err)
		}
		mutatedLines[r.inst.Line] = true
		stats.Applied = append(stats.Applied, netlist.Change{
			Name:   r.inst.Name,
			Family: r.inst.Family,
			From:   r.inst.Size,
			To:     newSize,
		})
		logrus.Debugf("perturb: %s %s%d -> %s%d (score %.3f, upsize %v)",
			r.inst.Name, r.inst.Family, r.inst.Size, r.inst.Family, newSize, r.score.Score, r.score.NeedsUpsize)
	}
	p.metrics.ObserveMutations(len(stats.Applied))
	return candidate, stats, nil
}

// observe runs one detailed oracle call on current. Any failure degrades to no signal.
func (p *Perturber) observe(ctx context.Context, current *netlist.Netlist) map[string]TimingSample {
	if p.oracle == nil {
		return nil
	}
	derate := p.sampler.Sample(p.derates)
	res, err := p.oracle.Evaluate(ctx, current, p.cons, derate)
	if err != nil {
		p.metrics.ObserveOracleCall(err)
		logrus.Warnf("perturb: no timing signal, falling back to uniform sizing: %v", err)
		return nil
	}
	p.metrics.ObserveOracleCall(nil)
	if res == nil || len(res.Samples) == 0 {
		logrus.Debugf("perturb: oracle returned no per-instance detail")
		return nil
	}
	return res.Samples
}

// admitProbability scales p up with score and clamps it to [0, 1].
func admitProbability(p, score float64) float64 {
	if !finite(score) || score < 0 {
		score = 0
	}
	return min(1, max(0, p*(1+score)))
}

// chooseSize picks the new size of inst. It may return the current size (no-op).
func (p *Perturber) chooseSize(inst netlist.Instance, gs GateScore) int {
	targets := p.rules.Targets(inst.Family, inst.Size)
	if len(targets) == 0 {
		return inst.Size
	}
	if !gs.HasSignal {
		return targets[p.rng.Intn(len(targets))]
	}
	if gs.NeedsUpsize {
		larger := filterSizes(targets, func(s int) bool { return s > inst.Size })
		if len(larger) == 0 {
			return inst.Size
		}
		if p.rng.Float64() < p.cfg.UpsizeLargestProb {
			return slices.Max(larger)
		}
		return larger[p.rng.Intn(len(larger))]
	}
	smaller := filterSizes(targets, func(s int) bool { return s < inst.Size })
	if len(smaller) == 0 {
		return inst.Size
	}
	if p.rng.Float64() < p.cfg.DownsizeProb {
		return smaller[p.rng.Intn(len(smaller))]
	}
	return inst.Size
}

func filterSizes(sizes []int, keep func(int) bool) []int {
	var out []int
	for _, s := range sizes {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}
