package sizing

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/gatesizer/sizing/netlist"
	"github.com/inference-sim/gatesizer/sizing/trace"
)

// metropolisBound caps Δ/T; beyond it the acceptance probability is treated as 0.
const metropolisBound = 700.0

// Accept is the Metropolis rule. Strict improvements are always accepted.
// Infeasible candidates and non-improving candidates at T <= 0 are always rejected.
func Accept(candidate, current, temperature float64, rng *rand.Rand) bool {
	if candidate < current {
		return true
	}
	if math.IsInf(candidate, 1) || math.IsNaN(candidate) || temperature <= 0 {
		return false
	}
	x := (candidate - current) / temperature
	if x > metropolisBound {
		return false
	}
	return rng.Float64() < math.Exp(-x)
}

// Decision is the outcome of one annealing iteration.
type Decision string

const (
	DecisionAccepted   Decision = "accepted"
	DecisionRejected   Decision = "rejected"
	DecisionInfeasible Decision = "infeasible"
	DecisionSkipped    Decision = "skipped"
)

// StopReason says why the annealing loop ended.
type StopReason string

const (
	StopTemperature StopReason = "temperature reached final threshold"
	StopBudget      StopReason = "iteration budget exhausted"
	StopCanceled    StopReason = "canceled"
)

// Proposer generates candidate netlists.
type Proposer interface {
	Perturb(ctx context.Context, current *netlist.Netlist) (*netlist.Netlist, PerturbStats, error)
}

// Evaluator estimates the cost of a netlist.
type Evaluator interface {
	Evaluate(ctx context.Context, nl *netlist.Netlist) Evaluation
}

// SnapshotKind names one of the persisted netlists of a run.
type SnapshotKind string

const (
	SnapshotBaseline SnapshotKind = "baseline"
	SnapshotCurrent  SnapshotKind = "current"
	SnapshotBest     SnapshotKind = "best"
)

// SnapshotStore persists netlist snapshots. Each kind is overwritten in place.
type SnapshotStore interface {
	Save(kind SnapshotKind, nl *netlist.Netlist) error
}

// DirStore writes snapshots as sa_<kind>.v files under Dir.
type DirStore struct {
	Dir string
}

// Path returns the file a snapshot kind is written to.
func (s DirStore) Path(kind SnapshotKind) string {
	return filepath.Join(s.Dir, "sa_"+string(kind)+".v")
}

// Save writes nl atomically.
func (s DirStore) Save(kind SnapshotKind, nl *netlist.Netlist) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("creating snapshot dir: %w", err)
	}
	if err := nl.WriteFile(s.Path(kind)); err != nil {
		return fmt.Errorf("saving %s snapshot: %w", kind, err)
	}
	return nil
}

// Result is the terminal state of an annealing run.
type Result struct {
	Baseline     *netlist.Netlist
	Current      *netlist.Netlist
	Best         *netlist.Netlist
	BaselineEval Evaluation
	CurrentCost  float64
	BestCost     float64

	Iterations       int
	Accepted         int
	Rejected         int
	Infeasible       int
	Skipped          int
	Improvements     int
	FinalTemperature float64
	StopReason       StopReason
}

// Annealer is the simulated annealing controller. It is the single writer of
// the run state; one Annealer runs one optimization.
type Annealer struct {
	cfg      AnnealConfig
	cons     Constraints
	proposer Proposer
	eval     Evaluator
	store    SnapshotStore
	rng      *rand.Rand
	trace    *trace.RunTrace
	metrics  *Metrics
}

// NewAnnealer creates an Annealer. tr and metrics may be nil.
func NewAnnealer(cfg AnnealConfig, cons Constraints, proposer Proposer, eval Evaluator, store SnapshotStore,
	rng *PartitionedRNG, tr *trace.RunTrace, metrics *Metrics) *Annealer {
	return &Annealer{
		cfg:      cfg,
		cons:     cons,
		proposer: proposer,
		eval:     eval,
		store:    store,
		rng:      rng.ForSubsystem(SubsystemAccept),
		trace:    tr,
		metrics:  metrics,
	}
}

// Run optimizes baseline. It fails only on a *FatalSetupError, an infeasible
// baseline or a snapshot write error; a run that finds no improving move ends normally.
// Cancellation of ctx stops the loop between iterations with StopCanceled.
func (a *Annealer) Run(ctx context.Context, baseline *netlist.Netlist) (*Result, error) {
	if err := a.cons.Validate(); err != nil {
		return nil, err
	}
	if a.cons.SPEF == "" {
		logrus.Warnf("no SPEF parasitics given, timing accuracy is reduced")
	}

	current := baseline.Clone()
	best := baseline.Clone()
	for _, kind := range []SnapshotKind{SnapshotBaseline, SnapshotCurrent, SnapshotBest} {
		if err := a.store.Save(kind, baseline); err != nil {
			return nil, err
		}
	}

	logrus.Infof("[init] evaluating baseline (%d instances)", baseline.Len())
	baseEval := a.eval.Evaluate(ctx, baseline)
	if !baseEval.Feasible {
		return nil, fmt.Errorf("%w: %v", ErrInfeasibleBaseline, baseEval.Err)
	}
	currentCost, bestCost := baseEval.Cost, baseEval.Cost
	logrus.Infof("[init] baseline cost %.6f (mean WNS %+.4f, mean TNS %+.4f)", baseEval.Cost, baseEval.MeanWNS, baseEval.MeanTNS)

	res := &Result{Baseline: baseline, BaselineEval: baseEval}
	temp := a.cfg.InitTemp
	budget := a.cfg.IterationBudget()
	logrus.Infof("[init] T %.4f -> %.4f, alpha %.3f, %d cooling steps, budget %d iterations",
		a.cfg.InitTemp, a.cfg.FinalTemp, a.cfg.Alpha, a.cfg.CoolingSteps(), budget)

	iter := 0
	for ; temp > a.cfg.FinalTemp && iter < budget; iter++ {
		if err := ctx.Err(); err != nil {
			res.StopReason = StopCanceled
			break
		}
		n := iter + 1

		candidate, stats, err := a.proposer.Perturb(ctx, current)
		if err != nil {
			res.Skipped++
			logrus.Warnf("[iter %04d] perturbation failed, skipping: %v", n, err)
			a.record(n, temp, Infeasible, currentCost, bestCost, DecisionSkipped, false, stats, err.Error())
			continue
		}

		ev := a.eval.Evaluate(ctx, candidate)
		decision := DecisionRejected
		newBest := false
		switch {
		case !ev.Feasible:
			decision = DecisionInfeasible
			res.Infeasible++
		case Accept(ev.Cost, currentCost, temp, a.rng):
			decision = DecisionAccepted
			res.Accepted++
			current, currentCost = candidate, ev.Cost
			if err := a.store.Save(SnapshotCurrent, current); err != nil {
				return nil, err
			}
			if currentCost < bestCost {
				best, bestCost = current.Clone(), currentCost
				newBest = true
				res.Improvements++
				if err := a.store.Save(SnapshotBest, best); err != nil {
					return nil, err
				}
			}
		default:
			res.Rejected++
		}

		logrus.Infof("[iter %04d] T=%.5f candidate=%.6f current=%.6f best=%.6f mutations=%d -> %s",
			n, temp, ev.Cost, currentCost, bestCost, len(stats.Applied), decision)
		if newBest {
			logrus.Infof("[iter %04d] new best cost %.6f", n, bestCost)
		}
		a.record(n, temp, ev.Cost, currentCost, bestCost, decision, newBest, stats, errString(ev.Err))

		temp *= a.cfg.Alpha
	}

	if res.StopReason == "" {
		if temp <= a.cfg.FinalTemp {
			res.StopReason = StopTemperature
		} else {
			res.StopReason = StopBudget
		}
	}
	res.Iterations = iter
	res.Current, res.CurrentCost = current, currentCost
	res.Best, res.BestCost = best, bestCost
	res.FinalTemperature = temp
	logrus.Infof("[done] %s after %d iterations: T=%.6f, best cost %.6f (baseline %.6f)",
		res.StopReason, res.Iterations, temp, bestCost, baseEval.Cost)
	return res, nil
}

func (a *Annealer) record(n int, temp, candCost, curCost, bestCost float64, d Decision, newBest bool, stats PerturbStats, reason string) {
	a.metrics.ObserveIteration(d, temp, curCost, bestCost)
	if a.trace == nil {
		return
	}
	muts := make([]trace.MutationRecord, 0, len(stats.Applied))
	for _, c := range stats.Applied {
		muts = append(muts, trace.MutationRecord{Instance: c.Name, Family: c.Family, From: c.From, To: c.To})
	}
	a.trace.RecordIteration(trace.IterationRecord{
		Iteration:     n,
		Temperature:   temp,
		CandidateCost: candCost,
		CurrentCost:   curCost,
		BestCost:      bestCost,
		Decision:      string(d),
		NewBest:       newBest,
		HasSignal:     stats.HasSignal,
		Mutations:     muts,
		Reason:        reason,
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
