package sizing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/inference-sim/gatesizer/sizing/netlist"
)

// Infeasible is the cost of a candidate that could not be evaluated. It is always rejected.
var Infeasible = math.Inf(1)

// Trial is the outcome of one derated oracle call.
type Trial struct {
	Index  int // 1-based
	Derate Derate
	WNS    float64
	TNS    float64
	Err    error // nil on success
}

// Passed reports whether the trial met timing (WNS >= 0 and TNS >= 0).
func (t Trial) Passed() bool {
	return t.Err == nil && t.WNS >= 0 && t.TNS >= 0
}

// Evaluation is the outcome of one Monte Carlo cost evaluation.
type Evaluation struct {
	Cost     float64
	Feasible bool
	MeanWNS  float64
	StdWNS   float64
	MeanTNS  float64
	Area     float64
	Trials   []Trial
	Err      error // first trial failure when infeasible
}

// CostModel estimates the cost of a netlist from N derated oracle calls.
//
// Thread-safety: Evaluate must be called from a single goroutine; the trials of
// one evaluation run concurrently on a bounded pool.
type CostModel struct {
	cfg     CostConfig
	oracle  TimingOracle
	cons    Constraints
	sampler DerateSampler
	areas   *netlist.AreaTable
	rng     *rand.Rand
	metrics *Metrics
}

// NewCostModel creates a CostModel. areas may be nil when the area term is disabled.
func NewCostModel(cfg Config, oracle TimingOracle, cons Constraints, areas *netlist.AreaTable, rng *PartitionedRNG, metrics *Metrics) *CostModel {
	return &CostModel{
		cfg:     cfg.Cost,
		oracle:  oracle,
		cons:    cons,
		sampler: cfg.Derate,
		areas:   areas,
		rng:     rng.ForSubsystem(SubsystemDerate),
		metrics: metrics,
	}
}

// Evaluate runs the configured number of trials, each under a freshly sampled derate.
// A single failed trial makes the whole evaluation infeasible.
func (m *CostModel) Evaluate(ctx context.Context, nl *netlist.Netlist) Evaluation {
	derates := make([]Derate, m.cfg.Trials)
	for i := range derates {
		derates[i] = m.sampler.Sample(m.rng)
	}
	return m.evaluate(ctx, nl, derates)
}

// EvaluateNominal runs a single zero-variance trial.
func (m *CostModel) EvaluateNominal(ctx context.Context, nl *netlist.Netlist) Evaluation {
	return m.evaluate(ctx, nl, []Derate{NominalDerate()})
}

func (m *CostModel) evaluate(ctx context.Context, nl *netlist.Netlist, derates []Derate) Evaluation {
	start := time.Now()
	defer func() { m.metrics.ObserveEvaluation(time.Since(start)) }()

	trials, err := m.runTrials(ctx, nl, derates, true)
	if err != nil {
		logrus.Warnf("[cost] evaluation infeasible: %v", err)
		return Evaluation{Cost: Infeasible, Trials: trials, Err: err}
	}

	wns := make([]float64, len(trials))
	tns := make([]float64, len(trials))
	for i, t := range trials {
		wns[i], tns[i] = t.WNS, t.TNS
	}
	ev := Evaluation{Feasible: true, Trials: trials}
	ev.MeanWNS, ev.StdWNS = meanStd(wns)
	ev.MeanTNS = stat.Mean(tns, nil)

	cost := m.cfg.Base +
		math.Max(0, -ev.MeanWNS)*m.cfg.WNSWeight +
		math.Max(0, -ev.MeanTNS)*m.cfg.TNSWeight
	if m.cfg.AreaWeight > 0 {
		ev.Area = m.totalArea(nl)
		cost += ev.Area / m.cfg.AreaScale * m.cfg.AreaWeight
	}
	if !finite(cost) {
		ev.Err = &OracleFailure{Reason: FailureUnparsable, Detail: fmt.Sprintf("non-finite cost from WNS=%v TNS=%v", ev.MeanWNS, ev.MeanTNS)}
		logrus.Warnf("[cost] evaluation infeasible: %v", ev.Err)
		return Evaluation{Cost: Infeasible, Trials: trials, Err: ev.Err}
	}
	ev.Cost = cost
	logrus.Debugf("[cost] mean WNS %+.4f, mean TNS %+.4f, cost %.6f", ev.MeanWNS, ev.MeanTNS, ev.Cost)
	return ev
}

// runTrials fans derates out over the worker pool. With abortOnFailure the first
// failure cancels the remaining trials and is returned; otherwise every trial runs
// and failures are only recorded in the returned slice.
func (m *CostModel) runTrials(ctx context.Context, nl *netlist.Netlist, derates []Derate, abortOnFailure bool) ([]Trial, error) {
	trials := make([]Trial, len(derates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(m.cfg.Workers, 1))
	for i, d := range derates {
		i, d := i, d
		g.Go(func() error {
			trials[i] = m.runTrial(gctx, nl, i+1, len(derates), d)
			if abortOnFailure {
				return trials[i].Err
			}
			return nil
		})
	}
	return trials, g.Wait()
}

func (m *CostModel) runTrial(ctx context.Context, nl *netlist.Netlist, index, total int, d Derate) Trial {
	t := Trial{Index: index, Derate: d}
	res, err := m.oracle.Evaluate(ctx, nl, m.cons, d)
	if err == nil && res == nil {
		err = &OracleFailure{Reason: FailureUnparsable, Detail: "oracle returned no result"}
	}
	m.metrics.ObserveOracleCall(err)
	if err != nil {
		var failure *OracleFailure
		if !errors.As(err, &failure) {
			err = &OracleFailure{Reason: FailureProcess, Err: err}
		}
		t.Err = err
		logrus.Infof("    [trial %02d/%d] failed: %v", index, total, err)
		return t
	}
	t.WNS, t.TNS = res.WNS, res.TNS
	m.metrics.ObserveTrial(t.Passed())
	status := "fail"
	if t.Passed() {
		status = "pass"
	}
	logrus.Infof("    [trial %02d/%d] WNS = %+.4f, TNS = %+.4f -> %s", index, total, t.WNS, t.TNS, status)
	return t
}

func (m *CostModel) totalArea(nl *netlist.Netlist) float64 {
	total := 0.0
	missing := 0
	for _, inst := range nl.Instances() {
		a, ok := m.areas.Area(inst.Family, inst.Size)
		if !ok {
			missing++
			continue
		}
		total += a
	}
	if missing > 0 {
		logrus.Debugf("[cost] %d instances have no area entry", missing)
	}
	return total
}

// meanStd returns the mean and sample standard deviation; a single value has zero spread.
func meanStd(xs []float64) (mean, std float64) {
	switch len(xs) {
	case 0:
		return 0, 0
	case 1:
		return xs[0], 0
	}
	return stat.MeanStdDev(xs, nil)
}

// YieldReport summarizes a Monte Carlo timing-yield sweep.
type YieldReport struct {
	Trials     []Trial
	Successful int // trials the oracle evaluated
	Passed     int
	MeanWNS    float64
	StdWNS     float64
	MinWNS     float64
	MeanTNS    float64
	MinTNS     float64 // most negative total slack
}

// Yield is the percentage of all trials that met timing.
func (r YieldReport) Yield() float64 {
	if len(r.Trials) == 0 {
		return 0
	}
	return 100 * float64(r.Passed) / float64(len(r.Trials))
}

// Sweep runs n derated trials without aborting on failures and summarizes timing yield.
func (m *CostModel) Sweep(ctx context.Context, nl *netlist.Netlist, n int) (YieldReport, error) {
	if n <= 0 {
		return YieldReport{}, fmt.Errorf("sweep needs at least one trial, got %d", n)
	}
	derates := make([]Derate, n)
	for i := range derates {
		derates[i] = m.sampler.Sample(m.rng)
	}
	trials, _ := m.runTrials(ctx, nl, derates, false)
	if err := ctx.Err(); err != nil {
		return YieldReport{Trials: trials}, err
	}

	report := YieldReport{Trials: trials}
	var wns, tns []float64
	for _, t := range trials {
		if t.Err != nil {
			continue
		}
		report.Successful++
		if t.Passed() {
			report.Passed++
		}
		wns = append(wns, t.WNS)
		tns = append(tns, t.TNS)
	}
	if report.Successful == 0 {
		return report, nil
	}
	report.MeanWNS, report.StdWNS = meanStd(wns)
	report.MinWNS = floats.Min(wns)
	report.MeanTNS = stat.Mean(tns, nil)
	report.MinTNS = floats.Min(tns)
	return report, nil
}
