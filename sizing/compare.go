package sizing

import (
	"context"

	"github.com/inference-sim/gatesizer/sizing/netlist"
)

// Status classifies how a timing metric moved from baseline to best.
type Status string

const (
	StatusImproved       Status = "improved"
	StatusNotImproved    Status = "worsened or unchanged"
	StatusMaintained     Status = "maintained"
	StatusBecameNegative Status = "worsened, became negative"
	StatusUnavailable    Status = "n/a"
)

// Comparison is the nominal (zero-variance) evaluation of baseline against best.
type Comparison struct {
	Baseline  Evaluation
	Best      Evaluation
	WNSDiff   float64
	TNSDiff   float64
	WNSStatus Status
	TNSStatus Status
}

// NominalEvaluator runs a single zero-variance evaluation.
type NominalEvaluator interface {
	EvaluateNominal(ctx context.Context, nl *netlist.Netlist) Evaluation
}

// Compare evaluates baseline and best at nominal derate and classifies the change.
// Either evaluation failing yields StatusUnavailable for both metrics.
func Compare(ctx context.Context, eval NominalEvaluator, baseline, best *netlist.Netlist) Comparison {
	c := Comparison{
		Baseline:  eval.EvaluateNominal(ctx, baseline),
		Best:      eval.EvaluateNominal(ctx, best),
		WNSStatus: StatusUnavailable,
		TNSStatus: StatusUnavailable,
	}
	if !c.Baseline.Feasible || !c.Best.Feasible {
		return c
	}
	baseWNS, bestWNS := c.Baseline.MeanWNS, c.Best.MeanWNS
	baseTNS, bestTNS := c.Baseline.MeanTNS, c.Best.MeanTNS
	c.WNSDiff = bestWNS - baseWNS
	c.TNSDiff = bestTNS - baseTNS

	c.WNSStatus = StatusNotImproved
	if c.WNSDiff > 0 {
		c.WNSStatus = StatusImproved
	}
	switch {
	case baseTNS < 0 && bestTNS > baseTNS:
		c.TNSStatus = StatusImproved
	case baseTNS < 0:
		c.TNSStatus = StatusNotImproved
	case bestTNS >= 0:
		c.TNSStatus = StatusMaintained
	default:
		c.TNSStatus = StatusBecameNegative
	}
	return c
}
