package cmd

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/inference-sim/gatesizer/sizing"
	"github.com/inference-sim/gatesizer/sizing/netlist"
	"github.com/inference-sim/gatesizer/sizing/trace"
)

func TestStylesFor_NonTerminalIsPlain(t *testing.T) {
	var buf bytes.Buffer
	s := stylesFor(&buf)
	assert.Equal(t, "improved", s.status(sizing.StatusImproved))
}

func TestWriteRunSummary(t *testing.T) {
	// GIVEN a finished run and an improving comparison
	res := &sizing.Result{
		BaselineEval:     sizing.Evaluation{Cost: 0.31, Feasible: true},
		BestCost:         0.12,
		Iterations:       44,
		Accepted:         3,
		Rejected:         40,
		Infeasible:       1,
		Improvements:     2,
		FinalTemperature: 0.0097,
		StopReason:       sizing.StopTemperature,
	}
	cmp := sizing.Comparison{
		Baseline:  sizing.Evaluation{Feasible: true, MeanWNS: -0.3, MeanTNS: -2},
		Best:      sizing.Evaluation{Feasible: true, MeanWNS: -0.1, MeanTNS: -0.5},
		WNSDiff:   0.2,
		TNSDiff:   1.5,
		WNSStatus: sizing.StatusImproved,
		TNSStatus: sizing.StatusImproved,
	}

	// WHEN rendered to a non-terminal
	var buf bytes.Buffer
	writeRunSummary(&buf, plainStyles(), res, cmp, "out/sa_best.v")
	out := buf.String()

	// THEN the key figures appear as plain text
	assert.Contains(t, out, "44 (accepted 3, rejected 40, infeasible 1, skipped 0)")
	assert.Contains(t, out, "Baseline cost:     0.310000")
	assert.Contains(t, out, "Best cost:         0.120000 (2 improvements)")
	assert.Contains(t, out, "out/sa_best.v")
	assert.Contains(t, out, "Baseline WNS = -0.3000 ns, TNS = -2.0000 ns")
	assert.Contains(t, out, "WNS difference: +0.2000 ns (improved)")
	assert.Contains(t, out, "TNS difference: +1.5000 ns (improved)")
}

func TestWriteRunSummary_UnavailableComparison(t *testing.T) {
	res := &sizing.Result{BestCost: math.Inf(1), StopReason: sizing.StopCanceled}
	cmp := sizing.Comparison{
		Best:      sizing.Evaluation{Feasible: true},
		WNSStatus: sizing.StatusUnavailable,
		TNSStatus: sizing.StatusUnavailable,
	}
	var buf bytes.Buffer
	writeRunSummary(&buf, plainStyles(), res, cmp, "")
	out := buf.String()
	assert.Contains(t, out, "Best cost:         inf")
	assert.Contains(t, out, "Baseline nominal STA failed")
	assert.Contains(t, out, "WNS difference: n/a")
}

func TestWriteChanges(t *testing.T) {
	var buf bytes.Buffer
	writeChanges(&buf, plainStyles(), []netlist.Change{{Name: "u1", Family: "INV_X", From: 1, To: 2}})
	assert.Contains(t, buf.String(), "Resized Instances (1)")
	assert.Contains(t, buf.String(), "INV_X1 -> INV_X2")

	buf.Reset()
	writeChanges(&buf, plainStyles(), nil)
	assert.Contains(t, buf.String(), "<no changes>")
}

func TestWriteYieldSummary(t *testing.T) {
	// GIVEN four trials, one failed and two passing
	rep := sizing.YieldReport{
		Trials:     make([]sizing.Trial, 4),
		Successful: 3,
		Passed:     2,
		MeanWNS:    0.01,
		StdWNS:     0.02,
		MinWNS:     -0.015,
		MeanTNS:    -0.01,
		MinTNS:     -0.03,
	}
	var buf bytes.Buffer
	writeYieldSummary(&buf, plainStyles(), rep)
	out := buf.String()
	assert.Contains(t, out, "Successful runs: 3/4")
	assert.Contains(t, out, "Min WNS:         -0.0150 ns")
	assert.Contains(t, out, "2/4 = 50.00%")
}

func TestWriteYieldSummary_NoSuccessfulRuns(t *testing.T) {
	var buf bytes.Buffer
	writeYieldSummary(&buf, plainStyles(), sizing.YieldReport{Trials: make([]sizing.Trial, 2)})
	assert.Contains(t, buf.String(), "No valid STA runs completed.")
}

func TestRecordTrials(t *testing.T) {
	tr := trace.NewRunTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions, Seed: 1})
	recordTrials(tr, []sizing.Trial{
		{Index: 1, Derate: sizing.Derate{CellDelay: 1.01, CellCheck: 0.99}, WNS: 0.1, TNS: 0},
		{Index: 2, Err: errors.New("timeout")},
	})
	if assert.Len(t, tr.Trials, 2) {
		assert.True(t, tr.Trials[0].Passed)
		assert.Equal(t, 1.01, tr.Trials[0].CellDelay)
		assert.False(t, tr.Trials[1].Passed)
		assert.Equal(t, "timeout", tr.Trials[1].Error)
	}
	assert.Equal(t, 1, trace.Summarize(tr).PassedTrials)

	// A nil trace records nothing and does not panic.
	recordTrials(nil, []sizing.Trial{{Index: 1}})
}
