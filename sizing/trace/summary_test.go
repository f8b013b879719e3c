package trace

import "testing"

func TestSummarize_EmptyTrace_ZeroValues(t *testing.T) {
	// GIVEN an empty trace
	rt := NewRunTrace(TraceConfig{Level: TraceLevelDecisions})

	// WHEN summarized
	summary := Summarize(rt)

	// THEN all counts are zero
	if summary.TotalIterations != 0 {
		t.Errorf("expected 0 iterations, got %d", summary.TotalIterations)
	}
	if summary.AcceptedCount != 0 || summary.RejectedCount != 0 {
		t.Error("expected 0 accepted and rejected")
	}
	if summary.AcceptanceRate != 0 || summary.MeanMutations != 0 {
		t.Error("expected 0 rates")
	}
	if len(summary.InstanceDistribution) != 0 {
		t.Error("expected empty instance distribution")
	}
}

func TestSummarize_NilTrace_ZeroValues(t *testing.T) {
	summary := Summarize(nil)
	if summary == nil || summary.TotalIterations != 0 {
		t.Fatal("expected zero summary for nil trace")
	}
}

func TestSummarize_PopulatedTrace_CorrectCounts(t *testing.T) {
	// GIVEN a trace with every kind of decision
	rt := NewRunTrace(TraceConfig{Level: TraceLevelDecisions})
	rt.RecordIteration(IterationRecord{Iteration: 1, Decision: "accepted", NewBest: true,
		Mutations: []MutationRecord{{Instance: "u1"}, {Instance: "u2"}}})
	rt.RecordIteration(IterationRecord{Iteration: 2, Decision: "rejected",
		Mutations: []MutationRecord{{Instance: "u3"}}})
	rt.RecordIteration(IterationRecord{Iteration: 3, Decision: "infeasible"})
	rt.RecordIteration(IterationRecord{Iteration: 4, Decision: "skipped", Reason: "boom"})
	rt.RecordIteration(IterationRecord{Iteration: 5, Decision: "accepted",
		Mutations: []MutationRecord{{Instance: "u1"}}})
	rt.RecordTrial(TrialRecord{Index: 1, Passed: true})
	rt.RecordTrial(TrialRecord{Index: 2})

	// WHEN summarized
	summary := Summarize(rt)

	// THEN counts match
	if summary.TotalIterations != 5 {
		t.Errorf("expected 5 iterations, got %d", summary.TotalIterations)
	}
	if summary.AcceptedCount != 2 || summary.RejectedCount != 1 || summary.InfeasibleCount != 1 || summary.SkippedCount != 1 {
		t.Errorf("unexpected decision counts: %+v", summary)
	}
	if summary.NewBestCount != 1 {
		t.Errorf("expected 1 new best, got %d", summary.NewBestCount)
	}
	if summary.PassedTrials != 1 {
		t.Errorf("expected 1 passed trial, got %d", summary.PassedTrials)
	}

	// THEN skipped iterations do not count toward the acceptance rate
	if want := 2.0 / 4.0; summary.AcceptanceRate != want {
		t.Errorf("expected acceptance rate %v, got %v", want, summary.AcceptanceRate)
	}
	if want := 4.0 / 4.0; summary.MeanMutations != want {
		t.Errorf("expected mean mutations %v, got %v", want, summary.MeanMutations)
	}

	// THEN only accepted mutations feed the distribution
	if summary.InstanceDistribution["u1"] != 2 || summary.InstanceDistribution["u2"] != 1 {
		t.Errorf("unexpected distribution: %v", summary.InstanceDistribution)
	}
	if _, ok := summary.InstanceDistribution["u3"]; ok {
		t.Error("rejected mutations must not appear in the distribution")
	}
	if summary.UniqueInstances != 2 {
		t.Errorf("expected 2 unique instances, got %d", summary.UniqueInstances)
	}
}
