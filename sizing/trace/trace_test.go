package trace

import (
	"bytes"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestRunTrace_RecordIteration_AppendsRecord(t *testing.T) {
	// GIVEN a trace configured for decisions
	rt := NewRunTrace(TraceConfig{Level: TraceLevelDecisions, Seed: 7})

	// WHEN an iteration record is recorded
	rt.RecordIteration(IterationRecord{
		Iteration:     1,
		Temperature:   1.0,
		CandidateCost: 0.2,
		CurrentCost:   0.3,
		BestCost:      0.3,
		Decision:      "accepted",
		NewBest:       true,
		Mutations:     []MutationRecord{{Instance: "u1", Family: "INV_X", From: 1, To: 2}},
	})

	// THEN the trace contains one iteration record with correct data
	if len(rt.Iterations) != 1 {
		t.Fatalf("expected 1 iteration, got %d", len(rt.Iterations))
	}
	if rt.Iterations[0].Mutations[0].Instance != "u1" {
		t.Errorf("expected instance u1, got %s", rt.Iterations[0].Mutations[0].Instance)
	}
	if !rt.Iterations[0].NewBest {
		t.Error("expected new_best=true")
	}
}

func TestRunTrace_RecordTrial_AppendsRecord(t *testing.T) {
	// GIVEN a trace configured for decisions
	rt := NewRunTrace(TraceConfig{Level: TraceLevelDecisions})

	// WHEN a failing trial is recorded
	rt.RecordTrial(TrialRecord{Index: 1, CellDelay: 1.01, CellCheck: 0.99, Error: "timeout"})

	// THEN the trace keeps the error text
	if len(rt.Trials) != 1 {
		t.Fatalf("expected 1 trial, got %d", len(rt.Trials))
	}
	if rt.Trials[0].Error != "timeout" {
		t.Errorf("expected error timeout, got %q", rt.Trials[0].Error)
	}
}

func TestNewRunTrace_LevelNone_IsNilAndSafe(t *testing.T) {
	// GIVEN tracing disabled
	rt := NewRunTrace(TraceConfig{Level: TraceLevelNone})

	// WHEN records are recorded on the nil trace
	rt.RecordIteration(IterationRecord{Iteration: 1})
	rt.RecordTrial(TrialRecord{Index: 1})

	// THEN nothing panics and no trace exists
	if rt != nil {
		t.Fatal("expected nil trace for level none")
	}
}

func TestIsValidTraceLevel(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"none", true},
		{"decisions", true},
		{"", true},
		{"verbose", false},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			if got := IsValidTraceLevel(tt.level); got != tt.valid {
				t.Errorf("IsValidTraceLevel(%q) = %v, want %v", tt.level, got, tt.valid)
			}
		})
	}
}

func TestRunTrace_WriteYAML_IncludesSummary(t *testing.T) {
	// GIVEN a trace with one accepted and one rejected iteration
	rt := NewRunTrace(TraceConfig{Level: TraceLevelDecisions, Seed: 42})
	rt.RecordIteration(IterationRecord{Iteration: 1, Decision: "accepted"})
	rt.RecordIteration(IterationRecord{Iteration: 2, Decision: "rejected"})

	// WHEN written as YAML
	var buf bytes.Buffer
	if err := rt.WriteYAML(&buf); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}

	// THEN the document decodes back with the summary counts
	var doc struct {
		Summary TraceSummary `yaml:"summary"`
		Trace   RunTrace     `yaml:"trace"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("decoding trace: %v", err)
	}
	if doc.Summary.AcceptedCount != 1 || doc.Summary.RejectedCount != 1 {
		t.Errorf("expected 1 accepted and 1 rejected, got %+v", doc.Summary)
	}
	if doc.Trace.Config.Seed != 42 {
		t.Errorf("expected seed 42, got %d", doc.Trace.Config.Seed)
	}
	if !strings.Contains(buf.String(), "decision: accepted") {
		t.Error("expected raw decisions in output")
	}
}
