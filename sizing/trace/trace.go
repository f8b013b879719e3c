package trace

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures every accept/reject decision and sweep trial.
	TraceLevelDecisions TraceLevel = "decisions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelDecisions: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel `yaml:"level"`
	Seed  int64      `yaml:"seed"`
}

// RunTrace collects decision records during an optimization run.
// A nil *RunTrace records nothing.
type RunTrace struct {
	Config     TraceConfig       `yaml:"config"`
	Iterations []IterationRecord `yaml:"iterations"`
	Trials     []TrialRecord     `yaml:"trials,omitempty"`
}

// NewRunTrace creates a RunTrace ready for recording, or nil when tracing is disabled.
func NewRunTrace(config TraceConfig) *RunTrace {
	if config.Level == TraceLevelNone || config.Level == "" {
		return nil
	}
	return &RunTrace{
		Config:     config,
		Iterations: make([]IterationRecord, 0),
	}
}

// RecordIteration appends an iteration record.
func (rt *RunTrace) RecordIteration(record IterationRecord) {
	if rt == nil {
		return
	}
	rt.Iterations = append(rt.Iterations, record)
}

// RecordTrial appends a sweep trial record.
func (rt *RunTrace) RecordTrial(record TrialRecord) {
	if rt == nil {
		return
	}
	rt.Trials = append(rt.Trials, record)
}

// WriteYAML encodes the trace and its summary to w.
func (rt *RunTrace) WriteYAML(w io.Writer) error {
	doc := struct {
		Summary *TraceSummary `yaml:"summary"`
		Trace   *RunTrace     `yaml:"trace"`
	}{Summarize(rt), rt}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding trace: %w", err)
	}
	return enc.Close()
}
