// Package trace provides decision-trace recording for annealing runs.
// This package has no dependencies on sizing/; it stores pure data types.
package trace

// MutationRecord captures one resize applied to a candidate.
type MutationRecord struct {
	Instance string `yaml:"instance"`
	Family   string `yaml:"family"`
	From     int    `yaml:"from"`
	To       int    `yaml:"to"`
}

// IterationRecord captures a single annealing decision.
type IterationRecord struct {
	Iteration     int              `yaml:"iteration"`
	Temperature   float64          `yaml:"temperature"`
	CandidateCost float64          `yaml:"candidate_cost"`
	CurrentCost   float64          `yaml:"current_cost"`
	BestCost      float64          `yaml:"best_cost"`
	Decision      string           `yaml:"decision"` // accepted, rejected, infeasible or skipped
	NewBest       bool             `yaml:"new_best,omitempty"`
	HasSignal     bool             `yaml:"has_signal"`
	Mutations     []MutationRecord `yaml:"mutations,omitempty"`
	Reason        string           `yaml:"reason,omitempty"`
}

// TrialRecord captures one Monte Carlo trial of a standalone yield sweep.
type TrialRecord struct {
	Index     int     `yaml:"index"`
	CellDelay float64 `yaml:"cell_delay"`
	CellCheck float64 `yaml:"cell_check"`
	WNS       float64 `yaml:"wns"`
	TNS       float64 `yaml:"tns"`
	Passed    bool    `yaml:"passed"`
	Error     string  `yaml:"error,omitempty"`
}
