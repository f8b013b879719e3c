package trace

// TraceSummary aggregates statistics from a RunTrace.
type TraceSummary struct {
	TotalIterations      int            `yaml:"total_iterations"`
	AcceptedCount        int            `yaml:"accepted"`
	RejectedCount        int            `yaml:"rejected"`
	InfeasibleCount      int            `yaml:"infeasible"`
	SkippedCount         int            `yaml:"skipped"`
	NewBestCount         int            `yaml:"new_best"`
	AcceptanceRate       float64        `yaml:"acceptance_rate"`
	MeanMutations        float64        `yaml:"mean_mutations"`
	UniqueInstances      int            `yaml:"unique_instances"`
	InstanceDistribution map[string]int `yaml:"instance_distribution"` // instance → accepted resizes
	PassedTrials         int            `yaml:"passed_trials"`
}

// Summarize computes aggregate statistics from a RunTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(rt *RunTrace) *TraceSummary {
	summary := &TraceSummary{
		InstanceDistribution: make(map[string]int),
	}
	if rt == nil {
		return summary
	}

	summary.TotalIterations = len(rt.Iterations)
	evaluated := 0
	totalMutations := 0
	for _, it := range rt.Iterations {
		switch it.Decision {
		case "accepted":
			summary.AcceptedCount++
			for _, m := range it.Mutations {
				summary.InstanceDistribution[m.Instance]++
			}
		case "rejected":
			summary.RejectedCount++
		case "infeasible":
			summary.InfeasibleCount++
		case "skipped":
			summary.SkippedCount++
			continue
		}
		if it.NewBest {
			summary.NewBestCount++
		}
		evaluated++
		totalMutations += len(it.Mutations)
	}
	if evaluated > 0 {
		summary.AcceptanceRate = float64(summary.AcceptedCount) / float64(evaluated)
		summary.MeanMutations = float64(totalMutations) / float64(evaluated)
	}

	for _, tr := range rt.Trials {
		if tr.Passed {
			summary.PassedTrials++
		}
	}

	summary.UniqueInstances = len(summary.InstanceDistribution)

	return summary
}
