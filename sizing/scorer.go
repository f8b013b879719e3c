package sizing

import (
	"math"

	"github.com/inference-sim/gatesizer/sizing/netlist"
)

// GateScore is the mutation priority of one instance.
type GateScore struct {
	Score       float64 // always >= 0
	NeedsUpsize bool    // fix-by-growing disposition; never set without a signal
	HasSignal   bool    // false when no usable timing sample was available
}

// Scorer turns per-instance timing samples into mutation priorities.
// It is a pure function of its configuration and the samples it is given.
type Scorer struct {
	cfg        ScoreConfig
	classifier CellClassifier
}

// NewScorer creates a Scorer.
func NewScorer(cfg ScoreConfig, classifier CellClassifier) *Scorer {
	return &Scorer{cfg: cfg, classifier: classifier}
}

// Score computes the priority of inst from samples. Missing or non-finite samples score 0.
func (s *Scorer) Score(inst netlist.Instance, samples map[string]TimingSample) GateScore {
	sample, ok := samples[inst.Name]
	if !ok || !finite(sample.Slack) {
		return GateScore{}
	}

	score := 0.0
	failing := sample.Slack < s.cfg.SlackThreshold
	if failing {
		score = s.cfg.BaseWeight
		if sample.Slack < 0 {
			score += s.cfg.SlackWeight * math.Abs(sample.Slack)
		}
	}

	score *= s.roleMultiplier(sample.Role)

	if (finite(sample.Delay) && sample.Delay > s.cfg.DelayThreshold) ||
		(finite(sample.Slew) && sample.Slew > s.cfg.SlewThreshold) {
		score *= s.cfg.ThresholdPenalty
	}

	clockOrBuffer := s.classifier.IsClock(inst.Family) || s.classifier.IsBuffer(inst.Family)
	if clockOrBuffer {
		score *= s.cfg.ClockBufferBoost
	}

	needsUpsize := sample.Slack < 0 || sample.Role == RoleSequential || sample.Role == RoleBufferClockEnd

	if !finite(score) || score < 0 {
		score = 0
	}
	return GateScore{Score: score, NeedsUpsize: needsUpsize, HasSignal: true}
}

func (s *Scorer) roleMultiplier(role PathRole) float64 {
	switch role {
	case RoleSequential:
		return s.cfg.SequentialMultiplier
	case RoleMiddle:
		return s.cfg.MiddleMultiplier
	case RoleBufferClockEnd:
		return s.cfg.BufferMultiplier
	default:
		return 1.0
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
