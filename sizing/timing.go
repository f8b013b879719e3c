package sizing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strings"

	"github.com/inference-sim/gatesizer/sizing/netlist"
)

// Derate is a pair of multiplicative timing derating factors.
type Derate struct {
	CellDelay float64
	CellCheck float64
}

// NominalDerate is the zero-variance derate used for final comparisons.
func NominalDerate() Derate {
	return Derate{CellDelay: 1.0, CellCheck: 1.0}
}

// DerateSampler draws derates from a normal distribution bounded below by Floor.
type DerateSampler struct {
	Mu         float64 `yaml:"mu" validate:"gt=0"`
	SigmaDelay float64 `yaml:"sigma_delay" validate:"gte=0"`
	SigmaCheck float64 `yaml:"sigma_check" validate:"gte=0"`
	Floor      float64 `yaml:"floor" validate:"gt=0"`
}

// DefaultDerateSampler returns mu=1.0, sigma=0.02, floor=0.1.
func DefaultDerateSampler() DerateSampler {
	return DerateSampler{Mu: 1.0, SigmaDelay: 0.02, SigmaCheck: 0.02, Floor: 0.1}
}

// Sample draws one derate. Zero sigmas yield max(Floor, Mu) without consuming rng.
func (s DerateSampler) Sample(rng *rand.Rand) Derate {
	draw := func(sigma float64) float64 {
		v := s.Mu
		if sigma > 0 {
			v += sigma * rng.NormFloat64()
		}
		return math.Max(s.Floor, v)
	}
	delay := draw(s.SigmaDelay)
	check := draw(s.SigmaCheck)
	return Derate{CellDelay: delay, CellCheck: check}
}

// Constraints bundles the static inputs every oracle call needs.
type Constraints struct {
	Design  string `yaml:"design"`
	SDC     string `yaml:"sdc"`
	Liberty string `yaml:"liberty"`
	SPEF    string `yaml:"spef,omitempty"` // optional parasitics
}

// Validate returns a *FatalSetupError when the design name is empty or a required
// file (or the SPEF file, when given) does not exist.
func (c Constraints) Validate() error {
	if strings.TrimSpace(c.Design) == "" {
		return &FatalSetupError{Reason: "design name not provided"}
	}
	files := []struct{ kind, path string }{{"sdc", c.SDC}, {"liberty", c.Liberty}}
	if c.SPEF != "" {
		files = append(files, struct{ kind, path string }{"spef", c.SPEF})
	}
	for _, f := range files {
		if f.path == "" {
			return &FatalSetupError{Reason: fmt.Sprintf("%s file not provided", f.kind)}
		}
		if _, err := os.Stat(f.path); err != nil {
			return &FatalSetupError{Path: f.path, Reason: fmt.Sprintf("required %s file not found", f.kind), Err: err}
		}
	}
	return nil
}

// PathRole is the coarse role an instance plays on the reported timing paths.
type PathRole int

const (
	RoleUnknown PathRole = iota
	RoleMiddle
	RoleBufferClockEnd
	RoleSequential
)

func (r PathRole) String() string {
	switch r {
	case RoleMiddle:
		return "middle"
	case RoleBufferClockEnd:
		return "buffer-clock-end"
	case RoleSequential:
		return "sequential"
	default:
		return "unknown"
	}
}

// TimingSample is the per-instance timing observed in one oracle call. Never mutated.
type TimingSample struct {
	Delay  float64
	Slew   float64
	Slack  float64 // worst slack of the reported paths through the instance
	Fanin  int
	Fanout int
	Role   PathRole
}

// TimingResult is the normalized output of one oracle call.
// Samples is nil when the detailed report could not be parsed.
type TimingResult struct {
	WNS     float64
	TNS     float64
	Samples map[string]TimingSample
}

// TimingOracle is the external static timing analysis capability.
// Implementations return an *OracleFailure on any error and must honor ctx.
type TimingOracle interface {
	Evaluate(ctx context.Context, nl *netlist.Netlist, cons Constraints, derate Derate) (*TimingResult, error)
}

// FailureReason classifies oracle failures.
type FailureReason string

const (
	FailureProcess      FailureReason = "process"
	FailureTimeout      FailureReason = "timeout"
	FailureMissingInput FailureReason = "missing-input"
	FailureUnparsable   FailureReason = "unparsable"
	FailureCanceled     FailureReason = "canceled"
)

// OracleFailure reports an oracle call that produced no usable timing signal.
// Recoverable: the evaluation that triggered it becomes infeasible.
type OracleFailure struct {
	Reason FailureReason
	Detail string
	Err    error
}

func (e *OracleFailure) Error() string {
	msg := "timing oracle failure (" + string(e.Reason) + ")"
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *OracleFailure) Unwrap() error { return e.Err }

// FatalSetupError reports a missing required input at initialization. It aborts the run.
type FatalSetupError struct {
	Path   string
	Reason string
	Err    error
}

func (e *FatalSetupError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("fatal setup error: %s: %s", e.Reason, e.Path)
	}
	return "fatal setup error: " + e.Reason
}

func (e *FatalSetupError) Unwrap() error { return e.Err }

// ErrInfeasibleBaseline is returned when the baseline netlist cannot be evaluated.
var ErrInfeasibleBaseline = errors.New("baseline netlist is infeasible: cannot optimize from a broken starting point")

// CellClassifier maps cell families to role hints using family prefixes.
type CellClassifier struct {
	Sequential []string `yaml:"sequential"`
	Buffer     []string `yaml:"buffer"`
	Clock      []string `yaml:"clock"`
}

// DefaultCellClassifier covers NanGate-style flip-flops, latches, buffers and clock buffers.
func DefaultCellClassifier() CellClassifier {
	return CellClassifier{
		Sequential: []string{"DFF", "SDFF", "DLH", "DLL"},
		Buffer:     []string{"BUF", "TBUF"},
		Clock:      []string{"CLKBUF", "CLKGATE"},
	}
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// IsSequential reports whether family is a flip-flop or latch.
func (c CellClassifier) IsSequential(family string) bool {
	return hasAnyPrefix(family, c.Sequential)
}

// IsBuffer reports whether family is a data buffer.
func (c CellClassifier) IsBuffer(family string) bool {
	return hasAnyPrefix(family, c.Buffer)
}

// IsClock reports whether family belongs to the clock network.
func (c CellClassifier) IsClock(family string) bool {
	return hasAnyPrefix(family, c.Clock)
}

// Role derives the path role of a cell; endpoint marks path start/end instances.
func (c CellClassifier) Role(family string, endpoint bool) PathRole {
	switch {
	case family == "":
		return RoleUnknown
	case c.IsSequential(family):
		return RoleSequential
	case endpoint || c.IsBuffer(family) || c.IsClock(family):
		return RoleBufferClockEnd
	default:
		return RoleMiddle
	}
}
