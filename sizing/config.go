package sizing

import (
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
)

// AnnealConfig groups the cooling schedule.
type AnnealConfig struct {
	InitTemp          float64 `yaml:"init_temp" validate:"gt=0"`
	FinalTemp         float64 `yaml:"final_temp" validate:"gt=0,ltfield=InitTemp"`
	Alpha             float64 `yaml:"alpha" validate:"gt=0,lt=1"`
	IterationsPerStep int     `yaml:"iterations_per_step" validate:"gte=1"`
	MaxIterations     int     `yaml:"max_iterations" validate:"gte=0"` // 0 = derived from the schedule
}

// CostConfig groups Monte Carlo and cost-weight parameters.
type CostConfig struct {
	Trials     int     `yaml:"trials" validate:"gte=1"`
	Workers    int     `yaml:"workers" validate:"gte=1"`
	Base       float64 `yaml:"base" validate:"gt=0"`
	WNSWeight  float64 `yaml:"wns_weight" validate:"gte=0"`
	TNSWeight  float64 `yaml:"tns_weight" validate:"gte=0"`
	AreaWeight float64 `yaml:"area_weight" validate:"gte=0"`
	AreaScale  float64 `yaml:"area_scale" validate:"gt=0"`
}

// PerturbConfig groups mutation budget and size-selection probabilities.
type PerturbConfig struct {
	MaxGates          int     `yaml:"max_gates" validate:"gte=1"`
	ApplyProb         float64 `yaml:"apply_prob" validate:"gte=0,lte=1"`
	UpsizeLargestProb float64 `yaml:"upsize_largest_prob" validate:"gte=0,lte=1"`
	DownsizeProb      float64 `yaml:"downsize_prob" validate:"gte=0,lte=1"`
}

// ScoreConfig holds the gate scorer weights.
type ScoreConfig struct {
	SlackThreshold       float64 `yaml:"slack_threshold"`
	BaseWeight           float64 `yaml:"base_weight" validate:"gte=0"`
	SlackWeight          float64 `yaml:"slack_weight" validate:"gte=0"`
	SequentialMultiplier float64 `yaml:"sequential_multiplier" validate:"gt=0"`
	MiddleMultiplier     float64 `yaml:"middle_multiplier" validate:"gt=0"`
	BufferMultiplier     float64 `yaml:"buffer_multiplier" validate:"gt=0"`
	DelayThreshold       float64 `yaml:"delay_threshold" validate:"gt=0"` // ns
	SlewThreshold        float64 `yaml:"slew_threshold" validate:"gt=0"`  // ns
	ThresholdPenalty     float64 `yaml:"threshold_penalty" validate:"gte=1"`
	ClockBufferBoost     float64 `yaml:"clock_buffer_boost" validate:"gte=1"`
}

// OracleConfig groups settings of the production timing oracle.
type OracleConfig struct {
	Binary  string        `yaml:"binary" validate:"required"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
	WorkDir string        `yaml:"work_dir"`
	KeepDir string        `yaml:"keep_dir"` // failed scratch dirs are copied here when set
}

// Config is the immutable run configuration. It is built once at startup and
// passed explicitly to every component.
type Config struct {
	Anneal     AnnealConfig   `yaml:"anneal"`
	Cost       CostConfig     `yaml:"cost"`
	Perturb    PerturbConfig  `yaml:"perturb"`
	Score      ScoreConfig    `yaml:"score"`
	Derate     DerateSampler  `yaml:"derate"`
	Oracle     OracleConfig   `yaml:"oracle"`
	Classifier CellClassifier `yaml:"classifier"`
}

// DefaultConfig returns the defaults of the reference flow.
func DefaultConfig() Config {
	return Config{
		Anneal: AnnealConfig{
			InitTemp:          1.0,
			FinalTemp:         1e-2,
			Alpha:             0.9,
			IterationsPerStep: 200,
		},
		Cost: CostConfig{
			Trials:     3,
			Workers:    3,
			Base:       1e-6,
			WNSWeight:  1.0,
			TNSWeight:  0.1,
			AreaWeight: 0,
			AreaScale:  1000,
		},
		Perturb: PerturbConfig{
			MaxGates:          5,
			ApplyProb:         0.8,
			UpsizeLargestProb: 0.95,
			DownsizeProb:      0.8,
		},
		Score: ScoreConfig{
			SlackThreshold:       0,
			BaseWeight:           1.0,
			SlackWeight:          10.0,
			SequentialMultiplier: 1.5,
			MiddleMultiplier:     2.0,
			BufferMultiplier:     2.5,
			DelayThreshold:       0.5,
			SlewThreshold:        0.5,
			ThresholdPenalty:     1.5,
			ClockBufferBoost:     2.0,
		},
		Derate: DefaultDerateSampler(),
		Oracle: OracleConfig{
			Binary:  "/usr/local/bin/opensta",
			Timeout: 60 * time.Second,
		},
		Classifier: DefaultCellClassifier(),
	}
}

var configValidate = validator.New()

// Validate checks struct tags and reports the first failing field.
func (c Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s fails %q (got %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	for name, v := range map[string]float64{
		"anneal.init_temp":  c.Anneal.InitTemp,
		"anneal.final_temp": c.Anneal.FinalTemp,
		"cost.base":         c.Cost.Base,
		"cost.area_scale":   c.Cost.AreaScale,
	} {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return fmt.Errorf("invalid config: %s must be finite, got %v", name, v)
		}
	}
	return nil
}

// CoolingSteps is the number of multiplicative cooling steps needed to go from
// InitTemp to FinalTemp: ceil(log(Tf/Ti) / log(alpha)).
func (a AnnealConfig) CoolingSteps() int {
	if a.InitTemp <= 0 || a.FinalTemp <= 0 || a.Alpha <= 0 || a.Alpha >= 1 || a.FinalTemp >= a.InitTemp {
		return 0
	}
	return int(math.Ceil(math.Log(a.FinalTemp/a.InitTemp) / math.Log(a.Alpha)))
}

// IterationBudget bounds the total number of iterations of one run.
func (a AnnealConfig) IterationBudget() int {
	budget := a.CoolingSteps() * max(a.IterationsPerStep, 1)
	if a.MaxIterations > 0 && a.MaxIterations < budget {
		budget = a.MaxIterations
	}
	return budget
}
