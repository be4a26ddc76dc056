package brain

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidOptions = errors.New("invalid brain options")
)

// Options are read once when the brain is built.
type Options struct {
	TemporalWindow int `yaml:"temporalWindow" json:"temporalWindow"`
	ExperienceSize int `yaml:"experienceSize" json:"experienceSize"`
	// StartLearnThreshold is the number of stored experiences needed
	// before training starts. Zero derives it from ExperienceSize.
	StartLearnThreshold int     `yaml:"startLearnThreshold" json:"startLearnThreshold"`
	Gamma               float64 `yaml:"gamma" json:"gamma"`
	LearningStepsTotal  int     `yaml:"learningStepsTotal" json:"learningStepsTotal"`
	LearningStepsBurnin int     `yaml:"learningStepsBurnin" json:"learningStepsBurnin"`
	EpsilonMin          float64 `yaml:"epsilonMin" json:"epsilonMin"`
	EpsilonTestTime     float64 `yaml:"epsilonTestTime" json:"epsilonTestTime"`
	HiddenLayers        []int   `yaml:"hiddenLayers" json:"hiddenLayers"`
	// RandomActionDistribution biases random actions. Empty means uniform.
	RandomActionDistribution []float64 `yaml:"randomActionDistribution" json:"randomActionDistribution"`
	Trainer                  Trainer   `yaml:"trainer" json:"trainer"`
	Seed                     uint64    `yaml:"seed" json:"seed"`
}

func DefaultOptions() Options {
	return Options{
		TemporalWindow:      1,
		ExperienceSize:      30000,
		Gamma:               0.8,
		LearningStepsTotal:  100000,
		LearningStepsBurnin: 3000,
		EpsilonMin:          0.05,
		EpsilonTestTime:     0.01,
		Trainer: Trainer{
			LearningRate: 0.01,
			Momentum:     0,
			BatchSize:    64,
			L2Decay:      0.01,
		},
	}
}

func (o Options) startLearnThreshold() int {
	if o.StartLearnThreshold > 0 {
		return o.StartLearnThreshold
	}
	return int(math.Floor(math.Min(float64(o.ExperienceSize)*0.1, 1000)))
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidOptions, fmt.Sprintf(format, args...))
}

func (o Options) validate(numStates, numActions int) error {
	if numStates < 1 || numActions < 1 {
		return invalid("need at least one state and one action, got %d states and %d actions", numStates, numActions)
	}
	if o.TemporalWindow < 0 {
		return invalid("temporalWindow must be non-negative, got %d", o.TemporalWindow)
	}
	if o.ExperienceSize < 1 {
		return invalid("experienceSize must be positive, got %d", o.ExperienceSize)
	}
	if o.Gamma < 0 || o.Gamma > 1 {
		return invalid("gamma must be in [0, 1], got %v", o.Gamma)
	}
	if o.LearningStepsTotal <= o.LearningStepsBurnin || o.LearningStepsBurnin < 0 {
		return invalid("learningStepsTotal %d must exceed learningStepsBurnin %d", o.LearningStepsTotal, o.LearningStepsBurnin)
	}
	if o.EpsilonMin < 0 || o.EpsilonMin > 1 || o.EpsilonTestTime < 0 || o.EpsilonTestTime > 1 {
		return invalid("epsilons must be in [0, 1], got min %v and test %v", o.EpsilonMin, o.EpsilonTestTime)
	}
	for _, h := range o.HiddenLayers {
		if h < 1 {
			return invalid("hidden layers need at least one neuron, got %d", h)
		}
	}
	if o.Trainer.BatchSize < 1 || o.Trainer.LearningRate <= 0 {
		return invalid("trainer needs a positive batch size and learning rate")
	}
	if d := o.RandomActionDistribution; len(d) > 0 {
		if len(d) != numActions {
			return invalid("randomActionDistribution has %d entries for %d actions", len(d), numActions)
		}
		sum := 0.0
		for _, p := range d {
			if p < 0 {
				return invalid("randomActionDistribution entries must be non-negative")
			}
			sum += p
		}
		if math.Abs(sum-1) > 1e-4 {
			return invalid("randomActionDistribution must sum to 1, got %v", sum)
		}
	}
	return nil
}
