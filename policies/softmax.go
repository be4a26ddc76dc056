package policies

import (
	"fmt"
	"math"
	"time"

	"github.com/zeu5/deep-traffic/core"
	erand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// SoftmaxPolicy is Q-learning whose next action is drawn from the softmax
// of the action values with a temperature.
type SoftmaxPolicy struct {
	qTable      *QTable
	Alpha       float64
	Gamma       float64
	Temperature float64
	actions     []string

	rand     erand.Source
	learning bool
	memory   stepMemory
}

// NewSoftmaxPolicy instantiates the SoftmaxPolicy
func NewSoftmaxPolicy(numActions int, alpha, gamma, temperature float64) *SoftmaxPolicy {
	return &SoftmaxPolicy{
		qTable:      NewQTable(),
		Alpha:       alpha,
		Gamma:       gamma,
		Temperature: temperature,
		actions:     actionKeys(numActions),
		rand:        erand.NewSource(uint64(time.Now().UnixNano())),
		learning:    true,
	}
}

// Checking interface compatibility
var _ core.Policy = &SoftmaxPolicy{}
var _ core.Resetter = &SoftmaxPolicy{}
var _ core.Learner = &SoftmaxPolicy{}

// Reset clears the QTable
func (s *SoftmaxPolicy) Reset() {
	s.qTable = NewQTable()
	s.rand = erand.NewSource(uint64(time.Now().UnixNano()))
	s.memory.clear()
}

func (s *SoftmaxPolicy) SetLearning(learning bool) {
	s.learning = learning
	s.memory.clear()
}

func (s *SoftmaxPolicy) Record(path string) error {
	return s.qTable.Record(path)
}

// weights is the softmax distribution over the actions of state.
func (s *SoftmaxPolicy) weights(state string) []float64 {
	vals := make([]float64, len(s.actions))
	largestValue := math.Inf(-1)
	for i, a := range s.actions {
		vals[i] = s.qTable.Get(state, a, 0)
		if vals[i] > largestValue {
			largestValue = vals[i]
		}
	}

	temperature := s.Temperature
	if temperature <= 0 {
		temperature = 1
	}
	// Normalizing
	sum := 0.0
	for i := range vals {
		vals[i] = math.Exp((vals[i] - largestValue) / temperature)
		sum += vals[i]
	}
	for i := range vals {
		vals[i] /= sum
	}
	return vals
}

func (s *SoftmaxPolicy) Forward(o core.Observation) int {
	state := stateKey(o)
	if s.learning && s.memory.complete() {
		s.update(state)
	}

	i, ok := sampleuv.NewWeighted(s.weights(state), s.rand).Take()
	if !ok {
		i = 0
	}
	s.memory.act(state, s.actions[i])
	return i
}

func (s *SoftmaxPolicy) Backward(reward float64) {
	s.memory.setReward(reward)
}

func (s *SoftmaxPolicy) update(nextState string) {
	curVal := s.qTable.Get(s.memory.state, s.memory.action, 0)
	_, nextVal := s.qTable.Max(nextState, 0)

	newVal := (1-s.Alpha)*curVal + s.Alpha*(s.memory.reward+s.Gamma*nextVal)
	s.qTable.Set(s.memory.state, s.memory.action, newVal)
}

type SoftmaxPolicyConstructor struct {
	alpha float64
	gamma float64
	temp  float64
}

var _ core.PolicyConstructor = &SoftmaxPolicyConstructor{}

func NewSoftmaxPolicyConstructor(alpha, gamma, temp float64) *SoftmaxPolicyConstructor {
	return &SoftmaxPolicyConstructor{
		alpha: alpha,
		gamma: gamma,
		temp:  temp,
	}
}

func (c *SoftmaxPolicyConstructor) NewPolicy(_, numActions int) (core.Policy, error) {
	if numActions < 1 {
		return nil, fmt.Errorf("%w: no actions", core.ErrPolicyCapability)
	}
	return NewSoftmaxPolicy(numActions, c.alpha, c.gamma, c.temp), nil
}
