package policies

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/zeu5/deep-traffic/core"
)

// TabularPolicy is epsilon-greedy one step Q-learning over hashed
// observations.
type TabularPolicy struct {
	qTable  *QTable
	alpha   float64
	gamma   float64
	epsilon float64
	actions []string
	rand    *rand.Rand

	learning bool
	memory   stepMemory
}

var _ core.Policy = &TabularPolicy{}
var _ core.Resetter = &TabularPolicy{}
var _ core.Learner = &TabularPolicy{}

func NewTabularPolicy(numActions int, alpha, gamma, epsilon float64) *TabularPolicy {
	return &TabularPolicy{
		qTable:   NewQTable(),
		alpha:    alpha,
		gamma:    gamma,
		epsilon:  epsilon,
		actions:  actionKeys(numActions),
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
		learning: true,
	}
}

func (t *TabularPolicy) Record(path string) error {
	return t.qTable.Record(path)
}

func (t *TabularPolicy) QTable() *QTable {
	return t.qTable
}

func (t *TabularPolicy) Reset() {
	t.qTable = NewQTable()
	t.memory.clear()
}

func (t *TabularPolicy) SetLearning(learning bool) {
	t.learning = learning
	t.memory.clear()
}

func (t *TabularPolicy) Forward(o core.Observation) int {
	state := stateKey(o)
	if t.learning && t.memory.complete() {
		t.update(state)
	}

	var action string
	if t.learning && t.rand.Float64() < t.epsilon {
		action = t.actions[t.rand.Intn(len(t.actions))]
	} else {
		action, _ = t.qTable.MaxAmong(state, t.actions, 0)
	}
	t.memory.act(state, action)
	return actionIndex(action)
}

func (t *TabularPolicy) Backward(reward float64) {
	t.memory.setReward(reward)
}

func (t *TabularPolicy) update(nextState string) {
	_, nextVal := t.qTable.Max(nextState, 0)
	curVal := t.qTable.Get(t.memory.state, t.memory.action, 0)

	newVal := (1-t.alpha)*curVal + t.alpha*(t.memory.reward+t.gamma*nextVal)
	t.qTable.Set(t.memory.state, t.memory.action, newVal)
}

type TabularPolicyConstructor struct {
	alpha   float64
	gamma   float64
	epsilon float64
}

var _ core.PolicyConstructor = &TabularPolicyConstructor{}

func NewTabularPolicyConstructor(alpha, gamma, epsilon float64) *TabularPolicyConstructor {
	return &TabularPolicyConstructor{
		alpha:   alpha,
		gamma:   gamma,
		epsilon: epsilon,
	}
}

func (c *TabularPolicyConstructor) NewPolicy(_, numActions int) (core.Policy, error) {
	if numActions < 1 {
		return nil, fmt.Errorf("%w: no actions", core.ErrPolicyCapability)
	}
	return NewTabularPolicy(numActions, c.alpha, c.gamma, c.epsilon), nil
}
