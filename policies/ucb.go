package policies

import (
	"fmt"
	"math"
	"time"

	erand "golang.org/x/exp/rand"

	"github.com/zeu5/deep-traffic/core"
)

type UCBParams struct {
	Horizon  int
	Episodes int
	Constant float64
	Epsilon  float64
	Gamma    float64
}

// UCBPolicy is optimistic Q-learning: values start at the horizon and
// every update adds a bonus that shrinks with the visits of the pair.
type UCBPolicy struct {
	qTable  *QTable
	visits  *QTable
	rand    *erand.Rand
	params  UCBParams
	actions []string

	eta      float64
	learning bool
	memory   stepMemory
}

func NewUCBPolicy(numStates, numActions int, params UCBParams) *UCBPolicy {
	eta := math.Log(
		float64(params.Horizon) * float64(numActions) * float64(params.Episodes) * float64(numStates),
	)

	return &UCBPolicy{
		qTable:   NewQTable(),
		visits:   NewQTable(),
		rand:     erand.New(erand.NewSource(uint64(time.Now().UnixNano()))),
		params:   params,
		actions:  actionKeys(numActions),
		eta:      math.Max(eta, 0),
		learning: true,
	}
}

var _ core.Policy = &UCBPolicy{}
var _ core.Resetter = &UCBPolicy{}
var _ core.Learner = &UCBPolicy{}

func (b *UCBPolicy) Forward(o core.Observation) int {
	state := stateKey(o)
	if b.learning && b.memory.complete() {
		b.update(state)
	}

	var action string
	if b.learning && b.rand.Float64() < b.params.Epsilon {
		action = b.actions[b.rand.Intn(len(b.actions))]
	} else {
		action, _ = b.qTable.MaxAmong(state, b.actions, float64(b.params.Horizon))
	}
	b.memory.act(state, action)
	return actionIndex(action)
}

func (b *UCBPolicy) Backward(reward float64) {
	b.memory.setReward(reward)
}

func (b *UCBPolicy) update(nextState string) {
	state, action := b.memory.state, b.memory.action
	horizon := float64(b.params.Horizon)
	t := b.visits.Get(state, action, 0) + 1
	b.visits.Set(state, action, t)

	_, nextStateVal := b.qTable.Max(nextState, horizon)
	if nextStateVal > horizon {
		nextStateVal = horizon
	}

	bonus := b.params.Constant * (math.Sqrt((math.Pow(horizon, 3) + b.eta) / t))
	alphaT := (horizon + 1) / (horizon + t)
	curVal := b.qTable.Get(state, action, horizon)

	newVal := (1-alphaT)*curVal + alphaT*(b.memory.reward+b.params.Gamma*nextStateVal+2*bonus)
	b.qTable.Set(state, action, newVal)
}

func (b *UCBPolicy) Reset() {
	b.qTable = NewQTable()
	b.visits = NewQTable()
	b.rand = erand.New(erand.NewSource(uint64(time.Now().UnixNano())))
	b.memory.clear()
}

func (b *UCBPolicy) SetLearning(learning bool) {
	b.learning = learning
	b.memory.clear()
}

func (b *UCBPolicy) Record(path string) error {
	return b.qTable.Record(path)
}

type UCBPolicyConstructor struct {
	params UCBParams
}

var _ core.PolicyConstructor = &UCBPolicyConstructor{}

func NewUCBPolicyConstructor(params UCBParams) *UCBPolicyConstructor {
	return &UCBPolicyConstructor{
		params: params,
	}
}

func (c *UCBPolicyConstructor) NewPolicy(numStates, numActions int) (core.Policy, error) {
	if numActions < 1 || c.params.Horizon < 1 {
		return nil, fmt.Errorf("%w: ucb needs actions and a positive horizon", core.ErrPolicyCapability)
	}
	return NewUCBPolicy(numStates, numActions, c.params), nil
}
