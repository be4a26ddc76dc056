package policies

import (
	"github.com/sirupsen/logrus"
	"github.com/zeu5/deep-traffic/brain"
	"github.com/zeu5/deep-traffic/core"
)

// DQNPolicy drives with a brain.Brain.
type DQNPolicy struct {
	brain *brain.Brain
}

var _ core.Policy = &DQNPolicy{}
var _ core.Resetter = &DQNPolicy{}
var _ core.Learner = &DQNPolicy{}

func NewDQNPolicy(b *brain.Brain) *DQNPolicy {
	return &DQNPolicy{brain: b}
}

func (d *DQNPolicy) Brain() *brain.Brain {
	return d.brain
}

func (d *DQNPolicy) Forward(o core.Observation) int {
	return d.brain.Forward(o)
}

func (d *DQNPolicy) Backward(reward float64) {
	d.brain.Backward(reward)
}

func (d *DQNPolicy) Reset() {
	d.brain.Reset()
}

func (d *DQNPolicy) SetLearning(learning bool) {
	d.brain.SetLearning(learning)
}

type DQNPolicyConstructor struct {
	options brain.Options
	logger  *logrus.Entry
}

var _ core.PolicyConstructor = &DQNPolicyConstructor{}

func NewDQNPolicyConstructor(options brain.Options, logger *logrus.Entry) *DQNPolicyConstructor {
	return &DQNPolicyConstructor{
		options: options,
		logger:  logger,
	}
}

func (c *DQNPolicyConstructor) NewPolicy(numStates, numActions int) (core.Policy, error) {
	b, err := brain.New(numStates, numActions, c.options, c.logger)
	if err != nil {
		return nil, err
	}
	return NewDQNPolicy(b), nil
}
