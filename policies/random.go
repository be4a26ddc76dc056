package policies

import (
	"math/rand"
	"time"

	"github.com/zeu5/deep-traffic/core"
)

// RandomPolicy picks every action uniformly at random and learns nothing.
type RandomPolicy struct {
	numActions int
	rand       *rand.Rand
}

var _ core.Policy = &RandomPolicy{}

func NewRandomPolicy(numActions int) *RandomPolicy {
	return &RandomPolicy{
		numActions: numActions,
		rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *RandomPolicy) Forward(_ core.Observation) int {
	return r.rand.Intn(r.numActions)
}

func (r *RandomPolicy) Backward(_ float64) {}

type RandomPolicyConstructor struct{}

var _ core.PolicyConstructor = &RandomPolicyConstructor{}

func (r *RandomPolicyConstructor) NewPolicy(_, numActions int) (core.Policy, error) {
	if numActions < 1 {
		return nil, core.ErrPolicyCapability
	}
	return NewRandomPolicy(numActions), nil
}
