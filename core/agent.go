package core

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	ErrPolicyCapability = errors.New("policy does not provide forward and backward")
)

// Policy picks an action for an observation (Forward) and receives the
// reward that followed it (Backward). Calls strictly alternate.
type Policy interface {
	Forward(Observation) int
	Backward(float64)
}

// Resetter is implemented by policies that can drop what they learned.
type Resetter interface {
	Reset()
}

// Learner is implemented by policies that can be switched between
// learning and evaluation.
type Learner interface {
	SetLearning(bool)
}

type PolicyConstructor interface {
	NewPolicy(numStates, numActions int) (Policy, error)
}

// PolicyFuncs builds a policy out of plain functions. Both must be set.
type PolicyFuncs struct {
	ForwardFunc  func(Observation) int
	BackwardFunc func(float64)
}

func (p PolicyFuncs) Forward(o Observation) int { return p.ForwardFunc(o) }

func (p PolicyFuncs) Backward(r float64) { p.BackwardFunc(r) }

// Agent binds one policy to the forward/backward protocol of an environment.
type Agent struct {
	policy Policy
}

// NewAgent checks that p can act as a policy. A policy that lacks either
// call, or a nil pointer of a policy type, is a configuration error of
// this agent only.
func NewAgent(p interface{}) (*Agent, error) {
	switch policy := p.(type) {
	case nil:
		return nil, fmt.Errorf("%w: no policy", ErrPolicyCapability)
	case PolicyFuncs:
		if policy.ForwardFunc == nil {
			return nil, fmt.Errorf("%w: missing forward", ErrPolicyCapability)
		}
		if policy.BackwardFunc == nil {
			return nil, fmt.Errorf("%w: missing backward", ErrPolicyCapability)
		}
		return &Agent{policy: policy}, nil
	case *PolicyFuncs:
		if policy == nil {
			return nil, fmt.Errorf("%w: no policy", ErrPolicyCapability)
		}
		return NewAgent(*policy)
	case Policy:
		if isNilPointer(policy) {
			return nil, fmt.Errorf("%w: nil %T", ErrPolicyCapability, p)
		}
		return &Agent{policy: policy}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrPolicyCapability, p)
	}
}

func (a *Agent) Policy() Policy {
	return a.policy
}

func (a *Agent) Forward(o Observation) int {
	return a.policy.Forward(o)
}

func (a *Agent) Backward(reward float64) {
	a.policy.Backward(reward)
}

func (a *Agent) Reset() {
	if r, ok := a.policy.(Resetter); ok {
		r.Reset()
	}
}

func (a *Agent) SetLearning(learning bool) {
	if l, ok := a.policy.(Learner); ok {
		l.SetLearning(learning)
	}
}

func isNilPointer(p interface{}) bool {
	v := reflect.ValueOf(p)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}
