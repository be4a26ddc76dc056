package core

import "context"

// Observation is the numeric view of the environment handed to a policy.
type Observation []float64

type Environment interface {
	Reset() (Observation, error)
	Step(int, *StepContext) (*Transition, error)
	// NumStates is the length of every observation.
	NumStates() int
	NumActions() int
}

// Transition is the outcome of one step.
type Transition struct {
	Observation Observation
	Reward      float64

	Info map[string]interface{}
}

type EpisodeContext struct {
	Context       context.Context
	Episode       int
	Horizon       int
	Run           int
	StartTimeStep int
	Learning      bool

	Trace *Trace

	err     error
	timeout bool
	doneCh  chan struct{}
}

func NewEpisodeContext(ctx context.Context) *EpisodeContext {
	return &EpisodeContext{
		Context:  ctx,
		Learning: true,
		Trace:    NewTrace(),
		doneCh:   make(chan struct{}),
	}
}

func (e *EpisodeContext) Error(err error) {
	e.err = err
	e.Trace.SetError(err)
	close(e.doneCh)
}

func (e *EpisodeContext) Timeout() {
	e.timeout = true
	close(e.doneCh)
}

func (e *EpisodeContext) Finish() {
	close(e.doneCh)
}

func (e *EpisodeContext) IsError() bool {
	return e.err != nil
}

func (e *EpisodeContext) Err() error {
	return e.err
}

func (e *EpisodeContext) IsTimeout() bool {
	return e.timeout
}

func (e *EpisodeContext) Done() <-chan struct{} {
	return e.doneCh
}

type StepContext struct {
	Step int
	*EpisodeContext
}

type EnvironmentConstructor interface {
	// NewEnvironment creates a new environment with the given instance number.
	NewEnvironment(int) Environment
}
