package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errStep = errors.New("step failed")

// lineEnv walks along a line: the observation is the number of steps taken.
type lineEnv struct {
	pos    int
	resets int
	delay  time.Duration
	fail   bool
}

func (e *lineEnv) Reset() (Observation, error) {
	e.resets++
	e.pos = 0
	return Observation{0}, nil
}

func (e *lineEnv) Step(action int, _ *StepContext) (*Transition, error) {
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	if e.fail {
		return nil, errStep
	}
	e.pos++
	return &Transition{
		Observation: Observation{float64(e.pos)},
		Reward:      float64(action),
		Info:        map[string]interface{}{"pos": e.pos},
	}, nil
}

func (e *lineEnv) NumStates() int { return 1 }

func (e *lineEnv) NumActions() int { return 2 }

// recordingPolicy checks that forward and backward alternate.
type recordingPolicy struct {
	mtx        sync.Mutex
	pending    bool
	violations int
	learning   []bool
	resets     int
	rewards    float64
}

func (p *recordingPolicy) Forward(_ Observation) int {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if p.pending {
		p.violations++
	}
	p.pending = true
	return 1
}

func (p *recordingPolicy) Backward(r float64) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if !p.pending {
		p.violations++
	}
	p.pending = false
	p.rewards += r
}

func (p *recordingPolicy) SetLearning(l bool) {
	p.learning = append(p.learning, l)
}

func (p *recordingPolicy) Reset() {
	p.resets++
}

type episodeAnalyzer struct {
	episodes []int
	learning []bool
	lengths  []int
}

func (a *episodeAnalyzer) Analyze(ctx *EpisodeContext, trace *Trace) {
	a.episodes = append(a.episodes, ctx.Episode)
	a.learning = append(a.learning, ctx.Learning)
	a.lengths = append(a.lengths, trace.Len())
}

func (a *episodeAnalyzer) DataSet() DataSet { return len(a.episodes) }

func (a *episodeAnalyzer) Reset() {
	a.episodes = nil
	a.learning = nil
	a.lengths = nil
}

type capturingComparator struct {
	mtx      sync.Mutex
	names    []string
	datasets []DataSet
}

func (c *capturingComparator) Compare(names []string, datasets []DataSet) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.names = append(c.names, names...)
	c.datasets = append(c.datasets, datasets...)
}

func testRunConfig() *RunConfig {
	return &RunConfig{
		Episodes:                     5,
		EvalEpisodes:                 2,
		Horizon:                      10,
		EpisodeTimeout:               5 * time.Second,
		ThresholdConsecutiveErrors:   2,
		ThresholdConsecutiveTimeouts: 2,
	}
}

func TestNewAgentCapabilities(t *testing.T) {
	_, err := NewAgent(nil)
	assert.ErrorIs(t, err, ErrPolicyCapability)

	_, err = NewAgent(PolicyFuncs{ForwardFunc: func(Observation) int { return 0 }})
	assert.ErrorIs(t, err, ErrPolicyCapability)

	_, err = NewAgent(&PolicyFuncs{BackwardFunc: func(float64) {}})
	assert.ErrorIs(t, err, ErrPolicyCapability)

	_, err = NewAgent(struct{ Name string }{"no calls"})
	assert.ErrorIs(t, err, ErrPolicyCapability)

	var nilFuncs *PolicyFuncs
	_, err = NewAgent(nilFuncs)
	assert.ErrorIs(t, err, ErrPolicyCapability)

	var nilPolicy *recordingPolicy
	_, err = NewAgent(nilPolicy)
	assert.ErrorIs(t, err, ErrPolicyCapability)

	backward := 0.0
	a, err := NewAgent(&PolicyFuncs{
		ForwardFunc:  func(Observation) int { return 3 },
		BackwardFunc: func(r float64) { backward += r },
	})
	require.NoError(t, err)
	assert.Equal(t, 3, a.Forward(Observation{1}))
	a.Backward(2)
	assert.Equal(t, 2.0, backward)
	// optional capabilities are skipped quietly
	a.Reset()
	a.SetLearning(false)

	p := &recordingPolicy{}
	a, err = NewAgent(p)
	require.NoError(t, err)
	assert.Same(t, p, a.Policy())
	a.SetLearning(false)
	a.Reset()
	assert.Equal(t, []bool{false}, p.learning)
	assert.Equal(t, 1, p.resets)
}

func TestComparisonRun(t *testing.T) {
	env := &lineEnv{}
	policy := &recordingPolicy{}
	agent, err := NewAgent(policy)
	require.NoError(t, err)

	c := NewComparison()
	c.AddExperiment(&Experiment{Name: "line", Environment: env, Agent: agent})
	analyzer := &episodeAnalyzer{}
	comparator := &capturingComparator{}
	c.AddAnalysis("episodes", analyzer, comparator)

	results := c.Run(context.Background(), 1, testRunConfig())
	require.Contains(t, results, "line")
	res := results["line"]
	require.NoError(t, res.Error)
	assert.Equal(t, 5, res.CompletedEpisodes)
	assert.Equal(t, 5, res.TotalEpisodes)
	assert.Equal(t, 50, res.TotalTimeSteps)
	assert.Equal(t, 5, res.Datasets["episodes"])

	assert.Equal(t, 0, policy.violations)
	assert.Equal(t, 1, policy.resets)
	assert.Equal(t, 50.0, policy.rewards)
	assert.Equal(t, []bool{true, true, true, false, false}, policy.learning)
	assert.Equal(t, []bool{true, true, true, false, false}, analyzer.learning)
	assert.Equal(t, []int{10, 10, 10, 10, 10}, analyzer.lengths)
	assert.Equal(t, 5, env.resets)

	assert.Equal(t, []string{"line"}, comparator.names)
	assert.Equal(t, []DataSet{5}, comparator.datasets)
}

func TestTraceRecordsSteps(t *testing.T) {
	env := &lineEnv{}
	agent, err := NewAgent(&recordingPolicy{})
	require.NoError(t, err)
	e := &Experiment{Name: "line", Environment: env, Agent: agent}

	eCtx := NewEpisodeContext(context.Background())
	e.runEpisode(eCtx, 3)
	<-eCtx.Done()
	require.False(t, eCtx.IsError())
	require.Equal(t, 3, eCtx.Trace.Len())

	step := eCtx.Trace.Step(1)
	assert.Equal(t, Observation{1}, step.Observation)
	assert.Equal(t, Observation{2}, step.Next)
	assert.Equal(t, 1, step.Action)
	assert.Equal(t, 2, step.Misc["pos"])
	assert.Equal(t, 3.0, eCtx.Trace.TotalReward())
	assert.Same(t, eCtx.Trace.Step(2), eCtx.Trace.Last())
}

func TestTooManyErrors(t *testing.T) {
	agent, err := NewAgent(&recordingPolicy{})
	require.NoError(t, err)
	c := NewComparison()
	c.AddExperiment(&Experiment{Name: "broken", Environment: &lineEnv{fail: true}, Agent: agent})
	analyzer := &episodeAnalyzer{}
	comparator := &capturingComparator{}
	c.AddAnalysis("episodes", analyzer, comparator)

	res := c.Run(context.Background(), 1, testRunConfig())["broken"]
	assert.ErrorIs(t, res.Error, ErrTooManyErrors)
	assert.Equal(t, 2, res.ErrorEpisodes)
	assert.Equal(t, 0, res.CompletedEpisodes)
	// a failed experiment hands no dataset to the comparators
	assert.Equal(t, []DataSet{nil}, comparator.datasets)
}

func TestTooManyTimeouts(t *testing.T) {
	agent, err := NewAgent(&recordingPolicy{})
	require.NoError(t, err)
	exp := &Experiment{Name: "slow", Environment: &lineEnv{delay: 20 * time.Millisecond}, Agent: agent}

	config := testRunConfig()
	config.Horizon = 100
	config.EpisodeTimeout = 30 * time.Millisecond
	res := exp.run(&experimentRunContext{
		ctx:       context.Background(),
		analyzers: map[string]Analyzer{},
		RunConfig: config,
	})
	assert.ErrorIs(t, res.Error, ErrTooManyTimeouts)
	assert.Equal(t, 2, res.TimeoutEpisodes)
	assert.Equal(t, 0, res.ErrorEpisodes)
}

func TestCancelledRun(t *testing.T) {
	agent, err := NewAgent(&recordingPolicy{})
	require.NoError(t, err)
	exp := &Experiment{Name: "line", Environment: &lineEnv{}, Agent: agent}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := exp.run(&experimentRunContext{
		ctx:       ctx,
		analyzers: map[string]Analyzer{},
		RunConfig: testRunConfig(),
	})
	assert.Error(t, res.Error)
	assert.Equal(t, 0, res.TotalEpisodes)
}

type lineEnvConstructor struct{}

func (lineEnvConstructor) NewEnvironment(int) Environment { return &lineEnv{} }

type policyConstructorFunc func(int, int) (Policy, error)

func (f policyConstructorFunc) NewPolicy(numStates, numActions int) (Policy, error) {
	return f(numStates, numActions)
}

type countingAnalyzerConstructor struct{}

func (countingAnalyzerConstructor) NewAnalyzer(string, int) Analyzer { return &episodeAnalyzer{} }

type capturingComparatorConstructor struct {
	comparator *capturingComparator
}

func (c capturingComparatorConstructor) NewComparator(int) Comparator { return c.comparator }

func TestParallelComparisonRun(t *testing.T) {
	comparator := &capturingComparator{}
	c := NewParallelComparison()
	for _, name := range []string{"a", "b", "c"} {
		c.AddExperiment(&ParallelExperiment{
			Name:        name,
			Environment: lineEnvConstructor{},
			Policy: policyConstructorFunc(func(numStates, numActions int) (Policy, error) {
				if numStates != 1 || numActions != 2 {
					return nil, errors.New("unexpected dimensions")
				}
				return &recordingPolicy{}, nil
			}),
		})
	}
	c.AddExperiment(&ParallelExperiment{
		Name:        "misconfigured",
		Environment: lineEnvConstructor{},
		Policy: policyConstructorFunc(func(int, int) (Policy, error) {
			return nil, errors.New("no policy")
		}),
	})
	c.AddAnalysis("episodes", countingAnalyzerConstructor{}, capturingComparatorConstructor{comparator})

	results := c.Run(context.Background(), 1, testRunConfig(), 2)
	require.Len(t, results, 4)
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, results[name].Error, name)
		assert.Equal(t, 5, results[name].CompletedEpisodes)
		assert.Equal(t, 5, results[name].Datasets["episodes"])
	}
	assert.True(t, results["misconfigured"].IsError())

	assert.ElementsMatch(t, []string{"a", "b", "c", "misconfigured"}, comparator.names)
	assert.ElementsMatch(t, []DataSet{5, 5, 5, nil}, comparator.datasets)
}
