package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/gosuri/uilive"
)

var (
	ErrTooManyTimeouts = errors.New("too many timeouts")
	ErrTooManyErrors   = errors.New("too many errors")
)

type experimentRunContext struct {
	run       int
	ctx       context.Context
	analyzers map[string]Analyzer

	writer io.Writer

	*RunConfig
}

type ExperimentResult struct {
	CompletedEpisodes int
	TotalEpisodes     int
	ErrorEpisodes     int
	TimeoutEpisodes   int
	TotalTimeSteps    int

	Error    error
	Datasets map[string]DataSet
}

func (r *ExperimentResult) IsError() bool {
	return r.Error != nil
}

// runEpisode drives one episode. Ticks are strictly sequential: forward,
// step, backward, then the next tick.
func (e *Experiment) runEpisode(eCtx *EpisodeContext, horizon int) {
	obs, err := e.Environment.Reset()
	if err != nil {
		eCtx.Error(err)
		return
	}
	for step := 0; step < horizon; step++ {
		select {
		case <-eCtx.Context.Done():
			eCtx.Error(eCtx.Context.Err())
			return
		default:
		}

		sCtx := &StepContext{Step: step, EpisodeContext: eCtx}
		action := e.Agent.Forward(obs)
		transition, err := e.Environment.Step(action, sCtx)
		if err != nil {
			eCtx.Error(err)
			return
		}
		e.Agent.Backward(transition.Reward)
		eCtx.Trace.AddStep(&Step{
			Observation: obs,
			Action:      action,
			Reward:      transition.Reward,
			Next:        transition.Observation,
			Misc:        transition.Info,
		})
		obs = transition.Observation
	}
	eCtx.Finish()
}

func (e *Experiment) run(ctx *experimentRunContext) *ExperimentResult {
	result := &ExperimentResult{
		Datasets: make(map[string]DataSet),
	}
	if ctx.writer == nil {
		ctx.writer = io.Discard
	}
	e.Agent.Reset()

	consecutiveErrors := 0
	consecutiveTimeouts := 0
EpisodeLoop:
	for episode := 0; episode < ctx.Episodes; episode++ {
		select {
		case <-ctx.ctx.Done():
			result.Error = errors.New("context cancelled")
			break EpisodeLoop
		default:
		}

		learning := episode < ctx.Episodes-ctx.EvalEpisodes
		fmt.Fprintf(
			ctx.writer,
			"Experiment: %s, Run %d, Episode %d/%d, Timesteps: %d, Learning: %v, Error: %d, Timedout: %d\n",
			e.Name, ctx.run, episode, ctx.Episodes, result.TotalTimeSteps, learning, result.ErrorEpisodes, result.TimeoutEpisodes,
		)
		e.Agent.SetLearning(learning)

		timeoutCtx, timeoutCancel := context.WithTimeout(ctx.ctx, ctx.EpisodeTimeout)
		eCtx := NewEpisodeContext(timeoutCtx)
		eCtx.Run = ctx.run
		eCtx.Episode = episode
		eCtx.Horizon = ctx.Horizon
		eCtx.StartTimeStep = result.TotalTimeSteps
		eCtx.Learning = learning

		go e.runEpisode(eCtx, ctx.Horizon)

		errorred := false
		timedout := false
		select {
		case <-eCtx.Done():
			errorred = eCtx.IsError()
			// the episode noticed its deadline before we did
			if errors.Is(eCtx.Err(), context.DeadlineExceeded) {
				errorred, timedout = false, true
			}
		case <-timeoutCtx.Done():
			timedout = true
		}
		timeoutCancel()
		if timedout {
			// the episode stops at its next tick boundary
			<-eCtx.Done()
		}

		if errorred {
			result.ErrorEpisodes++
			if consecutiveErrors++; consecutiveErrors >= ctx.ThresholdConsecutiveErrors {
				result.Error = ErrTooManyErrors
				break EpisodeLoop
			}
		} else {
			consecutiveErrors = 0
		}
		if timedout {
			result.TimeoutEpisodes++
			if consecutiveTimeouts++; consecutiveTimeouts >= ctx.ThresholdConsecutiveTimeouts {
				result.Error = ErrTooManyTimeouts
				break EpisodeLoop
			}
		} else {
			consecutiveTimeouts = 0
		}

		if !errorred && !timedout {
			result.TotalTimeSteps += eCtx.Trace.Len()
			result.CompletedEpisodes++
		}
		result.TotalEpisodes++

		for _, a := range ctx.analyzers {
			a.Analyze(eCtx, eCtx.Trace)
		}
	}
	if result.Error != nil {
		fmt.Fprintf(ctx.writer, "Experiment: %s, Run %d, Error: %v\n", e.Name, ctx.run, result.Error)
	}

	for name, a := range ctx.analyzers {
		result.Datasets[name] = a.DataSet()
	}
	return result
}

// Run runs every experiment one after the other and returns the results
// of the last run keyed by experiment name.
func (c *Comparison) Run(ctx context.Context, runs int, rConfig *RunConfig) map[string]*ExperimentResult {
	results := make(map[string]*ExperimentResult)
	for run := 0; run < runs; run++ {
		select {
		case <-ctx.Done():
			return results
		default:
		}

		results = make(map[string]*ExperimentResult)

		// Run experiments
		for _, e := range c.Experiments {
			select {
			case <-ctx.Done():
				return results
			default:
			}
			eCtx := &experimentRunContext{
				run:       run,
				ctx:       ctx,
				analyzers: make(map[string]Analyzer),
				writer:    io.Discard,
				RunConfig: rConfig,
			}

			for name, a := range c.Analyzers {
				a.Reset()
				eCtx.analyzers[name] = a
			}

			results[e.Name] = e.run(eCtx)
		}

		compare(keys(c.Comparators), keys(c.Analyzers), results, func(name string) Comparator {
			return c.Comparators[name]
		})
	}
	return results
}

func keys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	return names
}

// compare gathers the datasets of every experiment per analyzer and hands
// them to the matching comparator.
func compare(comparatorNames []string, analyzerNames []string, results map[string]*ExperimentResult, get func(string) Comparator) {
	datasets := make(map[string][]DataSet)
	experimentNames := make([]string, 0)
	for name, result := range results {
		experimentNames = append(experimentNames, name)
		for _, name := range analyzerNames {
			if result.IsError() {
				datasets[name] = append(datasets[name], nil)
			} else {
				datasets[name] = append(datasets[name], result.Datasets[name])
			}
		}
	}
	for _, name := range comparatorNames {
		get(name).Compare(experimentNames, datasets[name])
	}
}

// parallelWorker is a worker that runs experiments
type parallelWorker struct {
	id int
}

// parallelWork is a struct that contains all the information needed to run an experiment
type parallelWork struct {
	experiment *ParallelExperiment
	comp       *ParallelComparison
	runNumber  int
	writer     io.Writer
	rConfig    *RunConfig
	wg         *sync.WaitGroup
}

// parallelResult is a struct that contains the result of running an experiment
type parallelResult struct {
	experimentName string
	run            int
	result         *ExperimentResult
}

// Worker main loop that consumes work from a channel
func (w *parallelWorker) run(ctx context.Context, workCh <-chan *parallelWork, resultsCh chan<- *parallelResult) {
	for {
		select {
		case <-ctx.Done():
			return
		case work, more := <-workCh:
			if !more {
				return
			}
			result := w.runWork(ctx, work)
			resultsCh <- result
			work.wg.Done()
		}
	}
}

// Run an experiment on its own environment and agent, nothing is shared
// with the other workers
func (w *parallelWorker) runWork(ctx context.Context, work *parallelWork) *parallelResult {
	eCtx := &experimentRunContext{
		run:       work.runNumber,
		ctx:       ctx,
		analyzers: make(map[string]Analyzer),
		writer:    work.writer,
		RunConfig: work.rConfig,
	}

	for name, aC := range work.comp.Analyzers {
		eCtx.analyzers[name] = aC.NewAnalyzer(work.experiment.Name, w.id)
	}

	env := work.experiment.Environment.NewEnvironment(w.id)
	policy, err := work.experiment.Policy.NewPolicy(env.NumStates(), env.NumActions())
	if err == nil {
		var agent *Agent
		agent, err = NewAgent(policy)
		if err == nil {
			exp := &Experiment{
				Name:        work.experiment.Name,
				Environment: env,
				Agent:       agent,
			}
			return &parallelResult{
				experimentName: work.experiment.Name,
				run:            work.runNumber,
				result:         exp.run(eCtx),
			}
		}
	}
	fmt.Fprintf(work.writer, "Experiment: %s, Run %d, Error: %v\n", work.experiment.Name, work.runNumber, err)
	return &parallelResult{
		experimentName: work.experiment.Name,
		run:            work.runNumber,
		result:         &ExperimentResult{Error: err, Datasets: make(map[string]DataSet)},
	}
}

// Run runs all experiments of a run concurrently on parallelism workers,
// then hands the datasets to the comparators.
func (c *ParallelComparison) Run(ctx context.Context, runs int, rConfig *RunConfig, parallelism int) map[string]*ExperimentResult {
	results := make(map[string]*ExperimentResult)
	for run := 0; run < runs; run++ {
		select {
		case <-ctx.Done():
			return results
		default:
		}
		// Create workers and channels
		wg := new(sync.WaitGroup)
		writer := uilive.New()
		writer.Start()
		fmt.Fprintf(writer, "Run %d\n", run)

		workCh := make(chan *parallelWork, len(c.Experiments))
		resultsCh := make(chan *parallelResult, len(c.Experiments))

		// Start workers
		workers := make([]*parallelWorker, parallelism)
		for i := 0; i < parallelism; i++ {
			workers[i] = &parallelWorker{id: i}
			go workers[i].run(ctx, workCh, resultsCh)
		}

		// Run experiments by sending work to workers
		for _, e := range c.Experiments {
			wg.Add(1)
			workCh <- &parallelWork{
				experiment: e,
				comp:       c,
				runNumber:  run,
				rConfig:    rConfig,
				wg:         wg,
				writer:     writer.Newline(),
			}
		}
		close(workCh)

		// Wait for all work to finish
		waitCh := make(chan struct{})
		go func() {
			wg.Wait()
			close(waitCh)
		}()
		select {
		case <-waitCh:
		case <-ctx.Done():
			writer.Stop()
			return results
		}
		close(resultsCh)
		writer.Stop()

		results = make(map[string]*ExperimentResult)
		for result := range resultsCh {
			results[result.experimentName] = result.result
		}

		compare(keys(c.Comparators), keys(c.Analyzers), results, func(name string) Comparator {
			return c.Comparators[name].NewComparator(run)
		})
	}
	return results
}
