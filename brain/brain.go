package brain

import (
	"time"

	"github.com/sirupsen/logrus"
	erand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// Brain is a DQN learner: epsilon-greedy over a value network whose input
// is the current state extended with the last TemporalWindow states and
// actions, trained by TD targets sampled from a replay buffer.
type Brain struct {
	options    Options
	numStates  int
	numActions int
	netInputs  int
	threshold  int

	net    *Net
	buffer *ReplayBuffer
	src    erand.Source
	rand   *erand.Rand
	logger *logrus.Entry

	windowSize   int
	stateWindow  [][]float64
	actionWindow []int
	rewardWindow []float64
	netWindow    [][]float64

	rewardAverage *Window
	lossAverage   *Window

	forwardPasses int
	age           int
	epsilon       float64
	learning      bool
	lastAction    int
}

// New builds a brain for the given state and action counts.
func New(numStates, numActions int, options Options, logger *logrus.Entry) (*Brain, error) {
	if err := options.validate(numStates, numActions); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	b := &Brain{
		options:    options,
		numStates:  numStates,
		numActions: numActions,
		netInputs:  numStates*options.TemporalWindow + numActions*options.TemporalWindow + numStates,
		threshold:  options.startLearnThreshold(),
		logger:     logger,
		windowSize: max(options.TemporalWindow, 2),
	}
	b.Reset()
	return b, nil
}

// Reset drops everything learned and starts from fresh weights.
func (b *Brain) Reset() {
	seed := b.options.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	b.src = erand.NewSource(seed)
	b.rand = erand.New(b.src)
	b.net = NewNet(b.netInputs, b.options.HiddenLayers, b.numActions, b.options.Trainer, b.src)
	b.buffer = NewReplayBuffer(b.options.ExperienceSize, b.src)

	b.stateWindow = make([][]float64, b.windowSize)
	b.actionWindow = make([]int, b.windowSize)
	b.rewardWindow = make([]float64, b.windowSize)
	b.netWindow = make([][]float64, b.windowSize)
	for i := 0; i < b.windowSize; i++ {
		b.stateWindow[i] = make([]float64, b.numStates)
	}

	b.rewardAverage = NewWindow(1000, 10)
	b.lossAverage = NewWindow(1000, 10)
	b.forwardPasses = 0
	b.age = 0
	b.epsilon = 1
	b.learning = true
}

func (b *Brain) randomAction() int {
	if len(b.options.RandomActionDistribution) == 0 {
		return b.rand.Intn(b.numActions)
	}
	i, ok := sampleuv.NewWeighted(b.options.RandomActionDistribution, b.src).Take()
	if !ok {
		return b.rand.Intn(b.numActions)
	}
	return i
}

// netInput extends state with the last TemporalWindow states and the
// one-hot actions taken in them, scaled by the number of states.
func (b *Brain) netInput(state []float64) []float64 {
	w := make([]float64, 0, b.netInputs)
	w = append(w, state...)
	n := b.windowSize
	for k := 0; k < b.options.TemporalWindow; k++ {
		w = append(w, b.stateWindow[n-1-k]...)
		oneHot := make([]float64, b.numActions)
		oneHot[b.actionWindow[n-1-k]] = float64(b.numStates)
		w = append(w, oneHot...)
	}
	return w
}

func (b *Brain) updateEpsilon() {
	if !b.learning {
		b.epsilon = b.options.EpsilonTestTime
		return
	}
	burnin := float64(b.options.LearningStepsBurnin)
	total := float64(b.options.LearningStepsTotal)
	e := 1 - (float64(b.age)-burnin)/(total-burnin)
	b.epsilon = min(1, max(b.options.EpsilonMin, e))
}

// Forward returns the action for state. Until the temporal window is
// filled the action is random.
func (b *Brain) Forward(state []float64) int {
	b.forwardPasses++
	state = b.fit(state)

	var input []float64
	var action int
	if b.forwardPasses > b.options.TemporalWindow {
		input = b.netInput(state)
		b.updateEpsilon()
		if b.rand.Float64() < b.epsilon {
			action = b.randomAction()
		} else {
			action, _ = b.net.Best(input)
		}
	} else {
		action = b.randomAction()
	}

	b.netWindow = append(b.netWindow[1:], input)
	b.stateWindow = append(b.stateWindow[1:], state)
	b.actionWindow = append(b.actionWindow[1:], action)
	b.lastAction = action
	return action
}

// fit copies state into a slice of the configured width, padding or
// truncating it. The windows keep the copy, never the caller's buffer.
func (b *Brain) fit(state []float64) []float64 {
	out := make([]float64, b.numStates)
	copy(out, state)
	return out
}

// Backward records the reward of the last action and, while learning,
// stores an experience and trains on a minibatch.
func (b *Brain) Backward(reward float64) {
	b.rewardAverage.Add(reward)
	b.rewardWindow = append(b.rewardWindow[1:], reward)
	if !b.learning {
		return
	}
	b.age++

	n := b.windowSize
	if b.forwardPasses > b.options.TemporalWindow+1 {
		b.buffer.Add(Experience{
			State:  b.netWindow[n-2],
			Action: b.actionWindow[n-2],
			Reward: b.rewardWindow[n-2],
			Next:   b.netWindow[n-1],
		})
	}

	if b.buffer.Len() <= b.threshold {
		return
	}
	batch := b.options.Trainer.BatchSize
	cost := 0.0
	for _, e := range b.buffer.Sample(batch) {
		_, best := b.net.Best(e.Next)
		target := e.Reward + b.options.Gamma*best
		cost += b.net.Train(e.State, e.Action, target)
	}
	cost /= float64(batch)
	b.lossAverage.Add(cost)
	if b.age%1000 == 0 {
		entry := b.logger.WithFields(logrus.Fields{
			"age":     b.age,
			"epsilon": b.epsilon,
			"buffer":  b.buffer.Len(),
		})
		if avg, ok := b.lossAverage.Average(); ok {
			entry = entry.WithField("loss", avg)
		}
		entry.Debug("brain training")
	}
}

func (b *Brain) SetLearning(learning bool) {
	b.learning = learning
}

func (b *Brain) Learning() bool { return b.learning }

func (b *Brain) Epsilon() float64 { return b.epsilon }

func (b *Brain) Age() int { return b.age }

func (b *Brain) ForwardPasses() int { return b.forwardPasses }

func (b *Brain) LastAction() int { return b.lastAction }

func (b *Brain) AverageReward() (float64, bool) { return b.rewardAverage.Average() }

func (b *Brain) AverageLoss() (float64, bool) { return b.lossAverage.Average() }

func (b *Brain) Buffer() *ReplayBuffer { return b.buffer }

func (b *Brain) Net() *Net { return b.net }

func (b *Brain) Options() Options { return b.options }
