package brain

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func testOptions() Options {
	o := DefaultOptions()
	o.Seed = 42
	o.ExperienceSize = 200
	o.LearningStepsTotal = 1000
	o.LearningStepsBurnin = 100
	o.Trainer.BatchSize = 8
	return o
}

func TestOptionsValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Options)
	}{
		{"negative temporal window", func(o *Options) { o.TemporalWindow = -1 }},
		{"no experience", func(o *Options) { o.ExperienceSize = 0 }},
		{"gamma", func(o *Options) { o.Gamma = 1.5 }},
		{"burn-in after total", func(o *Options) { o.LearningStepsBurnin = o.LearningStepsTotal }},
		{"epsilon", func(o *Options) { o.EpsilonMin = 2 }},
		{"empty hidden layer", func(o *Options) { o.HiddenLayers = []int{4, 0} }},
		{"batch size", func(o *Options) { o.Trainer.BatchSize = 0 }},
		{"distribution length", func(o *Options) { o.RandomActionDistribution = []float64{0.5, 0.5} }},
		{"distribution sum", func(o *Options) { o.RandomActionDistribution = []float64{0.5, 0.2, 0.1, 0.1, 0} }},
		{"negative distribution", func(o *Options) { o.RandomActionDistribution = []float64{1.2, -0.2, 0, 0, 0} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := testOptions()
			tc.mutate(&o)
			b, err := New(10, 5, o, testLogger())
			assert.Nil(t, b)
			assert.ErrorIs(t, err, ErrInvalidOptions)
		})
	}

	_, err := New(0, 5, testOptions(), testLogger())
	assert.ErrorIs(t, err, ErrInvalidOptions)

	o := testOptions()
	o.RandomActionDistribution = []float64{0.4, 0.1, 0.2, 0.2, 0.1}
	_, err = New(10, 5, o, testLogger())
	assert.NoError(t, err)
}

func TestStartLearnThreshold(t *testing.T) {
	o := DefaultOptions()
	assert.Equal(t, 1000, o.startLearnThreshold())
	o.ExperienceSize = 500
	assert.Equal(t, 50, o.startLearnThreshold())
	o.StartLearnThreshold = 7
	assert.Equal(t, 7, o.startLearnThreshold())
}

func TestColdStartIsUniform(t *testing.T) {
	o := testOptions()
	o.TemporalWindow = 2000
	b, err := New(1, 5, o, testLogger())
	require.NoError(t, err)

	counts := make([]int, 5)
	for i := 0; i < o.TemporalWindow; i++ {
		a := b.Forward([]float64{1})
		require.GreaterOrEqual(t, a, 0)
		require.Less(t, a, 5)
		counts[a]++
	}
	for a, c := range counts {
		assert.InDelta(t, 400, c, 100, "action %d", a)
	}
	assert.Equal(t, 2000, b.ForwardPasses())
	// epsilon is only computed once the network is used
	assert.Equal(t, 1.0, b.Epsilon())
}

func TestColdStartFollowsDistribution(t *testing.T) {
	o := testOptions()
	o.TemporalWindow = 50
	o.RandomActionDistribution = []float64{0, 0, 1, 0, 0}
	b, err := New(3, 5, o, testLogger())
	require.NoError(t, err)
	for i := 0; i < o.TemporalWindow; i++ {
		assert.Equal(t, 2, b.Forward([]float64{0, 1, 0}))
	}
}

func TestEpsilonSchedule(t *testing.T) {
	o := testOptions()
	o.EpsilonMin = 0.05
	o.EpsilonTestTime = 0.02
	b, err := New(4, 5, o, testLogger())
	require.NoError(t, err)

	prev := 1.0
	for age := 0; age <= o.LearningStepsTotal+200; age += 10 {
		b.age = age
		b.updateEpsilon()
		e := b.Epsilon()
		assert.LessOrEqual(t, e, prev, "age %d", age)
		assert.GreaterOrEqual(t, e, o.EpsilonMin)
		assert.LessOrEqual(t, e, 1.0)
		if age <= o.LearningStepsBurnin {
			assert.Equal(t, 1.0, e)
		}
		prev = e
	}
	assert.Equal(t, o.EpsilonMin, prev)

	b.SetLearning(false)
	for _, age := range []int{0, 500, 5000} {
		b.age = age
		b.updateEpsilon()
		assert.Equal(t, o.EpsilonTestTime, b.Epsilon())
	}
}

func TestEvaluationDoesNotLearn(t *testing.T) {
	o := testOptions()
	b, err := New(2, 3, o, testLogger())
	require.NoError(t, err)
	b.SetLearning(false)
	assert.False(t, b.Learning())

	for i := 0; i < 50; i++ {
		b.Forward([]float64{0.5, 0.5})
		b.Backward(1)
	}
	assert.Equal(t, 0, b.Age())
	assert.Equal(t, 0, b.Buffer().Len())
	assert.Equal(t, o.EpsilonTestTime, b.Epsilon())
	avg, ok := b.AverageReward()
	require.True(t, ok)
	assert.Equal(t, 1.0, avg)
}

func TestExperiencesAreStored(t *testing.T) {
	o := testOptions()
	o.TemporalWindow = 2
	o.ExperienceSize = 20
	b, err := New(2, 3, o, testLogger())
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		b.Forward([]float64{float64(i), 0})
		b.Backward(float64(i))
	}
	assert.Equal(t, 10, b.Age())
	// the first experience needs a full window and the following state
	require.Equal(t, 10-o.TemporalWindow-1, b.Buffer().Len())

	e := b.Buffer().At(0)
	width := 2*o.TemporalWindow + 3*o.TemporalWindow + 2
	assert.Len(t, e.State, width)
	assert.Len(t, e.Next, width)
	assert.Equal(t, float64(o.TemporalWindow), e.Reward)
	assert.Equal(t, float64(o.TemporalWindow), e.State[0])
	assert.Equal(t, float64(o.TemporalWindow+1), e.Next[0])

	for i := 0; i < 100; i++ {
		b.Forward([]float64{1, 1})
		b.Backward(0)
	}
	assert.Equal(t, o.ExperienceSize, b.Buffer().Len())
}

func TestForwardPadsState(t *testing.T) {
	o := testOptions()
	b, err := New(4, 5, o, testLogger())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		a := b.Forward([]float64{1})
		assert.GreaterOrEqual(t, a, 0)
		assert.Less(t, a, 5)
		b.Backward(0)
	}
}

func TestForwardKeepsItsOwnCopy(t *testing.T) {
	b, err := New(3, 5, testOptions(), testLogger())
	require.NoError(t, err)

	buf := []float64{1, 2, 3}
	b.Forward(buf)
	b.Backward(0)
	buf[0] = 99

	last := b.stateWindow[len(b.stateWindow)-1]
	assert.Equal(t, []float64{1, 2, 3}, last)
}

func TestBrainLearnsBandit(t *testing.T) {
	o := testOptions()
	o.TemporalWindow = 0
	o.ExperienceSize = 100
	o.StartLearnThreshold = 10
	o.Gamma = 0
	o.LearningStepsTotal = 300
	o.LearningStepsBurnin = 10
	o.EpsilonMin = 0.2
	o.EpsilonTestTime = 0
	o.Trainer = Trainer{LearningRate: 0.05, BatchSize: 8}
	b, err := New(1, 2, o, testLogger())
	require.NoError(t, err)

	state := []float64{1}
	for i := 0; i < 1500; i++ {
		a := b.Forward(state)
		if a == 0 {
			b.Backward(1)
		} else {
			b.Backward(0)
		}
	}
	loss, ok := b.AverageLoss()
	require.True(t, ok)
	assert.Less(t, loss, 0.1)

	values := b.Net().Forward(state)
	assert.InDelta(t, 1, values[0], 0.2)
	assert.InDelta(t, 0, values[1], 0.2)

	b.SetLearning(false)
	for i := 0; i < 20; i++ {
		assert.Equal(t, 0, b.Forward(state))
		b.Backward(1)
	}
}

func TestReset(t *testing.T) {
	o := testOptions()
	b, err := New(2, 3, o, testLogger())
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		b.Forward([]float64{1, 0})
		b.Backward(1)
	}
	b.SetLearning(false)
	b.Reset()
	assert.True(t, b.Learning())
	assert.Equal(t, 0, b.Age())
	assert.Equal(t, 0, b.ForwardPasses())
	assert.Equal(t, 0, b.Buffer().Len())
	_, ok := b.AverageReward()
	assert.False(t, ok)
}
