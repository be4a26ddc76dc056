package brain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	erand "golang.org/x/exp/rand"
)

type sample struct {
	x      []float64
	target float64
}

func linearSamples(r *erand.Rand, n int) []sample {
	out := make([]sample, n)
	for i := range out {
		x := []float64{r.Float64(), r.Float64()}
		out[i] = sample{x: x, target: 0.5 + x[0] - 2*x[1]}
	}
	return out
}

func meanLoss(n *Net, samples []sample, dim int) float64 {
	sum := 0.0
	for _, s := range samples {
		d := n.Forward(s.x)[dim] - s.target
		sum += 0.5 * d * d
	}
	return sum / float64(len(samples))
}

func TestNetShape(t *testing.T) {
	n := NewNet(4, []int{8, 6}, 3, Trainer{LearningRate: 0.01, BatchSize: 1}, erand.NewSource(1))
	out := n.Forward([]float64{1, 2, 3, 4})
	assert.Len(t, out, 3)

	i, v := n.Best([]float64{1, 2, 3, 4})
	for _, o := range out {
		assert.LessOrEqual(t, o, v)
	}
	assert.Equal(t, v, out[i])
}

func TestNetLearnsLinearTarget(t *testing.T) {
	r := erand.New(erand.NewSource(5))
	samples := linearSamples(r, 50)
	n := NewNet(2, nil, 2, Trainer{LearningRate: 0.1, BatchSize: 1}, erand.NewSource(3))

	before := meanLoss(n, samples, 1)
	for epoch := 0; epoch < 300; epoch++ {
		for _, s := range samples {
			n.Train(s.x, 1, s.target)
		}
	}
	after := meanLoss(n, samples, 1)
	assert.Less(t, after, before*0.05)
	assert.Less(t, after, 0.01)
}

func TestNetHiddenLayerReducesLoss(t *testing.T) {
	r := erand.New(erand.NewSource(8))
	samples := linearSamples(r, 40)
	n := NewNet(2, []int{10}, 1, Trainer{LearningRate: 0.02, Momentum: 0.9, BatchSize: 4, L2Decay: 0.001}, erand.NewSource(4))

	before := meanLoss(n, samples, 0)
	for epoch := 0; epoch < 400; epoch++ {
		for _, s := range samples {
			n.Train(s.x, 0, s.target)
		}
	}
	assert.Less(t, meanLoss(n, samples, 0), before)
}

func TestNetUpdatesOncePerBatch(t *testing.T) {
	n := NewNet(1, nil, 1, Trainer{LearningRate: 0.5, BatchSize: 3}, erand.NewSource(1))
	x := []float64{1}
	start := n.Forward(x)[0]

	n.Train(x, 0, start+10)
	n.Train(x, 0, start+10)
	require.Equal(t, start, n.Forward(x)[0])

	n.Train(x, 0, start+10)
	assert.Greater(t, n.Forward(x)[0], start)
}
