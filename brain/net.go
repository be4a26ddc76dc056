package brain

import (
	"math"

	erand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

type layer struct {
	weights *mat.Dense // out x in
	bias    *mat.Dense // out x 1
	relu    bool

	gradWeights *mat.Dense
	gradBias    *mat.Dense
	// momentum terms
	sumWeights *mat.Dense
	sumBias    *mat.Dense

	// last forward pass
	input  *mat.Dense
	output *mat.Dense
}

func newLayer(in, out int, relu bool, r *erand.Rand) *layer {
	scale := math.Sqrt(1.0 / float64(in))
	w := make([]float64, in*out)
	for i := range w {
		w[i] = r.NormFloat64() * scale
	}
	bias := 0.0
	if relu {
		bias = 0.1
	}
	b := make([]float64, out)
	for i := range b {
		b[i] = bias
	}
	return &layer{
		weights:     mat.NewDense(out, in, w),
		bias:        mat.NewDense(out, 1, b),
		relu:        relu,
		gradWeights: mat.NewDense(out, in, nil),
		gradBias:    mat.NewDense(out, 1, nil),
		sumWeights:  mat.NewDense(out, in, nil),
		sumBias:     mat.NewDense(out, 1, nil),
	}
}

func (l *layer) forward(x *mat.Dense) *mat.Dense {
	out, _ := l.weights.Dims()
	z := mat.NewDense(out, 1, nil)
	z.Mul(l.weights, x)
	z.Add(z, l.bias)
	if l.relu {
		z.Apply(func(_, _ int, v float64) float64 {
			return math.Max(v, 0)
		}, z)
	}
	l.input = x
	l.output = z
	return z
}

// backward accumulates the gradients for delta (dLoss/dOutput, before
// the activation) and returns dLoss/dInput.
func (l *layer) backward(delta *mat.Dense) *mat.Dense {
	out, in := l.weights.Dims()
	outer := mat.NewDense(out, in, nil)
	outer.Mul(delta, l.input.T())
	l.gradWeights.Add(l.gradWeights, outer)
	l.gradBias.Add(l.gradBias, delta)

	prev := mat.NewDense(in, 1, nil)
	prev.Mul(l.weights.T(), delta)
	return prev
}

// Trainer holds the SGD hyperparameters.
type Trainer struct {
	LearningRate float64 `json:"learningRate"`
	Momentum     float64 `json:"momentum"`
	BatchSize    int     `json:"batchSize"`
	L2Decay      float64 `json:"l2Decay"`
}

// Net is a fully connected regression network: ReLU hidden layers and a
// linear output with one value per action.
type Net struct {
	layers  []*layer
	trainer Trainer
	calls   int
}

func NewNet(inputs int, hidden []int, outputs int, trainer Trainer, src erand.Source) *Net {
	r := erand.New(src)
	n := &Net{trainer: trainer}
	in := inputs
	for _, h := range hidden {
		n.layers = append(n.layers, newLayer(in, h, true, r))
		in = h
	}
	n.layers = append(n.layers, newLayer(in, outputs, false, r))
	return n
}

// Forward returns the value of every output for input x.
func (n *Net) Forward(x []float64) []float64 {
	a := mat.NewDense(len(x), 1, append([]float64(nil), x...))
	for _, l := range n.layers {
		a = l.forward(a)
	}
	return mat.Col(nil, 0, a)
}

// Best returns the output with the largest value and that value.
func (n *Net) Best(x []float64) (int, float64) {
	values := n.Forward(x)
	i := floats.MaxIdx(values)
	return i, values[i]
}

// Train moves output dim of x towards target and returns the squared
// error loss. Parameters are updated once every BatchSize calls.
func (n *Net) Train(x []float64, dim int, target float64) float64 {
	values := n.Forward(x)
	diff := values[dim] - target
	loss := 0.5 * diff * diff

	delta := mat.NewDense(len(values), 1, nil)
	delta.Set(dim, 0, diff)
	for i := len(n.layers) - 1; i >= 0; i-- {
		l := n.layers[i]
		if l.relu {
			delta.Apply(func(r, _ int, v float64) float64 {
				if l.output.At(r, 0) <= 0 {
					return 0
				}
				return v
			}, delta)
		}
		delta = l.backward(delta)
	}

	n.calls++
	if n.calls%max(n.trainer.BatchSize, 1) == 0 {
		n.update()
	}
	return loss
}

func (n *Net) update() {
	for _, l := range n.layers {
		n.step(l.weights, l.gradWeights, l.sumWeights, n.trainer.L2Decay)
		// no decay on biases
		n.step(l.bias, l.gradBias, l.sumBias, 0)
	}
}

func (n *Net) step(p, g, sum *mat.Dense, l2 float64) {
	batch := float64(max(n.trainer.BatchSize, 1))
	lr := n.trainer.LearningRate
	m := n.trainer.Momentum
	rows, cols := p.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			pij := p.At(i, j)
			gij := (l2*pij + g.At(i, j)) / batch
			if m > 0 {
				dx := m*sum.At(i, j) - lr*gij
				sum.Set(i, j, dx)
				p.Set(i, j, pij+dx)
			} else {
				p.Set(i, j, pij-lr*gij)
			}
		}
	}
	g.Zero()
}
