package highway

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

var (
	ErrInvalidDirection = errors.New("invalid direction distribution")
)

const probabilityTolerance = 1e-9

// Intent is the directional intent a car samples each tick it is evaluated.
type Intent int

const (
	GoStraight Intent = iota
	TurnLeft
	TurnRight
)

func (i Intent) String() string {
	switch i {
	case TurnLeft:
		return "left"
	case TurnRight:
		return "right"
	default:
		return "straight"
	}
}

type intentProbability struct {
	intent      Intent
	probability float64
}

// Direction is a probability distribution over {straight, left, right}.
type Direction struct {
	straight float64
	left     float64
	right    float64

	// ascending by probability, used for the cumulative draw
	distribution [3]intentProbability
}

func checkProbability(name string, p float64) error {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return fmt.Errorf("%w: %s must be a number between 0 and 1, got %v", ErrInvalidDirection, name, p)
	}
	return nil
}

func NewDirection(straight, left, right float64) (Direction, error) {
	if err := checkProbability("straight", straight); err != nil {
		return Direction{}, err
	}
	if err := checkProbability("left", left); err != nil {
		return Direction{}, err
	}
	if err := checkProbability("right", right); err != nil {
		return Direction{}, err
	}
	if sum := straight + left + right; math.Abs(sum-1) > probabilityTolerance {
		return Direction{}, fmt.Errorf("%w: the sum of the probabilities must be equal to 1, got %v", ErrInvalidDirection, sum)
	}
	d := Direction{
		straight: straight,
		left:     left,
		right:    right,
		distribution: [3]intentProbability{
			{GoStraight, straight},
			{TurnRight, right},
			{TurnLeft, left},
		},
	}
	sort.SliceStable(d.distribution[:], func(i, j int) bool {
		return d.distribution[i].probability < d.distribution[j].probability
	})
	return d, nil
}

// StraightOnly is the direction of the user car.
func StraightOnly() Direction {
	d, _ := NewDirection(1, 0, 0)
	return d
}

// GenerateDirection draws a distribution whose straight probability is at
// least straightProbability, splitting the rest at random between left and right.
func GenerateDirection(straightProbability float64, r *rand.Rand) (Direction, error) {
	if err := checkProbability("straightProbability", straightProbability); err != nil {
		return Direction{}, err
	}
	spread := (1 - straightProbability) / 2
	left := r.Float64() * spread
	right := r.Float64() * spread
	return NewDirection(1-left-right, left, right)
}

func (d Direction) Straight() float64 { return d.straight }

func (d Direction) Left() float64 { return d.left }

func (d Direction) Right() float64 { return d.right }

// Sample performs a cumulative-distribution draw.
func (d Direction) Sample(r *rand.Rand) Intent {
	n := r.Float64()
	sum := 0.0
	for _, e := range d.distribution {
		sum += e.probability
		if n < sum {
			return e.intent
		}
	}
	// rounding leaves a sliver above the last cumulative value
	return d.distribution[len(d.distribution)-1].intent
}
