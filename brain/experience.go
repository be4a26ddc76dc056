package brain

import (
	erand "golang.org/x/exp/rand"
)

// Experience is one transition fed to the TD trainer. States are network
// inputs, i.e. already extended with the temporal window.
type Experience struct {
	State  []float64
	Action int
	Reward float64
	Next   []float64
}

// ReplayBuffer stores at most capacity experiences. Once full, a new
// experience overwrites a uniformly random slot.
type ReplayBuffer struct {
	capacity int
	items    []Experience
	rand     *erand.Rand
}

func NewReplayBuffer(capacity int, src erand.Source) *ReplayBuffer {
	capacity = max(capacity, 1)
	return &ReplayBuffer{
		capacity: capacity,
		items:    make([]Experience, 0, min(capacity, 1024)),
		rand:     erand.New(src),
	}
}

// Add stores e and reports whether it replaced an older experience.
func (b *ReplayBuffer) Add(e Experience) bool {
	if len(b.items) < b.capacity {
		b.items = append(b.items, e)
		return false
	}
	b.items[b.rand.Intn(b.capacity)] = e
	return true
}

func (b *ReplayBuffer) Len() int {
	return len(b.items)
}

func (b *ReplayBuffer) Capacity() int {
	return b.capacity
}

func (b *ReplayBuffer) At(i int) Experience {
	return b.items[i]
}

// Sample draws n experiences uniformly at random with replacement.
func (b *ReplayBuffer) Sample(n int) []Experience {
	if len(b.items) == 0 {
		return nil
	}
	out := make([]Experience, n)
	for i := range out {
		out[i] = b.items[b.rand.Intn(len(b.items))]
	}
	return out
}

func (b *ReplayBuffer) Reset() {
	b.items = b.items[:0]
}
