package highway

import (
	"io"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
)

type Option func(*Simulation)

// WithRand sets the random source used for generation, spawning and
// direction sampling.
func WithRand(r *rand.Rand) Option {
	return func(s *Simulation) {
		s.rand = r
	}
}

func WithSeed(seed int64) Option {
	return WithRand(rand.New(rand.NewSource(seed)))
}

func WithLogger(l *logrus.Entry) Option {
	return func(s *Simulation) {
		s.logger = l
	}
}

func defaultRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

func discardLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
