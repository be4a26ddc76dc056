package highway

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"
)

var (
	ErrInconsistent = errors.New("grid and registry are inconsistent")
)

// window is the geometry chosen by Generate.
type window struct {
	ahead      int // simulated patches ahead of the user, user's front excluded
	behind     int
	viewAhead  int // observation window handed to the agent
	viewBehind int
	lanesSide  int
}

// Simulation is a discrete-tick highway. The user's car is the origin of
// the patch axis and never moves along it; every other car moves relative
// to it.
type Simulation struct {
	config *Config
	speeds *SpeedTable
	rand   *rand.Rand
	logger *logrus.Entry

	window window
	grid   *grid
	cars   *registry
	user   handle
	nextID uint64

	tick              int
	overtaken         int
	newCarProbability float64

	// per tick bookkeeping
	updated map[handle]bool
	delta   int
}

func NewSimulation(config *Config, opts ...Option) (*Simulation, error) {
	if config == nil {
		return nil, invalid("no configuration")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	s := &Simulation{
		config: config,
		rand:   defaultRand(),
		logger: discardLogger(),
	}
	for _, o := range opts {
		o(s)
	}
	speeds, err := NewSpeedTable(config.SpeedPatchRatio, s.rand)
	if err != nil {
		return nil, err
	}
	s.speeds = speeds
	return s, nil
}

func (s *Simulation) Config() *Config { return s.config }

func (s *Simulation) Speeds() *SpeedTable { return s.speeds }

func (s *Simulation) Generated() bool { return s.grid != nil }

func (s *Simulation) Tick() int { return s.tick }

// OvertakenCars is the running net number of cars the user has passed.
func (s *Simulation) OvertakenCars() int { return s.overtaken }

func (s *Simulation) NumCars() int {
	if s.cars == nil {
		return 0
	}
	return s.cars.len()
}

func (s *Simulation) userRecord() *CarRecord {
	rec, _ := s.cars.get(s.user)
	return rec
}

func (s *Simulation) UserLane() int {
	if !s.Generated() {
		return -1
	}
	return s.userRecord().Lane
}

func (s *Simulation) UserSpeed() Speed {
	if !s.Generated() {
		return s.speeds.Min()
	}
	return s.userRecord().Car.Speed()
}

func (s *Simulation) computeWindow(patchesAhead, patchesBehind, lanesSide int) window {
	reqAhead := max(patchesAhead, 1)
	reqBehind := max(patchesBehind, 0)
	w := window{
		ahead:     s.config.Patches.Ahead.clamp(reqAhead),
		behind:    s.config.Patches.Behind.clamp(reqBehind),
		lanesSide: min(max(lanesSide, 0), s.config.NumberOfLanes),
	}
	w.viewAhead = min(reqAhead, w.ahead)
	w.viewBehind = min(reqBehind, w.behind)
	return w
}

// ObservationSize is the length of Observe after Generate with the same arguments.
func (s *Simulation) ObservationSize(patchesAhead, patchesBehind, lanesSide int) int {
	w := s.computeWindow(patchesAhead, patchesBehind, lanesSide)
	return (2*w.lanesSide + 1) * (w.viewAhead + w.viewBehind)
}

// Generate builds a fresh highway. The user's car is put at patch 0 of a
// random lane, every other lane is filled from the front of the window
// to its rear.
func (s *Simulation) Generate(patchesAhead, patchesBehind, lanesSide int) {
	s.window = s.computeWindow(patchesAhead, patchesBehind, lanesSide)
	s.grid = newGrid(s.config.NumberOfLanes, s.window.ahead, s.window.behind)
	s.cars = newRegistry()
	s.nextID = 1
	s.tick = 0
	s.overtaken = 0
	s.newCarProbability = s.config.NewCarProbability

	userLane := s.rand.Intn(s.config.NumberOfLanes)
	s.user = s.cars.add(CarRecord{
		ID:    UserCarID,
		Car:   NewCar(true, s.speeds.Min(), StraightOnly()),
		Lane:  userLane,
		Patch: 0,
	})
	s.grid.fill(userLane, 0, s.config.CarSize, s.user)

	for lane := 0; lane < s.config.NumberOfLanes; lane++ {
		if lane != userLane {
			s.populateLane(lane)
		}
	}
	s.logger.WithFields(logrus.Fields{
		"lanes":     s.config.NumberOfLanes,
		"ahead":     s.window.ahead,
		"behind":    s.window.behind,
		"user_lane": userLane,
		"cars":      s.cars.len(),
	}).Debug("generated highway")
}

func (s *Simulation) populateLane(lane int) {
	size := s.config.CarSize
	maxGap := max((s.window.ahead+s.window.behind)/3, 1)
	floor := s.grid.rear() + size - 1
	hi := s.grid.front()
	for hi >= floor {
		lo := max(hi-maxGap, floor)
		patch := lo + s.rand.Intn(hi-lo+1)
		s.placeCar(s.newTrafficCar(), lane, patch)
		hi = patch - size - s.config.SafeDistance
	}
}

func (s *Simulation) newTrafficCar() *Car {
	d, err := GenerateDirection(s.config.StraightProbability, s.rand)
	if err != nil {
		d = StraightOnly()
	}
	return NewCar(false, s.speeds.Generate(), d)
}

func (s *Simulation) placeCar(car *Car, lane, patch int) handle {
	id := GeneratedCarID(s.nextID)
	s.nextID++
	h := s.cars.add(CarRecord{ID: id, Car: car, Lane: lane, Patch: patch})
	s.grid.fill(lane, patch, s.config.CarSize, h)
	return h
}

// Reset drops the highway. The next Update or Generate builds a new one.
func (s *Simulation) Reset() {
	s.grid = nil
	s.cars = nil
	s.user = handle{}
	s.updated = nil
	s.tick = 0
	s.overtaken = 0
}

func (s *Simulation) observedLanes() (int, int) {
	lane := s.userRecord().Lane
	return lane - s.window.lanesSide, lane + s.window.lanesSide
}

// TrafficToLine flattens the observation window lane by lane, each lane
// from the front of the window to its rear. Lanes off the road are skipped.
func (s *Simulation) TrafficToLine() []CarID {
	if !s.Generated() {
		return nil
	}
	lo, hi := s.observedLanes()
	lo = max(lo, 0)
	hi = min(hi, s.config.NumberOfLanes-1)
	out := make([]CarID, 0, (hi-lo+1)*(s.window.viewAhead+s.window.viewBehind))
	for lane := lo; lane <= hi; lane++ {
		for p := s.window.viewAhead - 1; p >= -s.window.viewBehind; p-- {
			id := CarID{}
			if rec, ok := s.cars.get(s.grid.at(lane, p)); ok {
				id = rec.ID
			}
			out = append(out, id)
		}
	}
	return out
}

// Observe encodes the observation window as numbers with a fixed width:
// lanes off the road are 0, free cells 1 and occupied cells carry half the
// occupant's speed relative to the fastest tier.
func (s *Simulation) Observe() []float64 {
	if !s.Generated() {
		return nil
	}
	lo, hi := s.observedLanes()
	maxSpeed := s.speeds.Max().Value()
	out := make([]float64, 0, (hi-lo+1)*(s.window.viewAhead+s.window.viewBehind))
	for lane := lo; lane <= hi; lane++ {
		for p := s.window.viewAhead - 1; p >= -s.window.viewBehind; p-- {
			if !s.grid.validLane(lane) {
				out = append(out, 0)
				continue
			}
			rec, ok := s.cars.get(s.grid.at(lane, p))
			if !ok {
				out = append(out, 1)
				continue
			}
			out = append(out, 0.5*rec.Car.Speed().Value()/maxSpeed)
		}
	}
	return out
}

type CarView struct {
	ID     CarID   `json:"id"`
	IsUser bool    `json:"isUser"`
	Lane   int     `json:"lane"`
	Patch  int     `json:"patch"`
	Speed  float64 `json:"speed"`
}

// Snapshot is what a presentation layer needs to draw the highway.
type Snapshot struct {
	Tick          int       `json:"tick"`
	Lanes         int       `json:"lanes"`
	PatchesAhead  int       `json:"patchesAhead"`
	PatchesBehind int       `json:"patchesBehind"`
	OvertakenCars int       `json:"overtakenCars"`
	Cars          []CarView `json:"cars"`
}

func (s *Simulation) Snapshot() Snapshot {
	snap := Snapshot{
		Tick:          s.tick,
		Lanes:         s.config.NumberOfLanes,
		PatchesAhead:  s.window.ahead,
		PatchesBehind: s.window.behind,
		OvertakenCars: s.overtaken,
		Cars:          make([]CarView, 0),
	}
	if !s.Generated() {
		return snap
	}
	s.cars.each(func(_ handle, rec *CarRecord) {
		snap.Cars = append(snap.Cars, CarView{
			ID:     rec.ID,
			IsUser: rec.Car.IsUser(),
			Lane:   rec.Lane,
			Patch:  rec.Patch,
			Speed:  rec.Car.Speed().Value(),
		})
	})
	sort.Slice(snap.Cars, func(i, j int) bool {
		a, b := snap.Cars[i].ID, snap.Cars[j].ID
		if a.IsUser() != b.IsUser() {
			return a.IsUser()
		}
		return a.seq < b.seq
	})
	return snap
}

// CheckConsistency verifies that every car covers exactly CarSize
// contiguous cells of its lane and that every occupied cell belongs to a
// registered car.
func (s *Simulation) CheckConsistency() error {
	if !s.Generated() {
		return nil
	}
	size := s.config.CarSize
	counts := make(map[handle]int)
	for lane := 0; lane < s.grid.lanes; lane++ {
		for p := s.grid.rear(); p <= s.grid.front(); p++ {
			h := s.grid.at(lane, p)
			if h.empty() {
				continue
			}
			rec, ok := s.cars.get(h)
			if !ok {
				return fmt.Errorf("%w: cell (%d, %d) references a missing car", ErrInconsistent, lane, p)
			}
			if rec.Lane != lane || p > rec.Patch || p <= rec.Patch-size {
				return fmt.Errorf("%w: cell (%d, %d) is outside car %s at (%d, %d)", ErrInconsistent, lane, p, rec.ID, rec.Lane, rec.Patch)
			}
			counts[h]++
		}
	}
	var err error
	s.cars.each(func(h handle, rec *CarRecord) {
		if err == nil && counts[h] != size {
			err = fmt.Errorf("%w: car %s covers %d cells, want %d", ErrInconsistent, rec.ID, counts[h], size)
		}
	})
	return err
}
