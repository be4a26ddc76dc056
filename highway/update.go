package highway

import (
	"github.com/sirupsen/logrus"
)

// UpdateResult reports one tick: the action the user's car really
// performed, the net number of cars overtaken during the tick and the
// user's speed afterwards.
type UpdateResult struct {
	Action         Action  `json:"action"`
	OvertakenDelta int     `json:"overtakenCars"`
	UserSpeed      float64 `json:"speed"`
}

// Update advances the highway by one tick. Calling it before Generate
// generates the smallest highway and reports no action.
func (s *Simulation) Update(action Action) UpdateResult {
	if !s.Generated() {
		s.logger.Debug("update before generate, generating the minimum highway")
		s.Generate(s.config.Patches.Ahead.Minimum, s.config.Patches.Behind.Minimum, 0)
		return UpdateResult{
			Action:    None,
			UserSpeed: s.UserSpeed().Value(),
		}
	}
	s.tick++
	s.delta = 0
	s.updated = make(map[handle]bool)

	taken := s.moveUser(action)
	s.moveTraffic()
	s.spawn()

	s.overtaken += s.delta
	return UpdateResult{
		Action:         taken,
		OvertakenDelta: s.delta,
		UserSpeed:      s.UserSpeed().Value(),
	}
}

// clearAhead reports whether the user can drive at speed without a car
// inside the look-ahead window of its lane.
func (s *Simulation) clearAhead(lane int, speed Speed) bool {
	return s.grid.free(lane, 1, s.config.SafeDistance+speed.Patches(), s.user)
}

func (s *Simulation) moveUser(action Action) Action {
	rec := s.userRecord()
	size := s.config.CarSize
	sd := s.config.SafeDistance

	if action.isLaneChange() {
		target := rec.Lane - 1
		if action == Right {
			target = rec.Lane + 1
		}
		if s.grid.validLane(target) && s.grid.free(target, -size+1-sd, sd, s.user) {
			s.grid.clear(rec.Lane, 0, size)
			rec.Lane = target
			s.grid.fill(target, 0, size, s.user)
			return action
		}
	}

	cur := rec.Car.Speed()
	switch action {
	case Forward:
		if next, ok := s.speeds.NewSpeed(cur, true); ok && s.clearAhead(rec.Lane, next) {
			rec.Car.setBaseline(next)
			return Forward
		}
	case Backward:
		if prev, ok := s.speeds.NewSpeed(cur, false); ok {
			rec.Car.setBaseline(prev)
			return Backward
		}
		return None
	}
	// brake when the current speed would run into the car ahead
	if !s.clearAhead(rec.Lane, cur) {
		if prev, ok := s.speeds.NewSpeed(cur, false); ok {
			rec.Car.setBaseline(prev)
			return Backward
		}
	}
	return None
}

// moveTraffic visits every lane from the front boundary to the rear one so
// that a car is always moved after the cars ahead of it in its lane.
func (s *Simulation) moveTraffic() {
	for lane := 0; lane < s.grid.lanes; lane++ {
		for p := s.grid.front(); p >= s.grid.rear(); p-- {
			h := s.grid.at(lane, p)
			if h.empty() || h == s.user || s.updated[h] {
				continue
			}
			rec, ok := s.cars.get(h)
			if !ok || rec.Lane != lane {
				s.logger.WithFields(logrus.Fields{
					"tick":  s.tick,
					"lane":  lane,
					"patch": p,
				}).Warn("cell references a missing car, clearing it")
				s.grid.set(lane, p, handle{})
				continue
			}
			s.moveCar(h, rec)
		}
	}
}

func (s *Simulation) moveCar(h handle, rec *CarRecord) {
	s.updated[h] = true
	car := rec.Car
	car.RestoreSpeed()
	userPatches := s.userRecord().Car.Speed().Patches()
	rel := car.Speed().Patches() - userPatches

	switch car.Direction().Sample(s.rand) {
	case TurnLeft:
		if s.changeLane(h, rec, rec.Lane-1, rel) {
			return
		}
	case TurnRight:
		if s.changeLane(h, rec, rec.Lane+1, rel) {
			return
		}
	}

	// car following: inside the safe band of a slower car it takes that
	// car's speed, and it never drives into the car ahead
	sd := s.config.SafeDistance
	if q, blocker, found := s.grid.firstOccupied(rec.Lane, rec.Patch+1, rec.Patch+max(rel, 0)+sd, h); found {
		leader, ok := s.cars.get(blocker)
		if ok && !leader.Car.Speed().Faster(car.Speed()) {
			car.ChangeSpeed(leader.Car.Speed())
			rel = car.Speed().Patches() - userPatches
		}
		rel = min(rel, q-1-rec.Patch)
	}

	switch {
	case rel > 0:
		if rec.Patch+rel > s.grid.front() {
			s.removeCar(h, rec, rec.Patch+rel)
			return
		}
		s.shift(h, rec, rel)
	case rel < 0:
		s.moveRearward(h, rec, rel)
	}
}

// moveRearward moves a car back by -rel patches, or as far as the car
// behind it allows. A car whose rear would leave the window is removed.
func (s *Simulation) moveRearward(h handle, rec *CarRecord, rel int) {
	size := s.config.CarSize
	rear := rec.Patch - size + 1
	newRear := rear + rel
	if b, _, found := s.grid.firstOccupied(rec.Lane, rear-1, newRear, h); found {
		if step := b + 1 - rear; step < 0 {
			s.shift(h, rec, step)
		}
		return
	}
	if newRear < s.grid.rear() {
		s.removeCar(h, rec, rec.Patch+rel)
		return
	}
	s.shift(h, rec, rel)
}

// changeLane moves the car to target lane and by rel patches when the
// target lane is clear around the projected position.
func (s *Simulation) changeLane(h handle, rec *CarRecord, target, rel int) bool {
	if !s.grid.validLane(target) {
		return false
	}
	size := s.config.CarSize
	band := size + s.config.SafeDistance
	newFront := rec.Patch + rel
	if !s.grid.inside(newFront) || !s.grid.inside(newFront-size+1) {
		return false
	}
	if !s.grid.free(target, newFront-band, newFront+band, h) {
		return false
	}
	s.grid.clear(rec.Lane, rec.Patch, size)
	s.grid.fill(target, newFront, size, h)
	s.account(rec.Patch, newFront)
	rec.Lane = target
	rec.Patch = newFront
	return true
}

func (s *Simulation) shift(h handle, rec *CarRecord, step int) {
	size := s.config.CarSize
	s.grid.clear(rec.Lane, rec.Patch, size)
	s.grid.fill(rec.Lane, rec.Patch+step, size, h)
	s.account(rec.Patch, rec.Patch+step)
	rec.Patch += step
}

func (s *Simulation) removeCar(h handle, rec *CarRecord, to int) {
	s.account(rec.Patch, to)
	s.grid.clear(rec.Lane, rec.Patch, s.config.CarSize)
	s.logger.WithFields(logrus.Fields{
		"tick": s.tick,
		"car":  rec.ID.String(),
		"lane": rec.Lane,
	}).Debug("car left the window")
	s.cars.remove(h)
	s.newCarProbability = s.config.BoostedCarProbability
}

// account updates the tick's overtaken delta for a car moving from one
// patch to another. Pulling ahead of the user counts -1, falling behind +1.
func (s *Simulation) account(from, to int) {
	switch {
	case from <= 0 && to > 0:
		s.delta--
	case from >= 0 && to < 0:
		s.delta++
	}
}

// spawn adds at most one car per tick. Cars faster than the user enter at
// the rear boundary, the others at the front boundary.
func (s *Simulation) spawn() {
	if s.rand.Float64() >= s.newCarProbability {
		return
	}
	car := s.newTrafficCar()
	size := s.config.CarSize
	band := size + s.config.SafeDistance
	patch := s.grid.front()
	if car.Speed().Faster(s.UserSpeed()) {
		patch = s.grid.rear() + size - 1
	}
	for _, lane := range s.rand.Perm(s.grid.lanes) {
		if !s.grid.free(lane, patch-band, patch+band, handle{}) {
			continue
		}
		s.placeCar(car, lane, patch)
		s.newCarProbability = s.config.NewCarProbability
		s.logger.WithFields(logrus.Fields{
			"tick":  s.tick,
			"lane":  lane,
			"patch": patch,
			"speed": car.Speed().Value(),
		}).Debug("spawned car")
		return
	}
}
