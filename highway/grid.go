package highway

// grid holds one handle per (lane, patch) of the simulated window. Patches
// run from -behind (rear boundary) to ahead-1 (front boundary).
type grid struct {
	lanes  int
	ahead  int
	behind int
	cells  [][]handle
}

func newGrid(lanes, ahead, behind int) *grid {
	g := &grid{
		lanes:  lanes,
		ahead:  ahead,
		behind: behind,
		cells:  make([][]handle, lanes),
	}
	for l := range g.cells {
		g.cells[l] = make([]handle, ahead+behind)
	}
	return g
}

func (g *grid) front() int { return g.ahead - 1 }

func (g *grid) rear() int { return -g.behind }

func (g *grid) validLane(lane int) bool {
	return lane >= 0 && lane < g.lanes
}

func (g *grid) inside(patch int) bool {
	return patch >= g.rear() && patch <= g.front()
}

func (g *grid) at(lane, patch int) handle {
	if !g.validLane(lane) || !g.inside(patch) {
		return handle{}
	}
	return g.cells[lane][patch+g.behind]
}

func (g *grid) set(lane, patch int, h handle) {
	if !g.validLane(lane) || !g.inside(patch) {
		return
	}
	g.cells[lane][patch+g.behind] = h
}

// fill writes h over the body of a car whose front is at patch.
func (g *grid) fill(lane, front, size int, h handle) {
	for p := front; p > front-size; p-- {
		g.set(lane, p, h)
	}
}

func (g *grid) clear(lane, front, size int) {
	g.fill(lane, front, size, handle{})
}

// firstOccupied scans the inclusive patch range [from, to] in the given
// order (from may be greater than to) and returns the first patch holding a
// handle other than self.
func (g *grid) firstOccupied(lane, from, to int, self handle) (int, handle, bool) {
	step := 1
	if from > to {
		step = -1
	}
	for p := from; ; p += step {
		h := g.at(lane, p)
		if !h.empty() && h != self {
			return p, h, true
		}
		if p == to {
			break
		}
	}
	return 0, handle{}, false
}

// free reports whether the inclusive patch range holds nothing but self.
// Patches outside the window hold nothing.
func (g *grid) free(lane, from, to int, self handle) bool {
	if !g.validLane(lane) {
		return false
	}
	_, _, found := g.firstOccupied(lane, from, to, self)
	return !found
}
