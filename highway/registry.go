package highway

// handle addresses a registry slot. The generation guards against a grid
// cell that outlived the car it pointed to. The zero handle is empty.
type handle struct {
	slot uint32
	gen  uint32
}

func (h handle) empty() bool { return h.gen == 0 }

type registrySlot struct {
	gen    uint32
	live   bool
	record CarRecord
}

// registry is an arena of car records. Freed slots are reused with a
// bumped generation so that stale handles never resolve.
type registry struct {
	slots []registrySlot
	free  []uint32
	byID  map[CarID]handle
}

func newRegistry() *registry {
	return &registry{
		slots: make([]registrySlot, 0),
		free:  make([]uint32, 0),
		byID:  make(map[CarID]handle),
	}
}

func (r *registry) add(rec CarRecord) handle {
	var idx uint32
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		r.slots = append(r.slots, registrySlot{})
		idx = uint32(len(r.slots) - 1)
	}
	s := &r.slots[idx]
	s.gen++
	s.live = true
	s.record = rec
	h := handle{slot: idx, gen: s.gen}
	r.byID[rec.ID] = h
	return h
}

func (r *registry) get(h handle) (*CarRecord, bool) {
	if h.empty() || int(h.slot) >= len(r.slots) {
		return nil, false
	}
	s := &r.slots[h.slot]
	if !s.live || s.gen != h.gen {
		return nil, false
	}
	return &s.record, true
}

func (r *registry) lookup(id CarID) (handle, *CarRecord, bool) {
	h, ok := r.byID[id]
	if !ok {
		return handle{}, nil, false
	}
	rec, ok := r.get(h)
	return h, rec, ok
}

func (r *registry) remove(h handle) {
	rec, ok := r.get(h)
	if !ok {
		return
	}
	delete(r.byID, rec.ID)
	s := &r.slots[h.slot]
	s.live = false
	s.record = CarRecord{}
	r.free = append(r.free, h.slot)
}

func (r *registry) len() int {
	return len(r.byID)
}

// each visits live records in slot order.
func (r *registry) each(f func(handle, *CarRecord)) {
	for i := range r.slots {
		s := &r.slots[i]
		if s.live {
			f(handle{slot: uint32(i), gen: s.gen}, &s.record)
		}
	}
}
