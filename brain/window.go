package brain

// Window keeps the last size values and their running sum. Its average
// is only defined once it holds at least minSize values.
type Window struct {
	values  []float64
	size    int
	minSize int
	sum     float64
}

func NewWindow(size, minSize int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{
		values:  make([]float64, 0, size),
		size:    size,
		minSize: minSize,
	}
}

func (w *Window) Add(v float64) {
	w.values = append(w.values, v)
	w.sum += v
	if len(w.values) > w.size {
		w.sum -= w.values[0]
		w.values = w.values[1:]
	}
}

func (w *Window) Average() (float64, bool) {
	if len(w.values) < w.minSize || len(w.values) == 0 {
		return 0, false
	}
	return w.sum / float64(len(w.values)), true
}

func (w *Window) Len() int {
	return len(w.values)
}

func (w *Window) Reset() {
	w.values = w.values[:0]
	w.sum = 0
}
