package motion

import "sync"

// FakeSource replays a fixed list of readings, optionally looping.
type FakeSource struct {
	mu   sync.Mutex
	seq  []Vector
	pos  int
	loop bool
}

func NewFakeSource(loop bool, seq ...Vector) *FakeSource {
	return &FakeSource{seq: seq, loop: loop}
}

// Intensities builds a source whose readings lie on the vertical axis with
// the given magnitudes.
func Intensities(loop bool, vals ...float64) *FakeSource {
	seq := make([]Vector, len(vals))
	for i, v := range vals {
		seq[i] = Vector{Y: v}
	}
	return NewFakeSource(loop, seq...)
}

func (f *FakeSource) Read() (Vector, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pos >= len(f.seq) {
		if !f.loop || len(f.seq) == 0 {
			return Vector{}, false
		}
		f.pos = 0
	}
	v := f.seq[f.pos]
	f.pos++
	return v, true
}
