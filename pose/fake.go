package pose

import "sync"

// Fake hands out a scripted sequence of summaries, one per Latest call, and
// then keeps reporting nothing new.
type Fake struct {
	mu   sync.Mutex
	seq  []*Summary
	next int
	loop bool
}

func NewFake(loop bool, seq ...*Summary) *Fake {
	return &Fake{seq: seq, loop: loop}
}

func (f *Fake) Latest() (*Summary, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.seq) == 0 {
		return nil, false
	}
	if f.next >= len(f.seq) {
		if !f.loop {
			return nil, false
		}
		f.next = 0
	}
	s := f.seq[f.next]
	f.next++
	return s, true
}

// Push appends a summary to the script.
func (f *Fake) Push(s *Summary) {
	f.mu.Lock()
	f.seq = append(f.seq, s)
	f.mu.Unlock()
}

// Upright returns a well-detected standing pose with level shoulders and hips.
func Upright() []Keypoint {
	return []Keypoint{
		{Name: "nose", X: 0.50, Y: 0.15, Score: 0.95},
		{Name: "left_shoulder", X: 0.40, Y: 0.30, Score: 0.9},
		{Name: "right_shoulder", X: 0.60, Y: 0.30, Score: 0.9},
		{Name: "left_hip", X: 0.42, Y: 0.60, Score: 0.9},
		{Name: "right_hip", X: 0.58, Y: 0.60, Score: 0.9},
		{Name: "left_knee", X: 0.42, Y: 0.80, Score: 0.85},
		{Name: "right_knee", X: 0.58, Y: 0.80, Score: 0.85},
		{Name: "left_ankle", X: 0.42, Y: 0.95, Score: 0.8},
		{Name: "right_ankle", X: 0.58, Y: 0.95, Score: 0.8},
	}
}
