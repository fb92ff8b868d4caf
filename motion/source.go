package motion

import (
	"sync"
	"sync/atomic"
)

// Source yields raw readings. Read never blocks; ok is false when no reading
// is available for this tick.
type Source interface {
	Read() (Vector, bool)
}

// ChannelSource holds the most recent reading pushed by a producer running at
// its own rate. A newer reading overwrites an unread one.
type ChannelSource struct {
	mu     sync.Mutex
	latest Vector
	fresh  bool
	drops  uint64
}

func NewChannelSource() *ChannelSource { return &ChannelSource{} }

func (s *ChannelSource) Publish(v Vector) {
	s.mu.Lock()
	if s.fresh {
		atomic.AddUint64(&s.drops, 1)
	}
	s.latest = v
	s.fresh = true
	s.mu.Unlock()
}

func (s *ChannelSource) Read() (Vector, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.fresh {
		return Vector{}, false
	}
	s.fresh = false
	return s.latest, true
}

// Drops reports how many readings were overwritten before being read.
func (s *ChannelSource) Drops() uint64 { return atomic.LoadUint64(&s.drops) }
