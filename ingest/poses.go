package ingest

import (
	"sync"

	"coach/pose"
)

// PoseSource holds the newest pose pushed by a client until it is read.
type PoseSource struct {
	mu     sync.Mutex
	latest *pose.Summary
	fresh  bool
}

func NewPoseSource() *PoseSource { return &PoseSource{} }

func (p *PoseSource) Push(s *pose.Summary) {
	p.mu.Lock()
	p.latest = s
	p.fresh = true
	p.mu.Unlock()
}

func (p *PoseSource) Latest() (*pose.Summary, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.fresh {
		return nil, false
	}
	p.fresh = false
	return p.latest, true
}
