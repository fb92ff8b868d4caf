// Package aggregate rolls motion and pose observations into periodic session
// summaries.
package aggregate

import (
	"time"

	"coach/motion"
	"coach/pose"
)

const (
	Window     = 30 * time.Second
	staleAfter = 35 * time.Second
)

type Phase string

const (
	Setup       Phase = "setup"
	Preparation Phase = "preparation"
	Release     Phase = "release"
)

type Summary struct {
	Time            time.Time `json:"time"`
	WindowStart     time.Time `json:"window_start"`
	AvgIntensity    float64   `json:"avg_intensity"`
	MinIntensity    float64   `json:"min_intensity"`
	MaxIntensity    float64   `json:"max_intensity"`
	Samples         int       `json:"samples"`
	PoseSamples     int       `json:"pose_samples"`
	PoseConfidence  float64   `json:"pose_confidence"`
	Phase           Phase     `json:"phase"`
	Score           int       `json:"score"`
	Feedback        []string  `json:"feedback"`
	CriticalIssues  []string  `json:"critical_issues"`
	Recommendations []string  `json:"recommendations"`
}

type reading struct {
	t time.Time
	v float64
}

// Aggregator keeps a sliding 30 s window of intensities, motion samples and
// pose summaries. It is owned by one session and not safe for concurrent use.
type Aggregator struct {
	windowStart time.Time
	lastEmit    time.Time

	intensities []reading
	samples     []motion.Sample
	poses       []*pose.Summary
}

func New(now time.Time) *Aggregator {
	a := &Aggregator{}
	a.Reset(now)
	return a
}

func (a *Aggregator) Reset(now time.Time) {
	a.windowStart = now
	a.lastEmit = now
	a.intensities = a.intensities[:0]
	a.samples = a.samples[:0]
	a.poses = a.poses[:0]
}

// Collect records one tick of observations. A nil pose, or the same pose seen
// on an earlier tick, adds nothing to the pose buffer.
func (a *Aggregator) Collect(now time.Time, p *pose.Summary, intensity float64, samples []motion.Sample) {
	if now.Sub(a.lastEmit) > staleAfter {
		a.Reset(now)
	}
	a.intensities = append(a.intensities, reading{t: now, v: intensity})
	a.samples = append(a.samples, samples...)
	if p != nil && (len(a.poses) == 0 || p.Time.After(a.poses[len(a.poses)-1].Time)) {
		a.poses = append(a.poses, p)
	}
	a.prune(now)
}

func (a *Aggregator) prune(now time.Time) {
	cutoff := now.Add(-Window)
	i := 0
	for i < len(a.intensities) && a.intensities[i].t.Before(cutoff) {
		i++
	}
	a.intensities = a.intensities[i:]
	i = 0
	for i < len(a.samples) && a.samples[i].Time.Before(cutoff) {
		i++
	}
	a.samples = a.samples[i:]
	i = 0
	for i < len(a.poses) && a.poses[i].Time.Before(cutoff) {
		i++
	}
	a.poses = a.poses[i:]
}

// TryEmit returns a summary once a full window has passed since the last one.
// Buffers are kept so consecutive windows overlap.
func (a *Aggregator) TryEmit(now time.Time) *Summary {
	if now.Sub(a.lastEmit) < Window {
		return nil
	}
	// ticks without a sample never reach Collect, so prune here too
	a.prune(now)
	s := &Summary{
		Time:        now,
		WindowStart: a.windowStart,
		Samples:     len(a.samples),
		PoseSamples: len(a.poses),
	}
	if len(a.intensities) > 0 {
		s.MinIntensity = a.intensities[0].v
		s.MaxIntensity = a.intensities[0].v
		sum := 0.0
		for _, r := range a.intensities {
			sum += r.v
			if r.v < s.MinIntensity {
				s.MinIntensity = r.v
			}
			if r.v > s.MaxIntensity {
				s.MaxIntensity = r.v
			}
		}
		s.AvgIntensity = sum / float64(len(a.intensities))
	}
	if len(a.poses) > 0 {
		sum := 0.0
		for _, p := range a.poses {
			sum += p.Confidence()
		}
		s.PoseConfidence = sum / float64(len(a.poses))
	}
	s.Phase = phaseOf(s.AvgIntensity, s.MaxIntensity)
	assess(s, len(a.intensities) == 0)

	a.lastEmit = now
	a.windowStart = now.Add(-Window)
	return s
}

func phaseOf(avg, max float64) Phase {
	switch {
	case avg < 0.8:
		return Setup
	case max > 2.5 || avg > 1.8:
		return Release
	}
	return Preparation
}
