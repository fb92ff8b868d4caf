package motion

import (
	"time"

	"coach/pose"
)

// poseMotionScale maps mean keypoint travel (frame widths per second) onto
// the same rough scale as accelerometer magnitudes in g.
const poseMotionScale = 10.0

// Sampler reads the motion source once per tick. When the source has nothing,
// it falls back to an estimate from the last two pose summaries so camera-only
// sessions still produce samples. Each pose pair yields at most one estimate.
type Sampler struct {
	src      Source
	smoother Smoother
	history  History

	prevPose  *pose.Summary
	lastPose  *pose.Summary
	poseFresh bool
}

func NewSampler(src Source) *Sampler {
	return &Sampler{src: src}
}

// ObservePose records a pose summary for the synthetic estimate. Summaries
// no newer than the last one are ignored.
func (s *Sampler) ObservePose(p *pose.Summary) {
	if p == nil || (s.lastPose != nil && !p.Time.After(s.lastPose.Time)) {
		return
	}
	s.prevPose, s.lastPose = s.lastPose, p
	s.poseFresh = true
}

// Sample takes one reading. It returns the raw sample, the smoothed intensity
// after folding it in, and false when neither the source nor the pose
// estimate produced anything.
func (s *Sampler) Sample(now time.Time) (Sample, float64, bool) {
	var v Vector
	ok := false
	if s.src != nil {
		v, ok = s.src.Read()
	}
	if !ok && s.poseFresh {
		s.poseFresh = false
		v, ok = EstimateFromPose(s.prevPose, s.lastPose)
	}
	if !ok {
		return Sample{}, s.smoother.Value(), false
	}
	smp := NewSample(now, v)
	s.history.Push(smp)
	return smp, s.smoother.Update(smp.Intensity), true
}

// Window returns the newest n samples, oldest first.
func (s *Sampler) Window(n int) []Sample { return s.history.Last(n) }

func (s *Sampler) Smoothed() float64 { return s.smoother.Value() }

func (s *Sampler) Reset() {
	s.smoother.Reset()
	s.history.Reset()
	s.prevPose, s.lastPose = nil, nil
	s.poseFresh = false
}

// EstimateFromPose derives a motion vector from the mean per-second travel of
// keypoints detected with high confidence in both summaries.
func EstimateFromPose(prev, cur *pose.Summary) (Vector, bool) {
	if prev == nil || cur == nil {
		return Vector{}, false
	}
	dt := cur.Time.Sub(prev.Time).Seconds()
	if dt <= 0 {
		return Vector{}, false
	}
	var sx, sy float64
	n := 0
	for _, kp := range cur.Keypoints {
		if kp.Score < pose.HighConfidence {
			continue
		}
		old, ok := prev.Keypoint(kp.Name)
		if !ok {
			continue
		}
		sx += abs(kp.X - old.X)
		sy += abs(kp.Y - old.Y)
		n++
	}
	if n == 0 {
		return Vector{}, false
	}
	k := poseMotionScale / (float64(n) * dt)
	return Vector{X: sx * k, Y: sy * k}, true
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
