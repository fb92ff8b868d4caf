// Package pose holds the skeletal summaries supplied by the external pose
// estimator and the alignment metrics the coaching pipeline derives from them.
package pose

import (
	"math"
	"time"
)

// HighConfidence is the keypoint score at or above which a keypoint counts as
// reliably detected.
const HighConfidence = 0.5

// Keypoint is a single detected body landmark in normalized image coordinates.
type Keypoint struct {
	Name  string  `json:"name"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Score float64 `json:"score"`
}

// Summary is one pose estimate. It is read-only once built.
type Summary struct {
	Time           time.Time  `json:"time"`
	Keypoints      []Keypoint `json:"keypoints"`
	HighConfidence int        `json:"high_confidence"`
	Total          int        `json:"total"`
}

// NewSummary counts high-confidence keypoints and returns the summary.
func NewSummary(t time.Time, kps []Keypoint) *Summary {
	s := &Summary{Time: t, Keypoints: kps, Total: len(kps)}
	for _, kp := range kps {
		if kp.Score >= HighConfidence {
			s.HighConfidence++
		}
	}
	return s
}

// Confidence is the share of high-confidence keypoints. A nil summary has
// zero confidence.
func (s *Summary) Confidence() float64 {
	if s == nil || s.Total == 0 {
		return 0
	}
	return float64(s.HighConfidence) / float64(s.Total)
}

// Keypoint returns the named keypoint if it was detected with high confidence.
func (s *Summary) Keypoint(name string) (Keypoint, bool) {
	if s == nil {
		return Keypoint{}, false
	}
	for _, kp := range s.Keypoints {
		if kp.Name == name && kp.Score >= HighConfidence {
			return kp, true
		}
	}
	return Keypoint{}, false
}

// Alignment describes body posture in a way the tip generator can put into
// words. Tilts and lean are in degrees; a zero value with OK=false means the
// required keypoints were missing.
type Alignment struct {
	ShoulderTilt float64
	HipTilt      float64
	TorsoLean    float64
	OK           bool
}

// Align computes shoulder/hip tilt and torso lean from the standard
// COCO-style keypoint names.
func Align(s *Summary) Alignment {
	ls, ok1 := s.Keypoint("left_shoulder")
	rs, ok2 := s.Keypoint("right_shoulder")
	lh, ok3 := s.Keypoint("left_hip")
	rh, ok4 := s.Keypoint("right_hip")
	if !(ok1 && ok2 && ok3 && ok4) {
		return Alignment{}
	}
	a := Alignment{
		ShoulderTilt: tilt(ls, rs),
		HipTilt:      tilt(lh, rh),
		OK:           true,
	}
	midShoulderX, midShoulderY := (ls.X+rs.X)/2, (ls.Y+rs.Y)/2
	midHipX, midHipY := (lh.X+rh.X)/2, (lh.Y+rh.Y)/2
	dy := midHipY - midShoulderY
	if dy != 0 {
		a.TorsoLean = math.Atan(math.Abs(midShoulderX-midHipX)/math.Abs(dy)) * 180 / math.Pi
	}
	return a
}

func tilt(a, b Keypoint) float64 {
	dx := b.X - a.X
	if dx == 0 {
		return 90
	}
	return math.Abs(math.Atan((b.Y-a.Y)/dx)) * 180 / math.Pi
}

// Source supplies the most recent pose estimate. It never blocks; ok is false
// when nothing new has arrived.
type Source interface {
	Latest() (*Summary, bool)
}
