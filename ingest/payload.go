package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"coach/motion"
	"coach/pose"
)

var (
	errNonFinite   = errors.New("non-finite value")
	errNoKeypoints = errors.New("no keypoints")
)

type motionPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type posePayload struct {
	Keypoints []pose.Keypoint `json:"keypoints"`
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ParseMotion decodes a {x,y,z} accelerometer reading.
func ParseMotion(msg string) (motion.Vector, error) {
	var p motionPayload
	if err := json.Unmarshal([]byte(msg), &p); err != nil {
		return motion.Vector{}, fmt.Errorf("decode motion: %w", err)
	}
	if !finite(p.X, p.Y, p.Z) {
		return motion.Vector{}, errNonFinite
	}
	return motion.Vector{X: p.X, Y: p.Y, Z: p.Z}, nil
}

// ParsePose decodes a keypoint list into a summary stamped with now.
func ParsePose(msg string, now time.Time) (*pose.Summary, error) {
	var p posePayload
	if err := json.Unmarshal([]byte(msg), &p); err != nil {
		return nil, fmt.Errorf("decode pose: %w", err)
	}
	if len(p.Keypoints) == 0 {
		return nil, errNoKeypoints
	}
	for _, kp := range p.Keypoints {
		if !finite(kp.X, kp.Y, kp.Score) {
			return nil, errNonFinite
		}
	}
	return pose.NewSummary(now, p.Keypoints), nil
}
