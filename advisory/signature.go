package advisory

import (
	"fmt"
	"math"

	"coach/classify"
	"coach/pose"
)

func quantize(v, step float64) float64 {
	q := math.Round(v/step) * step
	if q == 0 {
		return 0 // avoid "-0.0"
	}
	return q
}

// ClassifySignature buckets the inputs so that near-identical windows share a
// cache entry.
func ClassifySignature(in ClassifyInput) string {
	f := classify.Extract(in.Window, in.Pose)
	return fmt.Sprintf("i%.1f|x%.1f|y%.1f|z%.1f|p%.2f|h%d",
		quantize(in.Intensity, 0.5),
		quantize(f.AbsX, 0.5),
		quantize(f.AbsY, 0.5),
		quantize(f.AbsZ, 0.5),
		quantize(f.PoseConf, 0.25),
		len(in.Window)/10,
	)
}

// TipSignature keys tips by class, state, pose quality tier and alignment.
// Alignment angles are bucketed as fractions of a right angle.
func TipSignature(tc TipContext) string {
	a := pose.Align(tc.Pose)
	return fmt.Sprintf("%s|%s|%s|s%.1f|h%.1f|l%.1f",
		tc.Class, tc.State, QualityTier(tc.Pose.Confidence()),
		quantize(a.ShoulderTilt/90, 0.1),
		quantize(a.HipTilt/90, 0.1),
		quantize(a.TorsoLean/90, 0.1),
	)
}

// QualityTier names pose detection quality for prompts and signatures.
func QualityTier(conf float64) string {
	switch {
	case conf >= 0.7:
		return "good"
	case conf >= 0.4:
		return "fair"
	}
	return "poor"
}
