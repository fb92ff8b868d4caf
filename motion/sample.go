// Package motion turns raw tri-axis readings into timestamped intensity
// samples, smooths them, and keeps a short history for the classifiers.
package motion

import (
	"math"
	"time"
)

// Vector is one raw tri-axis reading in g.
type Vector struct {
	X, Y, Z float64
}

// Magnitude returns sqrt(x²+y²+z²). The zero vector has magnitude 0.
func Magnitude(x, y, z float64) float64 {
	return math.Sqrt(x*x + y*y + z*z)
}

type Sample struct {
	Time      time.Time
	X, Y, Z   float64
	Intensity float64
}

func NewSample(t time.Time, v Vector) Sample {
	return Sample{Time: t, X: v.X, Y: v.Y, Z: v.Z, Intensity: Magnitude(v.X, v.Y, v.Z)}
}

const smoothingAlpha = 0.3 // weight of the newest reading

// Smoother is an exponential moving average seeded with the first value.
type Smoother struct {
	value  float64
	seeded bool
}

func (s *Smoother) Update(v float64) float64 {
	if !s.seeded {
		s.value = v
		s.seeded = true
		return v
	}
	s.value = s.value*(1-smoothingAlpha) + v*smoothingAlpha
	return s.value
}

func (s *Smoother) Value() float64 { return s.value }

func (s *Smoother) Reset() {
	s.value = 0
	s.seeded = false
}
