package classify

import (
	"strings"

	"coach/motion"
	"coach/pose"
)

// PatternWindow is how many trailing samples the pattern classifier looks at.
const PatternWindow = 10

const minPatternSamples = 3

type Class int

const (
	None Class = iota
	Explosive
	Rhythmic
	Sustained
	Controlled
)

func (c Class) String() string {
	switch c {
	case Explosive:
		return "explosive"
	case Rhythmic:
		return "rhythmic"
	case Sustained:
		return "sustained"
	case Controlled:
		return "controlled"
	}
	return "none"
}

// ParseClass maps a label back to a Class. Anything unrecognized is None.
func ParseClass(s string) Class {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, " .!\"'`*")
	for _, c := range []Class{Explosive, Rhythmic, Sustained, Controlled} {
		if s == c.String() {
			return c
		}
	}
	return None
}

// Features are the window statistics the rules are evaluated on.
type Features struct {
	Avg      float64
	Variance float64
	AbsX     float64
	AbsY     float64
	AbsZ     float64
	PoseConf float64
	N        int
}

// Extract computes features over the last PatternWindow samples.
func Extract(window []motion.Sample, p *pose.Summary) Features {
	if len(window) > PatternWindow {
		window = window[len(window)-PatternWindow:]
	}
	f := Features{N: len(window), PoseConf: p.Confidence()}
	if f.N == 0 {
		return f
	}
	n := float64(f.N)
	for _, s := range window {
		f.Avg += s.Intensity
		f.AbsX += abs(s.X)
		f.AbsY += abs(s.Y)
		f.AbsZ += abs(s.Z)
	}
	f.Avg /= n
	f.AbsX /= n
	f.AbsY /= n
	f.AbsZ /= n
	for _, s := range window {
		d := s.Intensity - f.Avg
		f.Variance += d * d
	}
	f.Variance /= n
	return f
}

type rule struct {
	class Class
	match func(Features) bool
}

// Order matters: the first matching rule wins.
var rules = []rule{
	{Explosive, func(f Features) bool {
		return f.AbsY > 1.2 && f.Avg > 2.0 && f.Variance > 0.5
	}},
	{Rhythmic, func(f Features) bool {
		return f.AbsX > 0.5 && f.Variance < 0.3 && f.Avg >= 1.0 && f.Avg <= 2.2 && f.PoseConf >= 0.5
	}},
	{Sustained, func(f Features) bool {
		return f.AbsY > 0.8 && f.Avg > 1.5 && f.PoseConf >= 0.7
	}},
	{Controlled, func(f Features) bool {
		return f.Avg < 1.2 && f.Variance < 0.1 && f.AbsX < 0.8 && f.AbsY < 0.8 && f.AbsZ < 0.8
	}},
}

// Classify returns the movement pattern of the trailing window. Fewer than
// three samples yields None.
func Classify(window []motion.Sample, p *pose.Summary) Class {
	f := Extract(window, p)
	if f.N < minPatternSamples {
		return None
	}
	for _, r := range rules {
		if r.match(f) {
			return r.class
		}
	}
	return None
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
