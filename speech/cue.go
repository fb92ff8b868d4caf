package speech

import (
	"context"
	"math"
)

const CueSampleRate = 44100

type Cue int

const (
	CueStart Cue = iota
	CueStop
	CueSummary
)

type tone struct {
	freq   float64
	dur    float64
	volume float64
	decay  float64
	double bool
}

var cueTones = map[Cue]tone{
	CueStart:   {freq: 1200, dur: 0.2, volume: 0.5, decay: 60},
	CueStop:    {freq: 900, dur: 0.2, volume: 0.5, decay: 40},
	CueSummary: {freq: 660, dur: 0.08, volume: 0.4, decay: 30, double: true},
}

func generateTick(sampleRate int, freq, duration, volume, decay float64) []int16 {
	n := int(float64(sampleRate) * duration)
	samples := make([]int16, n)
	for i := range samples {
		t := float64(i) / float64(sampleRate)
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

func generateDoubleBeep(sampleRate int, freq, beepDur, gapDur, volume, decay float64) []int16 {
	beep := generateTick(sampleRate, freq, beepDur, volume, decay)
	gap := make([]int16, int(float64(sampleRate)*gapDur))
	out := make([]int16, 0, len(beep)*2+len(gap))
	out = append(out, beep...)
	out = append(out, gap...)
	return append(out, beep...)
}

// CueSamples renders a cue tone at CueSampleRate.
func CueSamples(c Cue) []int16 {
	t, ok := cueTones[c]
	if !ok {
		return nil
	}
	if t.double {
		return generateDoubleBeep(CueSampleRate, t.freq, t.dur, 0.05, t.volume, t.decay)
	}
	return generateTick(CueSampleRate, t.freq, t.dur, t.volume, t.decay)
}

// Cues plays short tones for session events. A nil *Cues is silent.
type Cues struct {
	player Player
}

func NewCues(p Player) *Cues { return &Cues{player: p} }

// Play starts the cue in the background.
func (c *Cues) Play(cue Cue) {
	if c == nil || c.player == nil {
		return
	}
	samples := CueSamples(cue)
	go c.player.Play(context.Background(), samples, CueSampleRate)
}
