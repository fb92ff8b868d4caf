// Package speech owns the single audio output: it decides which coaching tips
// are actually spoken and renders them through a Speaker.
package speech

import (
	"context"

	"coach/advisory"
)

// Options are voice parameters relative to the speaker's defaults (1.0 = as is).
type Options struct {
	Rate   float64
	Pitch  float64
	Volume float64
}

func OptionsFor(p advisory.Priority) Options {
	switch p {
	case advisory.High:
		return Options{Rate: 1.1, Pitch: 1.0, Volume: 1.0}
	case advisory.Medium:
		return Options{Rate: 1.0, Pitch: 1.0, Volume: 0.9}
	}
	return Options{Rate: 0.95, Pitch: 1.0, Volume: 0.8}
}

// Callbacks report the progress of one utterance. Exactly one of OnDone,
// OnStopped or OnError is called per accepted Speak. Nil callbacks are skipped.
type Callbacks struct {
	OnStart   func()
	OnDone    func()
	OnStopped func()
	OnError   func(error)
}

func (c Callbacks) start() {
	if c.OnStart != nil {
		c.OnStart()
	}
}

func (c Callbacks) done() {
	if c.OnDone != nil {
		c.OnDone()
	}
}

func (c Callbacks) stopped() {
	if c.OnStopped != nil {
		c.OnStopped()
	}
}

func (c Callbacks) fail(err error) {
	if c.OnError != nil {
		c.OnError(err)
	}
}

// Speaker renders text as audio. Speak returns once the utterance is
// accepted; progress arrives through the callbacks. Stop interrupts the
// current utterance, if any.
type Speaker interface {
	Speak(text string, opts Options, cb Callbacks) error
	Stop()
}

// Player plays mono 16-bit PCM and blocks until playback ends or ctx is done.
type Player interface {
	Play(ctx context.Context, pcm []int16, sampleRate int) error
}
