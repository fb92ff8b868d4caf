package speech

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"coach/advisory"
	"coach/log"
)

const DefaultMinInterval = 4 * time.Second

type Outcome string

const (
	Spoken           Outcome = "spoken"
	DroppedBusy      Outcome = "dropped_busy"
	DroppedDuplicate Outcome = "dropped_duplicate"
	DroppedEmpty     Outcome = "dropped_empty"
	Failed           Outcome = "failed"
)

// Dispatcher guards the speech resource. Only one utterance plays at a time;
// requests that arrive while speaking are dropped, not queued.
type Dispatcher struct {
	speaker     Speaker
	minInterval time.Duration
	now         func() time.Time

	speaking atomic.Bool

	mu           sync.Mutex
	gen          uint64
	current      uint64 // generation holding the resource, 0 when free
	lastText     string
	lastSpokenAt time.Time
}

type DispatcherOption func(*Dispatcher)

func WithMinInterval(d time.Duration) DispatcherOption {
	return func(ds *Dispatcher) { ds.minInterval = d }
}

func WithClock(now func() time.Time) DispatcherOption {
	return func(ds *Dispatcher) { ds.now = now }
}

func NewDispatcher(sp Speaker, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{speaker: sp, minInterval: DefaultMinInterval, now: time.Now}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Dispatcher) Request(tip advisory.Tip) Outcome {
	out := d.request(tip)
	log.TipDispatched(tip.Text, string(tip.Source), string(tip.Priority), string(out))
	return out
}

func (d *Dispatcher) request(tip advisory.Tip) Outcome {
	text := strings.TrimSpace(tip.Text)
	if text == "" {
		return DroppedEmpty
	}
	if !d.speaking.CompareAndSwap(false, true) {
		return DroppedBusy
	}

	now := d.now()
	d.mu.Lock()
	if text == d.lastText && now.Sub(d.lastSpokenAt) < d.minInterval {
		d.speaking.Store(false)
		d.mu.Unlock()
		return DroppedDuplicate
	}
	d.lastText = text
	d.lastSpokenAt = now
	d.gen++
	g := d.gen
	d.current = g
	d.mu.Unlock()

	cb := Callbacks{
		OnDone:    func() { d.release(g) },
		OnStopped: func() { d.release(g) },
		OnError: func(err error) {
			log.Warnf("speech error: %v", err)
			d.release(g)
		},
	}
	if err := d.speaker.Speak(text, OptionsFor(tip.Priority), cb); err != nil {
		log.Warnf("speak failed: %v", err)
		d.release(g)
		return Failed
	}
	return Spoken
}

// release frees the resource if generation g still holds it. Late or repeated
// callbacks from older utterances are ignored.
func (d *Dispatcher) release(g uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current != g {
		return
	}
	d.current = 0
	d.speaking.Store(false)
}

// Stop interrupts the current utterance and frees the resource. A request
// that has claimed the flag but not yet started speaking keeps it.
func (d *Dispatcher) Stop() {
	d.speaker.Stop()
	d.mu.Lock()
	if d.current != 0 {
		d.current = 0
		d.speaking.Store(false)
	}
	d.mu.Unlock()
}

func (d *Dispatcher) Speaking() bool { return d.speaking.Load() }
