package speech

import (
	"context"
	"sync"
)

type SpeakCall struct {
	Text string
	Opts Options
}

// FakeSpeaker records Speak calls. With AutoDone set it completes every
// utterance immediately; otherwise the test drives callbacks with Finish/Fail.
type FakeSpeaker struct {
	mu       sync.Mutex
	AutoDone bool
	Err      error
	calls    []SpeakCall
	last     Callbacks
	stops    int
}

func (f *FakeSpeaker) Speak(text string, opts Options, cb Callbacks) error {
	f.mu.Lock()
	if f.Err != nil {
		f.mu.Unlock()
		return f.Err
	}
	f.calls = append(f.calls, SpeakCall{Text: text, Opts: opts})
	f.last = cb
	auto := f.AutoDone
	f.mu.Unlock()

	cb.start()
	if auto {
		cb.done()
	}
	return nil
}

func (f *FakeSpeaker) Stop() {
	f.mu.Lock()
	f.stops++
	cb := f.last
	f.last = Callbacks{}
	f.mu.Unlock()
	cb.stopped()
}

func (f *FakeSpeaker) Calls() []SpeakCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SpeakCall(nil), f.calls...)
}

func (f *FakeSpeaker) Stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

// Callbacks returns the callbacks of the most recent Speak.
func (f *FakeSpeaker) Callbacks() Callbacks {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *FakeSpeaker) Finish() { f.Callbacks().done() }

func (f *FakeSpeaker) Fail(err error) { f.Callbacks().fail(err) }

// FakePlayer records what it was asked to play.
type FakePlayer struct {
	mu     sync.Mutex
	Err    error
	Block  bool // wait for ctx cancellation
	played [][]int16
	rates  []int
}

func (p *FakePlayer) Play(ctx context.Context, pcm []int16, sampleRate int) error {
	p.mu.Lock()
	p.played = append(p.played, pcm)
	p.rates = append(p.rates, sampleRate)
	err, block := p.Err, p.Block
	p.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (p *FakePlayer) Played() [][]int16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]int16(nil), p.played...)
}

func (p *FakePlayer) Rates() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.rates...)
}
