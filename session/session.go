// Package session runs one coaching session: it owns the per-session pipeline
// state and drives the sampler, pose, tip and summary tasks on their own
// cadences.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"coach/advisory"
	"coach/aggregate"
	"coach/classify"
	"coach/log"
	"coach/motion"
	"coach/pose"
	"coach/speech"
)

type Clock func() time.Time

type Config struct {
	SampleEvery time.Duration
	PoseEvery   time.Duration
	TipEvery    time.Duration
	EmitEvery   time.Duration

	// RetainCache keeps advisory cache entries across sessions.
	RetainCache bool
	// SpeakSummaries speaks a short recap of each emitted summary.
	SpeakSummaries bool

	Provider string // for the session log line
	Speaker  string
}

func DefaultConfig() Config {
	return Config{
		SampleEvery:    200 * time.Millisecond,
		PoseEvery:      time.Second,
		TipEvery:       3 * time.Second,
		EmitEvery:      time.Second,
		SpeakSummaries: true,
	}
}

// Observer receives pipeline events. Calls are made outside the session lock
// from the task goroutines.
type Observer interface {
	Sample(intensity float64, state classify.State)
	StateChanged(from, to classify.State, intensity float64)
	Summary(sessionID string, s *aggregate.Summary)
	Tip(t advisory.Tip, out speech.Outcome)
}

// SummarySink forwards emitted summaries to an external system.
type SummarySink interface {
	Publish(sessionID string, s *aggregate.Summary) error
}

// Deps are the collaborators a session is built from. Advisor and Speech may
// be shared between sessions.
type Deps struct {
	Motion    motion.Source
	Poses     pose.Source
	Advisor   *advisory.Advisor
	Speech    *speech.Dispatcher
	Cues      *speech.Cues
	Observers []Observer
	Sinks     []SummarySink
}

type Session struct {
	cfg   Config
	clock Clock
	deps  Deps

	runMu   sync.Mutex // serializes Start and Stop
	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	tipBusy atomic.Bool

	mu          sync.Mutex
	id          string
	gen         uint64
	sampler     *motion.Sampler
	machine     *classify.Machine
	agg         *aggregate.Aggregator
	pose        *pose.Summary
	poseAt      time.Time // when pose was received
	lastInput   time.Time // last tick that produced a sample, zero once expired
	lastSummary *aggregate.Summary
	lastTip     *advisory.Tip
	summaries   int
	tips        int
}

type Option func(*Session)

func WithClock(c Clock) Option {
	return func(s *Session) { s.clock = c }
}

func New(cfg Config, deps Deps, opts ...Option) *Session {
	s := &Session{cfg: cfg, clock: time.Now, deps: deps}
	for _, o := range opts {
		o(s)
	}
	s.sampler = motion.NewSampler(deps.Motion)
	s.machine = classify.NewMachine()
	s.agg = aggregate.New(s.clock())
	return s
}

// Start begins a new session. Calling Start on a running session is a no-op.
func (s *Session) Start(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.running.Load() {
		return nil
	}
	if s.deps.Advisor == nil || s.deps.Speech == nil {
		return fmt.Errorf("session: advisor and speech dispatcher are required")
	}

	now := s.clock()
	s.mu.Lock()
	s.id = uuid.NewString()
	s.gen++
	s.resetLocked(now)
	s.summaries, s.tips = 0, 0
	id := s.id
	s.mu.Unlock()

	ctx, s.cancel = context.WithCancel(ctx)
	s.running.Store(true)

	log.SessionStart(id, s.cfg.Provider, s.cfg.Speaker)
	s.deps.Cues.Play(speech.CueStart)

	s.every(ctx, s.cfg.SampleEvery, s.SampleStep)
	s.every(ctx, s.cfg.PoseEvery, s.PoseStep)
	s.every(ctx, s.cfg.TipEvery, func(now time.Time) { s.tipStep(ctx, now, true) })
	s.every(ctx, s.cfg.EmitEvery, s.EmitStep)
	return nil
}

func (s *Session) every(ctx context.Context, d time.Duration, fn func(time.Time)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t := time.NewTicker(d)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				fn(s.clock())
			}
		}
	}()
}

// Stop ends the session. In-flight tips are marked stale before the tasks are
// cancelled and awaited, then speech is cut off and session buffers cleared.
// Stop on an idle session is a no-op.
func (s *Session) Stop() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if !s.running.Load() {
		return
	}
	s.mu.Lock()
	s.gen++
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
	s.running.Store(false)

	now := s.clock()
	s.mu.Lock()
	id, summaries, tips := s.id, s.summaries, s.tips
	s.resetLocked(now)
	s.mu.Unlock()

	s.deps.Advisor.ResetGates()
	if !s.cfg.RetainCache {
		s.deps.Advisor.Purge()
	}
	s.deps.Speech.Stop()
	s.deps.Cues.Play(speech.CueStop)
	log.SessionEnd(id, summaries, tips)
}

func (s *Session) resetLocked(now time.Time) {
	s.sampler.Reset()
	s.machine.Reset()
	s.agg.Reset(now)
	s.pose = nil
	s.poseAt = time.Time{}
	s.lastInput = time.Time{}
	s.lastSummary = nil
	s.lastTip = nil
}

func (s *Session) Running() bool { return s.running.Load() }

// Step runs one tick of every task synchronously, in pipeline order.
func (s *Session) Step(ctx context.Context, now time.Time) {
	s.PoseStep(now)
	s.SampleStep(now)
	s.tipStep(ctx, now, false)
	s.EmitStep(now)
}

// staleAfter is how long the last pose or motion reading stays usable once
// its feed goes quiet.
func (s *Session) staleAfter() time.Duration {
	if s.cfg.PoseEvery > 0 {
		return 3 * s.cfg.PoseEvery
	}
	return 3 * time.Second
}

// livePoseLocked returns the current pose, dropping it once no new one has
// arrived within staleAfter.
func (s *Session) livePoseLocked(now time.Time) *pose.Summary {
	if s.pose != nil && now.Sub(s.poseAt) > s.staleAfter() {
		s.pose = nil
	}
	return s.pose
}

// SampleStep reads one motion sample, updates the movement state and feeds
// the aggregator. Classification always happens before aggregation. When no
// input has arrived within staleAfter the motion state drops back to idle.
func (s *Session) SampleStep(now time.Time) {
	s.mu.Lock()
	smp, smoothed, ok := s.sampler.Sample(now)
	if !ok {
		if s.lastInput.IsZero() || now.Sub(s.lastInput) <= s.staleAfter() {
			s.mu.Unlock()
			return
		}
		s.lastInput = time.Time{}
		s.sampler.Reset()
		from := s.machine.State()
		s.machine.Reset()
		s.mu.Unlock()

		log.Warn("input lost, motion state reset")
		if from != classify.Idle {
			log.StateChange(from.String(), classify.Idle.String(), 0)
			for _, o := range s.deps.Observers {
				o.StateChanged(from, classify.Idle, 0)
			}
		}
		return
	}
	s.lastInput = now
	from := s.machine.State()
	to, changed := s.machine.Update(smoothed)
	s.agg.Collect(now, s.livePoseLocked(now), smoothed, []motion.Sample{smp})
	s.mu.Unlock()

	if changed {
		log.StateChange(from.String(), to.String(), smoothed)
	}
	for _, o := range s.deps.Observers {
		o.Sample(smoothed, to)
		if changed {
			o.StateChanged(from, to, smoothed)
		}
	}
}

func (s *Session) PoseStep(now time.Time) {
	if s.deps.Poses == nil {
		return
	}
	p, ok := s.deps.Poses.Latest()
	if !ok || p == nil {
		return
	}
	s.mu.Lock()
	s.pose = p
	s.poseAt = now
	s.sampler.ObservePose(p)
	s.mu.Unlock()
}

// TipStep generates and dispatches one tip synchronously.
func (s *Session) TipStep(ctx context.Context, now time.Time) {
	s.tipStep(ctx, now, false)
}

func (s *Session) tipStep(ctx context.Context, now time.Time, async bool) {
	if !s.tipBusy.CompareAndSwap(false, true) {
		return
	}
	s.mu.Lock()
	window := s.sampler.Window(classify.PatternWindow)
	p := s.livePoseLocked(now)
	if len(window) == 0 && p == nil {
		s.mu.Unlock()
		s.tipBusy.Store(false)
		return
	}
	gen := s.gen
	in := advisory.ClassifyInput{
		Intensity: s.sampler.Smoothed(),
		Window:    window,
		Pose:      p,
		Pattern:   classify.Classify(window, p),
	}
	tc := advisory.TipContext{
		State:     s.machine.State(),
		Pose:      p,
		Intensity: in.Intensity,
	}
	if s.lastSummary != nil {
		tc.LastScore = s.lastSummary.Score
		tc.Critical = len(s.lastSummary.CriticalIssues) > 0
	}
	s.mu.Unlock()

	run := func() {
		defer s.tipBusy.Store(false)
		tc.Class = s.deps.Advisor.Classify(ctx, now, in)
		tip := s.deps.Advisor.Tip(ctx, now, tc)
		s.dispatch(gen, tip)
	}
	if async {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			run()
		}()
		return
	}
	run()
}

// dispatch speaks tip unless the session moved on since it was requested.
func (s *Session) dispatch(gen uint64, tip advisory.Tip) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	out := s.deps.Speech.Request(tip)

	s.mu.Lock()
	if out == speech.Spoken {
		s.tips++
		s.lastTip = &tip
	}
	s.mu.Unlock()
	for _, o := range s.deps.Observers {
		o.Tip(tip, out)
	}
}

// EmitStep emits a summary when the aggregation window has elapsed.
func (s *Session) EmitStep(now time.Time) {
	s.mu.Lock()
	sum := s.agg.TryEmit(now)
	if sum == nil {
		s.mu.Unlock()
		return
	}
	s.lastSummary = sum
	s.summaries++
	id, gen := s.id, s.gen
	s.mu.Unlock()

	log.SummaryEmitted(log.SummaryData{
		Score:        sum.Score,
		Phase:        string(sum.Phase),
		AvgIntensity: sum.AvgIntensity,
		MaxIntensity: sum.MaxIntensity,
		Samples:      sum.Samples,
		PoseSamples:  sum.PoseSamples,
	})
	for _, o := range s.deps.Observers {
		o.Summary(id, sum)
	}
	for _, sink := range s.deps.Sinks {
		if err := sink.Publish(id, sum); err != nil {
			log.Warnf("publish summary: %v", err)
		}
	}
	s.deps.Cues.Play(speech.CueSummary)
	if s.cfg.SpeakSummaries {
		s.dispatch(gen, advisory.Tip{
			Text:        Recap(sum),
			Priority:    advisory.Low,
			Confidence:  1,
			SourceScore: sum.Score,
			Time:        now,
			Source:      advisory.SourceSummary,
		})
	}
}

// Recap is the spoken form of a summary.
func Recap(sum *aggregate.Summary) string {
	text := fmt.Sprintf("Last 30 seconds, score %d.", sum.Score)
	switch {
	case len(sum.CriticalIssues) > 0:
		text += " " + sum.CriticalIssues[0] + "."
	case len(sum.Recommendations) > 0:
		text += " " + sum.Recommendations[0] + "."
	case len(sum.Feedback) > 0:
		text += " " + sum.Feedback[0] + "."
	}
	return text
}

type Snapshot struct {
	ID          string
	Running     bool
	State       classify.State
	Intensity   float64
	PoseConf    float64
	LastSummary *aggregate.Summary
	LastTip     *advisory.Tip
	Summaries   int
	Tips        int
}

func (s *Session) Snapshot() Snapshot {
	running := s.Running()
	now := s.clock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:          s.id,
		Running:     running,
		State:       s.machine.State(),
		Intensity:   s.sampler.Smoothed(),
		PoseConf:    s.livePoseLocked(now).Confidence(),
		LastSummary: s.lastSummary,
		LastTip:     s.lastTip,
		Summaries:   s.summaries,
		Tips:        s.tips,
	}
}
