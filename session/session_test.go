package session

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"coach/advisory"
	"coach/aggregate"
	"coach/classify"
	"coach/motion"
	"coach/pose"
	"coach/speech"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type recorder struct {
	mu        sync.Mutex
	samples   int
	changes   []classify.State
	summaries []*aggregate.Summary
	tips      []speech.Outcome
}

func (r *recorder) Sample(float64, classify.State) {
	r.mu.Lock()
	r.samples++
	r.mu.Unlock()
}

func (r *recorder) StateChanged(_, to classify.State, _ float64) {
	r.mu.Lock()
	r.changes = append(r.changes, to)
	r.mu.Unlock()
}

func (r *recorder) Summary(_ string, s *aggregate.Summary) {
	r.mu.Lock()
	r.summaries = append(r.summaries, s)
	r.mu.Unlock()
}

func (r *recorder) Tip(_ advisory.Tip, out speech.Outcome) {
	r.mu.Lock()
	r.tips = append(r.tips, out)
	r.mu.Unlock()
}

type sink struct {
	ids []string
}

func (s *sink) Publish(id string, _ *aggregate.Summary) error {
	s.ids = append(s.ids, id)
	return nil
}

type fixture struct {
	s       *Session
	now     time.Time
	obs     *recorder
	sink    *sink
	speaker *speech.FakeSpeaker
	svc     *advisory.Fake
	advisor *advisory.Advisor
}

func newFixture(t *testing.T, src motion.Source, poses pose.Source, cfg Config) *fixture {
	t.Helper()
	f := &fixture{now: t0, obs: &recorder{}, sink: &sink{}, speaker: &speech.FakeSpeaker{AutoDone: true}}
	f.svc = advisory.NewFake("sustained", "Stay tall and keep pushing")
	f.advisor = advisory.New(f.svc, advisory.WithRand(rand.New(rand.NewSource(7))))
	clock := func() time.Time { return f.now }
	f.s = New(cfg, Deps{
		Motion:    src,
		Poses:     poses,
		Advisor:   f.advisor,
		Speech:    speech.NewDispatcher(f.speaker, speech.WithClock(clock)),
		Observers: []Observer{f.obs},
		Sinks:     []SummarySink{f.sink},
	}, WithClock(clock))
	return f
}

func (f *fixture) advance(d time.Duration) time.Time {
	f.now = f.now.Add(d)
	return f.now
}

func TestStepPipeline(t *testing.T) {
	p := pose.NewSummary(t0, pose.Upright())
	f := newFixture(t, motion.Intensities(true, 3.0), pose.NewFake(true, p), DefaultConfig())
	ctx := context.Background()

	for i := 0; i < 155; i++ {
		f.s.Step(ctx, f.advance(200*time.Millisecond))
	}

	snap := f.s.Snapshot()
	if snap.State != classify.Active {
		t.Errorf("state = %s, want active", snap.State)
	}
	if len(f.obs.changes) != 1 || f.obs.changes[0] != classify.Active {
		t.Errorf("state changes = %v, want [active]", f.obs.changes)
	}
	if len(f.obs.summaries) != 1 {
		t.Fatalf("summaries = %d, want 1", len(f.obs.summaries))
	}
	sum := f.obs.summaries[0]
	if math.Abs(sum.AvgIntensity-3.0) > 1e-9 || sum.Phase != aggregate.Release {
		t.Errorf("summary = %+v", sum)
	}
	if len(f.sink.ids) != 1 {
		t.Errorf("sink got %d summaries", len(f.sink.ids))
	}
	if f.svc.TipCalls() == 0 {
		t.Error("service never asked for a tip")
	}
	serviceTips, recaps := 0, 0
	for _, c := range f.speaker.Calls() {
		switch {
		case c.Text == "Stay tall and keep pushing":
			serviceTips++
		case strings.HasPrefix(c.Text, "Last 30 seconds"):
			recaps++
		}
	}
	if serviceTips == 0 || recaps != 1 {
		t.Errorf("service tips = %d, recaps = %d; calls = %+v", serviceTips, recaps, f.speaker.Calls())
	}
	// One tip per 4 s at most for the same text over 31 s.
	if serviceTips > 10 {
		t.Errorf("same tip spoken %d times", serviceTips)
	}
}

func TestNoInputNoTips(t *testing.T) {
	f := newFixture(t, motion.Intensities(false), nil, DefaultConfig())
	f.s.Step(context.Background(), f.advance(time.Second))
	if len(f.speaker.Calls()) != 0 || f.svc.ClassifyCalls() != 0 {
		t.Error("tips generated without any input")
	}
}

func TestCriticalSummaryRaisesPriority(t *testing.T) {
	f := newFixture(t, motion.Intensities(true, 0.2), nil, DefaultConfig())
	f.s.cfg.SpeakSummaries = false
	for i := 0; i < 151; i++ {
		f.s.SampleStep(f.advance(200 * time.Millisecond))
		f.s.EmitStep(f.now)
	}
	snap := f.s.Snapshot()
	if snap.LastSummary == nil || len(snap.LastSummary.CriticalIssues) == 0 {
		t.Fatalf("expected a summary with critical issues, got %+v", snap.LastSummary)
	}
	f.advance(5 * time.Second)
	f.s.TipStep(context.Background(), f.now)
	if len(f.obs.tips) != 1 {
		t.Fatalf("tips = %v", f.obs.tips)
	}
	calls := f.speaker.Calls()
	// No pose: degraded fallback, but still high priority.
	if got := calls[len(calls)-1].Opts; got != speech.OptionsFor(advisory.High) {
		t.Errorf("opts = %+v, want high priority", got)
	}
}

func TestStalePoseExpires(t *testing.T) {
	f := newFixture(t, motion.Intensities(true, 3.0), pose.NewFake(false, pose.NewSummary(t0, pose.Upright())), DefaultConfig())
	ctx := context.Background()
	f.s.PoseStep(f.now)
	f.s.SampleStep(f.advance(200 * time.Millisecond))
	if f.s.Snapshot().PoseConf == 0 {
		t.Fatal("expected a live pose")
	}
	tipCalls := f.svc.TipCalls()

	for i := 0; i < 25; i++ {
		f.s.PoseStep(f.advance(200 * time.Millisecond))
		f.s.SampleStep(f.now)
	}
	if conf := f.s.Snapshot().PoseConf; conf != 0 {
		t.Errorf("pose confidence %v, want 0 once the feed stopped", conf)
	}
	f.s.TipStep(ctx, f.now)
	if f.svc.TipCalls() != tipCalls {
		t.Error("service asked for a tip without a pose")
	}
	calls := f.speaker.Calls()
	if len(calls) == 0 || calls[len(calls)-1].Text == "Stay tall and keep pushing" {
		t.Errorf("want an adjust-position fallback, got %+v", calls)
	}
}

func TestLostInputReturnsToIdle(t *testing.T) {
	vals := make([]float64, 10)
	for i := range vals {
		vals[i] = 3.0
	}
	f := newFixture(t, motion.Intensities(false, vals...), nil, DefaultConfig())
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		f.s.Step(ctx, f.advance(200*time.Millisecond))
	}
	if st := f.s.Snapshot().State; st != classify.Active {
		t.Fatalf("state = %s, want active", st)
	}

	for i := 0; i < 50; i++ {
		f.s.SampleStep(f.advance(200 * time.Millisecond))
	}
	snap := f.s.Snapshot()
	if snap.State != classify.Idle || snap.Intensity != 0 {
		t.Errorf("state=%s intensity=%v after input stopped, want idle/0", snap.State, snap.Intensity)
	}
	if n := len(f.obs.changes); n == 0 || f.obs.changes[n-1] != classify.Idle {
		t.Errorf("state changes = %v, want a final idle", f.obs.changes)
	}

	spoken := len(f.speaker.Calls())
	f.s.TipStep(ctx, f.advance(5*time.Second))
	if n := len(f.speaker.Calls()); n != spoken {
		t.Errorf("tip spoken without any input (%d calls)", n-spoken)
	}
}

type blockingService struct {
	release chan struct{}
	entered chan struct{}
	once    sync.Once
}

func (b *blockingService) Classify(ctx context.Context, _ advisory.Request) (string, error) {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return "none", nil
}

func (b *blockingService) GenerateTip(context.Context, advisory.Request) (string, error) {
	return "Late tip", nil
}

func TestStaleTipDiscarded(t *testing.T) {
	svc := &blockingService{release: make(chan struct{}), entered: make(chan struct{})}
	speaker := &speech.FakeSpeaker{AutoDone: true}
	s := New(DefaultConfig(), Deps{
		Motion:  motion.Intensities(true, 2.0),
		Poses:   pose.NewFake(true, pose.NewSummary(t0, pose.Upright())),
		Advisor: advisory.New(svc),
		Speech:  speech.NewDispatcher(speaker),
	}, WithClock(func() time.Time { return t0 }))

	s.PoseStep(t0)
	s.SampleStep(t0)
	s.tipStep(context.Background(), t0, true)
	<-svc.entered

	s.tipStep(context.Background(), t0, true) // skipped while one is in flight
	s.mu.Lock()
	s.gen++
	s.mu.Unlock()
	close(svc.release)

	deadline := time.Now().Add(2 * time.Second)
	for s.tipBusy.Load() {
		if time.Now().After(deadline) {
			t.Fatal("tip goroutine never finished")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if n := len(speaker.Calls()); n != 0 {
		t.Errorf("stale tip was spoken (%d calls)", n)
	}
}

func TestStartStopIdempotent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SampleEvery = 2 * time.Millisecond
	cfg.PoseEvery = 5 * time.Millisecond
	cfg.TipEvery = 5 * time.Millisecond
	cfg.EmitEvery = 5 * time.Millisecond
	p := pose.NewSummary(t0, pose.Upright())
	f := newFixture(t, motion.Intensities(true, 1.0, 2.0), pose.NewFake(true, p), cfg)

	ctx := context.Background()
	if err := f.s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	first := f.s.Snapshot().ID
	if err := f.s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if f.s.Snapshot().ID != first {
		t.Error("second Start created a new session")
	}
	time.Sleep(50 * time.Millisecond)
	f.s.Stop()
	f.s.Stop()

	if f.s.Running() {
		t.Fatal("still running after Stop")
	}
	if f.speaker.Stops() != 1 {
		t.Errorf("speech stopped %d times, want 1", f.speaker.Stops())
	}
	cs, ts := f.advisor.Stats()
	if cs.Entries != 0 || ts.Entries != 0 {
		t.Errorf("cache not purged: %d/%d entries", cs.Entries, ts.Entries)
	}
	snap := f.s.Snapshot()
	if snap.State != classify.Idle || snap.Intensity != 0 {
		t.Errorf("buffers not cleared: %+v", snap)
	}

	if err := f.s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if f.s.Snapshot().ID == first {
		t.Error("restart reused the session id")
	}
	f.s.Stop()
}

func TestRetainCache(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RetainCache = true
	f := newFixture(t, motion.Intensities(true, 1.0), pose.NewFake(true, pose.NewSummary(t0, pose.Upright())), cfg)
	f.s.Step(context.Background(), f.advance(time.Second))
	f.s.Start(context.Background())
	f.s.Stop()
	if cs, _ := f.advisor.Stats(); cs.Entries == 0 {
		t.Error("cache purged despite RetainCache")
	}
}

func TestRecap(t *testing.T) {
	sum := &aggregate.Summary{Score: 55, CriticalIssues: []string{"No movement detected"}}
	if got := Recap(sum); got != "Last 30 seconds, score 55. No movement detected." {
		t.Errorf("Recap = %q", got)
	}
}
