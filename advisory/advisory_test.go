package advisory

import (
	"context"
	"errors"
	"math/rand"
	"slices"
	"testing"
	"time"

	"coach/classify"
	"coach/motion"
	"coach/pose"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func upright() *pose.Summary { return pose.NewSummary(t0, pose.Upright()) }

func steadyWindow(n int, v motion.Vector) []motion.Sample {
	out := make([]motion.Sample, n)
	for i := range out {
		out[i] = motion.NewSample(t0.Add(time.Duration(i)*200*time.Millisecond), v)
	}
	return out
}

func TestClassifyCachedWithinTTL(t *testing.T) {
	fake := NewFake("rhythmic", "")
	a := New(fake)
	in := ClassifyInput{Intensity: 1.3, Window: steadyWindow(10, motion.Vector{X: 1, Y: 0.8}), Pose: upright()}

	first := a.Classify(context.Background(), t0, in)
	in.Intensity = 1.35 // same bucket
	second := a.Classify(context.Background(), t0.Add(1500*time.Millisecond), in)

	if fake.ClassifyCalls() != 1 {
		t.Fatalf("service called %d times, want 1", fake.ClassifyCalls())
	}
	if first != classify.Rhythmic || second != first {
		t.Errorf("got %s then %s, want rhythmic twice", first, second)
	}
	cs, _ := a.Stats()
	if cs.Hits != 1 || cs.Calls != 1 {
		t.Errorf("stats = %+v", cs)
	}
}

func TestClassifyUnknownLabelIsNone(t *testing.T) {
	a := New(NewFake("jumping jacks", ""))
	in := ClassifyInput{Window: steadyWindow(5, motion.Vector{Y: 1}), Pattern: classify.Controlled}
	if got := a.Classify(context.Background(), t0, in); got != classify.None {
		t.Errorf("got %s, want none", got)
	}
}

func TestClassifyFailureUsesPattern(t *testing.T) {
	fake := NewFake("", "")
	fake.Err = errors.New("quota exceeded")
	a := New(fake)
	in := ClassifyInput{Window: steadyWindow(5, motion.Vector{Y: 1}), Pattern: classify.Sustained}
	if got := a.Classify(context.Background(), t0, in); got != classify.Sustained {
		t.Errorf("got %s, want fallback sustained", got)
	}
	if cs, _ := a.Stats(); cs.Failures != 1 {
		t.Errorf("Failures = %d, want 1", cs.Failures)
	}
}

func TestTipRateLimitFallback(t *testing.T) {
	fake := NewFake("", "Keep your chest up")
	a := New(fake, WithRand(rand.New(rand.NewSource(1))))
	ctx := context.Background()

	first := a.Tip(ctx, t0, TipContext{Class: classify.Rhythmic, State: classify.Moving, Pose: upright()})
	if first.Source != SourceService || first.Text != "Keep your chest up" {
		t.Fatalf("first tip = %+v", first)
	}

	second := a.Tip(ctx, t0.Add(500*time.Millisecond), TipContext{Class: classify.Controlled, State: classify.Idle, Pose: upright()})
	if second.Source != SourceFallback {
		t.Fatalf("second tip source = %s, want fallback", second.Source)
	}
	if !slices.Contains(classTips[classify.Controlled], second.Text) {
		t.Errorf("fallback %q not from the controlled table", second.Text)
	}
	if second.Confidence != 0.6 {
		t.Errorf("fallback confidence = %v", second.Confidence)
	}
	if got := a.tips.LastInvocation(); !got.Equal(t0) {
		t.Errorf("lastInvocation moved to %v", got)
	}
	if fake.TipCalls() != 1 {
		t.Errorf("service called %d times, want 1", fake.TipCalls())
	}

	// 2 s after the first call the gate reopens.
	third := a.Tip(ctx, t0.Add(2*time.Second), TipContext{Class: classify.Sustained, State: classify.Active, Pose: upright()})
	if third.Source != SourceService {
		t.Errorf("third tip source = %s, want service", third.Source)
	}
}

func TestTipCacheHit(t *testing.T) {
	fake := NewFake("", "Nice pace")
	a := New(fake)
	tc := TipContext{Class: classify.Rhythmic, State: classify.Moving, Pose: upright()}
	a.Tip(context.Background(), t0, tc)
	got := a.Tip(context.Background(), t0.Add(time.Second), tc)
	if got.Source != SourceCache || got.Text != "Nice pace" || got.Confidence != 0.8 {
		t.Errorf("got %+v, want cached tip", got)
	}
}

func TestTipCachedFallbackKeepsFallbackSource(t *testing.T) {
	fake := NewFake("", "Nice pace")
	a := New(fake, WithRand(rand.New(rand.NewSource(3))))
	ctx := context.Background()
	a.Tip(ctx, t0, TipContext{Class: classify.Rhythmic, State: classify.Moving, Pose: upright()})

	tc := TipContext{Class: classify.Controlled, State: classify.Idle, Pose: upright()}
	throttled := a.Tip(ctx, t0.Add(500*time.Millisecond), tc)
	if throttled.Source != SourceFallback {
		t.Fatalf("throttled tip source = %s, want fallback", throttled.Source)
	}
	hit := a.Tip(ctx, t0.Add(time.Second), tc)
	if hit.Text != throttled.Text {
		t.Fatalf("cache hit %q, want %q", hit.Text, throttled.Text)
	}
	if hit.Source != SourceFallback || hit.Confidence != 0.6 {
		t.Errorf("cached fallback labelled %s/%v, want fallback/0.6", hit.Source, hit.Confidence)
	}
	if _, ts := a.Stats(); ts.Hits != 1 {
		t.Errorf("tip hits = %d, want 1", ts.Hits)
	}
}

func TestTipDegradedPoseSkipsService(t *testing.T) {
	fake := NewFake("", "should not be used")
	a := New(fake)
	for _, p := range []*pose.Summary{nil, {HighConfidence: 1, Total: 10}} {
		tip := a.Tip(context.Background(), t0, TipContext{Class: classify.Explosive, State: classify.Active, Pose: p})
		if !slices.Contains(degradedTips, tip.Text) {
			t.Errorf("got %q, want an adjust-position tip", tip.Text)
		}
		if tip.Source != SourceFallback {
			t.Errorf("source = %s", tip.Source)
		}
	}
	if fake.TipCalls() != 0 {
		t.Errorf("service called %d times", fake.TipCalls())
	}
}

func TestTipInvalidServiceText(t *testing.T) {
	long := "This is a very long piece of advice that keeps going on and on well past what anyone could say mid-rep"
	for _, text := range []string{"", "  \"\"  ", long} {
		a := New(NewFake("", text))
		tip := a.Tip(context.Background(), t0, TipContext{Class: classify.None, State: classify.Active, Pose: upright()})
		if tip.Source != SourceFallback || !slices.Contains(stateTips[classify.Active], tip.Text) {
			t.Errorf("service text %q: got %+v", text, tip)
		}
	}
}

func TestTipRequestParameters(t *testing.T) {
	fake := NewFake("", "Go")
	a := New(fake, WithModel("test-model"))
	a.Tip(context.Background(), t0, TipContext{Class: classify.Sustained, State: classify.Active, Pose: upright(), LastScore: 75})
	req := fake.LastTipRequest()
	if req.Model != "test-model" || req.MaxTokens != 40 || req.Temperature != 0.7 {
		t.Errorf("request = %+v", req)
	}
	if req.Prompt == "" {
		t.Error("empty prompt")
	}
}

func TestPriority(t *testing.T) {
	tests := []struct {
		tc   TipContext
		want Priority
	}{
		{TipContext{Class: classify.Explosive, State: classify.Idle}, High},
		{TipContext{Class: classify.None, State: classify.Idle, Critical: true}, High},
		{TipContext{Class: classify.Rhythmic, State: classify.Active}, Medium},
		{TipContext{Class: classify.Controlled, State: classify.Moving}, Low},
	}
	for _, tt := range tests {
		if got := priorityOf(tt.tc); got != tt.want {
			t.Errorf("priorityOf(%+v) = %s, want %s", tt.tc, got, tt.want)
		}
	}
}

func TestCleanTip(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"  \"Keep your back straight\"\n", "Keep your back straight", false},
		{"**Breathe out on the push**", "Breathe out on the push", false},
		{"“Chin up”", "Chin up", false},
		{"***", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := cleanTip(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("cleanTip(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestFallbackDeterministicWithSeed(t *testing.T) {
	tc := TipContext{Class: classify.Explosive, State: classify.Active, Pose: upright()}
	pick := func() []string {
		a := New(nil, WithRand(rand.New(rand.NewSource(42))))
		var out []string
		for i := 0; i < 5; i++ {
			out = append(out, a.Tip(context.Background(), t0, tc).Text)
		}
		return out
	}
	if a, b := pick(), pick(); !slices.Equal(a, b) {
		t.Errorf("same seed gave %v and %v", a, b)
	}
}

func TestFallbackTablesFitSpeech(t *testing.T) {
	all := slices.Clone(degradedTips)
	for _, v := range classTips {
		all = append(all, v...)
	}
	for _, v := range stateTips {
		all = append(all, v...)
	}
	for _, tip := range all {
		if got, err := cleanTip(tip); err != nil || got != tip {
			t.Errorf("fallback %q does not pass validation", tip)
		}
	}
}
