package advisory

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"coach/classify"
	"coach/motion"
	"coach/pose"
)

const (
	classifyMaxTokens   = 5
	classifyTemperature = 0.1
	tipMaxTokens        = 40
	tipTemperature      = 0.7
)

// ClassifyInput is what the classification channel is keyed and prompted on.
// Pattern is the deterministic class used whenever the service is bypassed.
type ClassifyInput struct {
	Intensity float64
	Window    []motion.Sample
	Pose      *pose.Summary
	Pattern   classify.Class
}

type Option func(*Advisor)

// WithRand sets the random source used to pick fallback tips.
func WithRand(r *rand.Rand) Option {
	return func(a *Advisor) { a.rng = r }
}

func WithModel(model string) Option {
	return func(a *Advisor) { a.model = model }
}

// WithChannels overrides the cache and rate-limit settings.
func WithChannels(classifyCfg, tipCfg Config) Option {
	return func(a *Advisor) {
		a.classes = NewChannel[classify.Class](classifyCfg)
		a.tips = NewChannel[string](tipCfg)
	}
}

// Advisor turns session snapshots into movement classes and coaching tips. It
// is shared across sessions and safe for concurrent use.
type Advisor struct {
	svc   Service
	model string

	classes *Channel[classify.Class]
	tips    *Channel[string]

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New returns an Advisor. A nil service makes every result a fallback.
func New(svc Service, opts ...Option) *Advisor {
	a := &Advisor{
		svc:     svc,
		model:   DefaultModel,
		classes: NewChannel[classify.Class](ClassifyConfig),
		tips:    NewChannel[string](TipConfig),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *Advisor) Classify(ctx context.Context, now time.Time, in ClassifyInput) classify.Class {
	if a.svc == nil {
		return in.Pattern
	}
	c, _ := a.classes.Do(ctx, now, ClassifySignature(in),
		func(ctx context.Context) (classify.Class, error) {
			text, err := a.svc.Classify(ctx, Request{
				Model:       a.model,
				Prompt:      classifyPrompt(in),
				MaxTokens:   classifyMaxTokens,
				Temperature: classifyTemperature,
			})
			if err != nil {
				return classify.None, err
			}
			return classify.ParseClass(text), nil
		},
		func() classify.Class { return in.Pattern },
	)
	return c
}

func (a *Advisor) Tip(ctx context.Context, now time.Time, tc TipContext) Tip {
	t := Tip{
		Priority:    priorityOf(tc),
		SourceScore: tc.LastScore,
		Time:        now,
		Source:      SourceFallback,
	}
	if a.svc == nil || tc.degraded() {
		t.Text = a.pick(candidates(tc))
		t.Confidence = confidenceOf(t.Source)
		return t
	}
	text, origin := a.tips.Do(ctx, now, TipSignature(tc),
		func(ctx context.Context) (string, error) {
			raw, err := a.svc.GenerateTip(ctx, Request{
				Model:       a.model,
				Prompt:      tipPrompt(tc),
				MaxTokens:   tipMaxTokens,
				Temperature: tipTemperature,
			})
			if err != nil {
				return "", err
			}
			return cleanTip(raw)
		},
		func() string { return a.pick(candidates(tc)) },
	)
	t.Text = text
	switch origin {
	case FromService:
		t.Source = SourceService
	case FromCache:
		t.Source = SourceCache
	}
	t.Confidence = confidenceOf(t.Source)
	return t
}

func (a *Advisor) pick(list []string) string {
	a.rngMu.Lock()
	defer a.rngMu.Unlock()
	return list[a.rng.Intn(len(list))]
}

// ResetGates clears the rate limit on both channels.
func (a *Advisor) ResetGates() {
	a.classes.ResetGate()
	a.tips.ResetGate()
}

func (a *Advisor) Purge() {
	a.classes.Purge()
	a.tips.Purge()
}

// Stats returns classification and tip channel counters.
func (a *Advisor) Stats() (classes, tips Stats) {
	return a.classes.Stats(), a.tips.Stats()
}

func classifyPrompt(in ClassifyInput) string {
	f := classify.Extract(in.Window, in.Pose)
	return fmt.Sprintf(
		"Smoothed intensity %.2f g. Last %d samples: mean %.2f g, variance %.3f, mean |x| %.2f, |y| %.2f, |z| %.2f. Pose confidence %.2f.",
		in.Intensity, f.N, f.Avg, f.Variance, f.AbsX, f.AbsY, f.AbsZ, f.PoseConf)
}

func tipPrompt(tc TipContext) string {
	a := pose.Align(tc.Pose)
	prompt := fmt.Sprintf("Movement: %s. State: %s. Intensity %.2f g. Pose quality: %s.",
		tc.Class, tc.State, tc.Intensity, QualityTier(tc.Pose.Confidence()))
	if a.OK {
		prompt += fmt.Sprintf(" Shoulder tilt %.0f°, hip tilt %.0f°, torso lean %.0f°.",
			a.ShoulderTilt, a.HipTilt, a.TorsoLean)
	}
	if tc.LastScore > 0 {
		prompt += fmt.Sprintf(" Last 30 s form score %d/100.", tc.LastScore)
	}
	return prompt + " Give one cue."
}
