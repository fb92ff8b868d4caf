package main

import (
	"bytes"
	"strings"
	"testing"

	"coach/advisory"
	"coach/aggregate"
	"coach/classify"
	"coach/speech"
)

func TestLineObserver(t *testing.T) {
	var buf bytes.Buffer
	o := &lineObserver{w: &buf}
	o.Sample(1.2, classify.Moving)
	o.StateChanged(classify.Idle, classify.Active, 2.7)
	o.Tip(advisory.Tip{Text: "dropped", Priority: advisory.Low}, speech.DroppedBusy)
	o.Tip(advisory.Tip{Text: "Drive through the heels", Priority: advisory.Medium, Source: advisory.SourceCache}, speech.Spoken)
	o.Summary("abc", &aggregate.Summary{Score: 75, Phase: aggregate.Release, Samples: 150})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "idle -> active") {
		t.Errorf("state line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "[medium/cache] Drive through the heels") {
		t.Errorf("tip line = %q", lines[1])
	}
	if !strings.Contains(lines[2], "score=75") || !strings.Contains(lines[2], "samples=150") {
		t.Errorf("summary line = %q", lines[2])
	}
}

func TestSummaryText(t *testing.T) {
	if summaryText(nil) != "" {
		t.Error("nil summary should be empty")
	}
	s := &aggregate.Summary{
		Score:           40,
		Phase:           aggregate.Preparation,
		Feedback:        []string{"Steady tempo"},
		CriticalIssues:  []string{"No movement detected"},
		Recommendations: nil,
	}
	got := summaryText(s)
	for _, want := range []string{"Score 40/100 (preparation)", "Feedback:\n  - Steady tempo", "Critical:\n  - No movement detected"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary text missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Recommendations") {
		t.Error("empty groups should be omitted")
	}
}
