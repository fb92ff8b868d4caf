package main

import (
	"fmt"
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"coach/advisory"
	"coach/aggregate"
	"coach/classify"
	"coach/speech"
)

// TUI message types
type sampleMsg struct {
	Intensity float64
	State     classify.State
}
type stateMsg struct {
	From, To  classify.State
	Intensity float64
}
type summaryMsg struct {
	SessionID string
	Summary   *aggregate.Summary
}
type tipMsg struct {
	Tip     advisory.Tip
	Outcome speech.Outcome
}

// tuiObserver forwards session events to the Bubble Tea program.
type tuiObserver struct {
	mu sync.Mutex
	p  *tea.Program
}

func (o *tuiObserver) attach(p *tea.Program) {
	o.mu.Lock()
	o.p = p
	o.mu.Unlock()
}

func (o *tuiObserver) send(msg tea.Msg) {
	o.mu.Lock()
	p := o.p
	o.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func (o *tuiObserver) Sample(intensity float64, st classify.State) {
	o.send(sampleMsg{Intensity: intensity, State: st})
}

func (o *tuiObserver) StateChanged(from, to classify.State, intensity float64) {
	o.send(stateMsg{From: from, To: to, Intensity: intensity})
}

func (o *tuiObserver) Summary(id string, s *aggregate.Summary) {
	o.send(summaryMsg{SessionID: id, Summary: s})
}

func (o *tuiObserver) Tip(t advisory.Tip, out speech.Outcome) {
	o.send(tipMsg{Tip: t, Outcome: out})
}

// lineObserver prints events as plain lines for headless and replay runs.
type lineObserver struct {
	mu sync.Mutex
	w  io.Writer
}

func (o *lineObserver) printf(format string, args ...any) {
	o.mu.Lock()
	fmt.Fprintf(o.w, format+"\n", args...)
	o.mu.Unlock()
}

func (o *lineObserver) Sample(float64, classify.State) {}

func (o *lineObserver) StateChanged(from, to classify.State, intensity float64) {
	o.printf("state  %s -> %s (%.2f g)", from, to, intensity)
}

func (o *lineObserver) Summary(id string, s *aggregate.Summary) {
	o.printf("summary score=%d phase=%s avg=%.2f max=%.2f samples=%d poses=%d",
		s.Score, s.Phase, s.AvgIntensity, s.MaxIntensity, s.Samples, s.PoseSamples)
}

func (o *lineObserver) Tip(t advisory.Tip, out speech.Outcome) {
	if out != speech.Spoken {
		return
	}
	o.printf("tip    [%s/%s] %s", t.Priority, t.Source, t.Text)
}

// summaryText is the clipboard form of a summary.
func summaryText(s *aggregate.Summary) string {
	if s == nil {
		return ""
	}
	text := fmt.Sprintf("Score %d/100 (%s)\nIntensity avg %.2f, min %.2f, max %.2f g\nSamples %d, poses %d\n",
		s.Score, s.Phase, s.AvgIntensity, s.MinIntensity, s.MaxIntensity, s.Samples, s.PoseSamples)
	for _, group := range []struct {
		title string
		items []string
	}{
		{"Feedback", s.Feedback},
		{"Critical", s.CriticalIssues},
		{"Recommendations", s.Recommendations},
	} {
		if len(group.items) == 0 {
			continue
		}
		text += group.title + ":\n"
		for _, it := range group.items {
			text += "  - " + it + "\n"
		}
	}
	return text
}
