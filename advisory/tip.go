package advisory

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"coach/classify"
	"coach/pose"
)

const maxTipLen = 80

type Priority string

const (
	High   Priority = "high"
	Medium Priority = "medium"
	Low    Priority = "low"
)

type Source string

const (
	SourceService  Source = "service"
	SourceCache    Source = "cache"
	SourceFallback Source = "fallback"
	SourceSummary  Source = "summary" // spoken recap of an emitted summary
)

// Tip is one coaching utterance ready for the speech dispatcher.
type Tip struct {
	Text        string    `json:"text"`
	Priority    Priority  `json:"priority"`
	Confidence  float64   `json:"confidence"`
	SourceScore int       `json:"source_score"`
	Time        time.Time `json:"time"`
	Source      Source    `json:"source"`
}

// TipContext is the session snapshot a tip is generated from.
type TipContext struct {
	Class     classify.Class
	State     classify.State
	Pose      *pose.Summary
	Intensity float64
	LastScore int
	Critical  bool // last summary reported critical issues
}

func (tc TipContext) degraded() bool {
	return tc.Pose == nil || tc.Pose.Confidence() < 0.3
}

func priorityOf(tc TipContext) Priority {
	switch {
	case tc.Class == classify.Explosive || tc.Critical:
		return High
	case tc.State == classify.Active:
		return Medium
	}
	return Low
}

func confidenceOf(s Source) float64 {
	switch s {
	case SourceService:
		return 0.9
	case SourceCache:
		return 0.8
	}
	return 0.6
}

var errInvalidTip = errors.New("invalid tip text")

// cleanTip trims service output and rejects anything that would not make a
// short spoken cue.
func cleanTip(s string) (string, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "*", "")
	s = strings.Trim(s, "\"'`“”‘’ \t\n")
	s = strings.Join(strings.Fields(s), " ")
	if s == "" || utf8.RuneCountInString(s) > maxTipLen {
		return "", errInvalidTip
	}
	return s, nil
}
