package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"coach/advisory"
	"coach/aggregate"
	"coach/classify"
	"coach/session"
	"coach/speech"
)

type tickMsg time.Time

// sessionMsg reports the result of a start or stop issued from the UI.
type sessionMsg struct {
	Running bool
	Err     error
}

const (
	historyLen = 40
	gaugeWidth = 30
	gaugeMax   = 4.0 // g
)

type tuiModel struct {
	ctx  context.Context
	sess *session.Session
	app  *app

	frame         int
	width, height int
	running       bool
	toggling      bool
	state         classify.State
	intensity     float64
	history       []float64
	lastTip       *advisory.Tip
	lastSummary   *aggregate.Summary
	summaryCount  int
	snap          session.Snapshot
	note          string
}

// Pre-computed styles, indexed by classify.State
var (
	stateColors = []string{"241", "214", "196"}
	stateStyles [3]lipgloss.Style
	sparkBlocks = []rune("▁▂▃▄▅▆▇█")
)

func init() {
	for i, c := range stateColors {
		stateStyles[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(c)).Bold(true)
	}
}

func newTUIModel(ctx context.Context, sess *session.Session, a *app) tuiModel {
	return tuiModel{ctx: ctx, sess: sess, app: a}
}

func tuiTick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

// toggleSession runs Start or Stop off the update loop. Stop waits for the
// session tasks, which may be blocked sending to this program.
func (m tuiModel) toggleSession() tea.Cmd {
	sess, ctx := m.sess, m.ctx
	return func() tea.Msg {
		if sess.Running() {
			sess.Stop()
			return sessionMsg{Running: false}
		}
		err := sess.Start(ctx)
		return sessionMsg{Running: err == nil, Err: err}
	}
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "s", " ":
			if m.toggling || m.sess == nil {
				return m, nil
			}
			m.toggling = true
			return m, m.toggleSession()
		case "c":
			if m.lastSummary == nil {
				m.note = "nothing to copy yet"
				return m, nil
			}
			if err := clipboard.WriteAll(summaryText(m.lastSummary)); err != nil {
				m.note = "copy failed: " + err.Error()
			} else {
				m.note = "summary copied"
			}
		}

	case tickMsg:
		m.frame++
		if m.sess != nil {
			m.snap = m.sess.Snapshot()
		}
		return m, tuiTick()

	case sessionMsg:
		m.toggling = false
		m.running = msg.Running
		if msg.Err != nil {
			m.note = "start failed: " + msg.Err.Error()
		} else if msg.Running {
			m.note = ""
			m.history = m.history[:0]
			m.lastTip = nil
			m.lastSummary = nil
			m.summaryCount = 0
		}

	case sampleMsg:
		m.intensity = msg.Intensity
		m.state = msg.State
		m.history = append(m.history, msg.Intensity)
		if len(m.history) > historyLen {
			m.history = m.history[len(m.history)-historyLen:]
		}

	case stateMsg:
		m.state = msg.To

	case summaryMsg:
		m.lastSummary = msg.Summary
		m.summaryCount++

	case tipMsg:
		if msg.Outcome == speech.Spoken {
			t := msg.Tip
			m.lastTip = &t
		}
	}
	return m, nil
}

func renderGauge(intensity float64, st classify.State) string {
	filled := int(intensity / gaugeMax * gaugeWidth)
	if filled > gaugeWidth {
		filled = gaugeWidth
	}
	if filled < 0 {
		filled = 0
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", gaugeWidth-filled)
	return stateStyles[st].Render(bar)
}

func renderSparkline(history []float64) string {
	if len(history) == 0 {
		return ""
	}
	var b strings.Builder
	top := len(sparkBlocks) - 1
	for _, v := range history {
		i := int(v / gaugeMax * float64(top))
		if i > top {
			i = top
		}
		if i < 0 {
			i = 0
		}
		b.WriteRune(sparkBlocks[i])
	}
	return b.String()
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	const leftWidth = 40
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	faint := lipgloss.NewStyle().Foreground(lipgloss.Color("239"))

	var left []string
	if m.running {
		dot := "●"
		if m.frame%4 >= 2 {
			dot = "○"
		}
		left = append(left, lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true).
			Render(fmt.Sprintf("%s COACHING  %s", dot, shortID(m.snap.ID))))
	} else {
		left = append(left, dim.Render("○ STANDBY"))
	}
	if m.app != nil && m.app.modeLine != "" {
		left = append(left, lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render(m.app.modeLine))
	}
	left = append(left, "")

	left = append(left, stateStyles[m.state].Render(strings.ToUpper(m.state.String())))
	left = append(left, renderGauge(m.intensity, m.state))
	left = append(left, dim.Render(fmt.Sprintf("%.2f g  pose %.0f%%", m.intensity, m.snap.PoseConf*100)))
	left = append(left, dim.Render(renderSparkline(m.history)))
	left = append(left, "")

	if m.app != nil {
		classes, tips := m.app.advisor.Stats()
		left = append(left, dim.Render(fmt.Sprintf("classify  %d calls  %d hits  %d fail", classes.Calls, classes.Hits, classes.Failures)))
		left = append(left, dim.Render(fmt.Sprintf("tips      %d calls  %d hits  %d fail", tips.Calls, tips.Hits, tips.Failures)))
		if m.app.ingest != nil {
			st := m.app.ingest.Stats()
			left = append(left, dim.Render(fmt.Sprintf("ingest    %d clients  %d rejected", st.Clients, st.Rejected)))
		}
		if m.app.mqtt != nil {
			st := m.app.mqtt.Stats()
			left = append(left, dim.Render(fmt.Sprintf("mqtt      %d sent  %d errors", st.Published, st.Errors)))
		}
	}
	left = append(left, "")

	if m.note != "" {
		left = append(left, lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Render(m.note))
	}
	bold := lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	left = append(left, bold.Render("s")+faint.Render(" start/stop  ")+bold.Render("c")+faint.Render(" copy  ")+bold.Render("q")+faint.Render(" quit"))
	left = append(left, faint.Render("coach "+version))

	rightWidth := m.width - leftWidth - 1
	if rightWidth < 20 {
		rightWidth = 20
	}
	wrapWidth := rightWidth - 2
	if wrapWidth < 10 {
		wrapWidth = 10
	}

	var right strings.Builder
	title := lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	if m.lastTip != nil {
		right.WriteString(title.Render(fmt.Sprintf("Last tip (%s, %s)", m.lastTip.Priority, m.lastTip.Source)) + "\n\n")
		tipStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
		if m.lastTip.Priority == advisory.High {
			tipStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
		}
		for _, line := range wrapText(m.lastTip.Text, wrapWidth) {
			right.WriteString(tipStyle.Render(line) + "\n")
		}
	} else {
		right.WriteString(dim.Render("No tips yet") + "\n")
	}
	right.WriteString("\n")

	if s := m.lastSummary; s != nil {
		right.WriteString(title.Render(fmt.Sprintf("Summary #%d: %d/100 (%s)", m.summaryCount, s.Score, s.Phase)) + "\n\n")
		metrics := lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
		right.WriteString(metrics.Render(fmt.Sprintf("avg %.2f  min %.2f  max %.2f g", s.AvgIntensity, s.MinIntensity, s.MaxIntensity)) + "\n")
		right.WriteString(metrics.Render(fmt.Sprintf("%d samples  %d poses", s.Samples, s.PoseSamples)) + "\n")
		bad := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
		for _, it := range s.CriticalIssues {
			for _, line := range wrapText("! "+it, wrapWidth) {
				right.WriteString(bad.Render(line) + "\n")
			}
		}
		for _, it := range append(append([]string{}, s.Feedback...), s.Recommendations...) {
			for _, line := range wrapText("- "+it, wrapWidth) {
				right.WriteString(line + "\n")
			}
		}
	} else {
		right.WriteString(dim.Render("No summaries yet"))
	}

	leftPadded := make([]string, m.height)
	for i := range leftPadded {
		if i < len(left) {
			leftPadded[i] = left[i]
		}
	}
	leftPanel := lipgloss.NewStyle().
		Width(leftWidth - 1).
		Height(m.height).
		Render(strings.Join(leftPadded, "\n"))
	rightPanel := lipgloss.NewStyle().
		Width(rightWidth).
		Height(m.height).
		PaddingLeft(1).
		Render(right.String())

	return lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, rightPanel)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		// Find last space within width
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
