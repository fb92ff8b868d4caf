package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog   zerolog.Logger
	diagFile  *os.File
	coachFile *os.File
	logMu     sync.Mutex
	logReady  atomic.Bool
	debug     bool
	pid       int
	dir       string
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		if !filepath.IsAbs(flagPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, flagPath), nil
		}
		return flagPath, nil
	}

	// Priority 2: COACH_LOG_PATH environment variable
	envPath := os.Getenv("COACH_LOG_PATH")
	if envPath != "" {
		if !filepath.IsAbs(envPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, envPath), nil
		}
		return envPath, nil
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func SetDebug(on bool) {
	debug = on
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	coachPath := filepath.Join(dir, "coaching_log.txt")
	coachFile, err = os.OpenFile(coachPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05.000",
		NoColor:    true,
	}
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	diagLog = zerolog.New(consoleWriter).Level(level).With().Timestamp().Int("pid", pid).Logger()

	logReady.Store(true)
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if coachFile != nil {
		coachFile.Close()
		coachFile = nil
	}
	logReady.Store(false)
}

func Info(msg string) {
	if logReady.Load() {
		diagLog.Info().Msg(msg)
	}
}

func Debugf(format string, args ...any) {
	if logReady.Load() {
		diagLog.Debug().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady.Load() {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady.Load() {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady.Load() {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady.Load() {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

// AdvisoryFailure records a failed advisory call. The error is expected to carry
// a stack trace, which is kept on its own field.
func AdvisoryFailure(channel string, err error, stack string) {
	if !logReady.Load() {
		return
	}
	ev := diagLog.Warn().Str("channel", channel).Err(err)
	if stack != "" {
		ev = ev.Str("stack", stack)
	}
	ev.Msg("advisory_failure")
}

type AdvisoryData struct {
	Channel   string
	Origin    string
	Signature string
	LatencyMs float64
}

func AdvisoryCall(d AdvisoryData) {
	if !logReady.Load() {
		return
	}
	diagLog.Debug().
		Str("channel", d.Channel).
		Str("origin", d.Origin).
		Str("sig", d.Signature).
		Float64("latency_ms", d.LatencyMs).
		Msg("advisory_call")
}

func StateChange(from, to string, intensity float64) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().
		Str("from", from).
		Str("to", to).
		Float64("intensity", intensity).
		Msg("state_change")
}

func TipDispatched(text, source, priority, outcome string) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().
		Str("source", source).
		Str("priority", priority).
		Str("outcome", outcome).
		Str("text", text).
		Msg("tip")
}

type SummaryData struct {
	Score        int
	Phase        string
	AvgIntensity float64
	MaxIntensity float64
	Samples      int
	PoseSamples  int
}

func SummaryEmitted(d SummaryData) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().
		Int("score", d.Score).
		Str("phase", d.Phase).
		Float64("avg", d.AvgIntensity).
		Float64("max", d.MaxIntensity).
		Int("samples", d.Samples).
		Int("poses", d.PoseSamples).
		Msg("summary")
}

type SpeechMetricsData struct {
	SynthMs float64
	TTFBMs  float64
	TLSMs   float64
	AudioS  float64
	AudioKB float64
	Reused  bool
}

func SpeechMetrics(m SpeechMetricsData) {
	if !logReady.Load() {
		return
	}
	connStatus := "new"
	if m.Reused {
		connStatus = "reused"
	}
	diagLog.Info().
		Str("conn", connStatus).
		Float64("synth_ms", m.SynthMs).
		Float64("ttfb_ms", m.TTFBMs).
		Float64("tls_ms", m.TLSMs).
		Float64("audio_s", m.AudioS).
		Float64("audio_kb", m.AudioKB).
		Msg("speech")
}

// Utterance appends spoken text to the coaching transcript.
func Utterance(text string) {
	if !logReady.Load() {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	if coachFile == nil {
		return
	}
	line := fmt.Sprintf("%s\t[%d]\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, text)
	coachFile.WriteString(line)
}

func SessionStart(id, provider, speaker string) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().
		Str("session", id).
		Str("provider", provider).
		Str("speaker", speaker).
		Msg("session_start")
}

func SessionEnd(id string, summaries, tips int) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().
		Str("session", id).
		Int("summaries", summaries).
		Int("tips", tips).
		Msg("session_end")
}
