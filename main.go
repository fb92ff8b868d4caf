package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"coach/advisory"
	"coach/config"
	"coach/doctor"
	"coach/ingest"
	"coach/log"
	"coach/motion"
	"coach/publish"
	"coach/session"
	"coach/shutdown"
	"coach/speech"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds everything built from the configuration.
type app struct {
	cfg      *config.Config
	advisor  *advisory.Advisor
	dispatch *speech.Dispatcher
	cues     *speech.Cues
	motion   *motion.ChannelSource
	poses    *ingest.PoseSource
	ingest   *ingest.Server
	mqtt     *publish.MQTT
	modeLine string
}

func initCrashLog() {
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}

func run() error {
	configFlag := flag.String("config", "", "YAML config file (default: ./coach.yaml when present)")
	envFlag := flag.String("env", ".env", "dotenv file with API keys")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	replayFlag := flag.String("replay", "", "Replay a JSONL sensor recording instead of listening for clients")
	speedFlag := flag.Float64("speed", 1.0, "Replay speed multiplier")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI when stdout is a terminal")
	seedFlag := flag.Int64("seed", 0, "Seed for fallback tip selection (0 = config or time based)")
	providerFlag := flag.String("provider", "", "Override advisory provider: gemini or none")
	speakerFlag := flag.String("speaker", "", "Override speech engine: google or log")
	profileFlag := flag.String("profile", "", "Enable pprof profiling server (e.g., :6060 or localhost:6060)")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("coach %s\n", version)
		return nil
	}

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		return fmt.Errorf("failed to resolve log directory: %w", err)
	}
	log.SetDir(logPath)
	log.SetDebug(*debugFlag)
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()
	initCrashLog()

	if *profileFlag != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", *profileFlag)
			if err := http.ListenAndServe(*profileFlag, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		return err
	}
	if err := cfg.LoadEnv(*envFlag); err != nil {
		return err
	}
	if *providerFlag != "" {
		cfg.Advisory.Provider = *providerFlag
	}
	if *speakerFlag != "" {
		cfg.Speech.Engine = *speakerFlag
	}
	if *seedFlag != 0 {
		cfg.Advisory.Seed = *seedFlag
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if *doctorFlag {
		if doctor.Run(cfg) != 0 {
			return fmt.Errorf("doctor checks failed")
		}
		return nil
	}

	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	a, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	if a.mqtt != nil {
		defer a.mqtt.Disconnect()
	}

	var events []replayEvent
	if *replayFlag != "" {
		f, err := os.Open(*replayFlag)
		if err != nil {
			return fmt.Errorf("failed to open replay: %w", err)
		}
		events, err = loadReplay(f)
		f.Close()
		if err != nil {
			return err
		}
	} else if a.ingest != nil {
		go func() {
			if err := a.ingest.ListenAndServe(ctx, cfg.Ingest.Addr); err != nil {
				log.Errorf("ingest server: %v", err)
				fmt.Fprintf(os.Stderr, "Error: ingest server: %v\n", err)
				stop()
			}
		}()
	}

	interactive := *tuiFlag && *replayFlag == "" && term.IsTerminal(int(os.Stdout.Fd()))
	if interactive {
		return runTUI(ctx, a)
	}
	return runHeadless(ctx, a, events, *speedFlag)
}

func build(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{
		cfg:    cfg,
		motion: motion.NewChannelSource(),
		poses:  ingest.NewPoseSource(),
	}

	var svc advisory.Service
	provider := "none"
	if cfg.Advisory.Provider == "gemini" {
		if cfg.GeminiAPIKey == "" {
			log.Warn("no " + config.EnvGeminiKey + " set, using fallback tips only")
		} else {
			g, err := advisory.NewGemini(ctx, cfg.GeminiAPIKey)
			if err != nil {
				return nil, err
			}
			svc = g
			provider = "gemini"
		}
	}
	opts := []advisory.Option{
		advisory.WithModel(cfg.Advisory.Model),
		advisory.WithChannels(
			channelConfig("classify", cfg.Advisory.Classify),
			channelConfig("tip", cfg.Advisory.Tip),
		),
	}
	if cfg.Advisory.Seed != 0 {
		opts = append(opts, advisory.WithRand(rand.New(rand.NewSource(cfg.Advisory.Seed))))
	}
	a.advisor = advisory.New(svc, opts...)

	var sp speech.Speaker
	engine := "log"
	if cfg.Speech.Engine == "google" && cfg.TTSAPIKey != "" {
		player := speech.NewPlayer()
		g := speech.NewGoogleSpeaker(cfg.TTSAPIKey, cfg.Speech.Voice, player)
		go g.Warm()
		sp = g
		engine = "google"
		if cfg.Speech.Cues {
			a.cues = speech.NewCues(player)
		}
	} else {
		if cfg.Speech.Engine == "google" {
			log.Warn("no " + config.EnvTTSKey + " set, writing utterances to the coaching log")
		}
		sp = speech.NewLogSpeaker()
	}
	a.dispatch = speech.NewDispatcher(sp, speech.WithMinInterval(config.Ms(cfg.Speech.MinIntervalMs)))

	if cfg.Ingest.Enabled {
		a.ingest = ingest.New(a.motion, a.poses)
	}
	if cfg.MQTT.Enabled {
		m := publish.NewMQTT(publish.Options{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         cfg.MQTT.QoS,
		})
		if err := m.Connect(); err != nil {
			log.Warnf("mqtt: %v", err)
		}
		a.mqtt = m
	}

	a.modeLine = fmt.Sprintf("[%s | %s]", provider, engine)
	return a, nil
}

func channelConfig(name string, c config.ChannelConfig) advisory.Config {
	return advisory.Config{
		Name:        name,
		TTL:         config.Ms(c.TTLMs),
		MinInterval: config.Ms(c.MinIntervalMs),
		MaxEntries:  c.MaxEntries,
	}
}

func (a *app) newSession(observers ...session.Observer) *session.Session {
	s := a.cfg.Session
	cfg := session.Config{
		SampleEvery:    config.Ms(s.SampleMs),
		PoseEvery:      config.Ms(s.PoseMs),
		TipEvery:       config.Ms(s.TipMs),
		EmitEvery:      config.Ms(s.EmitMs),
		RetainCache:    a.cfg.Advisory.RetainCache,
		SpeakSummaries: s.SpeakSummaries,
		Provider:       a.cfg.Advisory.Provider,
		Speaker:        a.cfg.Speech.Engine,
	}
	deps := session.Deps{
		Motion:    a.motion,
		Poses:     a.poses,
		Advisor:   a.advisor,
		Speech:    a.dispatch,
		Cues:      a.cues,
		Observers: observers,
	}
	if a.ingest != nil {
		deps.Observers = append(deps.Observers, a.ingest)
	}
	if a.mqtt != nil {
		deps.Sinks = append(deps.Sinks, a.mqtt)
	}
	return session.New(cfg, deps)
}

func runHeadless(ctx context.Context, a *app, events []replayEvent, speed float64) error {
	sess := a.newSession(&lineObserver{w: os.Stdout})
	fmt.Fprintf(os.Stderr, "coach %s %s\n", version, a.modeLine)
	if err := sess.Start(ctx); err != nil {
		return err
	}
	defer sess.Stop()

	if events != nil {
		if err := playReplay(ctx, events, speed, a.motion, a.poses); err != nil {
			return err
		}
		snap := sess.Snapshot()
		fmt.Fprintf(os.Stderr, "replay done: %d summaries, %d tips\n", snap.Summaries, snap.Tips)
		return nil
	}
	<-ctx.Done()
	return nil
}

func runTUI(ctx context.Context, a *app) error {
	obs := &tuiObserver{}
	sess := a.newSession(obs)
	p := tea.NewProgram(newTUIModel(ctx, sess, a), tea.WithAltScreen(), tea.WithContext(ctx))
	obs.attach(p)
	_, err := p.Run()
	obs.attach(nil)
	sess.Stop()
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
