// Package doctor runs interactive checks of everything a coaching run
// depends on: configuration, the advisory service, audio output and the
// network endpoints.
package doctor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"coach/advisory"
	"coach/config"
	"coach/publish"
	"coach/speech"
)

// Doctor holds the collaborators the checks use. Nil fields are built from
// the configuration.
type Doctor struct {
	Cfg     *config.Config
	In      io.Reader
	Out     io.Writer
	Service advisory.Service
	Player  speech.Player

	reader *bufio.Reader
}

// Run executes the checks on the terminal and returns an exit code (0=all pass, 1=any fail).
func Run(cfg *config.Config) int {
	resetTerminal()
	d := &Doctor{Cfg: cfg, In: os.Stdin, Out: os.Stdout}
	return d.Run(context.Background())
}

func (d *Doctor) printf(format string, args ...any) {
	fmt.Fprintf(d.Out, format, args...)
}

func (d *Doctor) Run(ctx context.Context) int {
	d.reader = bufio.NewReader(d.In)
	d.printf("coach doctor - system diagnostics\n")
	d.printf("=================================\n")

	checks := []struct {
		title string
		fn    func(context.Context) bool
	}{
		{"Configuration", d.checkConfig},
		{"Advisory service", d.checkAdvisory},
		{"Audio output", d.checkAudio},
		{"Network", d.checkNetwork},
	}
	allPass := true
	for i, c := range checks {
		d.printf("\n[%d/%d] %s\n", i+1, len(checks), c.title)
		if !c.fn(ctx) {
			allPass = false
		}
	}

	d.printf("\n")
	if allPass {
		d.printf("All checks passed!\n")
		return 0
	}
	d.printf("Some checks failed. See details above.\n")
	return 1
}

func (d *Doctor) checkConfig(context.Context) bool {
	if err := config.Validate(d.Cfg); err != nil {
		d.printf("  FAIL: %v\n", err)
		return false
	}
	d.printf("  PASS: provider=%s speech=%s\n", d.Cfg.Advisory.Provider, d.Cfg.Speech.Engine)
	if d.Cfg.Advisory.Provider == "gemini" && d.Cfg.GeminiAPIKey == "" {
		d.printf("  WARN: %s not set, only fallback tips will be used\n", config.EnvGeminiKey)
	}
	if d.Cfg.Speech.Engine == "google" && d.Cfg.TTSAPIKey == "" {
		d.printf("  WARN: %s not set, tips will only be logged\n", config.EnvTTSKey)
	}
	return true
}

func (d *Doctor) checkAdvisory(ctx context.Context) bool {
	svc := d.Service
	if svc == nil {
		if d.Cfg.Advisory.Provider != "gemini" || d.Cfg.GeminiAPIKey == "" {
			d.printf("  SKIP: no advisory service configured\n")
			return true
		}
		g, err := advisory.NewGemini(ctx, d.Cfg.GeminiAPIKey)
		if err != nil {
			d.printf("  FAIL: %v\n", err)
			return false
		}
		svc = g
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	start := time.Now()
	text, err := svc.GenerateTip(ctx, advisory.Request{
		Model:       d.Cfg.Advisory.Model,
		Prompt:      "Give one short squat coaching cue.",
		MaxTokens:   40,
		Temperature: 0.7,
	})
	if err != nil {
		d.printf("  FAIL: %v\n", err)
		return false
	}
	if strings.TrimSpace(text) == "" {
		d.printf("  FAIL: empty response\n")
		return false
	}
	d.printf("  PASS: %q (%dms)\n", strings.TrimSpace(text), time.Since(start).Milliseconds())
	return true
}

func (d *Doctor) checkAudio(ctx context.Context) bool {
	player := d.Player
	if player == nil {
		player = speech.NewPlayer()
	}
	d.printf("Playing a test tone...\n")
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := player.Play(ctx, speech.CueSamples(speech.CueSummary), speech.CueSampleRate); err != nil {
		d.printf("  FAIL: playback error: %v\n", err)
		return false
	}
	d.printf("Did you hear two beeps? [Y/n]: ")
	answer, _ := d.reader.ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	if answer == "" || answer == "y" || answer == "yes" {
		d.printf("  PASS: audio output works\n")
		return true
	}
	d.printf("  FAIL: check the default output device\n")
	return false
}

func (d *Doctor) checkNetwork(context.Context) bool {
	ok := true
	if d.Cfg.Ingest.Enabled {
		ln, err := net.Listen("tcp", d.Cfg.Ingest.Addr)
		if err != nil {
			d.printf("  FAIL: ingest address %s: %v\n", d.Cfg.Ingest.Addr, err)
			ok = false
		} else {
			ln.Close()
			d.printf("  PASS: ingest address %s is free\n", d.Cfg.Ingest.Addr)
		}
	} else {
		d.printf("  SKIP: ingest disabled\n")
	}

	if d.Cfg.MQTT.Enabled {
		m := publish.NewMQTT(publish.Options{
			Broker:   d.Cfg.MQTT.Broker,
			ClientID: d.Cfg.MQTT.ClientID + "-doctor",
		})
		if err := m.Connect(); err != nil {
			d.printf("  FAIL: %v\n", err)
			ok = false
		} else {
			m.Disconnect()
			d.printf("  PASS: connected to %s\n", d.Cfg.MQTT.Broker)
		}
	} else {
		d.printf("  SKIP: mqtt disabled\n")
	}
	return ok
}
