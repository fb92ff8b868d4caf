package doctor

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"testing"

	"coach/advisory"
	"coach/config"
	"coach/speech"
)

func offlineConfig() *config.Config {
	cfg := config.Default()
	cfg.Advisory.Provider = "none"
	cfg.Speech.Engine = "log"
	cfg.Ingest.Enabled = false
	return cfg
}

func runDoctor(t *testing.T, d *Doctor) (int, string) {
	t.Helper()
	var out bytes.Buffer
	d.Out = &out
	code := d.Run(context.Background())
	return code, out.String()
}

func TestDoctorAllPass(t *testing.T) {
	player := &speech.FakePlayer{}
	code, out := runDoctor(t, &Doctor{
		Cfg:     offlineConfig(),
		In:      strings.NewReader("\n"),
		Service: advisory.NewFake("rhythmic", "Chest up"),
		Player:  player,
	})
	if code != 0 {
		t.Fatalf("exit code %d, output:\n%s", code, out)
	}
	if !strings.Contains(out, `PASS: "Chest up"`) {
		t.Errorf("advisory check output missing:\n%s", out)
	}
	if len(player.Played()) != 1 || player.Rates()[0] != speech.CueSampleRate {
		t.Errorf("expected one tone at %d Hz, got %v", speech.CueSampleRate, player.Rates())
	}
}

func TestDoctorFailures(t *testing.T) {
	svc := advisory.NewFake("", "")
	svc.Err = errors.New("quota exceeded")

	code, out := runDoctor(t, &Doctor{
		Cfg:     offlineConfig(),
		In:      strings.NewReader("n\n"),
		Service: svc,
		Player:  &speech.FakePlayer{},
	})
	if code != 1 {
		t.Fatalf("exit code %d, want 1", code)
	}
	for _, want := range []string{"FAIL: quota exceeded", "FAIL: check the default output device"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestDoctorSkipsWithoutService(t *testing.T) {
	code, out := runDoctor(t, &Doctor{
		Cfg:    offlineConfig(),
		In:     strings.NewReader("y\n"),
		Player: &speech.FakePlayer{},
	})
	if code != 0 || !strings.Contains(out, "SKIP: no advisory service configured") {
		t.Errorf("code %d output:\n%s", code, out)
	}
}

func TestDoctorIngestAddressInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	cfg := offlineConfig()
	cfg.Ingest.Enabled = true
	cfg.Ingest.Addr = ln.Addr().String()
	code, out := runDoctor(t, &Doctor{
		Cfg:    cfg,
		In:     strings.NewReader("y\n"),
		Player: &speech.FakePlayer{},
	})
	if code != 1 || !strings.Contains(out, "FAIL: ingest address") {
		t.Errorf("code %d output:\n%s", code, out)
	}
}

func TestDoctorInvalidConfig(t *testing.T) {
	cfg := offlineConfig()
	cfg.Speech.Engine = "festival"
	code, out := runDoctor(t, &Doctor{Cfg: cfg, In: strings.NewReader("y\n"), Player: &speech.FakePlayer{}})
	if code != 1 || !strings.Contains(out, `unknown speech engine "festival"`) {
		t.Errorf("code %d output:\n%s", code, out)
	}
}
