package speech

import (
	"errors"
	"testing"
	"time"

	"coach/advisory"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestDispatcher(sp Speaker) (*Dispatcher, *clock) {
	c := &clock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	return NewDispatcher(sp, WithClock(c.now)), c
}

func tip(text string, p advisory.Priority) advisory.Tip {
	return advisory.Tip{Text: text, Priority: p, Source: advisory.SourceFallback}
}

func TestDuplicateWithinIntervalSpokenOnce(t *testing.T) {
	sp := &FakeSpeaker{AutoDone: true}
	d, c := newTestDispatcher(sp)

	if got := d.Request(tip("Keep going", advisory.Low)); got != Spoken {
		t.Fatalf("first request = %s", got)
	}
	c.t = c.t.Add(2 * time.Second)
	if got := d.Request(tip("Keep going", advisory.Low)); got != DroppedDuplicate {
		t.Fatalf("second request = %s, want dropped_duplicate", got)
	}
	if n := len(sp.Calls()); n != 1 {
		t.Fatalf("Speak called %d times, want 1", n)
	}
	if d.Speaking() {
		t.Error("duplicate drop should leave the resource free")
	}
	c.t = c.t.Add(2 * time.Second)
	if got := d.Request(tip("Keep going", advisory.Low)); got != Spoken {
		t.Errorf("after min interval got %s, want spoken", got)
	}
}

func TestErrorReleasesResource(t *testing.T) {
	sp := &FakeSpeaker{}
	d, _ := newTestDispatcher(sp)
	d.Request(tip("Chest up", advisory.Medium))
	if !d.Speaking() {
		t.Fatal("expected speaking while utterance is in progress")
	}
	sp.Fail(errors.New("audio device lost"))
	if d.Speaking() {
		t.Fatal("OnError should release the resource")
	}
}

func TestBusyDropsRequest(t *testing.T) {
	sp := &FakeSpeaker{}
	d, _ := newTestDispatcher(sp)
	d.Request(tip("One", advisory.Low))
	if got := d.Request(tip("Two", advisory.High)); got != DroppedBusy {
		t.Fatalf("got %s, want dropped_busy", got)
	}
	sp.Finish()
	if got := d.Request(tip("Two", advisory.High)); got != Spoken {
		t.Fatalf("got %s after finish, want spoken", got)
	}
}

func TestEmptyTextDropped(t *testing.T) {
	sp := &FakeSpeaker{}
	d, _ := newTestDispatcher(sp)
	if got := d.Request(tip("   ", advisory.Low)); got != DroppedEmpty {
		t.Fatalf("got %s, want dropped_empty", got)
	}
	if d.Speaking() || len(sp.Calls()) != 0 {
		t.Error("empty text should not touch the speaker")
	}
}

func TestSyncSpeakErrorReleases(t *testing.T) {
	sp := &FakeSpeaker{Err: errors.New("no key")}
	d, _ := newTestDispatcher(sp)
	if got := d.Request(tip("Breathe", advisory.Low)); got != Failed {
		t.Fatalf("got %s, want failed", got)
	}
	if d.Speaking() {
		t.Error("synchronous error should release the resource")
	}
}

func TestLateCallbackDoesNotReleaseNewer(t *testing.T) {
	sp := &FakeSpeaker{}
	d, c := newTestDispatcher(sp)
	d.Request(tip("First", advisory.Low))
	old := sp.Callbacks()
	old.OnDone()

	c.t = c.t.Add(time.Second)
	d.Request(tip("Second", advisory.Low))
	old.OnError(errors.New("late"))
	old.OnDone()
	if !d.Speaking() {
		t.Fatal("callback from an earlier utterance released the current one")
	}
}

func TestStopReleases(t *testing.T) {
	sp := &FakeSpeaker{}
	d, _ := newTestDispatcher(sp)
	d.Request(tip("Hold", advisory.Low))
	d.Stop()
	if d.Speaking() {
		t.Error("Stop should release the resource")
	}
	if sp.Stops() != 1 {
		t.Errorf("speaker stopped %d times", sp.Stops())
	}
}

func TestStopKeepsClaimBeforeSpeak(t *testing.T) {
	sp := &FakeSpeaker{}
	d, _ := newTestDispatcher(sp)
	// A request has won the flag and not yet taken the lock.
	d.speaking.Store(true)
	d.Stop()
	if !d.Speaking() {
		t.Fatal("Stop released a claim it does not own")
	}
	if got := d.Request(tip("Hold", advisory.Low)); got != DroppedBusy {
		t.Errorf("request during a pending claim = %s, want dropped_busy", got)
	}
}

func TestPriorityOptions(t *testing.T) {
	tests := []struct {
		p    advisory.Priority
		want Options
	}{
		{advisory.High, Options{1.1, 1.0, 1.0}},
		{advisory.Medium, Options{1.0, 1.0, 0.9}},
		{advisory.Low, Options{0.95, 1.0, 0.8}},
	}
	for _, tt := range tests {
		sp := &FakeSpeaker{AutoDone: true}
		d, _ := newTestDispatcher(sp)
		d.Request(tip("Go", tt.p))
		if got := sp.Calls()[0].Opts; got != tt.want {
			t.Errorf("%s: got %+v, want %+v", tt.p, got, tt.want)
		}
	}
}
