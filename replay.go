package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"coach/ingest"
	"coach/log"
	"coach/motion"
	"coach/pose"
)

// replayLine is one record of a sensor recording. Exactly one of Motion and
// Pose is set; both use the same payloads as the live ingest events.
type replayLine struct {
	TMs    int64           `json:"t_ms"`
	Motion json.RawMessage `json:"motion"`
	Pose   json.RawMessage `json:"pose"`
}

type replayEvent struct {
	At     time.Duration
	Motion *motion.Vector
	Pose   *pose.Summary
}

// loadReplay parses a JSONL recording. Blank lines and lines starting with #
// are skipped. Timestamps must not go backwards.
func loadReplay(r io.Reader) ([]replayEvent, error) {
	var events []replayEvent
	var last int64
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	n := 0
	for scanner.Scan() {
		n++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var line replayLine
		if err := json.Unmarshal([]byte(text), &line); err != nil {
			return nil, fmt.Errorf("replay line %d: %w", n, err)
		}
		if line.TMs < last {
			return nil, fmt.Errorf("replay line %d: t_ms %d goes backwards", n, line.TMs)
		}
		last = line.TMs

		ev := replayEvent{At: time.Duration(line.TMs) * time.Millisecond}
		switch {
		case len(line.Motion) > 0 && len(line.Pose) > 0:
			return nil, fmt.Errorf("replay line %d: both motion and pose set", n)
		case len(line.Motion) > 0:
			v, err := ingest.ParseMotion(string(line.Motion))
			if err != nil {
				return nil, fmt.Errorf("replay line %d: %w", n, err)
			}
			ev.Motion = &v
		case len(line.Pose) > 0:
			p, err := ingest.ParsePose(string(line.Pose), time.Time{})
			if err != nil {
				return nil, fmt.Errorf("replay line %d: %w", n, err)
			}
			ev.Pose = p
		default:
			return nil, fmt.Errorf("replay line %d: no motion or pose", n)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// playReplay feeds events into the live sources at their recorded offsets,
// divided by speed. Poses are restamped with the wall clock on delivery.
func playReplay(ctx context.Context, events []replayEvent, speed float64, ms *motion.ChannelSource, ps *ingest.PoseSource) error {
	if speed <= 0 {
		speed = 1
	}
	log.Info(fmt.Sprintf("replay: %d events at %.1fx", len(events), speed))
	start := time.Now()
	for _, ev := range events {
		due := start.Add(time.Duration(float64(ev.At) / speed))
		if wait := time.Until(due); wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil
			case <-t.C:
			}
		}
		if ev.Motion != nil {
			ms.Publish(*ev.Motion)
		}
		if ev.Pose != nil {
			p := *ev.Pose
			p.Time = time.Now()
			ps.Push(&p)
		}
	}
	return nil
}
