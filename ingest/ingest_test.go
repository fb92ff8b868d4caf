package ingest

import (
	"math"
	"testing"
	"time"

	"coach/motion"
)

func TestParseMotion(t *testing.T) {
	v, err := ParseMotion(`{"x":0.1,"y":-1.2,"z":0.3}`)
	if err != nil {
		t.Fatal(err)
	}
	if v.X != 0.1 || v.Y != -1.2 || v.Z != 0.3 {
		t.Errorf("got %+v", v)
	}
	for _, bad := range []string{``, `{`, `[1,2,3]`, `{"x":"a"}`} {
		if _, err := ParseMotion(bad); err == nil {
			t.Errorf("ParseMotion(%q) should fail", bad)
		}
	}
}

func TestParsePose(t *testing.T) {
	now := time.Now()
	p, err := ParsePose(`{"keypoints":[{"name":"nose","x":0.5,"y":0.1,"score":0.9},{"name":"left_hip","x":0.4,"y":0.6,"score":0.2}]}`, now)
	if err != nil {
		t.Fatal(err)
	}
	if p.Total != 2 || p.HighConfidence != 1 || !p.Time.Equal(now) {
		t.Errorf("got %+v", p)
	}
	if _, err := ParsePose(`{"keypoints":[]}`, now); err != errNoKeypoints {
		t.Errorf("empty keypoints: got %v", err)
	}
}

func TestFinite(t *testing.T) {
	if finite(1, math.NaN()) || finite(math.Inf(1)) || !finite(0, -3) {
		t.Error("finite() misclassified values")
	}
}

func TestHandlersFeedSources(t *testing.T) {
	ms := motion.NewChannelSource()
	ps := NewPoseSource()
	s := New(ms, ps)

	if err := s.handleMotion(`{"x":1,"y":2,"z":2}`); err != nil {
		t.Fatal(err)
	}
	v, ok := ms.Read()
	if !ok || motion.Magnitude(v.X, v.Y, v.Z) != 3 {
		t.Errorf("motion source got %+v, %v", v, ok)
	}

	if err := s.handlePose(`{"keypoints":[{"name":"nose","x":0.5,"y":0.1,"score":0.9}]}`); err != nil {
		t.Fatal(err)
	}
	p, ok := ps.Latest()
	if !ok || p.Total != 1 {
		t.Errorf("pose source got %+v, %v", p, ok)
	}
	if _, ok := ps.Latest(); ok {
		t.Error("pose should be consumed once")
	}
	if err := s.handlePose(`nope`); err == nil {
		t.Error("bad pose accepted")
	}

	st := s.Stats()
	if st.Motion != 1 || st.Poses != 1 {
		t.Errorf("stats = %+v", st)
	}
}
