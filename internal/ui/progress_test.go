package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"hbind/internal/pipeline"
)

func TestProgressTracksStages(t *testing.T) {
	m := NewProgressModel("geo.h", pipeline.Stages(), nil, nil).(*progressModel)
	m.applyEvent(pipeline.Event{File: "geo.h", Stage: pipeline.StageParse, Status: pipeline.StatusDone, Elapsed: time.Millisecond})
	m.applyEvent(pipeline.Event{File: "geo.h", Stage: pipeline.StageBuild, Status: pipeline.StatusWorking})

	if got, want := m.fraction(), 1.5/7; got != want {
		t.Fatalf("fraction = %v, want %v", got, want)
	}
	view := m.View()
	for _, want := range []string{"geo.h", "done", "building", "queued", "1ms"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view lacks %q:\n%s", want, view)
		}
	}
}

func TestProgressMarksFailure(t *testing.T) {
	m := NewProgressModel("geo.h", pipeline.Stages(), nil, nil).(*progressModel)
	m.applyEvent(pipeline.Event{Stage: pipeline.StageParse, Status: pipeline.StatusError, Err: errors.New("boom")})
	m.done = true
	if !strings.Contains(m.View(), "failed: geo.h") {
		t.Fatalf("failure not shown:\n%s", m.View())
	}
	// unknown stages are ignored
	if cmd := m.applyEvent(pipeline.Event{Stage: "link"}); cmd != nil {
		t.Fatalf("event for unknown stage changed progress")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("include/very/long/header.h", 10); got != "include..." {
		t.Fatalf("got %q", got)
	}
	if got := truncate("a.h", 10); got != "a.h" {
		t.Fatalf("got %q", got)
	}
}
