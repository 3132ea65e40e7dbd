package observ

import (
	"bytes"
	"strings"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// fakeClock advances by step on every call.
func fakeClock(step time.Duration) func() time.Time {
	cur := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		cur = cur.Add(step)
		return cur
	}
}

func TestTimerSummary(t *testing.T) {
	tm := NewTimer()
	tm.now = fakeClock(1500 * time.Microsecond)
	parse := tm.Begin("parse")
	tm.End(parse, "1 header")
	layout := tm.Begin("layout")
	tm.End(layout, "")
	tm.End(42, "ignored")

	want := "timings:\n" +
		"  parse    1.50 ms  // 1 header\n" +
		"  layout   1.50 ms\n" +
		"  total    3.00 ms\n"
	if got := tm.Summary(); got != want {
		t.Fatalf("got:\n%q\nwant:\n%q", got, want)
	}
}

func TestTimerReportJSON(t *testing.T) {
	tm := NewTimer()
	tm.now = fakeClock(2 * time.Millisecond)
	tm.End(tm.Begin("emit"), "12 units")

	var buf bytes.Buffer
	if err := tm.WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var got Report
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.TotalMS != 2 || len(got.Phases) != 1 || got.Phases[0].Note != "12 units" {
		t.Fatalf("report = %+v", got)
	}
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Fatalf("report is not a line: %q", buf.String())
	}
}

func TestEmptyTimer(t *testing.T) {
	tm := NewTimer()
	if r := tm.Report(); r.TotalMS != 0 || r.Phases != nil {
		t.Fatalf("report = %+v", r)
	}
	if !strings.Contains(tm.Summary(), "total") {
		t.Fatalf("summary = %q", tm.Summary())
	}
}
