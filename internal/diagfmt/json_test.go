package diagfmt

import (
	"bytes"
	"testing"

	jsoniter "github.com/json-iterator/go"
)

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := JSON(&buf, sampleBag(), JSONOpts{PathMode: PathModeBasename, IncludeNotes: true}); err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var out DiagnosticsOutput
	json := jsoniter.ConfigCompatibleWithStandardLibrary
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if out.Count != 3 || len(out.Diagnostics) != 3 {
		t.Fatalf("count = %d", out.Count)
	}
	bad := out.Diagnostics[1]
	if bad.Severity != "ERROR" || bad.Code != "FLT5002" || bad.Location.File != "geo.h" || bad.Location.Line != 3 {
		t.Fatalf("unexpected diagnostic: %+v", bad)
	}
	if len(bad.Notes) != 1 || bad.Notes[0].Location.Col != 8 {
		t.Fatalf("notes = %+v", bad.Notes)
	}
	if out.Diagnostics[2].Location.File != "" {
		t.Fatalf("synthetic position has a file: %+v", out.Diagnostics[2].Location)
	}
}

func TestJSONMax(t *testing.T) {
	out := BuildDiagnosticsOutput(sampleBag(), JSONOpts{Max: 1})
	if out.Count != 1 || out.Dropped != 2 {
		t.Fatalf("count=%d dropped=%d", out.Count, out.Dropped)
	}
	if out.Diagnostics[0].Notes != nil {
		t.Fatalf("notes included without IncludeNotes")
	}
}
