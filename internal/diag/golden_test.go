package diag

import (
	"testing"

	"hbind/internal/source"
)

func TestFormatShortDiagnostics(t *testing.T) {
	diags := []Diagnostic{
		{
			Severity: SevWarning,
			Code:     FilterUnsupportedType,
			Message:  "skipping f: unsupported type usage: __int128",
			Primary:  source.Pos{File: "/work/include/api.h", Line: 9, Col: 1},
		},
		{
			Severity: SevError,
			Code:     FilterBadInclude,
			Message:  "bad include:\nuse depends on point",
			Primary:  source.Pos{File: "/work/include/api.h", Line: 2, Col: 5},
			Notes: []Note{
				{Pos: source.Pos{File: "/work/include/point.h", Line: 1, Col: 8}, Msg: "point declared here"},
			},
		},
	}

	want := "error FLT5002 include/api.h:2:5 bad include: use depends on point\n" +
		"warning FLT5001 include/api.h:9:1 skipping f: unsupported type usage: __int128\n" +
		"note FLT5002 include/point.h:1:8 point declared here"

	if got := FormatShortDiagnostics(diags, "/work", true); got != want {
		t.Fatalf("unexpected short diagnostics:\nwant:\n%s\n\ngot:\n%s", want, got)
	}
}

func TestBagSortAndMerge(t *testing.T) {
	a := NewBag(1)
	if !a.Add(NewWarning(LayoutOffsetMismatch, source.Pos{File: "b.h", Line: 1}, "later")) {
		t.Fatal("first Add must succeed")
	}
	if a.Add(NewError(LayoutInvalid, source.Pos{File: "a.h", Line: 1}, "dropped")) {
		t.Fatal("Add past the limit must fail")
	}
	if a.Dropped() != 1 {
		t.Fatalf("Dropped() = %d, want 1", a.Dropped())
	}

	b := NewBag(4)
	b.Add(NewError(LayoutInvalid, source.Pos{File: "a.h", Line: 3}, "first"))
	a.Merge(b)
	a.Sort()

	items := a.Items()
	if len(items) != 2 || items[0].Message != "first" {
		t.Fatalf("merged items = %+v", items)
	}
	if !a.HasErrors() || a.Count(SevWarning) != 1 {
		t.Fatalf("HasErrors=%v warnings=%d", a.HasErrors(), a.Count(SevWarning))
	}
}

func TestDedupReporter(t *testing.T) {
	bag := NewBag(10)
	r := NewDedupReporter(BagReporter{Bag: bag})
	pos := source.Pos{File: "x.h", Line: 1, Col: 1}
	for range 3 {
		ReportWarning(r, NameDisambiguated, pos, "renamed").Emit()
	}
	if bag.Len() != 1 {
		t.Fatalf("bag.Len() = %d, want 1", bag.Len())
	}
}
