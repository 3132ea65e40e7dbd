package source

import (
	"slices"
	"testing"
)

func TestPosCompareOrdersSyntheticLast(t *testing.T) {
	positions := []Pos{
		NoPos,
		{File: "b.h", Line: 1, Col: 1},
		{File: "a.h", Line: 3, Col: 2},
		{File: "a.h", Line: 3, Col: 1},
		{File: "a.h", Line: 1, Col: 9},
	}
	slices.SortStableFunc(positions, Pos.Compare)

	want := []Pos{
		{File: "a.h", Line: 1, Col: 9},
		{File: "a.h", Line: 3, Col: 1},
		{File: "a.h", Line: 3, Col: 2},
		{File: "b.h", Line: 1, Col: 1},
		NoPos,
	}
	if !slices.Equal(positions, want) {
		t.Fatalf("sorted positions = %v, want %v", positions, want)
	}
}

func TestPosString(t *testing.T) {
	tests := []struct {
		pos  Pos
		want string
	}{
		{NoPos, "<synthetic>"},
		{Pos{File: "x.h"}, "x.h"},
		{Pos{File: "x.h", Line: 4, Col: 7}, "x.h:4:7"},
	}
	for _, tt := range tests {
		if got := tt.pos.String(); got != tt.want {
			t.Errorf("Pos%v.String() = %q, want %q", tt.pos, got, tt.want)
		}
	}
}
