package abi

import (
	"slices"
	"testing"

	"hbind/internal/types"
)

func TestPresetsCoverEveryCommonPrimitive(t *testing.T) {
	for _, name := range Names() {
		tgt, err := ByName(name)
		if err != nil {
			t.Fatalf("ByName(%q): %v", name, err)
		}
		for _, k := range []types.PrimKind{types.PrimChar, types.PrimShort, types.PrimInt, types.PrimLong, types.PrimLongLong, types.PrimFloat, types.PrimDouble} {
			s, ok := tgt.Prim(k)
			if !ok || s.Size <= 0 || s.Align <= 0 {
				t.Fatalf("%s: missing %s", name, k)
			}
		}
	}
}

func TestLongWidthDiffersBetweenLP64AndLLP64(t *testing.T) {
	lin, _ := X86_64Linux().Prim(types.PrimLong)
	win, _ := X86_64Windows().Prim(types.PrimLong)
	if lin.Size != 8 || win.Size != 4 {
		t.Fatalf("long: linux=%d windows=%d", lin.Size, win.Size)
	}
}

func TestByNameUnknown(t *testing.T) {
	if _, err := ByName("pdp11"); err == nil {
		t.Fatalf("expected error for unknown target")
	}
}

func TestWithPrimDoesNotAliasPreset(t *testing.T) {
	base := X86_64Linux()
	mod := base.WithPrim(types.PrimLongDouble, Scalar{Size: 8, Align: 8})
	if s, _ := base.Prim(types.PrimLongDouble); s.Size != 16 {
		t.Fatalf("base target modified: %+v", s)
	}
	if s, _ := mod.Prim(types.PrimLongDouble); s.Size != 8 {
		t.Fatalf("override lost: %+v", s)
	}
}

func TestPlaceBitfield(t *testing.T) {
	tgt := X86_64Linux()
	tests := []struct {
		name                string
		cursor, width, unit int64
		packed              bool
		policy              BitfieldPolicy
		want                int64
	}{
		{"fits", 2, 30, 32, false, NoStraddle, 2},
		{"straddle moves", 3, 30, 32, false, NoStraddle, 32},
		{"straddle allowed", 3, 30, 32, false, AllowStraddle, 3},
		{"packed stays", 3, 30, 32, true, NoStraddle, 3},
		{"zero width aligns", 5, 0, 32, false, NoStraddle, 32},
		{"zero width on boundary", 32, 0, 32, false, NoStraddle, 32},
	}
	for _, tt := range tests {
		got := tgt.WithBitfieldPolicy(tt.policy).PlaceBitfield(tt.cursor, tt.width, tt.unit, tt.packed)
		if got != tt.want {
			t.Errorf("%s: got %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestGroupBitfields(t *testing.T) {
	tgt := X86_64Linux()
	u := func(w int64) Bitfield { return Bitfield{Width: w, UnitBits: 32} }

	if got := tgt.GroupBitfields([]Bitfield{u(1), u(1), u(30)}, 0, false); !slices.Equal(got, []int{0, 0, 0}) {
		t.Fatalf("{1,1,30} groups = %v, want one group", got)
	}
	if got := tgt.GroupBitfields([]Bitfield{u(1), u(2), u(30)}, 0, false); !slices.Equal(got, []int{0, 0, 1}) {
		t.Fatalf("{1,2,30} groups = %v, want split", got)
	}
	if got := tgt.GroupBitfields([]Bitfield{u(3), u(0), u(3)}, 0, false); !slices.Equal(got, []int{0, 0, 1}) {
		t.Fatalf("zero width groups = %v", got)
	}
	mixed := []Bitfield{{Width: 3, UnitBits: 8}, {Width: 5, UnitBits: 32}}
	if got := tgt.GroupBitfields(mixed, 0, false); !slices.Equal(got, []int{0, 0}) {
		t.Fatalf("char/int run groups = %v, want shared unit", got)
	}
}

func TestBitShiftHonorsByteOrder(t *testing.T) {
	le := X86_64Linux()
	be := X86_64Linux()
	be.LittleEndian = false
	if got := le.BitShift(35, 4, 32); got != 3 {
		t.Fatalf("little endian shift = %d", got)
	}
	if got := be.BitShift(35, 4, 32); got != 25 {
		t.Fatalf("big endian shift = %d", got)
	}
}

func TestGroupPlacedUsesReportedOffsets(t *testing.T) {
	run := []Bitfield{{Width: 4, UnitBits: 32}, {Width: 4, UnitBits: 32}, {Width: 8, UnitBits: 32}}
	// packed layout placed the third field in the next unit
	got := GroupPlaced(run, []int64{0, 4, 32})
	if !slices.Equal(got, []int{0, 0, 1}) {
		t.Fatalf("groups = %v", got)
	}
}
