package abi

import (
	"fmt"
	"slices"
	"strings"

	"hbind/internal/types"
)

// BitfieldPolicy says whether a bitfield may cross a storage-unit boundary.
type BitfieldPolicy uint8

const (
	// NoStraddle starts a new storage unit when a bitfield would cross the
	// current one (System V, AAPCS).
	NoStraddle BitfieldPolicy = iota
	// AllowStraddle lets bitfields continue into the next storage unit.
	AllowStraddle
)

func (p BitfieldPolicy) String() string {
	if p == AllowStraddle {
		return "allow"
	}
	return "no-straddle"
}

// ParseBitfieldPolicy accepts "allow" and "no-straddle" (also "deny").
func ParseBitfieldPolicy(s string) (BitfieldPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "no-straddle", "nostraddle", "deny":
		return NoStraddle, nil
	case "allow", "straddle":
		return AllowStraddle, nil
	}
	return NoStraddle, fmt.Errorf("unknown bitfield policy %q", s)
}

// Scalar is the size and alignment of a primitive, in bytes.
type Scalar struct {
	Size  int64
	Align int64
}

// Target describes the platform-variable inputs of the layout engine.
type Target struct {
	Name         string // e.g. "x86_64-linux"
	GOOS         string
	GOARCH       string
	PtrSize      int64 // bytes
	PtrAlign     int64 // bytes
	LittleEndian bool
	Bitfields    BitfieldPolicy

	prims map[types.PrimKind]Scalar
}

// Prim returns the size and alignment of a primitive kind.
func (t Target) Prim(k types.PrimKind) (Scalar, bool) {
	s, ok := t.prims[k]
	return s, ok
}

// WithBitfieldPolicy returns a copy of t using policy p.
func (t Target) WithBitfieldPolicy(p BitfieldPolicy) Target {
	t.Bitfields = p
	return t
}

// WithPrim returns a copy of t with an overridden primitive entry.
func (t Target) WithPrim(k types.PrimKind, s Scalar) Target {
	prims := make(map[types.PrimKind]Scalar, len(t.prims)+1)
	for pk, ps := range t.prims {
		prims[pk] = ps
	}
	prims[k] = s
	t.prims = prims
	return t
}

func lp64Prims() map[types.PrimKind]Scalar {
	return map[types.PrimKind]Scalar{
		types.PrimVoid:       {Size: 1, Align: 1},
		types.PrimBool:       {Size: 1, Align: 1},
		types.PrimChar:       {Size: 1, Align: 1},
		types.PrimChar16:     {Size: 2, Align: 2},
		types.PrimShort:      {Size: 2, Align: 2},
		types.PrimInt:        {Size: 4, Align: 4},
		types.PrimLong:       {Size: 8, Align: 8},
		types.PrimLongLong:   {Size: 8, Align: 8},
		types.PrimInt128:     {Size: 16, Align: 16},
		types.PrimFloat:      {Size: 4, Align: 4},
		types.PrimDouble:     {Size: 8, Align: 8},
		types.PrimLongDouble: {Size: 16, Align: 16},
		types.PrimFloat128:   {Size: 16, Align: 16},
		types.PrimHalfFloat:  {Size: 2, Align: 2},
		types.PrimWChar:      {Size: 4, Align: 4},
	}
}

// X86_64Linux is the System V AMD64 target.
func X86_64Linux() Target {
	return Target{
		Name:         "x86_64-linux",
		GOOS:         "linux",
		GOARCH:       "amd64",
		PtrSize:      8,
		PtrAlign:     8,
		LittleEndian: true,
		Bitfields:    NoStraddle,
		prims:        lp64Prims(),
	}
}

// AArch64Linux is the AAPCS64 target.
func AArch64Linux() Target {
	t := X86_64Linux()
	t.Name = "aarch64-linux"
	t.GOARCH = "arm64"
	return t
}

// X86_64Windows is the LLP64 target. MSVC never splits a bitfield across units
// either, but its unit selection differs; only the table is modeled here.
func X86_64Windows() Target {
	t := X86_64Linux()
	t.Name = "x86_64-windows"
	t.GOOS = "windows"
	t.prims = lp64Prims()
	t.prims[types.PrimLong] = Scalar{Size: 4, Align: 4}
	t.prims[types.PrimLongDouble] = Scalar{Size: 8, Align: 8}
	t.prims[types.PrimWChar] = Scalar{Size: 2, Align: 2}
	return t
}

// I386Linux is the System V i386 target.
func I386Linux() Target {
	prims := lp64Prims()
	prims[types.PrimLong] = Scalar{Size: 4, Align: 4}
	prims[types.PrimLongLong] = Scalar{Size: 8, Align: 4}
	prims[types.PrimDouble] = Scalar{Size: 8, Align: 4}
	prims[types.PrimLongDouble] = Scalar{Size: 12, Align: 4}
	delete(prims, types.PrimInt128)
	delete(prims, types.PrimFloat128)
	return Target{
		Name:         "i386-linux",
		GOOS:         "linux",
		GOARCH:       "386",
		PtrSize:      4,
		PtrAlign:     4,
		LittleEndian: true,
		Bitfields:    NoStraddle,
		prims:        prims,
	}
}

var presets = map[string]func() Target{
	"x86_64-linux":   X86_64Linux,
	"aarch64-linux":  AArch64Linux,
	"x86_64-windows": X86_64Windows,
	"i386-linux":     I386Linux,
}

// Names lists the known target names in sorted order.
func Names() []string {
	out := make([]string, 0, len(presets))
	for name := range presets {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// ByName returns a preset target. An empty name selects x86_64-linux.
func ByName(name string) (Target, error) {
	if name == "" {
		return X86_64Linux(), nil
	}
	ctor, ok := presets[strings.ToLower(name)]
	if !ok {
		return Target{}, fmt.Errorf("unknown target %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return ctor(), nil
}

// Host picks the preset matching goos/goarch, falling back to x86_64-linux.
func Host(goos, goarch string) Target {
	for _, name := range Names() {
		t := presets[name]()
		if t.GOOS == goos && t.GOARCH == goarch {
			return t
		}
	}
	return X86_64Linux()
}
