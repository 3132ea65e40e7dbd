package abi

// Bitfield describes one member of a run of bitfields.
type Bitfield struct {
	Width    int64 // bits; 0 forces the next field to a new storage unit
	UnitBits int64 // bit size of the declared integer type
}

// PlaceBitfield returns the bit offset at which a bitfield of the given width
// starts when the running bit cursor is at cursor. Packed records never move a
// field to the next unit.
func (t Target) PlaceBitfield(cursor, width, unitBits int64, packed bool) int64 {
	if unitBits <= 0 {
		return cursor
	}
	if width == 0 {
		return alignUp(cursor, unitBits)
	}
	if packed || t.Bitfields == AllowStraddle {
		return cursor
	}
	if cursor/unitBits != (cursor+width-1)/unitBits {
		return alignUp(cursor, unitBits)
	}
	return cursor
}

// GroupBitfields simulates placement of a run of bitfields starting at bit
// startBit and returns, for each field, the index of the storage group it
// belongs to. Zero-width entries close the current group.
func (t Target) GroupBitfields(run []Bitfield, startBit int64, packed bool) []int {
	offs := make([]int64, len(run))
	cursor := startBit
	for i, bf := range run {
		offs[i] = t.PlaceBitfield(cursor, bf.Width, bf.UnitBits, packed)
		cursor = offs[i] + bf.Width
	}
	return GroupPlaced(run, offs)
}

// GroupPlaced groups a run of bitfields whose bit offsets are already known.
// A field joins the current group while it lies inside the storage units the
// group has opened.
func GroupPlaced(run []Bitfield, offs []int64) []int {
	groups := make([]int, len(run))
	group := -1
	var base, end int64
	for i, bf := range run {
		off := offs[i]
		if bf.Width == 0 {
			// a leading one joins the first group
			groups[i] = max(group, 0)
			end = -1
			continue
		}
		unit := bf.UnitBits
		if unit <= 0 {
			unit = 8
		}
		unitBase := alignDown(off, unit)
		if group < 0 || end < 0 || unitBase < base || off+bf.Width > end {
			group++
			base = unitBase
			end = unitBase + unit
		} else if unitBase+unit > end {
			end = unitBase + unit
		}
		groups[i] = group
	}
	return groups
}

// BitShift returns the shift that extracts a bitfield at bit offset off within
// a storage unit of unitBits, honoring the target byte order.
func (t Target) BitShift(off, width, unitBits int64) int64 {
	inUnit := off % unitBits
	if t.LittleEndian {
		return inUnit
	}
	return unitBits - inUnit - width
}

func alignUp(n, align int64) int64 {
	if align <= 1 {
		return n
	}
	if r := n % align; r != 0 {
		return n + (align - r)
	}
	return n
}

func alignDown(n, align int64) int64 {
	if align <= 1 {
		return n
	}
	return n - n%align
}
