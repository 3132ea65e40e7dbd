package writer

import (
	jsoniter "github.com/json-iterator/go"

	"hbind/internal/emit"
)

type jsonSequence struct {
	Header string     `json:"header"`
	Units  []jsonUnit `json:"units"`
}

type jsonUnit struct {
	Name     string      `json:"name"`
	Kind     string      `json:"kind"`
	CName    string      `json:"c_name,omitempty"`
	Pos      string      `json:"pos,omitempty"`
	Size     int64       `json:"size,omitempty"`
	Align    int64       `json:"align,omitempty"`
	Type     *jsonSlot   `json:"type,omitempty"`
	Fields   []jsonField `json:"fields,omitempty"`
	Params   []jsonSlot  `json:"params,omitempty"`
	Result   *jsonSlot   `json:"result,omitempty"`
	Variadic bool        `json:"variadic,omitempty"`
	Value    string      `json:"value,omitempty"`
	Enum     string      `json:"enum,omitempty"`
	Refs     []string    `json:"refs,omitempty"`
}

type jsonSlot struct {
	Name     string `json:"name,omitempty"`
	Class    string `json:"class,omitempty"`
	Size     int64  `json:"size"`
	Align    int64  `json:"align"`
	Ref      string `json:"ref,omitempty"`
	Callback string `json:"callback,omitempty"`
}

type jsonField struct {
	jsonSlot
	Offset   int64 `json:"offset"`
	Flexible bool  `json:"flexible,omitempty"`
	BitWidth int64 `json:"bit_width,omitempty"`
	BitShift int64 `json:"bit_shift,omitempty"`
}

func slotJSON(s emit.Slot) jsonSlot {
	out := jsonSlot{Name: s.Name, Ref: s.Ref, Callback: s.Callback}
	if s.Layout != nil {
		out.Class = s.Layout.Class.String()
		out.Size = s.Layout.Size
		out.Align = s.Layout.Align
	}
	return out
}

func unitJSON(u *emit.Unit) jsonUnit {
	out := jsonUnit{
		Name:  u.Name,
		Kind:  u.Kind.String(),
		CName: u.CName,
		Enum:  u.Enum,
		Refs:  u.Refs,
		Value: u.Value.String(),
	}
	if !u.Pos.IsSynthetic() {
		out.Pos = u.Pos.String()
	}
	if l := u.Layout; l != nil && (u.Kind.IsRecord() || u.Kind == emit.KindEnum) {
		out.Size, out.Align = l.Size, l.Align
	}
	switch u.Kind {
	case emit.KindVar, emit.KindTypedef, emit.KindConstant:
		t := slotJSON(u.Type)
		out.Type = &t
	}
	for _, f := range u.Fields {
		jf := jsonField{jsonSlot: slotJSON(f.Slot), Offset: f.Offset, Flexible: f.Flexible}
		if f.Bitfield {
			jf.BitWidth, jf.BitShift = f.BitWidth, f.BitShift
		}
		out.Fields = append(out.Fields, jf)
	}
	for _, p := range u.Params {
		out.Params = append(out.Params, slotJSON(p))
	}
	if u.Result != nil {
		r := slotJSON(*u.Result)
		out.Result = &r
	}
	if u.Call != nil {
		out.Variadic = u.Call.Variadic
	}
	return out
}

func renderJSON(seq *emit.Sequence) ([]byte, error) {
	doc := jsonSequence{Header: seq.Header, Units: make([]jsonUnit, 0, len(seq.Units))}
	for _, u := range seq.Units {
		doc.Units = append(doc.Units, unitJSON(u))
	}
	json := jsoniter.ConfigCompatibleWithStandardLibrary
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
