package ast

import (
	"strconv"
	"strings"

	"hbind/internal/types"
)

// TypeString renders a type in a C-like spelling for diagnostics and dumps.
func (t *Tree) TypeString(id types.TypeID) string {
	var sb strings.Builder
	t.writeType(&sb, id, 0)
	return sb.String()
}

func (t *Tree) writeType(sb *strings.Builder, id types.TypeID, depth int) {
	if depth > 64 {
		sb.WriteString("...")
		return
	}
	tt, ok := t.Types.Lookup(id)
	if !ok {
		sb.WriteString("<invalid>")
		return
	}
	switch tt.Kind {
	case types.KindPrimitive:
		sb.WriteString(tt.Prim.String())
	case types.KindDeclared:
		d := t.Decl(tt.Decl)
		if d == nil {
			sb.WriteString("<unknown decl>")
			return
		}
		sb.WriteString(d.Scoped.String())
		sb.WriteByte(' ')
		if d.Name == "" {
			sb.WriteString("<anonymous>")
		} else {
			sb.WriteString(d.Name)
		}
	case types.KindFunction:
		info, _ := t.Types.FnInfo(id)
		if info == nil {
			sb.WriteString("<fn>")
			return
		}
		t.writeType(sb, info.Result, depth+1)
		sb.WriteString(" (")
		for i, p := range info.Params {
			if i > 0 {
				sb.WriteString(", ")
			}
			t.writeType(sb, p, depth+1)
		}
		if info.Variadic {
			if len(info.Params) > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("...")
		}
		sb.WriteByte(')')
	case types.KindArray:
		t.writeType(sb, tt.Elem, depth+1)
		switch tt.Array {
		case types.ArrayIncomplete:
			sb.WriteString("[]")
		case types.ArrayVector:
			sb.WriteString(" __vector(")
			sb.WriteString(strconv.FormatInt(tt.Count, 10))
			sb.WriteByte(')')
		default:
			sb.WriteByte('[')
			sb.WriteString(strconv.FormatInt(tt.Count, 10))
			sb.WriteByte(']')
		}
	case types.KindDelegated:
		switch tt.Deleg {
		case types.DelegTypedef:
			sb.WriteString(tt.Name)
		case types.DelegPointer:
			t.writeType(sb, tt.Elem, depth+1)
			sb.WriteByte('*')
		case types.DelegAtomic:
			sb.WriteString("_Atomic(")
			t.writeType(sb, tt.Elem, depth+1)
			sb.WriteByte(')')
		case types.DelegComplex:
			sb.WriteString("_Complex ")
			t.writeType(sb, tt.Elem, depth+1)
		default:
			sb.WriteString(tt.Deleg.String())
			sb.WriteByte(' ')
			t.writeType(sb, tt.Elem, depth+1)
		}
	case types.KindErroneous:
		sb.WriteString("<error: ")
		if tt.Name != "" {
			sb.WriteString(tt.Name)
		} else {
			sb.WriteString(tt.Err.String())
		}
		sb.WriteByte('>')
	default:
		sb.WriteString("<invalid>")
	}
}
