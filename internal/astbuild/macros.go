package astbuild

import (
	"fmt"
	"math"

	"hbind/internal/ast"
	"hbind/internal/diag"
	"hbind/internal/frontend"
	"hbind/internal/types"
)

// macro turns an object-like macro with a constant value into a constant.
// Macros that do not evaluate are omitted.
func (b *builder) macro(c frontend.Cursor) ast.DeclID {
	mv := c.Macro()
	bt := b.in.Builtins()
	var (
		typ types.TypeID
		val ast.Value
	)
	switch mv.Kind {
	case frontend.MacroInt:
		typ = bt.Int
		if mv.Int < math.MinInt32 || mv.Int > math.MaxInt32 {
			typ = bt.LongLong
		}
		val = ast.IntValue(mv.Int)
	case frontend.MacroUint:
		typ = bt.UInt
		if mv.Uint > math.MaxUint32 {
			typ = b.in.Unsigned(b.in.Primitive(types.PrimLongLong))
		}
		val = ast.UintValue(mv.Uint)
	case frontend.MacroFloat:
		typ, val = bt.Double, ast.FloatValue(mv.Float)
	case frontend.MacroString:
		typ, val = bt.CharPtr, ast.StringValue(mv.Str)
	default:
		diag.ReportInfo(b.rep, diag.BuildMacroNotEvaluable, c.Pos(),
			fmt.Sprintf("macro %s does not evaluate to a constant", c.Name())).Emit()
		return ast.NoDeclID
	}
	return b.tree.NewConstant(c.Name(), c.Pos(), typ, val)
}
