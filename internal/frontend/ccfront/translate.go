package ccfront

import (
	"strings"

	"fortio.org/safecast"
	"modernc.org/cc/v4"

	"hbind/internal/frontend"
	"hbind/internal/source"
)

// translator converts a cc AST into frontend nodes eagerly, so the rest of the
// pipeline never calls into cc outside the session lock.
type translator struct {
	records   map[cc.Type]*frontend.Node
	typedefs  map[*cc.Declarator]*frontend.TypeNode
	tdCursors map[*cc.Declarator]*frontend.Node
	expanding map[*cc.Declarator]bool
	emitted   map[*frontend.Node]bool
	pending   []*frontend.Node

	// read returns header text for the packing scanner; nil disables it.
	read     func(path string) ([]byte, error)
	packs    map[string]map[packKey]packing
	packUsed map[string]bool
	loose    map[*frontend.Node]bool // records whose cc offsets are wrong
}

func newTranslator(read func(string) ([]byte, error)) *translator {
	return &translator{
		records:   make(map[cc.Type]*frontend.Node),
		typedefs:  make(map[*cc.Declarator]*frontend.TypeNode),
		tdCursors: make(map[*cc.Declarator]*frontend.Node),
		expanding: make(map[*cc.Declarator]bool),
		emitted:   make(map[*frontend.Node]bool),
		read:      read,
		packs:     make(map[string]map[packKey]packing),
		packUsed:  make(map[string]bool),
		loose:     make(map[*frontend.Node]bool),
	}
}

func mkPos(file string, line, col int) source.Pos {
	if file == "" || strings.HasPrefix(file, "<") {
		return source.Pos{}
	}
	l, err := safecast.Conv[uint32](line)
	if err != nil {
		l = 0
	}
	c, err := safecast.Conv[uint32](col)
	if err != nil {
		c = 0
	}
	return source.Pos{File: file, Line: l, Col: c}
}

func internalFile(file string) bool {
	return file == "" || strings.HasPrefix(file, "<")
}

func (tr *translator) translationUnit(ast *cc.AST) *frontend.Node {
	root := &frontend.Node{K: frontend.CursorTranslationUnit}
	for l := ast.TranslationUnit; l != nil; l = l.TranslationUnit {
		ed := l.ExternalDeclaration
		if ed == nil {
			continue
		}
		var nodes []*frontend.Node
		switch ed.Case {
		case cc.ExternalDeclarationDecl:
			nodes = tr.declaration(ed.Declaration)
		case cc.ExternalDeclarationFuncDef:
			if n := tr.declarator(ed.FunctionDefinition.Declarator); n != nil {
				nodes = append(nodes, n)
			}
		}
		root.Kids = append(root.Kids, tr.flush()...)
		root.Kids = append(root.Kids, nodes...)
	}
	root.Kids = append(root.Kids, tr.macros(ast)...)
	tr.dropOffsets()
	return root
}

// flush returns named records discovered since the last call, in discovery order.
func (tr *translator) flush() []*frontend.Node {
	out := tr.pending
	tr.pending = nil
	return out
}

func (tr *translator) declaration(n *cc.Declaration) []*frontend.Node {
	if n == nil || n.Case != cc.DeclarationDecl {
		return nil
	}
	var out []*frontend.Node
	if n.DeclarationSpecifiers != nil {
		if rec := tr.tagOnly(n); rec != nil {
			out = append(out, rec)
		}
	}
	for l := n.InitDeclaratorList; l != nil; l = l.InitDeclaratorList {
		if l.InitDeclarator == nil {
			continue
		}
		if node := tr.declarator(l.InitDeclarator.Declarator); node != nil {
			out = append(out, node)
		}
	}
	return out
}

// tagOnly handles the type named by the specifiers of a declaration. Named
// records are queued through record(); an anonymous enum declared on its own
// is returned so that its constants reach the top level.
func (tr *translator) tagOnly(n *cc.Declaration) *frontend.Node {
	t := n.DeclarationSpecifiers.Type()
	if t == nil {
		return nil
	}
	switch t.Kind() {
	case cc.Struct, cc.Union, cc.Enum:
	default:
		return nil
	}
	rec := tr.record(t, n.Position().Filename, n.Position().Line, n.Position().Column)
	if rec == nil || internalFile(n.Position().Filename) {
		return nil
	}
	if rec.N == "" && rec.K == frontend.CursorEnum && n.InitDeclaratorList == nil && !tr.emitted[rec] {
		tr.emitted[rec] = true
		return rec
	}
	return nil
}

func (tr *translator) declarator(d *cc.Declarator) *frontend.Node {
	if d == nil || d.Name() == "" {
		return nil
	}
	p := d.Position()
	if internalFile(p.Filename) {
		return nil
	}
	pos := mkPos(p.Filename, p.Line, p.Column)
	link := frontend.LinkageNone
	switch d.Linkage() {
	case cc.External:
		link = frontend.LinkageExternal
	case cc.Internal:
		link = frontend.LinkageInternal
	}

	if d.IsTypename() {
		if n, ok := tr.tdCursors[d]; ok {
			return n
		}
		node := &frontend.Node{K: frontend.CursorTypedef, N: d.Name(), P: pos, Link: link}
		tr.tdCursors[d] = node
		tr.expanding[d] = true
		node.T = tr.typeOf(d.Type())
		delete(tr.expanding, d)
		tr.packName(d, d.Type())
		if td, ok := tr.typedefs[d]; ok {
			td.D = node
		}
		return node
	}

	t := d.Type()
	if t == nil {
		return nil
	}
	defer tr.packName(d, t)
	if t.Kind() == cc.Function {
		node := &frontend.Node{K: frontend.CursorFunction, N: d.Name(), P: pos, Link: link}
		node.T = tr.typeOf(t)
		if ft, ok := t.(*cc.FunctionType); ok {
			for _, prm := range ft.Parameters() {
				if prm == nil || prm.Type() == nil || prm.Type().Kind() == cc.Void {
					continue
				}
				node.Kids = append(node.Kids, &frontend.Node{
					K: frontend.CursorParam,
					N: prm.Name(),
					P: pos,
					T: tr.typeOf(prm.Type()),
				})
			}
		}
		return node
	}
	node := &frontend.Node{K: frontend.CursorVar, N: d.Name(), P: pos, Link: link}
	node.T = tr.typeOf(t)
	return node
}

// record returns the cursor of a struct, union or enum type, creating it once.
func (tr *translator) record(t cc.Type, file string, line, col int) *frontend.Node {
	if n, ok := tr.records[t]; ok {
		return n
	}
	node := &frontend.Node{P: mkPos(file, line, col), Def: !t.IsIncomplete()}
	tr.records[t] = node
	switch x := t.(type) {
	case *cc.StructType:
		node.K = frontend.CursorStruct
		tag := x.Tag()
		node.N = tag.SrcStr()
		if node.N != "" {
			tp := tag.Position()
			node.P = mkPos(tp.Filename, tp.Line, tp.Column)
		}
		if node.Def {
			node.Kids = tr.fields(x.NumFields(), x.FieldByIndex)
			tr.markAligned(node, t)
			if node.N != "" {
				tp := tag.Position()
				tr.packTagged(node, tp.Filename, tp.Line, tp.Column)
			}
		}
	case *cc.UnionType:
		node.K = frontend.CursorUnion
		tag := x.Tag()
		node.N = tag.SrcStr()
		if node.N != "" {
			tp := tag.Position()
			node.P = mkPos(tp.Filename, tp.Line, tp.Column)
		}
		if node.Def {
			node.Kids = tr.fields(x.NumFields(), x.FieldByIndex)
			tr.markAligned(node, t)
			if node.N != "" {
				tp := tag.Position()
				tr.packTagged(node, tp.Filename, tp.Line, tp.Column)
			}
		}
	case *cc.EnumType:
		node.K = frontend.CursorEnum
		tag := x.Tag()
		node.N = tag.SrcStr()
		if node.N != "" {
			tp := tag.Position()
			node.P = mkPos(tp.Filename, tp.Line, tp.Column)
		}
		for _, e := range x.Enumerators() {
			ep := e.Token.Position()
			c := &frontend.Node{K: frontend.CursorEnumConstant, N: e.Token.SrcStr(), P: mkPos(ep.Filename, ep.Line, ep.Column)}
			switch v := e.Value().(type) {
			case cc.Int64Value:
				c.EnumVal = int64(v)
			case cc.UInt64Value:
				c.EnumVal = int64(v) //nolint:gosec // enum constants fit the underlying type
			}
			node.Kids = append(node.Kids, c)
		}
	default:
		return nil
	}
	for _, k := range node.Kids {
		if k.P.IsSynthetic() {
			k.P = node.P
		}
	}
	if node.N != "" && !node.P.IsSynthetic() {
		tr.pending = append(tr.pending, node)
		tr.emitted[node] = true
	}
	return node
}

func (tr *translator) fields(n int, at func(int) *cc.Field) []*frontend.Node {
	out := make([]*frontend.Node, 0, n)
	for i := range n {
		f := at(i)
		if f == nil {
			continue
		}
		node := &frontend.Node{K: frontend.CursorField, N: f.Name(), T: tr.typeOf(f.Type()), HasOffset: true}
		node.Offset = int64(f.Offset()) * 8
		if f.IsBitfield() {
			node.Bitfield = true
			node.Width = int64(f.ValueBits())
			node.Offset += int64(f.OffsetBits())
		}
		node.Flexible = f.IsFlexibleArrayMember()
		out = append(out, node)
	}
	return out
}

// markAligned infers an aligned attribute from a record alignment above what
// its members need. Packing is not visible here: cc lays every record out
// naturally, so packTagged and packDeclared read it from the source.
func (tr *translator) markAligned(node *frontend.Node, t cc.Type) {
	var maxAlign int64 = 1
	for _, k := range node.Kids {
		if k.T == nil || k.Bitfield {
			continue
		}
		maxAlign = max(maxAlign, k.T.Al)
	}
	if align := int64(t.Align()); align > maxAlign && len(node.Kids) > 0 {
		node.Aligned = align
	}
}

func (tr *translator) typeOf(t cc.Type) *frontend.TypeNode {
	if t == nil {
		return &frontend.TypeNode{K: frontend.TypeInvalid, Sz: -1, Al: -1}
	}
	if td := t.Typedef(); td != nil && td.Name() != "" && !tr.expanding[td] {
		if n, ok := tr.typedefs[td]; ok {
			return n
		}
		n := &frontend.TypeNode{K: frontend.TypeTypedef, Spell: td.Name(), Sz: -1, Al: -1, D: tr.tdCursors[td]}
		tr.typedefs[td] = n
		tr.expanding[td] = true
		n.E = tr.typeOf(td.Type())
		delete(tr.expanding, td)
		n.Sz, n.Al, n.Complete = n.E.Sz, n.E.Al, n.E.Complete
		return n
	}

	n := &frontend.TypeNode{Spell: t.String(), Complete: !t.IsIncomplete(), Sz: -1, Al: -1}
	if n.Complete && t.Kind() != cc.Function && t.Kind() != cc.Void {
		n.Sz = t.Size()
		n.Al = int64(t.Align())
	}
	switch t.Kind() {
	case cc.Void:
		n.K = frontend.TypeVoid
	case cc.Bool:
		n.K = frontend.TypeBool
	case cc.Char:
		n.K = frontend.TypeChar
	case cc.SChar:
		n.K = frontend.TypeSChar
	case cc.UChar:
		n.K = frontend.TypeUChar
	case cc.Short:
		n.K = frontend.TypeShort
	case cc.UShort:
		n.K = frontend.TypeUShort
	case cc.Int:
		n.K = frontend.TypeInt
	case cc.UInt:
		n.K = frontend.TypeUInt
	case cc.Long:
		n.K = frontend.TypeLong
	case cc.ULong:
		n.K = frontend.TypeULong
	case cc.LongLong:
		n.K = frontend.TypeLongLong
	case cc.ULongLong:
		n.K = frontend.TypeULongLong
	case cc.Int128:
		n.K = frontend.TypeInt128
	case cc.UInt128:
		n.K = frontend.TypeUInt128
	case cc.Float:
		n.K = frontend.TypeFloat
	case cc.Double:
		n.K = frontend.TypeDouble
	case cc.LongDouble:
		n.K = frontend.TypeLongDouble
	case cc.Ptr:
		n.K = frontend.TypePointer
		if pt, ok := t.(*cc.PointerType); ok {
			n.E = tr.typeOf(pt.Elem())
		}
	case cc.Array:
		at, ok := t.(*cc.ArrayType)
		if !ok {
			n.K = frontend.TypeUnexposed
			break
		}
		n.E = tr.typeOf(at.Elem())
		switch {
		case at.IsVLA():
			n.K = frontend.TypeVariableArray
		case t.IsIncomplete():
			n.K = frontend.TypeIncompleteArray
		default:
			n.K = frontend.TypeConstantArray
			n.N = at.Len()
		}
	case cc.Function:
		n.K = frontend.TypeFunction
		ft, ok := t.(*cc.FunctionType)
		if !ok {
			n.K = frontend.TypeUnexposed
			break
		}
		n.Res = tr.typeOf(ft.Result())
		n.Var = ft.IsVariadic()
		for _, p := range ft.Parameters() {
			if p == nil || p.Type() == nil || p.Type().Kind() == cc.Void {
				continue
			}
			n.Ps = append(n.Ps, tr.typeOf(p.Type()))
			n.PNames = append(n.PNames, p.Name())
		}
	case cc.Struct, cc.Union:
		n.K = frontend.TypeRecord
		n.D = tr.record(t, "", 0, 0)
	case cc.Enum:
		n.K = frontend.TypeEnum
		n.D = tr.record(t, "", 0, 0)
		if et, ok := t.(*cc.EnumType); ok {
			n.E = tr.typeOf(et.UnderlyingType())
		}
	default:
		tr.fallback(t, n)
	}
	return n
}

// fallback classifies kinds the switch does not name: complex and extended
// floating types by size, everything else as unexposed.
func (tr *translator) fallback(t cc.Type, n *frontend.TypeNode) {
	switch {
	case cc.IsComplexType(t):
		n.K = frontend.TypeComplex
		half := t.Size() / 2
		elem := &frontend.TypeNode{Sz: half, Al: half, Complete: true}
		switch half {
		case 4:
			elem.K, elem.Spell = frontend.TypeFloat, "float"
		case 8:
			elem.K, elem.Spell = frontend.TypeDouble, "double"
		default:
			elem.K, elem.Spell = frontend.TypeLongDouble, "long double"
		}
		n.E = elem
	case cc.IsFloatingPointType(t):
		switch t.Size() {
		case 2:
			n.K = frontend.TypeFloat16
		case 4:
			n.K = frontend.TypeFloat
		case 8:
			n.K = frontend.TypeDouble
		default:
			n.K = frontend.TypeFloat128
		}
	default:
		n.K = frontend.TypeUnexposed
	}
}
