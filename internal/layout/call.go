package layout

import (
	"fmt"

	"hbind/internal/ast"
	"hbind/internal/types"
)

// DescriptorOf computes the call descriptor of a function type or of a pointer
// to one. Records passed or returned by value carry their own layout.
func (e *LayoutEngine) DescriptorOf(fn types.TypeID) (*CallDescriptor, error) {
	in := e.Tree.Types
	info, ok := in.FnInfo(in.Unqualified(fn))
	if !ok {
		_, pinfo, isPtr := in.PointeeFunction(fn)
		if !isPtr {
			return nil, errorf(LayoutErrInvalid, fn, "not a function type")
		}
		info = pinfo
	}
	state := newLayoutState()
	cd := &CallDescriptor{Variadic: info.Variadic}
	if !in.IsVoid(info.Result) {
		l, err := e.layoutOf(info.Result, state)
		if err != nil {
			return nil, within(err, ast.NoDeclID, "return type")
		}
		cd.Return = l
	}
	cd.Args = make([]*MemoryLayout, 0, len(info.Params))
	for i, p := range info.Params {
		l, err := e.paramLayout(p, state)
		if err != nil {
			return nil, within(err, ast.NoDeclID, fmt.Sprintf("parameter %d", i))
		}
		cd.Args = append(cd.Args, l)
	}
	return cd, nil
}

// paramLayout applies the C parameter adjustments: arrays and functions are
// passed as pointers.
func (e *LayoutEngine) paramLayout(p types.TypeID, state *layoutState) (*MemoryLayout, *LayoutError) {
	in := e.Tree.Types
	if tt, ok := in.Lookup(in.Unqualified(p)); ok {
		if tt.Kind == types.KindFunction || (tt.Kind == types.KindArray && tt.Array != types.ArrayVector) {
			return e.ptrLayout(), nil
		}
	}
	return e.layoutOf(p, state)
}

// DeclLayout is everything the emitter needs about one declaration.
type DeclLayout struct {
	Layout *MemoryLayout   // object layout; nil for functions and constants
	Call   *CallDescriptor // functions, and pointers to functions
}

// Decl lays out a declaration: functions get a call descriptor, records,
// enums, variables and typedefs an object layout. Declarations typed as
// function pointers get both.
func (e *LayoutEngine) Decl(id ast.DeclID) (DeclLayout, error) {
	d := e.Tree.Decl(id)
	if d == nil {
		return DeclLayout{}, &LayoutError{Kind: LayoutErrInvalid, Decl: id, Reason: "unknown declaration"}
	}
	in := e.Tree.Types
	switch d.Kind {
	case ast.DeclFunction:
		cd, err := e.DescriptorOf(d.Type)
		if err != nil {
			return DeclLayout{}, err
		}
		return DeclLayout{Call: cd}, nil
	case ast.DeclConstant:
		return DeclLayout{}, nil
	case ast.DeclScoped:
		if !d.IsRecord() && !d.IsScoped(ast.ScopeEnum) {
			return DeclLayout{}, &LayoutError{Kind: LayoutErrInvalid, Decl: id, Reason: d.KindName() + " has no layout"}
		}
	case ast.DeclTypedef:
		if _, ok := in.FnInfo(in.Unqualified(d.Type)); ok {
			cd, err := e.DescriptorOf(d.Type)
			if err != nil {
				return DeclLayout{}, err
			}
			return DeclLayout{Call: cd}, nil
		}
	}
	l, err := e.LayoutOf(d.Type)
	if err != nil {
		return DeclLayout{}, err
	}
	out := DeclLayout{Layout: l}
	if _, _, ok := in.PointeeFunction(d.Type); ok {
		cd, err := e.DescriptorOf(d.Type)
		if err != nil {
			return DeclLayout{}, err
		}
		out.Call = cd
	}
	return out, nil
}

// Annotate lays out a declaration and marks it unlayoutable on failure. The
// declaration stays in the tree.
func (e *LayoutEngine) Annotate(id ast.DeclID) (DeclLayout, error) {
	dl, err := e.Decl(id)
	if err != nil {
		e.Tree.AddAttr(id, ast.AttrUnlayoutable, err)
		return DeclLayout{}, err
	}
	return dl, nil
}
