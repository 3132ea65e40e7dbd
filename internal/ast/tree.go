package ast

import (
	"errors"
	"fmt"

	"hbind/internal/source"
	"hbind/internal/types"
)

var (
	// ErrAlreadyDefined is returned when members of a scope are set twice.
	ErrAlreadyDefined = errors.New("declaration members already defined")
	// ErrNotScoped is returned when a non-scoped declaration is given members.
	ErrNotScoped = errors.New("declaration is not scoped")
)

// ContainmentError reports a record that contains itself by value.
type ContainmentError struct {
	Record DeclID
	Name   string
	Via    []DeclID
}

func (e *ContainmentError) Error() string {
	name := e.Name
	if name == "" {
		name = "<anonymous>"
	}
	return fmt.Sprintf("record %s contains itself by value", name)
}

// Tree is the arena of declarations built for one translation unit.
type Tree struct {
	Types *types.Interner
	Root  DeclID

	decls *Arena[DeclID, Decl]
	attrs *attrStore
}

// NewTree creates an empty tree over the given type interner.
func NewTree(in *types.Interner, capHint uint) *Tree {
	if in == nil {
		in = types.NewInterner()
	}
	if capHint == 0 {
		capHint = 1 << 8
	}
	return &Tree{
		Types: in,
		decls: NewArena[DeclID, Decl](capHint),
		attrs: newAttrStore(),
	}
}

// Len returns the number of declarations in the tree.
func (t *Tree) Len() int {
	return t.decls.Len()
}

// Decl returns the declaration for id. The returned node must not be modified.
func (t *Tree) Decl(id DeclID) *Decl {
	if t == nil {
		return nil
	}
	return t.decls.Get(id)
}

// Name returns the source name of id or "" when absent.
func (t *Tree) Name(id DeclID) string {
	if d := t.Decl(id); d != nil {
		return d.Name
	}
	return ""
}

func (t *Tree) alloc(d Decl) DeclID {
	return t.decls.Allocate(d)
}

// Reserve allocates a scoped declaration whose members are supplied later with
// DefineMembers. Records and enums get Type = Declared(self), so members may
// refer back to the record before it is complete.
func (t *Tree) Reserve(kind ScopedKind, name string, pos source.Pos) DeclID {
	id := t.alloc(Decl{Kind: DeclScoped, Scoped: kind, Name: name, Pos: pos})
	if kind.IsRecord() || kind == ScopeEnum {
		t.decls.Get(id).Type = t.Types.Declared(id)
	}
	return id
}

// NewScoped allocates a scoped declaration and defines its members at once.
func (t *Tree) NewScoped(kind ScopedKind, name string, pos source.Pos, members []DeclID) (DeclID, error) {
	id := t.Reserve(kind, name, pos)
	if err := t.DefineMembers(id, members); err != nil {
		return id, err
	}
	return id, nil
}

// DefineMembers sets the ordered members of a reserved scope. It can be called
// once per scope. A record whose members would contain the record itself by
// value is rejected with *ContainmentError and stays undefined.
func (t *Tree) DefineMembers(id DeclID, members []DeclID) error {
	d := t.Decl(id)
	if d == nil || d.Kind != DeclScoped {
		return ErrNotScoped
	}
	if d.defined {
		return ErrAlreadyDefined
	}
	if d.Scoped.IsRecord() {
		if via, ok := t.containsByValue(id, members); ok {
			return &ContainmentError{Record: id, Name: d.Name, Via: via}
		}
	}
	d.Members = append([]DeclID(nil), members...)
	d.defined = true
	for _, m := range members {
		if md := t.Decl(m); md != nil {
			md.Parent = id
		}
	}
	return nil
}

// SetUnderlying records the integer type of an enum. It can be set once.
func (t *Tree) SetUnderlying(id DeclID, typ types.TypeID) {
	d := t.Decl(id)
	if d == nil || !d.IsScoped(ScopeEnum) || d.Underlying.IsValid() {
		return
	}
	d.Underlying = typ
}

// IsDefined reports whether the members of a scope were supplied.
func (t *Tree) IsDefined(id DeclID) bool {
	d := t.Decl(id)
	return d != nil && d.defined
}

// NewFunction allocates a function with its parameter declarations.
func (t *Tree) NewFunction(name string, pos source.Pos, fnType types.TypeID, params []DeclID) DeclID {
	id := t.alloc(Decl{Kind: DeclFunction, Name: name, Pos: pos, Type: fnType, Params: append([]DeclID(nil), params...)})
	for _, p := range params {
		if pd := t.Decl(p); pd != nil {
			pd.Parent = id
		}
	}
	return id
}

// NewVariable allocates a global, field or parameter.
func (t *Tree) NewVariable(kind VarKind, name string, pos source.Pos, typ types.TypeID) DeclID {
	return t.alloc(Decl{Kind: DeclVariable, Var: kind, Name: name, Pos: pos, Type: typ})
}

// NewBitfield allocates a bitfield. Its type is the integer type named in source.
func (t *Tree) NewBitfield(name string, pos source.Pos, typ types.TypeID, width int64) DeclID {
	return t.alloc(Decl{Kind: DeclVariable, Var: VarBitfield, Name: name, Pos: pos, Type: typ, BitWidth: width})
}

// NewTypedef allocates a typedef. The aliased type is stored canonicalized, so
// typedef chains are resolved here once.
func (t *Tree) NewTypedef(name string, pos source.Pos, aliased types.TypeID) DeclID {
	return t.alloc(Decl{Kind: DeclTypedef, Name: name, Pos: pos, Type: t.Types.Canonical(aliased)})
}

// NewConstant allocates a constant with its literal value.
func (t *Tree) NewConstant(name string, pos source.Pos, typ types.TypeID, val Value) DeclID {
	return t.alloc(Decl{Kind: DeclConstant, Name: name, Pos: pos, Type: typ, Value: val})
}

// AddNested records that owner owns the anonymous record nested.
func (t *Tree) AddNested(owner, nested DeclID) {
	od, nd := t.Decl(owner), t.Decl(nested)
	if od == nil || nd == nil {
		return
	}
	od.Nested = append(od.Nested, nested)
	nd.Parent = owner
}

// containsByValue reports whether any member type of a record reaches the record
// itself without passing through a pointer or an incomplete array.
func (t *Tree) containsByValue(self DeclID, members []DeclID) ([]DeclID, bool) {
	visited := make(map[DeclID]bool)
	var path []DeclID
	var reach func(typ types.TypeID) bool
	var scan func(ms []DeclID) bool
	scan = func(ms []DeclID) bool {
		for _, m := range ms {
			md := t.Decl(m)
			if md == nil {
				continue
			}
			switch {
			case md.Kind == DeclScoped && md.Scoped == ScopeBitfieldGroup:
				if scan(md.Members) {
					return true
				}
			case md.Kind == DeclScoped && md.Scoped.IsRecord():
				// C11 anonymous member
				if md.Type.IsValid() && reach(md.Type) {
					return true
				}
			case md.Kind == DeclVariable:
				if reach(md.Type) {
					return true
				}
			}
		}
		return false
	}
	reach = func(typ types.TypeID) bool {
		tt, ok := t.Types.Lookup(typ)
		if !ok {
			return false
		}
		switch tt.Kind {
		case types.KindDeclared:
			if tt.Decl == self {
				return true
			}
			if visited[tt.Decl] {
				return false
			}
			visited[tt.Decl] = true
			d := t.Decl(tt.Decl)
			if d == nil || !d.IsRecord() {
				return false
			}
			path = append(path, tt.Decl)
			if scan(d.Members) {
				return true
			}
			path = path[:len(path)-1]
		case types.KindArray:
			if tt.Array == types.ArrayIncomplete {
				return false
			}
			return reach(tt.Elem)
		case types.KindDelegated:
			if tt.Deleg == types.DelegPointer {
				return false
			}
			return reach(tt.Elem)
		}
		return false
	}
	if scan(members) {
		return path, true
	}
	return nil, false
}
