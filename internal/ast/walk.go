package ast

// Children returns members, parameters and nested records of id in that order.
func (t *Tree) Children(id DeclID) []DeclID {
	d := t.Decl(id)
	if d == nil {
		return nil
	}
	out := make([]DeclID, 0, len(d.Members)+len(d.Params)+len(d.Nested))
	out = append(out, d.Members...)
	out = append(out, d.Params...)
	out = append(out, d.Nested...)
	return out
}

// Walk visits id and its descendants depth-first in declaration order. Returning
// false from visit skips the children of that node.
func (t *Tree) Walk(id DeclID, visit func(id DeclID, d *Decl, depth int) bool) {
	var rec func(DeclID, int)
	rec = func(cur DeclID, depth int) {
		d := t.Decl(cur)
		if d == nil || !visit(cur, d, depth) {
			return
		}
		for _, c := range t.Children(cur) {
			rec(c, depth+1)
		}
	}
	rec(id, 0)
}

// Toplevel returns the members of the root declaration.
func (t *Tree) Toplevel() []DeclID {
	if d := t.Decl(t.Root); d != nil {
		return d.Members
	}
	return nil
}

// Enclosing returns the nearest ancestor that is not a bitfield group.
func (t *Tree) Enclosing(id DeclID) DeclID {
	d := t.Decl(id)
	for d != nil && d.Parent.IsValid() {
		p := t.Decl(d.Parent)
		if p == nil {
			return NoDeclID
		}
		if !p.IsScoped(ScopeBitfieldGroup) {
			return d.Parent
		}
		d = p
	}
	return NoDeclID
}

// Fields flattens bitfield groups and returns the data members of a record in
// declaration order. C11 anonymous members are returned as is.
func (t *Tree) Fields(record DeclID) []DeclID {
	d := t.Decl(record)
	if d == nil || d.Kind != DeclScoped {
		return nil
	}
	var out []DeclID
	for _, m := range d.Members {
		md := t.Decl(m)
		if md == nil {
			continue
		}
		if md.IsScoped(ScopeBitfieldGroup) {
			out = append(out, md.Members...)
			continue
		}
		out = append(out, m)
	}
	return out
}
