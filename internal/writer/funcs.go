package writer

import (
	"fmt"
	"math"
	"strings"

	"hbind/internal/ast"
	"hbind/internal/emit"
)

func (g *gen) function(b *buf, u *emit.Unit) {
	id := g.ids.of(u.Name)
	b.use(ffiPath, "unsafe")
	names := paramNames(u.Params)
	sig := make([]string, len(u.Params))
	args := make([]string, len(u.Params))
	ffiArgs := make([]string, len(u.Params))
	for i, p := range u.Params {
		sig[i] = names[i] + " " + g.goType(b, p)
		args[i] = ", unsafe.Pointer(&" + names[i] + ")"
		ffiArgs[i] = g.ffiSlot(b, p)
	}
	ret, retFFI := "", "&ffi.TypeVoid"
	if u.Result != nil {
		ret = " " + g.goType(b, *u.Result)
		retFFI = g.ffiSlot(b, *u.Result)
	}
	fmt.Fprintf(b, "var fn%s = &fun{name: %q, ret: %s, args: []*ffi.Type{%s}}\n\n",
		id, u.CName, retFFI, strings.Join(ffiArgs, ", "))

	fmt.Fprintf(b, "// %s calls %s.\n", id, u.CName)
	if u.Call != nil && u.Call.Variadic {
		b.WriteString("// The variadic part of the C signature is not passed.\n")
	}
	fmt.Fprintf(b, "func %s(%s)%s {\n", id, strings.Join(sig, ", "), ret)
	call := strings.Join(args, "")
	switch {
	case u.Result == nil:
		fmt.Fprintf(b, "\tfn%s.call(nil%s)\n", id, call)
	case widened(*u.Result):
		fmt.Fprintf(b, "\tvar ret ffi.Arg\n\tfn%s.call(unsafe.Pointer(&ret)%s)\n", id, call)
		if isBool(*u.Result) {
			b.WriteString("\treturn ret != 0\n")
		} else {
			fmt.Fprintf(b, "\treturn %s(ret)\n", strings.TrimSpace(ret))
		}
	default:
		fmt.Fprintf(b, "\tvar ret%s\n\tfn%s.call(unsafe.Pointer(&ret)%s)\n\treturn ret\n", ret, id, call)
	}
	b.WriteString("}\n\n")
}

func (g *gen) variable(b *buf, u *emit.Unit) {
	id := g.ids.of(u.Name)
	b.use("unsafe")
	typ := g.goType(b, u.Type)
	fmt.Fprintf(b, "var sym%s = &sym{name: %q}\n\n", id, u.CName)
	fmt.Fprintf(b, "// %s returns the address of %s.\n", id, u.CName)
	fmt.Fprintf(b, "func %s() *%s {\n\treturn (*%s)(sym%s.ptr())\n}\n\n", id, typ, typ, id)
}

// callback writes a function pointer type and a constructor that turns a Go
// function into a C function pointer.
func (g *gen) callback(b *buf, u *emit.Unit) {
	id := g.ids.of(u.Name)
	b.use(ffiPath, "unsafe")
	names := paramNames(u.Params)
	sig := make([]string, len(u.Params))
	args := make([]string, len(u.Params))
	ffiArgs := make([]string, len(u.Params))
	for i, p := range u.Params {
		typ := g.goType(b, p)
		sig[i] = names[i] + " " + typ
		args[i] = fmt.Sprintf("*(*%s)(args[%d])", typ, i)
		ffiArgs[i] = g.ffiSlot(b, p)
	}
	ret, retFFI := "", "&ffi.TypeVoid"
	if u.Result != nil {
		ret = " " + g.goType(b, *u.Result)
		retFFI = g.ffiSlot(b, *u.Result)
	}
	if u.CName != "" {
		fmt.Fprintf(b, "// %s is the C function pointer type %s.\n", id, u.CName)
	} else {
		fmt.Fprintf(b, "// %s is a C function pointer (%s).\n", id, u.Name)
	}
	fmt.Fprintf(b, "type %s uintptr\n\n", id)

	fmt.Fprintf(b, "// New%s returns a C function pointer that calls fn. It is never freed.\n", id)
	fmt.Fprintf(b, "func New%s(fn func(%s)%s) %s {\n", id, strings.Join(sig, ", "), ret, id)
	fmt.Fprintf(b, "\treturn %s(newCallback(%s, []*ffi.Type{%s}, func(ret unsafe.Pointer, args []unsafe.Pointer) {\n",
		id, retFFI, strings.Join(ffiArgs, ", "))
	call := fmt.Sprintf("fn(%s)", strings.Join(args, ", "))
	switch {
	case u.Result == nil:
		fmt.Fprintf(b, "\t\t%s\n", call)
	case isBool(*u.Result):
		fmt.Fprintf(b, "\t\tvar r ffi.Arg\n\t\tif %s {\n\t\t\tr = 1\n\t\t}\n\t\t*(*ffi.Arg)(ret) = r\n", call)
	case widened(*u.Result):
		fmt.Fprintf(b, "\t\t*(*ffi.Arg)(ret) = ffi.Arg(%s)\n", call)
	default:
		fmt.Fprintf(b, "\t\t*(*%s)(ret) = %s\n", strings.TrimSpace(ret), call)
	}
	b.WriteString("\t}))\n}\n\n")
}

func (g *gen) constant(b *buf, u *emit.Unit) {
	id := g.ids.of(u.Name)
	v := u.Value
	if v.Kind == ast.ValueNone || v.Kind == ast.ValueFloat && (math.IsInf(v.Float, 0) || math.IsNaN(v.Float)) {
		fmt.Fprintf(b, "// %s (%s) has no Go constant form.\n\n", id, u.CName)
		return
	}
	lit := v.String()
	if v.Kind == ast.ValueFloat && !strings.ContainsAny(lit, ".eE") {
		lit += ".0"
	}
	if u.Enum != "" {
		fmt.Fprintf(b, "// %s is %s from enum %s.\n", id, u.CName, u.Enum)
		fmt.Fprintf(b, "const %s %s = %s\n\n", id, g.ids.of(u.Enum), lit)
		return
	}
	fmt.Fprintf(b, "// %s is %s.\n", id, u.CName)
	fmt.Fprintf(b, "const %s = %s\n\n", id, lit)
}
