package writer

import (
	"fmt"
	"strings"
)

// libraryStem derives the default library stem from the header name:
// "zlib_h" loads libzlib.
func (g *gen) libraryStem() string {
	stem := strings.TrimSuffix(g.seq.Header, "_h")
	if stem == "" {
		stem = g.pkg
	}
	return stem
}

// loader writes the library handle and the call helpers every binding file
// relies on.
func (g *gen) loader() *buf {
	b := newBuf()
	b.use("fmt", "sync", "unsafe", ffiPath)
	if g.opts.Library != "" {
		fmt.Fprintf(b, "// Library is the shared library the bindings are loaded from.\nvar Library = %q\n\n", g.opts.Library)
	} else {
		b.use("runtime")
		fmt.Fprintf(b, "// Library is the shared library the bindings are loaded from.\nvar Library = libraryName(%q)\n\n", g.libraryStem())
		b.WriteString(libraryNameSrc)
	}
	b.WriteString(loaderSrc)
	return b
}

const libraryNameSrc = `func libraryName(stem string) string {
	switch runtime.GOOS {
	case "darwin":
		return "lib" + stem + ".dylib"
	case "windows":
		return stem + ".dll"
	}
	return "lib" + stem + ".so"
}

`

const loaderSrc = `var lib struct {
	once   sync.Once
	handle ffi.Lib
	err    error
}

// Load opens Library. Bindings call it on first use; calling it first
// reports a missing library as an error instead of a panic.
func Load() error {
	lib.once.Do(func() {
		lib.handle, lib.err = ffi.Load(Library)
	})
	return lib.err
}

type fun struct {
	name string
	ret  *ffi.Type
	args []*ffi.Type

	once sync.Once
	f    ffi.Fun
	err  error
}

func (f *fun) call(ret unsafe.Pointer, args ...unsafe.Pointer) {
	f.once.Do(func() {
		if f.err = Load(); f.err != nil {
			return
		}
		f.f, f.err = lib.handle.Prep(f.name, f.ret, f.args...)
	})
	if f.err != nil {
		panic(fmt.Errorf("%s: %w", f.name, f.err))
	}
	f.f.Call(ret, args...)
}

type sym struct {
	name string

	once sync.Once
	addr uintptr
	err  error
}

func (s *sym) ptr() unsafe.Pointer {
	s.once.Do(func() {
		if s.err = Load(); s.err != nil {
			return
		}
		s.addr, s.err = lib.handle.Get(s.name)
	})
	if s.err != nil {
		panic(fmt.Errorf("%s: %w", s.name, s.err))
	}
	return unsafe.Pointer(s.addr)
}

func join(parts ...[]*ffi.Type) []*ffi.Type {
	var out []*ffi.Type
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func repeat(elems []*ffi.Type, n int) []*ffi.Type {
	out := make([]*ffi.Type, 0, len(elems)*n)
	for range n {
		out = append(out, elems...)
	}
	return out
}

func newCallback(ret *ffi.Type, args []*ffi.Type, call func(ret unsafe.Pointer, args []unsafe.Pointer)) uintptr {
	cif := new(ffi.Cif)
	if status := ffi.PrepCif(cif, ffi.DefaultAbi, uint32(len(args)), ret, args...); status != ffi.OK {
		panic(fmt.Errorf("callback: prep cif: %v", status))
	}
	var code unsafe.Pointer
	closure := ffi.ClosureAlloc(unsafe.Sizeof(ffi.Closure{}), &code)
	n := len(args)
	fn := ffi.NewCallback(func(_ *ffi.Cif, ret unsafe.Pointer, argv *unsafe.Pointer, _ unsafe.Pointer) uintptr {
		call(ret, unsafe.Slice(argv, n))
		return 0
	})
	if status := ffi.PrepClosureLoc(closure, cif, fn, nil, code); status != ffi.OK {
		panic(fmt.Errorf("callback: prep closure: %v", status))
	}
	return uintptr(code)
}
`
