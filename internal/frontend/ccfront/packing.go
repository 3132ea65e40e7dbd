package ccfront

import (
	"maps"
	"slices"
	"sort"
	"strconv"
	"strings"

	"modernc.org/cc/v4"

	"hbind/internal/diag"
	"hbind/internal/frontend"
)

// cc lays every record out with natural alignment: it does not implement
// __attribute__((packed)) or #pragma pack. The scanner below finds both in
// the header text so the translator can mark the records and drop cc's
// offsets for them.

// packing is what the source says about one record definition.
type packing struct {
	packed bool  // packed attribute, or pack(1)
	pack   int64 // #pragma pack value in effect, 0 when none
	anon   bool  // no tag; keyed by the first declarator after the body
	name   string
	line   int
	col    int
	// position of the struct or union keyword
	kwLine int
	kwCol  int
}

func (p packing) active() bool { return p.packed || p.pack > 0 }

type ptok struct {
	text string
	line int
	col  int
	// pack is the #pragma pack value in effect at this token
	pack int64
}

// scanPacking returns the records of src that are packed or defined under a
// #pragma pack.
func scanPacking(src []byte) []packing {
	toks := tokenizePacking(src)
	type frame struct {
		p     packing
		depth int
	}
	var (
		out    []packing
		frames []frame
		depth  int
	)
	for i := 0; i < len(toks); i++ {
		switch toks[i].text {
		case "{":
			depth++
		case "}":
			if n := len(frames); n > 0 && frames[n-1].depth == depth {
				f := frames[n-1]
				frames = frames[:n-1]
				next, packed := skipAttributes(toks, i+1)
				f.p.packed = f.p.packed || packed
				if f.p.anon {
					if d, ok := declaratorAfter(toks, next); ok {
						f.p.line, f.p.col = d.line, d.col
					} else {
						// nothing declared; keep the key unique, no cc position matches it
						f.p.line, f.p.col = -f.p.kwLine, -f.p.kwCol
					}
				}
				if f.p.active() {
					out = append(out, f.p)
				}
			}
			depth--
		case "struct", "union":
			j, packed := skipAttributes(toks, i+1)
			p := packing{packed: packed, anon: true, kwLine: toks[i].line, kwCol: toks[i].col}
			if j < len(toks) && isIdent(toks[j].text) {
				p.anon = false
				p.name = toks[j].text
				p.line, p.col = toks[j].line, toks[j].col
				j, packed = skipAttributes(toks, j+1)
				p.packed = p.packed || packed
			}
			if j < len(toks) && toks[j].text == "{" {
				p.pack = toks[j].pack
				if p.pack == 1 {
					p.packed = true
				}
				frames = append(frames, frame{p: p, depth: depth + 1})
				i = j - 1
			}
		}
	}
	return out
}

// skipAttributes steps over GNU and C23 attribute specifiers starting at i and
// reports whether any of them says packed.
func skipAttributes(toks []ptok, i int) (int, bool) {
	packed := false
	for i < len(toks) {
		switch t := toks[i].text; {
		case t == "__attribute__" || t == "__attribute" || t == "__declspec":
			end := matchParen(toks, i+1)
			packed = packed || hasPacked(toks[i+1:end])
			i = end
		case t == "[" && i+1 < len(toks) && toks[i+1].text == "[":
			j := i + 2
			for j+1 < len(toks) && (toks[j].text != "]" || toks[j+1].text != "]") {
				j++
			}
			packed = packed || hasPacked(toks[i+2:j])
			i = min(j+2, len(toks))
		default:
			return i, packed
		}
	}
	return i, packed
}

// matchParen returns the index after the parenthesized group opening at i.
func matchParen(toks []ptok, i int) int {
	if i >= len(toks) || toks[i].text != "(" {
		return i
	}
	depth := 0
	for ; i < len(toks); i++ {
		switch toks[i].text {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return i
}

func hasPacked(toks []ptok) bool {
	for _, t := range toks {
		if t.text == "packed" || t.text == "__packed__" {
			return true
		}
	}
	return false
}

// declaratorAfter finds the name declared right after a record body, as in
// "} *p;" or "} T;".
func declaratorAfter(toks []ptok, i int) (ptok, bool) {
	for ; i < len(toks); i++ {
		switch t := toks[i].text; t {
		case "*", "(", "const", "volatile", "restrict", "__restrict":
			continue
		default:
			if isIdent(t) {
				return toks[i], true
			}
			return ptok{}, false
		}
	}
	return ptok{}, false
}

func isIdent(s string) bool {
	if s == "" || s == "struct" || s == "union" || s == "enum" {
		return false
	}
	c := s[0]
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// tokenizePacking splits C source into identifiers, numbers and punctuation,
// dropping comments, literals and preprocessor lines. #pragma pack lines
// update the pack value carried by the following tokens.
func tokenizePacking(src []byte) []ptok {
	var (
		out   []ptok
		stack []int64
		pack  int64
	)
	line, col := 1, 1
	bol := true // only white space since the line began
	advance := func(n int) []byte {
		for _, c := range src[:n] {
			if c == '\n' {
				line, col = line+1, 1
			} else {
				col++
			}
		}
		s := src[:n]
		src = src[n:]
		return s
	}
	for len(src) > 0 {
		c := src[0]
		switch {
		case c == '\n':
			advance(1)
			bol = true
			continue
		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			advance(1)
			continue
		case c == '\\' && len(src) > 1 && src[1] == '\n':
			advance(2)
			continue
		case c == '/' && len(src) > 1 && src[1] == '/':
			advance(lineEnd(src))
			continue
		case c == '/' && len(src) > 1 && src[1] == '*':
			end := strings.Index(string(src[2:]), "*/")
			if end < 0 {
				advance(len(src))
			} else {
				advance(end + 4)
			}
			continue
		case c == '#' && bol:
			n := directiveEnd(src)
			pack, stack = pragmaPack(string(src[:n]), pack, stack)
			advance(n)
			continue
		}
		bol = false
		l, cl := line, col
		switch {
		case c == '"' || c == '\'':
			advance(literalEnd(src))
			continue
		case c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9':
			n := 1
			for n < len(src) && isWordByte(src[n]) {
				n++
			}
			out = append(out, ptok{text: string(advance(n)), line: l, col: cl, pack: pack})
		default:
			out = append(out, ptok{text: string(advance(1)), line: l, col: cl, pack: pack})
		}
	}
	return out
}

func isWordByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func lineEnd(src []byte) int {
	for i, c := range src {
		if c == '\n' {
			return i
		}
	}
	return len(src)
}

// directiveEnd returns the length of a preprocessor line, continuations included.
func directiveEnd(src []byte) int {
	for i := 0; i < len(src); i++ {
		switch {
		case src[i] == '\\' && i+1 < len(src) && src[i+1] == '\n':
			i++
		case src[i] == '\n':
			return i
		}
	}
	return len(src)
}

func literalEnd(src []byte) int {
	q := src[0]
	for i := 1; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case q, '\n':
			return i + 1
		}
	}
	return len(src)
}

// pragmaPack applies a "#pragma pack(...)" directive. Other directives leave
// the state alone.
func pragmaPack(dir string, pack int64, stack []int64) (int64, []int64) {
	fields := strings.Fields(strings.NewReplacer("\\\n", " ", "(", " ( ", ")", " ) ", ",", " , ").Replace(dir[1:]))
	if len(fields) < 2 || fields[0] != "pragma" || fields[1] != "pack" {
		return pack, stack
	}
	var args []string
scan:
	for _, f := range fields[2:] {
		switch f {
		case "(", ",":
		case ")":
			break scan
		default:
			args = append(args, f)
		}
	}
	if len(args) == 0 {
		return 0, stack
	}
	switch args[0] {
	case "push":
		stack = append(stack, pack)
	case "pop":
		if n := len(stack); n > 0 {
			pack, stack = stack[n-1], stack[:n-1]
		}
	}
	for _, a := range args {
		if n, err := strconv.ParseInt(a, 0, 64); err == nil && n > 0 {
			pack = n
		}
	}
	return pack, stack
}

type packKey struct{ line, col int }

// packingIn returns the scanned records of file, reading it on first use.
func (tr *translator) packingIn(file string) map[packKey]packing {
	if m, ok := tr.packs[file]; ok {
		return m
	}
	m := make(map[packKey]packing)
	tr.packs[file] = m
	if tr.read == nil || internalFile(file) {
		return m
	}
	src, err := tr.read(file)
	if err != nil {
		return m
	}
	for _, p := range scanPacking(src) {
		m[packKey{p.line, p.col}] = p
	}
	return m
}

// packTagged applies the packing of a tagged record defined at file:line:col.
func (tr *translator) packTagged(node *frontend.Node, file string, line, col int) {
	m := tr.packingIn(file)
	p, ok := m[packKey{line, col}]
	if !ok {
		for _, q := range m {
			if !q.anon && q.name == node.N {
				p, ok = q, true
				break
			}
		}
	}
	if ok {
		tr.applyPacking(node, file, p)
	}
}

// packName applies the packing of an anonymous record declared through d.
func (tr *translator) packName(d *cc.Declarator, t cc.Type) {
	np := d.NameTok().Position()
	tr.packDeclared(t, np.Filename, np.Line, np.Column)
}

// packDeclared applies the packing of an anonymous record whose body is
// followed by the declarator at file:line:col.
func (tr *translator) packDeclared(t cc.Type, file string, line, col int) {
	p, ok := tr.packingIn(file)[packKey{line, col}]
	if !ok || !p.anon {
		return
	}
	for t != nil {
		switch x := t.(type) {
		case *cc.PointerType:
			t = x.Elem()
			continue
		case *cc.ArrayType:
			t = x.Elem()
			continue
		}
		break
	}
	if node, ok := tr.records[t]; ok && node.N == "" {
		tr.applyPacking(node, file, p)
	}
}

func (tr *translator) applyPacking(node *frontend.Node, file string, p packing) {
	if p.packed {
		node.IsPacked = true
	} else {
		node.PackAlign = p.pack
	}
	tr.loose[node] = true
	tr.packUsed[file+":"+strconv.Itoa(p.kwLine)+":"+strconv.Itoa(p.kwCol)] = true
}

func (tr *translator) dropOffsets() {
	dropOffsets(slices.Collect(maps.Values(tr.records)), tr.loose)
}

// dropOffsets clears cc's member offsets of loose records and of every record
// holding one by value: cc placed those members with natural alignment.
func dropOffsets(records []*frontend.Node, loose map[*frontend.Node]bool) {
	for changed := true; changed; {
		changed = false
		for _, n := range records {
			if loose[n] || !n.Def {
				continue
			}
			for _, k := range n.Kids {
				if d := recordByValue(k.T); d != nil && loose[d] {
					loose[n] = true
					changed = true
					break
				}
			}
		}
	}
	for n := range loose {
		for _, k := range n.Kids {
			k.HasOffset, k.Offset = false, 0
		}
	}
}

func recordByValue(t *frontend.TypeNode) *frontend.Node {
	for t != nil {
		switch t.K {
		case frontend.TypeTypedef, frontend.TypeConstantArray, frontend.TypeIncompleteArray:
			t = t.E
		case frontend.TypeRecord:
			return t.D
		default:
			return nil
		}
	}
	return nil
}

// unmatchedPacking warns about packed anonymous records of the input headers
// that could not be tied to a translated record.
func (tr *translator) unmatchedPacking(inputs []string) []frontend.Message {
	var out []frontend.Message
	for _, file := range inputs {
		var list []packing
		for _, p := range tr.packingIn(file) {
			if p.anon && !tr.packUsed[file+":"+strconv.Itoa(p.kwLine)+":"+strconv.Itoa(p.kwCol)] {
				list = append(list, p)
			}
		}
		sort.Slice(list, func(i, j int) bool {
			if list[i].kwLine != list[j].kwLine {
				return list[i].kwLine < list[j].kwLine
			}
			return list[i].kwCol < list[j].kwCol
		})
		for _, p := range list {
			out = append(out, frontend.Message{
				Severity: diag.SevWarning,
				Pos:      mkPos(file, p.kwLine, p.kwCol),
				Text:     "packed anonymous record is laid out without packing",
			})
		}
	}
	return out
}
