package writer

import (
	"fmt"
	"go/token"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/huandu/xstrings"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"hbind/internal/diag"
	"hbind/internal/source"
)

var lower = cases.Lower(language.Und)

// Exported maps a canonical binding name to an exported Go identifier. Each
// '$'-separated part is converted from snake case; the parts are joined with
// '_'. "S$inner_data" becomes "S_InnerData".
func Exported(canonical string) string {
	parts := strings.Split(canonical, "$")
	for i, p := range parts {
		p = strings.Trim(norm.NFC.String(p), "_")
		if p == "" {
			parts[i] = "X"
			continue
		}
		if !hasLower(p) {
			// MAX_SIZE reads as max_size
			p = lower.String(p)
		}
		parts[i] = xstrings.ToPascalCase(p)
	}
	s := strings.Join(parts, "_")
	if r, _ := utf8.DecodeRuneInString(s); !unicode.IsUpper(r) {
		s = "X" + s
	}
	return s
}

func hasLower(s string) bool {
	for _, r := range s {
		if unicode.IsLower(r) {
			return true
		}
	}
	return false
}

// local maps a C name to an unexported Go identifier for parameters.
func local(name string, i int) string {
	name = norm.NFC.String(name)
	if name == "" || name == "_" || !isIdent(name) {
		return fmt.Sprintf("x%d", i)
	}
	if token.IsKeyword(name) {
		return name + "_"
	}
	return name
}

func isIdent(s string) bool {
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return s != ""
}

// identTable hands out exported identifiers, one per canonical name. Two
// canonical names that convert to the same identifier keep the first; later
// ones get a numeric suffix and a warning.
type identTable struct {
	byName map[string]string
	taken  map[string]string // identifier -> canonical name, "" for reserved
	rep    diag.Reporter
}

func newIdentTable(rep diag.Reporter, reserved ...string) *identTable {
	t := &identTable{
		byName: make(map[string]string),
		taken:  make(map[string]string),
		rep:    rep,
	}
	for _, r := range reserved {
		t.taken[r] = ""
	}
	return t
}

// claim assigns an identifier to canonical. prefixes lists derived names that
// must stay free too, e.g. "New" for callback constructors.
func (t *identTable) claim(canonical string, pos source.Pos, prefixes ...string) string {
	if id, ok := t.byName[canonical]; ok {
		return id
	}
	base := Exported(canonical)
	id := base
	for n := 2; !t.free(id, prefixes); n++ {
		id = fmt.Sprintf("%s_%d", base, n)
	}
	if id != base {
		other := t.taken[base]
		msg := fmt.Sprintf("%q is emitted as %s: %s is a reserved name", canonical, id, base)
		if other != "" {
			msg = fmt.Sprintf("%q is emitted as %s: %s already names %q", canonical, id, base, other)
		}
		diag.ReportWarning(t.rep, diag.OutputIdentCollision, pos, msg).Emit()
	}
	t.taken[id] = canonical
	for _, p := range prefixes {
		t.taken[p+id] = canonical
	}
	t.byName[canonical] = id
	return id
}

func (t *identTable) free(id string, prefixes []string) bool {
	if _, ok := t.taken[id]; ok {
		return false
	}
	for _, p := range prefixes {
		if _, ok := t.taken[p+id]; ok {
			return false
		}
	}
	return true
}

func (t *identTable) of(canonical string) string {
	if id, ok := t.byName[canonical]; ok {
		return id
	}
	return Exported(canonical)
}

// memberTable names the fields and accessors of one record. Collisions are
// resolved silently: the record itself was already reported if needed.
type memberTable map[string]bool

func (m memberTable) claim(name string) string {
	id := name
	for n := 2; m[id]; n++ {
		id = fmt.Sprintf("%s_%d", name, n)
	}
	m[id] = true
	return id
}
