package naming

import (
	"strconv"
	"strings"
)

var goKeywords = map[string]bool{
	"break": true, "case": true, "chan": true, "const": true, "continue": true,
	"default": true, "defer": true, "else": true, "fallthrough": true, "for": true,
	"func": true, "go": true, "goto": true, "if": true, "import": true,
	"interface": true, "map": true, "package": true, "range": true, "return": true,
	"select": true, "struct": true, "switch": true, "type": true, "var": true,
	"_": true,
}

// safeIdent appends '_' to names that cannot be used as Go identifiers.
func safeIdent(name string) (string, bool) {
	if goKeywords[name] {
		return name + "_", true
	}
	return name, false
}

// scope tracks the type-like names introduced inside one record or at the top
// level.
type scope struct {
	prefix string // canonical name of the owner, empty at the top level
	seen   map[string]struct{}
	count  int
}

func newScope(prefix string) *scope {
	return &scope{prefix: prefix, seen: make(map[string]struct{})}
}

func (s *scope) taken(name string) bool {
	_, ok := s.seen[strings.ToLower(name)]
	return ok
}

// unique returns name, or name with a "$<n>" suffix when it is taken.
func (s *scope) unique(name string) (string, bool) {
	if !s.taken(name) {
		s.seen[strings.ToLower(name)] = struct{}{}
		return name, false
	}
	for {
		cand := name + "$" + strconv.Itoa(s.count)
		s.count++
		if !s.taken(cand) {
			s.seen[strings.ToLower(cand)] = struct{}{}
			return cand, true
		}
	}
}

func (s *scope) qualify(local string) string {
	if s.prefix == "" {
		return local
	}
	return s.prefix + "$" + local
}
