package ccfront

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"modernc.org/cc/v4"

	"hbind/internal/frontend"
)

func (tr *translator) macros(ast *cc.AST) []*frontend.Node {
	var out []*frontend.Node
	for _, m := range ast.Macros {
		if m == nil || m.IsFnLike {
			continue
		}
		p := m.Name.Position()
		if internalFile(p.Filename) {
			continue
		}
		out = append(out, &frontend.Node{
			K:        frontend.CursorMacro,
			N:        m.Name.SrcStr(),
			P:        mkPos(p.Filename, p.Line, p.Column),
			MacroVal: macroValue(m),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].P.Before(out[j].P) })
	return out
}

// macroValue evaluates an object-like macro. cc's value is used only when its
// type matches the value kind: cc reports unevaluated macros as int 0 of an
// invalid type. Literal replacement lists cc cannot evaluate (floating and
// string literals) are read from the tokens.
func macroValue(m *cc.Macro) frontend.MacroValue {
	if m.IsConst {
		if v, ok := typedValue(m.Value(), m.Type()); ok {
			return v
		}
	}
	toks := m.ReplacementList()
	lx := make([]lexeme, 0, len(toks))
	for _, t := range toks {
		lx = append(lx, lexeme{ch: t.Ch, src: t.SrcStr()})
	}
	v, _ := literalValue(lx)
	return v
}

func typedValue(val cc.Value, t cc.Type) (frontend.MacroValue, bool) {
	if t == nil {
		return frontend.MacroValue{}, false
	}
	switch v := val.(type) {
	case cc.Int64Value:
		if cc.IsIntegerType(t) {
			return frontend.MacroValue{Kind: frontend.MacroInt, Int: int64(v)}, true
		}
	case cc.UInt64Value:
		if cc.IsIntegerType(t) {
			return frontend.MacroValue{Kind: frontend.MacroUint, Uint: uint64(v)}, true
		}
	case cc.Float64Value:
		if cc.IsFloatingPointType(t) && t.Kind() != cc.LongDouble {
			return frontend.MacroValue{Kind: frontend.MacroFloat, Float: float64(v)}, true
		}
	case cc.StringValue:
		if k := t.Kind(); k == cc.Ptr || k == cc.Array {
			return frontend.MacroValue{Kind: frontend.MacroString, Str: strings.TrimSuffix(string(v), "\x00")}, true
		}
	}
	return frontend.MacroValue{}, false
}

// lexeme is the part of a replacement-list token literal evaluation reads.
type lexeme struct {
	ch  rune
	src string
}

// literalValue evaluates a replacement list that is a single literal, possibly
// parenthesized and signed, or a run of adjacent string literals.
func literalValue(toks []lexeme) (frontend.MacroValue, bool) {
	toks = trimLexemes(toks)
	if len(toks) == 0 {
		return frontend.MacroValue{}, false
	}
	if toks[0].ch == rune(cc.STRINGLITERAL) {
		return stringValue(toks)
	}
	neg := false
	if len(toks) == 2 && (toks[0].ch == '-' || toks[0].ch == '+') {
		neg = toks[0].ch == '-'
		toks = toks[1:]
	}
	if len(toks) != 1 {
		return frontend.MacroValue{}, false
	}
	switch toks[0].ch {
	case rune(cc.PPNUMBER):
		return numberValue(strings.ToLower(toks[0].src), neg)
	case rune(cc.CHARCONST):
		s, ok := unescapeC(toks[0].src, '\'')
		if !ok || len(s) != 1 {
			return frontend.MacroValue{}, false
		}
		// plain char is signed on every supported target
		c := int64(int8(s[0]))
		if neg {
			c = -c
		}
		return frontend.MacroValue{Kind: frontend.MacroInt, Int: c}, true
	}
	return frontend.MacroValue{}, false
}

// trimLexemes drops white space and strips enclosing parentheses.
func trimLexemes(toks []lexeme) []lexeme {
	var out []lexeme
	for _, t := range toks {
		switch t.ch {
		case ' ', '\n', '\t', '\r', '\f', '\v':
		default:
			out = append(out, t)
		}
	}
	for len(out) > 2 && out[0].ch == '(' && out[len(out)-1].ch == ')' {
		out = out[1 : len(out)-1]
	}
	return out
}

func stringValue(toks []lexeme) (frontend.MacroValue, bool) {
	var sb strings.Builder
	for _, t := range toks {
		if t.ch != rune(cc.STRINGLITERAL) {
			return frontend.MacroValue{}, false
		}
		s, ok := unescapeC(t.src, '"')
		if !ok {
			return frontend.MacroValue{}, false
		}
		sb.WriteString(s)
	}
	return frontend.MacroValue{Kind: frontend.MacroString, Str: sb.String()}, true
}

// numberValue parses a lower-cased pp-number.
func numberValue(s string, neg bool) (frontend.MacroValue, bool) {
	if strings.ContainsRune(s, '_') {
		return frontend.MacroValue{}, false
	}
	hex := strings.HasPrefix(s, "0x")
	if strings.ContainsRune(s, '.') || (hex && strings.ContainsRune(s, 'p')) || (!hex && strings.ContainsRune(s, 'e')) {
		return floatValue(s, neg)
	}

	body := strings.TrimRight(s, "ul")
	unsigned := strings.ContainsRune(s[len(body):], 'u')
	v, err := strconv.ParseUint(body, 0, 64)
	if err != nil {
		return frontend.MacroValue{}, false
	}
	switch {
	case neg && unsigned:
		return frontend.MacroValue{}, false
	case neg && v > 1<<63:
		return frontend.MacroValue{}, false
	case neg:
		return frontend.MacroValue{Kind: frontend.MacroInt, Int: int64(-v)}, true //nolint:gosec // two's complement negation, v <= 1<<63
	case unsigned || v > math.MaxInt64:
		return frontend.MacroValue{Kind: frontend.MacroUint, Uint: v}, true
	}
	return frontend.MacroValue{Kind: frontend.MacroInt, Int: int64(v)}, true
}

func floatValue(s string, neg bool) (frontend.MacroValue, bool) {
	if strings.HasSuffix(s, "l") {
		// long double has no Go counterpart
		return frontend.MacroValue{}, false
	}
	single := strings.HasSuffix(s, "f")
	f, err := strconv.ParseFloat(strings.TrimSuffix(s, "f"), 64)
	if err != nil {
		return frontend.MacroValue{}, false
	}
	if single {
		f = float64(float32(f))
	}
	if neg {
		f = -f
	}
	return frontend.MacroValue{Kind: frontend.MacroFloat, Float: f}, true
}

// unescapeC decodes a C string or character literal quoted with q. Wide and
// UTF prefixed literals are not accepted.
func unescapeC(lit string, q byte) (string, bool) {
	if len(lit) < 2 || lit[0] != q || lit[len(lit)-1] != q {
		return "", false
	}
	body := lit[1 : len(lit)-1]
	var sb strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' {
			sb.WriteByte(c)
			continue
		}
		i++
		if i == len(body) {
			return "", false
		}
		switch c = body[i]; c {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case 'a':
			sb.WriteByte('\a')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'v':
			sb.WriteByte('\v')
		case '\\', '\'', '"', '?':
			sb.WriteByte(c)
		case 'x':
			j := i + 1
			for j < len(body) && isHexDigit(body[j]) {
				j++
			}
			v, err := strconv.ParseUint(body[i+1:j], 16, 8)
			if err != nil {
				return "", false
			}
			sb.WriteByte(byte(v))
			i = j - 1
		case '0', '1', '2', '3', '4', '5', '6', '7':
			j := i
			for j < len(body) && j < i+3 && body[j] >= '0' && body[j] <= '7' {
				j++
			}
			v, err := strconv.ParseUint(body[i:j], 8, 8)
			if err != nil {
				return "", false
			}
			sb.WriteByte(byte(v))
			i = j - 1
		default:
			return "", false
		}
	}
	return sb.String(), true
}

func isHexDigit(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}
