package preprocessor

import (
	"strconv"
	"strings"
)

// exprValue is an intmax_t or uintmax_t value of a #if expression.
type exprValue struct {
	v        int64
	unsigned bool
}

func (v exprValue) truth() bool { return v.v != 0 }

func boolValue(b bool) exprValue {
	if b {
		return exprValue{v: 1}
	}
	return exprValue{}
}

// evalCondition evaluates the controlling expression of #if or #elif.
func (c *Context) evalCondition(toks []Token, pos Position) (bool, error) {
	resolved, err := c.resolveDefined(toks, pos)
	if err != nil {
		return false, err
	}
	expanded, err := c.expandAll(resolved)
	if err != nil {
		return false, err
	}

	var operands []Token
	for _, t := range expanded {
		if t.isBlank() || t.Kind == Newline {
			continue
		}
		operands = append(operands, t)
	}
	if len(operands) == 0 {
		return false, errorf(IllFormedExpression, pos, "#if with no expression")
	}

	p := &exprParser{toks: operands, pos: pos, lang: c.lang}
	v, err := p.comma(true)
	if err != nil {
		return false, err
	}
	if p.i < len(p.toks) {
		return false, errorf(IllFormedExpression, pos, "ill formed preprocessor expression: unexpected %q", p.toks[p.i].Value)
	}
	return v.truth(), nil
}

// resolveDefined replaces "defined NAME" and "defined(NAME)" by 1 or 0.
func (c *Context) resolveDefined(toks []Token, pos Position) ([]Token, error) {
	var out []Token
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.Kind != Identifier || t.Value != "defined" {
			out = append(out, t)
			continue
		}
		j := nextNonBlank(toks, i+1)
		paren := j < len(toks) && toks[j].isPunct("(")
		if paren {
			j = nextNonBlank(toks, j+1)
		}
		if j >= len(toks) || toks[j].Kind != Identifier {
			return nil, errorf(IllFormedExpression, pos, "operator \"defined\" requires an identifier")
		}
		val := "0"
		if c.macros.lookup(toks[j].Value) != nil {
			val = "1"
		}
		if paren {
			j = nextNonBlank(toks, j+1)
			if j >= len(toks) || !toks[j].isPunct(")") {
				return nil, errorf(IllFormedExpression, pos, "missing ')' after \"defined\"")
			}
		}
		out = append(out, Token{Kind: Number, Value: val, Pos: t.Pos})
		i = j
	}
	return out, nil
}

type exprParser struct {
	toks []Token
	i    int
	pos  Position
	lang Language
}

var binaryPrec = map[string]int{
	"||": 1,
	"&&": 2,
	"|":  3,
	"^":  4,
	"&":  5,
	"==": 6, "!=": 6,
	"<": 7, ">": 7, "<=": 7, ">=": 7,
	"<<": 8, ">>": 8,
	"+": 9, "-": 9,
	"*": 10, "/": 10, "%": 10,
}

func (p *exprParser) peek() Token {
	if p.i < len(p.toks) {
		return p.toks[p.i]
	}
	return Token{Kind: EOF}
}

func (p *exprParser) accept(op string) bool {
	if p.peek().isPunct(op) {
		p.i++
		return true
	}
	return false
}

func (p *exprParser) fail(format string, args ...any) (exprValue, error) {
	return exprValue{}, errorf(IllFormedExpression, p.pos, format, args...)
}

// comma parses expression := conditional (',' conditional)*. ev is false
// inside branches that are not evaluated, where errors such as division
// by zero are not raised.
func (p *exprParser) comma(ev bool) (exprValue, error) {
	v, err := p.conditional(ev)
	for err == nil && p.accept(",") {
		v, err = p.conditional(ev)
	}
	return v, err
}

func (p *exprParser) conditional(ev bool) (exprValue, error) {
	cond, err := p.binary(1, ev)
	if err != nil || !p.accept("?") {
		return cond, err
	}
	a, err := p.comma(ev && cond.truth())
	if err != nil {
		return a, err
	}
	if !p.accept(":") {
		return p.fail("missing ':' in conditional expression")
	}
	b, err := p.conditional(ev && !cond.truth())
	if err != nil {
		return b, err
	}
	res := b
	if cond.truth() {
		res = a
	}
	res.unsigned = a.unsigned || b.unsigned
	return res, nil
}

func (p *exprParser) binary(minPrec int, ev bool) (exprValue, error) {
	lhs, err := p.unary(ev)
	if err != nil {
		return lhs, err
	}
	for {
		t := p.peek()
		prec, ok := binaryPrec[t.Value]
		if t.Kind != Punct || !ok || prec < minPrec {
			return lhs, nil
		}
		p.i++
		rev := ev
		switch t.Value {
		case "&&":
			rev = ev && lhs.truth()
		case "||":
			rev = ev && !lhs.truth()
		}
		rhs, err := p.binary(prec+1, rev)
		if err != nil {
			return rhs, err
		}
		if lhs, err = p.apply(t.Value, lhs, rhs, ev); err != nil {
			return lhs, err
		}
	}
}

func (p *exprParser) apply(op string, a, b exprValue, ev bool) (exprValue, error) {
	unsigned := a.unsigned || b.unsigned
	ua, ub := uint64(a.v), uint64(b.v)
	switch op {
	case "||":
		return boolValue(a.truth() || b.truth()), nil
	case "&&":
		return boolValue(a.truth() && b.truth()), nil
	case "|":
		return exprValue{v: a.v | b.v, unsigned: unsigned}, nil
	case "^":
		return exprValue{v: a.v ^ b.v, unsigned: unsigned}, nil
	case "&":
		return exprValue{v: a.v & b.v, unsigned: unsigned}, nil
	case "==":
		return boolValue(a.v == b.v), nil
	case "!=":
		return boolValue(a.v != b.v), nil
	case "<", ">", "<=", ">=":
		var lt, eq bool
		if unsigned {
			lt, eq = ua < ub, ua == ub
		} else {
			lt, eq = a.v < b.v, a.v == b.v
		}
		switch op {
		case "<":
			return boolValue(lt), nil
		case ">":
			return boolValue(!lt && !eq), nil
		case "<=":
			return boolValue(lt || eq), nil
		default:
			return boolValue(!lt), nil
		}
	case "<<", ">>":
		if b.v < 0 || b.v >= 64 {
			if op == ">>" && !a.unsigned && a.v < 0 {
				return exprValue{v: -1}, nil
			}
			return exprValue{unsigned: a.unsigned}, nil
		}
		n := uint(b.v)
		if op == "<<" {
			return exprValue{v: a.v << n, unsigned: a.unsigned}, nil
		}
		if a.unsigned {
			return exprValue{v: int64(ua >> n), unsigned: true}, nil
		}
		return exprValue{v: a.v >> n}, nil
	case "+":
		return exprValue{v: a.v + b.v, unsigned: unsigned}, nil
	case "-":
		return exprValue{v: a.v - b.v, unsigned: unsigned}, nil
	case "*":
		return exprValue{v: a.v * b.v, unsigned: unsigned}, nil
	case "/", "%":
		if b.v == 0 {
			if !ev {
				return exprValue{unsigned: unsigned}, nil
			}
			return exprValue{}, errorf(DivisionByZero, p.pos, "division by zero in preprocessor expression")
		}
		if unsigned {
			if op == "/" {
				return exprValue{v: int64(ua / ub), unsigned: true}, nil
			}
			return exprValue{v: int64(ua % ub), unsigned: true}, nil
		}
		if op == "/" {
			return exprValue{v: a.v / b.v}, nil
		}
		return exprValue{v: a.v % b.v}, nil
	}
	return p.fail("unknown operator %q", op)
}

func (p *exprParser) unary(ev bool) (exprValue, error) {
	t := p.peek()
	if t.Kind == Punct {
		switch t.Value {
		case "+", "-", "~", "!":
			p.i++
			v, err := p.unary(ev)
			if err != nil {
				return v, err
			}
			switch t.Value {
			case "-":
				v.v = -v.v
			case "~":
				v.v = ^v.v
			case "!":
				v = boolValue(!v.truth())
			}
			return v, nil
		}
	}
	return p.primary(ev)
}

func (p *exprParser) primary(ev bool) (exprValue, error) {
	t := p.peek()
	switch t.Kind {
	case Number:
		p.i++
		return p.number(t.Value)
	case CharLiteral:
		p.i++
		return p.char(t.Value)
	case Identifier:
		p.i++
		if p.lang&SupportCPP11 != 0 && t.Value == "true" {
			return exprValue{v: 1}, nil
		}
		// identifiers left after expansion evaluate to 0
		return exprValue{}, nil
	case Punct:
		if t.Value == "(" {
			p.i++
			v, err := p.comma(ev)
			if err != nil {
				return v, err
			}
			if !p.accept(")") {
				return p.fail("missing ')' in preprocessor expression")
			}
			return v, nil
		}
	case EOF:
		return p.fail("ill formed preprocessor expression: unexpected end of line")
	}
	return p.fail("ill formed preprocessor expression: unexpected %q", t.Value)
}

func (p *exprParser) number(s string) (exprValue, error) {
	digits := strings.TrimRight(s, "uUlL")
	suffix := s[len(digits):]
	var unsigned bool
	switch strings.ToLower(suffix) {
	case "", "l":
	case "u", "ul", "lu":
		unsigned = true
	case "ll":
		if !p.lang.longLong() {
			return p.fail("long long suffix is not supported: %q", s)
		}
	case "ull", "llu":
		if !p.lang.longLong() {
			return p.fail("long long suffix is not supported: %q", s)
		}
		unsigned = true
	default:
		return p.fail("invalid integer suffix %q", suffix)
	}
	if strings.Contains(suffix, "lL") || strings.Contains(suffix, "Ll") {
		return p.fail("invalid integer suffix %q", suffix)
	}

	base := 10
	lower := strings.ToLower(digits)
	switch {
	case strings.HasPrefix(lower, "0x"):
		base, digits = 16, digits[2:]
	case strings.HasPrefix(lower, "0b"):
		base, digits = 2, digits[2:]
	case len(digits) > 1 && digits[0] == '0':
		base, digits = 8, digits[1:]
	}
	if base != 16 && strings.ContainsAny(lower, ".eEpP") || base == 16 && strings.ContainsAny(lower, ".pP") {
		return p.fail("floating constant in preprocessor expression: %q", s)
	}
	u, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		return p.fail("invalid integer constant %q", s)
	}
	if u > 1<<63-1 {
		unsigned = true
	}
	return exprValue{v: int64(u), unsigned: unsigned}, nil
}

func (p *exprParser) char(s string) (exprValue, error) {
	wide := false
	if i := strings.IndexByte(s, '\''); i > 0 {
		wide = true
		s = s[i:]
	}
	if len(s) < 3 || s[len(s)-1] != '\'' {
		return p.fail("empty character constant %s", s)
	}
	body := s[1 : len(s)-1]
	var v int64
	n := 0
	for i := 0; i < len(body); {
		c, size, ok := decodeEscape(body[i:])
		if !ok {
			return p.fail("invalid escape sequence in character constant %s", s)
		}
		v = v<<8 | int64(c&0xff)
		if wide {
			v = int64(c)
		}
		i += size
		n++
	}
	if n == 1 && !wide {
		v = int64(int8(v))
	}
	return exprValue{v: v}, nil
}

// decodeEscape decodes one character of a character constant.
func decodeEscape(s string) (c uint32, size int, ok bool) {
	if s[0] != '\\' {
		return uint32(s[0]), 1, true
	}
	if len(s) < 2 {
		return 0, 0, false
	}
	switch s[1] {
	case 'n':
		return '\n', 2, true
	case 't':
		return '\t', 2, true
	case 'r':
		return '\r', 2, true
	case 'a':
		return 7, 2, true
	case 'b':
		return 8, 2, true
	case 'f':
		return 12, 2, true
	case 'v':
		return 11, 2, true
	case 'e', 'E':
		return 27, 2, true
	case '\\', '\'', '"', '?':
		return uint32(s[1]), 2, true
	case 'x':
		i := 2
		for i < len(s) && strings.IndexByte("0123456789abcdefABCDEF", s[i]) >= 0 {
			i++
		}
		if i == 2 {
			return 0, 0, false
		}
		v, err := strconv.ParseUint(s[2:i], 16, 32)
		if err != nil {
			return 0, 0, false
		}
		return uint32(v), i, true
	}
	if s[1] >= '0' && s[1] <= '7' {
		i := 1
		for i < len(s) && i < 4 && s[i] >= '0' && s[i] <= '7' {
			i++
		}
		v, _ := strconv.ParseUint(s[1:i], 8, 32)
		return uint32(v), i, true
	}
	return 0, 0, false
}
