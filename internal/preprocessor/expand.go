package preprocessor

import "strings"

// reader is a token source with pushback. Tokens pushed back are read
// before anything from the underlying source.
type reader struct {
	stack []Token // top of stack is the end of the slice
	src   func() (Token, error)
}

func newSliceReader(toks []Token) *reader {
	i := 0
	return &reader{src: func() (Token, error) {
		if i >= len(toks) {
			return Token{Kind: EOF}, nil
		}
		i++
		return toks[i-1], nil
	}}
}

func (r *reader) read() (Token, error) {
	if n := len(r.stack); n > 0 {
		tok := r.stack[n-1]
		r.stack = r.stack[:n-1]
		return tok, nil
	}
	return r.src()
}

// unread pushes toks back so that toks[0] is read next.
func (r *reader) unread(toks ...Token) {
	for i := len(toks) - 1; i >= 0; i-- {
		r.stack = append(r.stack, toks[i])
	}
}

// expandNext reads from r until it has a token that is not subject to
// macro expansion, rescanning replacement lists through r's pushback.
func (c *Context) expandNext(r *reader) (Token, error) {
	for {
		tok, err := r.read()
		if err != nil {
			return Token{}, err
		}
		if tok.Kind != Identifier || tok.hide.contains(tok.Value) {
			return tok, nil
		}
		m := c.macros.lookup(tok.Value)
		if m == nil {
			return tok, nil
		}
		if m.builtin != nil {
			out := m.builtin(c, tok)
			out.expanded = true
			return out, nil
		}

		if !m.functionLike {
			body, err := c.substituteArgs(m, nil, tok.hide.with(m.name), tok)
			if err != nil {
				return Token{}, err
			}
			r.unread(body...)
			continue
		}

		// A function-like macro name not followed by '(' is an ordinary
		// identifier.
		var skipped []Token
		var next Token
		for {
			if next, err = r.read(); err != nil {
				return Token{}, err
			}
			if next.isBlank() || next.Kind == Newline {
				skipped = append(skipped, next)
				continue
			}
			break
		}
		if !next.isPunct("(") {
			r.unread(append(skipped, next)...)
			return tok, nil
		}

		args, rparen, newlines, err := c.collectArgs(r, m, tok)
		if err != nil {
			return Token{}, err
		}
		body, err := c.substituteArgs(m, args, tok.hide.intersect(rparen.hide).with(m.name), tok)
		if err != nil {
			return Token{}, err
		}
		if c.lang&SupportSingleLine == 0 {
			body = append(body, newlines...)
		}
		r.unread(body...)
	}
}

// collectArgs reads the arguments of a function-like macro invocation; the
// opening parenthesis has already been consumed. Newlines inside the
// invocation are turned into spaces and returned separately.
func (c *Context) collectArgs(r *reader, m *macro, site Token) (args [][]Token, rparen Token, newlines []Token, err error) {
	var cur []Token
	depth := 0
	for {
		tok, err := r.read()
		if err != nil {
			return nil, Token{}, nil, err
		}
		switch {
		case tok.Kind == EOF:
			r.unread(tok)
			return nil, Token{}, nil, errorf(BadMacroInvocation, site.Pos, "unterminated argument list invoking macro %q", m.name)
		case tok.Kind == Newline:
			newlines = append(newlines, Token{Kind: Newline, Value: "\n", Pos: tok.Pos, splices: tok.splices})
			tok = Token{Kind: Whitespace, Value: " ", Pos: tok.Pos}
		case tok.isPunct("("):
			depth++
		case tok.isPunct(")"):
			if depth == 0 {
				args = append(args, trimBlank(cur))
				if err := checkArgCount(m, args, site); err != nil {
					return nil, Token{}, nil, err
				}
				return args, tok, newlines, nil
			}
			depth--
		case tok.isPunct(",") && depth == 0:
			if !m.variadic || len(args) < len(m.params)-1 {
				args = append(args, trimBlank(cur))
				cur = nil
				continue
			}
		}
		tok.bol, tok.lead = false, false
		cur = append(cur, tok)
	}
}

func checkArgCount(m *macro, args [][]Token, site Token) error {
	switch {
	case len(m.params) == 0 && len(args) == 1 && len(args[0]) == 0:
		return nil
	case m.variadic && len(args) == len(m.params)-1:
		// the variadic argument may be omitted entirely
		return nil
	case len(args) < len(m.params):
		return errorf(BadMacroInvocation, site.Pos, "too few arguments in invocation of macro %q", m.name)
	case len(args) > len(m.params):
		return errorf(BadMacroInvocation, site.Pos, "too many arguments in invocation of macro %q", m.name)
	}
	return nil
}

// substituteArgs builds the replacement list of a macro invocation:
// parameters are replaced by their fully expanded arguments, except next
// to '#' and '##', where the raw argument is used.
func (c *Context) substituteArgs(m *macro, args [][]Token, hs hideset, site Token) ([]Token, error) {
	arg := func(p int) []Token {
		if p < len(args) {
			return args[p]
		}
		return nil
	}
	body := m.body
	var out []Token
	for i := 0; i < len(body); i++ {
		t := body[i]

		if m.functionLike && (t.isPunct("#") || t.isPunct("%:")) {
			if j := nextNonBlank(body, i+1); j < len(body) {
				if p := m.param(body[j].Value); p >= 0 {
					out = append(out, stringize(arg(p), site))
					i = j
					continue
				}
			}
		}

		if t.isPaste() {
			j := nextNonBlank(body, i+1)
			for len(out) > 0 && out[len(out)-1].isBlank() {
				out = out[:len(out)-1]
			}
			var rhs []Token
			p := m.param(body[j].Value)
			if p >= 0 {
				rhs = arg(p)
			} else {
				rhs = []Token{body[j]}
			}
			i = j
			// , ## __VA_ARGS__ swallows the comma when the variadic argument is empty
			if len(rhs) == 0 {
				if m.variadic && p == len(m.params)-1 && len(out) > 0 && out[len(out)-1].isPunct(",") {
					out = out[:len(out)-1]
				}
				continue
			}
			if len(out) == 0 || out[len(out)-1].Kind == placemarker {
				if len(out) > 0 {
					out = out[:len(out)-1]
				}
				out = append(out, rhs...)
				continue
			}
			if m.variadic && p == len(m.params)-1 && out[len(out)-1].isPunct(",") {
				out = append(out, rhs...)
				continue
			}
			pasted, err := c.paste(out[len(out)-1], rhs[0], site)
			if err != nil {
				return nil, err
			}
			out[len(out)-1] = pasted
			out = append(out, rhs[1:]...)
			continue
		}

		if p := m.param(t.Value); p >= 0 && t.Kind == Identifier {
			if j := nextNonBlank(body, i+1); j < len(body) && body[j].isPaste() {
				if a := arg(p); len(a) > 0 {
					out = append(out, a...)
				} else {
					out = append(out, Token{Kind: placemarker, Pos: site.Pos})
				}
				continue
			}
			exp, err := c.expandAll(arg(p))
			if err != nil {
				return nil, err
			}
			out = append(out, exp...)
			continue
		}

		out = append(out, t)
	}

	result := make([]Token, 0, len(out))
	for _, t := range out {
		if t.Kind == placemarker {
			continue
		}
		t.hide = t.hide.union(hs)
		t.Pos = site.Pos
		t.expanded = true
		t.bol, t.lead = false, false
		result = append(result, t)
	}
	return result, nil
}

// expandAll fully macro-expands a token list in isolation.
func (c *Context) expandAll(toks []Token) ([]Token, error) {
	if len(toks) == 0 {
		return nil, nil
	}
	r := newSliceReader(toks)
	var out []Token
	for {
		tok, err := c.expandNext(r)
		if err != nil {
			return nil, err
		}
		if tok.Kind == EOF {
			return out, nil
		}
		out = append(out, tok)
	}
}

// stringize implements the '#' operator.
func stringize(arg []Token, site Token) Token {
	var b strings.Builder
	space := false
	for _, t := range arg {
		if t.isBlank() || t.Kind == Newline {
			space = b.Len() > 0
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		if t.Kind == StringLiteral || t.Kind == CharLiteral {
			b.WriteString(escapeLiteral(t.Value))
			continue
		}
		b.WriteString(t.Value)
	}
	return Token{Kind: StringLiteral, Value: `"` + b.String() + `"`, Pos: site.Pos}
}

func escapeLiteral(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' || s[i] == '"' {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// paste implements the '##' operator; the result must lex as exactly one
// token.
func (c *Context) paste(lhs, rhs Token, site Token) (Token, error) {
	s := lhs.Value + rhs.Value
	toks, err := lexString(s, c.lang)
	if err != nil || len(toks) != 1 || toks[0].isBlank() {
		return Token{}, errorf(IllFormedOperator, site.Pos, "pasting %q and %q does not give a valid preprocessing token", lhs.Value, rhs.Value)
	}
	t := toks[0]
	t.Pos = site.Pos
	t.hide = lhs.hide.intersect(rhs.hide)
	t.bol = false
	return t, nil
}
