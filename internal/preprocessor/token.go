package preprocessor

import (
	"fmt"
	"strings"
)

// Kind classifies a preprocessing token.
type Kind int

const (
	EOF Kind = iota
	Identifier
	Number // pp-number
	CharLiteral
	StringLiteral
	Punct
	Whitespace
	Comment
	Newline
	Other     // stray character that forms no other token
	Directive // synthesized output line, e.g. #line or #pragma
	placemarker
)

var kindNames = [...]string{
	EOF:           "EOF",
	Identifier:    "Identifier",
	Number:        "Number",
	CharLiteral:   "CharLiteral",
	StringLiteral: "StringLiteral",
	Punct:         "Punct",
	Whitespace:    "Whitespace",
	Comment:       "Comment",
	Newline:       "Newline",
	Other:         "Other",
	Directive:     "Directive",
	placemarker:   "placemarker",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Position is a presumed source location: #line directives change both
// the file name and the line number.
type Position struct {
	File   string
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%s:%d", p.File, p.Line)
}

// Token is a single preprocessing token. Value holds the token text as it
// is written to the output.
type Token struct {
	Kind  Kind
	Value string
	Pos   Position

	bol      bool // first non-blank token of a line
	lead     bool // blank token preceding the first non-blank token of a line
	expanded bool // produced by a macro expansion
	splices  int  // Newline only: backslash-newlines folded into the line it ends
	hide     hideset
}

func (t Token) isPunct(s string) bool {
	return t.Kind == Punct && t.Value == s
}

func (t Token) isBlank() bool {
	return t.Kind == Whitespace || t.Kind == Comment
}

func (t Token) isHash() bool {
	return t.bol && t.Kind == Punct && (t.Value == "#" || t.Value == "%:")
}

func (t Token) isPaste() bool {
	return t.Kind == Punct && (t.Value == "##" || t.Value == "%:%:")
}

// hideset is the set of macro names a token must not be expanded by again.
// It is kept sorted and never mutated in place.
type hideset []string

func (h hideset) contains(name string) bool {
	for _, n := range h {
		if n == name {
			return true
		}
	}
	return false
}

func (h hideset) with(name string) hideset {
	if h.contains(name) {
		return h
	}
	out := make(hideset, 0, len(h)+1)
	inserted := false
	for _, n := range h {
		if !inserted && name < n {
			out = append(out, name)
			inserted = true
		}
		out = append(out, n)
	}
	if !inserted {
		out = append(out, name)
	}
	return out
}

func (h hideset) union(o hideset) hideset {
	out := h
	for _, n := range o {
		out = out.with(n)
	}
	return out
}

func (h hideset) intersect(o hideset) hideset {
	var out hideset
	for _, n := range h {
		if o.contains(n) {
			out = append(out, n)
		}
	}
	return out
}

// tokensString concatenates token values, the way they are written out.
func tokensString(toks []Token) string {
	var b strings.Builder
	for _, t := range toks {
		b.WriteString(t.Value)
	}
	return b.String()
}

// trimBlank removes leading and trailing whitespace, comment and newline
// tokens.
func trimBlank(toks []Token) []Token {
	for len(toks) > 0 && (toks[0].isBlank() || toks[0].Kind == Newline) {
		toks = toks[1:]
	}
	for len(toks) > 0 && (toks[len(toks)-1].isBlank() || toks[len(toks)-1].Kind == Newline) {
		toks = toks[:len(toks)-1]
	}
	return toks
}

// nextNonBlank returns the index of the first non-blank token at or after i,
// or len(toks).
func nextNonBlank(toks []Token, i int) int {
	for i < len(toks) && toks[i].isBlank() {
		i++
	}
	return i
}

func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' || s[i] == '"' {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	b.WriteByte('"')
	return b.String()
}
