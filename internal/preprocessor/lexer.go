package preprocessor

import (
	"bytes"
	"strings"
)

// lexer turns a source buffer into preprocessing tokens on demand.
// Backslash-newline pairs are spliced while scanning, so token values never
// contain them; the number of splices is reported on the Newline token that
// ends the logical line.
type lexer struct {
	src     []byte
	off     int
	line    int // physical line of src[off]
	col     int
	delta   int    // #line adjustment
	name    string // presumed file name
	lang    Language
	bol     bool
	splices int
}

func newLexer(name string, text []byte, lang Language) *lexer {
	if lang&SupportConvertTrigraphs != 0 {
		text = convertTrigraphs(text)
	}
	return &lexer{src: text, line: 1, col: 1, name: name, lang: lang, bol: true}
}

// lexString tokenizes s completely.
func lexString(s string, lang Language) ([]Token, error) {
	l := newLexer("", []byte(s), lang&^SupportConvertTrigraphs)
	var toks []Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == EOF {
			return toks, nil
		}
		toks = append(toks, tok)
	}
}

var trigraphs = strings.NewReplacer(
	"??=", "#",
	"??/", "\\",
	"??'", "^",
	"??(", "[",
	"??)", "]",
	"??!", "|",
	"??<", "{",
	"??>", "}",
	"??-", "~",
)

func convertTrigraphs(text []byte) []byte {
	if !bytes.Contains(text, []byte("??")) {
		return text
	}
	return []byte(trigraphs.Replace(string(text)))
}

func (l *lexer) pos() Position {
	return Position{File: l.name, Line: l.line + l.delta, Column: l.col}
}

func spliceLen(src []byte, off int) int {
	if off >= len(src) || src[off] != '\\' {
		return 0
	}
	if off+1 < len(src) && src[off+1] == '\n' {
		return 2
	}
	if off+2 < len(src) && src[off+1] == '\r' && src[off+2] == '\n' {
		return 3
	}
	return 0
}

func (l *lexer) splice() {
	for {
		n := spliceLen(l.src, l.off)
		if n == 0 {
			return
		}
		l.off += n
		l.line++
		l.col = 1
		l.splices++
	}
}

// peek returns the n-th character ahead of the cursor, or -1 past the end.
func (l *lexer) peek(n int) int {
	off := l.off
	for {
		for s := spliceLen(l.src, off); s > 0; s = spliceLen(l.src, off) {
			off += s
		}
		if off >= len(l.src) {
			return -1
		}
		if n == 0 {
			return int(l.src[off])
		}
		off++
		n--
	}
}

func (l *lexer) advance(b *strings.Builder) {
	l.splice()
	c := l.src[l.off]
	l.off++
	if c == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	b.WriteByte(c)
}

func (l *lexer) next() (Token, error) {
	l.splice()
	pos := l.pos()
	if l.off >= len(l.src) {
		return Token{Kind: EOF, Pos: pos, bol: true}, nil
	}

	var b strings.Builder
	var kind Kind
	c := l.peek(0)
	switch {
	case c == '\n':
		l.advance(&b)
		tok := Token{Kind: Newline, Value: "\n", Pos: pos, splices: l.splices}
		l.splices = 0
		l.bol = true
		return tok, nil

	case isBlankChar(c):
		for isBlankChar(l.peek(0)) {
			l.advance(&b)
		}
		kind = Whitespace

	case c == '/' && l.peek(1) == '/':
		for p := l.peek(0); p != -1 && p != '\n'; p = l.peek(0) {
			l.advance(&b)
		}
		kind = Comment

	case c == '/' && l.peek(1) == '*':
		l.advance(&b)
		l.advance(&b)
		for {
			p := l.peek(0)
			if p == -1 {
				return Token{}, &Error{Kind: UnterminatedComment, Pos: pos, Description: "unterminated comment"}
			}
			if p == '*' && l.peek(1) == '/' {
				l.advance(&b)
				l.advance(&b)
				break
			}
			l.advance(&b)
		}
		kind = Comment

	case isIdentStart(c):
		kind = l.identOrLiteral(&b)

	case isDigit(c) || c == '.' && isDigit(l.peek(1)):
		l.ppNumber(&b)
		kind = Number

	case c == '"':
		kind = l.quoted(&b, '"', StringLiteral)

	case c == '\'':
		kind = l.quoted(&b, '\'', CharLiteral)

	default:
		if n := l.punctLen(); n > 0 {
			for i := 0; i < n; i++ {
				l.advance(&b)
			}
			kind = Punct
		} else {
			l.advance(&b)
			kind = Other
		}
	}

	tok := Token{Kind: kind, Value: b.String(), Pos: pos}
	if tok.isBlank() {
		tok.lead = l.bol
	} else {
		tok.bol = l.bol
		l.bol = false
	}
	return tok, nil
}

func (l *lexer) identOrLiteral(b *strings.Builder) Kind {
	// encoding prefixes: L u U u8, and R for C++ raw strings
	prefix := 0
	for prefix < 3 {
		p := l.peek(prefix)
		if p == 'L' || p == 'u' || p == 'U' || (p == '8' && prefix == 1 && l.peek(0) == 'u') {
			prefix++
			continue
		}
		break
	}
	if l.lang&SupportCPP11 != 0 && l.peek(prefix) == 'R' && l.peek(prefix+1) == '"' {
		if l.rawString(b, prefix+1) {
			return StringLiteral
		}
		return Other
	}
	if prefix > 0 {
		switch l.peek(prefix) {
		case '"':
			for i := 0; i < prefix; i++ {
				l.advance(b)
			}
			return l.quoted(b, '"', StringLiteral)
		case '\'':
			for i := 0; i < prefix; i++ {
				l.advance(b)
			}
			return l.quoted(b, '\'', CharLiteral)
		}
	}
	for isIdentChar(l.peek(0)) {
		l.advance(b)
	}
	return Identifier
}

// quoted scans a string or character literal. An unterminated literal
// becomes an Other token running to the end of the line.
func (l *lexer) quoted(b *strings.Builder, q int, kind Kind) Kind {
	l.advance(b)
	for {
		p := l.peek(0)
		if p == -1 || p == '\n' {
			return Other
		}
		l.advance(b)
		if p == '\\' {
			if n := l.peek(0); n != -1 && n != '\n' {
				l.advance(b)
			}
			continue
		}
		if p == q {
			return kind
		}
	}
}

// rawString scans R"delim(...)delim". skip is the number of characters up to
// and including the R.
func (l *lexer) rawString(b *strings.Builder, skip int) bool {
	for i := 0; i <= skip; i++ { // prefix, R and the opening quote
		l.advance(b)
	}
	var delim strings.Builder
	for {
		p := l.peek(0)
		if p == -1 || p == '\n' || p == ' ' || p == ')' || p == '\\' || delim.Len() > 16 {
			return false
		}
		l.advance(b)
		if p == '(' {
			break
		}
		delim.WriteByte(byte(p))
	}
	closing := ")" + delim.String() + "\""
	for {
		if l.peek(0) == -1 {
			return false
		}
		l.advance(b)
		if strings.HasSuffix(b.String(), closing) {
			return true
		}
	}
}

func (l *lexer) ppNumber(b *strings.Builder) {
	l.advance(b)
	for {
		p := l.peek(0)
		switch {
		case (p == 'e' || p == 'E' || p == 'p' || p == 'P') && (l.peek(1) == '+' || l.peek(1) == '-'):
			l.advance(b)
			l.advance(b)
		case isIdentChar(p) || p == '.':
			l.advance(b)
		default:
			return
		}
	}
}

var (
	puncts = []string{
		"%:%:", "...", "<<=", ">>=",
		"->", "++", "--", "<<", ">>", "<=", ">=", "==", "!=", "&&", "||",
		"*=", "/=", "%=", "+=", "-=", "&=", "^=", "|=", "##",
		"<:", ":>", "<%", "%>", "%:",
	}
	cppPuncts = []string{"->*", "::", ".*"}
)

const singlePuncts = "[](){}.&*+-~!/%<>^|?:;=,#"

func (l *lexer) punctLen() int {
	best := 0
	match := func(p string) {
		if len(p) <= best {
			return
		}
		for i := 0; i < len(p); i++ {
			if l.peek(i) != int(p[i]) {
				return
			}
		}
		best = len(p)
	}
	if l.lang&SupportCPP11 != 0 {
		for _, p := range cppPuncts {
			match(p)
		}
	}
	for _, p := range puncts {
		match(p)
	}
	if best == 0 {
		if c := l.peek(0); c >= 0 && strings.IndexByte(singlePuncts, byte(c)) >= 0 {
			best = 1
		}
	}
	return best
}

func isBlankChar(c int) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v'
}

func isDigit(c int) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c int) bool {
	return c == '_' || c == '$' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c >= 0x80
}

func isIdentChar(c int) bool {
	return isIdentStart(c) || isDigit(c)
}

// isIdentifier reports whether s is a single valid identifier.
func isIdentifier(s string) bool {
	if s == "" || !isIdentStart(int(s[0])) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentChar(int(s[i])) {
			return false
		}
	}
	return true
}
