package preprocessor

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ---------------- Context ----------------

// Context is a single preprocessing session over one root file. It owns
// the macro table and the token production state and cannot be reused.
type Context struct {
	root      string
	policy    InputPolicy
	lang      Language
	macros    *macroTable
	userPaths []string
	sysPaths  []string
	resolved  *lru.Cache[string, string]
	guards    map[string]string // file path -> include guard macro
	once      map[string]bool
	counter   int
	now       time.Time
	logger    *slog.Logger
	warn      func(*Error)
	it        *Iterator
}

type Option func(*Context)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Context) { c.logger = logger }
}

// WithTime fixes the time reported by __DATE__ and __TIME__.
func WithTime(t time.Time) Option {
	return func(c *Context) { c.now = t }
}

// WithWarningHandler receives non-fatal diagnostics such as #warning.
func WithWarningHandler(fn func(*Error)) Option {
	return func(c *Context) { c.warn = fn }
}

// New creates a session that preprocesses root, reading every file
// through policy. The language defaults to C99.
func New(root string, policy InputPolicy, opts ...Option) *Context {
	c := &Context{
		root:     root,
		policy:   policy,
		lang:     SupportC99,
		macros:   newMacroTable(),
		resolved: newResolveCache(),
		guards:   map[string]string{},
		once:     map[string]bool{},
		now:      time.Now(),
		logger:   slog.New(slog.DiscardHandler),
		warn:     func(*Error) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.installBuiltins()
	c.installLanguageMacros()
	return c
}

// SetLanguage selects the language features and resets the language
// dependent predefined macros.
func (c *Context) SetLanguage(lang Language) {
	c.lang = lang
	c.installLanguageMacros()
}

func (c *Context) Language() Language { return c.lang }

func (c *Context) Root() string { return c.root }

// AddMacroDefinition defines a macro given in command line form: NAME,
// NAME=VALUE or NAME(params)=BODY. A definition replaces any earlier
// one of the same name.
func (c *Context) AddMacroDefinition(def string, predefined bool) error {
	pos := Position{File: "<command line>", Line: 1}
	if predefined {
		pos.File = "<built-in>"
	}
	m, err := parseCommandLineDefinition(def, c.lang, pos)
	if err != nil {
		return err
	}
	if old := c.macros.lookup(m.name); old != nil && old.builtin != nil {
		return errorf(InvalidMacroSyntax, Position{}, "cannot redefine built-in macro %q", m.name)
	}
	m.predefined = predefined
	c.macros.define(m)
	return nil
}

// RemoveMacroDefinition undefines name. Undefining a macro that is not
// defined is not an error.
func (c *Context) RemoveMacroDefinition(name string) error {
	if !isIdentifier(name) {
		return errorf(InvalidMacroSyntax, Position{}, "invalid macro name: %q", name)
	}
	if m := c.macros.lookup(name); m != nil && m.builtin != nil {
		return errorf(InvalidMacroSyntax, Position{}, "cannot undefine built-in macro %q", name)
	}
	c.macros.undefine(name)
	return nil
}

// AddIncludePath appends a directory searched for both quoted and angled
// includes, ahead of every system include path.
func (c *Context) AddIncludePath(path string) error {
	if path == "" {
		return errors.New("empty include path")
	}
	c.userPaths = append(c.userPaths, path)
	c.resolved.Purge()
	return nil
}

// AddSysIncludePath appends a system include directory.
func (c *Context) AddSysIncludePath(path string) error {
	if path == "" {
		return errors.New("empty system include path")
	}
	c.sysPaths = append(c.sysPaths, path)
	c.resolved.Purge()
	return nil
}

// IncludePaths returns the user and system include paths in search order.
func (c *Context) IncludePaths() (user, system []string) {
	return append([]string(nil), c.userPaths...), append([]string(nil), c.sysPaths...)
}

// MacroNames returns the names in the macro table in table order.
func (c *Context) MacroNames() []string {
	return c.macros.names()
}

// MacroDefinition returns the current definition of name.
func (c *Context) MacroDefinition(name string) (MacroDefinition, bool) {
	m := c.macros.lookup(name)
	if m == nil {
		return MacroDefinition{}, false
	}
	params := append([]string(nil), m.params...)
	if m.variadic && len(params) > 0 {
		last := len(params) - 1
		if params[last] == "__VA_ARGS__" {
			params[last] = "..."
		} else {
			params[last] += "..."
		}
	}
	return MacroDefinition{
		Name:         m.name,
		FunctionLike: m.functionLike,
		Predefined:   m.predefined,
		Pos:          m.pos,
		Params:       params,
		Body:         append([]Token(nil), m.body...),
	}, true
}

// Tokens returns the lazy sequence of preprocessed tokens. Iteration stops
// after the first error, which is yielded with a zero Token.
func (c *Context) Tokens() iter.Seq2[Token, error] {
	it := c.Begin()
	return func(yield func(Token, error) bool) {
		for {
			tok, err := it.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(Token{}, err)
				return
			}
			if !yield(tok, nil) {
				return
			}
		}
	}
}

// Begin starts preprocessing. The root file is loaded on the first call
// to Next.
func (c *Context) Begin() *Iterator {
	it := &Iterator{c: c, outFile: c.root, outLine: 1, atLineStart: true, lastBlank: true}
	if c.it != nil {
		it.err = errorf(ContextConsumed, Position{}, "preprocessing context %s was already iterated", c.root)
		return it
	}
	c.it = it
	return it
}

// ---------------- Iterator ----------------

// maxBlankLines is the largest line gap filled with empty lines; larger
// gaps are bridged with a #line directive.
const maxBlankLines = 8

// Iterator produces the preprocessed token stream.
type Iterator struct {
	c           *Context
	files       []*fileState
	queue       []Token
	err         error
	started     bool
	outFile     string // presumed position of the output so far
	outLine     int
	atLineStart bool
	last        Token // last non-blank token emitted
	lastBlank   bool
}

type fileState struct {
	src   *Source
	lex   *lexer
	r     *reader
	cond  condStack
	dir   string
	guard guardTracker
}

// Next returns the next output token, or io.EOF once the root file is
// exhausted. After an error every call returns the same error.
func (it *Iterator) Next() (Token, error) {
	for len(it.queue) == 0 {
		if it.err != nil {
			return Token{}, it.err
		}
		if err := it.step(); err != nil {
			it.err = err
		}
	}
	tok := it.queue[0]
	it.queue = it.queue[1:]
	return tok, nil
}

func (it *Iterator) step() error {
	c := it.c
	if !it.started {
		it.started = true
		return it.push(c.root, Position{})
	}
	if len(it.files) == 0 {
		return io.EOF
	}
	f := it.files[len(it.files)-1]
	tok, err := f.r.read()
	if err != nil {
		return err
	}

	switch {
	case tok.Kind == EOF:
		return it.pop(f)

	case tok.lead:
		// blanks at the start of a line belong to a directive if one follows
		lead := []Token{tok}
		for {
			t, err := f.r.read()
			if err != nil {
				return err
			}
			if t.lead {
				lead = append(lead, t)
				continue
			}
			if t.isHash() {
				return it.directive(f, t)
			}
			f.r.unread(t)
			break
		}
		if f.cond.Active() {
			for _, t := range lead {
				it.emit(t)
			}
		}
		return nil

	case tok.isHash():
		return it.directive(f, tok)

	case !f.cond.Active():
		if tok.Kind != Newline {
			return f.skipLine()
		}
		return nil
	}

	if !tok.isBlank() && tok.Kind != Newline && f.cond.Depth() == 0 {
		f.guard.content()
	}
	if tok.Kind == Identifier {
		f.r.unread(tok)
		if tok, err = c.expandNext(f.r); err != nil {
			return err
		}
		if tok.Kind == EOF {
			f.r.unread(tok)
			return nil
		}
	}
	it.emit(tok)
	return nil
}

func (it *Iterator) push(path string, from Position) error {
	c := it.c
	if len(it.files) >= MaxIncludeDepth {
		return errorf(IncludeNestingTooDeep, from, "#include nested too deeply")
	}
	src, err := c.policy.Load(path, from)
	if err != nil {
		var perr *Error
		if errors.As(err, &perr) {
			return perr
		}
		return errorf(BadIncludeFile, from, "could not open include file %s: %v", path, err)
	}
	lex := newLexer(src.Path, src.Text, c.lang)
	it.files = append(it.files, &fileState{
		src: src,
		lex: lex,
		r:   &reader{src: lex.next},
		dir: filepath.Dir(src.Path),
	})
	c.logger.Debug("entering file", "path", src.Path, "depth", len(it.files)-1)
	return nil
}

func (it *Iterator) pop(f *fileState) error {
	c := it.c
	if f.cond.Depth() > 0 {
		return errorf(MissingMatchingEndif, f.cond.Unclosed(), "missing matching #endif")
	}
	if name, ok := f.guard.result(); ok && c.lang&SupportIncludeGuardDetection != 0 {
		c.guards[f.src.Path] = name
		c.logger.Debug("detected include guard", "path", f.src.Path, "macro", name)
	}
	it.files = it.files[:len(it.files)-1]
	c.logger.Debug("leaving file", "path", f.src.Path)
	return nil
}

// readLine returns the rest of the current line. The terminating newline
// is consumed and not returned.
func (f *fileState) readLine() ([]Token, error) {
	var line []Token
	for {
		t, err := f.r.read()
		if err != nil {
			return nil, err
		}
		switch t.Kind {
		case Newline:
			return line, nil
		case EOF:
			f.r.unread(t)
			return line, nil
		}
		line = append(line, t)
	}
}

func (f *fileState) skipLine() error {
	_, err := f.readLine()
	return err
}

// ---------------- Output ----------------

func (it *Iterator) emit(tok Token) {
	lang := it.c.lang
	if tok.Kind == Newline {
		n := 1
		if lang&SupportContinuationNewlines != 0 {
			n += tok.splices
		}
		tok.Value = strings.Repeat("\n", n)
		it.queue = append(it.queue, tok)
		it.outLine += n
		it.atLineStart = true
		it.lastBlank = true
		return
	}
	if it.atLineStart {
		it.sync(tok.Pos)
		it.atLineStart = false
	}
	if tok.isBlank() {
		it.lastBlank = true
	} else {
		if lang&SupportInsertWhitespace != 0 && !it.lastBlank && (tok.expanded || it.last.expanded) && lexesTogether(it.last, tok, lang) {
			it.queue = append(it.queue, Token{Kind: Whitespace, Value: " ", Pos: tok.Pos})
		}
		it.last = tok
		it.lastBlank = false
	}
	it.queue = append(it.queue, tok)
	it.outLine += strings.Count(tok.Value, "\n")
}

// sync brings the output position in line with pos before the first token
// of an output line is emitted.
func (it *Iterator) sync(pos Position) {
	if it.c.lang&SupportLineDirectives == 0 {
		it.outFile, it.outLine = pos.File, pos.Line
		return
	}
	if pos.File == it.outFile && pos.Line >= it.outLine && pos.Line-it.outLine <= maxBlankLines {
		for ; it.outLine < pos.Line; it.outLine++ {
			it.queue = append(it.queue, Token{Kind: Newline, Value: "\n", Pos: pos})
		}
		return
	}
	it.queue = append(it.queue, Token{Kind: Directive, Value: lineDirective(pos), Pos: pos})
	it.outFile, it.outLine = pos.File, pos.Line
}

func lineDirective(pos Position) string {
	return fmt.Sprintf("#line %d %s\n", pos.Line, quoteString(pos.File))
}

// emitLine writes a complete synthesized line, such as a #pragma.
func (it *Iterator) emitLine(text string, pos Position) {
	if !it.atLineStart {
		it.queue = append(it.queue, Token{Kind: Newline, Value: "\n", Pos: pos})
		it.outLine++
		it.atLineStart = true
	}
	it.sync(pos)
	it.queue = append(it.queue, Token{Kind: Directive, Value: text + "\n", Pos: pos})
	it.outLine++
	it.lastBlank = true
}

// lexesTogether reports whether writing b directly after a would change
// how a is tokenized.
func lexesTogether(a, b Token, lang Language) bool {
	if a.Kind == Directive || b.Kind == Directive || a.Value == "" || b.Value == "" {
		return false
	}
	toks, err := lexString(a.Value+b.Value, lang)
	return err != nil || len(toks) == 0 || toks[0].Value != a.Value
}

// ---------------- Directives ----------------

func (it *Iterator) directive(f *fileState, hash Token) error {
	c := it.c
	line, err := f.readLine()
	if err != nil {
		return err
	}
	i := nextNonBlank(line, 0)
	if i >= len(line) {
		// null directive
		return nil
	}
	name, args, pos := line[i], line[i+1:], hash.Pos

	if name.Kind == Identifier {
		switch name.Value {
		case "if", "ifdef", "ifndef", "elif", "else", "endif":
			return it.conditional(f, name.Value, args, pos)
		}
	}
	if !f.cond.Active() {
		return nil
	}
	if f.cond.Depth() == 0 {
		f.guard.content()
	}
	if name.Kind == Number {
		// # 33 "file" line markers
		return it.line(f, line[i:], pos)
	}
	if name.Kind != Identifier {
		return errorf(IllFormedDirective, pos, "ill formed preprocessor directive")
	}

	switch name.Value {
	case "include":
		return it.include(f, args, pos)
	case "define":
		return c.define(args, pos)
	case "undef":
		return c.undef(args, pos)
	case "line":
		return it.line(f, args, pos)
	case "error":
		return errorf(ErrorDirective, pos, "#error %s", tokensString(trimBlank(args)))
	case "warning":
		c.warn(errorf(WarningDirective, pos, "#warning %s", tokensString(trimBlank(args))))
		return nil
	case "pragma":
		return it.pragma(f, args, pos)
	}
	return errorf(IllFormedDirective, pos, "ill formed preprocessor directive: #%s", name.Value)
}

func (it *Iterator) conditional(f *fileState, kind string, args []Token, pos Position) error {
	c := it.c
	topLevel := f.cond.Depth() == 0
	switch kind {
	case "ifdef", "ifndef":
		if !f.cond.Active() {
			f.cond.Push(false, pos)
			return nil
		}
		j := nextNonBlank(args, 0)
		if j >= len(args) || args[j].Kind != Identifier {
			return errorf(IllFormedDirective, pos, "#%s requires an identifier", kind)
		}
		defined := c.macros.lookup(args[j].Value) != nil
		if kind == "ifndef" {
			if topLevel {
				f.guard.open(args[j].Value)
			}
			defined = !defined
		} else if topLevel {
			f.guard.content()
		}
		f.cond.Push(defined, pos)
		return nil

	case "if":
		if !f.cond.Active() {
			f.cond.Push(false, pos)
			return nil
		}
		if topLevel {
			if name, ok := notDefinedGuard(args); ok {
				f.guard.open(name)
			} else {
				f.guard.content()
			}
		}
		v, err := c.evalCondition(args, pos)
		if err != nil {
			return err
		}
		f.cond.Push(v, pos)
		return nil

	case "elif":
		if f.cond.Depth() == 1 {
			f.guard.invalidate()
		}
		v := false
		if f.cond.Depth() > 0 && f.cond.ParentActive() && !f.cond.Taken() {
			var err error
			if v, err = c.evalCondition(args, pos); err != nil {
				return err
			}
		}
		return f.cond.Elif(v, pos)

	case "else":
		if f.cond.Depth() == 1 {
			f.guard.invalidate()
		}
		return f.cond.Else(pos)

	default: // endif
		if err := f.cond.Pop(pos); err != nil {
			return err
		}
		if f.cond.Depth() == 0 {
			f.guard.close()
		}
		return nil
	}
}

func (it *Iterator) include(f *fileState, args []Token, pos Position) error {
	c := it.c
	name, angled, err := c.includeName(args, pos)
	if err != nil {
		return err
	}
	path, ok := c.findInclude(name, angled, f.dir)
	if !ok {
		return errorf(BadIncludeFile, pos, "could not find include file: %s", name)
	}
	if c.once[path] {
		c.logger.Debug("skipping #pragma once file", "path", path)
		return nil
	}
	if guard, ok := c.guards[path]; ok && c.macros.lookup(guard) != nil {
		c.logger.Debug("skipping guarded file", "path", path, "macro", guard)
		return nil
	}
	return it.push(path, pos)
}

func (c *Context) define(args []Token, pos Position) error {
	m, err := parseDefine(args, c.lang, pos)
	if err != nil {
		return err
	}
	if old := c.macros.lookup(m.name); old != nil {
		switch {
		case old.builtin != nil:
			return errorf(IllegalRedefinition, pos, "illegal redefinition of built-in macro %q", m.name)
		case old.predefined:
			c.warn(errorf(MacroRedefinition, pos, "redefining predefined macro %q", m.name))
		case !old.sameDefinition(m):
			return errorf(MacroRedefinition, pos, "macro %q redefined, previous definition at %s", m.name, old.pos)
		}
	}
	c.macros.define(m)
	return nil
}

func (c *Context) undef(args []Token, pos Position) error {
	j := nextNonBlank(args, 0)
	if j >= len(args) || args[j].Kind != Identifier {
		return errorf(IllFormedDirective, pos, "#undef requires an identifier")
	}
	if m := c.macros.lookup(args[j].Value); m != nil && m.builtin != nil {
		return errorf(IllegalRedefinition, pos, "cannot undefine built-in macro %q", m.name)
	}
	c.macros.undefine(args[j].Value)
	return nil
}

// line handles #line N ["file"]; N applies to the line after the directive.
func (it *Iterator) line(f *fileState, args []Token, pos Position) error {
	expanded, err := it.c.expandAll(trimBlank(args))
	if err != nil {
		return err
	}
	var toks []Token
	for _, t := range expanded {
		if !t.isBlank() {
			toks = append(toks, t)
		}
	}
	if len(toks) == 0 || toks[0].Kind != Number {
		return errorf(IllFormedDirective, pos, "#line directive requires a positive integer argument")
	}
	n, err := strconv.Atoi(toks[0].Value)
	if err != nil || n <= 0 {
		return errorf(IllFormedDirective, pos, "#line directive requires a positive integer argument")
	}
	if len(toks) > 1 {
		if toks[1].Kind != StringLiteral || !strings.HasPrefix(toks[1].Value, `"`) {
			return errorf(IllFormedDirective, pos, "invalid filename in #line directive: %s", toks[1].Value)
		}
		name, err := strconv.Unquote(toks[1].Value)
		if err != nil {
			name = strings.Trim(toks[1].Value, `"`)
		}
		f.lex.name = name
	}
	f.lex.delta = n - f.lex.line
	return nil
}

func (it *Iterator) pragma(f *fileState, args []Token, pos Position) error {
	c := it.c
	toks := trimBlank(args)
	if len(toks) > 0 && toks[0].Kind == Identifier && toks[0].Value == "once" {
		c.once[f.src.Path] = true
		return nil
	}
	if c.lang&SupportPragmaDirectives != 0 {
		it.emitLine("#pragma "+tokensString(toks), pos)
	}
	return nil
}

// ---------------- Include guards ----------------

// guardTracker recognizes files whose whole content is wrapped in
// #ifndef X ... #endif (or #if !defined X), so that including them again
// while X is defined can be skipped without loading them.
type guardTracker struct {
	state guardState
	name  string
}

type guardState int

const (
	guardStart guardState = iota
	guardOpen
	guardClosed
	guardNone
)

func (g *guardTracker) open(name string) {
	if g.state == guardStart {
		g.state, g.name = guardOpen, name
		return
	}
	g.state = guardNone
}

// content records a token or directive outside any conditional section.
func (g *guardTracker) content() {
	if g.state != guardOpen {
		g.state = guardNone
	}
}

func (g *guardTracker) invalidate() {
	g.state = guardNone
}

func (g *guardTracker) close() {
	if g.state == guardOpen {
		g.state = guardClosed
	}
}

func (g *guardTracker) result() (string, bool) {
	return g.name, g.state == guardClosed
}

// notDefinedGuard matches "!defined X" and "!defined(X)".
func notDefinedGuard(args []Token) (string, bool) {
	var toks []Token
	for _, t := range args {
		if !t.isBlank() {
			toks = append(toks, t)
		}
	}
	switch {
	case len(toks) == 3 && toks[0].isPunct("!") && toks[1].Value == "defined" && toks[2].Kind == Identifier:
		return toks[2].Value, true
	case len(toks) == 5 && toks[0].isPunct("!") && toks[1].Value == "defined" && toks[2].isPunct("(") && toks[3].Kind == Identifier && toks[4].isPunct(")"):
		return toks[3].Value, true
	}
	return "", false
}
