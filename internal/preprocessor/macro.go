package preprocessor

import (
	"strings"

	"github.com/emirpasic/gods/maps/treemap"
)

type builtinFunc func(c *Context, site Token) Token

type macro struct {
	name         string
	functionLike bool
	params       []string
	variadic     bool // the last parameter collects the remaining arguments
	body         []Token
	pos          Position
	predefined   bool
	builtin      builtinFunc
}

func (m *macro) param(name string) int {
	if !m.functionLike {
		return -1
	}
	for i, p := range m.params {
		if p == name {
			return i
		}
	}
	return -1
}

// sameDefinition reports whether two definitions are identical in the
// sense of a benign redefinition: same kind, parameters and body with
// whitespace normalized.
func (m *macro) sameDefinition(o *macro) bool {
	if m.functionLike != o.functionLike || m.variadic != o.variadic || len(m.params) != len(o.params) || len(m.body) != len(o.body) {
		return false
	}
	for i := range m.params {
		if m.params[i] != o.params[i] {
			return false
		}
	}
	for i := range m.body {
		a, b := m.body[i], o.body[i]
		if a.isBlank() != b.isBlank() || !a.isBlank() && a.Value != b.Value {
			return false
		}
	}
	return true
}

// MacroDefinition is a read-only view of one entry of the macro table.
type MacroDefinition struct {
	Name         string
	FunctionLike bool
	Predefined   bool
	Pos          Position
	Params       []string
	Body         []Token
}

// macroTable is ordered by name so that iteration is deterministic.
type macroTable struct {
	m *treemap.Map
}

func newMacroTable() *macroTable {
	return &macroTable{m: treemap.NewWithStringComparator()}
}

func (t *macroTable) lookup(name string) *macro {
	v, ok := t.m.Get(name)
	if !ok {
		return nil
	}
	return v.(*macro)
}

func (t *macroTable) define(m *macro) {
	t.m.Put(m.name, m)
}

func (t *macroTable) undefine(name string) bool {
	if _, ok := t.m.Get(name); !ok {
		return false
	}
	t.m.Remove(name)
	return true
}

func (t *macroTable) names() []string {
	keys := t.m.Keys()
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.(string)
	}
	return names
}

func (t *macroTable) size() int {
	return t.m.Size()
}

// parseDefine parses the tokens of a #define directive that follow the
// directive name.
func parseDefine(toks []Token, lang Language, pos Position) (*macro, error) {
	i := nextNonBlank(toks, 0)
	if i >= len(toks) || toks[i].Kind != Identifier {
		return nil, errorf(BadMacroDefinition, pos, "ill formed macro name")
	}
	m := &macro{name: toks[i].Value, pos: toks[i].Pos}
	if m.name == "defined" {
		return nil, errorf(BadMacroDefinition, pos, "'defined' cannot be used as a macro name")
	}
	i++

	// function-like only if '(' immediately follows the name
	if i < len(toks) && toks[i].isPunct("(") {
		m.functionLike = true
		var err error
		if i, err = parseParams(m, toks, i+1, lang, pos); err != nil {
			return nil, err
		}
	}

	body, err := normalizeBody(trimBlank(toks[i:]))
	if err != nil {
		return nil, err
	}
	if len(body) > 0 && body[0].isPaste() || len(body) > 0 && body[len(body)-1].isPaste() {
		return nil, errorf(BadMacroDefinition, pos, "'##' cannot appear at either end of a macro expansion")
	}
	if m.functionLike {
		for j, t := range body {
			if t.Kind != Punct || t.Value != "#" && t.Value != "%:" {
				continue
			}
			k := nextNonBlank(body, j+1)
			if k >= len(body) || m.param(body[k].Value) < 0 {
				return nil, errorf(BadMacroDefinition, pos, "'#' is not followed by a macro parameter")
			}
		}
	}
	m.body = body
	return m, nil
}

func parseParams(m *macro, toks []Token, i int, lang Language, pos Position) (int, error) {
	i = nextNonBlank(toks, i)
	if i < len(toks) && toks[i].isPunct(")") {
		return i + 1, nil
	}
	for {
		i = nextNonBlank(toks, i)
		if i >= len(toks) {
			return i, errorf(BadMacroDefinition, pos, "missing ')' in macro parameter list")
		}
		t := toks[i]
		switch {
		case t.isPunct("..."):
			if !lang.variadics() {
				return i, errorf(BadMacroDefinition, pos, "variadic macros are not supported")
			}
			m.params = append(m.params, "__VA_ARGS__")
			m.variadic = true
			i++
		case t.Kind == Identifier:
			if t.Value == "__VA_ARGS__" {
				return i, errorf(BadMacroDefinition, pos, "__VA_ARGS__ can only appear in the expansion of a variadic macro")
			}
			if m.param(t.Value) >= 0 {
				return i, errorf(BadMacroDefinition, pos, "duplicate macro parameter %q", t.Value)
			}
			m.params = append(m.params, t.Value)
			i++
			if j := nextNonBlank(toks, i); j < len(toks) && toks[j].isPunct("...") {
				if !lang.variadics() {
					return i, errorf(BadMacroDefinition, pos, "variadic macros are not supported")
				}
				m.variadic = true
				i = j + 1
			}
		default:
			return i, errorf(BadMacroDefinition, pos, "ill formed macro parameter list")
		}
		i = nextNonBlank(toks, i)
		if i >= len(toks) {
			return i, errorf(BadMacroDefinition, pos, "missing ')' in macro parameter list")
		}
		if toks[i].isPunct(")") {
			return i + 1, nil
		}
		if !toks[i].isPunct(",") || m.variadic {
			return i, errorf(BadMacroDefinition, pos, "ill formed macro parameter list")
		}
		i++
	}
}

// normalizeBody collapses every run of whitespace and comments into a
// single space token.
func normalizeBody(toks []Token) ([]Token, error) {
	body := make([]Token, 0, len(toks))
	for _, t := range toks {
		if t.Kind == Newline {
			continue
		}
		if t.isBlank() {
			if len(body) > 0 && body[len(body)-1].Kind == Whitespace {
				continue
			}
			t = Token{Kind: Whitespace, Value: " ", Pos: t.Pos}
		}
		t.bol, t.lead = false, false
		body = append(body, t)
	}
	return body, nil
}

// parseCommandLineDefinition parses NAME, NAME=VALUE or NAME(a,b)=BODY.
// A definition without '=' defines the macro as 1.
func parseCommandLineDefinition(def string, lang Language, pos Position) (*macro, error) {
	invalid := func() error {
		return errorf(InvalidMacroSyntax, Position{}, "invalid macro definition: %q", def)
	}
	n := 0
	for n < len(def) && isIdentChar(int(def[n])) {
		n++
	}
	if n == 0 || !isIdentifier(def[:n]) {
		return nil, invalid()
	}
	head, rest := def[:n], def[n:]
	if strings.HasPrefix(rest, "(") {
		end := strings.IndexByte(rest, ')')
		if end < 0 {
			return nil, invalid()
		}
		head += rest[:end+1]
		rest = rest[end+1:]
	}
	body := "1"
	switch {
	case rest == "":
	case rest[0] == '=':
		body = rest[1:]
	default:
		return nil, invalid()
	}
	if strings.ContainsAny(body, "\r\n") {
		return nil, invalid()
	}

	toks, err := lexString(head+" "+body, lang)
	if err != nil {
		return nil, invalid()
	}
	m, err := parseDefine(toks, lang, pos)
	if err != nil {
		return nil, &Error{Kind: InvalidMacroSyntax, Description: "invalid macro definition: " + err.(*Error).Description}
	}
	m.pos = pos
	for i := range m.body {
		m.body[i].Pos = pos
	}
	return m, nil
}
