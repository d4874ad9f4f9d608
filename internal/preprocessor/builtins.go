package preprocessor

import "strconv"

var dynamicBuiltins = map[string]builtinFunc{
	"__FILE__": func(c *Context, site Token) Token {
		return Token{Kind: StringLiteral, Value: quoteString(site.Pos.File), Pos: site.Pos}
	},
	"__LINE__": func(c *Context, site Token) Token {
		return Token{Kind: Number, Value: strconv.Itoa(site.Pos.Line), Pos: site.Pos}
	},
	"__DATE__": func(c *Context, site Token) Token {
		return Token{Kind: StringLiteral, Value: `"` + c.now.Format("Jan _2 2006") + `"`, Pos: site.Pos}
	},
	"__TIME__": func(c *Context, site Token) Token {
		return Token{Kind: StringLiteral, Value: `"` + c.now.Format("15:04:05") + `"`, Pos: site.Pos}
	},
	"__COUNTER__": func(c *Context, site Token) Token {
		n := c.counter
		c.counter++
		return Token{Kind: Number, Value: strconv.Itoa(n), Pos: site.Pos}
	},
	"__INCLUDE_LEVEL__": func(c *Context, site Token) Token {
		level := 0
		if c.it != nil && len(c.it.files) > 0 {
			level = len(c.it.files) - 1
		}
		return Token{Kind: Number, Value: strconv.Itoa(level), Pos: site.Pos}
	},
}

// languageMacros are the predefined macros that depend on the language.
func languageMacros(lang Language) map[string]string {
	m := map[string]string{
		"__STDC__":        "1",
		"__STDC_HOSTED__": "1",
	}
	if lang&SupportCPP11 != 0 {
		m["__cplusplus"] = "201103L"
	} else if lang&SupportC99 != 0 {
		m["__STDC_VERSION__"] = "199901L"
	}
	return m
}

var languageMacroNames = []string{"__STDC__", "__STDC_HOSTED__", "__STDC_VERSION__", "__cplusplus"}

func (c *Context) installBuiltins() {
	for name, fn := range dynamicBuiltins {
		c.macros.define(&macro{name: name, predefined: true, builtin: fn})
	}
}

func (c *Context) installLanguageMacros() {
	for _, name := range languageMacroNames {
		if m := c.macros.lookup(name); m != nil && m.predefined {
			c.macros.undefine(name)
		}
	}
	for name, value := range languageMacros(c.lang) {
		c.macros.define(&macro{
			name:       name,
			predefined: true,
			body:       []Token{{Kind: Number, Value: value}},
		})
	}
}
