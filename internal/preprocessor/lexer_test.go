package preprocessor

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

type tokenView struct {
	Kind  Kind
	Value string
}

func lexViews(t *testing.T, input string, lang Language) []tokenView {
	t.Helper()
	toks, err := lexString(input, lang)
	if err != nil {
		t.Fatalf("lex %q: %v", input, err)
	}
	var views []tokenView
	for _, tok := range toks {
		views = append(views, tokenView{tok.Kind, tok.Value})
	}
	return views
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		lang  Language
		want  []tokenView
	}{
		{
			"operators",
			"a+=b<<=c...",
			SupportC99,
			[]tokenView{{Identifier, "a"}, {Punct, "+="}, {Identifier, "b"}, {Punct, "<<="}, {Identifier, "c"}, {Punct, "..."}},
		},
		{
			"pp-numbers",
			"1.5e+3f 0x1p-2 .5 12ULL",
			SupportC99,
			[]tokenView{{Number, "1.5e+3f"}, {Whitespace, " "}, {Number, "0x1p-2"}, {Whitespace, " "}, {Number, ".5"}, {Whitespace, " "}, {Number, "12ULL"}},
		},
		{
			"literals with prefixes",
			`L"x" u8"y" U'z' u8x`,
			SupportC99,
			[]tokenView{{StringLiteral, `L"x"`}, {Whitespace, " "}, {StringLiteral, `u8"y"`}, {Whitespace, " "}, {CharLiteral, "U'z'"}, {Whitespace, " "}, {Identifier, "u8x"}},
		},
		{
			"escaped quote",
			`"a\"b" '\''`,
			SupportC99,
			[]tokenView{{StringLiteral, `"a\"b"`}, {Whitespace, " "}, {CharLiteral, `'\''`}},
		},
		{
			"unterminated literal",
			`"abc` + "\nx",
			SupportC99,
			[]tokenView{{Other, `"abc`}, {Newline, "\n"}, {Identifier, "x"}},
		},
		{
			"comments",
			"a // line\n/* block\n */b",
			SupportC99,
			[]tokenView{{Identifier, "a"}, {Whitespace, " "}, {Comment, "// line"}, {Newline, "\n"}, {Comment, "/* block\n */"}, {Identifier, "b"}},
		},
		{
			"line splice inside identifier",
			"ab\\\ncd",
			SupportC99,
			[]tokenView{{Identifier, "abcd"}},
		},
		{
			"digraphs",
			"%:%: <: :>",
			SupportC99,
			[]tokenView{{Punct, "%:%:"}, {Whitespace, " "}, {Punct, "<:"}, {Whitespace, " "}, {Punct, ":>"}},
		},
		{
			"C++ operators in C",
			"->*::",
			SupportC99,
			[]tokenView{{Punct, "->"}, {Punct, "*"}, {Punct, ":"}, {Punct, ":"}},
		},
		{
			"C++ operators",
			"->*::.*",
			SupportCPP11,
			[]tokenView{{Punct, "->*"}, {Punct, "::"}, {Punct, ".*"}},
		},
		{
			"raw string",
			`R"d(a"b\)d" R`,
			SupportCPP11,
			[]tokenView{{StringLiteral, `R"d(a"b\)d"`}, {Whitespace, " "}, {Identifier, "R"}},
		},
		{
			"stray characters",
			"@`",
			SupportC99,
			[]tokenView{{Other, "@"}, {Other, "`"}},
		},
		{
			"identifier characters",
			"$x_1 é",
			SupportC99,
			[]tokenView{{Identifier, "$x_1"}, {Whitespace, " "}, {Identifier, "é"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := lexViews(t, tt.input, tt.lang)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTokenPositions(t *testing.T) {
	l := newLexer("f.c", []byte("a\n  b \\\n c\n"), SupportC99)
	var got []Position
	for {
		tok, err := l.next()
		if err != nil {
			t.Fatal(err)
		}
		if tok.Kind == EOF {
			break
		}
		if tok.Kind == Identifier {
			got = append(got, tok.Pos)
		}
	}
	want := []Position{
		{File: "f.c", Line: 1, Column: 1},
		{File: "f.c", Line: 2, Column: 3},
		{File: "f.c", Line: 3, Column: 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestLineFlags(t *testing.T) {
	toks, err := lexString("  # x\ny # z\n", SupportC99)
	if err != nil {
		t.Fatal(err)
	}
	var hashes []bool
	for _, tok := range toks {
		if tok.isPunct("#") {
			hashes = append(hashes, tok.isHash())
		}
	}
	if diff := cmp.Diff([]bool{true, false}, hashes); diff != "" {
		t.Errorf("isHash mismatch (-want +got):\n%s", diff)
	}
	if !toks[0].lead {
		t.Errorf("leading blank not marked")
	}
}

func TestTrigraphs(t *testing.T) {
	got := string(convertTrigraphs([]byte("??=??(??)??<??>??!??'??-??/?x")))
	if diff := cmp.Diff(`#[]{}|^~\?x`, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestUnterminatedComment(t *testing.T) {
	_, err := lexString("a /* b", SupportC99)
	e, ok := err.(*Error)
	if !ok || e.Kind != UnterminatedComment {
		t.Fatalf("error = %v, want %v", err, UnterminatedComment)
	}
}

func TestHideset(t *testing.T) {
	h := hideset(nil).with("b").with("a").with("c").with("a")
	if diff := cmp.Diff(hideset{"a", "b", "c"}, h); diff != "" {
		t.Errorf("with mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(hideset{"b", "c"}, h.intersect(hideset{"c", "b", "x"})); diff != "" {
		t.Errorf("intersect mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(hideset{"a", "b", "c", "x"}, h.union(hideset{"x", "a"})); diff != "" {
		t.Errorf("union mismatch (-want +got):\n%s", diff)
	}
	if h.contains("x") || !h.contains("b") {
		t.Errorf("contains wrong for %v", h)
	}
}
