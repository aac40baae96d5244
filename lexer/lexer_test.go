package lexer

import (
	"testing"

	"github.com/rustlite/rustlite/internal/intern"
	"github.com/rustlite/rustlite/reporter"
	"github.com/rustlite/rustlite/token"
)

func lexAll(t *testing.T, src string) []token.Token {
	t.Helper()
	interner := &intern.Table{}
	var errs []error
	handler := reporter.NewHandler(reporter.NewReporter(
		func(err reporter.ErrorWithPos) error {
			errs = append(errs, err)
			return nil
		},
		nil,
	))
	l := New("test.rl", []byte(src), token.Edition2021, interner, handler)

	var toks []token.Token
	for {
		tok := l.Next()
		toks = append(toks, tok)
		if tok.IsEOF() {
			break
		}
	}
	if len(errs) > 0 {
		t.Fatalf("unexpected lex errors for %q: %v", src, errs)
	}
	return toks
}

func kinds(toks []token.Token) []token.Kind {
	out := make([]token.Kind, len(toks))
	for i, tok := range toks {
		out[i] = tok.Kind
	}
	return out
}

func TestLexIdentAndKeywords(t *testing.T) {
	toks := lexAll(t, "let mut x = foo_bar;")
	got := kinds(toks)
	want := []token.Kind{
		token.KwLet, token.KwMut, token.Ident, token.Punct, token.Ident, token.Punct, token.EOF,
	}
	if len(got) != len(want) {
		t.Fatalf("got %d tokens %v, want %d %v", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %v want %v", i, got[i], want[i])
		}
	}
	if toks[2].Text != "x" {
		t.Errorf("ident text: got %q, want %q", toks[2].Text, "x")
	}
}

func TestLexRawIdentBypassesKeywords(t *testing.T) {
	toks := lexAll(t, "r#fn")
	if len(toks) != 2 || toks[0].Kind != token.RawIdent || toks[0].Text != "fn" {
		t.Fatalf("got %+v, want a single RawIdent(fn) token", toks)
	}
}

func TestLexIntegerLiteralsAndSuffixes(t *testing.T) {
	cases := []struct {
		src    string
		val    uint64
		suffix token.IntSuffix
	}{
		{"0", 0, token.AnySuffix},
		{"42u8", 42, token.U8Suffix},
		{"0x1F", 0x1F, token.AnySuffix},
		{"0b1010", 0b1010, token.AnySuffix},
		{"0o17", 0o17, token.AnySuffix},
		{"1_000_000i64", 1000000, token.I64Suffix},
	}
	for _, c := range cases {
		toks := lexAll(t, c.src)
		if toks[0].Kind != token.Integer {
			t.Fatalf("%q: got kind %v, want Integer", c.src, toks[0].Kind)
		}
		if toks[0].IntVal != c.val {
			t.Errorf("%q: got value %d, want %d", c.src, toks[0].IntVal, c.val)
		}
		if toks[0].IntSuffix != c.suffix {
			t.Errorf("%q: got suffix %v, want %v", c.src, toks[0].IntSuffix, c.suffix)
		}
	}
}

func TestLexFloatLiterals(t *testing.T) {
	cases := []string{"1.0", "1.5f32", "3.14e10", "2.", "0.5e-3"}
	for _, src := range cases {
		toks := lexAll(t, src)
		if toks[0].Kind != token.Float {
			t.Errorf("%q: got kind %v, want Float", src, toks[0].Kind)
		}
	}
}

func TestLexTupleIndexNotFloat(t *testing.T) {
	// "x.0.1" is field access twice, not "x" "." "0.1" (a float).
	toks := lexAll(t, "x.0.1")
	got := kinds(toks)
	want := []token.Kind{token.Ident, token.Punct, token.Integer, token.Punct, token.Integer, token.EOF}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %v want %v (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestLexStringEscapes(t *testing.T) {
	toks := lexAll(t, `"hi\n\t\"\\\x41"`)
	if toks[0].Kind != token.String {
		t.Fatalf("got kind %v, want String", toks[0].Kind)
	}
	want := "hi\n\t\"\\A"
	if toks[0].StrVal != want {
		t.Errorf("got %q, want %q", toks[0].StrVal, want)
	}
}

func TestLexRawString(t *testing.T) {
	toks := lexAll(t, `r#"a "quoted" word"#`)
	if toks[0].Kind != token.String {
		t.Fatalf("got kind %v, want String", toks[0].Kind)
	}
	want := `a "quoted" word`
	if toks[0].StrVal != want {
		t.Errorf("got %q, want %q", toks[0].StrVal, want)
	}
}

func TestLexByteStringAndByte(t *testing.T) {
	toks := lexAll(t, `b"ab" b'x'`)
	if toks[0].Kind != token.ByteString || toks[0].StrVal != "ab" {
		t.Fatalf("got %+v, want ByteString(ab)", toks[0])
	}
	if toks[1].Kind != token.Byte || toks[1].IntVal != uint64('x') {
		t.Fatalf("got %+v, want Byte('x')", toks[1])
	}
}

func TestLexCharAndLifetime(t *testing.T) {
	toks := lexAll(t, `'a' 'static x`)
	if toks[0].Kind != token.Char || toks[0].StrVal != "a" {
		t.Fatalf("got %+v, want Char('a')", toks[0])
	}
	if toks[1].Kind != token.Lifetime {
		t.Fatalf("got %+v, want Lifetime", toks[1])
	}
}

func TestLexOperatorMaximalMunch(t *testing.T) {
	toks := lexAll(t, "<<= >> ..= .. . -> =>")
	want := []string{"<<=", ">>", "..=", "..", ".", "->", "=>"}
	for i, w := range want {
		if toks[i].Kind != token.Punct || toks[i].Text != w {
			t.Errorf("token %d: got %+v, want Punct(%q)", i, toks[i], w)
		}
	}
}

func TestLexLineComment(t *testing.T) {
	toks := lexAll(t, "let // trailing comment\nx = 1;")
	got := kinds(toks)
	want := []token.Kind{token.KwLet, token.Ident, token.Punct, token.Integer, token.Punct, token.EOF}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestLexDocCommentSynthesizesAttribute(t *testing.T) {
	toks := lexAll(t, "/// does a thing\nfn f() {}")
	// #[doc = "does a thing"] fn f ( ) { }
	want := []token.Kind{
		token.Punct, token.Punct, token.Ident, token.Punct, token.String, token.Punct,
		token.KwFn, token.Ident, token.Punct, token.Punct, token.Punct, token.Punct, token.EOF,
	}
	got := kinds(toks)
	if len(got) != len(want) {
		t.Fatalf("got %d tokens %v, want %d %v", len(got), got, len(want), want)
	}
	if toks[4].StrVal != "does a thing" {
		t.Errorf("doc text: got %q, want %q", toks[4].StrVal, "does a thing")
	}
}

func TestLexNestedBlockComment(t *testing.T) {
	toks := lexAll(t, "/* outer /* inner */ still outer */ x")
	if len(toks) != 2 || toks[0].Kind != token.Ident {
		t.Fatalf("got %+v, want a single Ident after the nested comment", toks)
	}
}

func TestLexIdentifiersHaveHygieneScope(t *testing.T) {
	toks := lexAll(t, "x")
	if toks[0].Scope == nil {
		t.Fatal("expected identifier token to carry a hygiene scope")
	}
}

func TestLexerPushPopHygieneChangesScope(t *testing.T) {
	interner := &intern.Table{}
	handler := reporter.NewHandler(nil)
	l := New("test.rl", []byte("x y"), token.Edition2021, interner, handler)

	first := l.Next()
	l.PushHygiene()
	second := l.Next()
	l.PopHygiene()

	if first.Scope.Is(second.Scope) {
		t.Fatal("expected distinct hygiene scopes before and after PushHygiene")
	}
	if !second.Scope.DescendsFrom(first.Scope) {
		t.Fatal("expected pushed scope to descend from the original scope")
	}
}

func TestLexInvalidEscapeReported(t *testing.T) {
	interner := &intern.Table{}
	var errs []error
	handler := reporter.NewHandler(reporter.NewReporter(
		func(err reporter.ErrorWithPos) error {
			errs = append(errs, err)
			return nil
		},
		nil,
	))
	l := New("test.rl", []byte(`"\q"`), token.Edition2021, interner, handler)
	for {
		tok := l.Next()
		if tok.IsEOF() {
			break
		}
	}
	if len(errs) == 0 {
		t.Fatal("expected an error for the invalid \\q escape")
	}
}
