package macro_test

import (
	"testing"

	"github.com/rustlite/rustlite/ast"
	"github.com/rustlite/rustlite/internal/intern"
	"github.com/rustlite/rustlite/lexer"
	"github.com/rustlite/rustlite/macro"
	"github.com/rustlite/rustlite/parser"
	"github.com/rustlite/rustlite/reporter"
	"github.com/rustlite/rustlite/token"
	"github.com/rustlite/rustlite/tt"
)

func newParser(t *testing.T, src string) (*parser.Parser, *[]error) {
	t.Helper()
	var errs []error
	handler := reporter.NewHandler(reporter.NewReporter(
		func(err reporter.ErrorWithPos) error {
			errs = append(errs, err)
			return nil
		},
		nil,
	))
	l := lexer.New("test.rl", []byte(src), token.Edition2021, &intern.Table{}, handler)
	s := tt.NewStream(l, token.Edition2021)
	return parser.New(s, handler), &errs
}

// compileMacroDef parses a single `macro_rules! name { ... }` item and
// compiles it.
func compileMacroDef(t *testing.T, src string) *macro.Macro {
	t.Helper()
	p, errs := newParser(t, src)
	f, err := p.ParseFile()
	if err != nil {
		t.Fatalf("ParseFile(%q): %v", src, err)
	}
	if len(*errs) > 0 {
		t.Fatalf("ParseFile(%q): unexpected errors %v", src, *errs)
	}
	if len(f.Items) != 1 || f.Items[0].Kind != ast.ItemMacroDef {
		t.Fatalf("expected a single macro_rules! item, got %+v", f.Items)
	}
	m, err := macro.Compile(f.Items[0].Name.Text, f.Items[0].MacroRules)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return m
}

// invocationArgs parses src as a macro call expression ("name!(...)") and
// returns its delimited argument tokens with the outer bracket pair
// stripped, ready to feed to Macro.Invoke.
func invocationArgs(t *testing.T, src string) []token.Token {
	t.Helper()
	p, errs := newParser(t, src)
	e, err := p.ParseExpr()
	if err != nil {
		t.Fatalf("ParseExpr(%q): %v", src, err)
	}
	if len(*errs) > 0 {
		t.Fatalf("ParseExpr(%q): unexpected errors %v", src, *errs)
	}
	if e.Kind != ast.ExprMacroCall {
		t.Fatalf("ParseExpr(%q): got %+v, want ExprMacroCall", src, e)
	}
	if len(e.MacroArgs) < 2 {
		t.Fatalf("ParseExpr(%q): macro args too short: %+v", src, e.MacroArgs)
	}
	return e.MacroArgs[1 : len(e.MacroArgs)-1]
}

func mustParseExprTokens(t *testing.T, toks []token.Token) *ast.Expr {
	t.Helper()
	s := tt.NewOwningStream(toks, token.Edition2021)
	handler := reporter.NewHandler(reporter.NewReporter(func(err reporter.ErrorWithPos) error { return err }, nil))
	p := parser.New(s, handler)
	e, err := p.ParseExpr()
	if err != nil {
		t.Fatalf("re-parsing expansion: %v", err)
	}
	return e
}

func TestMacroExprFragmentCaptureAndSplice(t *testing.T) {
	m := compileMacroDef(t, `macro_rules! m { ($x:expr) => { $x + 1 }; }`)
	args := invocationArgs(t, "m!(2 + 3)")
	out, err := m.Invoke(args, "testcrate", token.Edition2021)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	e := mustParseExprTokens(t, out)
	if e.Kind != ast.ExprBinary || e.Lit.Text != "+" {
		t.Fatalf("got %+v, want top-level '+'", e)
	}
	// The captured "2 + 3" must splice as one opaque subtree (an
	// Interpolated token), not raw tokens — otherwise "+ 1" would
	// re-associate it instead of adding to the whole capture.
	if e.LExpr.Kind != ast.ExprBinary || e.LExpr.Lit.Text != "+" {
		t.Fatalf("left operand: got %+v, want the captured '2 + 3' subtree intact", e.LExpr)
	}
	if e.RExpr.Kind != ast.ExprLiteral || e.RExpr.Lit.Text != "1" {
		t.Fatalf("right operand: got %+v, want literal 1", e.RExpr)
	}
}

func TestMacroRepetitionBuildsArrayLiteral(t *testing.T) {
	m := compileMacroDef(t, `macro_rules! m { ($($x:expr),*) => { [$($x),*] }; }`)
	args := invocationArgs(t, "m!(1, 2, 3)")
	out, err := m.Invoke(args, "testcrate", token.Edition2021)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	e := mustParseExprTokens(t, out)
	if e.Kind != ast.ExprArrayList || len(e.Elems) != 3 {
		t.Fatalf("got %+v, want a 3-element array literal", e)
	}
	for i, want := range []string{"1", "2", "3"} {
		if e.Elems[i].Kind != ast.ExprLiteral || e.Elems[i].Lit.Text != want {
			t.Errorf("elem %d: got %+v, want literal %s", i, e.Elems[i], want)
		}
	}
}

func TestMacroOptionalTrailingSeparator(t *testing.T) {
	m := compileMacroDef(t, `macro_rules! m { ($($a:ident = $b:expr);* $(;)?) => { () }; }`)
	if _, err := m.Invoke(invocationArgs(t, "m!(x = 1; y = 2;)"), "c", token.Edition2021); err != nil {
		t.Errorf("with trailing ';': %v", err)
	}
	if _, err := m.Invoke(invocationArgs(t, "m!(x = 1; y = 2)"), "c", token.Edition2021); err != nil {
		t.Errorf("without trailing ';': %v", err)
	}
}

func TestMacroTwoLoopsWithDifferentCounts(t *testing.T) {
	m := compileMacroDef(t, `macro_rules! m { ($($a:ident),+ ; $($b:expr),+) => { () }; }`)
	if _, err := m.Invoke(invocationArgs(t, "m!(x, y, z; 1, 2)"), "c", token.Edition2021); err != nil {
		t.Errorf("two independent loops of differing length: %v", err)
	}
}

func TestMacroNegativeEmptyAgainstPlusLoop(t *testing.T) {
	m := compileMacroDef(t, `macro_rules! m { ($($x:expr),+) => { () }; }`)
	if _, err := m.Invoke(invocationArgs(t, "m!()"), "c", token.Edition2021); err == nil {
		t.Fatalf("expected empty input to fail a '+' loop")
	}
}

func TestMacroNegativeIterationCountMismatch(t *testing.T) {
	m := compileMacroDef(t, `macro_rules! m { ($($a:ident),* ; $($b:expr),*) => { [$(($a, $b)),*] }; }`)
	_, err := m.Invoke(invocationArgs(t, "m!(x, y, z; 1, 2)"), "c", token.Edition2021)
	if err == nil {
		t.Fatalf("expected an iteration count mismatch error")
	}
}

func TestMacroNegativeExprFragmentRejectsBareComma(t *testing.T) {
	m := compileMacroDef(t, `macro_rules! m { ($x:expr) => { $x }; }`)
	if _, err := m.Invoke(invocationArgs(t, "m!(,)"), "c", token.Edition2021); err == nil {
		t.Fatalf("expected a bare ',' to fail an :expr fragment")
	}
}

func TestMacroNestedRepetitionPairs(t *testing.T) {
	m := compileMacroDef(t, `macro_rules! pairs { ($($a:ident : $b:expr),*) => { [$( ($a, $b) ),*] }; }`)
	out, err := m.Invoke(invocationArgs(t, "pairs!(x: 1, y: 2, z: 3)"), "c", token.Edition2021)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	e := mustParseExprTokens(t, out)
	if e.Kind != ast.ExprArrayList || len(e.Elems) != 3 {
		t.Fatalf("got %+v, want a 3-element array literal", e)
	}
	wantNames := []string{"x", "y", "z"}
	wantVals := []string{"1", "2", "3"}
	for i, elem := range e.Elems {
		if elem.Kind != ast.ExprTuple || len(elem.Elems) != 2 {
			t.Fatalf("elem %d: got %+v, want a 2-tuple", i, elem)
		}
		a, b := elem.Elems[0], elem.Elems[1]
		if a.Kind != ast.ExprPath || a.Path.Components[0].Name.Text != wantNames[i] {
			t.Errorf("elem %d first: got %+v, want path %q", i, a, wantNames[i])
		}
		if b.Kind != ast.ExprLiteral || b.Lit.Text != wantVals[i] {
			t.Errorf("elem %d second: got %+v, want literal %s", i, b, wantVals[i])
		}
	}
}

func TestMacroCrateSplice(t *testing.T) {
	m := compileMacroDef(t, `macro_rules! m { () => { $crate::foo }; }`)
	out, err := m.Invoke(invocationArgs(t, "m!()"), "my_crate", token.Edition2021)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(out) != 4 {
		t.Fatalf("got %d tokens, want 4 (:: \"my_crate\" :: foo): %+v", len(out), out)
	}
	if out[0].Text != "::" || out[1].Kind != token.String || out[1].StrVal != "my_crate" || out[2].Text != "::" {
		t.Fatalf("unexpected $crate splice: %+v", out[:3])
	}
	if out[3].Kind != token.Ident || out[3].Text != "foo" {
		t.Fatalf("unexpected trailing token: %+v", out[3])
	}
}
