package parser

import (
	"testing"

	"github.com/rustlite/rustlite/ast"
	"github.com/rustlite/rustlite/internal/intern"
	"github.com/rustlite/rustlite/lexer"
	"github.com/rustlite/rustlite/reporter"
	"github.com/rustlite/rustlite/token"
	"github.com/rustlite/rustlite/tt"
)

// newParser wires a lexer straight into a tt.Stream and Parser, with a
// non-aborting reporter that collects errors for the test to inspect —
// mirroring lexer_test.go's lexAll helper.
func newParser(t *testing.T, src string) (*Parser, *[]error) {
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
	l := lexer.New("test.rl", []byte(src), token.Edition2021, interner, handler)
	s := tt.NewStream(l, token.Edition2021)
	return New(s, handler), &errs
}

func mustParseExpr(t *testing.T, src string) *ast.Expr {
	t.Helper()
	p, errs := newParser(t, src)
	e, err := p.ParseExpr()
	if err != nil {
		t.Fatalf("ParseExpr(%q): %v", src, err)
	}
	if len(*errs) > 0 {
		t.Fatalf("ParseExpr(%q): unexpected errors %v", src, *errs)
	}
	return e
}

func TestParsePathAbsoluteAndSuper(t *testing.T) {
	p, errs := newParser(t, "::std::mem::swap")
	path, err := p.ParsePath(PathModeNoGenerics)
	if err != nil {
		t.Fatalf("ParsePath: %v", err)
	}
	if len(*errs) > 0 {
		t.Fatalf("unexpected errors: %v", *errs)
	}
	if path.Kind != ast.PathAbsolute {
		t.Fatalf("got Kind %v, want PathAbsolute", path.Kind)
	}
	if len(path.Components) != 3 {
		t.Fatalf("got %d components, want 3", len(path.Components))
	}
	if path.Components[0].Name.Text != "std" || path.Components[2].Name.Text != "swap" {
		t.Fatalf("unexpected component names: %+v", path.Components)
	}
}

func TestParsePathSuperCounting(t *testing.T) {
	p, _ := newParser(t, "super::super::super::foo")
	path, err := p.ParsePath(PathModeNoGenerics)
	if err != nil {
		t.Fatalf("ParsePath: %v", err)
	}
	if path.Kind != ast.PathSuper {
		t.Fatalf("got Kind %v, want PathSuper", path.Kind)
	}
	if path.Supers != 3 {
		t.Fatalf("got Supers=%d, want 3", path.Supers)
	}
	if len(path.Components) != 1 || path.Components[0].Name.Text != "foo" {
		t.Fatalf("unexpected components: %+v", path.Components)
	}
}

func TestParsePathExprModeRequiresTurbofish(t *testing.T) {
	p, errs := newParser(t, "Vec<i32>")
	path, err := p.ParsePath(PathModeExpr)
	if err != nil {
		t.Fatalf("ParsePath: %v", err)
	}
	if len(*errs) > 0 {
		t.Fatalf("unexpected errors: %v", *errs)
	}
	// In expression mode, "<i32>" is NOT consumed as generic args without
	// "::" first — it is left on the stream for the caller (here, the
	// binary-operator parser) to interpret as a comparison.
	if len(path.Components[0].Args) != 0 {
		t.Fatalf("expr-mode path ate generic args without turbofish: %+v", path)
	}
}

func TestParsePathTypeModeParsesDirectGenerics(t *testing.T) {
	p, errs := newParser(t, "Vec<i32>")
	path, err := p.ParsePath(PathModeType)
	if err != nil {
		t.Fatalf("ParsePath: %v", err)
	}
	if len(*errs) > 0 {
		t.Fatalf("unexpected errors: %v", *errs)
	}
	if len(path.Components[0].Args) != 1 {
		t.Fatalf("got %d generic args, want 1: %+v", path.Components[0].Args, path)
	}
}

func TestParseNestedGenericsSplitsShr(t *testing.T) {
	p, errs := newParser(t, "Vec<Vec<i32>>")
	ty, err := p.ParseType(PathModeType)
	if err != nil {
		t.Fatalf("ParseType: %v", err)
	}
	if len(*errs) > 0 {
		t.Fatalf("unexpected errors: %v", *errs)
	}
	if ty.Kind != ast.TypePath || len(ty.Path.Components[0].Args) != 1 {
		t.Fatalf("outer Vec<...> not parsed: %+v", ty)
	}
	inner := ty.Path.Components[0].Args[0]
	if inner.Kind != ast.TypePath || len(inner.Path.Components[0].Args) != 1 {
		t.Fatalf("inner Vec<...> not parsed (>> not split?): %+v", inner)
	}
}

func TestParseType(t *testing.T) {
	cases := []struct {
		src  string
		kind ast.TypeKind
	}{
		{"i32", ast.TypePrimitive},
		{"()", ast.TypeUnit},
		{"(i32, bool)", ast.TypeTuple},
		{"[i32]", ast.TypeSlice},
		{"[i32; 4]", ast.TypeArray},
		{"&i32", ast.TypeRefShared},
		{"&mut i32", ast.TypeRefUnique},
		{"*const i32", ast.TypePtrConst},
		{"*mut i32", ast.TypePtrMut},
		{"!", ast.TypeDiverging},
		{"fn(i32) -> bool", ast.TypeFn},
	}
	for _, c := range cases {
		p, errs := newParser(t, c.src)
		ty, err := p.ParseType(PathModeType)
		if err != nil {
			t.Fatalf("ParseType(%q): %v", c.src, err)
		}
		if len(*errs) > 0 {
			t.Fatalf("ParseType(%q): unexpected errors %v", c.src, *errs)
		}
		if ty.Kind != c.kind {
			t.Errorf("ParseType(%q): got Kind %v, want %v", c.src, ty.Kind, c.kind)
		}
	}
}

func TestParsePatTupleAndBinding(t *testing.T) {
	p, errs := newParser(t, "(a, b, _)")
	pat, err := p.ParsePat(true)
	if err != nil {
		t.Fatalf("ParsePat: %v", err)
	}
	if len(*errs) > 0 {
		t.Fatalf("unexpected errors: %v", *errs)
	}
	if pat.Kind != ast.PatTuple || len(pat.Elems) != 3 {
		t.Fatalf("got %+v, want a 3-elem tuple pattern", pat)
	}
	if pat.Elems[0].Kind != ast.PatBinding || pat.Elems[0].Name.Text != "a" {
		t.Errorf("elem 0: got %+v", pat.Elems[0])
	}
	if pat.Elems[2].Kind != ast.PatWildcard {
		t.Errorf("elem 2: got %+v, want wildcard", pat.Elems[2])
	}
}

func TestParsePatOrRange(t *testing.T) {
	p, errs := newParser(t, "1..=3 | 10")
	pat, err := p.ParsePat(true)
	if err != nil {
		t.Fatalf("ParsePat: %v", err)
	}
	if len(*errs) > 0 {
		t.Fatalf("unexpected errors: %v", *errs)
	}
	if pat.Kind != ast.PatOr || len(pat.Elems) != 2 {
		t.Fatalf("got %+v, want a 2-arm or-pattern", pat)
	}
	if pat.Elems[0].Kind != ast.PatRange {
		t.Errorf("arm 0: got Kind %v, want PatRange", pat.Elems[0].Kind)
	}
}

func TestParsePatStructWithRest(t *testing.T) {
	p, errs := newParser(t, "Point { x, y: yy, .. }")
	pat, err := p.ParsePat(true)
	if err != nil {
		t.Fatalf("ParsePat: %v", err)
	}
	if len(*errs) > 0 {
		t.Fatalf("unexpected errors: %v", *errs)
	}
	if pat.Kind != ast.PatStruct || !pat.HasRest || len(pat.Fields) != 2 {
		t.Fatalf("got %+v", pat)
	}
}
