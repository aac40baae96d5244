package ast

import (
	"testing"

	"github.com/rustlite/rustlite/token"
)

func intLit(v uint64) *Expr {
	return &Expr{Kind: ExprLiteral, LitKind: token.Integer, Lit: token.Token{Kind: token.Integer, IntVal: v}}
}

func TestExprCloneIsIndependent(t *testing.T) {
	orig := &Expr{
		Kind:  ExprBinary,
		Op:    token.Punct,
		LExpr: intLit(1),
		RExpr: intLit(2),
	}

	clone := orig.Clone()
	clone.LExpr.Lit.IntVal = 99

	if orig.LExpr.Lit.IntVal != 1 {
		t.Fatalf("mutating clone affected original: got %d, want 1", orig.LExpr.Lit.IntVal)
	}
	if clone.RExpr.Lit.IntVal != 2 {
		t.Fatalf("clone lost sibling field: got %d, want 2", clone.RExpr.Lit.IntVal)
	}
}

func TestWalkVisitsNestedExpressions(t *testing.T) {
	tree := &Expr{
		Kind: ExprCall,
		Callee: &Expr{Kind: ExprPath},
		Args: []Expr{
			*intLit(1),
			{Kind: ExprBinary, LExpr: intLit(2), RExpr: intLit(3)},
		},
	}

	var kinds []ExprKind
	Walk(tree, func(e *Expr) bool {
		kinds = append(kinds, e.Kind)
		return true
	})

	want := []ExprKind{ExprCall, ExprLiteral, ExprBinary, ExprLiteral, ExprLiteral, ExprPath}
	if len(kinds) != len(want) {
		t.Fatalf("got %d visited nodes %v, want %d", len(kinds), kinds, len(want))
	}
}

func TestPatCloneDeepCopiesNestedSlices(t *testing.T) {
	p := &Pat{
		Kind: PatTuple,
		Elems: []Pat{
			{Kind: PatWildcard},
			{Kind: PatBinding, Name: token.Token{Text: "x"}},
		},
	}
	clone := p.Clone()
	clone.Elems[1].Name.Text = "y"
	if p.Elems[1].Name.Text != "x" {
		t.Fatalf("mutating clone's element affected original: got %q", p.Elems[1].Name.Text)
	}
}

func TestPathCloneIndependentComponents(t *testing.T) {
	p := &Path{Kind: PathRelative, Components: []PathComponent{{Name: token.Token{Text: "foo"}}}}
	clone := p.Clone()
	clone.Components[0].Name.Text = "bar"
	if p.Components[0].Name.Text != "foo" {
		t.Fatalf("mutating clone affected original path component")
	}
}
