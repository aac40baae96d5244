package parser

import (
	"testing"

	"github.com/rustlite/rustlite/ast"
)

func TestParseExprPrecedenceMulBindsTighterThanAdd(t *testing.T) {
	e := mustParseExpr(t, "1 + 2 * 3")
	if e.Kind != ast.ExprBinary || e.Lit.Text != "+" {
		t.Fatalf("got %+v, want top-level '+'", e)
	}
	if e.LExpr.Kind != ast.ExprLiteral {
		t.Fatalf("left operand: got %+v, want literal 1", e.LExpr)
	}
	if e.RExpr.Kind != ast.ExprBinary || e.RExpr.Lit.Text != "*" {
		t.Fatalf("right operand: got %+v, want '*' subtree", e.RExpr)
	}
}

func TestParseExprAssignmentRightAssociative(t *testing.T) {
	e := mustParseExpr(t, "a = b = c")
	if e.Kind != ast.ExprAssign {
		t.Fatalf("got %+v, want top-level assign", e)
	}
	if e.LHS.Kind != ast.ExprPath || e.LHS.Path.Components[0].Name.Text != "a" {
		t.Fatalf("LHS: got %+v, want path 'a'", e.LHS)
	}
	rhs := e.RHS
	if rhs.Kind != ast.ExprAssign {
		t.Fatalf("RHS: got %+v, want nested assign (b = c)", rhs)
	}
	if rhs.LHS.Path.Components[0].Name.Text != "b" || rhs.RHS.Path.Components[0].Name.Text != "c" {
		t.Fatalf("nested assign operands: got %+v", rhs)
	}
}

func TestParseExprCompoundAssignRecordsOperator(t *testing.T) {
	e := mustParseExpr(t, "x += 1")
	if e.Kind != ast.ExprAssign || e.Lit.Text != "+=" {
		t.Fatalf("got %+v, want compound assign '+='", e)
	}
}

func TestParseExprUnaryOperandIsMethodCall(t *testing.T) {
	e := mustParseExpr(t, "-x.f()")
	if e.Kind != ast.ExprUnary || e.Lit.Text != "-" {
		t.Fatalf("got %+v, want top-level unary '-'", e)
	}
	call := e.Value
	if call.Kind != ast.ExprMethodCall || call.Method.Text != "f" {
		t.Fatalf("operand: got %+v, want method call 'f'", call)
	}
	if call.Receiver.Kind != ast.ExprPath || call.Receiver.Path.Components[0].Name.Text != "x" {
		t.Fatalf("receiver: got %+v, want path 'x'", call.Receiver)
	}
}

func TestParseExprComparisonVsShift(t *testing.T) {
	e := mustParseExpr(t, "a << b < c")
	if e.Kind != ast.ExprBinary || e.Lit.Text != "<" {
		t.Fatalf("got %+v, want top-level '<' (shift binds tighter)", e)
	}
	if e.LExpr.Kind != ast.ExprBinary || e.LExpr.Lit.Text != "<<" {
		t.Fatalf("left operand: got %+v, want '<<' subtree", e.LExpr)
	}
}

func TestParseExprCastBindsTighterThanMul(t *testing.T) {
	e := mustParseExpr(t, "a as i32 * b")
	if e.Kind != ast.ExprBinary || e.Lit.Text != "*" {
		t.Fatalf("got %+v, want top-level '*'", e)
	}
	if e.LExpr.Kind != ast.ExprCast {
		t.Fatalf("left operand: got %+v, want cast", e.LExpr)
	}
}

func TestParseExprRangeInclusive(t *testing.T) {
	e := mustParseExpr(t, "0..=10")
	if e.Kind != ast.ExprBinary {
		t.Fatalf("got %+v, want ExprBinary for range", e)
	}
	if e.LExpr == nil || e.RExpr == nil {
		t.Fatalf("range operands: got %+v", e)
	}
}

func TestParseExprTryOperatorIsUnary(t *testing.T) {
	e := mustParseExpr(t, "foo()?")
	if e.Kind != ast.ExprUnary || e.Lit.Text != "?" {
		t.Fatalf("got %+v, want unary '?'", e)
	}
	if e.Value.Kind != ast.ExprCall {
		t.Fatalf("operand: got %+v, want call", e.Value)
	}
}

func TestParseExprIfElseIf(t *testing.T) {
	e := mustParseExpr(t, "if a { 1 } else if b { 2 } else { 3 }")
	if e.Kind != ast.ExprIf {
		t.Fatalf("got %+v, want ExprIf", e)
	}
	elseIf := e.Else
	if elseIf == nil || elseIf.Kind != ast.ExprIf {
		t.Fatalf("else branch: got %+v, want nested ExprIf", elseIf)
	}
	if elseIf.Else == nil || elseIf.Else.Kind != ast.ExprBlock {
		t.Fatalf("final else: got %+v, want ExprBlock", elseIf.Else)
	}
}

func TestParseExprStructLitDisallowedInIfCond(t *testing.T) {
	e := mustParseExpr(t, "if x { 1 }")
	if e.Kind != ast.ExprIf {
		t.Fatalf("got %+v, want ExprIf", e)
	}
	if e.IfCond.Kind != ast.ExprPath {
		t.Fatalf("cond: got %+v, want bare path 'x' (no struct literal)", e.IfCond)
	}
}

func TestParseExprMatchArms(t *testing.T) {
	e := mustParseExpr(t, "match x { 1 => \"one\", _ => \"other\" }")
	if e.Kind != ast.ExprMatch || len(e.Arms) != 2 {
		t.Fatalf("got %+v, want 2 match arms", e)
	}
	if e.Arms[1].Pats[0].Kind != ast.PatWildcard {
		t.Fatalf("arm 1 pattern: got %+v, want wildcard", e.Arms[1].Pats[0])
	}
}

func TestParseExprClosure(t *testing.T) {
	e := mustParseExpr(t, "|a, b| a + b")
	if e.Kind != ast.ExprClosure || len(e.ClosureParams) != 2 {
		t.Fatalf("got %+v, want a 2-param closure", e)
	}
	if e.ClosureBody.Kind != ast.ExprBinary {
		t.Fatalf("body: got %+v, want binary add", e.ClosureBody)
	}
}

func TestParseExprMacroCall(t *testing.T) {
	e := mustParseExpr(t, "println!(\"hi\")")
	if e.Kind != ast.ExprMacroCall {
		t.Fatalf("got %+v, want ExprMacroCall", e)
	}
	if e.MacroPath.Components[0].Name.Text != "println" {
		t.Fatalf("macro path: got %+v", e.MacroPath)
	}
	if len(e.MacroArgs) == 0 {
		t.Fatalf("macro args: got none, want the raw string-literal token")
	}
}
