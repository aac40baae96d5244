package ast

// Visitor is called once per expression node as Walk descends an Expr
// tree. Per spec.md §9 ("a visitor becomes a function taking the sum by
// reference"), this replaces the source's virtual-dispatch visitor with a
// plain function over the tagged union; enter returning false skips the
// node's children.
type Visitor func(e *Expr) (enter bool)

// Walk visits e and every expression reachable from it (tuple/array
// elements, call arguments, block statements/tail, control-flow operands,
// match arms, closure bodies, and so on), calling v on each in
// pre-order.
func Walk(e *Expr, v Visitor) {
	if e == nil || !v(e) {
		return
	}
	for i := range e.Elems {
		Walk(&e.Elems[i], v)
	}
	for i := range e.Args {
		Walk(&e.Args[i], v)
	}
	for i := range e.StructFields {
		Walk(e.StructFields[i].Value, v)
	}
	Walk(e.StructBase, v)
	Walk(e.Repeat, v)
	Walk(e.Count, v)
	for i := range e.Stmts {
		WalkStmt(&e.Stmts[i], v)
	}
	Walk(e.Tail, v)
	Walk(e.Value, v)
	Walk(e.LetInit, v)
	Walk(e.LHS, v)
	Walk(e.RHS, v)
	Walk(e.Callee, v)
	Walk(e.Receiver, v)
	Walk(e.FieldTarget, v)
	Walk(e.IndexTarget, v)
	Walk(e.IndexValue, v)
	Walk(e.CastValue, v)
	Walk(e.LExpr, v)
	Walk(e.RExpr, v)
	Walk(e.Cond, v)
	Walk(e.ForIter, v)
	Walk(e.Body, v)
	Walk(e.IfCond, v)
	Walk(e.Then, v)
	Walk(e.Else, v)
	Walk(e.Scrutinee, v)
	for _, arm := range e.Arms {
		Walk(arm.Guard, v)
		Walk(arm.Body, v)
	}
	Walk(e.ClosureBody, v)
}

// WalkStmt visits the expression(s) held by a statement.
func WalkStmt(s *Stmt, v Visitor) {
	switch s.Kind {
	case StmtExpr, StmtSemi:
		Walk(s.Expr, v)
	case StmtLet:
		Walk(s.Expr, v)
	case StmtItem:
		// Item bodies are walked by WalkItem, not as expressions.
	}
}

// WalkItem visits every expression embedded in it's (and its nested
// items', e.g. inside an impl or inline mod) function bodies and consts.
func WalkItem(it *Item, v Visitor) {
	Walk(it.FnBody, v)
	Walk(it.ConstInit, v)
	for i := range it.Variants {
		Walk(it.Variants[i].Discriminant, v)
	}
	for i := range it.Items {
		WalkItem(&it.Items[i], v)
	}
	for i := range it.ModItems {
		WalkItem(&it.ModItems[i], v)
	}
}
