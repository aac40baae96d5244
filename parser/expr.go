package parser

import (
	"github.com/rustlite/rustlite/ast"
	"github.com/rustlite/rustlite/token"
	"github.com/rustlite/rustlite/tt"
)

// Precedence levels, low to high, per spec.md §4.3's ladder: assignment;
// logical-or; logical-and; equality; comparison; bitor; bitxor; bitand;
// shift; add/sub; as-cast; mul/div/mod; unary; call/field/index/method;
// atoms.
const (
	precAssign = iota
	precRange
	precLogOr
	precLogAnd
	precEquality
	precComparison
	precBitOr
	precBitXor
	precBitAnd
	precShift
	precAdd
	precCast
	precMul
	precUnary
	precPostfix
)

var binOpPrec = map[string]int{
	"||": precLogOr,
	"&&": precLogAnd,
	"==": precEquality, "!=": precEquality,
	"<": precComparison, ">": precComparison, "<=": precComparison, ">=": precComparison,
	"|": precBitOr,
	"^": precBitXor,
	"&": precBitAnd,
	"<<": precShift, ">>": precShift,
	"+": precAdd, "-": precAdd,
	"*": precMul, "/": precMul, "%": precMul,
}

var assignOps = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"^=": true, "&=": true, "|=": true, "<<=": true, ">>=": true,
}

// ParseExpr is the `expr` fragment sub-grammar.
func (p *Parser) ParseExpr() (e *ast.Expr, err error) {
	defer p.recover(&err)
	return p.parseExpr(precAssign), nil
}

func (p *Parser) parseExpr(minPrec int) *ast.Expr {
	left := p.parseUnary()
	return p.parseBinaryRHS(left, minPrec)
}

func (p *Parser) parseBinaryRHS(left *ast.Expr, minPrec int) *ast.Expr {
	for {
		tok := p.s.Peek()
		if tok.Kind != token.Punct {
			return left
		}

		if assignOps[tok.Text] && minPrec <= precAssign {
			p.s.Next()
			rhs := p.parseExpr(precAssign) // right-associative
			assign := &ast.Expr{Span: left.Span, Kind: ast.ExprAssign, LHS: left, RHS: rhs}
			if tok.Text != "=" {
				assign.AssignOp = token.Punct
				assign.Lit = tok // compound operator spelling, e.g. "+="
			}
			left = assign
			continue
		}

		if tok.Text == ".." || tok.Text == "..=" {
			if minPrec > precRange {
				return left
			}
			p.s.Next()
			// Range expressions are represented as a binary op node tagged
			// with the range spelling; the interpreter/AST dump treats Op
			// specially since ranges have no dedicated ExprKind in the
			// spec's data model (spec.md §3 lists Pattern ranges but folds
			// expression ranges under general binary/call sugar).
			var rhs *ast.Expr
			if canStartExpr(p.s.Peek()) {
				rhs = p.parseExpr(precRange + 1)
			}
			left = &ast.Expr{Span: left.Span, Kind: ast.ExprBinary, Op: token.Punct, LExpr: left, RExpr: rhs}
			continue
		}

		prec, ok := binOpPrec[tok.Text]
		if !ok || prec < minPrec {
			return left
		}
		p.s.Next()
		right := p.parseExpr(prec + 1)
		left = &ast.Expr{Span: left.Span, Kind: ast.ExprBinary, Op: token.Punct, LExpr: left, RExpr: right}
		left.Lit = tok // carry the operator spelling for debug-dump/interp lookup
	}
}

func canStartExpr(tok token.Token) bool {
	if tok.IsEOF() {
		return false
	}
	if tok.Kind == token.Punct {
		switch tok.Text {
		case ")", "]", "}", ",", ";":
			return false
		}
	}
	return true
}

// parseUnary handles prefix operators then delegates to postfix/atom
// parsing (spec.md §4.3: "unary (-, !, *, &, &mut, box, postfix ?)").
func (p *Parser) parseUnary() *ast.Expr {
	start := p.s.Peek().Span
	tok := p.s.Peek()

	switch {
	case tok.Kind == token.Punct && (tok.Text == "-" || tok.Text == "!" || tok.Text == "*"):
		p.s.Next()
		operand := p.parseUnary()
		return &ast.Expr{Span: start, Kind: ast.ExprUnary, Op: token.Punct, Lit: tok, Value: operand}

	case tok.Kind == token.Punct && tok.Text == "&":
		p.s.Next()
		isMut := false
		if _, ok := p.s.GetTokenIf(token.KwMut); ok {
			isMut = true
		}
		operand := p.parseUnary()
		opTok := tok
		if isMut {
			opTok.Text = "&mut"
		}
		return &ast.Expr{Span: start, Kind: ast.ExprUnary, Op: token.Punct, Lit: opTok, Value: operand}

	case tok.Kind == token.KwBox:
		p.s.Next()
		operand := p.parseUnary()
		return &ast.Expr{Span: start, Kind: ast.ExprUnary, Op: token.KwBox, Value: operand}

	default:
		return p.parsePostfix(p.parseAtom())
	}
}

// parsePostfix handles call/field/index/method/cast/try chains.
func (p *Parser) parsePostfix(e *ast.Expr) *ast.Expr {
	for {
		tok := p.s.Peek()
		switch {
		case tok.Kind == token.KwAs:
			p.s.Next()
			ty := p.parseType(PathModeType)
			e = &ast.Expr{Span: e.Span, Kind: ast.ExprCast, CastValue: e, CastTo: ty}

		case tok.Kind == token.Punct && tok.Text == "(":
			p.s.Next()
			var args []ast.Expr
			for {
				if _, ok := p.s.GetPunctIf(")"); ok {
					break
				}
				args = append(args, *p.parseExpr(precAssign))
				if _, ok := p.s.GetPunctIf(","); !ok {
					p.expectPunct(")")
					break
				}
			}
			e = &ast.Expr{Span: e.Span, Kind: ast.ExprCall, Callee: e, Args: args}

		case tok.Kind == token.Punct && tok.Text == ".":
			p.s.Next()
			e = p.parseFieldOrMethod(e)

		case tok.Kind == token.Punct && tok.Text == "[":
			p.s.Next()
			idx := p.parseExpr(precAssign)
			p.expectPunct("]")
			e = &ast.Expr{Span: e.Span, Kind: ast.ExprIndex, IndexTarget: e, IndexValue: idx}

		case tok.Kind == token.Punct && tok.Text == "?":
			p.s.Next()
			e = &ast.Expr{Span: e.Span, Kind: ast.ExprUnary, Op: token.Punct, Lit: tok, Value: e}

		default:
			return e
		}
	}
}

func (p *Parser) parseFieldOrMethod(target *ast.Expr) *ast.Expr {
	if intTok, ok := p.s.GetTokenIf(token.Integer); ok {
		return &ast.Expr{Span: target.Span, Kind: ast.ExprField, FieldTarget: target, IsTupleIdx: true, TupleIndex: int(intTok.IntVal)}
	}
	name := p.expectKind(token.Ident, "field or method name")
	typeArgs := p.maybeParseGenericArgs(PathModeExpr)
	if _, ok := p.s.GetPunctIf("("); ok {
		var args []ast.Expr
		for {
			if _, ok := p.s.GetPunctIf(")"); ok {
				break
			}
			args = append(args, *p.parseExpr(precAssign))
			if _, ok := p.s.GetPunctIf(","); !ok {
				p.expectPunct(")")
				break
			}
		}
		return &ast.Expr{Span: target.Span, Kind: ast.ExprMethodCall, Receiver: target, Method: name, TypeArgs: typeArgs, Args: args}
	}
	return &ast.Expr{Span: target.Span, Kind: ast.ExprField, FieldTarget: target, FieldName: name}
}

// parseAtom parses the lowest-level expression forms: literals, paths
// (which may open a struct literal unless suppressed), parenthesized/
// tuple/array expressions, blocks, control flow, closures, and macro
// invocations.
func (p *Parser) parseAtom() *ast.Expr {
	start := p.s.Peek().Span
	tok := p.s.Peek()

	switch tok.Kind {
	case token.Integer, token.Float, token.String, token.ByteString, token.Char, token.Byte, token.KwTrue, token.KwFalse:
		p.s.Next()
		return &ast.Expr{Span: start, Kind: ast.ExprLiteral, LitKind: tok.Kind, Lit: tok}
	case token.Interpolated:
		// A macro expansion spliced an already-parsed expression fragment
		// back in as one opaque token (package macro's spliceCapture),
		// rather than its raw tokens, precisely so a later operator like
		// "* 2" cannot silently re-associate into the captured subtree.
		p.s.Next()
		if e, ok := tok.Frag.(*ast.Expr); ok {
			return e
		}
		p.fail(tok.Span, "interpolated token does not carry an expression fragment")
	}

	switch {
	case tok.Kind == token.Punct && tok.Text == "(":
		return p.parseParenOrTuple(start)
	case tok.Kind == token.Punct && tok.Text == "[":
		return p.parseArrayExpr(start)
	case tok.Kind == token.Punct && tok.Text == "{":
		return p.parseBlockExpr(start, false)
	case tok.Kind == token.KwUnsafe:
		p.s.Next()
		return p.parseBlockExpr(start, true)
	case tok.Kind == token.KwReturn:
		p.s.Next()
		var val *ast.Expr
		if canStartExpr(p.s.Peek()) {
			val = p.parseExpr(precAssign)
		}
		return &ast.Expr{Span: start, Kind: ast.ExprFlow, Flow: ast.FlowReturn, Value: val}
	case tok.Kind == token.KwBreak:
		p.s.Next()
		return p.parseLabelledFlow(start, ast.FlowBreak)
	case tok.Kind == token.KwContinue:
		p.s.Next()
		return p.parseLabelledFlow(start, ast.FlowContinue)
	case tok.Kind == token.KwLet:
		p.s.Next()
		pat := p.parsePat(true)
		var ty *ast.Type
		if _, ok := p.s.GetPunctIf(":"); ok {
			ty = p.parseType(PathModeType)
		}
		p.expectPunct("=")
		init := p.withNoStructLit(true, func() *ast.Expr { return p.parseExpr(precLogAnd) })
		return &ast.Expr{Span: start, Kind: ast.ExprLet, LetPat: pat, LetTy: ty, LetInit: init}
	case tok.Kind == token.KwLoop:
		p.s.Next()
		body := p.parseBlockExpr(p.s.Peek().Span, false)
		return &ast.Expr{Span: start, Kind: ast.ExprLoop, LoopKind: ast.LoopPlain, Body: body}
	case tok.Kind == token.KwWhile:
		return p.parseWhile(start)
	case tok.Kind == token.KwFor:
		return p.parseFor(start)
	case tok.Kind == token.KwIf:
		return p.parseIf(start)
	case tok.Kind == token.KwMatch:
		return p.parseMatch(start)
	case tok.Kind == token.Punct && (tok.Text == "|" || tok.Text == "||"):
		return p.parseClosure(start, false)
	case tok.Kind == token.KwMove:
		p.s.Next()
		return p.parseClosure(start, true)
	case tok.Kind == token.Lifetime:
		// Labelled loop/block: 'label: loop { } / while .. { } / for .. { }.
		label := tok
		p.s.Next()
		p.expectPunct(":")
		inner := p.parseAtom()
		setLoopLabel(inner, &label)
		return inner
	}

	if tok.Kind == token.Ident || tok.Kind == token.Punct && tok.Text == "::" || tok.Kind == token.KwSelf || tok.Kind == token.KwCrate || tok.Kind == token.KwSuper {
		return p.parsePathOrStructLitOrMacro(start)
	}

	p.fail(tok.Span, "expected expression, found %v", describe(tok))
	return nil
}

func setLoopLabel(e *ast.Expr, label *token.Token) {
	if e.Kind == ast.ExprLoop {
		e.LoopLabel = label
	}
}

func (p *Parser) parseLabelledFlow(start token.Span, kind ast.FlowKind) *ast.Expr {
	var label *token.Token
	if l, ok := p.s.GetTokenIf(token.Lifetime); ok {
		label = &l
	}
	var val *ast.Expr
	if canStartExpr(p.s.Peek()) {
		val = p.parseExpr(precAssign)
	}
	return &ast.Expr{Span: start, Kind: ast.ExprFlow, Flow: kind, Label: label, Value: val}
}

func (p *Parser) withNoStructLit(disallow bool, f func() *ast.Expr) *ast.Expr {
	save := p.noStructLit
	p.noStructLit = disallow
	defer func() { p.noStructLit = save }()
	return f()
}

func (p *Parser) parseParenOrTuple(start token.Span) *ast.Expr {
	p.s.Next()
	if _, ok := p.s.GetPunctIf(")"); ok {
		return &ast.Expr{Span: start, Kind: ast.ExprTuple}
	}
	first := p.parseExpr(precAssign)
	if _, ok := p.s.GetPunctIf(")"); ok {
		return first
	}
	elems := []ast.Expr{*first}
	for {
		if _, ok := p.s.GetPunctIf(","); !ok {
			break
		}
		if _, ok := p.s.GetPunctIf(")"); ok {
			return &ast.Expr{Span: start, Kind: ast.ExprTuple, Elems: elems}
		}
		elems = append(elems, *p.parseExpr(precAssign))
	}
	p.expectPunct(")")
	return &ast.Expr{Span: start, Kind: ast.ExprTuple, Elems: elems}
}

func (p *Parser) parseArrayExpr(start token.Span) *ast.Expr {
	p.s.Next()
	if _, ok := p.s.GetPunctIf("]"); ok {
		return &ast.Expr{Span: start, Kind: ast.ExprArrayList}
	}
	first := p.parseExpr(precAssign)
	if _, ok := p.s.GetPunctIf(";"); ok {
		count := p.parseExpr(precAssign)
		p.expectPunct("]")
		return &ast.Expr{Span: start, Kind: ast.ExprArrayRepeat, Repeat: first, Count: count}
	}
	elems := []ast.Expr{*first}
	for {
		if _, ok := p.s.GetPunctIf(","); !ok {
			break
		}
		if _, ok := p.s.GetPunctIf("]"); ok {
			return &ast.Expr{Span: start, Kind: ast.ExprArrayList, Elems: elems}
		}
		elems = append(elems, *p.parseExpr(precAssign))
	}
	p.expectPunct("]")
	return &ast.Expr{Span: start, Kind: ast.ExprArrayList, Elems: elems}
}

func (p *Parser) parseBlockExpr(start token.Span, unsafeBlock bool) *ast.Expr {
	p.expectPunct("{")
	save := p.noStructLit
	p.noStructLit = false
	stmts, tail := p.parseStmtsUntilBrace()
	p.noStructLit = save
	p.expectPunct("}")
	return &ast.Expr{Span: start, Kind: ast.ExprBlock, Unsafe: unsafeBlock, Stmts: stmts, Tail: tail}
}

func (p *Parser) parseWhile(start token.Span) *ast.Expr {
	p.s.Next() // "while"
	if _, ok := p.s.GetTokenIf(token.KwLet); ok {
		pat := p.parsePat(true)
		p.expectPunct("=")
		cond := p.withNoStructLit(true, func() *ast.Expr { return p.parseExpr(precAssign) })
		body := p.parseBlockExpr(p.s.Peek().Span, false)
		return &ast.Expr{Span: start, Kind: ast.ExprLoop, LoopKind: ast.LoopWhileLet, CondPat: pat, Cond: cond, Body: body}
	}
	cond := p.withNoStructLit(true, func() *ast.Expr { return p.parseExpr(precAssign) })
	body := p.parseBlockExpr(p.s.Peek().Span, false)
	return &ast.Expr{Span: start, Kind: ast.ExprLoop, LoopKind: ast.LoopWhile, Cond: cond, Body: body}
}

func (p *Parser) parseFor(start token.Span) *ast.Expr {
	p.s.Next() // "for"
	pat := p.parsePat(true)
	p.expectKind(token.KwIn, "'in'")
	iter := p.withNoStructLit(true, func() *ast.Expr { return p.parseExpr(precAssign) })
	body := p.parseBlockExpr(p.s.Peek().Span, false)
	return &ast.Expr{Span: start, Kind: ast.ExprLoop, LoopKind: ast.LoopFor, ForPat: pat, ForIter: iter, Body: body}
}

func (p *Parser) parseIf(start token.Span) *ast.Expr {
	p.s.Next() // "if"
	e := &ast.Expr{Span: start, Kind: ast.ExprIf}
	if _, ok := p.s.GetTokenIf(token.KwLet); ok {
		e.IfLetPat = p.parsePat(true)
		p.expectPunct("=")
	}
	e.IfCond = p.withNoStructLit(true, func() *ast.Expr { return p.parseExpr(precAssign) })
	e.Then = p.parseBlockExpr(p.s.Peek().Span, false)
	if _, ok := p.s.GetTokenIf(token.KwElse); ok {
		if p.s.Peek().Kind == token.KwIf {
			e.Else = p.parseIf(p.s.Peek().Span)
		} else {
			e.Else = p.parseBlockExpr(p.s.Peek().Span, false)
		}
	}
	return e
}

func (p *Parser) parseMatch(start token.Span) *ast.Expr {
	p.s.Next() // "match"
	scrut := p.withNoStructLit(true, func() *ast.Expr { return p.parseExpr(precAssign) })
	p.expectPunct("{")
	var arms []ast.MatchArm
	for {
		if _, ok := p.s.GetPunctIf("}"); ok {
			break
		}
		pats := []ast.Pat{*p.parsePatWrapper()}
		for {
			if _, ok := p.s.GetPunctIf("|"); !ok {
				break
			}
			pats = append(pats, *p.parsePatWrapper())
		}
		var guard *ast.Expr
		if _, ok := p.s.GetTokenIf(token.KwIf); ok {
			guard = p.parseExpr(precAssign)
		}
		p.expectPunct("=>")
		body := p.parseExpr(precAssign)
		arms = append(arms, ast.MatchArm{Pats: pats, Guard: guard, Body: body})
		if _, ok := p.s.GetPunctIf(","); !ok {
			if save := p.s.Peek(); save.Kind == token.Punct && save.Text == "}" {
				continue
			}
		}
	}
	return &ast.Expr{Span: start, Kind: ast.ExprMatch, Scrutinee: scrut, Arms: arms}
}

func (p *Parser) parseClosure(start token.Span, isMove bool) *ast.Expr {
	var params []ast.ClosureParam
	if _, ok := p.s.GetPunctIf("||"); !ok {
		p.expectPunct("|")
		for {
			if _, ok := p.s.GetPunctIf("|"); ok {
				break
			}
			pat := *p.parsePatWrapper()
			var ty *ast.Type
			if _, ok := p.s.GetPunctIf(":"); ok {
				ty = p.parseType(PathModeType)
			}
			params = append(params, ast.ClosureParam{Pat: pat, Ty: ty})
			if _, ok := p.s.GetPunctIf(","); !ok {
				p.expectPunct("|")
				break
			}
		}
	}
	var ret *ast.Type
	if _, ok := p.s.GetPunctIf("->"); ok {
		ret = p.parseType(PathModeType)
		body := p.parseBlockExpr(p.s.Peek().Span, false)
		return &ast.Expr{Span: start, Kind: ast.ExprClosure, ClosureParams: params, ClosureRet: ret, ClosureBody: body, ClosureMove: isMove}
	}
	body := p.parseExpr(precAssign)
	return &ast.Expr{Span: start, Kind: ast.ExprClosure, ClosureParams: params, ClosureBody: body, ClosureMove: isMove}
}

// parsePathOrStructLitOrMacro parses a path expression, which may continue
// as a struct literal (unless p.noStructLit) or a macro invocation
// (`path ! tt` — spec.md §4.3).
func (p *Parser) parsePathOrStructLitOrMacro(start token.Span) *ast.Expr {
	path := p.parsePath(PathModeExpr)

	if _, ok := p.s.GetPunctIf("!"); ok {
		toks := p.parseMacroArgTT()
		return &ast.Expr{Span: start, Kind: ast.ExprMacroCall, MacroPath: path, MacroArgs: toks}
	}

	if !p.noStructLit {
		if _, ok := p.s.GetPunctIf("{"); ok {
			return p.parseStructLitTail(start, path)
		}
	}

	return &ast.Expr{Span: start, Kind: ast.ExprPath, Path: path}
}

func (p *Parser) parseMacroArgTT() []token.Token {
	first := p.s.Next()
	if first.Kind != token.Punct {
		p.fail(first.Span, "expected a delimited macro argument, found %v", describe(first))
	}
	delim, ok := tt.DelimFor(first.Text)
	if !ok {
		p.fail(first.Span, "expected a delimited macro argument, found %v", describe(first))
	}
	closer := delim.Close()
	out := []token.Token{first}
	depth := 1
	for depth > 0 {
		next := p.s.Next()
		if next.IsEOF() {
			p.fail(next.Span, "unterminated macro invocation")
		}
		out = append(out, next)
		if next.Kind == token.Punct {
			if _, ok := tt.DelimFor(next.Text); ok {
				depth++
			} else if next.Text == closer {
				depth--
			}
		}
	}
	return out
}

func (p *Parser) parseStructLitTail(start token.Span, path *ast.Path) *ast.Expr {
	var fields []ast.StructLitField
	var base *ast.Expr
	for {
		if _, ok := p.s.GetPunctIf("}"); ok {
			break
		}
		if _, ok := p.s.GetPunctIf(".."); ok {
			base = p.parseExpr(precAssign)
			p.expectPunct("}")
			break
		}
		name := p.expectKind(token.Ident, "field name")
		var val *ast.Expr
		if _, ok := p.s.GetPunctIf(":"); ok {
			val = p.parseExpr(precAssign)
		}
		fields = append(fields, ast.StructLitField{Name: name, Value: val})
		if _, ok := p.s.GetPunctIf(","); !ok {
			p.expectPunct("}")
			break
		}
	}
	return &ast.Expr{Span: start, Kind: ast.ExprStructLit, Path: path, StructFields: fields, StructBase: base}
}
