package parser

import (
	"github.com/rustlite/rustlite/ast"
	"github.com/rustlite/rustlite/token"
)

// ParseStmt parses a single statement, for the `stmt` fragment
// sub-grammar (spec.md §4.3).
func (p *Parser) ParseStmt() (stmt *ast.Stmt, err error) {
	defer p.recover(&err)
	return p.parseOneStmt(), nil
}

// ParseBlock parses a brace-delimited block, for the `block` fragment
// sub-grammar.
func (p *Parser) ParseBlock() (block *ast.Expr, err error) {
	defer p.recover(&err)
	return p.parseBlockExpr(p.s.Peek().Span, false), nil
}

// isItemStart reports whether tok begins an item, deciding the ambiguous
// "unsafe" and "macro_rules" prefixes by a one-token lookahead (spec.md
// §4.3's StmtKind distinguishes item statements from let/expr statements
// inside a block).
func (p *Parser) isItemStart(tok token.Token) bool {
	switch tok.Kind {
	case token.KwFn, token.KwStruct, token.KwEnum, token.KwTrait, token.KwImpl,
		token.KwType, token.KwUse, token.KwExtern, token.KwMod, token.KwStatic,
		token.KwConst, token.KwPub:
		return true
	case token.KwUnsafe:
		return p.unsafeIntroducesItem()
	}
	if tok.Kind == token.Punct && tok.Text == "#" {
		return true
	}
	if tok.Kind == token.Ident && tok.Text == "macro_rules" {
		nxt := p.s.Lookahead(1)
		return nxt.Kind == token.Punct && nxt.Text == "!"
	}
	return false
}

func (p *Parser) unsafeIntroducesItem() bool {
	nxt := p.s.Lookahead(1)
	return nxt.Kind == token.KwFn || nxt.Kind == token.KwTrait || nxt.Kind == token.KwImpl
}

// blockLikeExpr reports whether e is one of the block-like
// expression forms that never require a trailing ";" to stand alone as a
// statement (spec.md §4.3, mirroring rustc's "expression statements").
func blockLikeExpr(e *ast.Expr) bool {
	switch e.Kind {
	case ast.ExprBlock, ast.ExprIf, ast.ExprMatch, ast.ExprLoop:
		return true
	}
	return false
}

func (p *Parser) parseOneStmt() *ast.Stmt {
	tok := p.s.Peek()

	if _, ok := p.s.GetPunctIf(";"); ok {
		return &ast.Stmt{Span: tok.Span, Kind: ast.StmtSemi}
	}

	if p.isItemStart(tok) {
		item := p.parseItem()
		return &ast.Stmt{Span: item.Span, Kind: ast.StmtItem, Item: item}
	}

	if tok.Kind == token.KwLet {
		return p.parseLetStmt(tok.Span)
	}

	e := p.parseExpr(precAssign)
	if _, ok := p.s.GetPunctIf(";"); ok {
		return &ast.Stmt{Span: e.Span, Kind: ast.StmtSemi, Expr: e}
	}
	return &ast.Stmt{Span: e.Span, Kind: ast.StmtExpr, Expr: e}
}

func (p *Parser) parseLetStmt(start token.Span) *ast.Stmt {
	p.s.Next() // "let"
	pat := p.parsePat(true)
	var ty *ast.Type
	if _, ok := p.s.GetPunctIf(":"); ok {
		ty = p.parseType(PathModeType)
	}
	var init *ast.Expr
	if _, ok := p.s.GetPunctIf("="); ok {
		init = p.parseExpr(precAssign)
	}
	var elseBlock *ast.Expr
	if _, ok := p.s.GetTokenIf(token.KwElse); ok {
		elseBlock = p.parseBlockExpr(p.s.Peek().Span, false)
	}
	p.expectPunct(";")
	letExpr := &ast.Expr{Span: start, Kind: ast.ExprLet, LetPat: pat, LetTy: ty, LetInit: init, Else: elseBlock}
	return &ast.Stmt{Span: start, Kind: ast.StmtLet, Expr: letExpr}
}

// parseStmtsUntilBrace reads statements until the closing "}" (peeked, not
// consumed here — the caller, parseBlockExpr, consumes it), returning the
// statement list and an optional tail expression (an expression with no
// trailing ";" immediately before "}").
func (p *Parser) parseStmtsUntilBrace() ([]ast.Stmt, *ast.Expr) {
	var stmts []ast.Stmt
	for {
		tok := p.s.Peek()
		if tok.IsEOF() {
			p.fail(tok.Span, "expected %q, found end of input", "}")
		}
		if tok.Kind == token.Punct && tok.Text == "}" {
			return stmts, nil
		}
		if _, ok := p.s.GetPunctIf(";"); ok {
			continue
		}

		if p.isItemStart(tok) {
			item := p.parseItem()
			stmts = append(stmts, ast.Stmt{Span: item.Span, Kind: ast.StmtItem, Item: item})
			continue
		}

		if tok.Kind == token.KwLet {
			stmts = append(stmts, *p.parseLetStmt(tok.Span))
			continue
		}

		e := p.parseExpr(precAssign)
		if _, ok := p.s.GetPunctIf(";"); ok {
			stmts = append(stmts, ast.Stmt{Span: e.Span, Kind: ast.StmtSemi, Expr: e})
			continue
		}
		if nxt := p.s.Peek(); nxt.Kind == token.Punct && nxt.Text == "}" {
			return stmts, e
		}
		if blockLikeExpr(e) {
			stmts = append(stmts, ast.Stmt{Span: e.Span, Kind: ast.StmtExpr, Expr: e})
			continue
		}
		// A non-block expression not immediately followed by "}" or ";"
		// is a parse error under the grammar (spec.md §4.3); report it
		// at the next token rather than silently swallowing it.
		got := p.s.Peek()
		p.fail(got.Span, "expected %q, found %v", ";", describe(got))
	}
}
