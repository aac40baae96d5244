package parser

import (
	"github.com/rustlite/rustlite/ast"
	"github.com/rustlite/rustlite/token"
)

// ParsePat is the `pat` fragment sub-grammar (spec.md §4.3: "a pattern
// (1.x may restrict to non-or)"). allowOr controls whether a top-level
// "|" chain is accepted — callers wanting the restricted 1.x-era grammar
// pass false.
func (p *Parser) ParsePat(allowOr bool) (pat *ast.Pat, err error) {
	defer p.recover(&err)
	return p.parsePat(allowOr), nil
}

func (p *Parser) parsePat(allowOr bool) *ast.Pat {
	first := p.parsePatWrapper()
	if !allowOr {
		return first
	}
	if _, ok := p.s.GetPunctIf("|"); !ok {
		return first
	}
	elems := []ast.Pat{*first}
	for {
		elems = append(elems, *p.parsePatWrapper())
		if _, ok := p.s.GetPunctIf("|"); !ok {
			break
		}
	}
	return &ast.Pat{Span: first.Span, Kind: ast.PatOr, Elems: elems}
}

// parsePatWrapper detects ref/mut bindings and @-subpatterns before
// delegating to the inner pattern constructors (spec.md §4.3: "a wrapper
// layer... and an inner 'real' pattern parser").
func (p *Parser) parsePatWrapper() *ast.Pat {
	start := p.s.Peek().Span

	isRef := false
	isMut := false
	if _, ok := p.s.GetTokenIf(token.KwRef); ok {
		isRef = true
	}
	if _, ok := p.s.GetTokenIf(token.KwMut); ok {
		isMut = true
	}

	if isRef || isMut {
		name := p.expectKind(token.Ident, "identifier")
		pat := &ast.Pat{Span: start, Kind: ast.PatBinding, Name: name, Ref: isRef, Mut: isMut}
		if _, ok := p.s.GetPunctIf("@"); ok {
			pat.Sub = p.parsePatWrapper()
		}
		return pat
	}

	return p.parsePatReal(start)
}

func (p *Parser) parsePatReal(start token.Span) *ast.Pat {
	tok := p.s.Peek()

	switch {
	case tok.Kind == token.Punct && tok.Text == "_":
		p.s.Next()
		return &ast.Pat{Span: start, Kind: ast.PatWildcard}

	case tok.Kind == token.Ident && tok.Text == "_":
		p.s.Next()
		return &ast.Pat{Span: start, Kind: ast.PatWildcard}

	case tok.Kind == token.Punct && tok.Text == "&":
		p.s.Next()
		inner := p.parsePatWrapper()
		return &ast.Pat{Span: start, Kind: ast.PatRef, Inner: inner}

	case tok.Kind == token.KwBox:
		p.s.Next()
		inner := p.parsePatWrapper()
		return &ast.Pat{Span: start, Kind: ast.PatBox, Inner: inner}

	case tok.Kind == token.Punct && tok.Text == "(":
		return p.parseTuplePat(start)

	case tok.Kind == token.Punct && tok.Text == "[":
		return p.parseSlicePat(start)

	case isPatLiteralStart(tok):
		lit := p.parseExpr(precUnary)
		return p.maybeRangePat(start, &ast.Pat{Span: start, Kind: ast.PatValue, Value: lit})

	case tok.Kind == token.Ident || tok.Kind == token.KwSelf || tok.Kind == token.KwCrate || tok.Kind == token.KwSuper || (tok.Kind == token.Punct && tok.Text == "::"):
		return p.parsePathOrBindingPat(start)

	default:
		p.fail(tok.Span, "expected pattern, found %v", describe(tok))
		return nil
	}
}

func isPatLiteralStart(tok token.Token) bool {
	switch tok.Kind {
	case token.Integer, token.Float, token.String, token.ByteString, token.Char, token.Byte, token.KwTrue, token.KwFalse:
		return true
	}
	return tok.Kind == token.Punct && tok.Text == "-"
}

func (p *Parser) parseTuplePat(start token.Span) *ast.Pat {
	p.expectPunct("(")
	if _, ok := p.s.GetPunctIf(")"); ok {
		return &ast.Pat{Span: start, Kind: ast.PatTuple}
	}
	var elems []ast.Pat
	for {
		elems = append(elems, *p.parsePat(true))
		if _, ok := p.s.GetPunctIf(","); !ok {
			break
		}
		if save := p.s.Peek(); save.Kind == token.Punct && save.Text == ")" {
			break
		}
	}
	p.expectPunct(")")
	if len(elems) == 1 {
		return &elems[0]
	}
	return &ast.Pat{Span: start, Kind: ast.PatTuple, Elems: elems}
}

func (p *Parser) parseSlicePat(start token.Span) *ast.Pat {
	p.expectPunct("[")
	var leading []ast.Pat
	var mid *token.Token
	var trailing []ast.Pat
	sawRest := false
	for {
		if _, ok := p.s.GetPunctIf("]"); ok {
			break
		}
		if _, ok := p.s.GetPunctIf(".."); ok {
			sawRest = true
			if t, ok := p.s.GetTokenIf(token.Ident); ok {
				mid = &t
			}
		} else if sawRest {
			trailing = append(trailing, *p.parsePat(true))
		} else {
			leading = append(leading, *p.parsePat(true))
		}
		if _, ok := p.s.GetPunctIf(","); !ok {
			p.expectPunct("]")
			break
		}
	}
	return &ast.Pat{Span: start, Kind: ast.PatSlice, Leading: leading, MidBinding: mid, Trailing: trailing}
}

func (p *Parser) maybeRangePat(start token.Span, lo *ast.Pat) *ast.Pat {
	halfOpen := false
	var hasRange bool
	if _, ok := p.s.GetPunctIf("..="); ok {
		hasRange = true
	} else if _, ok := p.s.GetPunctIf("..."); ok {
		hasRange = true
	} else if _, ok := p.s.GetPunctIf(".."); ok {
		hasRange = true
		halfOpen = true
	}
	if !hasRange {
		return lo
	}
	hi := p.parsePatReal(p.s.Peek().Span)
	return &ast.Pat{Span: start, Kind: ast.PatRange, Lo: lo, Hi: hi, RangeHalfOp: halfOpen}
}

// parsePathOrBindingPat handles the ambiguity between a bare binding name
// ("MaybeBind" — spec.md §4.3), a named-const value pattern, and
// tuple-struct/struct patterns, all of which start with a path.
func (p *Parser) parsePathOrBindingPat(start token.Span) *ast.Pat {
	path := p.parsePath(PathModeNoGenerics)

	if _, ok := p.s.GetPunctIf("("); ok {
		var elems []ast.Pat
		for {
			if _, ok := p.s.GetPunctIf(")"); ok {
				break
			}
			elems = append(elems, *p.parsePat(true))
			if _, ok := p.s.GetPunctIf(","); !ok {
				p.expectPunct(")")
				break
			}
		}
		return &ast.Pat{Span: start, Kind: ast.PatTupleStruct, Path: path, Elems: elems}
	}

	if _, ok := p.s.GetPunctIf("{"); ok {
		var fields []ast.PatField
		rest := false
		for {
			if _, ok := p.s.GetPunctIf("}"); ok {
				break
			}
			if _, ok := p.s.GetPunctIf(".."); ok {
				rest = true
				p.expectPunct("}")
				break
			}
			name := p.expectKind(token.Ident, "field name")
			var fpat *ast.Pat
			if _, ok := p.s.GetPunctIf(":"); ok {
				fpat = p.parsePat(true)
			} else {
				fpat = &ast.Pat{Span: name.Span, Kind: ast.PatBinding, Name: name}
			}
			fields = append(fields, ast.PatField{Name: name, Pat: *fpat})
			if _, ok := p.s.GetPunctIf(","); !ok {
				p.expectPunct("}")
				break
			}
		}
		return &ast.Pat{Span: start, Kind: ast.PatStruct, Path: path, Fields: fields, HasRest: rest}
	}

	// A single unqualified identifier with nothing pattern-specific
	// following is a binding (spec.md's "MaybeBind"); a qualified path
	// (or one later resolved to a unit/const) is a value pattern.
	if len(path.Components) == 1 && path.Kind == ast.PathRelative {
		name := path.Components[0].Name
		pat := &ast.Pat{Span: start, Kind: ast.PatBinding, Name: name}
		if _, ok := p.s.GetPunctIf("@"); ok {
			pat.Sub = p.parsePatWrapper()
		}
		return p.maybeRangePat(start, pat)
	}

	pat := &ast.Pat{Span: start, Kind: ast.PatValue, Path: path}
	return p.maybeRangePat(start, pat)
}
