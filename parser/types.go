package parser

import (
	"github.com/rustlite/rustlite/ast"
	"github.com/rustlite/rustlite/token"
)

var primitiveNames = map[string]bool{
	"bool": true, "char": true, "str": true,
	"i8": true, "i16": true, "i32": true, "i64": true, "i128": true, "isize": true,
	"u8": true, "u16": true, "u32": true, "u64": true, "u128": true, "usize": true,
	"f32": true, "f64": true,
}

// ParseType is the `ty` fragment sub-grammar.
func (p *Parser) ParseType(mode PathMode) (ty *ast.Type, err error) {
	defer p.recover(&err)
	return p.parseType(mode), nil
}

func (p *Parser) parseType(mode PathMode) *ast.Type {
	start := p.s.Peek().Span
	tok := p.s.Peek()

	switch {
	case tok.Kind == token.Punct && tok.Text == "!":
		p.s.Next()
		return &ast.Type{Span: start, Kind: ast.TypeDiverging}

	case tok.Kind == token.Punct && tok.Text == "(":
		p.s.Next()
		if _, ok := p.s.GetPunctIf(")"); ok {
			return &ast.Type{Span: start, Kind: ast.TypeUnit}
		}
		var elems []ast.Type
		elems = append(elems, *p.parseType(mode))
		isTuple := false
		for {
			if _, ok := p.s.GetPunctIf(","); ok {
				isTuple = true
				if _, ok := p.s.GetPunctIf(")"); ok {
					break
				}
				elems = append(elems, *p.parseType(mode))
				continue
			}
			break
		}
		p.expectPunct(")")
		if !isTuple {
			return &elems[0]
		}
		return &ast.Type{Span: start, Kind: ast.TypeTuple, Elems: elems}

	case tok.Kind == token.Punct && tok.Text == "[":
		p.s.Next()
		elem := p.parseType(mode)
		if _, ok := p.s.GetPunctIf(";"); ok {
			size := p.parseExpr(precAssign)
			p.expectPunct("]")
			return &ast.Type{Span: start, Kind: ast.TypeArray, Elem: elem, Size: size}
		}
		p.expectPunct("]")
		return &ast.Type{Span: start, Kind: ast.TypeSlice, Elem: elem}

	case tok.Kind == token.Punct && (tok.Text == "&"):
		p.s.Next()
		var lifetime token.Token
		if l, ok := p.s.GetTokenIf(token.Lifetime); ok {
			lifetime = l
		}
		kind := ast.TypeRefShared
		if _, ok := p.s.GetTokenIf(token.KwMut); ok {
			kind = ast.TypeRefUnique
		}
		elem := p.parseType(mode)
		return &ast.Type{Span: start, Kind: kind, Elem: elem, Lifetime: lifetime}

	case tok.Kind == token.Punct && tok.Text == "*":
		p.s.Next()
		kind := ast.TypePtrConst
		if _, ok := p.s.GetTokenIf(token.KwMut); ok {
			kind = ast.TypePtrMut
		} else {
			_, _ = p.s.GetTokenIf(token.KwConst)
		}
		elem := p.parseType(mode)
		return &ast.Type{Span: start, Kind: kind, Elem: elem}

	case tok.Kind == token.KwFn:
		p.s.Next()
		p.expectPunct("(")
		var params []ast.Type
		for {
			if _, ok := p.s.GetPunctIf(")"); ok {
				break
			}
			params = append(params, *p.parseType(mode))
			if _, ok := p.s.GetPunctIf(","); !ok {
				p.expectPunct(")")
				break
			}
		}
		var ret *ast.Type
		if _, ok := p.s.GetPunctIf("->"); ok {
			ret = p.parseType(mode)
		}
		return &ast.Type{Span: start, Kind: ast.TypeFn, Elems: params, Elem: ret}

	case tok.Kind == token.KwDyn:
		p.s.Next()
		path := p.parsePath(PathModeType)
		return &ast.Type{Span: start, Kind: ast.TypeTraitObject, Path: path}

	case tok.Kind == token.Ident && primitiveNames[tok.Text]:
		p.s.Next()
		return &ast.Type{Span: start, Kind: ast.TypePrimitive, Primitive: tok.Text}

	default:
		path := p.parsePath(PathModeType)
		return &ast.Type{Span: start, Kind: ast.TypePath, Path: path}
	}
}
