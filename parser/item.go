package parser

import (
	"github.com/rustlite/rustlite/ast"
	"github.com/rustlite/rustlite/token"
)

// ParseFile parses a whole source file: an optional leading run of inner
// attributes followed by a sequence of items, for the top-level entry
// point (spec.md §4.3's grammar root).
func (p *Parser) ParseFile() (file *ast.File, err error) {
	defer p.recover(&err)
	start := p.s.Peek().Span
	inner := p.parseInnerAttrs()
	var items []ast.Item
	for !p.s.Peek().IsEOF() {
		items = append(items, *p.parseItem())
	}
	return &ast.File{Span: token.Span{Start: start.Start, End: p.lastSpanEnd(start)}, Attrs: inner, Items: items}, nil
}

func (p *Parser) parseOuterAttrs() []ast.Attr {
	var attrs []ast.Attr
	for {
		save := p.s.Clone()
		hashTok, ok := save.GetPunctIf("#")
		if !ok {
			return attrs
		}
		if _, ok := save.GetPunctIf("!"); ok {
			return attrs // inner attribute; not ours to consume here
		}
		p.s.Adopt(save)
		p.expectPunct("[")
		attr, err := p.ParseMeta()
		if err != nil {
			panic(fatal{err: err})
		}
		p.expectPunct("]")
		attr.Span = token.Span{Start: hashTok.Span.Start, End: p.lastSpanEnd(hashTok.Span)}
		attrs = append(attrs, *attr)
	}
}

func (p *Parser) parseInnerAttrs() []ast.Attr {
	var attrs []ast.Attr
	for {
		save := p.s.Clone()
		hashTok, ok := save.GetPunctIf("#")
		if !ok {
			return attrs
		}
		if _, ok := save.GetPunctIf("!"); !ok {
			return attrs
		}
		p.s.Adopt(save)
		p.expectPunct("[")
		attr, err := p.ParseMeta()
		if err != nil {
			panic(fatal{err: err})
		}
		p.expectPunct("]")
		attr.Inner = true
		attr.Span = token.Span{Start: hashTok.Span.Start, End: p.lastSpanEnd(hashTok.Span)}
		attrs = append(attrs, *attr)
	}
}

// parseVis parses an optional "pub", "pub(crate)", "pub(super)",
// "pub(in path)" or "pub(path)" visibility prefix.
func (p *Parser) parseVis() (ast.Visibility, *ast.Path) {
	if _, ok := p.s.GetTokenIf(token.KwPub); !ok {
		return ast.VisPrivate, nil
	}
	if _, ok := p.s.GetPunctIf("("); !ok {
		return ast.VisPub, nil
	}
	_, _ = p.s.GetTokenIf(token.KwIn)
	path := p.parsePath(PathModeNoGenerics)
	p.expectPunct(")")
	return ast.VisPubRestricted, path
}

// skipOptionalGenericParams consumes a "<...>" generic parameter list
// without interpreting it — generics and borrow checking are out of scope
// (spec.md's Non-goals), but the parser still has to skip the syntax to
// reach the rest of the item.
func (p *Parser) skipOptionalGenericParams() {
	tok := p.s.Peek()
	if !(tok.Kind == token.Punct && (tok.Text == "<" || tok.Text == "<<")) {
		return
	}
	p.consumeOpenAngle()
	depth := 1
	for depth > 0 {
		t := p.s.Peek()
		if t.IsEOF() {
			p.fail(t.Span, "unterminated generic parameter list")
		}
		if p.peekOpensAngle(p.s) {
			p.consumeOpenAngle()
			depth++
			continue
		}
		if p.peekClosesAngle(p.s) {
			p.consumeCloseAngle()
			depth--
			continue
		}
		p.s.Next()
	}
}

// skipOptionalWhereClause consumes a "where ..." clause up to (but not
// including) the following "{" or ";".
func (p *Parser) skipOptionalWhereClause() {
	if _, ok := p.s.GetTokenIf(token.KwWhere); !ok {
		return
	}
	for {
		tok := p.s.Peek()
		if tok.IsEOF() || (tok.Kind == token.Punct && (tok.Text == "{" || tok.Text == ";")) {
			return
		}
		p.s.Next()
	}
}

func (p *Parser) parseItem() *ast.Item {
	start := p.s.Peek().Span
	attrs := p.parseOuterAttrs()
	vis, visPath := p.parseVis()

	isUnsafe := false
	if p.s.Peek().Kind == token.KwUnsafe && p.unsafeIntroducesItem() {
		p.s.Next()
		isUnsafe = true
	}

	tok := p.s.Peek()
	switch {
	case tok.Kind == token.KwConst && p.s.Lookahead(1).Kind == token.KwFn:
		p.s.Next() // "const" qualifier, not modeled on ast.Item
		return p.parseFnItem(start, attrs, vis, visPath, isUnsafe)
	case tok.Kind == token.KwFn:
		return p.parseFnItem(start, attrs, vis, visPath, isUnsafe)
	case tok.Kind == token.KwStatic:
		return p.parseStaticItem(start, attrs, vis, visPath)
	case tok.Kind == token.KwConst:
		return p.parseConstItem(start, attrs, vis, visPath)
	case tok.Kind == token.KwStruct:
		return p.parseStructItem(start, attrs, vis, visPath)
	case tok.Kind == token.KwEnum:
		return p.parseEnumItem(start, attrs, vis, visPath)
	case tok.Kind == token.KwTrait:
		return p.parseTraitItem(start, attrs, vis, visPath, isUnsafe)
	case tok.Kind == token.KwImpl:
		return p.parseImplItem(start, attrs, isUnsafe)
	case tok.Kind == token.KwType:
		return p.parseTypeAliasItem(start, attrs, vis, visPath)
	case tok.Kind == token.KwUse:
		return p.parseUseItem(start, attrs, vis, visPath)
	case tok.Kind == token.KwExtern:
		return p.parseExternItem(start, attrs, vis, visPath)
	case tok.Kind == token.KwMod:
		return p.parseModItem(start, attrs, vis, visPath)
	case tok.Kind == token.Ident && tok.Text == "macro_rules":
		return p.parseMacroRulesItem(start, attrs)
	case tok.Kind == token.Ident || tok.Kind == token.KwSelf || tok.Kind == token.KwCrate ||
		tok.Kind == token.KwSuper || (tok.Kind == token.Punct && tok.Text == "::"):
		return p.parseMacroCallItem(start, attrs)
	default:
		p.fail(tok.Span, "expected item, found %v", describe(tok))
		return nil
	}
}

func (p *Parser) tryParseSelfParam() (ast.FnParam, bool) {
	save := p.s.Clone()
	isRef := false
	if _, ok := save.GetPunctIf("&"); ok {
		isRef = true
		_, _ = save.GetTokenIf(token.Lifetime)
	}
	isMut := false
	if _, ok := save.GetTokenIf(token.KwMut); ok {
		isMut = true
	}
	selfTok, ok := save.GetTokenIf(token.KwSelf)
	if !ok {
		return ast.FnParam{}, false
	}
	p.s.Adopt(save)
	return ast.FnParam{Pat: ast.Pat{Span: selfTok.Span, Kind: ast.PatBinding, Name: selfTok, Ref: isRef, Mut: isMut}}, true
}

func (p *Parser) parseFnItem(start token.Span, attrs []ast.Attr, vis ast.Visibility, visPath *ast.Path, isUnsafe bool) *ast.Item {
	p.expectKind(token.KwFn, "'fn'")
	name := p.expectKind(token.Ident, "function name")
	p.skipOptionalGenericParams()
	p.expectPunct("(")

	var params []ast.FnParam
	for {
		if _, ok := p.s.GetPunctIf(")"); ok {
			break
		}
		if len(params) == 0 {
			if selfParam, ok := p.tryParseSelfParam(); ok {
				params = append(params, selfParam)
				if _, ok := p.s.GetPunctIf(","); !ok {
					p.expectPunct(")")
					break
				}
				continue
			}
		}
		pat := *p.parsePatWrapper()
		p.expectPunct(":")
		ty := *p.parseType(PathModeType)
		params = append(params, ast.FnParam{Pat: pat, Ty: ty})
		if _, ok := p.s.GetPunctIf(","); !ok {
			p.expectPunct(")")
			break
		}
	}

	var ret *ast.Type
	if _, ok := p.s.GetPunctIf("->"); ok {
		ret = p.parseType(PathModeType)
	}
	p.skipOptionalWhereClause()

	var body *ast.Expr
	if _, ok := p.s.GetPunctIf(";"); !ok {
		body = p.parseBlockExpr(p.s.Peek().Span, false)
	}
	return &ast.Item{
		Span: start, Kind: ast.ItemFn, Vis: vis, VisPath: visPath, Attrs: attrs, Name: name,
		Params: params, RetTy: ret, FnBody: body, IsUnsafe: isUnsafe,
	}
}

func (p *Parser) parseStaticItem(start token.Span, attrs []ast.Attr, vis ast.Visibility, visPath *ast.Path) *ast.Item {
	p.expectKind(token.KwStatic, "'static'")
	isMut := false
	if _, ok := p.s.GetTokenIf(token.KwMut); ok {
		isMut = true
	}
	name := p.expectKind(token.Ident, "static name")
	p.expectPunct(":")
	ty := p.parseType(PathModeType)
	p.expectPunct("=")
	init := p.parseExpr(precAssign)
	p.expectPunct(";")
	return &ast.Item{Span: start, Kind: ast.ItemStatic, Vis: vis, VisPath: visPath, Attrs: attrs, Name: name, ConstTy: ty, ConstInit: init, IsMut: isMut}
}

func (p *Parser) parseConstItem(start token.Span, attrs []ast.Attr, vis ast.Visibility, visPath *ast.Path) *ast.Item {
	p.expectKind(token.KwConst, "'const'")
	name := p.expectKind(token.Ident, "const name")
	p.expectPunct(":")
	ty := p.parseType(PathModeType)
	p.expectPunct("=")
	init := p.parseExpr(precAssign)
	p.expectPunct(";")
	return &ast.Item{Span: start, Kind: ast.ItemConst, Vis: vis, VisPath: visPath, Attrs: attrs, Name: name, ConstTy: ty, ConstInit: init}
}

func (p *Parser) parseStructItem(start token.Span, attrs []ast.Attr, vis ast.Visibility, visPath *ast.Path) *ast.Item {
	p.expectKind(token.KwStruct, "'struct'")
	name := p.expectKind(token.Ident, "struct name")
	p.skipOptionalGenericParams()

	if _, ok := p.s.GetPunctIf(";"); ok {
		return &ast.Item{Span: start, Kind: ast.ItemStruct, Vis: vis, VisPath: visPath, Attrs: attrs, Name: name, StructKind: ast.StructUnit}
	}

	if _, ok := p.s.GetPunctIf("("); ok {
		var fields []ast.Field
		for {
			if _, ok := p.s.GetPunctIf(")"); ok {
				break
			}
			p.parseOuterAttrs()
			fvis, _ := p.parseVis()
			ty := *p.parseType(PathModeType)
			fields = append(fields, ast.Field{Ty: ty, Pub: fvis == ast.VisPub})
			if _, ok := p.s.GetPunctIf(","); !ok {
				p.expectPunct(")")
				break
			}
		}
		p.skipOptionalWhereClause()
		p.expectPunct(";")
		return &ast.Item{Span: start, Kind: ast.ItemStruct, Vis: vis, VisPath: visPath, Attrs: attrs, Name: name, StructKind: ast.StructTuple, Fields: fields}
	}

	p.skipOptionalWhereClause()
	p.expectPunct("{")
	var fields []ast.Field
	for {
		if _, ok := p.s.GetPunctIf("}"); ok {
			break
		}
		p.parseOuterAttrs()
		fvis, _ := p.parseVis()
		fname := p.expectKind(token.Ident, "field name")
		p.expectPunct(":")
		ty := *p.parseType(PathModeType)
		fields = append(fields, ast.Field{Name: fname, Ty: ty, Pub: fvis == ast.VisPub})
		if _, ok := p.s.GetPunctIf(","); !ok {
			p.expectPunct("}")
			break
		}
	}
	return &ast.Item{Span: start, Kind: ast.ItemStruct, Vis: vis, VisPath: visPath, Attrs: attrs, Name: name, StructKind: ast.StructNamed, Fields: fields}
}

func (p *Parser) parseEnumItem(start token.Span, attrs []ast.Attr, vis ast.Visibility, visPath *ast.Path) *ast.Item {
	p.expectKind(token.KwEnum, "'enum'")
	name := p.expectKind(token.Ident, "enum name")
	p.skipOptionalGenericParams()
	p.skipOptionalWhereClause()
	p.expectPunct("{")

	var variants []ast.Variant
	for {
		if _, ok := p.s.GetPunctIf("}"); ok {
			break
		}
		p.parseOuterAttrs()
		vname := p.expectKind(token.Ident, "variant name")
		v := ast.Variant{Name: vname}

		if _, ok := p.s.GetPunctIf("("); ok {
			v.StructKind = ast.StructTuple
			for {
				if _, ok := p.s.GetPunctIf(")"); ok {
					break
				}
				ty := *p.parseType(PathModeType)
				v.Fields = append(v.Fields, ast.Field{Ty: ty})
				if _, ok := p.s.GetPunctIf(","); !ok {
					p.expectPunct(")")
					break
				}
			}
		} else if _, ok := p.s.GetPunctIf("{"); ok {
			v.StructKind = ast.StructNamed
			for {
				if _, ok := p.s.GetPunctIf("}"); ok {
					break
				}
				fname := p.expectKind(token.Ident, "field name")
				p.expectPunct(":")
				ty := *p.parseType(PathModeType)
				v.Fields = append(v.Fields, ast.Field{Name: fname, Ty: ty})
				if _, ok := p.s.GetPunctIf(","); !ok {
					p.expectPunct("}")
					break
				}
			}
		} else {
			v.StructKind = ast.StructUnit
		}

		if _, ok := p.s.GetPunctIf("="); ok {
			v.Discriminant = p.parseExpr(precAssign)
		}
		variants = append(variants, v)
		if _, ok := p.s.GetPunctIf(","); !ok {
			p.expectPunct("}")
			break
		}
	}
	return &ast.Item{Span: start, Kind: ast.ItemEnum, Vis: vis, VisPath: visPath, Attrs: attrs, Name: name, Variants: variants}
}

func (p *Parser) parseTraitItem(start token.Span, attrs []ast.Attr, vis ast.Visibility, visPath *ast.Path, isUnsafe bool) *ast.Item {
	p.expectKind(token.KwTrait, "'trait'")
	name := p.expectKind(token.Ident, "trait name")
	p.skipOptionalGenericParams()
	if _, ok := p.s.GetPunctIf(":"); ok {
		for {
			t := p.s.Peek()
			if t.IsEOF() || (t.Kind == token.Punct && t.Text == "{") || t.Kind == token.KwWhere {
				break
			}
			p.s.Next()
		}
	}
	p.skipOptionalWhereClause()
	p.expectPunct("{")
	var items []ast.Item
	for {
		if _, ok := p.s.GetPunctIf("}"); ok {
			break
		}
		items = append(items, *p.parseItem())
	}
	return &ast.Item{Span: start, Kind: ast.ItemTrait, Vis: vis, VisPath: visPath, Attrs: attrs, Name: name, Items: items, IsUnsafe: isUnsafe}
}

func (p *Parser) parseImplItem(start token.Span, attrs []ast.Attr, isUnsafe bool) *ast.Item {
	p.expectKind(token.KwImpl, "'impl'")
	p.skipOptionalGenericParams()
	firstTy := p.parseType(PathModeType)

	var traitPath *ast.Path
	var selfTy *ast.Type
	if _, ok := p.s.GetTokenIf(token.KwFor); ok {
		if firstTy.Kind == ast.TypePath {
			traitPath = firstTy.Path
		}
		selfTy = p.parseType(PathModeType)
	} else {
		selfTy = firstTy
	}
	p.skipOptionalWhereClause()
	p.expectPunct("{")
	var items []ast.Item
	for {
		if _, ok := p.s.GetPunctIf("}"); ok {
			break
		}
		items = append(items, *p.parseItem())
	}
	return &ast.Item{Span: start, Kind: ast.ItemImpl, Attrs: attrs, TraitPath: traitPath, SelfTy: selfTy, Items: items, IsUnsafe: isUnsafe}
}

func (p *Parser) parseTypeAliasItem(start token.Span, attrs []ast.Attr, vis ast.Visibility, visPath *ast.Path) *ast.Item {
	p.expectKind(token.KwType, "'type'")
	name := p.expectKind(token.Ident, "type alias name")
	p.skipOptionalGenericParams()
	p.skipOptionalWhereClause()
	p.expectPunct("=")
	ty := p.parseType(PathModeType)
	p.skipOptionalWhereClause()
	p.expectPunct(";")
	return &ast.Item{Span: start, Kind: ast.ItemTypeAlias, Vis: vis, VisPath: visPath, Attrs: attrs, Name: name, AliasTy: ty}
}

func (p *Parser) parseUseItem(start token.Span, attrs []ast.Attr, vis ast.Visibility, visPath *ast.Path) *ast.Item {
	p.expectKind(token.KwUse, "'use'")
	path := p.parsePath(PathModeNoGenerics)
	var asName *token.Token
	if _, ok := p.s.GetTokenIf(token.KwAs); ok {
		n := p.expectKind(token.Ident, "alias")
		asName = &n
	}
	p.expectPunct(";")
	return &ast.Item{Span: start, Kind: ast.ItemUse, Vis: vis, VisPath: visPath, Attrs: attrs, UsePath: path, UseAs: asName}
}

// parseExternItem handles both "extern crate foo;" and "extern \"ABI\" {
// ... }" blocks. The latter's declarations carry no body; actual FFI
// dispatch is package interp/ffi's concern, not this AST's — here they
// are folded into an ItemMod so downstream passes can still walk them.
func (p *Parser) parseExternItem(start token.Span, attrs []ast.Attr, vis ast.Visibility, visPath *ast.Path) *ast.Item {
	p.expectKind(token.KwExtern, "'extern'")
	if _, ok := p.s.GetTokenIf(token.KwCrate); ok {
		name := p.expectKind(token.Ident, "crate name")
		var asName *token.Token
		if _, ok := p.s.GetTokenIf(token.KwAs); ok {
			n := p.expectKind(token.Ident, "alias")
			asName = &n
		}
		p.expectPunct(";")
		return &ast.Item{Span: start, Kind: ast.ItemExternCrate, Vis: vis, VisPath: visPath, Attrs: attrs, CrateName: name, CrateAs: asName}
	}
	_, _ = p.s.GetTokenIf(token.String) // optional ABI string literal
	p.expectPunct("{")
	var items []ast.Item
	for {
		if _, ok := p.s.GetPunctIf("}"); ok {
			break
		}
		items = append(items, *p.parseItem())
	}
	return &ast.Item{Span: start, Kind: ast.ItemMod, Vis: vis, VisPath: visPath, Attrs: attrs, ModItems: items}
}

func (p *Parser) parseModItem(start token.Span, attrs []ast.Attr, vis ast.Visibility, visPath *ast.Path) *ast.Item {
	p.expectKind(token.KwMod, "'mod'")
	name := p.expectKind(token.Ident, "module name")
	if _, ok := p.s.GetPunctIf(";"); ok {
		return &ast.Item{Span: start, Kind: ast.ItemMod, Vis: vis, VisPath: visPath, Attrs: attrs, Name: name}
	}
	p.expectPunct("{")
	var items []ast.Item
	for {
		if _, ok := p.s.GetPunctIf("}"); ok {
			break
		}
		items = append(items, *p.parseItem())
	}
	return &ast.Item{Span: start, Kind: ast.ItemMod, Vis: vis, VisPath: visPath, Attrs: attrs, Name: name, ModItems: items}
}

// parseMacroRulesItem captures a macro_rules! definition's rules as raw
// token trees — package macro compiles them later (spec.md §4.4); the
// parser's job ends at "a balanced (pattern) => {body};" sequence.
func (p *Parser) parseMacroRulesItem(start token.Span, attrs []ast.Attr) *ast.Item {
	p.expectKind(token.Ident, "'macro_rules'")
	p.expectPunct("!")
	name := p.expectKind(token.Ident, "macro name")
	p.expectPunct("{")
	var rules []ast.MacroRule
	for {
		if _, ok := p.s.GetPunctIf("}"); ok {
			break
		}
		pattern, err := p.ParseTT()
		if err != nil {
			panic(fatal{err: err})
		}
		p.expectPunct("=>")
		body, err := p.ParseTT()
		if err != nil {
			panic(fatal{err: err})
		}
		rules = append(rules, ast.MacroRule{Pattern: pattern, Body: body})
		if _, ok := p.s.GetPunctIf(";"); !ok {
			p.expectPunct("}")
			break
		}
	}
	return &ast.Item{Span: start, Kind: ast.ItemMacroDef, Attrs: attrs, Name: name, MacroRules: rules}
}

func (p *Parser) parseMacroCallItem(start token.Span, attrs []ast.Attr) *ast.Item {
	path := p.parsePath(PathModeNoGenerics)
	p.expectPunct("!")
	args := p.parseMacroArgTT()
	_, _ = p.s.GetPunctIf(";")
	return &ast.Item{Span: start, Kind: ast.ItemMacroCall, Attrs: attrs, MacroCallPath: path, MacroCallArgs: args}
}
