package module

import (
	"fmt"
)

// parser turns one IR file's token stream into [Function]/[DataType]
// definitions, registering them (and any forward-referenced types) in a
// shared [ModuleTree]. One parser exists per file; multiple parsers run
// concurrently across a crate DAG (see registry.go), touching the tree
// only through its lock-guarded methods.
type parser struct {
	lex  *irLexer
	tree *ModuleTree
	// crateDeps collects the paths named by this file's own `crate "...";`
	// directives, for the registry's crate-DAG bookkeeping.
	crateDeps []string
}

func newParser(file string, data []byte, tree *ModuleTree) *parser {
	return &parser{lex: newIRLexer(file, data), tree: tree}
}

// parseAll consumes every top-level item in the file.
func (p *parser) parseAll() error {
	for {
		more, err := p.parseOne()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

func (p *parser) parseOne() (bool, error) {
	t, err := p.lex.next()
	if err != nil {
		return false, err
	}
	if t.kind == tokEOF {
		return false, nil
	}

	switch {
	case t.kind == tokIdent && t.text == "crate":
		p.lex.consume()
		if err := p.lex.checkClass(tokString, "string"); err != nil {
			return false, err
		}
		dep, _ := p.lex.consume()
		if err := p.lex.checkConsume(";"); err != nil {
			return false, err
		}
		p.crateDeps = append(p.crateDeps, dep.text)
		return true, nil

	case t.kind == tokIdent && t.text == "fn":
		p.lex.consume()
		path, err := p.parsePath()
		if err != nil {
			return false, err
		}
		if err := p.lex.checkConsume("("); err != nil {
			return false, err
		}
		var args []*Ty
		for !p.lex.is(")") {
			ty, err := p.parseType()
			if err != nil {
				return false, err
			}
			args = append(args, ty)
			if err := p.lex.checkConsume(","); err != nil {
				return false, err
			}
		}
		p.lex.consume()
		retTy := &Ty{Kind: TyUnit}
		if ok, err := p.lex.consumeIf(":"); err != nil {
			return false, err
		} else if ok {
			retTy, err = p.parseType()
			if err != nil {
				return false, err
			}
		}
		fn, err := p.parseBody(args, retTy)
		if err != nil {
			return false, err
		}
		p.tree.defineFunction(path.Key(), fn)
		return true, nil

	case t.kind == tokIdent && t.text == "static":
		// Out of core scope (spec.md §4.5: "static <path> = <value>; --
		// (out of core scope -- spec only needs function+type loading)").
		// Still consumed so a file mixing statics with functions/types
		// loads cleanly instead of aborting the whole crate DAG.
		p.lex.consume()
		if _, err := p.parsePath(); err != nil {
			return false, err
		}
		if err := p.lex.checkConsume("="); err != nil {
			return false, err
		}
		if err := p.skipStaticValue(); err != nil {
			return false, err
		}
		if err := p.lex.checkConsume(";"); err != nil {
			return false, err
		}
		return true, nil

	case t.kind == tokIdent && t.text == "type":
		p.lex.consume()
		var path *Path
		if ok, err := p.lex.consumeIf("("); err != nil {
			return false, err
		} else if ok {
			path, err = p.parseTuple()
			if err != nil {
				return false, err
			}
		} else {
			path, err = p.parseGenericPath()
			if err != nil {
				return false, err
			}
		}
		dt, err := p.parseDataType()
		if err != nil {
			return false, err
		}
		p.tree.defineType(p.lex.file, path.Key(), dt)
		return true, nil

	default:
		return false, p.lex.errorf("unexpected token at root: %q", t.text)
	}
}

// skipStaticValue consumes a static's initializer value without
// interpreting it: a bare literal, or a braced/bracketed aggregate of the
// same. static loading is out of core scope; this just keeps the file's
// remaining items parseable.
func (p *parser) skipStaticValue() error {
	depth := 0
	for {
		t, err := p.lex.next()
		if err != nil {
			return err
		}
		if t.kind == tokEOF {
			return p.lex.errorf("unexpected EOF in static initializer")
		}
		if depth == 0 && (t.text == ";") {
			return nil
		}
		switch t.text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
		}
		p.lex.consume()
	}
}

func (p *parser) parseDataType() (*DataType, error) {
	dt := &DataType{}
	if err := p.lex.checkConsume("{"); err != nil {
		return nil, err
	}
	if err := p.lex.checkConsume("SIZE"); err != nil {
		return nil, err
	}
	sz, err := p.expectInteger()
	if err != nil {
		return nil, err
	}
	dt.Size = sz
	if err := p.lex.checkConsume(","); err != nil {
		return nil, err
	}
	if err := p.lex.checkConsume("ALIGN"); err != nil {
		return nil, err
	}
	align, err := p.expectInteger()
	if err != nil {
		return nil, err
	}
	if align == 0 {
		return nil, p.lex.errorf("alignment of zero is invalid")
	}
	dt.Alignment = align
	if err := p.lex.checkConsume(";"); err != nil {
		return nil, err
	}

	// Fields: "ofs = ty;"
	for p.lex.isClass(tokInteger) {
		ofs, _ := p.expectInteger()
		if err := p.lex.checkConsume("="); err != nil {
			return nil, err
		}
		ty, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if err := p.lex.checkConsume(";"); err != nil {
			return nil, err
		}
		dt.Fields = append(dt.Fields, FieldDef{Offset: ofs, Type: ty})
	}

	// Variants: "[base, idx...] = "tag-bytes";"
	for p.lex.is("[") {
		p.lex.consume()
		base, err := p.expectInteger()
		if err != nil {
			return nil, err
		}
		path := []uint64{base}
		for p.lex.is(",") {
			p.lex.consume()
			idx, err := p.expectInteger()
			if err != nil {
				return nil, err
			}
			path = append(path, idx)
		}
		if err := p.lex.checkConsume("]"); err != nil {
			return nil, err
		}
		if err := p.lex.checkConsume("="); err != nil {
			return nil, err
		}
		if err := p.lex.checkClass(tokString, "string"); err != nil {
			return nil, err
		}
		tagTok, _ := p.lex.consume()
		var tag uint64
		for i := 0; i < len(tagTok.text) && i < 8; i++ {
			tag |= uint64(tagTok.text[i]) << (8 * i)
		}
		if err := p.lex.checkConsume(";"); err != nil {
			return nil, err
		}
		dt.Variants = append(dt.Variants, Variant{TagPath: path, Tag: tag})
	}

	if err := p.lex.checkConsume("}"); err != nil {
		return nil, err
	}
	return dt, nil
}

func (p *parser) expectInteger() (uint64, error) {
	if err := p.lex.checkClass(tokInteger, "integer"); err != nil {
		return 0, err
	}
	t, err := p.lex.consume()
	if err != nil {
		return 0, err
	}
	return t.integer(), nil
}

// ---- Paths and types -------------------------------------------------

func (p *parser) parsePath() (*Path, error) {
	if ok, err := p.lex.consumeIf("<"); err != nil {
		return nil, err
	} else if ok {
		qty, err := p.parseType()
		if err != nil {
			return nil, err
		}
		var trait *Path
		if ok, err := p.lex.consumeIf("as"); err != nil {
			return nil, err
		} else if ok {
			trait, err = p.parseGenericPath()
			if err != nil {
				return nil, err
			}
		}
		if err := p.lex.checkConsume(">"); err != nil {
			return nil, err
		}
		if err := p.lex.checkConsume("::"); err != nil {
			return nil, err
		}
		if err := p.lex.checkClass(tokIdent, "identifier"); err != nil {
			return nil, err
		}
		item, _ := p.lex.consume()
		args, err := p.parsePathParams()
		if err != nil {
			return nil, err
		}
		return &Path{Kind: PathUFCS, Qualified: qty, Trait: trait, Item: item.text, ItemArgs: args}, nil
	}
	return p.parseGenericPath()
}

func (p *parser) parsePathParams() ([]*Ty, error) {
	var args []*Ty
	if ok, err := p.lex.consumeIf("<"); err != nil {
		return nil, err
	} else if ok {
		for !p.lex.is(">") {
			ty, err := p.parseType()
			if err != nil {
				return nil, err
			}
			args = append(args, ty)
			if ok, err := p.lex.consumeIf(","); err != nil {
				return nil, err
			} else if !ok {
				break
			}
		}
		if err := p.lex.checkConsume(">"); err != nil {
			return nil, err
		}
	}
	return args, nil
}

func (p *parser) parseGenericPath() (*Path, error) {
	sp, err := p.parseSimplePath()
	if err != nil {
		return nil, err
	}
	args, err := p.parsePathParams()
	if err != nil {
		return nil, err
	}
	return &Path{Kind: PathSimple, Simple: sp, Args: args}, nil
}

func (p *parser) parseSimplePath() (SimplePath, error) {
	if err := p.lex.checkConsume("::"); err != nil {
		return SimplePath{}, err
	}
	if err := p.lex.checkClass(tokString, "string"); err != nil {
		return SimplePath{}, err
	}
	crate, _ := p.lex.consume()
	if err := p.lex.checkConsume("::"); err != nil {
		return SimplePath{}, err
	}
	var segs []string
	for {
		if err := p.lex.checkClass(tokIdent, "identifier"); err != nil {
			return SimplePath{}, err
		}
		seg, _ := p.lex.consume()
		segs = append(segs, seg.text)
		if ok, err := p.lex.consumeIf("::"); err != nil {
			return SimplePath{}, err
		} else if !ok {
			break
		}
	}
	return SimplePath{Crate: crate.text, Segments: segs}, nil
}

// parseTuple parses a tuple type's element list after the opening '(' has
// already been consumed by the caller, returning a synthetic Path that
// uniquely identifies that tuple shape in the type registry (module_tree.cpp's
// Parser::parse_tuple: a GenericPath with an empty SimplePath, whose Args are
// the element types, used purely as a composite-type lookup key).
func (p *parser) parseTuple() (*Path, error) {
	var elems []*Ty
	for !p.lex.is(")") {
		ty, err := p.parseType()
		if err != nil {
			return nil, err
		}
		elems = append(elems, ty)
		if ok, err := p.lex.consumeIf(","); err != nil {
			return nil, err
		} else if !ok {
			break
		}
	}
	if err := p.lex.checkConsume(")"); err != nil {
		return nil, err
	}
	return &Path{Kind: PathSimple, Simple: SimplePath{Crate: "(tuple)"}, Args: elems}, nil
}

func (p *parser) parseCoreType() (RawType, error) {
	if err := p.lex.checkClass(tokIdent, "identifier"); err != nil {
		return RawInvalid, err
	}
	t, _ := p.lex.consume()
	if rt, ok := coreTypeNames[t.text]; ok {
		return rt, nil
	}
	return RawInvalid, p.lex.errorf("unknown core type %q", t.text)
}

var coreTypeNames = map[string]RawType{
	"u8": RawU8, "u16": RawU16, "u32": RawU32, "u64": RawU64, "u128": RawU128, "usize": RawUSize,
	"i8": RawI8, "i16": RawI16, "i32": RawI32, "i64": RawI64, "i128": RawI128, "isize": RawISize,
	"f32": RawF32, "f64": RawF64, "bool": RawBool, "char": RawChar, "str": RawStr,
}

func (p *parser) parseType() (*Ty, error) {
	if ok, err := p.lex.consumeIf("("); err != nil {
		return nil, err
	} else if ok {
		if ok, err := p.lex.consumeIf(")"); err != nil {
			return nil, err
		} else if ok {
			return &Ty{Kind: TyUnit}, nil
		}
		path, err := p.parseTuple()
		if err != nil {
			return nil, err
		}
		p.tree.typeFor(path.Key())
		return &Ty{Kind: TyNamed, Path: path}, nil
	}

	if ok, err := p.lex.consumeIf("["); err != nil {
		return nil, err
	} else if ok {
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if ok, err := p.lex.consumeIf(";"); err != nil {
			return nil, err
		} else if ok {
			size, err := p.expectInteger()
			if err != nil {
				return nil, err
			}
			if err := p.lex.checkConsume("]"); err != nil {
				return nil, err
			}
			return &Ty{Kind: TyArray, Elem: elem, Size: size}, nil
		}
		if err := p.lex.checkConsume("]"); err != nil {
			return nil, err
		}
		return &Ty{Kind: TySlice, Elem: elem}, nil
	}

	if ok, err := p.lex.consumeIf("!"); err != nil {
		return nil, err
	} else if ok {
		return &Ty{Kind: TyDiverge}, nil
	}

	if ok, err := p.lex.consumeIf("&"); err != nil {
		return nil, err
	} else if ok {
		kind := TyRefShared
		if ok, _ := p.lex.consumeIf("move"); ok {
			kind = TyRefMove
		} else if ok, _ := p.lex.consumeIf("mut"); ok {
			kind = TyRefUnique
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return &Ty{Kind: kind, Elem: elem}, nil
	}

	if ok, err := p.lex.consumeIf("*"); err != nil {
		return nil, err
	} else if ok {
		kind := TyPtrConst
		switch {
		case consumeIfOK(p, "move"), consumeIfOK(p, "mut"):
			kind = TyPtrMut
		case consumeIfOK(p, "const"):
			kind = TyPtrConst
		default:
			return nil, p.lex.errorf("expected move/mut/const after '*' in pointer type")
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return &Ty{Kind: kind, Elem: elem}, nil
	}

	if p.lex.is("::") {
		path, err := p.parseGenericPath()
		if err != nil {
			return nil, err
		}
		p.tree.typeFor(path.Key())
		return &Ty{Kind: TyNamed, Path: path}, nil
	}

	if p.lex.is("extern") || p.lex.is("fn") {
		if ok, err := p.lex.consumeIf("extern"); err != nil {
			return nil, err
		} else if ok {
			if err := p.lex.checkClass(tokString, "ABI string"); err != nil {
				return nil, err
			}
			p.lex.consume() // ABI name, not modeled further (spec's core scope)
		}
		if err := p.lex.checkConsume("fn"); err != nil {
			return nil, err
		}
		if err := p.lex.checkConsume("("); err != nil {
			return nil, err
		}
		var args []*Ty
		for !p.lex.is(")") {
			ty, err := p.parseType()
			if err != nil {
				return nil, err
			}
			args = append(args, ty)
			if ok, _ := p.lex.consumeIf(","); !ok {
				break
			}
		}
		if err := p.lex.checkConsume(")"); err != nil {
			return nil, err
		}
		if err := p.lex.checkConsume("-"); err != nil {
			return nil, err
		}
		if err := p.lex.checkConsume(">"); err != nil {
			return nil, err
		}
		ret, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return &Ty{Kind: TyFn, FnArgs: args, FnRet: ret}, nil
	}

	if ok, _ := p.lex.consumeIf("dyn"); ok {
		p.lex.consumeIf("(")
		if !p.lex.is("+") {
			if _, err := p.parseGenericPath(); err != nil {
				return nil, err
			}
		}
		for {
			ok, err := p.lex.consumeIf("+")
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			if _, err := p.parseGenericPath(); err != nil {
				return nil, err
			}
		}
		p.lex.consumeIf(")")
		return &Ty{Kind: TyPrimitive, Prim: RawTraitObject}, nil
	}

	if p.lex.isClass(tokIdent) {
		rt, err := p.parseCoreType()
		if err != nil {
			return nil, err
		}
		return &Ty{Kind: TyPrimitive, Prim: rt}, nil
	}

	t, _ := p.lex.next()
	return nil, p.lex.errorf("unexpected token in type: %q", t.text)
}

func consumeIfOK(p *parser, s string) bool {
	ok, _ := p.lex.consumeIf(s)
	return ok
}

// ---- Function bodies ---------------------------------------------------

func (p *parser) parseBody(argTys []*Ty, retTy *Ty) (*Function, error) {
	fn := &Function{ArgTypes: argTys, RetType: retTy}

	if err := p.lex.checkConsume("{"); err != nil {
		return nil, err
	}

	var dropFlagNames, varNames []string

	// Locals + drop flags: "let name: ty;" or "let name = 0/1;"
	for p.lex.is("let") {
		p.lex.consume()
		if err := p.lex.checkClass(tokIdent, "identifier"); err != nil {
			return nil, err
		}
		nameTok, _ := p.lex.consume()
		if ok, err := p.lex.consumeIf("="); err != nil {
			return nil, err
		} else if ok {
			v, err := p.expectInteger()
			if err != nil {
				return nil, err
			}
			fn.DropFlags = append(fn.DropFlags, v != 0)
			dropFlagNames = append(dropFlagNames, nameTok.text)
		} else if ok, err := p.lex.consumeIf(":"); err != nil {
			return nil, err
		} else if ok {
			ty, err := p.parseType()
			if err != nil {
				return nil, err
			}
			varNames = append(varNames, nameTok.text)
			fn.Locals = append(fn.Locals, ty)
		} else {
			return nil, p.lex.errorf("expected ':' or '=' after local name %q", nameTok.text)
		}
		if err := p.lex.checkConsume(";"); err != nil {
			return nil, err
		}
	}

	scope := &bodyScope{varNames: varNames, dropFlagNames: dropFlagNames}

	// Basic blocks: "N: { stmts... TERM }"
	for p.lex.isClass(tokInteger) {
		idxTok, _ := p.lex.consume()
		if int(idxTok.integer()) != len(fn.Blocks) {
			return nil, p.lex.errorf("basic block index %d out of order (expected %d)", idxTok.integer(), len(fn.Blocks))
		}
		if err := p.lex.checkConsume(":"); err != nil {
			return nil, err
		}
		if err := p.lex.checkConsume("{"); err != nil {
			return nil, err
		}
		block, err := p.parseBlockBody(scope)
		if err != nil {
			return nil, err
		}
		fn.Blocks = append(fn.Blocks, block)
	}

	if err := p.lex.checkConsume("}"); err != nil {
		return nil, err
	}
	return fn, nil
}

// bodyScope resolves variable and drop-flag names to slot indices while
// parsing a function body.
type bodyScope struct {
	varNames      []string
	dropFlagNames []string
}

func (s *bodyScope) lookupVar(name string) (int, bool) {
	for i, n := range s.varNames {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

func (s *bodyScope) lookupFlag(name string) (int, bool) {
	for i, n := range s.dropFlagNames {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

func (p *parser) parseBlockBody(scope *bodyScope) (BasicBlock, error) {
	var stmts []Statement
	for {
		if err := p.lex.checkClass(tokIdent, "identifier"); err != nil {
			return BasicBlock{}, err
		}
		t, _ := p.lex.next()

		var stmt Statement
		var parsed bool
		switch t.text {
		case "ASSIGN":
			p.lex.consume()
			dst, err := p.parseLValue(scope)
			if err != nil {
				return BasicBlock{}, err
			}
			if err := p.lex.checkConsume("="); err != nil {
				return BasicBlock{}, err
			}
			rv, err := p.parseRValue(scope)
			if err != nil {
				return BasicBlock{}, err
			}
			stmt = Statement{Kind: StmtAssign, Dst: dst, Src: rv}
			parsed = true

		case "SETFLAG":
			p.lex.consume()
			if err := p.lex.checkClass(tokIdent, "identifier"); err != nil {
				return BasicBlock{}, err
			}
			nameTok, _ := p.lex.consume()
			idx, ok := scope.lookupFlag(nameTok.text)
			if !ok {
				return BasicBlock{}, p.lex.errorf("unknown drop flag %q", nameTok.text)
			}
			if err := p.lex.checkConsume("="); err != nil {
				return BasicBlock{}, err
			}
			if p.lex.isClass(tokInteger) {
				v, err := p.expectInteger()
				if err != nil {
					return BasicBlock{}, err
				}
				stmt = Statement{Kind: StmtSetFlag, FlagIdx: idx, FlagLiteral: v != 0}
			} else {
				inv, err := p.lex.consumeIf("!")
				if err != nil {
					return BasicBlock{}, err
				}
				if err := p.lex.checkClass(tokIdent, "identifier"); err != nil {
					return BasicBlock{}, err
				}
				otherTok, _ := p.lex.consume()
				otherIdx, ok := scope.lookupFlag(otherTok.text)
				if !ok {
					return BasicBlock{}, p.lex.errorf("unknown drop flag %q", otherTok.text)
				}
				stmt = Statement{Kind: StmtSetFlag, FlagIdx: idx, FromOther: true, OtherIdx: otherIdx, OtherInvert: inv}
			}
			parsed = true

		case "DROP":
			p.lex.consume()
			target, err := p.parseLValue(scope)
			if err != nil {
				return BasicBlock{}, err
			}
			kind := DropDeep
			if ok, err := p.lex.consumeIf("SHALLOW"); err != nil {
				return BasicBlock{}, err
			} else if ok {
				kind = DropShallow
			}
			flagIdx := -1
			if ok, err := p.lex.consumeIf("IF"); err != nil {
				return BasicBlock{}, err
			} else if ok {
				if err := p.lex.checkClass(tokIdent, "identifier"); err != nil {
					return BasicBlock{}, err
				}
				nameTok, _ := p.lex.consume()
				idx, ok := scope.lookupFlag(nameTok.text)
				if !ok {
					return BasicBlock{}, p.lex.errorf("unknown drop flag %q", nameTok.text)
				}
				flagIdx = idx
			}
			stmt = Statement{Kind: StmtDrop, DropTarget: target, DropKind: kind, DropFlagIdx: flagIdx}
			parsed = true

		case "ASM":
			return BasicBlock{}, p.lex.errorf("inline ASM statements are not implemented")
		}

		if !parsed {
			break
		}
		stmts = append(stmts, stmt)
		if err := p.lex.checkConsume(";"); err != nil {
			return BasicBlock{}, err
		}
	}

	term, err := p.parseTerminator(scope)
	if err != nil {
		return BasicBlock{}, err
	}
	if err := p.lex.checkConsume("}"); err != nil {
		return BasicBlock{}, err
	}
	return BasicBlock{Stmts: stmts, Term: term}, nil
}

func (p *parser) parseTerminator(scope *bodyScope) (Terminator, error) {
	if err := p.lex.checkClass(tokIdent, "identifier"); err != nil {
		return Terminator{}, err
	}
	t, _ := p.lex.next()
	switch t.text {
	case "GOTO":
		p.lex.consume()
		tgt, err := p.expectInteger()
		if err != nil {
			return Terminator{}, err
		}
		return Terminator{Kind: TermGoto, Target: int(tgt)}, nil

	case "PANIC":
		p.lex.consume()
		tgt, err := p.expectInteger()
		if err != nil {
			return Terminator{}, err
		}
		return Terminator{Kind: TermPanic, Target: int(tgt)}, nil

	case "RETURN":
		p.lex.consume()
		return Terminator{Kind: TermReturn}, nil

	case "DIVERGE":
		p.lex.consume()
		return Terminator{Kind: TermDiverge}, nil

	case "IF":
		p.lex.consume()
		cond, err := p.parseLValue(scope)
		if err != nil {
			return Terminator{}, err
		}
		if err := p.lex.checkConsume("goto"); err != nil {
			return Terminator{}, err
		}
		tTrue, err := p.expectInteger()
		if err != nil {
			return Terminator{}, err
		}
		if err := p.lex.checkConsume("else"); err != nil {
			return Terminator{}, err
		}
		tFalse, err := p.expectInteger()
		if err != nil {
			return Terminator{}, err
		}
		return Terminator{Kind: TermIf, IfCond: cond, IfTrue: int(tTrue), IfFalse: int(tFalse)}, nil

	case "SWITCH":
		p.lex.consume()
		val, err := p.parseLValue(scope)
		if err != nil {
			return Terminator{}, err
		}
		if err := p.lex.checkConsume("{"); err != nil {
			return Terminator{}, err
		}
		var targets []int
		for !p.lex.is("}") {
			v, err := p.expectInteger()
			if err != nil {
				return Terminator{}, err
			}
			targets = append(targets, int(v))
			if ok, _ := p.lex.consumeIf(","); !ok {
				break
			}
		}
		if err := p.lex.checkConsume("}"); err != nil {
			return Terminator{}, err
		}
		return Terminator{Kind: TermSwitch, SwitchVal: val, SwitchTargets: targets}, nil

	case "SWITCHVAL":
		return Terminator{}, p.lex.errorf("SWITCHVAL terminators are not implemented")

	case "CALL":
		p.lex.consume()
		dst, err := p.parseLValue(scope)
		if err != nil {
			return Terminator{}, err
		}
		if err := p.lex.checkConsume("="); err != nil {
			return Terminator{}, err
		}
		ct, err := p.parseCallTarget(scope)
		if err != nil {
			return Terminator{}, err
		}
		if err := p.lex.checkConsume("("); err != nil {
			return Terminator{}, err
		}
		var args []Param
		for !p.lex.is(")") {
			a, err := p.parseParam(scope)
			if err != nil {
				return Terminator{}, err
			}
			args = append(args, a)
			if ok, _ := p.lex.consumeIf(","); !ok {
				break
			}
		}
		if err := p.lex.checkConsume(")"); err != nil {
			return Terminator{}, err
		}
		if err := p.lex.checkConsume("goto"); err != nil {
			return Terminator{}, err
		}
		succ, err := p.expectInteger()
		if err != nil {
			return Terminator{}, err
		}
		if err := p.lex.checkConsume("else"); err != nil {
			return Terminator{}, err
		}
		panicBlk, err := p.expectInteger()
		if err != nil {
			return Terminator{}, err
		}
		return Terminator{
			Kind: TermCall, CallDst: dst, CallTarget: ct, CallArgs: args,
			CallSuccess: int(succ), CallPanic: int(panicBlk),
		}, nil

	default:
		return Terminator{}, p.lex.errorf("unexpected token at terminator: %q", t.text)
	}
}

func (p *parser) parseCallTarget(scope *bodyScope) (CallTarget, error) {
	if ok, err := p.lex.consumeIf("("); err != nil {
		return CallTarget{}, err
	} else if ok {
		lv, err := p.parseLValue(scope)
		if err != nil {
			return CallTarget{}, err
		}
		if err := p.lex.checkConsume(")"); err != nil {
			return CallTarget{}, err
		}
		return CallTarget{Kind: CallIndirect, Indirect: lv}, nil
	}
	if p.lex.isClass(tokString) {
		nameTok, _ := p.lex.consume()
		args, err := p.parsePathParams()
		if err != nil {
			return CallTarget{}, err
		}
		return CallTarget{Kind: CallIntrinsic, IntrinsicName: nameTok.text, IntrinsicArgs: args}, nil
	}
	path, err := p.parsePath()
	if err != nil {
		return CallTarget{}, err
	}
	return CallTarget{Kind: CallPath, Path: path}, nil
}

// ---- LValues, RValues, Params, Constants -------------------------------

func (p *parser) parseLValue(scope *bodyScope) (*LValue, error) {
	derefs := 0
	for {
		ok, err := p.lex.consumeIf("*")
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		derefs++
	}

	var lv *LValue
	switch {
	case isOK(p, "("):
		p.lex.consume()
		inner, err := p.parseLValue(scope)
		if err != nil {
			return nil, err
		}
		if err := p.lex.checkConsume(")"); err != nil {
			return nil, err
		}
		lv = inner

	case p.lex.isClass(tokIdent) && !p.lex.is("::"):
		nameTok, _ := p.lex.consume()
		name := nameTok.text
		switch {
		case len(name) > 3 && name[:3] == "arg":
			idx, err := parseUintSuffix(name[3:])
			if err != nil {
				return nil, p.lex.errorf("invalid argument name %q: %w", name, err)
			}
			lv = &LValue{Kind: LVArgument, Argument: idx}
		case name == "RETURN":
			lv = &LValue{Kind: LVReturn}
		default:
			idx, ok := scope.lookupVar(name)
			if !ok {
				return nil, p.lex.errorf("cannot find variable named %q", name)
			}
			lv = &LValue{Kind: LVLocal, Local: idx}
		}

	case p.lex.is("::") || p.lex.is("<"):
		path, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		lv = &LValue{Kind: LVStatic, Static: path}

	default:
		t, _ := p.lex.next()
		return nil, p.lex.errorf("unexpected token in LValue: %q", t.text)
	}

	for {
		if ok, err := p.lex.consumeIf("@"); err != nil {
			return nil, err
		} else if ok {
			idx, err := p.expectInteger()
			if err != nil {
				return nil, err
			}
			lv = &LValue{Kind: LVDowncast, Base: lv, Idx: int(idx)}
			continue
		}
		if ok, err := p.lex.consumeIf("."); err != nil {
			return nil, err
		} else if ok {
			idx, err := p.expectInteger()
			if err != nil {
				return nil, err
			}
			lv = &LValue{Kind: LVField, Base: lv, Field: int(idx)}
			continue
		}
		if p.lex.is("[") {
			p.lex.consume()
			idxLV, err := p.parseLValue(scope)
			if err != nil {
				return nil, err
			}
			if err := p.lex.checkConsume("]"); err != nil {
				return nil, err
			}
			lv = &LValue{Kind: LVIndex, Base: lv, Index: idxLV}
			continue
		}
		break
	}

	for i := 0; i < derefs; i++ {
		lv = &LValue{Kind: LVDeref, Base: lv}
	}
	return lv, nil
}

func isOK(p *parser, s string) bool { return p.lex.is(s) }

func parseUintSuffix(s string) (int, error) {
	var v int
	if s == "" {
		return 0, fmt.Errorf("empty numeric suffix")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("non-numeric suffix %q", s)
		}
		v = v*10 + int(c-'0')
	}
	return v, nil
}

func (p *parser) parseConst(scope *bodyScope) (*Constant, error) {
	if p.lex.isClass(tokInteger) {
		v, _ := p.lex.consume()
		cty, err := p.parseCoreType()
		if err != nil {
			return nil, err
		}
		return &Constant{Kind: ConstUint, UintVal: v.integer(), Ty: cty}, nil
	}
	if p.lex.is("+") || p.lex.is("-") {
		tk, _ := p.lex.consume()
		neg := tk.text == "-"
		v, err := p.expectInteger()
		if err != nil {
			return nil, err
		}
		cty, err := p.parseCoreType()
		if err != nil {
			return nil, err
		}
		iv := int64(v)
		if neg {
			iv = -iv
		}
		return &Constant{Kind: ConstInt, IntVal: iv, Ty: cty}, nil
	}
	if ok, err := p.lex.consumeIf("true"); err != nil {
		return nil, err
	} else if ok {
		return &Constant{Kind: ConstBool, BoolVal: true}, nil
	}
	if ok, err := p.lex.consumeIf("false"); err != nil {
		return nil, err
	} else if ok {
		return &Constant{Kind: ConstBool, BoolVal: false}, nil
	}
	if ok, err := p.lex.consumeIf("&"); err != nil {
		return nil, err
	} else if ok {
		path, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		return &Constant{Kind: ConstItemAddr, ItemAddr: path}, nil
	}
	t, _ := p.lex.next()
	return nil, p.lex.errorf("unexpected token for constant: %q", t.text)
}

// isLiteralStart reports whether the lookahead begins a bare literal
// constant (Integer/+/-/true/false) — module_tree.cpp's ASSIGN dispatch
// checks exactly this set before falling through to "=lvalue" and "&
// borrow", deliberately excluding '&' so it always means Borrow at
// RValue's top level.
func (p *parser) isLiteralStart() bool {
	return p.lex.isClass(tokInteger) || p.lex.is("+") || p.lex.is("-") ||
		p.lex.is("true") || p.lex.is("false")
}

// isConstStart reports whether the lookahead begins a Param-position
// Constant — the literal set plus '&', since a bare Param has only two
// alternatives (Constant or LValue) and LValue's own grammar never starts
// with '&' (module_tree.cpp's H::parse_param).
func (p *parser) isConstStart() bool {
	return p.isLiteralStart() || p.lex.is("&")
}

func (p *parser) parseParam(scope *bodyScope) (Param, error) {
	if p.isConstStart() {
		c, err := p.parseConst(scope)
		if err != nil {
			return Param{}, err
		}
		return Param{Const: c}, nil
	}
	lv, err := p.parseLValue(scope)
	if err != nil {
		return Param{}, err
	}
	return Param{LValue: lv}, nil
}

func (p *parser) parseRValue(scope *bodyScope) (*RValue, error) {
	if p.isLiteralStart() {
		c, err := p.parseConst(scope)
		if err != nil {
			return nil, err
		}
		return &RValue{Kind: RVConstant, Const: c}, nil
	}
	if ok, err := p.lex.consumeIf("="); err != nil {
		return nil, err
	} else if ok {
		lv, err := p.parseLValue(scope)
		if err != nil {
			return nil, err
		}
		return &RValue{Kind: RVLValue, LVal: lv}, nil
	}
	if ok, err := p.lex.consumeIf("&"); err != nil {
		return nil, err
	} else if ok {
		bk := BorrowShared
		if ok, _ := p.lex.consumeIf("move"); ok {
			bk = BorrowMove
		} else if ok, _ := p.lex.consumeIf("mut"); ok {
			bk = BorrowUnique
		}
		lv, err := p.parseLValue(scope)
		if err != nil {
			return nil, err
		}
		return &RValue{Kind: RVBorrow, BorrowKind: bk, BorrowOf: lv}, nil
	}
	if ok, err := p.lex.consumeIf("("); err != nil {
		return nil, err
	} else if ok {
		var vals []Param
		for !p.lex.is(")") {
			v, err := p.parseParam(scope)
			if err != nil {
				return nil, err
			}
			vals = append(vals, v)
			if ok, _ := p.lex.consumeIf(","); !ok {
				break
			}
		}
		if err := p.lex.checkConsume(")"); err != nil {
			return nil, err
		}
		return &RValue{Kind: RVTuple, Elems: vals}, nil
	}
	if ok, err := p.lex.consumeIf("["); err != nil {
		return nil, err
	} else if ok {
		if ok, _ := p.lex.consumeIf("]"); ok {
			return &RValue{Kind: RVArray}, nil
		}
		first, err := p.parseParam(scope)
		if err != nil {
			return nil, err
		}
		if ok, err := p.lex.consumeIf(";"); err != nil {
			return nil, err
		} else if ok {
			size, err := p.expectInteger()
			if err != nil {
				return nil, err
			}
			if err := p.lex.checkConsume("]"); err != nil {
				return nil, err
			}
			return &RValue{Kind: RVSizedArray, Repeat: first, RepeatSize: size}, nil
		}
		vals := []Param{first}
		if ok, err := p.lex.consumeIf(","); err != nil {
			return nil, err
		} else if ok {
			for !p.lex.is("]") {
				v, err := p.parseParam(scope)
				if err != nil {
					return nil, err
				}
				vals = append(vals, v)
				if ok, _ := p.lex.consumeIf(","); !ok {
					break
				}
			}
		}
		if err := p.lex.checkConsume("]"); err != nil {
			return nil, err
		}
		return &RValue{Kind: RVArray, Elems: vals}, nil
	}
	if ok, err := p.lex.consumeIf("{"); err != nil {
		return nil, err
	} else if ok {
		var vals []Param
		for !p.lex.is("}") {
			v, err := p.parseParam(scope)
			if err != nil {
				return nil, err
			}
			vals = append(vals, v)
			if ok, _ := p.lex.consumeIf(","); !ok {
				break
			}
		}
		if err := p.lex.checkConsume("}"); err != nil {
			return nil, err
		}
		if err := p.lex.checkConsume(":"); err != nil {
			return nil, err
		}
		path, err := p.parseGenericPath()
		if err != nil {
			return nil, err
		}
		return &RValue{Kind: RVStruct, StructPath: path, Fields: vals}, nil
	}
	if ok, err := p.lex.consumeIf("VARIANT"); err != nil {
		return nil, err
	} else if ok {
		path, err := p.parseGenericPath()
		if err != nil {
			return nil, err
		}
		idx, err := p.expectInteger()
		if err != nil {
			return nil, err
		}
		val, err := p.parseParam(scope)
		if err != nil {
			return nil, err
		}
		return &RValue{Kind: RVVariant, StructPath: path, VariantIdx: int(idx), VariantVal: val}, nil
	}
	if ok, err := p.lex.consumeIf("CAST"); err != nil {
		return nil, err
	} else if ok {
		lv, err := p.parseLValue(scope)
		if err != nil {
			return nil, err
		}
		if err := p.lex.checkConsume("as"); err != nil {
			return nil, err
		}
		ty, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return &RValue{Kind: RVCast, CastLVal: lv, CastTo: ty}, nil
	}
	if ok, err := p.lex.consumeIf("UNIOP"); err != nil {
		return nil, err
	} else if ok {
		var op UnOp
		switch {
		case consumeIfOK(p, "!"):
			op = UnOpInv
		case consumeIfOK(p, "-"):
			op = UnOpNeg
		default:
			t, _ := p.lex.next()
			return nil, p.lex.errorf("unexpected token in UNIOP: %q", t.text)
		}
		lv, err := p.parseLValue(scope)
		if err != nil {
			return nil, err
		}
		return &RValue{Kind: RVUnOp, UnOpOperand: lv, UnOpOp: op}, nil
	}
	if ok, err := p.lex.consumeIf("BINOP"); err != nil {
		return nil, err
	} else if ok {
		lhs, err := p.parseParam(scope)
		if err != nil {
			return nil, err
		}
		if err := p.lex.checkClass(tokSymbol, "operator"); err != nil {
			return nil, err
		}
		opTok, _ := p.lex.consume()
		op, err := p.parseBinOp(opTok.text)
		if err != nil {
			return nil, err
		}
		rhs, err := p.parseParam(scope)
		if err != nil {
			return nil, err
		}
		return &RValue{Kind: RVBinOp, BinOpLHS: lhs, BinOpOp: op, BinOpRHS: rhs}, nil
	}
	if ok, err := p.lex.consumeIf("MAKEDST"); err != nil {
		return nil, err
	} else if ok {
		ptr, err := p.parseParam(scope)
		if err != nil {
			return nil, err
		}
		if err := p.lex.checkConsume(","); err != nil {
			return nil, err
		}
		meta, err := p.parseParam(scope)
		if err != nil {
			return nil, err
		}
		return &RValue{Kind: RVMakeDst, DstPtr: ptr, DstMeta: meta}, nil
	}
	if ok, err := p.lex.consumeIf("DSTPTR"); err != nil {
		return nil, err
	} else if ok {
		lv, err := p.parseLValue(scope)
		if err != nil {
			return nil, err
		}
		return &RValue{Kind: RVDstPtr, LVal: lv}, nil
	}
	if ok, err := p.lex.consumeIf("DSTMETA"); err != nil {
		return nil, err
	} else if ok {
		lv, err := p.parseLValue(scope)
		if err != nil {
			return nil, err
		}
		return &RValue{Kind: RVDstMeta, LVal: lv}, nil
	}
	t, _ := p.lex.next()
	return nil, p.lex.errorf("unexpected token in RValue: %q", t.text)
}

// parseBinOp decodes one BINOP operator spelling, consuming a following
// "^" (overflow-checked variant) or second character as module_tree.cpp's
// switch on the operator's first byte does.
func (p *parser) parseBinOp(first string) (BinOp, error) {
	switch first {
	case "+":
		if ok, _ := p.lex.consumeIf("^"); ok {
			return BinAddOv, nil
		}
		return BinAdd, nil
	case "-":
		if ok, _ := p.lex.consumeIf("^"); ok {
			return BinSubOv, nil
		}
		return BinSub, nil
	case "*":
		if ok, _ := p.lex.consumeIf("^"); ok {
			return BinMulOv, nil
		}
		return BinMul, nil
	case "/":
		if ok, _ := p.lex.consumeIf("^"); ok {
			return BinDivOv, nil
		}
		return BinDiv, nil
	case "|":
		return BinBitOr, nil
	case "&":
		return BinBitAnd, nil
	case "^":
		return BinBitXor, nil
	case "<":
		if ok, _ := p.lex.consumeIf("<"); ok {
			return BinShl, nil
		}
		if ok, _ := p.lex.consumeIf("="); ok {
			return BinLe, nil
		}
		return BinLt, nil
	case ">":
		if ok, _ := p.lex.consumeIf(">"); ok {
			return BinShr, nil
		}
		if ok, _ := p.lex.consumeIf("="); ok {
			return BinGe, nil
		}
		return BinGt, nil
	case "=":
		if err := p.lex.checkConsume("="); err != nil {
			return 0, err
		}
		return BinEq, nil
	case "!":
		if err := p.lex.checkConsume("="); err != nil {
			return 0, err
		}
		return BinNe, nil
	default:
		return 0, p.lex.errorf("unexpected operator %q in BINOP", first)
	}
}
