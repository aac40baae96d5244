// Package ast defines the discriminated-union syntax tree the parser
// produces: paths, types, patterns, expressions, attributes and items.
//
// Grounded on bufbuild/protocompile's ast package (ast/file.go, ast/node.go,
// ast/expr.go): a tagged-node tree with an explicit Visitor and positions
// on every node, generalized from protobuf's IDL grammar to the Language's
// expression-oriented grammar (spec.md §3 "AST", §9 "Cyclic AST/visitor").
// Expression nodes use reference-counted shared ownership (spec.md: "Shared
// expression nodes... required for interpolated fragments"), implemented
// with a plain Go pointer plus explicit Clone rather than an atomic
// refcount, since the interpreter never frees AST nodes mid-run — they
// live for the process lifetime once parsed.
package ast

import "github.com/rustlite/rustlite/token"

// Node is implemented by every AST node kind; it exposes only position
// information, mirroring protocompile's ast.Node interface.
type Node interface {
	Pos() token.Span
}

// ---- Path ----------------------------------------------------------------

// PathKind discriminates how a Path is anchored.
type PathKind int

const (
	PathRelative PathKind = iota
	PathAbsolute          // ::foo::bar
	PathSelf              // self::foo
	PathSuper             // super::foo (repeated Supers counted in Path.Supers)
	PathCrate             // crate::foo
	PathUFCS              // <T as Trait>::item
)

// PathComponent is one `name::<args>` segment of a Path.
type PathComponent struct {
	Name token.Token // Ident token (carries hygiene + interned name)
	Args []Type      // generic arguments, if any
}

// Path is an ordered sequence of components with an anchor kind.
type Path struct {
	Span token.Span
	Kind       PathKind
	Supers     int // number of leading "super::" segments, when Kind == PathSuper
	Components []PathComponent

	// UFCS-only fields: <Qualified as Trait>::rest
	Qualified *Type
	Trait     *Path
}

func (p *Path) Clone() *Path {
	cp := *p
	cp.Components = append([]PathComponent(nil), p.Components...)
	return &cp
}

// ---- Type -----------------------------------------------------------------

type TypeKind int

const (
	TypePrimitive TypeKind = iota
	TypePath
	TypeTuple
	TypeArray   // fixed-size; Size is a const Expression
	TypeSlice
	TypeRefShared
	TypeRefUnique
	TypeRefMove
	TypePtrConst
	TypePtrMut
	TypeFn
	TypeTraitObject
	TypeUnit
	TypeDiverging // "!"
)

type Type struct {
	Span token.Span
	Kind TypeKind

	Primitive string // when Kind == TypePrimitive (e.g. "i32", "bool")
	Path      *Path   // when Kind == TypePath or TypeTraitObject (trait bound path)

	Elems []Type // Tuple members, Fn params, TraitObject bound list
	Elem  *Type  // Array/Slice/Ref/Ptr element type, Fn return type

	Size *Expr // Array only

	Lifetime token.Token // Ref only, optional (Kind == Ident, zero Token if absent)
}

func (t *Type) Clone() *Type {
	cp := *t
	cp.Elems = append([]Type(nil), t.Elems...)
	if t.Elem != nil {
		e := t.Elem.Clone()
		cp.Elem = e
	}
	if t.Size != nil {
		cp.Size = t.Size.Clone()
	}
	return &cp
}

// ---- Pattern ---------------------------------------------------------------

type PatKind int

const (
	PatWildcard PatKind = iota
	PatBinding          // name (+ Ref/Mut flags) (+ optional SubPat via @)
	PatValue            // literal or named const, via Expr
	PatRange            // Lo..Hi or Lo..=Hi
	PatTuple
	PatTupleStruct
	PatStruct // named fields (+ optional Rest via HasRest)
	PatOr
	PatSlice // Leading, optional MidBinding, Trailing
	PatRef
	PatBox
)

// PatField is one `name: pattern` entry of a PatStruct.
type PatField struct {
	Name token.Token
	Pat  Pat
}

type Pat struct {
	Span token.Span
	Kind PatKind

	Name token.Token // PatBinding
	Ref  bool
	Mut  bool
	Sub  *Pat // PatBinding's `@` sub-pattern

	Path *Path // PatValue (named const), PatTupleStruct, PatStruct

	Value *Expr // PatValue (literal)

	Lo, Hi      *Pat // PatRange
	RangeHalfOp bool // true: "..", false: "..="

	Elems  []Pat      // PatTuple, PatTupleStruct, PatOr, PatSlice-leading-and-trailing split via Leading/Trailing
	Fields []PatField // PatStruct
	HasRest bool       // PatStruct ".."

	Leading    []Pat  // PatSlice
	MidBinding *token.Token
	Trailing   []Pat

	Inner *Pat // PatRef, PatBox
}

func (p *Pat) Clone() *Pat {
	cp := *p
	cp.Elems = clonePats(p.Elems)
	cp.Fields = append([]PatField(nil), p.Fields...)
	cp.Leading = clonePats(p.Leading)
	cp.Trailing = clonePats(p.Trailing)
	if p.Sub != nil {
		cp.Sub = p.Sub.Clone()
	}
	if p.Lo != nil {
		cp.Lo = p.Lo.Clone()
	}
	if p.Hi != nil {
		cp.Hi = p.Hi.Clone()
	}
	if p.Inner != nil {
		cp.Inner = p.Inner.Clone()
	}
	return &cp
}

func clonePats(ps []Pat) []Pat {
	if ps == nil {
		return nil
	}
	out := make([]Pat, len(ps))
	for i := range ps {
		out[i] = *ps[i].Clone()
	}
	return out
}

// ---- Attribute --------------------------------------------------------------

type AttrPayloadKind int

const (
	AttrNone AttrPayloadKind = iota
	AttrValue                // #[name = expr]
	AttrString               // #[doc = "text"] (synthesized from doc comments)
	AttrList                 // #[name(nested, attrs, ...)]
)

type Attr struct {
	Span token.Span
	Path    *Path
	Payload AttrPayloadKind
	Value   *Expr
	Str     string
	Nested  []Attr
	Inner   bool // #![...] vs #[...]
}

// ---- Expression --------------------------------------------------------------

type ExprKind int

const (
	ExprLiteral ExprKind = iota
	ExprPath             // named value / unit struct / enum variant
	ExprTuple
	ExprArrayList
	ExprArrayRepeat // [v; n]
	ExprStructLit
	ExprBlock
	ExprFlow // return / break / continue
	ExprLet  // let-binding used as a condition (if-let/while-let) or statement
	ExprAssign
	ExprCall
	ExprMethodCall
	ExprField
	ExprIndex
	ExprDeref
	ExprCast
	ExprUnary
	ExprBinary
	ExprLoop
	ExprIf
	ExprMatch
	ExprClosure
	ExprMacroCall
)

type FlowKind int

const (
	FlowReturn FlowKind = iota
	FlowBreak
	FlowContinue
)

type LoopKind int

const (
	LoopPlain LoopKind = iota // loop { }
	LoopWhile
	LoopWhileLet
	LoopFor
)

// StructLitField is one `name: expr` entry, or a shorthand `name` field
// (Value == nil meaning "use the binding named Name").
type StructLitField struct {
	Name  token.Token
	Value *Expr
}

// MatchArm is one `pattern [if guard] => body` arm.
type MatchArm struct {
	Pats  []Pat // one or more or-separated patterns
	Guard *Expr
	Body  *Expr
}

// ClosureParam is one closure parameter, optionally typed.
type ClosureParam struct {
	Pat Pat
	Ty  *Type
}

// Expr is the shared (reference-counted-by-convention) expression node.
// Per spec.md §3/§9, Expr nodes are the one AST kind with shared ownership
// (so a parsed expression can be moved into an Interpolated token and
// later re-spliced); callers that need a private copy must call Clone
// explicitly — assignment of a *Expr never implicitly deep-copies.
type Expr struct {
	Span token.Span
	Kind ExprKind

	// ExprLiteral
	LitKind token.Kind // Integer, Float, String, ByteString, Char, Byte, KwTrue, KwFalse
	Lit     token.Token

	Path *Path // ExprPath

	Elems []Expr // Tuple and ArrayList elements (call arguments are in Args)
	Repeat *Expr // ArrayRepeat value
	Count  *Expr // ArrayRepeat count

	StructFields []StructLitField
	StructBase   *Expr // struct-update base, if any

	// ExprBlock
	Unsafe bool
	Stmts  []Stmt
	Tail   *Expr // optional trailing expression

	// ExprFlow
	Flow  FlowKind
	Label *token.Token
	Value *Expr // flow payload / unary operand (including deref, borrow, box and '?')

	// ExprLet
	LetPat  *Pat
	LetTy   *Type
	LetInit *Expr

	// ExprAssign
	AssignOp token.Kind // 0 for plain "="; else the compound operator's token kind
	LHS      *Expr
	RHS      *Expr

	// ExprCall
	Callee *Expr
	Args   []Expr

	// ExprMethodCall
	Receiver *Expr
	Method   token.Token
	TypeArgs []Type

	// ExprField
	FieldTarget *Expr
	FieldName   token.Token
	TupleIndex  int
	IsTupleIdx  bool

	// ExprIndex
	IndexTarget *Expr
	IndexValue  *Expr

	// ExprCast
	CastValue *Expr
	CastTo    *Type

	// ExprUnary / ExprBinary
	Op    token.Kind
	LExpr *Expr
	RExpr *Expr

	// ExprLoop
	LoopKind  LoopKind
	LoopLabel *token.Token
	Cond      *Expr // While/WhileLet condition
	CondPat   *Pat  // WhileLet pattern
	ForPat    *Pat  // For pattern
	ForIter   *Expr
	Body      *Expr // always an ExprBlock

	// ExprIf
	IfCond    *Expr
	IfLetPat  *Pat // non-nil for `if let`
	Then      *Expr
	Else      *Expr // ExprIf (else if) or ExprBlock or nil

	// ExprMatch
	Scrutinee *Expr
	Arms      []MatchArm

	// ExprClosure
	ClosureParams  []ClosureParam
	ClosureRet     *Type
	ClosureBody    *Expr
	ClosureMove    bool

	// ExprMacroCall
	MacroPath *Path
	MacroArgs []token.Token // spec.md §4.3: unexpanded, parsed later

	// StructLitDisallowed: set when this expression occurred in "disallow struct
	// literal" context (spec.md §4.3); informational for debug-dump only.
	StructLitDisallowed bool
}

func (e *Expr) Clone() *Expr {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Elems = cloneExprs(e.Elems)
	cp.Args = cloneExprs(e.Args)
	cp.Stmts = append([]Stmt(nil), e.Stmts...)
	cp.StructFields = append([]StructLitField(nil), e.StructFields...)
	cp.Arms = append([]MatchArm(nil), e.Arms...)
	cp.ClosureParams = append([]ClosureParam(nil), e.ClosureParams...)
	cp.TypeArgs = append([]Type(nil), e.TypeArgs...)
	for _, f := range []**Expr{
		&cp.Repeat, &cp.Count, &cp.StructBase, &cp.Tail, &cp.Value, &cp.LetInit,
		&cp.LHS, &cp.RHS, &cp.Callee, &cp.Receiver, &cp.FieldTarget, &cp.IndexTarget,
		&cp.IndexValue, &cp.CastValue, &cp.LExpr, &cp.RExpr, &cp.Cond, &cp.ForIter,
		&cp.Body, &cp.IfCond, &cp.Then, &cp.Else, &cp.Scrutinee, &cp.ClosureBody,
	} {
		*f = (*f).Clone()
	}
	return &cp
}

func cloneExprs(es []Expr) []Expr {
	if es == nil {
		return nil
	}
	out := make([]Expr, len(es))
	for i := range es {
		out[i] = *es[i].Clone()
	}
	return out
}

// ---- Statement --------------------------------------------------------------

type StmtKind int

const (
	StmtExpr StmtKind = iota
	StmtLet
	StmtItem
	StmtSemi // an expression statement whose trailing ";" makes it non-tail
)

type Stmt struct {
	Span token.Span
	Kind StmtKind
	Expr *Expr
	Item *Item
}

// ---- Item --------------------------------------------------------------

type ItemKind int

const (
	ItemFn ItemKind = iota
	ItemStatic
	ItemConst
	ItemStruct
	ItemEnum
	ItemTrait
	ItemImpl
	ItemTypeAlias
	ItemUse
	ItemExternCrate
	ItemMod
	ItemMacroDef
	ItemMacroCall
)

type StructKind int

const (
	StructUnit StructKind = iota
	StructTuple
	StructNamed
)

// Field is one named or positional struct/variant field.
type Field struct {
	Name token.Token // zero Token for tuple-struct fields; Name.Text carries the index otherwise unused
	Ty   Type
	Pub  bool
}

// Variant is one enum variant.
type Variant struct {
	Name        token.Token
	StructKind  StructKind
	Fields      []Field
	Discriminant *Expr
}

type Visibility int

const (
	VisPrivate Visibility = iota
	VisPub
	VisPubRestricted // pub(...), Path carries the restriction
)

type FnParam struct {
	Pat Pat
	Ty  Type
}

// Item is a top-level or impl/trait member declaration.
type Item struct {
	Span token.Span
	Kind ItemKind
	Vis  Visibility
	VisPath *Path
	Attrs []Attr
	Name  token.Token

	// ItemFn
	Params  []FnParam
	RetTy   *Type
	FnBody  *Expr // ExprBlock, nil for a trait fn without a default body
	IsUnsafe bool
	IsAsync  bool

	// ItemStatic / ItemConst
	ConstTy   *Type
	ConstInit *Expr
	IsMut     bool // static mut

	// ItemStruct
	StructKind StructKind
	Fields     []Field

	// ItemEnum
	Variants []Variant

	// ItemTrait / ItemImpl
	TraitPath *Path // ItemImpl's "impl Trait for Ty", nil for an inherent impl
	SelfTy    *Type // ItemImpl's Ty
	Items     []Item

	// ItemTypeAlias
	AliasTy *Type

	// ItemUse
	UsePath *Path
	UseAs   *token.Token

	// ItemExternCrate
	CrateName token.Token
	CrateAs   *token.Token

	// ItemMod
	ModItems []Item // inline module; nil for a file-backed module (out of scope to load)

	// ItemMacroDef
	MacroRules []MacroRule // see package macro for the compiled form; AST keeps raw TTs

	// ItemMacroCall
	MacroCallPath *Path
	MacroCallArgs []token.Token
}

// MacroRule mirrors one `(pattern) => {body};` rule's raw token trees, as
// captured by the parser before package macro compiles them.
type MacroRule struct {
	Pattern []token.Token
	Body    []token.Token
}

// File is a parsed source file: its item list plus inner attributes.
type File struct {
	Span token.Span
	Attrs []Attr
	Items []Item
}
