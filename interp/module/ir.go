// Package module loads the textual intermediate representation the
// interpreter runs: function bodies, static items and data-type layouts,
// plus the crate-spanning type registry that gives every named type a
// single shared identity.
//
// Grounded on original_source/tools/standalone_miri/module_tree.{hpp,cpp}:
// a bespoke lexer/parser pair distinct from the source-language lexer
// (spec.md §4.5 "parsed by a bespoke lexer/parser separate from the
// source-language lexer"), reading the line-oriented ASCII IR grammar
// sketched there (`crate "path";`, `fn path(...): ty { ... }`,
// `type path { SIZE n, ALIGN n; ... }`).
package module

import (
	"fmt"
	"strings"
)

// RawType enumerates the IR's built-in scalar types (module_tree.cpp's
// RawType, as produced by Parser::parse_core_type).
type RawType int

const (
	RawInvalid RawType = iota
	RawU8
	RawU16
	RawU32
	RawU64
	RawU128
	RawUSize
	RawI8
	RawI16
	RawI32
	RawI64
	RawI128
	RawISize
	RawF32
	RawF64
	RawBool
	RawChar
	RawStr
	RawFunction    // bare `fn(...) -> ty` or `extern "C" fn(...) -> ty`
	RawTraitObject // `dyn Trait [+ Marker]*`
)

// SimplePath is a crate-rooted sequence of name components with no
// generic arguments, e.g. the "core"::"option"::"Option" of
// `::"core"::option::Option`.
type SimplePath struct {
	Crate    string
	Segments []string
}

// PathKind discriminates a [Path]: a plain crate-rooted GenericPath, or a
// UFCS qualification `<Ty as Trait>::item`.
type PathKind int

const (
	PathSimple PathKind = iota
	PathUFCS
)

// Path is either a [SimplePath] plus generic type arguments (module_tree.hpp's
// GenericPath), or a UFCS-qualified item reference (module_tree.cpp's
// Parser::parse_path: "<ty> [as trait] :: item <params>").
type Path struct {
	Kind PathKind

	// PathSimple
	Simple SimplePath
	Args   []*Ty

	// PathUFCS: <Qualified [as Trait]>::Item<ItemArgs>
	Qualified *Ty
	Trait     *Path // always PathSimple-kind; nil when "as Trait" was omitted
	Item      string
	ItemArgs  []*Ty
}

// Key returns a canonical string uniquely identifying the path, suitable
// for use as a registry/map key; spec.md §4.5 "All named types share one
// interning table keyed by path."
func (p *Path) Key() string {
	var b pathKeyBuilder
	if p.Kind == PathUFCS {
		b.WriteString("<")
		b.writeTy(p.Qualified)
		if p.Trait != nil {
			b.WriteString(" as ")
			b.WriteString(p.Trait.Key())
		}
		b.WriteString(">::")
		b.WriteString(p.Item)
		b.writeArgs(p.ItemArgs)
		return b.String()
	}
	b.writeSimple(p.Simple, p.Args)
	return b.String()
}

// TyKind discriminates a [Ty].
type TyKind int

const (
	TyPrimitive TyKind = iota
	TyNamed            // references a DataType by Path (struct/enum/union/tuple)
	TyArray            // [Elem; Size]
	TySlice            // [Elem]
	TyRefShared        // &Elem
	TyRefUnique        // &mut Elem
	TyRefMove          // &move Elem
	TyPtrConst         // *const Elem
	TyPtrMut           // *mut Elem
	TyFn               // fn(Args...) -> Ret
	TyUnit             // ()
	TyDiverge          // !
)

// Ty is a type reference appearing in a function signature, local, or
// field (module_tree.hpp's HIR::TypeRef, generalized into the same
// Kind-tagged-struct shape the source-language ast package uses).
type Ty struct {
	Kind TyKind

	Prim RawType // TyPrimitive
	Path *Path   // TyNamed

	Elem *Ty    // TyArray, TySlice, TyRefShared/Unique/Move, TyPtrConst/Mut
	Size uint64 // TyArray

	FnArgs []*Ty // TyFn
	FnRet  *Ty   // TyFn
}

// FieldDef is one `offset = ty;` entry in a [DataType]'s field list.
type FieldDef struct {
	Offset uint64
	Type   *Ty
}

// Variant is one `[base, idx...] = "tag-bytes";` entry: a field-projection
// path identifying which bytes carry the discriminant, and the literal
// tag pattern (packed little-endian into a uint64, as module_tree.cpp
// does when it folds the tag string character by character).
type Variant struct {
	TagPath []uint64
	Tag     uint64
}

// DataType is a named type's layout: size, alignment, fields and
// (for enums) variants (spec.md §3 "Data type"). Alignment 0 marks a
// placeholder inserted by a forward reference that has not yet been
// filled in by a `type` definition (spec.md §4.5).
type DataType struct {
	Size      uint64
	Alignment uint64
	Fields    []FieldDef
	Variants  []Variant
}

// IsPlaceholder reports whether this DataType is still an unfilled
// forward reference.
func (d *DataType) IsPlaceholder() bool { return d.Alignment == 0 }

// Function is an IR function: its signature plus its MIR-shaped body
// (module_tree.hpp's Function, with MIR::Function's locals/blocks
// folded directly in rather than kept as a separate nested type).
type Function struct {
	ArgTypes []*Ty
	RetType  *Ty

	Locals    []*Ty  // local variable slots, by index
	DropFlags []bool // initial value of each drop flag, by index

	Blocks []BasicBlock
}

// BasicBlock is one `N: { stmts... TERM }` block.
type BasicBlock struct {
	Stmts []Statement
	Term  Terminator
}

// LValueKind discriminates an [LValue].
type LValueKind int

const (
	LVLocal LValueKind = iota
	LVArgument
	LVReturn
	LVStatic // by Path
	LVField
	LVDowncast
	LVDeref
	LVIndex
)

// LValue names an assignable/addressable slot (module_tree.cpp's
// ::MIR::LValue): a local or argument by index, the return slot, a
// static by path, or a projection of another LValue.
type LValue struct {
	Kind LValueKind

	Local    int // LVLocal
	Argument int // LVArgument
	Static   *Path

	Base  *LValue // LVField, LVDowncast, LVDeref, LVIndex
	Field int     // LVField: tuple/struct field index
	Idx   int      // LVDowncast: enum variant index

	Index *LValue // LVIndex: the index LValue (index-by-local, not by constant)
}

// ConstKind discriminates a [Constant].
type ConstKind int

const (
	ConstUint ConstKind = iota
	ConstInt
	ConstFloat
	ConstBool
	ConstItemAddr // `& path`: the address of a function/static item
	ConstUnit
)

// Constant is a literal RValue/Param (module_tree.cpp's ::MIR::Constant).
type Constant struct {
	Kind ConstKind

	UintVal uint64
	IntVal  int64
	FloatVal float64
	BoolVal  bool
	Ty       RawType // core type suffix on Uint/Int/Float constants

	ItemAddr *Path
}

// Param is either a [Constant] or an [LValue] (a "copy or move", per the
// original's ::MIR::Param — the IR textual form does not distinguish
// copy from move, leaving that to the type's Copy-ness at execution
// time).
type Param struct {
	Const  *Constant
	LValue *LValue
}

// IsConst reports whether this parameter is a literal rather than an
// LValue reference.
func (p Param) IsConst() bool { return p.Const != nil }

// BorrowKind discriminates an RValue's Borrow/Pointer-cast mutability.
type BorrowKind int

const (
	BorrowShared BorrowKind = iota
	BorrowUnique
	BorrowMove
)

// UnOp enumerates RValue unary operators.
type UnOp int

const (
	UnOpInv UnOp = iota // !
	UnOpNeg              // -
)

// BinOp enumerates RValue binary operators, including the "^"-suffixed
// overflow-checked arithmetic variants (BINOP's `+^`, `-^`, `*^`, `/^`).
type BinOp int

const (
	BinAdd BinOp = iota
	BinAddOv
	BinSub
	BinSubOv
	BinMul
	BinMulOv
	BinDiv
	BinDivOv
	BinBitOr
	BinBitAnd
	BinBitXor
	BinShl
	BinShr
	BinLt
	BinLe
	BinGt
	BinGe
	BinEq
	BinNe
)

// RValueKind discriminates an [RValue].
type RValueKind int

const (
	RVUse RValueKind = iota // plain Constant/LValue, handled by Statement.Src directly in simple cases
	RVConstant
	RVLValue // a bare "=lvalue" move/copy
	RVBorrow
	RVTuple
	RVArray      // list form: [a, b, c]
	RVSizedArray // [v; n]
	RVStruct
	RVVariant
	RVCast
	RVUnOp
	RVBinOp
	RVMakeDst
	RVDstPtr
	RVDstMeta
)

// RValue is the right-hand side of an ASSIGN statement (module_tree.cpp's
// ::MIR::RValue).
type RValue struct {
	Kind RValueKind

	Const *Constant // RVConstant
	LVal  *LValue   // RVLValue, RVDstPtr, RVDstMeta

	BorrowKind BorrowKind // RVBorrow
	BorrowOf   *LValue    // RVBorrow

	Elems []Param // RVTuple, RVArray

	Repeat     Param  // RVSizedArray: the repeated value
	RepeatSize uint64 // RVSizedArray

	StructPath *Path   // RVStruct, RVVariant
	Fields     []Param // RVStruct

	VariantIdx int   // RVVariant
	VariantVal Param // RVVariant

	CastLVal *LValue // RVCast
	CastTo   *Ty     // RVCast

	UnOpOperand *LValue // RVUnOp
	UnOpOp      UnOp    // RVUnOp

	BinOpLHS Param // RVBinOp
	BinOpOp  BinOp // RVBinOp
	BinOpRHS Param // RVBinOp

	DstPtr  Param // RVMakeDst
	DstMeta Param // RVMakeDst
}

// StmtKind discriminates a [Statement].
type StmtKind int

const (
	StmtAssign StmtKind = iota
	StmtDrop
	StmtSetFlag
)

// DropKind discriminates how deep a DROP statement recurses.
type DropKind int

const (
	DropDeep DropKind = iota
	DropShallow
)

// Statement is one `ASSIGN`/`DROP`/`SETFLAG` entry in a block's body.
type Statement struct {
	Kind StmtKind

	// StmtAssign
	Dst *LValue
	Src *RValue

	// StmtDrop
	DropTarget *LValue
	DropKind   DropKind
	// DropFlagIdx selects the drop flag gating this drop; -1 means
	// unconditional (module_tree.cpp uses the sentinel ~0u for this).
	DropFlagIdx int

	// StmtSetFlag: SETFLAG name = {0|1|name|!name}. FlagIdx is always
	// set; when FromOther is true the new value is read from another
	// flag (optionally inverted) rather than a literal.
	FlagIdx     int
	FlagLiteral bool
	FromOther   bool
	OtherIdx    int
	OtherInvert bool
}

// CallTargetKind discriminates a [CallTarget].
type CallTargetKind int

const (
	CallPath CallTargetKind = iota
	CallIntrinsic
	CallIndirect // an LValue holding a function-item relocation
)

// CallTarget is the callee of a CALL terminator.
type CallTarget struct {
	Kind CallTargetKind

	Path          *Path   // CallPath
	IntrinsicName string  // CallIntrinsic
	IntrinsicArgs []*Ty   // CallIntrinsic: `<...>` generic params, if any
	Indirect      *LValue // CallIndirect
}

// TermKind discriminates a [Terminator].
type TermKind int

const (
	TermGoto TermKind = iota
	TermReturn
	TermPanic
	TermDiverge
	TermIf
	TermSwitch
	TermSwitchValue
	TermCall
)

// Terminator is the single control-flow instruction ending a basic block.
type Terminator struct {
	Kind TermKind

	Target int // TermGoto, TermPanic

	// TermIf
	IfCond   *LValue
	IfTrue   int
	IfFalse  int

	// TermSwitch: dispatch on an enum variant index
	SwitchVal     *LValue
	SwitchTargets []int

	// TermCall
	CallDst      *LValue
	CallTarget   CallTarget
	CallArgs     []Param
	CallSuccess  int
	CallPanic    int
}

// pathKeyBuilder renders a Path into the canonical string used as its
// registry key, entirely independent of any [intern.Table] — IR paths are
// few enough, and looked up rarely enough next to an interpreted program's
// actual execution, that plain string keys keep this package decoupled
// from the source-language lexer's interning machinery (spec.md §4.5's
// "bespoke lexer/parser separate from the source-language lexer" applies
// just as well to how paths are identified).
type pathKeyBuilder struct {
	strings.Builder
}

func (b *pathKeyBuilder) writeSimple(sp SimplePath, args []*Ty) {
	b.WriteString(`::"`)
	b.WriteString(sp.Crate)
	b.WriteString(`"`)
	for _, seg := range sp.Segments {
		b.WriteString("::")
		b.WriteString(seg)
	}
	b.writeArgs(args)
}

func (b *pathKeyBuilder) writeArgs(args []*Ty) {
	if len(args) == 0 {
		return
	}
	b.WriteString("<")
	for i, a := range args {
		if i > 0 {
			b.WriteString(",")
		}
		b.writeTy(a)
	}
	b.WriteString(">")
}

func (b *pathKeyBuilder) writeTy(t *Ty) {
	if t == nil {
		b.WriteString("?")
		return
	}
	switch t.Kind {
	case TyPrimitive:
		b.WriteString(rawTypeNames[t.Prim])
	case TyNamed:
		b.WriteString(t.Path.Key())
	case TyArray:
		b.WriteString("[")
		b.writeTy(t.Elem)
		b.WriteString(fmt.Sprintf(";%d]", t.Size))
	case TySlice:
		b.WriteString("[")
		b.writeTy(t.Elem)
		b.WriteString("]")
	case TyRefShared:
		b.WriteString("&")
		b.writeTy(t.Elem)
	case TyRefUnique:
		b.WriteString("&mut ")
		b.writeTy(t.Elem)
	case TyRefMove:
		b.WriteString("&move ")
		b.writeTy(t.Elem)
	case TyPtrConst:
		b.WriteString("*const ")
		b.writeTy(t.Elem)
	case TyPtrMut:
		b.WriteString("*mut ")
		b.writeTy(t.Elem)
	case TyFn:
		b.WriteString("fn(")
		for i, a := range t.FnArgs {
			if i > 0 {
				b.WriteString(",")
			}
			b.writeTy(a)
		}
		b.WriteString(")->")
		b.writeTy(t.FnRet)
	case TyUnit:
		b.WriteString("()")
	case TyDiverge:
		b.WriteString("!")
	}
}

var rawTypeNames = [...]string{
	RawInvalid: "<invalid>", RawU8: "u8", RawU16: "u16", RawU32: "u32", RawU64: "u64",
	RawU128: "u128", RawUSize: "usize", RawI8: "i8", RawI16: "i16", RawI32: "i32",
	RawI64: "i64", RawI128: "i128", RawISize: "isize", RawF32: "f32", RawF64: "f64",
	RawBool: "bool", RawChar: "char", RawStr: "str", RawFunction: "fn", RawTraitObject: "dyn",
}
