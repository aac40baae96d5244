package token

import "github.com/rustlite/rustlite/internal/intern"

// Kind discriminates the tagged union spec.md §3 calls "Token": keyword
// kinds (edition-indexed), punctuation kinds, identifier (with hygiene),
// lifetime, integer/float/string/byte-string/char/byte literals, an
// interpolated fragment (carrying a parsed AST subtree produced by macro
// expansion), and null/EOF.
type Kind int

const (
	EOF Kind = iota
	Error // lexical failure already reported to the reporter.Handler
	Ident
	Lifetime
	Integer
	Float
	String
	ByteString
	Char
	Byte
	RawIdent
	Interpolated // carries a macro-substituted AST fragment; see Token.Frag
	Punct        // spelling carried in Token.Text; see the operator table in lexer

	kwBase // keywords start here; see edition.go
	KwAs
	KwAsync
	KwAwait
	KwBox
	KwBreak
	KwConst
	KwContinue
	KwCrate
	KwDyn
	KwElse
	KwEnum
	KwExtern
	KwFalse
	KwFn
	KwFor
	KwIf
	KwImpl
	KwIn
	KwLet
	KwLoop
	KwMatch
	KwMod
	KwMove
	KwMut
	KwPub
	KwRef
	KwReturn
	KwSelf
	KwSelfType
	KwStatic
	KwStruct
	KwSuper
	KwTrait
	KwTrue
	KwTry
	KwType
	KwUnsafe
	KwUse
	KwWhere
	KwWhile
)

func (k Kind) IsKeyword() bool { return k > kwBase }

// IntSuffix names the built-in numeric type a literal's suffix selects, or
// AnySuffix if the literal carries none (spec.md §4.1 "integer suffix").
type IntSuffix int

const (
	AnySuffix IntSuffix = iota
	I8Suffix
	I16Suffix
	I32Suffix
	I64Suffix
	I128Suffix
	ISizeSuffix
	U8Suffix
	U16Suffix
	U32Suffix
	U64Suffix
	U128Suffix
	USizeSuffix
)

func (s IntSuffix) String() string {
	switch s {
	case I8Suffix:
		return "i8"
	case I16Suffix:
		return "i16"
	case I32Suffix:
		return "i32"
	case I64Suffix:
		return "i64"
	case I128Suffix:
		return "i128"
	case ISizeSuffix:
		return "isize"
	case U8Suffix:
		return "u8"
	case U16Suffix:
		return "u16"
	case U32Suffix:
		return "u32"
	case U64Suffix:
		return "u64"
	case U128Suffix:
		return "u128"
	case USizeSuffix:
		return "usize"
	default:
		return ""
	}
}

// FloatSuffix names a float literal's suffix.
type FloatSuffix int

const (
	AnyFloatSuffix FloatSuffix = iota
	F32Suffix
	F64Suffix
)

// Token is one lexical token, tagged with Kind and carrying whichever
// payload that Kind requires. Carried by value; Frag is the only field that
// requires heap indirection, and only Interpolated tokens set it.
type Token struct {
	Kind Kind
	Span Span

	// Ident / RawIdent / keyword spelling / punctuation spelling / lifetime
	// name (without the leading ').
	Name intern.ID

	// Scope is the hygiene scope active when this token was lexed. Set for
	// Ident, RawIdent and Lifetime tokens; nil otherwise.
	Scope *Scope

	// Text carries punctuation spelling (e.g. "<<=") and the raw spelling of
	// literals for diagnostics.
	Text string

	IntVal    uint64
	IntSuffix IntSuffix

	FloatVal    float64
	FloatSuffix FloatSuffix

	StrVal  string // decoded contents of String/ByteString/Char/Byte literals

	// Frag holds the parsed AST subtree for an Interpolated token, produced
	// when a macro fragment capture ($x:expr, etc.) is spliced back into a
	// token stream for re-parsing. Declared as `any` (rather than an ast.Expr)
	// to avoid an import cycle between token and ast — see ast.Fragment.
	Frag any
}

// IsEOF reports whether tok is the end-of-stream sentinel.
func (t Token) IsEOF() bool { return t.Kind == EOF }
