package token

// Edition selects which keyword table a crate's tokens are lexed against.
// Grounded on spec.md §6 "Edition" and §4.1's "reserved words
// (edition-dependent)".
type Edition int

const (
	Edition2015 Edition = iota
	Edition2018
	Edition2021
)

func (e Edition) String() string {
	switch e {
	case Edition2015:
		return "2015"
	case Edition2018:
		return "2018"
	case Edition2021:
		return "2021"
	default:
		return "unknown-edition"
	}
}

// baseKeywords are reserved in every edition.
var baseKeywords = map[string]Kind{
	"as": KwAs, "break": KwBreak, "const": KwConst, "continue": KwContinue,
	"crate": KwCrate, "else": KwElse, "enum": KwEnum, "extern": KwExtern,
	"false": KwFalse, "fn": KwFn, "for": KwFor, "if": KwIf, "impl": KwImpl,
	"in": KwIn, "let": KwLet, "loop": KwLoop, "match": KwMatch, "mod": KwMod,
	"move": KwMove, "mut": KwMut, "pub": KwPub, "ref": KwRef, "return": KwReturn,
	"self": KwSelf, "Self": KwSelfType, "static": KwStatic, "struct": KwStruct,
	"super": KwSuper, "trait": KwTrait, "true": KwTrue, "type": KwType,
	"unsafe": KwUnsafe, "use": KwUse, "where": KwWhere, "while": KwWhile,
	"box": KwBox,
}

// edition2018Keywords are additionally reserved from the 2018 edition on.
var edition2018Keywords = map[string]Kind{
	"async": KwAsync, "await": KwAwait, "dyn": KwDyn, "try": KwTry,
}

// Keywords returns the edition-indexed keyword table used by the lexer to
// classify identifiers. The returned map must not be mutated. The table is
// chosen once, at stream creation, not per token (spec.md §9 "Edition
// keyword set").
func (e Edition) Keywords() map[string]Kind {
	table, ok := editionTables[e]
	if !ok {
		panic("token: unknown edition")
	}
	return table
}

// editionTables maps each edition to its merged keyword set.
var editionTables = map[Edition]map[string]Kind{}

func init() {
	editionTables[Edition2015] = baseKeywords
	merged := make(map[string]Kind, len(baseKeywords)+len(edition2018Keywords))
	for k, v := range baseKeywords {
		merged[k] = v
	}
	for k, v := range edition2018Keywords {
		merged[k] = v
	}
	editionTables[Edition2018] = merged
	editionTables[Edition2021] = merged
}
