// Package macro implements the macro_rules! engine spec.md §4.4 describes:
// compiling a macro_rules! definition's raw rules into a matcher/expander
// pair, matching an invocation's token tree against each rule in source
// order, and expanding the first rule that matches into a fresh token
// sequence for the parser to re-enter.
//
// Grounded on original_source/src/macros.cpp (ParameterMappings, the
// Macro_TryPattern/Macro_HandlePattern/MacroExpander triad) and
// original_source/src/parse/macro_rules.cpp (the pattern/body compilers),
// generalized into Go with the parser package supplying the fragment
// sub-grammars (expr, ty, pat, stmt, block, path, meta, ident, tt) that
// original_source spreads across its own parse/*.cpp files.
package macro

import "github.com/rustlite/rustlite/token"

// PatEntKind discriminates one compiled pattern entry (original_source's
// MacroPatEnt).
type PatEntKind int

const (
	PatToken   PatEntKind = iota // a literal token the input must match exactly
	PatFrag                     // $name:kind — a typed fragment capture
	PatLoop                     // $( ... ) sep? {*|+|?} — a repetition
)

// PatEnt is one compiled pattern entry.
type PatEnt struct {
	Kind PatEntKind

	Tok token.Token // PatToken: the literal token to match

	Name     string // PatFrag: the captured variable's name
	FragKind string // PatFrag: "ident", "path", "ty", "pat", "expr", "stmt",
	// "block", "meta", "tt", "literal" or "lifetime"

	Body []PatEnt     // PatLoop: the repeated pattern entries
	Sep  *token.Token // PatLoop: optional separator token between iterations
	Op   byte         // PatLoop: '*', '+' or '?'
}

// RuleEntKind discriminates one compiled body (expansion) entry
// (original_source's MacroRuleEnt).
type RuleEntKind int

const (
	RuleToken RuleEntKind = iota // a literal token to emit verbatim
	RuleVar                     // $name — splice a capture
	RuleCrate                    // $crate — splice the defining crate's name
	RuleLoop                    // $( ... ) sep* — re-emit once per bound iteration
)

// RuleEnt is one compiled body entry.
type RuleEnt struct {
	Kind RuleEntKind

	Tok token.Token // RuleToken

	Name string // RuleVar

	Body []RuleEnt    // RuleLoop
	Sep  *token.Token // RuleLoop
}

// Rule is one compiled `(pattern) => {body}` arm.
type Rule struct {
	Pattern []PatEnt
	Body    []RuleEnt
}

// Macro is a compiled macro_rules! definition: its rules, tried against an
// invocation in source order (spec.md §4.4 "Matching... per-rule in
// source order").
type Macro struct {
	Name  string
	Rules []Rule
}
