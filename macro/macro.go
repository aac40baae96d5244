package macro

import (
	"fmt"

	"github.com/rustlite/rustlite/ast"
	"github.com/rustlite/rustlite/token"
	"github.com/rustlite/rustlite/tt"
)

// Compile compiles a macro_rules! definition's raw rules (as captured by
// parser.parseMacroRulesItem) into a Macro ready for Invoke.
func Compile(name string, rules []ast.MacroRule) (*Macro, error) {
	return compileMacro(name, rules)
}

// Invoke matches invocation — the flat tokens of a macro call's delimited
// argument list, NOT including the outer delimiter pair — against m's
// rules in source order (spec.md §4.4 "Matching... per-rule in source
// order"), and expands the first rule that matches.
//
// crateName supplies the spelling spliced for "$crate"; edition selects
// the keyword table used while re-entering fragment sub-grammars on a
// fresh owning stream over invocation.
func (m *Macro) Invoke(invocation []token.Token, crateName string, edition token.Edition) ([]token.Token, error) {
	if len(m.Rules) == 0 {
		return nil, fmt.Errorf("macro `%s!` has no rules", m.Name)
	}
	for _, rule := range m.Rules {
		s := tt.NewOwningStream(invocation, edition)
		caps := Captures{}
		if err := matchSeq(s, rule.Pattern, caps); err != nil {
			continue
		}
		if !s.Peek().IsEOF() {
			// Trailing, unconsumed input: the rule's pattern matched a
			// prefix but not the whole invocation (spec.md §4.4 "EOF-
			// after-pattern requirement").
			continue
		}
		return expand(rule.Body, caps, crateName)
	}
	return nil, fmt.Errorf("no rule of macro `%s!` matched the given invocation", m.Name)
}
