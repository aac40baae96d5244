package macro

import (
	"fmt"

	"github.com/rustlite/rustlite/token"
)

// expand walks a compiled rule body, splicing captures and crate-name
// references, and returns the resulting flat token sequence (spec.md
// §4.4 "Expansion"; original_source's MacroExpander::realGetToken, here
// built eagerly rather than lazily since a macro invocation's expansion
// is bounded and the parser re-enters it as an ordinary owning stream
// either way).
func expand(body []RuleEnt, caps Captures, crateName string) ([]token.Token, error) {
	var out []token.Token
	for _, ent := range body {
		switch ent.Kind {
		case RuleToken:
			out = append(out, ent.Tok)
		case RuleCrate:
			// "$crate" splices as a crate-rooted path prefix: "::" then a
			// string token naming the defining crate (original_source's
			// "*crate" hack emits exactly TOK_DOUBLE_COLON followed by a
			// queued TOK_STRING). A macro body writes the rest of the path
			// itself ("$crate::foo"), so the literal "::" before "foo"
			// comes from the body's own tokens, not from this splice.
			out = append(out,
				token.Token{Kind: token.Punct, Text: "::"},
				token.Token{Kind: token.String, Text: crateName, StrVal: crateName},
			)
		case RuleVar:
			node := caps[ent.Name]
			if node == nil {
				return nil, fmt.Errorf("macro body references unbound variable $%s", ent.Name)
			}
			if node.Reps != nil {
				return nil, fmt.Errorf("variable $%s is bound to a repetition but used outside one", ent.Name)
			}
			out = append(out, spliceCapture(node)...)
		case RuleLoop:
			toks, err := expandLoop(ent, caps, crateName)
			if err != nil {
				return nil, err
			}
			out = append(out, toks...)
		}
	}
	return out, nil
}

// spliceCapture returns the tokens a single (non-repeated) capture
// substitutes to. Fragment kinds prone to precedence corruption under a
// literal token splice ("expr") splice as one opaque token.Interpolated
// token carrying the already-parsed node instead (see CaptureNode's doc
// comment); every other kind splices its raw token span.
func spliceCapture(node *CaptureNode) []token.Token {
	if node.FragKind == "expr" && node.Node != nil {
		span := token.Span{}
		if len(node.Tokens) > 0 {
			span = token.Span{Start: node.Tokens[0].Span.Start, End: node.Tokens[len(node.Tokens)-1].Span.End}
		}
		return []token.Token{{Kind: token.Interpolated, Span: span, Frag: node.Node}}
	}
	return node.Tokens
}

// expandLoop re-emits body once per iteration bound to its captures,
// joining iterations with Sep where present (spec.md §4.4 "Nested
// repetition"; original_source's count_repeats: every name captured
// directly under body must agree on how many iterations it has).
func expandLoop(ent RuleEnt, caps Captures, crateName string) ([]token.Token, error) {
	counts := repCounts(ent.Body, caps)
	if len(counts) == 0 {
		return nil, fmt.Errorf("macro expansion repetition does not reference any repeated variable")
	}
	n := counts[0]
	for _, c := range counts[1:] {
		if c != n {
			return nil, fmt.Errorf("iteration count mismatch: sibling captures in the same repetition disagree (%d vs %d)", n, c)
		}
	}

	var out []token.Token
	for i := 0; i < n; i++ {
		if i > 0 && ent.Sep != nil {
			out = append(out, *ent.Sep)
		}
		iterCaps := projectIteration(caps, i)
		toks, err := expand(ent.Body, iterCaps, crateName)
		if err != nil {
			return nil, err
		}
		out = append(out, toks...)
	}
	return out, nil
}

// projectIteration builds the Captures view a loop body sees during its
// i'th iteration: every name bound with a Reps list at this layer is
// replaced by its i'th element; names bound outside the loop (no Reps, or
// a deeper nesting than this layer reaches) pass through unchanged.
func projectIteration(caps Captures, i int) Captures {
	view := Captures{}
	for name, node := range caps {
		if node.Reps != nil && i < len(node.Reps) {
			view[name] = node.Reps[i]
		} else {
			view[name] = node
		}
	}
	return view
}
