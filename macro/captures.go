package macro

import "github.com/rustlite/rustlite/token"

// CaptureNode is one binding in the per-invocation capture table (spec.md
// §4.4; original_source's ParameterMappings collapsed into a tree rather
// than a layer/offset index, which is more natural in Go than replaying
// mrustc's C++ iterator bookkeeping).
//
// A leaf node (Reps == nil) is a single fragment value: its raw token
// span, plus — for fragment kinds prone to being corrupted by literal
// re-splicing ("expr", spec.md §4.4's worked example aside, is the only
// one a flat token splice can silently re-associate: "$x * 2" substituting
// an "a + b" capture must not become "a + b * 2") — the already-parsed AST
// node, spliced back as a single opaque token.Interpolated token instead
// of raw tokens. Other fragment kinds always splice their raw Tokens.
//
// A node with Reps != nil stands for a name captured underneath a
// "$(...)*" repetition: one child per iteration, recursively structured
// the same way for nested repetitions.
type CaptureNode struct {
	FragKind string
	Tokens   []token.Token
	Node     any

	Reps []*CaptureNode
}

// Captures is the binding table built while matching one rule's pattern
// against an invocation.
type Captures map[string]*CaptureNode

// mergeIteration folds one loop iteration's freshly bound captures into
// the parent's Reps lists, so a capture's full identity is (name, path of
// iteration indices) without ever materializing that path explicitly.
func mergeIteration(parent Captures, iter Captures) {
	for name, node := range iter {
		parentNode := parent[name]
		if parentNode == nil {
			parentNode = &CaptureNode{}
			parent[name] = parentNode
		}
		parentNode.Reps = append(parentNode.Reps, node)
	}
}

// repCounts returns the distinct repetition counts of the repeated names
// referenced directly in body (spec.md §4.4 "Nested repetition";
// original_source's count_repeats); names inside a nested loop are not
// counted. A body loop must refer to exactly one count, so every repeated
// name in it must agree; when nothing in it came from a repetition the
// result is empty.
func repCounts(body []RuleEnt, caps Captures) []int {
	var counts []int
	seen := map[int]bool{}
	var walk func([]RuleEnt)
	walk = func(ents []RuleEnt) {
		for _, e := range ents {
			switch e.Kind {
			case RuleVar:
				if node := caps[e.Name]; node != nil && node.Reps != nil {
					n := len(node.Reps)
					if !seen[n] {
						seen[n] = true
						counts = append(counts, n)
					}
				}
			case RuleLoop:
				// A nested loop's own repetition count comes from names
				// bound two (or more) layers down; it does not constrain
				// this layer by itself.
			}
		}
	}
	walk(body)
	return counts
}
