package macro_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/rustlite/rustlite/ast"
	"github.com/rustlite/rustlite/internal/golden"
	"github.com/rustlite/rustlite/macro"
	"github.com/rustlite/rustlite/token"
)

// renderTokens joins a flat token sequence's spellings with a single
// space, giving a deterministic text rendering of a macro expansion.
// Fixtures must stick to fragment kinds that splice raw tokens with Text
// populated ("tt", "ident", "literal", ...); an "expr" capture splices as
// an opaque token.Interpolated carrying an unrendered *ast.Expr instead
// (expand.go's spliceCapture), which this renderer cannot print.
func renderTokens(toks []token.Token) string {
	parts := make([]string, len(toks))
	for i, tok := range toks {
		parts[i] = tok.Text
	}
	return strings.Join(parts, " ")
}

// stripDelims drops the outer delimiter pair parser.parseMacroCallItem
// captures along with a macro call's argument tokens, mirroring
// macro_test.go's invocationArgs treatment of ast.Expr's MacroArgs.
func stripDelims(toks []token.Token) []token.Token {
	if len(toks) < 2 {
		return nil
	}
	return toks[1 : len(toks)-1]
}

// TestMacroExpansionGolden compiles every macro_rules! definition in a
// fixture file and expands every top-level macro invocation that follows
// it against the matching definition, comparing one rendered expansion
// per line, in invocation order, against a checked-in golden file
// (internal/golden.Corpus; see DESIGN.md's internal/golden entry).
func TestMacroExpansionGolden(t *testing.T) {
	corpus := golden.Corpus{
		Root:       "testdata/golden",
		Extensions: []string{"macro"},
		Outputs:    []golden.Output{{Extension: "expanded"}},
	}
	corpus.Run(t, func(t *testing.T, path, text string, outputs []string) {
		p, errs := newParser(t, text)
		f, err := p.ParseFile()
		if err != nil {
			t.Fatalf("ParseFile(%s): %v", path, err)
		}
		if len(*errs) > 0 {
			t.Fatalf("ParseFile(%s): unexpected errors %v", path, *errs)
		}

		macros := map[string]*macro.Macro{}
		var lines []string
		for _, item := range f.Items {
			switch item.Kind {
			case ast.ItemMacroDef:
				m, err := macro.Compile(item.Name.Text, item.MacroRules)
				if err != nil {
					t.Fatalf("Compile(%s): %v", item.Name.Text, err)
				}
				macros[item.Name.Text] = m

			case ast.ItemMacroCall:
				comps := item.MacroCallPath.Components
				name := comps[len(comps)-1].Name.Text
				m, ok := macros[name]
				if !ok {
					t.Fatalf("invocation of undefined macro %q", name)
				}
				expanded, err := m.Invoke(stripDelims(item.MacroCallArgs), "golden_test", token.Edition2021)
				if err != nil {
					t.Fatalf("Invoke(%s!): %v", name, err)
				}
				lines = append(lines, fmt.Sprintf("%s! => %s", name, renderTokens(expanded)))
			}
		}
		outputs[0] = strings.Join(lines, "\n") + "\n"
	})
}
