package macro

import (
	"fmt"

	"github.com/rustlite/rustlite/ast"
	"github.com/rustlite/rustlite/token"
)

// fragKinds enumerates the fragment specifiers a `$name:kind` capture may
// name. The original nine (tt, pat, ident, path, ty, expr, stmt, block,
// meta) come from original_source/src/macros.hpp's Type enum; literal and
// lifetime are a natural completion (modern Rust's macro_rules supports
// both) with no original_source analogue.
var fragKinds = map[string]bool{
	"tt": true, "pat": true, "ident": true, "path": true, "ty": true,
	"expr": true, "stmt": true, "block": true, "meta": true,
	"literal": true, "lifetime": true,
}

// cursor is a flat index over a rule's raw token slice. The pattern/body
// grammar only needs one token of lookahead beyond the current position
// ("$" followed by "(" vs. an identifier), so a plain index-based walker
// suffices — no putback or speculative cloning like tt.Stream provides.
type cursor struct {
	toks []token.Token
	pos  int
}

func (c *cursor) eof() bool { return c.pos >= len(c.toks) }

func (c *cursor) peek() token.Token {
	if c.eof() {
		return token.Token{Kind: token.EOF}
	}
	return c.toks[c.pos]
}

func (c *cursor) peekAt(n int) token.Token {
	if c.pos+n >= len(c.toks) {
		return token.Token{Kind: token.EOF}
	}
	return c.toks[c.pos+n]
}

func (c *cursor) next() token.Token {
	t := c.peek()
	if !c.eof() {
		c.pos++
	}
	return t
}

func isDollar(t token.Token) bool  { return t.Kind == token.Punct && t.Text == "$" }
func isOpenParen(t token.Token) bool { return t.Kind == token.Punct && t.Text == "(" }
func isCloseParen(t token.Token) bool { return t.Kind == token.Punct && t.Text == ")" }
func isColon(t token.Token) bool   { return t.Kind == token.Punct && t.Text == ":" }
func isRepOp(t token.Token) bool {
	return t.Kind == token.Punct && (t.Text == "*" || t.Text == "+" || t.Text == "?")
}

// stripOuterDelim drops the leading and trailing delimiter tokens that
// parser.ParseTT captures along with a rule's pattern/body (parser/item.go's
// parseMacroRulesItem calls ParseTT, which returns the open and close
// delimiter tokens inclusive).
func stripOuterDelim(toks []token.Token) []token.Token {
	if len(toks) < 2 {
		return nil
	}
	return toks[1 : len(toks)-1]
}

// compilePattern compiles one rule's raw pattern tokens (including the
// outer delimiter pair) into a PatEnt sequence.
func compilePattern(toks []token.Token) ([]PatEnt, error) {
	c := &cursor{toks: stripOuterDelim(toks)}
	ents, err := compilePatternSeq(c, false)
	if err != nil {
		return nil, err
	}
	if !c.eof() {
		return nil, fmt.Errorf("unexpected trailing token %v in macro pattern", describe(c.peek()))
	}
	return ents, nil
}

// compilePatternSeq compiles entries until c is exhausted or (inLoop) a
// top-level ")" closing a repetition group is reached. Since a "$(...)"
// loop's own delimiters are literal round parens, a literal "(" / ")"
// pair occurring inside the loop's body (e.g. a tuple pattern) must be
// depth-tracked against the SAME character so it isn't mistaken for the
// loop's own close (original_source's Parse_MacroRules_Cont passes the
// group's open/close token types through for exactly this reason).
func compilePatternSeq(c *cursor, inLoop bool) ([]PatEnt, error) {
	var ents []PatEnt
	depth := 0
	for !c.eof() {
		tok := c.peek()
		if inLoop && depth == 0 && isCloseParen(tok) {
			break
		}
		if isDollar(tok) {
			ent, err := compileDollarPatternEnt(c)
			if err != nil {
				return nil, err
			}
			ents = append(ents, ent)
			continue
		}
		if isOpenParen(tok) {
			depth++
		} else if isCloseParen(tok) {
			depth--
		}
		ents = append(ents, PatEnt{Kind: PatToken, Tok: c.next()})
	}
	return ents, nil
}

// compileDollarPatternEnt compiles a "$(...)loop" or "$name:kind" entry;
// called only once c.peek() is known to be "$".
func compileDollarPatternEnt(c *cursor) (PatEnt, error) {
	nt := c.peekAt(1)
	if isOpenParen(nt) {
		c.next() // "$"
		c.next() // "("
		body, err := compilePatternSeq(c, true)
		if err != nil {
			return PatEnt{}, err
		}
		if !isCloseParen(c.peek()) {
			return PatEnt{}, fmt.Errorf("unterminated $(...) in macro pattern")
		}
		c.next() // ")"
		var sep *token.Token
		op := c.peek()
		if !isRepOp(op) {
			s := op
			sep = &s
			c.next()
			op = c.peek()
		}
		if !isRepOp(op) {
			return PatEnt{}, fmt.Errorf("expected '*', '+' or '?' after $(...), found %v", describe(op))
		}
		c.next()
		return PatEnt{Kind: PatLoop, Body: body, Sep: sep, Op: op.Text[0]}, nil
	}
	if nt.Kind != token.Ident {
		return PatEnt{}, fmt.Errorf("expected a fragment name after '$', found %v", describe(nt))
	}
	c.next() // "$"
	nameTok := c.next()
	if !isColon(c.peek()) {
		return PatEnt{}, fmt.Errorf("fragment $%s needs a ':kind' specifier in a macro pattern", nameTok.Text)
	}
	c.next() // ":"
	kindTok := c.next()
	if kindTok.Kind != token.Ident || !fragKinds[kindTok.Text] {
		return PatEnt{}, fmt.Errorf("unknown fragment specifier %v", describe(kindTok))
	}
	return PatEnt{Kind: PatFrag, Name: nameTok.Text, FragKind: kindTok.Text}, nil
}

// compileBody compiles one rule's raw body tokens (including the outer
// delimiter pair) into a RuleEnt sequence.
func compileBody(toks []token.Token) ([]RuleEnt, error) {
	c := &cursor{toks: stripOuterDelim(toks)}
	ents, err := compileBodySeq(c, false)
	if err != nil {
		return nil, err
	}
	if !c.eof() {
		return nil, fmt.Errorf("unexpected trailing token %v in macro body", describe(c.peek()))
	}
	return ents, nil
}

func compileBodySeq(c *cursor, inLoop bool) ([]RuleEnt, error) {
	var ents []RuleEnt
	depth := 0
	for !c.eof() {
		tok := c.peek()
		if inLoop && depth == 0 && isCloseParen(tok) {
			break
		}
		if isDollar(tok) {
			ent, err := compileDollarBodyEnt(c)
			if err != nil {
				return nil, err
			}
			ents = append(ents, ent)
			continue
		}
		if isOpenParen(tok) {
			depth++
		} else if isCloseParen(tok) {
			depth--
		}
		ents = append(ents, RuleEnt{Kind: RuleToken, Tok: c.next()})
	}
	return ents, nil
}

// compileDollarBodyEnt compiles a "$(...)loop", "$name" or "$crate" entry;
// called only once c.peek() is known to be "$".
func compileDollarBodyEnt(c *cursor) (RuleEnt, error) {
	nt := c.peekAt(1)
	if isOpenParen(nt) {
		c.next() // "$"
		c.next() // "("
		body, err := compileBodySeq(c, true)
		if err != nil {
			return RuleEnt{}, err
		}
		if !isCloseParen(c.peek()) {
			return RuleEnt{}, fmt.Errorf("unterminated $(...) in macro body")
		}
		c.next() // ")"
		// Same "optional separator then a mandatory '*'/'+'/'?' terminator"
		// shape as a pattern loop (original_source's Parse_MacroRules_Cont
		// parses a body repetition identically to the matcher side); the
		// terminator itself carries no expansion-time meaning; the loop
		// re-emits once per iteration already bound by the matcher.
		var sep *token.Token
		op := c.peek()
		if !isRepOp(op) {
			s := op
			sep = &s
			c.next()
			op = c.peek()
		}
		if !isRepOp(op) {
			return RuleEnt{}, fmt.Errorf("expected '*', '+' or '?' after $(...), found %v", describe(op))
		}
		c.next()
		return RuleEnt{Kind: RuleLoop, Body: body, Sep: sep}, nil
	}
	if nt.Kind == token.KwCrate {
		c.next() // "$"
		c.next() // "crate"
		return RuleEnt{Kind: RuleCrate}, nil
	}
	if nt.Kind == token.Ident {
		c.next() // "$"
		nameTok := c.next()
		return RuleEnt{Kind: RuleVar, Name: nameTok.Text}, nil
	}
	return RuleEnt{}, fmt.Errorf("expected a fragment name, '(' or 'crate' after '$', found %v", describe(nt))
}

func describe(t token.Token) string {
	if t.IsEOF() {
		return "end of macro input"
	}
	if t.Kind == token.Punct {
		return fmt.Sprintf("%q", t.Text)
	}
	if t.Kind == token.Ident {
		return fmt.Sprintf("identifier %q", t.Text)
	}
	return fmt.Sprintf("token %v", t.Kind)
}

// compileMacro compiles every rule of a macro_rules! definition.
func compileMacro(name string, rules []ast.MacroRule) (*Macro, error) {
	m := &Macro{Name: name}
	for i, r := range rules {
		pat, err := compilePattern(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("macro %s, rule %d: %w", name, i, err)
		}
		body, err := compileBody(r.Body)
		if err != nil {
			return nil, fmt.Errorf("macro %s, rule %d: %w", name, i, err)
		}
		m.Rules = append(m.Rules, Rule{Pattern: pat, Body: body})
	}
	return m, nil
}
