package macro

import (
	"fmt"

	"github.com/rustlite/rustlite/parser"
	"github.com/rustlite/rustlite/reporter"
	"github.com/rustlite/rustlite/token"
	"github.com/rustlite/rustlite/tt"
)

// silentHandler builds a reporter.Handler whose reporter swallows every
// diagnostic. Fragment sub-parses (speculative or real) run under it: a
// failed rule attempt is reported once, synthetically, by Invoke — not as
// a pile of per-fragment parser errors (spec.md §4.4 "diagnostic
// suppression during speculation").
func silentHandler() *reporter.Handler {
	return reporter.NewHandler(reporter.NewReporter(func(reporter.ErrorWithPos) error { return nil }, nil))
}

// matchSeq matches pat against s in order, recording captures into caps.
// Mirrors original_source's Macro_HandlePattern, which always calls
// Macro_TryPattern before actually consuming an entry.
func matchSeq(s *tt.Stream, pat []PatEnt, caps Captures) error {
	for _, ent := range pat {
		if ent.Kind == PatLoop {
			if err := matchLoop(s, ent, caps); err != nil {
				return err
			}
			continue
		}
		if !tryPattern(s, ent) {
			return fmt.Errorf("macro pattern mismatch: expected %s, found %s", describePatEnt(ent), describe(s.Peek()))
		}
		switch ent.Kind {
		case PatToken:
			s.Next()
		case PatFrag:
			toks, node, err := parseFragment(s, ent.FragKind)
			if err != nil {
				return err
			}
			caps[ent.Name] = &CaptureNode{FragKind: ent.FragKind, Tokens: toks, Node: node}
		}
	}
	return nil
}

// matchLoop matches a "$(...)sep{*,+,?}" entry: repeatedly try the body's
// first entry (spec.md §4.4's speculative "should this iteration start"
// check), consuming a separator between iterations once one has already
// matched.
func matchLoop(s *tt.Stream, ent PatEnt, caps Captures) error {
	if len(ent.Body) == 0 {
		return fmt.Errorf("empty repetition in macro pattern")
	}
	count := 0
	for {
		if count > 0 && ent.Sep != nil {
			// A trailing separator with nothing after it belongs to
			// whatever pattern entry follows this loop (spec.md §4.4's
			// "$(;)?" worked example), not to this repetition — so the
			// lookahead must confirm both the separator AND another
			// iteration's start before committing to consume either.
			probe := s.Clone()
			if !tryConsumeToken(probe, *ent.Sep) || !tryPattern(probe, ent.Body[0]) {
				break
			}
			tryConsumeToken(s, *ent.Sep)
		} else if !tryPattern(s, ent.Body[0]) {
			break
		}
		iter := Captures{}
		if err := matchSeq(s, ent.Body, iter); err != nil {
			return err
		}
		mergeIteration(caps, iter)
		count++
		if ent.Op == '?' && count >= 1 {
			break
		}
	}
	if ent.Op == '+' && count == 0 {
		return fmt.Errorf("expected at least one repetition of %s", describePatSeq(ent.Body))
	}
	return nil
}

func tryConsumeToken(s *tt.Stream, want token.Token) bool {
	if !tokenMatches(s.Peek(), want) {
		return false
	}
	s.Next()
	return true
}

// tryPattern reports whether ent could plausibly match next, without
// permanently consuming input (original_source's Macro_TryPattern). For
// fragment kinds where a cheap lookahead check cannot decide ("ty",
// "stmt", "pat", "expr"), this genuinely attempts the sub-parse against a
// cloned stream and discards it.
func tryPattern(s *tt.Stream, ent PatEnt) bool {
	switch ent.Kind {
	case PatToken:
		return tokenMatches(s.Peek(), ent.Tok)
	case PatLoop:
		if len(ent.Body) == 0 {
			return true
		}
		return tryPattern(s, ent.Body[0])
	case PatFrag:
		return tryFragment(s, ent.FragKind)
	}
	return false
}

func tryFragment(s *tt.Stream, kind string) bool {
	tok := s.Peek()
	switch kind {
	case "ident":
		return tok.Kind == token.Ident || tok.Kind == token.RawIdent || tok.Kind.IsKeyword()
	case "lifetime":
		return tok.Kind == token.Lifetime
	case "literal":
		return isLiteralKind(tok.Kind)
	case "tt":
		return !tok.IsEOF()
	case "block":
		return tok.Kind == token.Punct && tok.Text == "{"
	case "meta":
		return tok.Kind == token.Ident
	case "path":
		return tok.Kind == token.Ident || tok.Kind == token.KwSelf || tok.Kind == token.KwSelfType ||
			tok.Kind == token.KwSuper || tok.Kind == token.KwCrate ||
			(tok.Kind == token.Punct && tok.Text == "::")
	case "expr", "ty", "pat", "stmt":
		clone := s.Clone()
		_, _, err := parseFragment(clone, kind)
		return err == nil
	}
	return false
}

func isLiteralKind(k token.Kind) bool {
	switch k {
	case token.Integer, token.Float, token.String, token.ByteString, token.Char, token.Byte, token.KwTrue, token.KwFalse:
		return true
	}
	return false
}

// tokenMatches reports whether got is an exact match for a literal
// pattern token want: same Kind, and for the kinds whose identity is
// spelling-dependent (punctuation, identifiers, lifetimes), same
// spelling. Keyword kinds already encode their spelling in Kind.
func tokenMatches(got, want token.Token) bool {
	if got.Kind != want.Kind {
		return false
	}
	switch want.Kind {
	case token.Punct:
		return got.Text == want.Text
	case token.Ident, token.RawIdent, token.Lifetime:
		return got.Text == want.Text
	default:
		return true
	}
}

// parseFragment actually consumes kind's sub-grammar from s (non-
// speculatively), returning both the raw tokens consumed and, for kinds
// whose grammar parser.Parser already exposes, the parsed node.
func parseFragment(s *tt.Stream, kind string) ([]token.Token, any, error) {
	p := parser.New(s, silentHandler())
	s.StartRecording()
	var node any
	var err error
	switch kind {
	case "tt":
		_, err = p.ParseTT()
	case "ident":
		_, err = p.ParseIdent()
	case "lifetime":
		tok, ok := s.GetTokenIf(token.Lifetime)
		if !ok {
			err = fmt.Errorf("expected a lifetime")
		} else {
			node = tok
		}
	case "literal":
		tok := s.Peek()
		if !isLiteralKind(tok.Kind) {
			err = fmt.Errorf("expected a literal")
		} else {
			s.Next()
			node = tok
		}
	case "meta":
		node, err = p.ParseMeta()
	case "path":
		node, err = p.ParsePath(parser.PathModeNoGenerics)
	case "ty":
		node, err = p.ParseType(parser.PathModeType)
	case "pat":
		node, err = p.ParsePat(true)
	case "block":
		node, err = p.ParseBlock()
	case "stmt":
		node, err = p.ParseStmt()
	case "expr":
		node, err = p.ParseExpr()
	default:
		err = fmt.Errorf("unknown fragment specifier %q", kind)
	}
	toks := s.StopRecording()
	if err != nil {
		return nil, nil, err
	}
	return toks, node, nil
}

func describePatEnt(ent PatEnt) string {
	switch ent.Kind {
	case PatToken:
		return describe(ent.Tok)
	case PatFrag:
		return fmt.Sprintf("fragment $%s:%s", ent.Name, ent.FragKind)
	case PatLoop:
		return "a repetition"
	}
	return "a pattern entry"
}

func describePatSeq(seq []PatEnt) string {
	if len(seq) == 0 {
		return "nothing"
	}
	return describePatEnt(seq[0])
}
