// Package tt implements token trees and the token-tree streams the macro
// engine and parser substream over: a balanced group of tokens (or nested
// groups) carrying its own delimiter, edition and hygiene scope.
//
// Grounded on spec.md §3 "Token tree" and §4.2's unified TokenStream
// contract, adapted from the teacher's lexer/parser cursor style
// (lexer/lexer.go, parser/parser.go) generalized from a flat token cursor
// to one that can recurse into a bracketed sub-sequence without copying it.
package tt

import (
	"github.com/rustlite/rustlite/token"
)

// Delim names a token tree group's bracket kind.
type Delim int

const (
	NoDelim Delim = iota
	Paren         // ( )
	Bracket       // [ ]
	Brace         // { }
)

func (d Delim) Open() string {
	switch d {
	case Paren:
		return "("
	case Bracket:
		return "["
	case Brace:
		return "{"
	default:
		return ""
	}
}

func (d Delim) Close() string {
	switch d {
	case Paren:
		return ")"
	case Bracket:
		return "]"
	case Brace:
		return "}"
	default:
		return ""
	}
}

func DelimFor(open string) (Delim, bool) {
	switch open {
	case "(":
		return Paren, true
	case "[":
		return Bracket, true
	case "{":
		return Brace, true
	default:
		return NoDelim, false
	}
}

func closerFor(open string) (string, bool) {
	switch open {
	case "(":
		return ")", true
	case "[":
		return "]", true
	case "{":
		return "}", true
	default:
		return "", false
	}
}

// TT is a single node of a token tree: either a leaf token, or a delimited
// group of child TTs. Invariant (spec.md §3): a group's Children never
// includes the opening/closing delimiter tokens themselves.
type TT struct {
	Leaf     token.Token
	IsGroup  bool
	Delim    Delim
	Edition  token.Edition
	Scope    *token.Scope
	Span     token.Span
	Children []TT
}

// Reader builds a flat []TT by repeatedly pulling tokens from src (any
// token.Token source — typically *lexer.Lexer) and recursing into
// delimiter groups.
type Reader struct {
	next func() token.Token
	ed   token.Edition
}

// NewReader wraps a token-producing function (lexer.Lexer.Next has this
// shape) into a Reader that can assemble it into token trees.
func NewReader(edition token.Edition, next func() token.Token) *Reader {
	return &Reader{next: next, ed: edition}
}

// ReadAll consumes tokens from the underlying source until EOF, returning
// the resulting sequence of top-level token trees.
func (r *Reader) ReadAll() ([]TT, error) {
	toks, err := r.readUntil("")
	return toks, err
}

// readUntil reads TTs until it sees a Punct token matching closer (or EOF
// if closer is empty), consuming the closer but not including it in the
// result.
func (r *Reader) readUntil(closer string) ([]TT, error) {
	var out []TT
	for {
		tok := r.next()
		if tok.IsEOF() {
			if closer != "" {
				return out, &UnbalancedError{Span: tok.Span, Want: closer}
			}
			return out, nil
		}
		if tok.Kind == token.Punct && tok.Text == closer && closer != "" {
			return out, nil
		}
		if tok.Kind == token.Punct {
			if delim, ok := DelimFor(tok.Text); ok {
				closeSpelling, _ := closerFor(tok.Text)
				children, err := r.readUntil(closeSpelling)
				if err != nil {
					return out, err
				}
				out = append(out, TT{
					IsGroup:  true,
					Delim:    delim,
					Edition:  r.ed,
					Scope:    tok.Scope,
					Span:     tok.Span,
					Children: children,
				})
				continue
			}
		}
		out = append(out, TT{Leaf: tok, Edition: r.ed, Scope: tok.Scope, Span: tok.Span})
	}
}

// UnbalancedError reports a token tree group that never closed.
type UnbalancedError struct {
	Span token.Span
	Want string
}

func (e *UnbalancedError) Error() string {
	return e.Span.String() + ": unbalanced token tree, expected closing " + e.Want
}

// Flatten appends every leaf token in tts, in order, to out (used by the
// macro engine to re-lex a spliced fragment, and by AST dumping). Group
// delimiters are re-synthesized as Punct tokens so the result round-trips.
func Flatten(tts []TT, out []token.Token) []token.Token {
	for _, t := range tts {
		if !t.IsGroup {
			out = append(out, t.Leaf)
			continue
		}
		out = append(out, token.Token{Kind: token.Punct, Span: t.Span, Text: t.Delim.Open()})
		out = Flatten(t.Children, out)
		out = append(out, token.Token{Kind: token.Punct, Span: t.Span, Text: t.Delim.Close()})
	}
	return out
}
