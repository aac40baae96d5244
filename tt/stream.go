package tt

import "github.com/rustlite/rustlite/token"

// Source is the minimal token-producing contract a Stream can sit on top
// of: anything that can hand back its next token, one at a time, until
// EOF. *lexer.Lexer satisfies this.
type Source interface {
	Next() token.Token
}

// Stream is the unified token-stream abstraction spec.md §4.2 describes:
// a single-token push-back cache plus a bounded (≤3) lookahead buffer,
// sitting on top of either a live lexer (a "borrowing" stream reading
// straight from source text) or a flattened token tree (an "owning"
// stream re-entering a macro's captured TT). Both flavors share this one
// implementation since, from a token-at-a-time point of view, they are
// identical: only how tokens are produced (read fresh vs. replay a slice)
// differs, and that is hidden behind Source.
type Stream struct {
	src Source

	// putback holds at most one token ungotten by the caller (e.g. the
	// parser realizing a "<<" needs to be split back into "<" "<").
	putback    *token.Token
	hasPutback bool

	// lookahead is the bounded (N≤3) peek buffer; index 0 is the next
	// token after whatever is in putback.
	lookahead []token.Token

	lastHygiene *token.Scope
	lastEdition token.Edition

	// recording, while non-nil, accumulates every token handed out by
	// Next (spec.md §4.4's fragment capture: "the matcher records
	// exactly the tokens a sub-grammar invocation consumed").
	recording *[]token.Token
}

const maxLookahead = 3

// NewStream wraps src (typically *lexer.Lexer) as a Stream.
func NewStream(src Source, edition token.Edition) *Stream {
	return &Stream{src: src, lastEdition: edition}
}

// NewOwningStream builds a Stream that replays a fixed, already-flattened
// token sequence — used when the macro engine hands a captured fragment's
// tokens back to a sub-grammar, or when re-entering an expansion's output.
func NewOwningStream(toks []token.Token, edition token.Edition) *Stream {
	return &Stream{src: &sliceSource{toks: toks}, lastEdition: edition}
}

type sliceSource struct {
	toks []token.Token
	pos  int
}

func (s *sliceSource) Next() token.Token {
	if s.pos >= len(s.toks) {
		if len(s.toks) > 0 {
			last := s.toks[len(s.toks)-1]
			return token.Token{Kind: token.EOF, Span: last.Span}
		}
		return token.Token{Kind: token.EOF}
	}
	tok := s.toks[s.pos]
	s.pos++
	return tok
}

func (s *Stream) pull() token.Token {
	tok := s.src.Next()
	if tok.Scope != nil {
		s.lastHygiene = tok.Scope
	}
	return tok
}

// Next returns the next token, draining putback then lookahead before
// pulling from the underlying source.
func (s *Stream) Next() token.Token {
	tok := s.next()
	if s.recording != nil {
		*s.recording = append(*s.recording, tok)
	}
	return tok
}

func (s *Stream) next() token.Token {
	if s.hasPutback {
		tok := *s.putback
		s.hasPutback = false
		s.putback = nil
		return tok
	}
	if len(s.lookahead) > 0 {
		tok := s.lookahead[0]
		s.lookahead = s.lookahead[1:]
		return tok
	}
	return s.pull()
}

// StartRecording begins accumulating every token this Stream hands out
// via Next (including indirectly, through GetTokenIf/GetPunctIf), until
// the matching StopRecording. Recordings do not nest; starting a new one
// discards any in progress.
func (s *Stream) StartRecording() {
	s.recording = &[]token.Token{}
}

// StopRecording ends the current recording and returns the tokens
// accumulated since StartRecording. Returns nil if no recording was
// active.
func (s *Stream) StopRecording() []token.Token {
	if s.recording == nil {
		return nil
	}
	toks := *s.recording
	s.recording = nil
	return toks
}

// Peek returns the next token without consuming it.
func (s *Stream) Peek() token.Token { return s.Lookahead(0) }

// Lookahead returns the token i positions ahead (0 = next token to be
// returned by Next), filling the lookahead buffer from the source as
// needed. i must be < maxLookahead.
func (s *Stream) Lookahead(i int) token.Token {
	if s.hasPutback {
		if i == 0 {
			return *s.putback
		}
		i--
	}
	for len(s.lookahead) <= i {
		s.lookahead = append(s.lookahead, s.pull())
	}
	return s.lookahead[i]
}

// Putback ungets tok, so the next call to Next returns it again. Only one
// token of putback is supported at a time (spec.md §4.2); a second
// Putback before an intervening Next overwrites the first and is a
// programmer error in any caller, since it would lose a token.
func (s *Stream) Putback(tok token.Token) {
	s.putback = &tok
	s.hasPutback = true
	if s.recording != nil && len(*s.recording) > 0 {
		*s.recording = (*s.recording)[:len(*s.recording)-1]
	}
}

// GetTokenIf consumes and returns the next token if its Kind is kind,
// otherwise leaves the stream unchanged and reports false.
func (s *Stream) GetTokenIf(kind token.Kind) (token.Token, bool) {
	tok := s.Peek()
	if tok.Kind != kind {
		return token.Token{}, false
	}
	return s.Next(), true
}

// GetPunctIf consumes and returns the next token if it is a Punct token
// spelled text.
func (s *Stream) GetPunctIf(text string) (token.Token, bool) {
	tok := s.Peek()
	if tok.Kind != token.Punct || tok.Text != text {
		return token.Token{}, false
	}
	return s.Next(), true
}

// Hygiene returns the hygiene scope of the most recently produced token,
// tracking across putback/lookahead exactly as spec.md §4.2 describes
// ("track the token most recently produced so the parser sees the scope
// that was active when the token was lexed").
func (s *Stream) Hygiene() *token.Scope { return s.lastHygiene }

// Edition returns the edition in effect for this stream.
func (s *Stream) Edition() token.Edition { return s.lastEdition }

// Clone returns an independent copy of s's cursor state (putback buffer,
// lookahead buffer, hygiene) suitable for speculative parsing (spec.md
// §4.4/§9). The copy and s read the same token sequence independently, so
// an abandoned copy leaves s where it was.
//
// An owning stream's *sliceSource is cloned by value. A stream over a live
// source (such as a lexer) is first switched to a *sliceSource holding all
// of that source's remaining tokens, up to and including EOF.
func (s *Stream) Clone() *Stream {
	clone := &Stream{
		lastHygiene: s.lastHygiene,
		lastEdition: s.lastEdition,
	}
	if s.hasPutback {
		tok := *s.putback
		clone.putback = &tok
		clone.hasPutback = true
	}
	clone.lookahead = append([]token.Token(nil), s.lookahead...)

	ss, ok := s.src.(*sliceSource)
	if !ok {
		ss = &sliceSource{}
		for {
			tok := s.src.Next()
			ss.toks = append(ss.toks, tok)
			if tok.IsEOF() {
				break
			}
		}
		s.src = ss
	}
	cp := *ss
	clone.src = &cp
	return clone
}

// Adopt replaces s's cursor state with other's — used after a speculative
// Clone succeeds, to commit its consumed position back onto the original
// stream handle the caller holds.
func (s *Stream) Adopt(other *Stream) {
	*s = *other
}
