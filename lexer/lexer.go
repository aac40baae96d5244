// Package lexer turns UTF-8 source bytes into a flat token.Token stream.
//
// Grounded on bufbuild/protocompile's parser/lexer.go (a hand-written
// recursive-descent lexer reading from a rune-at-a-time cursor into a
// yacc-style lval), adapted from protobuf's token set to the Language's
// (spec.md §4.1): numeric literals with dec/hex/oct/bin prefixes and
// typed suffixes, string/char/byte/raw-string literals with escapes,
// maximal-munch operators, edition-gated keywords, doc comments that
// expand into attribute tokens, and hygiene scope tracking.
//
// Numeric escape and literal semantics additionally follow
// original_source/src/parse/lex.cpp where spec.md is silent on an exact
// rule (see DESIGN.md's Open Question resolutions).
package lexer

import (
	"bytes"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rustlite/rustlite/internal/intern"
	"github.com/rustlite/rustlite/reporter"
	"github.com/rustlite/rustlite/token"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Lexer scans one source file into tokens. Not safe for concurrent use.
type Lexer struct {
	info     *token.FileInfo
	data     []byte
	pos      int
	edition  token.Edition
	keywords map[string]token.Kind
	handler  *reporter.Handler
	interner *intern.Table

	scope   *token.Scope
	scopes  token.ScopeFactory

	pending []token.Token // doc-comment-synthesized tokens awaiting delivery

	// prevWasAdjacentNumber is set after emitting an Integer/Float token and
	// cleared by any intervening whitespace/comment; it disambiguates
	// "1.0.0" (float, dot, integer — a tuple-index method call) from a
	// fresh float literal beginning with a dot (spec.md §4.1's note that
	// '.'-digit continuations are numeric only "in number-context").
	prevWasAdjacentNumber bool
}

// New creates a lexer over src, named filename for diagnostics, using
// edition's keyword table, interning identifiers via interner and
// reporting lexical errors through handler.
func New(filename string, src []byte, edition token.Edition, interner *intern.Table, handler *reporter.Handler) *Lexer {
	if bytes.HasPrefix(src, utf8BOM) {
		src = src[len(utf8BOM):]
	}
	return &Lexer{
		info:     token.NewFileInfo(filename, src),
		data:     src,
		edition:  edition,
		keywords: edition.Keywords(),
		handler:  handler,
		interner: interner,
		scope:    token.RootScope,
	}
}

// FileInfo returns the position-tracking state accumulated so far.
func (l *Lexer) FileInfo() *token.FileInfo { return l.info }

// PushHygiene opens a child hygiene scope (spec.md §4.1's push_hygiene
// hook), used when entering a macro expansion.
func (l *Lexer) PushHygiene() {
	l.scope = l.scopes.Child(l.scope)
}

// PopHygiene restores the parent of the current hygiene scope.
func (l *Lexer) PopHygiene() {
	if p := l.scope.Parent(); p != nil {
		l.scope = p
	}
}

func (l *Lexer) eof() bool { return l.pos >= len(l.data) }

func (l *Lexer) peekAt(off int) (byte, bool) {
	p := l.pos + off
	if p >= len(l.data) {
		return 0, false
	}
	return l.data[p], true
}

func (l *Lexer) peek() (byte, bool) { return l.peekAt(0) }

// peekRune decodes the rune at the cursor without consuming it.
func (l *Lexer) peekRune() (rune, int) {
	if l.eof() {
		return 0, 0
	}
	r, sz := utf8.DecodeRune(l.data[l.pos:])
	return r, sz
}

func (l *Lexer) advance(n int) { l.pos += n }

// Next returns the next token, draining any pending doc-comment-synthesized
// tokens first.
func (l *Lexer) Next() token.Token {
	if len(l.pending) > 0 {
		tok := l.pending[0]
		l.pending = l.pending[1:]
		return tok
	}
	return l.lex()
}

func (l *Lexer) lex() token.Token {
	for {
		if l.eof() {
			return l.emit(token.EOF, l.pos, l.pos)
		}

		c := l.data[l.pos]

		switch {
		case c == ' ' || c == '\t' || c == '\v' || c == '\f':
			l.advance(1)
			l.prevWasAdjacentNumber = false
			continue
		case c == '\r':
			// CRLF collapsed to LF for position accounting (spec.md §6).
			l.advance(1)
			l.prevWasAdjacentNumber = false
			continue
		case c == '\n':
			l.advance(1)
			l.info.AddLine(l.pos)
			l.prevWasAdjacentNumber = false
			continue
		}

		if l.pos == 0 && c == '#' {
			if b2, ok := l.peekAt(1); ok && b2 == '!' {
				if b3, ok := l.peekAt(2); !ok || b3 != '[' {
					l.skipShebang()
					continue
				}
			}
		}

		if c == '/' {
			if next, ok := l.peekAt(1); ok && next == '/' {
				if tok, handled := l.lineComment(); handled {
					return tok
				}
				continue
			}
			if next, ok := l.peekAt(1); ok && next == '*' {
				if tok, handled := l.blockComment(); handled {
					return tok
				}
				continue
			}
		}

		start := l.pos
		switch {
		case c == '\'':
			return l.lexLifetimeOrChar(start)
		case c >= '0' && c <= '9':
			tok := l.lexNumber(start)
			l.prevWasAdjacentNumber = true
			return tok
		case c == '.' && l.dotStartsNumber():
			tok := l.lexNumber(start)
			l.prevWasAdjacentNumber = true
			return tok
		case c == '"':
			return l.lexString(start, false)
		case c == 'b' && l.peekIs(1, '"'):
			l.advance(1)
			return l.lexString(start, true)
		case c == 'b' && l.peekIs(1, '\''):
			l.advance(1)
			return l.lexByteChar(start)
		case c == 'r' && l.peekIs(1, '"'):
			return l.lexRawString(start, false)
		case c == 'r' && l.peekIs(1, '#') && l.hashesThenQuote(1):
			return l.lexRawString(start, false)
		case c == 'r' && l.peekIs(1, '#') && l.peekIsIdentStart(2):
			return l.lexRawIdent(start)
		case c == 'b' && l.peekIs(1, 'r') && l.peekIs(2, '"'):
			l.advance(1)
			return l.lexRawString(start, true)
		case c == 'b' && l.peekIs(1, 'r') && l.peekIs(2, '#') && l.hashesThenQuote(2):
			l.advance(1)
			return l.lexRawString(start, true)
		case isIdentStart(c):
			return l.lexIdentOrKeyword(start)
		}

		if tok, ok := l.lexOperator(start); ok {
			l.prevWasAdjacentNumber = false
			return tok
		}

		// Unrecognized byte.
		r, sz := l.peekRune()
		if sz == 0 {
			sz = 1
		}
		l.advance(sz)
		return l.errorf(start, l.pos, "invalid character %q", r)
	}
}

func (l *Lexer) peekIs(off int, want byte) bool {
	b, ok := l.peekAt(off)
	return ok && b == want
}

// hashesThenQuote reports whether, starting at offset off, the source holds
// one or more '#' characters followed directly by '"' — the raw-string
// opening delimiter, as opposed to a raw identifier's single '#'.
func (l *Lexer) hashesThenQuote(off int) bool {
	for {
		b, ok := l.peekAt(off)
		if !ok {
			return false
		}
		if b == '"' {
			return true
		}
		if b != '#' {
			return false
		}
		off++
	}
}

func (l *Lexer) peekIsIdentStart(off int) bool {
	b, ok := l.peekAt(off)
	return ok && isIdentStart(b)
}

func (l *Lexer) dotStartsNumber() bool {
	if l.prevWasAdjacentNumber {
		return false
	}
	b, ok := l.peekAt(1)
	return ok && b >= '0' && b <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentCont(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func (l *Lexer) emit(kind token.Kind, start, end int) token.Token {
	return token.Token{Kind: kind, Span: l.info.Span(start, end)}
}

func (l *Lexer) errorf(start, end int, format string, args ...interface{}) token.Token {
	span := l.info.Span(start, end)
	_ = l.handler.HandleErrorf(span.Start, format, args...)
	tok := l.emit(token.Error, start, end)
	return tok
}

func (l *Lexer) skipShebang() {
	for !l.eof() && l.data[l.pos] != '\n' {
		l.advance(1)
	}
}

// lineComment consumes a "//..." comment. If it is a doc comment ("///" or
// "//!", but not "////"), it synthesizes the attribute token sequence
// spec.md §4.1 describes and returns the first of them; handled reports
// whether a token was produced (vs. the comment having been silently
// skipped).
func (l *Lexer) lineComment() (token.Token, bool) {
	start := l.pos
	l.advance(2) // "//"

	isOuterDoc := l.peekIs(0, '/') && !l.peekIs(1, '/')
	isInnerDoc := l.peekIs(0, '!')

	textStart := l.pos
	if isOuterDoc || isInnerDoc {
		l.advance(1)
		textStart = l.pos
	}

	for !l.eof() && l.data[l.pos] != '\n' {
		l.advance(1)
	}
	text := string(l.data[textStart:l.pos])

	if isOuterDoc {
		return l.synthesizeDoc(start, text, false), true
	}
	if isInnerDoc {
		return l.synthesizeDoc(start, text, true), true
	}
	return token.Token{}, false
}

// blockComment consumes a "/*...*/" comment, which may nest (spec.md is
// silent; original_source's lexer nests block comments, so this does too).
// "/**...*/" and "/*!...*/" are doc comments unless immediately empty
// ("/**/"), exactly as in original_source/src/parse/lex.cpp.
func (l *Lexer) blockComment() (token.Token, bool) {
	start := l.pos
	l.advance(2) // "/*"

	isOuterDoc := l.peekIs(0, '*') && !l.peekIs(1, '*') && !l.peekIs(1, '/')
	isInnerDoc := l.peekIs(0, '!')
	textStart := l.pos
	if isOuterDoc || isInnerDoc {
		l.advance(1)
		textStart = l.pos
	}

	depth := 1
	bodyEnd := l.pos
	for depth > 0 {
		if l.eof() {
			_ = l.handler.HandleErrorf(l.info.Pos(start), "block comment never terminates, unexpected EOF")
			return l.emit(token.Error, start, l.pos), true
		}
		c := l.data[l.pos]
		if c == '\n' {
			l.info.AddLine(l.pos + 1)
		}
		if c == '/' && l.peekIs(1, '*') {
			depth++
			l.advance(2)
			continue
		}
		if c == '*' && l.peekIs(1, '/') {
			depth--
			bodyEnd = l.pos
			l.advance(2)
			continue
		}
		l.advance(1)
	}

	if isOuterDoc || isInnerDoc {
		text := string(l.data[textStart:bodyEnd])
		return l.synthesizeDoc(start, text, isInnerDoc), true
	}
	return token.Token{}, false
}

// synthesizeDoc expands a doc comment into the token sequence for
// `#[doc = "text"]` (outer) or `#![doc = "text"]` (inner), queuing all but
// the first onto l.pending (spec.md §4.1: "pushed onto a small push-back
// buffer").
func (l *Lexer) synthesizeDoc(start int, text string, inner bool) token.Token {
	sp := l.info.Span(start, l.pos)
	mk := func(k token.Kind, text string) token.Token {
		tok := token.Token{Kind: k, Span: sp, Text: text}
		if k == token.Ident {
			tok.Name = l.interner.Intern(text)
			tok.Scope = l.scope
		}
		return tok
	}

	toks := []token.Token{mk(token.Punct, "#")}
	if inner {
		toks = append(toks, mk(token.Punct, "!"))
	}
	toks = append(toks,
		mk(token.Punct, "["),
		mk(token.Ident, "doc"),
		mk(token.Punct, "="),
		func() token.Token {
			t := mk(token.String, text)
			t.StrVal = text
			return t
		}(),
		mk(token.Punct, "]"),
	)

	first := toks[0]
	l.pending = append(l.pending, toks[1:]...)
	return first
}

func (l *Lexer) lexIdentOrKeyword(start int) token.Token {
	for !l.eof() {
		r, sz := l.peekRune()
		if sz == 0 || (r < 0x80 && !isIdentCont(byte(r))) {
			break
		}
		l.advance(sz)
	}
	text := string(l.data[start:l.pos])

	if kw, ok := l.keywords[text]; ok {
		return token.Token{Kind: kw, Span: l.info.Span(start, l.pos), Text: text}
	}

	id := l.interner.Intern(text)
	return token.Token{Kind: token.Ident, Span: l.info.Span(start, l.pos), Name: id, Scope: l.scope, Text: text}
}

// lexRawIdent lexes r#ident, an identifier that bypasses keyword
// reservation entirely (spec.md §4.1 "raw identifiers"): even r#fn is an
// Ident, never KwFn.
func (l *Lexer) lexRawIdent(start int) token.Token {
	l.advance(2) // "r#"
	textStart := l.pos
	for !l.eof() {
		r, sz := l.peekRune()
		if sz == 0 || (r < 0x80 && !isIdentCont(byte(r))) {
			break
		}
		l.advance(sz)
	}
	text := string(l.data[textStart:l.pos])
	id := l.interner.Intern(text)
	return token.Token{Kind: token.RawIdent, Span: l.info.Span(start, l.pos), Name: id, Scope: l.scope, Text: text}
}

func (l *Lexer) lexLifetimeOrChar(start int) token.Token {
	l.advance(1) // '\''

	// A lifetime is 'ident not immediately followed by another quote.
	if !l.eof() && isIdentStart(l.data[l.pos]) {
		save := l.pos
		for !l.eof() && isIdentCont(l.data[l.pos]) {
			l.advance(1)
		}
		if !l.peekIs(0, '\'') {
			text := string(l.data[save:l.pos])
			id := l.interner.Intern(text)
			return token.Token{Kind: token.Lifetime, Span: l.info.Span(start, l.pos), Name: id, Scope: l.scope, Text: text}
		}
		l.pos = save
	}

	return l.lexCharLiteral(start)
}

func (l *Lexer) lexCharLiteral(start int) token.Token {
	val, ok := l.readEscapedChar('\'', false)
	if !ok {
		return l.emit(token.Error, start, l.pos)
	}
	if !l.peekIs(0, '\'') {
		return l.errorf(start, l.pos, "char literal must contain exactly one character")
	}
	l.advance(1)
	tok := l.emit(token.Char, start, l.pos)
	tok.StrVal = string(val)
	return tok
}

func (l *Lexer) lexByteChar(start int) token.Token {
	l.advance(1) // opening quote
	val, ok := l.readEscapedChar('\'', true)
	if !ok {
		return l.emit(token.Error, start, l.pos)
	}
	if !l.peekIs(0, '\'') {
		return l.errorf(start, l.pos, "byte literal must contain exactly one byte")
	}
	l.advance(1)
	tok := l.emit(token.Byte, start, l.pos)
	tok.IntVal = uint64(val)
	return tok
}

// readEscapedChar reads one (possibly escaped) character terminated by
// quote, per spec.md §4.1's string-literal escape table. byteMode allows
// \x to span the full byte range and rejects unicode escapes, matching the
// byte-string semantics spec.md describes.
func (l *Lexer) readEscapedChar(quote byte, byteMode bool) (rune, bool) {
	if l.eof() {
		_ = l.handler.HandleErrorf(l.info.Pos(l.pos), "unexpected EOF in literal")
		return 0, false
	}
	c := l.data[l.pos]
	if c == '\\' {
		l.advance(1)
		return l.readEscape(byteMode)
	}
	if c == quote {
		_ = l.handler.HandleErrorf(l.info.Pos(l.pos), "empty character literal")
		return 0, false
	}
	r, sz := l.peekRune()
	l.advance(sz)
	return r, true
}

func (l *Lexer) readEscape(byteMode bool) (rune, bool) {
	if l.eof() {
		_ = l.handler.HandleErrorf(l.info.Pos(l.pos), "unexpected EOF in escape sequence")
		return 0, false
	}
	c := l.data[l.pos]
	l.advance(1)
	switch c {
	case 'n':
		return '\n', true
	case 'r':
		return '\r', true
	case 't':
		return '\t', true
	case '\\':
		return '\\', true
	case '\'':
		return '\'', true
	case '"':
		return '"', true
	case '0':
		return 0, true
	case 'x':
		maxVal := 0x7F
		if byteMode {
			maxVal = 0xFF
		}
		if l.pos+2 > len(l.data) {
			_ = l.handler.HandleErrorf(l.info.Pos(l.pos), "truncated \\x escape")
			return 0, false
		}
		hex := string(l.data[l.pos : l.pos+2])
		l.advance(2)
		v, err := strconv.ParseInt(hex, 16, 32)
		if err != nil || int(v) > maxVal {
			_ = l.handler.HandleErrorf(l.info.Pos(l.pos), "invalid \\x escape: %q", hex)
			return 0, false
		}
		return rune(v), true
	case 'u':
		if byteMode {
			_ = l.handler.HandleErrorf(l.info.Pos(l.pos), "\\u escapes are not allowed in byte literals")
			return 0, false
		}
		if !l.peekIs(0, '{') {
			_ = l.handler.HandleErrorf(l.info.Pos(l.pos), "expected '{' after \\u")
			return 0, false
		}
		l.advance(1)
		digStart := l.pos
		for !l.eof() && l.data[l.pos] != '}' {
			l.advance(1)
		}
		if l.eof() {
			_ = l.handler.HandleErrorf(l.info.Pos(l.pos), "unterminated \\u{...} escape")
			return 0, false
		}
		hex := string(l.data[digStart:l.pos])
		l.advance(1) // '}'
		v, err := strconv.ParseInt(hex, 16, 32)
		if err != nil || v > 0x10FFFF {
			_ = l.handler.HandleErrorf(l.info.Pos(l.pos), "invalid \\u{%s} escape", hex)
			return 0, false
		}
		return rune(v), true
	case '\n':
		// Line continuation: consume trailing whitespace on the next line.
		l.info.AddLine(l.pos)
		for !l.eof() && (l.data[l.pos] == ' ' || l.data[l.pos] == '\t') {
			l.advance(1)
		}
		return -1, true // sentinel: caller's string builder should skip this
	default:
		_ = l.handler.HandleErrorf(l.info.Pos(l.pos), "invalid escape sequence: \\%c", c)
		return 0, false
	}
}

func (l *Lexer) lexString(start int, byteMode bool) token.Token {
	l.advance(1) // opening quote
	var buf strings.Builder
	for {
		if l.eof() {
			_ = l.handler.HandleErrorf(l.info.Pos(start), "unterminated string literal")
			return l.emit(token.Error, start, l.pos)
		}
		c := l.data[l.pos]
		if c == '"' {
			l.advance(1)
			break
		}
		if c == '\\' {
			l.advance(1)
			r, ok := l.readEscape(byteMode)
			if !ok {
				return l.emit(token.Error, start, l.pos)
			}
			if r >= 0 {
				buf.WriteRune(r)
			}
			continue
		}
		if c == '\n' {
			l.info.AddLine(l.pos + 1)
		}
		r, sz := l.peekRune()
		l.advance(sz)
		buf.WriteRune(r)
	}

	kind := token.String
	if byteMode {
		kind = token.ByteString
	}
	tok := l.emit(kind, start, l.pos)
	tok.StrVal = buf.String()
	return tok
}

// lexRawString lexes r#"..."#-style strings: the closing delimiter is a
// quote followed by exactly as many '#' characters as opened it.
func (l *Lexer) lexRawString(start int, byteMode bool) token.Token {
	l.advance(1) // 'r'
	hashes := 0
	for l.peekIs(0, '#') {
		hashes++
		l.advance(1)
	}
	if !l.peekIs(0, '"') {
		return l.errorf(start, l.pos, "expected '\"' to begin raw string")
	}
	l.advance(1)
	bodyStart := l.pos
	closer := "\"" + strings.Repeat("#", hashes)
	idx := strings.Index(string(l.data[l.pos:]), closer)
	if idx < 0 {
		_ = l.handler.HandleErrorf(l.info.Pos(start), "unterminated raw string literal")
		l.pos = len(l.data)
		return l.emit(token.Error, start, l.pos)
	}
	body := string(l.data[bodyStart : bodyStart+idx])
	for i := 0; i < len(body); i++ {
		if body[i] == '\n' {
			l.info.AddLine(bodyStart + i + 1)
		}
	}
	l.pos = bodyStart + idx + len(closer)

	kind := token.String
	if byteMode {
		kind = token.ByteString
	}
	tok := l.emit(kind, start, l.pos)
	tok.StrVal = body
	return tok
}

// lexNumber lexes an integer or float literal starting at start, which may
// be a digit or (when dotStartsNumber permitted it) a leading '.'.
func (l *Lexer) lexNumber(start int) token.Token {
	isFloat := false
	base := 10
	digitsStart := start

	if l.peekIs(0, '0') {
		switch b, _ := l.peekAt(1); b {
		case 'x', 'X':
			base = 16
			l.advance(2)
			digitsStart = l.pos
		case 'o', 'O':
			base = 8
			l.advance(2)
			digitsStart = l.pos
		case 'b', 'B':
			base = 2
			l.advance(2)
			digitsStart = l.pos
		}
	}

	if l.peekIs(0, '.') {
		isFloat = true
	}

	consumeDigits := func() {
		for !l.eof() {
			c := l.data[l.pos]
			if c == '_' {
				l.advance(1)
				continue
			}
			if isDigitForBase(c, base) {
				l.advance(1)
				continue
			}
			break
		}
	}
	consumeDigits()

	if base == 10 && l.peekIs(0, '.') {
		if next, ok := l.peekAt(1); !ok || (next != '.' && !isIdentStart(next)) || (ok && next >= '0' && next <= '9') {
			isFloat = true
			l.advance(1)
			consumeDigits()
		}
	}

	if base == 10 && (l.peekIs(0, 'e') || l.peekIs(0, 'E')) {
		save := l.pos
		l.advance(1)
		if l.peekIs(0, '+') || l.peekIs(0, '-') {
			l.advance(1)
		}
		if !l.eof() && l.data[l.pos] >= '0' && l.data[l.pos] <= '9' {
			isFloat = true
			consumeDigits()
		} else {
			l.pos = save
		}
	}

	digits := string(l.data[digitsStart:l.pos])
	digits = strings.ReplaceAll(digits, "_", "")

	// Suffix.
	suffixStart := l.pos
	for !l.eof() && isIdentCont(l.data[l.pos]) {
		l.advance(1)
	}
	suffix := string(l.data[suffixStart:l.pos])

	if isFloat || isFloatSuffix(suffix) {
		f, err := strconv.ParseFloat(digits, 64)
		if err != nil {
			return l.errorf(start, l.pos, "invalid float literal %q: %v", digits, err)
		}
		tok := l.emit(token.Float, start, l.pos)
		tok.FloatVal = f
		tok.FloatSuffix = parseFloatSuffix(suffix)
		tok.Text = string(l.data[start:l.pos])
		return tok
	}

	v, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		return l.errorf(start, l.pos, "invalid integer literal %q: %v", digits, err)
	}
	intSuffix, ok := parseIntSuffix(suffix)
	if !ok {
		return l.errorf(start, l.pos, "unknown numeric literal suffix %q", suffix)
	}
	tok := l.emit(token.Integer, start, l.pos)
	tok.IntVal = v
	tok.IntSuffix = intSuffix
	tok.Text = string(l.data[start:l.pos])
	return tok
}

func isDigitForBase(c byte, base int) bool {
	switch base {
	case 2:
		return c == '0' || c == '1'
	case 8:
		return c >= '0' && c <= '7'
	case 16:
		return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
	default:
		return c >= '0' && c <= '9'
	}
}

func isFloatSuffix(s string) bool { return s == "f32" || s == "f64" }

func parseFloatSuffix(s string) token.FloatSuffix {
	switch s {
	case "f32":
		return token.F32Suffix
	case "f64":
		return token.F64Suffix
	default:
		return token.AnyFloatSuffix
	}
}

func parseIntSuffix(s string) (token.IntSuffix, bool) {
	switch s {
	case "":
		return token.AnySuffix, true
	case "i8":
		return token.I8Suffix, true
	case "i16":
		return token.I16Suffix, true
	case "i32":
		return token.I32Suffix, true
	case "i64":
		return token.I64Suffix, true
	case "i128":
		return token.I128Suffix, true
	case "isize":
		return token.ISizeSuffix, true
	case "u8":
		return token.U8Suffix, true
	case "u16":
		return token.U16Suffix, true
	case "u32":
		return token.U32Suffix, true
	case "u64":
		return token.U64Suffix, true
	case "u128":
		return token.U128Suffix, true
	case "usize":
		return token.USizeSuffix, true
	default:
		return token.AnySuffix, false
	}
}

func (l *Lexer) lexOperator(start int) (token.Token, bool) {
	end := start + 4
	if end > len(l.data) {
		end = len(l.data)
	}
	spelling, ok := matchOperator(string(l.data[start:end]))
	if !ok {
		return token.Token{}, false
	}
	l.advance(len(spelling))
	return token.Token{Kind: token.Punct, Span: l.info.Span(start, l.pos), Text: spelling}, true
}
