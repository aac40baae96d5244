package module

import (
	"fmt"
	"strconv"
	"strings"
)

// tokKind classifies a single IR token (module_tree's TokenClass).
type tokKind int

const (
	tokEOF tokKind = iota
	tokSymbol
	tokIdent
	tokInteger
	tokReal
	tokString
)

// tok is one lexed token, carrying both its text and (for literals) its
// decoded value.
type tok struct {
	kind tokKind
	text string // symbol spelling, identifier name, or decoded string value
	ival uint64
	fval float64
	line int
}

func (t tok) integer() uint64 { return t.ival }

// irLexer scans the line-oriented textual IR format into a single-token
// lookahead stream (module_tree.hpp's Lexer — a separate, much simpler
// lexer than the source-language one in package lexer, exactly matching
// spec.md §4.5's "bespoke lexer/parser separate from the source-language
// lexer").
type irLexer struct {
	file string
	data []byte
	pos  int
	line int

	cur    tok
	curSet bool
}

func newIRLexer(file string, data []byte) *irLexer {
	return &irLexer{file: file, data: data, line: 1}
}

func (l *irLexer) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("%s:%d: %s", l.file, l.line, fmt.Sprintf(format, args...))
}

// next returns the current lookahead token without consuming it, scanning
// it first if necessary.
func (l *irLexer) next() (tok, error) {
	if !l.curSet {
		t, err := l.scan()
		if err != nil {
			return tok{}, err
		}
		l.cur = t
		l.curSet = true
	}
	return l.cur, nil
}

// consume returns the current lookahead token and advances past it.
func (l *irLexer) consume() (tok, error) {
	t, err := l.next()
	if err != nil {
		return tok{}, err
	}
	l.curSet = false
	return t, nil
}

func (l *irLexer) is(s string) bool {
	t, err := l.next()
	return err == nil && (t.kind == tokSymbol || t.kind == tokIdent) && t.text == s
}

func (l *irLexer) isClass(k tokKind) bool {
	t, err := l.next()
	return err == nil && t.kind == k
}

func (l *irLexer) consumeIf(s string) (bool, error) {
	if l.is(s) {
		if _, err := l.consume(); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func (l *irLexer) check(s string) error {
	if !l.is(s) {
		t, _ := l.next()
		return l.errorf("expected %q, found %q", s, t.text)
	}
	return nil
}

func (l *irLexer) checkClass(k tokKind, what string) error {
	if !l.isClass(k) {
		t, _ := l.next()
		return l.errorf("expected %s, found %q", what, t.text)
	}
	return nil
}

func (l *irLexer) checkConsume(s string) error {
	if err := l.check(s); err != nil {
		return err
	}
	_, err := l.consume()
	return err
}

func (l *irLexer) peekByte() (byte, bool) {
	if l.pos >= len(l.data) {
		return 0, false
	}
	return l.data[l.pos], true
}

func (l *irLexer) scan() (tok, error) {
	for {
		b, ok := l.peekByte()
		if !ok {
			return tok{kind: tokEOF}, nil
		}
		switch {
		case b == '\n':
			l.line++
			l.pos++
			continue
		case b == ' ' || b == '\t' || b == '\r':
			l.pos++
			continue
		case b == '/' && l.pos+1 < len(l.data) && l.data[l.pos+1] == '/':
			for l.pos < len(l.data) && l.data[l.pos] != '\n' {
				l.pos++
			}
			continue
		}
		break
	}

	b, _ := l.peekByte()
	switch {
	case isIdentStart(b):
		start := l.pos
		for l.pos < len(l.data) && isIdentCont(l.data[l.pos]) {
			l.pos++
		}
		return tok{kind: tokIdent, text: string(l.data[start:l.pos]), line: l.line}, nil

	case b >= '0' && b <= '9':
		return l.scanNumber()

	case b == '"':
		return l.scanString()

	case b == ':' && l.pos+1 < len(l.data) && l.data[l.pos+1] == ':':
		l.pos += 2
		return tok{kind: tokSymbol, text: "::", line: l.line}, nil

	case b == '-' && l.pos+1 < len(l.data) && l.data[l.pos+1] == '>':
		l.pos += 2
		return tok{kind: tokSymbol, text: "->", line: l.line}, nil

	default:
		l.pos++
		return tok{kind: tokSymbol, text: string(b), line: l.line}, nil
	}
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isIdentCont(b byte) bool {
	return isIdentStart(b) || (b >= '0' && b <= '9')
}

// scanNumber lexes an unsigned integer or (if its digits are followed by
// '.' and another digit) a floating-point literal; exponents are not
// scanned. The IR format carries no numeric
// suffixes of its own — a following core-type name (parse_core_type) is a
// separate token, unlike the source-language lexer's fused suffixes.
func (l *irLexer) scanNumber() (tok, error) {
	start := l.pos
	for l.pos < len(l.data) && l.data[l.pos] >= '0' && l.data[l.pos] <= '9' {
		l.pos++
	}
	isFloat := false
	if l.pos+1 < len(l.data) && l.data[l.pos] == '.' && l.data[l.pos+1] >= '0' && l.data[l.pos+1] <= '9' {
		isFloat = true
		l.pos++
		for l.pos < len(l.data) && l.data[l.pos] >= '0' && l.data[l.pos] <= '9' {
			l.pos++
		}
	}
	text := string(l.data[start:l.pos])
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return tok{}, l.errorf("invalid real literal %q: %w", text, err)
		}
		return tok{kind: tokReal, text: text, fval: f, line: l.line}, nil
	}
	v, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return tok{}, l.errorf("invalid integer literal %q: %w", text, err)
	}
	return tok{kind: tokInteger, text: text, ival: v, line: l.line}, nil
}

// scanString lexes a double-quoted string with backslash escapes for \"
// and \\ (module_tree.cpp's strings carry crate names, symbol names and
// packed variant-tag byte patterns — no Unicode escapes are needed).
func (l *irLexer) scanString() (tok, error) {
	startLine := l.line
	l.pos++ // opening quote
	var sb strings.Builder
	for {
		if l.pos >= len(l.data) {
			return tok{}, l.errorf("unterminated string literal")
		}
		b := l.data[l.pos]
		if b == '"' {
			l.pos++
			return tok{kind: tokString, text: sb.String(), line: startLine}, nil
		}
		if b == '\\' && l.pos+1 < len(l.data) {
			l.pos++
			switch l.data[l.pos] {
			case '"':
				sb.WriteByte('"')
			case '\\':
				sb.WriteByte('\\')
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '0':
				sb.WriteByte(0)
			default:
				sb.WriteByte(l.data[l.pos])
			}
			l.pos++
			continue
		}
		if b == '\n' {
			l.line++
		}
		sb.WriteByte(b)
		l.pos++
	}
}
