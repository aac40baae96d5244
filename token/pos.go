// Package token defines the position, interning, hygiene and lexical-token
// primitives shared by the lexer, parser, macro engine and IR loader.
//
// Grounded on bufbuild/protocompile's ast.FileInfo (ast/file_info.go): a
// FileInfo accumulates line-start offsets and token spans as a lexer scans,
// and converts a byte offset into a human Pos only on demand.
package token

import (
	"fmt"

	"github.com/rivo/uniseg"
)

// Pos is a single point in a source file: filename, 1-based line, 1-based
// column. Column is measured in grapheme clusters, not bytes or runes, so
// that diagnostics line up in a terminal even across multi-byte identifiers.
type Pos struct {
	File   string
	Line   int
	Column int
}

func (p Pos) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Span is a half-open range [Start, End) of source positions, plus the byte
// offsets that produced it (needed to slice back into file contents, e.g.
// for diagnostics that quote the offending text).
type Span struct {
	Start, End         Pos
	StartOff, EndOff int
}

func (s Span) String() string {
	if s.Start.Line == s.End.Line {
		return fmt.Sprintf("%s-%d", s.Start, s.End.Column)
	}
	return fmt.Sprintf("%s-%s", s.Start, s.End)
}

// FileInfo accumulates position bookkeeping for a single source file as a
// lexer scans it byte by byte. It never has to be asked "where am I" more
// than once per token, which keeps lexing itself allocation-free.
type FileInfo struct {
	name string
	data []byte
	// lineOffsets[i] is the byte offset at which line i+1 (1-based) begins.
	// lineOffsets[0] is always 0.
	lineOffsets []int
}

// NewFileInfo creates file position tracking for the given file contents.
func NewFileInfo(filename string, contents []byte) *FileInfo {
	return &FileInfo{name: filename, data: contents, lineOffsets: []int{0}}
}

func (f *FileInfo) Name() string { return f.name }

func (f *FileInfo) Data() []byte { return f.data }

// AddLine records that a new line begins at the given offset. Called by the
// lexer every time it consumes a '\n' (the lexer skips every '\r' without
// recording a line, so CRLF counts as a single line break).
func (f *FileInfo) AddLine(offset int) {
	if offset < 0 || offset > len(f.data) {
		panic(fmt.Sprintf("token: invalid line offset %d for file of length %d", offset, len(f.data)))
	}
	last := f.lineOffsets[len(f.lineOffsets)-1]
	if offset <= last {
		panic(fmt.Sprintf("token: line offsets must be strictly increasing (got %d after %d)", offset, last))
	}
	f.lineOffsets = append(f.lineOffsets, offset)
}

// Pos converts a byte offset into this file into a human Pos.
func (f *FileInfo) Pos(offset int) Pos {
	line := searchLine(f.lineOffsets, offset)
	lineStart := f.lineOffsets[line]
	col := 1
	if lineStart < len(f.data) {
		end := offset
		if end > len(f.data) {
			end = len(f.data)
		}
		col = 1 + uniseg.GraphemeClusterCount(string(f.data[lineStart:end]))
	}
	return Pos{File: f.name, Line: line + 1, Column: col}
}

// Span converts a [start, end) byte range into a Span.
func (f *FileInfo) Span(start, end int) Span {
	return Span{Start: f.Pos(start), End: f.Pos(end), StartOff: start, EndOff: end}
}

// searchLine returns the index i such that lineOffsets[i] <= offset and
// (i is the last index, or lineOffsets[i+1] > offset).
func searchLine(lineOffsets []int, offset int) int {
	lo, hi := 0, len(lineOffsets)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if lineOffsets[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}
