package reporter

import (
	"errors"
	"fmt"

	"github.com/rustlite/rustlite/token"
)

// ErrInvalidSource is a sentinel error returned when a phase accumulates
// diagnostics but its configured ErrorReporter always returns nil, meaning
// the caller still needs to know something failed.
var ErrInvalidSource = errors.New("rustlite: invalid source")

// ErrorWithPos is an error carrying the source position that caused it.
type ErrorWithPos interface {
	error
	GetPosition() token.Pos
	Unwrap() error
}

func Error(pos token.Pos, err error) ErrorWithPos {
	return errorWithSourcePos{pos: pos, underlying: err}
}

func Errorf(pos token.Pos, format string, args ...interface{}) ErrorWithPos {
	return errorWithSourcePos{pos: pos, underlying: fmt.Errorf(format, args...)}
}

type errorWithSourcePos struct {
	underlying error
	pos        token.Pos
}

func (e errorWithSourcePos) Error() string {
	return fmt.Sprintf("%s: %v", e.GetPosition(), e.underlying)
}

func (e errorWithSourcePos) GetPosition() token.Pos { return e.pos }

func (e errorWithSourcePos) Unwrap() error { return e.underlying }

var _ ErrorWithPos = errorWithSourcePos{}
