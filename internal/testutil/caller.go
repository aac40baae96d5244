// Package testutil contains small helpers shared by this repository's test
// harnesses.
package testutil

import (
	"path/filepath"
	"runtime"
	"testing"
)

// CallerDirWithSkip returns the directory of the source file skip frames
// above the caller of this function. skip == 0 means "the caller's own
// directory".
func CallerDirWithSkip(t *testing.T, skip int) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(skip + 1)
	if !ok {
		t.Fatal("testutil: could not determine caller")
	}
	return filepath.Dir(file)
}
