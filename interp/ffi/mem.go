package ffi

import (
	"bytes"
	"fmt"

	"github.com/rustlite/rustlite/interp/memory"
)

// memcmp(a, b, n): byte-for-byte comparison, grounded directly on
// miri_extern.cpp's branch (which just forwards to libc's memcmp once
// both spans are read out).
func (h *Host) memcmp(args []memory.Value) (memory.Value, error) {
	if len(args) != 3 {
		return memory.Value{}, fmt.Errorf("memcmp: expected 3 arguments, got %d", len(args))
	}
	n, err := args[2].ReadUsize(0)
	if err != nil {
		return memory.Value{}, err
	}
	if n == 0 {
		return i32Value(0), nil
	}
	a, err := readSpan(&args[0], int(n))
	if err != nil {
		return memory.Value{}, err
	}
	b, err := readSpan(&args[1], int(n))
	if err != nil {
		return memory.Value{}, err
	}
	return i32Value(int32(bytes.Compare(a, b))), nil
}

// memchr/memrchr(s, c, n): scan forward (or, for memrchr, backward) for
// the first/last byte equal to c, returning a pointer into the same
// allocation s targets, or a null pointer if not found.
func (h *Host) memchr(args []memory.Value, reverse bool) (memory.Value, error) {
	if len(args) != 3 {
		return memory.Value{}, fmt.Errorf("memchr: expected 3 arguments, got %d", len(args))
	}
	c, err := args[1].ReadI32(0)
	if err != nil {
		return memory.Value{}, err
	}
	n, err := args[2].ReadUsize(0)
	if err != nil {
		return memory.Value{}, err
	}
	alloc, off, err := derefAllocation(&args[0])
	if err != nil {
		return memory.Value{}, err
	}
	if off < 0 || off+int(n) > len(alloc.Data) {
		return memory.Value{}, fmt.Errorf("memchr: span out of bounds")
	}
	span := alloc.Data[off : off+int(n)]

	idx := -1
	if reverse {
		for i := len(span) - 1; i >= 0; i-- {
			if span[i] == byte(c) {
				idx = i
				break
			}
		}
	} else {
		for i, b := range span {
			if b == byte(c) {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		return usizeValue(0), nil
	}
	return newPointer(alloc, uint64(off+idx)), nil
}

// strlen(s): scan for a NUL terminator, the same way readCString does,
// returning just its length rather than the decoded string.
func (h *Host) strlen(args []memory.Value) (memory.Value, error) {
	if len(args) != 1 {
		return memory.Value{}, fmt.Errorf("strlen: expected 1 argument, got %d", len(args))
	}
	s, err := readCString(&args[0])
	if err != nil {
		return memory.Value{}, err
	}
	return usizeValue(uint64(len(s))), nil
}

// readSpan reads n bytes starting at ptr's target offset, bypassing the
// usual validity bitmap check the way memcmp/memchr's raw pointer scans
// do in the original (an FFI caller is trusted to have initialized what
// it hands over).
func readSpan(ptr *memory.Value, n int) ([]byte, error) {
	alloc, off, err := derefAllocation(ptr)
	if err != nil {
		return nil, err
	}
	if off < 0 || off+n > len(alloc.Data) {
		return nil, fmt.Errorf("out-of-bounds FFI pointer span")
	}
	return alloc.Data[off : off+n], nil
}
