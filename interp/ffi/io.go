package ffi

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"github.com/rustlite/rustlite/interp/memory"
)

// writeFd implements write(fd, buf, count): fd is accepted but ignored —
// every write shows up on h.Stdout (there being no separate fd table to
// route 1 vs 2 through) — count bytes are read out of buf and handed to
// the host writer, short writes reported back faithfully.
func (h *Host) writeFd(args []memory.Value) (memory.Value, error) {
	if len(args) != 3 {
		return memory.Value{}, fmt.Errorf("write: expected 3 arguments, got %d", len(args))
	}
	n, err := args[2].ReadUsize(0)
	if err != nil {
		return memory.Value{}, err
	}
	buf, err := readSpan(&args[1], int(n))
	if err != nil {
		return memory.Value{}, err
	}
	if h.Stdout == nil {
		return usizeValue(uint64(len(buf))), nil
	}
	written, err := h.Stdout.Write(buf)
	if err != nil {
		return memory.Value{}, err
	}
	return usizeValue(uint64(written)), nil
}

// readFd implements read(fd, buf, count): mirrors writeFd but in the
// other direction; with no Stdin configured it reports end-of-file
// (zero bytes read) rather than blocking forever.
func (h *Host) readFd(args []memory.Value) (memory.Value, error) {
	if len(args) != 3 {
		return memory.Value{}, fmt.Errorf("read: expected 3 arguments, got %d", len(args))
	}
	n, err := args[2].ReadUsize(0)
	if err != nil {
		return memory.Value{}, err
	}
	if h.Stdin == nil || n == 0 {
		return usizeValue(0), nil
	}
	tmp := make([]byte, n)
	got, err := h.Stdin.Read(tmp)
	if err != nil && got == 0 {
		return usizeValue(0), nil
	}
	dst, err := args[1].Deref(0, got)
	if err != nil {
		return memory.Value{}, err
	}
	if err := dst.WriteBytes(0, tmp[:got]); err != nil {
		return memory.Value{}, err
	}
	return usizeValue(uint64(got)), nil
}

// getStdHandle/WriteConsoleW back libstd's Windows console path
// (miri_extern.cpp's Windows-only branches, kept unconditionally here
// since this interpreter targets whichever program it's given without
// a real host-OS distinction): GetStdHandle hands back a small
// nonzero "handle" per stream (1=stdout, 2=stderr, 3=stdin, matching
// the negative STD_*_HANDLE constants' relative order), and
// WriteConsoleW decodes the UTF-16LE buffer libstd passes it before
// writing the UTF-8 bytes out.
func (h *Host) getStdHandle(args []memory.Value) (memory.Value, error) {
	if len(args) != 1 {
		return memory.Value{}, fmt.Errorf("GetStdHandle: expected 1 argument, got %d", len(args))
	}
	n, err := args[0].ReadI32(0)
	if err != nil {
		return memory.Value{}, err
	}
	switch n {
	case -11: // STD_OUTPUT_HANDLE
		return usizeValue(1), nil
	case -12: // STD_ERROR_HANDLE
		return usizeValue(2), nil
	case -10: // STD_INPUT_HANDLE
		return usizeValue(3), nil
	}
	return usizeValue(0), nil
}

func (h *Host) writeConsoleW(args []memory.Value) (memory.Value, error) {
	if len(args) != 5 {
		return memory.Value{}, fmt.Errorf("WriteConsoleW: expected 5 arguments, got %d", len(args))
	}
	handle, err := args[0].ReadUsize(0)
	if err != nil {
		return memory.Value{}, err
	}
	nChars, err := args[2].ReadU32(0)
	if err != nil {
		return memory.Value{}, err
	}
	raw, err := readSpan(&args[1], int(nChars)*2)
	if err != nil {
		return memory.Value{}, err
	}
	units := make([]uint16, nChars)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(raw[i*2:])
	}
	text := string(utf16.Decode(units))

	var w writer
	if handle == 2 {
		w = h.Stderr
	} else {
		w = h.Stdout
	}
	if w != nil {
		if _, err := w.Write([]byte(text)); err != nil {
			return memory.Value{}, err
		}
	}

	// lpNumberOfCharsWritten: report every requested UTF-16 code unit as
	// written, since there is no partial-write concept once the decoded
	// text has been handed to the host writer whole.
	if out, err := args[3].Deref(0, 4); err == nil {
		_ = out.WriteU32(0, nChars)
	}
	return usizeValue(1), nil
}
