package ffi

import (
	"fmt"
	"os"

	"github.com/rustlite/rustlite/interp/memory"
)

// getenv reads a variable from h.Env (if set, for hermetic use) or else
// the host process's real environment, returning a fresh allocation
// holding the NUL-terminated value, or a null pointer when unset —
// mirroring miri_extern.cpp's getenv branch, minus its FFIPointer
// aliasing trick (this interpreter always owns a copy, never a raw view
// into host memory, so every returned allocation is its own).
func (h *Host) getenv(args []memory.Value) (memory.Value, error) {
	if len(args) != 1 {
		return memory.Value{}, fmt.Errorf("getenv: expected 1 argument, got %d", len(args))
	}
	name, err := readCString(&args[0])
	if err != nil {
		return memory.Value{}, err
	}

	val, ok := h.lookupEnv(name)
	if !ok {
		return nullPointer(), nil
	}

	buf := append([]byte(val), 0)
	alloc := memory.NewAllocation(len(buf))
	alloc.MarkValid(0, len(buf))
	if err := alloc.WriteBytes(0, buf); err != nil {
		return memory.Value{}, err
	}
	return newPointer(alloc, 0), nil
}

func (h *Host) lookupEnv(name string) (string, bool) {
	if h.Env != nil {
		v, ok := h.Env[name]
		return v, ok
	}
	return os.LookupEnv(name)
}
