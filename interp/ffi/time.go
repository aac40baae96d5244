package ffi

import (
	"fmt"
	"time"

	"github.com/rustlite/rustlite/interp/memory"
)

// clockGettime implements clock_gettime(clk_id, tp): fills a `struct
// timespec { long tv_sec; long tv_nsec; }` (16 bytes on a 64-bit target)
// with the host's current wall-clock time. clk_id is accepted but
// ignored — this interpreter has no notion of separate monotonic vs
// realtime clocks to distinguish.
func (h *Host) clockGettime(args []memory.Value) (memory.Value, error) {
	if len(args) != 2 {
		return memory.Value{}, fmt.Errorf("clock_gettime: expected 2 arguments, got %d", len(args))
	}
	tp, err := args[1].Deref(0, 16)
	if err != nil {
		return memory.Value{}, err
	}
	now := time.Now()
	if err := tp.WriteI64(0, now.Unix()); err != nil {
		return memory.Value{}, err
	}
	if err := tp.WriteI64(8, int64(now.Nanosecond())); err != nil {
		return memory.Value{}, err
	}
	return i32Value(0), nil
}

// sysconf(name) answers the handful of _SC_* queries libstd's
// thread-stack-size/page-size probing actually depends on with a fixed,
// reasonable value rather than modeling every POSIX sysconf name; an
// unrecognized name returns -1, same as glibc's own "not supported" case.
func (h *Host) sysconf(args []memory.Value) (memory.Value, error) {
	if len(args) != 1 {
		return memory.Value{}, fmt.Errorf("sysconf: expected 1 argument, got %d", len(args))
	}
	name, err := args[0].ReadI32(0)
	if err != nil {
		return memory.Value{}, err
	}
	switch name {
	case scPageSize:
		return i64Value(4096), nil
	case scNprocessorsOnln:
		return i64Value(1), nil
	}
	return i64Value(-1), nil
}

// The two sysconf names this shim actually answers (Linux's
// <bits/confname.h> values) — named rather than left as magic numbers so
// the switch above reads the way the original's commented call sites do.
const (
	scPageSize        = 30
	scNprocessorsOnln = 84
)

func i64Value(x int64) memory.Value {
	v := memory.NewInline(8)
	_ = v.WriteI64(0, x)
	return v
}
