package ffi

import (
	"fmt"

	"github.com/rustlite/rustlite/interp/exec"
	"github.com/rustlite/rustlite/interp/memory"
)

// pthreadCreate emulates `pthread_create(thread, attr, start_routine,
// arg)` by running start_routine(arg) to completion synchronously, right
// now, on the interpreter's own (Go) call stack — spec.md §5's "thread
// spawn runs the new function synchronously to completion before the
// spawning CALL terminator continues", and miri_extern.cpp's own
// "HACK: Just run inline" branch for the same shim. The "spawned
// thread" gets its own, empty TLS slot table for the duration (swapped
// back in once start_routine returns), matching the original's
// save/restore of m_thread.tls_values around the nested call.
func (h *Host) pthreadCreate(th *exec.Thread, args []memory.Value) (memory.Value, error) {
	if len(args) != 4 {
		return memory.Value{}, fmt.Errorf("pthread_create: expected 4 arguments, got %d", len(args))
	}
	threadOut := args[0]
	fn, err := th.ResolveFnPointer(&args[2])
	if err != nil {
		return memory.Value{}, err
	}
	arg := args[3]

	if slot, err := threadOut.Deref(0, int(memory.PtrSize)); err == nil {
		_ = slot.WriteUsize(0, 1)
	}

	saved := th.State.SwapTLS(map[uint]uint64{})
	_, runErr := th.RunNested(fn, []memory.Value{arg})
	th.State.SwapTLS(saved)
	if runErr != nil {
		return memory.Value{}, runErr
	}

	return i32Value(0), nil
}

// pthreadKeyCreate allocates a fresh TLS slot and writes its index
// through the caller's out-pointer (miri_extern.cpp: "auto key =
// ThreadState::s_next_tls_key++; key_ref... = key").
func (h *Host) pthreadKeyCreate(th *exec.Thread, args []memory.Value) (memory.Value, error) {
	if len(args) != 2 {
		return memory.Value{}, fmt.Errorf("pthread_key_create: expected 2 arguments, got %d", len(args))
	}
	key := th.State.AllocTLSKey()
	if slot, err := args[0].Deref(0, 4); err == nil {
		_ = slot.WriteU32(0, uint32(key))
	}
	return i32Value(0), nil
}

func (h *Host) pthreadGetspecific(th *exec.Thread, args []memory.Value) (memory.Value, error) {
	if len(args) != 1 {
		return memory.Value{}, fmt.Errorf("pthread_getspecific: expected 1 argument, got %d", len(args))
	}
	key, err := args[0].ReadU32(0)
	if err != nil {
		return memory.Value{}, err
	}
	return usizeValue(th.State.TLSGet(uint(key))), nil
}

func (h *Host) pthreadSetspecific(th *exec.Thread, args []memory.Value) (memory.Value, error) {
	if len(args) != 2 {
		return memory.Value{}, fmt.Errorf("pthread_setspecific: expected 2 arguments, got %d", len(args))
	}
	key, err := args[0].ReadU32(0)
	if err != nil {
		return memory.Value{}, err
	}
	v, err := args[1].ReadUsize(0)
	if err != nil {
		return memory.Value{}, err
	}
	th.State.TLSSet(uint(key), v)
	return i32Value(0), nil
}
