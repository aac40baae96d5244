package ffi

import (
	"fmt"

	"github.com/rustlite/rustlite/interp/exec"
	"github.com/rustlite/rustlite/interp/memory"
)

// unwindRaiseException implements _Unwind_RaiseException: the point
// where libstd's panic machinery actually hands off to the unwinder.
// Rather than model stack unwinding, the thread's panic flag and
// payload are set directly (miri_extern.cpp: "Save the first argument
// in TLS, then return a status that indicates unwinding should
// commence" — here, callPath/callIntrinsic's own panic-branch check of
// th.State.PanicActive plays that role).
func (h *Host) unwindRaiseException(th *exec.Thread, args []memory.Value) (memory.Value, error) {
	if len(args) < 1 {
		return memory.Value{}, fmt.Errorf("_Unwind_RaiseException: missing exception argument")
	}
	th.State.PanicActive = true
	th.State.PanicCount++
	th.State.PanicValue = args[0]
	return memory.Value{}, nil
}

// startPanic backs panic_impl/__rust_start_panic/rust_begin_unwind — the
// lang-item entry points a panic! expansion calls before handing off to
// _Unwind_RaiseException. miri_extern.cpp leaves all three as LOG_TODO
// (never implemented there); since this interpreter has no codegen step
// inserting the usual _Unwind_RaiseException call on the way out of
// these lang items, they raise the panic directly instead, with the same
// state transition unwindRaiseException performs.
func (h *Host) startPanic(th *exec.Thread, args []memory.Value) (memory.Value, error) {
	th.State.PanicActive = true
	th.State.PanicCount++
	if len(args) > 0 {
		th.State.PanicValue = args[0]
	}
	return memory.Value{}, nil
}

// maybeCatchPanic implements __rust_maybe_catch_panic(f, arg, data_ptr,
// vtable_ptr): run f(arg) to completion and report whether it panicked.
// miri_extern.cpp's own version never actually inspects the panic flag
// on return ("TODO: Catch the panic out of this" — it unconditionally
// assumes success); this shim completes that contract instead of
// reproducing the TODO, since spec.md §4.7's "try" intrinsic documents
// exactly this catch behavior and __rust_maybe_catch_panic is its
// pre-intrinsic, extern-based predecessor in older-Rust-generated IR.
func (h *Host) maybeCatchPanic(th *exec.Thread, args []memory.Value) (memory.Value, error) {
	if len(args) != 4 {
		return memory.Value{}, fmt.Errorf("__rust_maybe_catch_panic: expected 4 arguments, got %d", len(args))
	}
	fn, err := th.ResolveFnPointer(&args[0])
	if err != nil {
		return memory.Value{}, err
	}
	if _, err := th.RunNested(fn, []memory.Value{args[1]}); err != nil {
		return memory.Value{}, err
	}
	if !th.State.PanicActive {
		return i32Value(0), nil
	}

	th.State.PanicActive = false
	payload := th.State.PanicValue
	th.State.PanicValue = memory.Value{}

	// Hand the payload to the caller through its data_ptr out-parameter.
	// This interpreter does not model trait-object vtables (out of
	// scope per spec.md's Non-goals), so vtable_ptr is left untouched —
	// every panic payload here is a plain, non-fat pointer.
	if slot, err := args[2].Deref(0, payload.Size()); err == nil {
		_ = slot.WriteValue(0, payload)
	}
	return i32Value(1), nil
}
