package exec_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rustlite/rustlite/interp/exec"
	"github.com/rustlite/rustlite/interp/memory"
	"github.com/rustlite/rustlite/interp/module"
)

// mapResolver resolves crate paths from an in-memory map, matching
// package module's own test style (interp/module/module_test.go).
type mapResolver map[string][]byte

func (m mapResolver) Resolve(path string) ([]byte, error) {
	return m[path], nil
}

func loadOne(t *testing.T, src string) *module.ModuleTree {
	t.Helper()
	tree, diags, err := module.Load(context.Background(), mapResolver{"root": []byte(src)}, []string{"root"}, 1)
	require.NoError(t, err)
	require.Empty(t, diags)
	return tree
}

// spec.md §8 scenario #4: a plain binary-op function over two arguments.
func TestRunAddFunction(t *testing.T) {
	tree := loadOne(t, `
fn ::"root"::add(i32, i32,): i32 {
	0: {
		ASSIGN RETURN = BINOP arg0 + arg1;
		RETURN
	}
}
`)

	a := memory.NewInline(4)
	require.NoError(t, a.WriteI32(0, 2))
	b := memory.NewInline(4)
	require.NoError(t, b.WriteI32(0, 3))

	th := exec.NewThread(tree, nil)
	require.NoError(t, th.Start(`::"root"::add`, []memory.Value{a, b}))

	result, err := th.Run()
	require.NoError(t, err)

	got, err := result.ReadI32(0)
	require.NoError(t, err)
	require.Equal(t, int32(5), got)
}

// spec.md §8 scenario #5: dereferencing a pointer argument.
func TestRunDerefFunction(t *testing.T) {
	tree := loadOne(t, `
fn ::"root"::get(*const i32,): i32 {
	0: {
		ASSIGN RETURN = =(*arg0);
		RETURN
	}
}
`)

	pointee := memory.NewAllocated(4)
	require.NoError(t, pointee.WriteI32(0, 7))
	alloc, _ := pointee.Allocation()

	ptr := memory.NewInline(int(memory.PtrSize))
	require.NoError(t, ptr.WritePointer(0, memory.Relocation{Target: memory.AllocPtr{Kind: memory.PtrAlloc, Alloc: alloc}}, 0))

	th := exec.NewThread(tree, nil)
	require.NoError(t, th.Start(`::"root"::get`, []memory.Value{ptr}))

	result, err := th.Run()
	require.NoError(t, err)

	got, err := result.ReadI32(0)
	require.NoError(t, err)
	require.Equal(t, int32(7), got)
}

// Overflow-checked addition (BINOP's "+^" suffix) packs a (value, bool)
// tuple: i32::MAX + 1 wraps to i32::MIN with the overflow flag set.
func TestRunCheckedAddOverflow(t *testing.T) {
	tree := loadOne(t, `
type ::"root"::Pair {
	SIZE 8, ALIGN 4;
	0 = i32;
	4 = bool;
}
fn ::"root"::addc(i32, i32,): ::"root"::Pair {
	0: {
		ASSIGN RETURN = BINOP arg0 +^ arg1;
		RETURN
	}
}
`)

	a := memory.NewInline(4)
	require.NoError(t, a.WriteI32(0, 2147483647))
	b := memory.NewInline(4)
	require.NoError(t, b.WriteI32(0, 1))

	th := exec.NewThread(tree, nil)
	require.NoError(t, th.Start(`::"root"::addc`, []memory.Value{a, b}))

	result, err := th.Run()
	require.NoError(t, err)

	wrapped, err := result.ReadI32(0)
	require.NoError(t, err)
	require.Equal(t, int32(-2147483648), wrapped)

	overflowed, err := result.ReadU8(4)
	require.NoError(t, err)
	require.Equal(t, uint8(1), overflowed)
}

// An IF terminator branching on a bool local (spec.md §4.7's control-flow
// stepping), matching module_test.go's TestIfGotoControlFlow shape.
func TestRunIfGoto(t *testing.T) {
	tree := loadOne(t, `
fn ::"root"::choose(bool,): u32 {
	let r: u32;
	0: {
		IF arg0 goto 1 else 2
	}
	1: {
		ASSIGN r = 1 u32;
		GOTO 3
	}
	2: {
		ASSIGN r = 0 u32;
		GOTO 3
	}
	3: {
		ASSIGN RETURN = =r;
		RETURN
	}
}
`)

	trueArg := memory.NewInline(1)
	require.NoError(t, trueArg.WriteU8(0, 1))

	th := exec.NewThread(tree, nil)
	require.NoError(t, th.Start(`::"root"::choose`, []memory.Value{trueArg}))

	result, err := th.Run()
	require.NoError(t, err)
	got, err := result.ReadU32(0)
	require.NoError(t, err)
	require.Equal(t, uint32(1), got)
}

// recordingExterns answers every extern call with a constant i32 value,
// just enough to exercise the CALL-to-extern routing path.
type recordingExterns struct {
	calls []string
}

func (r *recordingExterns) CallExtern(th *exec.Thread, name string, args []memory.Value) (memory.Value, error) {
	r.calls = append(r.calls, name)
	v := memory.NewInline(4)
	_ = v.WriteI32(0, 42)
	return v, nil
}

func TestRunCallToExtern(t *testing.T) {
	tree := loadOne(t, `
fn ::"root"::caller(): i32 {
	0: {
		CALL RETURN = ::"root"::host_fn() goto 1 else 2
	}
	1: {
		RETURN
	}
	2: {
		DIVERGE
	}
}
`)

	ex := &recordingExterns{}
	th := exec.NewThread(tree, ex)
	require.NoError(t, th.Start(`::"root"::caller`, nil))

	result, err := th.Run()
	require.NoError(t, err)
	got, err := result.ReadI32(0)
	require.NoError(t, err)
	require.Equal(t, int32(42), got)
	require.Equal(t, []string{"host_fn"}, ex.calls)
}

// panicExterns answers "trigger_panic" the way package ffi's
// _Unwind_RaiseException shim does: raising the thread's panic flag with
// the call's sole argument as payload (interp/ffi/panic.go's
// unwindRaiseException), without depending on package ffi itself (which
// imports exec, not the other way around).
type panicExterns struct{}

func (panicExterns) CallExtern(th *exec.Thread, name string, args []memory.Value) (memory.Value, error) {
	th.State.PanicActive = true
	th.State.PanicCount++
	th.State.PanicValue = args[0]
	return memory.Value{}, nil
}

// spec.md §8 scenario #6 ("panic catch"): a "try" intrinsic call whose
// inner function panics must run the caller-supplied catch function and
// report the status/payload outcome through intrinsicTry's two-phase
// pendingCall, the same hand-off interp/ffi/panic.go's maybeCatchPanic
// performs for the older extern-based calling convention.
func TestTryIntrinsicCatchesPanicAndDeliversPayload(t *testing.T) {
	tree := loadOne(t, `
fn ::"root"::panics(*mut i32,): i32 {
	0: {
		CALL RETURN = ::"root"::trigger_panic(99 i32,) goto 1 else 1
	}
	1: {
		RETURN
	}
}
fn ::"root"::catch(*mut i32, i32,): i32 {
	0: {
		ASSIGN *arg0 = arg1;
		ASSIGN RETURN = 0 i32;
		RETURN
	}
}
fn ::"root"::caller(*mut i32,): i32 {
	0: {
		CALL RETURN = "try"(&::"root"::panics, arg0, &::"root"::catch,) goto 1 else 1
	}
	1: {
		RETURN
	}
}
`)

	out := memory.NewAllocated(4)
	require.NoError(t, out.WriteI32(0, -1))
	alloc, _ := out.Allocation()
	outPtr := memory.NewInline(int(memory.PtrSize))
	require.NoError(t, outPtr.WritePointer(0, memory.Relocation{Target: memory.AllocPtr{Kind: memory.PtrAlloc, Alloc: alloc}}, 0))

	th := exec.NewThread(tree, panicExterns{})
	require.NoError(t, th.Start(`::"root"::caller`, []memory.Value{outPtr}))

	result, err := th.Run()
	require.NoError(t, err)

	status, err := result.ReadI32(0)
	require.NoError(t, err)
	require.Equal(t, int32(1), status)

	payload, err := out.ReadI32(0)
	require.NoError(t, err)
	require.Equal(t, int32(99), payload)

	require.False(t, th.State.PanicActive)
}
