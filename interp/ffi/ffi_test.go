package ffi_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rustlite/rustlite/interp/exec"
	"github.com/rustlite/rustlite/interp/ffi"
	"github.com/rustlite/rustlite/interp/memory"
	"github.com/rustlite/rustlite/interp/module"
)

func newThread(t *testing.T, host *ffi.Host) *exec.Thread {
	t.Helper()
	tree := module.NewModuleTree()
	return exec.NewThread(tree, host)
}

func ptrToCString(t *testing.T, s string) memory.Value {
	t.Helper()
	buf := append([]byte(s), 0)
	alloc := memory.NewAllocation(len(buf))
	alloc.MarkValid(0, len(buf))
	require.NoError(t, alloc.WriteBytes(0, buf))
	v := memory.NewInline(int(memory.PtrSize))
	require.NoError(t, v.WritePointer(0, memory.Relocation{Target: memory.AllocPtr{Kind: memory.PtrAlloc, Alloc: alloc}}, 0))
	return v
}

func TestAllocRoundTrip(t *testing.T) {
	host := &ffi.Host{}
	th := newThread(t, host)

	size := memory.NewInline(int(memory.PtrSize))
	require.NoError(t, size.WriteUsize(0, 16))
	align := memory.NewInline(int(memory.PtrSize))
	require.NoError(t, align.WriteUsize(0, 8))

	ptr, err := host.CallExtern(th, "__rust_alloc_zeroed", []memory.Value{size, align})
	require.NoError(t, err)

	target, err := ptr.Deref(0, 16)
	require.NoError(t, err)
	alloc, base := target.Allocation()
	require.Equal(t, 16, alloc.Size())
	require.NoError(t, alloc.CheckValid(base, 16))

	newSize := memory.NewInline(int(memory.PtrSize))
	require.NoError(t, newSize.WriteUsize(0, 32))
	oldSize := memory.NewInline(int(memory.PtrSize))
	require.NoError(t, oldSize.WriteUsize(0, 16))

	grown, err := host.CallExtern(th, "__rust_realloc", []memory.Value{ptr, oldSize, align, newSize})
	require.NoError(t, err)
	gtarget, err := grown.Deref(0, 32)
	require.NoError(t, err)
	galloc, _ := gtarget.Allocation()
	require.Equal(t, 32, galloc.Size())

	dsize := memory.NewInline(int(memory.PtrSize))
	require.NoError(t, dsize.WriteUsize(0, 32))
	_, err = host.CallExtern(th, "__rust_dealloc", []memory.Value{grown, dsize, align})
	require.NoError(t, err)
}

func TestStrlenAndMemcmp(t *testing.T) {
	host := &ffi.Host{}
	th := newThread(t, host)

	s := ptrToCString(t, "hello")
	result, err := host.CallExtern(th, "strlen", []memory.Value{s})
	require.NoError(t, err)
	n, err := result.ReadUsize(0)
	require.NoError(t, err)
	require.Equal(t, uint64(5), n)

	a := ptrToCString(t, "abc")
	b := ptrToCString(t, "abd")
	nArg := memory.NewInline(int(memory.PtrSize))
	require.NoError(t, nArg.WriteUsize(0, 3))
	cmp, err := host.CallExtern(th, "memcmp", []memory.Value{a, b, nArg})
	require.NoError(t, err)
	got, err := cmp.ReadI32(0)
	require.NoError(t, err)
	require.Less(t, got, int32(0))
}

func TestGetenvHermetic(t *testing.T) {
	host := &ffi.Host{Env: map[string]string{"RUSTLITE_TEST": "42"}}
	th := newThread(t, host)

	name := ptrToCString(t, "RUSTLITE_TEST")
	result, err := host.CallExtern(th, "getenv", []memory.Value{name})
	require.NoError(t, err)
	require.True(t, result.IsAllocated())

	missing := ptrToCString(t, "RUSTLITE_TEST_MISSING")
	result2, err := host.CallExtern(th, "getenv", []memory.Value{missing})
	require.NoError(t, err)
	off, err := result2.ReadUsize(0)
	require.NoError(t, err)
	require.Zero(t, off)
}

func TestUnwindRaiseExceptionSetsPanicState(t *testing.T) {
	host := &ffi.Host{}
	th := newThread(t, host)

	payload := memory.NewInline(4)
	require.NoError(t, payload.WriteI32(0, 99))

	_, err := host.CallExtern(th, "_Unwind_RaiseException", []memory.Value{payload})
	require.NoError(t, err)
	require.True(t, th.State.PanicActive)
	require.Equal(t, 1, th.State.PanicCount)
}

func TestWriteFdForwardsToStdout(t *testing.T) {
	var buf bytes.Buffer
	host := &ffi.Host{Stdout: &buf}
	th := newThread(t, host)

	data := []byte("hi\n")
	alloc := memory.NewAllocation(len(data))
	alloc.MarkValid(0, len(data))
	require.NoError(t, alloc.WriteBytes(0, data))
	ptr := memory.NewInline(int(memory.PtrSize))
	require.NoError(t, ptr.WritePointer(0, memory.Relocation{Target: memory.AllocPtr{Kind: memory.PtrAlloc, Alloc: alloc}}, 0))

	fd := memory.NewInline(4)
	require.NoError(t, fd.WriteI32(0, 1))
	n := memory.NewInline(int(memory.PtrSize))
	require.NoError(t, n.WriteUsize(0, uint64(len(data))))

	result, err := host.CallExtern(th, "write", []memory.Value{fd, ptr, n})
	require.NoError(t, err)
	written, err := result.ReadUsize(0)
	require.NoError(t, err)
	require.Equal(t, uint64(len(data)), written)
	require.Equal(t, "hi\n", buf.String())
}

func TestUnsupportedExternFailsLoudly(t *testing.T) {
	host := &ffi.Host{}
	th := newThread(t, host)
	_, err := host.CallExtern(th, "some_unmodeled_symbol", nil)
	require.Error(t, err)
}
