package memory_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rustlite/rustlite/interp/memory"
)

func TestValueTypedRoundTrip(t *testing.T) {
	v := memory.NewInline(8)
	require.NoError(t, v.WriteU32(0, 0xdeadbeef))
	require.NoError(t, v.WriteI32(4, -7))

	got32, err := v.ReadU32(0)
	require.NoError(t, err)
	require.Equal(t, uint32(0xdeadbeef), got32)

	gotI32, err := v.ReadI32(4)
	require.NoError(t, err)
	require.Equal(t, int32(-7), gotI32)
}

func TestReadUndefinedMemoryFails(t *testing.T) {
	v := memory.NewInline(4)
	_, err := v.ReadU32(0)
	require.Error(t, err)
}

// Writing an 8-byte value with a relocation at offset 0 into an
// allocation, then reading bytes 0-3 yields undefined behaviour (a
// partial pointer read); reading the full 8 bytes yields a value with
// the relocation preserved (spec.md §8).
func TestPartialPointerReadIsUndefined(t *testing.T) {
	target := memory.NewAllocation(4)
	require.NoError(t, target.WriteU32(0, 7))

	src := memory.NewAllocated(8)
	require.NoError(t, src.WritePointer(0, memory.Relocation{
		Target: memory.AllocPtr{Kind: memory.PtrAlloc, Alloc: target},
	}, 0))

	full, err := src.ReadValue(0, 8)
	require.NoError(t, err)
	require.True(t, full.IsAllocated())
	alloc, ofs := full.Allocation()
	_, hasReloc := alloc.GetRelocation(ofs)
	require.True(t, hasReloc, "reading the whole pointer field must preserve its relocation")

	partial, err := src.ReadValue(0, 4)
	require.NoError(t, err)
	require.False(t, partial.IsAllocated(), "a partial pointer read carries no relocation")
}

// copy_nonoverlapping of a pointer-bearing range copies the relocation;
// subsequent overlapping writes to the source do not disturb the copy
// (spec.md §8).
func TestCopyPreservesRelocationIndependently(t *testing.T) {
	target := memory.NewAllocation(4)
	require.NoError(t, target.WriteU32(0, 42))

	src := memory.NewAllocated(8)
	require.NoError(t, src.WritePointer(0, memory.Relocation{
		Target: memory.AllocPtr{Kind: memory.PtrAlloc, Alloc: target},
	}, 0))

	dst := memory.NewAllocated(8)
	copied, err := src.ReadValue(0, 8)
	require.NoError(t, err)
	require.NoError(t, dst.WriteValue(0, copied))

	// Clobber the source's pointer field with plain bytes.
	require.NoError(t, src.WriteU64(0, 0))

	dstAlloc, dstOfs := dst.Allocation()
	_, ok := dstAlloc.GetRelocation(dstOfs)
	require.True(t, ok, "the destination's copy must keep its own relocation")

	srcAlloc, srcOfs := src.Allocation()
	_, ok = srcAlloc.GetRelocation(srcOfs)
	require.False(t, ok, "overwriting the source must not resurrect in the copy nor leave one behind")
}

// write_bytes(ptr, 0, 8) at an offset that spans a relocation removes
// that relocation (spec.md §8).
func TestWriteBytesClobbersOverlappingRelocation(t *testing.T) {
	target := memory.NewAllocation(4)
	v := memory.NewAllocated(8)
	require.NoError(t, v.WritePointer(0, memory.Relocation{
		Target: memory.AllocPtr{Kind: memory.PtrAlloc, Alloc: target},
	}, 0))

	alloc, ofs := v.Allocation()
	_, ok := alloc.GetRelocation(ofs)
	require.True(t, ok)

	require.NoError(t, v.WriteBytes(0, make([]byte, 8)))
	_, ok = alloc.GetRelocation(ofs)
	require.False(t, ok)
}

func TestDerefFollowsRelocationToTarget(t *testing.T) {
	target := memory.NewAllocation(4)
	require.NoError(t, target.WriteI32(0, 7))

	ptr := memory.NewAllocated(8)
	require.NoError(t, ptr.WritePointer(0, memory.Relocation{
		Target: memory.AllocPtr{Kind: memory.PtrAlloc, Alloc: target},
	}, 0))

	pointee, err := ptr.Deref(0, 4)
	require.NoError(t, err)
	got, err := pointee.ReadI32(0)
	require.NoError(t, err)
	require.Equal(t, int32(7), got)
}

func TestDerefWithoutRelocationFails(t *testing.T) {
	v := memory.NewInline(8)
	require.NoError(t, v.WriteU64(0, 123))
	_, err := v.Deref(0, 4)
	require.Error(t, err)
}

func TestInlineValuePromotesOnRelocatingWrite(t *testing.T) {
	target := memory.NewAllocation(4)
	src := memory.NewAllocated(8)
	require.NoError(t, src.WritePointer(0, memory.Relocation{
		Target: memory.AllocPtr{Kind: memory.PtrAlloc, Alloc: target},
	}, 0))
	carried, err := src.ReadValue(0, 8)
	require.NoError(t, err)

	dst := memory.NewInline(8)
	require.False(t, dst.IsAllocated())
	require.NoError(t, dst.WriteValue(0, carried))
	require.True(t, dst.IsAllocated(), "writing a relocation-bearing value must promote an inline destination")
}

func TestReleasedAllocationRejectsAccess(t *testing.T) {
	a := memory.NewAllocation(4)
	require.NoError(t, a.WriteU32(0, 1))
	a.Release()
	require.Error(t, a.CheckValid(0, 4))
	require.Error(t, a.WriteU32(0, 2))
}
