package ffi

import (
	"fmt"

	"github.com/rustlite/rustlite/interp/memory"
)

// rustAlloc implements __rust_alloc/__rust_alloc_zeroed (and the older
// __rust_allocate spelling): a fresh Allocation of the requested size,
// returned as a pointer Value at offset 0 (miri_extern.cpp: "auto alloc
// = Allocation::new_alloc(size, ...); rv = Value::new_pointer_ofs(...)").
// Alignment is accepted but not separately enforced — this interpreter's
// Allocation has no alignment padding concept of its own, the same
// simplification layout.go already takes for every sized type.
func (h *Host) rustAlloc(name string, args []memory.Value) (memory.Value, error) {
	if len(args) != 2 {
		return memory.Value{}, fmt.Errorf("%s: expected 2 arguments, got %d", name, len(args))
	}
	size, err := args[0].ReadUsize(0)
	if err != nil {
		return memory.Value{}, err
	}
	alloc := memory.NewAllocation(int(size))
	if name == "__rust_alloc_zeroed" {
		alloc.MarkValid(0, int(size))
	}
	return newPointer(alloc, 0), nil
}

// rustRealloc implements __rust_realloc(ptr, old_size, align, new_size),
// the Rust-1.29-and-later argument order (miri_extern.cpp's
// TARGETVER_LEAST_1_29 branch) — resizing the existing Allocation in
// place and returning the same pointer value, since Realloc never moves
// the backing storage to a new Allocation.
func (h *Host) rustRealloc(args []memory.Value) (memory.Value, error) {
	if len(args) != 4 {
		return memory.Value{}, fmt.Errorf("__rust_realloc: expected 4 arguments, got %d", len(args))
	}
	alloc, off, err := derefAllocation(&args[0])
	if err != nil {
		return memory.Value{}, err
	}
	if off != 0 {
		return memory.Value{}, fmt.Errorf("__rust_realloc: pointer is not to the start of its allocation")
	}
	newSize, err := args[3].ReadUsize(0)
	if err != nil {
		return memory.Value{}, err
	}
	alloc.Realloc(int(newSize))
	return args[0], nil
}

// rustDealloc implements __rust_dealloc(ptr, size, align): releases the
// caller's reference on the allocation, marking it freed once nothing
// else holds one (miri_extern.cpp's alloc.mark_as_freed(), adapted to
// this package's refcounting Allocation.Release rather than an explicit
// freed flag set unconditionally — a dangling second free still surfaces
// as a use-of-released-allocation error on the next access either way).
func (h *Host) rustDealloc(args []memory.Value) (memory.Value, error) {
	if len(args) != 3 {
		return memory.Value{}, fmt.Errorf("__rust_dealloc: expected 3 arguments, got %d", len(args))
	}
	alloc, off, err := derefAllocation(&args[0])
	if err != nil {
		return memory.Value{}, err
	}
	if off != 0 {
		return memory.Value{}, fmt.Errorf("__rust_dealloc: pointer is not to the start of its allocation")
	}
	alloc.Release()
	return memory.Value{}, nil
}
