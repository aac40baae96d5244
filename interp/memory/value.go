package memory

import (
	"encoding/binary"
	"fmt"
	"math"
)

// inlineCap is the largest a pointerless inline Value can be without an
// Allocation: wide enough for a fat pointer's two words (data pointer +
// length, or data pointer + vtable pointer) so that the common case of
// building a slice/trait-object value doesn't need an allocation purely
// to hold metadata that carries no relocation of its own.
const inlineCap = 2 * PtrSize

// Value is either a small inline byte buffer (for pointerless scalars —
// spec.md §3's "Value is either inline-sized or points into an
// allocation") or a window (offset, size) into a backing [Allocation].
// The zero Value is an empty, zero-size inline value.
//
// Grounded on original_source/tools/standalone_miri/value.{hpp,cpp}'s
// Value, whose "direct_data" union member this mirrors; unlike the C++
// type, an inline Value here can never carry a relocation (matching the
// original — direct_data has no relocation list), and §4.6's "promote to
// an allocation-backed Value" step is exactly how a relocation-bearing
// write onto an inline destination is handled.
type Value struct {
	alloc *Allocation
	ofs   int
	size  int

	inline      [inlineCap]byte
	inlineValid uint32 // one bit per inline byte
}

// NewInline returns a fresh, entirely-undefined inline Value of size
// bytes (size must be <= inlineCap; larger values must be allocation-
// backed from the start — see NewAllocated). Locals are default-
// initialized this way: undefined until first written (spec.md §4.7).
func NewInline(size int) Value {
	if size > inlineCap {
		panic(fmt.Sprintf("memory: inline value of size %d exceeds inlineCap %d", size, inlineCap))
	}
	return Value{size: size}
}

// NewAllocated returns a Value that is a whole fresh Allocation of size
// bytes, entirely undefined.
func NewAllocated(size int) Value {
	return Value{alloc: NewAllocation(size), size: size}
}

// FromAllocation returns a Value viewing [ofs, ofs+size) of alloc. alloc's
// reference count is not touched; the caller owns whatever reference it
// already holds.
func FromAllocation(alloc *Allocation, ofs, size int) Value {
	return Value{alloc: alloc, ofs: ofs, size: size}
}

// Size returns the value's size in bytes.
func (v *Value) Size() int { return v.size }

// IsAllocated reports whether v is backed by an Allocation rather than
// holding its bytes inline.
func (v *Value) IsAllocated() bool { return v.alloc != nil }

// Allocation returns v's backing allocation and its offset into it.
// Panics if v is not allocation-backed; callers should check
// IsAllocated first.
func (v *Value) Allocation() (*Allocation, int) {
	if v.alloc == nil {
		panic("memory: Allocation called on an inline Value")
	}
	return v.alloc, v.ofs
}

func (v *Value) checkBounds(ofs, size int) error {
	if ofs < 0 || size < 0 || ofs+size > v.size {
		return fmt.Errorf("out-of-bounds value access: offset %d size %d in value of size %d", ofs, size, v.size)
	}
	return nil
}

// CheckValid reports whether every byte in [ofs, ofs+size) of v is
// defined (spec.md §4.6 read step 2).
func (v *Value) CheckValid(ofs, size int) error {
	if err := v.checkBounds(ofs, size); err != nil {
		return err
	}
	if v.alloc != nil {
		return v.alloc.CheckValid(v.ofs+ofs, size)
	}
	for i := ofs; i < ofs+size; i++ {
		if v.inlineValid&(1<<uint(i)) == 0 {
			return fmt.Errorf("read of undefined memory at offset %d", i)
		}
	}
	return nil
}

// MarkValid marks [ofs, ofs+size) of v as holding defined data.
func (v *Value) MarkValid(ofs, size int) {
	if v.alloc != nil {
		v.alloc.MarkValid(v.ofs+ofs, size)
		return
	}
	for i := ofs; i < ofs+size; i++ {
		v.inlineValid |= 1 << uint(i)
	}
}

// relocsForCopy returns the relocations carried by [ofs, ofs+size) of v,
// rebased to be relative to ofs. An inline Value never carries any.
func (v *Value) relocsForCopy(ofs, size int) []relocAt {
	if v.alloc == nil {
		return nil
	}
	return v.alloc.relocsIn(v.ofs+ofs, size)
}

// ReadBytes copies size bytes starting at ofs in v into dst (spec.md
// §4.6 read steps 1–2; step 3's relocation-preservation only matters
// when the destination is itself a Value, see ReadValue).
func (v *Value) ReadBytes(ofs int, dst []byte) error {
	if err := v.CheckValid(ofs, len(dst)); err != nil {
		return err
	}
	if v.alloc != nil {
		return v.alloc.ReadBytes(v.ofs+ofs, dst)
	}
	copy(dst, v.inline[ofs:ofs+len(dst)])
	return nil
}

// ReadValue implements spec.md §4.6's read operation in full: bounds and
// validity are checked, and if [ofs, ofs+size) overlaps a relocation the
// result carries it (by being allocation-backed over the same bytes);
// otherwise the result is a pure, inline copy of the bytes.
func (v *Value) ReadValue(ofs, size int) (Value, error) {
	if err := v.CheckValid(ofs, size); err != nil {
		return Value{}, err
	}
	buf := make([]byte, size)
	if err := v.ReadBytes(ofs, buf); err != nil {
		return Value{}, err
	}

	var relocs []relocAt
	if v.alloc != nil {
		relocs = v.alloc.relocsIn(v.ofs+ofs, size)
	}

	// A relocation-carrying or oversized-for-inline result gets its own,
	// independent backing Allocation — a fresh copy, not a window onto
	// v's storage, so later writes to v cannot disturb it (spec.md §8's
	// "subsequent overlapping writes to the source do not disturb the
	// copy"; original_source's Value::read_value does the same via
	// Allocation::new_alloc plus rebased relocations).
	if len(relocs) > 0 || size > inlineCap {
		out := NewAllocated(size)
		a, o := out.Allocation()
		if err := a.WriteValueBytes(o, buf, relocs); err != nil {
			return Value{}, err
		}
		return out, nil
	}

	out := NewInline(size)
	copy(out.inline[:], buf)
	out.MarkValid(0, size)
	return out, nil
}

// WriteBytes writes src into v at ofs, without installing any relocation
// (spec.md §4.6 write steps 1–2, 4 — step 2's relocation-clearing always
// applies even to a plain byte write, per "write_bytes(ptr, 0, 8) ...
// removes that relocation").
func (v *Value) WriteBytes(ofs int, src []byte) error {
	if err := v.checkBounds(ofs, len(src)); err != nil {
		return err
	}
	if v.alloc != nil {
		return v.alloc.WriteBytes(v.ofs+ofs, src)
	}
	v.alloc = nil
	copy(v.inline[ofs:ofs+len(src)], src)
	v.MarkValid(ofs, len(src))
	return nil
}

// WriteValue implements spec.md §4.6's write operation in full: it
// bounds-checks, clears any relocation the written range overlapped,
// copies src's bytes, and — if src carries a relocation that v (being
// inline) has nowhere to record — promotes v to an allocation-backed
// Value first (step 3's "promote the destination").
func (v *Value) WriteValue(ofs int, src Value) error {
	if err := v.checkBounds(ofs, src.size); err != nil {
		return err
	}
	buf := make([]byte, src.size)
	if err := src.ReadBytesRaw(0, buf); err != nil {
		return err
	}
	relocs := src.relocsForCopy(0, src.size)

	if v.alloc == nil && len(relocs) > 0 {
		v.promote()
	}
	if v.alloc != nil {
		return v.alloc.WriteValueBytes(v.ofs+ofs, buf, relocs)
	}
	copy(v.inline[ofs:ofs+len(buf)], buf)
	v.MarkValid(ofs, len(buf))
	return nil
}

// ReadBytesRaw reads size bytes starting at ofs without requiring every
// byte to be valid first — used internally by WriteValue, which must be
// able to copy an undefined byte range (the destination simply becomes
// undefined there too) rather than fail the whole write.
func (v *Value) ReadBytesRaw(ofs int, dst []byte) error {
	if err := v.checkBounds(ofs, len(dst)); err != nil {
		return err
	}
	if v.alloc != nil {
		if err := v.alloc.checkBounds(v.ofs+ofs, len(dst)); err != nil {
			return err
		}
		copy(dst, v.alloc.Data[v.ofs+ofs:v.ofs+ofs+len(dst)])
		return nil
	}
	copy(dst, v.inline[ofs:ofs+len(dst)])
	return nil
}

// Invalidate marks [ofs, ofs+size) of v as undefined, clearing any
// relocation there — the byte-level effect of dropping a value in place
// (package exec's drop glue), distinct from WriteBytes(zeroes) in that it
// leaves the range unreadable rather than readable-as-zero.
func (v *Value) Invalidate(ofs, size int) error {
	if err := v.checkBounds(ofs, size); err != nil {
		return err
	}
	if v.alloc != nil {
		v.alloc.Invalidate(v.ofs+ofs, size)
		return nil
	}
	for i := ofs; i < ofs+size; i++ {
		v.inlineValid &^= 1 << uint(i)
	}
	return nil
}

// EnsureAllocation forces v to become allocation-backed in place, without
// changing its observable contents. A Borrow RValue needs this before it
// can install a relocation targeting v's own storage — an inline Value
// has nowhere to record that it is now pointed at (original_source's
// Value::ensure_allocation, called the same way from miri_intrinsic.cpp's
// "caller_location").
func (v *Value) EnsureAllocation() { v.promote() }

// promote moves an inline Value's bytes and validity into a freshly
// created backing Allocation, so it can subsequently carry a relocation
// (original_source's Value::create_allocation).
func (v *Value) promote() {
	if v.alloc != nil {
		return
	}
	a := NewAllocation(v.size)
	copy(a.Data, v.inline[:v.size])
	for i := 0; i < v.size; i++ {
		if v.inlineValid&(1<<uint(i)) != 0 {
			a.MarkValid(i, 1)
		}
	}
	v.alloc = a
	v.ofs = 0
}

// --- typed scalar accessors -------------------------------------------

func (v *Value) readFixed(ofs, size int) ([]byte, error) {
	buf := make([]byte, size)
	if err := v.ReadBytes(ofs, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (v *Value) ReadU8(ofs int) (uint8, error) {
	b, err := v.readFixed(ofs, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}
func (v *Value) ReadU16(ofs int) (uint16, error) {
	b, err := v.readFixed(ofs, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}
func (v *Value) ReadU32(ofs int) (uint32, error) {
	b, err := v.readFixed(ofs, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}
func (v *Value) ReadU64(ofs int) (uint64, error) {
	b, err := v.readFixed(ofs, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}
func (v *Value) ReadI8(ofs int) (int8, error) {
	u, err := v.ReadU8(ofs)
	return int8(u), err
}
func (v *Value) ReadI16(ofs int) (int16, error) {
	u, err := v.ReadU16(ofs)
	return int16(u), err
}
func (v *Value) ReadI32(ofs int) (int32, error) {
	u, err := v.ReadU32(ofs)
	return int32(u), err
}
func (v *Value) ReadI64(ofs int) (int64, error) {
	u, err := v.ReadU64(ofs)
	return int64(u), err
}
func (v *Value) ReadF32(ofs int) (float32, error) {
	u, err := v.ReadU32(ofs)
	return math.Float32frombits(u), err
}
func (v *Value) ReadF64(ofs int) (float64, error) {
	u, err := v.ReadU64(ofs)
	return math.Float64frombits(u), err
}

// ReadUsize reads a pointer-width unsigned integer (spec.md §4.6
// "Pointer arithmetic uses read_usize/write_usize at the pointer
// field").
func (v *Value) ReadUsize(ofs int) (uint64, error) { return v.ReadU64(ofs) }
func (v *Value) ReadIsize(ofs int) (int64, error)  { return v.ReadI64(ofs) }

func (v *Value) WriteU8(ofs int, x uint8) error  { return v.WriteBytes(ofs, []byte{x}) }
func (v *Value) WriteU16(ofs int, x uint16) error {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, x)
	return v.WriteBytes(ofs, b)
}
func (v *Value) WriteU32(ofs int, x uint32) error {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, x)
	return v.WriteBytes(ofs, b)
}
func (v *Value) WriteU64(ofs int, x uint64) error {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, x)
	return v.WriteBytes(ofs, b)
}
func (v *Value) WriteI8(ofs int, x int8) error   { return v.WriteU8(ofs, uint8(x)) }
func (v *Value) WriteI16(ofs int, x int16) error { return v.WriteU16(ofs, uint16(x)) }
func (v *Value) WriteI32(ofs int, x int32) error { return v.WriteU32(ofs, uint32(x)) }
func (v *Value) WriteI64(ofs int, x int64) error { return v.WriteU64(ofs, uint64(x)) }
func (v *Value) WriteF32(ofs int, x float32) error {
	return v.WriteU32(ofs, math.Float32bits(x))
}
func (v *Value) WriteF64(ofs int, x float64) error {
	return v.WriteU64(ofs, math.Float64bits(x))
}
func (v *Value) WriteUsize(ofs int, x uint64) error { return v.WriteU64(ofs, x) }
func (v *Value) WriteIsize(ofs int, x int64) error  { return v.WriteU64(ofs, uint64(x)) }

// WritePointer installs a relocation at ofs targeting reloc, and writes
// off as the pointer field's integer payload (the base offset within
// the target allocation, per spec.md §4.6's "Deref lookups read the
// integer offset from the pointer field, combine it with the
// relocation's target allocation").
func (v *Value) WritePointer(ofs int, reloc Relocation, off uint64) error {
	if err := v.checkBounds(ofs, PtrSize); err != nil {
		return err
	}
	if v.alloc == nil {
		v.promote()
	}
	if err := v.alloc.WriteBytes(v.ofs+ofs, encodeU64(off)); err != nil {
		return err
	}
	v.alloc.SetRelocation(v.ofs+ofs, reloc)
	return nil
}

// Deref reads the pointer field at ofs and, if it carries a relocation
// targeting an Allocation, returns a Value viewing that allocation
// starting at the pointer's integer offset (spec.md §4.6's deref
// lookup). Returns an error if there is no relocation there — "deref of
// a value without a relocation" (spec.md §7).
func (v *Value) Deref(ofs, size int) (Value, error) {
	if v.alloc == nil {
		return Value{}, fmt.Errorf("dereference of a value without a relocation")
	}
	reloc, ok := v.alloc.GetRelocation(v.ofs + ofs)
	if !ok || reloc.Target.Kind != PtrAlloc {
		return Value{}, fmt.Errorf("dereference of a value without a relocation")
	}
	off, err := v.ReadUsize(ofs)
	if err != nil {
		return Value{}, err
	}
	target := reloc.Target.Alloc
	if err := target.checkBounds(int(off), size); err != nil {
		return Value{}, err
	}
	target.Acquire()
	return FromAllocation(target, int(off), size), nil
}

func encodeU64(x uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, x)
	return b
}
