package exec

import (
	"fmt"

	"github.com/rustlite/rustlite/interp/memory"
	"github.com/rustlite/rustlite/interp/module"
)

// callIntrinsic dispatches a CALL terminator whose target is
// CallIntrinsic. Grounded on original_source/tools/standalone_miri/
// miri_intrinsic.cpp's if/else-if chain (the one file in this corpus
// that does carry a complete reference implementation for this
// concern); per spec.md §4.7, any name not recognized here fails loudly
// rather than silently passing through.
func (th *Thread) callIntrinsic(fr *Frame, term *module.Terminator, argVals []memory.Value, argTypes []*module.Ty, dstTy *module.Ty) error {
	name := term.CallTarget.IntrinsicName
	dst, success, panicTarget := term.CallDst, term.CallSuccess, term.CallPanic

	if name == "try" {
		return th.intrinsicTry(fr, argVals, dst, success)
	}

	val, err := th.evalIntrinsic(name, term.CallTarget.IntrinsicArgs, argVals, argTypes, dstTy)
	if err != nil {
		return err
	}
	return th.finishCall(fr, dst, val, success, panicTarget)
}

// finishCall writes val (if dst is set) and continues at success —
// shared by plain intrinsics and callPath's extern-call path.
func (th *Thread) finishCall(fr *Frame, dst *module.LValue, val memory.Value, success, panicTarget int) error {
	if th.State.PanicActive {
		fr.bbIdx = panicTarget
		fr.stmtIdx = 0
		return nil
	}
	if dst != nil {
		pl, err := th.evalLValue(fr, dst)
		if err != nil {
			return err
		}
		if err := pl.write(val); err != nil {
			return err
		}
	}
	fr.bbIdx = success
	fr.stmtIdx = 0
	return nil
}

// intrinsicTry implements "try": push_fn's body runs, then this frame's
// pending continuation inspects the panic flag to decide whether to run
// the catch function before finally writing the i32 result (spec.md
// §4.7: "push a wrapper frame that, on return, checks the thread's panic
// flag and writes 0 or 1 plus moves the captured panic payload into the
// caller-provided slot").
func (th *Thread) intrinsicTry(fr *Frame, argVals []memory.Value, dst *module.LValue, success int) error {
	if len(argVals) != 3 {
		return fmt.Errorf("try: expected 3 arguments, got %d", len(argVals))
	}
	tryFn, err := th.resolveFnPointer(&argVals[0])
	if err != nil {
		return err
	}
	data := argVals[1]
	catchPtr := argVals[2]

	fr.pending = &pendingCall{
		dst: dst, success: success,
		cont: func(th *Thread, fr *Frame, callResult memory.Value) error {
			if !th.State.PanicActive {
				return th.finishCall(fr, dst, i32Value(0), success, success)
			}
			payload := th.State.PanicValue
			th.State.PanicActive = false
			th.State.PanicValue = memory.Value{}
			catchFn, err := th.resolveFnPointer(&catchPtr)
			if err != nil {
				return err
			}
			fr.pending = &pendingCall{
				dst: dst, success: success,
				cont: func(th *Thread, fr *Frame, callResult memory.Value) error {
					return th.finishCall(fr, dst, i32Value(1), success, success)
				},
			}
			return th.pushCall(catchFn, []memory.Value{data, payload})
		},
	}
	return th.pushCall(tryFn, []memory.Value{data})
}

func i32Value(x int32) memory.Value {
	v := memory.NewInline(4)
	_ = v.WriteI32(0, x)
	return v
}

func boolValue(b bool) memory.Value {
	v := memory.NewInline(1)
	u := uint8(0)
	if b {
		u = 1
	}
	_ = v.WriteU8(0, u)
	return v
}

func usizeValue(x uint64) memory.Value {
	v := memory.NewInline(memory.PtrSize)
	_ = v.WriteUsize(0, x)
	return v
}

// evalIntrinsic computes the result of every intrinsic that completes in
// a single step (everything except "try", handled separately above).
func (th *Thread) evalIntrinsic(name string, genArgs []*module.Ty, args []memory.Value, argTypes []*module.Ty, dstTy *module.Ty) (memory.Value, error) {
	switch name {
	case "size_of_val":
		sz, err := th.unsizedExtent(args[0], argTypes[0])
		if err != nil {
			return memory.Value{}, err
		}
		return usizeValue(sz), nil

	case "min_align_of_val":
		elemTy, err := pointeeType(argTypes[0])
		if err != nil {
			return memory.Value{}, err
		}
		a, err := module.Align(elemTy, th.Tree)
		if err != nil {
			return memory.Value{}, err
		}
		return usizeValue(a), nil

	case "offset", "arith_offset":
		return th.intrinsicOffset(args[0], argTypes[0], args[1])

	case "copy_nonoverlapping", "copy":
		return memory.Value{}, th.intrinsicCopy(args[0], args[1], argTypes[0], args[2])

	case "write_bytes":
		return memory.Value{}, th.intrinsicWriteBytes(args[0], argTypes[0], args[1], args[2])

	case "transmute":
		if dstTy == nil {
			return memory.Value{}, fmt.Errorf("transmute: no destination type")
		}
		sz, err := module.Size(dstTy, th.Tree)
		if err != nil {
			return memory.Value{}, err
		}
		return args[0].ReadValue(0, int(sz))

	case "assume":
		b, err := args[0].ReadU8(0)
		if err != nil {
			return memory.Value{}, err
		}
		if b == 0 {
			return memory.Value{}, fmt.Errorf("assume: condition was false")
		}
		return memory.Value{}, nil

	case "ptr_guaranteed_eq", "ptr_guaranteed_ne":
		l, err := args[0].ReadUsize(0)
		if err != nil {
			return memory.Value{}, err
		}
		r, err := args[1].ReadUsize(0)
		if err != nil {
			return memory.Value{}, err
		}
		eq := l == r
		if name == "ptr_guaranteed_ne" {
			eq = !eq
		}
		return boolValue(eq), nil

	case "move_val_init":
		return memory.Value{}, nil

	case "uninit", "init":
		if dstTy == nil {
			return memory.Value{}, fmt.Errorf("%s: no destination type", name)
		}
		sz, err := module.Size(dstTy, th.Tree)
		if err != nil {
			return memory.Value{}, err
		}
		out := newValueOfSize(sz)
		if name == "init" {
			buf := make([]byte, sz)
			if err := out.WriteBytes(0, buf); err != nil {
				return memory.Value{}, err
			}
		}
		return out, nil

	case "forget":
		return memory.Value{}, nil

	case "drop_in_place":
		elemTy, err := pointeeType(argTypes[0])
		if err != nil {
			return memory.Value{}, err
		}
		sz, err := module.Size(elemTy, th.Tree)
		if err != nil {
			return memory.Value{}, err
		}
		target, err := args[0].Deref(0, int(sz))
		if err != nil {
			return memory.Value{}, err
		}
		return memory.Value{}, th.dropValue(place{val: &target, ty: elemTy}, false)

	case "type_id":
		if len(genArgs) == 0 {
			return memory.Value{}, fmt.Errorf("type_id: missing type parameter")
		}
		return usizeValue(typeKeyHash(genArgs[0])), nil

	case "type_name":
		return memory.Value{}, fmt.Errorf("type_name: string-constant intrinsics are not supported")

	case "discriminant_value":
		elemTy, err := pointeeType(argTypes[0])
		if err != nil {
			return memory.Value{}, err
		}
		dt, err := module.DataTypeOf(elemTy, th.Tree)
		if err != nil {
			return memory.Value{}, err
		}
		sz, err := module.Size(elemTy, th.Tree)
		if err != nil {
			return memory.Value{}, err
		}
		target, err := args[0].Deref(0, int(sz))
		if err != nil {
			return memory.Value{}, err
		}
		idx, err := th.determineVariant(dt, place{val: &target, ty: elemTy})
		if err != nil {
			return memory.Value{}, err
		}
		if idx >= len(dt.Variants) || len(dt.Variants[idx].TagPath) == 0 {
			return usizeValue(0), nil
		}
		return usizeValue(dt.Variants[idx].Tag), nil

	case "add_with_overflow", "sub_with_overflow", "mul_with_overflow":
		return th.intrinsicCheckedArith(name, args, argTypes, dstTy)

	case "exact_div":
		return th.intrinsicDiv(args, argTypes, false)
	case "overflowing_add", "wrapping_add":
		return th.intrinsicWrapArith(args, argTypes, module.BinAdd)
	case "overflowing_sub", "wrapping_sub", "unchecked_sub":
		return th.intrinsicWrapArith(args, argTypes, module.BinSub)
	case "saturating_add":
		return th.intrinsicSaturating(args, argTypes, module.BinAdd)
	case "saturating_sub":
		return th.intrinsicSaturating(args, argTypes, module.BinSub)

	case "cttz_nonzero":
		return th.intrinsicCttz(args[0], argTypes[0])
	case "ctpop":
		return th.intrinsicCtpop(args[0], argTypes[0])

	case "unlikely", "likely":
		return args[0].ReadValue(0, 1)

	case "panic_if_uninhabited", "assert_inhabited":
		return memory.Value{}, nil

	case "caller_location":
		args[0].EnsureAllocation()
		return memory.Value{}, fmt.Errorf("caller_location: location metadata is not modeled")

	case "atomic_fence", "atomic_fence_acq":
		return memory.Value{}, nil

	case "atomic_xchg", "atomic_xchg_acqrel":
		return th.atomicSwap(args[0], args[1], argTypes[0])

	case "atomic_cxchg", "atomic_cxchg_acq":
		return th.atomicCompareExchange(args[0], args[1], args[2], argTypes[0], dstTy)
	}

	if isAtomicLoad(name) {
		elemTy, err := pointeeType(argTypes[0])
		if err != nil {
			return memory.Value{}, err
		}
		sz, err := module.Size(elemTy, th.Tree)
		if err != nil {
			return memory.Value{}, err
		}
		target, err := args[0].Deref(0, int(sz))
		if err != nil {
			return memory.Value{}, err
		}
		return target.ReadValue(0, int(sz))
	}
	if isAtomicStore(name) {
		return memory.Value{}, th.atomicStore(args[0], args[1], argTypes[0])
	}
	if op, ok := atomicRMWOp(name); ok {
		return th.atomicRMW(args[0], args[1], argTypes[0], op)
	}

	return memory.Value{}, fmt.Errorf("unsupported intrinsic %q", name)
}

func pointeeType(ty *module.Ty) (*module.Ty, error) {
	switch ty.Kind {
	case module.TyRefShared, module.TyRefUnique, module.TyRefMove, module.TyPtrConst, module.TyPtrMut:
		return ty.Elem, nil
	}
	return nil, fmt.Errorf("expected a pointer or reference type")
}

// unsizedExtent computes size_of_val for a (possibly unsized) pointee.
func (th *Thread) unsizedExtent(ptr memory.Value, ptrTy *module.Ty) (uint64, error) {
	elemTy, err := pointeeType(ptrTy)
	if err != nil {
		return 0, err
	}
	if !module.IsUnsized(elemTy) {
		return module.Size(elemTy, th.Tree)
	}
	meta, err := ptr.ReadUsize(memory.PtrSize)
	if err != nil {
		return 0, err
	}
	switch {
	case elemTy.Kind == module.TySlice:
		elemSz, err := module.Size(elemTy.Elem, th.Tree)
		if err != nil {
			return 0, err
		}
		return meta * elemSz, nil
	case elemTy.Kind == module.TyPrimitive && elemTy.Prim == module.RawStr:
		return meta, nil
	}
	return 0, fmt.Errorf("size_of_val of a trait object is not supported")
}

func (th *Thread) intrinsicOffset(ptr memory.Value, ptrTy *module.Ty, count memory.Value) (memory.Value, error) {
	elemTy, err := pointeeType(ptrTy)
	if err != nil {
		return memory.Value{}, err
	}
	elemSz, err := module.Size(elemTy, th.Tree)
	if err != nil {
		return memory.Value{}, err
	}
	n, err := count.ReadIsize(0)
	if err != nil {
		return memory.Value{}, err
	}
	if !ptr.IsAllocated() {
		return memory.Value{}, fmt.Errorf("offset of a value without a relocation")
	}
	alloc, base := ptr.Allocation()
	reloc, ok := alloc.GetRelocation(base)
	if !ok {
		return memory.Value{}, fmt.Errorf("offset of a value without a relocation")
	}
	off, err := ptr.ReadUsize(0)
	if err != nil {
		return memory.Value{}, err
	}
	newOff := uint64(int64(off) + n*int64(elemSz))
	out := memory.NewInline(memory.PtrSize)
	if err := out.WritePointer(0, reloc, newOff); err != nil {
		return memory.Value{}, err
	}
	return out, nil
}

func (th *Thread) intrinsicCopy(dst, src memory.Value, ptrTy *module.Ty, count memory.Value) error {
	elemTy, err := pointeeType(ptrTy)
	if err != nil {
		return err
	}
	elemSz, err := module.Size(elemTy, th.Tree)
	if err != nil {
		return err
	}
	n, err := count.ReadUsize(0)
	if err != nil {
		return err
	}
	size := int(n * elemSz)
	srcWindow, err := src.Deref(0, size)
	if err != nil {
		return err
	}
	v, err := srcWindow.ReadValue(0, size)
	if err != nil {
		return err
	}
	dstWindow, err := dst.Deref(0, size)
	if err != nil {
		return err
	}
	return dstWindow.WriteValue(0, v)
}

func (th *Thread) intrinsicWriteBytes(dst memory.Value, ptrTy *module.Ty, byteVal memory.Value, count memory.Value) error {
	elemTy, err := pointeeType(ptrTy)
	if err != nil {
		return err
	}
	elemSz, err := module.Size(elemTy, th.Tree)
	if err != nil {
		return err
	}
	n, err := count.ReadUsize(0)
	if err != nil {
		return err
	}
	b, err := byteVal.ReadU8(0)
	if err != nil {
		return err
	}
	size := int(n * elemSz)
	dstWindow, err := dst.Deref(0, size)
	if err != nil {
		return err
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = b
	}
	return dstWindow.WriteBytes(0, buf)
}

func (th *Thread) intrinsicCheckedArith(name string, args []memory.Value, argTypes []*module.Ty, dstTy *module.Ty) (memory.Value, error) {
	raw := argTypes[0].Prim
	l, err := readRawUint(&args[0], 0, raw)
	if err != nil {
		return memory.Value{}, err
	}
	r, err := readRawUint(&args[1], 0, raw)
	if err != nil {
		return memory.Value{}, err
	}
	var op module.BinOp
	switch name {
	case "add_with_overflow":
		op = module.BinAdd
	case "sub_with_overflow":
		op = module.BinSub
	case "mul_with_overflow":
		op = module.BinMul
	}
	sz := rawTypeSize(raw)
	wrapped, overflowed := arith(l, r, sz, isSigned(raw), op)
	return th.packCheckedResult(dstTy, raw, sz, wrapped, overflowed)
}

func (th *Thread) intrinsicWrapArith(args []memory.Value, argTypes []*module.Ty, op module.BinOp) (memory.Value, error) {
	raw := argTypes[0].Prim
	l, err := readRawUint(&args[0], 0, raw)
	if err != nil {
		return memory.Value{}, err
	}
	r, err := readRawUint(&args[1], 0, raw)
	if err != nil {
		return memory.Value{}, err
	}
	sz := rawTypeSize(raw)
	wrapped, _ := arith(l, r, sz, isSigned(raw), op)
	out := memory.NewInline(int(sz))
	return out, writeRawUint(&out, raw, wrapped)
}

func (th *Thread) intrinsicSaturating(args []memory.Value, argTypes []*module.Ty, op module.BinOp) (memory.Value, error) {
	raw := argTypes[0].Prim
	l, err := readRawUint(&args[0], 0, raw)
	if err != nil {
		return memory.Value{}, err
	}
	r, err := readRawUint(&args[1], 0, raw)
	if err != nil {
		return memory.Value{}, err
	}
	sz := rawTypeSize(raw)
	signed := isSigned(raw)
	wrapped, overflowed := arith(l, r, sz, signed, op)
	if !overflowed {
		out := memory.NewInline(int(sz))
		return out, writeRawUint(&out, raw, wrapped)
	}
	var sat uint64
	switch {
	case !signed && op == module.BinAdd:
		sat = truncate(^uint64(0), sz)
	case !signed && op == module.BinSub:
		sat = 0
	case signed && op == module.BinAdd:
		if signExtend(l, sz) < 0 && signExtend(r, sz) < 0 {
			sat = uint64(minSigned(sz))
		} else {
			sat = uint64(maxSigned(sz))
		}
	case signed && op == module.BinSub:
		if signExtend(r, sz) < 0 {
			sat = uint64(maxSigned(sz))
		} else {
			sat = uint64(minSigned(sz))
		}
	}
	out := memory.NewInline(int(sz))
	return out, writeRawUint(&out, raw, truncate(sat, sz))
}

func maxSigned(sz uint64) int64 {
	return int64(uint64(1)<<(sz*8-1)) - 1
}

func minSigned(sz uint64) int64 {
	return -maxSigned(sz) - 1
}

func (th *Thread) intrinsicDiv(args []memory.Value, argTypes []*module.Ty, checked bool) (memory.Value, error) {
	raw := argTypes[0].Prim
	l, err := readRawUint(&args[0], 0, raw)
	if err != nil {
		return memory.Value{}, err
	}
	r, err := readRawUint(&args[1], 0, raw)
	if err != nil {
		return memory.Value{}, err
	}
	sz := rawTypeSize(raw)
	wrapped, overflowed := arith(l, r, sz, isSigned(raw), module.BinDiv)
	if overflowed {
		return memory.Value{}, fmt.Errorf("exact_div: division overflowed or divided by zero")
	}
	out := memory.NewInline(int(sz))
	return out, writeRawUint(&out, raw, wrapped)
}

func (th *Thread) intrinsicCttz(v memory.Value, ty *module.Ty) (memory.Value, error) {
	raw := ty.Prim
	x, err := readRawUint(&v, 0, raw)
	if err != nil {
		return memory.Value{}, err
	}
	if x == 0 {
		return memory.Value{}, fmt.Errorf("cttz_nonzero: argument was zero")
	}
	sz := rawTypeSize(raw)
	n := 0
	for (x>>uint(n))&1 == 0 {
		n++
	}
	out := memory.NewInline(int(sz))
	return out, writeRawUint(&out, raw, uint64(n))
}

func (th *Thread) intrinsicCtpop(v memory.Value, ty *module.Ty) (memory.Value, error) {
	raw := ty.Prim
	x, err := readRawUint(&v, 0, raw)
	if err != nil {
		return memory.Value{}, err
	}
	n := 0
	for x != 0 {
		n += int(x & 1)
		x >>= 1
	}
	sz := rawTypeSize(raw)
	out := memory.NewInline(int(sz))
	return out, writeRawUint(&out, raw, uint64(n))
}

func typeKeyHash(ty *module.Ty) uint64 {
	var h uint64 = 1469598103934665603
	var walk func(t *module.Ty)
	write := func(s string) {
		for i := 0; i < len(s); i++ {
			h ^= uint64(s[i])
			h *= 1099511628211
		}
	}
	walk = func(t *module.Ty) {
		if t == nil {
			write("?")
			return
		}
		switch t.Kind {
		case module.TyNamed:
			write(t.Path.Key())
		case module.TyPrimitive:
			write(fmt.Sprintf("p%d", t.Prim))
		case module.TyArray:
			write(fmt.Sprintf("[;%d]", t.Size))
			walk(t.Elem)
		case module.TySlice:
			write("[]")
			walk(t.Elem)
		default:
			write(fmt.Sprintf("k%d", t.Kind))
			walk(t.Elem)
		}
	}
	walk(ty)
	return h
}

// --- atomics: single-threaded, so every atomic op is a plain load,
// store, or read-modify-write with no actual interlocking required
// (spec.md §4.7 "atomic_*: single-threaded emulation — treat as
// non-atomic but preserve ordering of operations within a frame").

func isAtomicLoad(name string) bool {
	switch name {
	case "atomic_load", "atomic_load_relaxed", "atomic_load_acq":
		return true
	}
	return false
}

func isAtomicStore(name string) bool {
	switch name {
	case "atomic_store", "atomic_store_relaxed", "atomic_store_rel":
		return true
	}
	return false
}

func (th *Thread) atomicStore(ptr memory.Value, val memory.Value, ptrTy *module.Ty) error {
	elemTy, err := pointeeType(ptrTy)
	if err != nil {
		return err
	}
	sz, err := module.Size(elemTy, th.Tree)
	if err != nil {
		return err
	}
	target, err := ptr.Deref(0, int(sz))
	if err != nil {
		return err
	}
	return target.WriteValue(0, val)
}

func (th *Thread) atomicSwap(ptr memory.Value, newVal memory.Value, ptrTy *module.Ty) (memory.Value, error) {
	elemTy, err := pointeeType(ptrTy)
	if err != nil {
		return memory.Value{}, err
	}
	sz, err := module.Size(elemTy, th.Tree)
	if err != nil {
		return memory.Value{}, err
	}
	target, err := ptr.Deref(0, int(sz))
	if err != nil {
		return memory.Value{}, err
	}
	old, err := target.ReadValue(0, int(sz))
	if err != nil {
		return memory.Value{}, err
	}
	return old, target.WriteValue(0, newVal)
}

func (th *Thread) atomicCompareExchange(ptr, expected, newVal memory.Value, ptrTy *module.Ty, dstTy *module.Ty) (memory.Value, error) {
	elemTy, err := pointeeType(ptrTy)
	if err != nil {
		return memory.Value{}, err
	}
	if elemTy.Kind != module.TyPrimitive {
		return memory.Value{}, fmt.Errorf("atomic compare-exchange on a non-primitive type")
	}
	raw := elemTy.Prim
	sz, err := module.Size(elemTy, th.Tree)
	if err != nil {
		return memory.Value{}, err
	}
	target, err := ptr.Deref(0, int(sz))
	if err != nil {
		return memory.Value{}, err
	}
	old, err := target.ReadValue(0, int(sz))
	if err != nil {
		return memory.Value{}, err
	}
	oldU, err := readRawUint(&old, 0, raw)
	if err != nil {
		return memory.Value{}, err
	}
	expU, err := readRawUint(&expected, 0, raw)
	if err != nil {
		return memory.Value{}, err
	}
	success := oldU == expU
	if success {
		if err := target.WriteValue(0, newVal); err != nil {
			return memory.Value{}, err
		}
	}
	if dstTy == nil {
		return old, nil
	}
	return th.packPairResult(dstTy, old, boolValue(success))
}

// packPairResult writes a (value, bool) tuple's two fields directly, for
// intrinsics whose destination pair isn't a checked-arithmetic result
// (so the value field isn't always a freshly-computed scalar — cxchg's
// value field is the pre-exchange load, byte-for-byte).
func (th *Thread) packPairResult(dstTy *module.Ty, val, flag memory.Value) (memory.Value, error) {
	dt, err := module.DataTypeOf(dstTy, th.Tree)
	if err != nil {
		return memory.Value{}, err
	}
	if len(dt.Fields) != 2 {
		return memory.Value{}, fmt.Errorf("compare-exchange destination is not a (value, bool) pair")
	}
	out := newValueOfSize(dt.Size)
	if err := out.WriteValue(int(dt.Fields[0].Offset), val); err != nil {
		return memory.Value{}, err
	}
	if err := out.WriteValue(int(dt.Fields[1].Offset), flag); err != nil {
		return memory.Value{}, err
	}
	return out, nil
}

func atomicRMWOp(name string) (module.BinOp, bool) {
	switch name {
	case "atomic_xadd", "atomic_xadd_relaxed":
		return module.BinAdd, true
	case "atomic_xsub", "atomic_xsub_relaxed", "atomic_xsub_rel":
		return module.BinSub, true
	}
	return 0, false
}

// atomicRMW performs a load-op-store at ptr with val, returning the
// PRE-operation value (the usual atomic fetch-and-op contract). It backs
// atomic_xadd/atomic_xsub only; atomic_xchg and atomic_cxchg go through
// atomicSwap and atomicCompareExchange.
func (th *Thread) atomicRMW(ptr memory.Value, val memory.Value, ptrTy *module.Ty, op module.BinOp) (memory.Value, error) {
	elemTy, err := pointeeType(ptrTy)
	if err != nil {
		return memory.Value{}, err
	}
	if elemTy.Kind != module.TyPrimitive {
		return memory.Value{}, fmt.Errorf("atomic read-modify-write on a non-primitive type")
	}
	raw := elemTy.Prim
	sz, err := module.Size(elemTy, th.Tree)
	if err != nil {
		return memory.Value{}, err
	}
	target, err := ptr.Deref(0, int(sz))
	if err != nil {
		return memory.Value{}, err
	}
	old, err := target.ReadValue(0, int(sz))
	if err != nil {
		return memory.Value{}, err
	}
	oldU, err := readRawUint(&old, 0, raw)
	if err != nil {
		return memory.Value{}, err
	}
	addend, err := readRawUint(&val, 0, raw)
	if err != nil {
		return memory.Value{}, err
	}
	wrapped, _ := arith(oldU, addend, rawTypeSize(raw), isSigned(raw), op)
	newVal := memory.NewInline(int(sz))
	if err := writeRawUint(&newVal, raw, wrapped); err != nil {
		return memory.Value{}, err
	}
	if err := target.WriteValue(0, newVal); err != nil {
		return memory.Value{}, err
	}
	return old, nil
}
