package exec

import (
	"fmt"

	"github.com/rustlite/rustlite/interp/memory"
	"github.com/rustlite/rustlite/interp/module"
)

// place is an addressable location: some byte offset within a Value we
// hold a pointer to (original_source's ValueRef, generalized — a plain
// local/arg/return slot has ofs 0 against its own Value; a projection
// accumulates ofs against the same root Value until a Deref swaps the
// root for a freshly dereferenced one).
type place struct {
	val *memory.Value
	ofs int
	ty  *module.Ty
}

func (p place) read(tree *module.ModuleTree) (memory.Value, error) {
	sz, err := module.Size(p.ty, tree)
	if err != nil {
		return memory.Value{}, err
	}
	return p.val.ReadValue(p.ofs, int(sz))
}

func (p place) write(v memory.Value) error {
	return p.val.WriteValue(p.ofs, v)
}

// evalLValue resolves an LValue to a place, walking projections outward
// in (module_tree.cpp's MirHelpers::get_value_and_type).
func (th *Thread) evalLValue(fr *Frame, lv *module.LValue) (place, error) {
	switch lv.Kind {
	case module.LVLocal:
		if lv.Local < 0 || lv.Local >= len(fr.locals) {
			return place{}, fmt.Errorf("local index %d out of range", lv.Local)
		}
		return place{val: fr.locals[lv.Local].In(&th.localsArena), ty: fr.Fn.Locals[lv.Local]}, nil
	case module.LVArgument:
		if lv.Argument < 0 || lv.Argument >= len(fr.args) {
			return place{}, fmt.Errorf("argument index %d out of range", lv.Argument)
		}
		return place{val: &fr.args[lv.Argument], ty: fr.Fn.ArgTypes[lv.Argument]}, nil
	case module.LVReturn:
		return place{val: &fr.ret, ty: fr.Fn.RetType}, nil
	case module.LVStatic:
		return place{}, fmt.Errorf("static values are out of scope (path %s)", lv.Static.Key())
	case module.LVField:
		base, err := th.evalLValue(fr, lv.Base)
		if err != nil {
			return place{}, err
		}
		fieldTy, fieldOfs, err := module.FieldType(base.ty, lv.Field, th.Tree)
		if err != nil {
			return place{}, err
		}
		return place{val: base.val, ofs: base.ofs + int(fieldOfs), ty: fieldTy}, nil
	case module.LVDowncast:
		base, err := th.evalLValue(fr, lv.Base)
		if err != nil {
			return place{}, err
		}
		// A Downcast projects into the variant payload at the same index
		// space as an ordinary field (module_tree.cpp reuses get_field for
		// both — see module/layout.go's FieldType doc comment).
		fieldTy, fieldOfs, err := module.FieldType(base.ty, lv.Idx, th.Tree)
		if err != nil {
			return place{}, err
		}
		return place{val: base.val, ofs: base.ofs + int(fieldOfs), ty: fieldTy}, nil
	case module.LVDeref:
		base, err := th.evalLValue(fr, lv.Base)
		if err != nil {
			return place{}, err
		}
		return th.derefPlace(base)
	case module.LVIndex:
		base, err := th.evalLValue(fr, lv.Base)
		if err != nil {
			return place{}, err
		}
		idxPlace, err := th.evalLValue(fr, lv.Index)
		if err != nil {
			return place{}, err
		}
		idx, err := idxPlace.val.ReadUsize(idxPlace.ofs)
		if err != nil {
			return place{}, err
		}
		if base.ty.Kind != module.TyArray {
			return place{}, fmt.Errorf("indexing a non-array type")
		}
		if idx >= base.ty.Size {
			return place{}, fmt.Errorf("index %d out of bounds for array of length %d", idx, base.ty.Size)
		}
		elemSz, err := module.Size(base.ty.Elem, th.Tree)
		if err != nil {
			return place{}, err
		}
		return place{val: base.val, ofs: base.ofs + int(idx)*int(elemSz), ty: base.ty.Elem}, nil
	}
	return place{}, fmt.Errorf("unhandled lvalue kind %d", lv.Kind)
}

// derefPlace follows base (a pointer/reference-typed place) into the
// allocation it relocates to, resolving trailing slice/str metadata when
// present (module_tree.cpp's Deref arm of get_value_and_type).
func (th *Thread) derefPlace(base place) (place, error) {
	var innerTy *module.Ty
	switch base.ty.Kind {
	case module.TyRefShared, module.TyRefUnique, module.TyRefMove, module.TyPtrConst, module.TyPtrMut:
		innerTy = base.ty.Elem
	default:
		return place{}, fmt.Errorf("dereference of a non-pointer type")
	}

	if module.IsUnsized(innerTy) {
		meta, err := base.val.ReadUsize(base.ofs + memory.PtrSize)
		if err != nil {
			return place{}, err
		}
		var size uint64
		switch {
		case innerTy.Kind == module.TySlice:
			elemSz, err := module.Size(innerTy.Elem, th.Tree)
			if err != nil {
				return place{}, err
			}
			size = meta * elemSz
		case innerTy.Kind == module.TyPrimitive && innerTy.Prim == module.RawStr:
			size = meta
		default:
			return place{}, fmt.Errorf("dereference of a trait object is not supported")
		}
		target, err := base.val.Deref(base.ofs, int(size))
		if err != nil {
			return place{}, err
		}
		return place{val: &target, ty: innerTy}, nil
	}

	size, err := module.Size(innerTy, th.Tree)
	if err != nil {
		return place{}, err
	}
	target, err := base.val.Deref(base.ofs, int(size))
	if err != nil {
		return place{}, err
	}
	return place{val: &target, ty: innerTy}, nil
}

// evalParam evaluates a Param (Constant or LValue) to a fresh Value plus
// its type (module_tree.cpp's MirHelpers::param_to_value).
func (th *Thread) evalParam(fr *Frame, p module.Param) (memory.Value, *module.Ty, error) {
	if p.IsConst() {
		return th.constToValue(p.Const)
	}
	pl, err := th.evalLValue(fr, p.LValue)
	if err != nil {
		return memory.Value{}, nil, err
	}
	v, err := pl.read(th.Tree)
	return v, pl.ty, err
}

// constToValue materializes a Constant as a Value (module_tree.cpp's
// MirHelpers::const_to_value).
func (th *Thread) constToValue(c *module.Constant) (memory.Value, *module.Ty, error) {
	switch c.Kind {
	case module.ConstUint:
		ty := &module.Ty{Kind: module.TyPrimitive, Prim: c.Ty}
		v, err := newScalar(c.Ty)
		if err != nil {
			return memory.Value{}, nil, err
		}
		if err := writeRawUint(&v, c.Ty, c.UintVal); err != nil {
			return memory.Value{}, nil, err
		}
		return v, ty, nil
	case module.ConstInt:
		ty := &module.Ty{Kind: module.TyPrimitive, Prim: c.Ty}
		v, err := newScalar(c.Ty)
		if err != nil {
			return memory.Value{}, nil, err
		}
		if err := writeRawUint(&v, c.Ty, uint64(c.IntVal)); err != nil {
			return memory.Value{}, nil, err
		}
		return v, ty, nil
	case module.ConstFloat:
		ty := &module.Ty{Kind: module.TyPrimitive, Prim: c.Ty}
		v := memory.NewInline(int(rawTypeSize(c.Ty)))
		switch c.Ty {
		case module.RawF32:
			if err := v.WriteF32(0, float32(c.FloatVal)); err != nil {
				return memory.Value{}, nil, err
			}
		case module.RawF64:
			if err := v.WriteF64(0, c.FloatVal); err != nil {
				return memory.Value{}, nil, err
			}
		default:
			return memory.Value{}, nil, fmt.Errorf("invalid float constant type")
		}
		return v, ty, nil
	case module.ConstBool:
		ty := &module.Ty{Kind: module.TyPrimitive, Prim: module.RawBool}
		v := memory.NewInline(1)
		b := uint8(0)
		if c.BoolVal {
			b = 1
		}
		if err := v.WriteU8(0, b); err != nil {
			return memory.Value{}, nil, err
		}
		return v, ty, nil
	case module.ConstUnit:
		return memory.NewInline(0), &module.Ty{Kind: module.TyUnit}, nil
	case module.ConstItemAddr:
		if _, ok := th.Tree.Function(c.ItemAddr.Key()); !ok {
			return memory.Value{}, nil, fmt.Errorf("address of undefined item %s", c.ItemAddr.Key())
		}
		v := memory.NewInline(memory.PtrSize)
		if err := v.WritePointer(0, memory.Relocation{Target: memory.AllocPtr{Kind: memory.PtrFunction, Name: c.ItemAddr.Key()}}, 0); err != nil {
			return memory.Value{}, nil, err
		}
		return v, &module.Ty{Kind: module.TyFn}, nil
	}
	return memory.Value{}, nil, fmt.Errorf("unhandled constant kind %d", c.Kind)
}

func newScalar(t module.RawType) (memory.Value, error) {
	sz := rawTypeSize(t)
	if sz == 0 {
		return memory.Value{}, fmt.Errorf("unsupported scalar type in constant")
	}
	return memory.NewInline(int(sz)), nil
}

// rawTypeSize is a small local mirror of module's private rawTypeSizes
// table, needed here for 128-bit detection (u128/i128 constants are
// explicitly unsupported — see writeRawUint).
func rawTypeSize(t module.RawType) uint64 {
	switch t {
	case module.RawU8, module.RawI8, module.RawBool:
		return 1
	case module.RawU16, module.RawI16:
		return 2
	case module.RawU32, module.RawI32, module.RawF32, module.RawChar:
		return 4
	case module.RawU64, module.RawI64, module.RawF64, module.RawUSize, module.RawISize:
		return 8
	case module.RawU128, module.RawI128:
		return 16
	}
	return 0
}

// writeRawUint writes the low bytes of x into v per t's width. 128-bit
// integers are explicitly out of scope: no interpreted program in this
// corpus's test surface needs i128/u128 arithmetic, and Go has no native
// 128-bit integer to back PrimitiveValue's add/subtract/multiply with.
func writeRawUint(v *memory.Value, t module.RawType, x uint64) error {
	switch t {
	case module.RawU8, module.RawI8:
		return v.WriteU8(0, uint8(x))
	case module.RawU16, module.RawI16:
		return v.WriteU16(0, uint16(x))
	case module.RawU32, module.RawI32, module.RawChar:
		return v.WriteU32(0, uint32(x))
	case module.RawU64, module.RawI64, module.RawUSize, module.RawISize:
		return v.WriteU64(0, x)
	case module.RawU128, module.RawI128:
		return fmt.Errorf("128-bit integer constants are not supported")
	}
	return fmt.Errorf("invalid integer constant type")
}

func readRawUint(v *memory.Value, ofs int, t module.RawType) (uint64, error) {
	switch t {
	case module.RawU8, module.RawI8:
		x, err := v.ReadU8(ofs)
		return uint64(x), err
	case module.RawU16, module.RawI16:
		x, err := v.ReadU16(ofs)
		return uint64(x), err
	case module.RawU32, module.RawI32, module.RawChar:
		x, err := v.ReadU32(ofs)
		return uint64(x), err
	case module.RawU64, module.RawI64, module.RawUSize, module.RawISize:
		return v.ReadU64(ofs)
	}
	return 0, fmt.Errorf("invalid integer type for raw read")
}

func isSigned(t module.RawType) bool {
	switch t {
	case module.RawI8, module.RawI16, module.RawI32, module.RawI64, module.RawI128, module.RawISize:
		return true
	}
	return false
}

func isFloatType(t module.RawType) bool {
	return t == module.RawF32 || t == module.RawF64
}

// evalRValue evaluates the right-hand side of an ASSIGN statement,
// producing a value sized and shaped for dstTy (needed for the tuple
// construction forms — RVTuple/RVStruct/RVVariant/overflow-checked
// RVBinOp — whose layout comes from the destination's own registered
// DataType, not from the RValue's syntax alone).
func (th *Thread) evalRValue(fr *Frame, rv *module.RValue, dstTy *module.Ty) (memory.Value, error) {
	switch rv.Kind {
	case module.RVConstant:
		v, _, err := th.constToValue(rv.Const)
		return v, err
	case module.RVLValue:
		pl, err := th.evalLValue(fr, rv.LVal)
		if err != nil {
			return memory.Value{}, err
		}
		return pl.read(th.Tree)
	case module.RVBorrow:
		return th.evalBorrow(fr, rv)
	case module.RVTuple:
		return th.evalComposite(fr, dstTy, rv.Elems)
	case module.RVArray:
		return th.evalArray(fr, dstTy, rv.Elems)
	case module.RVSizedArray:
		return th.evalSizedArray(fr, dstTy, rv.Repeat, rv.RepeatSize)
	case module.RVStruct:
		return th.evalComposite(fr, dstTy, rv.Fields)
	case module.RVVariant:
		return th.evalVariant(fr, dstTy, rv)
	case module.RVCast:
		return th.evalCast(fr, rv)
	case module.RVUnOp:
		return th.evalUnOp(fr, rv)
	case module.RVBinOp:
		return th.evalBinOp(fr, rv, dstTy)
	case module.RVMakeDst:
		return th.evalMakeDst(fr, rv)
	case module.RVDstPtr:
		return th.evalDstPart(fr, rv.LVal, 0, memory.PtrSize)
	case module.RVDstMeta:
		return th.evalDstPart(fr, rv.LVal, memory.PtrSize, memory.PtrSize)
	}
	return memory.Value{}, fmt.Errorf("unhandled rvalue kind %d", rv.Kind)
}

func (th *Thread) evalBorrow(fr *Frame, rv *module.RValue) (memory.Value, error) {
	pl, err := th.evalLValue(fr, rv.BorrowOf)
	if err != nil {
		return memory.Value{}, err
	}
	if module.IsUnsized(pl.ty) {
		return memory.Value{}, fmt.Errorf("borrowing an unsized place directly is not supported; use MAKEDST")
	}
	pl.val.EnsureAllocation()
	alloc, base := pl.val.Allocation()
	out := memory.NewInline(memory.PtrSize)
	if err := out.WritePointer(0, memory.Relocation{Target: memory.AllocPtr{Kind: memory.PtrAlloc, Alloc: alloc}}, uint64(base+pl.ofs)); err != nil {
		return memory.Value{}, err
	}
	return out, nil
}

func (th *Thread) evalComposite(fr *Frame, dstTy *module.Ty, elems []module.Param) (memory.Value, error) {
	dt, err := module.DataTypeOf(dstTy, th.Tree)
	if err != nil {
		return memory.Value{}, err
	}
	out := newValueOfSize(dt.Size)
	for i, p := range elems {
		if i >= len(dt.Fields) {
			return memory.Value{}, fmt.Errorf("too many fields for composite of %d", len(dt.Fields))
		}
		v, _, err := th.evalParam(fr, p)
		if err != nil {
			return memory.Value{}, err
		}
		if err := out.WriteValue(int(dt.Fields[i].Offset), v); err != nil {
			return memory.Value{}, err
		}
	}
	return out, nil
}

func (th *Thread) evalArray(fr *Frame, dstTy *module.Ty, elems []module.Param) (memory.Value, error) {
	elemTy := dstTy.Elem
	elemSz, err := module.Size(elemTy, th.Tree)
	if err != nil {
		return memory.Value{}, err
	}
	out := newValueOfSize(elemSz * uint64(len(elems)))
	for i, p := range elems {
		v, _, err := th.evalParam(fr, p)
		if err != nil {
			return memory.Value{}, err
		}
		if err := out.WriteValue(i*int(elemSz), v); err != nil {
			return memory.Value{}, err
		}
	}
	return out, nil
}

func (th *Thread) evalSizedArray(fr *Frame, dstTy *module.Ty, repeat module.Param, n uint64) (memory.Value, error) {
	elemTy := dstTy.Elem
	elemSz, err := module.Size(elemTy, th.Tree)
	if err != nil {
		return memory.Value{}, err
	}
	v, _, err := th.evalParam(fr, repeat)
	if err != nil {
		return memory.Value{}, err
	}
	out := newValueOfSize(elemSz * n)
	for i := uint64(0); i < n; i++ {
		if err := out.WriteValue(int(i*elemSz), v); err != nil {
			return memory.Value{}, err
		}
	}
	return out, nil
}

func (th *Thread) evalVariant(fr *Frame, dstTy *module.Ty, rv *module.RValue) (memory.Value, error) {
	dt, err := module.DataTypeOf(dstTy, th.Tree)
	if err != nil {
		return memory.Value{}, err
	}
	if rv.VariantIdx < 0 || rv.VariantIdx >= len(dt.Fields) {
		return memory.Value{}, fmt.Errorf("variant index %d out of range", rv.VariantIdx)
	}
	out := newValueOfSize(dt.Size)
	payload, _, err := th.evalParam(fr, rv.VariantVal)
	if err != nil {
		return memory.Value{}, err
	}
	if err := out.WriteValue(int(dt.Fields[rv.VariantIdx].Offset), payload); err != nil {
		return memory.Value{}, err
	}
	if rv.VariantIdx < len(dt.Variants) {
		variant := dt.Variants[rv.VariantIdx]
		if len(variant.TagPath) > 0 {
			ofs, size, err := module.TagFieldOffsetAndSize(dt, variant.TagPath, th.Tree)
			if err != nil {
				return memory.Value{}, err
			}
			var buf [8]byte
			for i := uint64(0); i < size && i < 8; i++ {
				buf[i] = byte(variant.Tag >> (8 * i))
			}
			if err := out.WriteBytes(int(ofs), buf[:size]); err != nil {
				return memory.Value{}, err
			}
		}
	}
	return out, nil
}

func (th *Thread) evalCast(fr *Frame, rv *module.RValue) (memory.Value, error) {
	srcPlace, err := th.evalLValue(fr, rv.CastLVal)
	if err != nil {
		return memory.Value{}, err
	}
	srcVal, err := srcPlace.read(th.Tree)
	if err != nil {
		return memory.Value{}, err
	}
	toSz, err := module.Size(rv.CastTo, th.Tree)
	if err != nil {
		return memory.Value{}, err
	}

	// Pointer-shaped casts (ref/ptr <-> ref/ptr/usize) preserve the byte
	// representation (and any relocation) as-is; the original's Value
	// model treats this identically to a same-size integer cast.
	switch rv.CastTo.Kind {
	case module.TyRefShared, module.TyRefUnique, module.TyRefMove, module.TyPtrConst, module.TyPtrMut, module.TyFn:
		return srcVal.ReadValue(0, int(toSz))
	}
	if srcPlace.ty.Kind != module.TyPrimitive {
		return srcVal.ReadValue(0, int(toSz))
	}

	fromRaw, toRaw := srcPlace.ty.Prim, rv.CastTo.Prim
	if isFloatType(fromRaw) || isFloatType(toRaw) {
		var f float64
		switch fromRaw {
		case module.RawF32:
			x, err := srcVal.ReadF32(0)
			if err != nil {
				return memory.Value{}, err
			}
			f = float64(x)
		case module.RawF64:
			f, err = srcVal.ReadF64(0)
			if err != nil {
				return memory.Value{}, err
			}
		default:
			u, err := readRawUint(&srcVal, 0, fromRaw)
			if err != nil {
				return memory.Value{}, err
			}
			if isSigned(fromRaw) {
				f = float64(signExtend(u, rawTypeSize(fromRaw)))
			} else {
				f = float64(u)
			}
		}
		out := memory.NewInline(int(toSz))
		switch toRaw {
		case module.RawF32:
			return out, out.WriteF32(0, float32(f))
		case module.RawF64:
			return out, out.WriteF64(0, f)
		default:
			if isSigned(toRaw) {
				return out, writeRawUint(&out, toRaw, uint64(int64(f)))
			}
			return out, writeRawUint(&out, toRaw, uint64(f))
		}
	}

	u, err := readRawUint(&srcVal, 0, fromRaw)
	if err != nil {
		return memory.Value{}, err
	}
	if isSigned(fromRaw) {
		u = uint64(signExtend(u, rawTypeSize(fromRaw)))
	}
	out := memory.NewInline(int(toSz))
	return out, writeRawUint(&out, toRaw, u)
}

func signExtend(u uint64, size uint64) int64 {
	switch size {
	case 1:
		return int64(int8(u))
	case 2:
		return int64(int16(u))
	case 4:
		return int64(int32(u))
	default:
		return int64(u)
	}
}

func (th *Thread) evalUnOp(fr *Frame, rv *module.RValue) (memory.Value, error) {
	pl, err := th.evalLValue(fr, rv.UnOpOperand)
	if err != nil {
		return memory.Value{}, err
	}
	v, err := pl.read(th.Tree)
	if err != nil {
		return memory.Value{}, err
	}
	if pl.ty.Kind != module.TyPrimitive {
		return memory.Value{}, fmt.Errorf("unary operator on non-primitive type")
	}
	raw := pl.ty.Prim
	if raw == module.RawBool {
		b, err := v.ReadU8(0)
		if err != nil {
			return memory.Value{}, err
		}
		out := memory.NewInline(1)
		if rv.UnOpOp != module.UnOpInv {
			return memory.Value{}, fmt.Errorf("negation of a bool")
		}
		if b == 0 {
			return out, out.WriteU8(0, 1)
		}
		return out, out.WriteU8(0, 0)
	}
	if isFloatType(raw) {
		if rv.UnOpOp != module.UnOpNeg {
			return memory.Value{}, fmt.Errorf("bitwise inversion of a float")
		}
		out := memory.NewInline(int(rawTypeSize(raw)))
		if raw == module.RawF32 {
			f, err := v.ReadF32(0)
			if err != nil {
				return memory.Value{}, err
			}
			return out, out.WriteF32(0, -f)
		}
		f, err := v.ReadF64(0)
		if err != nil {
			return memory.Value{}, err
		}
		return out, out.WriteF64(0, -f)
	}
	u, err := readRawUint(&v, 0, raw)
	if err != nil {
		return memory.Value{}, err
	}
	sz := rawTypeSize(raw)
	var result uint64
	switch rv.UnOpOp {
	case module.UnOpInv:
		result = truncate(^u, sz)
	case module.UnOpNeg:
		result = truncate(uint64(-int64(u)), sz)
	}
	out := memory.NewInline(int(sz))
	return out, writeRawUint(&out, raw, result)
}

func truncate(x uint64, size uint64) uint64 {
	if size >= 8 {
		return x
	}
	return x & ((uint64(1) << (8 * size)) - 1)
}

// evalBinOp evaluates a binary RValue. The plain arithmetic forms
// (BinAdd/BinSub/BinMul/BinDiv) are release-mode wrapping MIR BinaryOp —
// they always write the truncated result, exactly like
// original_source's PrimitiveUInt<T>::add writing its wrapped sum
// regardless of the overflow flag it also computes. The "^"-suffixed
// forms are MIR's CheckedBinaryOp: they always produce a (T, bool) pair
// of wrapped-result and overflow-flag, with the actual panic raised
// later by a separate IF/PANIC terminator pair that reads the bool —
// never by the BinOp itself.
func (th *Thread) evalBinOp(fr *Frame, rv *module.RValue, dstTy *module.Ty) (memory.Value, error) {
	lhs, lty, err := th.evalParam(fr, rv.BinOpLHS)
	if err != nil {
		return memory.Value{}, err
	}
	rhs, _, err := th.evalParam(fr, rv.BinOpRHS)
	if err != nil {
		return memory.Value{}, err
	}

	switch rv.BinOpOp {
	case module.BinLt, module.BinLe, module.BinGt, module.BinGe, module.BinEq, module.BinNe:
		return th.evalCompare(lhs, rhs, lty, rv.BinOpOp)
	}

	if lty.Kind != module.TyPrimitive {
		// Pointer/reference comparisons never reach here (evalCompare
		// above handles them) and offset arithmetic goes through the
		// offset intrinsic; any other non-primitive operand is a grammar
		// error.
		return memory.Value{}, fmt.Errorf("binary operator on non-primitive type")
	}
	raw := lty.Prim

	if isFloatType(raw) {
		return th.evalFloatBinOp(lhs, rhs, raw, rv.BinOpOp)
	}

	l, err := readRawUint(&lhs, 0, raw)
	if err != nil {
		return memory.Value{}, err
	}
	r, err := readRawUint(&rhs, 0, raw)
	if err != nil {
		return memory.Value{}, err
	}
	sz := rawTypeSize(raw)
	signed := isSigned(raw)

	switch rv.BinOpOp {
	case module.BinBitOr, module.BinBitAnd, module.BinBitXor, module.BinShl, module.BinShr:
		var result uint64
		switch rv.BinOpOp {
		case module.BinBitOr:
			result = l | r
		case module.BinBitAnd:
			result = l & r
		case module.BinBitXor:
			result = l ^ r
		case module.BinShl:
			result = truncate(l<<(r&(sz*8-1)), sz)
		case module.BinShr:
			if signed {
				result = uint64(signExtend(l, sz) >> (r & (sz*8 - 1)))
			} else {
				result = l >> (r & (sz*8 - 1))
			}
		}
		out := memory.NewInline(int(sz))
		return out, writeRawUint(&out, raw, truncate(result, sz))
	}

	wrapped, overflowed := arith(l, r, sz, signed, rv.BinOpOp)

	switch rv.BinOpOp {
	case module.BinAddOv, module.BinSubOv, module.BinMulOv, module.BinDivOv:
		return th.packCheckedResult(dstTy, raw, sz, wrapped, overflowed)
	default:
		out := memory.NewInline(int(sz))
		return out, writeRawUint(&out, raw, wrapped)
	}
}

// arith performs the core integer op on l/r interpreted per sz/signed,
// returning the truncated wrapped result and whether it overflowed that
// width (original_source's PrimitiveUInt<T>/PrimitiveSInt<T> add/
// subtract/multiply/divide).
func arith(l, r uint64, sz uint64, signed bool, op module.BinOp) (wrapped uint64, overflowed bool) {
	base := op
	switch op {
	case module.BinAddOv:
		base = module.BinAdd
	case module.BinSubOv:
		base = module.BinSub
	case module.BinMulOv:
		base = module.BinMul
	case module.BinDivOv:
		base = module.BinDiv
	}

	if signed {
		sl, sr := signExtend(l, sz), signExtend(r, sz)
		var res int64
		switch base {
		case module.BinAdd:
			res = sl + sr
		case module.BinSub:
			res = sl - sr
		case module.BinMul:
			res = sl * sr
		case module.BinDiv:
			if sr == 0 {
				return 0, true
			}
			res = sl / sr
		}
		wrapped = truncate(uint64(res), sz)
		rewidened := signExtend(wrapped, sz)
		overflowed = rewidened != res
		return wrapped, overflowed
	}

	var res uint64
	switch base {
	case module.BinAdd:
		res = l + r
	case module.BinSub:
		res = l - r
	case module.BinMul:
		res = l * r
	case module.BinDiv:
		if r == 0 {
			return 0, true
		}
		res = l / r
	}
	wrapped = truncate(res, sz)
	overflowed = wrapped != res
	// Subtraction additionally overflows (wraps negative) whenever r > l,
	// which plain truncation above does not by itself detect for sz==8.
	if base == module.BinSub && r > l {
		overflowed = true
	}
	return wrapped, overflowed
}

func (th *Thread) packCheckedResult(dstTy *module.Ty, raw module.RawType, sz uint64, wrapped uint64, overflowed bool) (memory.Value, error) {
	dt, err := module.DataTypeOf(dstTy, th.Tree)
	if err != nil {
		return memory.Value{}, err
	}
	if len(dt.Fields) != 2 {
		return memory.Value{}, fmt.Errorf("checked arithmetic destination is not a (value, bool) pair")
	}
	out := newValueOfSize(dt.Size)
	scalar := memory.NewInline(int(sz))
	if err := writeRawUint(&scalar, raw, wrapped); err != nil {
		return memory.Value{}, err
	}
	if err := out.WriteValue(int(dt.Fields[0].Offset), scalar); err != nil {
		return memory.Value{}, err
	}
	flag := memory.NewInline(1)
	b := uint8(0)
	if overflowed {
		b = 1
	}
	if err := flag.WriteU8(0, b); err != nil {
		return memory.Value{}, err
	}
	if err := out.WriteValue(int(dt.Fields[1].Offset), flag); err != nil {
		return memory.Value{}, err
	}
	return out, nil
}

func (th *Thread) evalFloatBinOp(lhs, rhs memory.Value, raw module.RawType, op module.BinOp) (memory.Value, error) {
	read := func(v *memory.Value) (float64, error) {
		if raw == module.RawF32 {
			f, err := v.ReadF32(0)
			return float64(f), err
		}
		return v.ReadF64(0)
	}
	l, err := read(&lhs)
	if err != nil {
		return memory.Value{}, err
	}
	r, err := read(&rhs)
	if err != nil {
		return memory.Value{}, err
	}
	var res float64
	switch op {
	case module.BinAdd:
		res = l + r
	case module.BinSub:
		res = l - r
	case module.BinMul:
		res = l * r
	case module.BinDiv:
		res = l / r
	default:
		return memory.Value{}, fmt.Errorf("unsupported floating-point binary operator")
	}
	sz := rawTypeSize(raw)
	out := memory.NewInline(int(sz))
	if raw == module.RawF32 {
		return out, out.WriteF32(0, float32(res))
	}
	return out, out.WriteF64(0, res)
}

func (th *Thread) evalCompare(lhs, rhs memory.Value, ty *module.Ty, op module.BinOp) (memory.Value, error) {
	var cmp int
	switch {
	case ty.Kind == module.TyPrimitive && isFloatType(ty.Prim):
		read := func(v *memory.Value) (float64, error) {
			if ty.Prim == module.RawF32 {
				f, err := v.ReadF32(0)
				return float64(f), err
			}
			return v.ReadF64(0)
		}
		l, err := read(&lhs)
		if err != nil {
			return memory.Value{}, err
		}
		r, err := read(&rhs)
		if err != nil {
			return memory.Value{}, err
		}
		switch {
		case l < r:
			cmp = -1
		case l > r:
			cmp = 1
		default:
			cmp = 0
		}
	case ty.Kind == module.TyPrimitive:
		raw := ty.Prim
		l, err := readRawUint(&lhs, 0, raw)
		if err != nil {
			return memory.Value{}, err
		}
		r, err := readRawUint(&rhs, 0, raw)
		if err != nil {
			return memory.Value{}, err
		}
		if isSigned(raw) {
			sz := rawTypeSize(raw)
			sl, sr := signExtend(l, sz), signExtend(r, sz)
			switch {
			case sl < sr:
				cmp = -1
			case sl > sr:
				cmp = 1
			}
		} else {
			switch {
			case l < r:
				cmp = -1
			case l > r:
				cmp = 1
			}
		}
	default:
		// Pointer equality: compare the raw pointer-field bytes, ignoring
		// relocation identity beyond what those bytes already encode.
		l, err := lhs.ReadUsize(0)
		if err != nil {
			return memory.Value{}, err
		}
		r, err := rhs.ReadUsize(0)
		if err != nil {
			return memory.Value{}, err
		}
		switch {
		case l < r:
			cmp = -1
		case l > r:
			cmp = 1
		}
	}

	var b bool
	switch op {
	case module.BinLt:
		b = cmp < 0
	case module.BinLe:
		b = cmp <= 0
	case module.BinGt:
		b = cmp > 0
	case module.BinGe:
		b = cmp >= 0
	case module.BinEq:
		b = cmp == 0
	case module.BinNe:
		b = cmp != 0
	}
	out := memory.NewInline(1)
	u := uint8(0)
	if b {
		u = 1
	}
	return out, out.WriteU8(0, u)
}

// evalMakeDst builds a fat pointer from a thin pointer (Parts[0]) and a
// metadata word (Parts[1]) — module_tree.cpp's explicit "MAKEDST" RValue,
// used where the MIR does not already carry an implicit unsize coercion.
func (th *Thread) evalMakeDst(fr *Frame, rv *module.RValue) (memory.Value, error) {
	ptr, _, err := th.evalParam(fr, rv.DstPtr)
	if err != nil {
		return memory.Value{}, err
	}
	meta, _, err := th.evalParam(fr, rv.DstMeta)
	if err != nil {
		return memory.Value{}, err
	}
	out := newValueOfSize(2 * memory.PtrSize)
	if err := out.WriteValue(0, ptr); err != nil {
		return memory.Value{}, err
	}
	if err := out.WriteValue(memory.PtrSize, meta); err != nil {
		return memory.Value{}, err
	}
	return out, nil
}

func (th *Thread) evalDstPart(fr *Frame, lv *module.LValue, ofs, size int) (memory.Value, error) {
	pl, err := th.evalLValue(fr, lv)
	if err != nil {
		return memory.Value{}, err
	}
	return pl.val.ReadValue(pl.ofs+ofs, size)
}

// determineVariant finds which variant of dt a value at place currently
// holds, by comparing the tag-path bytes against each variant's packed
// tag, falling back to the unique tag-less variant if any (spec.md
// §4.7's discriminant_value: "fall back to the unique 'no tag' variant
// if no tag path exists").
func (th *Thread) determineVariant(dt *module.DataType, val place) (int, error) {
	fallback := -1
	for i, v := range dt.Variants {
		if len(v.TagPath) == 0 {
			if fallback != -1 {
				return 0, fmt.Errorf("more than one tag-less variant")
			}
			fallback = i
			continue
		}
		ofs, size, err := module.TagFieldOffsetAndSize(dt, v.TagPath, th.Tree)
		if err != nil {
			return 0, err
		}
		var buf [8]byte
		if err := val.val.ReadBytes(val.ofs+int(ofs), buf[:size]); err != nil {
			return 0, err
		}
		var got uint64
		for j := uint64(0); j < size && j < 8; j++ {
			got |= uint64(buf[j]) << (8 * j)
		}
		if got == v.Tag {
			return i, nil
		}
	}
	if fallback != -1 {
		return fallback, nil
	}
	return 0, fmt.Errorf("no matching variant for discriminant")
}
