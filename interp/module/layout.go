package module

import (
	"fmt"

	"github.com/rustlite/rustlite/interp/memory"
)

// ptrSize is the interpreter's host pointer width. Defined here as an
// alias of memory.PtrSize (rather than a second, independently chosen
// constant) since a type's size/alignment and the value model's pointer
// width are the same number by construction.
const ptrSize = memory.PtrSize

var rawTypeSizes = [...]uint64{
	RawU8: 1, RawU16: 2, RawU32: 4, RawU64: 8, RawU128: 16, RawUSize: ptrSize,
	RawI8: 1, RawI16: 2, RawI32: 4, RawI64: 8, RawI128: 16, RawISize: ptrSize,
	RawF32: 4, RawF64: 8, RawBool: 1, RawChar: 4,
}

var rawTypeAligns = [...]uint64{
	RawU8: 1, RawU16: 2, RawU32: 4, RawU64: 8, RawU128: 8, RawUSize: ptrSize,
	RawI8: 1, RawI16: 2, RawI32: 4, RawI64: 8, RawI128: 8, RawISize: ptrSize,
	RawF32: 4, RawF64: 8, RawBool: 1, RawChar: 4,
}

// IsUnsized reports whether ty has no statically-known size on its own —
// a bare slice, str, or trait object, the three tails a fat pointer's
// second word can describe (module_tree.cpp's TypeRef::get_unsized_type).
// A named composite whose last field is itself unsized is out of scope
// here: the IR's explicit `SIZE n` on every `type` item means this
// interpreter never needs to compute a composite's size from its fields,
// only look it up.
func IsUnsized(ty *Ty) bool {
	switch ty.Kind {
	case TySlice:
		return true
	case TyPrimitive:
		return ty.Prim == RawStr || ty.Prim == RawTraitObject
	default:
		return false
	}
}

// Size returns ty's size in bytes. tree resolves TyNamed references;
// pass nil only for types known not to contain one.
func Size(ty *Ty, tree *ModuleTree) (uint64, error) {
	switch ty.Kind {
	case TyPrimitive:
		if ty.Prim == RawStr || ty.Prim == RawTraitObject {
			return 0, fmt.Errorf("type %s has no static size", rawTypeNames[ty.Prim])
		}
		if ty.Prim == RawFunction {
			return ptrSize, nil
		}
		return rawTypeSizes[ty.Prim], nil
	case TyNamed:
		dt := tree.typeFor(ty.Path.Key())
		if dt.IsPlaceholder() {
			return 0, fmt.Errorf("size of forward-declared type %s never defined", ty.Path.Key())
		}
		return dt.Size, nil
	case TyArray:
		elemSz, err := Size(ty.Elem, tree)
		if err != nil {
			return 0, err
		}
		return elemSz * ty.Size, nil
	case TySlice:
		return 0, fmt.Errorf("slice type has no static size")
	case TyRefShared, TyRefUnique, TyRefMove, TyPtrConst, TyPtrMut:
		if IsUnsized(ty.Elem) {
			return 2 * ptrSize, nil
		}
		return ptrSize, nil
	case TyFn:
		return ptrSize, nil
	case TyUnit:
		return 0, nil
	case TyDiverge:
		return 0, nil
	}
	return 0, fmt.Errorf("unhandled type kind %d in Size", ty.Kind)
}

// Align returns ty's minimum alignment in bytes.
func Align(ty *Ty, tree *ModuleTree) (uint64, error) {
	switch ty.Kind {
	case TyPrimitive:
		if ty.Prim == RawStr {
			return 1, nil
		}
		if ty.Prim == RawTraitObject {
			return ptrSize, nil
		}
		if ty.Prim == RawFunction {
			return ptrSize, nil
		}
		return rawTypeAligns[ty.Prim], nil
	case TyNamed:
		dt := tree.typeFor(ty.Path.Key())
		if dt.IsPlaceholder() {
			return 0, fmt.Errorf("align of forward-declared type %s never defined", ty.Path.Key())
		}
		return dt.Alignment, nil
	case TyArray:
		return Align(ty.Elem, tree)
	case TySlice:
		return Align(ty.Elem, tree)
	case TyRefShared, TyRefUnique, TyRefMove, TyPtrConst, TyPtrMut, TyFn:
		return ptrSize, nil
	case TyUnit, TyDiverge:
		return 1, nil
	}
	return 0, fmt.Errorf("unhandled type kind %d in Align", ty.Kind)
}

// FieldType returns the type and byte offset of field index idx of a
// named composite type ty (struct/union tuple field or, for an enum,
// variant-relative field — callers apply the variant's own base offset
// from Downcast separately, matching module_tree.cpp's get_field taking
// a plain field index against whichever DataType is in scope).
func FieldType(ty *Ty, idx int, tree *ModuleTree) (*Ty, uint64, error) {
	if ty.Kind != TyNamed {
		return nil, 0, fmt.Errorf("field access on non-composite type")
	}
	dt := tree.typeFor(ty.Path.Key())
	if idx < 0 || idx >= len(dt.Fields) {
		return nil, 0, fmt.Errorf("field index %d out of range for %s", idx, ty.Path.Key())
	}
	f := dt.Fields[idx]
	return f.Type, f.Offset, nil
}

// DataTypeOf resolves ty's backing [DataType], failing if ty does not
// name a composite or the reference was never filled in.
func DataTypeOf(ty *Ty, tree *ModuleTree) (*DataType, error) {
	if ty.Kind != TyNamed {
		return nil, fmt.Errorf("not a named composite type")
	}
	dt := tree.typeFor(ty.Path.Key())
	if dt.IsPlaceholder() {
		return nil, fmt.Errorf("type %s never defined", ty.Path.Key())
	}
	return dt, nil
}

// TagFieldOffsetAndSize walks a variant's tag-path field-index chain
// (DataType.Variants[i].TagPath) from dt down to the field that actually
// holds the discriminant bytes, returning that field's absolute byte
// offset and size. A multi-element tag path names a field that is
// itself a composite, descending one level per index — "[base, idx...]"
// in the IR's variant syntax (module_tree.cpp folds the tag string into
// a uint64; the field's own type determines how many of its low bytes
// that packed value occupies, since the source string's length is not
// retained past parsing).
func TagFieldOffsetAndSize(dt *DataType, tagPath []uint64, tree *ModuleTree) (uint64, uint64, error) {
	if len(tagPath) == 0 {
		return 0, 0, fmt.Errorf("empty tag path")
	}
	var ofs uint64
	cur := dt
	for i, idx := range tagPath {
		if int(idx) >= len(cur.Fields) {
			return 0, 0, fmt.Errorf("tag path index %d out of range", idx)
		}
		f := cur.Fields[idx]
		ofs += f.Offset
		if i == len(tagPath)-1 {
			sz, err := Size(f.Type, tree)
			if err != nil {
				return 0, 0, err
			}
			return ofs, sz, nil
		}
		sub, err := DataTypeOf(f.Type, tree)
		if err != nil {
			return 0, 0, fmt.Errorf("tag path descends into non-composite field: %w", err)
		}
		cur = sub
	}
	return 0, 0, fmt.Errorf("unreachable")
}
