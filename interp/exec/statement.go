package exec

import (
	"fmt"

	"github.com/rustlite/rustlite/interp/memory"
	"github.com/rustlite/rustlite/interp/module"
)

// doStatement executes one ASSIGN/DROP/SETFLAG statement in place,
// advancing no control flow itself — StepOne bumps fr.stmtIdx afterward
// (module_tree.cpp's per-statement dispatch in InterpreterThread, the
// part of miri.cpp's control flow that was not present in the retrieved
// reference source; this dispatch is original engineering against the
// statement shapes module/ir.go's parser already establishes).
func (th *Thread) doStatement(fr *Frame, stmt *module.Statement) error {
	switch stmt.Kind {
	case module.StmtAssign:
		return th.doAssign(fr, stmt)
	case module.StmtDrop:
		return th.doDrop(fr, stmt)
	case module.StmtSetFlag:
		return th.doSetFlag(fr, stmt)
	}
	return fmt.Errorf("unhandled statement kind %d", stmt.Kind)
}

func (th *Thread) doAssign(fr *Frame, stmt *module.Statement) error {
	dst, err := th.evalLValue(fr, stmt.Dst)
	if err != nil {
		return err
	}
	v, err := th.evalRValue(fr, stmt.Src, dst.ty)
	if err != nil {
		return err
	}
	return dst.write(v)
}

// doDrop runs DROP/DROPSHALLOW, gated by the statement's drop flag when
// one is set (spec.md §4.7's DropFlagIdx -1 sentinel meaning
// unconditional, module_tree.cpp's ~0u).
func (th *Thread) doDrop(fr *Frame, stmt *module.Statement) error {
	if stmt.DropFlagIdx >= 0 {
		if stmt.DropFlagIdx >= len(fr.dropFlags) {
			return fmt.Errorf("drop flag index %d out of range", stmt.DropFlagIdx)
		}
		if !fr.dropFlags[stmt.DropFlagIdx] {
			return nil
		}
	}
	pl, err := th.evalLValue(fr, stmt.DropTarget)
	if err != nil {
		return err
	}
	return th.dropValue(pl, stmt.DropKind == module.DropShallow)
}

func (th *Thread) doSetFlag(fr *Frame, stmt *module.Statement) error {
	if stmt.FlagIdx < 0 || stmt.FlagIdx >= len(fr.dropFlags) {
		return fmt.Errorf("set-flag index %d out of range", stmt.FlagIdx)
	}
	if !stmt.FromOther {
		fr.dropFlags[stmt.FlagIdx] = stmt.FlagLiteral
		return nil
	}
	if stmt.OtherIdx < 0 || stmt.OtherIdx >= len(fr.dropFlags) {
		return fmt.Errorf("set-flag source index %d out of range", stmt.OtherIdx)
	}
	v := fr.dropFlags[stmt.OtherIdx]
	if stmt.OtherInvert {
		v = !v
	}
	fr.dropFlags[stmt.FlagIdx] = v
	return nil
}

// dropValue recursively invalidates a place's bytes, descending into
// struct/tuple fields and array elements, and releasing the reference
// an owning pointer field (`&mut`, `&move` or `*mut`) holds on its target
// allocation; shared references and `*const` pointers are not released. There is no
// retrieved original implementation of drop_value to adapt (miri.cpp
// declares but never defines it in this corpus) — rather than invent an
// unfounded drop-glue-function-path convention, this follows spec.md
// §4.7's literal wording ("recursively invalidates the dropped place's
// bytes") as a plain structural walk. shallow drops only the named
// place itself, not its fields (module_tree.cpp's DROPSHALLOW — used
// where an enum's active variant, and hence which fields are live, is
// not known at drop-glue-generation time).
func (th *Thread) dropValue(pl place, shallow bool) error {
	sz, err := module.Size(pl.ty, th.Tree)
	if err != nil {
		return err
	}

	if !shallow {
		switch pl.ty.Kind {
		case module.TyRefUnique, module.TyRefMove, module.TyPtrMut:
			if alloc, ok := th.releaseTarget(pl); ok {
				alloc.Release()
			}
		case module.TyNamed:
			dt, err := module.DataTypeOf(pl.ty, th.Tree)
			if err != nil {
				return err
			}
			for _, f := range dt.Fields {
				if err := th.dropValue(place{val: pl.val, ofs: pl.ofs + int(f.Offset), ty: f.Type}, false); err != nil {
					return err
				}
			}
		case module.TyArray:
			elemSz, err := module.Size(pl.ty.Elem, th.Tree)
			if err != nil {
				return err
			}
			for i := uint64(0); i < pl.ty.Size; i++ {
				if err := th.dropValue(place{val: pl.val, ofs: pl.ofs + int(i*elemSz), ty: pl.ty.Elem}, false); err != nil {
					return err
				}
			}
		}
	}

	return pl.val.Invalidate(pl.ofs, int(sz))
}

func (th *Thread) releaseTarget(pl place) (*memory.Allocation, bool) {
	if !pl.val.IsAllocated() {
		return nil, false
	}
	alloc, base := pl.val.Allocation()
	reloc, ok := alloc.GetRelocation(base + pl.ofs)
	if !ok || reloc.Target.Kind != memory.PtrAlloc {
		return nil, false
	}
	return reloc.Target.Alloc, true
}
