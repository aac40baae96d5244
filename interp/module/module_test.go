package module_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rustlite/rustlite/interp/module"
)

// mapResolver resolves crate paths from an in-memory map, standing in for
// a filesystem or embedded-IR resolver in tests.
type mapResolver map[string][]byte

func (m mapResolver) Resolve(path string) ([]byte, error) {
	data, ok := m[path]
	if !ok {
		return nil, fmt.Errorf("no such crate %q", path)
	}
	return data, nil
}

func TestLoadFunctionAndType(t *testing.T) {
	src := `
type ::"root"::Point {
	SIZE 8, ALIGN 4;
	0 = u32;
	4 = u32;
}
fn ::"root"::sum(::"root"::Point,): u32 {
	0: {
		ASSIGN RETURN = BINOP arg0.0 + arg0.1;
		RETURN
	}
}
`
	tree, diags, err := module.Load(context.Background(), mapResolver{"root": []byte(src)}, []string{"root"}, 1)
	require.NoError(t, err)
	require.Empty(t, diags)

	dt, ok := tree.DataType(`::"root"::Point`)
	require.True(t, ok)
	require.False(t, dt.IsPlaceholder())
	require.Equal(t, uint64(8), dt.Size)
	require.Equal(t, uint64(4), dt.Alignment)
	require.Len(t, dt.Fields, 2)

	fn, ok := tree.Function(`::"root"::sum`)
	require.True(t, ok)
	require.Len(t, fn.ArgTypes, 1)
	require.Len(t, fn.Blocks, 1)

	term := fn.Blocks[0].Term
	require.Equal(t, module.TermReturn, term.Kind)
	require.Len(t, fn.Blocks[0].Stmts, 1)

	stmt := fn.Blocks[0].Stmts[0]
	require.Equal(t, module.StmtAssign, stmt.Kind)
	require.Equal(t, module.LVReturn, stmt.Dst.Kind)
	require.Equal(t, module.RVBinOp, stmt.Src.Kind)
	require.Equal(t, module.BinAdd, stmt.Src.BinOpOp)
}

// A function body referencing a type before it is defined forces a
// placeholder (alignment 0) into the registry; a later `type` item for the
// same path fills the very same entry in place (spec.md §4.5).
func TestForwardDeclaredTypePlaceholderIsFilledIn(t *testing.T) {
	src := `
fn ::"root"::make(): ::"root"::Widget {
	0: {
		RETURN
	}
}
type ::"root"::Widget {
	SIZE 4, ALIGN 4;
}
`
	tree, diags, err := module.Load(context.Background(), mapResolver{"root": []byte(src)}, []string{"root"}, 1)
	require.NoError(t, err)
	require.Empty(t, diags)

	dt, ok := tree.DataType(`::"root"::Widget`)
	require.True(t, ok)
	require.False(t, dt.IsPlaceholder())
	require.Equal(t, uint64(4), dt.Alignment)
}

// Two crates defining the same non-placeholder type is tolerated (logged,
// not a hard error), matching module_tree.cpp's "Not really an error, can
// happen when loading crates".
func TestDuplicateTypeDefinitionIsTolerated(t *testing.T) {
	resolver := mapResolver{
		"root": []byte(`
crate "dep";
type ::"dep"::Shared {
	SIZE 4, ALIGN 4;
}
`),
		"dep": []byte(`
type ::"dep"::Shared {
	SIZE 4, ALIGN 4;
}
`),
	}
	tree, diags, err := module.Load(context.Background(), resolver, []string{"root"}, 2)
	require.NoError(t, err)
	require.Len(t, diags, 1)
	require.Contains(t, diags[0], `::"dep"::Shared`)

	dt, ok := tree.DataType(`::"dep"::Shared`)
	require.True(t, ok)
	require.Equal(t, uint64(4), dt.Alignment)
}

func TestVariantTagPacking(t *testing.T) {
	src := `
type ::"root"::Opt {
	SIZE 8, ALIGN 4;
	0 = u32;
	[0] = "A";
	[1] = "BC";
}
`
	tree, _, err := module.Load(context.Background(), mapResolver{"root": []byte(src)}, []string{"root"}, 1)
	require.NoError(t, err)

	dt, ok := tree.DataType(`::"root"::Opt`)
	require.True(t, ok)
	require.Len(t, dt.Variants, 2)
	require.Equal(t, []uint64{0}, dt.Variants[0].TagPath)
	require.Equal(t, uint64('A'), dt.Variants[0].Tag)
	require.Equal(t, []uint64{1}, dt.Variants[1].TagPath)
	require.Equal(t, uint64('B')|uint64('C')<<8, dt.Variants[1].Tag)
}

func TestIfGotoControlFlow(t *testing.T) {
	src := `
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
`
	tree, _, err := module.Load(context.Background(), mapResolver{"root": []byte(src)}, []string{"root"}, 1)
	require.NoError(t, err)

	fn, ok := tree.Function(`::"root"::choose`)
	require.True(t, ok)
	require.Len(t, fn.Blocks, 4)

	require.Equal(t, module.TermIf, fn.Blocks[0].Term.Kind)
	require.Equal(t, 1, fn.Blocks[0].Term.IfTrue)
	require.Equal(t, 2, fn.Blocks[0].Term.IfFalse)

	require.Equal(t, module.TermGoto, fn.Blocks[1].Term.Kind)
	require.Equal(t, 3, fn.Blocks[1].Term.Target)

	last := fn.Blocks[3]
	require.Equal(t, module.RVLValue, last.Stmts[0].Src.Kind)
	require.Equal(t, module.LVLocal, last.Stmts[0].Src.LVal.Kind)
}

func TestDropAndSetFlagStatements(t *testing.T) {
	src := `
fn ::"root"::drops(): () {
	let v: u32;
	let df1 = 1;
	let df2 = 0;
	0: {
		DROP v SHALLOW IF df1;
		SETFLAG df2 = df1;
		SETFLAG df1 = !df2;
		DROP v;
		RETURN
	}
}
`
	tree, _, err := module.Load(context.Background(), mapResolver{"root": []byte(src)}, []string{"root"}, 1)
	require.NoError(t, err)

	fn, ok := tree.Function(`::"root"::drops`)
	require.True(t, ok)
	require.Len(t, fn.DropFlags, 2)
	require.Equal(t, []bool{true, false}, fn.DropFlags)

	stmts := fn.Blocks[0].Stmts
	require.Len(t, stmts, 4)

	require.Equal(t, module.StmtDrop, stmts[0].Kind)
	require.Equal(t, module.DropShallow, stmts[0].DropKind)
	require.Equal(t, 0, stmts[0].DropFlagIdx)

	require.Equal(t, module.StmtSetFlag, stmts[1].Kind)
	require.True(t, stmts[1].FromOther)
	require.Equal(t, 1, stmts[1].FlagIdx)
	require.Equal(t, 0, stmts[1].OtherIdx)

	require.Equal(t, module.StmtSetFlag, stmts[2].Kind)
	require.True(t, stmts[2].OtherInvert)

	require.Equal(t, module.StmtDrop, stmts[3].Kind)
	require.Equal(t, -1, stmts[3].DropFlagIdx)
}

func TestCrateCycleIsRejected(t *testing.T) {
	resolver := mapResolver{
		"a": []byte(`crate "b";`),
		"b": []byte(`crate "a";`),
	}
	_, _, err := module.Load(context.Background(), resolver, []string{"a"}, 2)
	require.Error(t, err)
}

func TestUnresolvableCrateFails(t *testing.T) {
	_, _, err := module.Load(context.Background(), mapResolver{}, []string{"missing"}, 1)
	require.Error(t, err)
}
