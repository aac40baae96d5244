package parser

import (
	"testing"

	"github.com/rustlite/rustlite/ast"
)

func mustParseFile(t *testing.T, src string) *ast.File {
	t.Helper()
	p, errs := newParser(t, src)
	f, err := p.ParseFile()
	if err != nil {
		t.Fatalf("ParseFile(%q): %v", src, err)
	}
	if len(*errs) > 0 {
		t.Fatalf("ParseFile(%q): unexpected errors %v", src, *errs)
	}
	return f
}

func TestParseFnItem(t *testing.T) {
	f := mustParseFile(t, `
		pub fn add(a: i32, b: i32) -> i32 {
			a + b
		}
	`)
	if len(f.Items) != 1 {
		t.Fatalf("got %d items, want 1", len(f.Items))
	}
	fn := f.Items[0]
	if fn.Kind != ast.ItemFn || fn.Vis != ast.VisPub || fn.Name.Text != "add" {
		t.Fatalf("got %+v", fn)
	}
	if len(fn.Params) != 2 || fn.RetTy == nil {
		t.Fatalf("params/ret: got %+v", fn)
	}
	if fn.FnBody == nil || fn.FnBody.Kind != ast.ExprBlock {
		t.Fatalf("body: got %+v", fn.FnBody)
	}
}

func TestParseFnItemWithSelf(t *testing.T) {
	f := mustParseFile(t, `
		impl Foo {
			fn get(&self) -> i32 { self.x }
		}
	`)
	impl := f.Items[0]
	if impl.Kind != ast.ItemImpl || impl.TraitPath != nil {
		t.Fatalf("got %+v, want inherent impl", impl)
	}
	if len(impl.Items) != 1 {
		t.Fatalf("got %d impl items, want 1", len(impl.Items))
	}
	method := impl.Items[0]
	if len(method.Params) != 1 || method.Params[0].Pat.Kind != ast.PatBinding || method.Params[0].Pat.Name.Text != "self" {
		t.Fatalf("self param: got %+v", method.Params)
	}
}

func TestParseImplTraitFor(t *testing.T) {
	f := mustParseFile(t, `
		impl Display for Foo {
			fn fmt(&self) -> i32 { 0 }
		}
	`)
	impl := f.Items[0]
	if impl.Kind != ast.ItemImpl || impl.TraitPath == nil {
		t.Fatalf("got %+v, want trait impl", impl)
	}
	if impl.TraitPath.Components[0].Name.Text != "Display" {
		t.Fatalf("trait path: got %+v", impl.TraitPath)
	}
}

func TestParseStructNamedFields(t *testing.T) {
	f := mustParseFile(t, `struct Point { x: i32, y: i32 }`)
	s := f.Items[0]
	if s.Kind != ast.ItemStruct || s.StructKind != ast.StructNamed || len(s.Fields) != 2 {
		t.Fatalf("got %+v", s)
	}
}

func TestParseStructTuple(t *testing.T) {
	f := mustParseFile(t, `struct Pair(i32, i32);`)
	s := f.Items[0]
	if s.Kind != ast.ItemStruct || s.StructKind != ast.StructTuple || len(s.Fields) != 2 {
		t.Fatalf("got %+v", s)
	}
}

func TestParseStructUnit(t *testing.T) {
	f := mustParseFile(t, `struct Marker;`)
	s := f.Items[0]
	if s.Kind != ast.ItemStruct || s.StructKind != ast.StructUnit {
		t.Fatalf("got %+v", s)
	}
}

func TestParseEnumWithDiscriminant(t *testing.T) {
	f := mustParseFile(t, `
		enum Color {
			Red = 1,
			Green,
			Custom(i32, i32, i32),
			Named { r: i32 },
		}
	`)
	e := f.Items[0]
	if e.Kind != ast.ItemEnum || len(e.Variants) != 4 {
		t.Fatalf("got %+v", e)
	}
	if e.Variants[0].Discriminant == nil {
		t.Fatalf("variant 0: want a discriminant expr, got none")
	}
	if e.Variants[2].StructKind != ast.StructTuple || len(e.Variants[2].Fields) != 3 {
		t.Fatalf("variant 2: got %+v", e.Variants[2])
	}
	if e.Variants[3].StructKind != ast.StructNamed || len(e.Variants[3].Fields) != 1 {
		t.Fatalf("variant 3: got %+v", e.Variants[3])
	}
}

func TestParseMacroRulesDef(t *testing.T) {
	f := mustParseFile(t, `
		macro_rules! my_vec {
			() => { };
			($($x:expr),*) => { };
		}
	`)
	m := f.Items[0]
	if m.Kind != ast.ItemMacroDef || m.Name.Text != "my_vec" {
		t.Fatalf("got %+v", m)
	}
	if len(m.MacroRules) != 2 {
		t.Fatalf("got %d rules, want 2", len(m.MacroRules))
	}
}

func TestParseUseItemWithAlias(t *testing.T) {
	f := mustParseFile(t, `use std::collections::HashMap as Map;`)
	u := f.Items[0]
	if u.Kind != ast.ItemUse || u.UseAs == nil || u.UseAs.Text != "Map" {
		t.Fatalf("got %+v", u)
	}
}

func TestParseConstAndStatic(t *testing.T) {
	f := mustParseFile(t, `
		const MAX: i32 = 100;
		static mut COUNTER: i32 = 0;
	`)
	if len(f.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(f.Items))
	}
	c := f.Items[0]
	if c.Kind != ast.ItemConst || c.Name.Text != "MAX" || c.ConstInit == nil {
		t.Fatalf("const: got %+v", c)
	}
	s := f.Items[1]
	if s.Kind != ast.ItemStatic || !s.IsMut || s.Name.Text != "COUNTER" {
		t.Fatalf("static: got %+v", s)
	}
}

func TestParseExternBlockAsMod(t *testing.T) {
	f := mustParseFile(t, `
		extern "C" {
			fn puts(s: i32) -> i32;
		}
	`)
	m := f.Items[0]
	if m.Kind != ast.ItemMod || len(m.ModItems) != 1 {
		t.Fatalf("got %+v", m)
	}
	if m.ModItems[0].Kind != ast.ItemFn || m.ModItems[0].Name.Text != "puts" {
		t.Fatalf("extern fn: got %+v", m.ModItems[0])
	}
}
