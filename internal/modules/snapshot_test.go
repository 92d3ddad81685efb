package modules

import (
	"testing"

	"github.com/funvibe/resolvekit/internal/ast"
	"github.com/funvibe/resolvekit/internal/config"
	"github.com/funvibe/resolvekit/internal/scopes"
	"github.com/funvibe/resolvekit/internal/symbols"
)

func unit(t *testing.T, path, src string) *Unit {
	t.Helper()
	file, err := ast.DecodeFile([]byte(src), path)
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	table, _, err := scopes.Build(file)
	if err != nil {
		t.Fatalf("build %s: %v", path, err)
	}
	return &Unit{File: file, Table: table}
}

func names(syms []*symbols.Symbol) []string {
	var out []string
	for _, s := range syms {
		out = append(out, s.Describe())
	}
	return out
}

func expectSymbols(t *testing.T, got []*symbols.Symbol, want ...string) {
	t.Helper()
	g := names(got)
	if len(g) != len(want) {
		t.Fatalf("got %v, want %v", g, want)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Errorf("symbol %d = %q, want %q", i, g[i], want[i])
		}
	}
}

func testSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	lib1 := unit(t, "lib/b.yaml", `
package: lib
decls:
  - fun: {name: f, params: [{name: x, type: Int}]}
  - fun: {name: hidden, private: true}
  - object:
      name: O
      members:
        - fun: {name: g}
        - class: {name: N}
`)
	lib2 := unit(t, "lib/a.yaml", `
package: lib
decls:
  - fun: {name: f, params: [{name: s, type: String}]}
  - class:
      name: C
      members:
        - fun: {name: m}
        - class: {name: Nested}
`)
	snap, err := Publish([]*Unit{lib1, lib2})
	if err != nil {
		t.Fatal(err)
	}
	return snap
}

func TestSnapshot_Resolve(t *testing.T) {
	snap := testSnapshot(t)

	expectSymbols(t, snap.Resolve("lib.f", false), "fun lib.f(String)", "fun lib.f(Int)")
	expectSymbols(t, snap.Resolve("lib.hidden", false))
	expectSymbols(t, snap.Resolve("lib.C.Nested", false), "class lib.C.Nested")
	expectSymbols(t, snap.Resolve("lib.C.m", false))
	expectSymbols(t, snap.Resolve("lib.O.g", false), "fun lib.O.g()")
	expectSymbols(t, snap.Resolve("nowhere.x", false))

	all := snap.Resolve("lib", true)
	if len(all) != 4 {
		t.Errorf("wildcard lib = %v, want 4 public symbols", names(all))
	}
	expectSymbols(t, snap.Resolve("lib.O", true), "fun lib.O.g()", "class lib.O.N")
}

func TestSnapshot_ClassesAndMembers(t *testing.T) {
	snap := testSnapshot(t)

	if snap.Class("lib.C") == nil || snap.Class("lib.C.Nested") == nil {
		t.Fatal("classes must be indexed by qualified name")
	}
	expectSymbols(t, snap.Members("lib.C", "m"), "fun lib.C.m()")
	if got := snap.Package("lib").Units; got[0].Path() != "lib/a.yaml" {
		t.Errorf("units not sorted by path: %s first", got[0].Path())
	}
}

func TestSnapshot_Replace(t *testing.T) {
	snap := testSnapshot(t)
	changed := unit(t, "lib/a.yaml", `
package: lib
decls:
  - fun: {name: k}
`)
	next, err := snap.Replace(changed)
	if err != nil {
		t.Fatal(err)
	}
	if next.Generation != snap.Generation+1 {
		t.Errorf("generation = %d", next.Generation)
	}
	if next.Class("lib.C") != nil {
		t.Error("replaced unit's classes must disappear")
	}
	if snap.Class("lib.C") == nil {
		t.Error("the old snapshot must not change")
	}
	expectSymbols(t, next.Resolve("lib.k", false), "fun lib.k()")
}

func TestPublish_DuplicateUnit(t *testing.T) {
	u := unit(t, "a.yaml", "package: app\n")
	if _, err := Publish([]*Unit{u, u}); err == nil {
		t.Error("expected duplicate unit error")
	}
}

func TestBuiltins(t *testing.T) {
	u, err := Builtins(config.Default())
	if err != nil {
		t.Fatal(err)
	}
	snap, err := Publish([]*Unit{u})
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range config.BuiltinTypeNames {
		if snap.Class("lang."+name) == nil {
			t.Errorf("missing built-in class %s", name)
		}
	}
	if !snap.Package("lang").IsVirtual {
		t.Error("built-in package must be virtual")
	}
	expectSymbols(t, snap.Members("lang.Int", "plus"), "fun lang.Int.plus(Int)")
}
