package symbols

import (
	"testing"

	"github.com/funvibe/resolvekit/internal/ast"
)

func param(typ string, vararg, def bool) Param {
	return Param{Type: &ast.TypeRef{Name: typ}, Vararg: vararg, HasDefault: def}
}

func TestTable_ScopesAndLookup(t *testing.T) {
	tbl := NewTable("a.yaml", "app")
	file := tbl.NewScope(ScopeFile, NoScopeID, nil)
	fn := tbl.NewScope(ScopeFunction, file.ID, nil)
	block := tbl.NewScope(ScopeBlock, fn.ID, nil)

	outer := tbl.Insert(file.ID, &Symbol{Kind: KindValue, Name: "x"})
	inner := tbl.Insert(block.ID, &Symbol{Kind: KindValue, Name: "x"})

	if tbl.Root() != file {
		t.Fatal("root must be the first scope")
	}
	if got := tbl.Lookup(block.ID, "x"); len(got) != 1 || got[0] != inner {
		t.Errorf("Lookup(block, x) = %v", got)
	}
	if got := tbl.Lookup(fn.ID, "x"); len(got) != 0 {
		t.Errorf("Lookup(fn, x) = %v, want none", got)
	}
	if outer.Unit != "a.yaml" || outer.Package != "app" {
		t.Errorf("unit/package not defaulted: %q %q", outer.Unit, outer.Package)
	}

	var kinds []ScopeKind
	var distances []int
	tbl.Walk(block.ID, func(s *Scope, d int) bool {
		kinds = append(kinds, s.Kind)
		distances = append(distances, d)
		return true
	})
	if len(kinds) != 3 || kinds[0] != ScopeBlock || kinds[2] != ScopeFile || distances[2] != 2 {
		t.Errorf("Walk = %v %v", kinds, distances)
	}
	for _, s := range tbl.Scopes() {
		if s.Parent >= s.ID {
			t.Errorf("scope %d has parent %d allocated after it", s.ID, s.Parent)
		}
	}
}

func TestTable_NodeBindings(t *testing.T) {
	tbl := NewTable("a.yaml", "app")
	file := tbl.NewScope(ScopeFile, NoScopeID, nil)
	decl := &ast.FunDecl{Base: ast.Base{ID: 7}, Name: "f"}
	sym := tbl.Insert(file.ID, &Symbol{Kind: KindFunction, Name: "f", Node: decl})
	tbl.BindNode(decl, file.ID)

	if tbl.SymbolOf(decl) != sym {
		t.Error("SymbolOf did not return the declared symbol")
	}
	if tbl.ScopeOf(decl) != file.ID {
		t.Error("ScopeOf did not return the bound scope")
	}
	if tbl.Scope(99) != nil || tbl.Symbol(99) != nil {
		t.Error("out of range IDs must yield nil")
	}
}

func TestSignature(t *testing.T) {
	sig := Signature{Params: []Param{param("Int", false, false), param("Int", false, true), param("String", true, false)}}
	if sig.Arity() != 3 || sig.Required() != 1 || sig.VarargIndex() != 2 {
		t.Errorf("arity=%d required=%d vararg=%d", sig.Arity(), sig.Required(), sig.VarargIndex())
	}
	if sig.String() != "(Int, Int, vararg String)" {
		t.Errorf("String() = %s", sig.String())
	}
	same := Signature{Params: []Param{param("Int", false, false), param("Int", false, false), param("String", true, false)}}
	if !sig.SameShape(same) {
		t.Error("defaults must not affect the shape")
	}
	other := Signature{Params: []Param{param("Int", false, false), param("Int", false, false), param("String", false, false)}}
	if sig.SameShape(other) {
		t.Error("vararg must affect the shape")
	}
}

func TestSymbol_Describe(t *testing.T) {
	fn := &Symbol{
		Kind:          KindFunction,
		QualifiedName: "app.f",
		Receiver:      &ast.TypeRef{Name: "C"},
		Flags:         FlagExtension,
		Signature:     Signature{Params: []Param{param("Int", false, false)}},
	}
	if got := fn.Describe(); got != "fun C.app.f(Int)" {
		t.Errorf("Describe() = %q", got)
	}
	local := &Symbol{Kind: KindValue, QualifiedName: "app.main.x", Flags: FlagLocal | FlagMutable,
		Node: &ast.PropertyDecl{Base: ast.Base{ID: 12}}}
	if got := local.Describe(); got != "var app.main.x #12" {
		t.Errorf("Describe() = %q", got)
	}
}
