package imports

import (
	"testing"

	"github.com/funvibe/resolvekit/internal/ast"
	"github.com/funvibe/resolvekit/internal/config"
	"github.com/funvibe/resolvekit/internal/diagnostics"
	"github.com/funvibe/resolvekit/internal/modules"
	"github.com/funvibe/resolvekit/internal/scopes"
)

const libA = `
package: a
decls:
  - class: {name: X}
  - fun: {name: f, params: [{name: i, type: Int}]}
  - val: {name: v, type: Int}
  - fun: {name: ext, receiver: String}
`

const libB = `
package: b
decls:
  - class: {name: X}
  - fun: {name: f, params: [{name: s, type: String}]}
  - val: {name: v, type: Int}
  - fun: {name: ext, receiver: String}
`

func load(t *testing.T, path, src string) *modules.Unit {
	t.Helper()
	file, err := ast.DecodeFile([]byte(src), path)
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	table, _, err := scopes.Build(file)
	if err != nil {
		t.Fatalf("build %s: %v", path, err)
	}
	return &modules.Unit{File: file, Table: table}
}

// buildTable publishes the libraries plus main and builds main's imports.
func buildTable(t *testing.T, main string, reverse bool) (*Table, []*diagnostics.DiagnosticError) {
	t.Helper()
	cfg := config.Default()
	builtins, err := modules.Builtins(cfg)
	if err != nil {
		t.Fatal(err)
	}
	m := load(t, "main.yaml", main)
	if reverse {
		imps := m.File.Imports
		for i, j := 0, len(imps)-1; i < j; i, j = i+1, j-1 {
			imps[i], imps[j] = imps[j], imps[i]
		}
	}
	snap, err := modules.Publish([]*modules.Unit{builtins, load(t, "a.yaml", libA), load(t, "b.yaml", libB), m})
	if err != nil {
		t.Fatal(err)
	}
	sink := diagnostics.NewSink("main.yaml")
	table := Build(m.File, m.Table, snap, cfg, sink)
	return table, sink.Diagnostics()
}

func expectCodes(t *testing.T, diags []*diagnostics.DiagnosticError, codes ...diagnostics.ErrorCode) {
	t.Helper()
	if len(diags) != len(codes) {
		var got []string
		for _, d := range diags {
			got = append(got, d.Error())
		}
		t.Fatalf("expected %v, got %v", codes, got)
	}
	for i, code := range codes {
		if diags[i].Code != code {
			t.Errorf("diagnostic %d = %s, want %s", i, diags[i].Code, code)
		}
	}
}

func TestBuild_ImportConflict(t *testing.T) {
	table, diags := buildTable(t, `
package: app
imports: [a.X, b.X, a.v, b.v]
`, false)
	expectCodes(t, diags, diagnostics.ErrR002, diagnostics.ErrR002)
	if diags[0].Pos.Line != 3 || diags[0].Name != "X" || len(diags[0].Candidates) != 2 {
		t.Errorf("unexpected conflict diagnostic: %+v", diags[0])
	}
	if got := table.Lookup(TierExplicit, "X"); len(got) != 0 {
		t.Errorf("conflicting bindings must not participate, got %d", len(got))
	}
	marker := table.Conflict("X", ClassType)
	if marker == nil || marker.Failure.Code != diagnostics.ErrR002 || len(marker.Failure.Candidates) != 2 {
		t.Fatalf("expected an error marker for X, got %+v", marker)
	}
	// both rivals lose their binding, so both directives fail
	for i, d := range table.Directives {
		if d.Code != diagnostics.ErrR002 {
			t.Errorf("directive %d (%s): code %q, want R002", i, d.Import.Path, d.Code)
		}
	}
	if table.Marker(table.Directives[0]) != marker || table.Marker(table.Directives[1]) != marker {
		t.Error("both X directives must share the conflict marker")
	}
}

func TestBuild_FunctionImportsMerge(t *testing.T) {
	table, diags := buildTable(t, `
package: app
imports: [a.f, b.f, a.f]
`, false)
	expectCodes(t, diags)
	if got := table.Lookup(TierExplicit, "f"); len(got) != 2 {
		t.Errorf("expected an overload set of 2 imported functions, got %d", len(got))
	}
}

func TestBuild_SameEntityTwice(t *testing.T) {
	table, diags := buildTable(t, `
package: app
imports: [a.X, {path: a.X}]
`, false)
	expectCodes(t, diags)
	if got := table.Lookup(TierExplicit, "X"); len(got) != 1 {
		t.Errorf("expected one binding, got %d", len(got))
	}
}

func TestBuild_FileDeclarationShadowsImport(t *testing.T) {
	table, diags := buildTable(t, `
package: app
imports: [a.X]
decls:
  - class: {name: X}
`, false)
	expectCodes(t, diags)
	if got := table.Lookup(TierExplicit, "X"); len(got) != 0 {
		t.Errorf("file-local X must shadow the import, got %d bindings", len(got))
	}
}

func TestBuild_AliasesStarAndDefaults(t *testing.T) {
	table, diags := buildTable(t, `
package: app
imports: [{path: b.X, alias: Y}, "a.*", nowhere.Z]
`, false)
	expectCodes(t, diags, diagnostics.ErrR003)

	if got := table.Lookup(TierExplicit, "Y"); len(got) != 1 || got[0].Symbol.QualifiedName != "b.X" {
		t.Errorf("alias Y = %v", got)
	}
	if got := table.Lookup(TierStar, "ext"); len(got) != 1 || got[0].Symbol.QualifiedName != "a.ext" {
		t.Errorf("star ext = %v", got)
	}
	if got := table.Lookup(TierDefault, "Int"); len(got) != 1 || got[0].Directive != nil {
		t.Errorf("default Int = %v", got)
	}
	if table.Directives[2].Code != diagnostics.ErrR003 {
		t.Error("unresolved directive must carry R003")
	}
}

func TestBuild_StableOrder(t *testing.T) {
	src := `
package: app
imports:
  - b.X
  - a.X
  - missing.y
`
	forward, d1 := buildTable(t, src, false)
	backward, d2 := buildTable(t, src, true)
	if len(d1) != len(d2) {
		t.Fatalf("diagnostic counts differ: %d vs %d", len(d1), len(d2))
	}
	for i := range d1 {
		if d1[i].Error() != d2[i].Error() {
			t.Errorf("diagnostic %d differs: %q vs %q", i, d1[i], d2[i])
		}
	}
	for i := range forward.Directives {
		if forward.Directives[i].Import.Path != backward.Directives[i].Import.Path {
			t.Errorf("directive %d differs", i)
		}
	}
	// the later directive (a.X, line 5) carries the conflict
	if d1[0].Code != diagnostics.ErrR002 || d1[0].Pos.Line != 5 {
		t.Errorf("conflict reported at %s", d1[0].Pos)
	}
}
