package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/funvibe/resolvekit/internal/ast"
	"github.com/funvibe/resolvekit/internal/config"
	"github.com/funvibe/resolvekit/internal/diagnostics"
	"github.com/funvibe/resolvekit/internal/imports"
	"github.com/funvibe/resolvekit/internal/modules"
	"github.com/funvibe/resolvekit/internal/scopes"
	"github.com/funvibe/resolvekit/internal/symbols"
)

type fixture struct {
	file  *ast.File
	m     *Map
	diags []*diagnostics.DiagnosticError
}

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

// resolveMain publishes the built-ins, the libraries and main, then
// resolves main.
func resolveMain(t *testing.T, main string, libs ...string) *fixture {
	t.Helper()
	cfg := config.Default()
	builtins, err := modules.Builtins(cfg)
	if err != nil {
		t.Fatal(err)
	}
	units := []*modules.Unit{builtins}
	for i, src := range libs {
		units = append(units, load(t, fmt.Sprintf("lib%d.yaml", i), src))
	}
	unit := load(t, "main.yaml", main)
	units = append(units, unit)
	snap, err := modules.Publish(units)
	if err != nil {
		t.Fatal(err)
	}
	sink := diagnostics.NewSink("main.yaml")
	imps := imports.Build(unit.File, unit.Table, snap, cfg, sink)
	m, err := New(snap, cfg, nil).ResolveUnit(context.Background(), unit, imps, sink)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return &fixture{file: unit.File, m: m, diags: sink.Diagnostics()}
}

// nth returns the nth node (0-based, document order) accepted by match.
func (f *fixture) nth(t *testing.T, what string, nth int, match func(ast.Node) bool) ast.Node {
	t.Helper()
	var found []ast.Node
	ast.Inspect(f.file, func(n ast.Node) bool {
		if match(n) {
			found = append(found, n)
		}
		return true
	})
	if nth >= len(found) {
		t.Fatalf("%s #%d not found (%d present)", what, nth, len(found))
	}
	return found[nth]
}

func (f *fixture) call(t *testing.T, name string, nth int) *Resolution {
	t.Helper()
	n := f.nth(t, "call "+name, nth, func(n ast.Node) bool {
		c, ok := n.(*ast.Call)
		return ok && c.Name == name
	})
	return f.m.Get(n, RoleRef)
}

func (f *fixture) ref(t *testing.T, name string, nth int) *Resolution {
	t.Helper()
	n := f.nth(t, "ref "+name, nth, func(n ast.Node) bool {
		r, ok := n.(*ast.NameRef)
		return ok && r.Name == name
	})
	return f.m.Get(n, RoleRef)
}

func (f *fixture) site(t *testing.T, what string, nth int, role Role, match func(ast.Node) bool) *Resolution {
	t.Helper()
	return f.m.Get(f.nth(t, what, nth, match), role)
}

func isJump(n ast.Node) bool {
	_, ok := n.(*ast.Jump)
	return ok
}

func isThis(n ast.Node) bool {
	_, ok := n.(*ast.This)
	return ok
}

func property(name string) func(ast.Node) bool {
	return func(n ast.Node) bool {
		p, ok := n.(*ast.PropertyDecl)
		return ok && p.Name == name
	}
}

// describe renders a symbol without the node suffix of locals.
func describe(sym *symbols.Symbol) string {
	if sym == nil {
		return "<nil>"
	}
	d, _, _ := strings.Cut(sym.Describe(), " #")
	return d
}

func expectBound(t *testing.T, res *Resolution, want string) {
	t.Helper()
	if res == nil {
		t.Fatalf("no resolution, want %s", want)
	}
	if res.Status != StatusResolved {
		t.Errorf("%s: status %s (%s), want %s", res.Name, res.Status, res.Code, want)
		return
	}
	if got := describe(res.Symbol); got != want {
		t.Errorf("%s bound to %s, want %s", res.Name, got, want)
	}
}

func expectFailed(t *testing.T, res *Resolution, code diagnostics.ErrorCode) {
	t.Helper()
	if res == nil {
		t.Fatalf("no resolution, want %s", code)
	}
	if res.Status != StatusFailed || res.Code != code {
		t.Errorf("%s: status %s code %q, want failed %s", res.Name, res.Status, res.Code, code)
	}
	if res.Symbol == nil || res.Symbol.Kind != symbols.KindError {
		t.Errorf("%s: failed site must bind an error symbol", res.Name)
	}
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
			t.Errorf("diagnostic %d = %s, want %s", i, diags[i], code)
		}
	}
}

func TestResolve_LocalThenMemberThenTopLevel(t *testing.T) {
	f := resolveMain(t, `
package: app
decls:
  - fun: {name: f, result: Int}
  - class:
      name: C
      members:
        - fun: {name: f, result: String}
        - fun:
            name: g
            body:
              - call: f
              - fun: {name: f, result: Boolean}
              - call: f
  - fun:
      name: h
      body:
        - call: f
`)
	expectCodes(t, f.diags)
	expectBound(t, f.call(t, "f", 0), "fun app.C.f()")
	expectBound(t, f.call(t, "f", 1), "fun app.C.g.f()")
	expectBound(t, f.call(t, "f", 2), "fun app.f()")

	res := f.call(t, "f", 0)
	if res.Receiver == nil || res.Receiver.Kind != ReceiverImplicit || res.Tier != TierReceiver {
		t.Errorf("member call must go through the implicit receiver, got %+v", res.Receiver)
	}
}

func TestResolve_CloserReceiverWins(t *testing.T) {
	f := resolveMain(t, `
package: app
decls:
  - class:
      name: A
      members:
        - fun: {name: m}
  - class: {name: B}
  - fun: {name: m, receiver: B}
  - fun:
      name: test
      receiver: A
      body:
        - lambda:
            receiver: B
            body:
              - call: m
`)
	expectCodes(t, f.diags)
	res := f.call(t, "m", 0)
	expectBound(t, res, "fun B.app.m()")
	if res.Receiver.Slot.Distance != 0 {
		t.Errorf("bound to receiver at distance %d", res.Receiver.Slot.Distance)
	}
}

func TestResolve_MemberBeatsExtension(t *testing.T) {
	f := resolveMain(t, `
package: app
decls:
  - class:
      name: A
      members:
        - fun: {name: m}
  - fun: {name: m, receiver: A}
  - fun: {name: n, receiver: A}
  - fun:
      name: test
      params: [{name: a, type: A}]
      body:
        - call: {name: m, receiver: {ref: a}}
        - call: {name: n, receiver: {ref: a}}
`)
	expectCodes(t, f.diags)
	expectBound(t, f.call(t, "m", 0), "fun app.A.m()")
	expectBound(t, f.call(t, "n", 0), "fun A.app.n()")
	expectBound(t, f.ref(t, "a", 0), "val app.test.a")
}

func TestResolve_ArityPrecedence(t *testing.T) {
	f := resolveMain(t, `
package: app
decls:
  - fun: {name: f, params: [{name: x, type: Int}]}
  - fun: {name: f, params: [{name: x, type: Int}, {name: y, type: Int, default: true}]}
  - fun: {name: f, params: [{name: xs, type: Int, vararg: true}]}
  - fun:
      name: test
      body:
        - call: {name: f, args: [{lit: Int}]}
        - call: {name: f, args: [{lit: Int}, {lit: Int}]}
        - call: {name: f, args: [{lit: Int}, {lit: Int}, {lit: Int}]}
        - call: {name: f}
`)
	expectCodes(t, f.diags)
	expectBound(t, f.call(t, "f", 0), "fun app.f(Int)")
	expectBound(t, f.call(t, "f", 1), "fun app.f(Int, Int)")
	expectBound(t, f.call(t, "f", 2), "fun app.f(vararg Int)")
	expectBound(t, f.call(t, "f", 3), "fun app.f(vararg Int)")
}

func TestResolve_MostSpecific(t *testing.T) {
	f := resolveMain(t, `
package: app
decls:
  - fun: {name: g, params: [{name: x, type: Any}]}
  - fun: {name: g, params: [{name: x, type: Int}]}
  - fun: {name: v, params: [{name: xs, type: Any, vararg: true}]}
  - fun: {name: v, params: [{name: xs, type: Int, vararg: true}]}
  - fun:
      name: test
      body:
        - call: {name: g, args: [{lit: Int}]}
        - call: {name: g, args: [{lit: String}]}
        - call: {name: v}
`)
	expectCodes(t, f.diags)
	expectBound(t, f.call(t, "g", 0), "fun app.g(Int)")
	expectBound(t, f.call(t, "g", 1), "fun app.g(Any)")
	expectBound(t, f.call(t, "v", 0), "fun app.v(vararg Int)")
}

const libA = `
package: a
decls:
  - fun: {name: f, params: [{name: x, type: Int}]}
  - fun: {name: h, params: [{name: s, type: String}]}
  - class: {name: X}
`

const libB = `
package: b
decls:
  - fun: {name: f, params: [{name: x, type: Int}]}
  - class: {name: X}
`

func TestResolve_Failures(t *testing.T) {
	f := resolveMain(t, `
package: app
imports: ["a.*", "b.*"]
decls:
  - fun:
      name: test
      body:
        - call: {name: f, args: [{lit: Int}]}
        - call: {name: h, args: [{lit: Int}]}
        - call: nothing
        - call: {name: foo, receiver: {ref: undefined}, args: [{ref: alsoUndefined}]}
`, libA, libB)
	expectCodes(t, f.diags,
		diagnostics.ErrR004, diagnostics.ErrR005, diagnostics.ErrR003,
		diagnostics.ErrR003, diagnostics.ErrR003)

	amb := f.call(t, "f", 0)
	expectFailed(t, amb, diagnostics.ErrR004)
	if got := len(amb.Symbol.Failure.Candidates); got != 2 {
		t.Errorf("ambiguity names %d candidates, want 2", got)
	}
	if len(f.diags[0].Candidates) != 2 {
		t.Errorf("diagnostic candidates = %v", f.diags[0].Candidates)
	}

	expectFailed(t, f.call(t, "h", 0), diagnostics.ErrR005)
	if !strings.Contains(f.diags[1].Message, WrongArgumentType.String()) {
		t.Errorf("R005 must carry the reason, got %q", f.diags[1].Message)
	}
	expectFailed(t, f.call(t, "nothing", 0), diagnostics.ErrR003)

	// the receiver failed, so the call itself is not reported again
	if res := f.call(t, "foo", 0); res.Status != StatusSuppressed {
		t.Errorf("call on failed receiver: status %s", res.Status)
	}
	expectFailed(t, f.ref(t, "undefined", 0), diagnostics.ErrR003)
}

func TestResolve_ImportConflictBindsMarker(t *testing.T) {
	f := resolveMain(t, `
package: app
imports: [a.X, b.X]
decls:
  - fun:
      name: test
      params: [{name: x, type: X}]
      body:
        - call: X
`, libA, libB)
	expectCodes(t, f.diags, diagnostics.ErrR002)

	expectFailed(t, f.call(t, "X", 0), diagnostics.ErrR002)
	typeSite := f.site(t, "type X", 0, RoleType, func(n ast.Node) bool {
		ref, ok := n.(*ast.TypeRef)
		return ok && ref.Name == "X"
	})
	expectFailed(t, typeSite, diagnostics.ErrR002)

	imp := f.site(t, "import", 1, RoleImport, func(n ast.Node) bool {
		_, ok := n.(*ast.Import)
		return ok
	})
	expectFailed(t, imp, diagnostics.ErrR002)
}

const libC = `
package: c
decls:
  - class: {name: X}
`

func TestResolve_ImportConflictFailsEveryRival(t *testing.T) {
	f := resolveMain(t, `
package: app
imports: [a.X, b.X, c.X]
decls:
  - fun:
      name: test
      body:
        - call: X
`, libA, libB, libC)
	// reported once, on the first clash
	expectCodes(t, f.diags, diagnostics.ErrR002)

	call := f.call(t, "X", 0)
	expectFailed(t, call, diagnostics.ErrR002)
	for i := 0; i < 3; i++ {
		imp := f.site(t, "import", i, RoleImport, func(n ast.Node) bool {
			_, ok := n.(*ast.Import)
			return ok
		})
		expectFailed(t, imp, diagnostics.ErrR002)
		if imp.Symbol != call.Symbol {
			t.Errorf("import %d bound to %s, want the conflict marker", i, describe(imp.Symbol))
		}
	}
}

func TestResolve_StarImportBindsPackage(t *testing.T) {
	f := resolveMain(t, `
package: app
imports: ["a.*"]
decls:
  - fun:
      name: test
      body:
        - call: {name: f, args: [{lit: Int}]}
`, libA)
	expectCodes(t, f.diags)

	imp := f.site(t, "import", 0, RoleImport, func(n ast.Node) bool {
		_, ok := n.(*ast.Import)
		return ok
	})
	if imp.Status != StatusResolved || imp.Symbol != nil {
		t.Errorf("star import: status %s symbol %s, want resolved without symbol", imp.Status, describe(imp.Symbol))
	}
	if imp.Name != "a.*" || len(imp.Candidates) != 3 {
		t.Errorf("star import %s lists %d exports, want 3", imp.Name, len(imp.Candidates))
	}
	expectBound(t, f.call(t, "f", 0), "fun a.f(Int)")
}

func TestResolve_AccessorLabels(t *testing.T) {
	f := resolveMain(t, `
package: app
decls:
  - var:
      name: p
      receiver: String
      type: Int
      get: [{this: p}, {return: p}]
      set: {param: v, body: [{return: p}, {this: q}]}
`)
	expectCodes(t, f.diags, diagnostics.ErrR006)

	this := f.site(t, "this@p", 0, RoleRef, isThis)
	if this == nil || this.Status != StatusResolved {
		t.Fatalf("this@p in the getter: %+v", this)
	}
	if this.Symbol == nil || this.Symbol.Name != "p" || this.Symbol.Kind != symbols.KindValue {
		t.Errorf("this@p bound to %s, want the extension property", describe(this.Symbol))
	}
	if this.Receiver == nil || this.Receiver.Slot.Owner != this.Symbol || this.Receiver.Slot.Label != "p" {
		t.Errorf("this@p must use the extension receiver of p, got %+v", this.Receiver)
	}
	expectFailed(t, f.site(t, "this@q", 1, RoleRef, isThis), diagnostics.ErrR006)

	inGetter := f.site(t, "return@p", 0, RoleRef, isJump)
	inSetter := f.site(t, "return@p", 1, RoleRef, isJump)
	expectBound(t, inGetter, "label p")
	expectBound(t, inSetter, "label p")
	if inGetter.Symbol == inSetter.Symbol {
		t.Error("getter and setter carry distinct labels")
	}
}

func TestResolve_Labels(t *testing.T) {
	f := resolveMain(t, `
package: app
decls:
  - fun:
      name: outer
      body:
        - loop:
            label: l
            body:
              - break: l
              - continue: missing
              - lambda:
                  label: lam
                  body:
                    - return: lam
                    - return: outer
                    - return: nope
        - return: ""
`)
	expectCodes(t, f.diags, diagnostics.ErrR006, diagnostics.ErrR006)

	expectBound(t, f.site(t, "break", 0, RoleRef, isJump), "label l")
	expectFailed(t, f.site(t, "continue", 1, RoleRef, isJump), diagnostics.ErrR006)
	expectBound(t, f.site(t, "return@lam", 2, RoleRef, isJump), "label lam")
	expectBound(t, f.site(t, "return@outer", 3, RoleRef, isJump), "label outer")
	expectFailed(t, f.site(t, "return@nope", 4, RoleRef, isJump), diagnostics.ErrR006)
	expectBound(t, f.site(t, "return", 5, RoleRef, isJump), "label outer")
}

func TestResolve_ThisCompanionAndObjects(t *testing.T) {
	f := resolveMain(t, `
package: app
decls:
  - class:
      name: C
      members:
        - companion:
            members:
              - fun: {name: create, result: C}
        - fun:
            name: m
            body:
              - this: C
              - this: Nope
              - call: create
  - object:
      name: O
      members:
        - fun: {name: hello}
  - fun:
      name: test
      body:
        - call: {name: create, receiver: {ref: C}}
        - call: {name: hello, receiver: {ref: O}}
        - ref: C
`)
	expectCodes(t, f.diags, diagnostics.ErrR006)

	expectBound(t, f.site(t, "this@C", 0, RoleRef, isThis), "class app.C")
	expectFailed(t, f.site(t, "this@Nope", 1, RoleRef, isThis), diagnostics.ErrR006)
	expectBound(t, f.call(t, "create", 0), "fun app.C.Companion.create()")
	expectBound(t, f.call(t, "create", 1), "fun app.C.Companion.create()")
	expectBound(t, f.call(t, "hello", 0), "fun app.O.hello()")
	expectBound(t, f.ref(t, "C", 0), "class app.C")
	expectBound(t, f.ref(t, "C", 1), "companion app.C.Companion")
}

func TestResolve_Delegates(t *testing.T) {
	f := resolveMain(t, `
package: app
decls:
  - class:
      name: D
      members:
        - fun:
            name: getValue
            params: [{name: thisRef, type: "Any?"}, {name: property, type: KProperty}]
            result: Int
  - class:
      name: Holder
      members:
        - val: {name: x, by: {call: D}}
        - var: {name: y, by: {call: D}}
  - val:
      name: z
      by: {call: {name: lazy, args: [{lambda: []}]}}
`)
	expectCodes(t, f.diags, diagnostics.ErrR007)

	expectBound(t, f.site(t, "x", 0, RoleGetValue, property("x")), "fun app.D.getValue(Any?, KProperty)")
	if res := f.site(t, "x", 0, RoleSetValue, property("x")); res != nil {
		t.Errorf("a val never resolves setValue, got %+v", res)
	}
	if res := f.site(t, "x", 0, RoleProvideDelegate, property("x")); res != nil {
		t.Errorf("absent provideDelegate must be skipped, got %+v", res)
	}
	expectBound(t, f.site(t, "y", 0, RoleGetValue, property("y")), "fun app.D.getValue(Any?, KProperty)")
	expectFailed(t, f.site(t, "y", 0, RoleSetValue, property("y")), diagnostics.ErrR007)
	expectBound(t, f.site(t, "z", 0, RoleGetValue, property("z")), "fun Lazy.lang.getValue(Any?, KProperty)")
}

func TestResolve_Visibility(t *testing.T) {
	f := resolveMain(t, `
package: app
decls:
  - class:
      name: P
      members:
        - fun: {name: secret, private: true}
        - fun:
            name: open
            body:
              - call: secret
  - fun:
      name: test
      params: [{name: p, type: P}]
      body:
        - call: {name: secret, receiver: {ref: p}}
`)
	expectCodes(t, f.diags, diagnostics.ErrR005)
	expectBound(t, f.call(t, "secret", 0), "fun app.P.secret()")
	expectFailed(t, f.call(t, "secret", 1), diagnostics.ErrR005)
	if !strings.Contains(f.diags[0].Message, Invisible.String()) {
		t.Errorf("unexpected reason: %s", f.diags[0].Message)
	}
}

func TestResolve_ConstructorParametersAndInvoke(t *testing.T) {
	f := resolveMain(t, `
package: app
decls:
  - class:
      name: K
      params: [{name: a, type: Int}, {name: b, type: Int, property: true}]
      members:
        - val: {name: c, init: {ref: a}}
        - init: [{ref: b}]
  - class:
      name: F
      members:
        - fun: {name: invoke, params: [{name: x, type: Int}], result: String}
  - fun:
      name: test
      params: [{name: f, type: F}]
      body:
        - call: {name: f, args: [{lit: Int}]}
        - call: {name: K, args: [{lit: Int}, {lit: Int}]}
`)
	expectCodes(t, f.diags)
	expectBound(t, f.ref(t, "a", 0), "val app.K.a")
	expectBound(t, f.ref(t, "b", 0), "val app.K.b")

	inv := f.call(t, "f", 0)
	expectBound(t, inv, "fun app.F.invoke(Int)")
	if inv.Invoke == nil || inv.Invoke.Name != "f" {
		t.Errorf("invoke must record the called value, got %v", inv.Invoke)
	}
	expectBound(t, f.call(t, "K", 0), "constructor app.K(Int, Int)")
}

// render flattens a resolution map for comparisons.
func render(m *Map) string {
	var sb strings.Builder
	for _, r := range m.Sorted() {
		fmt.Fprintf(&sb, "%d %s %s %s %s\n", r.Site.NodeID(), r.Role, r.Name, r.Status, describe(r.Symbol))
	}
	return sb.String()
}

func TestResolve_Deterministic(t *testing.T) {
	src := `
package: app
imports: ["a.*", "b.*", a.h]
decls:
  - fun:
      name: test
      body:
        - call: {name: f, args: [{lit: Int}]}
        - call: {name: h, args: [{lit: String}]}
        - ref: X
`
	first := render(resolveMain(t, src, libA, libB).m)
	for i := 0; i < 5; i++ {
		if got := render(resolveMain(t, src, libA, libB).m); got != first {
			t.Fatalf("run %d differs:\n%s\nvs\n%s", i, got, first)
		}
	}
}

func TestResolveUnit_Canceled(t *testing.T) {
	cfg := config.Default()
	builtins, err := modules.Builtins(cfg)
	if err != nil {
		t.Fatal(err)
	}
	unit := load(t, "main.yaml", "package: app\ndecls:\n  - fun: {name: f}\n")
	snap, err := modules.Publish([]*modules.Unit{builtins, unit})
	if err != nil {
		t.Fatal(err)
	}
	sink := diagnostics.NewSink("main.yaml")
	imps := imports.Build(unit.File, unit.Table, snap, cfg, sink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(snap, cfg, nil).ResolveUnit(ctx, unit, imps, sink); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if _, err := New(snap, cfg, nil).ResolveUnit(context.Background(), nil, imps, sink); !errors.Is(err, ErrInternal) {
		t.Errorf("expected ErrInternal, got %v", err)
	}
}
