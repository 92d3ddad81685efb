// Package resolve binds every reference site of a unit to the declaration
// it denotes, selecting among overloads and reporting diagnostics.
//
// One pass over the unit visits sites in document order. Expressions are
// typed on the way, from declared types only, so that arguments and
// explicit receivers can be checked for applicability.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/funvibe/resolvekit/internal/ast"
	"github.com/funvibe/resolvekit/internal/config"
	"github.com/funvibe/resolvekit/internal/diagnostics"
	"github.com/funvibe/resolvekit/internal/imports"
	"github.com/funvibe/resolvekit/internal/modules"
	"github.com/funvibe/resolvekit/internal/receivers"
	"github.com/funvibe/resolvekit/internal/symbols"
	"github.com/funvibe/resolvekit/internal/types"
)

// ErrInternal reports a broken invariant of the engine, such as a node the
// scope builder never saw.
var ErrInternal = errors.New("internal resolver error")

// ResolveUnit resolves every site of unit. imps is the unit's import
// table; diagnostics go to sink. The result is complete unless an error
// is returned, in which case it must be discarded.
func (r *Resolver) ResolveUnit(ctx context.Context, unit *modules.Unit, imps *imports.Table, sink *diagnostics.Sink) (*Map, error) {
	if unit == nil || unit.File == nil || unit.Table == nil || imps == nil {
		return nil, fmt.Errorf("resolving unit: incomplete input: %w", ErrInternal)
	}
	uc := &unitContext{unit: unit, table: unit.Table, imports: imps}
	r.units[unit.Path()] = uc
	u := &unitRun{
		r:          r,
		ctx:        ctx,
		uc:         uc,
		sink:       sink,
		m:          NewMap(unit.Path()),
		exprTypes:  make(map[ast.NodeID]types.Type),
		statics:    make(map[ast.NodeID]*symbols.Symbol),
		visiting:   make(map[ast.NodeID]bool),
		valueTypes: make(map[*symbols.Symbol]types.Type),
		inferring:  make(map[*symbols.Symbol]bool),
		delegates:  make(map[*symbols.Symbol]types.Type),
	}
	r.infer = u.inferValue
	defer func() { r.infer = nil }()

	if err := u.file(unit.File); err != nil {
		return nil, err
	}
	if u.err != nil {
		return nil, u.err
	}
	return u.m, nil
}

// unitRun is the state of resolving one unit.
type unitRun struct {
	r    *Resolver
	ctx  context.Context
	uc   *unitContext
	sink *diagnostics.Sink
	m    *Map

	exprTypes  map[ast.NodeID]types.Type
	statics    map[ast.NodeID]*symbols.Symbol // class qualifiers
	visiting   map[ast.NodeID]bool
	valueTypes map[*symbols.Symbol]types.Type
	inferring  map[*symbols.Symbol]bool
	delegates  map[*symbols.Symbol]types.Type
	err        error
}

func (u *unitRun) internal(format string, args ...any) {
	if u.err == nil {
		u.err = fmt.Errorf("resolving %s: %s: %w", u.uc.path(), fmt.Sprintf(format, args...), ErrInternal)
	}
}

func (u *unitRun) checkCanceled() error {
	if err := u.ctx.Err(); err != nil {
		return fmt.Errorf("resolving %s: %w", u.uc.path(), err)
	}
	return nil
}

func (u *unitRun) scopeOf(n ast.Node) symbols.ScopeID {
	id := u.uc.table.ScopeOf(n)
	if !id.IsValid() {
		u.internal("node %d at %s has no scope", n.NodeID(), n.Position())
		return u.uc.table.Root().ID
	}
	return id
}

func (u *unitRun) request(site ast.Node, name string, m mode) *request {
	return &request{uc: u.uc, site: site, name: name, mode: m, scope: u.scopeOf(site)}
}

func (u *unitRun) file(f *ast.File) error {
	for _, imp := range f.Imports {
		u.importSite(imp)
	}
	for _, d := range f.Decls {
		if err := u.checkCanceled(); err != nil {
			return err
		}
		u.decl(d)
	}
	return u.checkCanceled()
}

func (u *unitRun) importSite(imp *ast.Import) {
	name := imp.ImportedName()
	if imp.All {
		name = imp.Path + ".*"
	}
	d := u.uc.imports.Directive(imp)
	if d == nil {
		u.internal("import %s has no directive", imp.Path)
		return
	}
	res := &Resolution{Site: imp, Role: RoleImport, Name: name, Tier: TierExplicitImport}
	if imp.All {
		res.Tier = TierStar
	}
	for _, sym := range d.Targets {
		res.Candidates = append(res.Candidates, &Candidate{Symbol: sym})
	}
	// failures were already reported by the import table
	switch {
	case d.Code == diagnostics.ErrR002:
		res.Status, res.Code = StatusFailed, d.Code
		res.Symbol = u.uc.imports.Marker(d)
		if res.Symbol == nil {
			res.Symbol = symbols.NewErrorSymbol(name, d.Code, d.Targets)
		}
	case d.Code != "":
		res.Status, res.Code = StatusFailed, d.Code
		res.Symbol = symbols.NewErrorSymbol(name, d.Code, d.Targets)
	case imp.All:
		// a package, not one of its exports; the exports stay candidates
	default:
		res.Symbol = d.Targets[0]
	}
	u.m.Set(res)
}

func (u *unitRun) decl(d ast.Decl) {
	switch d := d.(type) {
	case *ast.ClassDecl:
		for _, t := range d.Supertypes {
			u.typeRef(t)
		}
		for _, p := range d.Params {
			u.param(p)
		}
		for _, m := range d.Members {
			if u.ctx.Err() != nil {
				return
			}
			u.decl(m)
		}
	case *ast.FunDecl:
		u.typeRef(d.Receiver)
		for _, p := range d.Params {
			u.param(p)
		}
		u.typeRef(d.Result)
		u.block(d.Body)
	case *ast.PropertyDecl:
		u.typeRef(d.Receiver)
		u.typeRef(d.Type)
		if d.Init != nil {
			u.expr(d.Init)
		}
		if d.Delegate != nil {
			if sym := u.uc.table.SymbolOf(d); sym != nil {
				u.delegate(d, sym)
			}
		}
		if d.Getter != nil {
			u.block(d.Getter.Body)
		}
		if d.Setter != nil {
			u.block(d.Setter.Body)
		}
	case *ast.InitBlock:
		u.block(d.Body)
	}
}

func (u *unitRun) param(p *ast.Param) {
	u.typeRef(p.Type)
	if p.Default != nil {
		u.expr(p.Default)
	}
}

func (u *unitRun) block(b *ast.Block) {
	if b == nil {
		return
	}
	for _, s := range b.Stmts {
		u.stmt(s)
	}
}

func (u *unitRun) stmt(s ast.Stmt) {
	switch s := s.(type) {
	case ast.Decl:
		u.decl(s)
	case *ast.Block:
		u.block(s)
	case *ast.Loop:
		if s.Var != nil {
			u.param(s.Var)
		}
		if s.Iterable != nil {
			u.expr(s.Iterable)
		}
		u.block(s.Body)
	case *ast.Assign:
		u.expr(s.Target)
		u.expr(s.Value)
	case ast.Expr:
		u.expr(s)
	}
}

// expr resolves the sites inside e and returns its type.
func (u *unitRun) expr(e ast.Expr) types.Type {
	if t, ok := u.exprTypes[e.NodeID()]; ok {
		return t
	}
	if u.visiting[e.NodeID()] {
		return types.Error
	}
	u.visiting[e.NodeID()] = true
	defer delete(u.visiting, e.NodeID())

	var t types.Type
	switch e := e.(type) {
	case *ast.NameRef:
		t, _ = u.nameRef(e, false)
	case *ast.Call:
		t = u.call(e)
	case *ast.This:
		t = u.this(e)
	case *ast.Super:
		t = u.super(e)
	case *ast.Jump:
		if e.Value != nil {
			u.expr(e.Value)
		}
		u.jump(e)
		t = u.r.builtinType(config.NothingTypeName)
	case *ast.Lambda:
		u.typeRef(e.Receiver)
		for _, p := range e.Params {
			u.param(p)
		}
		u.block(e.Body)
		t = u.r.builtinType(config.FunctionTypeName)
	case *ast.Literal:
		t = u.literal(e)
	case *ast.StringTemplate:
		for _, p := range e.Parts {
			u.expr(p)
		}
		t = u.r.builtinType(config.StringTypeName)
	case *ast.Cast:
		u.expr(e.Expr)
		t = u.typeRef(e.Type)
	case *ast.When:
		if e.Subject != nil {
			u.expr(e.Subject)
		}
		for _, br := range e.Branches {
			for _, c := range br.Conds {
				u.expr(c)
			}
			u.block(br.Body)
		}
		t = types.Error
	case *ast.Try:
		u.block(e.Body)
		for _, c := range e.Catches {
			if c.Param != nil {
				u.param(c.Param)
			}
			u.block(c.Body)
		}
		u.block(e.Finally)
		t = types.Error
	default:
		u.internal("unexpected expression %T", e)
		t = types.Error
	}
	u.exprTypes[e.NodeID()] = t
	return t
}

func (u *unitRun) literal(e *ast.Literal) types.Type {
	if e.Null {
		return u.r.builtinType(config.NothingTypeName).OrNull()
	}
	if e.Type == "" {
		return types.Error
	}
	if sym := u.r.lookupType(u.uc, u.scopeOf(e), e.Type); sym != nil {
		return classType(sym)
	}
	return types.Error
}

// nameRef resolves a value reference. As a selection receiver a class name
// denotes the class itself, returned as the static qualifier.
func (u *unitRun) nameRef(e *ast.NameRef, qualifier bool) (types.Type, *symbols.Symbol) {
	if t, ok := u.exprTypes[e.ID]; ok {
		return t, u.statics[e.ID]
	}
	q := u.request(e, e.Name, modeValue)
	q.qualifier = qualifier
	var res *Resolution
	if e.Receiver != nil && !u.selection(q, e.Receiver) {
		res = u.suppress(q, RoleRef)
	} else {
		res = u.resolveSite(q, RoleRef)
	}

	t := types.Error
	var static *symbols.Symbol
	if res.Status == StatusResolved {
		switch sym := res.Symbol; sym.Kind {
		case symbols.KindValue:
			t = u.r.valueType(sym)
		case symbols.KindType:
			if sym.IsObject() {
				t = classType(sym)
			} else {
				static = sym
			}
		}
	}
	res.Type = t
	u.exprTypes[e.ID] = t
	if static != nil {
		u.statics[e.ID] = static
	}
	return t, static
}

func (u *unitRun) call(e *ast.Call) types.Type {
	q := u.request(e, e.Name, modeCall)
	ok := true
	if e.Receiver != nil {
		ok = u.selection(q, e.Receiver)
	}
	q.args = make([]types.Type, len(e.Args))
	for i, a := range e.Args {
		q.args[i] = u.expr(a)
	}
	if !ok {
		u.suppress(q, RoleRef)
		return types.Error
	}
	res := u.resolveSite(q, RoleRef)
	if res.Status != StatusResolved {
		return types.Error
	}
	t := u.r.resultType(res.Symbol)
	if e.Safe && !t.IsError() {
		t = t.OrNull()
	}
	res.Type = t
	return t
}

// selection evaluates the receiver of `recv.name` into q. It returns false
// when the receiver failed to resolve; the site is then suppressed.
func (u *unitRun) selection(q *request, recv ast.Expr) bool {
	var t types.Type
	switch recv := recv.(type) {
	case *ast.NameRef:
		var static *symbols.Symbol
		if t, static = u.nameRef(recv, true); static != nil {
			q.static = static
			return true
		}
	case *ast.Super:
		t = u.expr(recv)
		q.superOnly = true
	default:
		t = u.expr(recv)
	}
	if t.IsError() {
		return false
	}
	t = t.NonNull()
	q.explicit = &t
	return true
}

// selectSite collects and prioritizes the candidates of q without
// recording anything.
func (u *unitRun) selectSite(q *request) (*collection, outcome) {
	col := u.r.collect(q)
	return col, prioritize(col.cands, u.r.oracle)
}

// resolveSite resolves q, records the resolution and reports failures.
func (u *unitRun) resolveSite(q *request, role Role) *Resolution {
	col, o := u.selectSite(q)
	res := &Resolution{Site: q.site, Role: role, Name: q.name, Candidates: col.cands}
	switch {
	case col.conflict != nil && (o.winner == nil || o.winner.Key.Tier > TierFile):
		// reported once on the conflicting directive
		res.Status = StatusFailed
		res.Code = col.conflict.Failure.Code
		res.Symbol = col.conflict
	case o.winner != nil:
		u.bind(res, o.winner)
	case len(o.tied) > 0:
		u.fail(res, diagnostics.ErrR004, o.tied, "ambiguous reference %s: %d candidates match equally", q.name, len(o.tied))
	case o.best != nil && o.best.Verdict == ErrorTypedReceiver:
		res.Status = StatusSuppressed
		res.Symbol = symbols.NewErrorSymbol(q.name, "", nil)
	case o.best != nil:
		u.fail(res, diagnostics.ErrR005, o.rejected, "no applicable candidate for %s: %s for %s",
			q.name, o.best.Verdict, o.best.Symbol.Describe())
	default:
		u.fail(res, diagnostics.ErrR003, nil, "unresolved reference %s", q.name)
	}
	u.m.Set(res)
	return res
}

func (u *unitRun) bind(res *Resolution, c *Candidate) {
	res.Status = StatusResolved
	res.Symbol = c.Symbol
	res.Receiver = c.Receiver
	res.Tier = c.Key.Tier
	res.Invoke = c.Invoke
}

// fail binds res to an error symbol and reports code.
func (u *unitRun) fail(res *Resolution, code diagnostics.ErrorCode, cands []*Candidate, format string, args ...any) {
	syms := make([]*symbols.Symbol, len(cands))
	described := make([]string, len(cands))
	for i, c := range cands {
		syms[i] = c.Symbol
		described[i] = c.Symbol.Describe()
	}
	res.Status = StatusFailed
	res.Code = code
	res.Symbol = symbols.NewErrorSymbol(res.Name, code, syms)
	d := diagnostics.NewErrorf(code, res.Site, format, args...).WithName(res.Name)
	if len(described) > 0 {
		d = d.WithCandidates(described)
	}
	u.sink.Add(d)
}

// suppress binds a site whose receiver already failed.
func (u *unitRun) suppress(q *request, role Role) *Resolution {
	res := &Resolution{
		Site:   q.site,
		Role:   role,
		Name:   q.name,
		Status: StatusSuppressed,
		Symbol: symbols.NewErrorSymbol(q.name, "", nil),
		Type:   types.Error,
	}
	u.m.Set(res)
	return res
}

// typeRef resolves a written type as a type site and returns its
// qualified form.
func (u *unitRun) typeRef(ref *ast.TypeRef) types.Type {
	if ref == nil {
		return types.Error
	}
	if res := u.m.Get(ref, RoleType); res != nil {
		return res.Type
	}
	q := u.request(ref, ref.Name, modeType)
	var res *Resolution
	if strings.Contains(ref.Name, ".") {
		res = &Resolution{Site: ref, Role: RoleType, Name: ref.Name}
		if sym := u.r.lookupType(u.uc, q.scope, ref.Name); sym != nil {
			res.Status = StatusResolved
			res.Symbol = sym
		} else {
			u.fail(res, diagnostics.ErrR003, nil, "unresolved type %s", ref.Name)
		}
		u.m.Set(res)
	} else {
		res = u.resolveSite(q, RoleType)
	}

	t := types.Error
	if res.Status == StatusResolved {
		t = classType(res.Symbol)
	}
	t.Nullable = ref.Nullable
	res.Type = t
	u.r.typeRefs[ref] = t
	return t
}

func (u *unitRun) this(e *ast.This) types.Type {
	res := &Resolution{Site: e, Role: RoleRef, Name: "this"}
	chain := receivers.Chain(u.uc.table, u.scopeOf(e))
	var slot receivers.Slot
	ok := false
	if e.Label == "" {
		if len(chain) > 0 {
			slot, ok = chain[0], true
		}
	} else {
		res.Name = e.Label
		slot, ok = receivers.Pin(chain, e.Label)
	}
	if !ok {
		if e.Label != "" {
			u.fail(res, diagnostics.ErrR006, nil, "unresolved label @%s", e.Label)
		} else {
			u.fail(res, diagnostics.ErrR003, nil, "this is not available here")
		}
		res.Type = types.Error
		u.m.Set(res)
		return types.Error
	}
	t := u.r.slotType(u.uc, slot)
	res.Status = StatusResolved
	res.Symbol = slot.Class
	if res.Symbol == nil {
		res.Symbol = slot.Owner
	}
	res.Receiver = &Receiver{Kind: ReceiverImplicit, Slot: slot, Type: t}
	res.Tier = TierReceiver
	res.Type = t
	u.m.Set(res)
	return t
}

// super resolves `super` to the supertype of the enclosing (or labeled)
// class: the written one, else the first declared class supertype, else
// the top type.
func (u *unitRun) super(e *ast.Super) types.Type {
	res := &Resolution{Site: e, Role: RoleRef, Name: "super"}
	explicit := u.typeRef(e.Type)
	var cls *symbols.Symbol
	for _, slot := range receivers.Chain(u.uc.table, u.scopeOf(e)) {
		if slot.Class != nil && (e.Label == "" || slot.Label == e.Label) {
			cls = slot.Class
			break
		}
	}
	if cls == nil {
		if e.Label != "" {
			res.Name = e.Label
			u.fail(res, diagnostics.ErrR006, nil, "unresolved label @%s", e.Label)
		} else {
			u.fail(res, diagnostics.ErrR003, nil, "super is not available here")
		}
		u.m.Set(res)
		return types.Error
	}

	var target *symbols.Symbol
	if e.Type != nil {
		if explicit.IsError() {
			u.suppress(&request{site: e, name: "super"}, RoleRef)
			return types.Error
		}
		if c := u.r.snapshot.Class(explicit.Name); c != nil {
			target = c.Symbol
		}
	} else {
		for _, ref := range cls.Supertypes {
			t := u.r.declaredType(cls, ref)
			c := u.r.snapshot.Class(t.Name)
			if t.IsError() || c == nil {
				continue
			}
			if target == nil || (target.Flags.Has(symbols.FlagInterface) && !c.Symbol.Flags.Has(symbols.FlagInterface)) {
				target = c.Symbol
			}
		}
		if target == nil {
			if c := u.r.snapshot.Class(u.r.builtin(config.AnyTypeName)); c != nil {
				target = c.Symbol
			}
		}
	}
	if target == nil {
		u.fail(res, diagnostics.ErrR003, nil, "no supertype for super")
		u.m.Set(res)
		return types.Error
	}
	t := classType(target)
	res.Status = StatusResolved
	res.Symbol = target
	res.Tier = TierReceiver
	res.Type = t
	u.m.Set(res)
	return t
}

// inferValue types a value of this unit without a declared type from its
// initializer or delegate. Values of other units stay untyped.
func (u *unitRun) inferValue(sym *symbols.Symbol) types.Type {
	if t, ok := u.valueTypes[sym]; ok {
		return t
	}
	if u.inferring[sym] || sym.Unit != u.uc.path() {
		return types.Error
	}
	u.inferring[sym] = true
	defer delete(u.inferring, sym)

	t := types.Error
	if d, ok := sym.Node.(*ast.PropertyDecl); ok && u.uc.table.SymbolOf(d) == sym {
		switch {
		case d.Init != nil:
			t = u.expr(d.Init)
		case d.Delegate != nil:
			t = u.delegate(d, sym)
		}
	}
	u.valueTypes[sym] = t
	return t
}
