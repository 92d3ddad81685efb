package resolve

import (
	"strings"

	"github.com/funvibe/resolvekit/internal/ast"
	"github.com/funvibe/resolvekit/internal/config"
	"github.com/funvibe/resolvekit/internal/diagnostics"
	"github.com/funvibe/resolvekit/internal/imports"
	"github.com/funvibe/resolvekit/internal/modules"
	"github.com/funvibe/resolvekit/internal/symbols"
	"github.com/funvibe/resolvekit/internal/types"
)

// Resolver resolves units against one published snapshot. It caches type
// qualifications, import tables of other units and hierarchy closures, so
// it must stay owned by a single goroutine; create one per worker.
type Resolver struct {
	snapshot  *modules.Snapshot
	cfg       *config.Config
	hierarchy *types.Hierarchy
	oracle    types.Oracle

	units    map[string]*unitContext
	typeRefs map[*ast.TypeRef]types.Type

	// infer types values without a declared type; set while a unit is
	// being resolved.
	infer func(*symbols.Symbol) types.Type
}

// unitContext is what type qualification needs to look names up from
// inside a unit: its scope graph and its import table.
type unitContext struct {
	unit    *modules.Unit
	table   *symbols.Table
	imports *imports.Table
}

func (uc *unitContext) path() string { return uc.table.Unit }

// New creates a resolver over snapshot. A nil oracle falls back to the
// declared class hierarchy of the snapshot.
func New(snapshot *modules.Snapshot, cfg *config.Config, oracle types.Oracle) *Resolver {
	r := &Resolver{
		snapshot: snapshot,
		cfg:      cfg,
		units:    make(map[string]*unitContext),
		typeRefs: make(map[*ast.TypeRef]types.Type),
	}
	r.hierarchy = types.NewHierarchy(r.builtin(config.AnyTypeName), r.builtin(config.NothingTypeName), r.supertypes)
	r.oracle = oracle
	if r.oracle == nil {
		r.oracle = r.hierarchy
	}
	return r
}

// Snapshot returns the snapshot the resolver reads.
func (r *Resolver) Snapshot() *modules.Snapshot { return r.snapshot }

func (r *Resolver) builtin(name string) string {
	return r.cfg.BuiltinPackage + "." + name
}

func (r *Resolver) builtinType(name string) types.Type {
	return types.Named(r.builtin(name))
}

// context returns the lookup context of the unit at path. Units other than
// the ones being resolved get an import table built on first use; its
// diagnostics belong to that unit's own resolution and are dropped here.
func (r *Resolver) context(path string) *unitContext {
	if uc, ok := r.units[path]; ok {
		return uc
	}
	u := r.snapshot.Unit(path)
	if u == nil {
		r.units[path] = nil
		return nil
	}
	uc := &unitContext{
		unit:    u,
		table:   u.Table,
		imports: imports.Build(u.File, u.Table, r.snapshot, r.cfg, diagnostics.NewSink(path)),
	}
	r.units[path] = uc
	return uc
}

// supertypes is the hierarchy loader: the qualified direct supertypes of a
// class, qualified in the scope declaring the class. Classes without
// declared supertypes extend the top type.
func (r *Resolver) supertypes(qn string) []string {
	c := r.snapshot.Class(qn)
	if c == nil {
		return nil
	}
	var out []string
	for _, ref := range c.Symbol.Supertypes {
		if t := r.qualify(c.Symbol.Unit, c.Symbol.Scope, ref); !t.IsError() {
			out = append(out, t.Name)
		}
	}
	if len(out) == 0 && qn != r.builtin(config.AnyTypeName) {
		out = append(out, r.builtin(config.AnyTypeName))
	}
	return out
}

// qualify turns a written type into a qualified type, looking the name up
// from scope of the unit at path. Unknown or missing types are the error
// type, which conforms to everything.
func (r *Resolver) qualify(path string, scope symbols.ScopeID, ref *ast.TypeRef) types.Type {
	if ref == nil {
		return types.Error
	}
	if t, ok := r.typeRefs[ref]; ok {
		return t
	}
	t := types.Error
	if uc := r.context(path); uc != nil {
		if sym := r.lookupType(uc, scope, ref.Name); sym != nil {
			t = types.Named(sym.QualifiedName)
		}
	}
	t.Nullable = ref.Nullable
	r.typeRefs[ref] = t
	return t
}

// lookupType resolves a possibly qualified type name without reporting.
func (r *Resolver) lookupType(uc *unitContext, scope symbols.ScopeID, name string) *symbols.Symbol {
	first, rest, qualified := strings.Cut(name, ".")
	q := &request{uc: uc, name: first, mode: modeType, scope: scope}
	col := r.collect(q)
	o := prioritize(col.cands, r.oracle)
	if col.conflict != nil && (o.winner == nil || o.winner.Key.Tier > TierFile) {
		return nil
	}
	if o.winner == nil {
		if qualified {
			if c := r.snapshot.Class(name); c != nil {
				return c.Symbol
			}
		}
		return nil
	}
	sym := o.winner.Symbol
	if !qualified {
		return sym
	}
	return r.nested(sym, rest)
}

// nested follows dotted segments through nested classifiers.
func (r *Resolver) nested(sym *symbols.Symbol, path string) *symbols.Symbol {
	for _, seg := range strings.Split(path, ".") {
		var next *symbols.Symbol
		for _, m := range r.snapshot.Members(sym.QualifiedName, seg) {
			if m.Kind == symbols.KindType {
				next = m
				break
			}
		}
		if next == nil {
			return nil
		}
		sym = next
	}
	return sym
}

// declaredType is the qualified form of a type written on sym.
func (r *Resolver) declaredType(sym *symbols.Symbol, ref *ast.TypeRef) types.Type {
	return r.qualify(sym.Unit, sym.Scope, ref)
}

// paramTypes returns the qualified parameter types of a function.
func (r *Resolver) paramTypes(sym *symbols.Symbol) []types.Type {
	params := sym.Signature.Params
	out := make([]types.Type, len(params))
	for i, p := range params {
		out[i] = r.declaredType(sym, p.Type)
	}
	return out
}

// resultType is the type of a call of sym.
func (r *Resolver) resultType(sym *symbols.Symbol) types.Type {
	if sym.Flags.Has(symbols.FlagConstructor) && sym.Owner != nil {
		return types.Named(sym.Owner.QualifiedName)
	}
	return r.declaredType(sym, sym.Type)
}

// members returns the members named name of the class typeName and of its
// supertypes, most derived first. A member overridden by a more derived
// one (same name for values, same parameters for functions) is dropped.
func (r *Resolver) members(typeName, name string) []*symbols.Symbol {
	var out []*symbols.Symbol
	for _, qn := range r.hierarchy.Supertypes(typeName) {
		for _, m := range r.snapshot.Members(qn, name) {
			if !m.IsMember() || m.IsExtension() || m.Kind == symbols.KindType {
				continue
			}
			if !overridden(out, m) {
				out = append(out, m)
			}
		}
	}
	return out
}

func overridden(derived []*symbols.Symbol, m *symbols.Symbol) bool {
	for _, d := range derived {
		if d.Kind != m.Kind {
			continue
		}
		if m.Kind != symbols.KindFunction || d.Signature.SameShape(m.Signature) {
			return true
		}
	}
	return false
}

// classType returns the instance type of a class symbol.
func classType(sym *symbols.Symbol) types.Type {
	return types.Named(sym.QualifiedName)
}

func position(sym *symbols.Symbol) ast.Pos {
	if sym == nil || sym.Node == nil {
		return ast.Pos{}
	}
	return sym.Node.Position()
}
