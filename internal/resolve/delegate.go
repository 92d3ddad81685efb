package resolve

import (
	"github.com/funvibe/resolvekit/internal/ast"
	"github.com/funvibe/resolvekit/internal/config"
	"github.com/funvibe/resolvekit/internal/diagnostics"
	"github.com/funvibe/resolvekit/internal/symbols"
	"github.com/funvibe/resolvekit/internal/types"
)

// delegate resolves the operator calls of the delegated property d and
// returns the property type: the declared one, else the result of
// getValue.
//
// provideDelegate is optional: when it resolves, its result replaces the
// delegate for the following operators; when nothing applies it is
// silently skipped. getValue, and setValue for a var, must resolve or the
// property gets a MissingDelegateOperator diagnostic.
func (u *unitRun) delegate(d *ast.PropertyDecl, sym *symbols.Symbol) types.Type {
	if t, ok := u.delegates[sym]; ok {
		return t
	}
	u.delegates[sym] = types.Error

	ops := u.r.cfg.Operators
	declared := types.Error
	if d.Type != nil {
		declared = u.typeRef(d.Type)
	}
	dt := u.expr(d.Delegate)
	if dt.IsError() {
		u.suppress(u.request(d, ops.GetValue, modeCall), RoleGetValue)
		if d.Mutable {
			u.suppress(u.request(d, ops.SetValue, modeCall), RoleSetValue)
		}
		u.delegates[sym] = declared
		return declared
	}
	thisRef := u.thisRef(sym)
	property := types.Named(u.r.cfg.PropertyType)

	q := u.operator(d, ops.ProvideDelegate, dt, thisRef, property)
	col, o := u.selectSite(q)
	switch {
	case o.winner != nil:
		res := &Resolution{Site: d, Role: RoleProvideDelegate, Name: q.name, Candidates: col.cands}
		u.bind(res, o.winner)
		if rt := u.r.resultType(o.winner.Symbol); !rt.IsError() {
			dt = rt.NonNull()
		}
		res.Type = dt
		u.m.Set(res)
	case len(o.tied) > 0:
		res := &Resolution{Site: d, Role: RoleProvideDelegate, Name: q.name, Candidates: col.cands}
		u.fail(res, diagnostics.ErrR004, o.tied, "ambiguous %s for delegate of type %s", q.name, dt)
		u.m.Set(res)
	}

	get := u.operatorSite(u.operator(d, ops.GetValue, dt, thisRef, property), RoleGetValue, dt)
	t := declared
	if d.Type == nil && get.Status == StatusResolved {
		t = u.r.resultType(get.Symbol)
	}
	if d.Mutable {
		u.operatorSite(u.operator(d, ops.SetValue, dt, thisRef, property, t), RoleSetValue, dt)
	}
	u.delegates[sym] = t
	return t
}

// operator builds the explicit-receiver call request of a delegate
// operator.
func (u *unitRun) operator(d *ast.PropertyDecl, name string, delegate types.Type, args ...types.Type) *request {
	q := u.request(d, name, modeCall)
	q.explicit = &delegate
	q.args = args
	return q
}

// operatorSite resolves a required delegate operator. Any failure is
// reported as a single MissingDelegateOperator.
func (u *unitRun) operatorSite(q *request, role Role, delegate types.Type) *Resolution {
	col, o := u.selectSite(q)
	res := &Resolution{Site: q.site, Role: role, Name: q.name, Candidates: col.cands}
	if o.winner != nil {
		u.bind(res, o.winner)
		res.Type = u.r.resultType(o.winner.Symbol)
	} else {
		cands := o.tied
		if len(cands) == 0 {
			cands = o.rejected
		}
		u.fail(res, diagnostics.ErrR007, cands, "missing delegate operator %s for delegate of type %s", q.name, delegate)
	}
	u.m.Set(res)
	return res
}

// thisRef is the type passed as the thisRef argument: the class of a
// member, the receiver of an extension, or Nothing? otherwise.
func (u *unitRun) thisRef(sym *symbols.Symbol) types.Type {
	switch {
	case sym.IsExtension():
		return u.r.declaredType(sym, sym.Receiver)
	case sym.IsMember() && sym.Owner != nil:
		return classType(sym.Owner)
	default:
		return u.r.builtinType(config.NothingTypeName).OrNull()
	}
}
