package resolve

import (
	"github.com/funvibe/resolvekit/internal/ast"
	"github.com/funvibe/resolvekit/internal/imports"
	"github.com/funvibe/resolvekit/internal/receivers"
	"github.com/funvibe/resolvekit/internal/symbols"
	"github.com/funvibe/resolvekit/internal/types"
)

// mode is the kind of symbol a site refers to.
type mode uint8

const (
	modeValue mode = iota
	modeCall
	modeType
)

// request describes one reference site to collect candidates for.
type request struct {
	uc    *unitContext
	site  ast.Node
	name  string
	mode  mode
	scope symbols.ScopeID
	args  []types.Type

	explicit  *types.Type     // explicit receiver: `recv.name`
	static    *symbols.Symbol // class used as qualifier: `C.name`
	superOnly bool            // `super.name`: members of the supertype only
	qualifier bool            // the reference is itself a selection receiver
}

// extension is an extension symbol found by name, waiting to be paired
// with a receiver.
type extension struct {
	sym    *symbols.Symbol
	source Tier
	depth  int
}

// collection accumulates the candidates of one request.
type collection struct {
	q          *request
	cands      []*Candidate
	conflict   *symbols.Symbol
	extensions []extension

	valueShadowed bool
	typeShadowed  bool
	fns           []*symbols.Symbol
}

func (c *collection) add(cand *Candidate) {
	if cand == nil {
		return
	}
	cand.order = len(c.cands)
	c.cands = append(c.cands, cand)
}

// shadowedFunction reports whether a closer function with the same
// receiver and parameter types hides fn, and records fn otherwise.
func (c *collection) shadowedFunction(fn *symbols.Symbol) bool {
	for _, f := range c.fns {
		if f.Receiver.String() == fn.Receiver.String() && f.Signature.SameShape(fn.Signature) {
			return true
		}
	}
	c.fns = append(c.fns, fn)
	return false
}

// collect gathers every candidate of q: lexical scopes, imports and the
// same package, then members and extensions of the implicit or explicit
// receivers.
func (r *Resolver) collect(q *request) *collection {
	c := &collection{q: q}
	if q.static != nil {
		r.collectStatic(c)
		return c
	}
	qualified := q.explicit != nil
	r.collectLexical(c, qualified)
	r.collectImports(c, qualified)
	switch {
	case q.mode == modeType:
	case qualified:
		r.collectExplicit(c, *q.explicit)
	default:
		r.collectImplicit(c)
	}
	return c
}

// collectLexical walks the scopes from the site outward. Values and types
// shadow outer declarations of the same name; functions only shadow outer
// functions with identical parameters. Members are skipped: they are
// reached through receivers.
func (r *Resolver) collectLexical(c *collection, extensionsOnly bool) {
	q := c.q
	table := q.uc.table
	table.Walk(q.scope, func(s *symbols.Scope, d int) bool {
		tier, dist := TierLocal, d
		if s.Kind == symbols.ScopeFile {
			tier, dist = TierFile, 0
		}
		var foundValue, foundType bool
		for _, sym := range table.Lookup(s.ID, q.name) {
			if !r.declaredBefore(q, sym) {
				continue
			}
			if sym.IsExtension() {
				if sym.Kind == symbols.KindFunction && c.shadowedFunction(sym) {
					continue
				}
				c.extensions = append(c.extensions, extension{sym: sym, source: tier, depth: dist})
				continue
			}
			if extensionsOnly {
				continue
			}
			switch sym.Kind {
			case symbols.KindValue:
				if sym.IsMember() || c.valueShadowed {
					continue
				}
				foundValue = true
			case symbols.KindType:
				if c.typeShadowed {
					continue
				}
				foundType = true
			case symbols.KindFunction:
				if sym.IsMember() || c.shadowedFunction(sym) {
					continue
				}
			default:
				continue
			}
			r.consider(c, sym, Key{Tier: tier, Distance: dist})
		}
		c.valueShadowed = c.valueShadowed || foundValue
		c.typeShadowed = c.typeShadowed || foundType
		return true
	})
}

// declaredBefore hides local declarations that follow the site.
func (r *Resolver) declaredBefore(q *request, sym *symbols.Symbol) bool {
	if !sym.IsLocal() || sym.Flags.Has(symbols.FlagParameter) || sym.Flags.Has(symbols.FlagSynthetic) {
		return true
	}
	if q.site == nil || sym.Unit != q.uc.path() {
		return true
	}
	decl, site := position(sym), q.site.Position()
	if decl.Line == 0 || site.Line == 0 {
		return true
	}
	return !site.Before(decl)
}

// importClasses are the import classes whose conflicts affect a mode.
func importClasses(m mode) []imports.Class {
	switch m {
	case modeType:
		return []imports.Class{imports.ClassType}
	case modeCall:
		return []imports.Class{imports.ClassType, imports.ClassValue}
	default:
		return []imports.Class{imports.ClassValue, imports.ClassType}
	}
}

// collectImports adds explicit imports, other units of the same package,
// star imports and default imports, in that order.
func (r *Resolver) collectImports(c *collection, extensionsOnly bool) {
	q := c.q
	uc := q.uc
	if !extensionsOnly {
		for _, class := range importClasses(q.mode) {
			if m := uc.imports.Conflict(q.name, class); m != nil {
				c.conflict = m
				break
			}
		}
	}
	add := func(tier Tier, sym *symbols.Symbol) {
		if sym.IsExtension() {
			c.extensions = append(c.extensions, extension{sym: sym, source: tier})
			return
		}
		if !extensionsOnly {
			r.consider(c, sym, Key{Tier: tier})
		}
	}
	for _, b := range uc.imports.Lookup(imports.TierExplicit, q.name) {
		add(TierExplicitImport, b.Symbol)
	}
	if pkg := r.snapshot.Package(uc.table.Package); pkg != nil {
		for _, sym := range pkg.Exports(q.name) {
			if sym.Unit != uc.path() {
				add(TierPackage, sym)
			}
		}
	}
	for _, b := range uc.imports.Lookup(imports.TierStar, q.name) {
		add(TierStar, b.Symbol)
	}
	for _, b := range uc.imports.Lookup(imports.TierDefault, q.name) {
		add(TierDefault, b.Symbol)
	}
}

// collectImplicit adds members of every implicit receiver, then pairs the
// extensions found by name with the nearest receiver they apply to.
func (r *Resolver) collectImplicit(c *collection) {
	q := c.q
	chain := receivers.Chain(q.uc.table, q.scope)
	slots := make([]*Receiver, len(chain))
	for i, slot := range chain {
		slots[i] = &Receiver{Kind: ReceiverImplicit, Slot: slot, Type: r.slotType(q.uc, slot)}
	}
	for _, recv := range slots {
		if recv.Type.IsError() {
			continue
		}
		for _, m := range r.members(recv.Type.Name, q.name) {
			r.considerMember(c, m, Key{Tier: TierReceiver, Distance: recv.Slot.Distance}, recv)
		}
	}
	for _, ext := range c.extensions {
		if !extensionFits(q.mode, ext.sym) {
			continue
		}
		want := r.declaredType(ext.sym, ext.sym.Receiver)
		var bound *Receiver
		for _, recv := range slots {
			if r.oracle.IsSubtype(recv.Type.NonNull(), want) {
				bound = recv
				break
			}
		}
		switch {
		case bound != nil:
			c.add(r.extensionCandidate(q, ext, bound, Applicable))
		case len(slots) == 0:
			c.add(r.extensionCandidate(q, ext, nil, MissingReceiver))
		default:
			c.add(r.extensionCandidate(q, ext, slots[0], WrongReceiverType))
		}
	}
}

// collectExplicit adds members of the explicit receiver type and the
// extensions applicable to it.
func (r *Resolver) collectExplicit(c *collection, t types.Type) {
	q := c.q
	t = t.NonNull()
	recv := &Receiver{Kind: ReceiverExplicit, Type: t}
	for _, m := range r.members(t.Name, q.name) {
		r.considerMember(c, m, Key{Tier: TierReceiver}, recv)
	}
	if q.superOnly {
		return
	}
	for _, ext := range c.extensions {
		if !extensionFits(q.mode, ext.sym) {
			continue
		}
		verdict := Applicable
		if !r.oracle.IsSubtype(t, r.declaredType(ext.sym, ext.sym.Receiver)) {
			verdict = WrongReceiverType
		}
		c.add(r.extensionCandidate(q, ext, recv, verdict))
	}
}

// collectStatic resolves `C.name` for a class C: nested classifiers, then
// members and extensions of C's companion object.
func (r *Resolver) collectStatic(c *collection) {
	q := c.q
	cls := q.static
	for _, m := range r.snapshot.Members(cls.QualifiedName, q.name) {
		if m.Kind == symbols.KindType {
			r.consider(c, m, Key{Tier: TierReceiver})
		}
	}
	if q.mode == modeType || cls.Companion == nil {
		return
	}
	r.collectLexical(c, true)
	r.collectImports(c, true)
	r.collectExplicit(c, classType(cls.Companion))
}

func extensionFits(m mode, sym *symbols.Symbol) bool {
	switch m {
	case modeCall:
		return sym.Kind == symbols.KindFunction
	case modeValue:
		return sym.Kind == symbols.KindValue
	default:
		return false
	}
}

// consider adds the candidates sym contributes to a site found outside
// receivers.
func (r *Resolver) consider(c *collection, sym *symbols.Symbol, key Key) {
	q := c.q
	switch q.mode {
	case modeType:
		if sym.Kind == symbols.KindType {
			c.add(r.candidate(q, sym, key, nil))
		}
	case modeValue:
		switch sym.Kind {
		case symbols.KindValue:
			c.add(r.candidate(q, sym, key, nil))
		case symbols.KindType:
			switch {
			case q.qualifier || sym.IsObject():
				c.add(r.candidate(q, sym, key, nil))
			case sym.Companion != nil:
				c.add(r.candidate(q, sym.Companion, key, nil))
			}
		}
	case modeCall:
		switch sym.Kind {
		case symbols.KindFunction:
			c.add(r.candidate(q, sym, key, nil))
		case symbols.KindType:
			if sym.Constructor != nil {
				c.add(r.candidate(q, sym.Constructor, key, nil))
			} else if sym.IsObject() {
				r.invoke(c, sym, classType(sym), key)
			}
		case symbols.KindValue:
			r.invoke(c, sym, r.valueType(sym), key)
		}
	}
}

// considerMember adds the candidates a member reached through recv
// contributes.
func (r *Resolver) considerMember(c *collection, m *symbols.Symbol, key Key, recv *Receiver) {
	q := c.q
	switch {
	case q.mode == modeValue && m.Kind == symbols.KindValue:
		c.add(r.candidate(q, m, key, recv))
	case q.mode == modeCall && m.Kind == symbols.KindFunction:
		c.add(r.candidate(q, m, key, recv))
	case q.mode == modeCall && m.Kind == symbols.KindValue:
		r.invoke(c, m, r.valueType(m), key)
	}
}

// invoke adds the invoke operators of the type of value as call
// candidates.
// A value of the error type or without invoke operator stays an
// inapplicable candidate.
func (r *Resolver) invoke(c *collection, value *symbols.Symbol, t types.Type, key Key) {
	q := c.q
	key.Invoke = true
	if t.IsError() {
		c.add(&Candidate{Symbol: value, Key: key, Verdict: ErrorTypedReceiver})
		return
	}
	recv := &Receiver{Kind: ReceiverExplicit, Type: t.NonNull()}
	found := false
	for _, m := range r.members(t.NonNull().Name, r.cfg.Operators.Invoke) {
		if m.Kind != symbols.KindFunction {
			continue
		}
		found = true
		cand := r.candidate(q, m, key, recv)
		if !r.visible(q, value) {
			cand.Verdict = Invisible
		}
		cand.Invoke = value
		c.add(cand)
	}
	if !found {
		c.add(&Candidate{Symbol: value, Receiver: recv, Key: key, Verdict: WrongReceiverType})
	}
}

func (r *Resolver) extensionCandidate(q *request, ext extension, recv *Receiver, verdict Verdict) *Candidate {
	key := Key{Tier: TierReceiver, Extension: true, Source: int(ext.source) + 1, Depth: ext.depth}
	if recv != nil && recv.Kind == ReceiverImplicit {
		key.Distance = recv.Slot.Distance
	}
	cand := r.candidate(q, ext.sym, key, recv)
	if verdict != Applicable && cand.Verdict != Invisible {
		cand.Verdict = verdict
	}
	return cand
}

// candidate creates the candidate of sym and decides its applicability:
// visibility first, then arguments.
func (r *Resolver) candidate(q *request, sym *symbols.Symbol, key Key, recv *Receiver) *Candidate {
	cand := &Candidate{Symbol: sym, Receiver: recv, Key: key}
	if !r.visible(q, sym) {
		cand.Verdict = Invisible
		return cand
	}
	if q.mode == modeCall && sym.Kind == symbols.KindFunction {
		cand.params = r.paramTypes(sym)
		cand.Verdict, cand.Key.Arity = r.checkArgs(sym.Signature, cand.params, q.args)
	}
	return cand
}

// checkArgs matches positional arguments against parameters. Arguments
// past a vararg parameter all go to it.
func (r *Resolver) checkArgs(sig symbols.Signature, params, args []types.Type) (Verdict, Arity) {
	n := len(args)
	va := sig.VarargIndex()
	arity := ArityExact
	switch {
	case va >= 0:
		arity = ArityVararg
	case n < sig.Arity():
		arity = ArityDefaults
	}
	if n < sig.Required() || (va < 0 && n > sig.Arity()) {
		return WrongArgumentCount, arity
	}
	for i, a := range args {
		p := types.Error
		switch {
		case va >= 0 && i >= va:
			p = params[va]
		case i < len(params):
			p = params[i]
		}
		if !r.oracle.IsSubtype(a, p) {
			return WrongArgumentType, arity
		}
	}
	return Applicable, arity
}

// visible applies private visibility: private top-level and local
// declarations are visible in their unit, private members inside their
// class.
func (r *Resolver) visible(q *request, sym *symbols.Symbol) bool {
	if sym.Visibility != symbols.Private {
		return true
	}
	if sym.Unit != q.uc.path() {
		return false
	}
	decl := q.uc.table.Scope(sym.Scope)
	if decl == nil || decl.Kind != symbols.ScopeClass {
		return true
	}
	inside := false
	q.uc.table.Walk(q.scope, func(s *symbols.Scope, _ int) bool {
		if s.Kind == symbols.ScopeClass && s.Owner == decl.Owner {
			inside = true
			return false
		}
		return true
	})
	return inside
}

// slotType is the type of an implicit receiver.
func (r *Resolver) slotType(uc *unitContext, slot receivers.Slot) types.Type {
	if slot.Class != nil {
		return classType(slot.Class)
	}
	return r.qualify(uc.path(), slot.Scope, slot.Type)
}

// valueType is the type of a value symbol: its declared type, or the type
// inferred by the unit being resolved.
func (r *Resolver) valueType(sym *symbols.Symbol) types.Type {
	if sym.Type != nil {
		return r.declaredType(sym, sym.Type)
	}
	if r.infer != nil {
		return r.infer(sym)
	}
	return types.Error
}
