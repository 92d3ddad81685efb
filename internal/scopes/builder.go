// Package scopes builds the lexical scope graph of a compilation unit.
//
// One traversal of the tree creates a Scope per lexical construct and
// inserts every declaration into the innermost enclosing scope. The result
// is a symbols.Table that is never mutated afterwards.
package scopes

import (
	"fmt"

	"github.com/funvibe/resolvekit/internal/ast"
	"github.com/funvibe/resolvekit/internal/config"
	"github.com/funvibe/resolvekit/internal/diagnostics"
	"github.com/funvibe/resolvekit/internal/symbols"
)

// Build creates the scope graph of file. Declaration problems are returned
// as diagnostics; a tree that does not respect the node model yields an
// error wrapping ast.ErrMalformedTree.
func Build(file *ast.File) (*symbols.Table, []*diagnostics.DiagnosticError, error) {
	if file == nil {
		return nil, nil, fmt.Errorf("building scopes: nil file: %w", ast.ErrMalformedTree)
	}
	b := &builder{
		file:   file,
		table:  symbols.NewTable(file.Path, file.Package),
		sink:   diagnostics.NewSink(file.Path),
		prefix: make(map[symbols.ScopeID]string),
	}
	root := b.table.NewScope(symbols.ScopeFile, symbols.NoScopeID, file)
	b.prefix[root.ID] = file.Package
	b.table.BindNode(file, root.ID)
	for _, imp := range file.Imports {
		if imp == nil {
			b.fail(file, "nil import")
			continue
		}
		b.table.BindNode(imp, root.ID)
	}
	for _, d := range file.Decls {
		b.decl(root.ID, d)
	}
	if b.err != nil {
		return nil, nil, b.err
	}
	return b.table, b.sink.Diagnostics(), nil
}

type builder struct {
	file   *ast.File
	table  *symbols.Table
	sink   *diagnostics.Sink
	prefix map[symbols.ScopeID]string // qualified name prefix per scope
	err    error
}

// fail records the first malformed-tree fault; building continues so the
// caller gets the earliest one.
func (b *builder) fail(node ast.Node, format string, args ...any) {
	if b.err != nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if node != nil {
		msg = fmt.Sprintf("%s:%s: %s", b.file.Path, node.Position(), msg)
	}
	b.err = fmt.Errorf("building scopes: %s: %w", msg, ast.ErrMalformedTree)
}

func (b *builder) scope(id symbols.ScopeID) *symbols.Scope {
	return b.table.Scope(id)
}

func (b *builder) newScope(kind symbols.ScopeKind, parent symbols.ScopeID, node ast.Node) *symbols.Scope {
	s := b.table.NewScope(kind, parent, node)
	b.prefix[s.ID] = b.prefix[parent]
	return s
}

func (b *builder) qualify(scope symbols.ScopeID, name string) string {
	if p := b.prefix[scope]; p != "" {
		return p + "." + name
	}
	return name
}

// placement returns the flags implied by the kind of the declaring scope.
func (b *builder) placement(scope symbols.ScopeID) symbols.Flags {
	switch b.scope(scope).Kind {
	case symbols.ScopeFile:
		return 0
	case symbols.ScopeClass:
		return symbols.FlagMember
	default:
		return symbols.FlagLocal
	}
}

func visibility(private bool) symbols.Visibility {
	if private {
		return symbols.Private
	}
	return symbols.Public
}

// declare inserts sym into scope unless it conflicts with a symbol of the
// same kind and name declared there. Functions only conflict when their
// parameter lists are identical. A conflicting symbol is still registered
// so that its node maps to it, but it is not visible by name.
func (b *builder) declare(scope symbols.ScopeID, sym *symbols.Symbol) *symbols.Symbol {
	for _, other := range b.table.Lookup(scope, sym.Name) {
		if other.Kind != sym.Kind || other.Receiver.String() != sym.Receiver.String() {
			continue
		}
		if sym.Kind == symbols.KindFunction && !other.Signature.SameShape(sym.Signature) {
			continue
		}
		b.sink.Add(diagnostics.NewErrorf(diagnostics.ErrR001, sym.Node,
			"%s %s is already declared in this scope", sym.Kind, sym.Name).
			WithName(sym.Name).
			WithCandidates([]string{other.Describe()}))
		b.table.Register(sym)
		sym.Scope = scope
		return sym
	}
	return b.table.Insert(scope, sym)
}

// label attaches a label to a scope. Explicit labels (loops, lambdas) that
// repeat an enclosing label produce a warning; the innermost still wins at
// lookup.
func (b *builder) label(s *symbols.Scope, name string, node ast.Node, explicit bool) {
	if name == "" {
		return
	}
	if explicit {
		b.table.Walk(s.Parent, func(outer *symbols.Scope, _ int) bool {
			if outer.Label != name {
				return true
			}
			b.sink.Add(diagnostics.NewErrorf(diagnostics.WarnW001, node,
				"label %s shadows an enclosing label", name).WithName(name))
			return false
		})
	}
	s.Label = name
	s.LabelSymbol = b.table.Register(&symbols.Symbol{
		Kind:          symbols.KindLabel,
		Name:          name,
		QualifiedName: name,
		Node:          node,
		Scope:         s.ID,
		Flags:         symbols.FlagSynthetic,
	})
}

func (b *builder) decl(scope symbols.ScopeID, d ast.Decl) {
	if d == nil {
		b.fail(b.scope(scope).Node, "nil declaration")
		return
	}
	b.table.BindNode(d, scope)
	switch d := d.(type) {
	case *ast.ClassDecl:
		b.class(scope, d)
	case *ast.FunDecl:
		b.fun(scope, d)
	case *ast.PropertyDecl:
		b.property(scope, d)
	case *ast.InitBlock:
		if b.scope(scope).Kind != symbols.ScopeClass {
			b.fail(d, "init block outside a class body")
			return
		}
		s := b.newScope(symbols.ScopeInit, scope, d)
		b.block(s.ID, d.Body)
	default:
		b.fail(d, "unknown declaration %T", d)
	}
}

func (b *builder) class(scope symbols.ScopeID, d *ast.ClassDecl) {
	if d.Name == "" {
		b.fail(d, "class without name")
		return
	}
	flags := b.placement(scope)
	switch d.Kind {
	case ast.ClassInterface:
		flags |= symbols.FlagInterface
	case ast.ClassObject:
		flags |= symbols.FlagObject
	case ast.ClassCompanion:
		if b.scope(scope).Kind != symbols.ScopeClass {
			b.fail(d, "companion object outside a class body")
			return
		}
		flags |= symbols.FlagCompanion
	}
	if d.Inner {
		flags |= symbols.FlagInner
	}
	sym := b.declare(scope, &symbols.Symbol{
		Kind:          symbols.KindType,
		Name:          d.Name,
		QualifiedName: b.qualify(scope, d.Name),
		Node:          d,
		Flags:         flags,
		Visibility:    visibility(d.Private),
		Supertypes:    d.Supertypes,
	})
	for _, t := range d.Supertypes {
		b.typeRef(scope, t)
	}

	body := b.newScope(symbols.ScopeClass, scope, d)
	body.Owner = sym
	b.prefix[body.ID] = sym.QualifiedName
	sym.Body = body.ID
	b.label(body, d.Name, d, false)

	if d.Kind == ast.ClassRegular {
		sym.Constructor = b.table.Register(&symbols.Symbol{
			Kind:          symbols.KindFunction,
			Name:          d.Name,
			QualifiedName: sym.QualifiedName,
			Node:          d,
			Scope:         scope,
			Flags:         symbols.FlagConstructor,
			Visibility:    sym.Visibility,
			Owner:         sym,
			Signature:     b.signature(d.Params),
		})
	} else if len(d.Params) > 0 {
		b.fail(d, "%s %s cannot declare constructor parameters", d.Kind, d.Name)
		return
	}

	for _, p := range d.Params {
		if !b.checkParam(d, p) {
			return
		}
		param := &symbols.Symbol{
			Kind:          symbols.KindValue,
			Name:          p.Name,
			QualifiedName: sym.QualifiedName + "." + p.Name,
			Node:          p,
			Type:          p.Type,
		}
		if p.Property {
			param.Flags = symbols.FlagMember
			param.Owner = sym
		} else {
			param.Flags = symbols.FlagParameter
		}
		if p.Mutable {
			param.Flags |= symbols.FlagMutable
		}
		b.declare(body.ID, param)
		b.paramNodes(body.ID, p)
	}

	for _, m := range d.Members {
		b.decl(body.ID, m)
		if c, ok := m.(*ast.ClassDecl); ok && c.Kind == ast.ClassCompanion {
			if companion := b.table.SymbolOf(c); companion != nil && sym.Companion == nil {
				companion.Owner = sym
				sym.Companion = companion
			}
		}
	}
}

func (b *builder) fun(scope symbols.ScopeID, d *ast.FunDecl) {
	if d.Name == "" {
		b.fail(d, "function without name")
		return
	}
	flags := b.placement(scope)
	if d.Receiver != nil {
		flags |= symbols.FlagExtension
	}
	for _, p := range d.Params {
		if !b.checkParam(d, p) {
			return
		}
	}
	sym := &symbols.Symbol{
		Kind:          symbols.KindFunction,
		Name:          d.Name,
		QualifiedName: b.qualify(scope, d.Name),
		Node:          d,
		Flags:         flags,
		Visibility:    visibility(d.Private),
		Type:          d.Result,
		Receiver:      d.Receiver,
		Signature:     b.signature(d.Params),
	}
	if owner := b.scope(scope).Owner; b.scope(scope).Kind == symbols.ScopeClass {
		sym.Owner = owner
	}
	b.declare(scope, sym)
	b.typeRef(scope, d.Receiver)
	b.typeRef(scope, d.Result)

	fs := b.newScope(symbols.ScopeFunction, scope, d)
	fs.Owner = sym
	b.prefix[fs.ID] = sym.QualifiedName
	b.label(fs, d.Name, d, false)
	for _, p := range d.Params {
		b.declare(fs.ID, &symbols.Symbol{
			Kind:          symbols.KindValue,
			Name:          p.Name,
			QualifiedName: sym.QualifiedName + "." + p.Name,
			Node:          p,
			Flags:         symbols.FlagParameter | symbols.FlagLocal,
			Type:          p.Type,
		})
		b.paramNodes(fs.ID, p)
	}
	b.block(fs.ID, d.Body)
}

func (b *builder) property(scope symbols.ScopeID, d *ast.PropertyDecl) {
	if d.Name == "" {
		b.fail(d, "property without name")
		return
	}
	if d.Init != nil && d.Delegate != nil {
		b.fail(d, "property %s has both an initializer and a delegate", d.Name)
		return
	}
	flags := b.placement(scope)
	if d.Mutable {
		flags |= symbols.FlagMutable
	}
	if d.Receiver != nil {
		flags |= symbols.FlagExtension
	}
	sym := &symbols.Symbol{
		Kind:          symbols.KindValue,
		Name:          d.Name,
		QualifiedName: b.qualify(scope, d.Name),
		Node:          d,
		Flags:         flags,
		Visibility:    visibility(d.Private),
		Type:          d.Type,
		Receiver:      d.Receiver,
		Delegate:      d.Delegate,
	}
	if s := b.scope(scope); s.Kind == symbols.ScopeClass {
		sym.Owner = s.Owner
	}
	b.declare(scope, sym)
	b.typeRef(scope, d.Receiver)
	b.typeRef(scope, d.Type)
	b.expr(scope, d.Init)
	b.expr(scope, d.Delegate)
	b.accessor(scope, sym, d, d.Getter, false)
	b.accessor(scope, sym, d, d.Setter, true)
}

// accessor opens the scope of a getter or setter. It carries the property
// name as label and a synthetic backing field; a setter also declares its
// value parameter.
func (b *builder) accessor(scope symbols.ScopeID, prop *symbols.Symbol, d *ast.PropertyDecl, a *ast.Accessor, setter bool) {
	if a == nil {
		return
	}
	if setter && !d.Mutable {
		b.fail(a, "setter on read-only property %s", d.Name)
		return
	}
	b.table.BindNode(a, scope)
	as := b.newScope(symbols.ScopeAccessor, scope, a)
	as.Owner = prop
	b.prefix[as.ID] = prop.QualifiedName
	b.label(as, d.Name, a, false)
	b.table.Insert(as.ID, &symbols.Symbol{
		Kind:          symbols.KindValue,
		Name:          config.FieldName,
		QualifiedName: prop.QualifiedName + "." + config.FieldName,
		Node:          a,
		Flags:         symbols.FlagSynthetic | symbols.FlagMutable | symbols.FlagLocal,
		Type:          d.Type,
		Owner:         prop,
	})
	if setter {
		name := a.Param
		if name == "" {
			name = config.SetterParamName
		}
		b.table.Insert(as.ID, &symbols.Symbol{
			Kind:          symbols.KindValue,
			Name:          name,
			QualifiedName: prop.QualifiedName + "." + name,
			Node:          a,
			Flags:         symbols.FlagSynthetic | symbols.FlagParameter | symbols.FlagLocal,
			Type:          d.Type,
			Owner:         prop,
		})
	}
	b.block(as.ID, a.Body)
}

func (b *builder) checkParam(owner ast.Node, p *ast.Param) bool {
	if p == nil {
		b.fail(owner, "nil parameter")
		return false
	}
	if p.Name == "" {
		b.fail(p, "parameter without name")
		return false
	}
	return true
}

func (b *builder) signature(params []*ast.Param) symbols.Signature {
	var sig symbols.Signature
	for _, p := range params {
		if p == nil {
			continue
		}
		sig.Params = append(sig.Params, symbols.Param{
			Name:       p.Name,
			Type:       p.Type,
			Vararg:     p.Vararg,
			HasDefault: p.HasDefault,
		})
	}
	return sig
}

func (b *builder) paramNodes(scope symbols.ScopeID, p *ast.Param) {
	b.table.BindNode(p, scope)
	b.typeRef(scope, p.Type)
	b.expr(scope, p.Default)
}

func (b *builder) typeRef(scope symbols.ScopeID, t *ast.TypeRef) {
	if t == nil {
		return
	}
	if t.Name == "" {
		b.fail(t, "empty type name")
		return
	}
	b.table.BindNode(t, scope)
}

// block declares the statements of a body directly into scope; the body of
// a function, accessor or loop does not open a second scope.
func (b *builder) block(scope symbols.ScopeID, blk *ast.Block) {
	if blk == nil {
		return
	}
	b.table.BindNode(blk, scope)
	for _, s := range blk.Stmts {
		b.stmt(scope, s)
	}
}

func (b *builder) stmt(scope symbols.ScopeID, s ast.Stmt) {
	if s == nil {
		b.fail(b.scope(scope).Node, "nil statement")
		return
	}
	switch s := s.(type) {
	case ast.Decl:
		if _, ok := s.(*ast.InitBlock); ok {
			b.fail(s, "init block outside a class body")
			return
		}
		b.decl(scope, s)
	case *ast.Block:
		b.table.BindNode(s, scope)
		inner := b.newScope(symbols.ScopeBlock, scope, s)
		b.block(inner.ID, s)
	case *ast.Loop:
		b.table.BindNode(s, scope)
		b.expr(scope, s.Iterable)
		ls := b.newScope(symbols.ScopeLoop, scope, s)
		b.label(ls, s.Label, s, true)
		if s.Var != nil {
			if !b.checkParam(s, s.Var) {
				return
			}
			b.declare(ls.ID, &symbols.Symbol{
				Kind:          symbols.KindValue,
				Name:          s.Var.Name,
				QualifiedName: b.qualify(ls.ID, s.Var.Name),
				Node:          s.Var,
				Flags:         symbols.FlagLocal | symbols.FlagParameter,
				Type:          s.Var.Type,
			})
			b.paramNodes(ls.ID, s.Var)
		}
		b.block(ls.ID, s.Body)
	case *ast.Assign:
		b.table.BindNode(s, scope)
		if s.Target == nil || s.Value == nil {
			b.fail(s, "incomplete assignment")
			return
		}
		b.expr(scope, s.Target)
		b.expr(scope, s.Value)
	case ast.Expr:
		b.expr(scope, s)
	default:
		b.fail(s, "unknown statement %T", s)
	}
}

func (b *builder) expr(scope symbols.ScopeID, e ast.Expr) {
	if e == nil {
		return
	}
	b.table.BindNode(e, scope)
	switch e := e.(type) {
	case *ast.NameRef:
		if e.Name == "" {
			b.fail(e, "reference without name")
			return
		}
		b.expr(scope, e.Receiver)
	case *ast.Call:
		if e.Name == "" {
			b.fail(e, "call without name")
			return
		}
		b.expr(scope, e.Receiver)
		for _, a := range e.Args {
			if a == nil {
				b.fail(e, "nil argument")
				return
			}
			b.expr(scope, a)
		}
	case *ast.Lambda:
		ls := b.newScope(symbols.ScopeLambda, scope, e)
		ls.Receiver = e.Receiver
		b.typeRef(scope, e.Receiver)
		b.label(ls, e.Label, e, true)
		for _, p := range e.Params {
			if !b.checkParam(e, p) {
				return
			}
			b.declare(ls.ID, &symbols.Symbol{
				Kind:          symbols.KindValue,
				Name:          p.Name,
				QualifiedName: b.qualify(ls.ID, p.Name),
				Node:          p,
				Flags:         symbols.FlagLocal | symbols.FlagParameter,
				Type:          p.Type,
			})
			b.paramNodes(ls.ID, p)
		}
		b.block(ls.ID, e.Body)
	case *ast.Jump:
		b.expr(scope, e.Value)
	case *ast.When:
		b.expr(scope, e.Subject)
		for _, br := range e.Branches {
			if br == nil {
				b.fail(e, "nil when branch")
				return
			}
			b.table.BindNode(br, scope)
			for _, c := range br.Conds {
				b.expr(scope, c)
			}
			ws := b.newScope(symbols.ScopeWhen, scope, br)
			b.block(ws.ID, br.Body)
		}
	case *ast.Try:
		ts := b.newScope(symbols.ScopeTry, scope, e)
		b.block(ts.ID, e.Body)
		for _, c := range e.Catches {
			if c == nil {
				b.fail(e, "nil catch clause")
				return
			}
			b.table.BindNode(c, scope)
			cs := b.newScope(symbols.ScopeCatch, scope, c)
			if c.Param != nil {
				if !b.checkParam(c, c.Param) {
					return
				}
				b.declare(cs.ID, &symbols.Symbol{
					Kind:          symbols.KindValue,
					Name:          c.Param.Name,
					QualifiedName: b.qualify(cs.ID, c.Param.Name),
					Node:          c.Param,
					Flags:         symbols.FlagLocal | symbols.FlagParameter,
					Type:          c.Param.Type,
				})
				b.paramNodes(cs.ID, c.Param)
			}
			b.block(cs.ID, c.Body)
		}
		if e.Finally != nil {
			fs := b.newScope(symbols.ScopeBlock, scope, e.Finally)
			b.block(fs.ID, e.Finally)
		}
	case *ast.Super:
		b.typeRef(scope, e.Type)
	case *ast.StringTemplate:
		for _, p := range e.Parts {
			b.expr(scope, p)
		}
	case *ast.Cast:
		b.expr(scope, e.Expr)
		if e.Type == nil {
			b.fail(e, "cast without type")
			return
		}
		b.typeRef(scope, e.Type)
	case *ast.This, *ast.Literal:
	default:
		b.fail(e, "unknown expression %T", e)
	}
}
