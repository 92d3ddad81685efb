// symbols/table.go - scope and symbol arena of one compilation unit

package symbols

import "github.com/funvibe/resolvekit/internal/ast"

// Table owns every Scope and Symbol of one compilation unit. It is filled by
// the scope builder and read-only afterwards, so published tables may be
// shared between goroutines.
type Table struct {
	Unit    string
	Package string

	scopes     []*Scope  // index 0 is the invalid scope
	symbols    []*Symbol // index 0 is the invalid symbol
	nodeScopes map[ast.NodeID]ScopeID
	declared   map[ast.NodeID]*Symbol
}

func NewTable(unit, pkg string) *Table {
	return &Table{
		Unit:       unit,
		Package:    pkg,
		scopes:     []*Scope{nil},
		symbols:    []*Symbol{nil},
		nodeScopes: make(map[ast.NodeID]ScopeID),
		declared:   make(map[ast.NodeID]*Symbol),
	}
}

// NewScope allocates a scope under parent. The root scope has parent
// NoScopeID.
func (t *Table) NewScope(kind ScopeKind, parent ScopeID, node ast.Node) *Scope {
	s := &Scope{
		ID:     ScopeID(len(t.scopes)),
		Kind:   kind,
		Parent: parent,
		Node:   node,
		Names:  make(map[string][]SymbolID),
	}
	t.scopes = append(t.scopes, s)
	return s
}

// Root returns the file scope.
func (t *Table) Root() *Scope {
	if len(t.scopes) < 2 {
		return nil
	}
	return t.scopes[1]
}

// Scope returns the scope with the given ID, or nil.
func (t *Table) Scope(id ScopeID) *Scope {
	if !id.IsValid() || int(id) >= len(t.scopes) {
		return nil
	}
	return t.scopes[id]
}

// Scopes returns all scopes in allocation order.
func (t *Table) Scopes() []*Scope { return t.scopes[1:] }

// Symbol returns the symbol with the given ID, or nil.
func (t *Table) Symbol(id SymbolID) *Symbol {
	if !id.IsValid() || int(id) >= len(t.symbols) {
		return nil
	}
	return t.symbols[id]
}

// Symbols returns all symbols in allocation order.
func (t *Table) Symbols() []*Symbol { return t.symbols[1:] }

// Register allocates an ID for sym without making it visible by name.
func (t *Table) Register(sym *Symbol) *Symbol {
	sym.ID = SymbolID(len(t.symbols))
	if sym.Unit == "" {
		sym.Unit = t.Unit
	}
	if sym.Package == "" {
		sym.Package = t.Package
	}
	t.symbols = append(t.symbols, sym)
	if sym.Node != nil {
		if _, ok := t.declared[sym.Node.NodeID()]; !ok {
			t.declared[sym.Node.NodeID()] = sym
		}
	}
	return sym
}

// Insert registers sym and makes it visible by name in scope.
func (t *Table) Insert(scope ScopeID, sym *Symbol) *Symbol {
	if sym.ID == NoSymbolID {
		t.Register(sym)
	}
	sym.Scope = scope
	s := t.scopes[scope]
	s.Names[sym.Name] = append(s.Names[sym.Name], sym.ID)
	s.Symbols = append(s.Symbols, sym.ID)
	return sym
}

// Lookup returns the symbols named name declared directly in scope, in
// declaration order.
func (t *Table) Lookup(scope ScopeID, name string) []*Symbol {
	s := t.Scope(scope)
	if s == nil {
		return nil
	}
	ids := s.Names[name]
	out := make([]*Symbol, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.symbols[id])
	}
	return out
}

// Declared returns the symbols declared directly in scope, in declaration
// order.
func (t *Table) Declared(scope ScopeID) []*Symbol {
	s := t.Scope(scope)
	if s == nil {
		return nil
	}
	out := make([]*Symbol, 0, len(s.Symbols))
	for _, id := range s.Symbols {
		out = append(out, t.symbols[id])
	}
	return out
}

// Walk calls f for scope and each of its ancestors, innermost first, with
// the number of scopes crossed so far. Walking stops when f returns false.
func (t *Table) Walk(scope ScopeID, f func(s *Scope, distance int) bool) {
	for distance := 0; scope.IsValid(); distance++ {
		s := t.scopes[scope]
		if !f(s, distance) {
			return
		}
		scope = s.Parent
	}
}

// BindNode records the scope enclosing node.
func (t *Table) BindNode(node ast.Node, scope ScopeID) {
	t.nodeScopes[node.NodeID()] = scope
}

// ScopeOf returns the innermost scope enclosing node, or NoScopeID.
func (t *Table) ScopeOf(node ast.Node) ScopeID {
	return t.nodeScopes[node.NodeID()]
}

// SymbolOf returns the symbol declared by node, or nil.
func (t *Table) SymbolOf(node ast.Node) *Symbol {
	return t.declared[node.NodeID()]
}
