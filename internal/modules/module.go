// Package modules publishes the declarations of all compilation units of a
// session as one immutable Snapshot. Publication is the only point where
// units synchronize: once a Snapshot exists it is read concurrently and
// never changes.
package modules

import (
	"github.com/funvibe/resolvekit/internal/ast"
	"github.com/funvibe/resolvekit/internal/symbols"
)

// Unit is one compilation unit with its built scope graph.
type Unit struct {
	File      *ast.File
	Table     *symbols.Table
	IsVirtual bool // synthetic built-in unit
}

// Path returns the unit path.
func (u *Unit) Path() string { return u.File.Path }

// Package groups the units declaring the same package name.
type Package struct {
	Name      string
	Units     []*Unit // sorted by path
	IsVirtual bool
}

// Class locates a type symbol together with the unit declaring it.
type Class struct {
	Symbol *symbols.Symbol
	Unit   *Unit
}

// Exports returns the public top-level symbols of the package named name,
// in unit path order then declaration order.
func (p *Package) Exports(name string) []*symbols.Symbol {
	var out []*symbols.Symbol
	for _, u := range p.Units {
		for _, sym := range u.Table.Lookup(u.Table.Root().ID, name) {
			if sym.Visibility == symbols.Public {
				out = append(out, sym)
			}
		}
	}
	return out
}

// AllExports returns every public top-level symbol of the package.
func (p *Package) AllExports() []*symbols.Symbol {
	var out []*symbols.Symbol
	for _, u := range p.Units {
		for _, sym := range u.Table.Declared(u.Table.Root().ID) {
			if sym.Visibility == symbols.Public {
				out = append(out, sym)
			}
		}
	}
	return out
}
