package modules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/funvibe/resolvekit/internal/symbols"
)

// Snapshot is the read-only, published view of every unit of a session:
// packages, a class index by qualified name and the member index used for
// receiver lookups. All methods are safe for concurrent use.
type Snapshot struct {
	Generation int

	units    map[string]*Unit
	order    []*Unit
	packages map[string]*Package
	classes  map[string]*Class
}

// Publish builds a snapshot over units. Unit paths must be unique.
func Publish(units []*Unit) (*Snapshot, error) {
	return publish(units, 1)
}

func publish(units []*Unit, generation int) (*Snapshot, error) {
	s := &Snapshot{
		Generation: generation,
		units:      make(map[string]*Unit, len(units)),
		packages:   make(map[string]*Package),
		classes:    make(map[string]*Class),
	}
	for _, u := range units {
		if u == nil || u.File == nil || u.Table == nil {
			return nil, fmt.Errorf("publishing snapshot: incomplete unit")
		}
		if _, dup := s.units[u.Path()]; dup {
			return nil, fmt.Errorf("publishing snapshot: duplicate unit %s", u.Path())
		}
		s.units[u.Path()] = u
		s.order = append(s.order, u)
	}
	sort.Slice(s.order, func(i, j int) bool { return s.order[i].Path() < s.order[j].Path() })

	for _, u := range s.order {
		pkg := s.packages[u.File.Package]
		if pkg == nil {
			pkg = &Package{Name: u.File.Package, IsVirtual: u.IsVirtual}
			s.packages[u.File.Package] = pkg
		}
		pkg.Units = append(pkg.Units, u)
		s.indexClasses(u)
	}
	return s, nil
}

// indexClasses records every type symbol visible by name in the unit. The
// first unit in path order wins a qualified-name collision.
func (s *Snapshot) indexClasses(u *Unit) {
	for _, scope := range u.Table.Scopes() {
		for _, id := range scope.Symbols {
			sym := u.Table.Symbol(id)
			if sym.Kind != symbols.KindType {
				continue
			}
			if _, ok := s.classes[sym.QualifiedName]; !ok {
				s.classes[sym.QualifiedName] = &Class{Symbol: sym, Unit: u}
			}
		}
	}
}

// Replace returns a new snapshot in which unit replaces the unit with the
// same path (or is added). The receiver is left untouched.
func (s *Snapshot) Replace(unit *Unit) (*Snapshot, error) {
	units := make([]*Unit, 0, len(s.order)+1)
	for _, u := range s.order {
		if u.Path() != unit.Path() {
			units = append(units, u)
		}
	}
	units = append(units, unit)
	return publish(units, s.Generation+1)
}

// Unit returns the unit with the given path, or nil.
func (s *Snapshot) Unit(path string) *Unit { return s.units[path] }

// Package returns the package with the given name, or nil.
func (s *Snapshot) Package(name string) *Package { return s.packages[name] }

// Class returns the class with the given qualified name, or nil.
func (s *Snapshot) Class(qualifiedName string) *Class { return s.classes[qualifiedName] }

// Members returns the members named name declared directly in the body of
// the class with the given qualified name. Inherited members are looked up
// by the caller through the type hierarchy.
func (s *Snapshot) Members(qualifiedName, name string) []*symbols.Symbol {
	c := s.classes[qualifiedName]
	if c == nil {
		return nil
	}
	return c.Unit.Table.Lookup(c.Symbol.Body, name)
}

// Resolve maps an import path to the symbols it denotes. A wildcard path
// names a package (all its public top-level symbols) or a class (its
// nested classifiers, or every member of an object). A plain path names a
// top-level symbol of a package or a member of a class.
func (s *Snapshot) Resolve(path string, wildcard bool) []*symbols.Symbol {
	if wildcard {
		var out []*symbols.Symbol
		if pkg := s.packages[path]; pkg != nil {
			out = append(out, pkg.AllExports()...)
		}
		if c := s.classes[path]; c != nil {
			for _, sym := range c.Unit.Table.Declared(c.Symbol.Body) {
				if importableMember(c.Symbol, sym) {
					out = append(out, sym)
				}
			}
		}
		return out
	}

	dot := strings.LastIndexByte(path, '.')
	if dot < 0 {
		// a bare name imports from the root package
		if pkg := s.packages[""]; pkg != nil {
			return pkg.Exports(path)
		}
		return nil
	}
	prefix, name := path[:dot], path[dot+1:]
	var out []*symbols.Symbol
	if pkg := s.packages[prefix]; pkg != nil {
		out = append(out, pkg.Exports(name)...)
	}
	if c := s.classes[prefix]; c != nil {
		for _, sym := range c.Unit.Table.Lookup(c.Symbol.Body, name) {
			if importableMember(c.Symbol, sym) {
				out = append(out, sym)
			}
		}
	}
	return out
}

// importableMember reports whether a class member may be imported: nested
// classifiers always, other members only from objects.
func importableMember(owner, member *symbols.Symbol) bool {
	if member.Visibility != symbols.Public {
		return false
	}
	if member.Kind == symbols.KindType {
		return true
	}
	return owner.IsObject() && member.IsMember()
}
