// Package imports turns the import directives of a unit into name bindings.
//
// Directives are resolved against the published snapshot only, so an import
// table can be built for any unit at any time without waiting for type
// information of other units.
package imports

import (
	"sort"
	"strings"

	"github.com/funvibe/resolvekit/internal/ast"
	"github.com/funvibe/resolvekit/internal/config"
	"github.com/funvibe/resolvekit/internal/diagnostics"
	"github.com/funvibe/resolvekit/internal/symbols"
)

// PathResolver maps an import path to zero or more symbols. The published
// modules.Snapshot implements it.
type PathResolver interface {
	Resolve(path string, wildcard bool) []*symbols.Symbol
}

// Tier orders the import sources, highest priority first.
type Tier uint8

const (
	TierExplicit Tier = iota
	TierStar
	TierDefault
)

func (t Tier) String() string {
	switch t {
	case TierExplicit:
		return "explicit"
	case TierStar:
		return "star"
	default:
		return "default"
	}
}

// Binding makes one symbol visible under a name.
type Binding struct {
	Name      string
	Symbol    *symbols.Symbol
	Tier      Tier
	Directive *ast.Import // nil for default imports
}

// Class groups symbol kinds that compete for one imported name. Functions
// form overload sets and never conflict.
type Class uint8

const (
	ClassValue Class = iota
	ClassFunction
	ClassType
)

// ClassOf returns the import class of a symbol.
func ClassOf(sym *symbols.Symbol) Class {
	switch sym.Kind {
	case symbols.KindFunction:
		return ClassFunction
	case symbols.KindType:
		return ClassType
	default:
		return ClassValue
	}
}

// Directive is the outcome of one import directive.
type Directive struct {
	Import  *ast.Import
	Targets []*symbols.Symbol
	Code    diagnostics.ErrorCode // empty when the directive resolved cleanly
}

// Table holds the bindings of one unit.
type Table struct {
	Directives []*Directive // sorted by position, then path

	bindings  [3]map[string][]*Binding
	conflicts map[string]map[Class]*symbols.Symbol // error marker per conflicted name and class
}

// Build resolves the directives of file. local is the unit's own scope
// graph; top-level declarations of the file shadow explicit imports of the
// same name and class. Diagnostics go to sink.
func Build(file *ast.File, local *symbols.Table, resolver PathResolver, cfg *config.Config, sink *diagnostics.Sink) *Table {
	t := &Table{conflicts: make(map[string]map[Class]*symbols.Symbol)}
	for i := range t.bindings {
		t.bindings[i] = make(map[string][]*Binding)
	}

	dirs := make([]*ast.Import, 0, len(file.Imports))
	dirs = append(dirs, file.Imports...)
	sort.SliceStable(dirs, func(i, j int) bool {
		a, b := dirs[i], dirs[j]
		if a.Pos != b.Pos {
			return a.Pos.Before(b.Pos)
		}
		return a.Path < b.Path
	})

	for _, imp := range dirs {
		d := &Directive{Import: imp, Targets: resolver.Resolve(imp.Path, imp.All)}
		t.Directives = append(t.Directives, d)
		if len(d.Targets) == 0 {
			d.Code = diagnostics.ErrR003
			sink.Add(diagnostics.NewErrorf(diagnostics.ErrR003, imp,
				"unresolved import %s", importText(imp)).WithName(imp.Path))
			continue
		}
		if imp.All {
			for _, sym := range d.Targets {
				t.add(TierStar, sym.Name, sym, imp)
			}
			continue
		}
		t.explicit(d, local, sink)
	}
	// a conflict removes every rival binding, so each directive naming a
	// conflicted name and class fails; only the first clash was reported
	for _, d := range t.Directives {
		if d.Code == "" && !d.Import.All && t.Marker(d) != nil {
			d.Code = diagnostics.ErrR002
		}
	}

	for _, path := range cfg.DefaultImports {
		wildcard := strings.HasSuffix(path, ".*")
		path = strings.TrimSuffix(path, ".*")
		for _, sym := range resolver.Resolve(path, wildcard) {
			t.add(TierDefault, sym.Name, sym, nil)
		}
	}
	return t
}

// explicit binds the targets of a non-wildcard directive under its
// resulting name, detecting conflicts with earlier explicit directives.
func (t *Table) explicit(d *Directive, local *symbols.Table, sink *diagnostics.Sink) {
	name := d.Import.ImportedName()
	for _, sym := range d.Targets {
		class := ClassOf(sym)
		if class != ClassFunction && shadowedByFile(local, name, class) {
			continue
		}
		if t.conflicts[name][class] != nil {
			continue
		}
		existing := t.bindings[TierExplicit][name]
		duplicate := false
		var rival *Binding
		for _, b := range existing {
			if b.Symbol == sym {
				duplicate = true
				break
			}
			if class != ClassFunction && ClassOf(b.Symbol) == class {
				rival = b
			}
		}
		if duplicate {
			continue
		}
		if rival != nil {
			candidates := []*symbols.Symbol{rival.Symbol, sym}
			if t.conflicts[name] == nil {
				t.conflicts[name] = make(map[Class]*symbols.Symbol)
			}
			t.conflicts[name][class] = symbols.NewErrorSymbol(name, diagnostics.ErrR002, candidates)
			d.Code = diagnostics.ErrR002
			sink.Add(diagnostics.NewErrorf(diagnostics.ErrR002, d.Import,
				"conflicting import: %s is already imported from %s", name, rival.Directive.Path).
				WithName(name).
				WithCandidates([]string{rival.Symbol.Describe(), sym.Describe()}))
			continue
		}
		t.add(TierExplicit, name, sym, d.Import)
	}
}

// Marker returns the conflict marker that replaced a binding of d, or nil.
func (t *Table) Marker(d *Directive) *symbols.Symbol {
	name := d.Import.ImportedName()
	for _, sym := range d.Targets {
		if m := t.conflicts[name][ClassOf(sym)]; m != nil {
			return m
		}
	}
	return nil
}

func shadowedByFile(local *symbols.Table, name string, class Class) bool {
	if local == nil || local.Root() == nil {
		return false
	}
	for _, sym := range local.Lookup(local.Root().ID, name) {
		if ClassOf(sym) == class {
			return true
		}
	}
	return false
}

func (t *Table) add(tier Tier, name string, sym *symbols.Symbol, imp *ast.Import) {
	for _, b := range t.bindings[tier][name] {
		if b.Symbol == sym {
			return
		}
	}
	t.bindings[tier][name] = append(t.bindings[tier][name], &Binding{
		Name:      name,
		Symbol:    sym,
		Tier:      tier,
		Directive: imp,
	})
}

// Lookup returns the bindings of name in tier, excluding conflicted
// classes.
func (t *Table) Lookup(tier Tier, name string) []*Binding {
	bs := t.bindings[tier][name]
	if tier != TierExplicit || t.conflicts[name] == nil {
		return bs
	}
	out := make([]*Binding, 0, len(bs))
	for _, b := range bs {
		if t.conflicts[name][ClassOf(b.Symbol)] == nil {
			out = append(out, b)
		}
	}
	return out
}

// Conflict returns the error marker of an import conflict on name for the
// given class, or nil.
func (t *Table) Conflict(name string, class Class) *symbols.Symbol {
	return t.conflicts[name][class]
}

// Directive returns the outcome of imp, or nil when imp is not a directive
// of this table.
func (t *Table) Directive(imp *ast.Import) *Directive {
	for _, d := range t.Directives {
		if d.Import == imp {
			return d
		}
	}
	return nil
}

func importText(imp *ast.Import) string {
	s := imp.Path
	if imp.All {
		s += ".*"
	}
	if imp.Alias != "" {
		s += " as " + imp.Alias
	}
	return s
}
