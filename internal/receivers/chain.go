// Package receivers computes the implicit receivers visible at a site.
package receivers

import (
	"github.com/funvibe/resolvekit/internal/ast"
	"github.com/funvibe/resolvekit/internal/symbols"
)

// SlotKind says how a receiver became implicit.
type SlotKind uint8

const (
	SlotDispatch   SlotKind = iota // `this` of the innermost class, or of a member's class
	SlotExtension                  // extension receiver of a function, property or lambda
	SlotOuterClass                 // `this` of an enclosing class or companion
)

func (k SlotKind) String() string {
	switch k {
	case SlotDispatch:
		return "dispatch"
	case SlotExtension:
		return "extension"
	default:
		return "outer"
	}
}

// Slot is one implicit receiver. Exactly one of Class and Type is set: a
// class receiver is the instance of Class, an extension receiver has the
// written Type, to be qualified in Scope.
type Slot struct {
	Kind  SlotKind
	Class *symbols.Symbol
	Type  *ast.TypeRef
	// Owner declares an extension receiver: the function or property, or
	// the label of a lambda (nil when the lambda is unlabeled).
	Owner    *symbols.Symbol
	Scope    symbols.ScopeID // scope the receiver type is written in
	Label    string
	Distance int
}

// Chain returns the implicit receivers visible from scope, nearest first.
//
// For each enclosing function (or accessor) the chain holds its dispatch
// receiver when it is a member, then its extension receiver; lambdas with
// receiver add their receiver; each enclosing class adds its `this`
// followed by its companion object. A nested class that is not inner hides
// the instance receivers of everything outside it; objects and companions
// stay visible.
func Chain(table *symbols.Table, scope symbols.ScopeID) []Slot {
	c := &chain{table: table, emitted: make(map[*symbols.Symbol]bool)}
	table.Walk(scope, func(s *symbols.Scope, _ int) bool {
		switch s.Kind {
		case symbols.ScopeLambda:
			if s.Receiver != nil && !c.blocked {
				c.add(Slot{Kind: SlotExtension, Type: s.Receiver, Owner: s.LabelSymbol, Scope: s.Parent, Label: s.Label})
			}
		case symbols.ScopeFunction, symbols.ScopeAccessor:
			owner := s.Owner
			if owner == nil || c.blocked {
				return true
			}
			if owner.IsMember() && owner.Owner != nil {
				c.class(owner.Owner, owner.Scope)
			}
			if owner.Receiver != nil {
				c.add(Slot{Kind: SlotExtension, Type: owner.Receiver, Owner: owner, Scope: s.Parent, Label: s.Label})
			}
		case symbols.ScopeClass:
			cls := s.Owner
			if cls == nil {
				return true
			}
			c.class(cls, s.ID)
			if parent := table.Scope(s.Parent); parent != nil && parent.Kind == symbols.ScopeClass &&
				!cls.Flags.Has(symbols.FlagInner) {
				c.blocked = true
			}
		}
		return true
	})
	return c.slots
}

type chain struct {
	table   *symbols.Table
	slots   []Slot
	emitted map[*symbols.Symbol]bool
	blocked bool
	classes int
}

func (c *chain) add(slot Slot) {
	slot.Distance = len(c.slots)
	c.slots = append(c.slots, slot)
}

// class adds the receiver of cls and then its companion.
func (c *chain) class(cls *symbols.Symbol, scope symbols.ScopeID) {
	if !c.emitted[cls] && (!c.blocked || cls.IsObject()) {
		c.emitted[cls] = true
		kind := SlotOuterClass
		if c.classes == 0 {
			kind = SlotDispatch
		}
		c.classes++
		body := cls.Body
		if !body.IsValid() {
			body = scope
		}
		c.add(Slot{Kind: kind, Class: cls, Scope: body, Label: cls.Name})
	}
	if comp := cls.Companion; comp != nil && !c.emitted[comp] {
		c.emitted[comp] = true
		c.classes++
		c.add(Slot{Kind: SlotOuterClass, Class: comp, Scope: comp.Body, Label: comp.Name})
	}
}

// Pin returns the slot labeled label, nearest first.
func Pin(slots []Slot, label string) (Slot, bool) {
	for _, s := range slots {
		if s.Label == label {
			return s, true
		}
	}
	return Slot{}, false
}
