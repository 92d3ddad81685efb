package resolve

import (
	"sort"

	"github.com/funvibe/resolvekit/internal/ast"
	"github.com/funvibe/resolvekit/internal/diagnostics"
	"github.com/funvibe/resolvekit/internal/receivers"
	"github.com/funvibe/resolvekit/internal/symbols"
	"github.com/funvibe/resolvekit/internal/types"
)

// Role distinguishes the resolutions attached to one node. Most nodes have
// a single reference role; a delegated property carries up to three
// synthetic operator calls.
type Role uint8

const (
	RoleRef Role = iota
	RoleType
	RoleImport
	RoleProvideDelegate
	RoleGetValue
	RoleSetValue
)

func (r Role) String() string {
	switch r {
	case RoleType:
		return "type"
	case RoleImport:
		return "import"
	case RoleProvideDelegate:
		return "provideDelegate"
	case RoleGetValue:
		return "getValue"
	case RoleSetValue:
		return "setValue"
	default:
		return "ref"
	}
}

// Status is the outcome of one site.
type Status uint8

const (
	StatusResolved   Status = iota // bound to the winning symbol
	StatusFailed                   // bound to an error symbol, diagnostic reported
	StatusSuppressed               // bound to an error symbol because of an earlier error
)

func (s Status) String() string {
	switch s {
	case StatusFailed:
		return "failed"
	case StatusSuppressed:
		return "suppressed"
	default:
		return "resolved"
	}
}

// SiteKey identifies a reference site of a unit.
type SiteKey struct {
	Node ast.NodeID
	Role Role
}

// ReceiverKind says which receiver a resolved member or extension uses.
type ReceiverKind uint8

const (
	ReceiverNone ReceiverKind = iota
	ReceiverImplicit
	ReceiverExplicit
)

// Receiver is the receiver a candidate was bound to.
type Receiver struct {
	Kind ReceiverKind
	Slot receivers.Slot // implicit receivers only
	Type types.Type
}

// Resolution is the entry of one site in the resolution map. Symbol is the
// winner, or an error symbol carrying the failure and candidates. A
// resolved star import has no Symbol; its exports are the Candidates.
type Resolution struct {
	Site       ast.Node
	Role       Role
	Name       string
	Status     Status
	Symbol     *symbols.Symbol
	Receiver   *Receiver
	Tier       Tier
	Invoke     *symbols.Symbol // value whose invoke operator was called
	Type       types.Type      // type of the site expression, if any
	Candidates []*Candidate
	Code       diagnostics.ErrorCode
}

// Key returns the map key of the resolution.
func (r *Resolution) Key() SiteKey {
	return SiteKey{Node: r.Site.NodeID(), Role: r.Role}
}

// Map is the resolution map of one unit.
type Map struct {
	Unit    string
	entries map[SiteKey]*Resolution
}

func NewMap(unit string) *Map {
	return &Map{Unit: unit, entries: make(map[SiteKey]*Resolution)}
}

// Set records r, replacing any previous entry for the same site.
func (m *Map) Set(r *Resolution) {
	m.entries[r.Key()] = r
}

// Get returns the resolution of node in role, or nil.
func (m *Map) Get(node ast.Node, role Role) *Resolution {
	return m.entries[SiteKey{Node: node.NodeID(), Role: role}]
}

// Len returns the number of resolved sites.
func (m *Map) Len() int { return len(m.entries) }

// Sorted returns all resolutions ordered by node identity, then role.
func (m *Map) Sorted() []*Resolution {
	out := make([]*Resolution, 0, len(m.entries))
	for _, r := range m.entries {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key(), out[j].Key()
		if a.Node != b.Node {
			return a.Node < b.Node
		}
		return a.Role < b.Role
	})
	return out
}
