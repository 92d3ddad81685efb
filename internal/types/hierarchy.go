package types

// SupertypeLoader returns the qualified names of the direct supertypes of a
// class. Unknown classes have none.
type SupertypeLoader func(name string) []string

// Hierarchy is an Oracle over declared class supertypes. Closures are
// computed on first use and memoized, so a Hierarchy must stay owned by a
// single goroutine.
type Hierarchy struct {
	top     string
	bottom  string
	load    SupertypeLoader
	closure map[string][]string
}

// NewHierarchy creates a hierarchy rooted at top (every type's supertype)
// with bottom as the subtype of every type.
func NewHierarchy(top, bottom string, load SupertypeLoader) *Hierarchy {
	return &Hierarchy{
		top:     top,
		bottom:  bottom,
		load:    load,
		closure: make(map[string][]string),
	}
}

// Supertypes returns name followed by all its transitive supertypes in
// breadth-first declaration order. Cycles in malformed hierarchies are cut.
func (h *Hierarchy) Supertypes(name string) []string {
	if cached, ok := h.closure[name]; ok {
		return cached
	}
	seen := map[string]bool{name: true}
	out := []string{name}
	for i := 0; i < len(out); i++ {
		for _, super := range h.load(out[i]) {
			if !seen[super] {
				seen[super] = true
				out = append(out, super)
			}
		}
	}
	h.closure[name] = out
	return out
}

// IsSubtype reports whether sub conforms to super. The error type conforms
// both ways.
func (h *Hierarchy) IsSubtype(sub, super Type) bool {
	if sub.IsError() || super.IsError() {
		return true
	}
	if sub.Nullable && !super.Nullable {
		return false
	}
	if sub.Name == h.bottom || super.Name == h.top {
		return true
	}
	for _, name := range h.Supertypes(sub.Name) {
		if name == super.Name {
			return true
		}
	}
	return false
}
