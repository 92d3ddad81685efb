// Package types is the nominal type model consumed by the resolver.
//
// The engine does not infer types. Declared types arrive as qualified class
// names; the Oracle answers the one question applicability needs, namely
// whether one type is a subtype of another.
package types

// Type is a class type referenced by its qualified name.
type Type struct {
	Name     string // qualified name, e.g. "lang.Int" or "app.Outer.Inner"
	Nullable bool
}

// Error is the type of expressions whose resolution failed. It is
// compatible with everything so that failures do not cascade.
var Error = Type{Name: "<error>"}

// Named returns the non-null type with the given qualified name.
func Named(name string) Type {
	return Type{Name: name}
}

// IsError reports whether t is the error type.
func (t Type) IsError() bool {
	return t.Name == Error.Name
}

// OrNull returns the nullable variant of t.
func (t Type) OrNull() Type {
	t.Nullable = true
	return t
}

// NonNull returns the non-null variant of t.
func (t Type) NonNull() Type {
	t.Nullable = false
	return t
}

func (t Type) String() string {
	if t.Nullable {
		return t.Name + "?"
	}
	return t.Name
}

// Oracle answers subtype queries. It stands in for the type checker and is
// only used to test applicability, never to infer.
type Oracle interface {
	IsSubtype(sub, super Type) bool
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(sub, super Type) bool

func (f OracleFunc) IsSubtype(sub, super Type) bool { return f(sub, super) }
