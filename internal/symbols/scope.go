package symbols

import "github.com/funvibe/resolvekit/internal/ast"

// ScopeKind enumerates the lexical constructs that open a scope.
type ScopeKind uint8

const (
	ScopeInvalid  ScopeKind = iota
	ScopeFile               // top-level declarations of one unit
	ScopeClass              // class, interface, object or companion body
	ScopeFunction           // function parameters and body
	ScopeAccessor           // property getter or setter
	ScopeInit               // initializer block
	ScopeLambda             // function literal
	ScopeLoop               // loop variable and body
	ScopeWhen               // one when branch
	ScopeTry                // try body
	ScopeCatch              // catch parameter and body
	ScopeBlock              // any other braced block
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeFile:
		return "file"
	case ScopeClass:
		return "class"
	case ScopeFunction:
		return "function"
	case ScopeAccessor:
		return "accessor"
	case ScopeInit:
		return "init"
	case ScopeLambda:
		return "lambda"
	case ScopeLoop:
		return "loop"
	case ScopeWhen:
		return "when"
	case ScopeTry:
		return "try"
	case ScopeCatch:
		return "catch"
	case ScopeBlock:
		return "block"
	default:
		return "invalid"
	}
}

// Scope is one lexical region. Parent is an index into the same arena and is
// always smaller than the scope's own ID.
type Scope struct {
	ID     ScopeID
	Kind   ScopeKind
	Parent ScopeID
	Node   ast.Node

	// Label is the label carried by the construct: the explicit label of a
	// loop or lambda, the name of a function, the property name of an
	// accessor. LabelSymbol is the matching label symbol.
	Label       string
	LabelSymbol *Symbol

	// Owner is the class of a class scope, the function of a function
	// scope, the property of an accessor scope.
	Owner *Symbol
	// Receiver is the receiver type of a lambda with receiver.
	Receiver *ast.TypeRef

	Names   map[string][]SymbolID
	Symbols []SymbolID
}

// IsCallable reports whether `return` may target the scope.
func (s *Scope) IsCallable() bool {
	return s.Kind == ScopeFunction || s.Kind == ScopeLambda || s.Kind == ScopeAccessor
}
