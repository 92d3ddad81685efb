package symbols

import (
	"strconv"
	"strings"

	"github.com/funvibe/resolvekit/internal/ast"
	"github.com/funvibe/resolvekit/internal/diagnostics"
)

// Kind tags the Symbol variant. Every switch over Kind in the resolver is
// exhaustive.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindValue
	KindFunction
	KindType
	KindLabel
	KindError // placeholder bound to a site whose resolution failed
)

func (k Kind) String() string {
	switch k {
	case KindValue:
		return "val"
	case KindFunction:
		return "fun"
	case KindType:
		return "class"
	case KindLabel:
		return "label"
	case KindError:
		return "error"
	default:
		return "invalid"
	}
}

// Flags qualify a symbol.
type Flags uint16

const (
	FlagMember      Flags = 1 << iota // declared in a class body
	FlagExtension                     // has an extension receiver
	FlagLocal                         // declared inside a function, lambda or block
	FlagMutable                       // var
	FlagObject                        // object declaration
	FlagCompanion                     // companion object
	FlagInner                         // inner class
	FlagSynthetic                     // introduced by the builder (field, value, constructors)
	FlagConstructor                   // primary constructor
	FlagInterface                     // interface declaration
	FlagParameter                     // function, lambda or constructor parameter
)

// Has reports whether all of x are set.
func (f Flags) Has(x Flags) bool { return f&x == x }

// Visibility of a declaration.
type Visibility uint8

const (
	Public Visibility = iota
	Private
)

func (v Visibility) String() string {
	if v == Private {
		return "private"
	}
	return "public"
}

// Param is one parameter of a Signature. Types stay as written; they are
// qualified lazily by the resolver in the declaring scope.
type Param struct {
	Name       string
	Type       *ast.TypeRef
	Vararg     bool
	HasDefault bool
}

// Signature is the parameter list of a function or constructor.
type Signature struct {
	Params []Param
}

// Arity is the number of declared parameters.
func (s Signature) Arity() int { return len(s.Params) }

// Required is the number of parameters that must be supplied.
func (s Signature) Required() int {
	n := 0
	for _, p := range s.Params {
		if !p.Vararg && !p.HasDefault {
			n++
		}
	}
	return n
}

// VarargIndex returns the index of the vararg parameter, or -1.
func (s Signature) VarargIndex() int {
	for i, p := range s.Params {
		if p.Vararg {
			return i
		}
	}
	return -1
}

// SameShape reports whether two signatures have the same parameter types as
// written. It is used for the conflicting-overload and shadowing checks.
func (s Signature) SameShape(o Signature) bool {
	if len(s.Params) != len(o.Params) {
		return false
	}
	for i := range s.Params {
		a, b := s.Params[i], o.Params[i]
		if a.Vararg != b.Vararg || a.Type.String() != b.Type.String() {
			return false
		}
	}
	return true
}

func (s Signature) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, p := range s.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		if p.Vararg {
			sb.WriteString("vararg ")
		}
		if p.Type != nil {
			sb.WriteString(p.Type.String())
		} else {
			sb.WriteString("?")
		}
	}
	sb.WriteByte(')')
	return sb.String()
}

// Failure is carried by error symbols.
type Failure struct {
	Code       diagnostics.ErrorCode
	Candidates []*Symbol
}

// Symbol is one declaration. It is created by the scope builder and never
// mutated once the unit is published.
type Symbol struct {
	ID            SymbolID
	Kind          Kind
	Name          string
	QualifiedName string
	Unit          string // path of the declaring unit; "<pkg>" for the built-in package
	Package       string
	Scope         ScopeID // declaring scope
	Node          ast.Node
	Flags         Flags
	Visibility    Visibility

	// Type is the declared type of a value, the result type of a function
	// or nil when absent.
	Type *ast.TypeRef
	// Receiver is the extension receiver type.
	Receiver  *ast.TypeRef
	Signature Signature

	// Owner is the class a member or constructor belongs to, or the
	// property an accessor symbol (field, value) belongs to.
	Owner *Symbol

	// Type symbols only.
	Supertypes  []*ast.TypeRef
	Body        ScopeID // class body scope
	Companion   *Symbol
	Constructor *Symbol

	// Delegate is the `by` expression of a delegated property.
	Delegate ast.Expr

	Failure *Failure
}

// NewErrorSymbol creates the placeholder bound to a failed site.
func NewErrorSymbol(name string, code diagnostics.ErrorCode, candidates []*Symbol) *Symbol {
	return &Symbol{
		Kind:          KindError,
		Name:          name,
		QualifiedName: name,
		Failure:       &Failure{Code: code, Candidates: candidates},
	}
}

// IsMember reports whether the symbol is declared in a class body.
func (s *Symbol) IsMember() bool { return s.Flags.Has(FlagMember) }

// IsExtension reports whether the symbol has an extension receiver.
func (s *Symbol) IsExtension() bool { return s.Flags.Has(FlagExtension) }

// IsLocal reports whether the symbol is declared inside a function body,
// lambda or block.
func (s *Symbol) IsLocal() bool { return s.Flags.Has(FlagLocal) }

// IsObject reports whether the symbol is an object or companion object.
func (s *Symbol) IsObject() bool {
	return s.Flags.Has(FlagObject) || s.Flags.Has(FlagCompanion)
}

// Describe renders the symbol for diagnostics and traces: kind, qualified
// name and, for functions, the signature.
func (s *Symbol) Describe() string {
	var sb strings.Builder
	switch {
	case s.Flags.Has(FlagConstructor):
		sb.WriteString("constructor ")
	case s.Kind == KindType && s.Flags.Has(FlagCompanion):
		sb.WriteString("companion ")
	case s.Kind == KindType && s.Flags.Has(FlagObject):
		sb.WriteString("object ")
	case s.Kind == KindType && s.Flags.Has(FlagInterface):
		sb.WriteString("interface ")
	case s.Kind == KindValue && s.Flags.Has(FlagMutable):
		sb.WriteString("var ")
	default:
		sb.WriteString(s.Kind.String())
		sb.WriteByte(' ')
	}
	if s.Receiver != nil {
		sb.WriteString(s.Receiver.String())
		sb.WriteByte('.')
	}
	sb.WriteString(s.QualifiedName)
	if s.Kind == KindFunction {
		sb.WriteString(s.Signature.String())
	}
	if s.Node != nil && (s.IsLocal() || s.Kind == KindLabel || s.Flags.Has(FlagSynthetic) || s.Flags.Has(FlagParameter)) {
		// locals are not unique by name; the node identity disambiguates
		sb.WriteString(" #")
		sb.WriteString(strconv.Itoa(int(s.Node.NodeID())))
	}
	return sb.String()
}
