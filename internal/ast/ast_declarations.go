package ast

// ClassKind distinguishes the classifier declarations.
type ClassKind uint8

const (
	ClassRegular ClassKind = iota
	ClassInterface
	ClassObject
	ClassCompanion // companion object declared inside a class body
)

func (k ClassKind) String() string {
	switch k {
	case ClassInterface:
		return "interface"
	case ClassObject:
		return "object"
	case ClassCompanion:
		return "companion"
	default:
		return "class"
	}
}

// ClassDecl declares a class, interface, object or companion object.
// Params are the primary-constructor parameters.
type ClassDecl struct {
	Base
	Name       string
	Kind       ClassKind
	Inner      bool
	Private    bool
	Params     []*Param
	Supertypes []*TypeRef
	Members    []Decl
}

// FunDecl declares a function. A non-nil Receiver makes it an extension.
type FunDecl struct {
	Base
	Name     string
	Receiver *TypeRef
	Params   []*Param
	Result   *TypeRef
	Body     *Block
	Private  bool
}

// PropertyDecl declares a property or local variable. Delegate is the
// `by` expression of a delegated property.
type PropertyDecl struct {
	Base
	Name     string
	Mutable  bool
	Type     *TypeRef
	Receiver *TypeRef
	Init     Expr
	Delegate Expr
	Getter   *Accessor
	Setter   *Accessor
	Private  bool
}

// Accessor is a property getter or setter body.
type Accessor struct {
	Base
	Param string // setter value parameter name
	Body  *Block
}

// InitBlock is a class initializer block.
type InitBlock struct {
	Base
	Body *Block
}

func (d *ClassDecl) stmtNode()    {}
func (d *ClassDecl) declNode()    {}
func (d *FunDecl) stmtNode()      {}
func (d *FunDecl) declNode()      {}
func (d *PropertyDecl) stmtNode() {}
func (d *PropertyDecl) declNode() {}
func (d *InitBlock) stmtNode()    {}
func (d *InitBlock) declNode()    {}

func (d *ClassDecl) DeclName() string    { return d.Name }
func (d *FunDecl) DeclName() string      { return d.Name }
func (d *PropertyDecl) DeclName() string { return d.Name }
func (d *InitBlock) DeclName() string    { return "" }

// IsObject reports whether the declaration is a singleton (object or
// companion object).
func (d *ClassDecl) IsObject() bool {
	return d.Kind == ClassObject || d.Kind == ClassCompanion
}
