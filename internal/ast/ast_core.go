package ast

import "fmt"

// NodeID identifies a node inside one compilation unit. Resolution results
// are keyed by it, so it must be unique per file. Zero means "not numbered".
type NodeID int32

// Pos is a 1-based source position.
type Pos struct {
	Line   int
	Column int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Before reports whether p sorts before o.
func (p Pos) Before(o Pos) bool {
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Column < o.Column
}

// Node is the base interface for all tree nodes.
type Node interface {
	NodeID() NodeID
	Position() Pos
	base() *Base
}

// Stmt is a Node that can appear in a block.
type Stmt interface {
	Node
	stmtNode()
}

// Decl is a declaration. Declarations are statements so that local
// functions, classes and properties can appear in blocks.
type Decl interface {
	Stmt
	declNode()
	DeclName() string
}

// Expr is an expression. Expressions are statements.
type Expr interface {
	Stmt
	exprNode()
}

// Base carries the identity and position shared by every node.
type Base struct {
	ID  NodeID
	Pos Pos
}

func (b *Base) NodeID() NodeID { return b.ID }
func (b *Base) Position() Pos  { return b.Pos }
func (b *Base) base() *Base    { return b }

// File is the root of every tree handed to the engine. One File is one
// compilation unit.
type File struct {
	Base
	Path    string
	Package string
	Imports []*Import
	Decls   []Decl
}

// Import is an import directive: `import a.b.C`, `import a.b.*` or
// `import a.b.C as D`.
type Import struct {
	Base
	Path  string // dotted path without the trailing `.*`
	Alias string
	All   bool
}

// ImportedName is the name the directive binds in the file.
func (i *Import) ImportedName() string {
	if i.Alias != "" {
		return i.Alias
	}
	return LastSegment(i.Path)
}

// TypeRef is a reference to a type by (possibly qualified) name.
type TypeRef struct {
	Base
	Name     string
	Nullable bool
}

func (t *TypeRef) String() string {
	if t == nil {
		return ""
	}
	if t.Nullable {
		return t.Name + "?"
	}
	return t.Name
}

// Param is a function, constructor, lambda, catch or loop parameter.
type Param struct {
	Base
	Name       string
	Type       *TypeRef
	Vararg     bool
	HasDefault bool
	Default    Expr
	Property   bool // primary-constructor `val`/`var` parameter
	Mutable    bool
}

// LastSegment returns the last dot-separated segment of a qualified name.
func LastSegment(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[i+1:]
		}
	}
	return path
}
