package ast

// Block is a braced statement list.
type Block struct {
	Base
	Stmts []Stmt
}

// Loop is a `for`/`while` loop. Var is the `for` loop variable, if any.
type Loop struct {
	Base
	Label    string
	Var      *Param
	Iterable Expr
	Body     *Block
}

// JumpKind enumerates the jump expressions.
type JumpKind uint8

const (
	JumpReturn JumpKind = iota
	JumpBreak
	JumpContinue
)

func (k JumpKind) String() string {
	switch k {
	case JumpBreak:
		return "break"
	case JumpContinue:
		return "continue"
	default:
		return "return"
	}
}

// Jump is `return`, `break` or `continue`, optionally `@label`-qualified.
type Jump struct {
	Base
	Kind  JumpKind
	Label string
	Value Expr
}

// Assign is `target = value`.
type Assign struct {
	Base
	Target Expr
	Value  Expr
}

// When is a `when` expression. Each branch body gets its own scope.
type When struct {
	Base
	Subject  Expr
	Branches []*WhenBranch
}

// WhenBranch is one `conds -> body` arm of a When.
type WhenBranch struct {
	Base
	Conds []Expr
	Body  *Block
}

// Try is a try/catch/finally expression.
type Try struct {
	Base
	Body    *Block
	Catches []*Catch
	Finally *Block
}

// Catch is a catch clause; Param is scoped to Body.
type Catch struct {
	Base
	Param *Param
	Body  *Block
}

// NameRef references a value by name, optionally through an explicit
// receiver (`recv.name`).
type NameRef struct {
	Base
	Receiver Expr
	Name     string
}

// Call is a function call. Infix operator applications (`a plus b`,
// `a + b` desugared to `plus`) are calls with an explicit receiver.
type Call struct {
	Base
	Receiver Expr
	Name     string
	Args     []Expr
	Infix    bool
	Safe     bool
}

// Lambda is a function literal; a non-nil Receiver makes it a lambda with
// receiver.
type Lambda struct {
	Base
	Label    string
	Receiver *TypeRef
	Params   []*Param
	Body     *Block
}

// This is `this` or `this@Label`.
type This struct {
	Base
	Label string
}

// Super is `super`, `super<T>` or `super@Label`.
type Super struct {
	Base
	Label string
	Type  *TypeRef
}

// Literal is a constant of a builtin type. Null is the `null` literal.
type Literal struct {
	Base
	Type  string
	Value string
	Null  bool
}

// StringTemplate is a string literal with embedded expressions.
type StringTemplate struct {
	Base
	Parts []Expr
}

// Cast is `expr as Type`.
type Cast struct {
	Base
	Expr Expr
	Type *TypeRef
}

func (s *Block) stmtNode()          {}
func (s *Loop) stmtNode()           {}
func (s *Jump) stmtNode()           {}
func (s *Assign) stmtNode()         {}
func (s *When) stmtNode()           {}
func (s *Try) stmtNode()            {}
func (e *NameRef) stmtNode()        {}
func (e *Call) stmtNode()           {}
func (e *Lambda) stmtNode()         {}
func (e *This) stmtNode()           {}
func (e *Super) stmtNode()          {}
func (e *Literal) stmtNode()        {}
func (e *StringTemplate) stmtNode() {}
func (e *Cast) stmtNode()           {}

func (s *Jump) exprNode()           {}
func (s *When) exprNode()           {}
func (s *Try) exprNode()            {}
func (e *NameRef) exprNode()        {}
func (e *Call) exprNode()           {}
func (e *Lambda) exprNode()         {}
func (e *This) exprNode()           {}
func (e *Super) exprNode()          {}
func (e *Literal) exprNode()        {}
func (e *StringTemplate) exprNode() {}
func (e *Cast) exprNode()           {}
