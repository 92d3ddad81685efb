package ast

// Inspect traverses the tree rooted at n in document order, calling f for
// every node before its children. If f returns false the children of that
// node are skipped.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	switch n := n.(type) {
	case *File:
		for _, imp := range n.Imports {
			Inspect(imp, f)
		}
		for _, d := range n.Decls {
			Inspect(d, f)
		}
	case *ClassDecl:
		inspectParams(n.Params, f)
		for _, t := range n.Supertypes {
			Inspect(t, f)
		}
		for _, m := range n.Members {
			Inspect(m, f)
		}
	case *FunDecl:
		if n.Receiver != nil {
			Inspect(n.Receiver, f)
		}
		inspectParams(n.Params, f)
		if n.Result != nil {
			Inspect(n.Result, f)
		}
		if n.Body != nil {
			Inspect(n.Body, f)
		}
	case *PropertyDecl:
		if n.Receiver != nil {
			Inspect(n.Receiver, f)
		}
		if n.Type != nil {
			Inspect(n.Type, f)
		}
		inspectExpr(n.Init, f)
		inspectExpr(n.Delegate, f)
		if n.Getter != nil {
			Inspect(n.Getter, f)
		}
		if n.Setter != nil {
			Inspect(n.Setter, f)
		}
	case *Accessor:
		if n.Body != nil {
			Inspect(n.Body, f)
		}
	case *InitBlock:
		if n.Body != nil {
			Inspect(n.Body, f)
		}
	case *Param:
		if n.Type != nil {
			Inspect(n.Type, f)
		}
		inspectExpr(n.Default, f)
	case *Block:
		for _, s := range n.Stmts {
			Inspect(s, f)
		}
	case *Loop:
		if n.Var != nil {
			Inspect(n.Var, f)
		}
		inspectExpr(n.Iterable, f)
		if n.Body != nil {
			Inspect(n.Body, f)
		}
	case *Jump:
		inspectExpr(n.Value, f)
	case *Assign:
		inspectExpr(n.Target, f)
		inspectExpr(n.Value, f)
	case *When:
		inspectExpr(n.Subject, f)
		for _, b := range n.Branches {
			Inspect(b, f)
		}
	case *WhenBranch:
		for _, c := range n.Conds {
			inspectExpr(c, f)
		}
		if n.Body != nil {
			Inspect(n.Body, f)
		}
	case *Try:
		if n.Body != nil {
			Inspect(n.Body, f)
		}
		for _, c := range n.Catches {
			Inspect(c, f)
		}
		if n.Finally != nil {
			Inspect(n.Finally, f)
		}
	case *Catch:
		if n.Param != nil {
			Inspect(n.Param, f)
		}
		if n.Body != nil {
			Inspect(n.Body, f)
		}
	case *NameRef:
		inspectExpr(n.Receiver, f)
	case *Call:
		inspectExpr(n.Receiver, f)
		for _, a := range n.Args {
			inspectExpr(a, f)
		}
	case *Lambda:
		if n.Receiver != nil {
			Inspect(n.Receiver, f)
		}
		inspectParams(n.Params, f)
		if n.Body != nil {
			Inspect(n.Body, f)
		}
	case *Super:
		if n.Type != nil {
			Inspect(n.Type, f)
		}
	case *StringTemplate:
		for _, p := range n.Parts {
			inspectExpr(p, f)
		}
	case *Cast:
		inspectExpr(n.Expr, f)
		if n.Type != nil {
			Inspect(n.Type, f)
		}
	}
}

func inspectParams(params []*Param, f func(Node) bool) {
	for _, p := range params {
		Inspect(p, f)
	}
}

func inspectExpr(e Expr, f func(Node) bool) {
	if e != nil {
		Inspect(e, f)
	}
}

// Number assigns identities to every node of the file that does not have
// one yet, in document order, continuing after the largest identity already
// present. It returns the number of nodes numbered.
func Number(file *File) int {
	var max NodeID
	Inspect(file, func(n Node) bool {
		if id := n.NodeID(); id > max {
			max = id
		}
		return true
	})
	count := 0
	Inspect(file, func(n Node) bool {
		if b := n.base(); b.ID == 0 {
			max++
			b.ID = max
			count++
		}
		return true
	})
	return count
}
