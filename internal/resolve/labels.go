package resolve

import (
	"github.com/funvibe/resolvekit/internal/ast"
	"github.com/funvibe/resolvekit/internal/diagnostics"
	"github.com/funvibe/resolvekit/internal/symbols"
)

// jump resolves the target of return, break and continue. A labeled jump
// targets the nearest enclosing construct carrying the label: a loop for
// break and continue, a function, lambda or accessor for return. An
// unlabeled return targets the enclosing function or accessor. Labels are
// not visible across class bodies.
func (u *unitRun) jump(j *ast.Jump) {
	var target *symbols.Scope
	u.uc.table.Walk(u.scopeOf(j), func(s *symbols.Scope, _ int) bool {
		if s.Kind == symbols.ScopeClass || s.Kind == symbols.ScopeFile {
			return false
		}
		switch {
		case j.Kind == ast.JumpReturn && j.Label == "":
			if s.Kind == symbols.ScopeFunction || s.Kind == symbols.ScopeAccessor {
				target = s
				return false
			}
		case j.Kind == ast.JumpReturn:
			if s.IsCallable() && s.Label == j.Label {
				target = s
				return false
			}
		case j.Label == "":
			if s.Kind == symbols.ScopeLoop {
				target = s
				return false
			}
			if s.IsCallable() {
				return false
			}
		default:
			if s.Kind == symbols.ScopeLoop && s.Label == j.Label {
				target = s
				return false
			}
		}
		return true
	})

	res := &Resolution{Site: j, Role: RoleRef, Name: j.Label}
	switch {
	case target != nil && target.LabelSymbol != nil:
		res.Status = StatusResolved
		res.Symbol = target.LabelSymbol
		if res.Name == "" {
			res.Name = j.Kind.String()
		}
	case target != nil:
		// an unlabeled loop has no label symbol to bind
		return
	case j.Label != "":
		u.fail(res, diagnostics.ErrR006, nil, "unresolved label @%s", j.Label)
	default:
		return
	}
	u.m.Set(res)
}
