// Package diagnostics defines the user-facing problems reported by the
// resolver. Diagnostics are values, never Go errors returned up the stack:
// every one is recoverable and resolution continues past it.
package diagnostics

import (
	"fmt"
	"strings"

	"github.com/funvibe/resolvekit/internal/ast"
)

// ErrorCode is a stable diagnostic code.
type ErrorCode string

const (
	ErrR001  ErrorCode = "R001" // duplicate declaration in one scope
	ErrR002  ErrorCode = "R002" // conflicting explicit imports
	ErrR003  ErrorCode = "R003" // unresolved reference
	ErrR004  ErrorCode = "R004" // ambiguous reference
	ErrR005  ErrorCode = "R005" // no applicable candidate
	ErrR006  ErrorCode = "R006" // unresolved label
	ErrR007  ErrorCode = "R007" // missing delegate operator
	WarnW001 ErrorCode = "W001" // label shadows an enclosing label
)

var codeKinds = map[ErrorCode]string{
	ErrR001:  "DuplicateDeclaration",
	ErrR002:  "ImportConflict",
	ErrR003:  "UnresolvedReference",
	ErrR004:  "AmbiguousReference",
	ErrR005:  "NoApplicableCandidate",
	ErrR006:  "UnresolvedLabel",
	ErrR007:  "MissingDelegateOperator",
	WarnW001: "DuplicateLabel",
}

// Kind returns the diagnostic kind name of the code.
func (c ErrorCode) Kind() string {
	if kind, ok := codeKinds[c]; ok {
		return kind
	}
	return string(c)
}

// IsWarning reports whether the code is a warning rather than an error.
func (c ErrorCode) IsWarning() bool {
	return strings.HasPrefix(string(c), "W")
}

// DiagnosticError is one reported problem: a site, a code and a payload.
type DiagnosticError struct {
	Code ErrorCode
	File string
	Pos  ast.Pos
	Node ast.NodeID

	// Name is the subject of the diagnostic (reference name, label,
	// import path or operator name).
	Name string
	// Candidates lists the qualified candidates involved, if any.
	Candidates []string
	Message    string
}

// NewError creates a diagnostic located at node.
func NewError(code ErrorCode, node ast.Node, msg string) *DiagnosticError {
	d := &DiagnosticError{Code: code, Message: msg}
	if node != nil {
		d.Pos = node.Position()
		d.Node = node.NodeID()
	}
	return d
}

// NewErrorf is NewError with a formatted message.
func NewErrorf(code ErrorCode, node ast.Node, format string, args ...any) *DiagnosticError {
	return NewError(code, node, fmt.Sprintf(format, args...))
}

// WithName sets the diagnostic subject.
func (e *DiagnosticError) WithName(name string) *DiagnosticError {
	e.Name = name
	return e
}

// WithCandidates attaches the candidates involved.
func (e *DiagnosticError) WithCandidates(candidates []string) *DiagnosticError {
	e.Candidates = candidates
	return e
}

func (e *DiagnosticError) Error() string {
	severity := "error"
	if e.Code.IsWarning() {
		severity = "warning"
	}
	loc := e.Pos.String()
	if e.File != "" {
		loc = e.File + ":" + loc
	}
	return fmt.Sprintf("%s: %s %s [%s]: %s", loc, severity, e.Code, e.Code.Kind(), e.Message)
}
