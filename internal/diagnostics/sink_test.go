package diagnostics

import (
	"strings"
	"testing"

	"github.com/funvibe/resolvekit/internal/ast"
)

func ref(id ast.NodeID, line, col int) *ast.NameRef {
	return &ast.NameRef{Base: ast.Base{ID: id, Pos: ast.Pos{Line: line, Column: col}}, Name: "x"}
}

func TestSink_DedupAndOrder(t *testing.T) {
	s := NewSink("a.yaml")
	s.Add(NewError(ErrR003, ref(3, 5, 1), "unresolved x"))
	s.Add(NewError(ErrR004, ref(2, 1, 4), "ambiguous y"))
	s.Add(NewError(ErrR003, ref(3, 5, 1), "unresolved x again"))
	s.Add(NewError(WarnW001, ref(1, 1, 4), "label"))

	got := s.Diagnostics()
	if len(got) != 3 {
		t.Fatalf("expected 3 diagnostics, got %d", len(got))
	}
	if got[0].Code != WarnW001 || got[1].Code != ErrR004 || got[2].Code != ErrR003 {
		t.Errorf("order = %s %s %s", got[0].Code, got[1].Code, got[2].Code)
	}
	if got[2].Message != "unresolved x" {
		t.Errorf("kept %q, want the first report", got[2].Message)
	}
	if got[0].File != "a.yaml" {
		t.Errorf("file = %q, want a.yaml", got[0].File)
	}
}

func TestSink_HasErrors(t *testing.T) {
	s := NewSink("")
	s.Add(NewError(WarnW001, ref(1, 1, 1), "label"))
	if s.HasErrors() {
		t.Error("warnings alone must not count as errors")
	}
	s.Add(NewError(ErrR006, ref(2, 1, 1), "label"))
	if !s.HasErrors() {
		t.Error("expected HasErrors after R006")
	}
}

func TestDiagnosticError_Error(t *testing.T) {
	d := NewErrorf(ErrR005, ref(1, 2, 3), "no applicable candidate for %s", "f").
		WithName("f").
		WithCandidates([]string{"app.f(lang.Int)"})
	d.File = "main.yaml"
	msg := d.Error()
	for _, want := range []string{"main.yaml:2:3", "error R005", "[NoApplicableCandidate]", "for f"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
	if !WarnW001.IsWarning() || ErrR001.IsWarning() {
		t.Error("IsWarning misclassifies codes")
	}
	if ErrR002.Kind() != "ImportConflict" {
		t.Errorf("Kind = %s", ErrR002.Kind())
	}
}
