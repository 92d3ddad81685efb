package trace

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/tools/txtar"

	"github.com/funvibe/resolvekit/internal/session"
	"github.com/funvibe/resolvekit/internal/utils"
)

// TraceFile is the archive member holding the expected trace.
const TraceFile = "trace"

// Archive is a txtar case: tree files to resolve together and the trace
// they are expected to produce.
type Archive struct {
	Name     string
	Comment  string
	Sources  []session.Source
	Expected []byte // nil when the archive has no trace member
}

// LoadArchive reads a txtar archive from disk.
func LoadArchive(path string) (*Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading archive %s: %w", path, err)
	}
	return ParseArchive(data, filepath.Base(path))
}

// ParseArchive splits a txtar archive into tree sources and the expected
// trace. Members with a tree extension are sources; other members except
// the trace are rejected.
func ParseArchive(data []byte, name string) (*Archive, error) {
	ar := txtar.Parse(data)
	out := &Archive{Name: name, Comment: strings.TrimSpace(string(ar.Comment))}
	for _, f := range ar.Files {
		switch {
		case f.Name == TraceFile:
			out.Expected = f.Data
		case utils.IsTreeFile(f.Name):
			out.Sources = append(out.Sources, session.Source{Path: f.Name, Data: f.Data})
		default:
			return nil, fmt.Errorf("archive %s: unexpected member %s", name, f.Name)
		}
	}
	if len(out.Sources) == 0 {
		return nil, fmt.Errorf("archive %s: no tree files", name)
	}
	return out, nil
}

// Format renders the archive back, with trace replacing the expected one.
func (a *Archive) Format(trace []byte) []byte {
	ar := &txtar.Archive{}
	if a.Comment != "" {
		ar.Comment = []byte(a.Comment + "\n")
	}
	for _, src := range a.Sources {
		ar.Files = append(ar.Files, txtar.File{Name: src.Path, Data: src.Data})
	}
	ar.Files = append(ar.Files, txtar.File{Name: TraceFile, Data: trace})
	return txtar.Format(ar)
}

// Diff returns a unified diff from want to got, or "" when they are equal.
func Diff(want, got []byte) string {
	if bytes.Equal(want, got) {
		return ""
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(want)),
		B:        difflib.SplitLines(string(got)),
		FromFile: "want",
		ToFile:   "got",
		Context:  2,
	})
	if err != nil {
		return fmt.Sprintf("diff failed: %v\n", err)
	}
	return diff
}
