package diagnostics

import (
	"fmt"
	"sort"
)

// Sink accumulates the diagnostics of one compilation unit. A diagnostic
// reported twice for the same node and code is kept once. A Sink is owned
// by the goroutine resolving its unit.
type Sink struct {
	file  string
	set   map[string]*DiagnosticError
	order int
	seq   map[*DiagnosticError]int
}

func NewSink(file string) *Sink {
	return &Sink{
		file: file,
		set:  make(map[string]*DiagnosticError),
		seq:  make(map[*DiagnosticError]int),
	}
}

// Add records a diagnostic, keeping the first one per (node, code).
func (s *Sink) Add(err *DiagnosticError) {
	if err.File == "" {
		err.File = s.file
	}
	key := fmt.Sprintf("%d:%d:%d:%s", err.Pos.Line, err.Pos.Column, err.Node, err.Code)
	if _, ok := s.set[key]; ok {
		return
	}
	s.set[key] = err
	s.seq[err] = s.order
	s.order++
}

// Len returns the number of distinct diagnostics.
func (s *Sink) Len() int { return len(s.set) }

// HasErrors reports whether any non-warning diagnostic was added.
func (s *Sink) HasErrors() bool {
	for _, d := range s.set {
		if !d.Code.IsWarning() {
			return true
		}
	}
	return false
}

// Diagnostics returns all diagnostics sorted by position, then node, then
// code, then insertion order.
func (s *Sink) Diagnostics() []*DiagnosticError {
	result := make([]*DiagnosticError, 0, len(s.set))
	for _, d := range s.set {
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Pos.Line != b.Pos.Line {
			return a.Pos.Line < b.Pos.Line
		}
		if a.Pos.Column != b.Pos.Column {
			return a.Pos.Column < b.Pos.Column
		}
		if a.Node != b.Node {
			return a.Node < b.Node
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return s.seq[a] < s.seq[b]
	})
	return result
}
