// Package trace renders resolution results as deterministic text, one line
// per site in node order. Traces are what golden tests compare and what the
// trace command prints.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/funvibe/resolvekit/internal/resolve"
	"github.com/funvibe/resolvekit/internal/session"
	"github.com/funvibe/resolvekit/internal/symbols"
)

// RenderResult writes the trace of every unit of res, in path order.
func RenderResult(w io.Writer, res *session.Result) error {
	bw := bufio.NewWriter(w)
	for _, u := range res.Units {
		writeUnit(bw, u)
	}
	return bw.Flush()
}

// RenderUnit writes the trace of one unit.
func RenderUnit(w io.Writer, u *session.UnitResult) error {
	bw := bufio.NewWriter(w)
	writeUnit(bw, u)
	return bw.Flush()
}

func writeUnit(w *bufio.Writer, u *session.UnitResult) {
	if u.Abandoned {
		fmt.Fprintf(w, "unit %s abandoned\n", u.Path)
		return
	}
	fmt.Fprintf(w, "unit %s\n", u.Path)
	if u.Map != nil {
		for _, r := range u.Map.Sorted() {
			fmt.Fprintf(w, "  %s\n", Site(r))
		}
	}
	for _, d := range u.Diagnostics {
		fmt.Fprintf(w, "  ! %s\n", d)
	}
}

// Site renders one resolution:
//
//	2:16 import b.* resolved package b (star)
//	7:11 ref f resolved fun a.f(Int) (import)
//	8:11 ref h failed R003
func Site(r *resolve.Resolution) string {
	var sb strings.Builder
	name := r.Name
	if name == "" {
		name = "-"
	}
	fmt.Fprintf(&sb, "%s %s %s %s", r.Site.Position(), r.Role, name, r.Status)

	switch r.Status {
	case resolve.StatusResolved:
		sb.WriteByte(' ')
		pkg := r.Symbol == nil && r.Role == resolve.RoleImport
		if pkg {
			sb.WriteString("package " + strings.TrimSuffix(r.Name, ".*"))
		} else {
			sb.WriteString(describe(r.Symbol))
		}
		var notes []string
		if pkg || r.Symbol != nil && r.Symbol.Kind != symbols.KindLabel {
			notes = append(notes, r.Tier.String())
		}
		if recv := r.Receiver; recv != nil {
			switch recv.Kind {
			case resolve.ReceiverImplicit:
				notes = append(notes, fmt.Sprintf("this d=%d", recv.Slot.Distance))
			case resolve.ReceiverExplicit:
				notes = append(notes, "explicit "+recv.Type.String())
			}
		}
		if r.Invoke != nil {
			notes = append(notes, "invoke "+r.Invoke.Name)
		}
		if len(notes) > 0 {
			fmt.Fprintf(&sb, " (%s)", strings.Join(notes, ", "))
		}
	case resolve.StatusFailed:
		sb.WriteByte(' ')
		sb.WriteString(string(r.Code))
		if r.Symbol != nil && r.Symbol.Failure != nil && len(r.Symbol.Failure.Candidates) > 0 {
			cands := make([]string, len(r.Symbol.Failure.Candidates))
			for i, c := range r.Symbol.Failure.Candidates {
				cands[i] = describe(c)
			}
			fmt.Fprintf(&sb, " {%s}", strings.Join(cands, "; "))
		}
	}
	return sb.String()
}

func describe(sym *symbols.Symbol) string {
	if sym == nil {
		return "<nil>"
	}
	return sym.Describe()
}
