package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/funvibe/resolvekit/internal/report"
	"github.com/funvibe/resolvekit/internal/resolve"
	"github.com/funvibe/resolvekit/internal/session"
	"github.com/funvibe/resolvekit/internal/store"
)

type resolveOptions struct {
	json   bool
	dbPath string
}

func newResolveCommand(global *globalOptions) *cobra.Command {
	opts := &resolveOptions{}
	cmd := &cobra.Command{
		Use:   "resolve <file|dir>...",
		Short: "Resolve tree files and report diagnostics",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, global, opts, args)
		},
	}
	cmd.Flags().BoolVar(&opts.json, "json", false, "print resolutions and diagnostics as JSON")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "save the result to this SQLite database")
	return cmd
}

func runResolve(cmd *cobra.Command, global *globalOptions, opts *resolveOptions, args []string) (err error) {
	ctx := cmd.Context()
	sources, err := readSources(args)
	if err != nil {
		return err
	}
	e, err := global.setup(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := e.close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()

	s, err := e.newSession()
	if err != nil {
		return err
	}
	res, err := s.Run(ctx, sources)
	if err != nil {
		return err
	}

	if opts.dbPath != "" {
		st, err := store.Open(ctx, opts.dbPath)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.SaveResult(ctx, res); err != nil {
			return err
		}
		e.logger.Info("result saved", "db", opts.dbPath, "session", res.SessionID)
	}

	out := cmd.OutOrStdout()
	if opts.json {
		if err := writeJSON(out, res); err != nil {
			return err
		}
	} else {
		printer := report.NewPrinter(out, isTerminal(out))
		for _, src := range sources {
			printer.AddSource(src.Path, src.Data)
		}
		printer.Print(res.Diagnostics())
		fmt.Fprintln(out, summarize(res))
	}

	if res.HasErrors() {
		return errDiagnostics
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && report.IsTerminal(f)
}

// summarize reports site counts, e.g. "2 units, 5 sites: 4 resolved, 1 failed".
func summarize(res *session.Result) string {
	units, sites := 0, 0
	counts := make(map[resolve.Status]int)
	for _, u := range res.Units {
		units++
		if u.Map == nil {
			continue
		}
		for _, r := range u.Map.Sorted() {
			sites++
			counts[r.Status]++
		}
	}
	s := fmt.Sprintf("%d units, %d sites: %d resolved, %d failed", units, sites,
		counts[resolve.StatusResolved], counts[resolve.StatusFailed])
	if n := counts[resolve.StatusSuppressed]; n > 0 {
		s += fmt.Sprintf(", %d suppressed", n)
	}
	return s
}

type jsonResult struct {
	Session    string     `json:"session"`
	Generation int        `json:"generation"`
	Units      []jsonUnit `json:"units"`
}

type jsonUnit struct {
	Path        string           `json:"path"`
	Abandoned   bool             `json:"abandoned,omitempty"`
	Sites       []jsonSite       `json:"sites"`
	Diagnostics []jsonDiagnostic `json:"diagnostics"`
}

type jsonSite struct {
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Node   int    `json:"node"`
	Role   string `json:"role"`
	Name   string `json:"name"`
	Status string `json:"status"`
	Symbol string `json:"symbol,omitempty"`
	Tier   string `json:"tier,omitempty"`
	Code   string `json:"code,omitempty"`
}

type jsonDiagnostic struct {
	Line       int      `json:"line"`
	Column     int      `json:"column"`
	Code       string   `json:"code"`
	Kind       string   `json:"kind"`
	Warning    bool     `json:"warning,omitempty"`
	Name       string   `json:"name,omitempty"`
	Candidates []string `json:"candidates,omitempty"`
	Message    string   `json:"message"`
}

func writeJSON(w io.Writer, res *session.Result) error {
	out := jsonResult{Session: res.SessionID, Units: []jsonUnit{}}
	if res.Snapshot != nil {
		out.Generation = res.Snapshot.Generation
	}
	for _, u := range res.Units {
		ju := jsonUnit{Path: u.Path, Abandoned: u.Abandoned, Sites: []jsonSite{}, Diagnostics: []jsonDiagnostic{}}
		if u.Map != nil {
			for _, r := range u.Map.Sorted() {
				pos := r.Site.Position()
				site := jsonSite{
					Line:   pos.Line,
					Column: pos.Column,
					Node:   int(r.Site.NodeID()),
					Role:   r.Role.String(),
					Name:   r.Name,
					Status: r.Status.String(),
					Code:   string(r.Code),
				}
				if r.Symbol != nil {
					site.Symbol = r.Symbol.Describe()
				}
				if r.Status == resolve.StatusResolved {
					site.Tier = r.Tier.String()
				}
				ju.Sites = append(ju.Sites, site)
			}
		}
		for _, d := range u.Diagnostics {
			ju.Diagnostics = append(ju.Diagnostics, jsonDiagnostic{
				Line:       d.Pos.Line,
				Column:     d.Pos.Column,
				Code:       string(d.Code),
				Kind:       d.Code.Kind(),
				Warning:    d.Code.IsWarning(),
				Name:       d.Name,
				Candidates: d.Candidates,
				Message:    d.Message,
			})
		}
		out.Units = append(out.Units, ju)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
