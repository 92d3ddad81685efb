package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/funvibe/resolvekit/internal/session"
	"github.com/funvibe/resolvekit/internal/trace"
)

type traceOptions struct {
	check  bool
	update bool
}

func newTraceCommand(global *globalOptions) *cobra.Command {
	opts := &traceOptions{}
	cmd := &cobra.Command{
		Use:   "trace <file|dir|archive.txtar>...",
		Short: "Print one line per reference site",
		Long: `Print the resolution of every reference site in node order.

Arguments are tree files, directories of tree files, or txtar archives.
Each archive is resolved on its own; with --check its trace member is
compared to the output, with --update it is rewritten.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.check && opts.update {
				return fmt.Errorf("--check and --update are mutually exclusive")
			}
			return runTrace(cmd, global, opts, args)
		},
	}
	cmd.Flags().BoolVar(&opts.check, "check", false, "compare archive traces with their trace member")
	cmd.Flags().BoolVar(&opts.update, "update", false, "rewrite the trace member of archives")
	return cmd
}

func runTrace(cmd *cobra.Command, global *globalOptions, opts *traceOptions, args []string) (err error) {
	ctx := cmd.Context()
	var archives, trees []string
	for _, a := range args {
		if filepath.Ext(a) == ".txtar" {
			archives = append(archives, a)
		} else {
			trees = append(trees, a)
		}
	}
	if (opts.check || opts.update) && len(trees) > 0 {
		return fmt.Errorf("--check and --update apply to archives only")
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

	out := cmd.OutOrStdout()
	render := func(sources []session.Source) ([]byte, error) {
		s, err := e.newSession()
		if err != nil {
			return nil, err
		}
		res, err := s.Run(ctx, sources)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := trace.RenderResult(&buf, res); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	if len(trees) > 0 {
		sources, err := readSources(trees)
		if err != nil {
			return err
		}
		got, err := render(sources)
		if err != nil {
			return err
		}
		if _, err := out.Write(got); err != nil {
			return err
		}
	}

	mismatched := 0
	for _, path := range archives {
		ar, err := trace.LoadArchive(path)
		if err != nil {
			return err
		}
		got, err := render(ar.Sources)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		switch {
		case opts.update:
			if err := os.WriteFile(path, ar.Format(got), 0o644); err != nil {
				return err
			}
			e.logger.Info("archive updated", "path", path)
		case opts.check:
			if diff := trace.Diff(ar.Expected, got); diff != "" {
				mismatched++
				fmt.Fprintf(out, "--- %s\n%s", path, diff)
			}
		default:
			if _, err := out.Write(got); err != nil {
				return err
			}
		}
	}
	if mismatched > 0 {
		fmt.Fprintf(out, "%d of %d archives differ\n", mismatched, len(archives))
		return errDiagnostics
	}
	return nil
}
