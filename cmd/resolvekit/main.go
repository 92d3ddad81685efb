// Command resolvekit resolves the names of syntax tree files and reports
// what every reference site binds to.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is the release version.
// Can be set at build time using: -ldflags "-X main.Version=v1.2.3"
var Version = "dev"

// errDiagnostics signals that the run reported errors; they were already
// printed, so main only sets the exit code.
var errDiagnostics = errors.New("resolution reported errors")

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if !errors.Is(err, errDiagnostics) {
			fmt.Fprintln(os.Stderr, "resolvekit:", err)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "resolvekit",
		Short:         "Static name and overload resolution for syntax tree files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to resolvekit.yaml (searched upwards from the working directory by default)")
	flags.IntVar(&opts.workers, "workers", 0, "number of units processed concurrently (0 uses the config value)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")
	flags.BoolVar(&opts.spans, "spans", false, "write OpenTelemetry spans to stderr")
	flags.StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus metrics to this file after the run")

	root.AddCommand(
		newResolveCommand(opts),
		newTraceCommand(opts),
		newVersionCommand(),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "resolvekit %s\n", Version)
		},
	}
}
