package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"jitkit/internal/version"
)

// newRootCmd assembles the command tree. Tests build a fresh tree per case.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "jitkit",
		Short: "Typed IR builder over an interpreting code generator",
		Long: `jitkit builds functions through a typed IR builder, compiles them with the
engine and runs them. The demos command lists the bundled example functions.`,
		Version:           version.Version,
		SilenceUsage:      true,
		PersistentPreRunE: openSession,
		PersistentPostRun: closeSession,
	}

	// Глобальные флаги
	pf := root.PersistentFlags()
	pf.String("config", "", "path to jitkit.toml (default: nearest one above the working directory)")
	pf.String("color", "auto", "colorize output (auto|on|off)")
	pf.String("trace", "", "trace output file (- for stderr)")
	pf.String("trace-level", "", "trace level (off|error|phase|detail|debug)")
	pf.String("trace-mode", "", "trace storage mode (stream|ring|both)")
	pf.Int("trace-ring-size", 0, "ring buffer capacity for ring mode")
	pf.Duration("trace-heartbeat", 0, "emit a heartbeat event at this interval")
	pf.String("cpu-profile", "", "write a CPU profile to this file")
	pf.String("mem-profile", "", "write a heap profile to this file on exit")
	pf.String("runtime-trace", "", "write a Go runtime trace to this file")

	root.AddCommand(
		newVersionCmd(),
		newDemosCmd(),
		newRunCmd(),
		newDumpCmd(),
		newNativesCmd(),
		newCacheCmd(),
	)
	return root
}

// main executes the root command; a failing command exits with status 1.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func stringFlag(cmd *cobra.Command, name string) (string, error) {
	v, err := cmd.Root().PersistentFlags().GetString(name)
	if err != nil {
		return "", fmt.Errorf("failed to get %s flag: %w", name, err)
	}
	return v, nil
}
