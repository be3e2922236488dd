package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"jitkit/internal/jit"
	"jitkit/internal/llvmir"
)

var (
	dumpHeaderColor = color.New(color.Bold)
	dumpLabelColor  = color.New(color.FgCyan)
	dumpBranchColor = color.New(color.FgYellow)

	labelLine  = regexp.MustCompile(`^\s*L\d+:$`)
	branchLine = regexp.MustCompile(`\b(branch|branch_if|branch_if_not|return)\b`)
)

func newDumpCmd() *cobra.Command {
	var asLLVM bool
	cmd := &cobra.Command{
		Use:   "dump <demo>",
		Short: "Print the compiled IR of a demo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := lookupDemo(args[0])
			if err != nil {
				return err
			}
			r, err := sessionOf(cmd).runtime(cmd)
			if err != nil {
				return err
			}
			fn, err := d.build(r)
			if err != nil {
				return err
			}
			if asLLVM {
				return dumpLLVM(cmd.OutOrStdout(), r, fn)
			}
			var buf bytes.Buffer
			if err := fn.Dump(&buf); err != nil {
				return err
			}
			return highlight(cmd.OutOrStdout(), &buf)
		},
	}
	cmd.Flags().BoolVar(&asLLVM, "llvm", false, "print LLVM IR instead of the engine listing")
	return cmd
}

func dumpLLVM(w io.Writer, r *jit.Runtime, fn *jit.Function) error {
	m, err := llvmir.ExportWith(r.Engine(), fn.ID(), llvmir.Options{
		Name: fn.Name(),
		Variadic: func(name string) bool {
			n, ok := r.Natives().Lookup(name)
			return ok && n.Variadic
		},
	})
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, m.String())
	return err
}

// highlight colors headers, labels and control transfers of a listing.
func highlight(w io.Writer, listing io.Reader) error {
	sc := bufio.NewScanner(listing)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "fn "):
			line = dumpHeaderColor.Sprint(line)
		case labelLine.MatchString(line):
			line = dumpLabelColor.Sprint(line)
		case branchLine.MatchString(line):
			line = branchLine.ReplaceAllStringFunc(line, func(s string) string { return dumpBranchColor.Sprint(s) })
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return sc.Err()
}
