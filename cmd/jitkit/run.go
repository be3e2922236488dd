package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"jitkit/internal/jit"
	"jitkit/internal/observ"
	"jitkit/internal/trace"
)

var resultColor = color.New(color.FgGreen, color.Bold)

type runOptions struct {
	parallel int
	seed     uint64
	timing   bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run <demo> [args...]",
		Short: "Build, compile and call a demo",
		Long: `Build, compile and call a demo. Without arguments the demo's example
arguments are used. With --parallel every argument is one comma separated
argument set and the sets are evaluated concurrently:

  jitkit run gcd 1071 462
  jitkit run gcd --parallel 4 12,18 1071,462 30,45`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd, args[0], args[1:], opts)
		},
	}
	cmd.Flags().IntVar(&opts.parallel, "parallel", 0, "evaluate comma separated argument sets with this many workers")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 1, "seed of the rand native")
	cmd.Flags().BoolVar(&opts.timing, "timings", false, "report build and call durations")
	return cmd
}

func runDemo(cmd *cobra.Command, name string, words []string, opts runOptions) error {
	if opts.parallel < 0 {
		return fmt.Errorf("--parallel must not be negative")
	}
	d, err := lookupDemo(name)
	if err != nil {
		return err
	}
	r, err := sessionOf(cmd).runtime(cmd, jit.WithSeed(opts.seed))
	if err != nil {
		return err
	}
	span := trace.Begin(trace.FromContext(cmd.Context()), trace.ScopeRuntime, "run", 0).WithExtra("demo", name)
	ctx := trace.WithSpan(cmd.Context(), span)
	err = runWith(ctx, cmd, r, d, words, opts)
	span.EndErr(err)
	return err
}

func runWith(ctx context.Context, cmd *cobra.Command, r *jit.Runtime, d *demo, words []string, opts runOptions) error {
	name := d.name

	timer := observ.NewTimer()
	endBuild := timer.Start("build")
	fn, err := d.build(r)
	if err != nil {
		return err
	}
	endBuild(fn.Signature().String())
	if len(words) == 0 {
		words = d.example
		if opts.parallel > 0 {
			words = []string{strings.Join(d.example, ",")}
		}
	}

	out := cmd.OutOrStdout()
	endCall := timer.Start("call")
	if opts.parallel > 0 {
		sets, err := parseSets(fn, words)
		if err != nil {
			return err
		}
		results, err := fn.CallMany(ctx, sets, opts.parallel)
		if err != nil {
			return err
		}
		for i, res := range results {
			fmt.Fprintf(out, "%s(%s) = %s\n", name, words[i], resultColor.Sprint(formatResult(res)))
		}
	} else {
		args, err := parseArgs(fn, words)
		if err != nil {
			return err
		}
		res, err := fn.Call(args...)
		if err != nil {
			return err
		}
		if res != nil {
			fmt.Fprintf(out, "%s(%s) = %s\n", name, strings.Join(words, ", "), resultColor.Sprint(formatResult(res)))
		}
	}
	if opts.timing {
		sets := 1
		if opts.parallel > 0 {
			sets = len(words)
		}
		endCall(fmt.Sprintf("%d argument set(s)", sets))
		fmt.Fprint(cmd.ErrOrStderr(), timer.Summary())
	}
	return nil
}
