package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"jitkit/internal/config"
	"jitkit/internal/irstore"
	"jitkit/internal/jit"
	"jitkit/internal/prof"
	"jitkit/internal/trace"
)

type sessionKey struct{}

// session is the per-invocation state shared by every subcommand.
type session struct {
	cfg     config.Config
	tracer  trace.Tracer
	cleanup func()
}

func sessionOf(cmd *cobra.Command) *session {
	if s, ok := cmd.Context().Value(sessionKey{}).(*session); ok {
		return s
	}
	return &session{cfg: config.Default(), tracer: trace.Nop, cleanup: func() {}}
}

func openSession(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := setupColor(cmd); err != nil {
		return err
	}
	profiles, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	tracer, stopTracing, err := setupTracing(cmd, cfg)
	if err != nil {
		_ = profiles.Stop()
		return err
	}
	cleanup := func() {
		stopTracing()
		if err := profiles.Stop(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "profile: %v\n", err)
		}
	}
	s := &session{cfg: cfg, tracer: tracer, cleanup: cleanup}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = trace.WithTracer(context.WithValue(ctx, sessionKey{}, s), tracer)
	cmd.SetContext(ctx)
	return nil
}

func closeSession(cmd *cobra.Command, _ []string) {
	sessionOf(cmd).cleanup()
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := stringFlag(cmd, "config")
	if err != nil {
		return config.Config{}, err
	}
	if path != "" {
		return config.Load(path)
	}
	return config.Discover(".")
}

func setupColor(cmd *cobra.Command) error {
	mode, err := stringFlag(cmd, "color")
	if err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "auto":
		color.NoColor = !isTerminal(os.Stdout)
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", mode)
	}
	return nil
}

// runtime creates a jit runtime configured from the session. Program output
// goes to the command's stdout.
func (s *session) runtime(cmd *cobra.Command, extra ...jit.Option) (*jit.Runtime, error) {
	tgt, err := s.cfg.TargetLayout()
	if err != nil {
		return nil, err
	}
	opts := []jit.Option{
		jit.WithTarget(tgt),
		jit.WithTracer(s.tracer),
		jit.WithStdout(cmd.OutOrStdout()),
		jit.WithMaxSteps(s.cfg.Engine.MaxSteps),
		jit.WithMaxDepth(s.cfg.Engine.MaxDepth),
		jit.WithoutNatives(s.cfg.Natives.Disabled...),
	}
	return jit.New(append(opts, extra...)...), nil
}

func (s *session) store() (*irstore.Store, error) {
	return irstore.Open(s.cfg.Cache.Dir)
}

func setupProfiling(cmd *cobra.Command) (*prof.Session, error) {
	var opts prof.Options
	var err error
	if opts.CPU, err = stringFlag(cmd, "cpu-profile"); err != nil {
		return nil, err
	}
	if opts.Heap, err = stringFlag(cmd, "mem-profile"); err != nil {
		return nil, err
	}
	if opts.Trace, err = stringFlag(cmd, "runtime-trace"); err != nil {
		return nil, err
	}
	return prof.Start(opts)
}
