package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"jitkit/internal/config"
	"jitkit/internal/trace"
)

// setupTracing merges the trace flags over the [trace] section and creates
// the tracer. It returns a cleanup function that flushes and closes it.
func setupTracing(cmd *cobra.Command, cfg config.Config) (trace.Tracer, func(), error) {
	flags := cmd.Root().PersistentFlags()

	output, err := flags.GetString("trace")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get trace flag: %w", err)
	}
	if output != "" {
		cfg.Trace.Output = output
	}
	levelStr, err := flags.GetString("trace-level")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get trace-level flag: %w", err)
	}
	if levelStr != "" {
		cfg.Trace.Level = levelStr
	} else if output != "" && (cfg.Trace.Level == "" || cfg.Trace.Level == "off") {
		// --trace alone turns tracing on
		cfg.Trace.Level = "phase"
	}
	modeStr, err := flags.GetString("trace-mode")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get trace-mode flag: %w", err)
	}
	if modeStr != "" {
		cfg.Trace.Mode = modeStr
	}
	ringSize, err := flags.GetInt("trace-ring-size")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get trace-ring-size flag: %w", err)
	}
	if ringSize > 0 {
		cfg.Trace.RingSize = ringSize
	}
	heartbeatInterval, err := flags.GetDuration("trace-heartbeat")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get trace-heartbeat flag: %w", err)
	}

	tc, err := cfg.TraceConfig()
	if err != nil {
		return nil, nil, err
	}
	if tc.Level == trace.LevelOff {
		return trace.Nop, func() {}, nil
	}
	tc.Heartbeat = heartbeatInterval
	if tc.OutputPath == "" || tc.OutputPath == "-" {
		// hide Close so the tracer never closes stderr
		tc.Output = struct{ io.Writer }{cmd.ErrOrStderr()}
	}

	tracer, err := trace.New(tc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	heartbeat := trace.StartHeartbeat(cmd.Context(), tracer, heartbeatInterval)

	cleanup := func() {
		heartbeat.Stop()
		if tc.Mode == trace.ModeRing {
			if err := dumpRing(cmd, tracer, tc); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "trace: ring dump error: %v\n", err)
			}
		}
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
	}
	return tracer, cleanup, nil
}

// dumpRing writes the ring buffer where a stream tracer would have written.
func dumpRing(cmd *cobra.Command, tracer trace.Tracer, tc trace.Config) error {
	ring := trace.RingOf(tracer)
	if ring == nil {
		return nil
	}
	w := cmd.ErrOrStderr()
	if tc.OutputPath != "" && tc.OutputPath != "-" {
		f, err := os.Create(tc.OutputPath)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if n := ring.Dropped(); n > 0 {
		fmt.Fprintf(w, "# %d older events dropped\n", n)
	}
	return ring.Dump(w, tc.Format)
}
