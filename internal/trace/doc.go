// Package trace provides the structured tracing layer of jitkit.
//
// Every layer that builds or runs code reports through a Tracer: the runtime
// (context creation and destruction), the build lock, function builders and,
// at the most verbose level, individual emitted instructions.
//
// # Usage
//
// Enable tracing via command-line flags:
//
//	jitkit run --trace=- --trace-level=detail gcd 1071 462
//
// # Architecture
//
// The package provides several tracer implementations:
//
//   - Nop: Zero-overhead no-op tracer when disabled
//   - StreamTracer: Immediate write to output (file/stderr)
//   - RingTracer: Circular buffer, dumped when the command finishes
//   - Tee: Sends every event to several tracers (mode both)
//
// # Levels
//
//   - LevelOff: No tracing
//   - LevelError: Only explicit dumps
//   - LevelPhase: Runtime and context boundaries (build start/end)
//   - LevelDetail: Function-level events (create, compile, call)
//   - LevelDebug: Everything including single instructions
//
// # Scopes
//
//   - ScopeRuntime: Runtime-wide operations
//   - ScopeContext: Context lifecycle and the build lock
//   - ScopeFunction: Function creation, compilation and invocation
//   - ScopeInsn: Instruction emission
//
// # Context Propagation
//
//	ctx = trace.WithTracer(ctx, tracer)
//	t := trace.FromContext(ctx)
//
//	span := trace.Begin(t, trace.ScopeRuntime, "run", 0)
//	ctx = trace.WithSpan(ctx, span)
//	// spans begun with trace.ParentFrom(ctx) nest under "run"
//	span.EndErr(err)
package trace
