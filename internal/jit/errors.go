package jit

import (
	"errors"
	"fmt"

	"jitkit/internal/engine"
)

// ErrorKind classifies builder failures.
type ErrorKind uint8

const (
	// KindBuildLock: the build lock is held elsewhere, not held, or the
	// context is destroyed.
	KindBuildLock ErrorKind = iota + 1
	// KindType: a type cannot be used for the requested operation.
	KindType
	// KindUnsupportedType: a type tag or field the type system cannot resolve.
	KindUnsupportedType
	// KindInstruction: a malformed instruction request.
	KindInstruction
	// KindArgument: argument count mismatch at a call.
	KindArgument
	// KindCompile: a function cannot be compiled, or is not compiled yet.
	KindCompile
)

func (k ErrorKind) String() string {
	switch k {
	case KindBuildLock:
		return "build lock"
	case KindType:
		return "type"
	case KindUnsupportedType:
		return "unsupported type"
	case KindInstruction:
		return "instruction"
	case KindArgument:
		return "argument"
	case KindCompile:
		return "compile"
	default:
		return fmt.Sprintf("ErrorKind(%d)", k)
	}
}

// Error is returned by every builder operation.
type Error struct {
	Kind ErrorKind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String() + " error"
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches by kind. Unsupported type errors are type errors too.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil {
		return false
	}
	return t.Kind == e.Kind || (t.Kind == KindType && e.Kind == KindUnsupportedType)
}

// Sentinels for errors.Is.
var (
	ErrBuildLock       = &Error{Kind: KindBuildLock}
	ErrType            = &Error{Kind: KindType}
	ErrUnsupportedType = &Error{Kind: KindUnsupportedType}
	ErrInstruction     = &Error{Kind: KindInstruction}
	ErrArgument        = &Error{Kind: KindArgument}
	ErrCompile         = &Error{Kind: KindCompile}
)

func errorf(kind ErrorKind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// fromEngine converts an engine rejection into a builder error. Runtime
// failures of compiled code are wrapped without reclassification.
func fromEngine(op string, err error) error {
	if err == nil {
		return nil
	}
	var je *Error
	if errors.As(err, &je) {
		return err
	}
	var ee *engine.EngineError
	if !errors.As(err, &ee) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if ee.Code.Runtime() {
		return fmt.Errorf("%s: %w", op, err)
	}
	kind := KindInstruction
	switch ee.Code {
	case engine.CodeUnknownContext, engine.CodeBuildState:
		kind = KindBuildLock
	case engine.CodeTypeMismatch:
		kind = KindType
	case engine.CodeUnknownType, engine.CodeUnsupported:
		kind = KindUnsupportedType
	case engine.CodeArgCount:
		kind = KindArgument
	case engine.CodeCompiled, engine.CodeUnplacedLabel:
		kind = KindCompile
	}
	return &Error{Kind: kind, Op: op, Err: err, Msg: kind.String() + " error"}
}
