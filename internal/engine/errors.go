package engine

import "fmt"

// Code identifies the class of an engine failure.
type Code int

// Stable error codes - do not change values.
const (
	CodeUnknownContext  Code = 1001 // ENG1001: context handle is unknown or destroyed
	CodeBuildState      Code = 1002 // ENG1002: build cursor held elsewhere or not held
	CodeUnknownFunction Code = 1003 // ENG1003: function handle is unknown
	CodeCompiled        Code = 1004 // ENG1004: function is already compiled
	CodeUnknownValue    Code = 1005 // ENG1005: value handle is unknown
	CodeTypeMismatch    Code = 1006 // ENG1006: operand types cannot be combined
	CodeUnknownLabel    Code = 1007 // ENG1007: label handle is unknown
	CodeLabelPlaced     Code = 1008 // ENG1008: label placed twice
	CodeUnplacedLabel   Code = 1009 // ENG1009: branch to a label that is never placed
	CodeArgCount        Code = 1010 // ENG1010: argument count does not match signature
	CodeUnsupported     Code = 1011 // ENG1011: construct not supported by the engine
	CodeUnknownType     Code = 1012 // ENG1012: type handle is unknown
	CodeDivideByZero    Code = 2001 // ENG2001: integer division by zero
	CodeBadAccess       Code = 2002 // ENG2002: invalid memory access
	CodeStepLimit       Code = 2003 // ENG2003: step budget exhausted
	CodeStackOverflow   Code = 2004 // ENG2004: call depth exceeded
	CodeNotCompiled     Code = 2005 // ENG2005: call of an uncompiled function
	CodeUnknownNative   Code = 2006 // ENG2006: native function is not registered
	CodeNative          Code = 2007 // ENG2007: native function failed
)

// String returns the code as "ENG1001" format.
func (c Code) String() string {
	return fmt.Sprintf("ENG%d", int(c))
}

// Runtime reports whether the code is raised while executing compiled code.
func (c Code) Runtime() bool {
	return c >= 2000
}

// EngineError represents a failure of the code generation engine.
type EngineError struct {
	Code    Code
	Message string
	Func    string // function being built or executed, if any
	Err     error
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Func != "" {
		return fmt.Sprintf("%s in %s: %s", e.Code, e.Func, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *EngineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches another *EngineError by code.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	return ok && e != nil && t.Code == e.Code
}

func errorf(code Code, format string, args ...any) *EngineError {
	return &EngineError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (f *Func) errorf(code Code, format string, args ...any) *EngineError {
	err := errorf(code, format, args...)
	if f != nil {
		err.Func = f.Name
	}
	return err
}
