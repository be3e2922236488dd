package layout

import (
	"fmt"

	"jitkit/internal/types"
)

// LayoutErrorKind enumerates types of layout calculation errors.
type LayoutErrorKind uint8

const (
	// LayoutErrUnknownType indicates a TypeID the interner does not know.
	LayoutErrUnknownType LayoutErrorKind = iota + 1
	// LayoutErrUnsizedField indicates a struct field of void type.
	LayoutErrUnsizedField
	// LayoutErrInvalidWidth indicates a numeric primitive with an unsupported width.
	LayoutErrInvalidWidth
)

// LayoutError represents an error during memory layout calculation.
type LayoutError struct {
	Kind  LayoutErrorKind
	Type  types.TypeID
	Field int // for LayoutErrUnsizedField
}

func (e *LayoutError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case LayoutErrUnknownType:
		return fmt.Sprintf("unknown type (type#%d)", e.Type)
	case LayoutErrUnsizedField:
		return fmt.Sprintf("struct field %d has no size (type#%d)", e.Field, e.Type)
	case LayoutErrInvalidWidth:
		return fmt.Sprintf("invalid numeric width (type#%d)", e.Type)
	default:
		return fmt.Sprintf("layout error kind=%d type#%d", e.Kind, e.Type)
	}
}
