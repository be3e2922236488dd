package types

import "fmt"

// TypeID uniquely identifies a type inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// Kind enumerates all supported kinds of types.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindVoid
	KindInt
	KindUint
	KindFloat
	KindPointer
	KindStruct
	KindSignature
	KindTagged
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindVoid:
		return "void"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindPointer:
		return "pointer"
	case KindStruct:
		return "struct"
	case KindSignature:
		return "signature"
	case KindTagged:
		return "tagged"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Width captures the precision of integers/floats.
type Width uint8

const (
	// WidthNative is the pointer-sized integer width of the target (intn/uintn).
	WidthNative Width = 0
	Width8      Width = 8
	Width16     Width = 16
	Width32     Width = 32
	Width64     Width = 64
)

// Type is a compact descriptor for any supported type.
type Type struct {
	Kind    Kind
	Elem    TypeID // pointer target, tagged base
	Width   Width  // for numeric primitives
	Payload uint32 // struct/signature/tagged slot
}

// Descriptor helpers ---------------------------------------------------------

// MakeInt describes a signed integer of the given width (WidthNative for "intn").
func MakeInt(width Width) Type {
	return Type{Kind: KindInt, Width: width}
}

// MakeUint describes an unsigned integer type.
func MakeUint(width Width) Type {
	return Type{Kind: KindUint, Width: width}
}

// MakeFloat describes a floating-point type.
func MakeFloat(width Width) Type {
	return Type{Kind: KindFloat, Width: width}
}

// MakePointer describes a raw pointer. Void pointers point at the Void builtin.
func MakePointer(elem TypeID) Type {
	return Type{Kind: KindPointer, Elem: elem}
}

// IsInteger reports whether the descriptor is a signed or unsigned integer.
func (t Type) IsInteger() bool {
	return t.Kind == KindInt || t.Kind == KindUint
}

// IsScalar reports whether values of the type fit a single register.
func (t Type) IsScalar() bool {
	switch t.Kind {
	case KindInt, KindUint, KindFloat, KindPointer, KindSignature:
		return true
	default:
		return false
	}
}
