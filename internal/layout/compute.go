package layout

import (
	"jitkit/internal/types"
)

func (e *LayoutEngine) computeLayout(id types.TypeID) (TypeLayout, *LayoutError) {
	typesIn := e.Types
	if typesIn == nil {
		return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrUnknownType, Type: id}
	}
	tt, ok := typesIn.Lookup(id)
	if !ok {
		return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrUnknownType, Type: id}
	}

	switch tt.Kind {
	case types.KindVoid:
		return TypeLayout{Size: 0, Align: 1}, nil

	case types.KindInt, types.KindUint:
		if tt.Width == types.WidthNative {
			return e.ptrLayout(), nil
		}
		return scalarLayoutBytes(int(tt.Width)/8, id)

	case types.KindFloat:
		if tt.Width != types.Width32 && tt.Width != types.Width64 {
			return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrInvalidWidth, Type: id}
		}
		return scalarLayoutBytes(int(tt.Width)/8, id)

	case types.KindPointer, types.KindSignature:
		return e.ptrLayout(), nil

	case types.KindTagged:
		// Tags never change the underlying storage.
		return e.layoutOf(tt.Elem)

	case types.KindStruct:
		return e.structLayout(id)

	default:
		return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrUnknownType, Type: id}
	}
}

func (e *LayoutEngine) ptrLayout() TypeLayout {
	ptrSize := e.Target.PtrSize
	ptrAlign := e.Target.PtrAlign
	if ptrSize <= 0 {
		ptrSize = 8
	}
	if ptrAlign <= 0 {
		ptrAlign = ptrSize
	}
	return TypeLayout{Size: ptrSize, Align: ptrAlign}
}

func scalarLayoutBytes(size int, id types.TypeID) (TypeLayout, *LayoutError) {
	switch size {
	case 1, 2, 4, 8:
		return TypeLayout{Size: size, Align: size}, nil
	default:
		return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrInvalidWidth, Type: id}
	}
}

func roundUp(n, align int) int {
	if align <= 1 {
		return n
	}
	r := n % align
	if r == 0 {
		return n
	}
	return n + (align - r)
}

func (e *LayoutEngine) structLayout(id types.TypeID) (TypeLayout, *LayoutError) {
	info, ok := e.Types.StructInfo(id)
	if !ok || info == nil || len(info.Fields) == 0 {
		return TypeLayout{Size: 0, Align: 1}, nil
	}
	fields := info.Fields
	offsets := make([]int, len(fields))
	aligns := make([]int, len(fields))

	size := 0
	align := 1
	for i := range fields {
		fl, err := e.layoutOf(fields[i].Type)
		if err != nil {
			return TypeLayout{Size: 0, Align: 1}, err
		}
		if fl.Size == 0 {
			return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrUnsizedField, Type: id, Field: i}
		}
		fAlign := max(fl.Align, 1)
		size = roundUp(size, fAlign)
		offsets[i] = size
		aligns[i] = fAlign
		size += fl.Size
		align = max(align, fAlign)
	}
	size = roundUp(size, align)
	return TypeLayout{
		Size:         size,
		Align:        align,
		FieldOffsets: offsets,
		FieldAligns:  aligns,
	}, nil
}
