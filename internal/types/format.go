package types

import (
	"fmt"
	"strings"
)

// String renders a TypeID in the notation used by dumps and error messages.
func (in *Interner) String(id TypeID) string {
	return in.format(id, 0)
}

func (in *Interner) format(id TypeID, depth int) string {
	if depth > 16 {
		return "..."
	}
	tt, ok := in.Lookup(id)
	if !ok {
		return fmt.Sprintf("type#%d", id)
	}
	switch tt.Kind {
	case KindVoid:
		return "void"
	case KindInt, KindUint, KindFloat:
		return primitiveName(tt)
	case KindPointer:
		return "*" + in.format(tt.Elem, depth+1)
	case KindStruct:
		info := in.structInfo(id)
		if info == nil {
			return "struct{}"
		}
		parts := make([]string, 0, len(info.Fields))
		for _, f := range info.Fields {
			if f.Name != "" {
				parts = append(parts, f.Name+" "+in.format(f.Type, depth+1))
			} else {
				parts = append(parts, in.format(f.Type, depth+1))
			}
		}
		return "struct{" + strings.Join(parts, ", ") + "}"
	case KindSignature:
		info, ok := in.SignatureInfo(id)
		if !ok {
			return "fn()"
		}
		parts := make([]string, 0, len(info.Params)+1)
		for _, p := range info.Params {
			parts = append(parts, in.format(p, depth+1))
		}
		if info.ABI == ABIVararg {
			parts = append(parts, "...")
		}
		return "fn(" + strings.Join(parts, ", ") + ") -> " + in.format(info.Result, depth+1)
	case KindTagged:
		info, ok := in.TaggedInfo(id)
		if !ok {
			return in.format(tt.Elem, depth+1)
		}
		switch info.Tag {
		case TagBool:
			return "bool"
		case TagStringz:
			return "stringz"
		case TagName, TagStructName:
			if info.Data != "" {
				return info.Data
			}
		}
		return in.format(tt.Elem, depth+1)
	default:
		return tt.Kind.String()
	}
}

func primitiveName(tt Type) string {
	switch tt.Kind {
	case KindInt:
		if tt.Width == WidthNative {
			return "intn"
		}
		return fmt.Sprintf("int%d", tt.Width)
	case KindUint:
		if tt.Width == WidthNative {
			return "uintn"
		}
		return fmt.Sprintf("uint%d", tt.Width)
	case KindFloat:
		return fmt.Sprintf("float%d", tt.Width)
	default:
		return tt.Kind.String()
	}
}
