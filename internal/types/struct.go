package types

import "slices"

// StructField describes a single field inside a struct type.
type StructField struct {
	Name string // empty until names are attached
	Type TypeID
}

// StructInfo stores metadata for a struct type.
type StructInfo struct {
	Fields []StructField
}

// RegisterStruct allocates a fresh struct type with the given field types.
func (in *Interner) RegisterStruct(fields []TypeID) TypeID {
	info := StructInfo{Fields: make([]StructField, len(fields))}
	for i, f := range fields {
		info.Fields[i] = StructField{Type: f}
	}
	in.structs = append(in.structs, info)
	slot := slotIndex(len(in.structs)-1, "struct info")
	return in.internRaw(Type{Kind: KindStruct, Payload: slot})
}

// StructInfo returns metadata for the provided struct TypeID.
func (in *Interner) StructInfo(typeID TypeID) (*StructInfo, bool) {
	info := in.structInfo(typeID)
	if info == nil {
		return nil, false
	}
	return info, true
}

// StructFields returns a copy of struct fields for the TypeID.
func (in *Interner) StructFields(typeID TypeID) []StructField {
	info := in.structInfo(typeID)
	if info == nil || len(info.Fields) == 0 {
		return nil
	}
	return slices.Clone(info.Fields)
}

// SetStructNames attaches field names in order. Extra names are ignored and
// missing names leave the remaining fields unnamed.
func (in *Interner) SetStructNames(typeID TypeID, names []string) bool {
	info := in.structInfo(typeID)
	if info == nil {
		return false
	}
	for i := range info.Fields {
		if i < len(names) {
			info.Fields[i].Name = names[i]
		} else {
			info.Fields[i].Name = ""
		}
	}
	return true
}

// FindStructField resolves a field name to its index.
func (in *Interner) FindStructField(typeID TypeID, name string) (int, bool) {
	info := in.structInfo(typeID)
	if info == nil || name == "" {
		return -1, false
	}
	for i, f := range info.Fields {
		if f.Name == name {
			return i, true
		}
	}
	return -1, false
}

func (in *Interner) structInfo(typeID TypeID) *StructInfo {
	tt, ok := in.Lookup(typeID)
	if !ok || tt.Kind != KindStruct {
		return nil
	}
	if tt.Payload == 0 || int(tt.Payload) >= len(in.structs) {
		return nil
	}
	return &in.structs[tt.Payload]
}
