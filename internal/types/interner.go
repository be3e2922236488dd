package types

import (
	"fmt"

	"fortio.org/safecast"
)

// Builtins stores TypeIDs for common primitive types.
type Builtins struct {
	Invalid TypeID
	Void    TypeID
	Int8    TypeID
	Int16   TypeID
	Int32   TypeID
	Int64   TypeID
	Uint8   TypeID
	Uint16  TypeID
	Uint32  TypeID
	Uint64  TypeID
	Nint    TypeID
	Nuint   TypeID
	Float32 TypeID
	Float64 TypeID
	VoidPtr TypeID
	Bool    TypeID // int8 tagged with TagBool
	Stringz TypeID // *uint8 tagged with TagStringz
}

// Interner provides stable TypeIDs by hashing structural descriptors.
//
// Struct types are never deduplicated: their field names can be attached
// after construction, so two structurally equal structs stay distinct.
type Interner struct {
	types    []Type
	index    map[typeKey]TypeID
	builtins Builtins
	structs  []StructInfo
	sigs     []SignatureInfo
	tagged   []TaggedInfo
}

// NewInterner constructs an interner seeded with built-in primitives.
func NewInterner() *Interner {
	in := &Interner{
		index: make(map[typeKey]TypeID, 64),
	}
	in.structs = append(in.structs, StructInfo{}) // reserve 0 as invalid sentinel
	in.sigs = append(in.sigs, SignatureInfo{})
	in.tagged = append(in.tagged, TaggedInfo{})
	in.builtins.Invalid = in.internRaw(Type{Kind: KindInvalid})
	in.builtins.Void = in.Intern(Type{Kind: KindVoid})
	in.builtins.Int8 = in.Intern(MakeInt(Width8))
	in.builtins.Int16 = in.Intern(MakeInt(Width16))
	in.builtins.Int32 = in.Intern(MakeInt(Width32))
	in.builtins.Int64 = in.Intern(MakeInt(Width64))
	in.builtins.Uint8 = in.Intern(MakeUint(Width8))
	in.builtins.Uint16 = in.Intern(MakeUint(Width16))
	in.builtins.Uint32 = in.Intern(MakeUint(Width32))
	in.builtins.Uint64 = in.Intern(MakeUint(Width64))
	in.builtins.Nint = in.Intern(MakeInt(WidthNative))
	in.builtins.Nuint = in.Intern(MakeUint(WidthNative))
	in.builtins.Float32 = in.Intern(MakeFloat(Width32))
	in.builtins.Float64 = in.Intern(MakeFloat(Width64))
	in.builtins.VoidPtr = in.Intern(MakePointer(in.builtins.Void))
	in.builtins.Bool = in.RegisterTagged(in.builtins.Int8, TagBool, "")
	in.builtins.Stringz = in.RegisterTagged(in.Intern(MakePointer(in.builtins.Uint8)), TagStringz, "")
	return in
}

// Builtins returns TypeIDs for primitive types.
func (in *Interner) Builtins() Builtins {
	return in.builtins
}

// Intern ensures the provided descriptor has a stable TypeID.
func (in *Interner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid {
		return NoTypeID
	}
	key := typeKey(t)
	if id, ok := in.index[key]; ok {
		return id
	}
	return in.internRaw(t)
}

// internRaw adds the descriptor to the storage without consulting the map.
func (in *Interner) internRaw(t Type) TypeID {
	lenTypes, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	id := TypeID(lenTypes)
	in.types = append(in.types, t)
	key := typeKey(t)
	if _, exists := in.index[key]; !exists {
		in.index[key] = id
	}
	return id
}

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	if in == nil || id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	tt, ok := in.Lookup(id)
	if !ok {
		panic("types: invalid TypeID")
	}
	return tt
}

// Len reports how many descriptors the interner holds, the invalid slot included.
func (in *Interner) Len() int {
	if in == nil {
		return 0
	}
	return len(in.types)
}

// Underlying strips every tagged layer and returns the structural base.
func (in *Interner) Underlying(id TypeID) TypeID {
	for range in.types {
		tt, ok := in.Lookup(id)
		if !ok || tt.Kind != KindTagged {
			return id
		}
		id = tt.Elem
	}
	return id
}

// PointerTarget returns the pointee of a pointer type, looking through tags.
func (in *Interner) PointerTarget(id TypeID) (TypeID, bool) {
	tt, ok := in.Lookup(in.Underlying(id))
	if !ok || tt.Kind != KindPointer {
		return NoTypeID, false
	}
	return tt.Elem, true
}

type typeKey struct {
	Kind    Kind
	Elem    TypeID
	Width   Width
	Payload uint32
}

func slotIndex(n int, what string) uint32 {
	slot, err := safecast.Conv[uint32](n)
	if err != nil {
		panic(fmt.Errorf("%s overflow: %w", what, err))
	}
	return slot
}
