package types

import "fmt"

// TagKind names the auxiliary meaning attached to a tagged type.
type TagKind uint8

const (
	TagNone TagKind = iota
	// TagName attaches a free-form name to any base type.
	TagName
	// TagStructName names a struct type.
	TagStructName
	// TagBool marks an int8 that holds a normalized 0/1 boolean.
	TagBool
	// TagStringz marks a *uint8 that points at a NUL-terminated string.
	TagStringz
)

func (k TagKind) String() string {
	switch k {
	case TagNone:
		return "none"
	case TagName:
		return "name"
	case TagStructName:
		return "struct_name"
	case TagBool:
		return "bool"
	case TagStringz:
		return "stringz"
	default:
		return fmt.Sprintf("TagKind(%d)", k)
	}
}

// TaggedInfo stores the decoration of a tagged type.
type TaggedInfo struct {
	Tag  TagKind
	Data string
}

// RegisterTagged creates or finds a tagged decoration of base.
func (in *Interner) RegisterTagged(base TypeID, tag TagKind, data string) TypeID {
	if in != nil {
		for id := TypeID(1); int(id) < len(in.types); id++ {
			tt := in.types[id]
			if tt.Kind != KindTagged || tt.Elem != base {
				continue
			}
			if int(tt.Payload) >= len(in.tagged) {
				continue
			}
			info := in.tagged[tt.Payload]
			if info.Tag == tag && info.Data == data {
				return id
			}
		}
	}
	in.tagged = append(in.tagged, TaggedInfo{Tag: tag, Data: data})
	slot := slotIndex(len(in.tagged)-1, "tagged info")
	return in.internRaw(Type{Kind: KindTagged, Elem: base, Payload: slot})
}

// TaggedInfo retrieves the decoration of a tagged type.
func (in *Interner) TaggedInfo(id TypeID) (TaggedInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindTagged {
		return TaggedInfo{}, false
	}
	if tt.Payload == 0 || int(tt.Payload) >= len(in.tagged) {
		return TaggedInfo{}, false
	}
	return in.tagged[tt.Payload], true
}

// IsBool reports whether any tag layer of id is the bool tag, so a named
// bool still counts.
func (in *Interner) IsBool(id TypeID) bool {
	for range in.types {
		info, ok := in.TaggedInfo(id)
		if !ok {
			return false
		}
		if info.Tag == TagBool {
			return true
		}
		tt, _ := in.Lookup(id)
		id = tt.Elem
	}
	return false
}
