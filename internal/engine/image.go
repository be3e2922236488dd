package engine

import (
	"fmt"

	"fortio.org/safecast"

	"jitkit/internal/types"
)

// ImageVersion is bumped whenever the Image layout changes.
const ImageVersion = 1

// Image is a self-contained description of a compiled function: its types,
// values and instruction stream. It carries msgpack tags so it can be stored
// by the image cache. Type references are 1-based indices into Types.
type Image struct {
	Version int          `msgpack:"version"`
	Target  string       `msgpack:"target"`
	Name    string       `msgpack:"name"`
	Sig     int          `msgpack:"sig"`
	Types   []ImageType  `msgpack:"types"`
	Values  []ImageValue `msgpack:"values"` // index 0 is unused
	Params  []uint32     `msgpack:"params"`
	Labels  []int        `msgpack:"labels"` // index 0 is unused
	Insns   []ImageInsn  `msgpack:"insns"`
}

// ImageType is one entry of an image type table.
type ImageType struct {
	Kind   uint8    `msgpack:"k"`
	Width  uint8    `msgpack:"w,omitempty"`
	Elem   int      `msgpack:"e,omitempty"`
	Fields []int    `msgpack:"f,omitempty"`
	Names  []string `msgpack:"n,omitempty"`
	ABI    uint8    `msgpack:"abi,omitempty"`
	Params []int    `msgpack:"p,omitempty"`
	Result int      `msgpack:"r,omitempty"`
	Tag    uint8    `msgpack:"t,omitempty"`
	Data   string   `msgpack:"d,omitempty"`
}

// ImageValue is one value handle of an image.
type ImageValue struct {
	Type        int    `msgpack:"t"`
	Kind        uint8  `msgpack:"k"`
	Param       int    `msgpack:"p,omitempty"`
	Const       uint64 `msgpack:"c,omitempty"`
	Addressable bool   `msgpack:"a,omitempty"`
}

// ImageInsn is one instruction of an image.
type ImageInsn struct {
	Op       uint8    `msgpack:"op"`
	Dest     uint32   `msgpack:"d,omitempty"`
	A        uint32   `msgpack:"a,omitempty"`
	B        uint32   `msgpack:"b,omitempty"`
	Args     []uint32 `msgpack:"args,omitempty"`
	Label    uint32   `msgpack:"l,omitempty"`
	Offset   int64    `msgpack:"o,omitempty"`
	Type     int      `msgpack:"t,omitempty"`
	SelfCall bool     `msgpack:"self,omitempty"`
	Native   string   `msgpack:"n,omitempty"`
	Math     uint8    `msgpack:"m,omitempty"`
	Class    uint8    `msgpack:"rc,omitempty"`
	Size     int      `msgpack:"rs,omitempty"`
	Implicit bool     `msgpack:"imp,omitempty"`
}

type imageTypes struct {
	in    *types.Interner
	index map[types.TypeID]int
	out   []ImageType
}

// ref returns the 1-based table index of ty, adding its dependencies first.
func (t *imageTypes) ref(ty types.TypeID) (int, error) {
	if ty == types.NoTypeID {
		return 0, nil
	}
	if i, ok := t.index[ty]; ok {
		return i, nil
	}
	tt, ok := t.in.Lookup(ty)
	if !ok {
		return 0, errorf(CodeUnknownType, "unknown type#%d", ty)
	}
	it := ImageType{Kind: uint8(tt.Kind), Width: uint8(tt.Width)}
	var err error
	switch tt.Kind {
	case types.KindPointer:
		it.Elem, err = t.ref(tt.Elem)
	case types.KindTagged:
		if it.Elem, err = t.ref(tt.Elem); err == nil {
			info, _ := t.in.TaggedInfo(ty)
			it.Tag, it.Data = uint8(info.Tag), info.Data
		}
	case types.KindStruct:
		for _, f := range t.in.StructFields(ty) {
			r, ferr := t.ref(f.Type)
			if ferr != nil {
				return 0, ferr
			}
			it.Fields = append(it.Fields, r)
			it.Names = append(it.Names, f.Name)
		}
	case types.KindSignature:
		info, _ := t.in.SignatureInfo(ty)
		it.ABI = uint8(info.ABI)
		for _, p := range info.Params {
			r, perr := t.ref(p)
			if perr != nil {
				return 0, perr
			}
			it.Params = append(it.Params, r)
		}
		it.Result, err = t.ref(info.Result)
	}
	if err != nil {
		return 0, err
	}
	t.out = append(t.out, it)
	t.index[ty] = len(t.out)
	return len(t.out), nil
}

// ExportImage snapshots a compiled function. Calls to functions other than
// itself cannot be exported because the callee would not travel with it.
func (e *Engine) ExportImage(fn FuncID) (*Image, error) {
	f, err := e.Func(fn)
	if err != nil {
		return nil, err
	}
	if !f.compiled {
		return nil, f.errorf(CodeNotCompiled, "only compiled functions can be exported")
	}
	tt := &imageTypes{in: e.Types, index: make(map[types.TypeID]int)}
	img := &Image{
		Version: ImageVersion,
		Target:  e.opts.Target.Triple,
		Name:    f.Name,
		Values:  make([]ImageValue, len(f.values)),
		Labels:  make([]int, len(f.labels)),
		Insns:   make([]ImageInsn, len(f.insns)),
	}
	if img.Sig, err = tt.ref(f.Sig); err != nil {
		return nil, err
	}
	for i := 1; i < len(f.values); i++ {
		vi := &f.values[i]
		ref, err := tt.ref(vi.Type)
		if err != nil {
			return nil, err
		}
		img.Values[i] = ImageValue{Type: ref, Kind: uint8(vi.Kind), Param: vi.Param, Const: vi.Const, Addressable: vi.Addressable}
	}
	for _, p := range f.params {
		img.Params = append(img.Params, uint32(p))
	}
	for i := range f.labels {
		img.Labels[i] = f.labels[i].pos
	}
	for i := range f.insns {
		in := &f.insns[i]
		if in.Op == OpCall && in.Callee != f.ID {
			return nil, f.errorf(CodeUnsupported, "call to another function at %d cannot be exported", i)
		}
		ref, err := tt.ref(in.Type)
		if err != nil {
			return nil, err
		}
		img.Insns[i] = ImageInsn{
			Op:       uint8(in.Op),
			Dest:     uint32(in.Dest),
			A:        uint32(in.A),
			B:        uint32(in.B),
			Args:     idsToUint32(in.Args),
			Label:    uint32(in.Label),
			Offset:   in.Offset,
			Type:     ref,
			SelfCall: in.Op == OpCall,
			Native:   in.Native,
			Math:     uint8(in.Math),
			Class:    uint8(in.rep.Class),
			Size:     in.rep.Size,
			Implicit: in.implicit,
		}
	}
	img.Types = tt.out
	return img, nil
}

func idsToUint32(ids []ValueID) []uint32 {
	if len(ids) == 0 {
		return nil
	}
	out := make([]uint32, len(ids))
	for i, id := range ids {
		out[i] = uint32(id)
	}
	return out
}

// importTypes recreates an image type table in the engine's interner.
func (e *Engine) importTypes(img *Image) ([]types.TypeID, error) {
	ids := make([]types.TypeID, len(img.Types)+1)
	get := func(ref int) (types.TypeID, error) {
		if ref < 0 || ref >= len(ids) || (ref > 0 && ids[ref] == types.NoTypeID) {
			return types.NoTypeID, errorf(CodeUnknownType, "image type reference %d is invalid", ref)
		}
		return ids[ref], nil
	}
	for i, it := range img.Types {
		kind := types.Kind(it.Kind)
		var id types.TypeID
		switch kind {
		case types.KindVoid, types.KindInt, types.KindUint, types.KindFloat:
			id = e.Types.Intern(types.Type{Kind: kind, Width: types.Width(it.Width)})
		case types.KindPointer:
			elem, err := get(it.Elem)
			if err != nil {
				return nil, err
			}
			id = e.Types.Intern(types.MakePointer(elem))
		case types.KindTagged:
			elem, err := get(it.Elem)
			if err != nil {
				return nil, err
			}
			id = e.Types.RegisterTagged(elem, types.TagKind(it.Tag), it.Data)
		case types.KindStruct:
			fields := make([]types.TypeID, len(it.Fields))
			for j, ref := range it.Fields {
				f, err := get(ref)
				if err != nil {
					return nil, err
				}
				fields[j] = f
			}
			id = e.Types.RegisterStruct(fields)
			if len(it.Names) == len(fields) {
				e.Types.SetStructNames(id, it.Names)
			}
		case types.KindSignature:
			params := make([]types.TypeID, len(it.Params))
			for j, ref := range it.Params {
				p, err := get(ref)
				if err != nil {
					return nil, err
				}
				params[j] = p
			}
			res, err := get(it.Result)
			if err != nil {
				return nil, err
			}
			id = e.Types.RegisterSignature(types.ABI(it.ABI), params, res)
		default:
			return nil, errorf(CodeUnknownType, "image type %d has kind %s", i+1, kind)
		}
		ids[i+1] = id
	}
	return ids, nil
}

// ImportImage recreates an exported function inside ctx, which must be
// building, and compiles it.
func (e *Engine) ImportImage(ctx ContextID, img *Image) (FuncID, error) {
	if img == nil {
		return NoFuncID, errorf(CodeUnsupported, "nil image")
	}
	if img.Version != ImageVersion {
		return NoFuncID, errorf(CodeUnsupported, "image version %d, want %d", img.Version, ImageVersion)
	}
	if img.Target != e.opts.Target.Triple {
		return NoFuncID, errorf(CodeUnsupported, "image built for %s, engine targets %s", img.Target, e.opts.Target.Triple)
	}
	ids, err := e.importTypes(img)
	if err != nil {
		return NoFuncID, err
	}
	if img.Sig <= 0 || img.Sig >= len(ids) {
		return NoFuncID, errorf(CodeUnknownType, "image signature reference %d is invalid", img.Sig)
	}
	fn, err := e.CreateFunction(ctx, ids[img.Sig], img.Name)
	if err != nil {
		return NoFuncID, err
	}
	f, err := e.builder(fn)
	if err != nil {
		return NoFuncID, err
	}
	if len(img.Params) != len(f.params) || len(img.Values) < len(f.values) {
		return NoFuncID, f.errorf(CodeArgCount, "image declares %d params, signature has %d", len(img.Params), len(f.params))
	}
	typeOf := func(ref int) (types.TypeID, error) {
		if ref < 0 || ref >= len(ids) {
			return types.NoTypeID, f.errorf(CodeUnknownType, "image type reference %d is invalid", ref)
		}
		return ids[ref], nil
	}

	for i := len(f.values); i < len(img.Values); i++ {
		iv := img.Values[i]
		ty, err := typeOf(iv.Type)
		if err != nil {
			return NoFuncID, err
		}
		r, err := e.RepOf(ty)
		if err != nil {
			return NoFuncID, withFunc(f, err)
		}
		f.addValue(valueInfo{Type: ty, rep: r, Kind: ValueKind(iv.Kind), Param: iv.Param, Const: iv.Const, Addressable: iv.Addressable})
	}
	for i, p := range img.Params {
		if uint32(f.params[i]) != p {
			return NoFuncID, f.errorf(CodeUnknownValue, "image parameter %d maps to v%d", i, p)
		}
		f.values[p].Addressable = img.Values[p].Addressable
	}
	for i := 1; i < len(img.Labels); i++ {
		f.labels = append(f.labels, labelInfo{pos: img.Labels[i]})
	}

	nvals, err := safecast.Conv[uint32](len(f.values))
	if err != nil {
		return NoFuncID, err
	}
	checkVal := func(v uint32) error {
		if v >= nvals {
			return f.errorf(CodeUnknownValue, "image references unknown value v%d", v)
		}
		return nil
	}
	for pc, ii := range img.Insns {
		for _, v := range append([]uint32{ii.Dest, ii.A, ii.B}, ii.Args...) {
			if err := checkVal(v); err != nil {
				return NoFuncID, err
			}
		}
		if int(ii.Label) >= len(f.labels) {
			return NoFuncID, f.errorf(CodeUnknownLabel, "instruction %d references unknown label L%d", pc, ii.Label)
		}
		ty, err := typeOf(ii.Type)
		if err != nil {
			return NoFuncID, err
		}
		in := Insn{
			Op:       Op(ii.Op),
			Dest:     ValueID(ii.Dest),
			A:        ValueID(ii.A),
			B:        ValueID(ii.B),
			Label:    LabelID(ii.Label),
			Offset:   ii.Offset,
			Type:     ty,
			Native:   ii.Native,
			Math:     MathOp(ii.Math),
			rep:      Rep{Class: Class(ii.Class), Size: ii.Size},
			implicit: ii.Implicit,
		}
		if ii.SelfCall {
			in.Callee = fn
		}
		for _, a := range ii.Args {
			in.Args = append(in.Args, ValueID(a))
		}
		e.emit(f, in)
	}
	if err := e.Compile(fn); err != nil {
		return NoFuncID, err
	}
	return fn, nil
}

// String summarizes an image for listings.
func (img *Image) String() string {
	return fmt.Sprintf("%s (%d insns, %d values, %s)", img.Name, len(img.Insns), len(img.Values)-1, img.Target)
}
