package types //nolint:revive

import (
	"fmt"
	"slices"
)

// ABI is the calling convention tag of a signature.
type ABI uint8

const (
	ABICdecl ABI = iota
	ABIVararg
	ABIStdcall
	ABIFastcall
)

func (a ABI) String() string {
	switch a {
	case ABICdecl:
		return "cdecl"
	case ABIVararg:
		return "vararg"
	case ABIStdcall:
		return "stdcall"
	case ABIFastcall:
		return "fastcall"
	default:
		return fmt.Sprintf("ABI(%d)", a)
	}
}

// ParseABI maps a calling convention name to its tag.
func ParseABI(s string) (ABI, bool) {
	switch s {
	case "", "cdecl":
		return ABICdecl, true
	case "vararg":
		return ABIVararg, true
	case "stdcall":
		return ABIStdcall, true
	case "fastcall":
		return ABIFastcall, true
	default:
		return ABICdecl, false
	}
}

// SignatureInfo stores metadata for function signature types.
type SignatureInfo struct {
	ABI    ABI
	Params []TypeID // Parameter types (in order)
	Result TypeID   // Return type
}

// Variadic reports whether trailing call-site arguments extend the signature.
func (s *SignatureInfo) Variadic() bool {
	return s != nil && s.ABI == ABIVararg
}

// RegisterSignature creates or finds a signature type.
func (in *Interner) RegisterSignature(abi ABI, params []TypeID, result TypeID) TypeID {
	if in != nil {
		for id := TypeID(1); int(id) < len(in.types); id++ {
			tt := in.types[id]
			if tt.Kind != KindSignature {
				continue
			}
			if int(tt.Payload) >= len(in.sigs) {
				continue
			}
			info := in.sigs[tt.Payload]
			if info.ABI == abi && info.Result == result && slices.Equal(info.Params, params) {
				return id
			}
		}
	}
	in.sigs = append(in.sigs, SignatureInfo{
		ABI:    abi,
		Params: slices.Clone(params),
		Result: result,
	})
	slot := slotIndex(len(in.sigs)-1, "signature info")
	return in.internRaw(Type{Kind: KindSignature, Payload: slot})
}

// SignatureInfo retrieves signature metadata by TypeID.
func (in *Interner) SignatureInfo(id TypeID) (*SignatureInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindSignature {
		return nil, false
	}
	if int(tt.Payload) >= len(in.sigs) {
		return nil, false
	}
	return &in.sigs[tt.Payload], true
}

// ExtendSignature returns a cdecl signature that keeps the fixed parameters of
// sig and appends extra. It is used to describe one variadic call site.
func (in *Interner) ExtendSignature(sig TypeID, extra []TypeID) (TypeID, bool) {
	info, ok := in.SignatureInfo(sig)
	if !ok {
		return NoTypeID, false
	}
	params := make([]TypeID, 0, len(info.Params)+len(extra))
	params = append(params, info.Params...)
	params = append(params, extra...)
	return in.RegisterSignature(ABICdecl, params, info.Result), true
}
