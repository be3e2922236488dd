package types

import "testing"

func TestInternerBuiltins(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	if b.Void == NoTypeID || b.Bool == NoTypeID || b.Stringz == NoTypeID {
		t.Fatalf("builtins not initialized")
	}
	void, _ := in.Lookup(b.Void)
	if void.Kind != KindVoid {
		t.Fatalf("expected void kind, got %v", void.Kind)
	}
	if !in.IsBool(b.Bool) {
		t.Fatalf("bool builtin must carry the bool tag")
	}
	if in.Underlying(b.Bool) != b.Int8 {
		t.Fatalf("bool must be stored as int8, got %s", in.String(in.Underlying(b.Bool)))
	}
	target, ok := in.PointerTarget(b.Stringz)
	if !ok || target != b.Uint8 {
		t.Fatalf("stringz must point at uint8")
	}
}

func TestInternerDeduplicatesDescriptors(t *testing.T) {
	in := NewInterner()
	elem := in.Builtins().Int8
	p1 := in.Intern(MakePointer(elem))
	p2 := in.Intern(MakePointer(elem))
	if p1 != p2 {
		t.Fatalf("pointer types should be deduplicated")
	}
	pp := in.Intern(MakePointer(p1))
	if pp == p1 {
		t.Fatalf("pointer to pointer must differ from pointer")
	}
	if got := in.String(pp); got != "**int8" {
		t.Fatalf("unexpected rendering %q", got)
	}
}

func TestSignatureIdentity(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	s1 := in.RegisterSignature(ABICdecl, []TypeID{b.Int32, b.Int8}, b.Void)
	s2 := in.RegisterSignature(ABICdecl, []TypeID{b.Int32, b.Int8}, b.Void)
	s3 := in.RegisterSignature(ABIVararg, []TypeID{b.Int32, b.Int8}, b.Void)
	if s1 != s2 {
		t.Fatalf("equal signatures should be deduplicated")
	}
	if s1 == s3 {
		t.Fatalf("abi must participate in signature identity")
	}
	info, ok := in.SignatureInfo(s3)
	if !ok || !info.Variadic() {
		t.Fatalf("vararg signature must report variadic")
	}
	ext, ok := in.ExtendSignature(s3, []TypeID{b.Float64})
	if !ok {
		t.Fatalf("extend failed")
	}
	extInfo, _ := in.SignatureInfo(ext)
	if len(extInfo.Params) != 3 || extInfo.Params[2] != b.Float64 || extInfo.Variadic() {
		t.Fatalf("unexpected extended signature %s", in.String(ext))
	}
}

func TestStructsAreNotDeduplicated(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	s1 := in.RegisterStruct([]TypeID{b.Int8, b.Uint16})
	s2 := in.RegisterStruct([]TypeID{b.Int8, b.Uint16})
	if s1 == s2 {
		t.Fatalf("struct types must stay distinct")
	}
	if !in.SetStructNames(s1, []string{"x", "y"}) {
		t.Fatalf("SetStructNames failed")
	}
	if idx, ok := in.FindStructField(s1, "y"); !ok || idx != 1 {
		t.Fatalf("expected field y at 1, got %d (%v)", idx, ok)
	}
	if _, ok := in.FindStructField(s2, "y"); ok {
		t.Fatalf("names must not leak to an unrelated struct")
	}
	if got := in.String(s1); got != "struct{x int8, y uint16}" {
		t.Fatalf("unexpected rendering %q", got)
	}
}

func TestTaggedDedup(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	a := in.RegisterTagged(b.Int32, TagName, "fd")
	c := in.RegisterTagged(b.Int32, TagName, "fd")
	d := in.RegisterTagged(b.Int32, TagName, "pid")
	if a != c || a == d {
		t.Fatalf("tagged identity must include tag data")
	}
	if in.String(d) != "pid" {
		t.Fatalf("named tag should render its name, got %q", in.String(d))
	}
}

func TestIsBoolLooksThroughNames(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	named := in.RegisterTagged(b.Bool, TagName, "flag")
	if !in.IsBool(named) {
		t.Fatalf("named bool must still be a bool")
	}
	if in.Underlying(named) != b.Int8 {
		t.Fatalf("named bool must be stored as int8, got %s", in.String(in.Underlying(named)))
	}
	if in.IsBool(in.RegisterTagged(b.Int8, TagName, "byte")) || in.IsBool(b.Int8) {
		t.Fatalf("only the bool tag makes a bool")
	}
}
