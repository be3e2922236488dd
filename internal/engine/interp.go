package engine

import (
	"fmt"

	"jitkit/internal/trace"
)

// frame is one activation of a compiled function.
type frame struct {
	fn      *Func
	regs    []uint64
	base    uint64   // frame memory for addressable values and structs
	allocas []uint64 // released when the frame returns
}

type machine struct {
	e     *Engine
	mem   *Memory
	steps int64
	depth int
}

// Apply invokes a compiled function with canonical argument bits and returns
// the canonical result bits. It is safe for concurrent use.
func (e *Engine) Apply(fn FuncID, args []uint64) (uint64, error) {
	f, err := e.Func(fn)
	if err != nil {
		return 0, err
	}
	if !f.compiled {
		return 0, f.errorf(CodeNotCompiled, "function is not compiled")
	}
	if len(args) != len(f.params) {
		return 0, f.errorf(CodeArgCount, "expected %d arguments, got %d", len(f.params), len(args))
	}
	m := &machine{e: e, mem: e.mem}
	span := trace.Begin(e.tracer, trace.ScopeFunction, "apply", 0).WithExtra("func", f.Name)
	res, err := m.call(f, args)
	span.WithExtra("steps", fmt.Sprint(m.steps)).End("")
	return res, err
}

func (m *machine) call(f *Func, args []uint64) (result uint64, err error) {
	if !f.compiled {
		return 0, f.errorf(CodeNotCompiled, "function is not compiled")
	}
	if m.depth >= m.e.opts.MaxDepth {
		return 0, f.errorf(CodeStackOverflow, "call depth %d exceeded", m.e.opts.MaxDepth)
	}
	m.depth++
	defer func() { m.depth-- }()

	fr := &frame{fn: f, regs: make([]uint64, len(f.values))}
	if f.frameSize > 0 {
		base, err := m.mem.Alloc(f.frameSize)
		if err != nil {
			return 0, withFunc(f, err)
		}
		fr.base = base
	}
	defer func() {
		for _, a := range fr.allocas {
			_ = m.mem.Free(a)
		}
		if fr.base != 0 {
			_ = m.mem.Free(fr.base)
		}
	}()

	for i := 1; i < len(f.values); i++ {
		if f.values[i].Kind == ValueConst {
			fr.regs[i] = f.values[i].Const
		}
	}
	for i, p := range f.params {
		if err := m.set(fr, p, Normalize(f.values[p].rep, args[i])); err != nil {
			return 0, err
		}
	}
	return m.run(fr)
}

func (m *machine) addr(fr *frame, v ValueID) uint64 {
	return fr.base + uint64(fr.fn.values[v].frameOff) //nolint:gosec // G115: offsets are non-negative once compiled.
}

// get reads v. Struct values read as the address of their storage.
func (m *machine) get(fr *frame, v ValueID) (uint64, error) {
	vi := &fr.fn.values[v]
	if vi.frameOff < 0 {
		return fr.regs[v], nil
	}
	a := m.addr(fr, v)
	if vi.rep.Class == ClassStruct {
		return a, nil
	}
	data, err := m.mem.Read(a, vi.rep.Size)
	if err != nil {
		return 0, err
	}
	return decodeScalar(vi.rep, data), nil
}

// set writes v. Struct values are written by copying from the address in bits.
func (m *machine) set(fr *frame, v ValueID, bits uint64) error {
	vi := &fr.fn.values[v]
	if vi.frameOff < 0 {
		fr.regs[v] = bits
		return nil
	}
	a := m.addr(fr, v)
	if vi.rep.Class == ClassStruct {
		return m.mem.Copy(a, bits, vi.rep.Size)
	}
	buf := make([]byte, vi.rep.Size)
	encodeScalar(vi.rep, bits, buf)
	return m.mem.Write(a, buf)
}

func (m *machine) load(r Rep, addr uint64) (uint64, error) {
	if r.Class == ClassStruct {
		return addr, nil
	}
	data, err := m.mem.Read(addr, r.Size)
	if err != nil {
		return 0, err
	}
	return decodeScalar(r, data), nil
}

func (m *machine) store(r Rep, addr, bits uint64) error {
	if r.Class == ClassStruct {
		return m.mem.Copy(addr, bits, r.Size)
	}
	buf := make([]byte, r.Size)
	encodeScalar(r, bits, buf)
	return m.mem.Write(addr, buf)
}

func (m *machine) run(fr *frame) (uint64, error) {
	f := fr.fn
	maxSteps := m.e.opts.MaxSteps
	pc := 0
	for pc < len(f.insns) {
		m.steps++
		if maxSteps > 0 && m.steps > maxSteps {
			return 0, f.errorf(CodeStepLimit, "step budget of %d exhausted", maxSteps)
		}
		in := &f.insns[pc]
		pc++
		switch in.Op {
		case OpNop, OpLabel:
			continue

		case OpBranch:
			pc = f.labelPC[in.Label]
			continue

		case OpBranchIf, OpBranchIfNot:
			c, err := m.get(fr, in.A)
			if err != nil {
				return 0, withFunc(f, err)
			}
			if truthy(in.rep, c) == (in.Op == OpBranchIf) {
				pc = f.labelPC[in.Label]
			}
			continue

		case OpReturn:
			if in.A == NoValueID {
				return 0, nil
			}
			v, err := m.get(fr, in.A)
			if err != nil {
				return 0, withFunc(f, err)
			}
			return v, nil
		}
		if err := m.exec(fr, in); err != nil {
			return 0, withFunc(f, err)
		}
	}
	return 0, nil
}

// exec runs one straight-line instruction.
func (m *machine) exec(fr *frame, in *Insn) error {
	f := fr.fn

	if in.Op.IsBinary() || in.Op.IsCompare() {
		a, err := m.get(fr, in.A)
		if err != nil {
			return err
		}
		b, err := m.get(fr, in.B)
		if err != nil {
			return err
		}
		var z uint64
		if in.Op.IsCompare() {
			z = evalCompare(in.Op, in.rep, a, b)
		} else if z, err = evalBinary(in.Op, in.rep, a, b); err != nil {
			return err
		}
		return m.set(fr, in.Dest, z)
	}

	switch in.Op {
	case OpNeg, OpNot:
		a, err := m.get(fr, in.A)
		if err != nil {
			return err
		}
		return m.set(fr, in.Dest, evalUnary(in.Op, in.rep, a))

	case OpToBool, OpToNotBool:
		a, err := m.get(fr, in.A)
		if err != nil {
			return err
		}
		return m.set(fr, in.Dest, boolBits(truthy(in.rep, a) == (in.Op == OpToBool)))

	case OpConvert:
		a, err := m.get(fr, in.A)
		if err != nil {
			return err
		}
		return m.set(fr, in.Dest, convertBits(in.rep, f.values[in.Dest].rep, a))

	case OpCopy:
		a, err := m.get(fr, in.A)
		if err != nil {
			return err
		}
		return m.set(fr, in.Dest, a)

	case OpAddressOf:
		return m.set(fr, in.Dest, m.addr(fr, in.A))

	case OpLoadRel:
		p, err := m.get(fr, in.A)
		if err != nil {
			return err
		}
		v, err := m.load(in.rep, p+asUint64(in.Offset))
		if err != nil {
			return err
		}
		return m.set(fr, in.Dest, v)

	case OpStoreRel:
		p, err := m.get(fr, in.A)
		if err != nil {
			return err
		}
		v, err := m.get(fr, in.B)
		if err != nil {
			return err
		}
		return m.store(in.rep, p+asUint64(in.Offset), v)

	case OpLoadElem, OpStoreElem:
		p, err := m.get(fr, in.A)
		if err != nil {
			return err
		}
		idx, err := m.get(fr, in.B)
		if err != nil {
			return err
		}
		at := p + idx*uint64(in.rep.Size) //nolint:gosec // G115: sizes are positive.
		if in.Op == OpLoadElem {
			v, err := m.load(in.rep, at)
			if err != nil {
				return err
			}
			return m.set(fr, in.Dest, v)
		}
		v, err := m.get(fr, in.Args[0])
		if err != nil {
			return err
		}
		return m.store(in.rep, at, v)

	case OpAlloca:
		n, err := m.get(fr, in.A)
		if err != nil {
			return err
		}
		size, convErr := sizeFromBits(n)
		if convErr != nil {
			return convErr
		}
		p, err := m.mem.Alloc(size)
		if err != nil {
			return err
		}
		fr.allocas = append(fr.allocas, p)
		return m.set(fr, in.Dest, p)

	case OpCall:
		callee, err := m.e.Func(in.Callee)
		if err != nil {
			return err
		}
		args, err := m.args(fr, in.Args)
		if err != nil {
			return err
		}
		res, err := m.call(callee, args)
		if err != nil {
			return err
		}
		if callee.retRep.Class == ClassVoid {
			return nil
		}
		return m.set(fr, in.Dest, res)

	case OpCallNative:
		impl, ok := m.e.native(in.Native)
		if !ok {
			return errorf(CodeUnknownNative, "native %q is not registered", in.Native)
		}
		args, err := m.args(fr, in.Args)
		if err != nil {
			return err
		}
		reps := make([]Rep, len(in.Args))
		for i, a := range in.Args {
			reps[i] = f.values[a].rep
		}
		res, err := impl(&NativeCall{Name: in.Native, Args: args, Reps: reps, Ret: in.rep, Mem: m.mem})
		if err != nil {
			if _, ok := err.(*EngineError); ok {
				return err
			}
			return &EngineError{Code: CodeNative, Message: fmt.Sprintf("%s: %v", in.Native, err), Err: err}
		}
		if in.rep.Class == ClassVoid {
			return nil
		}
		return m.set(fr, in.Dest, Normalize(in.rep, res))

	case OpMath:
		args, err := m.args(fr, in.Args)
		if err != nil {
			return err
		}
		return m.set(fr, in.Dest, evalMath(in.Math, in.rep, args))
	}
	return errorf(CodeUnsupported, "unimplemented opcode %s", in.Op)
}

func (m *machine) args(fr *frame, ids []ValueID) ([]uint64, error) {
	out := make([]uint64, len(ids))
	for i, a := range ids {
		v, err := m.get(fr, a)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func sizeFromBits(n uint64) (int, error) {
	if n > 1<<31 {
		return 0, errorf(CodeBadAccess, "alloca of %d bytes", n)
	}
	return int(n), nil //nolint:gosec // G115: bounded above.
}
