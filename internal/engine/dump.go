package engine

import (
	"fmt"
	"io"
	"strings"
)

// DumpOptions configures function dumping.
type DumpOptions struct {
	// Values lists every value handle with its type before the code.
	Values bool
}

// Dump writes a human-readable representation of a function.
func (e *Engine) Dump(w io.Writer, fn FuncID, opts DumpOptions) error {
	f, err := e.Func(fn)
	if err != nil {
		return err
	}
	state := "building"
	if f.compiled {
		state = "compiled"
	}
	fmt.Fprintf(w, "fn %s %s [%s]:\n", f.Name, e.Types.String(f.Sig), state)

	if opts.Values {
		fmt.Fprintf(w, "  values:\n")
		for i := 1; i < len(f.values); i++ {
			vi := &f.values[i]
			flags := vi.Kind.String()
			if vi.Kind == ValueParam {
				flags = fmt.Sprintf("param#%d", vi.Param)
			}
			if vi.Kind == ValueConst {
				flags += " " + e.constString(vi)
			}
			if vi.Addressable {
				flags += " addr"
			}
			fmt.Fprintf(w, "    v%d: %s %s\n", i, e.Types.String(vi.Type), flags)
		}
	}

	fmt.Fprintf(w, "  code:\n")
	for pc := range f.insns {
		in := &f.insns[pc]
		if in.Op == OpLabel {
			fmt.Fprintf(w, "  L%d:\n", in.Label)
			continue
		}
		fmt.Fprintf(w, "    %3d: %s\n", pc, e.formatInsn(f, in))
	}
	return nil
}

func (e *Engine) constString(vi *valueInfo) string {
	switch vi.rep.Class {
	case ClassFloat:
		return fmt.Sprintf("%g", BitsFloat(vi.rep, vi.Const))
	case ClassInt:
		return fmt.Sprintf("%d", asInt64(vi.Const))
	case ClassPointer:
		return e.mem.String(vi.Const)
	default:
		return fmt.Sprintf("%d", vi.Const)
	}
}

func (e *Engine) operand(f *Func, v ValueID) string {
	if v == NoValueID {
		return "_"
	}
	if int(v) < len(f.values) && f.values[v].Kind == ValueConst {
		return e.constString(&f.values[v])
	}
	return fmt.Sprintf("v%d", v)
}

func (e *Engine) formatInsn(f *Func, in *Insn) string {
	op := func(v ValueID) string { return e.operand(f, v) }
	list := func(vs []ValueID) string {
		parts := make([]string, len(vs))
		for i, v := range vs {
			parts[i] = op(v)
		}
		return strings.Join(parts, ", ")
	}
	switch {
	case in.Op.IsBinary(), in.Op.IsCompare():
		return fmt.Sprintf("v%d = %s %s, %s", in.Dest, in.Op, op(in.A), op(in.B))
	}
	switch in.Op {
	case OpNeg, OpNot, OpToBool, OpToNotBool, OpAddressOf, OpAlloca:
		return fmt.Sprintf("v%d = %s %s", in.Dest, in.Op, op(in.A))
	case OpConvert:
		return fmt.Sprintf("v%d = convert %s to %s", in.Dest, op(in.A), e.Types.String(in.Type))
	case OpCopy:
		return fmt.Sprintf("v%d = %s", in.Dest, op(in.A))
	case OpLoadRel:
		return fmt.Sprintf("v%d = load %s [%s%+d]", in.Dest, e.Types.String(in.Type), op(in.A), in.Offset)
	case OpStoreRel:
		return fmt.Sprintf("store %s [%s%+d] = %s", e.Types.String(in.Type), op(in.A), in.Offset, op(in.B))
	case OpLoadElem:
		return fmt.Sprintf("v%d = load_elem %s %s[%s]", in.Dest, e.Types.String(in.Type), op(in.A), op(in.B))
	case OpStoreElem:
		return fmt.Sprintf("store_elem %s %s[%s] = %s", e.Types.String(in.Type), op(in.A), op(in.B), op(in.Args[0]))
	case OpBranch:
		return fmt.Sprintf("branch L%d", in.Label)
	case OpBranchIf, OpBranchIfNot:
		return fmt.Sprintf("%s %s, L%d", in.Op, op(in.A), in.Label)
	case OpReturn:
		suffix := ""
		if in.implicit {
			suffix = " (default)"
		}
		if in.A == NoValueID {
			return "return" + suffix
		}
		return "return " + op(in.A) + suffix
	case OpCall:
		name := fmt.Sprintf("f%d", in.Callee)
		if callee, err := e.Func(in.Callee); err == nil {
			name = callee.Name
		}
		return fmt.Sprintf("v%d = call %s(%s)", in.Dest, name, list(in.Args))
	case OpCallNative:
		return fmt.Sprintf("v%d = call_native %s(%s) : %s", in.Dest, in.Native, list(in.Args), e.Types.String(in.Type))
	case OpMath:
		return fmt.Sprintf("v%d = %s(%s)", in.Dest, in.Math, list(in.Args))
	default:
		return in.Op.String()
	}
}
