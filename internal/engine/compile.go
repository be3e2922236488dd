package engine

import (
	"jitkit/internal/trace"
)

// successors lists the instruction indices control may reach from pc.
// len(f.insns) stands for "falls off the end".
func (f *Func) successors(pc int, out []int) []int {
	out = out[:0]
	in := &f.insns[pc]
	target := func() {
		if li, err := f.label(in.Label); err == nil && li.pos >= 0 {
			out = append(out, li.pos)
		}
	}
	switch in.Op {
	case OpReturn:
	case OpBranch:
		target()
	case OpBranchIf, OpBranchIfNot:
		target()
		out = append(out, pc+1)
	default:
		out = append(out, pc+1)
	}
	return out
}

// endReachable runs a worklist reachability pass from the entry and reports
// whether control can fall off the end of the stream.
func (f *Func) endReachable() bool {
	n := len(f.insns)
	seen := make([]bool, n+1)
	work := []int{0}
	seen[0] = true
	var succ []int
	for len(work) > 0 {
		pc := work[len(work)-1]
		work = work[:len(work)-1]
		if pc == n {
			return true
		}
		succ = f.successors(pc, succ)
		for _, s := range succ {
			if !seen[s] {
				seen[s] = true
				work = append(work, s)
			}
		}
	}
	return false
}

// Compile validates the stream, resolves labels and assigns frame slots to
// memory-backed values. Compiling twice is a no-op.
func (e *Engine) Compile(fn FuncID) error {
	f, err := e.Func(fn)
	if err != nil {
		return err
	}
	if f.compiled {
		return nil
	}
	span := trace.Begin(e.tracer, trace.ScopeFunction, "engine_compile", 0).WithExtra("func", f.Name)
	defer span.End("")

	if _, err := e.builder(fn); err != nil {
		return err
	}

	labelPC := make([]int, len(f.labels))
	for i := range labelPC {
		labelPC[i] = -1
	}
	for l := 1; l < len(f.labels); l++ {
		labelPC[l] = f.labels[l].pos
	}
	for pc := range f.insns {
		in := &f.insns[pc]
		switch in.Op {
		case OpBranch, OpBranchIf, OpBranchIfNot:
			if labelPC[in.Label] < 0 {
				return f.errorf(CodeUnplacedLabel, "branch at %d targets label L%d that is never placed", pc, in.Label)
			}
		case OpCall:
			if _, err := e.Func(in.Callee); err != nil {
				return withFunc(f, err)
			}
		}
	}

	size := 0
	for i := 1; i < len(f.values); i++ {
		vi := &f.values[i]
		if !vi.Addressable && vi.rep.Class != ClassStruct {
			vi.frameOff = -1
			continue
		}
		align, err := e.Layout.AlignOf(vi.Type)
		if err != nil || align <= 0 {
			align = 1
		}
		size = roundUp(size, align)
		vi.frameOff = size
		size += max(vi.rep.Size, 1)
	}

	e.mu.Lock()
	f.labelPC = labelPC
	f.frameSize = size
	f.compiled = true
	e.mu.Unlock()
	return nil
}

func roundUp(n, align int) int {
	if align <= 1 {
		return n
	}
	if r := n % align; r != 0 {
		return n + align - r
	}
	return n
}
