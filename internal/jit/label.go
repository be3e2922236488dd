package jit

import (
	"jitkit/internal/engine"
)

// Label is a jump target inside one Function. A label is placed at most
// once; branches may refer to it before it is placed.
type Label struct {
	f  *Function
	id engine.LabelID
}

// Label allocates an unplaced label.
func (f *Function) Label() *Label {
	id, err := f.rt.eng.NewLabel(f.id)
	if err != nil {
		f.fail(fromEngine("label", err))
	}
	return &Label{f: f, id: id}
}

// ID returns the engine handle.
func (l *Label) ID() engine.LabelID { return l.id }

// Placed reports whether Set has been called.
func (l *Label) Placed() bool {
	return l.id != engine.NoLabelID && l.f.rt.eng.LabelPlaced(l.f.id, l.id)
}

// Set places the label at the current end of the instruction stream.
func (l *Label) Set() error {
	if l.id == engine.NoLabelID {
		return l.f.fail(errorf(KindInstruction, "label", "invalid label"))
	}
	if l.Placed() {
		return l.f.fail(errorf(KindInstruction, "label", "label L%d is already placed", l.id))
	}
	return l.f.fail(fromEngine("label", l.f.rt.eng.InsnLabel(l.f.id, l.id)))
}

func (f *Function) target(op string, l *Label) bool {
	switch {
	case l == nil || l.id == engine.NoLabelID:
		f.fail(errorf(KindInstruction, op, "invalid label"))
		return false
	case l.f != f:
		f.fail(errorf(KindInstruction, op, "label L%d belongs to another function", l.id))
		return false
	}
	return true
}

// Jmp emits an unconditional branch to l.
func (f *Function) Jmp(l *Label) error {
	if !f.target("jmp", l) {
		return f.err
	}
	return f.fail(fromEngine("jmp", f.rt.eng.InsnBranch(f.id, l.id)))
}

// JmpIf branches to l when cond is non-zero.
func (f *Function) JmpIf(cond Value, l *Label) error {
	return f.condJmp("jmp_if", cond, l, f.rt.eng.InsnBranchIf)
}

// JmpIfNot branches to l when cond is zero.
func (f *Function) JmpIfNot(cond Value, l *Label) error {
	return f.condJmp("jmp_if_not", cond, l, f.rt.eng.InsnBranchIfNot)
}

func (f *Function) condJmp(op string, cond Value, l *Label, emit func(engine.FuncID, engine.ValueID, engine.LabelID) error) error {
	if !f.target(op, l) {
		return f.err
	}
	c, ok := f.operand(op, cond, f.rt.Bool())
	if !ok {
		return f.err
	}
	return f.fail(fromEngine(op, emit(f.id, c.handle, l.id)))
}
