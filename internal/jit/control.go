package jit

// Structured control flow lowers to labels and conditional branches:
//
//	if c { A } else { B }      while c { body }
//
//	    jmp_if_not c, else         jmp_if_not c, bottom
//	    A                      top:
//	    jmp end                    body
//	else:                          jmp_if c', top
//	    B                      bottom:
//	end:
//
// Break inside a loop body jumps to the innermost bottom label.

// Branch is an if or unless statement under construction.
type Branch struct {
	f      *Function
	negate bool
	cond   any

	elseL *Label
	endL  *Label
	done  bool
	err   error
}

// If starts a conditional statement that runs its Do body when cond is
// non-zero.
func (f *Function) If(cond any) *Branch {
	return &Branch{f: f, cond: cond}
}

// Unless starts a conditional statement that runs its Do body when cond is
// zero.
func (f *Function) Unless(cond any) *Branch {
	return &Branch{f: f, cond: cond, negate: true}
}

// Do emits the test and the main body.
func (b *Branch) Do(body func()) *Branch {
	f := b.f
	c, ok := f.operand("if", b.cond, f.rt.Bool())
	if !ok {
		b.err = f.err
		return b
	}
	b.elseL = f.Label()
	if b.negate {
		b.err = f.JmpIf(c.ToBool(), b.elseL)
	} else {
		b.err = f.JmpIfNot(c.ToBool(), b.elseL)
	}
	if b.err != nil {
		return b
	}
	body()
	return b
}

// Else emits the alternative body. It must follow Do.
func (b *Branch) Else(body func()) *Branch {
	if b.err != nil {
		return b
	}
	if b.elseL == nil {
		b.err = b.f.fail(errorf(KindInstruction, "else", "else without a body"))
		return b
	}
	f := b.f
	b.endL = f.Label()
	if b.err = f.Jmp(b.endL); b.err != nil {
		return b
	}
	if b.err = b.elseL.Set(); b.err != nil {
		return b
	}
	body()
	return b
}

// End closes the statement and places the join label.
func (b *Branch) End() error {
	if b.err != nil {
		return b.err
	}
	if b.done {
		return b.f.fail(errorf(KindInstruction, "end", "statement already closed"))
	}
	b.done = true
	if b.elseL == nil {
		return b.f.fail(errorf(KindInstruction, "end", "if without a body"))
	}
	if b.endL != nil {
		return b.endL.Set()
	}
	return b.elseL.Set()
}

// Loop is a while or until statement under construction.
type Loop struct {
	f      *Function
	negate bool
	cond   func() Value

	top    *Label
	bottom *Label
	done   bool
	err    error
}

// While starts a loop that repeats while cond evaluates non-zero. cond is
// called twice: once for the entry test and once for the back edge, so its
// instructions appear at both places.
func (f *Function) While(cond func() Value) *Loop {
	return &Loop{f: f, cond: cond}
}

// Until starts a loop that repeats while cond evaluates zero.
func (f *Function) Until(cond func() Value) *Loop {
	return &Loop{f: f, cond: cond, negate: true}
}

func (l *Loop) test(target *Label, exit bool) error {
	c := l.cond()
	if !c.Valid() {
		if l.f.err != nil {
			return l.f.err
		}
		return l.f.fail(errorf(KindInstruction, "while", "invalid condition"))
	}
	c = c.ToBool()
	// exit jumps leave when the loop condition fails.
	if exit != l.negate {
		return l.f.JmpIfNot(c, target)
	}
	return l.f.JmpIf(c, target)
}

// Do emits the loop body. Break inside body leaves this loop.
func (l *Loop) Do(body func()) *Loop {
	f := l.f
	if l.cond == nil {
		l.err = f.fail(errorf(KindInstruction, "while", "missing condition"))
		return l
	}
	l.top = f.Label()
	l.bottom = f.Label()
	if l.err = l.test(l.bottom, true); l.err != nil {
		return l
	}
	if l.err = l.top.Set(); l.err != nil {
		return l
	}
	f.breaks = append(f.breaks, l.bottom)
	body()
	f.breaks = f.breaks[:len(f.breaks)-1]
	l.err = l.test(l.top, false)
	return l
}

// End closes the loop and places its exit label.
func (l *Loop) End() error {
	if l.err != nil {
		return l.err
	}
	if l.done {
		return l.f.fail(errorf(KindInstruction, "end", "loop already closed"))
	}
	l.done = true
	if l.bottom == nil {
		return l.f.fail(errorf(KindInstruction, "end", "loop without a body"))
	}
	return l.bottom.Set()
}

// Break jumps to the exit of the innermost enclosing loop.
func (f *Function) Break() error {
	if len(f.breaks) == 0 {
		return f.fail(errorf(KindInstruction, "break", "break outside of a loop"))
	}
	return f.Jmp(f.breaks[len(f.breaks)-1])
}
