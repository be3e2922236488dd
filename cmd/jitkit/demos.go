package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"jitkit/internal/jit"
)

// demo is one bundled example function.
type demo struct {
	name    string
	summary string
	example []string
	sig     func(r *jit.Runtime) (params []jit.Type, ret jit.Type, err error)
	body    func(r *jit.Runtime, f *jit.Function, args []jit.Value) error
}

var demos = map[string]*demo{}

func register(d *demo) {
	if _, dup := demos[d.name]; dup {
		panic("duplicate demo " + d.name)
	}
	demos[d.name] = d
}

func lookupDemo(name string) (*demo, error) {
	d, ok := demos[name]
	if !ok {
		return nil, fmt.Errorf("unknown demo %q (see `jitkit demos`)", name)
	}
	return d, nil
}

func demoNames() []string {
	names := make([]string, 0, len(demos))
	for name := range demos {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// build creates and compiles the demo on a fresh context of r.
func (d *demo) build(r *jit.Runtime) (*jit.Function, error) {
	params, ret, err := d.sig(r)
	if err != nil {
		return nil, err
	}
	sig, err := r.Signature(params, ret, jit.ABICdecl)
	if err != nil {
		return nil, err
	}
	var fn *jit.Function
	err = r.NewContext().Build(func(b *jit.Build) error {
		f, err := b.NewFunction(d.name, sig)
		if err != nil {
			return err
		}
		if err := d.body(r, f, f.Args()); err != nil {
			return err
		}
		if err := f.Err(); err != nil {
			return err
		}
		fn = f
		return f.Compile()
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.name, err)
	}
	return fn, nil
}

func sig(ret func(r *jit.Runtime) jit.Type, params ...func(r *jit.Runtime) jit.Type) func(r *jit.Runtime) ([]jit.Type, jit.Type, error) {
	return func(r *jit.Runtime) ([]jit.Type, jit.Type, error) {
		ps := make([]jit.Type, len(params))
		for i, p := range params {
			ps[i] = p(r)
		}
		return ps, ret(r), nil
	}
}

var (
	tVoid    = (*jit.Runtime).Void
	tInt8    = (*jit.Runtime).Int8
	tUint16  = (*jit.Runtime).Uint16
	tInt32   = (*jit.Runtime).Int32
	tInt64   = (*jit.Runtime).Int64
	tFloat64 = (*jit.Runtime).Float64
)

func init() {
	register(&demo{
		name:    "abs",
		summary: "absolute value through if/else",
		example: []string{"-17"},
		sig:     sig(tInt32, tInt32),
		body: func(_ *jit.Runtime, f *jit.Function, a []jit.Value) error {
			return f.If(a[0].Lt(0)).Do(func() {
				f.Return(a[0].Neg())
			}).Else(func() {
				f.Return(a[0])
			}).End()
		},
	})

	register(&demo{
		name:    "fact",
		summary: "recursive factorial",
		example: []string{"10"},
		sig:     sig(tInt64, tInt64),
		body: func(_ *jit.Runtime, f *jit.Function, a []jit.Value) error {
			n := a[0]
			if err := f.If(n.Le(1)).Do(func() { f.Return(1) }).End(); err != nil {
				return err
			}
			f.Return(n.Mul(f.CallOther(f, n.Sub(1))))
			return nil
		},
	})

	register(&demo{
		name:    "sum",
		summary: "1 + 2 + ... + n with a while loop",
		example: []string{"100"},
		sig:     sig(tInt64, tInt32),
		body: func(r *jit.Runtime, f *jit.Function, a []jit.Value) error {
			i := f.Declare(r.Int32()).Store(1)
			acc := f.Declare(r.Int64()).Store(0)
			err := f.While(func() jit.Value { return i.Le(a[0]) }).Do(func() {
				acc.Store(acc.Add(i))
				i.Store(i.Add(1))
			}).End()
			f.Return(acc)
			return err
		},
	})

	register(&demo{
		name:    "gcd",
		summary: "Euclid's algorithm",
		example: []string{"1071", "462"},
		sig:     sig(tInt64, tInt64, tInt64),
		body: func(r *jit.Runtime, f *jit.Function, args []jit.Value) error {
			a := f.Declare(r.Int64()).Store(args[0])
			b := f.Declare(r.Int64()).Store(args[1])
			t := f.Declare(r.Int64())
			err := f.Until(func() jit.Value { return b.Eq(0) }).Do(func() {
				t.Store(b)
				b.Store(a.Rem(b))
				a.Store(t)
			}).End()
			f.Return(a)
			return err
		},
	})

	register(&demo{
		name:    "collatz",
		summary: "steps of the Collatz sequence down to 1, using break",
		example: []string{"27"},
		sig:     sig(tInt32, tInt64),
		body: func(r *jit.Runtime, f *jit.Function, a []jit.Value) error {
			n := f.Declare(r.Int64()).Store(a[0])
			steps := f.Declare(r.Int32()).Store(0)
			err := f.While(f.True).Do(func() {
				// failures inside bodies are recorded on f
				_ = f.If(n.Le(1)).Do(func() { _ = f.Break() }).End()
				_ = f.If(n.Rem(2).Eq(0)).Do(func() {
					n.Store(n.Div(2))
				}).Else(func() {
					n.Store(n.Mul(3).Add(1))
				}).End()
				steps.Store(steps.Add(1))
			}).End()
			f.Return(steps)
			return err
		},
	})

	register(&demo{
		name:    "hello",
		summary: "printf and puts through the native registry",
		example: []string{"42"},
		sig:     sig(tVoid, tInt32),
		body: func(_ *jit.Runtime, f *jit.Function, a []jit.Value) error {
			c := f.C()
			c.Printf("hello from %s, n=%d (0x%04x)\n", "jitkit", a[0], a[0])
			c.Puts("bye")
			return nil
		},
	})

	register(&demo{
		name:    "point",
		summary: "struct {x int8; y uint16} built field by field",
		example: []string{"-5", "300"},
		sig:     sig(tInt32, tInt8, tUint16),
		body: func(r *jit.Runtime, f *jit.Function, a []jit.Value) error {
			st, err := r.Struct(r.Int8(), r.Uint16())
			if err != nil {
				return err
			}
			if err := st.SetFieldNames("x", "y"); err != nil {
				return err
			}
			p := f.Declare(st)
			p.SetFieldNamed("x", a[0])
			p.SetFieldNamed("y", a[1])
			f.Return(p.FieldNamed("x").Add(p.FieldNamed("y")))
			return nil
		},
	})

	register(&demo{
		name:    "hypot",
		summary: "sqrt(a*a + b*b) through the math intrinsics",
		example: []string{"3", "4"},
		sig:     sig(tFloat64, tFloat64, tFloat64),
		body: func(_ *jit.Runtime, f *jit.Function, a []jit.Value) error {
			f.Return(f.Math(jit.MathSqrt, a[0].Mul(a[0]).Add(a[1].Mul(a[1]))))
			return nil
		},
	})

	register(&demo{
		name:    "squares",
		summary: "fills an alloca'd array with i*i and sums it",
		example: []string{"10"},
		sig:     sig(tInt32, tInt32),
		body: func(r *jit.Runtime, f *jit.Function, a []jit.Value) error {
			i32 := r.Int32()
			n := a[0]
			pi32, err := r.Pointer(i32)
			if err != nil {
				return err
			}
			arr := f.Alloca(n.Mul(4)).Cast(pi32)
			i := f.Declare(i32).Store(0)
			if err := f.While(func() jit.Value { return i.Lt(n) }).Do(func() {
				arr.StoreElem(i, i.Mul(i))
				i.Store(i.Add(1))
			}).End(); err != nil {
				return err
			}
			sum := f.Declare(i32).Store(0)
			i.Store(0)
			err = f.While(func() jit.Value { return i.Lt(n) }).Do(func() {
				sum.Store(sum.Add(arr.LoadElem(i)))
				i.Store(i.Add(1))
			}).End()
			f.Return(sum)
			return err
		},
	})
}

func newDemosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demos",
		Short: "List the bundled demo functions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := sessionOf(cmd).runtime(cmd)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(demos))
			for _, name := range demoNames() {
				d := demos[name]
				params, ret, err := d.sig(r)
				if err != nil {
					return err
				}
				s, err := r.Signature(params, ret, jit.ABICdecl)
				if err != nil {
					return err
				}
				rows = append(rows, []string{name, s.String(), d.summary})
			}
			writeTable(cmd.OutOrStdout(), []string{"NAME", "SIGNATURE", "SUMMARY"}, rows)
			return nil
		},
	}
}
