package jit

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fortio.org/safecast"

	"jitkit/internal/engine"
)

// The default natives mirror the C library functions built code usually
// reaches for. Output goes to the runtime's stdout.

var errFormat = errors.New("malformed format")

func registerLibc(r *Runtime) {
	var (
		i32  = r.Int32()
		i64  = r.Int64()
		intn = r.Intn()
		un   = r.Uintn()
		ptr  = r.VoidPtr()
		str  = r.Stringz()
	)
	natives := []Native{
		{Name: "putchar", Params: []Type{i32}, Return: i32, Impl: func(c *engine.NativeCall) (uint64, error) {
			ch := byte(c.Int(0)) //nolint:gosec // G115: putchar writes the low byte.
			if _, err := r.write([]byte{ch}); err != nil {
				return 0, err
			}
			return c.ReturnInt(int64(ch)), nil
		}},
		{Name: "puts", Params: []Type{str}, Return: i32, Impl: func(c *engine.NativeCall) (uint64, error) {
			s, err := c.String(0)
			if err != nil {
				return 0, err
			}
			if _, err := r.write([]byte(s + "\n")); err != nil {
				return 0, err
			}
			return c.ReturnInt(int64(len(s) + 1)), nil
		}},
		{Name: "printf", Params: []Type{str}, Return: i32, Variadic: true, Impl: func(c *engine.NativeCall) (uint64, error) {
			out, err := formatC(c, 0)
			if err != nil {
				return 0, err
			}
			if _, err := r.write([]byte(out)); err != nil {
				return 0, err
			}
			return c.ReturnInt(int64(len(out))), nil
		}},
		{Name: "sprintf", Params: []Type{ptr, str}, Return: i32, Variadic: true, Impl: func(c *engine.NativeCall) (uint64, error) {
			out, err := formatC(c, 1)
			if err != nil {
				return 0, err
			}
			if err := c.Mem.Write(c.Args[0], append([]byte(out), 0)); err != nil {
				return 0, err
			}
			return c.ReturnInt(int64(len(out))), nil
		}},
		{Name: "abs", Params: []Type{i32}, Return: i32, Impl: absNative},
		{Name: "labs", Params: []Type{i64}, Return: i64, Impl: absNative},
		{Name: "malloc", Params: []Type{un}, Return: ptr, Impl: func(c *engine.NativeCall) (uint64, error) {
			n, err := safecast.Conv[int](c.Uint(0))
			if err != nil {
				return 0, err
			}
			return c.Mem.Alloc(n)
		}},
		{Name: "calloc", Params: []Type{un, un}, Return: ptr, Impl: func(c *engine.NativeCall) (uint64, error) {
			n, err := safecast.Conv[int](c.Uint(0) * c.Uint(1))
			if err != nil {
				return 0, err
			}
			return c.Mem.Alloc(n)
		}},
		{Name: "realloc", Params: []Type{ptr, un}, Return: ptr, Impl: func(c *engine.NativeCall) (uint64, error) {
			n, err := safecast.Conv[int](c.Uint(1))
			if err != nil {
				return 0, err
			}
			return c.Mem.Realloc(c.Args[0], n)
		}},
		{Name: "free", Params: []Type{ptr}, Impl: func(c *engine.NativeCall) (uint64, error) {
			if c.Args[0] == 0 {
				return 0, nil
			}
			return 0, c.Mem.Free(c.Args[0])
		}},
		{Name: "strlen", Params: []Type{str}, Return: un, Impl: func(c *engine.NativeCall) (uint64, error) {
			s, err := c.String(0)
			if err != nil {
				return 0, err
			}
			return uint64(len(s)), nil
		}},
		{Name: "memset", Params: []Type{ptr, i32, un}, Return: ptr, Impl: func(c *engine.NativeCall) (uint64, error) {
			n, err := safecast.Conv[int](c.Uint(2))
			if err != nil {
				return 0, err
			}
			return c.Args[0], c.Mem.Fill(c.Args[0], byte(c.Int(1)), n) //nolint:gosec // G115: memset stores the low byte.
		}},
		{Name: "time", Params: []Type{ptr}, Return: intn, Impl: func(c *engine.NativeCall) (uint64, error) {
			now := time.Now().Unix()
			if c.Args[0] != 0 {
				bits := c.ReturnInt(now)
				raw := make([]byte, c.Ret.Size)
				for i := range raw {
					raw[i] = byte(bits >> (8 * i))
				}
				if err := c.Mem.Write(c.Args[0], raw); err != nil {
					return 0, err
				}
			}
			return c.ReturnInt(now), nil
		}},
		{Name: "rand", Return: i32, Impl: func(c *engine.NativeCall) (uint64, error) {
			r.randMu.Lock()
			n := r.rng.Int32()
			r.randMu.Unlock()
			return c.ReturnInt(int64(n)), nil
		}},
		{Name: "srand", Params: []Type{r.Uint32()}, Impl: func(c *engine.NativeCall) (uint64, error) {
			r.seed(c.Uint(0))
			return 0, nil
		}},
	}
	for _, n := range natives {
		if _, err := r.natives.Register(n); err != nil {
			panic(fmt.Errorf("register %s: %w", n.Name, err))
		}
	}
}

func absNative(c *engine.NativeCall) (uint64, error) {
	n := c.Int(0)
	if n < 0 {
		n = -n
	}
	return c.ReturnInt(n), nil
}

// formatC renders a C format string read from argument at, consuming the
// following arguments.
func formatC(c *engine.NativeCall, at int) (string, error) {
	format, err := c.String(at)
	if err != nil {
		return "", err
	}
	next := at + 1
	arg := func() (int, error) {
		if next >= len(c.Args) {
			return 0, fmt.Errorf("%w: missing argument %d", errFormat, next-at)
		}
		next++
		return next - 1, nil
	}

	var sb strings.Builder
	for i := 0; i < len(format); i++ {
		ch := format[i]
		if ch != '%' {
			sb.WriteByte(ch)
			continue
		}
		i++
		if i >= len(format) {
			return "", fmt.Errorf("%w: trailing %%", errFormat)
		}
		if format[i] == '%' {
			sb.WriteByte('%')
			continue
		}

		spec := []byte{'%'}
		for i < len(format) && strings.IndexByte("-+ 0#", format[i]) >= 0 {
			spec = append(spec, format[i])
			i++
		}
		// width and precision, '*' reads an int argument
		for part := 0; part < 2 && i < len(format); part++ {
			if part == 1 {
				if format[i] != '.' {
					break
				}
				spec = append(spec, '.')
				i++
			}
			if i < len(format) && format[i] == '*' {
				k, err := arg()
				if err != nil {
					return "", err
				}
				spec = strconv.AppendInt(spec, c.Int(k), 10)
				i++
				continue
			}
			for i < len(format) && format[i] >= '0' && format[i] <= '9' {
				spec = append(spec, format[i])
				i++
			}
		}
		for i < len(format) && strings.IndexByte("hlLqjzt", format[i]) >= 0 {
			i++
		}
		if i >= len(format) {
			return "", fmt.Errorf("%w: incomplete conversion", errFormat)
		}

		verb := format[i]
		if strings.IndexByte("diuxXocsfFeEgGp", verb) < 0 {
			return "", fmt.Errorf("%w: unknown conversion %%%c", errFormat, verb)
		}
		k, err := arg()
		if err != nil {
			return "", err
		}
		switch verb {
		case 'd', 'i':
			fmt.Fprintf(&sb, string(append(spec, 'd')), c.Int(k))
		case 'u':
			fmt.Fprintf(&sb, string(append(spec, 'd')), unsignedArg(c, k))
		case 'x', 'X', 'o':
			fmt.Fprintf(&sb, string(append(spec, verb)), unsignedArg(c, k))
		case 'c':
			fmt.Fprintf(&sb, string(append(spec, 'c')), rune(byte(c.Int(k)))) //nolint:gosec // G115: %c prints the low byte.
		case 's':
			s, err := c.String(k)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&sb, string(append(spec, 's')), s)
		case 'p':
			fmt.Fprintf(&sb, "0x%x", c.Args[k])
		case 'F':
			fmt.Fprintf(&sb, string(append(spec, 'f')), c.Float(k))
		default:
			fmt.Fprintf(&sb, string(append(spec, verb)), c.Float(k))
		}
	}
	return sb.String(), nil
}

// unsignedArg reads argument k as an unsigned value of its own width.
func unsignedArg(c *engine.NativeCall, k int) uint64 {
	r := c.Reps[k]
	if r.Class == engine.ClassInt && r.Size > 0 && r.Size < 8 {
		return c.Args[k] & (uint64(1)<<(8*r.Size) - 1)
	}
	return c.Uint(k)
}

// C emits calls of the default natives.
type C struct{ f *Function }

// C returns the native call helpers of f.
func (f *Function) C() C { return C{f: f} }

func (c C) Putchar(ch any) Value  { return c.f.CallNative("putchar", ch) }
func (c C) Puts(s any) Value      { return c.f.CallNative("puts", s) }
func (c C) Abs(n any) Value       { return c.f.CallNative("abs", n) }
func (c C) Malloc(size any) Value { return c.f.CallNative("malloc", size) }
func (c C) Free(p any) Value      { return c.f.CallNative("free", p) }
func (c C) Strlen(s any) Value    { return c.f.CallNative("strlen", s) }
func (c C) Rand() Value           { return c.f.CallNative("rand") }
func (c C) Srand(seed any) Value  { return c.f.CallNative("srand", seed) }
func (c C) Time() Value           { return c.f.CallNative("time", c.f.Null()) }
func (c C) Printf(format any, args ...any) Value {
	return c.f.CallNative("printf", append([]any{format}, args...)...)
}
