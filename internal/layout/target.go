package layout

import "fmt"

// Target describes the ABI target triple and its pointer properties.
type Target struct {
	Triple   string // e.g. "x86_64-linux-gnu"
	PtrSize  int    // bytes
	PtrAlign int    // bytes
}

func X86_64LinuxGNU() Target {
	return Target{
		Triple:   "x86_64-linux-gnu",
		PtrSize:  8,
		PtrAlign: 8,
	}
}

func I386LinuxGNU() Target {
	return Target{
		Triple:   "i386-linux-gnu",
		PtrSize:  4,
		PtrAlign: 4,
	}
}

// ParseTarget resolves a target triple name.
func ParseTarget(triple string) (Target, error) {
	switch triple {
	case "", "x86_64-linux-gnu", "amd64":
		return X86_64LinuxGNU(), nil
	case "i386-linux-gnu", "386":
		return I386LinuxGNU(), nil
	default:
		return Target{}, fmt.Errorf("unsupported target %q", triple)
	}
}

// NativeBits is the width in bits of intn/uintn on the target.
func (t Target) NativeBits() int {
	if t.PtrSize <= 0 {
		return 64
	}
	return t.PtrSize * 8
}
