package jit

import (
	"sort"
	"sync"

	"jitkit/internal/engine"
)

// Native describes a host function callable from built code.
type Native struct {
	Name     string
	Params   []Type
	Return   Type
	Variadic bool
	Impl     engine.NativeFunc

	sig Type
}

// Signature returns the declared signature; variadic natives get a vararg
// signature with the fixed parameters.
func (n *Native) Signature() Type { return n.sig }

// NativeRegistry maps names to natives of one Runtime.
type NativeRegistry struct {
	rt *Runtime

	mu      sync.RWMutex
	entries map[string]*Native
}

func newNativeRegistry(r *Runtime) *NativeRegistry {
	return &NativeRegistry{rt: r, entries: make(map[string]*Native, 24)}
}

// Register describes and binds a native. A later registration under the same
// name replaces the earlier one.
func (nr *NativeRegistry) Register(n Native) (*Native, error) {
	if n.Name == "" {
		return nil, errorf(KindInstruction, "native", "native without a name")
	}
	if n.Impl == nil {
		return nil, errorf(KindInstruction, "native", "native %s has no implementation", n.Name)
	}
	ret := n.Return
	if !ret.Valid() {
		ret = nr.rt.Void()
	}
	n.Return = ret
	var (
		sig Type
		err error
	)
	if n.Variadic {
		sig, err = nr.rt.VariadicSignature(n.Params, ret)
	} else {
		sig, err = nr.rt.Signature(n.Params, ret, ABICdecl)
	}
	if err != nil {
		return nil, err
	}
	n.sig = sig
	entry := &n

	nr.mu.Lock()
	nr.entries[n.Name] = entry
	nr.mu.Unlock()
	nr.rt.eng.RegisterNative(n.Name, n.Impl)
	return entry, nil
}

// Lookup finds a native by name.
func (nr *NativeRegistry) Lookup(name string) (*Native, bool) {
	nr.mu.RLock()
	defer nr.mu.RUnlock()
	n, ok := nr.entries[name]
	return n, ok
}

// Names lists the registered natives in order.
func (nr *NativeRegistry) Names() []string {
	nr.mu.RLock()
	defer nr.mu.RUnlock()
	names := make([]string, 0, len(nr.entries))
	for name := range nr.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Remove unbinds a native. Functions already compiled against it fail at
// call time.
func (nr *NativeRegistry) Remove(name string) {
	nr.mu.Lock()
	delete(nr.entries, name)
	nr.mu.Unlock()
	nr.rt.eng.UnregisterNative(name)
}
