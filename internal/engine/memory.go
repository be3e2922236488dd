package engine

import (
	"bytes"
	"fmt"
	"sync"
)

type rawAlloc struct {
	data  []byte
	freed bool
}

// Memory is the address space seen by compiled code. Addresses are
// handle-segmented: the high bits name an allocation, the low bits are a byte
// offset inside it. Address 0 is the null pointer.
type Memory struct {
	mu      sync.Mutex
	next    uint64
	allocs  map[uint64]*rawAlloc
	offBits uint
	live    int
}

// NewMemory creates an address space for pointers of ptrSize bytes.
func NewMemory(ptrSize int) *Memory {
	offBits := uint(32)
	if ptrSize == 4 {
		offBits = 20
	}
	return &Memory{
		next:    1,
		allocs:  make(map[uint64]*rawAlloc, 64),
		offBits: offBits,
	}
}

func (m *Memory) split(addr uint64) (uint64, int) {
	return addr >> m.offBits, int(addr & maskForWidth(int(m.offBits))) //nolint:gosec // G115: masked to offBits.
}

func (m *Memory) maxHandle() uint64 {
	if m.offBits == 32 {
		return 1<<32 - 1
	}
	return 1<<(32-m.offBits) - 1
}

// Alloc reserves size zeroed bytes and returns their address.
func (m *Memory) Alloc(size int) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allocLocked(size)
}

func (m *Memory) allocLocked(size int) (uint64, error) {
	if size < 0 || uint64(size) > maskForWidth(int(m.offBits)) {
		return 0, errorf(CodeBadAccess, "allocation size %d out of range", size)
	}
	if m.next > m.maxHandle() {
		return 0, errorf(CodeBadAccess, "address space exhausted")
	}
	h := m.next
	m.next++
	m.allocs[h] = &rawAlloc{data: make([]byte, size)}
	m.live++
	return h << m.offBits, nil
}

func (m *Memory) get(addr uint64) (*rawAlloc, int, error) {
	if addr == 0 {
		return nil, 0, errorf(CodeBadAccess, "null pointer dereference")
	}
	h, off := m.split(addr)
	alloc, ok := m.allocs[h]
	if !ok || alloc == nil {
		return nil, 0, errorf(CodeBadAccess, "invalid address %#x", addr)
	}
	if alloc.freed {
		return nil, 0, errorf(CodeBadAccess, "use-after-free at %#x", addr)
	}
	return alloc, off, nil
}

// Free releases the allocation starting at addr. Freeing null is a no-op.
func (m *Memory) Free(addr uint64) error {
	if addr == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	alloc, off, err := m.get(addr)
	if err != nil {
		return err
	}
	if off != 0 {
		return errorf(CodeBadAccess, "free of interior pointer %#x", addr)
	}
	alloc.freed = true
	alloc.data = nil
	m.live--
	return nil
}

// Realloc moves the allocation at addr into a block of size bytes.
func (m *Memory) Realloc(addr uint64, size int) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if addr == 0 {
		return m.allocLocked(size)
	}
	alloc, off, err := m.get(addr)
	if err != nil {
		return 0, err
	}
	if off != 0 {
		return 0, errorf(CodeBadAccess, "realloc of interior pointer %#x", addr)
	}
	next, err := m.allocLocked(size)
	if err != nil {
		return 0, err
	}
	fresh, _, _ := m.get(next)
	copy(fresh.data, alloc.data)
	alloc.freed = true
	alloc.data = nil
	m.live--
	return next, nil
}

// Read copies n bytes starting at addr.
func (m *Memory) Read(addr uint64, n int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	alloc, off, err := m.get(addr)
	if err != nil {
		return nil, err
	}
	if n < 0 || off+n > len(alloc.data) {
		return nil, errorf(CodeBadAccess, "read of %d bytes at %#x out of bounds", n, addr)
	}
	out := make([]byte, n)
	copy(out, alloc.data[off:off+n])
	return out, nil
}

// Write stores data starting at addr.
func (m *Memory) Write(addr uint64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	alloc, off, err := m.get(addr)
	if err != nil {
		return err
	}
	if off+len(data) > len(alloc.data) {
		return errorf(CodeBadAccess, "write of %d bytes at %#x out of bounds", len(data), addr)
	}
	copy(alloc.data[off:], data)
	return nil
}

// Copy moves n bytes from src to dst. Overlapping ranges are allowed.
func (m *Memory) Copy(dst, src uint64, n int) error {
	if n == 0 {
		return nil
	}
	data, err := m.Read(src, n)
	if err != nil {
		return err
	}
	return m.Write(dst, data)
}

// Fill sets n bytes at addr to b.
func (m *Memory) Fill(addr uint64, b byte, n int) error {
	if n == 0 {
		return nil
	}
	return m.Write(addr, bytes.Repeat([]byte{b}, n))
}

// ReadCString reads a NUL-terminated string starting at addr.
func (m *Memory) ReadCString(addr uint64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	alloc, off, err := m.get(addr)
	if err != nil {
		return "", err
	}
	if off > len(alloc.data) {
		return "", errorf(CodeBadAccess, "string at %#x out of bounds", addr)
	}
	end := bytes.IndexByte(alloc.data[off:], 0)
	if end < 0 {
		return "", errorf(CodeBadAccess, "unterminated string at %#x", addr)
	}
	return string(alloc.data[off : off+end]), nil
}

// WriteCString allocates a NUL-terminated copy of s.
func (m *Memory) WriteCString(s string) (uint64, error) {
	addr, err := m.Alloc(len(s) + 1)
	if err != nil {
		return 0, err
	}
	if err := m.Write(addr, append([]byte(s), 0)); err != nil {
		return 0, err
	}
	return addr, nil
}

// Live reports the number of allocations that have not been freed.
func (m *Memory) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live
}

// String describes an address for dumps and error messages.
func (m *Memory) String(addr uint64) string {
	if addr == 0 {
		return "null"
	}
	h, off := m.split(addr)
	return fmt.Sprintf("@%d+%d", h, off)
}
