// Package bridgetest provides in-process guest memory for exercising host
// operations without a wasm engine.
package bridgetest

import (
	"encoding/binary"
	"fmt"
)

// Memory is a fixed-size byte slice posing as guest linear memory.
type Memory struct {
	Buf []byte
}

// NewMemory returns size bytes of zeroed memory.
func NewMemory(size uint32) *Memory {
	return &Memory{Buf: make([]byte, size)}
}

func (m *Memory) Size() uint32 { return uint32(len(m.Buf)) }

func (m *Memory) span(offset, length uint32) ([]byte, error) {
	end := uint64(offset) + uint64(length)
	if end > uint64(len(m.Buf)) {
		return nil, fmt.Errorf("bridgetest: [%d, %d) out of bounds", offset, end)
	}
	return m.Buf[offset:end], nil
}

func (m *Memory) Read(offset, length uint32) ([]byte, error) {
	return m.span(offset, length)
}

func (m *Memory) Write(offset uint32, data []byte) error {
	dst, err := m.span(offset, uint32(len(data)))
	if err != nil {
		return err
	}
	copy(dst, data)
	return nil
}

func (m *Memory) ReadU32(offset uint32) (uint32, error) {
	b, err := m.span(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadU64 reads a little-endian u64 for assertions.
func (m *Memory) ReadU64(offset uint32) (uint64, error) {
	b, err := m.span(offset, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (m *Memory) WriteU32(offset, value uint32) error {
	b, err := m.span(offset, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, value)
	return nil
}

// Allocator hands out memory from Next upwards and never reuses it.
type Allocator struct {
	// Fail, when set, is returned by every Alloc.
	Fail error

	// Ptr, when non-zero, is returned by every Alloc regardless of size.
	Ptr uint32

	Next   uint32
	Allocs int
}

// NewAllocator starts allocating at base.
func NewAllocator(base uint32) *Allocator {
	return &Allocator{Next: base}
}

func (a *Allocator) Alloc(size, align uint32) (uint32, error) {
	if a.Fail != nil {
		return 0, a.Fail
	}
	a.Allocs++
	if a.Ptr != 0 {
		return a.Ptr, nil
	}
	if align == 0 {
		align = 1
	}
	ptr := (a.Next + align - 1) &^ (align - 1)
	a.Next = ptr + size
	return ptr, nil
}
