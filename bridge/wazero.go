package bridge

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	profiling "github.com/wippyai/profiling-runtime"
	"github.com/wippyai/profiling-runtime/errors"
)

// AllocatorExport is the guest export used to obtain memory.
const AllocatorExport = "cabi_realloc"

// WrapMemory adapts wazero memory. It returns nil for nil memory.
func WrapMemory(mem api.Memory) Memory {
	if mem == nil {
		return nil
	}
	return &memoryWrapper{mem: mem}
}

// WrapAllocator adapts the guest's cabi_realloc export. It returns nil for
// a nil function.
func WrapAllocator(ctx context.Context, fn api.Function) profiling.Allocator {
	if fn == nil {
		return nil
	}
	return &allocatorWrapper{ctx: ctx, fn: fn}
}

// ForModule binds a bridge to a guest instance's memory and allocator.
func ForModule(ctx context.Context, mod api.Module) *Bridge {
	return New(WrapMemory(mod.Memory()), WrapAllocator(ctx, mod.ExportedFunction(AllocatorExport)))
}

type memoryWrapper struct {
	mem api.Memory
}

func (m *memoryWrapper) Size() uint32 {
	return m.mem.Size()
}

func (m *memoryWrapper) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("memory read out of bounds: offset=%d, length=%d", offset, length)
	}
	return data, nil
}

func (m *memoryWrapper) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return fmt.Errorf("memory write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	return nil
}

func (m *memoryWrapper) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, fmt.Errorf("memory read out of bounds: offset=%d", offset)
	}
	return v, nil
}

func (m *memoryWrapper) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return fmt.Errorf("memory write out of bounds: offset=%d", offset)
	}
	return nil
}

// allocatorWrapper calls cabi_realloc(old_ptr, old_size, align, new_size).
type allocatorWrapper struct {
	ctx context.Context
	fn  api.Function
}

func (a *allocatorWrapper) Alloc(size, align uint32) (uint32, error) {
	results, err := a.fn.Call(a.ctx, 0, 0, uint64(align), uint64(size))
	if err != nil {
		// The run was stopped while the guest allocator was executing.
		if cerr := a.ctx.Err(); cerr != nil {
			return 0, errors.RunInterrupted(cerr)
		}
		return 0, fmt.Errorf("cabi_realloc: %w", err)
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("cabi_realloc returned no result")
	}
	return uint32(results[0]), nil
}
