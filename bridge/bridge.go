package bridge

import (
	profiling "github.com/wippyai/profiling-runtime"
	"github.com/wippyai/profiling-runtime/errors"
)

// OutputSize is the size in bytes of the output area.
const OutputSize = 12

// Output status values.
const (
	StatusFailure uint32 = 0
	StatusSuccess uint32 = 1
)

// Memory is guest memory whose bounds can be checked.
type Memory interface {
	profiling.Memory
	profiling.MemorySizer
}

// Range is a guest range that passed a bounds check.
type Range struct {
	Offset uint32
	Length uint32
}

// End returns the first offset past the range.
func (r Range) End() uint64 { return uint64(r.Offset) + uint64(r.Length) }

// Output is the decoded content of an output area.
type Output struct {
	Status uint32
	A      uint32
	B      uint32
}

func (o Output) Ok() bool { return o.Status == StatusSuccess }

// Scalar is a successful scalar result.
func Scalar(v uint32) Output { return Output{Status: StatusSuccess, A: v} }

// Payload is a successful result stored at r.
func Payload(r Range) Output { return Output{Status: StatusSuccess, A: r.Offset, B: r.Length} }

// Failure points at error text stored at r.
func Failure(r Range) Output { return Output{Status: StatusFailure, A: r.Offset, B: r.Length} }

// Bridge is bound to one guest instance for the duration of a host call.
type Bridge struct {
	mem   Memory
	alloc profiling.Allocator
}

// New binds a bridge to guest memory and the guest allocator. alloc may be
// nil for operations that never copy into the guest.
func New(mem Memory, alloc profiling.Allocator) *Bridge {
	return &Bridge{mem: mem, alloc: alloc}
}

// Check validates that [offset, offset+length) lies inside guest memory.
func (b *Bridge) Check(offset, length uint32) (Range, error) {
	if b.mem == nil {
		return Range{}, errors.New(errors.PhaseBridge, errors.KindMemorySafety).
			Detail("guest exports no memory").Build()
	}
	size := b.mem.Size()
	if uint64(offset)+uint64(length) > uint64(size) {
		return Range{}, errors.OutOfBounds(offset, length, size)
	}
	return Range{Offset: offset, Length: length}, nil
}

// CopyOut copies a guest range into host-owned memory.
func (b *Bridge) CopyOut(offset, length uint32) ([]byte, error) {
	r, err := b.Check(offset, length)
	if err != nil {
		return nil, err
	}
	if r.Length == 0 {
		return []byte{}, nil
	}
	view, err := b.mem.Read(r.Offset, r.Length)
	if err != nil {
		return nil, errors.New(errors.PhaseBridge, errors.KindMemorySafety).
			Op("copy_out").Cause(err).Build()
	}
	out := make([]byte, len(view))
	copy(out, view)
	return out, nil
}

// CopyIn allocates len(data) bytes in the guest and copies data there.
// It returns the guest range holding the copy.
func (b *Bridge) CopyIn(data []byte, align uint32) (Range, error) {
	size := uint32(len(data))
	if b.alloc == nil {
		return Range{}, errors.AllocationFailed(size, align,
			errors.NotFound(errors.PhaseBridge, "export", "cabi_realloc"))
	}
	ptr, err := b.alloc.Alloc(size, align)
	if err != nil {
		if errors.KindOf(err) == errors.KindRunInterrupted {
			return Range{}, err
		}
		return Range{}, errors.AllocationFailed(size, align, err)
	}
	r, err := b.Check(ptr, size)
	if err != nil {
		return Range{}, err
	}
	if size == 0 {
		return r, nil
	}
	if err := b.mem.Write(r.Offset, data); err != nil {
		return Range{}, errors.New(errors.PhaseBridge, errors.KindMemorySafety).
			Op("copy_in").Cause(err).Build()
	}
	return r, nil
}

// WriteOutput stores out into the output area at offset.
func (b *Bridge) WriteOutput(offset uint32, out Output) error {
	r, err := b.Check(offset, OutputSize)
	if err != nil {
		return err
	}
	for i, v := range [3]uint32{out.Status, out.A, out.B} {
		if err := b.mem.WriteU32(r.Offset+uint32(i)*4, v); err != nil {
			return errors.New(errors.PhaseBridge, errors.KindMemorySafety).
				Op("write_output").Cause(err).Build()
		}
	}
	return nil
}

// ReadOutput loads the output area at offset.
func (b *Bridge) ReadOutput(offset uint32) (Output, error) {
	r, err := b.Check(offset, OutputSize)
	if err != nil {
		return Output{}, err
	}
	var slots [3]uint32
	for i := range slots {
		v, err := b.mem.ReadU32(r.Offset + uint32(i)*4)
		if err != nil {
			return Output{}, errors.New(errors.PhaseBridge, errors.KindMemorySafety).
				Op("read_output").Cause(err).Build()
		}
		slots[i] = v
	}
	return Output{Status: slots[0], A: slots[1], B: slots[2]}, nil
}

// Succeed reports a scalar result.
func (b *Bridge) Succeed(offset, value uint32) error {
	return b.WriteOutput(offset, Scalar(value))
}

// SucceedPayload copies payload into the guest and reports its location.
func (b *Bridge) SucceedPayload(offset uint32, payload []byte, align uint32) error {
	if _, err := b.Check(offset, OutputSize); err != nil {
		return err
	}
	r, err := b.CopyIn(payload, align)
	if err != nil {
		return err
	}
	return b.WriteOutput(offset, Payload(r))
}

// Fail copies the error text into the guest and reports failure.
func (b *Bridge) Fail(offset uint32, cause error) error {
	if _, err := b.Check(offset, OutputSize); err != nil {
		return err
	}
	r, err := b.CopyIn([]byte(cause.Error()), 1)
	if err != nil {
		return err
	}
	return b.WriteOutput(offset, Failure(r))
}

// ReadString reads the text an output area points at.
func (b *Bridge) ReadString(out Output) (string, error) {
	data, err := b.CopyOut(out.A, out.B)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
