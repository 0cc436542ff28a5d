package resource

import (
	"errors"
)

var ErrClosed = errors.New("resource backend closed")

const (
	slotBits = 20
	slotMask = 1<<slotBits - 1
	genMax   = 1<<(32-slotBits) - 1

	// Slot field 0 is never issued, so index i is stored as i+1.
	maxSlots = slotMask
)

// LocalBackend is an in-memory generation-checked arena.
type LocalBackend struct {
	entries  []entry
	freeList []uint32
	limit    int
	closed   bool
}

type entry struct {
	value any
	typ   Type
	gen   uint32
	valid bool
}

// NewLocalBackend creates a new in-memory backend.
func NewLocalBackend() *LocalBackend {
	return &LocalBackend{
		entries:  make([]entry, 0, 64),
		freeList: make([]uint32, 0, 16),
		limit:    maxSlots,
	}
}

func makeHandle(idx, gen uint32) Handle {
	return Handle(gen<<slotBits | (idx + 1))
}

// Create stores a value and returns a handle.
func (b *LocalBackend) Create(typ Type, value any) (Handle, error) {
	if b.closed {
		return 0, ErrClosed
	}
	if !b.canCreate() {
		return 0, errTableFull
	}

	if len(b.freeList) > 0 {
		idx := b.freeList[len(b.freeList)-1]
		b.freeList = b.freeList[:len(b.freeList)-1]
		e := &b.entries[idx]
		e.typ = typ
		e.value = value
		e.valid = true
		return makeHandle(idx, e.gen), nil
	}

	b.entries = append(b.entries, entry{typ: typ, value: value, valid: true})
	return makeHandle(uint32(len(b.entries)-1), 0), nil
}

var errTableFull = errors.New("no free slots")

func (b *LocalBackend) canCreate() bool {
	return len(b.freeList) > 0 || len(b.entries) < b.limit
}

func (b *LocalBackend) lookup(handle Handle) (*entry, uint32, bool) {
	slot := uint32(handle) & slotMask
	if slot == 0 {
		return nil, 0, false
	}
	idx := slot - 1
	if int(idx) >= len(b.entries) {
		return nil, 0, false
	}
	e := &b.entries[idx]
	if !e.valid || e.gen != uint32(handle)>>slotBits {
		return nil, 0, false
	}
	return e, idx, true
}

// canReplace reports whether removing handle frees room for one more
// value. A slot on its last generation retires instead of being recycled.
func (b *LocalBackend) canReplace(handle Handle) bool {
	e, _, ok := b.lookup(handle)
	if !ok {
		return false
	}
	return e.gen != genMax || b.canCreate()
}

// Get retrieves a value by handle.
func (b *LocalBackend) Get(handle Handle) (any, Type, bool) {
	e, _, ok := b.lookup(handle)
	if !ok {
		return nil, Type{}, false
	}
	return e.value, e.typ, true
}

// Remove invalidates handle and returns the value it held. The slot is
// recycled under the next generation, or retired when generations run out.
func (b *LocalBackend) Remove(handle Handle) (any, Type, bool) {
	e, idx, ok := b.lookup(handle)
	if !ok {
		return nil, Type{}, false
	}

	value, typ := e.value, e.typ
	e.valid = false
	e.value = nil
	if e.gen == genMax {
		return value, typ, true
	}
	e.gen++
	b.freeList = append(b.freeList, idx)
	return value, typ, true
}

// Close invalidates every handle and drops remaining values.
func (b *LocalBackend) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true

	for i := range b.entries {
		if b.entries[i].valid {
			if d, ok := b.entries[i].value.(Dropper); ok {
				d.Drop()
			}
			b.entries[i].valid = false
			b.entries[i].value = nil
		}
	}

	b.entries = nil
	b.freeList = nil
	return nil
}

// Len returns the number of live resources.
func (b *LocalBackend) Len() int {
	count := 0
	for _, e := range b.entries {
		if e.valid {
			count++
		}
	}
	return count
}

// Each iterates over live resources in slot order.
func (b *LocalBackend) Each(fn func(Handle, Type, any) bool) {
	for i, e := range b.entries {
		if e.valid {
			if !fn(makeHandle(uint32(i), e.gen), e.typ, e.value) {
				break
			}
		}
	}
}
