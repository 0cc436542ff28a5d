package resource

import (
	"github.com/wippyai/profiling-runtime/errors"
)

// Table maps handles to typed host values and notifies observers of
// lifecycle changes.
type Table struct {
	backend   *LocalBackend
	observers []Observer
	closed    bool
}

// NewTable creates a new table with a LocalBackend.
func NewTable() *Table {
	return &Table{
		backend: NewLocalBackend(),
	}
}

// Push adds a value and returns its handle. It fails only when the table
// is exhausted or closed.
func (t *Table) Push(typ Type, value any) (Handle, error) {
	if t.closed {
		return 0, errors.New(errors.PhaseTable, errors.KindInvalidState).Detail("table closed").Build()
	}

	handle, err := t.backend.Create(typ, value)
	if err != nil {
		return 0, errors.TableFull()
	}

	t.notify(Event{Event: EventCreated, Handle: handle, Type: typ, Value: value})
	return handle, nil
}

// CanPush reports whether a Push would currently succeed. Callers that
// acquire native state before pushing check it first.
func (t *Table) CanPush() bool {
	return !t.closed && t.backend.canCreate()
}

// Get borrows the value behind handle. The handle must name a live value
// of type typ.
func (t *Table) Get(handle Handle, typ Type) (any, error) {
	value, actual, ok := t.backend.Get(handle)
	if !ok {
		return nil, errors.InvalidHandle(uint32(handle))
	}
	if actual.ID != typ.ID {
		return nil, errors.WrongKind(uint32(handle), typ.Name, actual.Name)
	}
	return value, nil
}

// Delete moves the value out of the table. The handle becomes invalid and
// the value's Drop method is NOT called: ownership passes to the caller.
func (t *Table) Delete(handle Handle, typ Type) (any, error) {
	value, err := t.Get(handle, typ)
	if err != nil {
		return nil, err
	}
	t.backend.Remove(handle)
	t.notify(Event{Event: EventMoved, Handle: handle, Type: typ, Value: value})
	return value, nil
}

// Drop removes the value and releases it.
func (t *Table) Drop(handle Handle, typ Type) error {
	value, err := t.Get(handle, typ)
	if err != nil {
		return err
	}
	t.backend.Remove(handle)

	if d, ok := value.(Dropper); ok {
		d.Drop()
	}

	t.notify(Event{Event: EventDropped, Handle: handle, Type: typ, Value: value})
	return nil
}

// Replace deletes handle and inserts value under a fresh handle as one
// step. On error the table is unchanged: the old handle is still valid and
// no new handle exists.
func (t *Table) Replace(handle Handle, typ Type, newType Type, value any) (Handle, error) {
	old, err := t.Get(handle, typ)
	if err != nil {
		return 0, err
	}
	if t.closed {
		return 0, errors.New(errors.PhaseTable, errors.KindInvalidState).Detail("table closed").Build()
	}

	if !t.backend.canReplace(handle) {
		return 0, errors.TableFull()
	}

	// canReplace guarantees Create below finds a slot.
	t.backend.Remove(handle)
	next, err := t.backend.Create(newType, value)
	if err != nil {
		return 0, errors.TableFull()
	}

	t.notify(Event{Event: EventMoved, Handle: handle, Type: typ, Value: old})
	t.notify(Event{Event: EventCreated, Handle: next, Type: newType, Value: value})
	return next, nil
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table) Unsubscribe(o Observer) {
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of live resources.
func (t *Table) Len() int {
	return t.backend.Len()
}

// Each iterates over live resources. Returning false stops iteration.
func (t *Table) Each(fn func(Handle, Type, any) bool) {
	t.backend.Each(fn)
}

// Clear drops all resources.
func (t *Table) Clear() {
	type live struct {
		h   Handle
		typ Type
	}
	// Collect first; Drop mutates the backend.
	var all []live
	t.backend.Each(func(h Handle, typ Type, _ any) bool {
		all = append(all, live{h, typ})
		return true
	})
	for _, l := range all {
		_ = t.Drop(l.h, l.typ)
	}
}

// Close drops all resources and stops accepting new ones.
func (t *Table) Close() error {
	if t.closed {
		return nil
	}
	t.Clear()
	t.closed = true
	return t.backend.Close()
}

func (t *Table) notify(e Event) {
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}

// Get borrows the value behind handle as a T.
func Get[T any](t *Table, handle Handle, typ Type) (T, error) {
	var zero T
	value, err := t.Get(handle, typ)
	if err != nil {
		return zero, err
	}
	v, ok := value.(T)
	if !ok {
		return zero, errors.WrongKind(uint32(handle), typ.Name, "foreign value")
	}
	return v, nil
}

// Take moves the value behind handle out of the table as a T.
func Take[T any](t *Table, handle Handle, typ Type) (T, error) {
	var zero T
	if _, err := Get[T](t, handle, typ); err != nil {
		return zero, err
	}
	value, err := t.Delete(handle, typ)
	if err != nil {
		return zero, err
	}
	return value.(T), nil
}
