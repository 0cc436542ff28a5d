// Package resource provides the opaque handle table that lets guest code
// reference host-owned values without ever holding a pointer.
//
// Resources are host-side values (perf counters, counter groups, guards)
// addressed by a Handle. A guest only ever sees the integer.
//
// # Resource Lifecycle
//
//	Push     - insert a value, get a fresh handle
//	Get      - borrow the value; the handle stays valid
//	Delete   - move the value out; the handle becomes invalid
//	Drop     - remove and release the value (Dropper.Drop is called)
//	Replace  - atomic Delete + Push used by consuming transitions
//
// # Handle Table
//
//	table := resource.NewTable()
//
//	h, err := table.Push(CounterType, counter)
//	c, err := resource.Get[*perf.Counter](table, h, CounterType)
//	err = table.Drop(h, CounterType)
//
// # Handle Validity
//
// A handle packs a slot index and a generation. Freeing a slot bumps its
// generation, and a slot whose generation would wrap is retired, so a
// handle value is never issued twice. Any operation on a handle that was
// never issued, was deleted, or names a value of another Type fails with
// an invalid-handle error.
//
// # Observers
//
// Register observers to track resource lifecycle events:
//
//	table.Subscribe(observer)
//
// # Concurrency
//
// A Table belongs to one execution and is NOT safe for concurrent use.
// Host operations of a run execute one at a time, so no locking is done.
package resource
