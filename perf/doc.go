// Package perf implements the counting core: single counters and counter
// groups over Linux perf_event.
//
// # Lifecycle
//
// A Counter is created disabled and may be enabled, disabled, reset and
// read any number of times.
//
// A CounterGroup is a builder scoped to one (Process, Cpu) target. Each
// AddMember opens one more event in the group (the first member is the
// leader) and yields a CounterGuard for it. Enable consumes the builder and
// returns a FixedCounterGroup; no members can be added afterwards.
//
//	g, _ := perf.NewCounterGroup(dev, perf.Target{Process: perf.CurrentProcess(), Cpu: perf.AnyCpu()})
//	cycles, _ := g.AddMember(perf.Config{Event: perf.HardwareEvent(perf.HardwareCPUCycles)})
//	fixed, _ := g.Enable()
//	stat, _ := fixed.Stat()    // every member, one consistent read
//	mine, _ := cycles.Stat()   // just this member
//
// Group reads return members in insertion order, together with one
// time-enabled/time-running pair so ratios between members stay valid under
// multiplexing.
//
// # Guards
//
// A CounterGuard is a weak reference into its group. It does not keep the
// group alive: once the owning group is dropped every guard operation fails
// with an invalid-handle error.
//
// # Native Device
//
// Native operations go through the Device interface. NewDevice returns the
// perf_event_open implementation on Linux and an always-failing device on
// other platforms. Package perftest provides a deterministic fake.
package perf
