// Package hostop exposes the counting core to guests.
//
// Two binding flavors share one implementation. Host has typed methods
// taking decoded values and returning Go results; it is what embedders
// and tests call directly. The raw bindings exported by Bindings wrap
// each Host method for the core wasm ABI: they take an output-area
// pointer plus scalar handles and (ptr, len) payload pairs, decode the
// payloads, call the typed method, and write the outcome through the
// bridge. Validation order and error text are therefore identical in
// both flavors.
//
// # Execution State
//
// A State holds everything one run may touch: the resource table, the
// native device, the logger and the first fatal error. Raw bindings find
// it in the call context (see WithState), so the host module can be
// registered once and reused across runs.
//
// # Failures
//
// Operation errors (invalid handle, native failure, malformed payload)
// are reported to the guest as a failure output and the run continues.
// Memory-safety violations and failed guest allocations are recorded in
// the State and abort the run: no output is written for them.
package hostop
