// Package runtime executes profiling modules.
//
// # Quick Start
//
//	ctx := context.Background()
//	rt, err := runtime.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	p, err := rt.Precompile(ctx, runtime.Profiling{Bytes: wasmBytes})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	state := hostop.NewState(perf.NewDevice())
//	defer state.Close()
//
//	state, err = rt.Run(ctx, state, p)
//
// # Guest Contract
//
// A profiling module is a core wasm module that imports its operations
// from the "op" module and exports:
//
//	memory        linear memory
//	cabi_realloc  (old_ptr, old_size, align, new_size) -> ptr
//	main          () -> (), the entry point (configurable)
//
// Start functions are not run; only the entry point is called.
//
// # Precompilation
//
// Precompile compiles a module once and caches it in-process, keyed by the
// BLAKE3 hash of its bytes. A Profiling already marked IsAOT is returned
// unchanged. With Config.CacheDir set, compiled code also persists on disk
// across processes.
//
// # Interruption
//
// A run may carry a Budget of ticks. A ticker drains it while the guest
// executes; when it reaches zero OnExhausted may grant a refill. Without a
// refill the run is cancelled and the guest stops at its next safe point
// (a loop back-edge or call), so a spinning guest cannot hold the host.
// Cancelling the caller's context has the same effect.
//
// # Results
//
// Run always returns the state it was given, including resources the
// guest created before an abort. Close the state to release them.
package runtime
