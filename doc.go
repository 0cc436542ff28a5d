// Package profiling is the host side of a sandboxed profiling runtime.
//
// Untrusted profiling modules run inside wazero and get mediated access to
// Linux perf_event counters. Guest code never holds a native handle or a
// host pointer: it calls host operations with integer handles and
// (pointer, length) pairs into its own linear memory, and reads the outcome
// from a fixed three-slot output area.
//
// # Architecture Overview
//
//	profiling/           Root package with guest Memory and Allocator interfaces
//	├── runtime/         Engine ownership, precompilation, budgeted runs
//	├── hostop/          Host operations exposed to guests (typed and raw ABI)
//	├── perf/            Counter, CounterGroup, CounterGuard, FixedCounterGroup
//	├── bridge/          Guest memory translation and the output-area protocol
//	├── resource/        Generation-checked handle table
//	├── codec/           CBOR encoding of configurations and statistics
//	└── errors/          Structured error types
//
// # Quick Start
//
//	rt, err := runtime.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	prof, err := rt.Precompile(ctx, runtime.Profiling{Bytes: wasmBytes})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	state := hostop.NewState(perf.NewDevice())
//	defer state.Close()
//
//	state, err = rt.Run(ctx, state, prof)
//
// # Call ABI
//
// Every host operation takes the guest offset of a 12-byte output area as
// its first argument and writes [status, a, b] there before returning:
//
//	status=1  a=scalar or payload pointer, b=0 or payload length
//	status=0  a=error text pointer,       b=error text length
//
// # Thread Safety
//
// Runtime may run modules sequentially. A State belongs to one run and is
// NOT safe for concurrent use.
package profiling
