package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/tetratelabs/wazero"

	"github.com/wippyai/profiling-runtime/errors"
	"github.com/wippyai/profiling-runtime/internal/wasmtest"
)

// memoryWASM is a minimal module with 1 page of memory exported as "memory".
var memoryWASM = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic
	0x01, 0x00, 0x00, 0x00, // version
	0x05, 0x03, 0x01, 0x00, 0x01, // memory section: 1 page, no max
	0x07, 0x0a, 0x01, // export section: 10 bytes, 1 export
	0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, // name: "memory"
	0x02, 0x00, // kind: memory, index 0
}

func TestWrapNil(t *testing.T) {
	if WrapMemory(nil) != nil {
		t.Error("expected nil for nil memory")
	}
	if WrapAllocator(context.Background(), nil) != nil {
		t.Error("expected nil for nil function")
	}
}

func TestForModule(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	mod, err := rt.Instantiate(ctx, memoryWASM)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	defer mod.Close(ctx)

	b := ForModule(ctx, mod)

	if _, err := b.Check(0, 65536); err != nil {
		t.Errorf("full page should be in bounds: %v", err)
	}
	if _, err := b.Check(65535, 2); err == nil {
		t.Error("expected out of bounds past the page")
	}

	if err := b.Succeed(8, 7); err != nil {
		t.Fatalf("Succeed: %v", err)
	}
	out, err := b.ReadOutput(8)
	if err != nil {
		t.Fatalf("ReadOutput: %v", err)
	}
	if out != (Output{Status: StatusSuccess, A: 7}) {
		t.Errorf("output = %+v", out)
	}

	// no cabi_realloc export
	if _, err := b.CopyIn([]byte("x"), 1); err == nil {
		t.Error("expected allocation failure without cabi_realloc")
	}
}

func TestAllocInterruptedByContext(t *testing.T) {
	m := wasmtest.New().Memory(1, "memory")
	// cabi_realloc that never returns
	m.Func(AllocatorExport, []wasmtest.ValType{wasmtest.I32, wasmtest.I32, wasmtest.I32, wasmtest.I32},
		[]wasmtest.ValType{wasmtest.I32}, nil,
		wasmtest.Code(wasmtest.Loop(), wasmtest.Br(0), wasmtest.End(), wasmtest.I32Const(0)))

	ctx := context.Background()
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))
	defer rt.Close(ctx)

	mod, err := rt.Instantiate(ctx, m.Bytes())
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()

	b := ForModule(callCtx, mod)
	_, err = b.CopyIn([]byte("payload"), 1)
	if got := errors.KindOf(err); got != errors.KindRunInterrupted {
		t.Fatalf("kind = %q, want %q (err: %v)", got, errors.KindRunInterrupted, err)
	}
	if errors.IsFatal(err) {
		t.Error("an interrupted allocation must not be fatal")
	}
}
