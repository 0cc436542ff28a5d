package runtime_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/profiling-runtime/codec"
	"github.com/wippyai/profiling-runtime/hostop"
	"github.com/wippyai/profiling-runtime/internal/wasmtest"
	"github.com/wippyai/profiling-runtime/runtime"
)

const (
	dataBase = 512
	heapBase = 8192
)

// guest assembles a profiling module that imports ops by name.
type guest struct {
	t      *testing.T
	m      *wasmtest.Module
	ops    map[string]uint32
	cursor uint32
}

func newGuest(t *testing.T, ops ...string) *guest {
	t.Helper()
	g := importGuest(t, ops...)
	g.m.BumpAllocator(heapBase)
	return g
}

// spinningGuest is a guest whose cabi_realloc never returns, so any host
// op that copies a result or error text in blocks inside the guest.
func spinningGuest(t *testing.T, ops ...string) *guest {
	t.Helper()
	g := importGuest(t, ops...)
	params := []wasmtest.ValType{wasmtest.I32, wasmtest.I32, wasmtest.I32, wasmtest.I32}
	g.m.Func("cabi_realloc", params, []wasmtest.ValType{wasmtest.I32}, nil,
		wasmtest.Code(wasmtest.Loop(), wasmtest.Br(0), wasmtest.End(), wasmtest.I32Const(0)))
	return g
}

func importGuest(t *testing.T, ops ...string) *guest {
	t.Helper()
	g := &guest{t: t, m: wasmtest.New(), ops: map[string]uint32{}, cursor: dataBase}
	bindings := hostop.NewBindings()
	for _, name := range ops {
		op, ok := bindings.Lookup(name)
		require.True(t, ok, name)
		params := make([]wasmtest.ValType, op.Params+1)
		for i := range params {
			params[i] = wasmtest.I32
		}
		g.ops[name] = g.m.Import(hostop.ModuleName, name, params, nil)
	}
	g.m.Memory(1, "memory")
	return g
}

// put stores the encoding of v in a data segment and returns its range.
func (g *guest) put(v any) (ptr, length uint32) {
	g.t.Helper()
	data, err := codec.Encode(v)
	require.NoError(g.t, err)
	ptr = g.cursor
	g.m.Data(ptr, data)
	g.cursor += uint32(len(data)+7) &^ 7
	return ptr, uint32(len(data))
}

func (g *guest) call(name string, args ...[]byte) []byte {
	idx, ok := g.ops[name]
	require.True(g.t, ok, "op %s not imported", name)
	return wasmtest.Code(append(args, wasmtest.Call(idx))...)
}

// main finishes the module with the given entry body.
func (g *guest) main(body ...[]byte) runtime.Profiling {
	g.m.Func("main", nil, nil, nil, wasmtest.Code(body...))
	return runtime.Profiling{Bytes: g.m.Bytes()}
}

// expectOK traps unless the output area at ret reports success.
func expectOK(ret uint32) []byte {
	return wasmtest.Code(
		wasmtest.U32(ret), wasmtest.I32Load(0), wasmtest.I32Eqz(),
		wasmtest.If(), wasmtest.Unreachable(), wasmtest.End(),
	)
}

// expectFail traps unless the output area at ret reports failure.
func expectFail(ret uint32) []byte {
	return wasmtest.Code(
		wasmtest.U32(ret), wasmtest.I32Load(0),
		wasmtest.If(), wasmtest.Unreachable(), wasmtest.End(),
	)
}

// handleAt pushes the scalar result stored in the output area at ret.
func handleAt(ret uint32) []byte {
	return wasmtest.Code(wasmtest.U32(ret), wasmtest.I32Load(4))
}

func pair(ptr, length uint32) []byte {
	return wasmtest.Code(wasmtest.U32(ptr), wasmtest.U32(length))
}

func newRuntime(t *testing.T, opts ...runtime.Option) *runtime.Runtime {
	t.Helper()
	ctx := context.Background()
	rt, err := runtime.New(ctx, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(ctx) })
	return rt
}
