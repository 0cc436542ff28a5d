package runtime_test

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/profiling-runtime/errors"
	"github.com/wippyai/profiling-runtime/hostop"
	"github.com/wippyai/profiling-runtime/internal/wasmtest"
	"github.com/wippyai/profiling-runtime/perf"
	"github.com/wippyai/profiling-runtime/perf/perftest"
	"github.com/wippyai/profiling-runtime/runtime"
)

var cycles = perf.Config{Event: perf.HardwareEvent(perf.HardwareCPUCycles)}

func newState(t *testing.T) (*hostop.State, *perftest.Device) {
	t.Helper()
	dev := perftest.New()
	s := hostop.NewState(dev)
	t.Cleanup(func() { _ = s.Close() })
	return s, dev
}

func groupModule(t *testing.T) runtime.Profiling {
	g := newGuest(t, "counter_group_new", "counter_group_add_member", "counter_group_enable", "fixed_counter_group_stat")
	pp, pl := g.put(perf.CurrentProcess())
	cp, cl := g.put(perf.AnyCpu())
	fp, fl := g.put(cycles)

	const r1, r2, r3, r4 = 64, 80, 96, 112
	return g.main(
		g.call("counter_group_new", wasmtest.U32(r1), pair(pp, pl), pair(cp, cl)), expectOK(r1),
		g.call("counter_group_add_member", wasmtest.U32(r2), handleAt(r1), pair(fp, fl)), expectOK(r2),
		g.call("counter_group_enable", wasmtest.U32(r3), handleAt(r1)), expectOK(r3),
		g.call("fixed_counter_group_stat", wasmtest.U32(r4), handleAt(r3)), expectOK(r4),
	)
}

func TestRunGroupLifecycle(t *testing.T) {
	rt := newRuntime(t)
	state, dev := newState(t)

	out, err := rt.Run(context.Background(), state, groupModule(t))
	require.NoError(t, err)
	assert.Same(t, state, out)

	var types []any
	for _, r := range state.Resources() {
		types = append(types, r.Type)
	}
	assert.ElementsMatch(t, []any{hostop.CounterGuardType, hostop.FixedCounterGroupType}, types)

	fds := dev.FDs()
	require.Len(t, fds, 1)
	assert.True(t, dev.IsEnabled(fds[0]))

	require.NoError(t, state.Close())
	assert.Zero(t, dev.Live())
}

func TestRunReportsOperationFailure(t *testing.T) {
	rt := newRuntime(t)
	state, _ := newState(t)

	g := newGuest(t, "fixed_counter_group_stat")
	p := g.main(g.call("fixed_counter_group_stat", wasmtest.U32(64), wasmtest.U32(999)), expectFail(64))

	_, err := rt.Run(context.Background(), state, p)
	require.NoError(t, err)
	assert.Nil(t, state.Fatal())
}

func TestRunAbortsOnOutOfBounds(t *testing.T) {
	rt := newRuntime(t)
	state, dev := newState(t)

	g := newGuest(t, "counter_group_new")
	pp, pl := g.put(perf.CurrentProcess())
	cp, cl := g.put(perf.AnyCpu())
	p := g.main(
		g.call("counter_group_new", wasmtest.U32(64), pair(pp, pl), pair(cp, cl)), expectOK(64),
		g.call("counter_group_new", wasmtest.U32(80), pair(0xFFFFFF00, 100), pair(cp, cl)),
		// not reached
		g.call("counter_group_new", wasmtest.U32(96), pair(pp, pl), pair(cp, cl)),
	)

	_, err := rt.Run(context.Background(), state, p)
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
	assert.True(t, stderrors.Is(err, errors.ErrMemorySafety))
	assert.Equal(t, err, state.Fatal())

	// resources created before the abort stay with the state until Close
	assert.Equal(t, 1, state.Table.Len())
	require.NoError(t, state.Close())
	assert.Zero(t, dev.Live())
}

func spinModule(t *testing.T) runtime.Profiling {
	g := newGuest(t)
	return g.main(wasmtest.Loop(), wasmtest.Br(0), wasmtest.End())
}

func TestRunInterruptedByBudget(t *testing.T) {
	rt := newRuntime(t)
	state, _ := newState(t)

	var refills int
	budget := runtime.Budget{
		Ticks:    2,
		Interval: time.Millisecond,
		OnExhausted: func(context.Context) (uint64, bool) {
			refills++
			return 2, refills < 2
		},
	}

	_, err := rt.Run(context.Background(), state, spinModule(t), runtime.WithBudget(budget))
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrRunInterrupted))
	assert.Equal(t, 2, refills)
	assert.Nil(t, state.Fatal())
}

func TestRunConfiguredBudget(t *testing.T) {
	cfg := runtime.DefaultConfig()
	cfg.Budget = runtime.BudgetConfig{Ticks: 3, Interval: time.Millisecond, Refills: 1}
	rt := newRuntime(t, runtime.WithConfig(cfg))
	state, _ := newState(t)

	_, err := rt.Run(context.Background(), state, spinModule(t))
	assert.Equal(t, errors.KindRunInterrupted, errors.KindOf(err))
}

func stuckInHostOp(t *testing.T) runtime.Profiling {
	g := spinningGuest(t, "counter_stat")
	// the failure text for the unknown handle has to be copied into the guest
	return g.main(g.call("counter_stat", wasmtest.U32(64), wasmtest.U32(999)))
}

func TestRunInterruptedInsideHostOp(t *testing.T) {
	rt := newRuntime(t)
	state, _ := newState(t)

	budget := runtime.Budget{Ticks: 3, Interval: time.Millisecond}
	_, err := rt.Run(context.Background(), state, stuckInHostOp(t), runtime.WithBudget(budget))
	require.Error(t, err)
	assert.Equal(t, errors.KindRunInterrupted, errors.KindOf(err), "got %v", err)
	assert.False(t, errors.IsFatal(err))
	assert.Nil(t, state.Fatal())
}

func TestRunCancelledInsideHostOp(t *testing.T) {
	rt := newRuntime(t)
	state, _ := newState(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := rt.Run(ctx, state, stuckInHostOp(t))
	require.Error(t, err)
	assert.Equal(t, errors.KindRunInterrupted, errors.KindOf(err), "got %v", err)
	assert.Nil(t, state.Fatal())
}

func TestRunCancelledContext(t *testing.T) {
	rt := newRuntime(t)
	state, _ := newState(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := rt.Run(ctx, state, spinModule(t))
	assert.Equal(t, errors.KindRunInterrupted, errors.KindOf(err))
}

func TestRunTrap(t *testing.T) {
	rt := newRuntime(t)
	state, _ := newState(t)

	g := newGuest(t)
	_, err := rt.Run(context.Background(), state, g.main(wasmtest.Unreachable()))
	assert.Equal(t, errors.KindTrap, errors.KindOf(err))
	assert.False(t, errors.IsFatal(err))
}

func TestRunMissingEntry(t *testing.T) {
	rt := newRuntime(t)
	state, _ := newState(t)

	g := newGuest(t)
	_, err := rt.Run(context.Background(), state, g.main(), runtime.WithEntry("profile"))
	assert.Equal(t, errors.KindNotFound, errors.KindOf(err))
}

func TestCompileRejectsForeignImports(t *testing.T) {
	rt := newRuntime(t)

	m := wasmtest.New()
	m.Import("env", "abort", nil, nil)
	m.Memory(1, "memory")
	m.BumpAllocator(heapBase)
	m.Func("main", nil, nil, nil, nil)

	_, err := rt.Precompile(context.Background(), runtime.Profiling{Bytes: m.Bytes()})
	require.Error(t, err)
	assert.Equal(t, errors.KindNotFound, errors.KindOf(err))
	assert.Zero(t, rt.CachedModules())
}

func TestCompileRequiresAllocator(t *testing.T) {
	rt := newRuntime(t)

	m := wasmtest.New().Memory(1, "memory")
	m.Func("main", nil, nil, nil, nil)

	_, err := rt.Precompile(context.Background(), runtime.Profiling{Bytes: m.Bytes()})
	assert.Contains(t, err.Error(), "cabi_realloc")
}

func TestPrecompile(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)

	aot := runtime.Profiling{Bytes: []byte("opaque"), IsAOT: true}
	same, err := rt.Precompile(ctx, aot)
	require.NoError(t, err)
	assert.Equal(t, aot.Bytes, same.Bytes)
	assert.False(t, same.Precompiled())
	assert.Zero(t, rt.CachedModules())

	src := groupModule(t)
	first, err := rt.Precompile(ctx, src)
	require.NoError(t, err)
	assert.True(t, first.IsAOT)
	assert.True(t, first.Precompiled())
	assert.Equal(t, src.Bytes, first.Bytes)

	second, err := rt.Precompile(ctx, runtime.Profiling{Bytes: append([]byte(nil), src.Bytes...)})
	require.NoError(t, err)
	assert.True(t, second.Precompiled())
	assert.Equal(t, 1, rt.CachedModules())

	// one runtime, many sequential runs
	for range 3 {
		state, dev := newState(t)
		_, err := rt.Run(ctx, state, first)
		require.NoError(t, err)
		assert.Equal(t, 2, state.Table.Len())
		require.NoError(t, state.Close())
		assert.Zero(t, dev.Live())
	}
}

func TestPrecompileEmpty(t *testing.T) {
	rt := newRuntime(t)
	_, err := rt.Precompile(context.Background(), runtime.Profiling{})
	assert.Equal(t, errors.KindInvalidInput, errors.KindOf(err))
}

func TestDiskCompilationCache(t *testing.T) {
	ctx := context.Background()
	cfg := runtime.DefaultConfig()
	cfg.CacheDir = t.TempDir()
	cfg.MemoryLimitPages = 16

	for range 2 {
		rt, err := runtime.New(ctx, runtime.WithConfig(cfg))
		require.NoError(t, err)

		p, err := rt.Precompile(ctx, groupModule(t))
		require.NoError(t, err)
		state, _ := newState(t)
		_, err = rt.Run(ctx, state, p)
		require.NoError(t, err)
		require.NoError(t, rt.Close(ctx))
	}
}
