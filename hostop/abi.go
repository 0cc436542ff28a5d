package hostop

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	profiling "github.com/wippyai/profiling-runtime"
	"github.com/wippyai/profiling-runtime/bridge"
	"github.com/wippyai/profiling-runtime/codec"
	"github.com/wippyai/profiling-runtime/errors"
	"github.com/wippyai/profiling-runtime/perf"
	"github.com/wippyai/profiling-runtime/resource"
)

// ModuleName is the import module guests use for every raw operation.
const ModuleName = "op"

type result struct {
	payload   []byte
	scalar    uint32
	align     uint32
	isPayload bool
}

func scalar(v uint32) result { return result{scalar: v} }

func encoded(v any) (result, error) {
	data, err := codec.Encode(v)
	if err != nil {
		return result{}, err
	}
	return result{payload: data, align: 1, isPayload: true}, nil
}

type callFunc func(h *Host, b *bridge.Bridge, args []uint32) (result, error)

// Op is one raw operation. Every op takes the output-area pointer first,
// followed by Params further i32 arguments, and returns nothing.
type Op struct {
	call   callFunc
	Name   string
	Params int
}

// Bindings is the set of raw operations exported to guests.
type Bindings struct {
	ops []Op
}

// NewBindings returns every raw operation.
func NewBindings() *Bindings {
	return &Bindings{ops: rawOps()}
}

func (b *Bindings) Ops() []Op { return b.ops }

func (b *Bindings) Lookup(name string) (Op, bool) {
	for _, op := range b.ops {
		if op.Name == name {
			return op, true
		}
	}
	return Op{}, false
}

// Export adds every operation to a host module builder.
func (b *Bindings) Export(builder wazero.HostModuleBuilder) wazero.HostModuleBuilder {
	for _, op := range b.ops {
		params := make([]api.ValueType, op.Params+1)
		for i := range params {
			params[i] = api.ValueTypeI32
		}
		builder = builder.NewFunctionBuilder().
			WithGoModuleFunction(b.goFunc(op), params, nil).
			WithName(op.Name).
			Export(op.Name)
	}
	return builder
}

func (b *Bindings) goFunc(op Op) api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		mem := bridge.WrapMemory(mod.Memory())
		alloc := bridge.WrapAllocator(ctx, mod.ExportedFunction(bridge.AllocatorExport))
		b.Invoke(ctx, op, mem, alloc, stack)
	}
}

// Invoke runs op against guest memory. stack holds the raw i32 arguments,
// output area first. Fatal errors panic after being recorded in the
// context's State.
func (b *Bindings) Invoke(ctx context.Context, op Op, mem bridge.Memory, alloc profiling.Allocator, stack []uint64) {
	s := mustState(ctx)
	start := time.Now()
	defer func() { s.metrics.observeDuration(op.Name, time.Since(start)) }()

	args := make([]uint32, len(stack))
	for i, v := range stack {
		args[i] = uint32(v)
	}
	ret := args[0]

	br := bridge.New(mem, alloc)
	if _, err := br.Check(ret, bridge.OutputSize); err != nil {
		s.abort(op.Name, err)
	}

	res, err := op.call(NewHost(s), br, args[1:])
	if err != nil {
		if errors.IsFatal(err) || errors.KindOf(err) == errors.KindRunInterrupted {
			s.abort(op.Name, err)
		}
		s.Logger.Debug("host op failed", zap.String("op", op.Name), zap.Error(err))
		if werr := br.Fail(ret, err); werr != nil {
			s.abort(op.Name, werr)
		}
		s.metrics.observeCall(op.Name, resultError)
		return
	}

	var werr error
	if res.isPayload {
		werr = br.SucceedPayload(ret, res.payload, res.align)
	} else {
		werr = br.Succeed(ret, res.scalar)
	}
	if werr != nil {
		s.abort(op.Name, werr)
	}
	s.metrics.observeCall(op.Name, resultOK)
}

// decodeArgs copies and decodes consecutive (ptr, len) pairs into vs.
func decodeArgs(h *Host, b *bridge.Bridge, args []uint32, vs ...any) error {
	for i, v := range vs {
		data, err := b.CopyOut(args[2*i], args[2*i+1])
		if err != nil {
			return err
		}
		if err := codec.Decode(data, v); err != nil {
			if ce := h.state.Logger.Check(zap.DebugLevel, "malformed payload"); ce != nil {
				diag, derr := codec.Diagnose(data)
				if derr != nil {
					diag = derr.Error()
				}
				ce.Write(zap.Int("arg", i), zap.String("cbor", diag))
			}
			return err
		}
	}
	return nil
}

func unit(fn func(*Host, resource.Handle) error) callFunc {
	return func(h *Host, _ *bridge.Bridge, args []uint32) (result, error) {
		return scalar(0), fn(h, resource.Handle(args[0]))
	}
}

func create(fn func(*Host, resource.Handle) (resource.Handle, error)) callFunc {
	return func(h *Host, _ *bridge.Bridge, args []uint32) (result, error) {
		handle, err := fn(h, resource.Handle(args[0]))
		return scalar(uint32(handle)), err
	}
}

func stat[T any](fn func(*Host, resource.Handle) (T, error)) callFunc {
	return func(h *Host, _ *bridge.Bridge, args []uint32) (result, error) {
		v, err := fn(h, resource.Handle(args[0]))
		if err != nil {
			return result{}, err
		}
		return encoded(v)
	}
}

func rawOps() []Op {
	return []Op{
		{Name: "counter_new", Params: 6, call: func(h *Host, b *bridge.Bridge, args []uint32) (result, error) {
			var (
				process perf.Process
				cpu     perf.Cpu
				cfg     perf.Config
			)
			if err := decodeArgs(h, b, args, &process, &cpu, &cfg); err != nil {
				return result{}, err
			}
			handle, err := h.CounterNew(process, cpu, cfg)
			return scalar(uint32(handle)), err
		}},
		{Name: "counter_enable", Params: 1, call: unit((*Host).CounterEnable)},
		{Name: "counter_disable", Params: 1, call: unit((*Host).CounterDisable)},
		{Name: "counter_reset", Params: 1, call: unit((*Host).CounterReset)},
		{Name: "counter_stat", Params: 1, call: stat((*Host).CounterStat)},
		{Name: "counter_drop", Params: 1, call: unit((*Host).CounterDrop)},

		{Name: "counter_group_new", Params: 4, call: func(h *Host, b *bridge.Bridge, args []uint32) (result, error) {
			var (
				process perf.Process
				cpu     perf.Cpu
			)
			if err := decodeArgs(h, b, args, &process, &cpu); err != nil {
				return result{}, err
			}
			handle, err := h.CounterGroupNew(process, cpu)
			return scalar(uint32(handle)), err
		}},
		{Name: "counter_group_add_member", Params: 3, call: func(h *Host, b *bridge.Bridge, args []uint32) (result, error) {
			var cfg perf.Config
			if err := decodeArgs(h, b, args[1:], &cfg); err != nil {
				return result{}, err
			}
			handle, err := h.CounterGroupAddMember(resource.Handle(args[0]), cfg)
			return scalar(uint32(handle)), err
		}},
		{Name: "counter_group_enable", Params: 1, call: create((*Host).CounterGroupEnable)},
		{Name: "counter_group_stat", Params: 1, call: stat((*Host).CounterGroupStat)},
		{Name: "counter_group_drop", Params: 1, call: unit((*Host).CounterGroupDrop)},

		{Name: "fixed_counter_group_enable", Params: 1, call: unit((*Host).FixedCounterGroupEnable)},
		{Name: "fixed_counter_group_disable", Params: 1, call: unit((*Host).FixedCounterGroupDisable)},
		{Name: "fixed_counter_group_reset", Params: 1, call: unit((*Host).FixedCounterGroupReset)},
		{Name: "fixed_counter_group_stat", Params: 1, call: stat((*Host).FixedCounterGroupStat)},
		{Name: "fixed_counter_group_drop", Params: 1, call: unit((*Host).FixedCounterGroupDrop)},

		{Name: "counter_guard_event_id", Params: 1, call: func(h *Host, _ *bridge.Bridge, args []uint32) (result, error) {
			id, err := h.CounterGuardEventID(resource.Handle(args[0]))
			if err != nil {
				return result{}, err
			}
			payload := make([]byte, 8)
			binary.LittleEndian.PutUint64(payload, id)
			return result{payload: payload, align: 8, isPayload: true}, nil
		}},
		{Name: "counter_guard_stat", Params: 1, call: stat((*Host).CounterGuardStat)},
		{Name: "counter_guard_drop", Params: 1, call: unit((*Host).CounterGuardDrop)},
	}
}
