package hostop

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/wippyai/profiling-runtime/errors"
	"github.com/wippyai/profiling-runtime/perf"
	"github.com/wippyai/profiling-runtime/resource"
)

// State is the data of one execution. It is not safe for concurrent use.
type State struct {
	Table   *resource.Table
	Device  perf.Device
	Logger  *zap.Logger
	metrics *Metrics
	fatal   error
}

// StateOption configures a State.
type StateOption func(*State)

// WithLogger sets the state's logger.
func WithLogger(l *zap.Logger) StateOption {
	return func(s *State) {
		s.Logger = l
	}
}

// WithMetrics records host calls and live resources into m.
func WithMetrics(m *Metrics) StateOption {
	return func(s *State) {
		s.metrics = m
	}
}

// NewState creates an empty execution state over dev.
func NewState(dev perf.Device, opts ...StateOption) *State {
	s := &State{
		Table:  resource.NewTable(),
		Device: dev,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Logger == nil {
		s.Logger = Logger()
	}
	if s.metrics != nil {
		s.Table.Subscribe(s.metrics)
	}
	return s
}

// Fatal returns the violation that aborted the run, if any.
func (s *State) Fatal() error {
	return s.fatal
}

// abort records err and unwinds the current host call. Only the first
// fatal error is kept. An interrupted run is unwound without being
// recorded, so the runtime reports the interruption.
func (s *State) abort(op string, err error) {
	if errors.KindOf(err) == errors.KindRunInterrupted {
		s.metrics.observeCall(op, resultInterrupted)
		s.Logger.Debug("host call interrupted", zap.String("op", op), zap.Error(err))
		panic(err)
	}
	if s.fatal == nil {
		s.fatal = err
	}
	s.metrics.observeCall(op, resultFatal)
	s.Logger.Error("aborting run", zap.String("op", op), zap.Error(err))
	panic(err)
}

// Resource describes one live table entry.
type Resource struct {
	Type   resource.Type
	Handle resource.Handle
}

// Resources lists live resources ordered by handle.
func (s *State) Resources() []Resource {
	var out []Resource
	s.Table.Each(func(h resource.Handle, typ resource.Type, _ any) bool {
		out = append(out, Resource{Handle: h, Type: typ})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out
}

// Close releases every remaining resource. The state cannot be reused.
func (s *State) Close() error {
	if s.metrics != nil {
		defer s.Table.Unsubscribe(s.metrics)
	}
	return s.Table.Close()
}

type stateKey struct{}

// WithState returns a context carrying s for raw host calls.
func WithState(ctx context.Context, s *State) context.Context {
	return context.WithValue(ctx, stateKey{}, s)
}

// StateFrom returns the state carried by ctx.
func StateFrom(ctx context.Context) (*State, bool) {
	s, ok := ctx.Value(stateKey{}).(*State)
	return s, ok && s != nil
}

func mustState(ctx context.Context) *State {
	s, ok := StateFrom(ctx)
	if !ok {
		panic(errors.New(errors.PhaseHost, errors.KindInvalidState).
			Detail("host call without execution state in context").Build())
	}
	return s
}
