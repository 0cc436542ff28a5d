package runtime

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/profiling-runtime/errors"
	"github.com/wippyai/profiling-runtime/hostop"
)

type runOptions struct {
	entry  string
	budget Budget
}

// RunOption configures a single run.
type RunOption func(*runOptions)

// WithBudget bounds the run. It replaces the configured budget.
func WithBudget(b Budget) RunOption {
	return func(o *runOptions) {
		o.budget = b
	}
}

// WithEntry calls a different export than the configured entry.
func WithEntry(name string) RunOption {
	return func(o *runOptions) {
		o.entry = name
	}
}

// Run instantiates p and calls its entry point with state attached to
// every host call. The state is returned in every case, holding whatever
// resources the guest left behind.
//
// A memory-safety violation inside a host call is returned as is. An
// exhausted budget or a cancelled ctx yields a run-interrupted error, and
// any other guest failure a trap error.
func (r *Runtime) Run(ctx context.Context, state *hostop.State, p Profiling, opts ...RunOption) (*hostop.State, error) {
	o := runOptions{entry: r.cfg.Entry, budget: r.cfg.Budget.Budget()}
	for _, opt := range opts {
		opt(&o)
	}

	compiled := p.compiled
	if compiled == nil {
		c, err := r.compile(ctx, p.Bytes)
		if err != nil {
			return state, err
		}
		compiled = c
	}

	runCtx, cancel := context.WithCancel(hostop.WithState(ctx, state))
	defer cancel()

	mod, err := r.engine.InstantiateModule(runCtx, compiled,
		wazero.NewModuleConfig().WithName("").WithStartFunctions())
	if err != nil {
		return state, errors.Instantiation(err)
	}
	defer mod.Close(context.WithoutCancel(ctx))

	entry := mod.ExportedFunction(o.entry)
	if entry == nil {
		return state, errors.NotFound(errors.PhaseRuntime, "entry export", o.entry)
	}

	var (
		interrupted atomic.Bool
		g           errgroup.Group
		done        = make(chan struct{})
		start       = time.Now()
	)
	g.Go(func() error {
		defer close(done)
		_, err := entry.Call(runCtx)
		return err
	})
	if o.budget.Ticks > 0 {
		g.Go(func() error {
			o.budget.watch(runCtx, done, func() {
				interrupted.Store(true)
				cancel()
			})
			return nil
		})
	}
	err = g.Wait()

	log := r.logger.With(zap.String("entry", o.entry), zap.Duration("elapsed", time.Since(start)),
		zap.Int("resources", state.Table.Len()))
	switch {
	case state.Fatal() != nil:
		log.Error("run aborted", zap.Error(state.Fatal()))
		return state, state.Fatal()
	case err == nil:
		log.Debug("run finished")
		return state, nil
	case interrupted.Load():
		log.Warn("run interrupted: budget exhausted")
		return state, errors.RunInterrupted(err)
	case ctx.Err() != nil:
		log.Warn("run interrupted: context done", zap.Error(ctx.Err()))
		return state, errors.RunInterrupted(ctx.Err())
	default:
		log.Debug("guest trapped", zap.Error(err))
		return state, errors.Trap(err)
	}
}

// watch drains the budget once per interval until done is closed, calling
// stop when it runs out without a refill.
func (b Budget) watch(ctx context.Context, done <-chan struct{}, stop func()) {
	interval := b.Interval
	if interval <= 0 {
		interval = defaultTickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	remaining := b.Ticks
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		remaining--
		if remaining > 0 {
			continue
		}
		if b.OnExhausted != nil {
			if refill, ok := b.OnExhausted(ctx); ok && refill > 0 {
				remaining = refill
				continue
			}
		}
		stop()
		return
	}
}
