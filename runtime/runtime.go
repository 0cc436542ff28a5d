package runtime

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"github.com/wippyai/profiling-runtime/bridge"
	"github.com/wippyai/profiling-runtime/errors"
	"github.com/wippyai/profiling-runtime/hostop"
)

// Runtime owns the wasm engine and the registered host operations. Runs
// are sequential; a Runtime may be reused for many modules.
type Runtime struct {
	engine   wazero.Runtime
	cache    wazero.CompilationCache
	host     api.Module
	logger   *zap.Logger
	compiled map[[32]byte]wazero.CompiledModule
	cfg      Config
	mu       sync.Mutex
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(r *Runtime) {
		r.cfg = cfg
	}
}

// WithLogger overrides the package logger for this runtime.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runtime) {
		r.logger = l
	}
}

// New creates the engine and registers every host operation under the
// "op" module.
func New(ctx context.Context, opts ...Option) (*Runtime, error) {
	r := &Runtime{
		cfg:      DefaultConfig(),
		logger:   Logger(),
		compiled: make(map[[32]byte]wazero.CompiledModule),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cfg.Entry == "" {
		r.cfg.Entry = DefaultEntry
	}
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}

	rc := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if r.cfg.MemoryLimitPages > 0 {
		rc = rc.WithMemoryLimitPages(r.cfg.MemoryLimitPages)
	}
	if r.cfg.CacheDir != "" {
		cache, err := wazero.NewCompilationCacheWithDir(r.cfg.CacheDir)
		if err != nil {
			return nil, errors.Load("open compilation cache", err)
		}
		r.cache = cache
		rc = rc.WithCompilationCache(cache)
	}
	r.engine = wazero.NewRuntimeWithConfig(ctx, rc)

	builder := hostop.NewBindings().Export(r.engine.NewHostModuleBuilder(hostop.ModuleName))
	host, err := builder.Instantiate(ctx)
	if err != nil {
		_ = r.Close(ctx)
		return nil, errors.Registration(errors.PhaseHost, hostop.ModuleName, "*", err)
	}
	r.host = host

	r.logger.Debug("runtime ready",
		zap.String("entry", r.cfg.Entry),
		zap.Uint32("memory_limit_pages", r.cfg.MemoryLimitPages),
		zap.Bool("disk_cache", r.cache != nil))
	return r, nil
}

// Config returns the effective configuration.
func (r *Runtime) Config() Config { return r.cfg }

// Close releases compiled modules and the engine.
func (r *Runtime) Close(ctx context.Context) error {
	r.mu.Lock()
	for key, c := range r.compiled {
		_ = c.Close(ctx)
		delete(r.compiled, key)
	}
	r.mu.Unlock()

	var err error
	if r.engine != nil {
		err = r.engine.Close(ctx)
	}
	if r.cache != nil {
		if cerr := r.cache.Close(ctx); err == nil {
			err = cerr
		}
	}
	return err
}

// CachedModules returns the number of modules held by the in-process
// compilation cache.
func (r *Runtime) CachedModules() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.compiled)
}

// compile returns the cached compilation of wasm, compiling on a miss.
func (r *Runtime) compile(ctx context.Context, wasm []byte) (wazero.CompiledModule, error) {
	if len(wasm) == 0 {
		return nil, errors.InvalidInput(errors.PhaseLoad, "empty module")
	}
	key := blake3.Sum256(wasm)

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.compiled[key]; ok {
		r.logger.Debug("precompiled module cache hit", zap.Binary("key", key[:8]))
		return c, nil
	}

	c, err := r.engine.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Load("compile module", err)
	}
	if err := r.checkContract(c); err != nil {
		_ = c.Close(ctx)
		return nil, err
	}
	r.compiled[key] = c
	r.logger.Debug("module compiled", zap.Binary("key", key[:8]), zap.Int("size", len(wasm)))
	return c, nil
}

// checkContract rejects modules that could never run here.
func (r *Runtime) checkContract(c wazero.CompiledModule) error {
	for _, fn := range c.ImportedFunctions() {
		module, name, _ := fn.Import()
		if module != hostop.ModuleName {
			return errors.New(errors.PhaseLoad, errors.KindNotFound).
				Detail("import %s.%s: only %q imports are provided", module, name, hostop.ModuleName).Build()
		}
	}
	if _, ok := c.ExportedFunctions()[bridge.AllocatorExport]; !ok {
		return errors.NotFound(errors.PhaseLoad, "export", bridge.AllocatorExport)
	}
	if _, ok := c.ExportedMemories()["memory"]; !ok {
		return errors.NotFound(errors.PhaseLoad, "memory export", "memory")
	}
	return nil
}
