// profrun runs a profiling guest module against the host's perf_event
// counters and reports the resources it left open.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/profiling-runtime/hostop"
	"github.com/wippyai/profiling-runtime/perf"
	"github.com/wippyai/profiling-runtime/runtime"
)

type options struct {
	configPath  string
	entry       string
	cacheDir    string
	logLevel    string
	metricsAddr string
	ticks       uint64
	interval    time.Duration
	refills     uint64
	memoryPages uint32
	dev         bool
	aot         bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var opts options
	flagSet := pflag.NewFlagSet("profrun", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "YAML config file")
	flagSet.StringVar(&opts.entry, "entry", runtime.DefaultEntry, "exported function to call")
	flagSet.StringVar(&opts.cacheDir, "cache-dir", "", "directory for the on-disk compilation cache")
	flagSet.Uint64Var(&opts.ticks, "budget-ticks", 0, "interruption budget in ticks (0 disables)")
	flagSet.DurationVar(&opts.interval, "budget-interval", 10*time.Millisecond, "duration of one budget tick")
	flagSet.Uint64Var(&opts.refills, "budget-refills", 0, "times an exhausted budget is refilled")
	flagSet.Uint32Var(&opts.memoryPages, "memory-limit-pages", 0, "guest memory limit in 64KiB pages")
	flagSet.BoolVar(&opts.aot, "aot", false, "treat the module as already precompiled")
	flagSet.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flagSet.BoolVar(&opts.dev, "dev", false, "human-readable development logging")
	flagSet.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	flagSet.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: profrun [flags] <module.wasm>")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if flagSet.NArg() != 1 {
		flagSet.Usage()
		return fmt.Errorf("expected one module path, got %d arguments", flagSet.NArg())
	}

	cfg, err := loadConfig(flagSet, opts)
	if err != nil {
		return err
	}

	logger, err := newLogger(opts.logLevel, opts.dev)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	runtime.SetLogger(logger.Named("runtime"))
	hostop.SetLogger(logger.Named("hostop"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if opts.metricsAddr != "" {
		srv := serveMetrics(logger, reg, opts.metricsAddr)
		defer func() { _ = srv.Shutdown(context.Background()) }()
	}

	wasm, err := os.ReadFile(flagSet.Arg(0))
	if err != nil {
		return fmt.Errorf("read module: %w", err)
	}

	rt, err := runtime.New(ctx, runtime.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("create runtime: %w", err)
	}
	defer rt.Close(context.Background())

	p, err := rt.Precompile(ctx, runtime.Profiling{Bytes: wasm, IsAOT: opts.aot})
	if err != nil {
		return fmt.Errorf("precompile: %w", err)
	}

	state := hostop.NewState(perf.NewDevice(),
		hostop.WithLogger(logger.Named("hostop")),
		hostop.WithMetrics(hostop.NewMetrics(reg)))
	defer state.Close()

	logger.Info("running module", zap.String("path", flagSet.Arg(0)), zap.String("entry", cfg.Entry))
	state, runErr := rt.Run(ctx, state, p)

	printSummary(os.Stdout, state.Resources(), runErr)
	if runErr != nil {
		return fmt.Errorf("run: %w", runErr)
	}
	return nil
}

// loadConfig reads the config file, if any, and applies the flags the user
// set explicitly on top of it.
func loadConfig(flagSet *pflag.FlagSet, opts options) (runtime.Config, error) {
	cfg := runtime.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := runtime.LoadConfig(opts.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if flagSet.Changed("entry") {
		cfg.Entry = opts.entry
	}
	if flagSet.Changed("cache-dir") {
		cfg.CacheDir = opts.cacheDir
	}
	if flagSet.Changed("budget-ticks") {
		cfg.Budget.Ticks = opts.ticks
	}
	if flagSet.Changed("budget-interval") {
		cfg.Budget.Interval = opts.interval
	}
	if flagSet.Changed("budget-refills") {
		cfg.Budget.Refills = opts.refills
	}
	if flagSet.Changed("memory-limit-pages") {
		cfg.MemoryLimitPages = opts.memoryPages
	}
	return cfg, cfg.Validate()
}

func newLogger(level string, dev bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if dev {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

func serveMetrics(logger *zap.Logger, reg *prometheus.Registry, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return srv
}
