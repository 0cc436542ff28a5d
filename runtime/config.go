package runtime

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/profiling-runtime/errors"
)

// DefaultEntry is the export called when Config.Entry is empty.
const DefaultEntry = "main"

const defaultTickInterval = 10 * time.Millisecond

// Config holds runtime settings.
type Config struct {
	// Entry is the exported function each run calls.
	Entry string `yaml:"entry"`

	// CacheDir enables wazero's on-disk compilation cache.
	CacheDir string `yaml:"cache_dir,omitempty"`

	Budget BudgetConfig `yaml:"budget"`

	// MemoryLimitPages caps guest memory in 64KiB pages. Zero keeps
	// wazero's default.
	MemoryLimitPages uint32 `yaml:"memory_limit_pages,omitempty"`
}

// BudgetConfig is the serializable part of a Budget.
type BudgetConfig struct {
	// Ticks per grant. Zero disables interruption.
	Ticks uint64 `yaml:"ticks"`

	// Interval between ticks.
	Interval time.Duration `yaml:"interval"`

	// Refills is how many times an exhausted budget is topped up with
	// Ticks before the run is interrupted.
	Refills uint64 `yaml:"refills"`
}

// DefaultConfig returns the settings used when none are given.
func DefaultConfig() Config {
	return Config{
		Entry: DefaultEntry,
		Budget: BudgetConfig{
			Interval: defaultTickInterval,
		},
	}
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	if c.Entry == "" {
		return errors.InvalidInput(errors.PhaseConfig, "entry must not be empty")
	}
	if c.MemoryLimitPages > 65536 {
		return errors.InvalidInput(errors.PhaseConfig,
			fmt.Sprintf("memory_limit_pages %d exceeds 65536", c.MemoryLimitPages))
	}
	if c.Budget.Ticks > 0 && c.Budget.Interval <= 0 {
		return errors.InvalidInput(errors.PhaseConfig, "budget interval must be positive")
	}
	return nil
}

func (c Config) String() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("<error creating config string: %s>", err)
	}
	return string(b)
}

// ParseConfig reads YAML over DefaultConfig.
func ParseConfig(b []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, errors.New(errors.PhaseConfig, errors.KindInvalidData).
			Detail("unmarshaling YAML").Cause(err).Build()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.New(errors.PhaseConfig, errors.KindNotFound).
			Detail("read %s", path).Cause(err).Build()
	}
	cfg, err := ParseConfig(content)
	if err != nil {
		return Config{}, fmt.Errorf("parsing YAML file %s: %w", path, err)
	}
	return cfg, nil
}

// Budget bounds how long a run may execute.
type Budget struct {
	// OnExhausted is called when the budget reaches zero. Returning ok
	// with a non-zero refill continues the run with that many ticks;
	// anything else interrupts it. A nil OnExhausted always interrupts.
	OnExhausted func(ctx context.Context) (refill uint64, ok bool)

	Ticks    uint64
	Interval time.Duration
}

// Budget builds a Budget that refills Ticks up to Refills times.
func (c BudgetConfig) Budget() Budget {
	b := Budget{Ticks: c.Ticks, Interval: c.Interval}
	if c.Refills > 0 {
		b.OnExhausted = Refill(c.Ticks, c.Refills)
	}
	return b
}

// Refill returns an OnExhausted granting ticks at most times times.
func Refill(ticks, times uint64) func(context.Context) (uint64, bool) {
	var granted uint64
	return func(context.Context) (uint64, bool) {
		if granted >= times {
			return 0, false
		}
		granted++
		return ticks, true
	}
}
