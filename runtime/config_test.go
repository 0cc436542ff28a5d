package runtime_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/profiling-runtime/errors"
	"github.com/wippyai/profiling-runtime/runtime"
)

func TestDefaultConfig(t *testing.T) {
	cfg := runtime.DefaultConfig()
	assert.Equal(t, "main", cfg.Entry)
	assert.Zero(t, cfg.Budget.Ticks)
	assert.Equal(t, 10*time.Millisecond, cfg.Budget.Interval)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profrun.yaml")
	content := `
entry: profile
memory_limit_pages: 32
budget:
  ticks: 100
  interval: 5ms
  refills: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := runtime.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "profile", cfg.Entry)
	assert.Equal(t, uint32(32), cfg.MemoryLimitPages)
	assert.Equal(t, runtime.BudgetConfig{Ticks: 100, Interval: 5 * time.Millisecond, Refills: 2}, cfg.Budget)
	assert.Contains(t, cfg.String(), "entry: profile")
}

func TestParseConfigKeepsDefaults(t *testing.T) {
	cfg, err := runtime.ParseConfig([]byte("memory_limit_pages: 4\n"))
	require.NoError(t, err)
	assert.Equal(t, "main", cfg.Entry)
	assert.Equal(t, 10*time.Millisecond, cfg.Budget.Interval)
}

func TestParseConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"malformed", "entry: [unterminated"},
		{"empty entry", "entry: \"\""},
		{"memory too large", "memory_limit_pages: 70000"},
		{"ticks without interval", "budget: {ticks: 5, interval: 0s}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runtime.ParseConfig([]byte(tt.yaml))
			require.Error(t, err)
			var e *errors.Error
			assert.ErrorAs(t, err, &e)
			assert.Equal(t, errors.PhaseConfig, e.Phase)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := runtime.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, errors.KindNotFound, errors.KindOf(err))
}

func TestRefill(t *testing.T) {
	refill := runtime.Refill(7, 2)
	for range 2 {
		n, ok := refill(context.Background())
		assert.True(t, ok)
		assert.Equal(t, uint64(7), n)
	}
	_, ok := refill(context.Background())
	assert.False(t, ok)
}
