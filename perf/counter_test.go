package perf_test

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/profiling-runtime/errors"
	"github.com/wippyai/profiling-runtime/perf"
	"github.com/wippyai/profiling-runtime/perf/perftest"
)

var (
	self   = perf.Target{Process: perf.CurrentProcess(), Cpu: perf.AnyCpu()}
	cycles = perf.Config{Event: perf.HardwareEvent(perf.HardwareCPUCycles)}
	instrs = perf.Config{Event: perf.HardwareEvent(perf.HardwareInstructions)}
)

func TestCounterLifecycle(t *testing.T) {
	dev := perftest.New()

	c, err := perf.NewCounter(dev, self, cycles)
	require.NoError(t, err)
	assert.False(t, c.Enabled())

	stat, err := c.Stat()
	require.NoError(t, err)
	assert.Zero(t, stat.EventCount, "counter must start disabled")
	assert.Equal(t, c.EventID(), stat.EventID)

	require.NoError(t, c.Enable())
	assert.True(t, c.Enabled())

	stat, err = c.Stat()
	require.NoError(t, err)
	assert.Equal(t, uint64(100), stat.EventCount)

	c.Drop()
	assert.Zero(t, dev.Live())

	_, err = c.Stat()
	assert.True(t, stderrors.Is(err, &errors.Error{Kind: errors.KindInvalidState}))
}

func TestCounterDisableIsIdempotent(t *testing.T) {
	dev := perftest.New()
	c, err := perf.NewCounter(dev, self, cycles)
	require.NoError(t, err)
	defer c.Drop()

	require.NoError(t, c.Enable())
	running, err := c.Stat()
	require.NoError(t, err)

	require.NoError(t, c.Disable())
	first, err := c.Stat()
	require.NoError(t, err)
	require.NoError(t, c.Disable())
	second, err := c.Stat()
	require.NoError(t, err)

	assert.Equal(t, running.EventCount, first.EventCount)
	assert.Equal(t, first.EventCount, second.EventCount)
	assert.False(t, c.Enabled())
}

func TestCounterResetKeepsEnabledState(t *testing.T) {
	dev := perftest.New()
	c, err := perf.NewCounter(dev, self, cycles)
	require.NoError(t, err)
	defer c.Drop()

	require.NoError(t, c.Enable())
	_, err = c.Stat()
	require.NoError(t, err)

	require.NoError(t, c.Reset())
	assert.True(t, c.Enabled())

	stat, err := c.Stat()
	require.NoError(t, err)
	assert.Equal(t, uint64(100), stat.EventCount, "one read after reset")
}

func TestCounterNativeFailureLeavesNothingOpen(t *testing.T) {
	dev := perftest.New()
	dev.FailOn(perftest.OpEventID, stderrors.New("EIO"))

	_, err := perf.NewCounter(dev, self, cycles)
	require.Error(t, err)
	assert.Zero(t, dev.Live())
	assert.Equal(t, 1, dev.Closed())
}

func TestCounterRejectsAnyProcessAnyCpu(t *testing.T) {
	dev := perftest.New()
	_, err := perf.NewCounter(dev, perf.Target{Process: perf.AnyProcess(), Cpu: perf.AnyCpu()}, cycles)
	assert.Equal(t, errors.KindInvalidInput, errors.KindOf(err))
	assert.Zero(t, dev.Opened())
}

func TestTargetArgs(t *testing.T) {
	tests := []struct {
		name     string
		target   perf.Target
		pid, cpu int
	}{
		{"self any cpu", self, 0, -1},
		{"pid on cpu", perf.Target{Process: perf.PidProcess(42), Cpu: perf.OnCpu(3)}, 42, 3},
		{"any process on cpu", perf.Target{Process: perf.AnyProcess(), Cpu: perf.OnCpu(0)}, -1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pid, cpu, err := tt.target.Args()
			require.NoError(t, err)
			assert.Equal(t, tt.pid, pid)
			assert.Equal(t, tt.cpu, cpu)
		})
	}
}

func TestScaled(t *testing.T) {
	tests := []struct {
		name string
		stat perf.CounterStat
		want uint64
	}{
		{"never ran", perf.CounterStat{EventCount: 10, TimeEnabled: 100}, 0},
		{"fully scheduled", perf.CounterStat{EventCount: 10, TimeEnabled: 100, TimeRunning: 100}, 10},
		{"half scheduled", perf.CounterStat{EventCount: 10, TimeEnabled: 100, TimeRunning: 50}, 20},
		{"large values", perf.CounterStat{EventCount: 1 << 62, TimeEnabled: 1 << 40, TimeRunning: 1 << 39}, 1 << 63},
		{"saturates", perf.CounterStat{EventCount: 1 << 63, TimeEnabled: 4, TimeRunning: 1}, ^uint64(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.stat.Scaled())
		})
	}
}
