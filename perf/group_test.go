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

func TestGroupMembersKeepInsertionOrder(t *testing.T) {
	dev := perftest.New()
	g, err := perf.NewCounterGroup(dev, self)
	require.NoError(t, err)

	a, err := g.AddMember(cycles)
	require.NoError(t, err)
	b, err := g.AddMember(instrs)
	require.NoError(t, err)

	fixed, err := g.Enable()
	require.NoError(t, err)
	defer fixed.Drop()
	assert.True(t, fixed.Enabled())
	assert.Equal(t, 2, fixed.Len())

	stat, err := fixed.Stat()
	require.NoError(t, err)
	require.Len(t, stat.Members, 2)

	idA, err := a.EventID()
	require.NoError(t, err)
	idB, err := b.EventID()
	require.NoError(t, err)
	assert.Equal(t, idA, stat.Members[0].EventID)
	assert.Equal(t, idB, stat.Members[1].EventID)
	assert.NotZero(t, stat.Members[0].EventCount)

	second, err := b.Stat()
	require.NoError(t, err)
	assert.Equal(t, idB, second.EventID)
	assert.GreaterOrEqual(t, stat.TimeEnabled, stat.TimeRunning)
}

func TestGroupEnableConsumesBuilder(t *testing.T) {
	dev := perftest.New()
	g, err := perf.NewCounterGroup(dev, self)
	require.NoError(t, err)
	_, err = g.AddMember(cycles)
	require.NoError(t, err)

	fixed, err := g.Enable()
	require.NoError(t, err)

	_, err = g.AddMember(instrs)
	assert.Equal(t, errors.KindInvalidState, errors.KindOf(err))
	_, err = g.Enable()
	assert.Equal(t, errors.KindInvalidState, errors.KindOf(err))

	// dropping the consumed builder must not release the fixed group
	g.Drop()
	assert.Equal(t, 1, dev.Live())

	fixed.Drop()
	assert.Zero(t, dev.Live())
}

func TestGroupEnableFailureKeepsBuilder(t *testing.T) {
	dev := perftest.New()
	g, err := perf.NewCounterGroup(dev, self)
	require.NoError(t, err)
	_, err = g.AddMember(cycles)
	require.NoError(t, err)

	dev.FailOn(perftest.OpEnable, stderrors.New("EBUSY"))
	_, err = g.Enable()
	require.Error(t, err)

	dev.FailOn(perftest.OpEnable, nil)
	_, err = g.AddMember(instrs)
	require.NoError(t, err, "builder stays usable after a failed enable")

	fixed, err := g.Enable()
	require.NoError(t, err)
	fixed.Drop()
}

func TestEmptyGroupEnables(t *testing.T) {
	dev := perftest.New()
	g, err := perf.NewCounterGroup(dev, self)
	require.NoError(t, err)

	fixed, err := g.Enable()
	require.NoError(t, err)

	stat, err := fixed.Stat()
	require.NoError(t, err)
	assert.Empty(t, stat.Members)
	assert.Zero(t, stat.TimeEnabled)

	require.NoError(t, fixed.Disable())
	require.NoError(t, fixed.Reset())
	fixed.Drop()
	assert.Zero(t, dev.Opened())
}

func TestFixedGroupDisableResetEnable(t *testing.T) {
	dev := perftest.New()
	g, err := perf.NewCounterGroup(dev, self)
	require.NoError(t, err)
	_, err = g.AddMember(cycles)
	require.NoError(t, err)
	_, err = g.AddMember(instrs)
	require.NoError(t, err)
	fixed, err := g.Enable()
	require.NoError(t, err)
	defer fixed.Drop()

	_, err = fixed.Stat()
	require.NoError(t, err)

	require.NoError(t, fixed.Disable())
	first, err := fixed.Stat()
	require.NoError(t, err)
	require.NoError(t, fixed.Disable())
	second, err := fixed.Stat()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.False(t, fixed.Enabled())

	require.NoError(t, fixed.Reset())
	zeroed, err := fixed.Stat()
	require.NoError(t, err)
	for _, m := range zeroed.Members {
		assert.Zero(t, m.EventCount)
	}

	require.NoError(t, fixed.Enable())
	resumed, err := fixed.Stat()
	require.NoError(t, err)
	assert.Equal(t, uint64(100), resumed.Members[1].EventCount)
}

func TestGuardFailsAfterGroupDropped(t *testing.T) {
	dev := perftest.New()
	g, err := perf.NewCounterGroup(dev, self)
	require.NoError(t, err)
	guard, err := g.AddMember(cycles)
	require.NoError(t, err)

	fixed, err := g.Enable()
	require.NoError(t, err)

	stat, err := guard.Stat()
	require.NoError(t, err)
	id, err := guard.EventID()
	require.NoError(t, err)
	assert.Equal(t, id, stat.EventID)

	fixed.Drop()
	assert.Zero(t, dev.Live())

	_, err = guard.Stat()
	assert.True(t, stderrors.Is(err, errors.ErrInvalidHandle))
	_, err = guard.EventID()
	assert.True(t, stderrors.Is(err, errors.ErrInvalidHandle))
}

func TestGroupStatBeforeEnable(t *testing.T) {
	dev := perftest.New()
	g, err := perf.NewCounterGroup(dev, self)
	require.NoError(t, err)
	defer g.Drop()
	_, err = g.AddMember(cycles)
	require.NoError(t, err)

	stat, err := g.Stat()
	require.NoError(t, err)
	require.Len(t, stat.Members, 1)
	assert.Zero(t, stat.Members[0].EventCount)
}

func TestAddMemberFailureLeavesGroupUnchanged(t *testing.T) {
	dev := perftest.New()
	g, err := perf.NewCounterGroup(dev, self)
	require.NoError(t, err)
	defer g.Drop()
	_, err = g.AddMember(cycles)
	require.NoError(t, err)

	dev.FailOn(perftest.OpOpen, stderrors.New("ENOENT"))
	_, err = g.AddMember(instrs)
	require.Error(t, err)
	assert.Equal(t, 1, g.Len())
}

func TestGroupMultiplexedScaling(t *testing.T) {
	dev := perftest.New()
	dev.Multiplex = 500
	g, err := perf.NewCounterGroup(dev, self)
	require.NoError(t, err)
	guard, err := g.AddMember(cycles)
	require.NoError(t, err)
	fixed, err := g.Enable()
	require.NoError(t, err)
	defer fixed.Drop()

	stat, err := guard.Stat()
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), stat.TimeEnabled)
	assert.Equal(t, uint64(500), stat.TimeRunning)
	assert.Equal(t, 2*stat.EventCount, stat.Scaled())
}
