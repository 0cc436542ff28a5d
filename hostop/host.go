package hostop

import (
	"github.com/wippyai/profiling-runtime/errors"
	"github.com/wippyai/profiling-runtime/perf"
	"github.com/wippyai/profiling-runtime/resource"
)

// Host implements the typed bindings over one execution state.
type Host struct {
	state *State
}

// NewHost binds the typed operations to s.
func NewHost(s *State) *Host {
	return &Host{state: s}
}

// State returns the execution state the host operates on.
func (h *Host) State() *State { return h.state }

func (h *Host) reserve() error {
	if !h.state.Table.CanPush() {
		return errors.TableFull()
	}
	return nil
}

func (h *Host) counter(c resource.Handle) (*perf.Counter, error) {
	return resource.Get[*perf.Counter](h.state.Table, c, CounterType)
}

func (h *Host) group(g resource.Handle) (*perf.CounterGroup, error) {
	return resource.Get[*perf.CounterGroup](h.state.Table, g, CounterGroupType)
}

func (h *Host) fixed(f resource.Handle) (*perf.FixedCounterGroup, error) {
	return resource.Get[*perf.FixedCounterGroup](h.state.Table, f, FixedCounterGroupType)
}

func (h *Host) guard(g resource.Handle) (*perf.CounterGuard, error) {
	return resource.Get[*perf.CounterGuard](h.state.Table, g, CounterGuardType)
}

// CounterNew opens a disabled counter and returns its handle.
func (h *Host) CounterNew(process perf.Process, cpu perf.Cpu, cfg perf.Config) (resource.Handle, error) {
	if err := h.reserve(); err != nil {
		return 0, err
	}
	c, err := perf.NewCounter(h.state.Device, perf.Target{Process: process, Cpu: cpu}, cfg)
	if err != nil {
		return 0, err
	}
	handle, err := h.state.Table.Push(CounterType, c)
	if err != nil {
		c.Drop()
		return 0, err
	}
	return handle, nil
}

// CounterEnable starts counting.
func (h *Host) CounterEnable(counter resource.Handle) error {
	c, err := h.counter(counter)
	if err != nil {
		return err
	}
	return c.Enable()
}

// CounterDisable stops counting. Disabling twice is harmless.
func (h *Host) CounterDisable(counter resource.Handle) error {
	c, err := h.counter(counter)
	if err != nil {
		return err
	}
	return c.Disable()
}

// CounterReset zeroes the count without changing the enabled state.
func (h *Host) CounterReset(counter resource.Handle) error {
	c, err := h.counter(counter)
	if err != nil {
		return err
	}
	return c.Reset()
}

// CounterStat reads the counter's value and times.
func (h *Host) CounterStat(counter resource.Handle) (perf.CounterStat, error) {
	c, err := h.counter(counter)
	if err != nil {
		return perf.CounterStat{}, err
	}
	return c.Stat()
}

// CounterDrop closes the counter and invalidates its handle.
func (h *Host) CounterDrop(counter resource.Handle) error {
	return h.state.Table.Drop(counter, CounterType)
}

// CounterGroupNew creates an empty group builder.
func (h *Host) CounterGroupNew(process perf.Process, cpu perf.Cpu) (resource.Handle, error) {
	if err := h.reserve(); err != nil {
		return 0, err
	}
	g, err := perf.NewCounterGroup(h.state.Device, perf.Target{Process: process, Cpu: cpu})
	if err != nil {
		return 0, err
	}
	return h.state.Table.Push(CounterGroupType, g)
}

// CounterGroupAddMember opens one more member and returns a guard handle.
func (h *Host) CounterGroupAddMember(group resource.Handle, cfg perf.Config) (resource.Handle, error) {
	g, err := h.group(group)
	if err != nil {
		return 0, err
	}
	if err := h.reserve(); err != nil {
		return 0, err
	}
	guard, err := g.AddMember(cfg)
	if err != nil {
		return 0, err
	}
	return h.state.Table.Push(CounterGuardType, guard)
}

// CounterGroupEnable consumes the builder handle and returns the handle of
// the enabled group. If the native enable fails the builder handle stays
// valid.
func (h *Host) CounterGroupEnable(group resource.Handle) (resource.Handle, error) {
	g, err := h.group(group)
	if err != nil {
		return 0, err
	}
	fixed, err := g.Enable()
	if err != nil {
		return 0, err
	}
	handle, err := h.state.Table.Replace(group, CounterGroupType, FixedCounterGroupType, fixed)
	if err != nil {
		fixed.Drop()
		return 0, err
	}
	return handle, nil
}

// CounterGroupStat reads every member of a builder group.
func (h *Host) CounterGroupStat(group resource.Handle) (perf.CounterGroupStat, error) {
	g, err := h.group(group)
	if err != nil {
		return perf.CounterGroupStat{}, err
	}
	return g.Stat()
}

// CounterGroupDrop closes every member. Guards into the group stop resolving.
func (h *Host) CounterGroupDrop(group resource.Handle) error {
	return h.state.Table.Drop(group, CounterGroupType)
}

// FixedCounterGroupEnable resumes a disabled group.
func (h *Host) FixedCounterGroupEnable(group resource.Handle) error {
	f, err := h.fixed(group)
	if err != nil {
		return err
	}
	return f.Enable()
}

// FixedCounterGroupDisable pauses every member at once.
func (h *Host) FixedCounterGroupDisable(group resource.Handle) error {
	f, err := h.fixed(group)
	if err != nil {
		return err
	}
	return f.Disable()
}

// FixedCounterGroupReset zeroes every member's count.
func (h *Host) FixedCounterGroupReset(group resource.Handle) error {
	f, err := h.fixed(group)
	if err != nil {
		return err
	}
	return f.Reset()
}

// FixedCounterGroupStat reads all members in insertion order.
func (h *Host) FixedCounterGroupStat(group resource.Handle) (perf.CounterGroupStat, error) {
	f, err := h.fixed(group)
	if err != nil {
		return perf.CounterGroupStat{}, err
	}
	return f.Stat()
}

// FixedCounterGroupDrop closes every member of the enabled group.
func (h *Host) FixedCounterGroupDrop(group resource.Handle) error {
	return h.state.Table.Drop(group, FixedCounterGroupType)
}

// CounterGuardEventID returns the kernel event id of the guarded member.
func (h *Host) CounterGuardEventID(guard resource.Handle) (uint64, error) {
	g, err := h.guard(guard)
	if err != nil {
		return 0, err
	}
	return g.EventID()
}

// CounterGuardStat reads the guarded member from a group read.
func (h *Host) CounterGuardStat(guard resource.Handle) (perf.CounterStat, error) {
	g, err := h.guard(guard)
	if err != nil {
		return perf.CounterStat{}, err
	}
	return g.Stat()
}

// CounterGuardDrop releases the guard handle only; the member keeps
// counting in its group.
func (h *Host) CounterGuardDrop(guard resource.Handle) error {
	return h.state.Table.Drop(guard, CounterGuardType)
}
