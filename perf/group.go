package perf

import (
	"github.com/wippyai/profiling-runtime/errors"
)

// groupCore owns the native events of a group. It is shared by the
// builder, the fixed group it turns into, and every guard.
type groupCore struct {
	dev     Device
	target  Target
	fds     []FD
	ids     []uint64
	cfgs    []Config
	enabled bool
	live    bool
}

func (c *groupCore) leader() FD {
	if len(c.fds) == 0 {
		return NoFD
	}
	return c.fds[0]
}

func (c *groupCore) check(op string) error {
	if !c.live {
		return errors.New(errors.PhaseNative, errors.KindInvalidHandle).
			Op(op).Detail("no such resource: counter group was dropped").Build()
	}
	return nil
}

func (c *groupCore) control(op string, fn func(FD, bool) error) error {
	if err := c.check(op); err != nil {
		return err
	}
	if len(c.fds) == 0 {
		return nil
	}
	return fn(c.leader(), true)
}

// read returns one consistent snapshot with members in insertion order.
func (c *groupCore) read() (CounterGroupStat, error) {
	if err := c.check("stat"); err != nil {
		return CounterGroupStat{}, err
	}
	if len(c.fds) == 0 {
		return CounterGroupStat{Members: []MemberStat{}}, nil
	}

	raw, err := c.dev.ReadGroup(c.leader(), len(c.fds))
	if err != nil {
		return CounterGroupStat{}, err
	}

	byID := make(map[uint64]uint64, len(raw.Members))
	for _, m := range raw.Members {
		byID[m.EventID] = m.EventCount
	}
	stat := CounterGroupStat{
		TimeEnabled: raw.TimeEnabled,
		TimeRunning: raw.TimeRunning,
		Members:     make([]MemberStat, len(c.ids)),
	}
	for i, id := range c.ids {
		count, ok := byID[id]
		if !ok {
			return CounterGroupStat{}, errors.New(errors.PhaseNative, errors.KindNativeCounter).
				Op("stat").Detail("member %d missing from group read", id).Build()
		}
		stat.Members[i] = MemberStat{EventID: id, EventCount: count}
	}
	return stat, nil
}

// release closes members before the leader. Safe to call twice.
func (c *groupCore) release() {
	if !c.live {
		return
	}
	c.live = false
	c.enabled = false
	for i := len(c.fds) - 1; i >= 0; i-- {
		_ = c.dev.Close(c.fds[i])
	}
	c.fds = nil
}

// CounterGroup is the builder phase of a group. Members can be added until
// Enable consumes it.
type CounterGroup struct {
	core     *groupCore
	consumed bool
}

// NewCounterGroup creates an empty group. No native event is opened until
// the first member is added.
func NewCounterGroup(dev Device, target Target) (*CounterGroup, error) {
	if _, _, err := target.Args(); err != nil {
		return nil, err
	}
	return &CounterGroup{
		core: &groupCore{dev: dev, target: target, live: true},
	}, nil
}

func (g *CounterGroup) Target() Target { return g.core.target }
func (g *CounterGroup) Len() int       { return len(g.core.fds) }

// AddMember opens one event in the group. The first member becomes the
// leader. On failure the group is unchanged.
func (g *CounterGroup) AddMember(cfg Config) (*CounterGuard, error) {
	if err := g.usable("add_member"); err != nil {
		return nil, err
	}
	c := g.core
	fd, err := c.dev.Open(c.target, &cfg, OpenOptions{Leader: c.leader(), Group: true})
	if err != nil {
		return nil, err
	}
	id, err := c.dev.EventID(fd)
	if err != nil {
		_ = c.dev.Close(fd)
		return nil, err
	}

	c.fds = append(c.fds, fd)
	c.ids = append(c.ids, id)
	c.cfgs = append(c.cfgs, cfg)
	return &CounterGuard{core: c, index: len(c.ids) - 1, id: id}, nil
}

// Enable starts every member at once and returns the fixed group. If the
// native enable fails the builder stays usable. An empty group enables to
// an empty snapshot.
func (g *CounterGroup) Enable() (*FixedCounterGroup, error) {
	if err := g.usable("enable"); err != nil {
		return nil, err
	}
	if err := g.core.control("enable", g.core.dev.Enable); err != nil {
		return nil, err
	}
	g.core.enabled = true
	g.consumed = true
	return &FixedCounterGroup{core: g.core}, nil
}

// Stat reads the group before it is enabled.
func (g *CounterGroup) Stat() (CounterGroupStat, error) {
	if err := g.usable("stat"); err != nil {
		return CounterGroupStat{}, err
	}
	return g.core.read()
}

// Drop releases the group unless it was consumed by Enable.
func (g *CounterGroup) Drop() {
	if g.consumed {
		return
	}
	g.core.release()
}

func (g *CounterGroup) usable(op string) error {
	if g.consumed {
		return errors.InvalidState(op, "counter group already enabled")
	}
	return g.core.check(op)
}

// FixedCounterGroup is an enabled group. Its membership can no longer
// change.
type FixedCounterGroup struct {
	core *groupCore
}

func (f *FixedCounterGroup) Target() Target { return f.core.target }
func (f *FixedCounterGroup) Len() int       { return len(f.core.fds) }
func (f *FixedCounterGroup) Enabled() bool  { return f.core.enabled }

// Enable resumes counting after Disable.
func (f *FixedCounterGroup) Enable() error {
	if err := f.core.control("enable", f.core.dev.Enable); err != nil {
		return err
	}
	f.core.enabled = true
	return nil
}

// Disable stops every member. Disabling twice is a no-op.
func (f *FixedCounterGroup) Disable() error {
	if err := f.core.control("disable", f.core.dev.Disable); err != nil {
		return err
	}
	f.core.enabled = false
	return nil
}

// Reset zeroes every member without changing the enabled state.
func (f *FixedCounterGroup) Reset() error {
	return f.core.control("reset", f.core.dev.Reset)
}

func (f *FixedCounterGroup) Stat() (CounterGroupStat, error) {
	return f.core.read()
}

func (f *FixedCounterGroup) Drop() {
	f.core.release()
}

// CounterGuard refers to one member of a group. It does not own the
// member: after the group is dropped every call fails.
type CounterGuard struct {
	core  *groupCore
	index int
	id    uint64
}

func (c *CounterGuard) EventID() (uint64, error) {
	if err := c.core.check("event_id"); err != nil {
		return 0, err
	}
	return c.id, nil
}

// Stat reads the whole group and extracts this member, so the returned
// times are the group's.
func (c *CounterGuard) Stat() (CounterStat, error) {
	stat, err := c.core.read()
	if err != nil {
		return CounterStat{}, err
	}
	s, _ := stat.Counter(c.index)
	return s, nil
}
