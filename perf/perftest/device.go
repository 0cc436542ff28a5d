// Package perftest provides a deterministic in-memory perf.Device.
//
// Time only moves when an event is read: every read advances each enabled
// event by Step counts and Tick nanoseconds of enabled time. Running time
// advances by Tick minus Multiplex, which simulates kernel multiplexing.
package perftest

import (
	"fmt"
	"sort"

	"github.com/wippyai/profiling-runtime/perf"
)

// Ops that can be made to fail via Device.FailOn.
const (
	OpOpen    = "open"
	OpEventID = "event_id"
	OpEnable  = "enable"
	OpDisable = "disable"
	OpReset   = "reset"
	OpRead    = "read"
)

type event struct {
	cfg     perf.Config
	members []perf.FD
	id      uint64
	count   uint64
	enabled uint64
	running uint64
	leader  perf.FD
	group   bool
	on      bool
}

// Device is a fake perf.Device.
type Device struct {
	events    map[perf.FD]*event
	failures  map[string]error
	Step      uint64
	Tick      uint64
	Multiplex uint64
	nextFD    perf.FD
	nextID    uint64
	opened    int
	closed    int
}

// New returns a device counting 100 events per read over 1000ns ticks.
func New() *Device {
	return &Device{
		events:   make(map[perf.FD]*event),
		failures: make(map[string]error),
		Step:     100,
		Tick:     1000,
		nextFD:   3,
		nextID:   1000,
	}
}

// FailOn makes every later call of op return err. A nil err clears it.
func (d *Device) FailOn(op string, err error) {
	if err == nil {
		delete(d.failures, op)
		return
	}
	d.failures[op] = err
}

// Live returns the number of events currently open.
func (d *Device) Live() int { return len(d.events) }

// Opened and Closed count calls over the device's lifetime.
func (d *Device) Opened() int { return d.opened }
func (d *Device) Closed() int { return d.closed }

// IsEnabled reports whether fd is counting.
func (d *Device) IsEnabled(fd perf.FD) bool {
	ev, ok := d.events[fd]
	return ok && ev.on
}

// FDs returns the open descriptors in ascending order.
func (d *Device) FDs() []perf.FD {
	fds := make([]perf.FD, 0, len(d.events))
	for fd := range d.events {
		fds = append(fds, fd)
	}
	sort.Slice(fds, func(i, j int) bool { return fds[i] < fds[j] })
	return fds
}

func (d *Device) fail(op string) error {
	if err, ok := d.failures[op]; ok {
		return fmt.Errorf("perftest %s: %w", op, err)
	}
	return nil
}

func (d *Device) event(fd perf.FD) (*event, error) {
	ev, ok := d.events[fd]
	if !ok {
		return nil, fmt.Errorf("perftest: bad fd %d", fd)
	}
	return ev, nil
}

// scope returns fd alone, or fd plus its members when group is set.
func (d *Device) scope(fd perf.FD, group bool) ([]*event, error) {
	ev, err := d.event(fd)
	if err != nil {
		return nil, err
	}
	if !group {
		return []*event{ev}, nil
	}
	if ev.leader != perf.NoFD {
		if ev, err = d.event(ev.leader); err != nil {
			return nil, err
		}
	}
	out := []*event{ev}
	for _, m := range ev.members {
		out = append(out, d.events[m])
	}
	return out, nil
}

func (d *Device) advance() {
	for _, ev := range d.events {
		if !ev.on {
			continue
		}
		ev.count += d.Step
		ev.enabled += d.Tick
		if d.Multiplex < d.Tick {
			ev.running += d.Tick - d.Multiplex
		}
	}
}

func (d *Device) Open(target perf.Target, cfg *perf.Config, opts perf.OpenOptions) (perf.FD, error) {
	if _, _, err := target.Args(); err != nil {
		return perf.NoFD, err
	}
	if err := d.fail(OpOpen); err != nil {
		return perf.NoFD, err
	}
	ev := &event{cfg: *cfg, leader: opts.Leader, group: opts.Group, id: d.nextID}
	fd := d.nextFD
	if opts.Leader != perf.NoFD {
		leader, err := d.event(opts.Leader)
		if err != nil {
			return perf.NoFD, err
		}
		leader.members = append(leader.members, fd)
		ev.on = leader.on
	}
	d.nextFD++
	d.nextID++
	d.opened++
	d.events[fd] = ev
	return fd, nil
}

func (d *Device) EventID(fd perf.FD) (uint64, error) {
	if err := d.fail(OpEventID); err != nil {
		return 0, err
	}
	ev, err := d.event(fd)
	if err != nil {
		return 0, err
	}
	return ev.id, nil
}

func (d *Device) set(op string, fd perf.FD, group bool, fn func(*event)) error {
	if err := d.fail(op); err != nil {
		return err
	}
	evs, err := d.scope(fd, group)
	if err != nil {
		return err
	}
	for _, ev := range evs {
		fn(ev)
	}
	return nil
}

func (d *Device) Enable(fd perf.FD, group bool) error {
	return d.set(OpEnable, fd, group, func(ev *event) { ev.on = true })
}

func (d *Device) Disable(fd perf.FD, group bool) error {
	return d.set(OpDisable, fd, group, func(ev *event) { ev.on = false })
}

func (d *Device) Reset(fd perf.FD, group bool) error {
	return d.set(OpReset, fd, group, func(ev *event) { ev.count = 0 })
}

func (d *Device) ReadCounter(fd perf.FD) (perf.CounterStat, error) {
	if err := d.fail(OpRead); err != nil {
		return perf.CounterStat{}, err
	}
	ev, err := d.event(fd)
	if err != nil {
		return perf.CounterStat{}, err
	}
	d.advance()
	return perf.CounterStat{
		EventID:     ev.id,
		EventCount:  ev.count,
		TimeEnabled: ev.enabled,
		TimeRunning: ev.running,
	}, nil
}

func (d *Device) ReadGroup(fd perf.FD, members int) (perf.CounterGroupStat, error) {
	if err := d.fail(OpRead); err != nil {
		return perf.CounterGroupStat{}, err
	}
	evs, err := d.scope(fd, true)
	if err != nil {
		return perf.CounterGroupStat{}, err
	}
	if len(evs) != members {
		return perf.CounterGroupStat{}, fmt.Errorf("perftest: group has %d members, caller expected %d", len(evs), members)
	}
	d.advance()
	stat := perf.CounterGroupStat{
		TimeEnabled: evs[0].enabled,
		TimeRunning: evs[0].running,
		Members:     make([]perf.MemberStat, len(evs)),
	}
	for i, ev := range evs {
		stat.Members[i] = perf.MemberStat{EventID: ev.id, EventCount: ev.count}
	}
	return stat, nil
}

func (d *Device) Close(fd perf.FD) error {
	ev, err := d.event(fd)
	if err != nil {
		return err
	}
	if ev.leader != perf.NoFD {
		if leader, ok := d.events[ev.leader]; ok {
			for i, m := range leader.members {
				if m == fd {
					leader.members = append(leader.members[:i], leader.members[i+1:]...)
					break
				}
			}
		}
	}
	delete(d.events, fd)
	d.closed++
	return nil
}
