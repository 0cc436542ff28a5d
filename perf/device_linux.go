//go:build linux

package perf

import (
	"encoding/binary"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/wippyai/profiling-runtime/errors"
)

const (
	counterReadSize = 4 * 8
	groupHeaderSize = 3 * 8
	groupEntrySize  = 2 * 8
)

type linuxDevice struct{}

// NewDevice returns the perf_event_open backed device.
func NewDevice() Device {
	return linuxDevice{}
}

func (linuxDevice) Open(target Target, cfg *Config, opts OpenOptions) (FD, error) {
	pid, cpu, err := target.Args()
	if err != nil {
		return NoFD, err
	}
	attr, err := lowerConfig(cfg)
	if err != nil {
		return NoFD, err
	}

	attr.Read_format = unix.PERF_FORMAT_TOTAL_TIME_ENABLED |
		unix.PERF_FORMAT_TOTAL_TIME_RUNNING |
		unix.PERF_FORMAT_ID
	if opts.Group {
		attr.Read_format |= unix.PERF_FORMAT_GROUP
	}
	if opts.Leader == NoFD {
		attr.Bits |= unix.PerfBitDisabled
	}

	fd, err := unix.PerfEventOpen(&attr, pid, cpu, int(opts.Leader), unix.PERF_FLAG_FD_CLOEXEC)
	if err != nil {
		return NoFD, errors.NativeCounter("open", err)
	}
	return FD(fd), nil
}

func (linuxDevice) EventID(fd FD) (uint64, error) {
	var id uint64
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), unix.PERF_EVENT_IOC_ID, uintptr(unsafe.Pointer(&id)))
	if errno != 0 {
		return 0, errors.NativeCounter("event_id", errno)
	}
	return id, nil
}

func (linuxDevice) Enable(fd FD, group bool) error {
	return ioctl("enable", fd, unix.PERF_EVENT_IOC_ENABLE, group)
}

func (linuxDevice) Disable(fd FD, group bool) error {
	return ioctl("disable", fd, unix.PERF_EVENT_IOC_DISABLE, group)
}

func (linuxDevice) Reset(fd FD, group bool) error {
	return ioctl("reset", fd, unix.PERF_EVENT_IOC_RESET, group)
}

func (linuxDevice) ReadCounter(fd FD) (CounterStat, error) {
	var buf [counterReadSize]byte
	n, err := unix.Read(int(fd), buf[:])
	if err != nil {
		return CounterStat{}, errors.NativeCounter("read", err)
	}
	if n != counterReadSize {
		return CounterStat{}, errors.New(errors.PhaseNative, errors.KindNativeCounter).
			Op("read").Detail("short read: %d bytes", n).Build()
	}
	// value, time_enabled, time_running, id
	return CounterStat{
		EventCount:  binary.NativeEndian.Uint64(buf[0:]),
		TimeEnabled: binary.NativeEndian.Uint64(buf[8:]),
		TimeRunning: binary.NativeEndian.Uint64(buf[16:]),
		EventID:     binary.NativeEndian.Uint64(buf[24:]),
	}, nil
}

func (linuxDevice) ReadGroup(fd FD, members int) (CounterGroupStat, error) {
	buf := make([]byte, groupHeaderSize+members*groupEntrySize)
	n, err := unix.Read(int(fd), buf)
	if err != nil {
		return CounterGroupStat{}, errors.NativeCounter("read_group", err)
	}
	if n < groupHeaderSize {
		return CounterGroupStat{}, errors.New(errors.PhaseNative, errors.KindNativeCounter).
			Op("read_group").Detail("short read: %d bytes", n).Build()
	}

	// nr, time_enabled, time_running, then {value, id} per member
	nr := int(binary.NativeEndian.Uint64(buf[0:]))
	if nr != members || n != groupHeaderSize+nr*groupEntrySize {
		return CounterGroupStat{}, errors.New(errors.PhaseNative, errors.KindNativeCounter).
			Op("read_group").Detail("kernel reported %d members, expected %d", nr, members).Build()
	}
	stat := CounterGroupStat{
		TimeEnabled: binary.NativeEndian.Uint64(buf[8:]),
		TimeRunning: binary.NativeEndian.Uint64(buf[16:]),
		Members:     make([]MemberStat, nr),
	}
	for i := range stat.Members {
		off := groupHeaderSize + i*groupEntrySize
		stat.Members[i] = MemberStat{
			EventCount: binary.NativeEndian.Uint64(buf[off:]),
			EventID:    binary.NativeEndian.Uint64(buf[off+8:]),
		}
	}
	return stat, nil
}

func (linuxDevice) Close(fd FD) error {
	if err := unix.Close(int(fd)); err != nil {
		return errors.NativeCounter("close", err)
	}
	return nil
}

func ioctl(op string, fd FD, req uint, group bool) error {
	var flag int
	if group {
		flag = unix.PERF_IOC_FLAG_GROUP
	}
	if err := unix.IoctlSetInt(int(fd), req, flag); err != nil {
		return errors.NativeCounter(op, err)
	}
	return nil
}

func lowerConfig(cfg *Config) (unix.PerfEventAttr, error) {
	attr := unix.PerfEventAttr{
		Size: uint32(unsafe.Sizeof(unix.PerfEventAttr{})),
	}

	ev := cfg.Event
	switch ev.Kind {
	case EventHardware:
		attr.Type = unix.PERF_TYPE_HARDWARE
		attr.Config = ev.Config
	case EventSoftware:
		attr.Type = unix.PERF_TYPE_SOFTWARE
		attr.Config = ev.Config
	case EventRaw:
		attr.Type = unix.PERF_TYPE_RAW
		attr.Config = ev.Config
	case EventTracepoint:
		attr.Type = unix.PERF_TYPE_TRACEPOINT
		attr.Config = ev.Config
	case EventHwCache:
		if ev.Cache == nil {
			return attr, errors.InvalidInput(errors.PhaseNative, "hw-cache event without cache selector")
		}
		attr.Type = unix.PERF_TYPE_HW_CACHE
		attr.Config = uint64(ev.Cache.ID) | uint64(ev.Cache.Op)<<8 | uint64(ev.Cache.Result)<<16
	case EventBreakpoint:
		if ev.Breakpoint == nil {
			return attr, errors.InvalidInput(errors.PhaseNative, "breakpoint event without address")
		}
		attr.Type = unix.PERF_TYPE_BREAKPOINT
		attr.Bp_type = ev.Breakpoint.Type
		attr.Ext1 = ev.Breakpoint.Addr
		attr.Ext2 = ev.Breakpoint.Len
	case EventDynamicPmu:
		if ev.Pmu == nil {
			return attr, errors.InvalidInput(errors.PhaseNative, "pmu event without pmu type")
		}
		attr.Type = ev.Pmu.Type
		attr.Config = ev.Pmu.Config
		attr.Ext1 = ev.Pmu.Config1
		attr.Ext2 = ev.Pmu.Config2
	default:
		return attr, errors.InvalidInput(errors.PhaseNative, "unknown event kind "+ev.Kind.String())
	}

	bits := []struct {
		set bool
		bit uint64
	}{
		{cfg.Scope.ExcludeUser, unix.PerfBitExcludeUser},
		{cfg.Scope.ExcludeKernel, unix.PerfBitExcludeKernel},
		{cfg.Scope.ExcludeHv, unix.PerfBitExcludeHv},
		{cfg.Scope.ExcludeIdle, unix.PerfBitExcludeIdle},
		{cfg.Scope.ExcludeHost, unix.PerfBitExcludeHost},
		{cfg.Scope.ExcludeGuest, unix.PerfBitExcludeGuest},
		{cfg.Extra.Pinned, unix.PerfBitPinned},
		{cfg.Extra.Exclusive, unix.PerfBitExclusive},
		{cfg.Extra.Inherit, unix.PerfBitInherit},
		{cfg.Extra.InheritStat, unix.PerfBitInheritStat},
		{cfg.Extra.EnableOnExec, unix.PerfBitEnableOnExec},
	}
	for _, b := range bits {
		if b.set {
			attr.Bits |= b.bit
		}
	}
	return attr, nil
}
