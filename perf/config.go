package perf

import (
	"fmt"

	"github.com/wippyai/profiling-runtime/errors"
)

// ProcessKind selects which tasks a counter observes.
type ProcessKind uint8

const (
	ProcessCurrent ProcessKind = iota
	ProcessPid
	ProcessAny
)

// Process is the task half of a counter's target scope.
type Process struct {
	Kind ProcessKind `cbor:"1,keyasint"`
	Pid  uint32      `cbor:"2,keyasint,omitempty"`
}

// CurrentProcess observes the calling process.
func CurrentProcess() Process { return Process{Kind: ProcessCurrent} }

// PidProcess observes the process with the given pid.
func PidProcess(pid uint32) Process { return Process{Kind: ProcessPid, Pid: pid} }

// AnyProcess observes every process; it requires a specific Cpu.
func AnyProcess() Process { return Process{Kind: ProcessAny} }

// CpuKind selects which CPUs a counter observes.
type CpuKind uint8

const (
	CpuAny CpuKind = iota
	CpuID
)

// Cpu is the CPU half of a counter's target scope.
type Cpu struct {
	Kind CpuKind `cbor:"1,keyasint"`
	ID   uint32  `cbor:"2,keyasint,omitempty"`
}

// AnyCpu follows the observed task across CPUs.
func AnyCpu() Cpu { return Cpu{Kind: CpuAny} }

// OnCpu restricts counting to one CPU.
func OnCpu(id uint32) Cpu { return Cpu{Kind: CpuID, ID: id} }

// Target is the (Process, Cpu) scope every counter is bound to.
type Target struct {
	Process Process
	Cpu     Cpu
}

// Args returns the pid and cpu arguments for perf_event_open.
func (t Target) Args() (pid int, cpu int, err error) {
	switch t.Process.Kind {
	case ProcessCurrent:
		pid = 0
	case ProcessPid:
		pid = int(t.Process.Pid)
	case ProcessAny:
		pid = -1
	default:
		return 0, 0, errors.InvalidInput(errors.PhaseNative, fmt.Sprintf("unknown process kind %d", t.Process.Kind))
	}

	switch t.Cpu.Kind {
	case CpuAny:
		cpu = -1
	case CpuID:
		cpu = int(t.Cpu.ID)
	default:
		return 0, 0, errors.InvalidInput(errors.PhaseNative, fmt.Sprintf("unknown cpu kind %d", t.Cpu.Kind))
	}

	if pid == -1 && cpu == -1 {
		return 0, 0, errors.InvalidInput(errors.PhaseNative, "any process requires a specific cpu")
	}
	return pid, cpu, nil
}

func (t Target) String() string {
	var p, c string
	switch t.Process.Kind {
	case ProcessCurrent:
		p = "self"
	case ProcessPid:
		p = fmt.Sprintf("pid %d", t.Process.Pid)
	default:
		p = "any"
	}
	if t.Cpu.Kind == CpuID {
		c = fmt.Sprintf("cpu %d", t.Cpu.ID)
	} else {
		c = "any cpu"
	}
	return p + "/" + c
}

// EventScope excludes privilege levels from counting.
type EventScope struct {
	ExcludeUser   bool `cbor:"1,keyasint,omitempty"`
	ExcludeKernel bool `cbor:"2,keyasint,omitempty"`
	ExcludeHv     bool `cbor:"3,keyasint,omitempty"`
	ExcludeIdle   bool `cbor:"4,keyasint,omitempty"`
	ExcludeHost   bool `cbor:"5,keyasint,omitempty"`
	ExcludeGuest  bool `cbor:"6,keyasint,omitempty"`
}

// ExtraConfig carries scheduling flags for the event.
type ExtraConfig struct {
	Pinned       bool `cbor:"1,keyasint,omitempty"`
	Exclusive    bool `cbor:"2,keyasint,omitempty"`
	Inherit      bool `cbor:"3,keyasint,omitempty"`
	InheritStat  bool `cbor:"4,keyasint,omitempty"`
	EnableOnExec bool `cbor:"5,keyasint,omitempty"`
}

// Config describes one event to count. It is passed through to the native
// device without interpretation beyond lowering into perf_event_attr.
type Config struct {
	Event Event       `cbor:"1,keyasint"`
	Scope EventScope  `cbor:"2,keyasint,omitempty"`
	Extra ExtraConfig `cbor:"3,keyasint,omitempty"`
}
