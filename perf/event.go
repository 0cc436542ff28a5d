package perf

import "fmt"

// EventKind selects the perf_event type of an Event.
type EventKind uint8

const (
	EventHardware EventKind = iota
	EventSoftware
	EventRaw
	EventTracepoint
	EventHwCache
	EventBreakpoint
	EventDynamicPmu
)

func (k EventKind) String() string {
	switch k {
	case EventHardware:
		return "hardware"
	case EventSoftware:
		return "software"
	case EventRaw:
		return "raw"
	case EventTracepoint:
		return "tracepoint"
	case EventHwCache:
		return "hw-cache"
	case EventBreakpoint:
		return "breakpoint"
	case EventDynamicPmu:
		return "dynamic-pmu"
	default:
		return fmt.Sprintf("event-kind(%d)", uint8(k))
	}
}

// Hardware event ids (PERF_COUNT_HW_*).
const (
	HardwareCPUCycles             uint64 = 0
	HardwareInstructions          uint64 = 1
	HardwareCacheReferences       uint64 = 2
	HardwareCacheMisses           uint64 = 3
	HardwareBranchInstructions    uint64 = 4
	HardwareBranchMisses          uint64 = 5
	HardwareBusCycles             uint64 = 6
	HardwareStalledCyclesFrontend uint64 = 7
	HardwareStalledCyclesBackend  uint64 = 8
	HardwareRefCPUCycles          uint64 = 9
)

// Software event ids (PERF_COUNT_SW_*).
const (
	SoftwareCPUClock        uint64 = 0
	SoftwareTaskClock       uint64 = 1
	SoftwarePageFaults      uint64 = 2
	SoftwareContextSwitches uint64 = 3
	SoftwareCPUMigrations   uint64 = 4
	SoftwarePageFaultsMin   uint64 = 5
	SoftwarePageFaultsMaj   uint64 = 6
	SoftwareAlignmentFaults uint64 = 7
	SoftwareEmulationFaults uint64 = 8
	SoftwareDummy           uint64 = 9
)

// Breakpoint types (HW_BREAKPOINT_*).
const (
	BreakpointR  uint32 = 1
	BreakpointW  uint32 = 2
	BreakpointRW uint32 = 3
	BreakpointX  uint32 = 4
)

// CacheEvent selects a generalized hardware cache event.
type CacheEvent struct {
	ID     uint8 `cbor:"1,keyasint"`
	Op     uint8 `cbor:"2,keyasint"`
	Result uint8 `cbor:"3,keyasint"`
}

// BreakpointEvent watches an address.
type BreakpointEvent struct {
	Type uint32 `cbor:"1,keyasint"`
	Addr uint64 `cbor:"2,keyasint"`
	Len  uint64 `cbor:"3,keyasint"`
}

// DynamicPmuEvent targets a PMU registered under /sys/bus/event_source.
type DynamicPmuEvent struct {
	Type    uint32 `cbor:"1,keyasint"`
	Config  uint64 `cbor:"2,keyasint"`
	Config1 uint64 `cbor:"3,keyasint,omitempty"`
	Config2 uint64 `cbor:"4,keyasint,omitempty"`
}

// Event is one entry of the event catalog. Kind decides which of the
// remaining fields apply: Config for hardware, software, raw and
// tracepoint events, and the matching pointer for the others.
type Event struct {
	Cache      *CacheEvent      `cbor:"3,keyasint,omitempty"`
	Breakpoint *BreakpointEvent `cbor:"4,keyasint,omitempty"`
	Pmu        *DynamicPmuEvent `cbor:"5,keyasint,omitempty"`
	Config     uint64           `cbor:"2,keyasint,omitempty"`
	Kind       EventKind        `cbor:"1,keyasint"`
}

func HardwareEvent(id uint64) Event   { return Event{Kind: EventHardware, Config: id} }
func SoftwareEvent(id uint64) Event   { return Event{Kind: EventSoftware, Config: id} }
func RawEvent(config uint64) Event    { return Event{Kind: EventRaw, Config: config} }
func TracepointEvent(id uint64) Event { return Event{Kind: EventTracepoint, Config: id} }

func HwCacheEvent(id, op, result uint8) Event {
	return Event{Kind: EventHwCache, Cache: &CacheEvent{ID: id, Op: op, Result: result}}
}

func BreakpointAt(typ uint32, addr, length uint64) Event {
	return Event{Kind: EventBreakpoint, Breakpoint: &BreakpointEvent{Type: typ, Addr: addr, Len: length}}
}

func PmuEvent(pmu DynamicPmuEvent) Event {
	return Event{Kind: EventDynamicPmu, Pmu: &pmu}
}

func (e Event) String() string {
	switch e.Kind {
	case EventHwCache:
		if e.Cache != nil {
			return fmt.Sprintf("hw-cache(%d,%d,%d)", e.Cache.ID, e.Cache.Op, e.Cache.Result)
		}
	case EventBreakpoint:
		if e.Breakpoint != nil {
			return fmt.Sprintf("breakpoint(%#x)", e.Breakpoint.Addr)
		}
	case EventDynamicPmu:
		if e.Pmu != nil {
			return fmt.Sprintf("pmu(%d:%#x)", e.Pmu.Type, e.Pmu.Config)
		}
	default:
		return fmt.Sprintf("%s(%#x)", e.Kind, e.Config)
	}
	return e.Kind.String() + "(?)"
}
