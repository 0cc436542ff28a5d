package perf

import (
	"math"
	"math/bits"
)

// CounterStat is one reading of a single event.
//
// TimeEnabled and TimeRunning differ when the kernel multiplexes counters;
// consumers should scale EventCount by their ratio (see Scaled).
type CounterStat struct {
	EventID     uint64 `cbor:"1,keyasint"`
	EventCount  uint64 `cbor:"2,keyasint"`
	TimeEnabled uint64 `cbor:"3,keyasint"`
	TimeRunning uint64 `cbor:"4,keyasint"`
}

// Scaled estimates the count the event would have reached had it been
// scheduled for the whole enabled time. It saturates at math.MaxUint64.
func (s CounterStat) Scaled() uint64 {
	return scale(s.EventCount, s.TimeEnabled, s.TimeRunning)
}

// MemberStat is one member's count inside a group reading.
type MemberStat struct {
	EventID    uint64 `cbor:"1,keyasint"`
	EventCount uint64 `cbor:"2,keyasint"`
}

// CounterGroupStat is one consistent reading of every group member.
// Members are ordered by insertion into the group.
type CounterGroupStat struct {
	Members     []MemberStat `cbor:"3,keyasint"`
	TimeEnabled uint64       `cbor:"1,keyasint"`
	TimeRunning uint64       `cbor:"2,keyasint"`
}

// Counter extracts one member as a standalone CounterStat.
func (s CounterGroupStat) Counter(index int) (CounterStat, bool) {
	if index < 0 || index >= len(s.Members) {
		return CounterStat{}, false
	}
	m := s.Members[index]
	return CounterStat{
		EventID:     m.EventID,
		EventCount:  m.EventCount,
		TimeEnabled: s.TimeEnabled,
		TimeRunning: s.TimeRunning,
	}, true
}

func scale(count, enabled, running uint64) uint64 {
	if running == 0 {
		return 0
	}
	if running == enabled {
		return count
	}
	hi, lo := bits.Mul64(count, enabled)
	if hi >= running {
		return math.MaxUint64
	}
	q, _ := bits.Div64(hi, lo, running)
	return q
}
