package perf

// FD identifies one opened native event.
type FD int

// NoFD marks the absence of a group leader.
const NoFD FD = -1

// OpenOptions controls how a single event is opened.
type OpenOptions struct {
	// Leader is the group leader to attach to, or NoFD for a leader or a
	// standalone counter.
	Leader FD

	// Group requests the group read format so the leader can read every
	// member at once.
	Group bool
}

// Device is the native counting primitive. Implementations need not be
// safe for concurrent use; every caller in this module is confined to a
// single run.
type Device interface {
	// Open creates one event. Leaders and standalone counters start
	// disabled; members follow their leader.
	Open(target Target, cfg *Config, opts OpenOptions) (FD, error)

	// EventID returns the kernel-assigned id of an opened event.
	EventID(fd FD) (uint64, error)

	// Enable, Disable and Reset apply to the whole group when group is set.
	Enable(fd FD, group bool) error
	Disable(fd FD, group bool) error
	Reset(fd FD, group bool) error

	// ReadCounter reads a standalone counter.
	ReadCounter(fd FD) (CounterStat, error)

	// ReadGroup reads a leader opened with OpenOptions.Group and its
	// members. Members are returned in kernel order.
	ReadGroup(fd FD, members int) (CounterGroupStat, error)

	Close(fd FD) error
}
