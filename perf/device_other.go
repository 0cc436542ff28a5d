//go:build !linux

package perf

import "github.com/wippyai/profiling-runtime/errors"

type unsupportedDevice struct{}

// NewDevice returns a device whose every operation fails: perf_event is
// Linux only.
func NewDevice() Device {
	return unsupportedDevice{}
}

func unsupported() error {
	return errors.Unsupported(errors.PhaseNative, "perf_event is only available on linux")
}

func (unsupportedDevice) Open(Target, *Config, OpenOptions) (FD, error) { return NoFD, unsupported() }
func (unsupportedDevice) EventID(FD) (uint64, error)                    { return 0, unsupported() }
func (unsupportedDevice) Enable(FD, bool) error                         { return unsupported() }
func (unsupportedDevice) Disable(FD, bool) error                        { return unsupported() }
func (unsupportedDevice) Reset(FD, bool) error                          { return unsupported() }
func (unsupportedDevice) ReadCounter(FD) (CounterStat, error)           { return CounterStat{}, unsupported() }
func (unsupportedDevice) Close(FD) error                                { return nil }

func (unsupportedDevice) ReadGroup(FD, int) (CounterGroupStat, error) {
	return CounterGroupStat{}, unsupported()
}
