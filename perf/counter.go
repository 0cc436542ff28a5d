package perf

import "github.com/wippyai/profiling-runtime/errors"

// Counter is a single event bound to one target. It is created disabled.
type Counter struct {
	dev     Device
	target  Target
	cfg     Config
	fd      FD
	id      uint64
	enabled bool
	closed  bool
}

// NewCounter opens a standalone counter. On failure nothing is left open.
func NewCounter(dev Device, target Target, cfg Config) (*Counter, error) {
	fd, err := dev.Open(target, &cfg, OpenOptions{Leader: NoFD})
	if err != nil {
		return nil, err
	}
	id, err := dev.EventID(fd)
	if err != nil {
		_ = dev.Close(fd)
		return nil, err
	}
	return &Counter{
		dev:    dev,
		target: target,
		cfg:    cfg,
		fd:     fd,
		id:     id,
	}, nil
}

func (c *Counter) EventID() uint64 { return c.id }
func (c *Counter) Target() Target  { return c.target }
func (c *Counter) Config() Config  { return c.cfg }
func (c *Counter) Enabled() bool   { return c.enabled }

func (c *Counter) Enable() error {
	if err := c.live("enable"); err != nil {
		return err
	}
	if err := c.dev.Enable(c.fd, false); err != nil {
		return err
	}
	c.enabled = true
	return nil
}

// Disable stops counting. Disabling a disabled counter is a no-op.
func (c *Counter) Disable() error {
	if err := c.live("disable"); err != nil {
		return err
	}
	if err := c.dev.Disable(c.fd, false); err != nil {
		return err
	}
	c.enabled = false
	return nil
}

// Reset zeroes the count without changing the enabled state.
func (c *Counter) Reset() error {
	if err := c.live("reset"); err != nil {
		return err
	}
	return c.dev.Reset(c.fd, false)
}

func (c *Counter) Stat() (CounterStat, error) {
	if err := c.live("stat"); err != nil {
		return CounterStat{}, err
	}
	return c.dev.ReadCounter(c.fd)
}

// Drop releases the native event.
func (c *Counter) Drop() {
	if c.closed {
		return
	}
	c.closed = true
	c.enabled = false
	_ = c.dev.Close(c.fd)
}

func (c *Counter) live(op string) error {
	if c.closed {
		return errors.InvalidState(op, "counter already released")
	}
	return nil
}
