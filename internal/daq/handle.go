package daq

import (
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/rig/internal/monitoring"
	"github.com/banshee-data/rig/internal/timeutil"
)

// DefaultHold is how long the line is held low before it is released.
const DefaultHold = 2 * time.Second

// Handle is the single writer of an acquired line. Release must run on every
// exit path; it drives the line low, holds, and only then closes the driver.
type Handle struct {
	line     Line
	channel  string
	hold     time.Duration
	clock    timeutil.Clock
	released bool
}

// HandleOption configures a Handle.
type HandleOption func(*Handle)

// WithHold sets the low hold before release.
func WithHold(d time.Duration) HandleOption {
	return func(h *Handle) { h.hold = d }
}

// WithClock replaces the clock used for the hold.
func WithClock(c timeutil.Clock) HandleOption {
	return func(h *Handle) { h.clock = c }
}

// Acquire opens channel and returns the guarded handle.
func Acquire(open Opener, channel string, opts ...HandleOption) (*Handle, error) {
	line, err := open(channel)
	if err != nil {
		return nil, fmt.Errorf("failed to open output channel %s: %w", channel, err)
	}
	h := &Handle{
		line:    line,
		channel: channel,
		hold:    DefaultHold,
		clock:   timeutil.RealClock{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Channel returns the acquired channel name.
func (h *Handle) Channel() string { return h.channel }

// Write drives the line. Writing after Release is an error.
func (h *Handle) Write(level bool) error {
	if h.released {
		return fmt.Errorf("output channel %s already released", h.channel)
	}
	if err := h.line.Write(level); err != nil {
		return fmt.Errorf("failed to write %s to %s: %w", levelName(level), h.channel, err)
	}
	return nil
}

// Read passes through to the driver.
func (h *Handle) Read() (bool, error) {
	if h.released {
		return false, fmt.Errorf("output channel %s already released", h.channel)
	}
	return h.line.Read()
}

// ReadState is a best-effort read: failures are logged and reported as
// ok == false, never returned.
func (h *Handle) ReadState() (level bool, ok bool) {
	level, err := h.Read()
	if err != nil {
		monitoring.Logf("could not read %s state: %v", h.channel, err)
		return false, false
	}
	return level, true
}

// Release drives the line low, holds, drives it low again and closes the
// driver. It is idempotent; only the first call has any effect.
func (h *Handle) Release() error {
	if h.released {
		return nil
	}
	h.released = true

	var errs []error
	if err := h.line.Write(false); err != nil {
		errs = append(errs, fmt.Errorf("failed to drive %s low: %w", h.channel, err))
	}
	if h.hold > 0 {
		h.clock.Sleep(h.hold)
	}
	if err := h.line.Write(false); err != nil {
		errs = append(errs, fmt.Errorf("failed to drive %s low after hold: %w", h.channel, err))
	}
	if err := h.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close %s: %w", h.channel, err))
	}
	return errors.Join(errs...)
}
