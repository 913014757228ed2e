// Package daq drives the digital output line that lights the reward LED.
//
// The line is reached through a small capability interface so the control
// loop never depends on a particular driver. Hardware access is scoped by a
// Handle whose release always drives the line low before closing it.
package daq

import (
	"fmt"
	"sync"

	"github.com/banshee-data/rig/internal/monitoring"
)

// DefaultChannel is the output channel the reward LED is wired to.
const DefaultChannel = "cDAQ1Mod1/port0/line0"

// Line is a single digital output.
type Line interface {
	// Write drives the line high (true) or low (false).
	Write(level bool) error
	// Read reports the line level. Not every driver supports read-back of
	// an output, so callers must treat errors and stale values as normal.
	Read() (bool, error)
	// Close releases the driver.
	Close() error
}

// Opener opens the named channel.
type Opener func(channel string) (Line, error)

// MockLine records writes in memory. It is used by tests and dev mode.
type MockLine struct {
	mu sync.Mutex

	Channel string
	// Writes holds every level written, in order.
	Writes []bool
	// WriteErr is returned by Write when set; the level is not recorded.
	WriteErr error
	// ReadErr is returned by Read when set.
	ReadErr error
	// CloseErr is returned by Close when set.
	CloseErr error
	closed   bool
	// WriteAfterClose counts writes attempted after Close.
	WriteAfterClose int
}

// NewMockLine creates a mock line for channel.
func NewMockLine(channel string) *MockLine {
	return &MockLine{Channel: channel}
}

// MockOpener returns an Opener that always hands out line.
func MockOpener(line *MockLine) Opener {
	return func(channel string) (Line, error) {
		line.mu.Lock()
		line.Channel = channel
		line.mu.Unlock()
		return line, nil
	}
}

// Write records level.
func (m *MockLine) Write(level bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		m.WriteAfterClose++
		return fmt.Errorf("line %s is closed", m.Channel)
	}
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.Writes = append(m.Writes, level)
	return nil
}

// Read returns the last level written.
func (m *MockLine) Read() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return false, m.ReadErr
	}
	if len(m.Writes) == 0 {
		return false, nil
	}
	return m.Writes[len(m.Writes)-1], nil
}

// Close marks the line closed.
func (m *MockLine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.CloseErr
}

// IsClosed reports whether Close was called.
func (m *MockLine) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// History returns a copy of the written levels.
func (m *MockLine) History() []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]bool, len(m.Writes))
	copy(out, m.Writes)
	return out
}

// Last returns the most recent level and whether anything was written.
func (m *MockLine) Last() (bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Writes) == 0 {
		return false, false
	}
	return m.Writes[len(m.Writes)-1], true
}

// LogLine logs every write instead of touching hardware.
type LogLine struct {
	channel string
	level   bool
}

// OpenLogLine is an Opener for LogLine.
func OpenLogLine(channel string) (Line, error) {
	monitoring.Logf("dev mode: logging writes to %s instead of driving hardware", channel)
	return &LogLine{channel: channel}, nil
}

func (l *LogLine) Write(level bool) error {
	if level != l.level {
		monitoring.Logf("%s -> %s", l.channel, levelName(level))
	}
	l.level = level
	return nil
}

func (l *LogLine) Read() (bool, error) { return l.level, nil }

func (l *LogLine) Close() error {
	monitoring.Logf("%s released", l.channel)
	return nil
}

func levelName(level bool) string {
	if level {
		return "HIGH"
	}
	return "LOW"
}
