package daq

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.bug.st/serial"
)

// ErrWriteFailed reports a short write to the bridge.
var ErrWriteFailed = errors.New("failed to write to serial port")

// ErrReadTimeout reports that the bridge sent nothing within the port's
// read timeout.
var ErrReadTimeout = errors.New("serial read timed out")

// SerialPorter is the minimal interface needed for the bridge port.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}

// SerialLine drives one output through a microcontroller bridge speaking a
// line protocol: "W <channel> 1|0" sets the level and "R <channel>" is
// answered with "0" or "1".
type SerialLine struct {
	mu      sync.Mutex
	port    SerialPorter
	reader  *bufio.Reader
	channel string
}

// timeoutReader turns the empty read go.bug.st/serial returns on a timeout
// into ErrReadTimeout, so one timeout fails the read-back instead of being
// retried by bufio.
type timeoutReader struct {
	r io.Reader
}

func (t timeoutReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n == 0 && err == nil && len(p) > 0 {
		return 0, ErrReadTimeout
	}
	return n, err
}

// NewSerialLine wraps an already opened port.
func NewSerialLine(port SerialPorter, channel string) *SerialLine {
	return &SerialLine{port: port, reader: bufio.NewReader(timeoutReader{port}), channel: channel}
}

// SerialOpener returns an Opener that opens the bridge at path.
func SerialOpener(path string, opts PortOptions) Opener {
	return func(channel string) (Line, error) {
		mode, timeout, err := opts.Mode()
		if err != nil {
			return nil, err
		}
		port, err := serial.Open(path, mode)
		if err != nil {
			return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
		}
		if err := port.SetReadTimeout(timeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("failed to set read timeout on %s: %w", path, err)
		}
		return NewSerialLine(port, channel), nil
	}
}

func (s *SerialLine) send(command string) error {
	command += "\n"
	n, err := s.port.Write([]byte(command))
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// Write sets the output level.
func (s *SerialLine) Write(level bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := 0
	if level {
		v = 1
	}
	return s.send(fmt.Sprintf("W %s %d", s.channel, v))
}

// Read asks the bridge for the current output level.
func (s *SerialLine) Read() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.send("R " + s.channel); err != nil {
		return false, err
	}
	reply, err := s.reader.ReadString('\n')
	if err != nil {
		// Drop any partial reply so it is not taken as the next answer.
		s.reader.Reset(timeoutReader{s.port})
		return false, fmt.Errorf("no read-back from %s: %w", s.channel, err)
	}
	switch strings.TrimSpace(reply) {
	case "1":
		return true, nil
	case "0":
		return false, nil
	default:
		return false, fmt.Errorf("unexpected read-back %q from %s", strings.TrimSpace(reply), s.channel)
	}
}

// Close closes the port.
func (s *SerialLine) Close() error {
	return s.port.Close()
}
