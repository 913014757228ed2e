package daq

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// fakePort replays canned replies and records commands.
type fakePort struct {
	io.Reader
	written  bytes.Buffer
	writeErr error
	short    bool
	closed   bool
}

func newFakePort(replies string) *fakePort {
	return &fakePort{Reader: strings.NewReader(replies)}
}

func (p *fakePort) Write(b []byte) (int, error) {
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	if p.short {
		return len(b) - 1, nil
	}
	return p.written.Write(b)
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func TestSerialLine_WriteCommands(t *testing.T) {
	port := newFakePort("")
	line := NewSerialLine(port, "port0/line0")

	require.NoError(t, line.Write(true))
	require.NoError(t, line.Write(false))

	assert.Equal(t, "W port0/line0 1\nW port0/line0 0\n", port.written.String())
}

func TestSerialLine_Read(t *testing.T) {
	port := newFakePort("1\r\n0\n2\n")
	line := NewSerialLine(port, "line3")

	level, err := line.Read()
	require.NoError(t, err)
	assert.True(t, level)

	level, err = line.Read()
	require.NoError(t, err)
	assert.False(t, level)

	_, err = line.Read()
	assert.ErrorContains(t, err, "unexpected read-back")

	_, err = line.Read()
	assert.ErrorContains(t, err, "no read-back")

	assert.Equal(t, strings.Repeat("R line3\n", 4), port.written.String())
}

// scriptedPort answers each Read with the next chunk. An empty chunk is
// what the serial package returns when its read timeout expires.
type scriptedPort struct {
	chunks []string
	reads  int
}

func (p *scriptedPort) Read(b []byte) (int, error) {
	p.reads++
	if len(p.chunks) == 0 {
		return 0, nil
	}
	c := p.chunks[0]
	p.chunks = p.chunks[1:]
	return copy(b, c), nil
}

func (p *scriptedPort) Write(b []byte) (int, error) { return len(b), nil }
func (p *scriptedPort) Close() error { return nil }

func TestSerialLine_ReadTimesOutOnSilentBridge(t *testing.T) {
	port := &scriptedPort{}
	line := NewSerialLine(port, "line0")

	_, err := line.Read()
	assert.ErrorIs(t, err, ErrReadTimeout)
	assert.Equal(t, 1, port.reads, "a single timed-out read fails the read-back")
}

func TestSerialLine_PartialReplyDiscardedAfterTimeout(t *testing.T) {
	// "1" arrives without its newline, the port times out, then the bridge
	// answers the next request.
	port := &scriptedPort{chunks: []string{"1", "", "0\n"}}
	line := NewSerialLine(port, "line0")

	_, err := line.Read()
	require.ErrorIs(t, err, ErrReadTimeout)

	level, err := line.Read()
	require.NoError(t, err)
	assert.False(t, level, "stale partial reply is not reused")
}

func TestSerialLine_WriteFailures(t *testing.T) {
	port := newFakePort("")
	port.short = true
	line := NewSerialLine(port, "line0")
	assert.ErrorIs(t, line.Write(true), ErrWriteFailed)

	port.short = false
	port.writeErr = errors.New("port gone")
	assert.ErrorContains(t, line.Write(true), "port gone")
	_, err := line.Read()
	assert.ErrorContains(t, err, "port gone")
}

func TestSerialLine_Close(t *testing.T) {
	port := newFakePort("")
	line := NewSerialLine(port, "line0")
	require.NoError(t, line.Close())
	assert.True(t, port.closed)
}

func TestPortOptions_Mode(t *testing.T) {
	tests := []struct {
		name        string
		opts        PortOptions
		wantMode    *serial.Mode
		wantTimeout time.Duration
		wantErr     string
	}{
		{
			name:        "defaults",
			wantMode:    &serial.Mode{BaudRate: 115200, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit},
			wantTimeout: DefaultReadTimeout,
		},
		{
			name:        "seven even two",
			opts:        PortOptions{BaudRate: 9600, Framing: "7E2", ReadTimeout: "50ms"},
			wantMode:    &serial.Mode{BaudRate: 9600, DataBits: 7, Parity: serial.EvenParity, StopBits: serial.TwoStopBits},
			wantTimeout: 50 * time.Millisecond,
		},
		{
			name:        "odd parity",
			opts:        PortOptions{Framing: "8O1"},
			wantMode:    &serial.Mode{BaudRate: 115200, DataBits: 8, Parity: serial.OddParity, StopBits: serial.OneStopBit},
			wantTimeout: DefaultReadTimeout,
		},
		{name: "nine data bits", opts: PortOptions{Framing: "9N1"}, wantErr: "data bits 5-8"},
		{name: "mark parity", opts: PortOptions{Framing: "8M1"}, wantErr: "unsupported parity"},
		{name: "three stop bits", opts: PortOptions{Framing: "8N3"}, wantErr: "unsupported stop bits"},
		{name: "long framing", opts: PortOptions{Framing: "8N1.5"}, wantErr: "invalid framing"},
		{name: "bad timeout", opts: PortOptions{ReadTimeout: "soon"}, wantErr: "invalid read_timeout"},
		{name: "zero timeout", opts: PortOptions{ReadTimeout: "0s"}, wantErr: "invalid read_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode, timeout, err := tt.opts.Mode()
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMode, mode)
			assert.Equal(t, tt.wantTimeout, timeout)
		})
	}
}

func TestSerialOpener_BadOptions(t *testing.T) {
	open := SerialOpener("/dev/null-bridge", PortOptions{Framing: "12N1"})
	_, err := open(DefaultChannel)
	assert.ErrorContains(t, err, "invalid framing")
}
