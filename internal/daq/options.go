package daq

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// Bridge firmware defaults.
const (
	DefaultBaudRate    = 115200
	DefaultFraming     = "8N1"
	DefaultReadTimeout = 200 * time.Millisecond
)

// PortOptions configures the serial link to the output bridge. Zero values
// take the firmware defaults.
type PortOptions struct {
	BaudRate    int    `json:"baud_rate,omitempty"`
	Framing     string `json:"framing,omitempty"`      // data bits, parity, stop bits, e.g. "8N1" or "7E2"
	ReadTimeout string `json:"read_timeout,omitempty"` // duration string like "200ms"
}

var parities = map[byte]serial.Parity{
	'N': serial.NoParity,
	'E': serial.EvenParity,
	'O': serial.OddParity,
}

// Mode returns the serial mode and read-back timeout the options describe.
func (o PortOptions) Mode() (*serial.Mode, time.Duration, error) {
	mode := &serial.Mode{BaudRate: o.BaudRate}
	if mode.BaudRate <= 0 {
		mode.BaudRate = DefaultBaudRate
	}

	framing := o.Framing
	if framing == "" {
		framing = DefaultFraming
	}
	if len(framing) != 3 || framing[0] < '5' || framing[0] > '8' {
		return nil, 0, fmt.Errorf("invalid framing %q: want data bits 5-8, parity N/E/O and stop bits 1/2, e.g. 8N1", o.Framing)
	}
	mode.DataBits = int(framing[0] - '0')

	parity, ok := parities[framing[1]]
	if !ok {
		return nil, 0, fmt.Errorf("invalid framing %q: unsupported parity %q", o.Framing, framing[1])
	}
	mode.Parity = parity

	switch framing[2] {
	case '1':
		mode.StopBits = serial.OneStopBit
	case '2':
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, 0, fmt.Errorf("invalid framing %q: unsupported stop bits %q", o.Framing, framing[2])
	}

	timeout := DefaultReadTimeout
	if o.ReadTimeout != "" {
		d, err := time.ParseDuration(o.ReadTimeout)
		if err != nil || d <= 0 {
			return nil, 0, fmt.Errorf("invalid read_timeout %q", o.ReadTimeout)
		}
		timeout = d
	}
	return mode, timeout, nil
}
