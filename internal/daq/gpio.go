package daq

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"
)

// gpioPin is the part of rpio.Pin the line needs.
type gpioPin interface {
	Output()
	Write(state rpio.State)
	Read() rpio.State
}

// GPIOLine drives a Raspberry Pi GPIO pin directly.
type GPIOLine struct {
	mu      sync.Mutex
	pin     gpioPin
	channel string
	release func() error
}

// ParseGPIOChannel accepts "GPIO18", "gpio18" or "18" and returns the BCM
// pin number.
func ParseGPIOChannel(channel string) (int, error) {
	s := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(channel)), "gpio")
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 27 {
		return 0, fmt.Errorf("invalid GPIO channel %q: want a BCM pin 0-27 such as GPIO18", channel)
	}
	return n, nil
}

// OpenGPIOLine maps the GPIO registers and configures the pin as an output.
func OpenGPIOLine(channel string) (Line, error) {
	n, err := ParseGPIOChannel(channel)
	if err != nil {
		return nil, err
	}
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to map GPIO memory: %w", err)
	}
	return newGPIOLine(rpio.Pin(n), channel, rpio.Close), nil
}

func newGPIOLine(pin gpioPin, channel string, release func() error) *GPIOLine {
	pin.Output()
	return &GPIOLine{pin: pin, channel: channel, release: release}
}

// Write sets the pin level.
func (g *GPIOLine) Write(level bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pin == nil {
		return fmt.Errorf("GPIO line %s is closed", g.channel)
	}
	state := rpio.Low
	if level {
		state = rpio.High
	}
	g.pin.Write(state)
	return nil
}

// Read returns the pin level.
func (g *GPIOLine) Read() (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pin == nil {
		return false, fmt.Errorf("GPIO line %s is closed", g.channel)
	}
	return g.pin.Read() == rpio.High, nil
}

// Close unmaps the GPIO registers. The pin keeps its last level.
func (g *GPIOLine) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pin == nil {
		return nil
	}
	g.pin = nil
	return g.release()
}
