// Package flash decides when the reward LED toggles. Frequency starts at a
// base rate on zone entry and decays linearly with the frame count
// reported for the zone.
package flash

import (
	"math"
	"time"
)

// OutOfZone is the reserved zone id that forces the output low.
const OutOfZone = -1

// DefaultBaseFrequency is the flash rate before any decay, in Hz.
const DefaultBaseFrequency = 50.0

// Params is the immutable flash configuration.
type Params struct {
	BaseFrequency float64
	Decay         DecayTable
	// DefaultRate applies to zones missing from Decay.
	DefaultRate float64
	// NoDecay holds the frequency at BaseFrequency in every zone.
	NoDecay bool
}

// Frequency returns the target flash frequency for a zone after frameCount
// frames, floored at zero.
func (p Params) Frequency(zone, frameCount int) float64 {
	if p.NoDecay {
		return p.BaseFrequency
	}
	rate := p.Decay.Rate(zone, p.DefaultRate)
	return math.Max(0, p.BaseFrequency-rate*float64(frameCount))
}

// Action is the hardware effect of one tick.
type Action int

const (
	// Hold means the line is left alone this tick.
	Hold Action = iota
	// WriteLow drives the line low.
	WriteLow
	// WriteHigh drives the line high.
	WriteHigh
)

func (a Action) String() string {
	switch a {
	case WriteLow:
		return "LOW"
	case WriteHigh:
		return "HIGH"
	default:
		return "hold"
	}
}

// Writes reports whether the action touches the line, and at which level.
func (a Action) Writes() (level bool, ok bool) {
	switch a {
	case WriteLow:
		return false, true
	case WriteHigh:
		return true, true
	default:
		return false, false
	}
}

// State is the flash timing state owned by one controller loop.
type State struct {
	Output     bool
	NextFlash  time.Time
	FrameCount int
	Zone       int
	// Frequency is the value computed on the most recent tick.
	Frequency float64
}

// NewState returns the state at connection time: output low, out of zone,
// and a flash due immediately.
func NewState(now time.Time) State {
	return State{NextFlash: now, Zone: OutOfZone}
}

// Observe records the latest frame count and zone.
func (s *State) Observe(frameCount, zone int) {
	s.FrameCount = frameCount
	s.Zone = zone
}

// Tick evaluates the output decision at now and returns the resulting
// hardware action. Out of zone always writes low. A zero frequency writes
// low once, on the transition. Otherwise the output toggles whenever now has
// reached the next flash time.
func (s *State) Tick(now time.Time, p Params) Action {
	if s.Zone == OutOfZone {
		s.Output = false
		s.Frequency = 0
		return WriteLow
	}

	freq := p.Frequency(s.Zone, s.FrameCount)
	s.Frequency = freq
	if freq == 0 {
		if s.Output {
			s.Output = false
			return WriteLow
		}
		return Hold
	}

	if now.Before(s.NextFlash) {
		return Hold
	}
	s.Output = !s.Output
	s.NextFlash = now.Add(Interval(freq))
	if s.Output {
		return WriteHigh
	}
	return WriteLow
}

// Interval converts a frequency in Hz to the time between toggles.
func Interval(freq float64) time.Duration {
	return time.Duration(float64(time.Second) / freq)
}
