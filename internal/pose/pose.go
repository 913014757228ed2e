// Package pose integrates per-frame locomotion deltas into an absolute
// position and heading.
//
// Three transform policies exist because the rig has been run with three
// different integration schemes. They produce different trajectories for
// the same input and are kept as separate, named policies.
package pose

import (
	"fmt"
	"strings"
)

// Delta is one frame of raw locomotion signal.
type Delta struct {
	Sidestep float64
	Forward  float64
	Rotation float64
}

// Pose is the accumulated position and heading (radians, never wrapped).
// Under the ClosedEnd policy Y holds the clamped track axis.
type Pose struct {
	X       float64
	Y       float64
	Heading float64
}

// Gains maps raw deltas into global displacement and output axes.
type Gains struct {
	// Local gains applied to the raw delta before rotation.
	Sidestep float64 `json:"sidestep"`
	Forward  float64 `json:"forward"`
	Rotation float64 `json:"rotation"`

	// Output axis gains applied when accumulating.
	X float64 `json:"x"`
	Y float64 `json:"y"`
	// Heading scales the per-frame rotation added to Pose.Heading. Unused by
	// ClosedEnd, which advances heading with the Rotation gain instead.
	Heading float64 `json:"heading"`
}

// DefaultOpenGains returns the gains the open-axis integrator runs with.
func DefaultOpenGains() Gains {
	return Gains{Sidestep: 2, Forward: 2, Rotation: 1, X: 1, Y: 0, Heading: 1}
}

// DefaultClosedGains returns the gains the closed-end integrator runs with.
func DefaultClosedGains() Gains {
	return Gains{Sidestep: 4, Forward: 4, Rotation: 1, X: 0, Y: 1, Heading: 1}
}

// Policy selects the integration scheme.
type Policy int

const (
	// Open rotates (forward, sidestep) by the instantaneous delta angle.
	Open Policy = iota
	// Swapped rotates (sidestep, forward) by the instantaneous delta angle.
	Swapped
	// ClosedEnd advances heading first, rotates (sidestep, forward) by the
	// cumulative heading and clamps the track axis.
	ClosedEnd
)

func (p Policy) String() string {
	switch p {
	case Open:
		return "open"
	case Swapped:
		return "swapped"
	case ClosedEnd:
		return "closed"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy accepts the names produced by Policy.String.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "open", "":
		return Open, nil
	case "swapped":
		return Swapped, nil
	case "closed", "closed-end", "closed_end":
		return ClosedEnd, nil
	default:
		return Open, fmt.Errorf("unknown integration policy %q: expected open, swapped or closed", s)
	}
}

// MarshalText encodes the policy by name.
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a policy name.
func (p *Policy) UnmarshalText(b []byte) error {
	v, err := ParsePolicy(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// DefaultGains returns the gains matching the policy.
func (p Policy) DefaultGains() Gains {
	if p == ClosedEnd {
		return DefaultClosedGains()
	}
	return DefaultOpenGains()
}

// Ordered returns the three pose values in the order they go on the wire.
// The closed-end consumer expects the track axis first.
func (p Policy) Ordered(ps Pose) (a, b, heading float64) {
	if p == ClosedEnd {
		return ps.Y, ps.X, ps.Heading
	}
	return ps.X, ps.Y, ps.Heading
}
