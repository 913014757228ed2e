package pose

import "gonum.org/v1/gonum/spatial/r2"

// Track axis bounds for the closed-end policy.
const (
	TrackUpper = 100.0
	TrackLower = 0.0
	// TrackCeiling and TrackFloor replace any update that crosses a bound.
	TrackCeiling = 99.9
	TrackFloor   = 0.01
)

var origin = r2.Vec{}

// OpenTransform rotates the gained (forward, sidestep) vector by the gained
// delta angle.
func OpenTransform(d Delta, g Gains) r2.Vec {
	local := r2.Vec{X: g.Forward * d.Forward, Y: g.Sidestep * d.Sidestep}
	return r2.Rotate(local, g.Rotation*d.Rotation, origin)
}

// SwappedTransform rotates the gained (sidestep, forward) vector by the
// gained delta angle.
func SwappedTransform(d Delta, g Gains) r2.Vec {
	local := r2.Vec{X: g.Sidestep * d.Sidestep, Y: g.Forward * d.Forward}
	return r2.Rotate(local, g.Rotation*d.Rotation, origin)
}

// ClosedTransform rotates the gained (sidestep, forward) vector by the
// cumulative heading. heading must already include this frame's rotation.
func ClosedTransform(d Delta, heading float64, g Gains) r2.Vec {
	local := r2.Vec{X: g.Sidestep * d.Sidestep, Y: g.Forward * d.Forward}
	return r2.Rotate(local, heading, origin)
}

// ClampTrack saturates a proposed track position. Values beyond a bound are
// replaced by fixed constants, everything else passes through unchanged.
func ClampTrack(z float64) float64 {
	switch {
	case z > TrackUpper:
		return TrackCeiling
	case z < TrackLower:
		return TrackFloor
	default:
		return z
	}
}
