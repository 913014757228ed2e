package pose

// Integrator owns a Pose and advances it one delta at a time. It is not
// safe for concurrent use; each integrator loop owns exactly one.
type Integrator struct {
	policy Policy
	gains  Gains
	pose   Pose
}

// NewIntegrator returns an integrator starting at the origin.
func NewIntegrator(policy Policy, gains Gains) *Integrator {
	return &Integrator{policy: policy, gains: gains}
}

// Policy returns the configured integration policy.
func (in *Integrator) Policy() Policy { return in.policy }

// Gains returns the configured gains.
func (in *Integrator) Gains() Gains { return in.gains }

// Pose returns the current pose.
func (in *Integrator) Pose() Pose { return in.pose }

// Apply folds one delta into the pose and returns the result.
func (in *Integrator) Apply(d Delta) Pose {
	g := in.gains
	switch in.policy {
	case ClosedEnd:
		in.pose.Heading += g.Rotation * d.Rotation
		v := ClosedTransform(d, in.pose.Heading, g)
		in.pose.X += g.X * v.X
		in.pose.Y = ClampTrack(in.pose.Y + g.Y*v.Y)
	case Swapped:
		v := SwappedTransform(d, g)
		in.accumulate(v.X, v.Y, d.Rotation)
	default:
		v := OpenTransform(d, g)
		in.accumulate(v.X, v.Y, d.Rotation)
	}
	return in.pose
}

func (in *Integrator) accumulate(dx, dy, dr float64) {
	in.pose.X += in.gains.X * dx
	in.pose.Y += in.gains.Y * dy
	in.pose.Heading += in.gains.Heading * dr
}
