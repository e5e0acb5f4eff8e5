// Package robot models the 7 degree of freedom arm that produced the motion
// data: its joint limits, the normalization applied to joint configurations
// before they enter a model, forward kinematics over a modified
// Denavit-Hartenberg chain, and surface-point samplers over the arm's
// collision geometry.
//
// All angles are radians. Configurations are raw joint values unless a
// function documents otherwise; Normalize and Denormalize convert between the
// raw and the [-1, 1] model-facing representation.
package robot

// NumJoints is the number of revolute joints in the arm.
const NumJoints = 7

// Configuration is a single joint configuration, ordered base to wrist.
type Configuration [NumJoints]float64

// jointLimits holds the physical [min, max] travel of each joint.
var jointLimits = [NumJoints][2]float64{
	{-2.8973, 2.8973},
	{-1.7628, 1.7628},
	{-2.8973, 2.8973},
	{-3.0718, -0.0698},
	{-2.8973, 2.8973},
	{-0.0175, 3.7525},
	{-2.8973, 2.8973},
}

// Limits returns the per-joint [min, max] travel in radians.
func Limits() [NumJoints][2]float64 {
	return jointLimits
}

// Clamp returns q with each joint value clamped to its physical limits.
// Clamp is idempotent.
func Clamp(q Configuration) Configuration {
	for i := range q {
		if q[i] < jointLimits[i][0] {
			q[i] = jointLimits[i][0]
		} else if q[i] > jointLimits[i][1] {
			q[i] = jointLimits[i][1]
		}
	}
	return q
}

// Normalize maps each joint value onto [-1, 1] using that joint's limit pair.
// Inputs must already be clamped; values outside the limits map outside
// [-1, 1]. Use ClampAndNormalize for anything that has not been clamped.
func Normalize(q Configuration) Configuration {
	for i := range q {
		lo, hi := jointLimits[i][0], jointLimits[i][1]
		q[i] = 2*(q[i]-lo)/(hi-lo) - 1
	}
	return q
}

// Denormalize is the exact inverse of Normalize, mapping [-1, 1] values back
// onto the physical joint ranges.
func Denormalize(q Configuration) Configuration {
	for i := range q {
		lo, hi := jointLimits[i][0], jointLimits[i][1]
		q[i] = (q[i]+1)/2*(hi-lo) + lo
	}
	return q
}

// ClampAndNormalize clamps q to the joint limits and then normalizes it.
// This is the only normalization path used for configurations and
// supervision targets; clamping first means a value pushed past a limit by
// noise lands exactly on ±1 rather than outside the normalized range.
func ClampAndNormalize(q Configuration) Configuration {
	return Normalize(Clamp(q))
}

// Interpolate returns the configuration a fraction t of the way from a to b,
// with t in [0, 1]. The endpoints reproduce a and b exactly.
func Interpolate(a, b Configuration, t float64) Configuration {
	var out Configuration
	for i := range out {
		out[i] = a[i]*(1-t) + b[i]*t
	}
	return out
}

// Float32s returns the configuration as a freshly allocated float32 slice.
func (q Configuration) Float32s() []float32 {
	out := make([]float32, NumJoints)
	for i, v := range q {
		out[i] = float32(v)
	}
	return out
}
