// Package tare implements the world-tare helper: pure quaternion math with
// no session state, isolated so it can be omitted from builds that don't
// expose the tare API.
package tare

import "math"

// Quaternion is a unit rotation quaternion in x, y, z, w order.
type Quaternion struct {
	X, Y, Z, W float64
}

// Mul returns the Hamilton product q*r (applies r first, then q).
func (q Quaternion) Mul(r Quaternion) Quaternion {
	return Quaternion{
		X: q.W*r.X + q.X*r.W + q.Y*r.Z - q.Z*r.Y,
		Y: q.W*r.Y - q.X*r.Z + q.Y*r.W + q.Z*r.X,
		Z: q.W*r.Z + q.X*r.Y - q.Y*r.X + q.Z*r.W,
		W: q.W*r.W - q.X*r.X - q.Y*r.Y - q.Z*r.Z,
	}
}

// WorldTare returns the world-tared rotation: the Hamilton product of base
// (the prior tare transform) and incoming (the hub's rotation vector).
func WorldTare(base, incoming Quaternion) Quaternion {
	return base.Mul(incoming)
}

// yaw extracts the yaw (heading) angle from a quaternion:
// atan2(2yx - 2wz, 2w^2 + 2y^2 - 1).
func yaw(q Quaternion) float64 {
	return math.Atan2(2*q.Y*q.X-2*q.W*q.Z, 2*q.W*q.W+2*q.Y*q.Y-1)
}

// fromZ builds a pure-yaw (Z-axis) quaternion whose yaw, as extracted by
// yaw, is angle radians.
func fromZ(angle float64) Quaternion {
	return Quaternion{Z: -math.Sin(angle / 2), W: math.Cos(angle / 2)}
}

// SetTareZ computes the yaw-only delta from current's heading to
// targetYawRad (0 if the caller has no target) and post-multiplies it into
// priorTare.
func SetTareZ(priorTare Quaternion, current Quaternion, targetYawRad *float64) Quaternion {
	var target float64
	if targetYawRad != nil {
		target = *targetYawRad
	}
	delta := target - yaw(current)
	return priorTare.Mul(fromZ(delta))
}
