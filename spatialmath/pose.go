package spatialmath

import (
	"github.com/golang/geo/r3"
)

// Pose is a rigid transformation: a position in meters and an orthonormal
// rotation.
type Pose struct {
	Pos r3.Vector
	Rot Rotation
}

// NewZeroPose returns the identity pose.
func NewZeroPose() Pose {
	return Pose{Rot: NewZeroRotation()}
}

// NewPose returns a pose from a position and a rotation.
func NewPose(pos r3.Vector, rot Rotation) Pose {
	return Pose{Pos: pos, Rot: rot}
}

// NewPoseFromPoint returns a pure-translation pose.
func NewPoseFromPoint(pos r3.Vector) Pose {
	return Pose{Pos: pos, Rot: NewZeroRotation()}
}

// Compose applies b in the local frame of a.
func Compose(a, b Pose) Pose {
	return Pose{
		Pos: a.Pos.Add(a.Rot.Apply(b.Pos)),
		Rot: a.Rot.Mul(b.Rot),
	}
}

// Inverse returns the pose q such that Compose(p, q) is the identity.
func (p Pose) Inverse() Pose {
	inv := p.Rot.Inverse()
	return Pose{Pos: inv.Apply(p.Pos.Mul(-1)), Rot: inv}
}

// TransformPoint maps a point from the local frame of p to the world frame.
func (p Pose) TransformPoint(v r3.Vector) r3.Vector {
	return p.Pos.Add(p.Rot.Apply(v))
}

// InverseTransformPoint maps a world-frame point into the local frame of p.
func (p Pose) InverseTransformPoint(v r3.Vector) r3.Vector {
	return p.Rot.ApplyInverse(v.Sub(p.Pos))
}

// MidPose interpolates between two poses. The position is blended linearly by
// t; the rotation follows the axis-angle geodesic from a.Rot to b.Rot by t.
// MidPose(0, a, b) is a and MidPose(1, a, b) is b.
func MidPose(t float64, a, b Pose) Pose {
	pos := a.Pos.Mul(1 - t).Add(b.Pos.Mul(t))
	omega := a.Rot.Inverse().Mul(b.Rot).Log()
	rot := a.Rot
	if omega.Norm() > 0 {
		rot = a.Rot.Mul(RotationExp(omega.Mul(t)))
	}
	return Pose{Pos: pos, Rot: rot}
}

// PoseAlmostEqual reports whether two poses coincide within eps in both
// translation (meters) and rotation (radians).
func PoseAlmostEqual(a, b Pose, eps float64) bool {
	return a.Pos.Sub(b.Pos).Norm() < eps && RotationAlmostEqual(a.Rot, b.Rot, eps)
}
