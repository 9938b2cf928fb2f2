// Package spatialmath defines spatial mathematical operations for the walking
// controller: rotations with quaternion-normalized composition, rigid poses,
// axis-angle log/exp maps and pose interpolation.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Rotation is an orientation in 3D space. It is backed by a unit quaternion so
// that repeated compositions stay orthonormal; the 3x3 matrix form is derived
// on demand.
type Rotation struct {
	q quat.Number
}

// NewZeroRotation returns the identity rotation.
func NewZeroRotation() Rotation {
	return Rotation{quat.Number{Real: 1}}
}

// NewRotationFromQuat builds a Rotation from an arbitrary nonzero quaternion,
// normalizing it.
func NewRotationFromQuat(q quat.Number) Rotation {
	n := math.Sqrt(q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	if n == 0 {
		return NewZeroRotation()
	}
	return Rotation{quat.Number{Real: q.Real / n, Imag: q.Imag / n, Jmag: q.Jmag / n, Kmag: q.Kmag / n}}
}

// NewRotationFromAxisAngle builds a Rotation from a rotation axis and an angle
// in radians. A zero axis yields the identity.
func NewRotationFromAxisAngle(axis r3.Vector, theta float64) Rotation {
	n := axis.Norm()
	if n == 0 {
		return NewZeroRotation()
	}
	s := math.Sin(theta/2) / n
	return Rotation{quat.Number{Real: math.Cos(theta / 2), Imag: axis.X * s, Jmag: axis.Y * s, Kmag: axis.Z * s}}
}

// NewRotationFromMatrix builds a Rotation from a row-major 3x3 matrix, assumed
// orthonormal. Shepperd's method keeps the conversion stable for all signs of
// the trace.
func NewRotationFromMatrix(m [9]float64) Rotation {
	tr := m[0] + m[4] + m[8]
	var q quat.Number
	switch {
	case tr > 0:
		s := math.Sqrt(tr+1) * 2
		q = quat.Number{Real: s / 4, Imag: (m[7] - m[5]) / s, Jmag: (m[2] - m[6]) / s, Kmag: (m[3] - m[1]) / s}
	case m[0] > m[4] && m[0] > m[8]:
		s := math.Sqrt(1+m[0]-m[4]-m[8]) * 2
		q = quat.Number{Real: (m[7] - m[5]) / s, Imag: s / 4, Jmag: (m[1] + m[3]) / s, Kmag: (m[2] + m[6]) / s}
	case m[4] > m[8]:
		s := math.Sqrt(1+m[4]-m[0]-m[8]) * 2
		q = quat.Number{Real: (m[2] - m[6]) / s, Imag: (m[1] + m[3]) / s, Jmag: s / 4, Kmag: (m[5] + m[7]) / s}
	default:
		s := math.Sqrt(1+m[8]-m[0]-m[4]) * 2
		q = quat.Number{Real: (m[3] - m[1]) / s, Imag: (m[2] + m[6]) / s, Jmag: (m[5] + m[7]) / s, Kmag: s / 4}
	}
	return NewRotationFromQuat(q)
}

// NewRotationFromRPY builds the rotation Rz(yaw)*Ry(pitch)*Rx(roll).
func NewRotationFromRPY(roll, pitch, yaw float64) Rotation {
	rx := NewRotationFromAxisAngle(r3.Vector{X: 1}, roll)
	ry := NewRotationFromAxisAngle(r3.Vector{Y: 1}, pitch)
	rz := NewRotationFromAxisAngle(r3.Vector{Z: 1}, yaw)
	return rz.Mul(ry).Mul(rx)
}

// Quaternion returns the underlying unit quaternion.
func (r Rotation) Quaternion() quat.Number {
	return r.q
}

// Mul composes two rotations (this rotation applied after o in the local
// frame, i.e. matrix product r*o). The result is renormalized to guard
// against drift.
func (r Rotation) Mul(o Rotation) Rotation {
	return NewRotationFromQuat(quat.Mul(r.q, o.q))
}

// Inverse returns the inverse rotation.
func (r Rotation) Inverse() Rotation {
	return Rotation{quat.Conj(r.q)}
}

// Apply rotates a vector.
func (r Rotation) Apply(v r3.Vector) r3.Vector {
	qv := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	res := quat.Mul(quat.Mul(r.q, qv), quat.Conj(r.q))
	return r3.Vector{X: res.Imag, Y: res.Jmag, Z: res.Kmag}
}

// ApplyInverse rotates a vector by the inverse rotation, i.e. R^T * v.
func (r Rotation) ApplyInverse(v r3.Vector) r3.Vector {
	return r.Inverse().Apply(v)
}

// Log returns the axis-angle vector (axis scaled by angle) of the rotation.
func (r Rotation) Log() r3.Vector {
	q0 := r.q.Real
	v := r3.Vector{X: r.q.Imag, Y: r.q.Jmag, Z: r.q.Kmag}
	n := v.Norm()
	if n == 0 {
		return r3.Vector{}
	}
	var th float64
	switch {
	case q0 > 1e-10 || q0 < -1e-10:
		th = 2 * math.Atan(n/q0)
	case q0 > 0:
		th = math.Pi
	default:
		th = -math.Pi
	}
	return v.Mul(th / n)
}

// RotationExp is the inverse of Log: it maps an axis-angle vector back to a
// Rotation (Rodrigues' formula).
func RotationExp(w r3.Vector) Rotation {
	return NewRotationFromAxisAngle(w, w.Norm())
}

// OrientationError returns the world-frame rotation vector that carries self
// onto target, self * log(self^T * target).
func OrientationError(self, target Rotation) r3.Vector {
	return self.Apply(self.Inverse().Mul(target).Log())
}

// Matrix returns the rotation as a row-major 3x3 matrix.
func (r Rotation) Matrix() [9]float64 {
	w, x, y, z := r.q.Real, r.q.Imag, r.q.Jmag, r.q.Kmag
	return [9]float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	}
}

// RPY returns roll, pitch, yaw such that NewRotationFromRPY(roll, pitch, yaw)
// reproduces the rotation.
func (r Rotation) RPY() (roll, pitch, yaw float64) {
	m := r.Matrix()
	roll = math.Atan2(m[7], m[8])
	pitch = math.Atan2(-m[6], math.Hypot(m[7], m[8]))
	yaw = math.Atan2(m[3], m[0])
	return roll, pitch, yaw
}

// Yaw returns the rotation about world Z only.
func (r Rotation) Yaw() float64 {
	_, _, yaw := r.RPY()
	return yaw
}

// RotationAlmostEqual reports whether two rotations differ by less than eps
// radians.
func RotationAlmostEqual(a, b Rotation, eps float64) bool {
	return a.Inverse().Mul(b).Log().Norm() < eps
}
