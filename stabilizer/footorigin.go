// Package stabilizer closes the balance loop: it compares the reference
// stream from the gait generator against measured joints, inertial and
// force/torque samples and emits modified joint-angle commands.
package stabilizer

import (
	"github.com/golang/geo/r3"

	"go.viam.com/biped/kinematics"
	"go.viam.com/biped/spatialmath"
)

// projectedFrame flattens a foot pose onto the ground plane: x is the foot's
// x-axis projected horizontally, z is world up, y completes the frame.
func projectedFrame(p spatialmath.Pose) spatialmath.Pose {
	x := p.Rot.Apply(r3.Vector{X: 1})
	x.Z = 0
	if x.Norm() < 1e-12 {
		x = r3.Vector{X: 1}
	}
	x = x.Normalize()
	z := r3.Vector{Z: 1}
	y := z.Cross(x)
	rot := spatialmath.NewRotationFromMatrix([9]float64{
		x.X, y.X, z.X,
		x.Y, y.Y, z.Y,
		x.Z, y.Z, z.Z,
	})
	return spatialmath.NewPose(p.Pos, rot)
}

// FootOriginPose defines the instantaneous ground frame from the feet in
// contact: the mid frame of both projected foot frames in double support, or
// the single contacting foot's projected frame. With no contact the mid frame
// is used so downstream math stays finite.
func FootOriginPose(feet [kinematics.NumLegs]spatialmath.Pose, contact [kinematics.NumLegs]bool) spatialmath.Pose {
	r := projectedFrame(feet[kinematics.Right])
	l := projectedFrame(feet[kinematics.Left])
	switch {
	case contact[kinematics.Right] && !contact[kinematics.Left]:
		return r
	case contact[kinematics.Left] && !contact[kinematics.Right]:
		return l
	default:
		return spatialmath.MidPose(0.5, r, l)
	}
}
