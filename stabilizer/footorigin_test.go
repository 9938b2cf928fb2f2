package stabilizer

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/biped/kinematics"
	"go.viam.com/biped/spatialmath"
)

func TestFootOriginDoubleSupport(t *testing.T) {
	feet := [kinematics.NumLegs]spatialmath.Pose{
		spatialmath.NewPoseFromPoint(r3.Vector{Y: -0.1}),
		spatialmath.NewPoseFromPoint(r3.Vector{Y: 0.1}),
	}
	origin := FootOriginPose(feet, [kinematics.NumLegs]bool{true, true})
	test.That(t, origin.Pos.Norm(), test.ShouldBeLessThan, 1e-12)
	test.That(t, origin.Rot.Log().Norm(), test.ShouldBeLessThan, 1e-9)
}

func TestFootOriginSingleSupport(t *testing.T) {
	yaw := 0.5
	feet := [kinematics.NumLegs]spatialmath.Pose{
		spatialmath.NewPose(r3.Vector{X: 0.2, Y: -0.1}, spatialmath.NewRotationFromAxisAngle(r3.Vector{Z: 1}, yaw)),
		spatialmath.NewPoseFromPoint(r3.Vector{Y: 0.1}),
	}
	origin := FootOriginPose(feet, [kinematics.NumLegs]bool{true, false})
	test.That(t, origin.Pos.Sub(feet[kinematics.Right].Pos).Norm(), test.ShouldBeLessThan, 1e-12)
	test.That(t, origin.Rot.Yaw(), test.ShouldAlmostEqual, yaw, 1e-9)

	origin = FootOriginPose(feet, [kinematics.NumLegs]bool{false, true})
	test.That(t, origin.Pos.Sub(feet[kinematics.Left].Pos).Norm(), test.ShouldBeLessThan, 1e-12)
}

func TestFootOriginProjectsTilt(t *testing.T) {
	// a rolled foot still yields a gravity-aligned ground frame
	tilted := spatialmath.NewPose(
		r3.Vector{Y: -0.1},
		spatialmath.NewRotationFromRPY(0.3, 0.1, 0.7),
	)
	feet := [kinematics.NumLegs]spatialmath.Pose{
		tilted,
		spatialmath.NewPoseFromPoint(r3.Vector{Y: 0.1}),
	}
	origin := FootOriginPose(feet, [kinematics.NumLegs]bool{true, false})
	z := origin.Rot.Apply(r3.Vector{Z: 1})
	test.That(t, z.Sub(r3.Vector{Z: 1}).Norm(), test.ShouldBeLessThan, 1e-9)
	roll, pitch, _ := origin.Rot.RPY()
	test.That(t, math.Abs(roll), test.ShouldBeLessThan, 1e-9)
	test.That(t, math.Abs(pitch), test.ShouldBeLessThan, 1e-9)
}

func TestFootOriginRotatesCarriedVelocity(t *testing.T) {
	// the frame-change composition new^T * prev maps a vector tracked in the
	// old frame into the new frame
	prev := FootOriginPose([kinematics.NumLegs]spatialmath.Pose{
		spatialmath.NewPoseFromPoint(r3.Vector{Y: -0.1}),
		spatialmath.NewPoseFromPoint(r3.Vector{Y: 0.1}),
	}, [kinematics.NumLegs]bool{true, true})
	rotated := spatialmath.NewPose(r3.Vector{Y: -0.1}, spatialmath.NewRotationFromAxisAngle(r3.Vector{Z: 1}, math.Pi/2))
	next := FootOriginPose([kinematics.NumLegs]spatialmath.Pose{
		rotated,
		spatialmath.NewPoseFromPoint(r3.Vector{Y: 0.1}),
	}, [kinematics.NumLegs]bool{true, false})

	vWorld := r3.Vector{X: 1}
	vPrev := prev.Rot.ApplyInverse(vWorld)
	vNext := next.Rot.Inverse().Mul(prev.Rot).Apply(vPrev)
	test.That(t, vNext.Sub(next.Rot.ApplyInverse(vWorld)).Norm(), test.ShouldBeLessThan, 1e-9)
}
