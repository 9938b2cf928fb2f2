package gait

import (
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/biped/kinematics"
	"go.viam.com/biped/spatialmath"
)

// Footstep is one planned foot placement.
type Footstep struct {
	Leg  kinematics.LegSide
	Pose spatialmath.Pose
}

func (f Footstep) String() string {
	return fmt.Sprintf("%s @ (%.3f, %.3f, %.3f)", f.Leg, f.Pose.Pos.X, f.Pose.Pos.Y, f.Pose.Pos.Z)
}

// FootstepPlan is an ordered footstep sequence. Entry i is the support foot
// during step i; entry i+1 is that step's swing destination. Consecutive
// entries alternate legs; the last entry duplicates an earlier placement so
// the final step has a successor for double-support blending.
type FootstepPlan []Footstep

// Validate checks the alternation invariant.
func (p FootstepPlan) Validate() error {
	if len(p) < 2 {
		return errors.Errorf("footstep plan needs at least 2 steps, got %d", len(p))
	}
	for i := 1; i < len(p); i++ {
		if p[i].Leg == p[i-1].Leg {
			return errors.Errorf("footsteps %d and %d are both %s", i-1, i, p[i].Leg)
		}
	}
	return nil
}

// FootstepParameters holds the foot-placement geometry: default per-leg
// offsets from the mid-coords frame and the stride limits.
type FootstepParameters struct {
	// LegOffset is the default foot-center translation from the midfoot
	// frame, indexed by leg.
	LegOffset [kinematics.NumLegs]r3.Vector
	// Stride limits per step: meters, meters, radians.
	StrideX     float64
	StrideY     float64
	StrideTheta float64
	// InsideStepLimitation keeps the swing foot from crossing the support
	// foot's inner margin.
	InsideStepLimitation bool
	// ZMPOffset is the default reference-ZMP offset in each foot's frame.
	ZMPOffset [kinematics.NumLegs]r3.Vector
}

// Validate checks the stride limits and that the leg offsets straddle the
// midfoot frame.
func (p FootstepParameters) Validate() error {
	if p.StrideX <= 0 || p.StrideY <= 0 || p.StrideTheta <= 0 {
		return errors.New("stride limits must be positive")
	}
	if p.LegOffset[kinematics.Right].Y >= 0 || p.LegOffset[kinematics.Left].Y <= 0 {
		return errors.New("leg offsets must straddle the midfoot frame (right negative y, left positive y)")
	}
	return nil
}

// footPose places a leg's foot for a midfoot frame.
func (p FootstepParameters) footPose(mid spatialmath.Pose, leg kinematics.LegSide) spatialmath.Pose {
	return spatialmath.NewPose(mid.TransformPoint(p.LegOffset[leg]), mid.Rot)
}

// midfootOf recovers the midfoot frame from a footstep.
func (p FootstepParameters) midfootOf(f Footstep) spatialmath.Pose {
	return spatialmath.NewPose(f.Pose.TransformPoint(p.LegOffset[f.Leg].Mul(-1)), f.Pose.Rot)
}

// footZMP is the reference ZMP contributed by a foot placement.
func (p FootstepParameters) footZMP(f Footstep) r3.Vector {
	return f.Pose.TransformPoint(p.ZMPOffset[f.Leg])
}

// Velocity is a continuous walking command. Units follow the service
// interface: mm/s for translation, deg/s for rotation.
type Velocity struct {
	VxMM      float64
	VyMM      float64
	VthetaDeg float64
}

// Add sums two velocity commands.
func (v Velocity) Add(o Velocity) Velocity {
	return Velocity{VxMM: v.VxMM + o.VxMM, VyMM: v.VyMM + o.VyMM, VthetaDeg: v.VthetaDeg + o.VthetaDeg}
}
