package stabilizer

import (
	"github.com/golang/geo/r3"

	"go.viam.com/biped/gait"
	"go.viam.com/biped/kinematics"
	"go.viam.com/biped/spatialmath"
	"go.viam.com/biped/utils"
)

// DistributorParams bounds the foot support rectangle used to split the
// desired net wrench between the feet.
type DistributorParams struct {
	InsideMargin float64
	FrontMargin  float64
	RearMargin   float64
	// RollToLeft flips the tie-break for the roll moment about the line
	// between the feet: by default a positive roll torque goes to the right
	// foot.
	RollToLeft bool
}

// insideFoot reports whether a point in the foot's local frame has not
// crossed the inner edge.
func (p DistributorParams) insideFoot(local r3.Vector, leg kinematics.LegSide) bool {
	if leg == kinematics.Left {
		return local.Y >= -p.InsideMargin
	}
	return local.Y <= p.InsideMargin
}

func (p DistributorParams) frontOfFoot(local r3.Vector) bool {
	return local.X > p.FrontMargin
}

func (p DistributorParams) rearOfFoot(local r3.Vector) bool {
	return local.X < -p.RearMargin
}

// edgePoint projects a local ZMP onto the closest point of the foot
// rectangle's boundary toward the other foot.
func (p DistributorParams) edgePoint(local r3.Vector, leg kinematics.LegSide) r3.Vector {
	inner := p.InsideMargin
	if leg == kinematics.Left {
		inner = -p.InsideMargin
	}
	switch {
	case p.insideFoot(local, leg) && p.frontOfFoot(local):
		return r3.Vector{X: p.FrontMargin, Y: local.Y}
	case !p.insideFoot(local, leg) && p.frontOfFoot(local):
		return r3.Vector{X: p.FrontMargin, Y: inner}
	case !p.insideFoot(local, leg) && !p.frontOfFoot(local) && !p.rearOfFoot(local):
		return r3.Vector{X: local.X, Y: inner}
	case !p.insideFoot(local, leg) && p.rearOfFoot(local):
		return r3.Vector{X: -p.RearMargin, Y: inner}
	default:
		return r3.Vector{X: -p.RearMargin, Y: local.Y}
	}
}

// DistributeWrench splits the net contact wrench implied by a desired ZMP
// between the two feet. ee holds the world sole poses indexed by leg; mass is
// the robot mass. It returns the support share alpha (1 = all weight on the
// right foot) and per-foot reference forces and moments in world
// coordinates. The closure invariant holds: the forces sum to (0, 0, M g)
// and moments about the desired ZMP cancel.
func DistributeWrench(zmp r3.Vector, ee [kinematics.NumLegs]spatialmath.Pose, mass float64, p DistributorParams) (float64, [kinematics.NumLegs]r3.Vector, [kinematics.NumLegs]r3.Vector) {
	localR := ee[kinematics.Right].InverseTransformPoint(zmp)
	localL := ee[kinematics.Left].InverseTransformPoint(zmp)

	var alpha float64
	switch {
	case p.insideFoot(localL, kinematics.Left) && !p.frontOfFoot(localL) && !p.rearOfFoot(localL):
		alpha = 0
	case p.insideFoot(localR, kinematics.Right) && !p.frontOfFoot(localR) && !p.rearOfFoot(localR):
		alpha = 1
	default:
		ledge := ee[kinematics.Left].TransformPoint(p.edgePoint(localL, kinematics.Left))
		redge := ee[kinematics.Right].TransformPoint(p.edgePoint(localR, kinematics.Right))
		dif := redge.Sub(ledge)
		if n := dif.Norm2(); n > 1e-12 {
			alpha = utils.Clamp(dif.Dot(zmp.Sub(ledge))/n, 0, 1)
		} else {
			alpha = 0.5
		}
	}

	var forces, moments [kinematics.NumLegs]r3.Vector
	forces[kinematics.Right] = r3.Vector{Z: alpha * gait.Gravity * mass}
	forces[kinematics.Left] = r3.Vector{Z: (1 - alpha) * gait.Gravity * mass}

	tau0 := r3.Vector{}
	for i := range forces {
		tau0 = tau0.Sub(ee[i].Pos.Sub(zmp).Cross(forces[i]))
	}
	switch alpha {
	case 0:
		moments[kinematics.Left] = ee[kinematics.Left].Pos.Sub(zmp).Cross(forces[kinematics.Left]).Mul(-1)
	case 1:
		moments[kinematics.Right] = ee[kinematics.Right].Pos.Sub(zmp).Cross(forces[kinematics.Right]).Mul(-1)
	default:
		// foot-distribution frame: y' points right foot -> left foot
		ey := ee[kinematics.Left].Pos.Sub(ee[kinematics.Right].Pos)
		ey.Z = 0
		if ey.Norm() < 1e-12 {
			ey = r3.Vector{Y: 1}
		}
		ey = ey.Normalize()
		ex := ey.Cross(r3.Vector{Z: 1})
		rot := spatialmath.NewRotationFromMatrix([9]float64{
			ex.X, ey.X, 0,
			ex.Y, ey.Y, 0,
			ex.Z, ey.Z, 1,
		})
		tauF := rot.ApplyInverse(tau0)
		var mR, mL r3.Vector
		rollToRight := tauF.X > 0
		if p.RollToLeft {
			rollToRight = !rollToRight
		}
		if rollToRight {
			mR.X = tauF.X
		} else {
			mL.X = tauF.X
		}
		mR.Y = tauF.Y * alpha
		mL.Y = tauF.Y * (1 - alpha)
		moments[kinematics.Right] = rot.Apply(mR)
		moments[kinematics.Left] = rot.Apply(mL)
	}
	return alpha, forces, moments
}
