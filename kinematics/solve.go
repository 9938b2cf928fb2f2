package kinematics

import (
	"go.viam.com/biped/spatialmath"
)

// ikDamping is the damped least-squares regularization used for leg chains.
const ikDamping = 1e-3

// LegIKStep applies one damped least-squares update moving a leg's sole frame
// toward target, scaled by gain. The body's joint vector is updated in place;
// the caller decides when to rerun forward kinematics.
func LegIKStep(b Body, side LegSide, ee EndEffectorFrame, target spatialmath.Pose, gain float64) {
	chain := b.LegChain(side)
	// sole target -> ankle-link-origin target
	linkTarget := spatialmath.Compose(target, spatialmath.NewPose(ee.LocalPos, ee.LocalRot).Inverse())
	cur, ok := b.LinkPose(ee.Link)
	if !ok {
		return
	}
	dp := linkTarget.Pos.Sub(cur.Pos).Mul(gain)
	dw := spatialmath.OrientationError(cur.Rot, linkTarget.Rot).Mul(gain)
	q := b.JointAngles()
	dq := chain.IKStep(b.RootPose(), chain.Angles(q), dp, dw, ikDamping)
	for i, idx := range chain.Indices() {
		q[idx] += dq[i]
	}
	b.SetJointAngles(q)
}

// SolveLegs drives both soles to their targets with a fixed number of damped
// least-squares iterations, rerunning forward kinematics between steps.
func SolveLegs(b Body, ee [NumLegs]EndEffectorFrame, targets [NumLegs]spatialmath.Pose, iterations int) {
	for it := 0; it < iterations; it++ {
		b.UpdateKinematics()
		for _, side := range []LegSide{Right, Left} {
			LegIKStep(b, side, ee[side], targets[side], 1.0)
		}
	}
	b.UpdateKinematics()
}
