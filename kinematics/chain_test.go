package kinematics

import (
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/biped/spatialmath"
)

func testModel(t *testing.T) *BipedModel {
	t.Helper()
	m, err := NewBipedModel(DefaultBipedConfig())
	test.That(t, err, test.ShouldBeNil)
	return m
}

func TestChainForwardKinematicsZero(t *testing.T) {
	m := testModel(t)
	chain := m.LegChain(Right)
	tip := chain.ForwardKinematics(spatialmath.NewZeroPose(), make([]float64, chain.NumJoints()))
	// hip offset plus straight thigh and shin
	test.That(t, tip.Pos.X, test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, tip.Pos.Y, test.ShouldAlmostEqual, -0.1, 1e-12)
	test.That(t, tip.Pos.Z, test.ShouldAlmostEqual, -0.05-0.3-0.3, 1e-12)
}

func TestJacobianMatchesFiniteDifference(t *testing.T) {
	m := testModel(t)
	r := rand.New(rand.NewSource(11))
	root := spatialmath.NewPoseFromPoint(r3.Vector{Z: 0.7})
	for _, side := range []LegSide{Right, Left} {
		chain := m.LegChain(side)
		q := make([]float64, chain.NumJoints())
		for i := range q {
			q[i] = r.Float64()*0.8 - 0.4
		}
		jac := chain.Jacobian(root, q)
		const h = 1e-6
		for i := range q {
			qp := append([]float64(nil), q...)
			qm := append([]float64(nil), q...)
			qp[i] += h
			qm[i] -= h
			fp := chain.ForwardKinematics(root, qp)
			fm := chain.ForwardKinematics(root, qm)
			v := fp.Pos.Sub(fm.Pos).Mul(1 / (2 * h))
			test.That(t, v.X, test.ShouldAlmostEqual, jac.At(0, i), 1e-4)
			test.That(t, v.Y, test.ShouldAlmostEqual, jac.At(1, i), 1e-4)
			test.That(t, v.Z, test.ShouldAlmostEqual, jac.At(2, i), 1e-4)
			w := spatialmath.OrientationError(fm.Rot, fp.Rot).Mul(1 / (2 * h))
			test.That(t, w.X, test.ShouldAlmostEqual, jac.At(3, i), 1e-4)
			test.That(t, w.Y, test.ShouldAlmostEqual, jac.At(4, i), 1e-4)
			test.That(t, w.Z, test.ShouldAlmostEqual, jac.At(5, i), 1e-4)
		}
	}
}

func TestLegIKConvergesOnReachableTarget(t *testing.T) {
	m := testModel(t)
	m.SetRootPose(spatialmath.NewPoseFromPoint(r3.Vector{Z: 0.7}))
	m.UpdateKinematics()
	var ee [NumLegs]EndEffectorFrame
	var targets [NumLegs]spatialmath.Pose
	for _, side := range []LegSide{Right, Left} {
		ee[side] = m.SoleFrame(side)
		sign := -1.0
		if side == Left {
			sign = 1.0
		}
		targets[side] = spatialmath.NewPose(
			r3.Vector{X: 0.03, Y: sign * 0.1, Z: 0.0},
			spatialmath.NewRotationFromAxisAngle(r3.Vector{Z: 1}, sign*0.05),
		)
	}
	SolveLegs(m, ee, targets, 50)
	for _, side := range []LegSide{Right, Left} {
		lp, ok := m.LinkPose(ee[side].Link)
		test.That(t, ok, test.ShouldBeTrue)
		sole := spatialmath.Compose(lp, spatialmath.NewPose(ee[side].LocalPos, ee[side].LocalRot))
		test.That(t, sole.Pos.Sub(targets[side].Pos).Norm(), test.ShouldBeLessThan, 1e-4)
		test.That(t, spatialmath.RotationAlmostEqual(sole.Rot, targets[side].Rot, 1e-4), test.ShouldBeTrue)
	}
}

func TestModelBasics(t *testing.T) {
	m := testModel(t)
	test.That(t, m.NumJoints(), test.ShouldEqual, 12)
	test.That(t, m.TotalMass(), test.ShouldAlmostEqual, 50, 1e-12)

	for _, name := range []string{"rfsensor", "lfsensor", "gyrometer"} {
		_, ok := m.Sensor(name)
		test.That(t, ok, test.ShouldBeTrue)
	}
	_, ok := m.Sensor("nope")
	test.That(t, ok, test.ShouldBeFalse)

	m.UpdateKinematics()
	for _, link := range []string{RootLinkName, "r_ankle_roll", "l_ankle_roll", "r_knee", "l_hip_yaw"} {
		_, ok := m.LinkPose(link)
		test.That(t, ok, test.ShouldBeTrue)
	}
	com := m.CoM()
	test.That(t, com.Y, test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, com.Z, test.ShouldBeLessThan, m.RootPose().Pos.Z+0.2)
}

func TestLegSide(t *testing.T) {
	test.That(t, Right.Other(), test.ShouldEqual, Left)
	test.That(t, Left.Other(), test.ShouldEqual, Right)
	test.That(t, Right.String(), test.ShouldEqual, "rleg")
	test.That(t, Left.String(), test.ShouldEqual, "lleg")
}
