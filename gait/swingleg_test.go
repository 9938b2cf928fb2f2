package gait

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/biped/kinematics"
	"go.viam.com/biped/spatialmath"
)

func TestRectangleMidpoint(t *testing.T) {
	start := r3.Vector{}
	goal := r3.Vector{X: 0.2}
	const height = 0.05
	test.That(t, rectangleMidpoint(0, start, goal, height).Sub(start).Norm(), test.ShouldBeLessThan, 1e-12)
	test.That(t, rectangleMidpoint(1, start, goal, height).Sub(goal).Norm(), test.ShouldBeLessThan, 1e-12)
	mid := rectangleMidpoint(0.5, start, goal, height)
	test.That(t, mid.Z, test.ShouldAlmostEqual, height, 1e-12)
	// the up phase is purely vertical
	up := rectangleMidpoint(0.05, start, goal, height)
	test.That(t, up.X, test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, up.Z, test.ShouldBeGreaterThan, 0)
}

func TestRectangleMidpointZeroPath(t *testing.T) {
	p := r3.Vector{X: 0.1, Y: 0.2}
	test.That(t, rectangleMidpoint(0.5, p, p, 0).Sub(p).Norm(), test.ShouldBeLessThan, 1e-12)
}

func TestCycloidMidpoint(t *testing.T) {
	start := r3.Vector{}
	goal := r3.Vector{X: 0.2}
	const height = 0.05
	test.That(t, cycloidMidpoint(0, start, goal, height).Sub(start).Norm(), test.ShouldBeLessThan, 1e-9)
	test.That(t, cycloidMidpoint(1, start, goal, height).Sub(goal).Norm(), test.ShouldBeLessThan, 1e-9)
	apex := cycloidMidpoint(0.5, start, goal, height)
	test.That(t, apex.Z, test.ShouldAlmostEqual, height, 1e-9)
	test.That(t, apex.X, test.ShouldAlmostEqual, 0.1, 1e-9)
}

func TestSkewRatioApex(t *testing.T) {
	// with top_ratio 0.3 the apex parameter 0.5 is reached at progress 0.3
	test.That(t, skewRatio(0.3, 0.3), test.ShouldAlmostEqual, 0.5, 1e-12)
	test.That(t, skewRatio(0, 0.3), test.ShouldEqual, 0.0)
	test.That(t, skewRatio(1, 0.3), test.ShouldAlmostEqual, 1.0, 1e-12)
	test.That(t, skewRatio(0.4, 0.5), test.ShouldAlmostEqual, 0.4, 1e-12)
}

func TestSwingTrajectoryLandsOnGoal(t *testing.T) {
	const dt = 0.005
	const stepSamples = 200
	traj := swingTrajectory{dt: dt, timeOffset: defaultTimeOffset, orbit: OrbitRectangle, topRatio: 0.5}
	traj.reset(stepSamples)
	start := r3.Vector{}
	goal := r3.Vector{X: 0.15, Y: 0.02}
	var pos r3.Vector
	peak := 0.0
	for i := 0; i < stepSamples; i++ {
		pos = traj.point(start, goal, 0.05)
		if pos.Z > peak {
			peak = pos.Z
		}
	}
	test.That(t, pos.Sub(goal).Norm(), test.ShouldBeLessThan, 1e-3)
	test.That(t, peak, test.ShouldBeGreaterThan, 0.02)
	test.That(t, peak, test.ShouldBeLessThan, 0.08)
}

func TestLegCoordsGenerator(t *testing.T) {
	const dt = 0.005
	const stepSamples = 200
	lcg := newLegCoordsGenerator(dt)
	src := spatialmath.NewPoseFromPoint(r3.Vector{Y: 0.1})
	dst := spatialmath.NewPoseFromPoint(r3.Vector{X: 0.15, Y: 0.1})
	support := spatialmath.NewPoseFromPoint(r3.Vector{Y: -0.1})
	lcg.reset(stepSamples, dst, src, support, kinematics.Right)

	sawAir := false
	for i := 0; i < stepSamples; i++ {
		lcg.update(0.2, false)
		if i < stepSamples/10-1 {
			// leading double support
			test.That(t, lcg.swingRatio, test.ShouldEqual, 0.0)
		}
		if lcg.currentStepHeight > 0 {
			sawAir = true
		}
	}
	test.That(t, sawAir, test.ShouldBeTrue)
	test.That(t, lcg.swingRatio, test.ShouldEqual, 1.0)
	test.That(t, lcg.currentStepHeight, test.ShouldEqual, 0.0)
	test.That(t, lcg.swingPose.Pos.Sub(dst.Pos).Norm(), test.ShouldBeLessThan, 1e-3)

	mid := lcg.swingSupportMidPose()
	test.That(t, mid.Pos.Y, test.ShouldAlmostEqual, 0, 1e-9)
}

func TestLegCoordsGeneratorForceHeightZero(t *testing.T) {
	const stepSamples = 200
	lcg := newLegCoordsGenerator(0.005)
	p := spatialmath.NewPoseFromPoint(r3.Vector{Y: 0.1})
	lcg.reset(stepSamples, p, p, spatialmath.NewPoseFromPoint(r3.Vector{Y: -0.1}), kinematics.Right)
	for i := 0; i < stepSamples; i++ {
		lcg.update(0.2, true)
		test.That(t, lcg.currentStepHeight, test.ShouldEqual, 0.0)
		test.That(t, lcg.swingPose.Pos.Z, test.ShouldAlmostEqual, 0, 1e-9)
	}
}
