package gait

import (
	"context"
	"math"
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/biped/kinematics"
	"go.viam.com/biped/spatialmath"
	"go.viam.com/biped/utils"
)

func testParams() FootstepParameters {
	return FootstepParameters{
		LegOffset: [kinematics.NumLegs]r3.Vector{
			{Y: -0.1},
			{Y: 0.1},
		},
		StrideX:              0.15,
		StrideY:              0.05,
		StrideTheta:          utils.DegToRad(10),
		InsideStepLimitation: true,
	}
}

func testGenerator(t *testing.T) *Generator {
	t.Helper()
	g, err := NewGenerator(DefaultTiming(0.005), testParams(), golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	err = g.Initialize(
		spatialmath.NewPoseFromPoint(r3.Vector{Y: -0.1}),
		spatialmath.NewPoseFromPoint(r3.Vector{Y: 0.1}),
		r3.Vector{Z: 0.8},
	)
	test.That(t, err, test.ShouldBeNil)
	return g
}

func midfootIncrements(t *testing.T, params FootstepParameters, plan FootstepPlan) []spatialmath.Pose {
	t.Helper()
	rels := make([]spatialmath.Pose, 0, len(plan)-1)
	for i := 1; i < len(plan); i++ {
		prev := params.midfootOf(plan[i-1])
		cur := params.midfootOf(plan[i])
		rels = append(rels, spatialmath.Compose(prev.Inverse(), cur))
	}
	return rels
}

func assertPlanLegality(t *testing.T, params FootstepParameters, plan FootstepPlan) {
	t.Helper()
	test.That(t, plan.Validate(), test.ShouldBeNil)
	for _, rel := range midfootIncrements(t, params, plan) {
		test.That(t, math.Abs(rel.Pos.X), test.ShouldBeLessThan, params.StrideX+1e-9)
		test.That(t, math.Abs(rel.Pos.Y), test.ShouldBeLessThan, params.StrideY+1e-9)
		test.That(t, math.Abs(rel.Rot.Yaw()), test.ShouldBeLessThan, params.StrideTheta+1e-9)
	}
	if params.InsideStepLimitation {
		for i := 1; i < len(plan); i++ {
			rel := plan[i-1].Pose.InverseTransformPoint(plan[i].Pose.Pos)
			if plan[i].Leg == kinematics.Right {
				test.That(t, rel.Y, test.ShouldBeLessThan, 1e-9)
			} else {
				test.That(t, rel.Y, test.ShouldBeGreaterThan, -1e-9)
			}
		}
	}
}

func TestGoPosPlanLegality(t *testing.T) {
	for _, goal := range [][3]float64{
		{0.3, 0, 0},
		{0.1, 0.2, 0},
		{0, -0.15, 0},
		{0.2, 0.1, utils.DegToRad(30)},
		{-0.2, 0, utils.DegToRad(-20)},
	} {
		g := testGenerator(t)
		err := g.GoPos(goal[0], goal[1], goal[2])
		test.That(t, err, test.ShouldBeNil)
		assertPlanLegality(t, testParams(), g.Plan())
	}
}

func TestGoPosStartLeg(t *testing.T) {
	// dy >= 0 starts with the right leg as support so the left swings toward
	// the target side
	g := testGenerator(t)
	test.That(t, g.GoPos(0.3, 0, 0), test.ShouldBeNil)
	test.That(t, g.Plan()[0].Leg, test.ShouldEqual, kinematics.Right)

	g = testGenerator(t)
	test.That(t, g.GoPos(0, 0.2, 0), test.ShouldBeNil)
	test.That(t, g.Plan()[0].Leg, test.ShouldEqual, kinematics.Right)

	g = testGenerator(t)
	test.That(t, g.GoPos(0, -0.2, 0), test.ShouldBeNil)
	test.That(t, g.Plan()[0].Leg, test.ShouldEqual, kinematics.Left)
}

func TestStraightWalk(t *testing.T) {
	// S1: go_pos(0.3, 0, 0) walks the reference CoM from 0 to 0.3 within
	// 5 mm, monotonically, staying inside the support span
	g := testGenerator(t)
	test.That(t, g.GoPos(0.3, 0, 0), test.ShouldBeNil)
	plan := g.Plan()
	test.That(t, len(plan), test.ShouldEqual, 5)

	prevX := 0.0
	var last Reference
	ticks := 0
	for g.Active() && ticks < 3000 {
		ref, ok := g.Tick()
		if !ok {
			break
		}
		test.That(t, ref.CoG.X, test.ShouldBeGreaterThan, prevX-2e-3)
		prevX = math.Max(prevX, ref.CoG.X)
		// support-span bounds for the reference CoM
		test.That(t, math.Abs(ref.CoG.Y), test.ShouldBeLessThan, 0.15)
		test.That(t, ref.CoG.X, test.ShouldBeGreaterThan, -0.05)
		test.That(t, ref.CoG.X, test.ShouldBeLessThan, 0.35)
		last = ref
		ticks++
	}
	test.That(t, g.Active(), test.ShouldBeFalse)
	test.That(t, ticks, test.ShouldEqual, (len(plan)-1)*g.Timing().StepSamples())
	test.That(t, math.Abs(last.CoG.X-0.3), test.ShouldBeLessThan, 5e-3)
}

func TestEmergencyStop(t *testing.T) {
	// S2: stopping mid-walk appends no new footsteps; after the current step
	// boundary the plan flushes one zero-height step and goes idle
	g := testGenerator(t)
	test.That(t, g.GoPos(0.6, 0, 0), test.ShouldBeNil)
	stepSamples := g.Timing().StepSamples()
	for i := 0; i < 2*stepSamples+stepSamples/2; i++ {
		_, ok := g.Tick()
		test.That(t, ok, test.ShouldBeTrue)
	}
	test.That(t, g.Active(), test.ShouldBeTrue)
	g.EmergencyStop()
	planLen := len(g.Plan())
	ticks := 0
	for g.Active() && ticks < 3*stepSamples {
		g.Tick()
		ticks++
	}
	test.That(t, g.Active(), test.ShouldBeFalse)
	test.That(t, len(g.Plan()), test.ShouldBeLessThanOrEqualTo, planLen)
	st := g.State()
	test.That(t, st.SwingRatio, test.ShouldEqual, 0.0)
	test.That(t, st.CurrentStepHeight, test.ShouldEqual, 0.0)
}

func TestVelocityMode(t *testing.T) {
	g := testGenerator(t)
	test.That(t, g.GoVelocity(100, 0, 0), test.ShouldBeNil)
	stepSamples := g.Timing().StepSamples()
	for i := 0; i < 5*stepSamples; i++ {
		_, ok := g.Tick()
		test.That(t, ok, test.ShouldBeTrue)
	}
	test.That(t, g.Active(), test.ShouldBeTrue)
	assertPlanLegality(t, testParams(), g.Plan())

	g.FinalizeVelocityMode()
	for i := 0; g.Active() && i < 20*stepSamples; i++ {
		g.Tick()
	}
	test.That(t, g.Active(), test.ShouldBeFalse)
	test.That(t, g.WaitFootsteps(context.Background()), test.ShouldBeNil)

	// the closing steps bring the feet level
	plan := g.Plan()
	lastMid := testParams().midfootOf(plan[len(plan)-2])
	prevMid := testParams().midfootOf(plan[len(plan)-3])
	test.That(t, lastMid.Pos.Sub(prevMid.Pos).Norm(), test.ShouldBeLessThan, 1e-9)
	// forward progress happened
	test.That(t, lastMid.Pos.X, test.ShouldBeGreaterThan, 0.2)
}

func TestGoSingleStep(t *testing.T) {
	g := testGenerator(t)
	test.That(t, g.GoSingleStep(0.1, 0, 0, 0, kinematics.Left), test.ShouldBeNil)
	plan := g.Plan()
	test.That(t, len(plan), test.ShouldEqual, 3)
	test.That(t, plan[0].Leg, test.ShouldEqual, kinematics.Right)
	test.That(t, plan[1].Leg, test.ShouldEqual, kinematics.Left)
	for i := 0; g.Active() && i < 1000; i++ {
		g.Tick()
	}
	test.That(t, g.Active(), test.ShouldBeFalse)
	ref, _ := g.Tick()
	test.That(t, ref.FootPoses[kinematics.Left].Pos.X, test.ShouldAlmostEqual, 0.1, 1e-9)
	test.That(t, ref.FootPoses[kinematics.Right].Pos.X, test.ShouldAlmostEqual, 0, 1e-9)
}

func TestCommandsRejectedWhileWalking(t *testing.T) {
	g := testGenerator(t)
	test.That(t, g.GoPos(0.3, 0, 0), test.ShouldBeNil)
	test.That(t, g.GoPos(0.1, 0, 0), test.ShouldNotBeNil)
	test.That(t, g.GoSingleStep(0.1, 0, 0, 0, kinematics.Left), test.ShouldNotBeNil)
	test.That(t, g.SetTiming(DefaultTiming(0.005)), test.ShouldNotBeNil)
}

func TestContactStatesAndSwingTime(t *testing.T) {
	g := testGenerator(t)
	test.That(t, g.GoPos(0.3, 0, 0), test.ShouldBeNil)
	stepSamples := g.Timing().StepSamples()
	sawSwing := false
	for i := 0; i < stepSamples; i++ {
		ref, ok := g.Tick()
		test.That(t, ok, test.ShouldBeTrue)
		support := ref.SupportLeg
		test.That(t, ref.ContactStates[support], test.ShouldBeTrue)
		if !ref.ContactStates[support.Other()] {
			sawSwing = true
			test.That(t, ref.SwingSupportTime[support.Other()], test.ShouldBeLessThan, g.Timing().StepTime)
		}
		if i == stepSamples/2 {
			// mid-swing, clear of the landing-offset margin
			test.That(t, ref.ContactStates[support.Other()], test.ShouldBeFalse)
			test.That(t, g.IsSwingingLeg(support.Other(), 0.08), test.ShouldBeTrue)
			test.That(t, g.IsSwingingLeg(support, 0.08), test.ShouldBeFalse)
		}
	}
	test.That(t, sawSwing, test.ShouldBeTrue)
}

func TestSetFootsteps(t *testing.T) {
	g := testGenerator(t)
	bad := FootstepPlan{
		{Leg: kinematics.Right, Pose: spatialmath.NewPoseFromPoint(r3.Vector{Y: -0.1})},
		{Leg: kinematics.Right, Pose: spatialmath.NewPoseFromPoint(r3.Vector{Y: -0.1})},
	}
	test.That(t, g.SetFootsteps(bad), test.ShouldNotBeNil)

	good := FootstepPlan{
		{Leg: kinematics.Right, Pose: spatialmath.NewPoseFromPoint(r3.Vector{Y: -0.1})},
		{Leg: kinematics.Left, Pose: spatialmath.NewPoseFromPoint(r3.Vector{X: 0.1, Y: 0.1})},
		{Leg: kinematics.Right, Pose: spatialmath.NewPoseFromPoint(r3.Vector{X: 0.1, Y: -0.1})},
	}
	test.That(t, g.SetFootsteps(good), test.ShouldBeNil)
	test.That(t, g.Active(), test.ShouldBeTrue)
	for i := 0; g.Active() && i < 2000; i++ {
		g.Tick()
	}
	test.That(t, g.Active(), test.ShouldBeFalse)
}
