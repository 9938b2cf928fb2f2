package gait

import (
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/biped/kinematics"
	"go.viam.com/biped/spatialmath"
	"go.viam.com/biped/utils"
)

// OrbitType selects the swing-foot geometric profile.
type OrbitType int

// The two orbit families.
const (
	OrbitCycloid OrbitType = iota
	OrbitRectangle
)

func (o OrbitType) String() string {
	if o == OrbitCycloid {
		return "cycloid"
	}
	return "rectangle"
}

// defaultTimeOffset reserves the final phase of every swing for the goal
// itself, enforcing a smooth landing while permitting late target updates.
const defaultTimeOffset = 0.1

// swingTrajectory integrates a minimum-jerk (Hoff-Arbib) state toward a
// moving target. Until the last timeOffset seconds the target is a point on
// the orbit's antecedent path; after that the target is the goal.
type swingTrajectory struct {
	dt         float64
	totalTime  float64
	timeOffset float64
	remainTime float64
	pos        r3.Vector
	vel        r3.Vector
	acc        r3.Vector

	orbit    OrbitType
	topRatio float64
}

func (s *swingTrajectory) reset(stepSamples int) {
	s.totalTime = float64(stepSamples) * s.dt
	s.remainTime = s.totalTime
}

// interpolate advances the third-order state one period under the Hoff-Arbib
// jerk law with the given remaining time.
func (s *swingTrajectory) interpolate(remain float64, goal r3.Vector) {
	jerk := s.acc.Mul(-9 / remain).
		Add(s.vel.Mul(-36 / (remain * remain))).
		Add(goal.Sub(s.pos).Mul(60 / (remain * remain * remain)))
	s.acc = s.acc.Add(jerk.Mul(s.dt))
	s.vel = s.vel.Add(s.acc.Mul(s.dt))
	s.pos = s.pos.Add(s.vel.Mul(s.dt))
}

// point yields the next swing-foot position between start and goal at the
// given apex height, consuming one control period.
func (s *swingTrajectory) point(start, goal r3.Vector, height float64) r3.Vector {
	if math.Abs(s.remainTime-s.totalTime) < 1e-5 {
		s.pos = start
		s.vel = r3.Vector{}
		s.acc = r3.Vector{}
	}
	switch {
	case s.remainTime > s.timeOffset:
		s.interpolate(s.timeOffset, s.antecedent(start, goal, height))
	case s.remainTime > 1e-5:
		s.interpolate(s.remainTime, goal)
	default:
		s.pos = goal
	}
	s.remainTime -= s.dt
	return s.pos
}

// antecedent evaluates the orbit profile at the current progress ratio.
func (s *swingTrajectory) antecedent(start, goal r3.Vector, height float64) r3.Vector {
	ratio := utils.Clamp((s.totalTime-s.remainTime)/(s.totalTime-s.timeOffset), 0, 1)
	if s.orbit == OrbitRectangle {
		return rectangleMidpoint(ratio, start, goal, height)
	}
	return cycloidMidpoint(skewRatio(ratio, s.topRatio), start, goal, height)
}

// skewRatio remaps progress so the cycloid apex lands at topRatio.
func skewRatio(ratio, topRatio float64) float64 {
	if topRatio <= 0 || topRatio >= 1 {
		return ratio
	}
	if ratio < topRatio {
		return 0.5 * ratio / topRatio
	}
	return 0.5 + 0.5*(ratio-topRatio)/(1-topRatio)
}

// cycloidMidpoint evaluates the classic cycloid arc between start and goal.
func cycloidMidpoint(ratio float64, start, goal r3.Vector, height float64) r3.Vector {
	u := goal.Sub(start)
	uz := r3.Vector{Z: ratio * u.Z}
	u.Z = 0
	th := 2 * math.Pi * ratio
	cl := (th - math.Sin(th)) / (2 * math.Pi)
	ch := (1 - math.Cos(th)) / 2
	return start.Add(u.Mul(cl)).Add(uz).Add(r3.Vector{Z: height * ch})
}

// rectangleMidpoint evaluates the three-phase up/across/down profile. The up
// and down phases each occupy height/total_path of the time budget.
func rectangleMidpoint(ratio float64, start, goal r3.Vector, height float64) r3.Vector {
	totalPath := goal.Sub(start).Norm() + height*2
	if totalPath < 1e-4 {
		return goal
	}
	updown := height / totalPath
	minHeight := start.Z + height
	if start.Z > goal.Z {
		minHeight = goal.Z + height
	}
	top0 := r3.Vector{X: start.X, Y: start.Y, Z: minHeight}
	top1 := r3.Vector{X: goal.X, Y: goal.Y, Z: minHeight}
	switch {
	case ratio < updown:
		r := ratio / updown
		return lerp(start, top0, r)
	case ratio < 1-updown:
		r := (ratio - updown) / (1 - 2*updown)
		return lerp(top0, top1, r)
	default:
		r := (ratio - 1 + updown) / updown
		return lerp(top1, goal, r)
	}
}

// legCoordsGenerator produces the per-sample swing and support foot poses for
// the current step.
type legCoordsGenerator struct {
	swingDst    spatialmath.Pose
	swingSrc    spatialmath.Pose
	supportPose spatialmath.Pose
	swingPose   spatialmath.Pose

	defaultStepHeight float64
	currentStepHeight float64
	swingRatio        float64
	rotRatio          float64

	sampleIndex int
	stepSamples int
	supportLeg  kinematics.LegSide

	traj swingTrajectory
}

func newLegCoordsGenerator(dt float64) *legCoordsGenerator {
	return &legCoordsGenerator{
		defaultStepHeight: 0.05,
		supportLeg:        kinematics.Right,
		swingDst:          spatialmath.NewZeroPose(),
		swingSrc:          spatialmath.NewZeroPose(),
		supportPose:       spatialmath.NewZeroPose(),
		swingPose:         spatialmath.NewZeroPose(),
		traj: swingTrajectory{
			dt:         dt,
			timeOffset: defaultTimeOffset,
			orbit:      OrbitRectangle,
			topRatio:   0.5,
		},
	}
}

// reset reinitializes the interpolator at a step boundary.
func (l *legCoordsGenerator) reset(stepSamples int, dst, src, support spatialmath.Pose, supportLeg kinematics.LegSide) {
	l.swingDst = dst
	l.swingSrc = src
	l.supportPose = support
	l.swingPose = src
	l.supportLeg = supportLeg
	l.stepSamples = stepSamples
	l.sampleIndex = 0
	l.currentStepHeight = 0
	l.traj.reset(stepSamples)
}

// ratioFromDoubleSupport maps the in-step progress to the swing phase: zero
// across the leading half double support, one across the trailing half.
func (l *legCoordsGenerator) ratioFromDoubleSupport(doubleSupportRatio float64) float64 {
	if l.stepSamples == 0 {
		return 0
	}
	progress := float64(l.sampleIndex) / float64(l.stepSamples)
	switch {
	case progress < doubleSupportRatio/2:
		return 0
	case progress > 1-doubleSupportRatio/2:
		return 1
	default:
		return (progress - doubleSupportRatio/2) / (1 - doubleSupportRatio)
	}
}

// update consumes one sample and recomputes the swing pose.
func (l *legCoordsGenerator) update(doubleSupportRatio float64, forceHeightZero bool) {
	ratio := l.ratioFromDoubleSupport(doubleSupportRatio)
	l.swingRatio = ratio
	l.rotRatio = ratio
	height := l.defaultStepHeight
	if forceHeightZero {
		height = 0
	}
	if ratio > 0 && ratio < 1 && height > 0 {
		l.currentStepHeight = height
	} else {
		l.currentStepHeight = 0
	}
	pos := l.traj.point(l.swingSrc.Pos, l.swingDst.Pos, height)
	rot := spatialmath.MidPose(l.rotRatio, l.swingSrc, l.swingDst).Rot
	l.swingPose = spatialmath.NewPose(pos, rot)
	l.sampleIndex++
}

// swingSupportMidPose is the mid frame between the blended swing placement
// and the support foot.
func (l *legCoordsGenerator) swingSupportMidPose() spatialmath.Pose {
	blended := spatialmath.MidPose(l.rotRatio, l.swingSrc, l.swingDst)
	return spatialmath.MidPose(0.5, blended, l.supportPose)
}
