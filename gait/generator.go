package gait

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	viamutils "go.viam.com/utils"

	"go.viam.com/biped/kinematics"
	"go.viam.com/biped/spatialmath"
	"go.viam.com/biped/utils"
)

// VelocityPhase is the velocity-mode phase marker.
type VelocityPhase int

// Velocity-mode phases.
const (
	VelIdle VelocityPhase = iota
	VelDoing
	VelEnding
)

// EmergencyPhase is the emergency-stop phase marker.
type EmergencyPhase int

// Emergency phases.
const (
	EmergencyIdle EmergencyPhase = iota
	EmergencyStop
	EmergencyStopping
)

// Timing groups the gait clock parameters.
type Timing struct {
	DT                 float64
	StepTime           float64
	DoubleSupportRatio float64
	StepHeight         float64
	TopRatio           float64
}

// DefaultTiming returns the stock gait clock for a control period.
func DefaultTiming(dt float64) Timing {
	return Timing{DT: dt, StepTime: 1.0, DoubleSupportRatio: 0.2, StepHeight: 0.05, TopRatio: 0.5}
}

// StepSamples is the number of control periods per step.
func (t Timing) StepSamples() int {
	return int(math.Round(t.StepTime / t.DT))
}

// Validate checks the clock parameters.
func (t Timing) Validate() error {
	if t.DT <= 0 {
		return errors.New("control period must be positive")
	}
	if t.StepTime < t.DT {
		return errors.New("step time must cover at least one control period")
	}
	if t.DoubleSupportRatio < 0 || t.DoubleSupportRatio >= 1 {
		return errors.New("double support ratio must lie in [0, 1)")
	}
	if t.StepHeight < 0 {
		return errors.New("step height cannot be negative")
	}
	if t.TopRatio <= 0 || t.TopRatio >= 1 {
		return errors.New("top ratio must lie in (0, 1)")
	}
	return nil
}

// State is a per-tick snapshot of the walking state.
type State struct {
	StepIndex         int
	SampleIndex       int
	Support           kinematics.LegSide
	SwingSrc          spatialmath.Pose
	SwingDst          spatialmath.Pose
	SupportPose       spatialmath.Pose
	CurrentStepHeight float64
	SwingRatio        float64
	RotRatio          float64
}

// Reference is the per-tick output of the generator.
type Reference struct {
	ZMP              r3.Vector
	CoG              r3.Vector
	FootPoses        [kinematics.NumLegs]spatialmath.Pose
	RootPose         spatialmath.Pose
	ContactStates    [kinematics.NumLegs]bool
	SwingSupportTime [kinematics.NumLegs]float64
	SupportLeg       kinematics.LegSide
}

// velocityAppendThreshold is the minimum number of unconsumed footsteps kept
// ahead of the preview cursor in velocity mode.
const velocityAppendThreshold = 3

// defaultPreviewDelay is the preview horizon in seconds. At plan start the
// filter state is reset over the standing ZMP and the horizon is filled with
// the plan's first reference-ZMP samples.
const defaultPreviewDelay = 1.6

// Generator drives the reference-ZMP generator, the swing-leg generator and
// the preview filter one sample per tick, and owns the footstep plan.
// Service methods and Tick serialize on one mutex; a command issued while a
// tick runs takes effect at the next tick boundary.
type Generator struct {
	mu     sync.Mutex
	logger golog.Logger

	timing       Timing
	params       FootstepParameters
	orbit        OrbitType
	previewDelay float64
	rootAboveCoG float64

	plan            FootstepPlan
	initialStanding r3.Vector
	rg              refZMPGenerator
	lcg             *legCoordsGenerator
	preview         *PreviewFilter

	feet    [kinematics.NumLegs]spatialmath.Pose
	cog     r3.Vector
	refzmp  r3.Vector
	groundZ float64

	outputStep   int
	futureStep   int
	futureSample int

	velParam       Velocity
	offsetVelParam Velocity
	velPhase       VelocityPhase
	emergency      EmergencyPhase
	active         bool
}

// NewGenerator builds a gait generator. Initialize must be called with the
// standing pose before any walking command.
func NewGenerator(timing Timing, params FootstepParameters, logger golog.Logger) (*Generator, error) {
	if err := timing.Validate(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	g := &Generator{
		logger:       logger,
		timing:       timing,
		params:       params,
		orbit:        OrbitRectangle,
		previewDelay: defaultPreviewDelay,
		lcg:          newLegCoordsGenerator(timing.DT),
		feet: [kinematics.NumLegs]spatialmath.Pose{
			spatialmath.NewZeroPose(),
			spatialmath.NewZeroPose(),
		},
	}
	g.lcg.defaultStepHeight = timing.StepHeight
	g.lcg.traj.topRatio = timing.TopRatio
	return g, nil
}

// Initialize records the standing foot poses and CoM and designs the preview
// filter for the resulting CoM height.
func (g *Generator) Initialize(rfoot, lfoot spatialmath.Pose, cog r3.Vector) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active {
		return errors.New("cannot reinitialize while walking")
	}
	g.feet[kinematics.Right] = rfoot
	g.feet[kinematics.Left] = lfoot
	g.groundZ = (rfoot.Pos.Z + lfoot.Pos.Z) / 2
	zc := cog.Z - g.groundZ
	horizon := int(math.Round(g.previewDelay / g.timing.DT))
	pf, err := NewPreviewFilter(g.timing.DT, zc, horizon)
	if err != nil {
		return errors.Wrap(err, "designing preview filter")
	}
	g.preview = pf
	standing := g.standingZMPLocked()
	g.preview.Reset(standing)
	g.cog = cog
	g.refzmp = standing
	return nil
}

func (g *Generator) standingZMPLocked() r3.Vector {
	a := g.feet[kinematics.Right].TransformPoint(g.params.ZMPOffset[kinematics.Right])
	b := g.feet[kinematics.Left].TransformPoint(g.params.ZMPOffset[kinematics.Left])
	return a.Add(b).Mul(0.5)
}

func (g *Generator) currentMidfootLocked() spatialmath.Pose {
	return spatialmath.MidPose(0.5, g.feet[kinematics.Right], g.feet[kinematics.Left])
}

// Active reports whether a plan is being consumed.
func (g *Generator) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// Plan returns a copy of the current footstep plan.
func (g *Generator) Plan() FootstepPlan {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(FootstepPlan, len(g.plan))
	copy(out, g.plan)
	return out
}

// State returns a snapshot of the walking state.
func (g *Generator) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return State{
		StepIndex:         g.outputStep,
		SampleIndex:       g.lcg.sampleIndex,
		Support:           g.lcg.supportLeg,
		SwingSrc:          g.lcg.swingSrc,
		SwingDst:          g.lcg.swingDst,
		SupportPose:       g.lcg.supportPose,
		CurrentStepHeight: g.lcg.currentStepHeight,
		SwingRatio:        g.lcg.swingRatio,
		RotRatio:          g.lcg.rotRatio,
	}
}

// SetOrbit selects the swing-foot profile.
func (g *Generator) SetOrbit(o OrbitType) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orbit = o
	g.lcg.traj.orbit = o
}

// SetTiming replaces the gait clock; rejected while walking.
func (g *Generator) SetTiming(t Timing) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active {
		return errors.New("cannot change gait timing while walking")
	}
	if err := t.Validate(); err != nil {
		return err
	}
	if t.DT != g.timing.DT {
		return errors.New("control period is fixed at construction")
	}
	g.timing = t
	g.lcg.defaultStepHeight = t.StepHeight
	g.lcg.traj.topRatio = t.TopRatio
	return nil
}

// Timing returns the gait clock.
func (g *Generator) Timing() Timing {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.timing
}

// SetStrideParameters replaces the stride limits.
func (g *Generator) SetStrideParameters(x, y, theta float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if x <= 0 || y <= 0 || theta <= 0 {
		return errors.New("stride limits must be positive")
	}
	g.params.StrideX, g.params.StrideY, g.params.StrideTheta = x, y, theta
	return nil
}

// GoPos plans a walk to a goal displacement (meters, meters, radians)
// expressed in the current midfoot frame.
func (g *Generator) GoPos(dx, dy, dtheta float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.preview == nil {
		return errors.New("gait generator not initialized")
	}
	if g.active {
		return errors.New("walking already in progress")
	}
	startLeg := kinematics.Right
	if dy < 0 {
		startLeg = kinematics.Left
	}
	plan := g.buildGoPosPlanLocked(dx, dy, dtheta, startLeg)
	if err := g.startPlanLocked(plan); err != nil {
		return err
	}
	g.logger.Infow("go_pos accepted", "dx", dx, "dy", dy, "dtheta", dtheta, "footsteps", len(plan))
	return nil
}

func (g *Generator) buildGoPosPlanLocked(dx, dy, dtheta float64, startLeg kinematics.LegSide) FootstepPlan {
	n := 1
	for _, c := range []float64{
		math.Abs(dx) / g.params.StrideX,
		math.Abs(dy) / g.params.StrideY,
		math.Abs(dtheta) / g.params.StrideTheta,
	} {
		if steps := int(math.Ceil(c)); steps > n {
			n = steps
		}
	}
	incX, incY, incTh := dx/float64(n), dy/float64(n), dtheta/float64(n)
	mid := g.currentMidfootLocked()
	plan := FootstepPlan{{Leg: startLeg, Pose: g.params.footPose(mid, startLeg)}}
	leg := startLeg.Other()
	for i := 0; i < n; i++ {
		mid = advanceMidfoot(mid, incX, incY, incTh)
		plan = append(plan, g.limitedFootstep(plan[len(plan)-1], mid, leg))
		leg = leg.Other()
	}
	// leveling step and the trailing duplicate for final blending
	plan = append(plan, g.limitedFootstep(plan[len(plan)-1], mid, leg))
	plan = append(plan, plan[len(plan)-2])
	return plan
}

func advanceMidfoot(p spatialmath.Pose, dx, dy, dtheta float64) spatialmath.Pose {
	return spatialmath.NewPose(
		p.TransformPoint(r3.Vector{X: dx, Y: dy}),
		p.Rot.Mul(spatialmath.NewRotationFromAxisAngle(r3.Vector{Z: 1}, dtheta)),
	)
}

// limitedFootstep places a foot for the midfoot frame, keeping the swing foot
// on its own side of the support foot when the inside-step limitation is on.
func (g *Generator) limitedFootstep(support Footstep, mid spatialmath.Pose, leg kinematics.LegSide) Footstep {
	pose := g.params.footPose(mid, leg)
	if !g.params.InsideStepLimitation {
		return Footstep{Leg: leg, Pose: pose}
	}
	rel := support.Pose.InverseTransformPoint(pose.Pos)
	switch {
	case leg == kinematics.Right && rel.Y > 0:
		rel.Y = 0
	case leg == kinematics.Left && rel.Y < 0:
		rel.Y = 0
	default:
		return Footstep{Leg: leg, Pose: pose}
	}
	return Footstep{Leg: leg, Pose: spatialmath.NewPose(support.Pose.TransformPoint(rel), pose.Rot)}
}

// GoSingleStep plans a one-step override: displace the given swing leg by
// (dx, dy, dz, dtheta) expressed in the support foot frame.
func (g *Generator) GoSingleStep(dx, dy, dz, dtheta float64, swing kinematics.LegSide) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.preview == nil {
		return errors.New("gait generator not initialized")
	}
	if g.active {
		return errors.New("walking already in progress")
	}
	support := swing.Other()
	sp := g.feet[support]
	target := spatialmath.NewPose(
		g.feet[swing].Pos.Add(sp.Rot.Apply(r3.Vector{X: dx, Y: dy, Z: dz})),
		sp.Rot.Mul(spatialmath.NewRotationFromAxisAngle(r3.Vector{Z: 1}, dtheta)).Mul(sp.Rot.Inverse()).Mul(g.feet[swing].Rot),
	)
	plan := FootstepPlan{
		{Leg: support, Pose: sp},
		{Leg: swing, Pose: target},
		{Leg: support, Pose: sp},
	}
	if err := g.startPlanLocked(plan); err != nil {
		return err
	}
	g.logger.Infow("go_single_step accepted", "swing", swing, "dx", dx, "dy", dy, "dz", dz, "dtheta", dtheta)
	return nil
}

// SetFootsteps installs an explicit plan. The first entry must be the current
// support placement; a trailing duplicate is appended for final blending.
func (g *Generator) SetFootsteps(plan FootstepPlan) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.preview == nil {
		return errors.New("gait generator not initialized")
	}
	if g.active {
		return errors.New("walking already in progress")
	}
	if err := plan.Validate(); err != nil {
		return err
	}
	full := make(FootstepPlan, len(plan), len(plan)+1)
	copy(full, plan)
	full = append(full, full[len(full)-2])
	if err := g.startPlanLocked(full); err != nil {
		return err
	}
	g.logger.Infow("footstep plan accepted", "footsteps", len(full))
	return nil
}

// GoVelocity starts or retargets continuous walking. Units are mm/s for
// translation and deg/s for rotation.
func (g *Generator) GoVelocity(vxMM, vyMM, vthDeg float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.preview == nil {
		return errors.New("gait generator not initialized")
	}
	if g.velPhase == VelDoing {
		g.velParam = Velocity{VxMM: vxMM, VyMM: vyMM, VthetaDeg: vthDeg}
		return nil
	}
	if g.active {
		return errors.New("walking already in progress")
	}
	g.velParam = Velocity{VxMM: vxMM, VyMM: vyMM, VthetaDeg: vthDeg}
	startLeg := kinematics.Right
	if vyMM < 0 {
		startLeg = kinematics.Left
	}
	mid := g.currentMidfootLocked()
	plan := FootstepPlan{{Leg: startLeg, Pose: g.params.footPose(mid, startLeg)}}
	for len(plan) < velocityAppendThreshold+1 {
		plan = append(plan, g.nextVelocityFootstep(plan[len(plan)-1]))
	}
	if err := g.startPlanLocked(plan); err != nil {
		return err
	}
	g.velPhase = VelDoing
	g.logger.Infow("go_velocity accepted", "vx_mm_s", vxMM, "vy_mm_s", vyMM, "vtheta_deg_s", vthDeg)
	return nil
}

// SetOffsetVelocity sets a velocity bias summed with the commanded velocity.
func (g *Generator) SetOffsetVelocity(vxMM, vyMM, vthDeg float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.offsetVelParam = Velocity{VxMM: vxMM, VyMM: vyMM, VthetaDeg: vthDeg}
}

func (g *Generator) nextVelocityFootstep(last Footstep) Footstep {
	vel := g.velParam.Add(g.offsetVelParam)
	tx := utils.Clamp(vel.VxMM/1000*g.timing.StepTime, -g.params.StrideX, g.params.StrideX)
	ty := utils.Clamp(vel.VyMM/1000*g.timing.StepTime, -g.params.StrideY, g.params.StrideY)
	th := utils.Clamp(utils.DegToRad(vel.VthetaDeg)*g.timing.StepTime, -g.params.StrideTheta, g.params.StrideTheta)
	mid := advanceMidfoot(g.params.midfootOf(last), tx, ty, th)
	return g.limitedFootstep(last, mid, last.Leg.Other())
}

// FinalizeVelocityMode appends a closing step bringing the feet level and
// stops appending further footsteps.
func (g *Generator) FinalizeVelocityMode() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.velPhase != VelDoing {
		return
	}
	g.velPhase = VelEnding
	last := g.plan[len(g.plan)-1]
	mid := g.params.midfootOf(last)
	g.plan = append(g.plan, Footstep{Leg: last.Leg.Other(), Pose: g.params.footPose(mid, last.Leg.Other())})
	g.plan = append(g.plan, g.plan[len(g.plan)-2])
	g.rg.rebuild(g.plan, g.params, g.initialStanding)
	g.logger.Info("velocity mode ending")
}

// EmergencyStop stops appending footsteps; walking winds down after the
// current step completes.
func (g *Generator) EmergencyStop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.active {
		return
	}
	g.velPhase = VelIdle
	if g.emergency == EmergencyIdle {
		g.emergency = EmergencyStop
		g.logger.Warn("emergency stop requested")
	}
}

// WaitFootsteps blocks until the current plan has been fully consumed.
func (g *Generator) WaitFootsteps(ctx context.Context) error {
	for {
		g.mu.Lock()
		done := !g.active
		g.mu.Unlock()
		if done {
			return nil
		}
		if !viamutils.SelectContextOrWait(ctx, 10*time.Microsecond) {
			return ctx.Err()
		}
	}
}

// IsSwingingLeg reports whether a leg is airborne with a landing-offset
// margin away from the double-support edges.
func (g *Generator) IsSwingingLeg(side kinematics.LegSide, landingOffsetRatio float64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.active || side == g.lcg.supportLeg {
		return false
	}
	stepSamples := g.timing.StepSamples()
	remain := stepSamples - g.lcg.sampleIndex
	lo := int((g.timing.DoubleSupportRatio + landingOffsetRatio) * float64(stepSamples))
	hi := int((1 - g.timing.DoubleSupportRatio - landingOffsetRatio) * float64(stepSamples))
	return remain >= lo && remain <= hi
}

// SwingSupportMidPose is the mid frame between the blended swing placement
// and the support foot.
func (g *Generator) SwingSupportMidPose() spatialmath.Pose {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lcg.swingSupportMidPose()
}

// DstFootMidPose is the midfoot frame implied by the swing destination.
func (g *Generator) DstFootMidPose() spatialmath.Pose {
	g.mu.Lock()
	defer g.mu.Unlock()
	swing := g.lcg.supportLeg.Other()
	return g.params.midfootOf(Footstep{Leg: swing, Pose: g.lcg.swingDst})
}

func (g *Generator) startPlanLocked(plan FootstepPlan) error {
	if err := plan.Validate(); err != nil {
		return err
	}
	standing := g.standingZMPLocked()
	g.plan = plan
	g.initialStanding = standing
	g.rg.rebuild(plan, g.params, standing)
	g.preview.Reset(standing)
	g.outputStep = 0
	g.futureStep, g.futureSample = 0, 0
	for i := 0; i < g.preview.Horizon(); i++ {
		g.pushFutureLocked()
	}
	swingLeg := plan[1].Leg
	g.lcg.reset(g.timing.StepSamples(), plan[1].Pose, g.feet[swingLeg], plan[0].Pose, plan[0].Leg)
	g.emergency = EmergencyIdle
	g.active = true
	return nil
}

func (g *Generator) pushFutureLocked() {
	g.preview.Push(g.rg.zmpAt(g.futureStep, g.futureSample, g.timing.StepSamples(), g.timing.DoubleSupportRatio))
	g.futureSample++
	if g.futureSample >= g.timing.StepSamples() {
		g.futureSample = 0
		g.futureStep++
	}
}

// Tick advances every sub-generator by one control period and returns the
// reference sample. ok is false while idle.
func (g *Generator) Tick() (Reference, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.active {
		return g.standingReferenceLocked(), false
	}
	if g.velPhase == VelDoing && len(g.plan)-g.futureStep <= velocityAppendThreshold {
		g.plan = append(g.plan, g.nextVelocityFootstep(g.plan[len(g.plan)-1]))
		g.rg.rebuild(g.plan, g.params, g.initialStanding)
	}
	g.pushFutureLocked()
	if cog, zmp, ok := g.preview.Advance(); ok {
		g.cog = cog
		g.refzmp = zmp
	}
	forceHeightZero := g.emergency == EmergencyStopping ||
		spatialmath.PoseAlmostEqual(g.lcg.swingSrc, g.lcg.swingDst, 1e-9)
	g.lcg.update(g.timing.DoubleSupportRatio, forceHeightZero)
	ref := g.referenceLocked()
	if g.lcg.sampleIndex >= g.timing.StepSamples() {
		g.stepBoundaryLocked()
	}
	return ref, true
}

func (g *Generator) stepBoundaryLocked() {
	landed := g.plan[g.outputStep+1]
	g.feet[landed.Leg] = landed.Pose
	g.outputStep++
	if g.emergency == EmergencyStop {
		g.overwriteForStopLocked()
	}
	if g.outputStep+1 >= len(g.plan) {
		g.finishLocked()
		return
	}
	next := g.plan[g.outputStep+1]
	g.lcg.reset(
		g.timing.StepSamples(),
		next.Pose,
		g.feet[next.Leg],
		g.plan[g.outputStep].Pose,
		g.plan[g.outputStep].Leg,
	)
}

// overwriteForStopLocked truncates the plan after the step in progress,
// duplicates the last two-step pattern to flush double support without
// another swing, and restarts the preview horizon over the shortened stream.
func (g *Generator) overwriteForStopLocked() {
	g.emergency = EmergencyStopping
	if g.outputStep < 1 || g.outputStep+1 >= len(g.plan) {
		return
	}
	trunc := make(FootstepPlan, g.outputStep+1, g.outputStep+2)
	copy(trunc, g.plan[:g.outputStep+1])
	trunc = append(trunc, g.plan[g.outputStep-1])
	g.plan = trunc
	g.rg.rebuild(g.plan, g.params, g.initialStanding)
	g.preview.DropFuture()
	g.futureStep, g.futureSample = g.outputStep, 0
	for i := 0; i < g.preview.Horizon(); i++ {
		g.pushFutureLocked()
	}
	g.logger.Infow("emergency stop engaged", "remaining_footsteps", len(g.plan)-g.outputStep)
}

func (g *Generator) finishLocked() {
	g.active = false
	g.velPhase = VelIdle
	g.emergency = EmergencyIdle
	g.lcg.swingRatio = 0
	g.lcg.rotRatio = 0
	g.lcg.currentStepHeight = 0
	g.lcg.sampleIndex = 0
	g.logger.Info("walking finished")
}

func (g *Generator) referenceLocked() Reference {
	support := g.lcg.supportLeg
	swing := support.Other()
	var footPoses [kinematics.NumLegs]spatialmath.Pose
	footPoses[support] = g.lcg.supportPose
	footPoses[swing] = g.lcg.swingPose
	contact := [kinematics.NumLegs]bool{true, true}
	if g.lcg.currentStepHeight > 0 && g.lcg.swingRatio > 0 && g.lcg.swingRatio < 1 {
		contact[swing] = false
	}
	stepSamples := g.timing.StepSamples()
	sst := [kinematics.NumLegs]float64{g.timing.StepTime, g.timing.StepTime}
	landingSample := int((1 - g.timing.DoubleSupportRatio/2) * float64(stepSamples))
	remain := float64(landingSample-g.lcg.sampleIndex) * g.timing.DT
	if remain < 0 {
		remain = 0
	}
	sst[swing] = remain
	return Reference{
		ZMP:              g.refzmp,
		CoG:              g.cog,
		FootPoses:        footPoses,
		RootPose:         g.rootPoseLocked(g.lcg.swingSupportMidPose()),
		ContactStates:    contact,
		SwingSupportTime: sst,
		SupportLeg:       support,
	}
}

func (g *Generator) standingReferenceLocked() Reference {
	return Reference{
		ZMP:              g.refzmp,
		CoG:              g.cog,
		FootPoses:        g.feet,
		RootPose:         g.rootPoseLocked(g.currentMidfootLocked()),
		ContactStates:    [kinematics.NumLegs]bool{true, true},
		SwingSupportTime: [kinematics.NumLegs]float64{g.timing.StepTime, g.timing.StepTime},
		SupportLeg:       g.lcg.supportLeg,
	}
}

// rootPoseLocked places the root over the CoM with the yaw of the given
// ground frame.
func (g *Generator) rootPoseLocked(ground spatialmath.Pose) spatialmath.Pose {
	return spatialmath.NewPose(
		r3.Vector{X: g.cog.X, Y: g.cog.Y, Z: g.cog.Z + g.rootAboveCoG},
		spatialmath.NewRotationFromAxisAngle(r3.Vector{Z: 1}, ground.Rot.Yaw()),
	)
}

// SetRootAboveCoG sets the constant root-link height above the CoM used for
// the published root pose.
func (g *Generator) SetRootAboveCoG(dz float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rootAboveCoG = dz
}
