package stabilizer

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

// Mode is the stabilizer state machine.
type Mode int

// Stabilizer modes. While the transition interpolator runs, the joint output
// is blended between the reference and the controlled posture. SyncToIdle and
// SyncToAir last the whole blend; SyncToST hands over to ST at the end of its
// first tick and the blend continues under ST.
const (
	ModeIdle Mode = iota
	ModeAir
	ModeST
	ModeSyncToIdle
	ModeSyncToST
	ModeSyncToAir
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeAir:
		return "air"
	case ModeST:
		return "st"
	case ModeSyncToIdle:
		return "sync_to_idle"
	case ModeSyncToST:
		return "sync_to_st"
	default:
		return "sync_to_air"
	}
}

// transitionDuration is how long mode blends take.
const transitionDuration = 2.0

// transitionPoll is the service-side wait granularity for Start/Stop.
const transitionPoll = 10 * time.Microsecond

// footRotLimit clamps the per-foot roll/pitch compensation.
var footRotLimit = utils.DegToRad(10)

// zctrlLimit clamps the vertical force-difference compensation in meters.
const zctrlLimit = 0.05

// actContactForceThreshold decides per-foot actual contact from the filtered
// vertical force.
const actContactForceThreshold = 25.0

// Inputs are the sample-port values read at the start of every tick.
type Inputs struct {
	QCurrent []float64
	QRef     []float64
	// BodyRPY is the gyrometer-link attitude.
	BodyRPY r3.Vector
	// Force holds the raw force/torque wrenches in each sensor frame,
	// indexed by leg.
	Force [kinematics.NumLegs]kinematics.Wrench
	// ZMPRef is the reference ZMP in the base frame.
	ZMPRef  r3.Vector
	BasePos r3.Vector
	BaseRPY r3.Vector
	// ContactStates and ControlSwingSupportTime come from the gait
	// generator, indexed by leg.
	ContactStates           [kinematics.NumLegs]bool
	ControlSwingSupportTime [kinematics.NumLegs]float64
}

// Diagnostics mirrors the debug sample ports. Origin* values are expressed
// in the foot-origin frame when the EEFM algorithm runs.
type Diagnostics struct {
	OriginRefZMP    r3.Vector
	OriginRefCoG    r3.Vector
	OriginRefCoGVel r3.Vector
	OriginNewZMP    r3.Vector
	OriginActZMP    r3.Vector
	OriginActCoG    r3.Vector
	OriginActCoGVel r3.Vector
	RefWrench       [kinematics.NumLegs]kinematics.Wrench
	FootCompZ       [kinematics.NumLegs]float64
	FootCompRPY     [kinematics.NumLegs]r3.Vector
	ActBaseRPY      r3.Vector
	CurrentBasePos  r3.Vector
	CurrentBaseRPY  r3.Vector
	// Alpha is the distributor's right-foot weight share.
	Alpha float64
}

// Outputs are published at the end of every tick.
type Outputs struct {
	// Q is the modified joint vector.
	Q []float64
	// ZMP is the measured ZMP in the root-link frame.
	ZMP      r3.Vector
	OnGround bool
	Diagnostics
}

// Config wires the stabilizer to its model.
type Config struct {
	DT           float64
	Body         kinematics.Body
	EndEffectors [kinematics.NumLegs]kinematics.EndEffectorFrame
	// SensorNames and GyroSensorName default to the conventional names when
	// empty.
	SensorNames    [kinematics.NumLegs]string
	GyroSensorName string
}

// Stabilizer closes the balance loop once per control period. All state is
// guarded by one mutex held for the whole of Tick; service calls take effect
// at the next tick boundary.
type Stabilizer struct {
	mu     sync.Mutex
	logger golog.Logger

	dt          float64
	body        kinematics.Body
	ee          [kinematics.NumLegs]kinematics.EndEffectorFrame
	sensorNames [kinematics.NumLegs]string
	gyroName    string
	mass        float64

	params    Parameters
	mode      Mode
	interp    *transitionInterpolator
	estimator ZMPEstimator
	loop      int

	qorg            []float64
	qrefv           []float64
	currentRootPose spatialmath.Pose
	targetRootPose  spatialmath.Pose
	targetFoot      [kinematics.NumLegs]spatialmath.Pose

	refZMP          r3.Vector
	prevRefZMP      r3.Vector
	prevRefZMPValid bool
	refCoG          r3.Vector
	refCoGVel       r3.Vector
	prevRefCoG      r3.Vector
	newRefZMP       r3.Vector
	relCoG          r3.Vector
	zmpOriginOff    float64

	actZMP         r3.Vector
	actCoG         r3.Vector
	actCoGVel      r3.Vector
	prevActCoG     r3.Vector
	prevActCoGVel  r3.Vector
	relActZMP      r3.Vector
	actBaseRPY     r3.Vector
	currentBasePos r3.Vector
	currentBaseRPY r3.Vector
	onGround       bool

	contact              [kinematics.NumLegs]bool
	prevContact          [kinematics.NumLegs]bool
	prevRefFootOriginRot spatialmath.Rotation
	prevActFootOriginRot spatialmath.Rotation

	dRPY          [2]float64
	dFootRPY      [kinematics.NumLegs]r3.Vector
	zctrl         float64
	fzctrl        [kinematics.NumLegs]float64
	refFootForce  [kinematics.NumLegs]r3.Vector
	refFootMoment [kinematics.NumLegs]r3.Vector
	alpha         float64
}

// New builds a stabilizer around a whole-body model.
func New(cfg Config, logger golog.Logger) (*Stabilizer, error) {
	if cfg.DT <= 0 {
		return nil, errors.New("stabilizer needs a positive control period")
	}
	if cfg.Body == nil {
		return nil, errors.New("stabilizer needs a whole-body model")
	}
	if cfg.SensorNames[kinematics.Right] == "" {
		cfg.SensorNames[kinematics.Right] = kinematics.ForceSensorNames(kinematics.Right)
	}
	if cfg.SensorNames[kinematics.Left] == "" {
		cfg.SensorNames[kinematics.Left] = kinematics.ForceSensorNames(kinematics.Left)
	}
	if cfg.GyroSensorName == "" {
		cfg.GyroSensorName = kinematics.GyroSensorName
	}
	cfg.Body.UpdateKinematics()
	for _, side := range []kinematics.LegSide{kinematics.Right, kinematics.Left} {
		if _, ok := cfg.Body.Sensor(cfg.SensorNames[side]); !ok {
			return nil, errors.Errorf("model has no force sensor %q", cfg.SensorNames[side])
		}
		if _, ok := cfg.Body.LinkPose(cfg.EndEffectors[side].Link); !ok {
			return nil, errors.Errorf("model has no end-effector link %q for %s", cfg.EndEffectors[side].Link, side)
		}
	}
	if _, ok := cfg.Body.Sensor(cfg.GyroSensorName); !ok {
		return nil, errors.Errorf("model has no gyro sensor %q", cfg.GyroSensorName)
	}
	s := &Stabilizer{
		logger:      logger,
		dt:          cfg.DT,
		body:        cfg.Body,
		ee:          cfg.EndEffectors,
		sensorNames: cfg.SensorNames,
		gyroName:    cfg.GyroSensorName,
		mass:        cfg.Body.TotalMass(),
		params:      DefaultParameters(),
		interp:      newTransitionInterpolator(cfg.DT),
		qorg:        make([]float64, cfg.Body.NumJoints()),
		qrefv:       make([]float64, cfg.Body.NumJoints()),

		currentRootPose:      cfg.Body.RootPose(),
		targetRootPose:       cfg.Body.RootPose(),
		zmpOriginOff:         cfg.EndEffectors[kinematics.Right].LocalPos.Z,
		contact:              [kinematics.NumLegs]bool{true, true},
		prevContact:          [kinematics.NumLegs]bool{true, true},
		prevRefFootOriginRot: spatialmath.NewZeroRotation(),
		prevActFootOriginRot: spatialmath.NewZeroRotation(),
	}
	return s, nil
}

// Mode returns the current state-machine mode.
func (s *Stabilizer) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// TransitionRatio returns the current blend ratio (0 = reference passthrough,
// 1 = fully controlled).
func (s *Stabilizer) TransitionRatio() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interp.value()
}

// Parameters returns a copy of the tunable set.
func (s *Stabilizer) Parameters() Parameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// SetParameters validates and swaps the tunable set. Out-of-range fields are
// clamped; an algorithm switch is rejected unless the mode is Idle, without
// failing the call.
func (s *Stabilizer) SetParameters(p Parameters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if adjusted := p.sanitize(s.params); len(adjusted) > 0 {
		s.logger.Warnw("stabilizer parameters clamped to safe range", "fields", adjusted)
	}
	if p.Algorithm != s.params.Algorithm && s.mode != ModeIdle {
		s.logger.Warnw("st_algorithm can only change while idle; keeping current",
			"current", s.params.Algorithm.String(), "rejected", p.Algorithm.String())
		p.Algorithm = s.params.Algorithm
	}
	s.params = p
	return nil
}

// Start engages stabilization: Idle transitions to ST through a smooth blend
// when on the ground, or to Air otherwise. It blocks until the state machine
// settles; ticks must be running concurrently.
func (s *Stabilizer) Start(ctx context.Context) error {
	s.mu.Lock()
	switch s.mode {
	case ModeST, ModeAir:
		s.mu.Unlock()
		return nil
	case ModeIdle:
		s.syncToSTLocked()
		s.mu.Unlock()
	default:
		s.mu.Unlock()
		return errors.New("stabilizer is mid-transition")
	}
	return s.waitMode(ctx, ModeST, ModeAir)
}

// Stop disengages stabilization, blending back to the reference posture.
func (s *Stabilizer) Stop(ctx context.Context) error {
	s.mu.Lock()
	switch s.mode {
	case ModeIdle:
		s.mu.Unlock()
		return nil
	case ModeST, ModeAir:
		if !s.interp.done() {
			s.mu.Unlock()
			return errors.New("stabilizer is mid-transition")
		}
		s.logger.Info("sync ST => IDLE")
		s.mode = ModeSyncToIdle
		s.interp.setGoal(0, transitionDuration)
		s.mu.Unlock()
	default:
		s.mu.Unlock()
		return errors.New("stabilizer is mid-transition")
	}
	return s.waitMode(ctx, ModeIdle)
}

func (s *Stabilizer) syncToSTLocked() {
	s.logger.Info("sync IDLE => ST")
	s.dRPY = [2]float64{}
	s.dFootRPY = [kinematics.NumLegs]r3.Vector{}
	s.zctrl = 0
	s.fzctrl = [kinematics.NumLegs]float64{}
	if s.onGround {
		s.mode = ModeSyncToST
		s.interp.setGoal(1, transitionDuration)
	} else {
		s.mode = ModeAir
	}
}

func (s *Stabilizer) waitMode(ctx context.Context, want ...Mode) error {
	for {
		s.mu.Lock()
		mode := s.mode
		settled := s.interp.done()
		s.mu.Unlock()
		if settled {
			for _, w := range want {
				if mode == w {
					return nil
				}
			}
		}
		if !viamutils.SelectContextOrWait(ctx, transitionPoll) {
			return ctx.Err()
		}
	}
}

// Tick runs one control period: read samples, update reference and actual
// states, run the selected algorithm, blend transitions and publish the
// modified joint vector.
func (s *Stabilizer) Tick(in Inputs) Outputs {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loop++
	s.contact = in.ContactStates
	if len(in.QRef) != s.body.NumJoints() || len(in.QCurrent) != s.body.NumJoints() {
		if s.loop%200 == 1 {
			s.logger.Warnw("joint vector length mismatch; skipping write stage",
				"model", s.body.NumJoints(), "qRef", len(in.QRef), "qCurrent", len(in.QCurrent))
		}
		s.interp.step()
		s.syncModesLocked()
		s.prevContact = s.contact
		return Outputs{
			Q:           append([]float64(nil), in.QRef...),
			ZMP:         s.relActZMP,
			OnGround:    s.onGround,
			Diagnostics: s.diagnosticsLocked(),
		}
	}

	s.getCurrentParameters()
	s.getTargetParameters(in)
	s.getActualParameters(in)

	switch s.mode {
	case ModeAir:
		if s.interp.done() && s.onGround {
			s.syncToSTLocked()
		}
	case ModeIdle:
		// reference passthrough
	default:
		if s.params.Algorithm == EEFM {
			s.calcEEForceMomentControl()
		} else {
			s.calcTPCC(in)
		}
		if (s.mode == ModeST || s.mode == ModeSyncToST) && !s.onGround {
			s.logger.Info("lost ground contact; sync ST => AIR")
			s.mode = ModeSyncToAir
			s.interp.setGoal(0, transitionDuration)
		}
	}

	s.interp.step()
	if !s.interp.done() {
		ratio := s.interp.value()
		q := s.body.JointAngles()
		for i := range q {
			q[i] = (1-ratio)*in.QRef[i] + ratio*q[i]
		}
		s.body.SetJointAngles(q)
	}
	s.syncModesLocked()

	return Outputs{
		Q:           s.body.JointAngles(),
		ZMP:         s.relActZMP,
		OnGround:    s.onGround,
		Diagnostics: s.diagnosticsLocked(),
	}
}

func (s *Stabilizer) syncModesLocked() {
	switch {
	case s.mode == ModeSyncToST:
		s.mode = ModeST
	case s.mode == ModeSyncToIdle && s.interp.done():
		s.logger.Info("finished cleanup; mode idle")
		s.mode = ModeIdle
	case s.mode == ModeSyncToAir && s.interp.done():
		s.logger.Info("finished cleanup; mode air")
		s.mode = ModeAir
	}
}

// getCurrentParameters snapshots the previous tick's result.
func (s *Stabilizer) getCurrentParameters() {
	s.currentRootPose = s.body.RootPose()
	copy(s.qorg, s.body.JointAngles())
}

func (s *Stabilizer) footPoseLocked(side kinematics.LegSide) spatialmath.Pose {
	lp, _ := s.body.LinkPose(s.ee[side].Link)
	return spatialmath.Compose(lp, spatialmath.NewPose(s.ee[side].LocalPos, s.ee[side].LocalRot))
}

func (s *Stabilizer) sensorPoseLocked(side kinematics.LegSide) spatialmath.Pose {
	sf, _ := s.body.Sensor(s.sensorNames[side])
	lp, _ := s.body.LinkPose(sf.Link)
	return spatialmath.Compose(lp, spatialmath.NewPose(sf.LocalPos, sf.LocalRot))
}

// getTargetParameters loads the reference stream into the model and derives
// the reference ZMP, CoM and foot poses, converted into the foot-origin frame
// under the EEFM algorithm.
func (s *Stabilizer) getTargetParameters(in Inputs) {
	s.body.SetJointAngles(in.QRef)
	copy(s.qrefv, in.QRef)
	s.targetRootPose = spatialmath.NewPose(in.BasePos, spatialmath.NewRotationFromRPY(in.BaseRPY.X, in.BaseRPY.Y, in.BaseRPY.Z))
	s.body.SetRootPose(s.targetRootPose)
	s.body.UpdateKinematics()

	s.refZMP = s.targetRootPose.TransformPoint(in.ZMPRef)
	if s.params.Algorithm == EEFM {
		// inverse of the preview filter's inherent ZMP delay
		if s.prevRefZMPValid {
			delayed := s.refZMP.Add(s.refZMP.Sub(s.prevRefZMP).Mul(s.params.EEFMZMPDelayTimeConst[0] / s.dt))
			s.prevRefZMP = s.refZMP
			s.refZMP = delayed
		} else {
			s.prevRefZMP = s.refZMP
			s.prevRefZMPValid = true
		}
	}
	s.refCoG = s.body.CoM()
	for _, side := range []kinematics.LegSide{kinematics.Right, kinematics.Left} {
		s.targetFoot[side] = s.footPoseLocked(side)
	}

	if s.params.Algorithm == EEFM {
		origin := FootOriginPose(s.targetFoot, s.contact)
		s.newRefZMP = s.refZMP
		s.relCoG = s.targetRootPose.InverseTransformPoint(s.refCoG)
		s.zmpOriginOff = s.refZMP.Z - origin.Pos.Z
		s.refZMP = origin.InverseTransformPoint(s.refZMP)
		s.refCoG = origin.InverseTransformPoint(s.refCoG)
		s.newRefZMP = origin.InverseTransformPoint(s.newRefZMP)
		if s.contact != s.prevContact {
			s.refCoGVel = origin.Rot.Inverse().Mul(s.prevRefFootOriginRot).Apply(s.refCoGVel)
		} else {
			s.refCoGVel = s.refCoG.Sub(s.prevRefCoG).Mul(1 / s.dt)
		}
		s.prevRefFootOriginRot = origin.Rot
	} else {
		s.refCoGVel = s.refCoG.Sub(s.prevRefCoG).Mul(1 / s.dt)
	}
	s.prevRefCoG = s.refCoG
}

// getActualParameters estimates the actual CoM and ZMP. Under EEFM it loads
// the measured joints, corrects the root attitude from the gyro, estimates the
// CoM velocity and computes the new reference ZMP, the wrench distribution and
// the damping compensators; under TPCC the actual CoM comes from the previous
// tick's joints and root pose.
func (s *Stabilizer) getActualParameters(in Inputs) {
	if s.params.Algorithm == EEFM {
		s.getActualEEFM(in)
	} else {
		s.getActualTPCC(in)
	}

	// restore the model to the reference posture; when stabilizing, keep the
	// previous tick's leg joints and root x, y and rotation so IK continues
	// from the last commanded configuration
	s.body.SetJointAngles(s.qrefv)
	s.body.SetRootPose(s.targetRootPose)
	if s.mode != ModeIdle && s.mode != ModeAir {
		q := s.body.JointAngles()
		for _, side := range []kinematics.LegSide{kinematics.Right, kinematics.Left} {
			for _, idx := range s.body.LegChain(side).Indices() {
				q[idx] = s.qorg[idx]
			}
		}
		s.body.SetJointAngles(q)
		s.body.SetRootPose(spatialmath.NewPose(
			r3.Vector{X: s.currentRootPose.Pos.X, Y: s.currentRootPose.Pos.Y, Z: s.targetRootPose.Pos.Z},
			s.currentRootPose.Rot,
		))
	}
	s.body.UpdateKinematics()
	s.prevContact = s.contact
}

func (s *Stabilizer) getActualTPCC(in Inputs) {
	s.body.SetJointAngles(s.qorg)
	s.body.SetRootPose(s.currentRootPose)
	s.body.UpdateKinematics()
	s.actCoG = s.body.CoM()
	zmp, onGround := s.estimator.Estimate(s.footSensorSamplesLocked(in), s.refZMP.Z)
	s.actZMP = zmp
	s.onGround = onGround
	s.relActZMP = s.body.RootPose().InverseTransformPoint(s.actZMP)
}

func (s *Stabilizer) footSensorSamplesLocked(in Inputs) [kinematics.NumLegs]FootSensorSample {
	var samples [kinematics.NumLegs]FootSensorSample
	for _, side := range []kinematics.LegSide{kinematics.Right, kinematics.Left} {
		samples[side] = FootSensorSample{Pose: s.sensorPoseLocked(side), Wrench: in.Force[side]}
	}
	return samples
}

func (s *Stabilizer) getActualEEFM(in Inputs) {
	// rebuild the model from the measured joints, then overwrite the root
	// rotation with the gyro-derived attitude
	rootR := s.targetRootPose.Rot
	s.body.SetJointAngles(in.QCurrent)
	s.body.SetRootPose(spatialmath.NewPose(r3.Vector{}, rootR))
	s.body.UpdateKinematics()
	gyro, _ := s.body.Sensor(s.gyroName)
	glp, _ := s.body.LinkPose(gyro.Link)
	senR := glp.Rot.Mul(gyro.LocalRot)
	actRs := spatialmath.NewRotationFromRPY(in.BodyRPY.X, in.BodyRPY.Y, in.BodyRPY.Z)
	newRootR := actRs.Mul(senR.Inverse().Mul(rootR))
	s.body.SetRootPose(spatialmath.NewPose(r3.Vector{}, newRootR))
	s.body.UpdateKinematics()
	roll, pitch, yaw := newRootR.RPY()
	s.actBaseRPY = r3.Vector{X: roll, Y: pitch, Z: yaw}

	var actFeet [kinematics.NumLegs]spatialmath.Pose
	for _, side := range []kinematics.LegSide{kinematics.Right, kinematics.Left} {
		actFeet[side] = s.footPoseLocked(side)
	}
	origin := FootOriginPose(actFeet, s.contact)
	s.actCoG = s.body.CoM()

	zmp, onGround := s.estimator.Estimate(s.footSensorSamplesLocked(in), s.zmpOriginOff+origin.Pos.Z)
	s.actZMP = zmp
	s.onGround = onGround
	s.relActZMP = s.body.RootPose().InverseTransformPoint(s.actZMP)

	// actual foot-origin frame
	s.actZMP = origin.InverseTransformPoint(s.actZMP)
	s.actCoG = origin.InverseTransformPoint(s.actCoG)
	if s.contact != s.prevContact {
		s.actCoGVel = origin.Rot.Inverse().Mul(s.prevActFootOriginRot).Apply(s.actCoGVel)
	} else {
		s.actCoGVel = s.actCoG.Sub(s.prevActCoG).Mul(1 / s.dt)
	}
	s.prevActFootOriginRot = origin.Rot
	c := 2 * math.Pi * s.params.EEFMCogVelCutoffFreq * s.dt
	s.actCoGVel = s.prevActCoGVel.Mul(1 / (1 + c)).Add(s.actCoGVel.Mul(c / (1 + c)))
	s.prevActCoG = s.actCoG
	s.prevActCoGVel = s.actCoGVel

	// Kajita's feedback law, per horizontal world axis
	ratio := s.interp.value()
	dcog := origin.Rot.Apply(s.refCoG.Sub(s.actCoG))
	dcogvel := origin.Rot.Apply(s.refCoGVel.Sub(s.actCoGVel))
	dzmp := origin.Rot.Apply(s.refZMP.Sub(s.actZMP))
	newRefZMP := origin.TransformPoint(s.newRefZMP)
	newRefZMP.X += ratio*(s.params.EEFMK1[0]*dcog.X+s.params.EEFMK2[0]*dcogvel.X+s.params.EEFMK3[0]*dzmp.X) + s.params.EEFMRefZMPAux[0]
	newRefZMP.Y += ratio*(s.params.EEFMK1[1]*dcog.Y+s.params.EEFMK2[1]*dcogvel.Y+s.params.EEFMK3[1]*dzmp.Y) + s.params.EEFMRefZMPAux[1]

	var moments [kinematics.NumLegs]r3.Vector
	s.alpha, s.refFootForce, moments = DistributeWrench(newRefZMP, actFeet, s.mass, s.params.distributorParams())
	for i := range moments {
		s.refFootMoment[i] = origin.Rot.ApplyInverse(moments[i])
	}
	s.newRefZMP = origin.InverseTransformPoint(newRefZMP)

	// body attitude control
	refRoll, refPitch, _ := s.targetRootPose.Rot.RPY()
	actRPY := [2]float64{roll, pitch}
	refRPY := [2]float64{refRoll, refPitch}
	for i := 0; i < 2; i++ {
		s.dRPY[i] = attitudeControl(refRPY[i], actRPY[i], s.dRPY[i],
			s.params.EEFMBodyAttitudeControlGain[i], s.params.EEFMBodyAttitudeControlTimeConst[i], ratio, s.dt)
	}

	// per-foot moment damping
	fzDiff := 0.0
	for _, side := range []kinematics.LegSide{kinematics.Right, kinematics.Left} {
		sf, _ := s.body.Sensor(s.sensorNames[side])
		slp, _ := s.body.LinkPose(sf.Link)
		sensorR := slp.Rot.Mul(sf.LocalRot)
		sensorForce := sensorR.Apply(in.Force[side].Force)
		sensorMoment := sensorR.Apply(in.Force[side].Torque)
		eeMoment := slp.Rot.Apply(sf.LocalPos.Sub(s.ee[side].LocalPos)).Cross(sensorForce).Add(sensorMoment)
		eeR := slp.Rot.Mul(s.ee[side].LocalRot)
		eeRefMoment := eeR.ApplyInverse(moments[side])
		eeActMoment := eeR.ApplyInverse(eeMoment)
		if side == kinematics.Right {
			fzDiff -= sensorForce.Z
		} else {
			fzDiff += sensorForce.Z
		}
		d := s.dFootRPY[side]
		d.X = utils.Clamp(dampingControl(eeRefMoment.X, eeActMoment.X, d.X,
			s.params.EEFMRotDampingGain, s.params.EEFMRotTimeConst, s.dt), -footRotLimit, footRotLimit)
		d.Y = utils.Clamp(dampingControl(eeRefMoment.Y, eeActMoment.Y, d.Y,
			s.params.EEFMRotDampingGain, s.params.EEFMRotTimeConst, s.dt), -footRotLimit, footRotLimit)
		s.dFootRPY[side] = d
	}

	// vertical force difference control; the time constant blends from the
	// swing value to the support value over the end of the swing phase
	refFzDiff := s.refFootForce[kinematics.Left].Z - s.refFootForce[kinematics.Right].Z
	bothRefContact := s.contact[kinematics.Right] && s.contact[kinematics.Left]
	bothActContact := s.estimator.FilteredForceZ(kinematics.Right) > actContactForceThreshold &&
		s.estimator.FilteredForceZ(kinematics.Left) > actContactForceThreshold
	switch {
	case bothRefContact || bothActContact:
		s.zctrl = dampingControl(refFzDiff, fzDiff, s.zctrl,
			s.params.EEFMPosDampingGain, s.params.EEFMPosTimeConstSupport, s.dt)
	default:
		remain := in.ControlSwingSupportTime[kinematics.Left]
		if !s.contact[kinematics.Right] {
			remain = in.ControlSwingSupportTime[kinematics.Right]
		}
		if s.params.EEFMPosTransitionTime+s.params.EEFMPosMarginTime < remain {
			s.zctrl = dampingControl(0, 0, s.zctrl,
				s.params.EEFMPosDampingGain, s.params.EEFMPosTimeConstSwing, s.dt)
		} else {
			tr := 1.0
			if s.params.EEFMPosTransitionTime > 0 {
				tr = math.Min(1, 1-(remain-s.params.EEFMPosMarginTime)/s.params.EEFMPosTransitionTime)
			}
			tc := (1-tr)*s.params.EEFMPosTimeConstSwing + tr*s.params.EEFMPosTimeConstSupport
			s.zctrl = dampingControl(tr*refFzDiff, tr*fzDiff, s.zctrl,
				s.params.EEFMPosDampingGain, tc, s.dt)
		}
	}
	s.zctrl = utils.Clamp(s.zctrl, -zctrlLimit, zctrlLimit)
	s.fzctrl[kinematics.Right] = -0.5 * s.zctrl
	s.fzctrl[kinematics.Left] = 0.5 * s.zctrl
}

// calcEEForceMomentControl applies the EEFM compensators: root attitude,
// modified foot targets and per-leg IK scaled by the transition ratio.
func (s *Stabilizer) calcEEForceMomentControl() {
	s.body.SetJointAngles(s.qrefv)
	currentRootR := s.targetRootPose.Rot.Mul(spatialmath.NewRotationFromRPY(s.dRPY[0], s.dRPY[1], 0))
	// keep the root-to-reference-CoM vector while rotating the trunk
	rootPos := s.targetRootPose.Pos.
		Add(s.targetRootPose.Rot.Apply(s.relCoG)).
		Sub(currentRootR.Apply(s.relCoG))
	s.body.SetRootPose(spatialmath.NewPose(rootPos, currentRootR))
	s.body.UpdateKinematics()
	roll, pitch, yaw := currentRootR.RPY()
	s.currentBaseRPY = r3.Vector{X: roll, Y: pitch, Z: yaw}
	s.currentBasePos = rootPos

	var targets [kinematics.NumLegs]spatialmath.Pose
	for _, side := range []kinematics.LegSide{kinematics.Right, kinematics.Left} {
		rot := s.targetFoot[side].Rot.Mul(spatialmath.NewRotationFromRPY(-s.dFootRPY[side].X, -s.dFootRPY[side].Y, 0))
		pos := s.targetFoot[side].Pos
		pos.Z -= s.fzctrl[side]
		targets[side] = spatialmath.NewPose(pos, rot)
	}
	ratio := s.interp.value()
	for iter := 0; iter < 3; iter++ {
		s.body.UpdateKinematics()
		for _, side := range []kinematics.LegSide{kinematics.Right, kinematics.Left} {
			kinematics.LegIKStep(s.body, side, s.ee[side], targets[side], ratio)
		}
	}
	s.body.UpdateKinematics()
}

// calcTPCC applies the two-point contact control law: the root follows the
// CoM feedback inside a fixed-iteration convergence loop that reruns leg IK.
func (s *Stabilizer) calcTPCC(in Inputs) {
	ratio := s.interp.value()
	cog := s.body.CoM()
	dcog := s.refCoG.Sub(s.actCoG)
	dzmp := s.refZMP.Sub(s.actZMP)
	newCoG := r3.Vector{
		X: (s.refCoGVel.X-s.params.KTPCCP[0]*ratio*dzmp.X+s.params.KTPCCX[0]*ratio*dcog.X)*s.dt + cog.X,
		Y: (s.refCoGVel.Y-s.params.KTPCCP[1]*ratio*dzmp.Y+s.params.KTPCCX[1]*ratio*dcog.Y)*s.dt + cog.Y,
	}

	// body attitude from the gyro
	gyro, _ := s.body.Sensor(s.gyroName)
	glp, _ := s.body.LinkPose(gyro.Link)
	senR := glp.Rot.Mul(gyro.LocalRot)
	actRs := spatialmath.NewRotationFromRPY(in.BodyRPY.X, in.BodyRPY.Y, in.BodyRPY.Z)
	actRb := actRs.Mul(senR.Inverse().Mul(s.body.RootPose().Rot))
	actRoll, actPitch, _ := actRb.RPY()
	refRoll, refPitch, _ := s.targetRootPose.Rot.RPY()
	act := [2]float64{actRoll, actPitch}
	ref := [2]float64{refRoll, refPitch}
	for i := 0; i < 2; i++ {
		s.dRPY[i] = attitudeControl(ref[i], act[i], s.dRPY[i], s.params.KBRotP[i], s.params.KBRotTC[i], ratio, s.dt)
	}
	currentRootR := s.targetRootPose.Rot.Mul(spatialmath.NewRotationFromRPY(s.dRPY[0], s.dRPY[1], 0))
	s.body.SetRootPose(spatialmath.NewPose(s.body.RootPose().Pos, currentRootR))
	roll, pitch, yaw := currentRootR.RPY()
	s.currentBaseRPY = r3.Vector{X: roll, Y: pitch, Z: yaw}

	for iter := 0; iter < 3; iter++ {
		s.body.UpdateKinematics()
		cm := s.body.CoM()
		root := s.body.RootPose()
		root.Pos.X += 0.9 * (newCoG.X - cm.X)
		root.Pos.Y += 0.9 * (newCoG.Y - cm.Y)
		s.body.SetRootPose(root)
		s.body.UpdateKinematics()
		for _, side := range []kinematics.LegSide{kinematics.Right, kinematics.Left} {
			kinematics.LegIKStep(s.body, side, s.ee[side], s.targetFoot[side], 1.0)
		}
	}
	s.body.UpdateKinematics()
	s.currentBasePos = s.body.RootPose().Pos
}

func (s *Stabilizer) diagnosticsLocked() Diagnostics {
	return Diagnostics{
		OriginRefZMP:    s.refZMP,
		OriginRefCoG:    s.refCoG,
		OriginRefCoGVel: s.refCoGVel,
		OriginNewZMP:    s.newRefZMP,
		OriginActZMP:    s.actZMP,
		OriginActCoG:    s.actCoG,
		OriginActCoGVel: s.actCoGVel,
		RefWrench: [kinematics.NumLegs]kinematics.Wrench{
			{Force: s.refFootForce[kinematics.Right], Torque: s.refFootMoment[kinematics.Right]},
			{Force: s.refFootForce[kinematics.Left], Torque: s.refFootMoment[kinematics.Left]},
		},
		FootCompZ:      s.fzctrl,
		FootCompRPY:    s.dFootRPY,
		ActBaseRPY:     s.actBaseRPY,
		CurrentBasePos: s.currentBasePos,
		CurrentBaseRPY: s.currentBaseRPY,
		Alpha:          s.alpha,
	}
}
