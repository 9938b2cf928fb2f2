package stabilizer

import (
	"github.com/golang/geo/r3"

	"go.viam.com/biped/kinematics"
	"go.viam.com/biped/spatialmath"
)

// onGroundForceThreshold is the filtered vertical force below which the robot
// is considered airborne.
const onGroundForceThreshold = 50.0

// zmpFilterAlpha is the first-order coefficient of the vertical-force filter,
// about a 5 Hz cutoff at a 5 ms period.
const zmpFilterAlpha = 0.85

// FootSensorSample pairs a force sensor's world pose with its raw wrench in
// the sensor frame.
type FootSensorSample struct {
	Pose   spatialmath.Pose
	Wrench kinematics.Wrench
}

// ZMPEstimator computes the measured ZMP and the on-ground flag from the two
// foot force/torque sensors. It keeps the filtered vertical force and the
// last reported ZMP across ticks.
type ZMPEstimator struct {
	prevForceZ [kinematics.NumLegs]float64
	lastZMP    r3.Vector
}

// Reset clears the filter state.
func (e *ZMPEstimator) Reset() {
	e.prevForceZ = [kinematics.NumLegs]float64{}
	e.lastZMP = r3.Vector{}
}

// FilteredForceZ returns the filtered vertical force for one foot.
func (e *ZMPEstimator) FilteredForceZ(side kinematics.LegSide) float64 {
	return e.prevForceZ[side]
}

// Estimate computes the planar ZMP at height zmpZ. When the filtered total
// vertical force falls below the threshold it returns the last reported ZMP
// and reports airborne.
func (e *ZMPEstimator) Estimate(samples [kinematics.NumLegs]FootSensorSample, zmpZ float64) (r3.Vector, bool) {
	var zmpX, zmpY, fz float64
	for i, s := range samples {
		f := s.Pose.Rot.Apply(s.Wrench.Force)
		m := s.Pose.Rot.Apply(s.Wrench.Torque)
		p := s.Pose.Pos
		zmpX += f.Z*p.X - (p.Z-zmpZ)*f.X - m.Y
		zmpY += f.Z*p.Y - (p.Z-zmpZ)*f.Y + m.X
		fz += f.Z
		e.prevForceZ[i] = zmpFilterAlpha*e.prevForceZ[i] + (1-zmpFilterAlpha)*f.Z
	}
	if e.prevForceZ[0]+e.prevForceZ[1] < onGroundForceThreshold || fz == 0 {
		return e.lastZMP, false
	}
	e.lastZMP = r3.Vector{X: zmpX / fz, Y: zmpY / fz, Z: zmpZ}
	return e.lastZMP, true
}
