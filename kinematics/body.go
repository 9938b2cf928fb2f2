package kinematics

import (
	"github.com/golang/geo/r3"

	"go.viam.com/biped/spatialmath"
)

// SensorFrame locates a body-mounted sensor (force/torque or rate gyro) on a
// link.
type SensorFrame struct {
	Link     string
	LocalPos r3.Vector
	LocalRot spatialmath.Rotation
}

// EndEffectorFrame fixes the sole frame relative to the ankle link of a leg.
type EndEffectorFrame struct {
	Link     string
	LocalPos r3.Vector
	LocalRot spatialmath.Rotation
}

// Body is the whole-body kinematic model shared by the gait generator and the
// stabilizer. Implementations are not safe for concurrent use; the owning
// controller serializes access.
type Body interface {
	// NumJoints returns the length of the whole-body joint vector.
	NumJoints() int

	// JointAngles returns a copy of the whole-body joint vector in radians.
	JointAngles() []float64

	// SetJointAngles overwrites the whole-body joint vector. Angles beyond
	// NumJoints are ignored; missing entries are left unchanged.
	SetJointAngles(q []float64)

	// RootPose returns the pose of the root link in world coordinates.
	RootPose() spatialmath.Pose

	// SetRootPose moves the root link.
	SetRootPose(p spatialmath.Pose)

	// UpdateKinematics recomputes all link poses from the root pose and the
	// joint vector.
	UpdateKinematics()

	// LinkPose returns the world pose of a named link as of the last
	// UpdateKinematics call.
	LinkPose(name string) (spatialmath.Pose, bool)

	// CoM returns the whole-body center of mass in world coordinates.
	CoM() r3.Vector

	// TotalMass returns the robot mass in kilograms.
	TotalMass() float64

	// Sensor looks up a named sensor frame.
	Sensor(name string) (SensorFrame, bool)

	// LegChain returns the revolute chain from the root to the ankle link of
	// one leg.
	LegChain(side LegSide) *SerialChain
}
