package kinematics

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/biped/spatialmath"
)

// BipedConfig holds the geometry and mass distribution of the default
// two-legged model.
type BipedConfig struct {
	// HipOffset is the root-to-hip-yaw translation per leg.
	HipOffset [NumLegs]r3.Vector
	// ThighLength and ShinLength are the segment lengths in meters.
	ThighLength float64
	ShinLength  float64
	// AnkleHeight is the distance from the ankle joint to the sole.
	AnkleHeight float64
	// TorsoMass concentrates at the root link; LinkMass at every leg link.
	TorsoMass float64
	LinkMass  float64
	// TorsoCoMOffset shifts the torso mass relative to the root link.
	TorsoCoMOffset r3.Vector
}

// DefaultBipedConfig returns a 50 kg biped with 0.2 m hip spacing.
func DefaultBipedConfig() BipedConfig {
	return BipedConfig{
		HipOffset: [NumLegs]r3.Vector{
			{X: 0, Y: -0.1, Z: -0.05},
			{X: 0, Y: 0.1, Z: -0.05},
		},
		ThighLength:    0.3,
		ShinLength:     0.3,
		AnkleHeight:    0.1,
		TorsoMass:      38,
		LinkMass:       1,
		TorsoCoMOffset: r3.Vector{Z: 0.1},
	}
}

// BipedModel is a twelve-joint whole-body model: six revolute joints per leg
// (hip yaw/roll/pitch, knee, ankle pitch/roll). It satisfies Body.
type BipedModel struct {
	cfg       BipedConfig
	q         []float64
	root      spatialmath.Pose
	chains    [NumLegs]*SerialChain
	linkPoses map[string]spatialmath.Pose
	sensors   map[string]SensorFrame
}

// RootLinkName is the name of the root link of the default model.
const RootLinkName = "torso"

// GyroSensorName names the rate gyro mounted on the root link.
const GyroSensorName = "gyrometer"

// ForceSensorNames returns the conventional force-sensor name for a leg.
func ForceSensorNames(side LegSide) string {
	if side == Right {
		return "rfsensor"
	}
	return "lfsensor"
}

// AnkleLinkName returns the ankle link name for a leg.
func AnkleLinkName(side LegSide) string {
	if side == Right {
		return "r_ankle_roll"
	}
	return "l_ankle_roll"
}

func legJoints(side LegSide, cfg BipedConfig) []Joint {
	prefix := "r_"
	if side == Left {
		prefix = "l_"
	}
	xAxis := r3.Vector{X: 1}
	yAxis := r3.Vector{Y: 1}
	zAxis := r3.Vector{Z: 1}
	return []Joint{
		{Name: prefix + "hip_yaw", Axis: zAxis, Offset: spatialmath.NewPoseFromPoint(cfg.HipOffset[side])},
		{Name: prefix + "hip_roll", Axis: xAxis, Offset: spatialmath.NewZeroPose()},
		{Name: prefix + "hip_pitch", Axis: yAxis, Offset: spatialmath.NewZeroPose()},
		{Name: prefix + "knee", Axis: yAxis, Offset: spatialmath.NewPoseFromPoint(r3.Vector{Z: -cfg.ThighLength})},
		{Name: prefix + "ankle_pitch", Axis: yAxis, Offset: spatialmath.NewPoseFromPoint(r3.Vector{Z: -cfg.ShinLength})},
		{Name: prefix + "ankle_roll", Axis: xAxis, Offset: spatialmath.NewZeroPose()},
	}
}

// NewBipedModel builds the default whole-body model. Joint order is the right
// leg root-to-ankle followed by the left leg.
func NewBipedModel(cfg BipedConfig) (*BipedModel, error) {
	if cfg.ThighLength <= 0 || cfg.ShinLength <= 0 || cfg.AnkleHeight < 0 {
		return nil, errors.New("biped model needs positive segment lengths")
	}
	if cfg.TorsoMass <= 0 || cfg.LinkMass <= 0 {
		return nil, errors.New("biped model needs positive link masses")
	}
	m := &BipedModel{
		cfg:       cfg,
		q:         make([]float64, 12),
		root:      spatialmath.NewZeroPose(),
		linkPoses: map[string]spatialmath.Pose{},
		sensors:   map[string]SensorFrame{},
	}
	for _, side := range []LegSide{Right, Left} {
		joints := legJoints(side, cfg)
		indices := make([]int, len(joints))
		for i := range indices {
			indices[i] = int(side)*len(joints) + i
		}
		chain, err := NewSerialChain(RootLinkName, AnkleLinkName(side), joints, indices, spatialmath.NewZeroPose())
		if err != nil {
			return nil, err
		}
		m.chains[side] = chain
		m.sensors[ForceSensorNames(side)] = SensorFrame{
			Link:     AnkleLinkName(side),
			LocalPos: r3.Vector{Z: -cfg.AnkleHeight},
			LocalRot: spatialmath.NewZeroRotation(),
		}
	}
	m.sensors[GyroSensorName] = SensorFrame{Link: RootLinkName, LocalRot: spatialmath.NewZeroRotation()}
	m.UpdateKinematics()
	return m, nil
}

// SoleFrame returns the end-effector frame of a leg: the sole center below the
// ankle joint.
func (m *BipedModel) SoleFrame(side LegSide) EndEffectorFrame {
	return EndEffectorFrame{
		Link:     AnkleLinkName(side),
		LocalPos: r3.Vector{Z: -m.cfg.AnkleHeight},
		LocalRot: spatialmath.NewZeroRotation(),
	}
}

// NumJoints implements Body.
func (m *BipedModel) NumJoints() int {
	return len(m.q)
}

// JointAngles implements Body.
func (m *BipedModel) JointAngles() []float64 {
	out := make([]float64, len(m.q))
	copy(out, m.q)
	return out
}

// SetJointAngles implements Body.
func (m *BipedModel) SetJointAngles(q []float64) {
	n := len(q)
	if n > len(m.q) {
		n = len(m.q)
	}
	copy(m.q[:n], q[:n])
}

// RootPose implements Body.
func (m *BipedModel) RootPose() spatialmath.Pose {
	return m.root
}

// SetRootPose implements Body.
func (m *BipedModel) SetRootPose(p spatialmath.Pose) {
	m.root = p
}

// UpdateKinematics implements Body.
func (m *BipedModel) UpdateKinematics() {
	m.linkPoses[RootLinkName] = m.root
	for _, side := range []LegSide{Right, Left} {
		chain := m.chains[side]
		angles := chain.Angles(m.q)
		frames := chain.jointFrames(m.root, angles)
		for i, j := range chain.joints {
			m.linkPoses[j.Name] = frames[i]
		}
	}
}

// LinkPose implements Body.
func (m *BipedModel) LinkPose(name string) (spatialmath.Pose, bool) {
	p, ok := m.linkPoses[name]
	return p, ok
}

// CoM implements Body.
func (m *BipedModel) CoM() r3.Vector {
	total := m.cfg.TorsoMass
	sum := m.root.TransformPoint(m.cfg.TorsoCoMOffset).Mul(m.cfg.TorsoMass)
	for _, side := range []LegSide{Right, Left} {
		for _, j := range m.chains[side].joints {
			p := m.linkPoses[j.Name]
			sum = sum.Add(p.Pos.Mul(m.cfg.LinkMass))
			total += m.cfg.LinkMass
		}
	}
	return sum.Mul(1 / total)
}

// TotalMass implements Body.
func (m *BipedModel) TotalMass() float64 {
	return m.cfg.TorsoMass + 12*m.cfg.LinkMass
}

// Sensor implements Body.
func (m *BipedModel) Sensor(name string) (SensorFrame, bool) {
	s, ok := m.sensors[name]
	return s, ok
}

// LegChain implements Body.
func (m *BipedModel) LegChain(side LegSide) *SerialChain {
	return m.chains[side]
}
