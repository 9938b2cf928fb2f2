package kinematics

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/biped/spatialmath"
)

// Joint is a single revolute joint in a serial chain.
type Joint struct {
	// Name also names the link rigidly attached downstream of the joint.
	Name string
	// Axis is the unit rotation axis in the joint frame.
	Axis r3.Vector
	// Offset is the fixed transform from the parent joint frame to this joint
	// frame at zero angle.
	Offset spatialmath.Pose
}

// SerialChain is a fixed-topology revolute chain from the root link to a tip
// link. It provides forward kinematics, the geometric Jacobian and a damped
// least-squares inverse-kinematics step.
type SerialChain struct {
	base      string
	tip       string
	joints    []Joint
	indices   []int
	tipOffset spatialmath.Pose
}

// NewSerialChain builds a chain. indices maps each chain joint to its position
// in the whole-body joint vector and must match joints in length.
func NewSerialChain(base, tip string, joints []Joint, indices []int, tipOffset spatialmath.Pose) (*SerialChain, error) {
	if len(joints) == 0 {
		return nil, errors.New("serial chain needs at least one joint")
	}
	if len(indices) != len(joints) {
		return nil, errors.Errorf("chain %s->%s has %d joints but %d joint indices", base, tip, len(joints), len(indices))
	}
	for _, j := range joints {
		if j.Axis.Norm() == 0 {
			return nil, errors.Errorf("joint %s has a zero rotation axis", j.Name)
		}
	}
	return &SerialChain{base: base, tip: tip, joints: joints, indices: indices, tipOffset: tipOffset}, nil
}

// NumJoints returns the number of joints in the chain.
func (c *SerialChain) NumJoints() int {
	return len(c.joints)
}

// Indices returns the chain joints' positions in the whole-body joint vector.
func (c *SerialChain) Indices() []int {
	return c.indices
}

// Tip returns the name of the chain's tip link.
func (c *SerialChain) Tip() string {
	return c.tip
}

// Angles extracts the chain's joint angles from a whole-body vector.
func (c *SerialChain) Angles(q []float64) []float64 {
	out := make([]float64, len(c.indices))
	for i, idx := range c.indices {
		out[i] = q[idx]
	}
	return out
}

// jointFrames returns the world pose of each joint frame after its own
// rotation, given chain-local angles.
func (c *SerialChain) jointFrames(root spatialmath.Pose, q []float64) []spatialmath.Pose {
	frames := make([]spatialmath.Pose, len(c.joints))
	cur := root
	for i, j := range c.joints {
		cur = spatialmath.Compose(cur, j.Offset)
		cur = spatialmath.Compose(cur, spatialmath.NewPose(r3.Vector{}, spatialmath.NewRotationFromAxisAngle(j.Axis, q[i])))
		frames[i] = cur
	}
	return frames
}

// ForwardKinematics returns the world pose of the tip link for chain-local
// angles q.
func (c *SerialChain) ForwardKinematics(root spatialmath.Pose, q []float64) spatialmath.Pose {
	frames := c.jointFrames(root, q)
	return spatialmath.Compose(frames[len(frames)-1], c.tipOffset)
}

// Jacobian returns the 6xN geometric Jacobian of the tip; rows are stacked
// [v; w] in world coordinates.
func (c *SerialChain) Jacobian(root spatialmath.Pose, q []float64) *mat.Dense {
	frames := c.jointFrames(root, q)
	tip := spatialmath.Compose(frames[len(frames)-1], c.tipOffset)
	jac := mat.NewDense(6, len(c.joints), nil)
	for i := range c.joints {
		w := frames[i].Rot.Apply(c.joints[i].Axis.Normalize())
		v := w.Cross(tip.Pos.Sub(frames[i].Pos))
		jac.Set(0, i, v.X)
		jac.Set(1, i, v.Y)
		jac.Set(2, i, v.Z)
		jac.Set(3, i, w.X)
		jac.Set(4, i, w.Y)
		jac.Set(5, i, w.Z)
	}
	return jac
}

// IKStep computes one damped least-squares joint update driving the tip by dp
// (translation) and dw (world-frame rotation vector). A singular configuration
// yields a zero update rather than an error; the next tick retries from the
// clamped state.
func (c *SerialChain) IKStep(root spatialmath.Pose, q []float64, dp, dw r3.Vector, damping float64) []float64 {
	jac := c.Jacobian(root, q)
	n := len(c.joints)
	var jjt mat.Dense
	jjt.Mul(jac, jac.T())
	for i := 0; i < 6; i++ {
		jjt.Set(i, i, jjt.At(i, i)+damping*damping)
	}
	e := mat.NewVecDense(6, []float64{dp.X, dp.Y, dp.Z, dw.X, dw.Y, dw.Z})
	var y mat.VecDense
	if err := y.SolveVec(&jjt, e); err != nil {
		return make([]float64, n)
	}
	dq := mat.NewVecDense(n, nil)
	dq.MulVec(jac.T(), &y)
	out := make([]float64, n)
	copy(out, dq.RawVector().Data)
	return out
}
