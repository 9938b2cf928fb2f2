package spatialmath

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func randomRotation(r *rand.Rand) Rotation {
	axis := r3.Vector{X: r.NormFloat64(), Y: r.NormFloat64(), Z: r.NormFloat64()}
	return NewRotationFromAxisAngle(axis, r.Float64()*2*math.Pi-math.Pi)
}

func randomPose(r *rand.Rand) Pose {
	return NewPose(r3.Vector{X: r.NormFloat64(), Y: r.NormFloat64(), Z: r.NormFloat64()}, randomRotation(r))
}

func TestPoseRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		p := randomPose(r)
		ident := Compose(p, p.Inverse())
		test.That(t, ident.Pos.Norm(), test.ShouldBeLessThan, 1e-9)
		test.That(t, ident.Rot.Log().Norm(), test.ShouldBeLessThan, 1e-9)
	}
}

func TestMidPoseEndpoints(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for i := 0; i < 50; i++ {
		a := randomPose(r)
		b := randomPose(r)
		test.That(t, PoseAlmostEqual(MidPose(0, a, b), a, 1e-9), test.ShouldBeTrue)
		test.That(t, PoseAlmostEqual(MidPose(1, a, b), b, 1e-9), test.ShouldBeTrue)
		mid := MidPose(0.5, a, b)
		wantPos := a.Pos.Add(b.Pos).Mul(0.5)
		test.That(t, mid.Pos.Sub(wantPos).Norm(), test.ShouldBeLessThan, 1e-9)
	}
}

func TestMidPoseGeodesic(t *testing.T) {
	a := NewZeroPose()
	b := NewPose(r3.Vector{X: 1}, NewRotationFromAxisAngle(r3.Vector{Z: 1}, math.Pi/2))
	mid := MidPose(0.5, a, b)
	test.That(t, mid.Rot.Yaw(), test.ShouldAlmostEqual, math.Pi/4, 1e-9)
	test.That(t, mid.Pos.X, test.ShouldAlmostEqual, 0.5, 1e-12)
}

func TestCompositionStaysOrthonormal(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	rot := NewZeroRotation()
	for i := 0; i < 1000000; i++ {
		rot = rot.Mul(randomRotation(r))
	}
	m := rot.Matrix()
	// |R R^T - I| elementwise
	maxErr := 0.0
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var dot float64
			for k := 0; k < 3; k++ {
				dot += m[i*3+k] * m[j*3+k]
			}
			want := 0.0
			if i == j {
				want = 1.0
			}
			if e := math.Abs(dot - want); e > maxErr {
				maxErr = e
			}
		}
	}
	test.That(t, maxErr, test.ShouldBeLessThan, 1e-12)
}

func TestRPYRoundTrip(t *testing.T) {
	for _, c := range [][3]float64{
		{0, 0, 0},
		{0.3, -0.2, 1.1},
		{-1.2, 0.4, -2.9},
		{0.1, 1.2, 0},
	} {
		rot := NewRotationFromRPY(c[0], c[1], c[2])
		roll, pitch, yaw := rot.RPY()
		back := NewRotationFromRPY(roll, pitch, yaw)
		test.That(t, RotationAlmostEqual(rot, back, 1e-9), test.ShouldBeTrue)
	}
}

func TestLogExpRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	for i := 0; i < 100; i++ {
		rot := randomRotation(r)
		back := RotationExp(rot.Log())
		test.That(t, RotationAlmostEqual(rot, back, 1e-9), test.ShouldBeTrue)
	}
}

func TestRotationFromMatrixRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	for i := 0; i < 200; i++ {
		rot := randomRotation(r)
		back := NewRotationFromMatrix(rot.Matrix())
		test.That(t, RotationAlmostEqual(rot, back, 1e-9), test.ShouldBeTrue)
	}
}

func TestOrientationError(t *testing.T) {
	self := NewRotationFromAxisAngle(r3.Vector{Z: 1}, 0.2)
	target := NewRotationFromAxisAngle(r3.Vector{Z: 1}, 0.5)
	w := OrientationError(self, target)
	test.That(t, w.Z, test.ShouldAlmostEqual, 0.3, 1e-9)
	test.That(t, w.X, test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, w.Y, test.ShouldAlmostEqual, 0, 1e-12)
}

func TestTransformPointRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(6))
	for i := 0; i < 50; i++ {
		p := randomPose(r)
		v := r3.Vector{X: r.NormFloat64(), Y: r.NormFloat64(), Z: r.NormFloat64()}
		back := p.InverseTransformPoint(p.TransformPoint(v))
		test.That(t, back.Sub(v).Norm(), test.ShouldBeLessThan, 1e-9)
	}
}
