package utils

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestClamp(t *testing.T) {
	test.That(t, Clamp(0.5, 0, 1), test.ShouldEqual, 0.5)
	test.That(t, Clamp(-2, 0, 1), test.ShouldEqual, 0.0)
	test.That(t, Clamp(7, 0, 1), test.ShouldEqual, 1.0)
}

func TestDegRad(t *testing.T) {
	test.That(t, DegToRad(180), test.ShouldAlmostEqual, math.Pi, 1e-12)
	test.That(t, RadToDeg(DegToRad(37.5)), test.ShouldAlmostEqual, 37.5, 1e-12)
}

func TestEpsEq(t *testing.T) {
	test.That(t, EpsEq(1.0, 1.0+1e-10, 1e-9), test.ShouldBeTrue)
	test.That(t, EpsEq(1.0, 1.1, 1e-9), test.ShouldBeFalse)
}

func TestCubeRoot(t *testing.T) {
	test.That(t, CubeRoot(27), test.ShouldAlmostEqual, 3, 1e-12)
	test.That(t, CubeRoot(-8), test.ShouldAlmostEqual, -2, 1e-12)
}
