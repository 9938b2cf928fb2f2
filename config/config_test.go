package config

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/multierr"
	"go.viam.com/test"

	"go.viam.com/biped/kinematics"
)

func TestDefaultIsValid(t *testing.T) {
	test.That(t, Default().Validate(), test.ShouldBeNil)
}

func TestParseEndEffectors(t *testing.T) {
	frames, err := ParseEndEffectors(Default().EndEffectors)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frames[kinematics.Right].Link, test.ShouldEqual, "r_ankle_roll")
	test.That(t, frames[kinematics.Left].Link, test.ShouldEqual, "l_ankle_roll")
	test.That(t, frames[kinematics.Right].LocalPos.Z, test.ShouldAlmostEqual, -0.1, 1e-12)
	// axis-angle (0,0,1,0) is the identity
	test.That(t, frames[kinematics.Right].LocalRot.Log().Norm(), test.ShouldBeLessThan, 1e-12)
}

func TestParseEndEffectorsErrors(t *testing.T) {
	for _, c := range []struct {
		name string
		in   string
	}{
		{"wrong field count", "rleg,link,base,1,2,3"},
		{"unknown name", "arm,link,base,0,0,0,0,0,1,0,lleg,link,base,0,0,0,0,0,1,0"},
		{"missing lleg", "rleg,link,base,0,0,0,0,0,1,0"},
		{"duplicate", "rleg,link,base,0,0,0,0,0,1,0,rleg,link,base,0,0,0,0,0,1,0"},
		{"bad float", "rleg,link,base,x,0,0,0,0,1,0,lleg,link,base,0,0,0,0,0,1,0"},
	} {
		t.Run(c.name, func(t *testing.T) {
			_, err := ParseEndEffectors(c.in)
			test.That(t, err, test.ShouldNotBeNil)
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.DT = -1
	cfg.Model = ""
	cfg.Gait.StrideX = 0
	err := cfg.Validate()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, len(multierr.Errors(err)), test.ShouldBeGreaterThanOrEqualTo, 3)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "biped.yaml")
	body := `
dt: 0.002
gait:
  step_time: 0.8
  orbit: cycloid
stabilizer:
  st_algorithm: EEFM
`
	test.That(t, os.WriteFile(path, []byte(body), 0o600), test.ShouldBeNil)
	cfg, err := Load(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.DT, test.ShouldEqual, 0.002)
	test.That(t, cfg.Gait.StepTime, test.ShouldEqual, 0.8)
	test.That(t, cfg.Gait.Orbit, test.ShouldEqual, "cycloid")
	test.That(t, cfg.Stabilizer.Algorithm, test.ShouldEqual, "EEFM")
	// untouched fields keep their defaults
	test.That(t, cfg.Gait.StrideX, test.ShouldEqual, 0.15)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "biped.yaml")
	test.That(t, os.WriteFile(path, []byte("no_such_field: 1\n"), 0o600), test.ShouldBeNil)
	_, err := Load(path)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLoadInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "biped.yaml")
	test.That(t, os.WriteFile(path, []byte("dt: -5\n"), 0o600), test.ShouldBeNil)
	_, err := Load(path)
	test.That(t, err, test.ShouldNotBeNil)
}
