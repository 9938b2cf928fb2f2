// Package config loads and validates the walking-controller configuration:
// control period, model locator, end-effector tuples and the gait and
// stabilizer parameter sets.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"go.viam.com/biped/kinematics"
	"go.viam.com/biped/spatialmath"
)

// Gait configures the gait generator.
type Gait struct {
	StepTime             float64 `yaml:"step_time"`
	DoubleSupportRatio   float64 `yaml:"double_support_ratio"`
	StepHeight           float64 `yaml:"step_height"`
	TopRatio             float64 `yaml:"top_ratio"`
	Orbit                string  `yaml:"orbit"`
	StrideX              float64 `yaml:"stride_x"`
	StrideY              float64 `yaml:"stride_y"`
	StrideThetaDeg       float64 `yaml:"stride_theta_deg"`
	LegOffsetY           float64 `yaml:"leg_offset_y"`
	InsideStepLimitation bool    `yaml:"inside_step_limitation"`
	PreviewDelay         float64 `yaml:"preview_delay"`
}

// Stabilizer configures the stabilizer's startup parameter set.
type Stabilizer struct {
	Algorithm        string     `yaml:"st_algorithm"`
	K1               [2]float64 `yaml:"eefm_k1"`
	K2               [2]float64 `yaml:"eefm_k2"`
	K3               [2]float64 `yaml:"eefm_k3"`
	LegInsideMargin  float64    `yaml:"eefm_leg_inside_margin"`
	LegFrontMargin   float64    `yaml:"eefm_leg_front_margin"`
	LegRearMargin    float64    `yaml:"eefm_leg_rear_margin"`
	CogVelCutoffFreq float64    `yaml:"eefm_cogvel_cutoff_freq"`
}

// Config is the full controller configuration, read once at init.
type Config struct {
	DT           float64    `yaml:"dt"`
	Model        string     `yaml:"model"`
	EndEffectors string     `yaml:"end_effectors"`
	Gait         Gait       `yaml:"gait"`
	Stabilizer   Stabilizer `yaml:"stabilizer"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		DT:    0.005,
		Model: "biped",
		EndEffectors: "rleg,r_ankle_roll,torso,0.0,0.0,-0.1,0,0,1,0," +
			"lleg,l_ankle_roll,torso,0.0,0.0,-0.1,0,0,1,0",
		Gait: Gait{
			StepTime:             1.0,
			DoubleSupportRatio:   0.2,
			StepHeight:           0.05,
			TopRatio:             0.5,
			Orbit:                "rectangle",
			StrideX:              0.15,
			StrideY:              0.05,
			StrideThetaDeg:       10,
			LegOffsetY:           0.1,
			InsideStepLimitation: true,
			PreviewDelay:         1.6,
		},
		Stabilizer: Stabilizer{Algorithm: "TPCC"},
	}
}

// Load reads a YAML configuration file over the defaults. Unknown fields are
// rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "reading config")
	}
	dec := yaml.NewDecoder(strings.NewReader(string(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate collects every configuration failure.
func (c Config) Validate() error {
	var errs error
	if c.DT <= 0 {
		errs = multierr.Append(errs, errors.New("dt must be positive"))
	}
	if c.Model == "" {
		errs = multierr.Append(errs, errors.New("model is required"))
	}
	if c.Gait.StepTime < c.DT {
		errs = multierr.Append(errs, errors.New("gait.step_time must cover at least one control period"))
	}
	if c.Gait.DoubleSupportRatio < 0 || c.Gait.DoubleSupportRatio >= 1 {
		errs = multierr.Append(errs, errors.New("gait.double_support_ratio must lie in [0, 1)"))
	}
	if c.Gait.StrideX <= 0 || c.Gait.StrideY <= 0 || c.Gait.StrideThetaDeg <= 0 {
		errs = multierr.Append(errs, errors.New("gait stride limits must be positive"))
	}
	if c.Gait.LegOffsetY <= 0 {
		errs = multierr.Append(errs, errors.New("gait.leg_offset_y must be positive"))
	}
	if c.Gait.Orbit != "" && c.Gait.Orbit != "rectangle" && c.Gait.Orbit != "cycloid" {
		errs = multierr.Append(errs, errors.Errorf("gait.orbit %q is not rectangle or cycloid", c.Gait.Orbit))
	}
	switch c.Stabilizer.Algorithm {
	case "", "TPCC", "EEFM":
	default:
		errs = multierr.Append(errs, errors.Errorf("stabilizer.st_algorithm %q is not TPCC or EEFM", c.Stabilizer.Algorithm))
	}
	if _, err := ParseEndEffectors(c.EndEffectors); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

// eeTupleFields is the flat field count per end-effector entry:
// name,target_link,base_link,px,py,pz,ax,ay,az,angle.
const eeTupleFields = 10

// ParseEndEffectors parses the comma-separated end-effector tuple string.
// Exactly one rleg and one lleg entry are required; the axis-angle part is
// converted to a rotation.
func ParseEndEffectors(s string) ([kinematics.NumLegs]kinematics.EndEffectorFrame, error) {
	var out [kinematics.NumLegs]kinematics.EndEffectorFrame
	var seen [kinematics.NumLegs]bool
	fields := strings.Split(s, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	if len(fields)%eeTupleFields != 0 {
		return out, errors.Errorf("end_effectors has %d fields, not a multiple of %d", len(fields), eeTupleFields)
	}
	for i := 0; i < len(fields); i += eeTupleFields {
		entry := fields[i : i+eeTupleFields]
		name := entry[0]
		var side kinematics.LegSide
		switch name {
		case "rleg":
			side = kinematics.Right
		case "lleg":
			side = kinematics.Left
		default:
			return out, errors.Errorf("end effector %q is not rleg or lleg", name)
		}
		if seen[side] {
			return out, errors.Errorf("duplicate end effector %q", name)
		}
		nums := make([]float64, 7)
		for j := 0; j < 7; j++ {
			v, err := strconv.ParseFloat(entry[3+j], 64)
			if err != nil {
				return out, errors.Wrapf(err, "end effector %q field %d", name, 3+j)
			}
			nums[j] = v
		}
		out[side] = kinematics.EndEffectorFrame{
			Link:     entry[1],
			LocalPos: r3.Vector{X: nums[0], Y: nums[1], Z: nums[2]},
			LocalRot: spatialmath.NewRotationFromAxisAngle(r3.Vector{X: nums[3], Y: nums[4], Z: nums[5]}, nums[6]),
		}
		seen[side] = true
	}
	if !seen[kinematics.Right] || !seen[kinematics.Left] {
		return out, errors.New("end_effectors must define both rleg and lleg")
	}
	return out, nil
}
