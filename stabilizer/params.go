package stabilizer

import (
	"math"

	"go.viam.com/biped/utils"
)

// Algorithm selects the stabilization family.
type Algorithm int

// The two stabilization algorithms.
const (
	// TPCC drives the root from CoM feedback directly.
	TPCC Algorithm = iota
	// EEFM distributes the commanded wrench to the feet and damps it out.
	EEFM
)

func (a Algorithm) String() string {
	if a == EEFM {
		return "EEFM"
	}
	return "TPCC"
}

// Parameters is the full tunable set of the stabilizer. Two-element arrays
// are per horizontal axis (x, y) unless noted; per-leg arrays are indexed by
// kinematics.LegSide.
type Parameters struct {
	// TPCC gains.
	KTPCCP  [2]float64
	KTPCCX  [2]float64
	KBRotP  [2]float64
	KBRotTC [2]float64

	// EEFM feedback and compensators.
	EEFMK1                           [2]float64
	EEFMK2                           [2]float64
	EEFMK3                           [2]float64
	// EEFMZMPDelayTimeConst: only element 0 is used, for every axis.
	EEFMZMPDelayTimeConst            [2]float64
	EEFMRefZMPAux                    [2]float64
	EEFMBodyAttitudeControlGain      [2]float64
	EEFMBodyAttitudeControlTimeConst [2]float64
	EEFMRotDampingGain               float64
	EEFMRotTimeConst                 float64
	EEFMPosDampingGain               float64
	EEFMPosTimeConstSupport          float64
	EEFMPosTimeConstSwing            float64
	EEFMPosTransitionTime            float64
	EEFMPosMarginTime                float64
	EEFMLegInsideMargin              float64
	EEFMLegFrontMargin               float64
	EEFMLegRearMargin                float64
	EEFMCogVelCutoffFreq             float64

	// RollToLeft flips the distributor's roll tie-break.
	RollToLeft bool

	Algorithm Algorithm
}

// DefaultParameters returns the stock gains.
func DefaultParameters() Parameters {
	const kRatio = 0.9
	p := Parameters{
		KTPCCP:                  [2]float64{0.2, 0.2},
		KTPCCX:                  [2]float64{4.0, 4.0},
		KBRotP:                  [2]float64{0.1, 0.1},
		KBRotTC:                 [2]float64{1.5, 1.5},
		EEFMRotDampingGain:      100,
		EEFMRotTimeConst:        1,
		EEFMPosDampingGain:      3500,
		EEFMPosTimeConstSupport: 1,
		EEFMPosTimeConstSwing:   0.04,
		EEFMPosTransitionTime:   0.02,
		EEFMPosMarginTime:       0.02,
		EEFMLegInsideMargin:     0.065,
		EEFMLegFrontMargin:      0.05,
		EEFMLegRearMargin:       0.05,
		EEFMCogVelCutoffFreq:    35.3678,
		Algorithm:               TPCC,
	}
	for i := 0; i < 2; i++ {
		p.EEFMK1[i] = -1.41429 * kRatio
		p.EEFMK2[i] = -0.404082 * kRatio
		p.EEFMK3[i] = -0.18 * kRatio
		p.EEFMZMPDelayTimeConst[i] = 0.04
		p.EEFMBodyAttitudeControlGain[i] = 1.0
		p.EEFMBodyAttitudeControlTimeConst[i] = 1e5
	}
	return p
}

// parameter clamp ranges; out-of-range values are silently forced inside and
// reported at warn level by the setter.
const (
	minTimeConst = 1e-4
	maxTimeConst = 1e6
	minGain      = 1e-6
	maxGain      = 1e6
	maxMargin    = 1.0
)

// sanitize clamps every field into its safe range, falling back to prev for
// non-finite values. It returns the names of adjusted fields.
func (p *Parameters) sanitize(prev Parameters) []string {
	var adjusted []string
	clampField := func(name string, v *float64, fallback, lo, hi float64) {
		orig := *v
		if math.IsNaN(orig) || math.IsInf(orig, 0) {
			*v = fallback
			adjusted = append(adjusted, name)
			return
		}
		*v = utils.Clamp(orig, lo, hi)
		if *v != orig {
			adjusted = append(adjusted, name)
		}
	}
	for i := 0; i < 2; i++ {
		clampField("k_tpcc_p", &p.KTPCCP[i], prev.KTPCCP[i], 0, maxGain)
		clampField("k_tpcc_x", &p.KTPCCX[i], prev.KTPCCX[i], 0, maxGain)
		clampField("k_brot_p", &p.KBRotP[i], prev.KBRotP[i], 0, maxGain)
		clampField("k_brot_tc", &p.KBRotTC[i], prev.KBRotTC[i], minTimeConst, maxTimeConst)
		clampField("eefm_k1", &p.EEFMK1[i], prev.EEFMK1[i], -maxGain, maxGain)
		clampField("eefm_k2", &p.EEFMK2[i], prev.EEFMK2[i], -maxGain, maxGain)
		clampField("eefm_k3", &p.EEFMK3[i], prev.EEFMK3[i], -maxGain, maxGain)
		clampField("eefm_zmp_delay_time_const", &p.EEFMZMPDelayTimeConst[i], prev.EEFMZMPDelayTimeConst[i], 0, maxTimeConst)
		clampField("eefm_ref_zmp_aux", &p.EEFMRefZMPAux[i], prev.EEFMRefZMPAux[i], -maxMargin, maxMargin)
		clampField("eefm_body_attitude_control_gain", &p.EEFMBodyAttitudeControlGain[i], prev.EEFMBodyAttitudeControlGain[i], 0, maxGain)
		clampField("eefm_body_attitude_control_time_const", &p.EEFMBodyAttitudeControlTimeConst[i], prev.EEFMBodyAttitudeControlTimeConst[i], minTimeConst, maxTimeConst)
	}
	clampField("eefm_rot_damping_gain", &p.EEFMRotDampingGain, prev.EEFMRotDampingGain, minGain, maxGain)
	clampField("eefm_rot_time_const", &p.EEFMRotTimeConst, prev.EEFMRotTimeConst, minTimeConst, maxTimeConst)
	clampField("eefm_pos_damping_gain", &p.EEFMPosDampingGain, prev.EEFMPosDampingGain, minGain, maxGain)
	clampField("eefm_pos_time_const_support", &p.EEFMPosTimeConstSupport, prev.EEFMPosTimeConstSupport, minTimeConst, maxTimeConst)
	clampField("eefm_pos_time_const_swing", &p.EEFMPosTimeConstSwing, prev.EEFMPosTimeConstSwing, minTimeConst, maxTimeConst)
	clampField("eefm_pos_transition_time", &p.EEFMPosTransitionTime, prev.EEFMPosTransitionTime, 0, maxTimeConst)
	clampField("eefm_pos_margin_time", &p.EEFMPosMarginTime, prev.EEFMPosMarginTime, 0, maxTimeConst)
	clampField("eefm_leg_inside_margin", &p.EEFMLegInsideMargin, prev.EEFMLegInsideMargin, 0, maxMargin)
	clampField("eefm_leg_front_margin", &p.EEFMLegFrontMargin, prev.EEFMLegFrontMargin, 0, maxMargin)
	clampField("eefm_leg_rear_margin", &p.EEFMLegRearMargin, prev.EEFMLegRearMargin, 0, maxMargin)
	clampField("eefm_cogvel_cutoff_freq", &p.EEFMCogVelCutoffFreq, prev.EEFMCogVelCutoffFreq, 0.01, 1000)
	return adjusted
}

// distributorParams extracts the distributor's view of the parameters.
func (p Parameters) distributorParams() DistributorParams {
	return DistributorParams{
		InsideMargin: p.EEFMLegInsideMargin,
		FrontMargin:  p.EEFMLegFrontMargin,
		RearMargin:   p.EEFMLegRearMargin,
		RollToLeft:   p.RollToLeft,
	}
}
