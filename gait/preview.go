// Package gait turns high-level walking commands into a sample-aligned stream
// of reference ZMP, reference center of mass and swing/support foot poses, one
// sample per control period.
package gait

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Gravity is the gravitational acceleration used throughout the module.
const Gravity = 9.8

// PreviewFilter is an extended preview controller over the cart-table model:
// a discrete-time linear feedback with look-ahead over the next N reference
// ZMP samples and an integral term on the ZMP tracking error. Gains are
// derived once at construction by iterating the discrete algebraic Riccati
// equation.
type PreviewFilter struct {
	dt      float64
	cogZ    float64
	horizon int

	// cart-table dynamics, shared by both horizontal axes
	a    [3][3]float64
	b    [3]float64
	cVec [3]float64

	ki float64
	kx [3]float64
	f  []float64

	state [2][3]float64
	esum  [2]float64
	queue []r3.Vector
}

// preview gain design weights; Qe/R follows the usual heavy error weighting.
const (
	previewQe = 1.0
	previewR  = 1e-6
)

// NewPreviewFilter designs the controller for a control period dt, a constant
// CoM height above the ground plane and a look-ahead of horizon samples.
func NewPreviewFilter(dt, cogHeight float64, horizon int) (*PreviewFilter, error) {
	if dt <= 0 {
		return nil, errors.New("preview filter needs a positive control period")
	}
	if cogHeight <= 0 {
		return nil, errors.New("preview filter needs a positive CoM height")
	}
	if horizon < 2 {
		return nil, errors.Errorf("preview horizon %d is too short", horizon)
	}
	p := &PreviewFilter{
		dt:      dt,
		cogZ:    cogHeight,
		horizon: horizon,
		queue:   make([]r3.Vector, 0, horizon),
	}
	p.a = [3][3]float64{
		{1, dt, dt * dt / 2},
		{0, 1, dt},
		{0, 0, 1},
	}
	p.b = [3]float64{dt * dt * dt / 6, dt * dt / 2, dt}
	p.cVec = [3]float64{1, 0, -cogHeight / Gravity}
	if err := p.designGains(); err != nil {
		return nil, err
	}
	return p, nil
}

// designGains solves the error-augmented LQ tracking problem: the 4-state
// system [integrated ZMP error; CoM pos/vel/acc] under the cart-table output.
func (p *PreviewFilter) designGains() error {
	a3 := mat.NewDense(3, 3, []float64{
		p.a[0][0], p.a[0][1], p.a[0][2],
		p.a[1][0], p.a[1][1], p.a[1][2],
		p.a[2][0], p.a[2][1], p.a[2][2],
	})
	b3 := mat.NewVecDense(3, []float64{p.b[0], p.b[1], p.b[2]})
	c3 := mat.NewVecDense(3, []float64{p.cVec[0], p.cVec[1], p.cVec[2]})

	at := mat.NewDense(4, 4, nil)
	at.Set(0, 0, 1)
	var ca mat.Dense
	ca.Mul(c3.T(), a3)
	for j := 0; j < 3; j++ {
		at.Set(0, j+1, ca.At(0, j))
		for i := 0; i < 3; i++ {
			at.Set(i+1, j+1, a3.At(i, j))
		}
	}
	bt := mat.NewVecDense(4, nil)
	bt.SetVec(0, mat.Dot(c3, b3))
	for i := 0; i < 3; i++ {
		bt.SetVec(i+1, b3.AtVec(i))
	}
	q := mat.NewDense(4, 4, nil)
	q.Set(0, 0, previewQe)

	pm := mat.NewDense(4, 4, nil)
	pm.Copy(q)
	next := mat.NewDense(4, 4, nil)
	converged := false
	for iter := 0; iter < 10000; iter++ {
		// P' = Q + A'PA - A'PB (R + B'PB)^-1 B'PA
		var pa, pb mat.Dense
		pa.Mul(pm, at)
		pb.Mul(pm, bt)
		var btpb mat.Dense
		btpb.Mul(bt.T(), &pb)
		denom := previewR + btpb.At(0, 0)
		var atpb, btpa mat.Dense
		atpb.Mul(at.T(), &pb)
		btpa.Mul(bt.T(), &pa)
		var corr mat.Dense
		corr.Mul(&atpb, &btpa)
		corr.Scale(1/denom, &corr)
		var atpa mat.Dense
		atpa.Mul(at.T(), &pa)
		next.Sub(&atpa, &corr)
		next.Add(next, q)
		diff := 0.0
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				diff = math.Max(diff, math.Abs(next.At(i, j)-pm.At(i, j)))
			}
		}
		pm.Copy(next)
		if diff < 1e-10 {
			converged = true
			break
		}
	}
	if !converged {
		return errors.New("preview Riccati iteration did not converge")
	}

	var pb mat.Dense
	pb.Mul(pm, bt)
	var btpb mat.Dense
	btpb.Mul(bt.T(), &pb)
	denom := previewR + btpb.At(0, 0)
	var k mat.Dense
	var btp mat.Dense
	btp.Mul(bt.T(), pm)
	k.Mul(&btp, at)
	k.Scale(1/denom, &k)
	p.ki = k.At(0, 0)
	for i := 0; i < 3; i++ {
		p.kx[i] = k.At(0, i+1)
	}

	// preview gains: f_1 = Ki, f_j = (R+B'PB)^-1 B' (Ac')^(j-1) P e1
	var bk mat.Dense
	bk.Mul(bt, &k)
	var ac mat.Dense
	ac.Sub(at, &bk)
	e1 := mat.NewVecDense(4, []float64{previewQe, 0, 0, 0})
	x := mat.NewVecDense(4, nil)
	var pe mat.VecDense
	pe.MulVec(pm, e1)
	x.CopyVec(&pe)
	p.f = make([]float64, p.horizon)
	for j := 0; j < p.horizon; j++ {
		if j == 0 {
			p.f[0] = p.ki
			continue
		}
		var acx mat.VecDense
		acx.MulVec(ac.T(), x)
		x.CopyVec(&acx)
		var bx mat.VecDense
		bx.MulVec(bt.T(), x)
		p.f[j] = bx.AtVec(0) / denom
	}
	return nil
}

// Horizon returns the number of future samples the filter consumes.
func (p *PreviewFilter) Horizon() int {
	return p.horizon
}

// Full reports whether the queue holds a complete horizon.
func (p *PreviewFilter) Full() bool {
	return len(p.queue) >= p.horizon
}

// Push enqueues one future reference ZMP sample. When the queue already holds
// a full horizon the oldest sample is dropped so the most recent N remain.
func (p *PreviewFilter) Push(zmp r3.Vector) {
	if len(p.queue) >= p.horizon {
		copy(p.queue, p.queue[1:])
		p.queue[len(p.queue)-1] = zmp
		return
	}
	p.queue = append(p.queue, zmp)
}

// DropFuture clears the queued horizon while preserving the CoM state. Used
// when the reference stream is overwritten mid-walk.
func (p *PreviewFilter) DropFuture() {
	p.queue = p.queue[:0]
}

// Reset seeds the CoM state over an initial ZMP with zero velocity,
// acceleration and integral error, and clears the queue.
func (p *PreviewFilter) Reset(initial r3.Vector) {
	p.state[0] = [3]float64{initial.X, 0, 0}
	p.state[1] = [3]float64{initial.Y, 0, 0}
	p.esum = [2]float64{}
	p.queue = p.queue[:0]
}

// Advance consumes the queue head and integrates the controller one period.
// It returns the CoM sample for the current tick and the consumed reference
// ZMP. The queue must hold a full horizon; otherwise ok is false and the
// state is left untouched.
func (p *PreviewFilter) Advance() (cog, refZMP r3.Vector, ok bool) {
	if !p.Full() {
		return r3.Vector{}, r3.Vector{}, false
	}
	head := p.queue[0]
	for axis := 0; axis < 2; axis++ {
		ref := head.X
		if axis == 1 {
			ref = head.Y
		}
		x := &p.state[axis]
		zmp := p.cVec[0]*x[0] + p.cVec[1]*x[1] + p.cVec[2]*x[2]
		p.esum[axis] += zmp - ref
		u := -p.ki*p.esum[axis] - (p.kx[0]*x[0] + p.kx[1]*x[1] + p.kx[2]*x[2])
		for j, fj := range p.f {
			q := p.queue[j]
			if axis == 0 {
				u += fj * q.X
			} else {
				u += fj * q.Y
			}
		}
		next := [3]float64{}
		for i := 0; i < 3; i++ {
			next[i] = p.a[i][0]*x[0] + p.a[i][1]*x[1] + p.a[i][2]*x[2] + p.b[i]*u
		}
		*x = next
	}
	copy(p.queue, p.queue[1:])
	p.queue = p.queue[:len(p.queue)-1]
	return r3.Vector{X: p.state[0][0], Y: p.state[1][0], Z: head.Z + p.cogZ}, head, true
}
