package gait

import (
	"github.com/golang/geo/r3"
)

// refZMPGenerator turns the footstep plan into a per-tick reference ZMP
// stream. It holds one ZMP per step; during the double-support windows
// centered on step boundaries the stream blends linearly between neighboring
// entries.
type refZMPGenerator struct {
	list []r3.Vector
}

// rebuild derives the per-step ZMP list from a plan. The first entry is the
// initial standing ZMP (midpoint of the two current feet); the last entry is
// the midpoint of the final two placements so the stream settles over the
// final midfoot.
func (g *refZMPGenerator) rebuild(plan FootstepPlan, params FootstepParameters, initialStanding r3.Vector) {
	g.removeOver(0)
	for i := range plan {
		switch i {
		case 0:
			g.list = append(g.list, initialStanding)
		case len(plan) - 1:
			a := params.footZMP(plan[i])
			b := params.footZMP(plan[i-1])
			g.list = append(g.list, a.Add(b).Mul(0.5))
		default:
			g.list = append(g.list, params.footZMP(plan[i]))
		}
	}
}

// removeOver truncates the list to at most n entries.
func (g *refZMPGenerator) removeOver(n int) {
	if len(g.list) > n {
		g.list = g.list[:n]
	}
}

// zmpAt returns the reference ZMP for a given step index and in-step sample.
// Past the end of the list the last entry pads the stream so the preview
// horizon stays filled.
func (g *refZMPGenerator) zmpAt(step, sample, stepSamples int, doubleSupportRatio float64) r3.Vector {
	if len(g.list) == 0 {
		return r3.Vector{}
	}
	if step >= len(g.list) {
		return g.list[len(g.list)-1]
	}
	cur := g.list[step]
	ds := doubleSupportRatio * float64(stepSamples)
	if ds <= 0 {
		return cur
	}
	half := int(ds / 2)
	switch {
	case sample < half && step > 0:
		prev := g.list[step-1]
		t := 0.5 + float64(sample)/ds
		return lerp(prev, cur, t)
	case sample >= stepSamples-half && step+1 < len(g.list):
		next := g.list[step+1]
		t := float64(sample-(stepSamples-half)) / ds
		return lerp(cur, next, t)
	default:
		return cur
	}
}

func lerp(a, b r3.Vector, t float64) r3.Vector {
	return a.Mul(1 - t).Add(b.Mul(t))
}
