package interp

import (
	"github.com/ivlev/stepmotion/internal/state"
)

// fadeFloor is the opacity below which a fading-out object is dropped.
const fadeFloor = 0.01

// Fades lists the object ids that enter or leave across a transition.
type Fades struct {
	In  map[string]bool
	Out map[string]bool
}

// ComputeFades diffs two accumulated states. Objects new to the target fade
// in; objects absent from the target fade out.
func ComputeFades(from, to state.Map) Fades {
	f := Fades{In: make(map[string]bool), Out: make(map[string]bool)}
	for id := range to {
		if _, ok := from[id]; !ok {
			f.In[id] = true
		}
	}
	for id := range from {
		if _, ok := to[id]; !ok {
			f.Out[id] = true
		}
	}
	return f
}

// BlendStates interpolates two accumulated states at progress t. Fading-in
// objects start from a transparent copy of their target state; fading-out
// objects head toward a transparent copy of their last known state and are
// dropped once their opacity is negligible.
func BlendStates(from, to state.Map, fades Fades, t float64) state.Map {
	out := make(state.Map, len(to))

	for id, target := range to {
		src := from[id]
		if fades.In[id] || src == nil {
			ghost := target.Clone()
			ghost.Props["opacity"] = 0.0
			src = ghost
		}
		out[id] = &state.Object{
			ID:     id,
			Type:   target.Type,
			Parent: target.Parent,
			Props:  Interpolate(src.Props, target.Props, t),
		}
	}

	for id, src := range from {
		if !fades.Out[id] {
			continue
		}
		ghost := src.Clone()
		ghost.Props["opacity"] = 0.0
		props := Interpolate(src.Props, ghost.Props, t)
		if props.FloatOr("opacity", 0) <= fadeFloor {
			continue
		}
		out[id] = &state.Object{ID: id, Type: src.Type, Parent: src.Parent, Props: props}
	}

	return out
}
