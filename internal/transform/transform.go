// Package transform computes absolute placement from percentage coordinates
// and parent chains.
//
// Positions are percentages of the canvas (0–100). A root object's x/y are
// absolute; a child's x/y are offsets in its parent's space, rotated and
// scaled by everything above it. Depth (z) feeds a multiplicative parallax
// factor so deeper objects read slightly larger as they approach the viewer.
package transform

import (
	"fmt"
	"math"

	"github.com/ivlev/stepmotion/internal/state"
)

// ParallaxStrength is the k in the per-node depth factor 1 + z*k.
const ParallaxStrength = 0.05

// Transform is an object's resolved absolute placement.
type Transform struct {
	X        float64 // canvas percent
	Y        float64 // canvas percent
	Scale    float64
	Rotation float64 // degrees
}

// Anchor tags name attachment points on an object's resolved bounding box.
const (
	AnchorTop    = "top"
	AnchorBottom = "bottom"
	AnchorLeft   = "left"
	AnchorRight  = "right"
	AnchorCenter = "center"
)

// Resolve composes the parent chain top-down for one object. Cycles are a
// definition error rejected at load time; hitting one here fails fast instead
// of spinning.
func Resolve(m state.Map, id string) (Transform, error) {
	chain, err := parentChain(m, id)
	if err != nil {
		return Transform{}, err
	}

	acc := Transform{Scale: 1}
	for _, obj := range chain {
		rad := acc.Rotation * math.Pi / 180
		lx := obj.Props.FloatOr("x", 0)
		ly := obj.Props.FloatOr("y", 0)
		acc.X += (lx*math.Cos(rad) - ly*math.Sin(rad)) * acc.Scale
		acc.Y += (lx*math.Sin(rad) + ly*math.Cos(rad)) * acc.Scale

		depth := 1 + obj.Props.FloatOr("z", 0)*ParallaxStrength
		acc.Scale *= obj.Props.FloatOr("scale", 1) * depth
		acc.Rotation += obj.Props.FloatOr("rotation", 0)
	}
	return acc, nil
}

// AnchorPoint returns the absolute position of a named anchor on the object's
// resolved bounding box: half the resolved size along the requested edge,
// rotated by the resolved rotation, added to the resolved center.
func AnchorPoint(m state.Map, id, anchor string) (x, y float64, err error) {
	obj, ok := m[id]
	if !ok {
		return 0, 0, fmt.Errorf("unknown object %q", id)
	}
	tr, err := Resolve(m, id)
	if err != nil {
		return 0, 0, err
	}

	halfW := obj.Props.FloatOr("width", 0) / 2 * tr.Scale
	halfH := obj.Props.FloatOr("height", 0) / 2 * tr.Scale

	var ox, oy float64
	switch anchor {
	case AnchorTop:
		oy = -halfH
	case AnchorBottom:
		oy = halfH
	case AnchorLeft:
		ox = -halfW
	case AnchorRight:
		ox = halfW
	case AnchorCenter, "":
	default:
		return 0, 0, fmt.Errorf("unknown anchor %q", anchor)
	}

	rad := tr.Rotation * math.Pi / 180
	rx := ox*math.Cos(rad) - oy*math.Sin(rad)
	ry := ox*math.Sin(rad) + oy*math.Cos(rad)
	return tr.X + rx, tr.Y + ry, nil
}

// parentChain walks id's ancestry and returns it root-first. A parent that is
// missing from the state (faded out mid-transition, or never defined) simply
// terminates the chain so the object resolves as a root.
func parentChain(m state.Map, id string) ([]*state.Object, error) {
	var chain []*state.Object
	seen := make(map[string]bool)
	for cur := id; cur != ""; {
		if seen[cur] {
			return nil, fmt.Errorf("cyclic parent chain at %q", cur)
		}
		seen[cur] = true
		obj, ok := m[cur]
		if !ok {
			if cur == id {
				return nil, fmt.Errorf("unknown object %q", id)
			}
			break
		}
		chain = append(chain, obj)
		cur = obj.Parent
	}

	// reverse to root-first
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}
