// Package interp blends two resolved property bags at a progress value.
//
// Each known key has a kind that picks the blending rule: numbers lerp,
// colors blend in RGBA space, nested bags recurse, and everything else snaps
// to the target once t passes the midpoint. Snapping text instead of
// cross-fading produces a visible pop; scenes rely on that timing, so it
// stays.
package interp

import "github.com/ivlev/stepmotion/internal/scene"

// Kind selects the interpolation rule for a property.
type Kind int

const (
	KindOpaque Kind = iota // snap at t > 0.5
	KindNumber             // linear interpolation
	KindColor              // RGBA blend
	KindBag                // recurse
)

// kinds maps every recognized property key to its kind. Unknown keys are
// opaque.
var kinds = map[string]Kind{
	"x": KindNumber, "y": KindNumber, "z": KindNumber,
	"width": KindNumber, "height": KindNumber, "size": KindNumber,
	"opacity": KindNumber, "rotation": KindNumber, "scale": KindNumber,
	"stroke_width": KindNumber, "corner_radius": KindNumber,
	"blur": KindNumber, "offset_x": KindNumber, "offset_y": KindNumber,
	"font_size": KindNumber,
	"fill":      KindColor, "stroke": KindColor, "color": KindColor,
	"shadow": KindBag, "font": KindBag,
}

// defaults supply the missing side when a property exists in only one of the
// two bags, so one-sided numeric properties still animate instead of popping.
var defaults = map[string]any{
	"opacity":  1.0,
	"scale":    1.0,
	"rotation": 0.0,
	"z":        0.0,
	"blur":     0.0,
	"offset_x": 0.0,
	"offset_y": 0.0,
}

// Interpolate blends from → to at progress t in [0,1] and returns a fresh
// bag. Neither input is modified.
func Interpolate(from, to scene.Bag, t float64) scene.Bag {
	if t <= 0 {
		return from.Clone()
	}
	if t >= 1 {
		return to.Clone()
	}

	out := make(scene.Bag, len(to))
	for key := range union(from, to) {
		fv, inFrom := from[key]
		tv, inTo := to[key]
		if !inFrom {
			fv = defaults[key]
		}
		if !inTo {
			tv = defaults[key]
		}
		if v, ok := blendValue(key, fv, tv, inFrom, inTo, t); ok {
			out[key] = v
		}
	}
	return out
}

func blendValue(key string, fv, tv any, inFrom, inTo bool, t float64) (any, bool) {
	switch kinds[key] {
	case KindNumber:
		ff, fok := numValue(fv)
		tf, tok := numValue(tv)
		if fok && tok {
			return lerp(ff, tf, t), true
		}
	case KindColor:
		fs, fok := fv.(string)
		ts, tok := tv.(string)
		if fok && tok {
			if blended, err := BlendColors(fs, ts, t); err == nil {
				return blended, true
			}
		}
	case KindBag:
		fb, fok := asBagValue(fv)
		tb, tok := asBagValue(tv)
		if fok && tok {
			return Interpolate(fb, tb, t), true
		}
	}

	// Opaque, mismatched, or unregistered one-sided value: keep the source
	// until the midpoint, then snap to the target.
	if t > 0.5 {
		if !inTo {
			return nil, false
		}
		return cloneAny(tv), true
	}
	if !inFrom {
		return nil, false
	}
	return cloneAny(fv), true
}

func union(a, b scene.Bag) map[string]struct{} {
	keys := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}
	return keys
}

func numValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func asBagValue(v any) (scene.Bag, bool) {
	switch t := v.(type) {
	case scene.Bag:
		return t, true
	case map[string]any:
		return scene.Bag(t), true
	}
	return nil, false
}

func cloneAny(v any) any {
	if b, ok := asBagValue(v); ok {
		return b.Clone()
	}
	return v
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
