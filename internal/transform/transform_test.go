package transform

import (
	"math"
	"testing"

	"github.com/ivlev/stepmotion/internal/scene"
	"github.com/ivlev/stepmotion/internal/state"
)

const eps = 1e-9

func TestChildAtParentCenter(t *testing.T) {
	m := state.Map{
		"parent": &state.Object{ID: "parent", Props: scene.Bag{"x": 50.0, "y": 50.0}},
		"child":  &state.Object{ID: "child", Parent: "parent", Props: scene.Bag{"x": 0.0, "y": 0.0}},
	}

	tr, err := Resolve(m, "child")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if math.Abs(tr.X-50) > eps || math.Abs(tr.Y-50) > eps {
		t.Errorf("Expected child at (50,50), got (%v,%v)", tr.X, tr.Y)
	}
	if math.Abs(tr.Scale-1) > eps || math.Abs(tr.Rotation) > eps {
		t.Errorf("Expected identity scale/rotation, got %v/%v", tr.Scale, tr.Rotation)
	}
}

func TestParentRotationMapsAxes(t *testing.T) {
	m := state.Map{
		"parent": &state.Object{ID: "parent", Props: scene.Bag{"x": 50.0, "y": 50.0, "rotation": 90.0}},
		"child":  &state.Object{ID: "child", Parent: "parent", Props: scene.Bag{"x": 10.0, "y": 0.0}},
	}

	tr, err := Resolve(m, "child")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	// A 90° parent rotation maps the child's x offset onto the y axis.
	if math.Abs(tr.X-50) > 1e-6 || math.Abs(tr.Y-60) > 1e-6 {
		t.Errorf("Expected (50,60), got (%v,%v)", tr.X, tr.Y)
	}
	if math.Abs(tr.Rotation-90) > eps {
		t.Errorf("Expected inherited rotation 90, got %v", tr.Rotation)
	}
}

func TestScaleComposition(t *testing.T) {
	m := state.Map{
		"parent": &state.Object{ID: "parent", Props: scene.Bag{"x": 0.0, "y": 0.0, "scale": 2.0}},
		"child":  &state.Object{ID: "child", Parent: "parent", Props: scene.Bag{"x": 10.0, "y": 0.0, "scale": 3.0}},
	}

	tr, err := Resolve(m, "child")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	// The child offset is scaled by the parent's scale; scales multiply.
	if math.Abs(tr.X-20) > eps {
		t.Errorf("Expected x=20, got %v", tr.X)
	}
	if math.Abs(tr.Scale-6) > eps {
		t.Errorf("Expected scale 6, got %v", tr.Scale)
	}
}

func TestDepthParallaxFactor(t *testing.T) {
	m := state.Map{
		"a": &state.Object{ID: "a", Props: scene.Bag{"x": 0.0, "y": 0.0, "z": 2.0}},
	}

	tr, err := Resolve(m, "a")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	want := 1 + 2.0*ParallaxStrength
	if math.Abs(tr.Scale-want) > eps {
		t.Errorf("Expected depth scale %v, got %v", want, tr.Scale)
	}
}

func TestAnchorPoints(t *testing.T) {
	m := state.Map{
		"box": &state.Object{ID: "box", Props: scene.Bag{
			"x": 50.0, "y": 50.0, "width": 20.0, "height": 10.0,
		}},
	}

	cases := []struct {
		anchor string
		x, y   float64
	}{
		{AnchorCenter, 50, 50},
		{AnchorTop, 50, 45},
		{AnchorBottom, 50, 55},
		{AnchorLeft, 40, 50},
		{AnchorRight, 60, 50},
	}
	for _, c := range cases {
		x, y, err := AnchorPoint(m, "box", c.anchor)
		if err != nil {
			t.Fatalf("AnchorPoint(%s) failed: %v", c.anchor, err)
		}
		if math.Abs(x-c.x) > eps || math.Abs(y-c.y) > eps {
			t.Errorf("Anchor %s: expected (%v,%v), got (%v,%v)", c.anchor, c.x, c.y, x, y)
		}
	}
}

func TestAnchorRotates(t *testing.T) {
	m := state.Map{
		"box": &state.Object{ID: "box", Props: scene.Bag{
			"x": 50.0, "y": 50.0, "width": 20.0, "height": 10.0, "rotation": 90.0,
		}},
	}

	// The right edge of a box rotated 90° points straight down.
	x, y, err := AnchorPoint(m, "box", AnchorRight)
	if err != nil {
		t.Fatalf("AnchorPoint failed: %v", err)
	}
	if math.Abs(x-50) > 1e-6 || math.Abs(y-60) > 1e-6 {
		t.Errorf("Expected (50,60), got (%v,%v)", x, y)
	}
}

func TestUnknownObjectAndAnchor(t *testing.T) {
	m := state.Map{
		"box": &state.Object{ID: "box", Props: scene.Bag{"x": 1.0}},
	}

	if _, err := Resolve(m, "ghost"); err == nil {
		t.Error("Expected error for unknown object")
	}
	if _, _, err := AnchorPoint(m, "box", "diagonal"); err == nil {
		t.Error("Expected error for unknown anchor tag")
	}
}

func TestMissingParentTerminatesChain(t *testing.T) {
	// A parent that faded out mid-transition leaves the child resolving as
	// a root instead of erroring the whole frame.
	m := state.Map{
		"child": &state.Object{ID: "child", Parent: "gone", Props: scene.Bag{"x": 30.0, "y": 40.0}},
	}

	tr, err := Resolve(m, "child")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if math.Abs(tr.X-30) > eps || math.Abs(tr.Y-40) > eps {
		t.Errorf("Expected (30,40), got (%v,%v)", tr.X, tr.Y)
	}
}

func TestCycleFailsFast(t *testing.T) {
	m := state.Map{
		"a": &state.Object{ID: "a", Parent: "b", Props: scene.Bag{}},
		"b": &state.Object{ID: "b", Parent: "a", Props: scene.Bag{}},
	}

	if _, err := Resolve(m, "a"); err == nil {
		t.Error("Expected cycle error")
	}
}
