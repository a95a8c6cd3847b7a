package scene

import (
	"os"
	"path/filepath"
	"testing"
)

func testScene() *Scene {
	return &Scene{
		ID:           "test",
		TransitionMs: 500,
		Background:   "#ffffff",
		Steps: []Step{
			{
				ID: "one",
				Objects: []ObjectDelta{
					{ID: "a", Type: "rect", Props: Bag{"x": 10.0, "y": 20.0, "fill": "#ff0000"}},
				},
			},
			{
				ID:         "two",
				DurationMs: 1200,
				Easing:     "linear",
				Objects: []ObjectDelta{
					{ID: "a", Props: Bag{"x": 50.0}},
					{ID: "c", Type: "connector", Props: Bag{"from": "a", "to": "a"}},
				},
			},
		},
	}
}

func TestSceneWriteRead(t *testing.T) {
	sc := testScene()

	tmpFile := filepath.Join(t.TempDir(), "scene.yaml")
	if err := Write(sc, tmpFile); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	read, problems, err := Read(tmpFile)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(problems) != 0 {
		t.Errorf("Expected no problems, got %v", problems)
	}

	if read.ID != sc.ID {
		t.Errorf("ID mismatch: expected %s, got %s", sc.ID, read.ID)
	}
	if len(read.Steps) != len(sc.Steps) {
		t.Fatalf("Step count mismatch: expected %d, got %d", len(sc.Steps), len(read.Steps))
	}
	if read.Steps[1].DurationMs != 1200 {
		t.Errorf("Expected duration 1200, got %f", read.Steps[1].DurationMs)
	}
	if read.Steps[1].Easing != "linear" {
		t.Errorf("Easing lost in round-trip: %q", read.Steps[1].Easing)
	}
	if x, ok := read.Steps[0].Objects[0].Props.Float("x"); !ok || x != 10.0 {
		t.Errorf("Expected x=10, got %v", read.Steps[0].Objects[0].Props["x"])
	}
}

func TestStepDurations(t *testing.T) {
	sc := testScene()

	if d := sc.StepDurationMs(0); d != 500 {
		t.Errorf("Expected scene default 500, got %f", d)
	}
	if d := sc.StepDurationMs(1); d != 1200 {
		t.Errorf("Expected override 1200, got %f", d)
	}
	if d := sc.StepDurationMs(5); d != 0 {
		t.Errorf("Expected 0 for out-of-range step, got %f", d)
	}

	sc.TransitionMs = 0
	if d := sc.StepDurationMs(0); d != DefaultTransitionMs {
		t.Errorf("Expected fallback %d, got %f", DefaultTransitionMs, d)
	}
}

func TestStepIndex(t *testing.T) {
	sc := testScene()
	if i := sc.StepIndex("two"); i != 1 {
		t.Errorf("Expected index 1, got %d", i)
	}
	if i := sc.StepIndex("missing"); i != -1 {
		t.Errorf("Expected -1, got %d", i)
	}
}

func TestValidateMissingType(t *testing.T) {
	sc := &Scene{Steps: []Step{
		{Objects: []ObjectDelta{{ID: "a", Props: Bag{"x": 1}}}},
	}}
	problems := Validate(sc)
	if len(problems) != 1 {
		t.Fatalf("Expected 1 problem, got %d: %v", len(problems), problems)
	}
	if problems[0].Fatal {
		t.Errorf("Missing type must not be fatal")
	}
}

func TestValidateConnectorTarget(t *testing.T) {
	sc := &Scene{Steps: []Step{
		{Objects: []ObjectDelta{
			{ID: "c", Type: "connector", Props: Bag{"from": "ghost", "to": "also-ghost"}},
		}},
	}}
	problems := Validate(sc)
	if len(problems) != 2 {
		t.Fatalf("Expected 2 problems, got %d: %v", len(problems), problems)
	}
}

func TestValidateCyclicParent(t *testing.T) {
	sc := &Scene{Steps: []Step{
		{Objects: []ObjectDelta{
			{ID: "a", Type: "rect", Props: Bag{"parent": "b"}},
			{ID: "b", Type: "rect", Props: Bag{"parent": "a"}},
		}},
	}}
	problems := Validate(sc)
	fatal := 0
	for _, p := range problems {
		if p.Fatal {
			fatal++
		}
	}
	if fatal == 0 {
		t.Fatalf("Expected fatal cycle problem, got %v", problems)
	}

	if _, _, err := Parse(mustYAML(t, sc)); err == nil {
		t.Errorf("Parse must reject a cyclic scene")
	}
}

func TestValidateSelfParent(t *testing.T) {
	sc := &Scene{Steps: []Step{
		{Objects: []ObjectDelta{
			{ID: "a", Type: "rect", Props: Bag{"parent": "a"}},
		}},
	}}
	problems := Validate(sc)
	fatal := false
	for _, p := range problems {
		fatal = fatal || p.Fatal
	}
	if !fatal {
		t.Fatalf("Expected self-parent to be fatal, got %v", problems)
	}
}

func TestBagMergeAndClone(t *testing.T) {
	base := Bag{"x": 1.0, "shadow": Bag{"color": "#000000"}}
	patch := Bag{"shadow": Bag{"blur": 2.0}, "x": 5.0}

	merged := base.Clone()
	merged.Merge(patch)

	shadow, ok := merged.Sub("shadow")
	if !ok {
		t.Fatal("shadow missing after merge")
	}
	if c, _ := shadow.Str("color"); c != "#000000" {
		t.Errorf("Nested merge lost color: %v", shadow)
	}
	if b, _ := shadow.Float("blur"); b != 2.0 {
		t.Errorf("Nested merge lost blur: %v", shadow)
	}
	if x, _ := merged.Float("x"); x != 5.0 {
		t.Errorf("Scalar not replaced: %v", merged["x"])
	}

	// The original must be untouched.
	origShadow, _ := base.Sub("shadow")
	if _, hasBlur := origShadow.Float("blur"); hasBlur {
		t.Error("Merge mutated the source bag")
	}
}

func mustYAML(t *testing.T, sc *Scene) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "s.yaml")
	if err := Write(sc, path); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return data
}
