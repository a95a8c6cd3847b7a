package scene

// Scene is the top-level animation document: an ordered list of steps over a
// shared set of objects. A scene is immutable once loaded; everything derived
// from it (accumulated state, transitions, exported frames) is computed per query.
type Scene struct {
	ID           string  `yaml:"id"`
	TransitionMs float64 `yaml:"transition_ms,omitempty"` // default step duration
	Background   string  `yaml:"background,omitempty"`
	Steps        []Step  `yaml:"steps"`
}

// Step declares property changes for a subset of objects at one point in the
// timeline. Objects not mentioned keep whatever the previous steps gave them.
type Step struct {
	ID         string        `yaml:"id,omitempty"`
	DurationMs float64       `yaml:"duration_ms,omitempty"` // overrides Scene.TransitionMs
	Easing     string        `yaml:"easing,omitempty"`      // "linear", "ease-out"; default smooth in-out
	Objects    []ObjectDelta `yaml:"objects"`
}

// ObjectDelta is a partial update to one object. Type is required the first
// time an id appears. Children, when present, fully replace the previous
// child set. Remove deletes the object (and its children) until redefined.
type ObjectDelta struct {
	ID       string        `yaml:"id"`
	Type     string        `yaml:"type,omitempty"`
	Props    Bag           `yaml:"props,omitempty"`
	Children []ObjectDelta `yaml:"children,omitempty"`
	Remove   bool          `yaml:"remove,omitempty"`
}

// DefaultTransitionMs is used when neither the step nor the scene declares one.
const DefaultTransitionMs = 800

// StepDurationMs returns the effective duration of step i in milliseconds.
func (s *Scene) StepDurationMs(i int) float64 {
	if i < 0 || i >= len(s.Steps) {
		return 0
	}
	if d := s.Steps[i].DurationMs; d > 0 {
		return d
	}
	if s.TransitionMs > 0 {
		return s.TransitionMs
	}
	return DefaultTransitionMs
}

// StepIndex resolves a step id to its declaration-order index, or -1.
func (s *Scene) StepIndex(id string) int {
	for i := range s.Steps {
		if s.Steps[i].ID == id {
			return i
		}
	}
	return -1
}
