// Package transition orchestrates step navigation: animated or instant for
// live preview, and a deterministic seek-to-frame for export.
//
// One Controller instance serves either a live preview or an export run,
// never both at once; the two uses share the internal transition record.
package transition

import (
	"fmt"
	"math"

	"github.com/ivlev/stepmotion/internal/interp"
	"github.com/ivlev/stepmotion/internal/scene"
	"github.com/ivlev/stepmotion/internal/state"
)

// Phase is the controller's lifecycle state.
type Phase int

const (
	Idle Phase = iota
	InstantJump
	Animating
)

// StepEvent is fired exactly once per completed step change.
type StepEvent struct {
	StepIndex int
	StepID    string
}

// record is the one piece of mutable transition state, owned by the
// controller and replaced wholesale on each navigation.
type record struct {
	from, to   state.Map
	fades      interp.Fades
	progress   float64
	durationMs float64
	easing     interp.Easing
	target     int
}

// Controller drives a scene through its steps.
type Controller struct {
	sc        *scene.Scene
	phase     Phase
	stepIndex int
	current   state.Map
	rec       *record
	onStep    func(StepEvent)
}

// New returns an idle controller with no scene loaded.
func New() *Controller {
	return &Controller{phase: Idle, stepIndex: -1, current: make(state.Map)}
}

// OnStepChanged registers the step-changed notification callback.
func (c *Controller) OnStepChanged(fn func(StepEvent)) {
	c.onStep = fn
}

// Scene returns the loaded scene, or nil.
func (c *Controller) Scene() *scene.Scene { return c.sc }

// Phase returns the current lifecycle phase.
func (c *Controller) Phase() Phase { return c.phase }

// StepIndex returns the current step, or -1 before any load.
func (c *Controller) StepIndex() int { return c.stepIndex }

// Load replaces any prior scene, resets to Idle and instant-jumps to step 0
// when the scene has steps. Fatal definition problems (cyclic parent chains)
// fail the load; everything else is returned as diagnostics.
func (c *Controller) Load(sc *scene.Scene) ([]scene.Problem, error) {
	problems := scene.Validate(sc)
	for _, p := range problems {
		if p.Fatal {
			return problems, fmt.Errorf("scene rejected: %s", p.Message)
		}
	}

	c.sc = sc
	c.phase = Idle
	c.rec = nil
	c.stepIndex = -1
	c.current = make(state.Map)
	if len(sc.Steps) > 0 {
		if err := c.GotoStep(0, 0, nil); err != nil {
			return problems, err
		}
	}
	return problems, nil
}

// GotoStep navigates to a step by index. A zero duration is an instant jump:
// the accumulated target state becomes current synchronously. A positive
// duration starts an animated transition advanced by Update. A nil easing
// falls back to the target step's declared easing name. Invalid targets are
// reported and leave the controller untouched.
func (c *Controller) GotoStep(target int, durationMs float64, easing interp.Easing) error {
	if c.sc == nil {
		return fmt.Errorf("no scene loaded")
	}
	if target < 0 || target >= len(c.sc.Steps) {
		return fmt.Errorf("step index %d out of range [0,%d)", target, len(c.sc.Steps))
	}
	if easing == nil {
		easing = interp.EasingByName(c.sc.Steps[target].Easing)
	}

	if durationMs <= 0 {
		c.phase = InstantJump
		c.current = state.Accumulate(c.sc, target)
		c.rec = nil
		c.finish(target)
		return nil
	}

	from := c.liveState()
	to := state.Accumulate(c.sc, target)
	c.rec = &record{
		from:       from,
		to:         to,
		fades:      interp.ComputeFades(from, to),
		durationMs: durationMs,
		easing:     easing,
		target:     target,
	}
	c.phase = Animating
	return nil
}

// GotoStepID navigates to a step by id.
func (c *Controller) GotoStepID(id string, durationMs float64, easing interp.Easing) error {
	if c.sc == nil {
		return fmt.Errorf("no scene loaded")
	}
	idx := c.sc.StepIndex(id)
	if idx < 0 {
		return fmt.Errorf("unknown step id %q", id)
	}
	return c.GotoStep(idx, durationMs, easing)
}

// Update advances an animated transition by deltaMs. The host calls this once
// per display frame; it is cheap and does nothing when idle. When progress
// reaches 1 the target state becomes current atomically and one step-changed
// notification fires.
func (c *Controller) Update(deltaMs float64) {
	if c.phase != Animating || c.rec == nil {
		return
	}
	c.rec.progress += deltaMs / c.rec.durationMs
	if c.rec.progress >= 1 {
		c.current = c.rec.to
		target := c.rec.target
		c.rec = nil
		c.finish(target)
	}
}

// Current returns the draw list for this moment: the blended state while
// animating, the settled state otherwise. The returned objects are fresh
// copies, never aliases of controller state.
func (c *Controller) Current() []*state.Object {
	return state.List(c.liveState())
}

// EffectiveState is the synchronous query counterpart: the fully accumulated
// draw list at an arbitrary step, independent of where the controller is.
func (c *Controller) EffectiveState(stepIndex int) []*state.Object {
	return state.List(state.Accumulate(c.sc, stepIndex))
}

// liveState materializes the present state as a fresh map.
func (c *Controller) liveState() state.Map {
	if c.phase == Animating && c.rec != nil {
		t := c.rec.easing(clampProgress(c.rec.progress))
		return interp.BlendStates(c.rec.from, c.rec.to, c.rec.fades, t)
	}
	return c.current.Clone()
}

func (c *Controller) finish(target int) {
	c.stepIndex = target
	c.phase = Idle
	if c.onStep != nil {
		c.onStep(StepEvent{StepIndex: target, StepID: c.sc.Steps[target].ID})
	}
}

func clampProgress(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

// StepFrames returns the exported frame count of step i at the given rate.
func StepFrames(sc *scene.Scene, i, fps int) int {
	return int(math.Ceil(sc.StepDurationMs(i) / 1000 * float64(fps)))
}

// FrameCount is the total animation frame count of a scene at the given rate,
// not counting hold frames.
func FrameCount(sc *scene.Scene, fps int) int {
	total := 0
	for i := range sc.Steps {
		total += StepFrames(sc, i, fps)
	}
	return total
}

// SeekToFrame positions the controller at an exact export frame. The mapping
// from frame index to (step, intra-step progress) depends only on declared
// step durations, easings and the frame rate, never on wall-clock time, so
// repeated calls with the same index are bit-identical. Out-of-range indexes
// are rejected without side effects.
func (c *Controller) SeekToFrame(frame, fps int) error {
	if c.sc == nil {
		return fmt.Errorf("no scene loaded")
	}
	if fps <= 0 {
		return fmt.Errorf("invalid fps %d", fps)
	}
	total := FrameCount(c.sc, fps)
	if frame < 0 || frame >= total {
		return fmt.Errorf("frame %d out of range [0,%d)", frame, total)
	}

	step, local := 0, frame
	for ; step < len(c.sc.Steps); step++ {
		n := StepFrames(c.sc, step, fps)
		if local < n {
			// The last frame of a step lands exactly on progress 1, i.e. the
			// fully accumulated state of that step.
			progress := float64(local+1) / float64(n)
			from := state.Accumulate(c.sc, step-1)
			to := state.Accumulate(c.sc, step)
			fades := interp.ComputeFades(from, to)
			easing := interp.EasingByName(c.sc.Steps[step].Easing)
			c.current = interp.BlendStates(from, to, fades, easing(progress))
			c.stepIndex = step
			c.phase = Idle
			c.rec = nil
			return nil
		}
		local -= n
	}
	return fmt.Errorf("frame %d not mapped", frame) // unreachable
}
