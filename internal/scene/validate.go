package scene

import "fmt"

// Problem is a non-fatal diagnostic about a scene definition. The offending
// element is skipped downstream; the pipeline keeps going. Cyclic parent
// chains are the one exception and are marked Fatal: they cannot be tolerated
// at resolve time.
type Problem struct {
	StepIndex int
	ObjectID  string
	Message   string
	Fatal     bool
}

func (p Problem) String() string {
	return fmt.Sprintf("step %d, object %q: %s", p.StepIndex, p.ObjectID, p.Message)
}

// Validate checks a scene for definition problems: missing type on first
// appearance, connectors naming unknown objects, unknown or cyclic parent
// references.
func Validate(sc *Scene) []Problem {
	var problems []Problem

	// First pass: collect every id that ever exists and the type it carries,
	// plus explicit parent declarations.
	types := make(map[string]string)
	parents := make(map[string]string)

	var walk func(stepIdx int, deltas []ObjectDelta, parentID string)
	walk = func(stepIdx int, deltas []ObjectDelta, parentID string) {
		for _, d := range deltas {
			if d.ID == "" {
				problems = append(problems, Problem{StepIndex: stepIdx, Message: "object without id"})
				continue
			}
			if d.Remove {
				continue
			}
			if _, seen := types[d.ID]; !seen {
				if d.Type == "" {
					problems = append(problems, Problem{
						StepIndex: stepIdx, ObjectID: d.ID,
						Message: "type missing on first appearance",
					})
				}
				types[d.ID] = d.Type
			}
			if parentID != "" {
				parents[d.ID] = parentID
			}
			if p, ok := d.Props.Str("parent"); ok {
				parents[d.ID] = p
			}
			walk(stepIdx, d.Children, d.ID)
		}
	}
	for i := range sc.Steps {
		walk(i, sc.Steps[i].Objects, "")
	}

	// Parent references must exist and must not loop back on themselves.
	for id, parent := range parents {
		if _, ok := types[parent]; !ok {
			problems = append(problems, Problem{
				ObjectID: id,
				Message:  fmt.Sprintf("unknown parent %q", parent),
			})
		}
	}
	for id := range parents {
		if cycleFrom(id, parents) {
			problems = append(problems, Problem{
				ObjectID: id,
				Message:  "cyclic parent chain",
				Fatal:    true,
			})
		}
	}

	// Connector endpoints resolve to null when missing; warn so the author
	// learns why the connector never shows up.
	for i := range sc.Steps {
		for _, d := range sc.Steps[i].Objects {
			if types[d.ID] != "connector" || d.Remove {
				continue
			}
			for _, key := range []string{"from", "to"} {
				target, ok := d.Props.Str(key)
				if !ok {
					continue
				}
				if _, exists := types[target]; !exists {
					problems = append(problems, Problem{
						StepIndex: i, ObjectID: d.ID,
						Message: fmt.Sprintf("connector %s references unknown object %q", key, target),
					})
				}
			}
		}
	}

	return problems
}

func cycleFrom(id string, parents map[string]string) bool {
	slow, fast := id, id
	for {
		fast = parents[parents[fast]]
		slow = parents[slow]
		if fast == "" || parents[fast] == "" {
			return false
		}
		if slow == fast {
			return true
		}
	}
}
