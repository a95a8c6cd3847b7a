// Package state resolves a scene's step deltas into effective objects.
//
// Accumulation is a pure fold: identical inputs always produce value-equal
// output, and every call returns fresh maps that the caller may mutate freely.
package state

import (
	"sort"

	"github.com/ivlev/stepmotion/internal/scene"
)

// Object is a fully resolved drawable node. Group children are flattened into
// the same map as their parents, tagged with the parent id, so renderers see
// one uniform list.
type Object struct {
	ID     string
	Type   string
	Parent string
	Props  scene.Bag
}

// Clone returns a deep copy of the object.
func (o *Object) Clone() *Object {
	return &Object{ID: o.ID, Type: o.Type, Parent: o.Parent, Props: o.Props.Clone()}
}

// Map is the accumulated state at one step: effective objects by id.
type Map map[string]*Object

// Clone returns a deep copy of the whole state.
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for id, o := range m {
		out[id] = o.Clone()
	}
	return out
}

// Accumulate deep-merges the object deltas of steps 0..stepIndex, in
// declaration order, applying deletion markers as hard removals. A negative
// stepIndex yields an empty state; an index past the last step accumulates
// the whole scene. Unknown references are left for callers to skip or warn
// about; this function never fails.
func Accumulate(sc *scene.Scene, stepIndex int) Map {
	m := make(Map)
	if sc == nil {
		return m
	}
	last := stepIndex
	if last >= len(sc.Steps) {
		last = len(sc.Steps) - 1
	}
	for i := 0; i <= last; i++ {
		for _, d := range sc.Steps[i].Objects {
			applyDelta(m, d, "")
		}
	}
	return m
}

func applyDelta(m Map, d scene.ObjectDelta, parent string) {
	if d.ID == "" {
		return
	}
	if d.Remove {
		removeTree(m, d.ID)
		return
	}

	obj := m[d.ID]
	if obj == nil {
		obj = &Object{ID: d.ID, Type: d.Type, Props: make(scene.Bag)}
		m[d.ID] = obj
	}
	if d.Type != "" {
		obj.Type = d.Type
	}
	if parent != "" {
		obj.Parent = parent
	}
	if d.Props != nil {
		obj.Props.Merge(d.Props)
		if p, ok := obj.Props.Str("parent"); ok {
			obj.Parent = p
			delete(obj.Props, "parent")
		}
	}

	// A declared child list replaces the previous one entirely.
	if d.Children != nil {
		removeChildren(m, d.ID)
		for _, c := range d.Children {
			applyDelta(m, c, d.ID)
		}
	}
}

// removeTree deletes an object and every descendant. Deletion is permanent
// until the id is redefined in a later step.
func removeTree(m Map, id string) {
	delete(m, id)
	removeChildren(m, id)
}

func removeChildren(m Map, parent string) {
	for id, o := range m {
		if o.Parent == parent {
			removeTree(m, id)
		}
	}
}

// List flattens a state map into a stable draw order: ascending depth (z),
// with ties broken by id so identical inputs always list identically. A
// missing z counts as 0.
func List(m Map) []*Object {
	out := make([]*Object, 0, len(m))
	for _, o := range m {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		zi := out[i].Props.FloatOr("z", 0)
		zj := out[j].Props.FloatOr("z", 0)
		if zi != zj {
			return zi < zj
		}
		return out[i].ID < out[j].ID
	})
	return out
}
