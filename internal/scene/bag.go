package scene

// Bag is an open property map. Known keys (position, opacity, colors, the
// nested shadow bag, ...) get typed treatment in merge and interpolation;
// everything else rides along untouched for forward compatibility.
type Bag map[string]any

// Float reads a numeric property. YAML decodes whole numbers as int, so both
// int and float64 are accepted.
func (b Bag) Float(key string) (float64, bool) {
	v, ok := b[key]
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

// FloatOr reads a numeric property with a fallback.
func (b Bag) FloatOr(key string, def float64) float64 {
	if f, ok := b.Float(key); ok {
		return f
	}
	return def
}

// Str reads a string property.
func (b Bag) Str(key string) (string, bool) {
	s, ok := b[key].(string)
	return s, ok
}

// StrOr reads a string property with a fallback.
func (b Bag) StrOr(key, def string) string {
	if s, ok := b.Str(key); ok {
		return s
	}
	return def
}

// Sub reads a nested bag. Plain map[string]any (the yaml decode shape) is
// accepted alongside Bag itself.
func (b Bag) Sub(key string) (Bag, bool) {
	switch v := b[key].(type) {
	case Bag:
		return v, true
	case map[string]any:
		return Bag(v), true
	}
	return nil, false
}

// Clone returns a deep copy. Nested bags are copied recursively; scalars and
// anything unrecognized are copied by value.
func (b Bag) Clone() Bag {
	if b == nil {
		return nil
	}
	out := make(Bag, len(b))
	for k, v := range b {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Bag:
		return t.Clone()
	case map[string]any:
		return Bag(t).Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Merge deep-merges src into b: nested bags recurse, everything else is
// replaced wholesale. src values are cloned, never aliased.
func (b Bag) Merge(src Bag) {
	for k, v := range src {
		if sub, ok := asBag(v); ok {
			if cur, ok := b.Sub(k); ok {
				merged := cur.Clone()
				merged.Merge(sub)
				b[k] = merged
				continue
			}
		}
		b[k] = cloneValue(v)
	}
}

func asBag(v any) (Bag, bool) {
	switch t := v.(type) {
	case Bag:
		return t, true
	case map[string]any:
		return Bag(t), true
	}
	return nil, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
